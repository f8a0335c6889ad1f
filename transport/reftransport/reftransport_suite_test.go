package reftransport_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestReftransport(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "reftransport suite")
}
