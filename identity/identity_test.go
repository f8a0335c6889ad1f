package identity_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/identity"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"
)

var _ = Describe("LoadOrCreate", func() {
	It("derives a deterministic identity from name when no storage dir is given", func() {
		id1, err := identity.LoadOrCreate("", "n1")
		Expect(err).NotTo(HaveOccurred())
		id2, err := identity.LoadOrCreate("", "n1")
		Expect(err).NotTo(HaveOccurred())
		Expect(id1.Hex()).To(Equal(id2.Hex()))

		id3, err := identity.LoadOrCreate("   ", "n2")
		Expect(err).NotTo(HaveOccurred())
		Expect(id3.Hex()).NotTo(Equal(id1.Hex()))
	})

	It("persists a generated identity across calls when a storage dir is given", func() {
		dir, err := os.MkdirTemp("", "idtest")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		id1, err := identity.LoadOrCreate(dir, "n1")
		Expect(err).NotTo(HaveOccurred())

		_, statErr := os.Stat(filepath.Join(dir, "identity.hex"))
		Expect(statErr).NotTo(HaveOccurred())

		id2, err := identity.LoadOrCreate(dir, "n1")
		Expect(err).NotTo(HaveOccurred())
		Expect(id2.Hex()).To(Equal(id1.Hex()))
	})

	It("fails with IoError on a corrupt identity file", func() {
		dir, err := os.MkdirTemp("", "idtest2")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		Expect(os.WriteFile(filepath.Join(dir, "identity.hex"), []byte("not-hex"), 0o600)).To(Succeed())

		_, err = identity.LoadOrCreate(dir, "n1")
		Expect(err).To(HaveOccurred())
		Expect(rtypes.AsNodeError(err).Code).To(Equal(rtypes.ErrIO))
	})
})
