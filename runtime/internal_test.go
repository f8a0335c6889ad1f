package runtime

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("extractHexDestinations", func() {
	It("finds each 32-hex run once, lowercase, in first-seen order", func() {
		body := "[ 0123456789ABCDEF0123456789abcdef , deadbeefdeadbeefdeadbeefdeadbeef ]"
		got := extractHexDestinations(body)
		Expect(got).To(Equal([]string{
			"0123456789abcdef0123456789abcdef",
			"deadbeefdeadbeefdeadbeefdeadbeef",
		}))
	})

	It("ignores hex runs embedded in a longer run of hex characters", func() {
		body := "x" + string(make([]byte, 0)) + "0123456789abcdef0123456789abcdef00"
		Expect(extractHexDestinations(body)).To(BeEmpty())
	})

	It("dedups repeated addresses, keeping first-seen order", func() {
		addr := "0123456789abcdef0123456789abcdef"
		body := addr + " " + addr
		Expect(extractHexDestinations(body)).To(Equal([]string{addr}))
	})

	It("finds adjacent runs separated by a single character", func() {
		a := "0123456789abcdef0123456789abcdef"
		b := "deadbeefdeadbeefdeadbeefdeadbeef"
		Expect(extractHexDestinations(a + "," + b)).To(Equal([]string{a, b}))
	})
})

var _ = Describe("joinURL", func() {
	It("collapses a trailing base slash against a bare path", func() {
		Expect(joinURL("http://h/", "Client")).To(Equal("http://h/Client"))
	})

	It("collapses a leading path slash", func() {
		Expect(joinURL("http://h", "/Client")).To(Equal("http://h/Client"))
	})

	It("never drops the path's leading segment", func() {
		Expect(joinURL("http://h///", "///Client")).To(Equal("http://h/Client"))
	})
})
