package embed_test

import (
	"encoding/base64"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/embed"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/identity"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/transport"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/transport/reftransport"
)

func refFactory() func(rtypes.NodeConfig, *identity.Identity) (transport.Transport, error) {
	return func(rtypes.NodeConfig, *identity.Identity) (transport.Transport, error) {
		return reftransport.New()
	}
}

var _ = Describe("Surface", func() {
	It("returns 1 and a populated last-error on malformed start json, consumed once", func() {
		s := embed.New(refFactory())
		Expect(s.Start("not json")).To(Equal(embed.ResultErr))

		first := s.TakeLastErrorJSON()
		Expect(first).To(ContainSubstring("InvalidConfig"))

		second := s.TakeLastErrorJSON()
		Expect(second).To(Equal("{}"))
	})

	It("starts from JSON, reports status, sends, and stops", func() {
		var tr *reftransport.Transport
		factory := func(rtypes.NodeConfig, *identity.Identity) (transport.Transport, error) {
			t, err := reftransport.New()
			if err != nil {
				return nil, err
			}
			tr = t
			return t, nil
		}

		s := embed.New(factory)
		Expect(s.Start(`{"name":"e1","announceIntervalSeconds":1}`)).To(Equal(embed.ResultOk))
		defer s.Stop()

		status := s.GetStatusJSON()
		Expect(status).To(ContainSubstring(`"running":true`))
		Expect(status).To(ContainSubstring(`"name":"e1"`))

		destHex := strings.Repeat("bb", 16)
		destAddr, err := rtypes.ParseAddressHash(destHex)
		Expect(err).NotTo(HaveOccurred())
		// Register the peer in the reference directory first: an
		// unregistered address deterministically drops with no route, so
		// sending to one can never observe a successful outcome.
		tr.EmitAnnounceFrom(destAddr, strings.Repeat("11", 64), rtypes.AppDestinationName, nil, 1)

		payload := `{"destinationHex":"` + destHex + `","bytesBase64":"` + base64.StdEncoding.EncodeToString([]byte("hi")) + `"}`
		Expect(s.Send(payload)).To(Equal(embed.ResultOk))

		Expect(s.Stop()).To(Equal(embed.ResultOk))
	})

	It("rejects a malformed base64 broadcast payload", func() {
		s := embed.New(refFactory())
		Expect(s.Start(`{"name":"e2","announceIntervalSeconds":1}`)).To(Equal(embed.ResultOk))
		defer s.Stop()

		Expect(s.Broadcast("not-base64!!")).To(Equal(embed.ResultErr))
		Expect(s.TakeLastErrorJSON()).To(ContainSubstring("InvalidConfig"))
	})
})
