package reftransport_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/identity"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/transport"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/transport/reftransport"
)

var _ = Describe("Transport", func() {
	It("reports DroppedNoRoute for an unknown destination, SentDirect once injected", func() {
		tr, err := reftransport.New()
		Expect(err).NotTo(HaveOccurred())
		defer tr.Close()

		id, err := identity.LoadOrCreate("", "peer")
		Expect(err).NotTo(HaveOccurred())
		addr := id.DestinationAddress(rtypes.AppDestinationName)

		outcome := tr.SendPacketWithOutcome(transport.Packet{
			Propagation: transport.PropagationTransport,
			Destination: addr,
			Payload:     []byte("hi"),
		})
		Expect(outcome).To(Equal(rtypes.DroppedNoRoute))

		tr.InjectPeer(id, rtypes.AppDestinationName)
		outcome = tr.SendPacketWithOutcome(transport.Packet{
			Propagation: transport.PropagationTransport,
			Destination: addr,
			Payload:     []byte("hi"),
		})
		Expect(outcome).To(Equal(rtypes.SentDirect))
	})

	It("does not loop a link send back onto ReceivedDataEvents, but surfaces it on the link's Requests channel", func() {
		tr, err := reftransport.New()
		Expect(err).NotTo(HaveOccurred())
		defer tr.Close()

		id, err := identity.LoadOrCreate("", "hub")
		Expect(err).NotTo(HaveOccurred())
		addr := id.DestinationAddress(rtypes.LxmfDestinationName)
		desc := rtypes.DestinationDescriptor{IdentityHex: id.AddressHex(), Address: addr, Name: rtypes.LxmfDestinationName}

		l := tr.Link(desc)
		activatable := l.(reftransport.Activatable)
		activatable.Activate()
		Expect(l.Status()).To(Equal(transport.LinkActive))

		dataSub := tr.ReceivedDataEvents()
		defer dataSub.Close()

		outcome := tr.SendPacketWithOutcome(l.DataPacket([]byte("request")))
		Expect(outcome).To(Equal(rtypes.SentDirect))

		_, ok := dataSub.Next(100)
		Expect(ok).To(BeFalse())

		src := l.(reftransport.RequestSource)
		select {
		case payload := <-src.Requests():
			Expect(payload).To(Equal([]byte("request")))
		default:
			Fail("expected the request to be observable on the link's Requests channel")
		}

		tr.EmitDataEvent(addr, []byte("reply"))
		ev, ok := dataSub.Next(200)
		Expect(ok).To(BeTrue())
		Expect(ev.Data).To(Equal([]byte("reply")))
	})
})
