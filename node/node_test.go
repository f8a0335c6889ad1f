package node_test

import (
	"net"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/valyala/fasthttp"

	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/eventbus"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/identity"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/node"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/transport"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/transport/reftransport"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/transport/refhub"
)

// hubLinkHandle is the slice of reftransport.Link behavior this test needs
// to hand a client-obtained link over to refhub.Lxmf.Serve as its peer end.
type hubLinkHandle interface {
	reftransport.Activatable
	reftransport.RequestSource
}

func refFactory() node.TransportFactory {
	return func(rtypes.NodeConfig, *identity.Identity) (transport.Transport, error) {
		return reftransport.New()
	}
}

func awaitEvent(sub *eventbus.Subscription[rtypes.NodeEvent], timeout time.Duration, match func(rtypes.NodeEvent) bool) (rtypes.NodeEvent, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ev, ok := sub.Next(50)
		if ok && match(ev) {
			return ev, true
		}
	}
	return rtypes.NodeEvent{}, false
}

var _ = Describe("Node façade", func() {
	It("roundtrips start and stop, observing StatusChanged both ways", func() {
		n := node.New(refFactory())
		sub := n.SubscribeEvents()
		defer sub.Close()

		cfg := rtypes.NewNodeConfig()
		cfg.Name = "n1"
		cfg.AnnounceIntervalSeconds = 1
		Expect(n.Start(cfg)).To(BeNil())

		ev, found := awaitEvent(sub, 2*time.Second, func(e rtypes.NodeEvent) bool {
			return e.Kind == rtypes.EventStatusChanged && e.Status.Running
		})
		Expect(found).To(BeTrue())
		Expect(ev.Status.Name).To(Equal("n1"))
		Expect(ev.Status.IdentityHex).To(HaveLen(64))
		Expect(ev.Status.AppDestinationHex).To(HaveLen(32))
		Expect(ev.Status.LxmfDestinationHex).To(HaveLen(32))

		Expect(n.Stop()).To(BeNil())
		_, found = awaitEvent(sub, 2*time.Second, func(e rtypes.NodeEvent) bool {
			return e.Kind == rtypes.EventStatusChanged && !e.Status.Running
		})
		Expect(found).To(BeTrue())
	})

	It("rejects send with invalid hex and emits no PacketSent", func() {
		n := node.New(refFactory())
		sub := n.SubscribeEvents()
		defer sub.Close()

		cfg := rtypes.NewNodeConfig()
		cfg.Name = "n2"
		cfg.AnnounceIntervalSeconds = 1
		Expect(n.Start(cfg)).To(BeNil())
		defer n.Stop()

		err := n.SendBytes("zz", nil)
		Expect(err).NotTo(BeNil())
		Expect(err.Code).To(Equal(rtypes.ErrInvalidConfig))

		_, found := awaitEvent(sub, 300*time.Millisecond, func(e rtypes.NodeEvent) bool {
			return e.Kind == rtypes.EventPacketSent
		})
		Expect(found).To(BeFalse())
	})

	It("sequences Connecting then Connected then Disconnected for a connect/disconnect pair", func() {
		n := node.New(refFactory())
		sub := n.SubscribeEvents()
		defer sub.Close()

		cfg := rtypes.NewNodeConfig()
		cfg.Name = "n3"
		cfg.AnnounceIntervalSeconds = 1
		Expect(n.Start(cfg)).To(BeNil())
		defer n.Stop()

		hex := strings.Repeat("aa", 16)
		Expect(n.ConnectPeer(hex)).To(BeNil())

		_, foundConnecting := awaitEvent(sub, time.Second, func(e rtypes.NodeEvent) bool {
			return e.Kind == rtypes.EventPeerChanged && e.PeerChange.DestinationHex == hex && e.PeerChange.State == rtypes.PeerConnecting
		})
		Expect(foundConnecting).To(BeTrue())

		_, foundConnected := awaitEvent(sub, time.Second, func(e rtypes.NodeEvent) bool {
			return e.Kind == rtypes.EventPeerChanged && e.PeerChange.DestinationHex == hex && e.PeerChange.State == rtypes.PeerConnected
		})
		Expect(foundConnected).To(BeTrue())

		Expect(n.DisconnectPeer(hex)).To(BeNil())
		_, foundDisconnected := awaitEvent(sub, time.Second, func(e rtypes.NodeEvent) bool {
			return e.Kind == rtypes.EventPeerChanged && e.PeerChange.DestinationHex == hex && e.PeerChange.State == rtypes.PeerDisconnected
		})
		Expect(foundDisconnected).To(BeTrue())
	})

	It("emits an app-destination announce carrying new capabilities", func() {
		n := node.New(refFactory())
		sub := n.SubscribeEvents()
		defer sub.Close()

		cfg := rtypes.NewNodeConfig()
		cfg.Name = "n4"
		cfg.AnnounceIntervalSeconds = 1
		Expect(n.Start(cfg)).To(BeNil())
		defer n.Stop()

		Expect(n.SetAnnounceCapabilities("ALPHA")).To(BeNil())

		// The reference transport feeds the node's own announces back to its
		// announce receiver, so the announce surfaces as AnnounceReceived.
		appHex := n.GetStatus().AppDestinationHex
		_, found := awaitEvent(sub, 2*time.Second, func(e rtypes.NodeEvent) bool {
			return e.Kind == rtypes.EventAnnounceReceived && e.DestinationHex == appHex && e.AppData == "ALPHA"
		})
		Expect(found).To(BeTrue())
	})

	It("extracts destinations from a mock hub HTTP body", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		hub := refhub.NewHTTPServer([]string{
			"0123456789abcdef0123456789abcdef",
			"deadbeefdeadbeefdeadbeefdeadbeef",
		}, "")
		go fasthttp.Serve(ln, hub.Handler())
		defer ln.Close()

		n := node.New(refFactory())
		sub := n.SubscribeEvents()
		defer sub.Close()

		cfg := rtypes.NewNodeConfig()
		cfg.Name = "n5"
		cfg.AnnounceIntervalSeconds = 1
		cfg.HubMode = rtypes.HubRchHTTP
		cfg.HubAPIBaseURL = "http://" + ln.Addr().String() + "/"
		Expect(n.Start(cfg)).To(BeNil())
		defer n.Stop()

		Expect(n.RefreshHubDirectory()).To(BeNil())

		ev, found := awaitEvent(sub, 2*time.Second, func(e rtypes.NodeEvent) bool {
			return e.Kind == rtypes.EventHubDirectoryUpdated
		})
		Expect(found).To(BeTrue())
		Expect(ev.Destinations).To(ConsistOf(
			"0123456789abcdef0123456789abcdef",
			"deadbeefdeadbeefdeadbeefdeadbeef",
		))
	})

	It("extracts destinations from a reference LXMF hub over a link session", func() {
		var tr *reftransport.Transport
		factory := func(rtypes.NodeConfig, *identity.Identity) (transport.Transport, error) {
			t, err := reftransport.New()
			if err != nil {
				return nil, err
			}
			tr = t
			return t, nil
		}

		hubHex := strings.Repeat("cc", 16)
		hubAddr, err := rtypes.ParseAddressHash(hubHex)
		Expect(err).NotTo(HaveOccurred())

		n := node.New(factory)
		sub := n.SubscribeEvents()
		defer sub.Close()

		cfg := rtypes.NewNodeConfig()
		cfg.Name = "n9"
		cfg.AnnounceIntervalSeconds = 1
		cfg.HubMode = rtypes.HubRchLxmf
		cfg.HubIdentityHash = hubHex
		Expect(n.Start(cfg)).To(BeNil())
		defer n.Stop()

		// Seed the hub's descriptor into the runtime's known-destinations
		// cache by announcing it, the same way a real hub would be learned.
		tr.EmitAnnounceFrom(hubAddr, strings.Repeat("22", 64), rtypes.AppDestinationName, nil, 0)
		_, announced := awaitEvent(sub, time.Second, func(e rtypes.NodeEvent) bool {
			return e.Kind == rtypes.EventAnnounceReceived && e.DestinationHex == hubHex
		})
		Expect(announced).To(BeTrue())

		// Obtain the same link the runtime's LXMF refresh will use —
		// reftransport.Transport.Link memoizes by address — and serve it as
		// the directory hub.
		rawLink := tr.Link(rtypes.DestinationDescriptor{Address: hubAddr})
		hubLink, ok := rawLink.(hubLinkHandle)
		Expect(ok).To(BeTrue())

		hub := refhub.NewLxmf(hubAddr, []string{"0123456789abcdef0123456789abcdef"})
		stop := make(chan struct{})
		defer close(stop)
		go hub.Serve(hubLink, tr, stop)

		Expect(n.RefreshHubDirectory()).To(BeNil())

		ev, found := awaitEvent(sub, 2*time.Second, func(e rtypes.NodeEvent) bool {
			return e.Kind == rtypes.EventHubDirectoryUpdated
		})
		Expect(found).To(BeTrue())
		Expect(ev.Destinations).To(ConsistOf("0123456789abcdef0123456789abcdef"))
	})

	It("fails a second start with AlreadyRunning", func() {
		n := node.New(refFactory())

		cfg := rtypes.NewNodeConfig()
		cfg.Name = "n6"
		cfg.AnnounceIntervalSeconds = 1
		Expect(n.Start(cfg)).To(BeNil())
		defer n.Stop()

		err := n.Start(cfg)
		Expect(err).NotTo(BeNil())
		Expect(err.Code).To(Equal(rtypes.ErrAlreadyRunning))
	})

	It("returns InvalidConfig for hub refresh when hub mode is disabled", func() {
		n := node.New(refFactory())
		cfg := rtypes.NewNodeConfig()
		cfg.Name = "n7"
		cfg.AnnounceIntervalSeconds = 1
		Expect(n.Start(cfg)).To(BeNil())
		defer n.Stop()

		err := n.RefreshHubDirectory()
		Expect(err).NotTo(BeNil())
		Expect(err.Code).To(Equal(rtypes.ErrInvalidConfig))
	})
})
