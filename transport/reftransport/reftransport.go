// Package reftransport is an in-memory reference implementation of
// transport.Transport, backed by a tidwall/buntdb peer directory (component
// J). It exists so the Runtime Core, the façade, and the test suite can run
// end-to-end without the real mesh-crypto transport library, which is an
// out-of-scope external collaborator per spec §1.
//
// Grounded on the teacher's mock-server idiom (ais/test/target_mock.go,
// cluster/mock/stats_mock.go): a minimal stand-in for a production interface,
// used only by tests and tooling, never by the runtime's real entry points.
/*
 * Copyright (c) 2024-2026, FreeTAKTeam. All rights reserved.
 */
package reftransport

import (
	"context"
	"sync"
	"time"

	"github.com/teris-io/shortid"
	"github.com/tidwall/buntdb"

	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/eventbus"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/transport"
)

var sid = shortid.MustNew(4 /*worker*/, shortid.DefaultABC, 0)

// Transport is a single in-process reference node's view of the mesh: it
// knows only what has been explicitly registered (AddDestination) or
// injected by test/demo code via Inject*, exactly mirroring what a real
// transport would learn from announces and path discovery.
type Transport struct {
	mu    sync.Mutex
	dirDB *buntdb.DB // peer directory, keyed by hex address

	identities map[rtypes.AddressHash]transport.Identity
	links      map[rtypes.AddressHash]*link

	announces *eventbus.Bus[transport.Announce]
	data      *eventbus.Bus[transport.DataEvent]
	linkEvts  *eventbus.Bus[transport.LinkEvent]

	pathRequestDelay time.Duration
}

// New opens an in-memory buntdb directory and returns a ready Transport.
func New() (*Transport, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, rtypes.WrapError(rtypes.ErrIO, err, "open reference transport directory")
	}
	return &Transport{
		dirDB:            db,
		identities:       make(map[rtypes.AddressHash]transport.Identity),
		links:            make(map[rtypes.AddressHash]*link),
		announces:        eventbus.New[transport.Announce](),
		data:             eventbus.New[transport.DataEvent](),
		linkEvts:         eventbus.New[transport.LinkEvent](),
		pathRequestDelay: 20 * time.Millisecond,
	}, nil
}

// Close releases the underlying buntdb handle.
func (t *Transport) Close() error { return t.dirDB.Close() }

func dirKey(addr rtypes.AddressHash) string { return "peer:" + addr.Hex() }

func (t *Transport) AddDestination(id transport.Identity, name rtypes.DestinationName) rtypes.AddressHash {
	addr := id.DestinationAddress(name)
	t.mu.Lock()
	t.identities[addr] = id
	t.mu.Unlock()

	_ = t.dirDB.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(dirKey(addr), id.AddressHex()+"|"+name.Namespace+"|"+name.Kind, nil)
		return err
	})
	return addr
}

func (t *Transport) SendAnnounce(name rtypes.DestinationName, appData []byte) error {
	t.mu.Lock()
	var (
		found bool
		addr  rtypes.AddressHash
		id    transport.Identity
	)
	for a, i := range t.identities {
		desc, ok := t.lookupDirLocked(a)
		if ok && desc.Name == name {
			found, addr, id = true, a, i
			break
		}
	}
	t.mu.Unlock()
	if !found {
		return rtypes.NewError(rtypes.ErrInternal, "no local destination registered for %+v", name)
	}

	t.announces.Emit(transport.Announce{
		Descriptor: rtypes.DestinationDescriptor{
			IdentityHex: id.AddressHex(),
			Address:     addr,
			Name:        name,
		},
		AppData: appData,
		Hops:    0,
	})
	return nil
}

func (t *Transport) RecvAnnounces() *eventbus.Subscription[transport.Announce] {
	return t.announces.Subscribe()
}

func (t *Transport) ReceivedDataEvents() *eventbus.Subscription[transport.DataEvent] {
	return t.data.Subscribe()
}

func (t *Transport) OutLinkEvents() *eventbus.Subscription[transport.LinkEvent] {
	return t.linkEvts.Subscribe()
}

// SendPacketWithOutcome simulates delivery deterministically: direct if the
// destination is known to this reference node (registered locally or
// previously announced/injected), otherwise no-route, which is exactly the
// signal the path-retry loop in runtime/ is built to react to.
//
// Note: a successful send here does NOT loop the payload back onto
// ReceivedDataEvents — an outbound send observed by the sender is not an
// inbound receive, exactly as on a real wire. Tests and refhub use
// EmitDataEvent to simulate a remote peer's inbound delivery, and a
// link-bound send additionally surfaces on the link's own Requests()
// channel so a reference hub sitting on the other end of that link can see
// (and answer) it.
func (t *Transport) SendPacketWithOutcome(pkt transport.Packet) rtypes.SendOutcome {
	if pkt.Propagation == transport.PropagationLink {
		l, ok := pkt.Link.(*link)
		if !ok || l.Status() != transport.LinkActive {
			return rtypes.DroppedNoRoute
		}
		select {
		case l.requests <- pkt.Payload:
		default:
		}
		return rtypes.SentDirect
	}

	if _, ok := t.lookupDir(pkt.Destination); ok {
		return rtypes.SentDirect
	}
	return rtypes.DroppedNoRoute
}

// EmitDataEvent injects a simulated inbound data packet, as if it had just
// arrived over the wire from some remote peer. Used by tests exercising the
// data receiver directly, and by refhub to deliver an LXMF reply.
func (t *Transport) EmitDataEvent(dest rtypes.AddressHash, payload []byte) {
	t.data.Emit(transport.DataEvent{Destination: dest, Data: payload})
}

// RequestPath synthesizes an announce for addr after a short delay if the
// directory has a record for it and an identity is registered for it (via
// AddDestination or InjectPeer; EmitAnnounceFrom alone is not enough), modeling a
// successful path discovery mid path-retry (spec §4.E, §8 scenario coverage).
func (t *Transport) RequestPath(addr rtypes.AddressHash) {
	go func() {
		time.Sleep(t.pathRequestDelay)
		desc, ok := t.lookupDir(addr)
		if !ok {
			return
		}
		id, ok := t.DestinationIdentity(addr)
		if !ok {
			return
		}
		t.announces.Emit(transport.Announce{
			Descriptor: desc,
			AppData:    nil,
			Hops:       1,
		})
		_ = id
	}()
}

// Link returns the outbound link to descriptor.Address, creating one on
// first request and handing back the same instance on every subsequent
// call for that address — mirroring the real transport's one-link-per-peer
// session and letting a paired reference hub (transport/refhub) obtain the
// exact link object a client's runtime is using in order to serve it.
func (t *Transport) Link(descriptor rtypes.DestinationDescriptor) transport.Link {
	t.mu.Lock()
	defer t.mu.Unlock()
	if l, ok := t.links[descriptor.Address]; ok {
		return l
	}
	l := &link{
		id:       sid.MustGenerate(),
		address:  descriptor.Address,
		status:   transport.LinkPending,
		bus:      t.linkEvts,
		requests: make(chan []byte, 8),
	}
	t.links[descriptor.Address] = l
	return l
}

func (t *Transport) DestinationIdentity(addr rtypes.AddressHash) (transport.Identity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.identities[addr]
	return id, ok
}

func (t *Transport) IfaceManager() transport.IfaceManager { return noopIfaceManager{} }

// InjectPeer registers a remote peer's identity into the directory as if it
// had been learned via announce/path discovery — used by tests and the demo
// binary to simulate a populated mesh.
func (t *Transport) InjectPeer(id transport.Identity, name rtypes.DestinationName) rtypes.AddressHash {
	return t.AddDestination(id, name)
}

// EmitAnnounceFrom publishes one announce as if it arrived from addr/name,
// without requiring the caller to hold an Identity (handy for fuzzing the
// announce receiver directly in tests).
func (t *Transport) EmitAnnounceFrom(addr rtypes.AddressHash, identityHex string, name rtypes.DestinationName, appData []byte, hops uint8) {
	_ = t.dirDB.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(dirKey(addr), identityHex+"|"+name.Namespace+"|"+name.Kind, nil)
		return err
	})
	t.announces.Emit(transport.Announce{
		Descriptor: rtypes.DestinationDescriptor{IdentityHex: identityHex, Address: addr, Name: name},
		AppData:    appData,
		Hops:       hops,
	})
}

func (t *Transport) lookupDir(addr rtypes.AddressHash) (rtypes.DestinationDescriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lookupDirLocked(addr)
}

func (t *Transport) lookupDirLocked(addr rtypes.AddressHash) (rtypes.DestinationDescriptor, bool) {
	var (
		desc  rtypes.DestinationDescriptor
		found bool
	)
	_ = t.dirDB.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(dirKey(addr))
		if err != nil {
			return nil
		}
		parts := splitThree(val)
		idHex, ns, kind := parts[0], parts[1], parts[2]
		desc = rtypes.DestinationDescriptor{
			IdentityHex: idHex,
			Address:     addr,
			Name:        rtypes.DestinationName{Namespace: ns, Kind: kind},
		}
		found = true
		return nil
	})
	return desc, found
}

func splitThree(s string) [3]string {
	var out [3]string
	start := 0
	idx := 0
	for i := 0; i < len(s) && idx < 2; i++ {
		if s[i] == '|' {
			out[idx] = s[start:i]
			start = i + 1
			idx++
		}
	}
	out[idx] = s[start:]
	return out
}

type noopIfaceManager struct{}

func (noopIfaceManager) Spawn(ctx context.Context, driver transport.IfaceDriver) error {
	go func() { _ = driver.Run(ctx) }()
	return nil
}

// link is the reference Link implementation.
type link struct {
	mu       sync.Mutex
	id       string
	address  rtypes.AddressHash
	status   transport.LinkStatus
	bus      *eventbus.Bus[transport.LinkEvent]
	requests chan []byte
}

// Requests returns the channel of payloads submitted over this link via
// DataPacket, as seen from the far end. A reference hub holding the same
// *link (handed to it by the demo/test wiring) reads its requests here and
// answers with Transport.EmitDataEvent.
func (l *link) Requests() <-chan []byte { return l.requests }

func (l *link) ID() string { return l.id }

func (l *link) Status() transport.LinkStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *link) DataPacket(payload []byte) transport.Packet {
	return transport.Packet{Propagation: transport.PropagationLink, Destination: l.address, Link: l, Payload: payload}
}

func (l *link) Close() error {
	l.mu.Lock()
	l.status = transport.LinkClosedStatus
	l.mu.Unlock()
	l.bus.Emit(transport.LinkEvent{LinkID: l.id, Address: l.address, Kind: transport.LinkClosed})
	return nil
}

// Activate is reftransport-specific: drives the link to Active and emits the
// Activated event. Called by refhub (or tests) to simulate the far end
// accepting the link handshake.
func (l *link) Activate() {
	l.mu.Lock()
	l.status = transport.LinkActive
	l.mu.Unlock()
	l.bus.Emit(transport.LinkEvent{LinkID: l.id, Address: l.address, Kind: transport.LinkActivated})
}

// Activatable exposes Activate to test/demo code without widening the
// transport.Link interface itself.
type Activatable interface {
	Activate()
}

// RequestSource exposes a link's inbound request channel to whatever sits on
// the other end of it — the reference hub, in practice.
type RequestSource interface {
	Requests() <-chan []byte
}

var (
	_ Activatable   = (*link)(nil)
	_ RequestSource = (*link)(nil)
)
