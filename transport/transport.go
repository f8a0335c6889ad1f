// Package transport defines the Transport capability the Runtime Core
// consumes (spec §6). The real implementation — packet encryption, path
// discovery, announces, link cryptography, and interface drivers — is an
// external collaborator, explicitly out of scope for this module (spec §1).
// This package only states the contract; transport/reftransport provides a
// reference implementation used by tests and the demo binary (component J).
/*
 * Copyright (c) 2024-2026, FreeTAKTeam. All rights reserved.
 */
package transport

import (
	"context"

	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/eventbus"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"
)

// Identity is the minimal identity surface the transport needs: a public key
// it can use to derive destination addresses, and a public identity hash for
// any directory entry, descriptor, or status field that needs a stable text
// reference to it. The private key never crosses this interface.
type Identity interface {
	DestinationAddress(name rtypes.DestinationName) rtypes.AddressHash
	AddressHex() string
}

// Announce is what the announce-broadcast stream yields.
type Announce struct {
	Descriptor   rtypes.DestinationDescriptor
	AppData      []byte
	Hops         uint8
	InterfaceID  []byte
}

// DataEvent is what the received-data stream yields.
type DataEvent struct {
	Destination rtypes.AddressHash
	Data        []byte
}

// LinkEventKind discriminates an outbound link lifecycle event.
type LinkEventKind int

const (
	LinkActivated LinkEventKind = iota
	LinkClosed
	LinkData
)

// LinkEvent is what the out-link-event stream yields.
type LinkEvent struct {
	LinkID  string
	Address rtypes.AddressHash
	Kind    LinkEventKind
	Data    []byte
}

// LinkStatus is the lifecycle of one outbound Link.
type LinkStatus int

const (
	LinkPending LinkStatus = iota
	LinkActive
	LinkClosedStatus
)

// Link is a bidirectional cryptographic session to one destination.
type Link interface {
	ID() string
	Status() LinkStatus
	// DataPacket wraps payload for submission over this link.
	DataPacket(payload []byte) Packet
	Close() error
}

// PropagationType selects how a Packet should travel: Transport for the
// path-retry send, Link for a packet bound to an outbound link session (as
// built by Link.DataPacket for the LXMF hub request).
type PropagationType int

const (
	PropagationTransport PropagationType = iota
	PropagationLink
)

// Packet is a unit submitted to the transport for sending.
type Packet struct {
	Propagation PropagationType
	Destination rtypes.AddressHash
	Link        Link
	Payload     []byte
}

// Config configures one Transport instance.
type Config struct {
	Name             string
	Identity         Identity
	Broadcast        bool
	RatchetStorePath string
	Retransmit       bool
}

// IfaceDriver is an opaque interface driver (e.g. a TCP client) the transport
// can spawn; this module never inspects its internals.
type IfaceDriver interface {
	Run(ctx context.Context) error
}

// IfaceManager spawns interface drivers onto the transport's own supervision.
type IfaceManager interface {
	Spawn(ctx context.Context, driver IfaceDriver) error
}

// Transport is the capability the Runtime Core depends on (spec §6). It is
// intentionally narrow: every method here has a direct call site in
// runtime/.
type Transport interface {
	AddDestination(identity Identity, name rtypes.DestinationName) rtypes.AddressHash
	SendAnnounce(dest rtypes.DestinationName, appData []byte) error
	RecvAnnounces() *eventbus.Subscription[Announce]
	ReceivedDataEvents() *eventbus.Subscription[DataEvent]
	OutLinkEvents() *eventbus.Subscription[LinkEvent]
	SendPacketWithOutcome(pkt Packet) rtypes.SendOutcome
	RequestPath(addr rtypes.AddressHash)
	Link(descriptor rtypes.DestinationDescriptor) Link
	DestinationIdentity(addr rtypes.AddressHash) (Identity, bool)
	IfaceManager() IfaceManager
}

// NewConfig builds a transport Config from the pieces the startup sequence
// has on hand (spec §4.E step 1).
func NewConfig(name string, id Identity, broadcast bool) *Config {
	return &Config{Name: name, Identity: id, Broadcast: broadcast}
}

func (c *Config) SetRatchetStorePath(path string) { c.RatchetStorePath = path }
func (c *Config) SetRetransmit(v bool)            { c.Retransmit = v }
