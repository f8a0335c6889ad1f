package rtypes

// NodeEventKind discriminates the NodeEvent union.
type NodeEventKind int

const (
	EventStatusChanged NodeEventKind = iota
	EventAnnounceReceived
	EventPeerChanged
	EventPacketReceived
	EventPacketSent
	EventHubDirectoryUpdated
	EventLog
	EventError
)

// PeerChange is the payload of EventPeerChanged.
type PeerChange struct {
	DestinationHex string
	State          PeerState
	LastError      string
}

// NodeEvent is a closed sum type; exactly one of the payload fields is
// meaningful, selected by Kind. Modeled as a flat struct (rather than an
// interface-per-variant) because every event crosses the eventbus and the
// embedding surface as a value that must be cheap to clone and trivial to
// marshal to the wire JSON shape in spec §6.
type NodeEvent struct {
	Kind NodeEventKind

	// EventStatusChanged
	Status NodeStatus

	// EventAnnounceReceived
	DestinationHex string
	AppData        string
	Hops           uint8
	InterfaceHex   string
	ReceivedAtMs   int64

	// EventPeerChanged
	PeerChange PeerChange

	// EventPacketReceived / EventPacketSent
	Bytes   []byte
	Outcome SendOutcome

	// EventHubDirectoryUpdated
	Destinations []string

	// EventLog / EventError
	Level   LogLevel
	Message string
	Code    NodeErrorCode
}

func StatusChangedEvent(s NodeStatus) NodeEvent {
	return NodeEvent{Kind: EventStatusChanged, Status: s}
}

func AnnounceReceivedEvent(destHex, appData string, hops uint8, ifaceHex string, receivedAtMs int64) NodeEvent {
	return NodeEvent{
		Kind:           EventAnnounceReceived,
		DestinationHex: destHex,
		AppData:        appData,
		Hops:           hops,
		InterfaceHex:   ifaceHex,
		ReceivedAtMs:   receivedAtMs,
	}
}

func PeerChangedEvent(destHex string, state PeerState, lastErr string) NodeEvent {
	return NodeEvent{Kind: EventPeerChanged, PeerChange: PeerChange{
		DestinationHex: destHex,
		State:          state,
		LastError:      lastErr,
	}}
}

func PacketReceivedEvent(destHex string, data []byte) NodeEvent {
	return NodeEvent{Kind: EventPacketReceived, DestinationHex: destHex, Bytes: data}
}

func PacketSentEvent(destHex string, data []byte, outcome SendOutcome) NodeEvent {
	return NodeEvent{Kind: EventPacketSent, DestinationHex: destHex, Bytes: data, Outcome: outcome}
}

func HubDirectoryUpdatedEvent(destinations []string, receivedAtMs int64) NodeEvent {
	return NodeEvent{Kind: EventHubDirectoryUpdated, Destinations: destinations, ReceivedAtMs: receivedAtMs}
}

func LogEvent(level LogLevel, message string) NodeEvent {
	return NodeEvent{Kind: EventLog, Level: level, Message: message}
}

func ErrorEvent(code NodeErrorCode, message string) NodeEvent {
	return NodeEvent{Kind: EventError, Code: code, Message: message}
}
