package embed

import (
	"encoding/base64"

	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"
)

// wireEvent is the stable `{"event":"<name>","payload":{...}}` shape spec
// §6 defines for every NodeEvent variant.
type wireEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

type wireStatus struct {
	Running            bool   `json:"running"`
	Name               string `json:"name"`
	IdentityHex        string `json:"identityHex"`
	AppDestinationHex  string `json:"appDestinationHex"`
	LxmfDestinationHex string `json:"lxmfDestinationHex"`
}

type wirePeerChange struct {
	DestinationHex string `json:"destinationHex"`
	State          string `json:"state"`
	LastError      string `json:"lastError"`
}

// NextEventJSON polls the standing subscription and returns the wire JSON
// for the next event, or "" once timeoutMs elapses with nothing delivered
// (component G/H).
func (s *Surface) NextEventJSON(timeoutMs int64) string {
	ev, ok := s.sub.Next(timeoutMs)
	if !ok {
		return ""
	}
	blob, _ := wireJSON.Marshal(toWireEvent(ev))
	return string(blob)
}

func toWireEvent(ev rtypes.NodeEvent) wireEvent {
	switch ev.Kind {
	case rtypes.EventStatusChanged:
		return wireEvent{Event: "statusChanged", Payload: map[string]interface{}{
			"status": wireStatus{
				Running:            ev.Status.Running,
				Name:               ev.Status.Name,
				IdentityHex:        ev.Status.IdentityHex,
				AppDestinationHex:  ev.Status.AppDestinationHex,
				LxmfDestinationHex: ev.Status.LxmfDestinationHex,
			},
		}}
	case rtypes.EventAnnounceReceived:
		return wireEvent{Event: "announceReceived", Payload: map[string]interface{}{
			"destinationHex": ev.DestinationHex,
			"appData":        ev.AppData,
			"hops":           ev.Hops,
			"interfaceHex":   ev.InterfaceHex,
			"receivedAtMs":   ev.ReceivedAtMs,
		}}
	case rtypes.EventPeerChanged:
		return wireEvent{Event: "peerChanged", Payload: map[string]interface{}{
			"change": wirePeerChange{
				DestinationHex: ev.PeerChange.DestinationHex,
				State:          ev.PeerChange.State.String(),
				LastError:      ev.PeerChange.LastError,
			},
		}}
	case rtypes.EventPacketReceived:
		return wireEvent{Event: "packetReceived", Payload: map[string]interface{}{
			"destinationHex": ev.DestinationHex,
			"bytesBase64":    base64.StdEncoding.EncodeToString(ev.Bytes),
		}}
	case rtypes.EventPacketSent:
		return wireEvent{Event: "packetSent", Payload: map[string]interface{}{
			"destinationHex": ev.DestinationHex,
			"bytesBase64":    base64.StdEncoding.EncodeToString(ev.Bytes),
			"outcome":        ev.Outcome.String(),
		}}
	case rtypes.EventHubDirectoryUpdated:
		return wireEvent{Event: "hubDirectoryUpdated", Payload: map[string]interface{}{
			"destinations": ev.Destinations,
			"receivedAtMs": ev.ReceivedAtMs,
		}}
	case rtypes.EventLog:
		return wireEvent{Event: "log", Payload: map[string]interface{}{
			"level":   ev.Level.String(),
			"message": ev.Message,
		}}
	default: // rtypes.EventError
		return wireEvent{Event: "error", Payload: map[string]interface{}{
			"code":    ev.Code.String(),
			"message": ev.Message,
		}}
	}
}
