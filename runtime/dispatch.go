package runtime

import (
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/logbridge"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"
)

// commandLoop is the single-task serial command dispatcher (spec §4.E,
// §5's per-command ordering guarantee: exactly one reply, no ordering
// across distinct commands).
func (r *Runtime) commandLoop() {
	for cmd := range r.Commands {
		switch cmd.kind {
		case cmdStop:
			r.handleStop(cmd)
			r.cancel()
			return
		case cmdSetLogLevel:
			logbridge.SetLevel(cmd.level)
			cmd.Reply <- nil
		case cmdSetAnnounceCapabilities:
			r.handleSetAnnounceCapabilities(cmd)
		case cmdConnectPeer:
			r.handleConnectPeer(cmd)
		case cmdDisconnectPeer:
			r.handleDisconnectPeer(cmd)
		case cmdSendBytes:
			r.handleSendBytes(cmd)
		case cmdBroadcastBytes:
			r.handleBroadcastBytes(cmd)
		case cmdRefreshHubDirectory:
			r.handleRefreshHubDirectory(cmd)
		}
	}
}

func (r *Runtime) handleStop(cmd Command) {
	status := r.setStatus(func(s *rtypes.NodeStatus) { s.Running = false })
	r.bus.Emit(rtypes.StatusChangedEvent(status))
	cmd.Reply <- nil
}

func (r *Runtime) handleSetAnnounceCapabilities(cmd Command) {
	r.setCapabilities([]byte(cmd.caps))
	if err := r.tr.SendAnnounce(rtypes.AppDestinationName, []byte(cmd.caps)); err != nil {
		cmd.Reply <- rtypes.WrapError(rtypes.ErrNetwork, err, "send capabilities announce")
		return
	}
	r.metrics.AnnounceSent()
	cmd.Reply <- nil
}

func (r *Runtime) handleConnectPeer(cmd Command) {
	addr, err := rtypes.ParseAddressHash(cmd.hex)
	if err != nil {
		ne := rtypes.AsNodeError(err)
		r.bus.Emit(rtypes.PeerChangedEvent(cmd.hex, rtypes.PeerDisconnected, ne.Message))
		cmd.Reply <- ne
		return
	}
	r.bus.Emit(rtypes.PeerChangedEvent(addr.Hex(), rtypes.PeerConnecting, ""))

	r.stateMu.Lock()
	r.connectedPeers[addr] = struct{}{}
	r.stateMu.Unlock()

	r.tr.RequestPath(addr)
	r.bus.Emit(rtypes.PeerChangedEvent(addr.Hex(), rtypes.PeerConnected, ""))
	cmd.Reply <- nil
}

func (r *Runtime) handleDisconnectPeer(cmd Command) {
	addr, err := rtypes.ParseAddressHash(cmd.hex)
	if err != nil {
		cmd.Reply <- rtypes.AsNodeError(err)
		return
	}

	r.stateMu.Lock()
	delete(r.connectedPeers, addr)
	l, hadLink := r.outboundLinks[addr]
	delete(r.outboundLinks, addr)
	r.stateMu.Unlock()

	if hadLink {
		if err := l.Close(); err != nil {
			logbridge.Warnf("disconnect %s: close link: %v", addr.Hex(), err)
		}
	}
	r.bus.Emit(rtypes.PeerChangedEvent(addr.Hex(), rtypes.PeerDisconnected, ""))
	cmd.Reply <- nil
}

func (r *Runtime) handleSendBytes(cmd Command) {
	addr, err := rtypes.ParseAddressHash(cmd.hex)
	if err != nil {
		cmd.Reply <- rtypes.AsNodeError(err)
		return
	}
	outcome := r.sendWithPathRetry(addr, cmd.bytes)
	r.metrics.PacketSent(outcome)
	r.bus.Emit(rtypes.PacketSentEvent(addr.Hex(), cmd.bytes, outcome))
	if !outcome.Ok() {
		cmd.Reply <- rtypes.NewError(rtypes.ErrNetwork, "send dropped: %s", outcome)
		return
	}
	cmd.Reply <- nil
}

func (r *Runtime) handleBroadcastBytes(cmd Command) {
	r.stateMu.Lock()
	targets := make([]rtypes.AddressHash, 0, len(r.connectedPeers))
	for addr := range r.connectedPeers {
		targets = append(targets, addr)
	}
	r.stateMu.Unlock()

	anyOk := false
	for _, addr := range targets {
		outcome := r.sendWithPathRetry(addr, cmd.bytes)
		r.metrics.PacketSent(outcome)
		r.bus.Emit(rtypes.PacketSentEvent(addr.Hex(), cmd.bytes, outcome))
		if outcome.Ok() {
			anyOk = true
		}
	}
	if !anyOk {
		cmd.Reply <- rtypes.NewError(rtypes.ErrNetwork, "broadcast reached no peer")
		return
	}
	cmd.Reply <- nil
}

func (r *Runtime) handleRefreshHubDirectory(cmd Command) {
	dests, err := r.refreshHubDirectory()
	if err != nil {
		r.metrics.HubRefresh(false)
		cmd.Reply <- rtypes.AsNodeError(err)
		return
	}
	r.metrics.HubRefresh(true)
	r.bus.Emit(rtypes.HubDirectoryUpdatedEvent(dests, nowMs()))
	cmd.Reply <- nil
}
