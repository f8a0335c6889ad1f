// Package node is the synchronous façade (component F): the single
// public entry point host code drives. It owns the runtime core, marshals
// commands across the synchronous/asynchronous boundary, and enforces a
// fixed per-operation timeout on every call. Grounded on the teacher's
// top-level Run/Stop lifecycle shape (ais/earlystart.go).
/*
 * Copyright (c) 2024-2026, FreeTAKTeam. All rights reserved.
 */
package node

import (
	"sync"
	"time"

	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/eventbus"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/identity"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/logbridge"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/metrics"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/runtime"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/transport"
)

// Per-command timeouts (spec §4.F).
const (
	connectTimeout         = 10 * time.Second
	disconnectTimeout      = 5 * time.Second
	sendTimeout            = 10 * time.Second
	broadcastTimeout       = 10 * time.Second
	setCapabilitiesTimeout = 5 * time.Second
	refreshHubTimeout      = 30 * time.Second
	stopTimeout            = 2 * time.Second
)

// TransportFactory builds the Transport a Node should run over; injected so
// tests and the demo binary can supply transport/reftransport while real
// embeddings supply the production mesh library.
type TransportFactory func(cfg rtypes.NodeConfig, id *identity.Identity) (transport.Transport, error)

// Node is the façade. The zero value is not usable; use New.
type Node struct {
	newTransport TransportFactory

	innerMu sync.Mutex
	inner   inner
}

type inner struct {
	bus     *eventbus.Bus[rtypes.NodeEvent]
	status  rtypes.NodeStatus
	rt      *runtime.Runtime
	metrics *metrics.Set
}

// New creates the façade's event bus and returns a ready, not-yet-started
// façade (spec §4.F's `new()`). The bus is attached to the log bridge by
// Start, not here.
func New(factory TransportFactory) *Node {
	n := &Node{newTransport: factory}
	n.inner.bus = eventbus.New[rtypes.NodeEvent]()
	return n
}

// Start validates cfg, loads identity, spawns the runtime core, and
// installs the bus into the log bridge (spec §4.F).
func (n *Node) Start(cfg rtypes.NodeConfig) *rtypes.NodeError {
	n.innerMu.Lock()
	defer n.innerMu.Unlock()

	if n.inner.rt != nil {
		return rtypes.NewError(rtypes.ErrAlreadyRunning, "node already running")
	}
	if err := cfg.Normalize(); err != nil {
		return rtypes.AsNodeError(err)
	}

	id, err := identity.LoadOrCreate(cfg.StorageDir, cfg.Name)
	if err != nil {
		return rtypes.AsNodeError(err)
	}

	tr, err := n.newTransport(cfg, id)
	if err != nil {
		return rtypes.AsNodeError(err)
	}

	ms := metrics.New()
	logbridge.SetBus(n.inner.bus)

	rt, err := runtime.Start(cfg, tr, id, n.inner.bus, ms)
	if err != nil {
		return rtypes.AsNodeError(err)
	}

	n.inner.rt = rt
	n.inner.metrics = ms
	n.inner.status = rt.Status()
	return nil
}

// Stop sends Stop and awaits the reply within stopTimeout, then detaches
// the bus from the log bridge. Idempotent: returns Ok with no runtime.
func (n *Node) Stop() *rtypes.NodeError {
	n.innerMu.Lock()
	defer n.innerMu.Unlock()
	return n.stopLocked()
}

func (n *Node) stopLocked() *rtypes.NodeError {
	if n.inner.rt == nil {
		return nil
	}
	cmd := runtime.StopCommand()
	sendErr := trySend(n.inner.rt.Commands, cmd)
	var result *rtypes.NodeError
	if sendErr != nil {
		result = rtypes.NewError(rtypes.ErrNotRunning, "node not running")
	} else {
		select {
		case reply := <-cmd.Reply:
			result = reply
		case <-time.After(stopTimeout):
			result = rtypes.NewError(rtypes.ErrTimeout, "stop timed out")
		}
	}

	n.inner.rt = nil
	n.inner.metrics = nil
	logbridge.SetBus(nil)
	n.inner.status.Running = false
	n.inner.bus.Emit(rtypes.StatusChangedEvent(n.inner.status))
	return result
}

// Restart stops then starts with cfg (spec §4.F).
func (n *Node) Restart(cfg rtypes.NodeConfig) *rtypes.NodeError {
	if err := n.Stop(); err != nil {
		return err
	}
	return n.Start(cfg)
}

// GetStatus returns a snapshot clone of the current status.
func (n *Node) GetStatus() rtypes.NodeStatus {
	n.innerMu.Lock()
	defer n.innerMu.Unlock()
	if n.inner.rt != nil {
		n.inner.status = n.inner.rt.Status()
	}
	return n.inner.status
}

// SubscribeEvents returns a new cursor over the façade's bus (component G).
func (n *Node) SubscribeEvents() *eventbus.Subscription[rtypes.NodeEvent] {
	return n.inner.bus.Subscribe()
}

// Metrics exposes the running node's metrics snapshot; returns the zero
// Snapshot when not running.
func (n *Node) Metrics() metrics.Snapshot {
	n.innerMu.Lock()
	defer n.innerMu.Unlock()
	if n.inner.metrics == nil {
		return metrics.Snapshot{}
	}
	return n.inner.metrics.Snapshot()
}

// SetLogLevel is fire-and-forget: spec §4.F says update the global filter
// unconditionally, then best-effort notify the core if running.
func (n *Node) SetLogLevel(level rtypes.LogLevel) {
	logbridge.SetLevel(level)
	n.innerMu.Lock()
	rt := n.inner.rt
	n.innerMu.Unlock()
	if rt == nil {
		return
	}
	cmd := runtime.SetLogLevelCommand(level)
	_ = trySend(rt.Commands, cmd)
}

func (n *Node) ConnectPeer(hex string) *rtypes.NodeError {
	return n.sendCommand(runtime.ConnectPeerCommand(hex), connectTimeout)
}

func (n *Node) DisconnectPeer(hex string) *rtypes.NodeError {
	return n.sendCommand(runtime.DisconnectPeerCommand(hex), disconnectTimeout)
}

func (n *Node) SendBytes(hex string, data []byte) *rtypes.NodeError {
	return n.sendCommand(runtime.SendBytesCommand(hex, data), sendTimeout)
}

func (n *Node) BroadcastBytes(data []byte) *rtypes.NodeError {
	return n.sendCommand(runtime.BroadcastBytesCommand(data), broadcastTimeout)
}

func (n *Node) SetAnnounceCapabilities(caps string) *rtypes.NodeError {
	return n.sendCommand(runtime.SetAnnounceCapabilitiesCommand(caps), setCapabilitiesTimeout)
}

func (n *Node) RefreshHubDirectory() *rtypes.NodeError {
	return n.sendCommand(runtime.RefreshHubDirectoryCommand(), refreshHubTimeout)
}

// sendCommand sends cmd to the running core and blocks on its reply up to
// timeout, mapping absence/failure/timeout exactly as spec §4.F directs.
func (n *Node) sendCommand(cmd runtime.Command, timeout time.Duration) *rtypes.NodeError {
	n.innerMu.Lock()
	rt := n.inner.rt
	n.innerMu.Unlock()
	if rt == nil {
		return rtypes.NewError(rtypes.ErrNotRunning, "node not running")
	}
	if err := trySend(rt.Commands, cmd); err != nil {
		return rtypes.NewError(rtypes.ErrNotRunning, "node not running")
	}
	select {
	case reply := <-cmd.Reply:
		return reply
	case <-time.After(timeout):
		return rtypes.NewError(rtypes.ErrTimeout, "command timed out")
	}
}

// trySend submits cmd without blocking on a full queue.
func trySend(ch chan runtime.Command, cmd runtime.Command) *rtypes.NodeError {
	select {
	case ch <- cmd:
		return nil
	default:
		return rtypes.NewError(rtypes.ErrNotRunning, "command queue unavailable")
	}
}
