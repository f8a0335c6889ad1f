// Package runtime is the asynchronous runtime core (component E): the task
// ensemble and command dispatcher the façade drives. Grounded on the
// teacher's ais/earlystart.go for the ordered startup sequence and on
// transport/api.go for the goroutine-per-concern shape of each background
// task.
/*
 * Copyright (c) 2024-2026, FreeTAKTeam. All rights reserved.
 */
package runtime

import "github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"

type commandKind int

const (
	cmdStop commandKind = iota
	cmdSetLogLevel
	cmdSetAnnounceCapabilities
	cmdConnectPeer
	cmdDisconnectPeer
	cmdSendBytes
	cmdBroadcastBytes
	cmdRefreshHubDirectory
)

// Command is the single envelope every façade operation sends to the core.
// Exactly one reply is posted to Reply before the core moves on to the next
// command (spec §5's per-command ordering guarantee).
type Command struct {
	kind  commandKind
	level rtypes.LogLevel
	hex   string
	bytes []byte
	caps  string

	Reply chan *rtypes.NodeError
}

func newCommand(kind commandKind) Command {
	return Command{kind: kind, Reply: make(chan *rtypes.NodeError, 1)}
}

func StopCommand() Command { return newCommand(cmdStop) }

func SetLogLevelCommand(level rtypes.LogLevel) Command {
	c := newCommand(cmdSetLogLevel)
	c.level = level
	return c
}

func SetAnnounceCapabilitiesCommand(caps string) Command {
	c := newCommand(cmdSetAnnounceCapabilities)
	c.caps = caps
	return c
}

func ConnectPeerCommand(hex string) Command {
	c := newCommand(cmdConnectPeer)
	c.hex = hex
	return c
}

func DisconnectPeerCommand(hex string) Command {
	c := newCommand(cmdDisconnectPeer)
	c.hex = hex
	return c
}

func SendBytesCommand(hex string, data []byte) Command {
	c := newCommand(cmdSendBytes)
	c.hex = hex
	c.bytes = data
	return c
}

func BroadcastBytesCommand(data []byte) Command {
	c := newCommand(cmdBroadcastBytes)
	c.bytes = data
	return c
}

func RefreshHubDirectoryCommand() Command { return newCommand(cmdRefreshHubDirectory) }
