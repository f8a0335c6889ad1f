// Command emergencynoded is a demo binary (component K) exercising the
// façade directly against the reference transport — no production mesh
// library is linked in. Grounded on the teacher's single-purpose command
// binaries (cmd/authn/main.go, cmd/xmeta/xmeta.go) built straight on
// flag.FlagSet rather than a CLI framework.
/*
 * Copyright (c) 2024-2026, FreeTAKTeam. All rights reserved.
 */
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/identity"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/node"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/transport"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/transport/reftransport"
)

func main() {
	fs := flag.NewFlagSet("emergencynoded", flag.ExitOnError)
	name := fs.String("name", rtypes.DefaultName, "node name")
	storageDir := fs.String("storage-dir", "", "identity/ratchet storage directory")
	tcpClients := fs.String("tcp-clients", "", "comma-separated outbound TCP endpoints")
	announceInterval := fs.Int("announce-interval", rtypes.DefaultAnnounceInterval, "announce interval seconds")
	capabilities := fs.String("capabilities", rtypes.DefaultCapabilities, "announce capabilities string")
	hubMode := fs.String("hub-mode", "Disabled", "hub mode: Disabled|RchHttp|RchLxmf")
	hubBaseURL := fs.String("hub-base-url", "", "hub HTTP base URL")
	hubAPIKey := fs.String("hub-api-key", "", "hub HTTP API key")
	hubIdentityHash := fs.String("hub-identity-hash", "", "hub destination address (32 hex)")
	hubRefreshInterval := fs.Int("hub-refresh-interval", rtypes.DefaultHubRefreshInterval, "hub refresh interval seconds")
	logLevel := fs.String("log-level", "Info", "log level: Trace|Debug|Info|Warn|Error")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg := rtypes.NewNodeConfig()
	cfg.Name = *name
	cfg.StorageDir = *storageDir
	if strings.TrimSpace(*tcpClients) != "" {
		cfg.TCPClients = strings.Split(*tcpClients, ",")
	}
	cfg.Broadcast = rtypes.DefaultBroadcast
	cfg.AnnounceIntervalSeconds = *announceInterval
	cfg.AnnounceCapabilities = []byte(*capabilities)
	cfg.HubMode = rtypes.ParseHubMode(*hubMode)
	cfg.HubAPIBaseURL = *hubBaseURL
	cfg.HubAPIKey = *hubAPIKey
	cfg.HubIdentityHash = *hubIdentityHash
	cfg.HubRefreshIntervalSeconds = *hubRefreshInterval

	n := node.New(func(rtypes.NodeConfig, *identity.Identity) (transport.Transport, error) {
		return reftransport.New()
	})
	n.SetLogLevel(rtypes.ParseLogLevel(*logLevel))

	if err := n.Start(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "start failed: %s\n", err)
		os.Exit(1)
	}

	sub := n.SubscribeEvents()
	defer sub.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	stopping := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stopping:
				return
			default:
			}
			ev, ok := sub.Next(500)
			if !ok {
				continue
			}
			printEvent(ev)
		}
	}()

	<-sig
	close(stopping)
	if err := n.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "stop failed: %s\n", err)
	}
	<-done
}

func printEvent(ev rtypes.NodeEvent) {
	switch ev.Kind {
	case rtypes.EventStatusChanged:
		fmt.Printf("status running=%v name=%s identity=%s app=%s lxmf=%s\n",
			ev.Status.Running, ev.Status.Name, ev.Status.IdentityHex,
			ev.Status.AppDestinationHex, ev.Status.LxmfDestinationHex)
	case rtypes.EventAnnounceReceived:
		fmt.Printf("announce from=%s hops=%d data=%q\n", ev.DestinationHex, ev.Hops, ev.AppData)
	case rtypes.EventPeerChanged:
		fmt.Printf("peer %s -> %s %s\n", ev.PeerChange.DestinationHex, ev.PeerChange.State, ev.PeerChange.LastError)
	case rtypes.EventPacketReceived:
		fmt.Printf("recv from=%s bytes=%d\n", ev.DestinationHex, len(ev.Bytes))
	case rtypes.EventPacketSent:
		fmt.Printf("sent to=%s bytes=%d outcome=%s\n", ev.DestinationHex, len(ev.Bytes), ev.Outcome)
	case rtypes.EventHubDirectoryUpdated:
		fmt.Printf("hub directory: %v\n", ev.Destinations)
	case rtypes.EventLog:
		fmt.Printf("log [%s] %s\n", ev.Level, ev.Message)
	case rtypes.EventError:
		fmt.Printf("error [%s] %s\n", ev.Code, ev.Message)
	}
}
