// Package embed is the thin embedding surface (component H): JSON in,
// JSON out, a numeric result code, and a last-error slot consumed on read.
// It is the only layer a foreign-function boundary needs to wrap; every
// other package in this module is plain Go. Grounded on the teacher's
// api/daemon.go request/response marshalling boundary.
/*
 * Copyright (c) 2024-2026, FreeTAKTeam. All rights reserved.
 */
package embed

import (
	"encoding/base64"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/eventbus"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/node"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"
)

var wireJSON = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	ResultOk  = 0
	ResultErr = 1
)

// Surface is the embedding boundary around one Node. The zero value is not
// usable; use New.
type Surface struct {
	n *node.Node

	lastErrMu sync.Mutex
	lastErr   *rtypes.NodeError

	sub *eventbus.Subscription[rtypes.NodeEvent]
}

// New builds a Surface with its own standing event subscription (component
// G), attached once and valid across the node's whole start/stop/restart
// lifecycle since the façade's bus outlives any single runtime instance.
func New(factory node.TransportFactory) *Surface {
	n := node.New(factory)
	return &Surface{n: n, sub: n.SubscribeEvents()}
}

func (s *Surface) record(err *rtypes.NodeError) int {
	if err == nil {
		return ResultOk
	}
	s.lastErrMu.Lock()
	s.lastErr = err
	s.lastErrMu.Unlock()
	return ResultErr
}

// TakeLastErrorJSON returns the most recent error as `{"code":"...",
// "message":"..."}`, consuming it — a second call without an intervening
// failure returns an empty object.
func (s *Surface) TakeLastErrorJSON() string {
	s.lastErrMu.Lock()
	err := s.lastErr
	s.lastErr = nil
	s.lastErrMu.Unlock()

	if err == nil {
		blob, _ := wireJSON.Marshal(map[string]string{})
		return string(blob)
	}
	blob, _ := wireJSON.Marshal(map[string]string{
		"code":    err.Code.String(),
		"message": err.Message,
	})
	return string(blob)
}

// startRequest is the JSON shape of the start operation's argument.
type startRequest struct {
	Name                      string   `json:"name"`
	StorageDir                string   `json:"storageDir"`
	TCPClients                []string `json:"tcpClients"`
	Broadcast                 bool     `json:"broadcast"`
	AnnounceIntervalSeconds   int      `json:"announceIntervalSeconds"`
	AnnounceCapabilities      string   `json:"announceCapabilities"`
	HubMode                   string   `json:"hubMode"`
	HubIdentityHash           string   `json:"hubIdentityHash"`
	HubAPIBaseURL             string   `json:"hubApiBaseUrl"`
	HubAPIKey                 string   `json:"hubApiKey"`
	HubRefreshIntervalSeconds int      `json:"hubRefreshIntervalSeconds"`
}

func (r startRequest) toConfig() rtypes.NodeConfig {
	cfg := rtypes.NewNodeConfig()
	cfg.Name = r.Name
	cfg.StorageDir = r.StorageDir
	cfg.TCPClients = r.TCPClients
	cfg.Broadcast = r.Broadcast
	if r.AnnounceIntervalSeconds != 0 {
		cfg.AnnounceIntervalSeconds = r.AnnounceIntervalSeconds
	}
	if r.AnnounceCapabilities != "" {
		cfg.AnnounceCapabilities = []byte(r.AnnounceCapabilities)
	}
	cfg.HubMode = rtypes.ParseHubMode(r.HubMode)
	cfg.HubIdentityHash = r.HubIdentityHash
	cfg.HubAPIBaseURL = r.HubAPIBaseURL
	cfg.HubAPIKey = r.HubAPIKey
	if r.HubRefreshIntervalSeconds != 0 {
		cfg.HubRefreshIntervalSeconds = r.HubRefreshIntervalSeconds
	}
	return cfg
}

// Start parses configJSON and starts the node.
func (s *Surface) Start(configJSON string) int {
	var req startRequest
	if err := wireJSON.UnmarshalFromString(configJSON, &req); err != nil {
		return s.record(rtypes.NewError(rtypes.ErrInvalidConfig, "malformed start config json: %v", err))
	}
	return s.record(s.n.Start(req.toConfig()))
}

func (s *Surface) Stop() int { return s.record(s.n.Stop()) }

func (s *Surface) Restart(configJSON string) int {
	var req startRequest
	if err := wireJSON.UnmarshalFromString(configJSON, &req); err != nil {
		return s.record(rtypes.NewError(rtypes.ErrInvalidConfig, "malformed restart config json: %v", err))
	}
	return s.record(s.n.Restart(req.toConfig()))
}

type statusResponse struct {
	Running            bool   `json:"running"`
	Name               string `json:"name"`
	IdentityHex        string `json:"identityHex"`
	AppDestinationHex  string `json:"appDestinationHex"`
	LxmfDestinationHex string `json:"lxmfDestinationHex"`
}

// GetStatusJSON returns the current status, always result 0.
func (s *Surface) GetStatusJSON() string {
	st := s.n.GetStatus()
	blob, _ := wireJSON.Marshal(statusResponse{
		Running:            st.Running,
		Name:               st.Name,
		IdentityHex:        st.IdentityHex,
		AppDestinationHex:  st.AppDestinationHex,
		LxmfDestinationHex: st.LxmfDestinationHex,
	})
	return string(blob)
}

func (s *Surface) ConnectPeer(destinationHex string) int {
	return s.record(s.n.ConnectPeer(destinationHex))
}

func (s *Surface) DisconnectPeer(destinationHex string) int {
	return s.record(s.n.DisconnectPeer(destinationHex))
}

type sendRequest struct {
	DestinationHex string `json:"destinationHex"`
	BytesBase64    string `json:"bytesBase64"`
}

// Send parses `{destinationHex, bytesBase64}` and submits the decoded bytes.
func (s *Surface) Send(requestJSON string) int {
	var req sendRequest
	if err := wireJSON.UnmarshalFromString(requestJSON, &req); err != nil {
		return s.record(rtypes.NewError(rtypes.ErrInvalidConfig, "malformed send request json: %v", err))
	}
	data, err := base64.StdEncoding.DecodeString(req.BytesBase64)
	if err != nil {
		return s.record(rtypes.NewError(rtypes.ErrInvalidConfig, "bytesBase64 is not valid base64: %v", err))
	}
	return s.record(s.n.SendBytes(req.DestinationHex, data))
}

// Broadcast takes a bare base64 string (spec §6).
func (s *Surface) Broadcast(bytesBase64 string) int {
	data, err := base64.StdEncoding.DecodeString(bytesBase64)
	if err != nil {
		return s.record(rtypes.NewError(rtypes.ErrInvalidConfig, "bytesBase64 is not valid base64: %v", err))
	}
	return s.record(s.n.BroadcastBytes(data))
}

func (s *Surface) SetAnnounceCapabilities(capabilities string) int {
	return s.record(s.n.SetAnnounceCapabilities(capabilities))
}

// SetLogLevel parses a tolerant level string and always succeeds (spec
// §4.F: fire-and-forget).
func (s *Surface) SetLogLevel(level string) int {
	s.n.SetLogLevel(rtypes.ParseLogLevel(level))
	return ResultOk
}

func (s *Surface) RefreshHubDirectory() int {
	return s.record(s.n.RefreshHubDirectory())
}
