// Package refhub is a reference directory hub (component J companion):
// enough of a "hub" to exercise both hub refresh paths in runtime/ without a
// live FreeTAKServer-compatible server. The HTTP side is a small
// valyala/fasthttp handler; the LXMF side answers requests submitted over a
// reftransport link, in the shape runtime/'s LXMF refresh path expects to
// parse back out.
/*
 * Copyright (c) 2024-2026, FreeTAKTeam. All rights reserved.
 */
package refhub

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/transport/reftransport"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPServer answers GET /Client the way a directory hub does for the HTTP
// refresh path (spec §4.E, §7's Hub HTTP protocol).
type HTTPServer struct {
	Destinations []string
	APIKey       string
}

// NewHTTPServer builds a hub that reports destinations and, if apiKey is
// non-empty, requires it on X-API-Key or Authorization: Bearer.
func NewHTTPServer(destinations []string, apiKey string) *HTTPServer {
	return &HTTPServer{Destinations: destinations, APIKey: apiKey}
}

// Handler returns the request handler, exposed separately from
// ListenAndServe so tests can drive it through fasthttputil.InmemoryListener
// without binding a real port.
func (h *HTTPServer) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != "/Client" || !ctx.IsGet() {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		if h.APIKey != "" {
			key := string(ctx.Request.Header.Peek("X-API-Key"))
			bearer := strings.TrimPrefix(string(ctx.Request.Header.Peek("Authorization")), "Bearer ")
			if key != h.APIKey && bearer != h.APIKey {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}
		}
		ctx.SetContentType("text/plain; charset=utf-8")
		fmt.Fprintf(ctx, "[ %s ]", strings.Join(h.Destinations, " , "))
	}
}

// ListenAndServe runs the hub HTTP endpoint on addr.
func (h *HTTPServer) ListenAndServe(addr string) error {
	return fasthttp.ListenAndServe(addr, h.Handler())
}

// lxmfMessage is the titled/contented/fielded shape an LXMF hub exchange
// carries (spec §4.E, §7's Hub LXMF protocol).
type lxmfMessage struct {
	Title   string                 `json:"title"`
	Content string                 `json:"content"`
	Fields  map[string]interface{} `json:"fields"`
}

// linkEndpoint is the slice of reftransport.Link behavior refhub needs: the
// ability to accept the simulated handshake and observe inbound requests.
type linkEndpoint interface {
	reftransport.Activatable
	reftransport.RequestSource
}

// Lxmf simulates a directory hub reachable over a link session.
type Lxmf struct {
	Address      rtypes.AddressHash
	Destinations []string
}

// NewLxmf builds an LXMF hub stand-in answering from address with the given
// 32-hex destination list.
func NewLxmf(address rtypes.AddressHash, destinations []string) *Lxmf {
	return &Lxmf{Address: address, Destinations: destinations}
}

// Serve activates l, simulating the far end accepting the link handshake,
// then answers every request observed on it with the directory listing
// until stop fires; closing the link does not end it. Meant to run in its
// own goroutine, paired with one
// client-side link obtained from the same reftransport.Transport.
func (h *Lxmf) Serve(l linkEndpoint, tr *reftransport.Transport, stop <-chan struct{}) {
	l.Activate()
	for {
		select {
		case _, ok := <-l.Requests():
			if !ok {
				return
			}
			reply := lxmfMessage{
				Title:   "ListClients",
				Content: fmt.Sprintf("[ %s ]", strings.Join(h.Destinations, " , ")),
				Fields:  map[string]interface{}{},
			}
			blob, err := json.Marshal(reply)
			if err != nil {
				continue
			}
			tr.EmitDataEvent(h.Address, blob)
		case <-stop:
			return
		}
	}
}
