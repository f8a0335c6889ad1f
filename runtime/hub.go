package runtime

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/eventbus"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/transport"
)

var hubJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// hubMessage mirrors the titled/contented/fielded LXMF message shape (spec
// §4.E, §6's Hub LXMF protocol).
type hubMessage struct {
	Title   string                 `json:"title"`
	Content string                 `json:"content"`
	Fields  map[string]interface{} `json:"fields"`
}

// lxmfListClientsContent is preserved byte-for-byte per spec.md's open
// question on the leading backslash: the rewrite does not resolve whether
// it is intentional framing, only keeps it exactly as specified.
const lxmfListClientsContent = "\\{\"Command\":\"ListClients\"}"

// refreshHubDirectory dispatches on hub_mode and returns the extracted
// destination list on success (spec §4.E's RefreshHubDirectory command).
func (r *Runtime) refreshHubDirectory() ([]string, error) {
	switch r.cfg.HubMode {
	case rtypes.HubDisabled:
		return nil, rtypes.NewError(rtypes.ErrInvalidConfig, "hub mode is disabled")
	case rtypes.HubRchHTTP:
		return r.refreshHubHTTP()
	case rtypes.HubRchLxmf:
		return r.refreshHubLXMF()
	default:
		return nil, rtypes.NewError(rtypes.ErrInvalidConfig, "unknown hub mode")
	}
}

// refreshHubHTTP implements the HTTP refresh path (spec §4.E, §6).
func (r *Runtime) refreshHubHTTP() ([]string, error) {
	url := joinURL(r.cfg.HubAPIBaseURL, "Client")

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	if key := strings.TrimSpace(r.cfg.HubAPIKey); key != "" {
		req.Header.Set("X-API-Key", key)
		req.Header.Set("Authorization", "Bearer "+key)
	}

	client := &fasthttp.Client{}
	if err := client.DoTimeout(req, resp, lxmfReplyDeadline); err != nil {
		return nil, rtypes.WrapError(rtypes.ErrNetwork, errors.Wrap(err, "hub http client"), "hub http request to %s", url)
	}
	body := string(resp.Body())
	return extractHexDestinations(body), nil
}

// refreshHubLXMF implements the LXMF refresh path (spec §4.E, §6).
func (r *Runtime) refreshHubLXMF() ([]string, error) {
	if strings.TrimSpace(r.cfg.HubIdentityHash) == "" {
		return nil, rtypes.NewError(rtypes.ErrInvalidConfig, "hub_identity_hash is required for RchLxmf hub mode")
	}
	hubAddr, err := rtypes.ParseAddressHash(r.cfg.HubIdentityHash)
	if err != nil {
		return nil, rtypes.WrapError(rtypes.ErrInvalidConfig, err, "hub_identity_hash")
	}

	desc, err := r.ensureDestinationDesc(hubAddr, rtypes.DestinationName{})
	if err != nil {
		return nil, err
	}

	l := r.obtainLink(desc)
	if err := r.waitForLinkActive(l); err != nil {
		return nil, err
	}

	msg := hubMessage{Title: "ListClients", Content: lxmfListClientsContent, Fields: map[string]interface{}{}}
	payload, err := hubJSON.Marshal(msg)
	if err != nil {
		return nil, rtypes.WrapError(rtypes.ErrInternal, err, "serialize hub message")
	}

	// Subscribe before submitting so a reply that arrives right away is not
	// missed.
	sub := r.tr.ReceivedDataEvents()
	defer sub.Close()

	outcome := r.tr.SendPacketWithOutcome(l.DataPacket(payload))
	if !outcome.Ok() {
		return nil, rtypes.NewError(rtypes.ErrNetwork, "hub request submit outcome %s", outcome)
	}

	return r.awaitHubReply(hubAddr, sub)
}

// obtainLink returns the cached outbound link to desc.Address, creating one
// on demand (spec §9: outbound links are created on demand by the LXMF hub
// refresher).
func (r *Runtime) obtainLink(desc rtypes.DestinationDescriptor) transport.Link {
	r.stateMu.Lock()
	if l, ok := r.outboundLinks[desc.Address]; ok {
		r.stateMu.Unlock()
		return l
	}
	r.stateMu.Unlock()

	l := r.tr.Link(desc)
	r.stateMu.Lock()
	r.outboundLinks[desc.Address] = l
	r.stateMu.Unlock()
	return l
}

// awaitHubReply consumes incoming data events from sub for up to
// lxmfReplyDeadline, folding each hub-address reply's title+content+fields
// into one text blob and returning the first non-empty extraction (spec §4.E).
func (r *Runtime) awaitHubReply(hubAddr rtypes.AddressHash, sub *eventbus.Subscription[transport.DataEvent]) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), lxmfReplyDeadline)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil, rtypes.NewError(rtypes.ErrTimeout, "no hub reply within %s", lxmfReplyDeadline)
		default:
		}
		ev, ok := sub.Next(200)
		if !ok {
			continue
		}
		if ev.Destination != hubAddr {
			continue
		}
		var msg hubMessage
		if err := hubJSON.Unmarshal(ev.Data, &msg); err != nil {
			continue
		}
		blob := msg.Title + msg.Content + fmt.Sprintf("%+v", msg.Fields)
		if dests := extractHexDestinations(blob); len(dests) > 0 {
			return dests, nil
		}
	}
}
