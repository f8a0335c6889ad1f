package runtime

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/transport"
)

// Path-retry constants, named rather than left as magic numbers (spec §9).
const (
	pathRetryAttempts         = 6
	pathRetryBackoff          = 500 * time.Millisecond
	descriptorResolveDeadline = 12 * time.Second
	linkActiveDeadline        = 20 * time.Second
	linkActivePollInterval    = 250 * time.Millisecond
	lxmfReplyDeadline         = 15 * time.Second
)

// sendWithPathRetry implements the path-retry send algorithm (spec §4.E):
// up to pathRetryAttempts attempts, a path request plus backoff between
// no-route/no-identity outcomes, any other drop ends the loop immediately.
func (r *Runtime) sendWithPathRetry(addr rtypes.AddressHash, payload []byte) rtypes.SendOutcome {
	var outcome rtypes.SendOutcome
	for attempt := 0; attempt < pathRetryAttempts; attempt++ {
		outcome = r.tr.SendPacketWithOutcome(transport.Packet{
			Propagation: transport.PropagationTransport,
			Destination: addr,
			Payload:     payload,
		})
		if outcome.Ok() {
			return outcome
		}
		if outcome != rtypes.DroppedNoRoute && outcome != rtypes.DroppedMissingDestinationIdentity {
			return outcome
		}
		r.tr.RequestPath(addr)
		time.Sleep(pathRetryBackoff)
	}
	return outcome
}

// ensureDestinationDesc resolves a cached descriptor for addr, or
// synthesizes one once the transport can resolve an identity for it
// (spec §4.E, §9's descriptor-synthesis note). expectedName, when empty,
// defaults to the app destination name exactly as the spec directs.
func (r *Runtime) ensureDestinationDesc(addr rtypes.AddressHash, expectedName rtypes.DestinationName) (rtypes.DestinationDescriptor, error) {
	if desc, ok := r.cachedDescriptor(addr); ok {
		return desc, nil
	}
	if expectedName == (rtypes.DestinationName{}) {
		expectedName = rtypes.AppDestinationName
	}

	r.tr.RequestPath(addr)

	ctx, cancel := context.WithTimeout(context.Background(), descriptorResolveDeadline)
	defer cancel()

	ticker := time.NewTicker(linkActivePollInterval)
	defer ticker.Stop()
	for {
		if desc, ok := r.cachedDescriptor(addr); ok {
			return desc, nil
		}
		if id, ok := r.tr.DestinationIdentity(addr); ok {
			desc := rtypes.DestinationDescriptor{IdentityHex: id.AddressHex(), Address: addr, Name: expectedName}
			r.cacheDescriptor(desc)
			return desc, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return rtypes.DestinationDescriptor{}, rtypes.NewError(rtypes.ErrTimeout, "resolving destination %s", addr.Hex())
		}
	}
}

// waitForLinkActive blocks until l reports Active or linkActiveDeadline
// elapses (spec §4.E).
func (r *Runtime) waitForLinkActive(l transport.Link) error {
	if l.Status() == transport.LinkActive {
		return nil
	}
	sub := r.tr.OutLinkEvents()
	defer sub.Close()

	deadline := time.Now().Add(linkActiveDeadline)
	for time.Now().Before(deadline) {
		if l.Status() == transport.LinkActive {
			return nil
		}
		ev, ok := sub.Next(linkActivePollInterval.Milliseconds())
		if ok && ev.Kind == transport.LinkActivated && ev.LinkID == l.ID() {
			return nil
		}
	}
	if l.Status() == transport.LinkActive {
		return nil
	}
	return rtypes.NewError(rtypes.ErrTimeout, "link %s did not become active", l.ID())
}

// hexDestRe matches a 32-hex-digit destination address not immediately
// bordered by another hex digit, per spec §4.E's extraction regex.
var hexDestRe = regexp.MustCompile(`(?i)(?:^|[^0-9a-f])([0-9a-f]{32})(?:$|[^0-9a-f])`)

// extractHexDestinations returns each 32-hex substring of t at most once,
// lowercase, in first-seen order (spec §8 invariant). Scans with a moving
// cursor rather than a single FindAll pass: FindAll would consume a
// one-character boundary as part of each match, which can starve the next
// match of its own leading boundary when only one separator character
// stands between two runs.
func extractHexDestinations(t string) []string {
	seen := make(map[string]struct{})
	var out []string

	pos := 0
	for pos <= len(t) {
		loc := hexDestRe.FindStringSubmatchIndex(t[pos:])
		if loc == nil {
			break
		}
		hexRun := strings.ToLower(t[pos+loc[2] : pos+loc[3]])
		if _, dup := seen[hexRun]; !dup {
			seen[hexRun] = struct{}{}
			out = append(out, hexRun)
		}
		// Resume just past the matched hex run itself (not the trailing
		// boundary char) so an adjacent run separated by a single
		// character is still found.
		pos += loc[3]
	}
	return out
}

// joinURL composes base and path collapsing duplicate slashes at the seam,
// never dropping path's leading segment and never producing a bare "//"
// (spec §8 invariant).
func joinURL(base, path string) string {
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	for len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return base + "/" + path
}
