package runtime

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	xxhash "github.com/OneOfOne/xxhash"
	"golang.org/x/sync/errgroup"

	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/eventbus"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/identity"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/logbridge"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/metrics"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/rtypes"
	"github.com/FreeTAKTeam/reticulum-mobile-emergency-management/transport"
)

// cmdQueueDepth approximates the "unbounded command queue" of spec §4.E: a
// generously buffered channel rather than a literal unbounded queue, so a
// burst of façade calls never blocks the caller on the core being busy.
const cmdQueueDepth = 256

// hubDirectoryHashSeed seeds the directory-fingerprint hash (arbitrary,
// fixed so the same directory always fingerprints the same way).
const hubDirectoryHashSeed = 0x9e3779b9

// Runtime is the single-owner async core (component E). Constructed and torn
// down exactly once per façade start/stop cycle.
type Runtime struct {
	cfg      rtypes.NodeConfig
	tr       transport.Transport
	identity *identity.Identity
	metrics  *metrics.Set
	bus      *eventbus.Bus[rtypes.NodeEvent]

	statusMu sync.Mutex
	status   rtypes.NodeStatus

	stateMu        sync.Mutex
	knownDests     map[rtypes.AddressHash]rtypes.DestinationDescriptor
	outboundLinks  map[rtypes.AddressHash]transport.Link
	connectedPeers map[rtypes.AddressHash]struct{}
	capabilities   []byte
	lastHubHash    uint64
	lastHubHashSet bool

	appAddr  rtypes.AddressHash
	lxmfAddr rtypes.AddressHash

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	Commands chan Command
}

// Start runs the full startup sequence (spec §4.E steps 1-6) synchronously
// and returns a live Runtime with its background tasks and command loop
// already running.
func Start(cfg rtypes.NodeConfig, tr transport.Transport, id *identity.Identity, bus *eventbus.Bus[rtypes.NodeEvent], ms *metrics.Set) (*Runtime, error) {
	// Step 1: transport config (wiring only; the concrete transport already
	// received broadcast/identity/name at construction in this module's
	// reference implementation, so this step is a documented no-op hook for
	// a real transport's richer Config).
	if cfg.StorageDir != "" {
		_ = identity.RatchetStorePath(cfg.StorageDir) // ratchet store path is opaque past this point
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		cfg:            cfg,
		tr:             tr,
		identity:       id,
		metrics:        ms,
		bus:            bus,
		knownDests:     make(map[rtypes.AddressHash]rtypes.DestinationDescriptor),
		outboundLinks:  make(map[rtypes.AddressHash]transport.Link),
		connectedPeers: make(map[rtypes.AddressHash]struct{}),
		capabilities:   append([]byte(nil), cfg.AnnounceCapabilities...),
		ctx:            ctx,
		cancel:         cancel,
		Commands:       make(chan Command, cmdQueueDepth),
	}

	// Step 2: spawn outbound TCP interface drivers for each non-blank
	// endpoint (boundary: blank entries already filtered by Normalize).
	// Spawn requests go out concurrently; one endpoint refusing to spawn
	// never delays the rest.
	ifaces := tr.IfaceManager()
	var spawnGroup errgroup.Group
	for _, endpoint := range cfg.TCPClients {
		endpoint := endpoint
		spawnGroup.Go(func() error {
			return ifaces.Spawn(ctx, tcpClientDriver{addr: endpoint})
		})
	}
	if err := spawnGroup.Wait(); err != nil {
		logbridge.Warnf("spawn tcp clients: %v", err)
	}

	// Step 3: register local destinations.
	r.appAddr = tr.AddDestination(id, rtypes.AppDestinationName)
	r.lxmfAddr = tr.AddDestination(id, rtypes.LxmfDestinationName)

	// Step 4: flip running, emit StatusChanged.
	r.status = rtypes.NodeStatus{
		Running:            true,
		Name:               cfg.Name,
		IdentityHex:        id.AddressHex(),
		AppDestinationHex:  r.appAddr.Hex(),
		LxmfDestinationHex: r.lxmfAddr.Hex(),
	}
	r.bus.Emit(rtypes.StatusChangedEvent(r.status))

	// Step 5: background tasks.
	r.wg.Add(4)
	go r.announceScheduler()
	go r.announceReceiver()
	go r.dataReceiver()
	go r.linkEventTracker()
	if cfg.HubMode != rtypes.HubDisabled {
		r.wg.Add(1)
		go r.hubRefresher()
	}

	// Step 6: command loop.
	go r.commandLoop()

	return r, nil
}

// Status returns a snapshot clone, safe to call concurrently with the
// command loop (façade boundary, synchronous mutex per spec §5).
func (r *Runtime) Status() rtypes.NodeStatus {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	return r.status
}

func (r *Runtime) setStatus(mutate func(*rtypes.NodeStatus)) rtypes.NodeStatus {
	r.statusMu.Lock()
	mutate(&r.status)
	snap := r.status
	r.statusMu.Unlock()
	return snap
}

func (r *Runtime) cachedDescriptor(addr rtypes.AddressHash) (rtypes.DestinationDescriptor, bool) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	d, ok := r.knownDests[addr]
	return d, ok
}

func (r *Runtime) cacheDescriptor(d rtypes.DestinationDescriptor) {
	r.stateMu.Lock()
	r.knownDests[d.Address] = d
	r.stateMu.Unlock()
}

func (r *Runtime) currentCapabilities() []byte {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return append([]byte(nil), r.capabilities...)
}

func (r *Runtime) setCapabilities(caps []byte) {
	r.stateMu.Lock()
	r.capabilities = caps
	r.stateMu.Unlock()
}

// hubDirectoryChanged fingerprints dests with a fast non-cryptographic hash
// and reports whether it differs from the previous refresh's fingerprint
// (used only to decide whether to log; HubDirectoryUpdated is still emitted
// on every successful refresh regardless, per the refresher's contract).
func (r *Runtime) hubDirectoryChanged(dests []string) bool {
	sum := xxhash.Checksum64S([]byte(strings.Join(dests, "\x00")), hubDirectoryHashSeed)

	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	changed := !r.lastHubHashSet || sum != r.lastHubHash
	r.lastHubHash, r.lastHubHashSet = sum, true
	return changed
}

// --- background tasks -------------------------------------------------

func (r *Runtime) announceScheduler() {
	defer r.wg.Done()
	interval := time.Duration(r.cfg.AnnounceIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			caps := r.currentCapabilities()
			if err := r.tr.SendAnnounce(rtypes.AppDestinationName, caps); err != nil {
				logbridge.Warnf("announce scheduler: app announce: %v", err)
			} else {
				r.metrics.AnnounceSent()
			}
			if err := r.tr.SendAnnounce(rtypes.LxmfDestinationName, nil); err != nil {
				logbridge.Warnf("announce scheduler: lxmf announce: %v", err)
			} else {
				r.metrics.AnnounceSent()
			}
		}
	}
}

func (r *Runtime) announceReceiver() {
	defer r.wg.Done()
	sub := r.tr.RecvAnnounces()
	defer sub.Close()
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}
		ann, ok := sub.Next(200)
		if !ok {
			continue // Lagged or no event yet: tolerate and keep polling
		}
		r.cacheDescriptor(ann.Descriptor)
		r.metrics.AnnounceReceived()

		appData := decodeAppData(ann.AppData)
		r.bus.Emit(rtypes.AnnounceReceivedEvent(
			ann.Descriptor.Address.Hex(),
			appData,
			ann.Hops,
			hex.EncodeToString(ann.InterfaceID),
			nowMs(),
		))
	}
}

func (r *Runtime) dataReceiver() {
	defer r.wg.Done()
	sub := r.tr.ReceivedDataEvents()
	defer sub.Close()
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}
		ev, ok := sub.Next(200)
		if !ok {
			continue
		}
		r.metrics.PacketReceived()
		r.bus.Emit(rtypes.PacketReceivedEvent(ev.Destination.Hex(), ev.Data))
	}
}

func (r *Runtime) linkEventTracker() {
	defer r.wg.Done()
	sub := r.tr.OutLinkEvents()
	defer sub.Close()
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}
		ev, ok := sub.Next(200)
		if !ok {
			continue
		}
		switch ev.Kind {
		case transport.LinkActivated:
			r.bus.Emit(rtypes.PeerChangedEvent(ev.Address.Hex(), rtypes.PeerConnected, ""))
		case transport.LinkClosed:
			r.bus.Emit(rtypes.PeerChangedEvent(ev.Address.Hex(), rtypes.PeerDisconnected, ""))
		case transport.LinkData:
			// Ignored here: link-carried payloads surface through the data
			// receiver instead.
		}
	}
}

func (r *Runtime) hubRefresher() {
	defer r.wg.Done()
	interval := time.Duration(r.cfg.HubRefreshIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			dests, err := r.refreshHubDirectory()
			if err != nil {
				r.metrics.HubRefresh(false)
				logbridge.Warnf("hub refresher: %v", err)
				continue
			}
			r.metrics.HubRefresh(true)
			if r.hubDirectoryChanged(dests) {
				logbridge.Infof("hub refresher: directory changed, %d destinations", len(dests))
			}
			r.bus.Emit(rtypes.HubDirectoryUpdatedEvent(dests, nowMs()))
		}
	}
}

// decodeAppData returns the UTF-8 form of raw, falling back to hex when it
// is not valid UTF-8 (spec §4.E).
func decodeAppData(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return hex.EncodeToString(raw)
}

func nowMs() int64 { return time.Now().UnixMilli() }

// tcpClientDriver is a minimal transport.IfaceDriver: this module never
// implements the wire protocol itself, so it only needs to hold the
// configured endpoint and run until cancelled (spec §1's scope boundary).
type tcpClientDriver struct {
	addr string
}

func (d tcpClientDriver) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
