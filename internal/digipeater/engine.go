package digipeater

import (
	"fmt"
	"time"

	"github.com/na4wx/nexdigi/internal/ax25"
	"github.com/na4wx/nexdigi/internal/qos"
	"github.com/na4wx/nexdigi/internal/seencache"
)

// Sender is the subset of a transport.Driver the engine needs to retransmit
// a serviced frame.
type Sender interface {
	Send(payload []byte) error
}

// Forwarder hands the original, un-mutated frame off to the Backbone
// Manager for possible APRS-IS gatewaying (spec.md section 4.4 step 7).
// Defined locally, rather than importing the backbone package directly,
// to keep the Backbone<->Digipeater<->Mesh<->Security dependency graph
// acyclic per the Design Notes in spec.md section 9.
type Forwarder interface {
	ForwardFrame(channelID string, frame *ax25.Frame, priority qos.Priority)
}

type channelRuntime struct {
	cfg Config
	tx  Sender
}

// Engine runs the WIDE-N digipeat decision algorithm across all
// configured channels, sharing one seen-cache (spec.md requires
// suppression across the node, not per channel, since a frame heard on
// one channel must not be needlessly repeated again if also heard on
// another within the TTL).
type Engine struct {
	seen       *seencache.Cache
	seenTTL    time.Duration
	seenMax    int
	metrics    *Metrics
	channels   map[string]*channelRuntime
	forwarder  Forwarder
}

// NewEngine constructs an Engine. ttl/maxEntries configure the shared
// seen-cache (spec.md section 3 defaults: 5s / 1000).
func NewEngine(ttl time.Duration, maxEntries int, forwarder Forwarder) *Engine {
	return &Engine{
		seen:      seencache.New(ttl, maxEntries),
		seenTTL:   ttl,
		seenMax:   maxEntries,
		metrics:   newMetrics(),
		channels:  make(map[string]*channelRuntime),
		forwarder: forwarder,
	}
}

// SeenCacheTTL and SeenCacheMaxEntries expose seen.ttl/seen.maxEntries for
// the observability surface (spec.md section 6).
func (e *Engine) SeenCacheTTL() time.Duration { return e.seenTTL }
func (e *Engine) SeenCacheMaxEntries() int    { return e.seenMax }

// AddChannel registers a radio channel's digipeat policy and its
// transmitting transport.
func (e *Engine) AddChannel(cfg Config, tx Sender) {
	e.channels[cfg.ID] = &channelRuntime{cfg: cfg, tx: tx}
}

// Metrics returns the shared counters (spec.md section 6 getMetrics()
// surface).
func (e *Engine) Metrics() Snapshot { return e.metrics.Snapshot() }

// SeenCacheSize exposes seen.size for the observability surface.
func (e *Engine) SeenCacheSize() int { return e.seen.Size() }

// Outcome records what the engine did with a received frame, for tests
// and for the typed event bus.
type Outcome int

const (
	OutcomeDropped Outcome = iota
	OutcomeDuplicate
	OutcomeDigipeated
	OutcomeIgateOnly
)

// Process runs the full decision algorithm of spec.md section 4.4 for one
// raw AX.25 payload received on channelID.
func (e *Engine) Process(channelID string, raw []byte) (Outcome, error) {
	ch, ok := e.channels[channelID]
	if !ok {
		return OutcomeDropped, fmt.Errorf("digipeater: unknown channel %q", channelID)
	}

	frame, err := ax25.Parse(raw)
	if err != nil {
		return OutcomeDropped, err
	}

	src := frame.Source()
	dest := frame.Destination()
	fp := seencache.Fingerprint(src.Callsign.Base, src.Callsign.SSID, frame.Payload, dest.Callsign.Base)

	e.metrics.recordHeard(src.Callsign.String())

	if e.seen.TestAndSet(fp) {
		e.metrics.recordDuplicate()
		return OutcomeDuplicate, nil
	}

	if ch.cfg.Mode != ModeDigipeat {
		if ch.cfg.IGateForward && e.forwarder != nil {
			e.forwarder.ForwardFrame(channelID, frame, qos.Normal)
			return OutcomeIgateOnly, nil
		}
		return OutcomeDropped, nil
	}

	idx := frame.FindServiceable()
	if idx < 0 {
		return OutcomeDropped, nil
	}

	alias := frame.Addresses[idx].Callsign
	switch {
	case ch.cfg.matchesOwnOrAlias(alias.Base):
		// Own callsign / personal alias always proceeds regardless of
		// role. This also resolves the Open Question in spec.md section
		// 9 in favor of the personal alias at the same path index: since
		// idx is already the leftmost unmarked hop, checking this case
		// first gives the personal alias precedence over WIDE1.
	case alias.Base == "WIDE1":
		if ch.cfg.Role != RoleFillIn {
			e.metrics.recordServicedWideBlocked()
			return OutcomeDropped, nil
		}
	case isWideN(alias.Base):
		if ch.cfg.Role != RoleWide {
			return OutcomeDropped, nil
		}
		if int(alias.SSID) > ch.cfg.effectiveMaxWideN() {
			e.metrics.recordMaxWideBlocked()
			return OutcomeDropped, nil
		}
	default:
		return OutcomeDropped, nil
	}

	var insert *ax25.Callsign
	if ch.cfg.AppendCallsign {
		c := ch.cfg.Callsign
		insert = &c
	}
	serviced := frame.ServiceAddress(idx, insert)

	wire, err := serviced.Emit()
	if err != nil {
		return OutcomeDropped, err
	}
	if err := ch.tx.Send(wire); err != nil {
		e.metrics.recordTransmitFailed() // transmit failures are metric-only, per section 4.4
	}

	for _, routeID := range ch.cfg.RouteTo {
		if other, ok := e.channels[routeID]; ok {
			if err := other.tx.Send(wire); err != nil {
				e.metrics.recordTransmitFailed()
			}
		}
	}

	e.metrics.recordDigipeat(src.Callsign.String())

	if ch.cfg.IGateForward && e.forwarder != nil {
		e.forwarder.ForwardFrame(channelID, frame, qos.Normal)
	}

	return OutcomeDigipeated, nil
}

func isWideN(base string) bool {
	if len(base) < 5 || base[:4] != "WIDE" {
		return false
	}
	n := base[4:]
	return len(n) == 1 && n[0] >= '2' && n[0] <= '7'
}
