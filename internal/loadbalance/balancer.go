// Package loadbalance implements multi-path route selection with
// health-weighted load balancing (spec.md section 4.6), grounded on the
// same "track per-destination health, select, record outcome" shape as
// the retrieved go-tcpinfo exporters track per-connection health, but
// applied to backbone routes instead of sockets.
package loadbalance

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Algorithm selects which route-selection strategy to use.
type Algorithm int

const (
	Weighted Algorithm = iota
	RoundRobin
	LeastLoaded
)

// Route identifies one candidate path to a destination (spec.md section
// 3's Route tuple, minus cost/learned-via-hub which the caller tracks
// separately).
type Route struct {
	Destination string
	NextHop     string
	TransportID string
}

func (r Route) key() routeKey { return routeKey{r.Destination, r.NextHop} }

type routeKey struct {
	destination string
	nextHop     string
}

// health is the mutable state tracked per (destination, nextHop).
type health struct {
	successCount       uint64
	failureCount       uint64
	consecutiveFailures int
	latencyEMA         float64 // milliseconds
	attempts           uint64
	lastUsed           time.Time
}

const (
	failureThreshold = 3
	latencyAlpha     = 0.2 // new-sample weight; EMA factor 0.8/0.2 per spec
	minWeight        = 0.01
)

// Event is emitted on route-failed (threshold reached).
type Event struct {
	Kind  string // "route-failed"
	Route Route
}

// Balancer tracks route health and selects among candidates.
type Balancer struct {
	mu        sync.Mutex
	algorithm Algorithm
	health    map[routeKey]*health
	rrIndex   map[string]int // per-destination round-robin cursor
	now       func() time.Time
	rng       *rand.Rand
	events    chan Event
}

// New constructs a Balancer using the given algorithm.
func New(alg Algorithm) *Balancer {
	return &Balancer{
		algorithm: alg,
		health:    make(map[routeKey]*health),
		rrIndex:   make(map[string]int),
		now:       time.Now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		events:    make(chan Event, 32),
	}
}

// Events returns the route-failed notification channel.
func (b *Balancer) Events() <-chan Event { return b.events }

func (b *Balancer) healthFor(r Route) *health {
	k := r.key()
	h, ok := b.health[k]
	if !ok {
		h = &health{latencyEMA: 100} // optimistic prior, ms
		b.health[k] = h
	}
	return h
}

// SelectRoute picks one route from candidates for a destination per the
// configured algorithm. Returns false if candidates is empty.
func (b *Balancer) SelectRoute(dest string, candidates []Route) (Route, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(candidates) == 0 {
		return Route{}, false
	}
	switch b.algorithm {
	case RoundRobin:
		return b.selectRoundRobinLocked(dest, candidates), true
	case LeastLoaded:
		return b.selectLeastLoadedLocked(candidates), true
	default:
		return b.selectWeightedLocked(candidates), true
	}
}

func (b *Balancer) weight(r Route) float64 {
	h := b.healthFor(r)
	total := h.successCount + h.failureCount
	successRate := 1.0
	if total > 0 {
		successRate = float64(h.successCount) / float64(total)
	}
	latency := h.latencyEMA
	if latency <= 0 {
		latency = 1
	}
	w := successRate * (1000.0 / latency) * math.Max(0, 1-0.2*float64(h.consecutiveFailures))
	if w < minWeight {
		w = minWeight
	}
	return w
}

func (b *Balancer) selectWeightedLocked(candidates []Route) Route {
	total := 0.0
	weights := make([]float64, len(candidates))
	for i, r := range candidates {
		weights[i] = b.weight(r)
		total += weights[i]
	}
	pick := b.rng.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if pick <= acc {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

func (b *Balancer) selectRoundRobinLocked(dest string, candidates []Route) Route {
	idx := b.rrIndex[dest] % len(candidates)
	b.rrIndex[dest] = idx + 1
	return candidates[idx]
}

func (b *Balancer) selectLeastLoadedLocked(candidates []Route) Route {
	best := candidates[0]
	bestScore := math.Inf(1)
	now := b.now()
	for _, r := range candidates {
		h := b.healthFor(r)
		delta := 60.0
		if !h.lastUsed.IsZero() {
			delta = now.Sub(h.lastUsed).Seconds()
		}
		score := float64(h.attempts) * math.Exp(-delta/60.0)
		if score < bestScore {
			bestScore = score
			best = r
		}
	}
	return best
}

// RecordSuccess updates EMA latency (0.8 old / 0.2 new) and increments the
// success counter.
func (b *Balancer) RecordSuccess(r Route, latencyMS float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.healthFor(r)
	h.successCount++
	h.consecutiveFailures = 0
	h.attempts++
	h.lastUsed = b.now()
	if h.latencyEMA == 0 {
		h.latencyEMA = latencyMS
	} else {
		h.latencyEMA = h.latencyEMA*0.8 + latencyMS*0.2
	}
}

// RecordFailure increments the failure counter; on reaching
// failureThreshold consecutive failures it emits a route-failed event.
func (b *Balancer) RecordFailure(r Route, reason string) {
	b.mu.Lock()
	h := b.healthFor(r)
	h.failureCount++
	h.consecutiveFailures++
	h.attempts++
	h.lastUsed = b.now()
	reachedThreshold := h.consecutiveFailures >= failureThreshold
	b.mu.Unlock()

	if reachedThreshold {
		select {
		case b.events <- Event{Kind: "route-failed", Route: r}:
		default:
		}
	}
}

// Failover selects a replacement route from candidates excluding failed.
func (b *Balancer) Failover(dest string, failed Route, candidates []Route) (Route, bool) {
	remaining := make([]Route, 0, len(candidates))
	for _, r := range candidates {
		if r.key() != failed.key() {
			remaining = append(remaining, r)
		}
	}
	return b.SelectRoute(dest, remaining)
}
