package digipeater

import "sync"

// Metrics tracks the node-wide counters, shared by every channel of an
// Engine, required by the observability
// surface in spec.md section 6 (digipeats, duplicatesSuppressed,
// servicedWideBlocked, maxWideBlocked, uniqueStations). All counters are
// monotonically non-decreasing per spec.md section 7.
type Metrics struct {
	mu                   sync.Mutex
	Digipeats            uint64
	DuplicatesSuppressed uint64
	ServicedWideBlocked  uint64
	MaxWideBlocked       uint64
	TransmitFailed       uint64
	uniqueStations       map[string]struct{}
}

func newMetrics() *Metrics {
	return &Metrics{uniqueStations: make(map[string]struct{})}
}

// Snapshot is a point-in-time read of the counters, safe to hand to an
// external observer (getMetrics()).
type Snapshot struct {
	Digipeats            uint64
	DuplicatesSuppressed uint64
	ServicedWideBlocked  uint64
	MaxWideBlocked       uint64
	TransmitFailed       uint64
	UniqueStations       int
}

func (m *Metrics) recordDigipeat(sourceKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Digipeats++
	m.uniqueStations[sourceKey] = struct{}{}
}

func (m *Metrics) recordHeard(sourceKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uniqueStations[sourceKey] = struct{}{}
}

func (m *Metrics) recordDuplicate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesSuppressed++
}

func (m *Metrics) recordServicedWideBlocked() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ServicedWideBlocked++
}

func (m *Metrics) recordMaxWideBlocked() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MaxWideBlocked++
}

func (m *Metrics) recordTransmitFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransmitFailed++
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Digipeats:            m.Digipeats,
		DuplicatesSuppressed: m.DuplicatesSuppressed,
		ServicedWideBlocked:  m.ServicedWideBlocked,
		MaxWideBlocked:       m.MaxWideBlocked,
		TransmitFailed:       m.TransmitFailed,
		UniqueStations:       len(m.uniqueStations),
	}
}
