// Package seencache implements the bounded TTL fingerprint cache used for
// digipeat duplicate suppression (spec.md section 4.2) and, with a second
// instance, the trust-plane nonce-replay window (section 4.8): expire
// entries older than TTL first, then evict oldest-inserted until back under
// the entry cap. Fingerprints are hashed with github.com/cespare/xxhash/v2,
// the same fast non-cryptographic hash the wider corpus reaches for on
// anything content-addressed.
package seencache

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultTTL and DefaultMaxEntries match spec.md section 3 defaults.
const (
	DefaultTTL        = 5 * time.Second
	DefaultMaxEntries = 1000
)

// Cache is a bounded key->timestamp map. TestAndSet is atomic under
// concurrent callers from multiple transports, guarded by one mutex per
// the section 5 single-writer/multi-reader policy.
type Cache struct {
	mu    sync.Mutex
	ttl   time.Duration
	max   int
	seen  map[uint64]time.Time
	order []uint64 // insertion order, oldest first, for over-capacity eviction
	now   func() time.Time
}

// New creates a cache with the given TTL and maximum entry count.
func New(ttl time.Duration, max int) *Cache {
	return &Cache{
		ttl:  ttl,
		max:  max,
		seen: make(map[uint64]time.Time, max),
		now:  time.Now,
	}
}

// Fingerprint builds the dedup key from (source base, source SSID,
// payload, destination base) per spec.md section 4.2. The path is
// intentionally excluded.
func Fingerprint(sourceBase string, sourceSSID uint8, payload []byte, destBase string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(sourceBase)
	_ = h.WriteByte(sourceSSID)
	_, _ = h.Write(payload)
	_, _ = h.WriteString(destBase)
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
	_, _ = h.Write(lenBuf[:])
	return h.Sum64()
}

// TestAndSet records key if new, or reports it as a duplicate if it was
// seen within the TTL window. Eviction runs inline at insertion: entries
// older than TTL are dropped first, then (if still over capacity) entries
// are evicted in insertion order until under capacity -- "expire-first,
// then oldest" per spec.md.
func (c *Cache) TestAndSet(key uint64) (isDuplicate bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.evictExpiredLocked(now)

	if ts, ok := c.seen[key]; ok && now.Sub(ts) <= c.ttl {
		return true
	}

	c.seen[key] = now
	c.order = append(c.order, key)

	if len(c.seen) > c.max {
		c.evictOldestLocked()
	}
	return false
}

// SetClockForTest overrides the cache's time source; production callers
// never need this.
func (c *Cache) SetClockForTest(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Size returns the current number of tracked entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) evictExpiredLocked(now time.Time) {
	if len(c.order) == 0 {
		return
	}
	cut := 0
	for _, k := range c.order {
		ts, ok := c.seen[k]
		if !ok {
			cut++
			continue
		}
		if now.Sub(ts) > c.ttl {
			delete(c.seen, k)
			cut++
			continue
		}
		break // order is insertion order, so once one is fresh, all after are fresher
	}
	if cut > 0 {
		c.order = c.order[cut:]
	}
}

func (c *Cache) evictOldestLocked() {
	for len(c.seen) > c.max && len(c.order) > 0 {
		k := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, k)
	}
}
