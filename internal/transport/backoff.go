package transport

import (
	"math/rand"
	"time"
)

// Backoff implements the bounded exponential backoff from spec.md section
// 4.3: initial 1s, factor 2, cap 30s, jitter <=25%.
type Backoff struct {
	Initial time.Duration
	Factor  float64
	Cap     time.Duration
	Jitter  float64

	current time.Duration
}

// DefaultBackoff returns the spec.md defaults.
func DefaultBackoff() *Backoff {
	return &Backoff{Initial: time.Second, Factor: 2, Cap: 30 * time.Second, Jitter: 0.25}
}

// Next returns the next wait duration and advances internal state.
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.Initial
	} else {
		b.current = time.Duration(float64(b.current) * b.Factor)
		if b.current > b.Cap {
			b.current = b.Cap
		}
	}
	jitter := 1.0
	if b.Jitter > 0 {
		jitter = 1.0 - b.Jitter + rand.Float64()*2*b.Jitter
	}
	return time.Duration(float64(b.current) * jitter)
}

// Reset returns the backoff to its initial state after a successful
// connect.
func (b *Backoff) Reset() { b.current = 0 }
