// Package events implements the typed event bus the core publishes onto
// for the out-of-scope control surface to consume (spec.md section 1
// lists the HTTP/WebSocket UI as an external collaborator; this package
// is the narrow interface it subscribes through). IDs use github.com/rs/xid
// the same way the retrieved eacd stub's go.mod pulls it in for ordered,
// sortable identifiers.
package events

import (
	"sync"
	"time"

	"github.com/rs/xid"
)

// Kind enumerates the event types named across spec.md sections 4 and 9.
type Kind string

const (
	FrameDigipeated Kind = "frame-digipeated"
	FrameDropped    Kind = "frame-dropped"
	RouteSelected   Kind = "route-selected"
	RouteFailed     Kind = "route-failed"
	AuthSucceeded   Kind = "auth-succeeded"
	AuthFailed      Kind = "auth-failed"
	LinkUp          Kind = "link-up"
	LinkDown        Kind = "link-down"
	LSAInstalled    Kind = "lsa-installed"
)

// Event is one published occurrence, carrying a sortable ID and a
// free-form attribute map so each Kind can attach whatever fields it
// needs without a type per kind.
type Event struct {
	ID        xid.ID
	Kind      Kind
	Timestamp time.Time
	Attrs     map[string]string
}

// Bus fans a published Event out to every current subscriber. Publish
// never blocks: subscribers with a full channel miss the event, the same
// overflow-drop posture QoS and the auth-buffer use elsewhere in the
// system.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	now         func() time.Time
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[int]chan Event), now: time.Now}
}

// Subscribe registers a new listener with the given channel buffer depth
// and returns the channel plus an unsubscribe function.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subscribers[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(c)
		}
	}
}

// Publish builds and fans out an Event of the given kind.
func (b *Bus) Publish(kind Kind, attrs map[string]string) {
	ev := Event{ID: xid.New(), Kind: kind, Timestamp: b.now(), Attrs: attrs}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
