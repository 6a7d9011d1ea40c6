// Package backbone implements the Backbone Manager (spec.md section 4.9):
// the neighbor table and outbound sendData dispatch through QoS and the
// load balancer. It does not receive or dispatch inbound control messages;
// mesh healing and auth handlers are called directly by their users.
// The per-peer outbound buffering follows the same bounded-queue,
// drop-newest-on-overflow shape the samoyed digipeater's transmit queue
// uses for a single radio; here it is keyed per peer instead of global.
package backbone

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/na4wx/nexdigi/internal/loadbalance"
	"github.com/na4wx/nexdigi/internal/mesh"
	"github.com/na4wx/nexdigi/internal/qos"
)

// DefaultAuthBufferSize is the per-peer pending-data queue depth while a
// handshake is outstanding (spec.md section 4.9 default: 100).
const DefaultAuthBufferSize = 100

// Outcome tags every sendData call per spec.md section 7's propagation
// policy: the manager never raises across the caller boundary.
type Outcome int

const (
	Ok Outcome = iota
	QueueFull
	NoRoute
	NotAuthenticated
	SendFailed
)

// Transport is the minimal outbound capability a neighbor's wire needs.
type Transport interface {
	Send(payload []byte) error
}

// Authenticator is the subset of auth.Manager the manager consults before
// releasing data to a peer that requires it.
type Authenticator interface {
	IsAuthenticated(peer string) bool
	InitiateAuth(peer string, nonce string) error
}

// Neighbor is a direct peer: its transport, advertised tags, and whether
// authentication is required before data flows.
type Neighbor struct {
	Callsign     string
	Transport    Transport
	RequireAuth  bool
	LastHeard    time.Time
}

type peerState struct {
	neighbor Neighbor
	buffer   [][]byte
}

// Manager ties together the neighbor table, C5 (QoS), C6 (load balancer),
// and C7 (mesh topology) for the send path, per spec.md section 4.9.
type Manager struct {
	self     string
	mu       sync.Mutex
	peers    map[string]*peerState
	topology *mesh.Topology
	balancer *loadbalance.Balancer
	scheduler *qos.Scheduler
	auth     Authenticator
	bufSize  int
	now      func() time.Time

	sendFailed chan string
}

// NewManager constructs a Manager for the local node.
func NewManager(self string, topology *mesh.Topology, balancer *loadbalance.Balancer, scheduler *qos.Scheduler, auth Authenticator) *Manager {
	return &Manager{
		self:       self,
		peers:      make(map[string]*peerState),
		topology:   topology,
		balancer:   balancer,
		scheduler:  scheduler,
		auth:       auth,
		bufSize:    DefaultAuthBufferSize,
		now:        time.Now,
		sendFailed: make(chan string, 32),
	}
}

// AddNeighbor registers a direct peer and its transport.
func (m *Manager) AddNeighbor(n Neighbor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers[n.Callsign] = &peerState{neighbor: n}
	m.topology.InstallLink(m.self, n.Callsign, 1)
}

// SendFailedEvents reports peers whose retried write failed twice.
func (m *Manager) SendFailedEvents() <-chan string { return m.sendFailed }

// SendData dispatches payload toward destCallsign per spec.md section 4.9:
// direct neighbor short-circuits to its transport; otherwise a route is
// selected from C7's Dijkstra candidates via C6; the packet is classified
// and enqueued on C5; when authentication is required and the peer is not
// yet authenticated, the payload buffers until auth-success.
func (m *Manager) SendData(destCallsign string, payload []byte, tags qos.Tags) Outcome {
	m.mu.Lock()
	peer, route, outcome := m.resolveLocked(destCallsign)
	m.mu.Unlock()

	if outcome != Ok {
		return outcome
	}

	if peer.neighbor.RequireAuth && m.auth != nil && !m.auth.IsAuthenticated(peer.neighbor.Callsign) {
		return m.bufferPendingAuth(peer, payload)
	}

	priority := qos.Classify(tags)
	accepted := m.scheduler.Enqueue(qos.Packet{Priority: priority, Payload: payload, Dest: route.NextHop})
	if !accepted {
		return QueueFull
	}
	return Ok
}

// resolveLocked finds the peerState and Route to use for destCallsign. If
// destCallsign is a direct neighbor, the route is a single hop; otherwise
// the load balancer chooses among candidates produced by Dijkstra.
func (m *Manager) resolveLocked(destCallsign string) (*peerState, loadbalance.Route, Outcome) {
	if p, ok := m.peers[destCallsign]; ok {
		return p, loadbalance.Route{Destination: destCallsign, NextHop: destCallsign}, Ok
	}

	path, ok := m.topology.ShortestPath(m.self, destCallsign)
	if !ok || len(path.Hops) == 0 {
		return nil, loadbalance.Route{}, NoRoute
	}
	nextHop := path.Hops[0]
	p, ok := m.peers[nextHop]
	if !ok {
		return nil, loadbalance.Route{}, NoRoute
	}
	candidates := []loadbalance.Route{{Destination: destCallsign, NextHop: nextHop, TransportID: nextHop}}
	selected, ok := m.balancer.SelectRoute(destCallsign, candidates)
	if !ok {
		return nil, loadbalance.Route{}, NoRoute
	}
	return p, selected, Ok
}

func (m *Manager) bufferPendingAuth(peer *peerState, payload []byte) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(peer.buffer) >= m.bufSize {
		return QueueFull // drop-newest: the incoming payload is discarded
	}
	peer.buffer = append(peer.buffer, payload)
	if m.auth != nil {
		_ = m.auth.InitiateAuth(peer.neighbor.Callsign, xidNonce())
	}
	return NotAuthenticated
}

// OnAuthSuccess flushes a peer's buffered outbound data (spec.md section
// 4.9: "flushes on auth-success").
func (m *Manager) OnAuthSuccess(peerCallsign string) {
	m.mu.Lock()
	p, ok := m.peers[peerCallsign]
	if !ok {
		m.mu.Unlock()
		return
	}
	buffered := p.buffer
	p.buffer = nil
	m.mu.Unlock()

	for _, payload := range buffered {
		m.scheduler.Enqueue(qos.Packet{Priority: qos.Normal, Payload: payload, Dest: peerCallsign})
	}
}

// DeliverToTransport writes a scheduled packet to its destination's
// transport. On a write failure it records the failure with the load
// balancer and retries once on the same transport; no alternate route is
// tried. A second failure is reported on SendFailedEvents.
func (m *Manager) DeliverToTransport(p qos.Packet) error {
	m.mu.Lock()
	peer, ok := m.peers[p.Dest]
	m.mu.Unlock()
	if !ok {
		return errors.New("backbone: unknown route")
	}

	route := loadbalance.Route{Destination: p.Dest, NextHop: p.Dest}
	if err := peer.neighbor.Transport.Send(p.Payload); err != nil {
		m.balancer.RecordFailure(route, err.Error())
		if retryErr := peer.neighbor.Transport.Send(p.Payload); retryErr != nil {
			select {
			case m.sendFailed <- p.Dest:
			default:
			}
			return retryErr
		}
	}
	m.balancer.RecordSuccess(route, 0)
	return nil
}

func xidNonce() string {
	return xid.New().String()
}
