package mesh

import (
	"sync"
	"time"
)

// DefaultLSAInterval and DefaultDiscoveryTimeout match spec.md section 3/5
// defaults.
const (
	DefaultLSAInterval      = 60 * time.Second
	DefaultDiscoveryTimeout = 30 * time.Second
)

// Sender is the minimal capability Healer needs from the Backbone Manager:
// deliver a control message to one neighbor. Depending only on this (and
// not on the manager itself) breaks the Backbone<->Mesh<->Security import
// cycle called out in spec.md section 9's Design Notes.
type Sender interface {
	Send(neighbor string, msg interface{}) error
}

// RouteDiscovery is broadcast to find a path to a destination with no
// known route (spec.md section 4.7).
type RouteDiscovery struct {
	Source      string
	Destination string
	Path        []string
	Sequence    uint64
}

// RouteReply walks back along the accumulated path to the discovery's
// source.
type RouteReply struct {
	Source      string
	Destination string
	Path        []string
}

type pendingDiscovery struct {
	destination string
	startedAt   time.Time
	done        chan Path
}

// Healer owns the local node's topology view, LSA origination/flooding,
// and reactive route discovery.
type Healer struct {
	self             string
	topo             *Topology
	seq              *seqTracker
	send             Sender
	discoveryTimeout time.Duration
	now              func() time.Time

	mu       sync.Mutex
	pending  map[uint64]*pendingDiscovery
	discoSeq uint64
}

// NewHealer constructs a Healer for the local node callsign self.
func NewHealer(self string, topo *Topology, send Sender) *Healer {
	return &Healer{
		self:             self,
		topo:             topo,
		seq:              newSeqTracker(),
		send:             send,
		discoveryTimeout: DefaultDiscoveryTimeout,
		now:              time.Now,
		pending:          make(map[uint64]*pendingDiscovery),
	}
}

// GenerateLSA builds the local node's current advertisement with the next
// sequence number, for the periodic lsaInterval tick or a topology change.
func (h *Healer) GenerateLSA() LSA {
	neighbors := h.topo.Neighbors(h.self)
	nc := make([]NeighborCost, 0, len(neighbors))
	for n, link := range neighbors {
		nc = append(nc, NeighborCost{Neighbor: n, Cost: link.Cost})
	}
	return LSA{Origin: h.self, Sequence: h.seq.next(h.self), Neighbors: nc}
}

// broadcast sends msg to every known direct neighbor of the local node
// except the optional except callsign.
func (h *Healer) broadcast(msg interface{}, except string) {
	for neighbor := range h.topo.Neighbors(h.self) {
		if neighbor == except {
			continue
		}
		_ = h.send.Send(neighbor, msg)
	}
}

// BroadcastLSA floods l to all neighbors. Call with the freshly generated
// local LSA, or to re-broadcast after a link failure.
func (h *Healer) BroadcastLSA(l LSA) {
	h.broadcast(l, "")
}

// HandleLSA processes an LSA arriving from arrivedFrom. Stale or replayed
// advertisements (sequence <= last seen for that origin) are dropped;
// otherwise the topology is updated and the LSA is forwarded to every
// neighbor except the one it arrived from (controlled flooding).
func (h *Healer) HandleLSA(l LSA, arrivedFrom string) {
	if !h.seq.accept(l.Origin, l.Sequence) {
		return
	}
	for _, nc := range l.Neighbors {
		h.topo.InstallLink(l.Origin, nc.Neighbor, nc.Cost)
	}
	h.broadcast(l, arrivedFrom)
}

// OnLinkFailure reacts to local detection of a dead neighbor: removes it
// from the topology, re-broadcasts the updated local LSA, then initiates
// route discovery for every destination whose shortest path's first hop
// was the dead neighbor.
func (h *Healer) OnLinkFailure(deadNeighbor string) {
	affected := h.destinationsViaLocked(deadNeighbor)
	h.topo.RemoveNeighbor(h.self, deadNeighbor)
	h.BroadcastLSA(h.GenerateLSA())
	for _, dest := range affected {
		go h.DiscoverRoute(dest)
	}
}

func (h *Healer) destinationsViaLocked(neighbor string) []string {
	var affected []string
	for _, node := range h.topo.Nodes() {
		if node == h.self {
			continue
		}
		path, ok := h.topo.ShortestPath(h.self, node)
		if ok && len(path.Hops) > 0 && path.Hops[0] == neighbor {
			affected = append(affected, node)
		}
	}
	return affected
}

// DiscoverRoute broadcasts a RouteDiscovery for destination and blocks
// until a RouteReply installs a path or discoveryTimeout elapses. Returns
// ok=false on timeout.
func (h *Healer) DiscoverRoute(destination string) (Path, bool) {
	h.mu.Lock()
	h.discoSeq++
	seq := h.discoSeq
	pd := &pendingDiscovery{destination: destination, startedAt: h.now(), done: make(chan Path, 1)}
	h.pending[seq] = pd
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, seq)
		h.mu.Unlock()
	}()

	h.broadcast(RouteDiscovery{
		Source:      h.self,
		Destination: destination,
		Path:        []string{h.self},
		Sequence:    seq,
	}, "")

	select {
	case p := <-pd.done:
		return p, true
	case <-time.After(h.discoveryTimeout):
		return Path{}, false
	}
}

// HandleRouteDiscovery processes an inbound discovery message arriving
// from arrivedFrom. If the local node is the destination, it replies
// along the reversed accumulated path; otherwise it appends itself and
// forwards to neighbors not already in the path (loop avoidance).
func (h *Healer) HandleRouteDiscovery(msg RouteDiscovery, arrivedFrom string) {
	if msg.Destination == h.self {
		reversed := make([]string, len(msg.Path))
		for i, n := range msg.Path {
			reversed[len(msg.Path)-1-i] = n
		}
		h.sendReplyAlong(reversed, msg)
		return
	}

	visited := make(map[string]bool, len(msg.Path))
	for _, n := range msg.Path {
		visited[n] = true
	}
	extended := append(append([]string{}, msg.Path...), h.self)
	next := RouteDiscovery{Source: msg.Source, Destination: msg.Destination, Path: extended, Sequence: msg.Sequence}
	for neighbor := range h.topo.Neighbors(h.self) {
		if visited[neighbor] || neighbor == arrivedFrom {
			continue
		}
		_ = h.send.Send(neighbor, next)
	}
}

// sendReplyAlong sends a RouteReply to the first hop of reversedPath (the
// neighbor that will walk it back toward the discovery's source).
func (h *Healer) sendReplyAlong(reversedPath []string, msg RouteDiscovery) {
	reply := RouteReply{Source: msg.Source, Destination: msg.Destination, Path: reversedPath}
	if len(reversedPath) == 0 {
		return
	}
	_ = h.send.Send(reversedPath[0], reply)
}

// HandleRouteReply installs the pairwise links along the reply's path and,
// if this node originated the discovery, resolves the pending call.
func (h *Healer) HandleRouteReply(msg RouteReply) {
	for i := 0; i+1 < len(msg.Path); i++ {
		h.topo.InstallLink(msg.Path[i], msg.Path[i+1], 1)
	}
	if msg.Source != h.self || len(msg.Path) == 0 {
		return
	}
	path, ok := h.topo.ShortestPath(h.self, msg.Destination)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, pd := range h.pending {
		if pd.destination != msg.Destination {
			continue
		}
		select {
		case pd.done <- path:
		default:
		}
	}
}
