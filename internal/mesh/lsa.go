package mesh

import "sync"

// NeighborCost pairs a neighbor callsign with the originating node's cost
// to reach it, as carried in an LSA body.
type NeighborCost struct {
	Neighbor string
	Cost     int
}

// LSA is a link-state advertisement: one node's declaration of its
// neighbor set and costs, flooded through the mesh (spec.md section 4.7).
type LSA struct {
	Origin    string
	Sequence  uint64
	Neighbors []NeighborCost
}

// seqTracker enforces strictly-increasing per-origin sequence numbers so
// stale or replayed LSAs are dropped, and out-of-order delivery never
// regresses a node's view of another node's adjacency.
type seqTracker struct {
	mu      sync.Mutex
	lastSeq map[string]uint64
}

func newSeqTracker() *seqTracker {
	return &seqTracker{lastSeq: make(map[string]uint64)}
}

// accept reports whether seq is newer than the last seen sequence for
// origin, and if so records it.
func (s *seqTracker) accept(origin string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, known := s.lastSeq[origin]
	if known && seq <= last {
		return false
	}
	s.lastSeq[origin] = seq
	return true
}

// next returns origin's next sequence number for locally
// originated LSAs (topology change or the periodic lsaInterval tick).
func (s *seqTracker) next(origin string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeq[origin]++
	return s.lastSeq[origin]
}
