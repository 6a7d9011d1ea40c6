package mesh

import "container/heap"

// Path is a computed route: the ordered hops from source (exclusive) to
// destination (inclusive), and its total cost.
type Path struct {
	Hops []string
	Cost int
}

// ShortestPath runs Dijkstra over the topology's current snapshot from
// source to destination. Returns ok=false if no path exists.
func (t *Topology) ShortestPath(source, destination string) (Path, bool) {
	graph := t.snapshot()
	if source == destination {
		return Path{Hops: nil, Cost: 0}, true
	}

	dist := map[string]int{source: 0}
	prev := map[string]string{}
	visited := map[string]bool{}

	pq := &priorityQueue{{node: source, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true
		if cur.node == destination {
			break
		}
		for neighbor, link := range graph[cur.node] {
			if visited[neighbor] {
				continue
			}
			nd := cur.dist + link.Cost
			if best, ok := dist[neighbor]; !ok || nd < best {
				dist[neighbor] = nd
				prev[neighbor] = cur.node
				heap.Push(pq, pqItem{node: neighbor, dist: nd})
			}
		}
	}

	if _, ok := dist[destination]; !ok {
		return Path{}, false
	}

	var hops []string
	for n := destination; n != source; n = prev[n] {
		hops = append([]string{n}, hops...)
	}
	return Path{Hops: hops, Cost: dist[destination]}, true
}

type pqItem struct {
	node string
	dist int
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
