// Package query runs bounded traversals over a graph snapshot.
package query

import (
	"time"

	"github.com/leftmike/graft/graph"
)

// Result aggregates one k-hop traversal. QueryTime is the time spent
// constructing edge iterators; ResolveTime is the time spent draining
// them. Both sum across every hop.
type Result struct {
	Count       int
	Visited     int
	Elapsed     time.Duration
	QueryTime   time.Duration
	ResolveTime time.Duration
}

type hop struct {
	vertex    graph.VertexID
	remaining int
}

// KHop walks breadth-first from target for at most k hops, counting every
// edge with a version in [start, end] that is live at the transaction's
// snapshot. A destination vertex is expanded at most once.
func KHop(tx *graph.Transaction, target graph.VertexID, label graph.Label, k int,
	start, end graph.Timestamp) (Result, error) {

	began := time.Now()
	var result Result

	if k < 1 {
		return result, nil
	}

	queue := []hop{{vertex: target, remaining: k}}
	visited := map[graph.VertexID]struct{}{target: {}}

	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]

		queryBegan := time.Now()
		it, err := tx.GetEdgesWithVersion(h.vertex, label, start, end, false)
		if err != nil {
			return result, err
		}
		result.QueryTime += time.Since(queryBegan)

		resolveBegan := time.Now()
		for it.Valid() {
			dst := it.DstID()
			result.Count += 1

			if _, ok := visited[dst]; !ok && h.remaining > 1 {
				visited[dst] = struct{}{}
				queue = append(queue, hop{vertex: dst, remaining: h.remaining - 1})
			}
			it.Next()
		}
		result.ResolveTime += time.Since(resolveBegan)
	}

	result.Visited = len(visited)
	result.Elapsed = time.Since(began)
	return result, nil
}

// KHopSnapshot runs KHop in its own read-only transaction.
func KHopSnapshot(g *graph.Graph, target graph.VertexID, label graph.Label, k int,
	start, end graph.Timestamp) (Result, error) {

	tx := g.BeginReadOnlyTransaction()
	defer tx.Abort()

	return KHop(tx, target, label, k, start, end)
}
