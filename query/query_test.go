package query_test

import (
	"fmt"
	"testing"

	"github.com/leftmike/graft/graph"
	"github.com/leftmike/graft/query"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()

	g, err := graph.Open("", "", graph.Options{ArenaSize: 1 << 24, WALStore: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestKHopChain(t *testing.T) {
	g := testGraph(t)
	defer g.Close()

	// A -> B @ 1, B -> C @ 2, loaded in batch as the loader does.
	tx := g.BeginBatchLoader()
	vertices := make([]graph.VertexID, 3)
	for idx, data := range []string{"A", "B", "C"} {
		v, err := tx.NewVertex(false)
		if err != nil {
			t.Fatal(err)
		}
		if err := tx.PutVertex(v, []byte(data)); err != nil {
			t.Fatal(err)
		}
		vertices[idx] = v
	}
	err := tx.PutEdgeWithVersion(vertices[0], 1, vertices[1], []byte("1"), 1, false)
	if err != nil {
		t.Fatal(err)
	}
	err = tx.PutEdgeWithVersion(vertices[1], 1, vertices[2], []byte("2"), 2, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Commit(true); err != nil {
		t.Fatal(err)
	}

	result, err := query.KHopSnapshot(g, vertices[0], 1, 2, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 2 {
		t.Errorf("KHop(A, 2, [1, 2]) got %d results want 2", result.Count)
	}

	// One hop stops at B.
	result, err = query.KHopSnapshot(g, vertices[0], 1, 1, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 1 {
		t.Errorf("KHop(A, 1, [1, 2]) got %d results want 1", result.Count)
	}

	// A window missing the second edge's version cuts the walk short on
	// results but still expands B.
	result, err = query.KHopSnapshot(g, vertices[0], 1, 2, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 1 {
		t.Errorf("KHop(A, 2, [1, 1]) got %d results want 1", result.Count)
	}

	if result.Elapsed <= 0 {
		t.Error("Elapsed not recorded")
	}
}

func TestKHopFanOut(t *testing.T) {
	g := testGraph(t)
	defer g.Close()

	const fanOut = 10

	tx := g.BeginBatchLoader()
	root, err := tx.NewVertex(false)
	if err != nil {
		t.Fatal(err)
	}
	for idx := 0; idx < fanOut; idx++ {
		mid, err := tx.NewVertex(false)
		if err != nil {
			t.Fatal(err)
		}
		err = tx.PutEdgeWithVersion(root, 1, mid, []byte(fmt.Sprintf("m%d", idx)),
			graph.Timestamp(idx), false)
		if err != nil {
			t.Fatal(err)
		}
		leaf, err := tx.NewVertex(false)
		if err != nil {
			t.Fatal(err)
		}
		err = tx.PutEdgeWithVersion(mid, 1, leaf, []byte(fmt.Sprintf("l%d", idx)),
			graph.Timestamp(idx), false)
		if err != nil {
			t.Fatal(err)
		}
	}
	if _, err := tx.Commit(true); err != nil {
		t.Fatal(err)
	}

	result, err := query.KHopSnapshot(g, root, 1, 2, 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 2*fanOut {
		t.Errorf("KHop(root, 2) got %d results want %d", result.Count, 2*fanOut)
	}
	// Leaves are reached on the final hop and never expanded.
	if result.Visited != fanOut+1 {
		t.Errorf("KHop(root, 2) visited %d want %d", result.Visited, fanOut+1)
	}

	// Zero hops is an empty traversal.
	result, err = query.KHopSnapshot(g, root, 1, 0, 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if result.Count != 0 {
		t.Errorf("KHop(root, 0) got %d results want 0", result.Count)
	}
}
