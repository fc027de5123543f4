package graph_test

import (
	"fmt"
	"testing"

	"github.com/leftmike/graft/graph"
)

func fillEdges(t *testing.T, g *graph.Graph, count int) (graph.VertexID,
	[]graph.VertexID) {

	t.Helper()

	tx := g.BeginTransaction()
	src := newVertex(t, tx)
	vertices := make([]graph.VertexID, count)
	for idx := range vertices {
		vertices[idx] = newVertex(t, tx)
		err := tx.PutEdgeWithVersion(src, 1, vertices[idx],
			[]byte(fmt.Sprintf("e%d", idx)), graph.Timestamp(idx+1), false)
		if err != nil {
			t.Fatal(err)
		}
	}
	commit(t, tx)
	return src, vertices
}

func TestIteratorForward(t *testing.T) {
	g := testGraph(t)
	defer g.Close()

	src, vertices := fillEdges(t, g, 5)

	ro := g.BeginReadOnlyTransaction()
	defer ro.Abort()

	it, err := ro.GetEdges(src, 1, false)
	if err != nil {
		t.Fatal(err)
	}

	// Newest first.
	for idx := len(vertices) - 1; idx >= 0; idx-- {
		if !it.Valid() {
			t.Fatalf("iterator exhausted at %d", idx)
		}
		if it.DstID() != vertices[idx] {
			t.Errorf("DstID() got %d want %d", it.DstID(), vertices[idx])
		}
		if string(it.EdgeData()) != fmt.Sprintf("e%d", idx) {
			t.Errorf("EdgeData() got %q want e%d", it.EdgeData(), idx)
		}
		if it.Version() != graph.Timestamp(idx+1) {
			t.Errorf("Version() got %d want %d", it.Version(), idx+1)
		}
		it.Next()
	}
	if it.Valid() {
		t.Error("iterator valid past the last entry")
	}
}

func TestIteratorReverse(t *testing.T) {
	g := testGraph(t)
	defer g.Close()

	src, vertices := fillEdges(t, g, 5)

	ro := g.BeginReadOnlyTransaction()
	defer ro.Abort()

	it, err := ro.GetEdges(src, 1, true)
	if err != nil {
		t.Fatal(err)
	}

	for idx := 0; idx < len(vertices); idx++ {
		if !it.Valid() {
			t.Fatalf("iterator exhausted at %d", idx)
		}
		if it.DstID() != vertices[idx] {
			t.Errorf("DstID() got %d want %d", it.DstID(), vertices[idx])
		}
		it.Next()
	}
	if it.Valid() {
		t.Error("iterator valid past the last entry")
	}
}

func TestIteratorSkipsDeleted(t *testing.T) {
	g := testGraph(t)
	defer g.Close()

	src, vertices := fillEdges(t, g, 5)

	tx := g.BeginTransaction()
	if _, err := tx.DelEdge(src, 1, vertices[2]); err != nil {
		t.Fatal(err)
	}

	// The deleting transaction no longer sees the entry.
	datas := collectEdges(t, tx, src, 1, false)
	if len(datas) != 4 {
		t.Errorf("GetEdges() in deleting txn got %d entries want 4", len(datas))
	}
	commit(t, tx)

	ro := g.BeginReadOnlyTransaction()
	defer ro.Abort()

	it, err := ro.GetEdges(src, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	for it.Valid() {
		if it.DstID() == vertices[2] {
			t.Error("iterator yielded a deleted entry")
		}
		it.Next()
	}
}

func TestIteratorVersionWindow(t *testing.T) {
	g := testGraph(t)
	defer g.Close()

	src, vertices := fillEdges(t, g, 10)

	ro := g.BeginReadOnlyTransaction()
	defer ro.Abort()

	it, err := ro.GetEdgesWithVersion(src, 1, 3, 6, false)
	if err != nil {
		t.Fatal(err)
	}

	var got []graph.VertexID
	for it.Valid() {
		ver := it.Version()
		if ver < 3 || ver > 6 {
			t.Errorf("Version() got %d want within [3, 6]", ver)
		}
		got = append(got, it.DstID())
		it.Next()
	}
	if len(got) != 4 {
		t.Fatalf("GetEdgesWithVersion(3, 6) got %d entries want 4", len(got))
	}
	// Newest first: versions 6, 5, 4, 3.
	for idx, ver := 0, 6; ver >= 3; idx, ver = idx+1, ver-1 {
		if got[idx] != vertices[ver-1] {
			t.Errorf("entry %d got %d want %d", idx, got[idx], vertices[ver-1])
		}
	}
}

func TestIteratorEmpty(t *testing.T) {
	g := testGraph(t)
	defer g.Close()

	tx := g.BeginTransaction()
	src := newVertex(t, tx)
	commit(t, tx)

	ro := g.BeginReadOnlyTransaction()
	defer ro.Abort()

	// No label directory at all.
	it, err := ro.GetEdges(src, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if it.Valid() {
		t.Error("GetEdges() of an edgeless vertex is valid")
	}

	// Source beyond the allocated range.
	it, err = ro.GetEdges(99999, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if it.Valid() {
		t.Error("GetEdges() of an invalid vertex is valid")
	}

	itv, err := ro.GetEdgesWithVersion(src, 1, 0, 100, false)
	if err != nil {
		t.Fatal(err)
	}
	if itv.Valid() {
		t.Error("GetEdgesWithVersion() of an edgeless vertex is valid")
	}
}
