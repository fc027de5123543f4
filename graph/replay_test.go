package graph_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leftmike/graft/graph"
	"github.com/leftmike/graft/testutil"
	"github.com/leftmike/graft/wal"
)

func TestReplay(t *testing.T) {
	err := testutil.CleanDir(filepath.Join("testdata", "replay"), []string{".gitignore"})
	if err != nil {
		t.Fatal(err)
	}
	err = os.MkdirAll(filepath.Join("testdata", "replay"), 0755)
	if err != nil {
		t.Fatal(err)
	}

	walPath := filepath.Join("testdata", "replay", "graft.wal")
	g, err := graph.Open("", walPath,
		graph.Options{
			ArenaSize: 1 << 22,
			WALStore:  "bbolt",
		})
	if err != nil {
		t.Fatal(err)
	}

	// Epoch one: three vertices and an edge that is deleted in the same
	// transaction.
	tx := g.BeginTransaction()
	src := newVertex(t, tx)
	dst := newVertex(t, tx)
	keep := newVertex(t, tx)
	if err := tx.PutVertex(src, []byte("src")); err != nil {
		t.Fatal(err)
	}
	if err := tx.PutEdge(src, 1, dst, []byte("a"), false); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.DelEdge(src, 1, dst); err != nil {
		t.Fatal(err)
	}
	commit(t, tx)

	// Epoch two: a versioned edge and a vertex tombstone.
	tx = g.BeginTransaction()
	if err := tx.PutEdgeWithVersion(src, 1, keep, []byte("v9"), 9, false); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.DelVertex(dst, false); err != nil {
		t.Fatal(err)
	}
	commit(t, tx)

	if err := g.Close(); err != nil {
		t.Fatal(err)
	}

	// Rebuild a fresh graph from the log alone.
	st, err := wal.Open("bbolt", walPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	fresh, err := graph.Open("", "", graph.Options{ArenaSize: 1 << 22, WALStore: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	defer fresh.Close()

	err = graph.Replay(st, fresh)
	if err != nil {
		t.Fatalf("Replay() failed with %s", err)
	}

	ro := fresh.BeginReadOnlyTransaction()
	defer ro.Abort()

	wantVertex(t, ro, src, "src")
	wantVertex(t, ro, dst, "")
	wantEdge(t, ro, src, 1, dst, "")
	if datas := collectEdges(t, ro, src, 1, false); len(datas) != 1 || datas[0] != "v9" {
		t.Errorf("GetEdges() after replay got %v want [v9]", datas)
	}

	views, err := ro.GetEdgeWithVersion(src, 1, keep, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || string(views[0]) != "v9" {
		t.Errorf("GetEdgeWithVersion() after replay got %v want [v9]", views)
	}
}
