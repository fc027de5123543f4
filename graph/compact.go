package graph

import (
	"sync"

	"github.com/google/btree"
)

// compactTable is the ordered set of vertices with new versions since the
// last compaction pass. The engine only records candidates; an external
// compactor drains them in vertex order and rewrites unreachable chain
// prefixes.
type compactTable struct {
	mutex sync.Mutex
	tree  *btree.BTree
}

type compactItem VertexID

func (ci compactItem) Less(item btree.Item) bool {
	return ci < item.(compactItem)
}

func newCompactTable() *compactTable {
	return &compactTable{
		tree: btree.New(16),
	}
}

func (ct *compactTable) add(v VertexID) {
	ct.mutex.Lock()
	ct.tree.ReplaceOrInsert(compactItem(v))
	ct.mutex.Unlock()
}

// drain removes and returns every dirty vertex in ascending order.
func (ct *compactTable) drain() []VertexID {
	ct.mutex.Lock()
	defer ct.mutex.Unlock()

	vertices := make([]VertexID, 0, ct.tree.Len())
	ct.tree.Ascend(
		func(item btree.Item) bool {
			vertices = append(vertices, VertexID(item.(compactItem)))
			return true
		})
	ct.tree.Clear(false)
	return vertices
}

func (ct *compactTable) len() int {
	ct.mutex.Lock()
	defer ct.mutex.Unlock()

	return ct.tree.Len()
}
