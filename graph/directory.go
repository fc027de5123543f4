package graph

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/leftmike/graft/block"
)

const (
	directoryChunkShift = 16
	directoryChunkSize  = 1 << directoryChunkShift
	directoryChunkMask  = directoryChunkSize - 1
)

// vertexSlot holds the published state of one vertex: the head of its
// version chain, the head of its edge-label directory, and its write
// futex. Pointer fields are accessed with atomic loads and stores so that
// readers see either the old or the new head, never a torn word.
type vertexSlot struct {
	vertexPtr    uint64
	edgeLabelPtr uint64
	futex        futex
}

type directoryChunk [directoryChunkSize]vertexSlot

// directory grows by whole chunks as the vertex id counter advances; the
// chunk table is copied on grow and swapped atomically so lookups never
// take a lock.
type directory struct {
	mutex  sync.Mutex
	chunks unsafe.Pointer // *[]*directoryChunk
}

func newDirectory() *directory {
	chunks := make([]*directoryChunk, 0)
	d := &directory{}
	atomic.StorePointer(&d.chunks, unsafe.Pointer(&chunks))
	return d
}

func (d *directory) loadChunks() []*directoryChunk {
	return *(*[]*directoryChunk)(atomic.LoadPointer(&d.chunks))
}

// ensure grows the directory so that slot v exists.
func (d *directory) ensure(v VertexID) {
	want := int(uint64(v)>>directoryChunkShift) + 1
	if len(d.loadChunks()) >= want {
		return
	}

	d.mutex.Lock()
	chunks := d.loadChunks()
	if len(chunks) < want {
		grown := make([]*directoryChunk, want)
		copy(grown, chunks)
		for idx := len(chunks); idx < want; idx++ {
			grown[idx] = &directoryChunk{}
		}
		atomic.StorePointer(&d.chunks, unsafe.Pointer(&grown))
	}
	d.mutex.Unlock()
}

func (d *directory) slot(v VertexID) *vertexSlot {
	chunks := d.loadChunks()
	return &chunks[uint64(v)>>directoryChunkShift][uint64(v)&directoryChunkMask]
}

func (d *directory) vertexPtr(v VertexID) block.Pointer {
	return block.Pointer(atomic.LoadUint64(&d.slot(v).vertexPtr))
}

func (d *directory) setVertexPtr(v VertexID, ptr block.Pointer) {
	atomic.StoreUint64(&d.slot(v).vertexPtr, uint64(ptr))
}

func (d *directory) edgeLabelPtr(v VertexID) block.Pointer {
	return block.Pointer(atomic.LoadUint64(&d.slot(v).edgeLabelPtr))
}

func (d *directory) setEdgeLabelPtr(v VertexID, ptr block.Pointer) {
	atomic.StoreUint64(&d.slot(v).edgeLabelPtr, uint64(ptr))
}
