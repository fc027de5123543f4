package graph

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/leftmike/graft/block"
	"github.com/leftmike/graft/wal"
)

// VertexID is a dense 64 bit vertex identifier assigned by the graph's
// monotone counter, with deleted ids recycled on request.
type VertexID uint64

// Label is a 16 bit edge label.
type Label uint16

// Timestamp is a commit epoch when positive. A live transaction writes
// -localTxnID into cells it has touched; RollbackTombstone marks cells
// staged for abort and is never visible to anyone.
type Timestamp int64

const (
	RollbackTombstone = Timestamp(math.MinInt64)

	DefaultArenaSize = uint64(1) << 30
)

// visible reports whether a timestamp cell value can be observed at the
// snapshot (readEpoch, localTxnID): committed at or before the read epoch,
// or tentatively written by the observing transaction itself.
func visible(ts int64, readEpoch Timestamp, localTxnID int64) bool {
	if ts >= 0 {
		return ts <= int64(readEpoch)
	}
	return localTxnID != 0 && ts == -localTxnID
}

type Options struct {
	ArenaSize uint64
	WALStore  string // badger, bbolt, pebble, or memory
	Logger    *log.Logger
}

// Graph owns the arena, the vertex directory, the recycled id queue, the
// commit manager, and the compact table. Transactions hold non-owning
// references to all of them.
type Graph struct {
	blocks  *block.Manager
	dir     *directory
	commits *CommitManager
	walst   wal.Store
	meta    *metaStore
	compact *compactTable
	logger  *log.Logger

	nextVertex uint64
	nextTxnID  int64

	recycledMutex sync.Mutex
	recycled      []VertexID

	closed bool
}

// Open creates or reopens a graph. blockPath names the block-storage meta
// file ("" for none); walPath roots the write-ahead log store. Both are
// opaque mappings owned by the graph until Close.
func Open(blockPath, walPath string, opts Options) (*Graph, error) {
	if opts.ArenaSize == 0 {
		opts.ArenaSize = DefaultArenaSize
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.WALStore == "" {
		if walPath == "" {
			opts.WALStore = "memory"
		} else {
			opts.WALStore = "bbolt"
		}
	}

	blocks, err := block.NewManager(opts.ArenaSize)
	if err != nil {
		return nil, err
	}

	walst, err := wal.Open(opts.WALStore, walPath, opts.Logger)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		blocks:  blocks,
		dir:     newDirectory(),
		commits: newCommitManager(walst, opts.Logger),
		walst:   walst,
		compact: newCompactTable(),
		logger:  opts.Logger,
	}

	if blockPath != "" {
		g.meta, err = openMetaStore(blockPath)
		if err != nil {
			walst.Close()
			return nil, err
		}
		state, err := g.meta.load()
		if err != nil {
			g.meta.close()
			walst.Close()
			return nil, err
		}
		g.nextVertex = state.nextVertex
		g.recycled = state.recycled
		g.commits.advanceTo(state.visibleEpoch)
		g.dir.ensure(VertexID(state.nextVertex))
	}

	g.logger.WithFields(log.Fields{
		"arena": opts.ArenaSize,
		"wal":   opts.WALStore,
	}).Info("graph: opened")
	return g, nil
}

// Close checkpoints the meta state and releases the stores. All
// transactions must have completed.
func (g *Graph) Close() error {
	if g.closed {
		return fmt.Errorf("graph: already closed")
	}
	g.closed = true

	var err error
	if g.meta != nil {
		g.recycledMutex.Lock()
		state := metaState{
			nextVertex:   atomic.LoadUint64(&g.nextVertex),
			visibleEpoch: g.commits.VisibleEpoch(),
			recycled:     append([]VertexID(nil), g.recycled...),
		}
		g.recycledMutex.Unlock()

		err = g.meta.save(state)
		if cerr := g.meta.close(); err == nil {
			err = cerr
		}
	}
	if cerr := g.walst.Close(); err == nil {
		err = cerr
	}
	return err
}

func (g *Graph) allocVertexID() VertexID {
	v := VertexID(atomic.AddUint64(&g.nextVertex, 1) - 1)
	g.dir.ensure(v)
	return v
}

// ensureVertexID advances the id counter past v; replay uses it to
// reproduce the ids a logged transaction allocated.
func (g *Graph) ensureVertexID(v VertexID) {
	for {
		cur := atomic.LoadUint64(&g.nextVertex)
		if cur > uint64(v) {
			break
		}
		if atomic.CompareAndSwapUint64(&g.nextVertex, cur, uint64(v)+1) {
			break
		}
	}
	g.dir.ensure(v)
}

func (g *Graph) maxVertexID() uint64 {
	return atomic.LoadUint64(&g.nextVertex)
}

func (g *Graph) popRecycled() (VertexID, bool) {
	g.recycledMutex.Lock()
	defer g.recycledMutex.Unlock()

	if len(g.recycled) == 0 {
		return 0, false
	}
	v := g.recycled[0]
	g.recycled = g.recycled[1:]
	return v, true
}

func (g *Graph) pushRecycled(vertices ...VertexID) {
	g.recycledMutex.Lock()
	g.recycled = append(g.recycled, vertices...)
	g.recycledMutex.Unlock()
}

// BeginTransaction starts a read-write transaction at the current visible
// epoch.
func (g *Graph) BeginTransaction() *Transaction {
	return g.begin(false, false)
}

// BeginReadOnlyTransaction starts a reader with a fixed snapshot; its
// reads cannot fail with rollback, writes on it fail with a RollbackError,
// and Commit is a no-op.
func (g *Graph) BeginReadOnlyTransaction() *Transaction {
	return g.begin(true, false)
}

// BeginBatchLoader starts a bulk-load transaction that publishes each
// mutation synchronously under the vertex futex, bypassing the WAL and the
// commit-time installation. It must not run concurrently with read-write
// transactions on overlapping vertices.
func (g *Graph) BeginBatchLoader() *Transaction {
	return g.begin(false, true)
}

func (g *Graph) begin(readOnly, batch bool) *Transaction {
	tx := &Transaction{
		graph:     g,
		readEpoch: g.commits.VisibleEpoch(),
		readOnly:  readOnly,
	}
	if !readOnly {
		tx.localTxnID = atomic.AddInt64(&g.nextTxnID, 1)
		tx.writeEpoch = Timestamp(-tx.localTxnID)
		tx.batch = batch
		if batch {
			tx.writeEpoch = tx.readEpoch
		}
	}
	return tx
}

// DirtyVertices drains the compact table: the set of vertices with new
// versions since the last drain, in ascending order, for an external
// compactor.
func (g *Graph) DirtyVertices() []VertexID {
	return g.compact.drain()
}

// Stats describes the engine state at a point in time.
type Stats struct {
	MaxVertexID  uint64
	RecycledIDs  int
	VisibleEpoch Timestamp
	ArenaSize    uint64
	ArenaUsed    uint64
	FreeBlocks   map[uint8]int
	DirtyCount   int
}

func (g *Graph) Stats() Stats {
	g.recycledMutex.Lock()
	recycled := len(g.recycled)
	g.recycledMutex.Unlock()

	return Stats{
		MaxVertexID:  g.maxVertexID(),
		RecycledIDs:  recycled,
		VisibleEpoch: g.commits.VisibleEpoch(),
		ArenaSize:    g.blocks.ArenaSize(),
		ArenaUsed:    g.blocks.Used(),
		FreeBlocks:   g.blocks.FreeCounts(),
		DirtyCount:   g.compact.len(),
	}
}
