package graph

import (
	"sync/atomic"

	"github.com/leftmike/graft/block"
	"github.com/leftmike/graft/wal"
)

type edgeKey struct {
	src   VertexID
	label Label
}

type allocRec struct {
	ptr   block.Pointer
	order uint8
}

// tsUpdate stages a timestamp cell: commit overwrites the cell with the
// commit epoch, abort restores prior (almost always RollbackTombstone).
type tsUpdate struct {
	cell  *int64
	prior int64
}

type sizeCache struct {
	numEntries uint64
	dataLength uint64
}

// Transaction is a single-threaded view of the graph. Read-only
// transactions fix a snapshot and their reads cannot fail; read-write transactions
// stage every mutation in per-transaction caches and publish atomically at
// Commit; the batch loader mutates the graph in place under per-vertex
// futexes.
type Transaction struct {
	graph      *Graph
	readEpoch  Timestamp
	writeEpoch Timestamp
	localTxnID int64
	readOnly   bool
	batch      bool
	done       bool
	failed     bool

	wal                 wal.Buffer
	locked              map[VertexID]struct{}
	vertexPtrCache      map[VertexID]block.Pointer
	edgePtrCache        map[edgeKey]block.Pointer
	edgeSizeCache       map[block.Pointer]sizeCache
	blockCache          []allocRec
	timestamps          []tsUpdate
	newVertexCache      []VertexID
	recycledVertexCache []VertexID
}

// ReadEpoch is the snapshot epoch fixed when the transaction began.
func (tx *Transaction) ReadEpoch() Timestamp {
	return tx.readEpoch
}

func (tx *Transaction) checkValid() error {
	if tx.done {
		return ErrTransactionComplete
	}
	if tx.failed {
		return ErrMustAbort
	}
	return nil
}

func (tx *Transaction) checkWritable() error {
	if tx.readOnly {
		tx.failed = true
		return rollbackf("write on read-only transaction")
	}
	return nil
}

func (tx *Transaction) checkVertex(v VertexID) error {
	if uint64(v) >= tx.graph.maxVertexID() {
		tx.failed = true
		return &InvalidVertexError{Vertex: v}
	}
	return nil
}

func (tx *Transaction) visible(ts int64) bool {
	return visible(ts, tx.readEpoch, tx.localTxnID)
}

func (tx *Transaction) fail(err error) error {
	tx.failed = true
	return err
}

func (tx *Transaction) stage(cell *int64, prior Timestamp) {
	tx.timestamps = append(tx.timestamps, tsUpdate{cell: cell, prior: int64(prior)})
}

// ensureVertexLock acquires the vertex futex once per transaction; the
// lock is held until Commit or Abort. Acquisition is bounded so that two
// transactions locking overlapping vertices in opposite orders roll back
// instead of deadlocking.
func (tx *Transaction) ensureVertexLock(v VertexID) error {
	if _, ok := tx.locked[v]; ok {
		return nil
	}
	if !tx.graph.dir.slot(v).futex.lockBounded() {
		return tx.fail(rollbackf("lock contention on: %d", v))
	}
	if tx.locked == nil {
		tx.locked = map[VertexID]struct{}{}
	}
	tx.locked[v] = struct{}{}
	return nil
}

// ensureNoConflictVertex fails when another transaction committed a newer
// head for v after this transaction's snapshot. It runs at most once per
// vertex; presence in vertexPtrCache memoizes the check.
func (tx *Transaction) ensureNoConflictVertex(v VertexID) error {
	vb := block.VertexBlock(tx.graph.blocks.Block(tx.graph.dir.vertexPtr(v)))
	if vb != nil && !tx.visible(vb.CreationTime()) {
		return tx.fail(rollbackf("write-write conflict on: %d", v))
	}
	return nil
}

// ensureNoConflictEdge is the per-(src,label) conflict check against the
// committed-time cell of the head edge block.
func (tx *Transaction) ensureNoConflictEdge(src VertexID, label Label) error {
	lb := block.EdgeLabelBlock(tx.graph.blocks.Block(tx.graph.dir.edgeLabelPtr(src)))
	if lb == nil {
		return nil
	}
	for idx := uint64(0); idx < lb.NumEntries(); idx++ {
		if Label(lb.LabelAt(idx)) != label {
			continue
		}
		eb := block.EdgeBlock(tx.graph.blocks.Block(lb.PointerAt(idx)))
		if eb != nil && !tx.visible(eb.CommittedTime()) {
			return tx.fail(rollbackf("write-write conflict on: %d: %d", src, label))
		}
		return nil
	}
	return nil
}

// locateEdgeBlock finds the newest edge block for (src,label) whose
// creation is visible at this transaction's snapshot.
func (tx *Transaction) locateEdgeBlock(src VertexID, label Label) block.Pointer {
	lb := block.EdgeLabelBlock(tx.graph.blocks.Block(tx.graph.dir.edgeLabelPtr(src)))
	if lb == nil {
		return block.NullPointer
	}
	for idx := uint64(0); idx < lb.NumEntries(); idx++ {
		if Label(lb.LabelAt(idx)) != label {
			continue
		}
		ptr := lb.PointerAt(idx)
		for ptr != block.NullPointer {
			eb := block.EdgeBlock(tx.graph.blocks.Block(ptr))
			if tx.visible(atomic.LoadInt64(eb.CreationCell())) {
				break
			}
			ptr = eb.Prev()
		}
		return ptr
	}
	return block.NullPointer
}

// updateEdgeLabelBlock points the (src,label) directory entry at ptr,
// mutating the matching entry in place or growing the label block
// copy-on-write.
func (tx *Transaction) updateEdgeLabelBlock(src VertexID, label Label,
	ptr block.Pointer) error {

	lbPtr := tx.graph.dir.edgeLabelPtr(src)
	lb := block.EdgeLabelBlock(tx.graph.blocks.Block(lbPtr))
	if lb != nil {
		for idx := uint64(0); idx < lb.NumEntries(); idx++ {
			if Label(lb.LabelAt(idx)) == label {
				lb.SetPointerAt(idx, ptr)
				return nil
			}
		}
	}

	if lb == nil || !lb.Append(uint16(label), ptr) {
		var numEntries uint64
		if lb != nil {
			numEntries = lb.NumEntries()
		}
		size := block.LabelHeaderSize + (numEntries+1)*block.LabelEntrySize
		order := block.SizeToOrder(size)

		newPtr, err := tx.graph.blocks.Alloc(order)
		if err != nil {
			return tx.fail(err)
		}
		newLb := block.EdgeLabelBlock(tx.graph.blocks.Raw(newPtr, uint64(1)<<order))
		newLb.Fill(order, uint64(src), int64(tx.writeEpoch), lbPtr)

		if !tx.batch {
			tx.blockCache = append(tx.blockCache, allocRec{ptr: newPtr, order: order})
			tx.stage(newLb.CreationCell(), RollbackTombstone)
		}

		for idx := uint64(0); idx < numEntries; idx++ {
			newLb.Append(lb.LabelAt(idx), lb.PointerAt(idx))
		}
		newLb.Append(uint16(label), ptr)

		tx.graph.dir.setEdgeLabelPtr(src, newPtr)
	}
	return nil
}

// NewVertex allocates a vertex id, preferring ids this transaction has
// recycled, then the graph's recycled queue (unless useRecycled is false),
// then the monotone counter. The id stays invisible to other transactions
// until Commit.
func (tx *Transaction) NewVertex(useRecycled bool) (VertexID, error) {
	if err := tx.checkValid(); err != nil {
		return 0, err
	}
	if err := tx.checkWritable(); err != nil {
		return 0, err
	}

	var v VertexID
	if !tx.batch && len(tx.recycledVertexCache) > 0 {
		v = tx.recycledVertexCache[0]
		tx.recycledVertexCache = tx.recycledVertexCache[1:]
	} else {
		var ok bool
		if useRecycled {
			v, ok = tx.graph.popRecycled()
		}
		if !ok {
			v = tx.graph.allocVertexID()
		}
	}

	slot := tx.graph.dir.slot(v)
	slot.futex.clear()
	tx.graph.dir.setVertexPtr(v, block.NullPointer)
	tx.graph.dir.setEdgeLabelPtr(v, block.NullPointer)

	if !tx.batch {
		tx.newVertexCache = append(tx.newVertexCache, v)
		tx.wal.AppendNewVertex(uint64(v))
	}
	return v, nil
}

func (tx *Transaction) vertexPrevPointer(v VertexID) (block.Pointer, error) {
	if tx.batch {
		tx.graph.dir.slot(v).futex.lock()
		return tx.graph.dir.vertexPtr(v), nil
	}

	if err := tx.ensureVertexLock(v); err != nil {
		return block.NullPointer, err
	}
	if ptr, ok := tx.vertexPtrCache[v]; ok {
		return ptr, nil
	}
	if err := tx.ensureNoConflictVertex(v); err != nil {
		return block.NullPointer, err
	}
	return tx.graph.dir.vertexPtr(v), nil
}

// PutVertex installs a new version at the head of v's chain.
func (tx *Transaction) PutVertex(v VertexID, data []byte) error {
	if err := tx.checkValid(); err != nil {
		return err
	}
	if err := tx.checkWritable(); err != nil {
		return err
	}
	if err := tx.checkVertex(v); err != nil {
		return err
	}

	prev, err := tx.vertexPrevPointer(v)
	if err != nil {
		return err
	}

	size := uint64(block.VertexHeaderSize + len(data))
	order := block.SizeToOrder(size)
	ptr, err := tx.graph.blocks.Alloc(order)
	if err != nil {
		if tx.batch {
			tx.graph.dir.slot(v).futex.unlock()
		}
		return tx.fail(err)
	}

	vb := block.VertexBlock(tx.graph.blocks.Raw(ptr, uint64(1)<<order))
	vb.Fill(order, uint64(v), int64(tx.writeEpoch), prev, data, uint64(len(data)))

	tx.graph.compact.add(v)

	if tx.batch {
		tx.graph.dir.setVertexPtr(v, ptr)
		tx.graph.dir.slot(v).futex.unlock()
	} else {
		tx.blockCache = append(tx.blockCache, allocRec{ptr: ptr, order: order})
		tx.stage(vb.CreationCell(), RollbackTombstone)
		if tx.vertexPtrCache == nil {
			tx.vertexPtrCache = map[VertexID]block.Pointer{}
		}
		tx.vertexPtrCache[v] = ptr
		tx.wal.AppendPutVertex(uint64(v), data)
	}
	return nil
}

// DelVertex writes a tombstone version; it reports whether a visible
// version existed. With recycle the id returns to the graph's queue when
// the transaction commits.
func (tx *Transaction) DelVertex(v VertexID, recycle bool) (bool, error) {
	if err := tx.checkValid(); err != nil {
		return false, err
	}
	if err := tx.checkWritable(); err != nil {
		return false, err
	}
	if err := tx.checkVertex(v); err != nil {
		return false, err
	}

	prev, err := tx.vertexPrevPointer(v)
	if err != nil {
		return false, err
	}

	var deleted bool
	prevBlock := block.VertexBlock(tx.graph.blocks.Block(prev))
	if prevBlock != nil && prevBlock.Length() != block.TombstoneLength {
		deleted = true
		order := block.SizeToOrder(block.VertexHeaderSize)
		ptr, err := tx.graph.blocks.Alloc(order)
		if err != nil {
			if tx.batch {
				tx.graph.dir.slot(v).futex.unlock()
			}
			return false, tx.fail(err)
		}

		vb := block.VertexBlock(tx.graph.blocks.Raw(ptr, uint64(1)<<order))
		vb.Fill(order, uint64(v), int64(tx.writeEpoch), prev, nil, block.TombstoneLength)

		tx.graph.compact.add(v)

		if tx.batch {
			tx.graph.dir.setVertexPtr(v, ptr)
		} else {
			tx.blockCache = append(tx.blockCache, allocRec{ptr: ptr, order: order})
			tx.stage(vb.CreationCell(), RollbackTombstone)
			if tx.vertexPtrCache == nil {
				tx.vertexPtrCache = map[VertexID]block.Pointer{}
			}
			tx.vertexPtrCache[v] = ptr
		}
	}

	if tx.batch {
		if recycle {
			tx.graph.pushRecycled(v)
		}
		tx.graph.dir.slot(v).futex.unlock()
	} else {
		tx.wal.AppendDelVertex(uint64(v), recycle)
		if recycle {
			tx.recycledVertexCache = append(tx.recycledVertexCache, v)
		}
	}
	return deleted, nil
}

// GetVertex returns the payload of the newest version of v visible at the
// snapshot, or nil if the vertex is absent or tombstoned. The returned
// bytes are a view into the arena and must not be modified. Reads never
// populate the pointer caches.
func (tx *Transaction) GetVertex(v VertexID) ([]byte, error) {
	if err := tx.checkValid(); err != nil {
		return nil, err
	}
	if uint64(v) >= tx.graph.maxVertexID() {
		return nil, nil
	}

	var ptr block.Pointer
	if tx.batch {
		ptr = tx.graph.dir.vertexPtr(v)
	} else if cached, ok := tx.vertexPtrCache[v]; ok {
		ptr = cached
	} else {
		ptr = tx.graph.dir.vertexPtr(v)
	}

	vb := block.VertexBlock(tx.graph.blocks.Block(ptr))
	for vb != nil {
		if tx.visible(vb.CreationTime()) {
			break
		}
		vb = block.VertexBlock(tx.graph.blocks.Block(vb.Prev()))
	}

	if vb == nil || vb.Length() == block.TombstoneLength {
		return nil, nil
	}
	return vb.Data(), nil
}

func (tx *Transaction) numEntriesDataLength(ptr block.Pointer,
	eb block.EdgeBlock) (uint64, uint64) {

	if !tx.batch {
		if sc, ok := tx.edgeSizeCache[ptr]; ok {
			return sc.numEntries, sc.dataLength
		}
	}
	return eb.NumEntriesDataLength()
}

func (tx *Transaction) setNumEntriesDataLength(ptr block.Pointer, eb block.EdgeBlock,
	numEntries, dataLength uint64) {

	if tx.batch {
		eb.SetNumEntriesDataLength(numEntries, dataLength)
		return
	}
	if tx.edgeSizeCache == nil {
		tx.edgeSizeCache = map[block.Pointer]sizeCache{}
	}
	tx.edgeSizeCache[ptr] = sizeCache{numEntries: numEntries, dataLength: dataLength}
}

// findEdge returns the newest live entry for dst, or nil.
func (tx *Transaction) findEdge(dst VertexID, eb block.EdgeBlock,
	numEntries, dataLength uint64) (block.EdgeEntry, []byte) {

	if eb == nil {
		return nil, nil
	}
	if bf := eb.Bloom(); bf.Valid() && !bf.MayContain(uint64(dst)) {
		return nil, nil
	}

	end := dataLength
	for idx := numEntries; idx > 0; idx-- {
		ee := eb.EntryAt(idx - 1)
		end -= ee.Length()
		if VertexID(ee.Dst()) == dst && tx.visible(ee.CreationTime()) &&
			!tx.visible(ee.DeletionTime()) {

			return ee, eb.DataAt(end, ee.Length())
		}
	}
	return nil, nil
}

// findEdgeWithVersion returns every readable entry for dst whose version
// cell lies in [start, end], newest first, regardless of deletion state.
func (tx *Transaction) findEdgeWithVersion(dst VertexID, eb block.EdgeBlock,
	numEntries, dataLength uint64, start, end Timestamp) [][]byte {

	if eb == nil {
		return nil
	}
	if bf := eb.Bloom(); bf.Valid() && !bf.MayContain(uint64(dst)) {
		return nil
	}

	var views [][]byte
	dataEnd := dataLength
	for idx := numEntries; idx > 0; idx-- {
		ee := eb.EntryAt(idx - 1)
		dataEnd -= ee.Length()
		if VertexID(ee.Dst()) != dst || !tx.visible(ee.CreationTime()) {
			continue
		}
		ver := Timestamp(ee.Version())
		if ver >= start && ver <= end {
			views = append(views, eb.DataAt(dataEnd, ee.Length()))
		}
	}
	return views
}

func (tx *Transaction) edgeBlockPointer(src VertexID, label Label,
	conflictCheck bool) (block.Pointer, error) {

	if tx.batch {
		return tx.locateEdgeBlock(src, label), nil
	}

	key := edgeKey{src: src, label: label}
	if ptr, ok := tx.edgePtrCache[key]; ok {
		return ptr, nil
	}
	if conflictCheck {
		if err := tx.ensureNoConflictEdge(src, label); err != nil {
			return block.NullPointer, err
		}
	}
	ptr := tx.locateEdgeBlock(src, label)
	if tx.edgePtrCache == nil {
		tx.edgePtrCache = map[edgeKey]block.Pointer{}
	}
	tx.edgePtrCache[key] = ptr
	return ptr, nil
}

// PutEdge inserts or replaces the (src,label,dst) edge. With forceInsert
// the existing live entry is kept and both versions remain visible.
func (tx *Transaction) PutEdge(src VertexID, label Label, dst VertexID, data []byte,
	forceInsert bool) error {

	return tx.putEdge(src, label, dst, data, forceInsert, false, 0)
}

// PutEdgeWithVersion is PutEdge with an explicit version cell, for
// temporal edges queried through the version-window reads.
func (tx *Transaction) PutEdgeWithVersion(src VertexID, label Label, dst VertexID,
	data []byte, version Timestamp, forceInsert bool) error {

	return tx.putEdge(src, label, dst, data, forceInsert, true, version)
}

func (tx *Transaction) putEdge(src VertexID, label Label, dst VertexID, data []byte,
	forceInsert, hasVersion bool, version Timestamp) error {

	if err := tx.checkValid(); err != nil {
		return err
	}
	if err := tx.checkWritable(); err != nil {
		return err
	}
	if err := tx.checkVertex(src); err != nil {
		return err
	}
	if err := tx.checkVertex(dst); err != nil {
		return err
	}

	if tx.batch {
		tx.graph.dir.slot(src).futex.lock()
	} else if err := tx.ensureVertexLock(src); err != nil {
		return err
	}

	ptr, err := tx.edgeBlockPointer(src, label, true)
	if err != nil {
		return err
	}

	entry := block.EntryFields{
		Length:   uint64(len(data)),
		Dst:      uint64(dst),
		Creation: int64(tx.writeEpoch),
		Deletion: int64(RollbackTombstone),
		Version:  int64(tx.writeEpoch),
	}
	if hasVersion {
		entry.Version = int64(version)
	}

	eb := block.EdgeBlock(tx.graph.blocks.Block(ptr))
	var numEntries, dataLength uint64
	if eb != nil {
		numEntries, dataLength = tx.numEntriesDataLength(ptr, eb)
	}

	if eb == nil || !eb.HasSpace(entry.Length, numEntries, dataLength) {
		ptr, eb, err = tx.growEdgeBlock(src, label, ptr, eb, entry.Length,
			numEntries, dataLength, hasVersion)
		if err != nil {
			if tx.batch {
				tx.graph.dir.slot(src).futex.unlock()
			}
			return err
		}
		numEntries, dataLength = eb.NumEntriesDataLength()
	}

	if !forceInsert {
		prev, _ := tx.findEdge(dst, eb, numEntries, dataLength)
		if prev != nil {
			prev.SetDeletionTime(int64(tx.writeEpoch))
			if !tx.batch {
				tx.stage(prev.DeletionCell(), RollbackTombstone)
			}
		}
	}

	ee := eb.AppendWithoutUpdateSize(entry, data, numEntries, dataLength)
	tx.setNumEntriesDataLength(ptr, eb, numEntries+1, dataLength+entry.Length)
	if !tx.batch {
		tx.stage(ee.CreationCell(), RollbackTombstone)
	}

	tx.graph.compact.add(src)

	if tx.batch {
		tx.graph.dir.slot(src).futex.unlock()
	} else {
		tx.edgePtrCache[edgeKey{src: src, label: label}] = ptr
		if hasVersion {
			tx.wal.AppendPutEdgeVersion(uint64(src), uint16(label), uint64(dst),
				forceInsert, int64(version), data)
		} else {
			tx.wal.AppendPutEdge(uint64(src), uint16(label), uint64(dst), forceInsert,
				data)
		}
	}
	return nil
}

// growEdgeBlock allocates a larger block chained before the current one
// and carries the current entries forward: live entries always; entries
// this transaction created and then deleted as well on the versioned path,
// so interleaved put+delete in one transaction keeps its history.
func (tx *Transaction) growEdgeBlock(src VertexID, label Label, ptr block.Pointer,
	eb block.EdgeBlock, length, numEntries, dataLength uint64,
	keepOwnDeleted bool) (block.Pointer, block.EdgeBlock, error) {

	size := uint64(block.EdgeHeaderSize) + (numEntries+1)*block.EdgeEntrySize +
		dataLength + length
	order := block.OrderForEdgeBlock(size)

	newPtr, err := tx.graph.blocks.Alloc(order)
	if err != nil {
		return block.NullPointer, nil, tx.fail(err)
	}
	newEb := block.EdgeBlock(tx.graph.blocks.Raw(newPtr, uint64(1)<<order))
	newEb.Fill(order, uint64(src), int64(tx.writeEpoch), ptr, int64(tx.writeEpoch))

	if !tx.batch {
		tx.blockCache = append(tx.blockCache, allocRec{ptr: newPtr, order: order})
		tx.stage(newEb.CreationCell(), RollbackTombstone)
	}

	if eb != nil {
		var dataOff uint64
		for idx := uint64(0); idx < numEntries; idx++ {
			ee := eb.EntryAt(idx)
			fields := ee.Fields()
			if !tx.visible(fields.Deletion) {
				ne := newEb.Append(fields, eb.DataAt(dataOff, fields.Length))
				if !tx.batch && fields.Creation == -tx.localTxnID {
					tx.stage(ne.CreationCell(), RollbackTombstone)
				}
			} else if keepOwnDeleted && fields.Creation == -tx.localTxnID {
				ne := newEb.Append(fields, eb.DataAt(dataOff, fields.Length))
				tx.stage(ne.CreationCell(), RollbackTombstone)
				if fields.Deletion == -tx.localTxnID {
					tx.stage(ne.DeletionCell(), RollbackTombstone)
				}
			}
			dataOff += fields.Length
		}
	}

	if tx.batch {
		err = tx.updateEdgeLabelBlock(src, label, newPtr)
		if err != nil {
			return block.NullPointer, nil, err
		}
	}
	return newPtr, newEb, nil
}

// DelEdge marks the live (src,label,dst) entry deleted at this
// transaction's epoch; it reports whether an entry was found.
func (tx *Transaction) DelEdge(src VertexID, label Label, dst VertexID) (bool, error) {
	if err := tx.checkValid(); err != nil {
		return false, err
	}
	if err := tx.checkWritable(); err != nil {
		return false, err
	}
	if err := tx.checkVertex(src); err != nil {
		return false, err
	}
	if err := tx.checkVertex(dst); err != nil {
		return false, err
	}

	if tx.batch {
		tx.graph.dir.slot(src).futex.lock()
	} else if err := tx.ensureVertexLock(src); err != nil {
		return false, err
	}

	ptr, err := tx.edgeBlockPointer(src, label, true)
	if err != nil {
		return false, err
	}

	eb := block.EdgeBlock(tx.graph.blocks.Block(ptr))
	if eb == nil {
		if tx.batch {
			tx.graph.dir.slot(src).futex.unlock()
		}
		return false, nil
	}

	numEntries, dataLength := tx.numEntriesDataLength(ptr, eb)
	ee, _ := tx.findEdge(dst, eb, numEntries, dataLength)
	if ee != nil {
		ee.SetDeletionTime(int64(tx.writeEpoch))
		if !tx.batch {
			tx.stage(ee.DeletionCell(), RollbackTombstone)
		}
	}

	tx.graph.compact.add(src)

	if tx.batch {
		tx.graph.dir.slot(src).futex.unlock()
	} else {
		tx.edgePtrCache[edgeKey{src: src, label: label}] = ptr
		// Force the committed-time install for this block at commit even
		// when nothing was appended.
		tx.setNumEntriesDataLength(ptr, eb, numEntries, dataLength)
		tx.wal.AppendDelEdge(uint64(src), uint16(label), uint64(dst))
	}
	return ee != nil, nil
}

// GetEdge returns the payload of the newest live (src,label,dst) entry, or
// nil if absent. The bytes are a view into the arena.
func (tx *Transaction) GetEdge(src VertexID, label Label, dst VertexID) ([]byte, error) {
	if err := tx.checkValid(); err != nil {
		return nil, err
	}
	if uint64(src) >= tx.graph.maxVertexID() {
		return nil, nil
	}

	ptr, err := tx.edgeBlockPointer(src, label, false)
	if err != nil {
		return nil, err
	}
	eb := block.EdgeBlock(tx.graph.blocks.Block(ptr))
	if eb == nil {
		return nil, nil
	}

	numEntries, dataLength := tx.numEntriesDataLength(ptr, eb)
	ee, data := tx.findEdge(dst, eb, numEntries, dataLength)
	if ee == nil {
		return nil, nil
	}
	return data, nil
}

// GetEdgeWithVersion returns the payloads of every (src,label,dst) entry
// with version in [start, end], newest first, including entries that have
// since been deleted.
func (tx *Transaction) GetEdgeWithVersion(src VertexID, label Label, dst VertexID,
	start, end Timestamp) ([][]byte, error) {

	if err := tx.checkValid(); err != nil {
		return nil, err
	}
	if uint64(src) >= tx.graph.maxVertexID() {
		return nil, nil
	}

	ptr, err := tx.edgeBlockPointer(src, label, false)
	if err != nil {
		return nil, err
	}
	eb := block.EdgeBlock(tx.graph.blocks.Block(ptr))
	if eb == nil {
		return nil, nil
	}

	numEntries, dataLength := tx.numEntriesDataLength(ptr, eb)
	return tx.findEdgeWithVersion(dst, eb, numEntries, dataLength, start, end), nil
}

// GetEdges iterates the live entries of (src,label) at the snapshot,
// newest first, or oldest first with reverse.
func (tx *Transaction) GetEdges(src VertexID, label Label,
	reverse bool) (*EdgeIterator, error) {

	if err := tx.checkValid(); err != nil {
		return nil, err
	}
	if uint64(src) >= tx.graph.maxVertexID() {
		return emptyEdgeIterator(tx, reverse), nil
	}

	ptr, err := tx.edgeBlockPointer(src, label, false)
	if err != nil {
		return nil, err
	}
	eb := block.EdgeBlock(tx.graph.blocks.Block(ptr))
	if eb == nil {
		return emptyEdgeIterator(tx, reverse), nil
	}

	numEntries, dataLength := tx.numEntriesDataLength(ptr, eb)
	return newEdgeIterator(tx, eb, numEntries, dataLength, reverse), nil
}

// GetEdgesWithVersion is GetEdges restricted to entries whose version cell
// lies in [start, end].
func (tx *Transaction) GetEdgesWithVersion(src VertexID, label Label, start,
	end Timestamp, reverse bool) (*EdgeIteratorVersion, error) {

	if err := tx.checkValid(); err != nil {
		return nil, err
	}
	if uint64(src) >= tx.graph.maxVertexID() {
		return emptyEdgeIteratorVersion(tx, start, end, reverse), nil
	}

	ptr, err := tx.edgeBlockPointer(src, label, false)
	if err != nil {
		return nil, err
	}
	eb := block.EdgeBlock(tx.graph.blocks.Block(ptr))
	if eb == nil {
		return emptyEdgeIteratorVersion(tx, start, end, reverse), nil
	}

	numEntries, dataLength := tx.numEntriesDataLength(ptr, eb)
	return newEdgeIteratorVersion(tx, eb, numEntries, dataLength, start, end,
		reverse), nil
}

// Commit publishes the transaction's staged writes at a fresh commit
// epoch. With waitVisible it does not return until every earlier epoch has
// also finished, so a subsequent reader observes this transaction. It is a
// no-op for read-only transactions and returns the read epoch for the
// batch loader.
func (tx *Transaction) Commit(waitVisible bool) (Timestamp, error) {
	if err := tx.checkValid(); err != nil {
		return 0, err
	}
	if tx.readOnly || tx.batch {
		tx.done = true
		return tx.readEpoch, nil
	}

	commitEpoch, numUnfinished, err := tx.graph.commits.RegisterCommit(&tx.wal)
	if err != nil {
		return 0, tx.fail(err)
	}

	for v, ptr := range tx.vertexPtrCache {
		if tx.graph.dir.vertexPtr(v) != ptr {
			tx.graph.dir.setVertexPtr(v, ptr)
		}
	}

	if len(tx.recycledVertexCache) > 0 {
		tx.graph.pushRecycled(tx.recycledVertexCache...)
	}

	for ptr, sc := range tx.edgeSizeCache {
		eb := block.EdgeBlock(tx.graph.blocks.Block(ptr))
		eb.SetNumEntriesDataLength(sc.numEntries, sc.dataLength)
		tx.stage(eb.CommittedCell(), Timestamp(eb.CommittedTime()))
		eb.SetCommittedTime(int64(tx.writeEpoch))
	}

	for key, ptr := range tx.edgePtrCache {
		if ptr != tx.locateEdgeBlock(key.src, key.label) {
			err = tx.updateEdgeLabelBlock(key.src, key.label, ptr)
			if err != nil {
				// The epoch was reserved; finish it so visibility does not
				// stall on the failed transaction, then force an abort.
				tx.graph.commits.FinishCommit(commitEpoch, numUnfinished, false)
				return 0, err
			}
		}
	}

	// The single step that makes every staged creation and deletion
	// visible at the commit epoch.
	for _, u := range tx.timestamps {
		atomic.StoreInt64(u.cell, int64(commitEpoch))
	}

	tx.clean()
	tx.graph.commits.FinishCommit(commitEpoch, numUnfinished, waitVisible)

	tx.done = true
	return commitEpoch, nil
}

// Abort restores every staged timestamp cell, recycles the ids this
// transaction allocated, and frees its blocks. Aborting a failed
// transaction is the required path back to a usable graph.
func (tx *Transaction) Abort() error {
	if tx.done {
		return ErrTransactionComplete
	}

	for _, u := range tx.timestamps {
		atomic.StoreInt64(u.cell, u.prior)
	}
	if len(tx.newVertexCache) > 0 {
		tx.graph.pushRecycled(tx.newVertexCache...)
	}
	for _, rec := range tx.blockCache {
		tx.graph.blocks.Free(rec.ptr, rec.order)
	}

	tx.clean()
	tx.done = true
	return nil
}

func (tx *Transaction) clean() {
	for v := range tx.locked {
		tx.graph.dir.slot(v).futex.unlock()
	}
	tx.locked = nil
	tx.vertexPtrCache = nil
	tx.edgePtrCache = nil
	tx.edgeSizeCache = nil
	tx.blockCache = nil
	tx.timestamps = nil
	tx.newVertexCache = nil
	tx.recycledVertexCache = nil
	tx.wal.Reset()
}
