package graph

import (
	"github.com/leftmike/graft/block"
)

// EdgeIterator walks the entries of one edge block under a snapshot
// filter: an entry is yielded iff its creation cell is visible and its
// deletion cell is not. The default direction is newest first; reverse
// walks oldest first. Iterators never follow the block chain; time travel
// across grown blocks requires a fresh GetEdges at the caller's snapshot.
type EdgeIterator struct {
	eb         block.EdgeBlock
	numEntries uint64
	dataLength uint64
	readEpoch  Timestamp
	localTxnID int64
	reverse    bool

	idx     uint64 // insertion-order index of the current entry
	dataOff uint64 // data offset of the current entry
	entry   block.EdgeEntry
	started bool
	invalid bool
}

func emptyEdgeIterator(tx *Transaction, reverse bool) *EdgeIterator {
	return &EdgeIterator{
		readEpoch:  tx.readEpoch,
		localTxnID: tx.localTxnID,
		reverse:    reverse,
		invalid:    true,
	}
}

func newEdgeIterator(tx *Transaction, eb block.EdgeBlock, numEntries,
	dataLength uint64, reverse bool) *EdgeIterator {

	it := &EdgeIterator{
		eb:         eb,
		numEntries: numEntries,
		dataLength: dataLength,
		readEpoch:  tx.readEpoch,
		localTxnID: tx.localTxnID,
		reverse:    reverse,
	}
	it.seek(func(ee block.EdgeEntry) bool { return it.live(ee) })
	return it
}

func (it *EdgeIterator) live(ee block.EdgeEntry) bool {
	return visible(ee.CreationTime(), it.readEpoch, it.localTxnID) &&
		!visible(ee.DeletionTime(), it.readEpoch, it.localTxnID)
}

// seek positions the cursor on the first entry accepted by match,
// starting from the current position (or the initial position before the
// first call) and advancing in the iterator's direction.
func (it *EdgeIterator) seek(match func(block.EdgeEntry) bool) {
	if it.invalid {
		return
	}
	for {
		if !it.step() {
			it.invalid = true
			it.entry = nil
			return
		}
		if match(it.entry) {
			return
		}
	}
}

// step advances the cursor one entry, maintaining the running data offset,
// and reports whether an entry remains.
func (it *EdgeIterator) step() bool {
	if it.reverse {
		// Oldest first: index and data offset both ascend.
		if !it.started {
			it.started = true
			it.idx = 0
			it.dataOff = 0
		} else {
			it.dataOff += it.entry.Length()
			it.idx += 1
		}
		if it.idx >= it.numEntries {
			return false
		}
		it.entry = it.eb.EntryAt(it.idx)
		return true
	}

	// Newest first: start past the end and walk down.
	if !it.started {
		it.started = true
		it.idx = it.numEntries
		it.dataOff = it.dataLength
	}
	if it.idx == 0 {
		return false
	}
	it.idx -= 1
	it.entry = it.eb.EntryAt(it.idx)
	it.dataOff -= it.entry.Length()
	return true
}

// Valid reports whether the cursor references a live entry.
func (it *EdgeIterator) Valid() bool {
	return !it.invalid
}

// Next advances to the next live entry in the iterator's direction.
func (it *EdgeIterator) Next() {
	it.seek(func(ee block.EdgeEntry) bool { return it.live(ee) })
}

func (it *EdgeIterator) DstID() VertexID {
	return VertexID(it.entry.Dst())
}

// EdgeData is a view into the arena; it is valid for the life of the
// graph and must not be modified.
func (it *EdgeIterator) EdgeData() []byte {
	return it.eb.DataAt(it.dataOff, it.entry.Length())
}

func (it *EdgeIterator) Version() Timestamp {
	return Timestamp(it.entry.Version())
}

// EdgeIteratorVersion additionally filters entries to a [start, end]
// version window. Deletion state still applies: the window narrows the
// live view, it does not resurrect deleted entries.
type EdgeIteratorVersion struct {
	EdgeIterator
	start Timestamp
	end   Timestamp
}

func emptyEdgeIteratorVersion(tx *Transaction, start, end Timestamp,
	reverse bool) *EdgeIteratorVersion {

	return &EdgeIteratorVersion{
		EdgeIterator: *emptyEdgeIterator(tx, reverse),
		start:        start,
		end:          end,
	}
}

func newEdgeIteratorVersion(tx *Transaction, eb block.EdgeBlock, numEntries,
	dataLength uint64, start, end Timestamp, reverse bool) *EdgeIteratorVersion {

	it := &EdgeIteratorVersion{
		EdgeIterator: EdgeIterator{
			eb:         eb,
			numEntries: numEntries,
			dataLength: dataLength,
			readEpoch:  tx.readEpoch,
			localTxnID: tx.localTxnID,
			reverse:    reverse,
		},
		start: start,
		end:   end,
	}
	it.seek(it.match)
	return it
}

func (it *EdgeIteratorVersion) match(ee block.EdgeEntry) bool {
	if !it.live(ee) {
		return false
	}
	ver := Timestamp(ee.Version())
	return ver >= it.start && ver <= it.end
}

func (it *EdgeIteratorVersion) Next() {
	it.seek(it.match)
}
