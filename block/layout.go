package block

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// Block headers are self-describing: the order byte is always at offset
// zero so that a chain walker (or the compactor) can size any block
// without knowing what points at it. All multi-byte fields are little
// endian. Timestamp cells are 8-byte aligned and accessed through *int64
// so that sync/atomic loads and stores work on a live block.

const (
	// TombstoneLength in a vertex header marks a logical vertex delete.
	TombstoneLength = ^uint64(0)

	VertexHeaderSize = 40
	LabelHeaderSize  = 40
	LabelEntrySize   = 16
	EdgeHeaderSize   = 48
	EdgeEntrySize    = 40
)

func timestampCell(b []byte, off int) *int64 {
	return (*int64)(unsafe.Pointer(&b[off]))
}

func pointerCell(b []byte, off int) *uint64 {
	return (*uint64)(unsafe.Pointer(&b[off]))
}

// vertexBlock is one version of a vertex value.
type vertexBlock struct {
	order    uint8 // 0
	_        [7]byte
	vertex   uint64 // 8
	creation int64  // 16
	prev     uint64 // 24
	length   uint64 // 32: payload length or TombstoneLength
	// payload // 40
}

type VertexBlock []byte

func (vb VertexBlock) Order() uint8 {
	return vb[0]
}

func (vb VertexBlock) Vertex() uint64 {
	return binary.LittleEndian.Uint64(vb[8:])
}

func (vb VertexBlock) CreationCell() *int64 {
	return timestampCell(vb, 16)
}

func (vb VertexBlock) CreationTime() int64 {
	return atomic.LoadInt64(vb.CreationCell())
}

func (vb VertexBlock) Prev() Pointer {
	return Pointer(binary.LittleEndian.Uint64(vb[24:]))
}

func (vb VertexBlock) Length() uint64 {
	return binary.LittleEndian.Uint64(vb[32:])
}

func (vb VertexBlock) Data() []byte {
	l := vb.Length()
	if l == TombstoneLength {
		return nil
	}
	return vb[VertexHeaderSize : VertexHeaderSize+l]
}

// Fill initializes the header and payload of a fresh block. A length of
// TombstoneLength writes no payload.
func (vb VertexBlock) Fill(order uint8, vertex uint64, creation int64, prev Pointer,
	data []byte, length uint64) {

	vb[0] = order
	binary.LittleEndian.PutUint64(vb[8:], vertex)
	atomic.StoreInt64(vb.CreationCell(), creation)
	binary.LittleEndian.PutUint64(vb[24:], uint64(prev))
	binary.LittleEndian.PutUint64(vb[32:], length)
	if length != TombstoneLength {
		copy(vb[VertexHeaderSize:], data[:length])
	}
}

// edgeLabelBlock is the per-vertex directory mapping labels to the head of
// their edge block chain.
type edgeLabelBlock struct {
	order    uint8 // 0
	_        [7]byte
	src      uint64 // 8
	creation int64  // 16
	prev     uint64 // 24
	count    uint64 // 32: atomic entry count
	// entries // 40: label uint16, pad, pointer uint64
}

type EdgeLabelBlock []byte

func (lb EdgeLabelBlock) Order() uint8 {
	return lb[0]
}

func (lb EdgeLabelBlock) Src() uint64 {
	return binary.LittleEndian.Uint64(lb[8:])
}

func (lb EdgeLabelBlock) CreationCell() *int64 {
	return timestampCell(lb, 16)
}

func (lb EdgeLabelBlock) Prev() Pointer {
	return Pointer(binary.LittleEndian.Uint64(lb[24:]))
}

func (lb EdgeLabelBlock) NumEntries() uint64 {
	return atomic.LoadUint64(pointerCell(lb, 32))
}

func (lb EdgeLabelBlock) Capacity() uint64 {
	return uint64(len(lb)-LabelHeaderSize) / LabelEntrySize
}

func (lb EdgeLabelBlock) Fill(order uint8, src uint64, creation int64, prev Pointer) {
	lb[0] = order
	binary.LittleEndian.PutUint64(lb[8:], src)
	atomic.StoreInt64(lb.CreationCell(), creation)
	binary.LittleEndian.PutUint64(lb[24:], uint64(prev))
	atomic.StoreUint64(pointerCell(lb, 32), 0)
}

func (lb EdgeLabelBlock) entryOffset(idx uint64) int {
	return LabelHeaderSize + int(idx)*LabelEntrySize
}

func (lb EdgeLabelBlock) LabelAt(idx uint64) uint16 {
	return binary.LittleEndian.Uint16(lb[lb.entryOffset(idx):])
}

// PointerAt and SetPointerAt race with readers walking the directory; the
// pointer word is accessed atomically.
func (lb EdgeLabelBlock) PointerAt(idx uint64) Pointer {
	return Pointer(atomic.LoadUint64(pointerCell(lb, lb.entryOffset(idx)+8)))
}

func (lb EdgeLabelBlock) SetPointerAt(idx uint64, ptr Pointer) {
	atomic.StoreUint64(pointerCell(lb, lb.entryOffset(idx)+8), uint64(ptr))
}

// Append adds a label entry, returning false when the block is full. The
// count is published after the entry bytes so concurrent readers never see
// a half-written entry.
func (lb EdgeLabelBlock) Append(label uint16, ptr Pointer) bool {
	n := lb.NumEntries()
	if n >= lb.Capacity() {
		return false
	}
	off := lb.entryOffset(n)
	binary.LittleEndian.PutUint16(lb[off:], label)
	atomic.StoreUint64(pointerCell(lb, off+8), uint64(ptr))
	atomic.StoreUint64(pointerCell(lb, 32), n+1)
	return true
}

// edgeBlock holds the edge versions for one (src,label). Entries grow
// downward from the block tail; their variable-length data grows upward
// from the end of the header (after any bloom filter region).
type edgeBlock struct {
	order     uint8 // 0
	_         [7]byte
	src       uint64 // 8
	creation  int64  // 16
	committed int64  // 24
	prev      uint64 // 32
	packed    uint64 // 40: atomic numEntries<<32 | dataLength
	// bloom   // 48, bloomBytes(order) bytes
	// data    // 48 + bloomBytes, grows up
	// entries // tail, grows down, EdgeEntrySize each
}

type EdgeBlock []byte

func (eb EdgeBlock) Order() uint8 {
	return eb[0]
}

func (eb EdgeBlock) Src() uint64 {
	return binary.LittleEndian.Uint64(eb[8:])
}

func (eb EdgeBlock) CreationCell() *int64 {
	return timestampCell(eb, 16)
}

func (eb EdgeBlock) CommittedCell() *int64 {
	return timestampCell(eb, 24)
}

func (eb EdgeBlock) CommittedTime() int64 {
	return atomic.LoadInt64(eb.CommittedCell())
}

func (eb EdgeBlock) SetCommittedTime(ts int64) {
	atomic.StoreInt64(eb.CommittedCell(), ts)
}

func (eb EdgeBlock) Prev() Pointer {
	return Pointer(binary.LittleEndian.Uint64(eb[32:]))
}

func (eb EdgeBlock) Fill(order uint8, src uint64, creation int64, prev Pointer,
	committed int64) {

	eb[0] = order
	binary.LittleEndian.PutUint64(eb[8:], src)
	atomic.StoreInt64(eb.CreationCell(), creation)
	atomic.StoreInt64(eb.CommittedCell(), committed)
	binary.LittleEndian.PutUint64(eb[32:], uint64(prev))
	atomic.StoreUint64(pointerCell(eb, 40), 0)
	bloom := eb.Bloom()
	for idx := range bloom {
		bloom[idx] = 0
	}
}

// NumEntriesDataLength returns the published entry count and data length
// as a single atomic snapshot.
func (eb EdgeBlock) NumEntriesDataLength() (uint64, uint64) {
	packed := atomic.LoadUint64(pointerCell(eb, 40))
	return packed >> 32, packed & 0xffffffff
}

func (eb EdgeBlock) SetNumEntriesDataLength(numEntries, dataLength uint64) {
	atomic.StoreUint64(pointerCell(eb, 40), numEntries<<32|dataLength)
}

func (eb EdgeBlock) dataBase() int {
	return EdgeHeaderSize + bloomBytes(eb.Order())
}

// EntryAt returns the idx'th entry in insertion order; entry zero is the
// oldest and sits at the very end of the block.
func (eb EdgeBlock) EntryAt(idx uint64) EdgeEntry {
	off := len(eb) - int(idx+1)*EdgeEntrySize
	return EdgeEntry(eb[off : off+EdgeEntrySize])
}

// DataAt returns the payload of the idx'th entry given the byte offset of
// its data from the data base.
func (eb EdgeBlock) DataAt(dataOffset, length uint64) []byte {
	off := eb.dataBase() + int(dataOffset)
	return eb[off : off+int(length)]
}

// HasSpace reports whether an entry with the given payload length fits
// alongside numEntries existing entries and dataLength bytes of data.
func (eb EdgeBlock) HasSpace(length, numEntries, dataLength uint64) bool {
	used := uint64(eb.dataBase()) + dataLength + (numEntries+1)*EdgeEntrySize
	return used+length <= uint64(len(eb))
}

// AppendWithoutUpdateSize writes an entry and its data without publishing
// the packed counter; the owning transaction installs the counter at
// commit. The returned entry view is stable for the life of the block.
func (eb EdgeBlock) AppendWithoutUpdateSize(entry EntryFields, data []byte,
	numEntries, dataLength uint64) EdgeEntry {

	ee := eb.EntryAt(numEntries)
	ee.fill(entry)
	copy(eb[eb.dataBase()+int(dataLength):], data[:entry.Length])
	eb.Bloom().Add(entry.Dst)
	return ee
}

// Append writes an entry and immediately publishes the new counter; used
// on the copy-forward path when growing a block and by batch loading.
func (eb EdgeBlock) Append(entry EntryFields, data []byte) EdgeEntry {
	numEntries, dataLength := eb.NumEntriesDataLength()
	ee := eb.AppendWithoutUpdateSize(entry, data, numEntries, dataLength)
	eb.SetNumEntriesDataLength(numEntries+1, dataLength+entry.Length)
	return ee
}

// EntryFields is the unpacked form of an edge entry used to stage appends.
type EntryFields struct {
	Length   uint64
	Dst      uint64
	Creation int64
	Deletion int64
	Version  int64
}

// EdgeEntry is a 40 byte slot within an edge block.
type edgeEntry struct {
	length   uint64 // 0
	dst      uint64 // 8
	creation int64  // 16
	deletion int64  // 24
	version  int64  // 32
}

type EdgeEntry []byte

func (ee EdgeEntry) Length() uint64 {
	return binary.LittleEndian.Uint64(ee[0:])
}

func (ee EdgeEntry) Dst() uint64 {
	return binary.LittleEndian.Uint64(ee[8:])
}

func (ee EdgeEntry) CreationCell() *int64 {
	return timestampCell(ee, 16)
}

func (ee EdgeEntry) CreationTime() int64 {
	return atomic.LoadInt64(ee.CreationCell())
}

func (ee EdgeEntry) DeletionCell() *int64 {
	return timestampCell(ee, 24)
}

func (ee EdgeEntry) DeletionTime() int64 {
	return atomic.LoadInt64(ee.DeletionCell())
}

func (ee EdgeEntry) SetDeletionTime(ts int64) {
	atomic.StoreInt64(ee.DeletionCell(), ts)
}

func (ee EdgeEntry) VersionCell() *int64 {
	return timestampCell(ee, 32)
}

func (ee EdgeEntry) Version() int64 {
	return atomic.LoadInt64(ee.VersionCell())
}

func (ee EdgeEntry) fill(f EntryFields) {
	binary.LittleEndian.PutUint64(ee[0:], f.Length)
	binary.LittleEndian.PutUint64(ee[8:], f.Dst)
	atomic.StoreInt64(ee.CreationCell(), f.Creation)
	atomic.StoreInt64(ee.DeletionCell(), f.Deletion)
	atomic.StoreInt64(ee.VersionCell(), f.Version)
}

func (ee EdgeEntry) Fields() EntryFields {
	return EntryFields{
		Length:   ee.Length(),
		Dst:      ee.Dst(),
		Creation: ee.CreationTime(),
		Deletion: ee.DeletionTime(),
		Version:  ee.Version(),
	}
}
