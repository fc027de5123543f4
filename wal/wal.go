package wal

import (
	"encoding/binary"
	"fmt"
)

// The write-ahead log is an append-only sequence of per-transaction
// buffers, each framed as a uint32 operation count followed by that many
// records. All integers are little endian; variable length payloads are
// prefixed with a uint32 length.

type OpType byte

const (
	OpNewVertex OpType = iota + 1
	OpPutVertex
	OpDelVertex
	OpPutEdge
	OpPutEdgeVersion
	OpDelEdge
)

func (op OpType) String() string {
	switch op {
	case OpNewVertex:
		return "NewVertex"
	case OpPutVertex:
		return "PutVertex"
	case OpDelVertex:
		return "DelVertex"
	case OpPutEdge:
		return "PutEdge"
	case OpPutEdgeVersion:
		return "PutEdgeVersion"
	case OpDelEdge:
		return "DelEdge"
	}
	return fmt.Sprintf("OpType(%d)", byte(op))
}

// Buffer accumulates the WAL records of one transaction. The zero value is
// ready to use.
type Buffer struct {
	numOps uint32
	data   []byte
}

func (b *Buffer) NumOps() uint32 {
	return b.numOps
}

// Bytes frames the buffer as (numOps, records...). The returned slice is
// freshly allocated; the buffer may keep growing afterwards.
func (b *Buffer) Bytes() []byte {
	buf := make([]byte, 4, 4+len(b.data))
	binary.LittleEndian.PutUint32(buf, b.numOps)
	return append(buf, b.data...)
}

func (b *Buffer) Reset() {
	b.numOps = 0
	b.data = b.data[:0]
}

func (b *Buffer) appendUint64(u64 uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], u64)
	b.data = append(b.data, buf[:]...)
}

func (b *Buffer) appendUint16(u16 uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], u16)
	b.data = append(b.data, buf[:]...)
}

func (b *Buffer) appendBool(f bool) {
	if f {
		b.data = append(b.data, 1)
	} else {
		b.data = append(b.data, 0)
	}
}

func (b *Buffer) appendBytes(data []byte) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(len(data)))
	b.data = append(b.data, buf[:]...)
	b.data = append(b.data, data...)
}

func (b *Buffer) AppendNewVertex(vertex uint64) {
	b.numOps += 1
	b.data = append(b.data, byte(OpNewVertex))
	b.appendUint64(vertex)
}

func (b *Buffer) AppendPutVertex(vertex uint64, data []byte) {
	b.numOps += 1
	b.data = append(b.data, byte(OpPutVertex))
	b.appendUint64(vertex)
	b.appendBytes(data)
}

func (b *Buffer) AppendDelVertex(vertex uint64, recycle bool) {
	b.numOps += 1
	b.data = append(b.data, byte(OpDelVertex))
	b.appendUint64(vertex)
	b.appendBool(recycle)
}

func (b *Buffer) AppendPutEdge(src uint64, label uint16, dst uint64, forceInsert bool,
	data []byte) {

	b.numOps += 1
	b.data = append(b.data, byte(OpPutEdge))
	b.appendUint64(src)
	b.appendUint16(label)
	b.appendUint64(dst)
	b.appendBool(forceInsert)
	b.appendBytes(data)
}

func (b *Buffer) AppendPutEdgeVersion(src uint64, label uint16, dst uint64,
	forceInsert bool, version int64, data []byte) {

	b.numOps += 1
	b.data = append(b.data, byte(OpPutEdgeVersion))
	b.appendUint64(src)
	b.appendUint16(label)
	b.appendUint64(dst)
	b.appendBool(forceInsert)
	b.appendUint64(uint64(version))
	b.appendBytes(data)
}

func (b *Buffer) AppendDelEdge(src uint64, label uint16, dst uint64) {
	b.numOps += 1
	b.data = append(b.data, byte(OpDelEdge))
	b.appendUint64(src)
	b.appendUint16(label)
	b.appendUint64(dst)
}

// Record is the decoded form of one WAL operation. Vertex operations use
// Src as the vertex id.
type Record struct {
	Op          OpType
	Src         uint64
	Label       uint16
	Dst         uint64
	Recycle     bool
	ForceInsert bool
	Version     int64
	Data        []byte
}

type decoder struct {
	buf []byte
}

func (d *decoder) uint64() (uint64, error) {
	if len(d.buf) < 8 {
		return 0, fmt.Errorf("wal: truncated record: %d bytes remain", len(d.buf))
	}
	u64 := binary.LittleEndian.Uint64(d.buf)
	d.buf = d.buf[8:]
	return u64, nil
}

func (d *decoder) uint16() (uint16, error) {
	if len(d.buf) < 2 {
		return 0, fmt.Errorf("wal: truncated record: %d bytes remain", len(d.buf))
	}
	u16 := binary.LittleEndian.Uint16(d.buf)
	d.buf = d.buf[2:]
	return u16, nil
}

func (d *decoder) bool() (bool, error) {
	if len(d.buf) < 1 {
		return false, fmt.Errorf("wal: truncated record")
	}
	f := d.buf[0] != 0
	d.buf = d.buf[1:]
	return f, nil
}

func (d *decoder) bytes() ([]byte, error) {
	if len(d.buf) < 4 {
		return nil, fmt.Errorf("wal: truncated record: %d bytes remain", len(d.buf))
	}
	l := binary.LittleEndian.Uint32(d.buf)
	d.buf = d.buf[4:]
	if uint32(len(d.buf)) < l {
		return nil, fmt.Errorf("wal: truncated payload: want %d have %d", l, len(d.buf))
	}
	data := d.buf[:l:l]
	d.buf = d.buf[l:]
	return data, nil
}

// Decode parses a framed buffer produced by Buffer.Bytes.
func Decode(buf []byte) ([]Record, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("wal: buffer too short: %d bytes", len(buf))
	}
	numOps := binary.LittleEndian.Uint32(buf)
	d := decoder{buf: buf[4:]}

	records := make([]Record, 0, numOps)
	for idx := uint32(0); idx < numOps; idx++ {
		if len(d.buf) < 1 {
			return nil, fmt.Errorf("wal: missing record %d of %d", idx+1, numOps)
		}
		rec := Record{Op: OpType(d.buf[0])}
		d.buf = d.buf[1:]

		var err error
		switch rec.Op {
		case OpNewVertex:
			rec.Src, err = d.uint64()
		case OpPutVertex:
			if rec.Src, err = d.uint64(); err == nil {
				rec.Data, err = d.bytes()
			}
		case OpDelVertex:
			if rec.Src, err = d.uint64(); err == nil {
				rec.Recycle, err = d.bool()
			}
		case OpPutEdge, OpPutEdgeVersion:
			err = d.decodeEdge(&rec)
		case OpDelEdge:
			if rec.Src, err = d.uint64(); err == nil {
				if rec.Label, err = d.uint16(); err == nil {
					rec.Dst, err = d.uint64()
				}
			}
		default:
			return nil, fmt.Errorf("wal: unknown op type: %d", byte(rec.Op))
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if len(d.buf) != 0 {
		return nil, fmt.Errorf("wal: %d trailing bytes after %d records", len(d.buf), numOps)
	}
	return records, nil
}

func (d *decoder) decodeEdge(rec *Record) error {
	var err error
	if rec.Src, err = d.uint64(); err != nil {
		return err
	}
	if rec.Label, err = d.uint16(); err != nil {
		return err
	}
	if rec.Dst, err = d.uint64(); err != nil {
		return err
	}
	if rec.ForceInsert, err = d.bool(); err != nil {
		return err
	}
	if rec.Op == OpPutEdgeVersion {
		u64, err := d.uint64()
		if err != nil {
			return err
		}
		rec.Version = int64(u64)
	}
	rec.Data, err = d.bytes()
	return err
}
