package wal_test

import (
	"bytes"
	"testing"

	"github.com/leftmike/graft/wal"
)

func TestBufferDecode(t *testing.T) {
	var buf wal.Buffer
	buf.AppendNewVertex(7)
	buf.AppendPutVertex(7, []byte("payload"))
	buf.AppendDelVertex(8, true)
	buf.AppendPutEdge(7, 3, 9, false, []byte("edge data"))
	buf.AppendPutEdgeVersion(7, 3, 10, true, -42, []byte("versioned"))
	buf.AppendDelEdge(7, 3, 9)

	if buf.NumOps() != 6 {
		t.Fatalf("NumOps() got %d want 6", buf.NumOps())
	}

	records, err := wal.Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode() failed with %s", err)
	}

	want := []wal.Record{
		{Op: wal.OpNewVertex, Src: 7},
		{Op: wal.OpPutVertex, Src: 7, Data: []byte("payload")},
		{Op: wal.OpDelVertex, Src: 8, Recycle: true},
		{Op: wal.OpPutEdge, Src: 7, Label: 3, Dst: 9, Data: []byte("edge data")},
		{Op: wal.OpPutEdgeVersion, Src: 7, Label: 3, Dst: 10, ForceInsert: true,
			Version: -42, Data: []byte("versioned")},
		{Op: wal.OpDelEdge, Src: 7, Label: 3, Dst: 9},
	}

	if len(records) != len(want) {
		t.Fatalf("Decode() got %d records want %d", len(records), len(want))
	}
	for idx, rec := range records {
		w := want[idx]
		if rec.Op != w.Op || rec.Src != w.Src || rec.Label != w.Label ||
			rec.Dst != w.Dst || rec.Recycle != w.Recycle ||
			rec.ForceInsert != w.ForceInsert || rec.Version != w.Version ||
			!bytes.Equal(rec.Data, w.Data) {

			t.Errorf("record %d got %+v want %+v", idx, rec, w)
		}
	}
}

func TestBufferReset(t *testing.T) {
	var buf wal.Buffer
	buf.AppendNewVertex(1)
	buf.Reset()

	if buf.NumOps() != 0 {
		t.Errorf("NumOps() after Reset got %d want 0", buf.NumOps())
	}
	records, err := wal.Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode() of empty buffer failed with %s", err)
	}
	if len(records) != 0 {
		t.Errorf("Decode() of empty buffer got %d records", len(records))
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := [][]byte{
		nil,
		{1, 0, 0},
		{1, 0, 0, 0},                            // one op, no record
		{1, 0, 0, 0, 99},                        // unknown op type
		{1, 0, 0, 0, 1, 7},                      // truncated NewVertex
		{2, 0, 0, 0, 1, 7, 0, 0, 0, 0, 0, 0, 0}, // one of two records
	}

	for _, c := range cases {
		if _, err := wal.Decode(c); err == nil {
			t.Errorf("Decode(%v) did not fail", c)
		}
	}

	var buf wal.Buffer
	buf.AppendNewVertex(1)
	b := buf.Bytes()
	if _, err := wal.Decode(append(b, 0)); err == nil {
		t.Error("Decode() with trailing bytes did not fail")
	}
}
