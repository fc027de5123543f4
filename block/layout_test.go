package block

import (
	"bytes"
	"testing"
)

func TestVertexBlock(t *testing.T) {
	bm, err := NewManager(1 << 20)
	if err != nil {
		t.Fatal(err)
	}

	data := []byte("payload bytes")
	order := SizeToOrder(uint64(VertexHeaderSize + len(data)))
	ptr, err := bm.Alloc(order)
	if err != nil {
		t.Fatal(err)
	}

	vb := VertexBlock(bm.Raw(ptr, 1<<order))
	vb.Fill(order, 17, -3, Pointer(128), data, uint64(len(data)))

	if vb.Order() != order {
		t.Errorf("Order() got %d want %d", vb.Order(), order)
	}
	if vb.Vertex() != 17 {
		t.Errorf("Vertex() got %d want 17", vb.Vertex())
	}
	if vb.CreationTime() != -3 {
		t.Errorf("CreationTime() got %d want -3", vb.CreationTime())
	}
	if vb.Prev() != Pointer(128) {
		t.Errorf("Prev() got %d want 128", vb.Prev())
	}
	if !bytes.Equal(vb.Data(), data) {
		t.Errorf("Data() got %q want %q", vb.Data(), data)
	}

	tomb := VertexBlock(bm.Raw(ptr, 1<<order))
	tomb.Fill(order, 17, -3, NullPointer, nil, TombstoneLength)
	if tomb.Length() != TombstoneLength {
		t.Errorf("Length() got %d want tombstone", tomb.Length())
	}
	if tomb.Data() != nil {
		t.Errorf("Data() of tombstone got %q want nil", tomb.Data())
	}
}

func TestEdgeLabelBlock(t *testing.T) {
	bm, err := NewManager(1 << 20)
	if err != nil {
		t.Fatal(err)
	}

	// Room for exactly two entries: the view covers the header and two
	// slots, not the whole power-of-two block.
	size := uint64(LabelHeaderSize + 2*LabelEntrySize)
	order := SizeToOrder(size)
	ptr, err := bm.Alloc(order)
	if err != nil {
		t.Fatal(err)
	}

	lb := EdgeLabelBlock(bm.Raw(ptr, size))
	lb.Fill(order, 9, 1, NullPointer)

	if lb.NumEntries() != 0 {
		t.Errorf("NumEntries() got %d want 0", lb.NumEntries())
	}
	if !lb.Append(1, Pointer(100)) {
		t.Fatal("Append(1) failed on an empty block")
	}
	if !lb.Append(2, Pointer(200)) {
		t.Fatal("Append(2) failed with one free slot")
	}
	if lb.Append(3, Pointer(300)) {
		t.Error("Append(3) succeeded on a full block")
	}

	if lb.LabelAt(0) != 1 || lb.PointerAt(0) != Pointer(100) {
		t.Errorf("entry 0 got (%d, %d) want (1, 100)", lb.LabelAt(0), lb.PointerAt(0))
	}
	lb.SetPointerAt(0, Pointer(150))
	if lb.PointerAt(0) != Pointer(150) {
		t.Errorf("PointerAt(0) got %d want 150", lb.PointerAt(0))
	}
}

func TestEdgeBlockAppend(t *testing.T) {
	bm, err := NewManager(1 << 20)
	if err != nil {
		t.Fatal(err)
	}

	order := uint8(9)
	ptr, err := bm.Alloc(order)
	if err != nil {
		t.Fatal(err)
	}

	eb := EdgeBlock(bm.Raw(ptr, 1<<order))
	eb.Fill(order, 3, 5, Pointer(64), 5)

	if eb.Src() != 3 || eb.CommittedTime() != 5 || eb.Prev() != Pointer(64) {
		t.Fatalf("header got (%d, %d, %d) want (3, 5, 64)", eb.Src(),
			eb.CommittedTime(), eb.Prev())
	}

	first := []byte("first")
	second := []byte("second!")
	eb.Append(EntryFields{
		Length:   uint64(len(first)),
		Dst:      10,
		Creation: 5,
		Deletion: -1 << 62,
		Version:  1,
	}, first)
	eb.Append(EntryFields{
		Length:   uint64(len(second)),
		Dst:      11,
		Creation: 5,
		Deletion: -1 << 62,
		Version:  2,
	}, second)

	numEntries, dataLength := eb.NumEntriesDataLength()
	if numEntries != 2 || dataLength != uint64(len(first)+len(second)) {
		t.Fatalf("NumEntriesDataLength() got (%d, %d) want (2, %d)", numEntries,
			dataLength, len(first)+len(second))
	}

	e0 := eb.EntryAt(0)
	if e0.Dst() != 10 || e0.Version() != 1 {
		t.Errorf("EntryAt(0) got (%d, %d) want (10, 1)", e0.Dst(), e0.Version())
	}
	if !bytes.Equal(eb.DataAt(0, e0.Length()), first) {
		t.Errorf("DataAt(0) got %q want %q", eb.DataAt(0, e0.Length()), first)
	}
	e1 := eb.EntryAt(1)
	if !bytes.Equal(eb.DataAt(e0.Length(), e1.Length()), second) {
		t.Errorf("DataAt(1) got %q want %q", eb.DataAt(e0.Length(), e1.Length()), second)
	}
}

func TestEdgeBlockHasSpace(t *testing.T) {
	bm, err := NewManager(1 << 20)
	if err != nil {
		t.Fatal(err)
	}

	order := uint8(7) // 128 bytes: header 48 + one entry 40 leaves 40 for data
	ptr, err := bm.Alloc(order)
	if err != nil {
		t.Fatal(err)
	}
	eb := EdgeBlock(bm.Raw(ptr, 1<<order))
	eb.Fill(order, 0, 1, NullPointer, 1)

	if !eb.HasSpace(40, 0, 0) {
		t.Error("HasSpace(40, 0, 0) got false want true")
	}
	if eb.HasSpace(41, 0, 0) {
		t.Error("HasSpace(41, 0, 0) got true want false")
	}
	if eb.HasSpace(1, 1, 40) {
		t.Error("HasSpace(1, 1, 40) got true want false")
	}
}

func TestOrderForEdgeBlock(t *testing.T) {
	// Small blocks carry no bloom filter region.
	if order := OrderForEdgeBlock(100); order != 7 {
		t.Errorf("OrderForEdgeBlock(100) got %d want 7", order)
	}

	// At the threshold the reservation fits within the block.
	size := uint64(1) << BloomFilterThreshold
	order := OrderForEdgeBlock(size)
	eb := EdgeBlock(make([]byte, 1<<order))
	eb.Fill(order, 0, 1, NullPointer, 1)
	bf := eb.Bloom()
	if !bf.Valid() {
		t.Fatalf("OrderForEdgeBlock(%d) = %d: no bloom region", size, order)
	}
	if uint64(1)<<order < size+uint64(len(bf)) {
		t.Errorf("order %d cannot hold %d payload plus %d bloom bytes", order, size,
			len(bf))
	}
}

func TestBloomFilter(t *testing.T) {
	order := BloomFilterThreshold
	eb := EdgeBlock(make([]byte, 1<<order))
	eb.Fill(order, 0, 1, NullPointer, 1)

	bf := eb.Bloom()
	if !bf.Valid() {
		t.Fatal("Bloom() not valid above the threshold")
	}

	for dst := uint64(0); dst < 100; dst += 2 {
		bf.Add(dst)
	}
	for dst := uint64(0); dst < 100; dst += 2 {
		if !bf.MayContain(dst) {
			t.Errorf("MayContain(%d) got false for an added dst", dst)
		}
	}

	misses := 0
	for dst := uint64(1000); dst < 2000; dst++ {
		if !bf.MayContain(dst) {
			misses += 1
		}
	}
	if misses == 0 {
		t.Error("MayContain never said no for 1000 absent dsts")
	}

	small := EdgeBlock(make([]byte, 1<<10))
	small.Fill(10, 0, 1, NullPointer, 1)
	if small.Bloom().Valid() {
		t.Error("Bloom() valid below the threshold")
	}
	if !small.Bloom().MayContain(7) {
		t.Error("invalid bloom filter must match everything")
	}
}
