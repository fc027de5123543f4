package block

import (
	"sync"
	"testing"
)

func TestSizeToOrder(t *testing.T) {
	cases := []struct {
		size  uint64
		order uint8
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{7, 3},
		{8, 3},
		{9, 4},
		{63, 6},
		{64, 6},
		{65, 7},
		{1 << 20, 20},
		{1<<20 + 1, 21},
	}

	for _, c := range cases {
		order := SizeToOrder(c.size)
		if order != c.order {
			t.Errorf("SizeToOrder(%d) got %d want %d", c.size, order, c.order)
		}
	}

	for k := uint8(1); k < 40; k++ {
		if SizeToOrder(1<<k) != k {
			t.Errorf("SizeToOrder(1<<%d) got %d want %d", k, SizeToOrder(1<<k), k)
		}
		if SizeToOrder(1<<k+1) != k+1 {
			t.Errorf("SizeToOrder(1<<%d+1) got %d want %d", k, SizeToOrder(1<<k+1), k+1)
		}
	}
}

func TestAllocFree(t *testing.T) {
	bm, err := NewManager(1 << 20)
	if err != nil {
		t.Fatal(err)
	}

	ptr, err := bm.Alloc(6)
	if err != nil {
		t.Fatal(err)
	}
	if ptr == NullPointer {
		t.Fatal("Alloc(6) returned NullPointer")
	}
	if uint64(ptr)%8 != 0 {
		t.Errorf("Alloc(6) got pointer %d; want 8 byte alignment", ptr)
	}

	ptr2, err := bm.Alloc(6)
	if err != nil {
		t.Fatal(err)
	}
	if ptr2 == ptr {
		t.Errorf("Alloc(6) returned %d twice", ptr)
	}

	bm.Free(ptr, 6)
	ptr3, err := bm.Alloc(6)
	if err != nil {
		t.Fatal(err)
	}
	if ptr3 != ptr {
		t.Errorf("Alloc(6) after Free got %d want recycled %d", ptr3, ptr)
	}

	counts := bm.FreeCounts()
	if len(counts) != 0 {
		t.Errorf("FreeCounts() got %v want empty", counts)
	}
}

func TestAllocMinOrder(t *testing.T) {
	bm, err := NewManager(1 << 16)
	if err != nil {
		t.Fatal(err)
	}

	ptr, err := bm.Alloc(0)
	if err != nil {
		t.Fatal(err)
	}
	ptr2, err := bm.Alloc(0)
	if err != nil {
		t.Fatal(err)
	}
	if uint64(ptr2)-uint64(ptr) < 8 {
		t.Errorf("Alloc(0) blocks overlap: %d and %d", ptr, ptr2)
	}
}

func TestAllocExhausted(t *testing.T) {
	bm, err := NewManager(256)
	if err != nil {
		t.Fatal(err)
	}

	_, err = bm.Alloc(7)
	if err != nil {
		t.Fatal(err)
	}
	_, err = bm.Alloc(7)
	if err == nil {
		t.Error("Alloc(7) on a full arena did not fail")
	}
}

func TestBlockSelfDescribing(t *testing.T) {
	bm, err := NewManager(1 << 20)
	if err != nil {
		t.Fatal(err)
	}

	ptr, err := bm.Alloc(8)
	if err != nil {
		t.Fatal(err)
	}
	vb := VertexBlock(bm.Raw(ptr, 1<<8))
	vb.Fill(8, 42, 7, NullPointer, []byte("hello"), 5)

	b := bm.Block(ptr)
	if len(b) != 1<<8 {
		t.Errorf("Block(%d) got %d bytes want %d", ptr, len(b), 1<<8)
	}
	if bm.Block(NullPointer) != nil {
		t.Error("Block(NullPointer) got bytes want nil")
	}
}

func TestAllocConcurrent(t *testing.T) {
	bm, err := NewManager(1 << 24)
	if err != nil {
		t.Fatal(err)
	}

	const perThread = 1000
	var wg sync.WaitGroup
	ptrs := make([][]Pointer, 8)
	for idx := range ptrs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for n := 0; n < perThread; n++ {
				ptr, err := bm.Alloc(5)
				if err != nil {
					t.Error(err)
					return
				}
				ptrs[idx] = append(ptrs[idx], ptr)
			}
		}(idx)
	}
	wg.Wait()

	seen := map[Pointer]struct{}{}
	for _, list := range ptrs {
		for _, ptr := range list {
			if _, dup := seen[ptr]; dup {
				t.Fatalf("Alloc(5) returned %d to two callers", ptr)
			}
			seen[ptr] = struct{}{}
		}
	}
}
