// Package test has store conformance tests shared by every WAL store
// backend.
package test

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/leftmike/graft/wal"
)

func bufferFor(epoch int64) []byte {
	var buf wal.Buffer
	buf.AppendPutVertex(uint64(epoch), []byte(fmt.Sprintf("epoch-%d", epoch)))
	return buf.Bytes()
}

// RunStoreTest appends a run of epochs and checks that Scan returns them
// all, ascending, with their payloads intact.
func RunStoreTest(t *testing.T, st wal.Store) {
	t.Helper()

	const epochs = 10

	for epoch := int64(1); epoch <= epochs; epoch++ {
		err := st.Append(epoch, bufferFor(epoch))
		if err != nil {
			t.Fatalf("Append(%d) failed with %s", epoch, err)
		}
	}

	var got []int64
	err := st.Scan(
		func(epoch int64, buf []byte) error {
			got = append(got, epoch)
			if !bytes.Equal(buf, bufferFor(epoch)) {
				t.Errorf("Scan(%d) payload mismatch", epoch)
			}
			records, err := wal.Decode(buf)
			if err != nil {
				return err
			}
			if len(records) != 1 || records[0].Src != uint64(epoch) {
				t.Errorf("Scan(%d) got records %+v", epoch, records)
			}
			return nil
		})
	if err != nil {
		t.Fatalf("Scan() failed with %s", err)
	}

	if len(got) != epochs {
		t.Fatalf("Scan() got %d epochs want %d", len(got), epochs)
	}
	for idx, epoch := range got {
		if epoch != int64(idx+1) {
			t.Errorf("Scan() epoch %d got %d want %d", idx, epoch, idx+1)
		}
	}
}

// RunConcurrentAppendTest checks that concurrent appends of distinct
// epochs all survive.
func RunConcurrentAppendTest(t *testing.T, st wal.Store) {
	t.Helper()

	const epochs = 64

	var wg sync.WaitGroup
	for epoch := int64(1); epoch <= epochs; epoch++ {
		wg.Add(1)
		go func(epoch int64) {
			defer wg.Done()
			err := st.Append(epoch, bufferFor(epoch))
			if err != nil {
				t.Errorf("Append(%d) failed with %s", epoch, err)
			}
		}(epoch)
	}
	wg.Wait()

	count := 0
	err := st.Scan(
		func(epoch int64, buf []byte) error {
			count += 1
			return nil
		})
	if err != nil {
		t.Fatalf("Scan() failed with %s", err)
	}
	if count != epochs {
		t.Errorf("Scan() got %d epochs want %d", count, epochs)
	}
}
