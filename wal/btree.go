package wal

import (
	"sync"

	"github.com/google/btree"
)

type btreeStore struct {
	mutex sync.Mutex
	tree  *btree.BTree
}

type btreeItem struct {
	epoch int64
	buf   []byte
}

func (bi btreeItem) Less(item btree.Item) bool {
	return bi.epoch < item.(btreeItem).epoch
}

// MakeBTreeStore returns an in-memory store; it is the default when a
// graph is opened without a durable WAL path.
func MakeBTreeStore() Store {
	return &btreeStore{
		tree: btree.New(16),
	}
}

func (bs *btreeStore) Append(epoch int64, buf []byte) error {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()

	bs.tree.ReplaceOrInsert(btreeItem{
		epoch: epoch,
		buf:   append(make([]byte, 0, len(buf)), buf...),
	})
	return nil
}

func (bs *btreeStore) Scan(fn func(epoch int64, buf []byte) error) error {
	bs.mutex.Lock()
	tree := bs.tree.Clone()
	bs.mutex.Unlock()

	var err error
	tree.Ascend(
		func(item btree.Item) bool {
			bi := item.(btreeItem)
			err = fn(bi.epoch, bi.buf)
			return err == nil
		})
	return err
}

func (bs *btreeStore) Close() error {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()

	bs.tree.Clear(false)
	return nil
}
