package wal

import (
	"encoding/binary"
	"os"

	"github.com/dgraph-io/badger"
	log "github.com/sirupsen/logrus"
)

type badgerStore struct {
	db *badger.DB
}

func epochKey(epoch int64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(epoch))
	return key[:]
}

func MakeBadgerStore(dataDir string, logger *log.Logger) (Store, error) {
	os.MkdirAll(dataDir, 0755)

	opts := badger.DefaultOptions(dataDir)
	opts = opts.WithBypassLockGuard(true)
	opts = opts.WithLogger(logger)
	opts = opts.WithSyncWrites(false)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return badgerStore{
		db: db,
	}, nil
}

func (bs badgerStore) Append(epoch int64, buf []byte) error {
	return bs.db.Update(
		func(tx *badger.Txn) error {
			return tx.Set(epochKey(epoch), buf)
		})
}

func (bs badgerStore) Scan(fn func(epoch int64, buf []byte) error) error {
	return bs.db.View(
		func(tx *badger.Txn) error {
			it := tx.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				item := it.Item()
				epoch := int64(binary.BigEndian.Uint64(item.Key()))
				err := item.Value(
					func(val []byte) error {
						return fn(epoch, val)
					})
				if err != nil {
					return err
				}
			}
			return nil
		})
}

func (bs badgerStore) Close() error {
	return bs.db.Close()
}
