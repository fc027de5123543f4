package wal

import (
	"encoding/binary"
	"errors"

	"go.etcd.io/bbolt"
)

var (
	epochsBucket = []byte{'e', 'p', 'o', 'c', 'h', 's'}
)

type bboltStore struct {
	db *bbolt.DB
}

func MakeBBoltStore(path string) (Store, error) {
	db, err := bbolt.Open(path, 0644, nil)
	if err != nil {
		return nil, err
	}
	// Dangerous, but about 100x faster.
	db.NoFreelistSync = true
	db.NoSync = true

	err = db.Update(
		func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(epochsBucket)
			return err
		})
	if err != nil {
		db.Close()
		return nil, err
	}

	return bboltStore{
		db: db,
	}, nil
}

func (bs bboltStore) Append(epoch int64, buf []byte) error {
	return bs.db.Update(
		func(tx *bbolt.Tx) error {
			bkt := tx.Bucket(epochsBucket)
			if bkt == nil {
				return errors.New("wal: missing epochs bucket")
			}
			return bkt.Put(epochKey(epoch), buf)
		})
}

func (bs bboltStore) Scan(fn func(epoch int64, buf []byte) error) error {
	return bs.db.View(
		func(tx *bbolt.Tx) error {
			bkt := tx.Bucket(epochsBucket)
			if bkt == nil {
				return errors.New("wal: missing epochs bucket")
			}
			cr := bkt.Cursor()
			for key, val := cr.First(); key != nil; key, val = cr.Next() {
				err := fn(int64(binary.BigEndian.Uint64(key)), val)
				if err != nil {
					return err
				}
			}
			return nil
		})
}

func (bs bboltStore) Close() error {
	return bs.db.Close()
}
