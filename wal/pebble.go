package wal

import (
	"encoding/binary"
	"os"

	"github.com/cockroachdb/pebble"
	log "github.com/sirupsen/logrus"
)

type pebbleStore struct {
	db *pebble.DB
}

func MakePebbleStore(dataDir string, logger *log.Logger) (Store, error) {
	os.MkdirAll(dataDir, 0755)

	db, err := pebble.Open(dataDir, &pebble.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	return pebbleStore{
		db: db,
	}, nil
}

func (ps pebbleStore) Append(epoch int64, buf []byte) error {
	return ps.db.Set(epochKey(epoch), buf, pebble.NoSync)
}

func (ps pebbleStore) Scan(fn func(epoch int64, buf []byte) error) error {
	snap := ps.db.NewSnapshot()
	defer snap.Close()

	it := snap.NewIter(nil)
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		err := fn(int64(binary.BigEndian.Uint64(it.Key())), it.Value())
		if err != nil {
			return err
		}
	}
	return nil
}

func (ps pebbleStore) Close() error {
	return ps.db.Close()
}
