package graph

import (
	"encoding/binary"
	"errors"
	"io"

	"go.etcd.io/bbolt"
)

// The block-storage path names a small bbolt file holding the graph's
// checkpoint state: the vertex id high-water mark, the recycled id queue,
// and the visible epoch at the last clean close. The engine treats the
// file as opaque; a compactor may add its own buckets.

var (
	metaBucket = []byte{'m', 'e', 't', 'a'}

	nextVertexKey   = []byte("next-vertex")
	visibleEpochKey = []byte("visible-epoch")
	recycledKey     = []byte("recycled")
)

type metaStore struct {
	db *bbolt.DB
}

type metaState struct {
	nextVertex   uint64
	visibleEpoch Timestamp
	recycled     []VertexID
}

func openMetaStore(path string) (*metaStore, error) {
	db, err := bbolt.Open(path, 0644, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(
		func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(metaBucket)
			return err
		})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &metaStore{
		db: db,
	}, nil
}

func (ms *metaStore) load() (metaState, error) {
	var state metaState
	err := ms.db.View(
		func(tx *bbolt.Tx) error {
			bkt := tx.Bucket(metaBucket)
			if bkt == nil {
				return errors.New("graph: missing meta bucket")
			}

			if val := bkt.Get(nextVertexKey); len(val) == 8 {
				state.nextVertex = binary.BigEndian.Uint64(val)
			} else if val != nil {
				return io.ErrUnexpectedEOF
			}
			if val := bkt.Get(visibleEpochKey); len(val) == 8 {
				state.visibleEpoch = Timestamp(binary.BigEndian.Uint64(val))
			}
			if val := bkt.Get(recycledKey); len(val)%8 == 0 {
				for off := 0; off < len(val); off += 8 {
					state.recycled = append(state.recycled,
						VertexID(binary.BigEndian.Uint64(val[off:])))
				}
			}
			return nil
		})
	return state, err
}

func (ms *metaStore) save(state metaState) error {
	return ms.db.Update(
		func(tx *bbolt.Tx) error {
			bkt := tx.Bucket(metaBucket)
			if bkt == nil {
				return errors.New("graph: missing meta bucket")
			}

			// bbolt keeps the value slices until the transaction commits, so
			// each Put gets its own buffer.
			nextBuf := make([]byte, 8)
			binary.BigEndian.PutUint64(nextBuf, state.nextVertex)
			err := bkt.Put(nextVertexKey, nextBuf)
			if err != nil {
				return err
			}
			epochBuf := make([]byte, 8)
			binary.BigEndian.PutUint64(epochBuf, uint64(state.visibleEpoch))
			err = bkt.Put(visibleEpochKey, epochBuf)
			if err != nil {
				return err
			}

			var buf [8]byte
			recycled := make([]byte, 0, len(state.recycled)*8)
			for _, v := range state.recycled {
				binary.BigEndian.PutUint64(buf[:], uint64(v))
				recycled = append(recycled, buf[:]...)
			}
			return bkt.Put(recycledKey, recycled)
		})
}

func (ms *metaStore) close() error {
	return ms.db.Close()
}
