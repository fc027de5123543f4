package wal

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Store persists framed WAL buffers keyed by their commit epoch. Concurrent
// commits may append their epochs out of order; Scan replays them in
// ascending epoch order. Append must be safe for concurrent use.
type Store interface {
	Append(epoch int64, buf []byte) error
	Scan(fn func(epoch int64, buf []byte) error) error
	Close() error
}

// Open creates a store of the named kind rooted at path. The memory kind
// ignores path and loses everything at Close; it exists for tests and for
// graphs that do not need durable intent.
func Open(kind, path string, logger *log.Logger) (Store, error) {
	switch kind {
	case "badger":
		return MakeBadgerStore(path, logger)
	case "bbolt":
		return MakeBBoltStore(path)
	case "pebble":
		return MakePebbleStore(path, logger)
	case "memory":
		return MakeBTreeStore(), nil
	}
	return nil, fmt.Errorf("wal: unknown store kind: %s", kind)
}
