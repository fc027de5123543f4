package graph

import (
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/leftmike/graft/wal"
)

// CommitManager hands out commit epochs and keeps visibility contiguous: a
// reader that begins after FinishCommit(e, wait=true) returns observes
// every write at epoch <= e. It is also the WAL fan-in point; each buffer
// is persisted under its epoch before that epoch can become visible.
// Racing commits may persist their buffers out of epoch order.
type CommitManager struct {
	mutex        sync.Mutex
	cond         *sync.Cond
	store        wal.Store
	logger       *log.Logger
	nextEpoch    int64
	visibleEpoch int64
	finished     map[int64]struct{}
}

func newCommitManager(store wal.Store, logger *log.Logger) *CommitManager {
	cm := &CommitManager{
		store:     store,
		logger:    logger,
		nextEpoch: 1,
		finished:  map[int64]struct{}{},
	}
	cm.cond = sync.NewCond(&cm.mutex)
	return cm
}

// RegisterCommit reserves the next commit epoch and persists the WAL
// buffer under it. It returns the epoch and the number of earlier epochs
// still unfinished at reservation time.
func (cm *CommitManager) RegisterCommit(buf *wal.Buffer) (Timestamp, int, error) {
	cm.mutex.Lock()
	epoch := cm.nextEpoch
	cm.nextEpoch += 1
	numUnfinished := int(epoch - 1 - cm.visibleEpoch - int64(len(cm.finished)))
	cm.mutex.Unlock()

	err := cm.store.Append(epoch, buf.Bytes())
	if err != nil {
		cm.logger.WithField("epoch", epoch).Errorf("commit: wal append failed: %s", err)
		// The epoch is still consumed; finish it so visibility does not
		// stall behind a hole.
		cm.FinishCommit(Timestamp(epoch), numUnfinished, false)
		return 0, 0, err
	}

	return Timestamp(epoch), numUnfinished, nil
}

// FinishCommit marks epoch complete. With waitVisible set it blocks until
// every earlier epoch is also complete, so the caller's writes are
// observed by any reader that begins afterwards.
func (cm *CommitManager) FinishCommit(epoch Timestamp, numUnfinished int,
	waitVisible bool) {

	cm.mutex.Lock()
	cm.finished[int64(epoch)] = struct{}{}
	for {
		if _, ok := cm.finished[cm.visibleEpoch+1]; !ok {
			break
		}
		delete(cm.finished, cm.visibleEpoch+1)
		atomic.AddInt64(&cm.visibleEpoch, 1)
	}
	cm.cond.Broadcast()

	if waitVisible {
		for atomic.LoadInt64(&cm.visibleEpoch) < int64(epoch) {
			cm.cond.Wait()
		}
	}
	cm.mutex.Unlock()
}

// VisibleEpoch is the newest epoch with no unfinished predecessors; new
// transactions read at this epoch.
func (cm *CommitManager) VisibleEpoch() Timestamp {
	return Timestamp(atomic.LoadInt64(&cm.visibleEpoch))
}

// advanceTo moves the epoch clock past epochs restored from a meta
// checkpoint or a WAL replay.
func (cm *CommitManager) advanceTo(epoch Timestamp) {
	cm.mutex.Lock()
	if int64(epoch) >= cm.nextEpoch {
		cm.nextEpoch = int64(epoch) + 1
	}
	if int64(epoch) > cm.visibleEpoch {
		atomic.StoreInt64(&cm.visibleEpoch, int64(epoch))
	}
	cm.mutex.Unlock()
}
