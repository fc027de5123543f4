package graph

import (
	"runtime"
	"sync/atomic"
)

// futex is the one-bit per-vertex write lock. Writers that cannot acquire
// it within lockSpins attempts fail with a rollback instead of blocking,
// so transactions holding locks in different orders cannot deadlock.
const lockSpins = 1 << 16

type futex struct {
	state uint32
}

func (fx *futex) tryLock() bool {
	return atomic.CompareAndSwapUint32(&fx.state, 0, 1)
}

// lock spins until the futex is acquired; used by the batch loader, which
// holds it only for the duration of a single operation.
func (fx *futex) lock() {
	for !fx.tryLock() {
		runtime.Gosched()
	}
}

// lockBounded attempts the lock with a bounded spin, reporting failure
// rather than risking deadlock between writers.
func (fx *futex) lockBounded() bool {
	for spin := 0; spin < lockSpins; spin++ {
		if fx.tryLock() {
			return true
		}
		runtime.Gosched()
	}
	return false
}

func (fx *futex) unlock() {
	atomic.StoreUint32(&fx.state, 0)
}

func (fx *futex) clear() {
	atomic.StoreUint32(&fx.state, 0)
}
