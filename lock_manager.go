package heapdb

import (
	"math/rand"
	"sync"
	"time"
)

/* LockManager implements page-level strict two-phase locking (§4.D). It has
no teacher analog that actually does 2PL — the teacher's buffer_pool.go
instead built a transaction-dependency graph and ran a DFS cycle check on
every GetPage call. That's the right shape for *detecting* a deadlock, but
spec.md §4.D asks for avoidance instead: each lock wait draws its own random
timeout in [1000ms, 2000ms), and a waiter that doesn't get the lock by then
aborts itself. So the dependency graph is gone; what's kept from the
teacher is the overall posture of a monitor guarding a per-page lock table,
reached through a single mutex, with waiters retried rather than
immediately failed. */

// LockMode is the granularity of a page lock: Shared (read) or Exclusive
// (write) (§4.D).
type LockMode int

const (
	Shared LockMode = iota
	Exclusive
)

type pageLock struct {
	shared       map[TransactionID]struct{}
	hasExclusive bool
	exclusive    TransactionID
}

// LockManager grants and releases page-level locks for active transactions.
// A single mutex/condvar pair guards the whole lock table; page sets are
// rarely large enough in a teaching engine to need finer striping.
type LockManager struct {
	mu   sync.Mutex
	cond *sync.Cond

	locks map[PageID]*pageLock
	held  map[TransactionID]map[PageID]LockMode
}

func NewLockManager() *LockManager {
	lm := &LockManager{
		locks: make(map[PageID]*pageLock),
		held:  make(map[TransactionID]map[PageID]LockMode),
	}
	lm.cond = sync.NewCond(&lm.mu)
	return lm
}

// acquireLock blocks tid until pid can be locked in mode, or until a
// randomly drawn per-call timeout in [1000ms, 2000ms) elapses, in which
// case it returns a TransactionAbortedError (§4.D's deadlock avoidance: no
// cycle detection, just a bounded wait). A transaction that already holds
// Shared and requests Exclusive is granted immediately if it is the only
// shared holder (lock upgrade, §4.D / P9), without waiting out any timeout.
func (lm *LockManager) acquireLock(tid TransactionID, pid PageID, mode LockMode) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	timeout := time.Duration(1000+rand.Intn(1000)) * time.Millisecond
	deadline := time.Now().Add(timeout)

	for {
		pl := lm.locks[pid]
		if pl == nil {
			pl = &pageLock{shared: make(map[TransactionID]struct{})}
			lm.locks[pid] = pl
		}

		if lm.canGrantLocked(pl, tid, mode) {
			lm.grantLocked(pl, tid, pid, mode)
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			DPrintf("lock_manager: %v timed out waiting for %v lock on %v", tid, mode, pid)
			return newErr(TransactionAbortedError, "timed out waiting for page lock")
		}

		timer := time.AfterFunc(remaining, func() {
			lm.mu.Lock()
			lm.cond.Broadcast()
			lm.mu.Unlock()
		})
		lm.cond.Wait()
		timer.Stop()
	}
}

func (lm *LockManager) canGrantLocked(pl *pageLock, tid TransactionID, mode LockMode) bool {
	if mode == Shared {
		return !pl.hasExclusive || pl.exclusive == tid
	}
	// Exclusive.
	if pl.hasExclusive {
		return pl.exclusive == tid
	}
	switch len(pl.shared) {
	case 0:
		return true
	case 1:
		_, solo := pl.shared[tid]
		return solo
	default:
		return false
	}
}

func (lm *LockManager) grantLocked(pl *pageLock, tid TransactionID, pid PageID, mode LockMode) {
	if mode == Shared {
		pl.shared[tid] = struct{}{}
	} else {
		delete(pl.shared, tid)
		pl.hasExclusive = true
		pl.exclusive = tid
	}
	byPage, ok := lm.held[tid]
	if !ok {
		byPage = make(map[PageID]LockMode)
		lm.held[tid] = byPage
	}
	byPage[pid] = mode
}

// releaseLock releases tid's lock on pid, if any. Releasing a lock tid does
// not hold is a no-op (§9 Open Question b decision: the operation always
// targets the calling tid's own lock, never another transaction's).
func (lm *LockManager) releaseLock(tid TransactionID, pid PageID) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.releaseLockLocked(tid, pid)
}

func (lm *LockManager) releaseLockLocked(tid TransactionID, pid PageID) {
	pl, ok := lm.locks[pid]
	if ok {
		delete(pl.shared, tid)
		if pl.hasExclusive && pl.exclusive == tid {
			pl.hasExclusive = false
		}
	}
	delete(lm.held[tid], pid)
	lm.cond.Broadcast()
}

// holdsLock reports whether tid currently holds any lock on pid.
func (lm *LockManager) holdsLock(tid TransactionID, pid PageID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	_, ok := lm.held[tid][pid]
	return ok
}

// pagesHeldBy returns every page tid currently holds a lock on. The
// returned slice is a snapshot, safe for the caller to range over while
// concurrently calling releaseLock (§9 Open Question a).
func (lm *LockManager) pagesHeldBy(tid TransactionID) []PageID {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	pages := make([]PageID, 0, len(lm.held[tid]))
	for pid := range lm.held[tid] {
		pages = append(pages, pid)
	}
	return pages
}

// releaseAll releases every lock tid holds and returns the pages that were
// released. Pages are collected into a slice before any lock is released
// (§9 Open Question a), so mutating lm.held while iterating never races
// with the iteration itself.
func (lm *LockManager) releaseAll(tid TransactionID) []PageID {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	pages := make([]PageID, 0, len(lm.held[tid]))
	for pid := range lm.held[tid] {
		pages = append(pages, pid)
	}
	for _, pid := range pages {
		lm.releaseLockLocked(tid, pid)
	}
	delete(lm.held, tid)
	return pages
}
