package heapdb

import (
	"container/list"
	"sync"
)

/* BufferPool caches pages read from disk, enforces a fixed capacity via
LRU eviction, and is where transactions actually take effect (§4.E). Kept
from the teacher's buffer_pool.go: the overall shape of GetPage /
CommitTransaction / AbortTransaction / BeginTransaction / FlushAllPages,
and the "evict when full, refuse if every resident page is dirty"
NO-STEAL discipline. Replaced: the teacher's own lock bookkeeping
(readPermissionLocks/writePermissionLocks/transactionDependencies maps,
its checkConflictingLocks/hasCycle busy-poll) is gone, delegated instead to
LockManager. Added: a real LRU access-order list (the teacher evicted
whatever Go map iteration handed it first, which is not LRU) and the
log-then-write ordering through LogFile. */

// RWPerm is the permission a caller requests a page under.
type RWPerm int

const (
	ReadPerm RWPerm = iota
	WritePerm
)

type BufferPool struct {
	mu       sync.Mutex
	capacity int
	pages    map[PageID]Page
	order    *list.List               // front = most recently used
	elems    map[PageID]*list.Element // pid -> its node in order

	locks *LockManager
	log   LogFile

	dirtiedBy map[TransactionID]map[PageID]struct{} // pages each tid has dirtied, for NO-STEAL rollback/flush
	active    map[TransactionID]struct{}
}

// NewBufferPool creates a BufferPool holding at most numPages pages at
// once, logging to log (pass nullLogFile{} if durability isn't needed,
// e.g. in tests that only exercise locking/eviction).
func NewBufferPool(numPages int, log LogFile) (*BufferPool, error) {
	if numPages <= 0 {
		return nil, newErr(MalformedDataError, "buffer pool capacity must be positive")
	}
	if log == nil {
		log = nullLogFile{}
	}
	return &BufferPool{
		capacity:  numPages,
		pages:     make(map[PageID]Page),
		order:     list.New(),
		elems:     make(map[PageID]*list.Element),
		locks:     NewLockManager(),
		log:       log,
		dirtiedBy: make(map[TransactionID]map[PageID]struct{}),
		active:    make(map[TransactionID]struct{}),
	}, nil
}

// NumPages reports how many pages are currently resident, not the
// capacity; callers that want the configured capacity should keep their
// own copy of the value passed to NewBufferPool.
func (bp *BufferPool) NumPages() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.pages)
}

// BeginTransaction registers tid as active. Returns an error if tid is
// already running (§4.F).
func (bp *BufferPool) BeginTransaction(tid TransactionID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if _, alive := bp.active[tid]; alive {
		return newErr(TransactionAbortedError, "transaction already active")
	}
	bp.active[tid] = struct{}{}
	bp.dirtiedBy[tid] = make(map[PageID]struct{})
	return nil
}

// GetPage fetches pid through catalog, acquiring the requested lock first
// (§4.E: "Acquires SHARED/EXCLUSIVE via the LockManager first"). A cache
// miss reads the page from its DbFile, evicting a clean LRU victim first if
// the pool is already at capacity; BufferPoolFullError if every resident
// page is dirty.
func (bp *BufferPool) GetPage(tid TransactionID, catalog Catalog, pid PageID, perm RWPerm) (Page, error) {
	mode := Shared
	if perm == WritePerm {
		mode = Exclusive
	}
	if err := bp.locks.acquireLock(tid, pid, mode); err != nil {
		return nil, err
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if page, ok := bp.pages[pid]; ok {
		bp.touchLocked(pid)
		return page, nil
	}

	if len(bp.pages) >= bp.capacity {
		if err := bp.evictLocked(); err != nil {
			return nil, err
		}
	}

	file, err := catalog.DatabaseFile(pid.TableID)
	if err != nil {
		return nil, err
	}
	page, err := file.readPage(pid.PageNo)
	if err != nil {
		return nil, err
	}

	bp.pages[pid] = page
	bp.elems[pid] = bp.order.PushFront(pid)
	return page, nil
}

func (bp *BufferPool) touchLocked(pid PageID) {
	if e, ok := bp.elems[pid]; ok {
		bp.order.MoveToFront(e)
	}
}

// evictLocked picks the least-recently-used clean page and drops it from
// the cache (NO-STEAL: only ever a clean page, never one a live
// transaction has dirtied). Returns BufferPoolFullError if the whole pool
// is dirty (§4.E, P8).
func (bp *BufferPool) evictLocked() error {
	for e := bp.order.Back(); e != nil; e = e.Prev() {
		pid := e.Value.(PageID)
		page := bp.pages[pid]
		if page.isDirty() {
			continue
		}
		bp.order.Remove(e)
		delete(bp.elems, pid)
		delete(bp.pages, pid)
		DPrintf("buffer_pool: evicted %v", pid)
		return nil
	}
	return newErr(BufferPoolFullError, "buffer pool is full of dirty pages")
}

// markDirtied records that tid dirtied pid, writing pid's before-image to
// the log first (write-ahead: the undo record reaches the log before the
// page can reach disk via a later flush or eviction).
func (bp *BufferPool) markDirtied(tid TransactionID, page Page) error {
	hp, ok := page.(*heapPage)
	if !ok {
		return newErr(TypeMismatchError, "markDirtied: not a heap page")
	}
	if err := bp.log.LogWrite(LogRecord{Tid: tid, Page: hp.pageID(), Image: hp.getBeforeImage()}); err != nil {
		return err
	}
	bp.mu.Lock()
	if bp.dirtiedBy[tid] == nil {
		bp.dirtiedBy[tid] = make(map[PageID]struct{})
	}
	bp.dirtiedBy[tid][hp.pageID()] = struct{}{}
	bp.mu.Unlock()
	return nil
}

// InsertTuple inserts t into file on behalf of tid, marking every page the
// insert dirtied and logging their before-images.
func (bp *BufferPool) InsertTuple(tid TransactionID, file DbFile, t *Tuple) error {
	pages, err := file.insertTuple(tid, t)
	if err != nil {
		return err
	}
	for _, p := range pages {
		if err := bp.markDirtied(tid, p); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTuple removes t from file on behalf of tid, marking every page the
// delete dirtied and logging their before-images.
func (bp *BufferPool) DeleteTuple(tid TransactionID, file DbFile, t *Tuple) error {
	pages, err := file.deleteTuple(tid, t)
	if err != nil {
		return err
	}
	for _, p := range pages {
		if err := bp.markDirtied(tid, p); err != nil {
			return err
		}
	}
	return nil
}

// FlushAllPages flushes every dirty resident page to disk. Test-only, per
// the teacher's own comment on the equivalent method: it does not respect
// transaction boundaries or locking, so callers outside tests should use
// flushPages(tid) via transactionComplete instead.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for pid, page := range bp.pages {
		if err := bp.flushPageLocked(pid, page); err != nil {
			return err
		}
	}
	return nil
}

// flushPageLocked writes page to its DbFile and clears its dirty mark, all
// under bp.mu so the isDirty() check and the clear happen in the same
// critical section as the write (§9 Open Question d).
func (bp *BufferPool) flushPageLocked(pid PageID, page Page) error {
	if !page.isDirty() {
		return nil
	}
	if err := bp.log.Force(); err != nil {
		return err
	}
	if err := page.getFile().writePage(page); err != nil {
		return wrapErr(BufferPoolFullError, "flushing page to disk", err)
	}
	page.markDirty(false, TransactionID{})
	if hp, ok := page.(*heapPage); ok {
		_ = hp.refreshBeforeImage()
	}
	return nil
}

// flushPages flushes every page tid has dirtied (§4.E), used by commit.
func (bp *BufferPool) flushPages(tid TransactionID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	// Collect first, then mutate/flush: see transactionComplete for why
	// (§9 Open Question a) -- the same hazard applies here since
	// flushPageLocked can in principle be called from multiple paths.
	pids := make([]PageID, 0, len(bp.dirtiedBy[tid]))
	for pid := range bp.dirtiedBy[tid] {
		pids = append(pids, pid)
	}
	for _, pid := range pids {
		page, ok := bp.pages[pid]
		if !ok {
			continue
		}
		if err := bp.flushPageLocked(pid, page); err != nil {
			return err
		}
	}
	return nil
}

// discardPage drops pid from the cache without flushing it, used to roll
// back a dirtied page on abort (NO-STEAL means an aborted transaction's
// dirty pages were never on disk, so discarding the in-memory copy is
// sufficient).
func (bp *BufferPool) discardPage(pid PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if e, ok := bp.elems[pid]; ok {
		bp.order.Remove(e)
		delete(bp.elems, pid)
	}
	delete(bp.pages, pid)
}

// unsafeReleasePage releases tid's lock on pid without any of the
// commit/abort bookkeeping. Named for the same reason the teacher's own
// lab instructions name it: it bypasses the transaction contract and
// should only be used by callers (or tests) that know what they're doing.
func (bp *BufferPool) unsafeReleasePage(tid TransactionID, pid PageID) {
	bp.locks.releaseLock(tid, pid)
}

// HoldsLock reports whether tid holds any lock on pid.
func (bp *BufferPool) HoldsLock(tid TransactionID, pid PageID) bool {
	return bp.locks.holdsLock(tid, pid)
}

// CommitTransaction commits tid: §4.F.
func (bp *BufferPool) CommitTransaction(tid TransactionID) error {
	return bp.transactionComplete(tid, true)
}

// AbortTransaction aborts tid: §4.F.
func (bp *BufferPool) AbortTransaction(tid TransactionID) error {
	return bp.transactionComplete(tid, false)
}

// transactionComplete ends tid, either committing (flushing every page it
// dirtied, NO-STEAL/FORCE) or aborting (discarding every page it dirtied,
// since NO-STEAL guarantees none of them ever reached disk), then releases
// every lock tid held (§4.E/§4.F).
func (bp *BufferPool) transactionComplete(tid TransactionID, commit bool) error {
	DPrintf("buffer_pool: completing %v (commit=%v)", tid, commit)
	if commit {
		if err := bp.flushPages(tid); err != nil {
			return err
		}
	} else {
		bp.mu.Lock()
		// (§9 Open Question a) collect the snapshot of pageIDs dirtied by
		// tid into a slice before discarding any of them, so discardPage's
		// mutation of bp.pages never races with this loop's iteration over
		// bp.dirtiedBy[tid].
		pids := make([]PageID, 0, len(bp.dirtiedBy[tid]))
		for pid := range bp.dirtiedBy[tid] {
			pids = append(pids, pid)
		}
		bp.mu.Unlock()
		for _, pid := range pids {
			bp.discardPage(pid)
		}
	}

	bp.mu.Lock()
	delete(bp.dirtiedBy, tid)
	delete(bp.active, tid)
	bp.mu.Unlock()

	bp.locks.releaseAll(tid)
	return nil
}
