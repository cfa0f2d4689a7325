package heapdb

// TransactionController is the thin owner of transaction lifecycle calls
// (§4.F). The teacher never factored this out -- BeginTransaction /
// CommitTransaction / AbortTransaction live directly on BufferPool there,
// and still do here too, as thin forwarders kept for compatibility with
// the teacher's own call sites (HeapFile.LoadFromCSV, most tests). This
// type exists so callers who want the transaction API without reaching
// into buffer-pool internals have one.
type TransactionController struct {
	bp *BufferPool
}

// NewTransactionController wraps bp.
func NewTransactionController(bp *BufferPool) *TransactionController {
	return &TransactionController{bp: bp}
}

// Begin starts a new transaction and returns its id.
func (tc *TransactionController) Begin() (TransactionID, error) {
	tid := NewTID()
	if err := tc.bp.BeginTransaction(tid); err != nil {
		return TransactionID{}, err
	}
	return tid, nil
}

// Commit ends tid successfully: every page it dirtied is flushed, then its
// locks are released (§4.F, delegates to BufferPool.transactionComplete).
func (tc *TransactionController) Commit(tid TransactionID) error {
	return tc.bp.transactionComplete(tid, true)
}

// Abort ends tid by discarding every page it dirtied (NO-STEAL guarantees
// none reached disk) and releasing its locks (§4.F).
func (tc *TransactionController) Abort(tid TransactionID) error {
	return tc.bp.transactionComplete(tid, false)
}
