package heapdb

import (
	"hash/fnv"
	"path/filepath"

	"github.com/google/uuid"
)

// PageID addresses a single page within a table (§3). It is a plain
// comparable struct so it can be used directly as a map key, replacing the
// teacher's opaque per-HeapFile heapHash/pageKey indirection: a PageID
// identifies a page across the whole engine, not just within one HeapFile.
type PageID struct {
	TableID int
	PageNo  int
}

// RecordID points to one tuple: a page plus a slot number (§3).
type RecordID struct {
	Page   PageID
	SlotNo int
}

// TransactionID is an opaque, comparable, hashable transaction identity
// (§3). Backed by a UUID rather than the teacher's shared int64 counter
// (NewTID() there was `return TransactionID(time.Now().UnixNano())`-style in
// spirit): a UUID draw needs no shared mutable counter, so transactions
// started from concurrent goroutines never need to coordinate just to get
// an id, and the *value* — not the allocation order — is what every lock
// and dirty-mark comparison depends on.
type TransactionID uuid.UUID

// NewTID creates a new, universally unique TransactionID. Keeps the
// teacher's NewTID() name and zero-argument calling convention.
func NewTID() TransactionID {
	return TransactionID(uuid.New())
}

func (t TransactionID) String() string {
	return uuid.UUID(t).String()
}

// TableIDForPath derives a stable table id from a heap file's absolute
// path, per §3 ("Its table id is the stable hash of its absolute path").
// Two HeapFile instances opened against the same path within the same
// process (or across processes, since fnv-1a is deterministic) get the same
// table id; this is the hash fallback spec.md §9 says a reimplementation
// should keep only for compatibility, preferring an explicit catalog id
// where one is available.
func TableIDForPath(path string) int {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(abs))
	return int(h.Sum32())
}
