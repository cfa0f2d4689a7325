package heapdb

import "bytes"

// Page is the unit the BufferPool caches and the LockManager locks (§4.G).
// heapPage is the only implementation; the interface exists so the kernel
// never needs to special-case it, matching the teacher's own Page
// abstraction.
type Page interface {
	pageID() PageID
	isDirty() bool
	markDirty(dirty bool, tid TransactionID)
	getFile() *HeapFile
	toBuffer() (*bytes.Buffer, error)
}

// DbFile is the capability set any table storage format must provide
// (§4.G): HeapFile is the only variant in scope, but a B+ tree or other
// index structure would implement the same contract.
type DbFile interface {
	ID() int
	Descriptor() *TupleDesc
	readPage(pageNo int) (Page, error)
	writePage(p Page) error
	NumPages() int
	insertTuple(tid TransactionID, t *Tuple) ([]Page, error)
	deleteTuple(tid TransactionID, t *Tuple) ([]Page, error)
	Iterator(tid TransactionID) (DbFileIterator, error)
}

// DbFileIterator is the operator/iterator contract of §6: open, hasNext,
// next, rewind, close. hasNext is idempotent; next without a preceding
// hasNext still returns a tuple if one exists; after close, next fails with
// NoMoreTuplesError.
type DbFileIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*Tuple, error)
	Rewind() error
	Close()
}

// Catalog resolves a table id to the DbFile backing it (§4.G). Table
// registration is out of scope (§4.G): callers build a Catalog however
// they like and hand it to the BufferPool.
type Catalog interface {
	DatabaseFile(tableID int) (DbFile, error)
}

// SimpleCatalog is a minimal in-memory Catalog for callers with more than
// one table (single-table callers, including this kernel's own tests, pass
// the HeapFile itself, which also implements Catalog). Registration happens via
// AddFile rather than any parsing of table definitions, consistent with
// spec.md §4.G leaving registration unspecified.
type SimpleCatalog struct {
	files map[int]DbFile
}

// NewSimpleCatalog returns an empty catalog.
func NewSimpleCatalog() *SimpleCatalog {
	return &SimpleCatalog{files: make(map[int]DbFile)}
}

// AddFile registers f under its own ID().
func (c *SimpleCatalog) AddFile(f DbFile) {
	c.files[f.ID()] = f
}

func (c *SimpleCatalog) DatabaseFile(tableID int) (DbFile, error) {
	f, ok := c.files[tableID]
	if !ok {
		return nil, newErr(TupleNotFoundError, "no such table")
	}
	return f, nil
}
