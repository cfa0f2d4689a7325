package heapdb

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// HeapFile is an unordered collection of tuples backed by a single file on
// disk, laid out as a sequence of fixed-size pages (§4.C). It is the only
// DbFile implementation in scope, but satisfies DbFile so a future index
// structure could sit alongside it under the same Catalog.
//
// HeapFile is exported because external callers build tables with
// LoadFromCSV before handing the file to a Catalog.
type HeapFile struct {
	backingFile string
	tupleDesc   *TupleDesc
	bufPool     *BufferPool
	tableID     int

	mu sync.Mutex // guards the grow-the-file path in appendPageWith
}

// NewHeapFile opens (or prepares to create) a heap file backed by fromFile.
// The file need not exist yet; it is created lazily on first page read or
// write. The
// table id is the stable hash of the file's absolute path (§3), via
// TableIDForPath.
func NewHeapFile(fromFile string, td *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	return &HeapFile{
		backingFile: fromFile,
		tupleDesc:   td,
		bufPool:     bp,
		tableID:     TableIDForPath(fromFile),
	}, nil
}

// BackingFile returns the path the HeapFile reads and writes.
func (f *HeapFile) BackingFile() string {
	return f.backingFile
}

// ID returns the table id DbFile.ID() promises: a stable hash of the
// backing file's absolute path (§3), not a counter assigned at
// registration, so two processes opening the same path agree on its id.
func (f *HeapFile) ID() int {
	return f.tableID
}

// Descriptor returns the TupleDesc all pages of this file share.
func (f *HeapFile) Descriptor() *TupleDesc {
	return f.tupleDesc
}

// DatabaseFile lets a bare HeapFile stand in as its own single-table
// Catalog, so callers that only ever have one table don't need to build a
// SimpleCatalog just to call BufferPool.GetPage (§4.G).
func (f *HeapFile) DatabaseFile(tableID int) (DbFile, error) {
	if tableID != f.tableID {
		return nil, newErr(TupleNotFoundError, "no such table")
	}
	return f, nil
}

// NumPages returns the number of pages currently in the backing file,
// computed from its size rather than tracked separately, so it is always
// consistent with what's actually on disk.
func (f *HeapFile) NumPages() int {
	info, err := os.Stat(f.backingFile)
	if err != nil {
		return 0
	}
	numPages := int(info.Size() / int64(PageSize))
	if info.Size()%int64(PageSize) != 0 {
		numPages++
	}
	return numPages
}

// LoadFromCSV populates the heap file from a CSV file, one tuple per
// transaction, committing as it goes. hasHeader skips the first line;
// skipLastField drops a trailing separator some exported datasets carry.
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, sep)
		if skipLastField {
			fields = fields[:len(fields)-1]
		}
		lineNo++
		if lineNo == 1 && hasHeader {
			continue
		}
		if len(fields) != len(f.tupleDesc.Fields) {
			return newErr(MalformedDataError, fmt.Sprintf("LoadFromCSV: line %d (%s): expected %d fields, got %d", lineNo, line, len(f.tupleDesc.Fields), len(fields)))
		}

		values := make([]DBValue, len(fields))
		for i, raw := range fields {
			switch f.tupleDesc.Fields[i].Ftype {
			case IntType:
				raw = strings.TrimSpace(raw)
				n, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					return newErr(TypeMismatchError, fmt.Sprintf("LoadFromCSV: line %d: %q is not an int", lineNo, raw))
				}
				values[i] = IntField{Value: n}
			case StringType:
				if len(raw) > StringLength {
					raw = raw[:StringLength]
				}
				values[i] = StringField{Value: raw}
			}
		}

		tid := NewTID()
		if err := f.bufPool.BeginTransaction(tid); err != nil {
			return err
		}
		t := &Tuple{Desc: *f.tupleDesc, Fields: values}
		if err := f.bufPool.InsertTuple(tid, f, t); err != nil {
			_ = f.bufPool.AbortTransaction(tid)
			return err
		}
		if err := f.bufPool.CommitTransaction(tid); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// readPage reads page pageNo from disk. If the backing file doesn't reach
// that far yet (it was created but never written), a fresh all-empty-slots
// page is returned instead of an error. Called by BufferPool.GetPage on a
// cache miss (§4.E).
func (f *HeapFile) readPage(pageNo int) (Page, error) {
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, wrapErr(IOError, "opening heap file", err)
	}
	defer file.Close()

	pid := PageID{TableID: f.tableID, PageNo: pageNo}
	page, err := newHeapPage(f.tupleDesc, pid, f)
	if err != nil {
		return nil, err
	}

	offset := int64(pageNo) * int64(PageSize)
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, wrapErr(IOError, "seeking to page", err)
	}
	data := make([]byte, PageSize)
	n, err := io.ReadFull(file, data)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, wrapErr(IOError, "reading page", err)
	}
	if n == 0 {
		// page does not exist on disk yet: return the freshly built empty page
		return page, nil
	}
	if err := page.initFromBuffer(bytes.NewBuffer(data)); err != nil {
		return nil, err
	}
	// newHeapPage's own before-image is the empty page it starts from; now
	// that the real on-disk bytes have been loaded, recapture it so
	// getBeforeImage reflects the page as it existed at load time (§3).
	if err := page.refreshBeforeImage(); err != nil {
		return nil, err
	}
	return page, nil
}

// writePage forces p back to its offset in the backing file (§4.E: called
// by BufferPool when flushing a page, and by appendPageWith to grow the
// file; eviction never writes, since it only drops clean pages).
func (f *HeapFile) writePage(p Page) error {
	hp, ok := p.(*heapPage)
	if !ok {
		return newErr(TypeMismatchError, "writePage: not a heap page")
	}

	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return wrapErr(IOError, "opening heap file", err)
	}
	defer file.Close()

	if _, err := file.Seek(int64(hp.pid.PageNo)*int64(PageSize), io.SeekStart); err != nil {
		return wrapErr(IOError, "seeking to page", err)
	}
	buf, err := hp.toBuffer()
	if err != nil {
		return err
	}
	if _, err := buf.WriteTo(file); err != nil {
		return wrapErr(IOError, "writing page", err)
	}
	return nil
}

// insertTuple places t on the first page with a free slot, scanning
// existing pages through the BufferPool (so locking and caching stay
// centralized there, per §4.E), and appends a new page if none has room.
// Returns every page insertTuple dirtied, per DbFile.insertTuple's
// contract.
func (f *HeapFile) insertTuple(tid TransactionID, t *Tuple) ([]Page, error) {
	if len(t.Fields) != len(f.tupleDesc.Fields) {
		return nil, newErr(SchemaMismatchError, "tuple does not match heap file's tuple descriptor")
	}

	numPages := f.NumPages()
	for pageNo := 0; pageNo < numPages; pageNo++ {
		pid := PageID{TableID: f.tableID, PageNo: pageNo}
		page, err := f.bufPool.GetPage(tid, f, pid, WritePerm)
		if err != nil {
			return nil, err
		}
		hp := page.(*heapPage)
		if hp.getNumEmptySlots() == 0 {
			continue
		}
		if _, err := hp.insertTuple(t); err != nil {
			return nil, err
		}
		hp.markDirty(true, tid)
		return []Page{hp}, nil
	}

	return f.appendPageWith(tid, t)
}

// appendPageWith grows the backing file by one empty page, then inserts t
// into that page through the BufferPool like any other page (§4.E): the
// new page is written to disk while still all-empty-slots, never with t's
// data, so an append followed by an abort leaves nothing of t on disk --
// unlike the teacher's createNewPage, which flushed the freshly inserted
// tuple straight to disk before the transaction committed, in violation of
// NO-STEAL. Guarded by mu so two concurrent appenders each pick a distinct
// new page number instead of both writing the same one; two inserters that
// both miss on every existing page still append one page each.
func (f *HeapFile) appendPageWith(tid TransactionID, t *Tuple) ([]Page, error) {
	f.mu.Lock()
	pageNo := f.NumPages()
	pid := PageID{TableID: f.tableID, PageNo: pageNo}
	empty, err := newHeapPage(f.tupleDesc, pid, f)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if err := f.writePage(empty); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()

	page, err := f.bufPool.GetPage(tid, f, pid, WritePerm)
	if err != nil {
		return nil, err
	}
	hp := page.(*heapPage)
	if _, err := hp.insertTuple(t); err != nil {
		return nil, err
	}
	hp.markDirty(true, tid)
	return []Page{hp}, nil
}

// deleteTuple removes t using its Rid, fetching the owning page through the
// BufferPool under a write lock (§4.E).
func (f *HeapFile) deleteTuple(tid TransactionID, t *Tuple) ([]Page, error) {
	if t.Rid == nil {
		return nil, newErr(TupleNotFoundError, "tuple has no record id")
	}
	page, err := f.bufPool.GetPage(tid, f, t.Rid.Page, WritePerm)
	if err != nil {
		return nil, err
	}
	hp := page.(*heapPage)
	if err := hp.deleteTuple(*t.Rid); err != nil {
		return nil, err
	}
	hp.markDirty(true, tid)
	return []Page{hp}, nil
}

// Iterator returns a DbFileIterator over every tuple of the file, fetching
// each page through the BufferPool under a read lock, in page-then-slot
// order (§4.C, §6).
func (f *HeapFile) Iterator(tid TransactionID) (DbFileIterator, error) {
	return &heapFileIterator{file: f, tid: tid}, nil
}

type heapFileIterator struct {
	file     *HeapFile
	tid      TransactionID
	pageNo   int
	pageIter func() (*Tuple, error)
	opened   bool
	closed   bool
	peeked   *Tuple
}

func (it *heapFileIterator) Open() error {
	it.pageNo = 0
	it.pageIter = nil
	it.peeked = nil
	it.opened = true
	it.closed = false
	return nil
}

func (it *heapFileIterator) advance() error {
	numPages := it.file.NumPages()
	for it.pageNo < numPages {
		if it.pageIter == nil {
			pid := PageID{TableID: it.file.tableID, PageNo: it.pageNo}
			page, err := it.file.bufPool.GetPage(it.tid, it.file, pid, ReadPerm)
			if err != nil {
				return err
			}
			it.pageIter = page.(*heapPage).tupleIter()
		}
		return nil
	}
	return nil
}

func (it *heapFileIterator) HasNext() (bool, error) {
	// After Close, hasNext is always false with no error (§4.C, §6); only an
	// iterator that was never opened at all is a usage error.
	if it.closed {
		return false, nil
	}
	if !it.opened {
		return false, newErr(IOError, "iterator not open")
	}
	if it.peeked != nil {
		return true, nil
	}
	for {
		if err := it.advance(); err != nil {
			return false, err
		}
		if it.pageIter == nil {
			return false, nil
		}
		t, err := it.pageIter()
		if err != nil {
			return false, err
		}
		if t != nil {
			it.peeked = t
			return true, nil
		}
		it.pageIter = nil
		it.pageNo++
		if it.pageNo >= it.file.NumPages() {
			return false, nil
		}
	}
}

func (it *heapFileIterator) Next() (*Tuple, error) {
	if it.closed {
		return nil, newErr(NoMoreTuplesError, "iterator is closed")
	}
	if it.peeked != nil {
		t := it.peeked
		it.peeked = nil
		t.Desc = *it.file.tupleDesc
		return t, nil
	}
	has, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, newErr(NoMoreTuplesError, "no more tuples")
	}
	t := it.peeked
	it.peeked = nil
	t.Desc = *it.file.tupleDesc
	return t, nil
}

func (it *heapFileIterator) Rewind() error {
	return it.Open()
}

func (it *heapFileIterator) Close() {
	it.opened = false
	it.closed = true
	it.pageIter = nil
	it.peeked = nil
}
