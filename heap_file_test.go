package heapdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestHeapFile(t *testing.T, capacity int) (*HeapFile, *BufferPool) {
	t.Helper()
	PageSize = DefaultPageSize
	StringLength = DefaultStringLength

	dir := t.TempDir()
	path := filepath.Join(dir, "table.dat")

	bp, err := NewBufferPool(capacity, nullLogFile{})
	require.NoError(t, err)

	desc := &TupleDesc{Fields: []FieldType{
		{Fname: "id", Ftype: IntType},
		{Fname: "name", Ftype: StringType},
	}}
	hf, err := NewHeapFile(path, desc, bp)
	require.NoError(t, err)
	return hf, bp
}

func insertN(t *testing.T, hf *HeapFile, bp *BufferPool, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		tid := NewTID()
		require.NoError(t, bp.BeginTransaction(tid))
		tup := &Tuple{Desc: *hf.Descriptor(), Fields: []DBValue{
			IntField{Value: int64(i)},
			StringField{Value: "row"},
		}}
		require.NoError(t, bp.InsertTuple(tid, hf, tup))
		require.NoError(t, bp.CommitTransaction(tid))
	}
}

// Test_HeapFile_InsertThenScan is S1.
func Test_HeapFile_InsertThenScan(t *testing.T) {
	t.Parallel()
	hf, bp := newTestHeapFile(t, 10)

	insertN(t, hf, bp, 5)

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	it, err := hf.Iterator(tid)
	require.NoError(t, err)
	require.NoError(t, it.Open())

	count := 0
	for {
		has, err := it.HasNext()
		require.NoError(t, err)
		if !has {
			break
		}
		tup, err := it.Next()
		require.NoError(t, err)
		require.NotNil(t, tup)
		count++
	}
	it.Close()
	require.Equal(t, 5, count)
	require.NoError(t, bp.CommitTransaction(tid))
}

func Test_HeapFile_InsertGrowsPageCountWhenFull(t *testing.T) {
	t.Parallel()
	hf, bp := newTestHeapFile(t, 10)

	probe, err := newHeapPage(hf.Descriptor(), PageID{}, nil)
	require.NoError(t, err)
	slotsPerPage := probe.getNumSlots()

	insertN(t, hf, bp, slotsPerPage+1)

	require.Equal(t, 2, hf.NumPages())
}

func Test_HeapFile_DeleteTuple_RemovesRow(t *testing.T) {
	t.Parallel()
	hf, bp := newTestHeapFile(t, 10)

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	tup := &Tuple{Desc: *hf.Descriptor(), Fields: []DBValue{IntField{Value: 1}, StringField{Value: "x"}}}
	require.NoError(t, bp.InsertTuple(tid, hf, tup))
	require.NoError(t, bp.CommitTransaction(tid))
	require.NotNil(t, tup.Rid)

	tid2 := NewTID()
	require.NoError(t, bp.BeginTransaction(tid2))
	require.NoError(t, bp.DeleteTuple(tid2, hf, tup))
	require.NoError(t, bp.CommitTransaction(tid2))

	tid3 := NewTID()
	require.NoError(t, bp.BeginTransaction(tid3))
	it, err := hf.Iterator(tid3)
	require.NoError(t, err)
	require.NoError(t, it.Open())
	has, err := it.HasNext()
	require.NoError(t, err)
	require.False(t, has)
}

func Test_HeapFile_LoadFromCSV(t *testing.T) {
	t.Parallel()
	hf, _ := newTestHeapFile(t, 10)

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "rows.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("id,name\n1,alice\n2,bob\n"), 0644))

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, hf.LoadFromCSV(f, true, ",", false))
	require.Equal(t, 1, hf.NumPages())
}

// Test_HeapFile_ReadPage_CapturesBeforeImageOfExistingTuples guards against a
// page freshly read from disk keeping the empty-page before-image
// newHeapPage starts from: readPage must refresh it from the bytes actually
// loaded, so a page already holding committed tuples logs a correct undo
// image the first time it's dirtied again.
func Test_HeapFile_ReadPage_CapturesBeforeImageOfExistingTuples(t *testing.T) {
	t.Parallel()
	hf, bp := newTestHeapFile(t, 10)

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	tup := &Tuple{Desc: *hf.Descriptor(), Fields: []DBValue{IntField{Value: 1}, StringField{Value: "x"}}}
	require.NoError(t, bp.InsertTuple(tid, hf, tup))
	require.NoError(t, bp.CommitTransaction(tid))

	// Force the page out of the pool, so the next access re-reads it from
	// disk through HeapFile.readPage rather than hitting the cache.
	pid := PageID{TableID: hf.ID(), PageNo: 0}
	bp.discardPage(pid)

	tid2 := NewTID()
	require.NoError(t, bp.BeginTransaction(tid2))
	page, err := bp.GetPage(tid2, hf, pid, WritePerm)
	require.NoError(t, err)
	hp := page.(*heapPage)

	onDisk, err := hp.toBuffer()
	require.NoError(t, err)
	require.Equal(t, onDisk.Bytes(), hp.getBeforeImage(),
		"before-image of a page reloaded from disk must reflect its committed contents, not an empty page")
}

// Test_HeapFileIterator_PostCloseBehavior is §4.C/§6's NoElement contract:
// after Close, HasNext is always false with no error, and Next fails
// NoMoreTuplesError rather than surfacing a "not open" usage error.
func Test_HeapFileIterator_PostCloseBehavior(t *testing.T) {
	t.Parallel()
	hf, bp := newTestHeapFile(t, 10)
	insertN(t, hf, bp, 1)

	tid := NewTID()
	require.NoError(t, bp.BeginTransaction(tid))
	it, err := hf.Iterator(tid)
	require.NoError(t, err)
	require.NoError(t, it.Open())
	it.Close()

	has, err := it.HasNext()
	require.NoError(t, err)
	require.False(t, has)

	_, err = it.Next()
	require.Error(t, err)
	var gerr GoDBError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, NoMoreTuplesError, gerr.Code())
}

// Test_HeapFileIterator_NeverOpened_IsUsageError distinguishes "closed" from
// "never opened at all", which remains a caller error.
func Test_HeapFileIterator_NeverOpened_IsUsageError(t *testing.T) {
	t.Parallel()
	hf, bp := newTestHeapFile(t, 10)
	insertN(t, hf, bp, 1)

	tid := NewTID()
	it, err := hf.Iterator(tid)
	require.NoError(t, err)

	_, err = it.HasNext()
	require.Error(t, err)
	var gerr GoDBError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, IOError, gerr.Code())
}
