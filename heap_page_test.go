package heapdb

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestPage(t *testing.T) *heapPage {
	t.Helper()
	PageSize = DefaultPageSize
	StringLength = DefaultStringLength
	desc := &TupleDesc{Fields: []FieldType{
		{Fname: "id", Ftype: IntType},
		{Fname: "name", Ftype: StringType},
	}}
	page, err := newHeapPage(desc, PageID{TableID: 1, PageNo: 0}, nil)
	require.NoError(t, err)
	return page
}

// Test_HeapPage_HeaderBodyConsistency is P1: the header's bit count matches
// numSlots and its size is ceil(numSlots/8) bytes.
func Test_HeapPage_HeaderBodyConsistency(t *testing.T) {
	t.Parallel()
	page := newTestPage(t)

	width := page.desc.Width()
	wantSlots := numSlotsForPage(PageSize, width)
	require.Equal(t, wantSlots, page.getNumSlots())
	require.Equal(t, (wantSlots+7)/8, headerBytes(page.getNumSlots()))
	require.Equal(t, wantSlots, page.getNumEmptySlots())
}

// Test_HeapPage_ToBuffer_InitFromBuffer_RoundTrip is P2 at the page level.
func Test_HeapPage_ToBuffer_InitFromBuffer_RoundTrip(t *testing.T) {
	t.Parallel()
	page := newTestPage(t)

	tup := &Tuple{Desc: *page.desc, Fields: []DBValue{IntField{Value: 7}, StringField{Value: "bob"}}}
	rid, err := page.insertTuple(tup)
	require.NoError(t, err)
	require.Equal(t, 0, rid.SlotNo)

	buf, err := page.toBuffer()
	require.NoError(t, err)
	require.Equal(t, PageSize, buf.Len())

	reloaded, err := newHeapPage(page.desc, page.pid, nil)
	require.NoError(t, err)
	require.NoError(t, reloaded.initFromBuffer(bytes.NewBuffer(buf.Bytes())))

	require.Equal(t, page.getNumSlots()-1, reloaded.getNumEmptySlots())
	it := reloaded.tupleIter()
	got, err := it()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, tup.Equals(got))

	next, err := it()
	require.NoError(t, err)
	require.Nil(t, next)
}

// Test_HeapPage_InsertTuple_RecyclesLowestEmptySlot is P3.
func Test_HeapPage_InsertTuple_RecyclesLowestEmptySlot(t *testing.T) {
	t.Parallel()
	page := newTestPage(t)

	mk := func(v int64) *Tuple {
		return &Tuple{Desc: *page.desc, Fields: []DBValue{IntField{Value: v}, StringField{Value: "x"}}}
	}

	rid0, err := page.insertTuple(mk(1))
	require.NoError(t, err)
	rid1, err := page.insertTuple(mk(2))
	require.NoError(t, err)
	require.Equal(t, rid0.SlotNo+1, rid1.SlotNo)

	require.NoError(t, page.deleteTuple(rid0))

	rid2, err := page.insertTuple(mk(3))
	require.NoError(t, err)
	require.Equal(t, rid0.SlotNo, rid2.SlotNo, "insert after delete should recycle the lowest empty slot")
}

func Test_HeapPage_InsertTuple_PageFullError(t *testing.T) {
	t.Parallel()
	page := newTestPage(t)

	mk := func(v int64) *Tuple {
		return &Tuple{Desc: *page.desc, Fields: []DBValue{IntField{Value: v}, StringField{Value: "x"}}}
	}
	for i := 0; i < page.getNumSlots(); i++ {
		_, err := page.insertTuple(mk(int64(i)))
		require.NoError(t, err)
	}

	_, err := page.insertTuple(mk(999))
	require.Error(t, err)
	var gerr GoDBError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, PageFullError, gerr.Code())
}

func Test_HeapPage_DeleteTuple_TupleNotFound(t *testing.T) {
	t.Parallel()
	page := newTestPage(t)

	err := page.deleteTuple(RecordID{Page: page.pid, SlotNo: 0})
	require.Error(t, err)
	var gerr GoDBError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, TupleNotFoundError, gerr.Code())

	other := RecordID{Page: PageID{TableID: 99, PageNo: 0}, SlotNo: 0}
	require.Error(t, page.deleteTuple(other))
}

func Test_HeapPage_DirtyTracking(t *testing.T) {
	t.Parallel()
	page := newTestPage(t)
	require.False(t, page.isDirty())

	tid := NewTID()
	page.markDirty(true, tid)
	require.True(t, page.isDirty())
	by, ok := page.dirtyBy()
	require.True(t, ok)
	require.Equal(t, tid, by)

	page.markDirty(false, tid)
	require.False(t, page.isDirty())
}
