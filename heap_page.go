package heapdb

import (
	"bytes"
	"fmt"
)

/* heapPage implements Page for pages of a HeapFile (§4.B). Unlike the
teacher's heap_page.go, which headers each page with two int32s
(numSlots, numUsedSlots), this layout is pinned by spec.md §3/§6: a
ceil(numSlots/8)-byte occupancy bitmap (bit i, LSB-first within byte i/8)
followed directly by numSlots fixed-width tuple slots, zero-padded to
PageSize. numSlots itself is derived from PageSize and the TupleDesc's
width rather than stored in the page, since it is fully determined by the
schema (§3: "numSlots = floor((pageSize*8) / (tupleDesc.width*8 + 1))").

The insertTuple/deleteTuple/tupleIter split, and the Dirty/getFile/Page
interface methods, are kept from the teacher almost verbatim — only the
slot bookkeeping underneath changed from a sparse []*Tuple to an explicit
header bitmap plus dense tuple storage. */

type heapPage struct {
	pid  PageID
	desc *TupleDesc
	file *HeapFile

	numSlots int
	occupied []bool  // logical header bitmap, one entry per slot
	tuples   []Tuple // valid only where occupied[i] is true

	dirtyTid    *TransactionID
	beforeImage []byte // byte snapshot captured at load / refreshed at flush
}

// numSlotsForPage returns floor((pageSize*8) / (tupleWidth*8 + 1)), the
// slot count implied by a page size and tuple width (§3).
func numSlotsForPage(pageSize, tupleWidth int) int {
	if tupleWidth <= 0 {
		return 0
	}
	return (pageSize * 8) / (tupleWidth*8 + 1)
}

// headerBytes returns ceil(numSlots/8), the size of the occupancy bitmap.
func headerBytes(numSlots int) int {
	return (numSlots + 7) / 8
}

// newHeapPage constructs an empty heap page for pid, sized by desc and the
// active PageSize.
func newHeapPage(desc *TupleDesc, pid PageID, f *HeapFile) (*heapPage, error) {
	width := desc.Width()
	if width <= 0 {
		return nil, newErr(SchemaMismatchError, "tuple desc has zero width")
	}
	numSlots := numSlotsForPage(PageSize, width)
	if numSlots <= 0 {
		return nil, newErr(SchemaMismatchError, fmt.Sprintf("tuple width %d does not fit in a %d-byte page", width, PageSize))
	}
	p := &heapPage{
		pid:      pid,
		desc:     desc,
		file:     f,
		numSlots: numSlots,
		occupied: make([]bool, numSlots),
		tuples:   make([]Tuple, numSlots),
	}
	img, err := p.toBuffer()
	if err != nil {
		return nil, err
	}
	p.beforeImage = img.Bytes()
	return p, nil
}

func (h *heapPage) getNumSlots() int {
	return h.numSlots
}

// getNumEmptySlots returns the count of zero bits in the logical header
// (§4.B).
func (h *heapPage) getNumEmptySlots() int {
	empty := 0
	for _, occ := range h.occupied {
		if !occ {
			empty++
		}
	}
	return empty
}

// insertTuple places t into the lowest-indexed empty slot (§4.B, and P3:
// slot recycling picks the lowest empty slot). Fails with PageFullError if
// none is free, or SchemaMismatchError if t's field count doesn't match the
// page's TupleDesc.
func (h *heapPage) insertTuple(t *Tuple) (RecordID, error) {
	if len(t.Fields) != len(h.desc.Fields) {
		return RecordID{}, newErr(SchemaMismatchError, "tuple does not match page's tuple descriptor")
	}
	for slot := 0; slot < h.numSlots; slot++ {
		if h.occupied[slot] {
			continue
		}
		rid := RecordID{Page: h.pid, SlotNo: slot}
		h.occupied[slot] = true
		h.tuples[slot] = Tuple{
			Desc:   *h.desc,
			Fields: append([]DBValue(nil), t.Fields...),
			Rid:    &rid,
		}
		t.Rid = &rid
		return rid, nil
	}
	DPrintf("heap_page: %v has no empty slot", h.pid)
	return RecordID{}, newErr(PageFullError, "no empty slot on page")
}

// deleteTuple clears the slot named by rid (§4.B). Fails with
// TupleNotFoundError if rid does not name this page or the slot is already
// vacant.
func (h *heapPage) deleteTuple(rid RecordID) error {
	if rid.Page != h.pid {
		return newErr(TupleNotFoundError, "record id does not belong to this page")
	}
	if rid.SlotNo < 0 || rid.SlotNo >= h.numSlots || !h.occupied[rid.SlotNo] {
		return newErr(TupleNotFoundError, "slot is not occupied")
	}
	h.occupied[rid.SlotNo] = false
	h.tuples[rid.SlotNo] = Tuple{}
	return nil
}

func (h *heapPage) isDirty() bool {
	return h.dirtyTid != nil
}

func (h *heapPage) dirtyBy() (TransactionID, bool) {
	if h.dirtyTid == nil {
		return TransactionID{}, false
	}
	return *h.dirtyTid, true
}

// markDirty records tid as the page's dirtying transaction, or clears the
// mark when dirty is false (§4.B).
func (h *heapPage) markDirty(dirty bool, tid TransactionID) {
	if dirty {
		t := tid
		h.dirtyTid = &t
	} else {
		h.dirtyTid = nil
	}
}

func (h *heapPage) getFile() *HeapFile {
	return h.file
}

func (h *heapPage) pageID() PageID {
	return h.pid
}

// toBuffer (getPageData) serializes the header bitmap then the tuple
// slots, zero-padding vacant slots, to exactly PageSize bytes (§4.B, §6).
func (h *heapPage) toBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	hdr := make([]byte, headerBytes(h.numSlots))
	for i := 0; i < h.numSlots; i++ {
		if h.occupied[i] {
			hdr[i/8] |= 1 << (uint(i) % 8)
		}
	}
	if _, err := buf.Write(hdr); err != nil {
		return nil, err
	}

	width := h.desc.Width()
	for i := 0; i < h.numSlots; i++ {
		if h.occupied[i] {
			t := h.tuples[i]
			if err := t.writeTo(buf); err != nil {
				return nil, err
			}
		} else {
			if _, err := buf.Write(make([]byte, width)); err != nil {
				return nil, err
			}
		}
	}

	if buf.Len() < PageSize {
		if _, err := buf.Write(make([]byte, PageSize-buf.Len())); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// initFromBuffer parses the bitmap header, then each occupied slot's tuple
// bytes, assigning each its RecordID (§4.B decoding steps 1-3).
func (h *heapPage) initFromBuffer(buf *bytes.Buffer) error {
	hdr := make([]byte, headerBytes(h.numSlots))
	if _, err := buf.Read(hdr); err != nil {
		return wrapErr(MalformedDataError, "reading page header", err)
	}

	h.occupied = make([]bool, h.numSlots)
	h.tuples = make([]Tuple, h.numSlots)
	width := h.desc.Width()

	for i := 0; i < h.numSlots; i++ {
		occ := hdr[i/8]&(1<<(uint(i)%8)) != 0
		h.occupied[i] = occ
		raw := make([]byte, width)
		if _, err := buf.Read(raw); err != nil {
			return wrapErr(MalformedDataError, "reading tuple slot", err)
		}
		if !occ {
			continue
		}
		t, err := readTupleFrom(bytes.NewBuffer(raw), h.desc)
		if err != nil {
			return err
		}
		rid := RecordID{Page: h.pid, SlotNo: i}
		t.Rid = &rid
		h.tuples[i] = *t
	}
	return nil
}

// tupleIter returns a lazy, non-restartable iterator over occupied slots in
// ascending slot order (§4.B).
func (h *heapPage) tupleIter() func() (*Tuple, error) {
	i := 0
	return func() (*Tuple, error) {
		for i < h.numSlots {
			slot := i
			i++
			if h.occupied[slot] {
				t := h.tuples[slot]
				return &t, nil
			}
		}
		return nil, nil
	}
}

// getBeforeImage returns the byte snapshot captured at load time or last
// refreshed at flush (§4.B), used by BufferPool.markDirtied to build the
// undo log record.
func (h *heapPage) getBeforeImage() []byte {
	return h.beforeImage
}

// refreshBeforeImage recaptures the before-image after a flush (§3: "a
// before-image byte snapshot captured at load time and refreshed after each
// flush").
func (h *heapPage) refreshBeforeImage() error {
	buf, err := h.toBuffer()
	if err != nil {
		return err
	}
	h.beforeImage = buf.Bytes()
	return nil
}
