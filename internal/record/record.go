// Package record implements the slotted-page record manager described in
// spec.md §4.4/§6: a per-page occupancy bitmap over fixed-length record
// slots, addressed by RID = (page_num, slot_num).
//
// Grounded on tinySQL's internal/storage/pager/slotted_page.go (page
// layout conventions: header fields packed at a fixed offset, slots
// addressed by index), redesigned from tinySQL's variable-length
// offset/length slot directory to spec.md §6's fixed-length-record +
// occupancy-bitmap layout (every record in a table is the same width, so
// no offset/length bookkeeping is needed per slot — only a live/dead bit).
package record

import (
	"encoding/binary"
	"fmt"

	"github.com/xzxg001/miniob-sub000/internal/pager"
)

// RID identifies a record uniquely within a table: (page_num, slot_num)
// (spec.md §3).
type RID struct {
	PageNum pager.PageNum
	SlotNum int32
}

func (r RID) String() string { return fmt.Sprintf("RID(%d,%d)", r.PageNum, r.SlotNum) }

// recordPageHeaderSize: RecordSize(4) + SlotCapacity(4) + bitmap follows.
const recordPageHeaderSize = 8

// PageView wraps one record page's Data region for slot-level access.
// Layout within Data:
//
//	[0:4]   RecordSize    uint32 LE — fixed width of one record, in bytes
//	[4:8]   SlotCapacity  uint32 LE — max slots this page can hold
//	[8:8+ceil(cap/8)]     occupancy bitmap (bit i <-> slot i occupied)
//	[bitmapEnd:]          slot_0 .. slot_{cap-1}, each RecordSize bytes
type PageView struct {
	data         []byte
	recordSize   int
	slotCapacity int
}

// InitPage formats data as a fresh record page for the given fixed record
// size, maximizing slot capacity within the available space.
func InitPage(data []byte, recordSize int) *PageView {
	avail := len(data) - recordPageHeaderSize
	// capacity c must satisfy: ceil(c/8) + c*recordSize <= avail
	cap := 0
	for {
		bitmapBytes := (cap + 1 + 7) / 8
		if bitmapBytes+(cap+1)*recordSize > avail {
			break
		}
		cap++
	}
	binary.LittleEndian.PutUint32(data[0:4], uint32(recordSize))
	binary.LittleEndian.PutUint32(data[4:8], uint32(cap))
	bitmapBytes := (cap + 7) / 8
	for i := 0; i < bitmapBytes; i++ {
		data[recordPageHeaderSize+i] = 0
	}
	return &PageView{data: data, recordSize: recordSize, slotCapacity: cap}
}

// WrapPage wraps an already-initialized record page.
func WrapPage(data []byte) *PageView {
	recordSize := int(binary.LittleEndian.Uint32(data[0:4]))
	cap := int(binary.LittleEndian.Uint32(data[4:8]))
	return &PageView{data: data, recordSize: recordSize, slotCapacity: cap}
}

func (pv *PageView) bitmapOffset() int { return recordPageHeaderSize }

func (pv *PageView) slotsOffset() int {
	return recordPageHeaderSize + (pv.slotCapacity+7)/8
}

// Capacity returns the maximum slots this page can hold.
func (pv *PageView) Capacity() int { return pv.slotCapacity }

// RecordSize returns the fixed record width.
func (pv *PageView) RecordSize() int { return pv.recordSize }

// Occupied reports whether slot i currently holds a live record.
func (pv *PageView) Occupied(i int) bool {
	if i < 0 || i >= pv.slotCapacity {
		return false
	}
	off := pv.bitmapOffset() + i/8
	return pv.data[off]&(1<<uint(i%8)) != 0
}

func (pv *PageView) setOccupied(i int, v bool) {
	off := pv.bitmapOffset() + i/8
	if v {
		pv.data[off] |= 1 << uint(i%8)
	} else {
		pv.data[off] &^= 1 << uint(i%8)
	}
}

// FirstFreeSlot returns the first unoccupied slot index, or -1 if the page
// is full.
func (pv *PageView) FirstFreeSlot() int {
	for i := 0; i < pv.slotCapacity; i++ {
		if !pv.Occupied(i) {
			return i
		}
	}
	return -1
}

// SlotBytes returns a mutable view over slot i's raw bytes.
func (pv *PageView) SlotBytes(i int) []byte {
	off := pv.slotsOffset() + i*pv.recordSize
	return pv.data[off : off+pv.recordSize]
}

// PutRecord writes data into slot i and marks it occupied.
func (pv *PageView) PutRecord(i int, data []byte) {
	copy(pv.SlotBytes(i), data)
	pv.setOccupied(i, true)
}

// DeleteRecord clears slot i's occupancy bit (bytes are left in place
// until overwritten by a future insert).
func (pv *PageView) DeleteRecord(i int) {
	pv.setOccupied(i, false)
}

// OccupiedSlots returns every occupied slot index in ascending order.
func (pv *PageView) OccupiedSlots() []int {
	var out []int
	for i := 0; i < pv.slotCapacity; i++ {
		if pv.Occupied(i) {
			out = append(out, i)
		}
	}
	return out
}
