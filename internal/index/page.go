// Package index implements the B+Tree secondary index described in
// spec.md's component table (row "B+Tree Index": point and range
// scanners over a single indexed field).
//
// Grounded on tinySQL's internal/storage/pager/btree_page.go (on-disk
// node layout: a fixed metadata block followed by a slotted-page style
// record area, internal nodes storing child-pointer + separator-key
// records, leaf nodes storing key + value records with sibling
// pointers for range scans) and btree.go (findLeaf/insertWithSplit/
// insertIntoParent/ScanRange algorithm shape), adapted from tinySQL's
// own Pager type to this repository's internal/pager.Pool and from
// byte-slice values to record.RID values (an index here always points
// at a row, never stores an inline value).
package index

import (
	"bytes"
	"encoding/binary"

	"github.com/xzxg001/miniob-sub000/internal/pager"
)

// Page-local metadata layout, overriding the generic slotted-page header
// tinySQL uses elsewhere, mirroring btree_page.go's approach of packing
// B+Tree-specific fields ahead of the slot directory:
//
//	[0]     IsLeaf        uint8  (1 = leaf, 0 = internal)
//	[1:3]   SlotCount     uint16
//	[3:7]   RightOrNext   uint32 (internal: rightmost child page; leaf: next-leaf sibling)
//	[7:11]  PrevLeaf      uint32 (leaf only; unused on internal nodes)
//	[11:13] FreeSpaceEnd  uint16 (byte offset into Data where record storage currently ends)
//	[13:]   slot directory, 4 bytes/slot: Offset uint16, Length uint16
const (
	metaIsLeafOff      = 0
	metaSlotCountOff   = 1
	metaRightOrNextOff = 3
	metaPrevLeafOff    = 7
	metaFreeEndOff     = 11
	metaSlotDirOff     = 13
	slotEntrySize      = 4
)

// Node wraps one B+Tree page's Data region for record-level access.
type Node struct {
	buf []byte
}

// WrapNode wraps an already-initialized B+Tree page.
func WrapNode(buf []byte) *Node { return &Node{buf: buf} }

// InitLeaf formats buf as a fresh, empty leaf node.
func InitLeaf(buf []byte) *Node {
	n := &Node{buf: buf}
	n.buf[metaIsLeafOff] = 1
	n.setSlotCount(0)
	n.setRightOrNext(int32(pager.InvalidPageNum))
	n.setPrevLeaf(int32(pager.InvalidPageNum))
	n.setFreeSpaceEnd(len(buf))
	return n
}

// InitInternal formats buf as a fresh, empty internal node.
func InitInternal(buf []byte) *Node {
	n := &Node{buf: buf}
	n.buf[metaIsLeafOff] = 0
	n.setSlotCount(0)
	n.setRightOrNext(int32(pager.InvalidPageNum))
	n.setFreeSpaceEnd(len(buf))
	return n
}

func (n *Node) IsLeaf() bool { return n.buf[metaIsLeafOff] == 1 }

func (n *Node) SlotCount() int { return int(binary.LittleEndian.Uint16(n.buf[metaSlotCountOff:])) }
func (n *Node) setSlotCount(c int) {
	binary.LittleEndian.PutUint16(n.buf[metaSlotCountOff:], uint16(c))
}

// RightChild is the rightmost child pointer of an internal node: the
// child for any key greater than or equal to the last separator.
func (n *Node) RightChild() pager.PageNum {
	return pager.PageNum(int32(binary.LittleEndian.Uint32(n.buf[metaRightOrNextOff:])))
}
func (n *Node) SetRightChild(p pager.PageNum) { n.setRightOrNext(int32(p)) }

// NextLeaf/PrevLeaf thread leaf nodes into a doubly linked list for
// range scans (spec.md §4.4 scanner-style iteration over an index).
func (n *Node) NextLeaf() pager.PageNum {
	return pager.PageNum(int32(binary.LittleEndian.Uint32(n.buf[metaRightOrNextOff:])))
}
func (n *Node) SetNextLeaf(p pager.PageNum) { n.setRightOrNext(int32(p)) }
func (n *Node) PrevLeaf() pager.PageNum {
	return pager.PageNum(int32(binary.LittleEndian.Uint32(n.buf[metaPrevLeafOff:])))
}
func (n *Node) setPrevLeaf(v int32) { binary.LittleEndian.PutUint32(n.buf[metaPrevLeafOff:], uint32(v)) }
func (n *Node) SetPrevLeaf(p pager.PageNum) { n.setPrevLeaf(int32(p)) }

func (n *Node) setRightOrNext(v int32) {
	binary.LittleEndian.PutUint32(n.buf[metaRightOrNextOff:], uint32(v))
}

func (n *Node) freeSpaceEnd() int { return int(binary.LittleEndian.Uint16(n.buf[metaFreeEndOff:])) }
func (n *Node) setFreeSpaceEnd(off int) {
	binary.LittleEndian.PutUint16(n.buf[metaFreeEndOff:], uint16(off))
}

func (n *Node) slotDirEnd() int { return metaSlotDirOff + n.SlotCount()*slotEntrySize }
func (n *Node) freeSpace() int  { return n.freeSpaceEnd() - n.slotDirEnd() }

type slotEntry struct {
	Offset uint16
	Length uint16
}

func (n *Node) getSlot(i int) slotEntry {
	off := metaSlotDirOff + i*slotEntrySize
	return slotEntry{
		Offset: binary.LittleEndian.Uint16(n.buf[off:]),
		Length: binary.LittleEndian.Uint16(n.buf[off+2:]),
	}
}

func (n *Node) setSlot(i int, e slotEntry) {
	off := metaSlotDirOff + i*slotEntrySize
	binary.LittleEndian.PutUint16(n.buf[off:], e.Offset)
	binary.LittleEndian.PutUint16(n.buf[off+2:], e.Length)
}

func (n *Node) record(i int) []byte {
	e := n.getSlot(i)
	return n.buf[e.Offset : e.Offset+e.Length]
}

// insertRecordAt stores data as a new record and threads slot pos to point
// at it, shifting later slots right (spec.md §4.4-style slotted page,
// generalized to variable-length keys).
func (n *Node) insertRecordAt(pos int, data []byte) bool {
	needed := len(data)
	if n.freeSpace() < needed+slotEntrySize {
		return false
	}
	newEnd := n.freeSpaceEnd() - needed
	copy(n.buf[newEnd:], data)
	n.setFreeSpaceEnd(newEnd)

	sc := n.SlotCount()
	n.setSlotCount(sc + 1)
	for i := sc; i > pos; i-- {
		n.setSlot(i, n.getSlot(i-1))
	}
	n.setSlot(pos, slotEntry{Offset: uint16(newEnd), Length: uint16(needed)})
	return true
}

func (n *Node) deleteRecordAt(pos int) {
	sc := n.SlotCount()
	for i := pos; i < sc-1; i++ {
		n.setSlot(i, n.getSlot(i+1))
	}
	n.setSlot(sc-1, slotEntry{})
	n.setSlotCount(sc - 1)
}

// --- Internal-node entries: (separator key, left child) ---

type internalEntry struct {
	Key     []byte
	ChildID pager.PageNum
}

func marshalInternal(e internalEntry) []byte {
	rec := make([]byte, 4+2+len(e.Key))
	binary.LittleEndian.PutUint32(rec[0:4], uint32(e.ChildID))
	binary.LittleEndian.PutUint16(rec[4:6], uint16(len(e.Key)))
	copy(rec[6:], e.Key)
	return rec
}

func unmarshalInternal(rec []byte) internalEntry {
	child := pager.PageNum(int32(binary.LittleEndian.Uint32(rec[0:4])))
	kl := int(binary.LittleEndian.Uint16(rec[4:6]))
	key := make([]byte, kl)
	copy(key, rec[6:6+kl])
	return internalEntry{Key: key, ChildID: child}
}

func (n *Node) internalEntry(i int) internalEntry { return unmarshalInternal(n.record(i)) }

// searchInternal returns the sorted insertion position for key among
// separator keys.
func (n *Node) searchInternal(key []byte) int {
	lo, hi := 0, n.SlotCount()
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(n.internalEntry(mid).Key, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// findChild returns the child page to descend into for key. Convention:
// a node with separator keys entries[0] < entries[1] < ... < entries[n-1]
// has n+1 children, entries[i].ChildID for i in [0,n) plus RightChild;
// entries[i].ChildID covers every key strictly less than entries[i].Key
// (and, for i>0, at least entries[i-1].Key), RightChild covers every key
// greater than or equal to entries[n-1].Key.
func (n *Node) findChild(key []byte) pager.PageNum {
	sc := n.SlotCount()
	for i := 0; i < sc; i++ {
		e := n.internalEntry(i)
		if bytes.Compare(key, e.Key) < 0 {
			return e.ChildID
		}
	}
	return n.RightChild()
}

func (n *Node) insertInternalEntry(e internalEntry) bool {
	pos := n.searchInternal(e.Key)
	return n.insertRecordAt(pos, marshalInternal(e))
}

// setInternalChild overwrites the ChildID of the i-th separator entry in
// place (its key and slot length are unchanged, so no reallocation is
// needed).
func (n *Node) setInternalChild(i int, child pager.PageNum) {
	e := n.getSlot(i)
	binary.LittleEndian.PutUint32(n.buf[e.Offset:e.Offset+4], uint32(child))
}

// --- Leaf-node entries: (key, RID) ---

type leafEntry struct {
	Key []byte
	RID indexRID
}

// indexRID is the on-page leaf form of a record.RID; Tree converts to and
// from record.RID at its API boundary (tree.go).
type indexRID struct {
	PageNum int32
	SlotNum int32
}

func marshalLeaf(e leafEntry) []byte {
	rec := make([]byte, 2+len(e.Key)+8)
	binary.LittleEndian.PutUint16(rec[0:2], uint16(len(e.Key)))
	copy(rec[2:], e.Key)
	off := 2 + len(e.Key)
	binary.LittleEndian.PutUint32(rec[off:off+4], uint32(e.RID.PageNum))
	binary.LittleEndian.PutUint32(rec[off+4:off+8], uint32(e.RID.SlotNum))
	return rec
}

func unmarshalLeaf(rec []byte) leafEntry {
	kl := int(binary.LittleEndian.Uint16(rec[0:2]))
	key := make([]byte, kl)
	copy(key, rec[2:2+kl])
	off := 2 + kl
	rid := indexRID{
		PageNum: int32(binary.LittleEndian.Uint32(rec[off : off+4])),
		SlotNum: int32(binary.LittleEndian.Uint32(rec[off+4 : off+8])),
	}
	return leafEntry{Key: key, RID: rid}
}

func (n *Node) leafEntry(i int) leafEntry { return unmarshalLeaf(n.record(i)) }

func (n *Node) searchLeaf(key []byte) int {
	lo, hi := 0, n.SlotCount()
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(n.leafEntry(mid).Key, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (n *Node) findLeafEntry(key []byte) (int, bool) {
	pos := n.searchLeaf(key)
	if pos < n.SlotCount() && bytes.Equal(n.leafEntry(pos).Key, key) {
		return pos, true
	}
	return -1, false
}

func (n *Node) insertLeafEntry(e leafEntry) (int, bool) {
	pos := n.searchLeaf(e.Key)
	if !n.insertRecordAt(pos, marshalLeaf(e)) {
		return -1, false
	}
	return pos, true
}

func (n *Node) deleteLeafAt(pos int) { n.deleteRecordAt(pos) }

// splitPoint returns the median slot index used to split a full node.
func (n *Node) splitPoint() int { return n.SlotCount() / 2 }
