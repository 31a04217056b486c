package record

import (
	"github.com/xzxg001/miniob-sub000/internal/rc"
)

// VisibilityFunc decides whether a record is visible to the scanning
// transaction, given its two hidden MVCC fields (spec.md §4.5). It
// returns rc.RECORD_INVISIBLE to skip the record, nil to keep it, or any
// other error to abort the scan. Decoupling the scanner from a
// concrete transaction-manager type avoids record depending on trxmgr.
type VisibilityFunc func(beginXID, endXID int32) error

// ReadMode matches spec.md §4.5's READ_ONLY / READ_WRITE visit modes.
type ReadMode int

const (
	ReadOnly ReadMode = iota
	ReadWrite
)

// RowScanner implements spec.md §4.4's row (pull) scanner: open/next/close.
type RowScanner struct {
	mgr        *Manager
	visible    VisibilityFunc
	pageIdx    int
	slotIdx    int
	cur        []byte
	curRID     RID
	done       bool
}

// OpenRowScanner starts a full-table scan, filtering rows through
// visible (nil means no filtering — used for recovery/administrative
// scans).
func (m *Manager) OpenRowScanner(visible VisibilityFunc) *RowScanner {
	return &RowScanner{mgr: m, visible: visible, pageIdx: 0, slotIdx: 0}
}

// Next advances to the next visible record, returning rc.RECORD_EOF once
// the table is exhausted. RECORD_INVISIBLE rows are skipped transparently
// (spec.md §7: "RECORD_INVISIBLE is skipped by scanners").
func (s *RowScanner) Next() error {
	if s.done {
		return rc.RECORD_EOF
	}
	pages := s.mgr.DataPages()
	for s.pageIdx < len(pages) {
		pn := pages[s.pageIdx]
		f, err := s.mgr.pool.GetPage(pn)
		if err != nil {
			return err
		}
		pv := s.mgr.pageView(f)
		for s.slotIdx < pv.Capacity() {
			slot := s.slotIdx
			s.slotIdx++
			if !pv.Occupied(slot) {
				continue
			}
			raw := make([]byte, s.mgr.recordSize)
			copy(raw, pv.SlotBytes(slot))
			beginXID, endXID := decodeHiddenFields(raw)
			if s.visible != nil {
				if verr := s.visible(beginXID, endXID); verr != nil {
					if verr == rc.RECORD_INVISIBLE {
						continue
					}
					s.mgr.pool.UnpinPage(f)
					return verr
				}
			}
			s.mgr.pool.UnpinPage(f)
			s.cur = raw
			s.curRID = RID{PageNum: pn, SlotNum: int32(slot)}
			return nil
		}
		s.mgr.pool.UnpinPage(f)
		s.pageIdx++
		s.slotIdx = 0
	}
	s.done = true
	return rc.RECORD_EOF
}

// Current returns the record bytes and RID found by the last successful
// Next call.
func (s *RowScanner) Current() ([]byte, RID) { return s.cur, s.curRID }

// Close ends the scan. RowScanner holds no pinned frames between Next
// calls, so Close is a no-op kept for interface symmetry with spec.md
// §4.4's open/next/close contract.
func (s *RowScanner) Close() {}

// HiddenFieldsSize is the width, in bytes, of the two hidden MVCC fields
// prepended to every user table record (spec.md §3: two 32-bit fields).
const HiddenFieldsSize = 8

func decodeHiddenFields(raw []byte) (beginXID, endXID int32) {
	beginXID = int32(leUint32(raw[0:4]))
	endXID = int32(leUint32(raw[4:8]))
	return
}

// EncodeHiddenFields writes begin/end xid into the first 8 bytes of a
// record buffer.
func EncodeHiddenFields(raw []byte, beginXID, endXID int32) {
	putLE32(raw[0:4], uint32(beginXID))
	putLE32(raw[4:8], uint32(endXID))
}

// DecodeHiddenFields is the exported counterpart used by trxmgr.
func DecodeHiddenFields(raw []byte) (beginXID, endXID int32) {
	return decodeHiddenFields(raw)
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// ChunkSize is the default number of rows a ChunkScanner fills per call
// (spec.md §4.4 chunk scanner / §4.9 chunk operator contract).
const ChunkSize = 256

// Chunk is a minimal columnar batch: raw record bytes plus RIDs, with a
// selection vector higher layers (internal/tuple, internal/exec) use to
// mask rows without copying (spec.md §4.9).
type Chunk struct {
	Rows   [][]byte
	RIDs   []RID
	Select []bool
}

// NewChunk allocates an empty chunk with the given capacity.
func NewChunk(capacity int) *Chunk {
	return &Chunk{
		Rows:   make([][]byte, 0, capacity),
		RIDs:   make([]RID, 0, capacity),
		Select: make([]bool, 0, capacity),
	}
}

// Len returns the number of rows currently buffered in the chunk.
func (c *Chunk) Len() int { return len(c.Rows) }

// Reset empties the chunk for reuse.
func (c *Chunk) Reset() {
	c.Rows = c.Rows[:0]
	c.RIDs = c.RIDs[:0]
	c.Select = c.Select[:0]
}

// ChunkScanner implements spec.md §4.4's chunk scanner:
// next_chunk(&mut Chunk) fills a columnar chunk up to its capacity.
type ChunkScanner struct {
	rows *RowScanner
	cap  int
}

// OpenChunkScanner starts a chunked full-table scan of capacity rows per
// NextChunk call.
func (m *Manager) OpenChunkScanner(visible VisibilityFunc, capacity int) *ChunkScanner {
	if capacity <= 0 {
		capacity = ChunkSize
	}
	return &ChunkScanner{rows: m.OpenRowScanner(visible), cap: capacity}
}

// NextChunk fills out up to its capacity, returning rc.RECORD_EOF only
// once no more rows remain (a partially filled chunk on EOF is not itself
// an error — callers check out.Len() == 0 alongside the returned RC).
func (s *ChunkScanner) NextChunk(out *Chunk) error {
	out.Reset()
	for out.Len() < s.cap {
		err := s.rows.Next()
		if err == rc.RECORD_EOF {
			if out.Len() == 0 {
				return rc.RECORD_EOF
			}
			return nil
		}
		if err != nil {
			return err
		}
		raw, rid := s.rows.Current()
		out.Rows = append(out.Rows, raw)
		out.RIDs = append(out.RIDs, rid)
		out.Select = append(out.Select, true)
	}
	return nil
}

// Close ends the chunk scan.
func (s *ChunkScanner) Close() { s.rows.Close() }
