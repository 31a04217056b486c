package exec

import (
	"github.com/xzxg001/miniob-sub000/internal/index"
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/record"
	"github.com/xzxg001/miniob-sub000/internal/table"
	"github.com/xzxg001/miniob-sub000/internal/trxmgr"
	"github.com/xzxg001/miniob-sub000/internal/tuple"
)

// IndexScan implements spec.md §4.8's IndexScan physical operator:
// walks a B+Tree's [lo, hi] inclusive range and fetches each matching
// row by RID, filtering through the same MVCC visibility rule a
// TableScan applies (an index entry's row may still be invisible to
// the scanning transaction).
type IndexScan struct {
	Mgr   *trxmgr.Manager
	Table *table.Table
	Tree  *index.Tree
	Lo    []byte
	Hi    []byte
	Mode  trxmgr.ReadMode

	visible record.VisibilityFunc
	pending []record.RID
	pos     int
	cur     tuple.Tuple
	curRID  record.RID
}

func NewIndexScan(mgr *trxmgr.Manager, tbl *table.Table, tree *index.Tree, lo, hi []byte, mode trxmgr.ReadMode) *IndexScan {
	return &IndexScan{Mgr: mgr, Table: tbl, Tree: tree, Lo: lo, Hi: hi, Mode: mode}
}

func (s *IndexScan) Open(trx *trxmgr.MvccTrx) error {
	s.visible = s.Mgr.Visibility(trx.TrxID(), s.Mode)
	s.pending = nil
	s.pos = 0
	return s.Tree.RangeScan(s.Lo, s.Hi, func(_ []byte, rid record.RID) bool {
		s.pending = append(s.pending, rid)
		return true
	})
}

func (s *IndexScan) Next() error {
	for s.pos < len(s.pending) {
		rid := s.pending[s.pos]
		s.pos++
		raw, err := s.Table.Records.GetRecord(rid)
		if err == rc.RECORD_NOT_EXIST {
			continue
		}
		if err != nil {
			return err
		}
		beginXID, endXID := record.DecodeHiddenFields(raw)
		if verr := s.visible(beginXID, endXID); verr != nil {
			if verr == rc.RECORD_INVISIBLE {
				continue
			}
			return verr
		}
		values, err := s.Table.DecodeRow(raw[record.HiddenFieldsSize:])
		if err != nil {
			return err
		}
		s.cur = tuple.NewRowTuple(s.Table.Meta.Name, fieldNames(s.Table.Meta), values)
		s.curRID = rid
		return nil
	}
	return rc.RECORD_EOF
}

func (s *IndexScan) Current() tuple.Tuple   { return s.cur }
func (s *IndexScan) CurrentRID() record.RID { return s.curRID }
func (s *IndexScan) Close() error           { return nil }
