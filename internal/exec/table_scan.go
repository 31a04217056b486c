package exec

import (
	"github.com/xzxg001/miniob-sub000/internal/record"
	"github.com/xzxg001/miniob-sub000/internal/table"
	"github.com/xzxg001/miniob-sub000/internal/trxmgr"
	"github.com/xzxg001/miniob-sub000/internal/tuple"
)

// ridCarrier is implemented by any RowOperator whose current tuple is
// backed by one physical record, so Delete can recover the RID to
// remove without re-scanning (spec.md §4.8: "Delete buffers RIDs
// first, then deletes, to avoid iterator invalidation").
type ridCarrier interface {
	CurrentRID() record.RID
}

// TableScan implements spec.md §4.8's row-at-a-time full-table scan
// physical operator, grounded on tinySQL's internal/engine/exec.go
// evalSelect table walk, redesigned onto internal/record's MVCC-aware
// RowScanner instead of tinySQL's direct map iteration.
type TableScan struct {
	Mgr   *trxmgr.Manager
	Table *table.Table
	Mode  trxmgr.ReadMode

	scanner *record.RowScanner
	cur     tuple.Tuple
	curRID  record.RID
}

// NewTableScan builds a TableScan over every field of tbl, in schema
// order.
func NewTableScan(mgr *trxmgr.Manager, tbl *table.Table, mode trxmgr.ReadMode) *TableScan {
	return &TableScan{Mgr: mgr, Table: tbl, Mode: mode}
}

func (s *TableScan) Open(trx *trxmgr.MvccTrx) error {
	s.scanner = s.Table.Records.OpenRowScanner(s.Mgr.Visibility(trx.TrxID(), s.Mode))
	return nil
}

func (s *TableScan) Next() error {
	if err := s.scanner.Next(); err != nil {
		return err
	}
	raw, rid := s.scanner.Current()
	values, err := s.Table.DecodeRow(raw[record.HiddenFieldsSize:])
	if err != nil {
		return err
	}
	s.cur = tuple.NewRowTuple(s.Table.Meta.Name, fieldNames(s.Table.Meta), values)
	s.curRID = rid
	return nil
}

func (s *TableScan) Current() tuple.Tuple        { return s.cur }
func (s *TableScan) CurrentRID() record.RID      { return s.curRID }
func (s *TableScan) Close() error                { s.scanner.Close(); return nil }

func fieldNames(m *table.Meta) []string {
	out := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		out[i] = f.Name
	}
	return out
}

// TableScanVec is TableScan's chunk-iterator counterpart (spec.md
// §4.8), filling a Chunk of decoded row tuples per Next call.
type TableScanVec struct {
	Mgr      *trxmgr.Manager
	Table    *table.Table
	Mode     trxmgr.ReadMode
	Capacity int

	scanner *record.ChunkScanner
	raw     *record.Chunk
}

func NewTableScanVec(mgr *trxmgr.Manager, tbl *table.Table, mode trxmgr.ReadMode, capacity int) *TableScanVec {
	return &TableScanVec{Mgr: mgr, Table: tbl, Mode: mode, Capacity: capacity}
}

func (s *TableScanVec) Open(trx *trxmgr.MvccTrx) error {
	s.scanner = s.Table.Records.OpenChunkScanner(s.Mgr.Visibility(trx.TrxID(), s.Mode), s.Capacity)
	s.raw = record.NewChunk(s.Capacity)
	return nil
}

func (s *TableScanVec) Next(out *Chunk) error {
	if err := s.scanner.NextChunk(s.raw); err != nil {
		return err
	}
	out.Reset()
	fields := fieldNames(s.Table.Meta)
	for i, rawRow := range s.raw.Rows {
		if !s.raw.Select[i] {
			continue
		}
		values, err := s.Table.DecodeRow(rawRow[record.HiddenFieldsSize:])
		if err != nil {
			return err
		}
		out.Tuples = append(out.Tuples, tuple.NewRowTuple(s.Table.Meta.Name, fields, values))
		out.Select = append(out.Select, true)
	}
	return nil
}

func (s *TableScanVec) Close() error { s.scanner.Close(); return nil }
