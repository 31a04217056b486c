package exec

import (
	"github.com/xzxg001/miniob-sub000/internal/expr"
	"github.com/xzxg001/miniob-sub000/internal/index"
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/record"
	"github.com/xzxg001/miniob-sub000/internal/sqltype"
	"github.com/xzxg001/miniob-sub000/internal/table"
	"github.com/xzxg001/miniob-sub000/internal/trxmgr"
	"github.com/xzxg001/miniob-sub000/internal/tuple"
)

// Insert implements spec.md §4.8's Insert physical operator: evaluates
// each row's value expressions (already constant-folded at bind time,
// see internal/plan/bind.go's bindInsert) and inserts through
// internal/trxmgr so the row is stamped with this transaction's
// uncommitted-insert markers.
type Insert struct {
	Mgr   *trxmgr.Manager
	Table *table.Table
	Rows  [][]expr.Expression

	trx  *trxmgr.MvccTrx
	pos  int
	done bool
}

func NewInsert(mgr *trxmgr.Manager, tbl *table.Table, rows [][]expr.Expression) *Insert {
	return &Insert{Mgr: mgr, Table: tbl, Rows: rows}
}

func (ins *Insert) Open(trx *trxmgr.MvccTrx) error {
	ins.trx = trx
	return nil
}

func (ins *Insert) Next() error {
	if ins.pos >= len(ins.Rows) {
		return rc.RECORD_EOF
	}
	row := ins.Rows[ins.pos]
	ins.pos++
	values := make([]sqltype.Value, len(row))
	for i, e := range row {
		v, err := e.GetValue(nil)
		if err != nil {
			return err
		}
		values[i] = v
	}
	encoded, err := ins.Table.EncodeRow(values)
	if err != nil {
		return err
	}
	rid, err := ins.Mgr.Insert(ins.trx, &trxmgr.Table{ID: ins.Table.ID, Records: ins.Table.Records}, encoded)
	if err != nil {
		return err
	}
	for fieldName, tree := range ins.Table.Indexes {
		idx := fieldOrdinal(ins.Table.Meta, fieldName)
		if idx < 0 {
			continue
		}
		key, err := index.EncodeKey(values[idx])
		if err != nil {
			return err
		}
		if err := tree.Insert(key, rid); err != nil {
			return err
		}
	}
	return nil
}

// fieldOrdinal returns fieldName's position in m.Fields, or -1.
func fieldOrdinal(m *table.Meta, fieldName string) int {
	for i, f := range m.Fields {
		if f.Name == fieldName {
			return i
		}
	}
	return -1
}

func (ins *Insert) Current() tuple.Tuple { return nil }
func (ins *Insert) Close() error         { return nil }

// Delete implements spec.md §4.8's Delete physical operator: buffers
// every matching RID from Child before issuing any delete, avoiding
// iterator invalidation from mutating a page mid-scan.
type Delete struct {
	Mgr   *trxmgr.Manager
	Table *table.Table
	Child RowOperator

	trx  *trxmgr.MvccTrx
	rids []record.RID
	pos  int
}

func NewDelete(mgr *trxmgr.Manager, tbl *table.Table, child RowOperator) *Delete {
	return &Delete{Mgr: mgr, Table: tbl, Child: child}
}

func (d *Delete) Open(trx *trxmgr.MvccTrx) error {
	d.trx = trx
	if err := d.Child.Open(trx); err != nil {
		return err
	}
	carrier, ok := d.Child.(ridCarrier)
	if !ok {
		return rc.Errorf(rc.INTERNAL, "delete's child operator does not expose RIDs")
	}
	for {
		if err := d.Child.Next(); err != nil {
			if err == rc.RECORD_EOF {
				break
			}
			return err
		}
		d.rids = append(d.rids, carrier.CurrentRID())
	}
	return d.Child.Close()
}

func (d *Delete) Next() error {
	if d.pos >= len(d.rids) {
		return rc.RECORD_EOF
	}
	rid := d.rids[d.pos]
	d.pos++
	tbl := &trxmgr.Table{ID: d.Table.ID, Records: d.Table.Records}
	if err := d.Mgr.Delete(d.trx, tbl, rid); err != nil {
		return err
	}
	return nil
}

func (d *Delete) Current() tuple.Tuple { return nil }
func (d *Delete) Close() error         { return nil }
