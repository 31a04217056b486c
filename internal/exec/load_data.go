package exec

import (
	"bufio"
	"io"
	"strings"

	"github.com/xzxg001/miniob-sub000/internal/index"
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/sqltype"
	"github.com/xzxg001/miniob-sub000/internal/table"
	"github.com/xzxg001/miniob-sub000/internal/trxmgr"
	"github.com/xzxg001/miniob-sub000/internal/tuple"
)

// LoadData implements spec.md's bulk-load operator, grounded on
// original_source's load_data_executor.cpp: read Src line by line, split
// each line on '|' into as many fields as the table declares, parse each
// field by its column kind, and insert the row through the same
// transaction path a single-row Insert uses.
type LoadData struct {
	Mgr   *trxmgr.Manager
	Table *table.Table
	Src   io.Reader

	trx     *trxmgr.MvccTrx
	scanner *bufio.Scanner
	done    bool
}

func NewLoadData(mgr *trxmgr.Manager, tbl *table.Table, src io.Reader) *LoadData {
	return &LoadData{Mgr: mgr, Table: tbl, Src: src}
}

func (l *LoadData) Open(trx *trxmgr.MvccTrx) error {
	l.trx = trx
	l.scanner = bufio.NewScanner(l.Src)
	return nil
}

func (l *LoadData) Next() error {
	if l.done {
		return rc.RECORD_EOF
	}
	for l.scanner.Scan() {
		line := strings.TrimRight(l.scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) != len(l.Table.Meta.Fields) {
			return rc.Errorf(rc.SCHEMA_FIELD_MISSING,
				"load data: row has %d fields, table %s has %d", len(fields), l.Table.Meta.Name, len(l.Table.Meta.Fields))
		}
		values := make([]sqltype.Value, len(fields))
		for i, raw := range fields {
			v, err := sqltype.ParseValue(l.Table.Meta.Fields[i].Kind, strings.TrimSpace(raw))
			if err != nil {
				return rc.Errorf(rc.SCHEMA_FIELD_TYPE_MISMATCH, "load data: field %s: %v", l.Table.Meta.Fields[i].Name, err)
			}
			values[i] = v
		}
		encoded, err := l.Table.EncodeRow(values)
		if err != nil {
			return err
		}
		rid, err := l.Mgr.Insert(l.trx, &trxmgr.Table{ID: l.Table.ID, Records: l.Table.Records}, encoded)
		if err != nil {
			return err
		}
		for fieldName, tree := range l.Table.Indexes {
			idx := fieldOrdinal(l.Table.Meta, fieldName)
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
	l.done = true
	if err := l.scanner.Err(); err != nil {
		return err
	}
	return rc.RECORD_EOF
}

func (l *LoadData) Current() tuple.Tuple { return nil }
func (l *LoadData) Close() error         { return nil }
