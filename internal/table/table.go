// Package table implements spec.md's Table & TableMeta component: field
// schema, a fixed-width record codec over sqltype.Value, and the glue
// tying a record.Manager to an index.Tree per indexed field.
//
// Grounded on tinySQL's internal/storage/catalog.go (TableMeta-style
// field list with name/type/offset bookkeeping) and the field-offset
// codec shape in original_source's storage/field/field.cpp
// (Field::get_int reads record.data()+field_->offset(), field_->len()),
// adapted from tinySQL's schema-as-column-name-list to a fixed-offset
// binary codec matching this repository's fixed-length record pages.
package table

import (
	"fmt"
	"math"

	"github.com/xzxg001/miniob-sub000/internal/index"
	"github.com/xzxg001/miniob-sub000/internal/pager"
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/record"
	"github.com/xzxg001/miniob-sub000/internal/sqltype"
)

// StorageFormat mirrors MiniOB's row/column storage choice for a table;
// only ROW is implemented, COLUMN is reserved for the vectorized path
// (physical TableScanVec still runs over ROW storage by chunking reads,
// per SPEC_FULL.md's physical planning notes).
type StorageFormat int

const (
	RowFormat StorageFormat = iota
	ColumnFormat
)

// FieldMeta describes one user-visible column: its name, value kind, and
// byte offset/width within a record (after the two hidden MVCC fields).
type FieldMeta struct {
	Name   string
	Kind   sqltype.Kind
	Offset int
	Width  int
}

// fixedWidth returns the on-disk width of one value of kind, or an error
// for kinds with no fixed-length encoding support (CHARS requires an
// explicit width supplied by the CREATE TABLE statement).
func fixedWidth(kind sqltype.Kind, declaredWidth int) (int, error) {
	switch kind {
	case sqltype.INT:
		return 8, nil
	case sqltype.FLOAT:
		return 8, nil
	case sqltype.BOOL:
		return 1, nil
	case sqltype.CHARS:
		if declaredWidth <= 0 {
			return 0, rc.Errorf(rc.INVALID_ARGUMENT, "CHARS field requires a positive declared width")
		}
		return declaredWidth, nil
	default:
		return 0, rc.Errorf(rc.INVALID_ARGUMENT, "unsupported field kind %v", kind)
	}
}

// Meta is a table's schema plus its storage-format choice (spec.md
// component table row 7).
type Meta struct {
	Name          string
	Fields        []FieldMeta
	StorageFormat StorageFormat
	// RecordWidth is the width of the user-data portion of a record,
	// i.e. excluding the two hidden MVCC fields record.HiddenFieldsSize
	// prepends.
	RecordWidth int
}

// NewMeta lays out fields back-to-back starting at offset 0 of the
// user-data region, assigning fixed widths per kind.
func NewMeta(name string, columns []FieldMeta, format StorageFormat) (*Meta, error) {
	m := &Meta{Name: name, StorageFormat: format}
	offset := 0
	for _, c := range columns {
		width, err := fixedWidth(c.Kind, c.Width)
		if err != nil {
			return nil, fmt.Errorf("table %s field %s: %w", name, c.Name, err)
		}
		c.Offset = offset
		c.Width = width
		m.Fields = append(m.Fields, c)
		offset += width
	}
	m.RecordWidth = offset
	return m, nil
}

// FieldByName finds a field by name, honoring spec.md §4.7's star-expansion
// and unqualified-name resolution (case-sensitive, matching tinySQL).
func (m *Meta) FieldByName(name string) (FieldMeta, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldMeta{}, false
}

// Table ties a record manager (physical storage) to its schema and any
// secondary indexes (spec.md component table row 7: "ties records to
// indexes").
type Table struct {
	ID      int32
	Meta    *Meta
	Records *record.Manager
	// Indexes maps an indexed field name to its B+Tree.
	Indexes map[string]*index.Tree
}

// NewTable wraps pool with meta's schema; recordSize is
// record.HiddenFieldsSize + meta.RecordWidth.
func NewTable(id int32, meta *Meta, pool *pager.Pool) *Table {
	recordSize := record.HiddenFieldsSize + meta.RecordWidth
	return &Table{
		ID:      id,
		Meta:    meta,
		Records: record.NewManager(pool, recordSize),
		Indexes: make(map[string]*index.Tree),
	}
}

// CreateIndex adds a B+Tree over fieldName, grounded on spec.md §4.8's
// IndexScan requirement that an indexed field support equality range
// scans.
func (t *Table) CreateIndex(fieldName string, tree *index.Tree) error {
	if _, ok := t.Meta.FieldByName(fieldName); !ok {
		return rc.Errorf(rc.SCHEMA_FIELD_MISSING, "no such field %s on table %s", fieldName, t.Meta.Name)
	}
	t.Indexes[fieldName] = tree
	return nil
}

// EncodeRow packs values (one per t.Meta.Fields, in order) into the
// user-data portion of a record (the two hidden MVCC fields are handled
// separately by internal/trxmgr, which prepends them).
func (t *Table) EncodeRow(values []sqltype.Value) ([]byte, error) {
	if len(values) != len(t.Meta.Fields) {
		return nil, rc.Errorf(rc.INVALID_ARGUMENT, "expected %d values, got %d", len(t.Meta.Fields), len(values))
	}
	buf := make([]byte, t.Meta.RecordWidth)
	for i, f := range t.Meta.Fields {
		if err := encodeValue(buf[f.Offset:f.Offset+f.Width], f, values[i]); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// DecodeRow unpacks a record's user-data portion (i.e. raw[record.HiddenFieldsSize:])
// into one sqltype.Value per field.
func (t *Table) DecodeRow(userData []byte) ([]sqltype.Value, error) {
	out := make([]sqltype.Value, len(t.Meta.Fields))
	for i, f := range t.Meta.Fields {
		v, err := decodeValue(userData[f.Offset:f.Offset+f.Width], f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func encodeValue(dst []byte, f FieldMeta, v sqltype.Value) error {
	switch f.Kind {
	case sqltype.INT:
		iv, err := sqltype.Cast(v, sqltype.INT)
		if err != nil {
			return err
		}
		putInt64(dst, iv.IntV)
	case sqltype.FLOAT:
		fv, err := sqltype.Cast(v, sqltype.FLOAT)
		if err != nil {
			return err
		}
		putFloat64(dst, fv.FloatV)
	case sqltype.BOOL:
		bv, err := sqltype.Cast(v, sqltype.BOOL)
		if err != nil {
			return err
		}
		if bv.BoolV {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case sqltype.CHARS:
		cv, err := sqltype.Cast(v, sqltype.CHARS)
		if err != nil {
			return err
		}
		n := copy(dst, cv.CharsV)
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
	default:
		return rc.Errorf(rc.INTERNAL, "unsupported field kind %v", f.Kind)
	}
	return nil
}

func decodeValue(src []byte, f FieldMeta) (sqltype.Value, error) {
	switch f.Kind {
	case sqltype.INT:
		return sqltype.NewInt(getInt64(src)), nil
	case sqltype.FLOAT:
		return sqltype.NewFloat(getFloat64(src)), nil
	case sqltype.BOOL:
		return sqltype.NewBool(src[0] != 0), nil
	case sqltype.CHARS:
		end := 0
		for end < len(src) && src[end] != 0 {
			end++
		}
		return sqltype.NewChars(string(src[:end])), nil
	default:
		return sqltype.Value{}, rc.Errorf(rc.INTERNAL, "unsupported field kind %v", f.Kind)
	}
}

func putInt64(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * uint(i)))
	}
}

func getInt64(b []byte) int64 {
	var u uint64
	for i := 0; i < 8; i++ {
		u |= uint64(b[i]) << (8 * uint(i))
	}
	return int64(u)
}

func putFloat64(b []byte, f float64) {
	putInt64(b, int64(math.Float64bits(f)))
}

func getFloat64(b []byte) float64 {
	return math.Float64frombits(uint64(getInt64(b)))
}
