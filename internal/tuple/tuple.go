// Package tuple implements spec.md §3's Tuple family: an ordered row of
// values carrying a parallel schema of cell specs.
//
// Grounded on tinySQL's internal/engine/exec.go Row (map[string]any plus
// a separate column-name list threaded alongside it through exec.go's
// pipeline), redesigned into spec.md's five closed tuple variants
// (RowTuple/ProjectTuple/JoinedTuple/ValueListTuple/CompositeTuple) so
// that every row flowing through the executor carries its own schema
// instead of relying on a side-channel column list.
package tuple

import (
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/sqltype"
)

// CellSpec names one cell of a tuple's schema: the table and field it
// came from, plus an optional projection alias (spec.md §3
// TupleCellSpec{table, field, alias}).
type CellSpec struct {
	Table string
	Field string
	Alias string
}

// Name returns the alias if set, otherwise the field name, matching how
// a SELECT's output column header is chosen.
func (s CellSpec) Name() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Field
}

// Tuple is the row-polymorphism contract every tuple variant implements
// (spec.md §3/§4.9: operators read/produce tuples uniformly regardless
// of which concrete shape backs them).
type Tuple interface {
	Len() int
	Cell(i int) (sqltype.Value, error)
	CellSpec(i int) CellSpec
	// FindCell resolves (table, field) to a cell index, honoring
	// unqualified lookups when table == "" (spec.md §4.7 binder: an
	// unqualified name must resolve unambiguously against the current
	// FROM tuple shape).
	FindCell(table, field string) (int, bool)
}

func findCell(specs []CellSpec, table, field string) (int, bool) {
	for i, s := range specs {
		if s.Field != field {
			continue
		}
		if table == "" || s.Table == table {
			return i, true
		}
	}
	return -1, false
}

// RowTuple binds a decoded record's values to a table's schema-derived
// cell specs (spec.md §3 RowTuple: "bound to a record and table schema").
type RowTuple struct {
	TableName string
	Fields    []string
	Values    []sqltype.Value
}

// NewRowTuple builds a RowTuple for one table's row.
func NewRowTuple(tableName string, fields []string, values []sqltype.Value) *RowTuple {
	return &RowTuple{TableName: tableName, Fields: fields, Values: values}
}

func (t *RowTuple) Len() int { return len(t.Values) }

func (t *RowTuple) Cell(i int) (sqltype.Value, error) {
	if i < 0 || i >= len(t.Values) {
		return sqltype.Value{}, rc.Errorf(rc.INVALID_ARGUMENT, "cell index %d out of range", i)
	}
	return t.Values[i], nil
}

func (t *RowTuple) CellSpec(i int) CellSpec {
	return CellSpec{Table: t.TableName, Field: t.Fields[i]}
}

func (t *RowTuple) FindCell(table, field string) (int, bool) {
	if table != "" && table != t.TableName {
		return -1, false
	}
	for i, f := range t.Fields {
		if f == field {
			return i, true
		}
	}
	return -1, false
}

// Evaluator is the minimal contract an expression node exposes to a
// tuple: compute this expression's value against a given tuple. Kept
// here (rather than importing internal/expr) so tuple and expr can
// reference each other's concrete shapes without an import cycle —
// ProjectTuple holds Evaluators, internal/expr.Expression implements
// this interface directly, matching the internal/record.VisibilityFunc
// pattern used to break the record/trxmgr cycle.
type Evaluator interface {
	GetValue(t Tuple) (sqltype.Value, error)
}

// ProjectTuple applies a SELECT expression list over a child tuple
// (spec.md §3 ProjectTuple: "applies expression list over a child
// tuple"), evaluating each projected expression lazily on Cell.
type ProjectTuple struct {
	Child   Tuple
	Exprs   []Evaluator
	Specs   []CellSpec
}

func NewProjectTuple(child Tuple, exprs []Evaluator, specs []CellSpec) *ProjectTuple {
	return &ProjectTuple{Child: child, Exprs: exprs, Specs: specs}
}

func (t *ProjectTuple) Len() int { return len(t.Exprs) }

func (t *ProjectTuple) Cell(i int) (sqltype.Value, error) {
	if i < 0 || i >= len(t.Exprs) {
		return sqltype.Value{}, rc.Errorf(rc.INVALID_ARGUMENT, "cell index %d out of range", i)
	}
	return t.Exprs[i].GetValue(t.Child)
}

func (t *ProjectTuple) CellSpec(i int) CellSpec { return t.Specs[i] }

func (t *ProjectTuple) FindCell(table, field string) (int, bool) {
	return findCell(t.Specs, table, field)
}

// JoinedTuple concatenates a left and right tuple's cells, left cells
// first (spec.md §3 JoinedTuple).
type JoinedTuple struct {
	Left, Right Tuple
}

func NewJoinedTuple(left, right Tuple) *JoinedTuple { return &JoinedTuple{Left: left, Right: right} }

func (t *JoinedTuple) Len() int { return t.Left.Len() + t.Right.Len() }

func (t *JoinedTuple) Cell(i int) (sqltype.Value, error) {
	if i < t.Left.Len() {
		return t.Left.Cell(i)
	}
	return t.Right.Cell(i - t.Left.Len())
}

func (t *JoinedTuple) CellSpec(i int) CellSpec {
	if i < t.Left.Len() {
		return t.Left.CellSpec(i)
	}
	return t.Right.CellSpec(i - t.Left.Len())
}

func (t *JoinedTuple) FindCell(table, field string) (int, bool) {
	if i, ok := t.Left.FindCell(table, field); ok {
		return i, true
	}
	if i, ok := t.Right.FindCell(table, field); ok {
		return i + t.Left.Len(), true
	}
	return -1, false
}

// ValueListTuple is an eager, self-contained copy of a row's cells and
// specs (spec.md §3 ValueListTuple: "eager copy"); Materialize builds one
// that outlives the cursor that produced its source.
type ValueListTuple struct {
	Values []sqltype.Value
	Specs  []CellSpec
}

// Materialize eagerly copies src's cells into a ValueListTuple.
func Materialize(src Tuple) (*ValueListTuple, error) {
	n := src.Len()
	vt := &ValueListTuple{Values: make([]sqltype.Value, n), Specs: make([]CellSpec, n)}
	for i := 0; i < n; i++ {
		v, err := src.Cell(i)
		if err != nil {
			return nil, err
		}
		vt.Values[i] = v.Clone()
		vt.Specs[i] = src.CellSpec(i)
	}
	return vt, nil
}

func (t *ValueListTuple) Len() int { return len(t.Values) }

func (t *ValueListTuple) Cell(i int) (sqltype.Value, error) {
	if i < 0 || i >= len(t.Values) {
		return sqltype.Value{}, rc.Errorf(rc.INVALID_ARGUMENT, "cell index %d out of range", i)
	}
	return t.Values[i], nil
}

func (t *ValueListTuple) CellSpec(i int) CellSpec { return t.Specs[i] }

func (t *ValueListTuple) FindCell(table, field string) (int, bool) {
	return findCell(t.Specs, table, field)
}

// CompositeTuple is a list of sub-tuples addressed as one flat cell
// range (spec.md §3 CompositeTuple: "cell index spans children").
type CompositeTuple struct {
	Children []Tuple
}

func NewCompositeTuple(children []Tuple) *CompositeTuple { return &CompositeTuple{Children: children} }

func (t *CompositeTuple) Len() int {
	n := 0
	for _, c := range t.Children {
		n += c.Len()
	}
	return n
}

func (t *CompositeTuple) locate(i int) (Tuple, int, error) {
	for _, c := range t.Children {
		if i < c.Len() {
			return c, i, nil
		}
		i -= c.Len()
	}
	return nil, 0, rc.Errorf(rc.INVALID_ARGUMENT, "cell index out of range")
}

func (t *CompositeTuple) Cell(i int) (sqltype.Value, error) {
	c, idx, err := t.locate(i)
	if err != nil {
		return sqltype.Value{}, err
	}
	return c.Cell(idx)
}

func (t *CompositeTuple) CellSpec(i int) CellSpec {
	c, idx, err := t.locate(i)
	if err != nil {
		return CellSpec{}
	}
	return c.CellSpec(idx)
}

func (t *CompositeTuple) FindCell(table, field string) (int, bool) {
	base := 0
	for _, c := range t.Children {
		if i, ok := c.FindCell(table, field); ok {
			return base + i, true
		}
		base += c.Len()
	}
	return -1, false
}
