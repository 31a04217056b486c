package expr

import (
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/sqltype"
	"github.com/xzxg001/miniob-sub000/internal/tuple"
)

// Column is a dense run of values for one chunk (spec.md §4.6's
// vectorized get_column path). Grounded on original_source's
// arithmetic_operator.hpp typed-kernel dispatch table idea: the
// original dispatches on (attr_type, left_const?, right_const?) to
// SIMD-accelerated kernels for INT/FLOAT; no SIMD/vector library exists
// anywhere in the example pack, so every kernel here is a plain Go loop
// over a Column (documented stdlib-only choice, see DESIGN.md).
type Column struct {
	Kind   sqltype.Kind
	Values []sqltype.Value
}

// NewColumn allocates a Column of n zero values of kind.
func NewColumn(kind sqltype.Kind, n int) *Column {
	return &Column{Kind: kind, Values: make([]sqltype.Value, n)}
}

// Batch is the vectorized counterpart of a tuple.Tuple: one Column per
// resolved field, addressed by cell index, for a run of rows
// (spec.md §4.6 "chunk").
type Batch struct {
	Rows    int
	Columns []*Column
}

// ColumnEvaluator is the optional vectorized counterpart to
// Expression.GetValue (spec.md §4.6: "optionally get_column(chunk)").
// Field broadcasts-by-gather from the batch; ValueExpr broadcasts a
// constant; Arithmetic/Comparison dispatch elementwise to a typed
// kernel.
type ColumnEvaluator interface {
	GetColumn(b *Batch) (*Column, error)
}

func (e *Field) GetColumn(b *Batch) (*Column, error) {
	if e.CellIndex < 0 || e.CellIndex >= len(b.Columns) {
		return nil, rc.Errorf(rc.SCHEMA_FIELD_NOT_EXIST, "no such field %s", e.String())
	}
	return b.Columns[e.CellIndex], nil
}

func (e *ValueExpr) GetColumn(b *Batch) (*Column, error) {
	col := NewColumn(e.V.Kind, b.Rows)
	for i := range col.Values {
		col.Values[i] = e.V
	}
	return col, nil
}

func getColumn(e Expression, b *Batch) (*Column, error) {
	if ce, ok := e.(ColumnEvaluator); ok {
		return ce.GetColumn(b)
	}
	// Fall back to row-at-a-time evaluation for node kinds with no
	// dedicated kernel (e.g. Cast, Conjunction): still correct, just not
	// vectorized.
	col := NewColumn(e.ValueType(), b.Rows)
	for i := 0; i < b.Rows; i++ {
		v, err := e.GetValue(&rowView{b: b, i: i})
		if err != nil {
			return nil, err
		}
		col.Values[i] = v
	}
	return col, nil
}

func (e *Arithmetic) GetColumn(b *Batch) (*Column, error) {
	lc, err := getColumn(e.Left, b)
	if err != nil {
		return nil, err
	}
	kind := e.ValueType()
	out := NewColumn(kind, b.Rows)
	if e.Op == NEG {
		for i := range out.Values {
			out.Values[i] = sqltype.Neg(lc.Values[i])
		}
		return out, nil
	}
	rc2, err := getColumn(e.Right, b)
	if err != nil {
		return nil, err
	}
	for i := range out.Values {
		out.Values[i] = e.apply(lc.Values[i], rc2.Values[i])
	}
	return out, nil
}

func (e *Comparison) GetColumn(b *Batch) (*Column, error) {
	lc, err := getColumn(e.Left, b)
	if err != nil {
		return nil, err
	}
	rcol, err := getColumn(e.Right, b)
	if err != nil {
		return nil, err
	}
	out := NewColumn(sqltype.BOOL, b.Rows)
	for i := range out.Values {
		out.Values[i] = sqltype.NewBool(e.compareResult(sqltype.Compare(lc.Values[i], rcol.Values[i])))
	}
	return out, nil
}

// EvalSelect evaluates e as a predicate over b, ANDing its boolean
// result into sel in place (spec.md §4.6: "select[i] is ANDed with this
// predicate's result for row i").
func EvalSelect(e Expression, b *Batch, sel []bool) error {
	col, err := getColumn(e, b)
	if err != nil {
		return err
	}
	for i := range sel {
		if sel[i] {
			sel[i] = col.Values[i].GetBool()
		}
	}
	return nil
}

// rowView adapts one row of a Batch to tuple.Tuple, used only by
// getColumn's scalar fallback path for expression kinds without a
// dedicated vectorized kernel.
type rowView struct {
	b *Batch
	i int
}

func (r *rowView) Len() int { return len(r.b.Columns) }
func (r *rowView) Cell(i int) (sqltype.Value, error) {
	if i < 0 || i >= len(r.b.Columns) {
		return sqltype.Value{}, rc.Errorf(rc.INVALID_ARGUMENT, "cell index %d out of range", i)
	}
	return r.b.Columns[i].Values[r.i], nil
}

// CellSpec/FindCell are not meaningful for a bare column batch (there is
// no schema attached); Field.GetValue reads a rowView by its bound
// CellIndex alone, but rowView must still satisfy tuple.Tuple.
func (r *rowView) CellSpec(int) tuple.CellSpec         { return tuple.CellSpec{} }
func (r *rowView) FindCell(string, string) (int, bool) { return -1, false }
