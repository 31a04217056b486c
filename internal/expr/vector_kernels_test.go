package expr

import (
	"testing"

	"github.com/xzxg001/miniob-sub000/internal/sqltype"
)

func batchOf(kind sqltype.Kind, values ...int64) *Batch {
	col := NewColumn(kind, len(values))
	for i, v := range values {
		col.Values[i] = sqltype.NewInt(v)
	}
	return &Batch{Rows: len(values), Columns: []*Column{col}}
}

func TestFieldGetColumnGathersByIndex(t *testing.T) {
	b := batchOf(sqltype.INT, 1, 2, 3)
	f := &Field{Kind: sqltype.INT, CellIndex: 0}
	col, err := f.GetColumn(b)
	if err != nil {
		t.Fatalf("GetColumn: %v", err)
	}
	if len(col.Values) != 3 || col.Values[1].GetInt() != 2 {
		t.Fatalf("GetColumn values = %v, want [1 2 3]", col.Values)
	}
}

func TestFieldGetColumnOutOfRangeErrors(t *testing.T) {
	b := batchOf(sqltype.INT, 1)
	f := &Field{CellIndex: 5}
	if _, err := f.GetColumn(b); err == nil {
		t.Fatal("expected error for out-of-range cell index")
	}
}

func TestValueExprGetColumnBroadcastsConstant(t *testing.T) {
	b := &Batch{Rows: 4}
	ve := NewValue(sqltype.NewInt(9))
	col, err := ve.GetColumn(b)
	if err != nil {
		t.Fatalf("GetColumn: %v", err)
	}
	if len(col.Values) != 4 {
		t.Fatalf("expected 4 broadcast values, got %d", len(col.Values))
	}
	for _, v := range col.Values {
		if v.GetInt() != 9 {
			t.Fatalf("broadcast value = %v, want 9", v)
		}
	}
}

func TestArithmeticGetColumnElementwiseAdd(t *testing.T) {
	b := batchOf(sqltype.INT, 1, 2, 3)
	left := &Field{Kind: sqltype.INT, CellIndex: 0}
	right := NewValue(sqltype.NewInt(10))
	add := NewArithmetic(ADD, left, right)

	col, err := add.GetColumn(b)
	if err != nil {
		t.Fatalf("GetColumn: %v", err)
	}
	want := []int64{11, 12, 13}
	for i, w := range want {
		if col.Values[i].GetInt() != w {
			t.Fatalf("col[%d] = %v, want %d", i, col.Values[i], w)
		}
	}
}

func TestArithmeticGetColumnNeg(t *testing.T) {
	b := batchOf(sqltype.INT, 1, -2, 3)
	left := &Field{Kind: sqltype.INT, CellIndex: 0}
	neg := NewArithmetic(NEG, left, nil)

	col, err := neg.GetColumn(b)
	if err != nil {
		t.Fatalf("GetColumn: %v", err)
	}
	want := []int64{-1, 2, -3}
	for i, w := range want {
		if col.Values[i].GetInt() != w {
			t.Fatalf("col[%d] = %v, want %d", i, col.Values[i], w)
		}
	}
}

func TestComparisonGetColumnElementwise(t *testing.T) {
	b := batchOf(sqltype.INT, 1, 5, 3)
	left := &Field{Kind: sqltype.INT, CellIndex: 0}
	right := NewValue(sqltype.NewInt(3))
	cmp := NewComparison(GT, left, right)

	col, err := cmp.GetColumn(b)
	if err != nil {
		t.Fatalf("GetColumn: %v", err)
	}
	want := []bool{false, true, false}
	for i, w := range want {
		if col.Values[i].GetBool() != w {
			t.Fatalf("col[%d] = %v, want %v", i, col.Values[i], w)
		}
	}
}

func TestEvalSelectANDsIntoExistingSelection(t *testing.T) {
	b := batchOf(sqltype.INT, 1, 2, 3, 4)
	left := &Field{Kind: sqltype.INT, CellIndex: 0}
	pred := NewComparison(GE, left, NewValue(sqltype.NewInt(2)))

	sel := []bool{true, true, false, true}
	if err := EvalSelect(pred, b, sel); err != nil {
		t.Fatalf("EvalSelect: %v", err)
	}
	// row 0 (v=1) fails the predicate and must flip to false even though
	// it started true; row 2 was already false and must stay false.
	want := []bool{false, true, false, true}
	for i, w := range want {
		if sel[i] != w {
			t.Fatalf("sel[%d] = %v, want %v", i, sel[i], w)
		}
	}
}

func TestGetColumnFallsBackForKindsWithoutDedicatedKernel(t *testing.T) {
	b := batchOf(sqltype.INT, 2, 4)
	cast := NewCast(&Field{Kind: sqltype.INT, CellIndex: 0}, sqltype.FLOAT)
	col, err := getColumn(cast, b)
	if err != nil {
		t.Fatalf("getColumn(Cast): %v", err)
	}
	if col.Values[0].Kind != sqltype.FLOAT || col.Values[0].FloatV != 2 {
		t.Fatalf("fallback cast column[0] = %v, want FLOAT 2", col.Values[0])
	}
}
