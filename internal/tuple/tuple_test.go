package tuple

import (
	"testing"

	"github.com/xzxg001/miniob-sub000/internal/sqltype"
)

type constEval struct{ v sqltype.Value }

func (c constEval) GetValue(Tuple) (sqltype.Value, error) { return c.v, nil }

func TestRowTupleCellAndFindCell(t *testing.T) {
	rt := NewRowTuple("people", []string{"id", "name"}, []sqltype.Value{sqltype.NewInt(1), sqltype.NewChars("alice")})
	if rt.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", rt.Len())
	}
	v, err := rt.Cell(1)
	if err != nil || v.ToString() != "alice" {
		t.Fatalf("Cell(1) = %v, %v, want alice", v, err)
	}
	if _, err := rt.Cell(5); err == nil {
		t.Fatal("expected out-of-range Cell to error")
	}
	if i, ok := rt.FindCell("", "name"); !ok || i != 1 {
		t.Fatalf("FindCell unqualified = %d, %v, want 1, true", i, ok)
	}
	if i, ok := rt.FindCell("people", "id"); !ok || i != 0 {
		t.Fatalf("FindCell qualified = %d, %v, want 0, true", i, ok)
	}
	if _, ok := rt.FindCell("other", "id"); ok {
		t.Fatal("FindCell should not match a different table name")
	}
}

func TestProjectTupleEvaluatesLazily(t *testing.T) {
	child := NewRowTuple("t", []string{"v"}, []sqltype.Value{sqltype.NewInt(10)})
	pt := NewProjectTuple(child, []Evaluator{constEval{sqltype.NewInt(99)}}, []CellSpec{{Field: "v", Alias: "doubled"}})
	if pt.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", pt.Len())
	}
	v, err := pt.Cell(0)
	if err != nil || v.GetInt() != 99 {
		t.Fatalf("Cell(0) = %v, %v, want 99", v, err)
	}
	if got := pt.CellSpec(0).Name(); got != "doubled" {
		t.Fatalf("CellSpec(0).Name() = %q, want %q", got, "doubled")
	}
}

func TestCellSpecNameFallsBackToField(t *testing.T) {
	spec := CellSpec{Field: "raw_field"}
	if got := spec.Name(); got != "raw_field" {
		t.Fatalf("Name() = %q, want %q", got, "raw_field")
	}
}

func TestJoinedTupleConcatenatesLeftThenRight(t *testing.T) {
	left := NewRowTuple("a", []string{"x"}, []sqltype.Value{sqltype.NewInt(1)})
	right := NewRowTuple("b", []string{"y"}, []sqltype.Value{sqltype.NewInt(2)})
	joined := NewJoinedTuple(left, right)

	if joined.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", joined.Len())
	}
	v0, _ := joined.Cell(0)
	v1, _ := joined.Cell(1)
	if v0.GetInt() != 1 || v1.GetInt() != 2 {
		t.Fatalf("cells = %v, %v, want 1, 2", v0, v1)
	}

	if i, ok := joined.FindCell("b", "y"); !ok || i != 1 {
		t.Fatalf("FindCell(b,y) = %d, %v, want 1, true", i, ok)
	}
	if i, ok := joined.FindCell("a", "x"); !ok || i != 0 {
		t.Fatalf("FindCell(a,x) = %d, %v, want 0, true", i, ok)
	}
	if _, ok := joined.FindCell("c", "z"); ok {
		t.Fatal("expected FindCell to fail for an unknown table")
	}
}

func TestMaterializeProducesIndependentValueListTuple(t *testing.T) {
	src := NewRowTuple("t", []string{"s"}, []sqltype.Value{sqltype.NewChars("hello")})
	vt, err := Materialize(src)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if vt.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", vt.Len())
	}
	// Clone independence: mutate the source's backing array and confirm
	// the materialized copy is unaffected.
	src.Values[0].CharsV[0] = 'X'
	v, err := vt.Cell(0)
	if err != nil || v.ToString() != "hello" {
		t.Fatalf("materialized cell = %v, %v, want independent copy %q", v, err, "hello")
	}
}

func TestCompositeTupleFlattensChildren(t *testing.T) {
	a := NewRowTuple("a", []string{"x"}, []sqltype.Value{sqltype.NewInt(1)})
	b := NewRowTuple("b", []string{"y", "z"}, []sqltype.Value{sqltype.NewInt(2), sqltype.NewInt(3)})
	comp := NewCompositeTuple([]Tuple{a, b})

	if comp.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", comp.Len())
	}
	v2, err := comp.Cell(2)
	if err != nil || v2.GetInt() != 3 {
		t.Fatalf("Cell(2) = %v, %v, want 3", v2, err)
	}
	if i, ok := comp.FindCell("b", "z"); !ok || i != 2 {
		t.Fatalf("FindCell(b,z) = %d, %v, want 2, true", i, ok)
	}
	if _, err := comp.Cell(99); err == nil {
		t.Fatal("expected out-of-range Cell to error")
	}
}
