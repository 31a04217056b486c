package expr

import (
	"testing"

	"github.com/xzxg001/miniob-sub000/internal/sqltype"
	"github.com/xzxg001/miniob-sub000/internal/tuple"
)

func rowOf(values ...sqltype.Value) tuple.Tuple {
	fields := make([]string, len(values))
	for i := range fields {
		fields[i] = "f"
	}
	return tuple.NewRowTuple("t", fields, values)
}

func TestFieldGetValueResolvesByCellIndexFastPath(t *testing.T) {
	row := tuple.NewRowTuple("t", []string{"id", "name"}, []sqltype.Value{sqltype.NewInt(1), sqltype.NewChars("alice")})
	f := &Field{Table: "t", Name: "name", Kind: sqltype.CHARS, CellIndex: 1}
	v, err := f.GetValue(row)
	if err != nil || v.ToString() != "alice" {
		t.Fatalf("GetValue = %v, %v, want alice", v, err)
	}
}

func TestFieldGetValueFallsBackToFindCellOnStaleIndex(t *testing.T) {
	row := tuple.NewRowTuple("t", []string{"id", "name"}, []sqltype.Value{sqltype.NewInt(1), sqltype.NewChars("alice")})
	// Deliberately wrong CellIndex; GetValue must recover via FindCell.
	f := &Field{Table: "t", Name: "name", Kind: sqltype.CHARS, CellIndex: 0}
	v, err := f.GetValue(row)
	if err != nil || v.ToString() != "alice" {
		t.Fatalf("GetValue = %v, %v, want alice", v, err)
	}
}

func TestFieldGetValueMissingFieldErrors(t *testing.T) {
	row := tuple.NewRowTuple("t", []string{"id"}, []sqltype.Value{sqltype.NewInt(1)})
	f := &Field{Table: "t", Name: "nope", CellIndex: -1}
	if _, err := f.GetValue(row); err == nil {
		t.Fatal("expected error for missing field")
	}
}

func TestValueExprIsConstant(t *testing.T) {
	v := NewValue(sqltype.NewInt(5))
	got, ok := v.TryGetValue()
	if !ok || got.GetInt() != 5 {
		t.Fatalf("TryGetValue = %v, %v, want 5, true", got, ok)
	}
	row := rowOf(sqltype.NewInt(0))
	got2, err := v.GetValue(row)
	if err != nil || got2.GetInt() != 5 {
		t.Fatalf("GetValue = %v, %v, want 5", got2, err)
	}
}

func TestCastTryGetValueFoldsConstant(t *testing.T) {
	c := NewCast(NewValue(sqltype.NewInt(7)), sqltype.FLOAT)
	v, ok := c.TryGetValue()
	if !ok || v.Kind != sqltype.FLOAT || v.FloatV != 7 {
		t.Fatalf("TryGetValue = %v, %v, want FLOAT 7", v, ok)
	}
}

func TestCastTryGetValueFailsOnNonConstantChild(t *testing.T) {
	c := NewCast(&Field{Name: "x", CellIndex: -1}, sqltype.FLOAT)
	if _, ok := c.TryGetValue(); ok {
		t.Fatal("expected TryGetValue to fail for a non-constant child")
	}
}

func TestComparisonEvaluatesEachOperator(t *testing.T) {
	cases := []struct {
		op   ComparisonOp
		l, r int64
		want bool
	}{
		{EQ, 1, 1, true}, {EQ, 1, 2, false},
		{NE, 1, 2, true}, {NE, 1, 1, false},
		{LT, 1, 2, true}, {LT, 2, 1, false},
		{LE, 1, 1, true}, {LE, 2, 1, false},
		{GT, 2, 1, true}, {GT, 1, 2, false},
		{GE, 1, 1, true}, {GE, 1, 2, false},
	}
	for _, c := range cases {
		cmp := NewComparison(c.op, NewValue(sqltype.NewInt(c.l)), NewValue(sqltype.NewInt(c.r)))
		v, err := cmp.GetValue(nil)
		if err != nil {
			t.Fatalf("GetValue(%v): %v", c.op, err)
		}
		if v.GetBool() != c.want {
			t.Errorf("%d %v %d = %v, want %v", c.l, c.op, c.r, v.GetBool(), c.want)
		}
	}
}

func TestComparisonEqualityAndStringer(t *testing.T) {
	a := NewComparison(GT, NewValue(sqltype.NewInt(1)), NewValue(sqltype.NewInt(2)))
	b := NewComparison(GT, NewValue(sqltype.NewInt(1)), NewValue(sqltype.NewInt(2)))
	c := NewComparison(LT, NewValue(sqltype.NewInt(1)), NewValue(sqltype.NewInt(2)))
	if !a.Equal(b) {
		t.Fatal("expected structurally identical comparisons to be Equal")
	}
	if a.Equal(c) {
		t.Fatal("expected comparisons with different ops to not be Equal")
	}
	if a.String() != "(1 > 2)" {
		t.Fatalf("String() = %q", a.String())
	}
}

func TestConjunctionShortCircuitsAND(t *testing.T) {
	conj := NewConjunction(AND, NewValue(sqltype.NewBool(false)), NewValue(sqltype.NewBool(true)))
	v, err := conj.GetValue(nil)
	if err != nil || v.GetBool() != false {
		t.Fatalf("AND(false, true) = %v, %v, want false", v, err)
	}
}

func TestConjunctionShortCircuitsOR(t *testing.T) {
	conj := NewConjunction(OR, NewValue(sqltype.NewBool(true)), NewValue(sqltype.NewBool(false)))
	v, err := conj.GetValue(nil)
	if err != nil || v.GetBool() != true {
		t.Fatalf("OR(true, false) = %v, %v, want true", v, err)
	}
}

func TestConjunctionEmptyChildrenIdentity(t *testing.T) {
	andEmpty := NewConjunction(AND)
	v, _ := andEmpty.GetValue(nil)
	if v.GetBool() != true {
		t.Fatal("empty AND should be true (identity element)")
	}
	orEmpty := NewConjunction(OR)
	v, _ = orEmpty.GetValue(nil)
	if v.GetBool() != false {
		t.Fatal("empty OR should be false (identity element)")
	}
}

func TestArithmeticValueTypePromotesToFloat(t *testing.T) {
	add := NewArithmetic(ADD, &Field{Kind: sqltype.INT, CellIndex: -1}, &Field{Kind: sqltype.FLOAT, CellIndex: -1})
	if add.ValueType() != sqltype.FLOAT {
		t.Fatalf("ValueType() = %v, want FLOAT", add.ValueType())
	}
	addInts := NewArithmetic(ADD, &Field{Kind: sqltype.INT, CellIndex: -1}, &Field{Kind: sqltype.INT, CellIndex: -1})
	if addInts.ValueType() != sqltype.INT {
		t.Fatalf("ValueType() = %v, want INT", addInts.ValueType())
	}
}

func TestArithmeticNegUsesLeftOnly(t *testing.T) {
	neg := NewArithmetic(NEG, NewValue(sqltype.NewInt(5)), nil)
	v, err := neg.GetValue(nil)
	if err != nil || v.GetInt() != -5 {
		t.Fatalf("NEG(5) = %v, %v, want -5", v, err)
	}
	if neg.String() != "(-5)" {
		t.Fatalf("String() = %q", neg.String())
	}
}

func TestArithmeticGetValueComputesSum(t *testing.T) {
	add := NewArithmetic(ADD, NewValue(sqltype.NewInt(2)), NewValue(sqltype.NewInt(3)))
	v, err := add.GetValue(nil)
	if err != nil || v.GetInt() != 5 {
		t.Fatalf("2+3 = %v, %v, want 5", v, err)
	}
}

func TestUnboundNodesErrorOnEvaluation(t *testing.T) {
	star := &Star{}
	if _, err := star.GetValue(nil); err == nil {
		t.Fatal("expected Star.GetValue to error")
	}
	uf := &UnboundField{Field: "x"}
	if _, err := uf.GetValue(nil); err == nil {
		t.Fatal("expected UnboundField.GetValue to error")
	}
	ua := &UnboundAggregation{Name: "SUM", Child: NewValue(sqltype.NewInt(1))}
	if _, err := ua.GetValue(nil); err == nil {
		t.Fatal("expected UnboundAggregation.GetValue to error")
	}
}

func TestAggregationGetValueErrorsDirectly(t *testing.T) {
	agg := NewAggregation(SUM, NewValue(sqltype.NewInt(1)))
	if _, err := agg.GetValue(nil); err == nil {
		t.Fatal("expected Aggregation.GetValue to error (must go through an Aggregator)")
	}
}

func TestSumAggregator(t *testing.T) {
	a, err := NewAggregator(SUM, sqltype.INT)
	if err != nil {
		t.Fatalf("NewAggregator(SUM): %v", err)
	}
	for _, v := range []int64{1, 2, 3} {
		if err := a.Accumulate(sqltype.NewInt(v)); err != nil {
			t.Fatalf("Accumulate: %v", err)
		}
	}
	res, err := a.Evaluate()
	if err != nil || res.GetInt() != 6 {
		t.Fatalf("Evaluate() = %v, %v, want 6", res, err)
	}
}

func TestSumAggregatorEmptyIsZero(t *testing.T) {
	a, _ := NewAggregator(SUM, sqltype.INT)
	res, err := a.Evaluate()
	if err != nil || res.GetInt() != 0 {
		t.Fatalf("empty SUM Evaluate() = %v, %v, want 0", res, err)
	}
}

func TestSumAggregatorRejectsNonNumeric(t *testing.T) {
	if _, err := NewAggregator(SUM, sqltype.CHARS); err == nil {
		t.Fatal("expected SUM over CHARS to be rejected")
	}
}

func TestCountAggregatorCountsRegardlessOfKind(t *testing.T) {
	a, err := NewAggregator(COUNT, sqltype.CHARS)
	if err != nil {
		t.Fatalf("NewAggregator(COUNT): %v", err)
	}
	for i := 0; i < 4; i++ {
		a.Accumulate(sqltype.NewChars("x"))
	}
	res, _ := a.Evaluate()
	if res.GetInt() != 4 {
		t.Fatalf("COUNT = %v, want 4", res)
	}
}

func TestAvgAggregator(t *testing.T) {
	a, err := NewAggregator(AVG, sqltype.INT)
	if err != nil {
		t.Fatalf("NewAggregator(AVG): %v", err)
	}
	for _, v := range []int64{2, 4, 6} {
		a.Accumulate(sqltype.NewInt(v))
	}
	res, err := a.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.GetFloat() != 4 {
		t.Fatalf("AVG(2,4,6) = %v, want 4", res)
	}
}

func TestMinMaxAggregators(t *testing.T) {
	minA, _ := NewAggregator(MIN, sqltype.INT)
	maxA, _ := NewAggregator(MAX, sqltype.INT)
	for _, v := range []int64{5, 1, 9, 3} {
		minA.Accumulate(sqltype.NewInt(v))
		maxA.Accumulate(sqltype.NewInt(v))
	}
	minRes, _ := minA.Evaluate()
	maxRes, _ := maxA.Evaluate()
	if minRes.GetInt() != 1 {
		t.Fatalf("MIN = %v, want 1", minRes)
	}
	if maxRes.GetInt() != 9 {
		t.Fatalf("MAX = %v, want 9", maxRes)
	}
}

func TestMinMaxAggregatorEmptyIsUndefined(t *testing.T) {
	a, _ := NewAggregator(MIN, sqltype.INT)
	res, err := a.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Kind != sqltype.UNDEFINED {
		t.Fatalf("empty MIN Evaluate() = %v, want UNDEFINED", res)
	}
}
