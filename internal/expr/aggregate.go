package expr

import (
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/sqltype"
)

// Aggregator has internal state, accumulating values one at a time and
// producing a final result (spec.md §4.6 "Aggregator contract").
// Grounded on original_source's aggregator.cpp/aggregate_hash_table.cpp
// accumulate/evaluate shape, carried into Go as a small interface rather
// than a virtual-dispatch base class.
type Aggregator interface {
	Accumulate(v sqltype.Value) error
	Evaluate() (sqltype.Value, error)
}

// NewAggregator builds the Aggregator for kind, validating argKind
// against the documented type rules (SUM/AVG require numeric; COUNT
// accepts any; MIN/MAX accept any comparable kind).
func NewAggregator(kind AggKind, argKind sqltype.Kind) (Aggregator, error) {
	switch kind {
	case SUM:
		if !numeric(argKind) {
			return nil, rc.Errorf(rc.INVALID_ARGUMENT, "SUM requires a numeric argument, got %v", argKind)
		}
		return &sumAgg{}, nil
	case AVG:
		if !numeric(argKind) {
			return nil, rc.Errorf(rc.INVALID_ARGUMENT, "AVG requires a numeric argument, got %v", argKind)
		}
		return &avgAgg{}, nil
	case COUNT:
		return &countAgg{}, nil
	case MIN:
		return &minMaxAgg{isMin: true, hasVal: false}, nil
	case MAX:
		return &minMaxAgg{isMin: false, hasVal: false}, nil
	default:
		return nil, rc.Errorf(rc.UNSUPPORTED, "unknown aggregate kind %v", kind)
	}
}

func numeric(k sqltype.Kind) bool { return k == sqltype.INT || k == sqltype.FLOAT }

// sumAgg implements SUM, associative over any partition of the input
// (spec.md §8 invariant 10: SUM(a+b) == SUM(a) + SUM(b)), so it composes
// cleanly under hash-based parallel group-by.
type sumAgg struct {
	acc     sqltype.Value
	started bool
}

func (a *sumAgg) Accumulate(v sqltype.Value) error {
	if !a.started {
		a.acc = v
		a.started = true
		return nil
	}
	a.acc = sqltype.Add(a.acc, v)
	return nil
}

func (a *sumAgg) Evaluate() (sqltype.Value, error) {
	if !a.started {
		return sqltype.NewInt(0), nil
	}
	return a.acc, nil
}

type countAgg struct {
	n int64
}

func (a *countAgg) Accumulate(sqltype.Value) error { a.n++; return nil }
func (a *countAgg) Evaluate() (sqltype.Value, error) { return sqltype.NewInt(a.n), nil }

type avgAgg struct {
	sum sqltype.Value
	n   int64
}

func (a *avgAgg) Accumulate(v sqltype.Value) error {
	if a.n == 0 {
		a.sum = v
	} else {
		a.sum = sqltype.Add(a.sum, v)
	}
	a.n++
	return nil
}

func (a *avgAgg) Evaluate() (sqltype.Value, error) {
	if a.n == 0 {
		return sqltype.NewFloat(0), nil
	}
	return sqltype.Div(sqltype.NewFloat(a.sum.GetFloat()), sqltype.NewInt(a.n)), nil
}

type minMaxAgg struct {
	isMin  bool
	val    sqltype.Value
	hasVal bool
}

func (a *minMaxAgg) Accumulate(v sqltype.Value) error {
	if !a.hasVal {
		a.val = v
		a.hasVal = true
		return nil
	}
	cmp := sqltype.Compare(v, a.val)
	if (a.isMin && cmp < 0) || (!a.isMin && cmp > 0) {
		a.val = v
	}
	return nil
}

func (a *minMaxAgg) Evaluate() (sqltype.Value, error) {
	if !a.hasVal {
		return sqltype.Undefined(), nil
	}
	return a.val, nil
}
