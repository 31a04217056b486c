package exec

import (
	"github.com/xzxg001/miniob-sub000/internal/expr"
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/sqltype"
	"github.com/xzxg001/miniob-sub000/internal/trxmgr"
	"github.com/xzxg001/miniob-sub000/internal/tuple"
)

// ScalarGroupBy implements spec.md §4.8's GroupBy-with-empty-group-keys
// case: consumes the entire child once, accumulates every aggregate
// over all rows, and produces exactly one output row.
type ScalarGroupBy struct {
	Child    RowOperator
	AggExprs []*expr.Aggregation

	cur  tuple.Tuple
	done bool
}

func NewScalarGroupBy(child RowOperator, aggExprs []*expr.Aggregation) *ScalarGroupBy {
	return &ScalarGroupBy{Child: child, AggExprs: aggExprs}
}

func (g *ScalarGroupBy) Open(trx *trxmgr.MvccTrx) error { return g.Child.Open(trx) }

func (g *ScalarGroupBy) Next() error {
	if g.done {
		return rc.RECORD_EOF
	}
	g.done = true
	aggs, err := newAggregators(g.AggExprs)
	if err != nil {
		return err
	}
	for {
		if err := g.Child.Next(); err != nil {
			if err == rc.RECORD_EOF {
				break
			}
			return err
		}
		row := g.Child.Current()
		for i, ae := range g.AggExprs {
			v, err := ae.Child.GetValue(row)
			if err != nil {
				return err
			}
			if err := aggs[i].Accumulate(v); err != nil {
				return err
			}
		}
	}
	values := make([]sqltype.Value, len(aggs))
	specs := make([]tuple.CellSpec, len(aggs))
	for i, a := range aggs {
		v, err := a.Evaluate()
		if err != nil {
			return err
		}
		values[i] = v
		specs[i] = tuple.CellSpec{Field: g.AggExprs[i].String()}
	}
	g.cur = &tuple.ValueListTuple{Values: values, Specs: specs}
	return nil
}

func (g *ScalarGroupBy) Current() tuple.Tuple { return g.cur }
func (g *ScalarGroupBy) Close() error         { return g.Child.Close() }

// groupEntry is one key's accumulated state in HashGroupBy's
// linear-probe vector (spec.md §4.8: "a vector of (group_key_values,
// per_key_aggregators, cached_child_tuple)").
type groupEntry struct {
	keys   []sqltype.Value
	aggs   []expr.Aggregator
	sample tuple.Tuple
}

// HashGroupBy implements spec.md §4.8's GroupBy-with-nonempty-group-keys
// case, grouping by equality of the bound group expressions' values.
// Grounded on original_source's aggregate_hash_table.cpp layout,
// carried here as a plain linear-probe slice rather than a real hash
// table (spec.md §4.8 explicitly permits either).
type HashGroupBy struct {
	Child      RowOperator
	GroupExprs []expr.Expression
	AggExprs   []*expr.Aggregation

	entries []*groupEntry
	pos     int
	built   bool
	cur     tuple.Tuple
}

func NewHashGroupBy(child RowOperator, groupExprs []expr.Expression, aggExprs []*expr.Aggregation) *HashGroupBy {
	return &HashGroupBy{Child: child, GroupExprs: groupExprs, AggExprs: aggExprs}
}

func (g *HashGroupBy) Open(trx *trxmgr.MvccTrx) error { return g.Child.Open(trx) }

func (g *HashGroupBy) build() error {
	for {
		if err := g.Child.Next(); err != nil {
			if err == rc.RECORD_EOF {
				return nil
			}
			return err
		}
		row := g.Child.Current()
		keys := make([]sqltype.Value, len(g.GroupExprs))
		for i, ge := range g.GroupExprs {
			v, err := ge.GetValue(row)
			if err != nil {
				return err
			}
			keys[i] = v
		}
		entry := g.find(keys)
		if entry == nil {
			aggs, err := newAggregators(g.AggExprs)
			if err != nil {
				return err
			}
			entry = &groupEntry{keys: keys, aggs: aggs, sample: row}
			g.entries = append(g.entries, entry)
		}
		for i, ae := range g.AggExprs {
			v, err := ae.Child.GetValue(row)
			if err != nil {
				return err
			}
			if err := entry.aggs[i].Accumulate(v); err != nil {
				return err
			}
		}
	}
}

func (g *HashGroupBy) find(keys []sqltype.Value) *groupEntry {
	for _, e := range g.entries {
		if keysEqual(e.keys, keys) {
			return e
		}
	}
	return nil
}

func keysEqual(a, b []sqltype.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sqltype.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (g *HashGroupBy) Next() error {
	if !g.built {
		g.built = true
		if err := g.build(); err != nil {
			return err
		}
	}
	if g.pos >= len(g.entries) {
		return rc.RECORD_EOF
	}
	entry := g.entries[g.pos]
	g.pos++

	values := append([]sqltype.Value(nil), entry.keys...)
	specs := make([]tuple.CellSpec, len(entry.keys))
	for i := range entry.keys {
		specs[i] = exprCellSpec(g.GroupExprs[i])
	}
	for i, a := range entry.aggs {
		v, err := a.Evaluate()
		if err != nil {
			return err
		}
		values = append(values, v)
		specs = append(specs, tuple.CellSpec{Field: g.AggExprs[i].String()})
	}
	g.cur = &tuple.ValueListTuple{Values: values, Specs: specs}
	return nil
}

func (g *HashGroupBy) Current() tuple.Tuple { return g.cur }
func (g *HashGroupBy) Close() error         { return g.Child.Close() }

// exprCellSpec derives a display CellSpec for a bound group-by
// expression: a Field keeps its table/name, anything else falls back
// to its textual rendering.
func exprCellSpec(e expr.Expression) tuple.CellSpec {
	if f, ok := e.(*expr.Field); ok {
		return tuple.CellSpec{Table: f.Table, Field: f.Name}
	}
	return tuple.CellSpec{Field: e.String()}
}

func newAggregators(aggExprs []*expr.Aggregation) ([]expr.Aggregator, error) {
	aggs := make([]expr.Aggregator, len(aggExprs))
	for i, ae := range aggExprs {
		a, err := expr.NewAggregator(ae.Kind, ae.Child.ValueType())
		if err != nil {
			return nil, err
		}
		aggs[i] = a
	}
	return aggs, nil
}
