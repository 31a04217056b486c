package exec

import (
	"github.com/xzxg001/miniob-sub000/internal/expr"
	"github.com/xzxg001/miniob-sub000/internal/record"
	"github.com/xzxg001/miniob-sub000/internal/trxmgr"
	"github.com/xzxg001/miniob-sub000/internal/tuple"
)

// Predicate implements spec.md §4.8's Predicate physical operator:
// wraps a single child, re-pulling until the child's current tuple
// satisfies Pred.
type Predicate struct {
	Child RowOperator
	Pred  expr.Expression
}

func NewPredicate(child RowOperator, pred expr.Expression) *Predicate {
	return &Predicate{Child: child, Pred: pred}
}

func (p *Predicate) Open(trx *trxmgr.MvccTrx) error { return p.Child.Open(trx) }

func (p *Predicate) Next() error {
	for {
		if err := p.Child.Next(); err != nil {
			return err
		}
		v, err := p.Pred.GetValue(p.Child.Current())
		if err != nil {
			return err
		}
		if v.GetBool() {
			return nil
		}
	}
}

func (p *Predicate) Current() tuple.Tuple { return p.Child.Current() }
func (p *Predicate) Close() error         { return p.Child.Close() }

// CurrentRID delegates to the child when it is itself RID-bearing
// (e.g. a TableScan directly beneath this Predicate), so Delete can
// still recover the physical RID to remove.
func (p *Predicate) CurrentRID() record.RID {
	if rc, ok := p.Child.(ridCarrier); ok {
		return rc.CurrentRID()
	}
	return record.RID{}
}

// PredicateVec is Predicate's chunk-iterator counterpart, masking
// rather than filtering rows (spec.md §4.9: "Chunks carry a selection
// vector so Predicate can mask rows without copying").
type PredicateVec struct {
	Child ChunkOperator
	Pred  expr.Expression
}

func NewPredicateVec(child ChunkOperator, pred expr.Expression) *PredicateVec {
	return &PredicateVec{Child: child, Pred: pred}
}

func (p *PredicateVec) Open(trx *trxmgr.MvccTrx) error { return p.Child.Open(trx) }

func (p *PredicateVec) Next(out *Chunk) error {
	if err := p.Child.Next(out); err != nil {
		return err
	}
	for i, t := range out.Tuples {
		if !out.Select[i] {
			continue
		}
		v, err := p.Pred.GetValue(t)
		if err != nil {
			return err
		}
		out.Select[i] = v.GetBool()
	}
	return nil
}

func (p *PredicateVec) Close() error { return p.Child.Close() }
