package exec

import (
	"github.com/xzxg001/miniob-sub000/internal/expr"
	"github.com/xzxg001/miniob-sub000/internal/trxmgr"
	"github.com/xzxg001/miniob-sub000/internal/tuple"
)

// Project implements spec.md §4.8's Project physical operator,
// wrapping each child tuple in a tuple.ProjectTuple so projected
// expressions evaluate lazily per cell.
type Project struct {
	Child RowOperator
	Exprs []expr.Expression
	Specs []tuple.CellSpec

	cur tuple.Tuple
}

func NewProject(child RowOperator, exprs []expr.Expression, specs []tuple.CellSpec) *Project {
	return &Project{Child: child, Exprs: exprs, Specs: specs}
}

func (p *Project) Open(trx *trxmgr.MvccTrx) error { return p.Child.Open(trx) }

func (p *Project) Next() error {
	if err := p.Child.Next(); err != nil {
		return err
	}
	evaluators := make([]tuple.Evaluator, len(p.Exprs))
	for i, e := range p.Exprs {
		evaluators[i] = e
	}
	p.cur = tuple.NewProjectTuple(p.Child.Current(), evaluators, p.Specs)
	return nil
}

func (p *Project) Current() tuple.Tuple { return p.cur }
func (p *Project) Close() error         { return p.Child.Close() }

// ProjectVec is Project's chunk-iterator counterpart.
type ProjectVec struct {
	Child ChunkOperator
	Exprs []expr.Expression
	Specs []tuple.CellSpec
}

func NewProjectVec(child ChunkOperator, exprs []expr.Expression, specs []tuple.CellSpec) *ProjectVec {
	return &ProjectVec{Child: child, Exprs: exprs, Specs: specs}
}

func (p *ProjectVec) Open(trx *trxmgr.MvccTrx) error { return p.Child.Open(trx) }

func (p *ProjectVec) Next(out *Chunk) error {
	var child Chunk
	if err := p.Child.Next(&child); err != nil {
		return err
	}
	evaluators := make([]tuple.Evaluator, len(p.Exprs))
	for i, e := range p.Exprs {
		evaluators[i] = e
	}
	out.Reset()
	for i, t := range child.Tuples {
		out.Tuples = append(out.Tuples, tuple.NewProjectTuple(t, evaluators, p.Specs))
		out.Select = append(out.Select, child.Select[i])
	}
	return nil
}

func (p *ProjectVec) Close() error { return p.Child.Close() }
