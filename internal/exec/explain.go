package exec

import (
	"strings"

	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/sqltype"
	"github.com/xzxg001/miniob-sub000/internal/trxmgr"
	"github.com/xzxg001/miniob-sub000/internal/tuple"
)

// PlanDesc is a label plus children, built by internal/plan's physical
// planner alongside the operator tree it names. exec owns this type
// (rather than importing internal/plan, which would cycle back here)
// so Explain can render any physical tree without coupling to how it
// was built.
type PlanDesc struct {
	Label    string
	Children []*PlanDesc
}

func NewPlanDesc(label string, children ...*PlanDesc) *PlanDesc {
	return &PlanDesc{Label: label, Children: children}
}

// Explain implements spec.md §4.8/§8 S6's EXPLAIN: a glyph-tree printer
// producing a single result row with one column, "Query Plan", grounded
// on original_source's explain_physical_operator.cpp indentation scheme
// (├─, └─, │ prefixes, two-space child indent).
type Explain struct {
	Root *PlanDesc

	emitted bool
	cur     tuple.Tuple
}

func NewExplain(root *PlanDesc) *Explain {
	return &Explain{Root: root}
}

func (e *Explain) Open(trx *trxmgr.MvccTrx) error { return nil }

func (e *Explain) Next() error {
	if e.emitted {
		return rc.RECORD_EOF
	}
	e.emitted = true
	var b strings.Builder
	renderPlanDesc(&b, e.Root, "", true)
	text := strings.TrimRight(b.String(), "\n")
	e.cur = &tuple.ValueListTuple{
		Values: []sqltype.Value{sqltype.NewChars(text)},
		Specs:  []tuple.CellSpec{{Field: "Query Plan"}},
	}
	return nil
}

func (e *Explain) Current() tuple.Tuple { return e.cur }
func (e *Explain) Close() error         { return nil }

func renderPlanDesc(b *strings.Builder, n *PlanDesc, prefix string, root bool) {
	if root {
		b.WriteString(n.Label)
		b.WriteString("\n")
	}
	for i, c := range n.Children {
		last := i == len(n.Children)-1
		connector := "├─ "
		childPrefix := prefix + "│  "
		if last {
			connector = "└─ "
			childPrefix = prefix + "   "
		}
		b.WriteString(prefix)
		b.WriteString(connector)
		b.WriteString(c.Label)
		b.WriteString("\n")
		renderPlanDesc(b, c, childPrefix, false)
	}
}
