// Rewriter: a fixed-point loop of rule-based logical-plan
// simplifications (spec.md §4.7 "Rewriter").
//
// Grounded on tinySQL's internal/engine/optimizations.go rule-pass
// loop (each rule walks the tree once, the driver re-runs the set
// until none report a change), redesigned to operate on this package's
// explicit Node tree and expr.Expression values instead of tinySQL's
// inline AST mutation.
package plan

import (
	"github.com/xzxg001/miniob-sub000/internal/expr"
	"github.com/xzxg001/miniob-sub000/internal/sqltype"
)

// Rewrite applies every rule to root until none reports a change,
// returning the simplified tree.
func Rewrite(root *Node) *Node {
	for {
		changed := false
		root, changed = rewriteOnce(root, changed)
		if !changed {
			return root
		}
	}
}

func rewriteOnce(n *Node, changed bool) (*Node, bool) {
	if n == nil {
		return nil, changed
	}
	for i, c := range n.Children {
		n.Children[i], changed = rewriteOnce(c, changed)
	}

	switch n.Kind {
	case LPredicate:
		if n.Pred != nil {
			folded, foldChanged := foldExpr(n.Pred)
			n.Pred = folded
			changed = changed || foldChanged
		}
		return pushDown(n, changed)
	case LJoin:
		if n.JoinOn != nil {
			folded, foldChanged := foldExpr(n.JoinOn)
			n.JoinOn = folded
			changed = changed || foldChanged
		}
	case LProject:
		for i, pe := range n.ProjExprs {
			folded, foldChanged := foldExpr(pe)
			n.ProjExprs[i] = folded
			changed = changed || foldChanged
		}
	}
	return n, changed
}

// foldExpr implements rules 1 and 2: constant-folding comparisons and
// simplifying conjunctions.
func foldExpr(e expr.Expression) (expr.Expression, bool) {
	switch v := e.(type) {
	case *expr.Comparison:
		left, lc := foldExpr(v.Left)
		right, rc2 := foldExpr(v.Right)
		cmp := expr.NewComparison(v.Op, left, right)
		if val, ok := cmp.TryGetValue(); ok {
			return expr.NewValue(val), true
		}
		return cmp, lc || rc2
	case *expr.Conjunction:
		return foldConjunction(v)
	case *expr.Arithmetic:
		left, lc := foldExpr(v.Left)
		var right expr.Expression
		rc2 := false
		if v.Right != nil {
			right, rc2 = foldExpr(v.Right)
		}
		ar := expr.NewArithmetic(v.Op, left, right)
		if val, ok := ar.TryGetValue(); ok {
			return expr.NewValue(val), true
		}
		return ar, lc || rc2
	case *expr.Cast:
		child, cc := foldExpr(v.Child)
		cast := expr.NewCast(child, v.Target)
		if val, ok := cast.TryGetValue(); ok {
			return expr.NewValue(val), true
		}
		return cast, cc
	default:
		return e, false
	}
}

// foldConjunction implements rule 2: drop identity-polarity constants
// (true for AND, false for OR), short-circuit on the absorbing
// element, and collapse single-child conjunctions.
func foldConjunction(c *expr.Conjunction) (expr.Expression, bool) {
	changed := false
	identity := c.Kind == expr.AND // true identity for AND, false identity for OR
	absorbing := !identity

	var kept []expr.Expression
	for _, child := range c.Children {
		folded, fc := foldExpr(child)
		changed = changed || fc
		if val, ok := folded.TryGetValue(); ok && val.Kind == sqltype.BOOL {
			if val.BoolV == absorbing {
				return expr.NewValue(val), true
			}
			if val.BoolV == identity {
				changed = true
				continue
			}
		}
		kept = append(kept, folded)
	}
	if len(kept) == 0 {
		return expr.NewValue(sqltype.NewBool(identity)), true
	}
	if len(kept) == 1 {
		return kept[0], true
	}
	if len(kept) != len(c.Children) {
		changed = true
	}
	return expr.NewConjunction(c.Kind, kept...), changed
}

// pushDown implements rule 3: for each conjunct of a Predicate's
// expression, if every field it references belongs to one TableGet
// subtree, move it into that TableGet's Pushed list.
func pushDown(n *Node, changed bool) (*Node, bool) {
	if n.Pred == nil || len(n.Children) != 1 {
		return n, changed
	}
	conjuncts := flattenAnd(n.Pred)
	var remaining []expr.Expression
	for _, conj := range conjuncts {
		tg := soleTableGet(n.Children[0], fieldTables(conj))
		if tg != nil {
			tg.Pushed = append(tg.Pushed, conj)
			changed = true
			continue
		}
		remaining = append(remaining, conj)
	}
	if len(remaining) == len(conjuncts) {
		return n, changed
	}
	if len(remaining) == 0 {
		// Entire predicate pushed down; the Predicate node becomes a
		// pass-through and is elided.
		return n.Children[0], true
	}
	if len(remaining) == 1 {
		n.Pred = remaining[0]
	} else {
		n.Pred = expr.NewConjunction(expr.AND, remaining...)
	}
	return n, changed
}

func flattenAnd(e expr.Expression) []expr.Expression {
	if c, ok := e.(*expr.Conjunction); ok && c.Kind == expr.AND {
		var out []expr.Expression
		for _, child := range c.Children {
			out = append(out, flattenAnd(child)...)
		}
		return out
	}
	return []expr.Expression{e}
}

// fieldTables collects every distinct table alias a conjunct
// references.
func fieldTables(e expr.Expression) map[string]bool {
	tables := map[string]bool{}
	var walk func(expr.Expression)
	walk = func(e expr.Expression) {
		switch v := e.(type) {
		case *expr.Field:
			tables[v.Table] = true
		case *expr.Cast:
			walk(v.Child)
		case *expr.Arithmetic:
			walk(v.Left)
			if v.Right != nil {
				walk(v.Right)
			}
		case *expr.Comparison:
			walk(v.Left)
			walk(v.Right)
		case *expr.Conjunction:
			for _, c := range v.Children {
				walk(c)
			}
		}
	}
	walk(e)
	return tables
}

// soleTableGet returns the single TableGet node within subtree whose
// alias set equals exactly wanted, or nil if wanted spans more than
// one TableGet (or matches none).
func soleTableGet(subtree *Node, wanted map[string]bool) *Node {
	if len(wanted) != 1 {
		return nil
	}
	var target string
	for t := range wanted {
		target = t
	}
	return findTableGet(subtree, target)
}

func findTableGet(n *Node, alias string) *Node {
	if n == nil {
		return nil
	}
	if n.Kind == LTableGet {
		if n.Alias == alias {
			return n
		}
		return nil
	}
	for _, c := range n.Children {
		if found := findTableGet(c, alias); found != nil {
			return found
		}
	}
	return nil
}
