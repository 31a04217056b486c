// Physical planner: lowers a rewritten logical plan (Node tree) into an
// internal/exec operator tree (spec.md §4.8).
//
// Grounded on tinySQL's internal/engine/exec.go (compiled-expression ->
// row-iterator dispatch), redesigned into an explicit rule table per
// logical Node kind instead of tinySQL's single evalSelect switch.
package plan

import (
	"github.com/xzxg001/miniob-sub000/internal/dbms"
	"github.com/xzxg001/miniob-sub000/internal/exec"
	"github.com/xzxg001/miniob-sub000/internal/expr"
	"github.com/xzxg001/miniob-sub000/internal/index"
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/table"
	"github.com/xzxg001/miniob-sub000/internal/trxmgr"
	"github.com/xzxg001/miniob-sub000/internal/tuple"
)

// ExecMode selects row-at-a-time vs chunk-at-a-time execution for a
// planned statement (spec.md §4.8: "the planner chooses the vector path
// only if every operator in the tree declares it can be vectorized").
type ExecMode int

const (
	ModeRow ExecMode = iota
	ModeChunk
)

// ChunkCapacity bounds how many rows TableScanVec/record.ChunkScanner
// materialize per Next call.
const ChunkCapacity = 1024

// Physicalize lowers root (already bound and rewritten) into a
// RowOperator, choosing row-at-a-time execution, and also returns a
// PlanDesc tree for EXPLAIN.
func Physicalize(db *dbms.Db, mgr *trxmgr.Manager, root *Node) (exec.RowOperator, *exec.PlanDesc, error) {
	return lowerRow(db, mgr, root)
}

// PhysicalizeVec lowers root into a chunk operator tree if every node is
// vectorizable, reporting ok=false (with a nil operator) if any node in
// the tree cannot run chunked, in which case the caller should fall back
// to Physicalize's row path.
func PhysicalizeVec(db *dbms.Db, mgr *trxmgr.Manager, root *Node) (op exec.ChunkOperator, desc *exec.PlanDesc, ok bool, err error) {
	if !vectorizable(root) {
		return nil, nil, false, nil
	}
	op, desc, err = lowerVec(db, mgr, root)
	if err != nil {
		return nil, nil, false, err
	}
	return op, desc, true, nil
}

// vectorizable reports whether every node in root's tree has a chunked
// counterpart: TableGet, Predicate, and Project do; Join, GroupBy,
// Insert, Delete and Explain do not (spec.md §4.8/§4.9's vectorized path
// covers scan/filter/project only).
func vectorizable(n *Node) bool {
	switch n.Kind {
	case LTableGet, LPredicate, LProject:
		for _, c := range n.Children {
			if !vectorizable(c) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func lowerRow(db *dbms.Db, mgr *trxmgr.Manager, n *Node) (exec.RowOperator, *exec.PlanDesc, error) {
	switch n.Kind {
	case LTableGet:
		return lowerTableGet(db, mgr, n)
	case LPredicate:
		child, cd, err := lowerRow(db, mgr, n.Children[0])
		if err != nil {
			return nil, nil, err
		}
		op := exec.NewPredicate(child, n.Pred)
		return op, exec.NewPlanDesc("PREDICATE "+n.Pred.String(), cd), nil
	case LJoin:
		return lowerJoin(db, mgr, n)
	case LProject:
		child, cd, err := lowerRow(db, mgr, n.Children[0])
		if err != nil {
			return nil, nil, err
		}
		exprs, specs := remapProjection(n, n.Children[0])
		op := exec.NewProject(child, exprs, specs)
		return op, exec.NewPlanDesc("PROJECT", cd), nil
	case LGroupBy:
		child, cd, err := lowerRow(db, mgr, n.Children[0])
		if err != nil {
			return nil, nil, err
		}
		if len(n.GroupExprs) == 0 {
			op := exec.NewScalarGroupBy(child, n.AggExprs)
			return op, exec.NewPlanDesc("SCALAR_GROUP_BY", cd), nil
		}
		op := exec.NewHashGroupBy(child, n.GroupExprs, n.AggExprs)
		return op, exec.NewPlanDesc("HASH_GROUP_BY", cd), nil
	case LInsert:
		t, err := db.Table(n.InsertTable)
		if err != nil {
			return nil, nil, err
		}
		op := exec.NewInsert(mgr, t, n.InsertValues)
		return op, exec.NewPlanDesc("INSERT(" + n.InsertTable + ")"), nil
	case LDelete:
		child, cd, err := lowerRow(db, mgr, n.Children[0])
		if err != nil {
			return nil, nil, err
		}
		t, err := db.Table(n.DeleteTable)
		if err != nil {
			return nil, nil, err
		}
		op := exec.NewDelete(mgr, t, child)
		return op, exec.NewPlanDesc("DELETE("+n.DeleteTable+")", cd), nil
	case LExplain:
		_, cd, err := lowerRow(db, mgr, n.Children[0])
		if err != nil {
			return nil, nil, err
		}
		return exec.NewExplain(cd), exec.NewPlanDesc("EXPLAIN", cd), nil
	default:
		return nil, nil, rc.Errorf(rc.UNIMPLEMENTED, "physical planner: unhandled logical node kind %v", n.Kind)
	}
}

// lowerTableGet implements spec.md §4.8's TableGet rule: use an
// IndexScan when a pushed conjunct is an equality comparison between an
// indexed field and a constant; otherwise a TableScan. Any remaining
// pushed conjuncts (not consumed by the index choice) are applied as a
// Predicate wrapper so they are never silently dropped.
func lowerTableGet(db *dbms.Db, mgr *trxmgr.Manager, n *Node) (exec.RowOperator, *exec.PlanDesc, error) {
	t, err := db.Table(n.TableName)
	if err != nil {
		return nil, nil, err
	}
	mode := trxmgr.ReadOnly
	if n.ReadMode == ReadWrite {
		mode = trxmgr.ReadWrite
	}

	if tree, key, consumed := indexEqualityFor(t, n.Pushed); tree != nil {
		op := exec.NewIndexScan(mgr, t, tree, key, key, mode)
		desc := exec.NewPlanDesc("INDEX_SCAN(" + n.TableName + ")")
		return wrapRemainingPushed(op, desc, n.Pushed, consumed), desc, nil
	}

	op := exec.NewTableScan(mgr, t, mode)
	desc := exec.NewPlanDesc("TABLE_SCAN(" + n.TableName + ")")
	return wrapRemainingPushed(op, desc, n.Pushed, -1), desc, nil
}

// wrapRemainingPushed wraps base in a Predicate for every pushed
// conjunct except the one at skipIndex (already consumed by an index
// choice, or -1 if none was).
func wrapRemainingPushed(base exec.RowOperator, desc *exec.PlanDesc, pushed []expr.Expression, skipIndex int) exec.RowOperator {
	var remaining []expr.Expression
	for i, p := range pushed {
		if i == skipIndex {
			continue
		}
		remaining = append(remaining, p)
	}
	if len(remaining) == 0 {
		return base
	}
	pred := remaining[0]
	for _, p := range remaining[1:] {
		pred = expr.NewConjunction(expr.AND, pred, p)
	}
	return exec.NewPredicate(base, pred)
}

// indexEqualityFor finds the first pushed conjunct of the form
// field = const (or const = field) where field is indexed on t, returning
// the index tree, the encoded equality key, and that conjunct's position.
func indexEqualityFor(t *table.Table, pushed []expr.Expression) (*index.Tree, []byte, int) {
	for i, p := range pushed {
		cmp, ok := p.(*expr.Comparison)
		if !ok || cmp.Op != expr.EQ {
			continue
		}
		field, constExpr, ok := splitFieldConst(cmp.Left, cmp.Right)
		if !ok {
			continue
		}
		tree, ok := t.Indexes[field.Name]
		if !ok {
			continue
		}
		v, ok := constExpr.TryGetValue()
		if !ok {
			continue
		}
		key, err := index.EncodeKey(v)
		if err != nil {
			continue
		}
		return tree, key, i
	}
	return nil, nil, -1
}

func splitFieldConst(left, right expr.Expression) (*expr.Field, expr.Expression, bool) {
	if f, ok := left.(*expr.Field); ok {
		if _, ok := right.TryGetValue(); ok {
			return f, right, true
		}
	}
	if f, ok := right.(*expr.Field); ok {
		if _, ok := left.TryGetValue(); ok {
			return f, left, true
		}
	}
	return nil, nil, false
}

func lowerJoin(db *dbms.Db, mgr *trxmgr.Manager, n *Node) (exec.RowOperator, *exec.PlanDesc, error) {
	left, ld, err := lowerRow(db, mgr, n.Children[0])
	if err != nil {
		return nil, nil, err
	}
	rightNode := n.Children[1]
	newRight := func() exec.RowOperator {
		op, _, rerr := lowerRow(db, mgr, rightNode)
		if rerr != nil {
			return errOperator{err: rerr}
		}
		return op
	}
	_, rd, err := lowerRow(db, mgr, rightNode)
	if err != nil {
		return nil, nil, err
	}
	leftOuter := n.JoinType == JoinLeft
	op := exec.NewNestedLoopJoin(left, newRight, n.JoinOn, leftOuter)
	return op, exec.NewPlanDesc("NESTED_LOOP_JOIN", ld, rd), nil
}

// errOperator is a RowOperator that always fails Open/Next with err, used
// when a right-hand join factory cannot rebuild its operator (e.g. the
// table was concurrently dropped); this keeps NewRight's signature
// error-free while still surfacing the failure to the caller.
type errOperator struct{ err error }

func (e errOperator) Open(*trxmgr.MvccTrx) error { return e.err }
func (e errOperator) Next() error                { return e.err }
func (e errOperator) Current() tuple.Tuple        { return nil }
func (e errOperator) Close() error                { return nil }

// remapProjection builds Project's evaluators and cell specs. When proj's
// child is a GroupBy, every Aggregation and group-key Field the
// projection list references must be rewritten into a Field over the
// GroupBy output tuple's shape ([group keys..., aggregates...]), since
// an Aggregation node cannot evaluate itself row-at-a-time once grouped.
func remapProjection(proj *Node, child *Node) ([]expr.Expression, []tuple.CellSpec) {
	specs := make([]tuple.CellSpec, len(proj.ProjSpecs))
	for i, s := range proj.ProjSpecs {
		specs[i] = tuple.CellSpec{Table: s.Table, Field: s.Field, Alias: s.Alias}
	}
	if child.Kind != LGroupBy {
		return proj.ProjExprs, specs
	}
	exprs := make([]expr.Expression, len(proj.ProjExprs))
	for i, e := range proj.ProjExprs {
		exprs[i] = remapForGroupBy(e, child.GroupExprs, child.AggExprs)
	}
	return exprs, specs
}

func remapForGroupBy(e expr.Expression, groupExprs []expr.Expression, aggExprs []*expr.Aggregation) expr.Expression {
	if agg, ok := e.(*expr.Aggregation); ok {
		for i, a := range aggExprs {
			if a == agg {
				return &expr.Field{Name: agg.String(), Kind: agg.ValueType(), CellIndex: len(groupExprs) + i}
			}
		}
		return e
	}
	for i, g := range groupExprs {
		if e.Equal(g) {
			spec := exprCellSpecName(g)
			return &expr.Field{Table: spec.Table, Name: spec.Field, Kind: g.ValueType(), CellIndex: i}
		}
	}
	switch v := e.(type) {
	case *expr.Cast:
		return expr.NewCast(remapForGroupBy(v.Child, groupExprs, aggExprs), v.Target)
	case *expr.Arithmetic:
		var right expr.Expression
		if v.Right != nil {
			right = remapForGroupBy(v.Right, groupExprs, aggExprs)
		}
		return expr.NewArithmetic(v.Op, remapForGroupBy(v.Left, groupExprs, aggExprs), right)
	case *expr.Comparison:
		return expr.NewComparison(v.Op, remapForGroupBy(v.Left, groupExprs, aggExprs), remapForGroupBy(v.Right, groupExprs, aggExprs))
	case *expr.Conjunction:
		children := make([]expr.Expression, len(v.Children))
		for i, c := range v.Children {
			children[i] = remapForGroupBy(c, groupExprs, aggExprs)
		}
		return expr.NewConjunction(v.Kind, children...)
	default:
		return e
	}
}

// exprCellSpecName mirrors internal/exec's exprCellSpec so the Field
// rebuilt here names the same (Table, Name) a HashGroupBy output row
// actually carries for a group-key cell.
func exprCellSpecName(e expr.Expression) tuple.CellSpec {
	if f, ok := e.(*expr.Field); ok {
		return tuple.CellSpec{Table: f.Table, Field: f.Name}
	}
	return tuple.CellSpec{Field: e.String()}
}

// --- chunk (vectorized) lowering ---

func lowerVec(db *dbms.Db, mgr *trxmgr.Manager, n *Node) (exec.ChunkOperator, *exec.PlanDesc, error) {
	switch n.Kind {
	case LTableGet:
		t, err := db.Table(n.TableName)
		if err != nil {
			return nil, nil, err
		}
		mode := trxmgr.ReadOnly
		if n.ReadMode == ReadWrite {
			mode = trxmgr.ReadWrite
		}
		op := exec.NewTableScanVec(mgr, t, mode, ChunkCapacity)
		desc := exec.NewPlanDesc("TABLE_SCAN_VEC(" + n.TableName + ")")
		if len(n.Pushed) == 0 {
			return op, desc, nil
		}
		pred := n.Pushed[0]
		for _, p := range n.Pushed[1:] {
			pred = expr.NewConjunction(expr.AND, pred, p)
		}
		return exec.NewPredicateVec(op, pred), desc, nil
	case LPredicate:
		child, cd, err := lowerVec(db, mgr, n.Children[0])
		if err != nil {
			return nil, nil, err
		}
		return exec.NewPredicateVec(child, n.Pred), exec.NewPlanDesc("PREDICATE_VEC", cd), nil
	case LProject:
		child, cd, err := lowerVec(db, mgr, n.Children[0])
		if err != nil {
			return nil, nil, err
		}
		specs := make([]tuple.CellSpec, len(n.ProjSpecs))
		for i, s := range n.ProjSpecs {
			specs[i] = tuple.CellSpec{Table: s.Table, Field: s.Field, Alias: s.Alias}
		}
		return exec.NewProjectVec(child, n.ProjExprs, specs), exec.NewPlanDesc("PROJECT_VEC", cd), nil
	default:
		return nil, nil, rc.Errorf(rc.UNIMPLEMENTED, "vectorized planner: unhandled logical node kind %v", n.Kind)
	}
}
