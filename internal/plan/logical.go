// Package plan implements spec.md §4.7/§4.8: the binder (SelectSqlNode
// -> logical plan), the rewriter's fixed-point rule loop, and the
// physical planner that lowers a logical plan into an internal/exec
// operator tree.
//
// Grounded on tinySQL's internal/engine/compile.go (statement ->
// execution shape) and optimizations.go (rule-based rewrite passes),
// redesigned from tinySQL's "interpret the AST directly" style into an
// explicit logical-plan intermediate representation per spec.md §4.7's
// Project/GroupBy/Predicate/Join/TableGet tree shape.
package plan

import "github.com/xzxg001/miniob-sub000/internal/expr"

// LogicalKind tags a logical plan node's shape.
type LogicalKind int

const (
	LTableGet LogicalKind = iota
	LPredicate
	LJoin
	LProject
	LGroupBy
	LInsert
	LDelete
	LExplain
)

// ReadMode mirrors trxmgr.ReadMode for the TableGet leaf's access mode
// (spec.md §4.7 logical shape: "TableGet(table_i, read_mode)").
type ReadMode int

const (
	ReadOnly ReadMode = iota
	ReadWrite
)

// Node is one logical plan node (spec.md §4.7's bottom-up tree).
type Node struct {
	Kind     LogicalKind
	Children []*Node

	// TableGet
	TableName string
	// Alias is the FROM-scope alias this TableGet is addressed by in
	// bound Field expressions (defaults to TableName when unaliased).
	Alias    string
	ReadMode ReadMode
	// Pushed holds predicate conjuncts the rewriter has pushed down into
	// this TableGet (spec.md §4.7 rule 3).
	Pushed []expr.Expression

	// Predicate
	Pred expr.Expression

	// Join
	JoinType JoinType
	JoinOn   expr.Expression

	// Project
	ProjExprs []expr.Expression
	ProjSpecs []ProjSpec

	// GroupBy
	GroupExprs []expr.Expression
	AggExprs   []*expr.Aggregation
	AggNames   []string

	// Insert
	InsertTable  string
	InsertValues [][]expr.Expression

	// Delete
	DeleteTable string
}

// ProjSpec names one projected output column (table/field/alias), used
// to build the eventual tuple.CellSpec.
type ProjSpec struct {
	Table string
	Field string
	Alias string
}

// JoinType mirrors sqlast.JoinType at the logical-plan layer.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
)

func newTableGet(table string, mode ReadMode) *Node {
	return &Node{Kind: LTableGet, TableName: table, Alias: table, ReadMode: mode}
}

func newTableGetAliased(table, alias string, mode ReadMode) *Node {
	return &Node{Kind: LTableGet, TableName: table, Alias: alias, ReadMode: mode}
}

func newPredicate(child *Node, pred expr.Expression) *Node {
	return &Node{Kind: LPredicate, Children: []*Node{child}, Pred: pred}
}

func newJoin(left, right *Node, jt JoinType, on expr.Expression) *Node {
	return &Node{Kind: LJoin, Children: []*Node{left, right}, JoinType: jt, JoinOn: on}
}

func newProject(child *Node, exprs []expr.Expression, specs []ProjSpec) *Node {
	n := &Node{Kind: LProject, ProjExprs: exprs, ProjSpecs: specs}
	if child != nil {
		n.Children = []*Node{child}
	}
	return n
}

func newGroupBy(child *Node, groupExprs []expr.Expression, aggExprs []*expr.Aggregation, aggNames []string) *Node {
	return &Node{
		Kind:       LGroupBy,
		Children:   []*Node{child},
		GroupExprs: groupExprs,
		AggExprs:   aggExprs,
		AggNames:   aggNames,
	}
}

func newInsert(table string, rows [][]expr.Expression) *Node {
	return &Node{Kind: LInsert, InsertTable: table, InsertValues: rows}
}

func newDelete(child *Node, table string) *Node {
	return &Node{Kind: LDelete, Children: []*Node{child}, DeleteTable: table}
}

func newExplain(child *Node) *Node {
	return &Node{Kind: LExplain, Children: []*Node{child}}
}

// String renders a one-line label for n, used by sql_debug plan logging.
// EXPLAIN prints the physical plan's own labels, not this one.
func (n *Node) String() string {
	switch n.Kind {
	case LTableGet:
		return "TABLE_GET(" + n.TableName + ")"
	case LPredicate:
		return "PREDICATE"
	case LJoin:
		return "JOIN"
	case LProject:
		return "PROJECT"
	case LGroupBy:
		return "GROUP_BY"
	case LInsert:
		return "INSERT(" + n.InsertTable + ")"
	case LDelete:
		return "DELETE(" + n.DeleteTable + ")"
	case LExplain:
		return "EXPLAIN"
	default:
		return "?"
	}
}
