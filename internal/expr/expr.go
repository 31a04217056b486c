// Package expr implements spec.md §3/§4.6's Expression tree: Field,
// Value, Cast, Comparison, Conjunction, Arithmetic and Aggregation
// nodes, each exposing row-at-a-time and constant-folding evaluation.
//
// Grounded on tinySQL's internal/engine/exec.go evalExpr/evalBinary/
// evalUnary/compare family (a big switch over an untyped Expr
// interface and `any`-valued rows), redesigned into a closed set of
// concrete node types operating on sqltype.Value and tuple.Tuple
// instead of tinySQL's `any` cell values and map[string]any rows, so
// that value_type()/equal()/get_value() are real per-node methods
// rather than a single untyped recursive function.
package expr

import (
	"fmt"

	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/sqltype"
	"github.com/xzxg001/miniob-sub000/internal/tuple"
)

// ComparisonOp enumerates spec.md §3 Comparison's supported operators.
type ComparisonOp int

const (
	EQ ComparisonOp = iota
	NE
	LT
	LE
	GT
	GE
)

func (op ComparisonOp) String() string {
	switch op {
	case EQ:
		return "="
	case NE:
		return "<>"
	case LT:
		return "<"
	case LE:
		return "<="
	case GT:
		return ">"
	case GE:
		return ">="
	default:
		return "?"
	}
}

// ConjunctionKind is AND or OR (spec.md §3 Conjunction(AND|OR, children)).
type ConjunctionKind int

const (
	AND ConjunctionKind = iota
	OR
)

// ArithOp enumerates spec.md §3 Arithmetic's operators, including unary
// negation (right is nil for NEG).
type ArithOp int

const (
	ADD ArithOp = iota
	SUB
	MUL
	DIV
	NEG
)

// AggKind enumerates spec.md §4.6's five aggregator kinds.
type AggKind int

const (
	SUM AggKind = iota
	COUNT
	AVG
	MIN
	MAX
)

func (k AggKind) String() string {
	return [...]string{"SUM", "COUNT", "AVG", "MIN", "MAX"}[k]
}

// Expression is the contract every node in the tree implements (spec.md
// §4.6 "Expression contract"). GetValue satisfies tuple.Evaluator
// directly, so any Expression can back a tuple.ProjectTuple cell without
// the tuple package importing this one.
type Expression interface {
	ValueType() sqltype.Kind
	Equal(other Expression) bool
	GetValue(t tuple.Tuple) (sqltype.Value, error)
	// TryGetValue returns (value, true) only when the expression is
	// determinable without any tuple — i.e. it is a constant, or built
	// entirely from constants (spec.md §4.6, used by rewriter constant
	// folding).
	TryGetValue() (sqltype.Value, bool)
	String() string
}

// --- Star ---

// Star represents a SELECT * (or table.*) projection placeholder; the
// binder expands it before planning, so it carries no evaluable value
// (spec.md §3 Star).
type Star struct {
	Table string // empty means unqualified "*"
}

func (e *Star) ValueType() sqltype.Kind { return sqltype.UNDEFINED }
func (e *Star) Equal(other Expression) bool {
	o, ok := other.(*Star)
	return ok && o.Table == e.Table
}
func (e *Star) GetValue(tuple.Tuple) (sqltype.Value, error) {
	return sqltype.Value{}, rc.Errorf(rc.INTERNAL, "star expression must be expanded before evaluation")
}
func (e *Star) TryGetValue() (sqltype.Value, bool) { return sqltype.Value{}, false }
func (e *Star) String() string {
	if e.Table == "" {
		return "*"
	}
	return e.Table + ".*"
}

// --- UnboundField ---

// UnboundField names a field by (table, field) text before binding
// resolves it to a concrete Field (spec.md §3 UnboundField).
type UnboundField struct {
	Table, Field string
}

func (e *UnboundField) ValueType() sqltype.Kind { return sqltype.UNDEFINED }
func (e *UnboundField) Equal(other Expression) bool {
	o, ok := other.(*UnboundField)
	return ok && o.Table == e.Table && o.Field == e.Field
}
func (e *UnboundField) GetValue(tuple.Tuple) (sqltype.Value, error) {
	return sqltype.Value{}, rc.Errorf(rc.INTERNAL, "unbound field %s must be resolved before evaluation", e.String())
}
func (e *UnboundField) TryGetValue() (sqltype.Value, bool) { return sqltype.Value{}, false }
func (e *UnboundField) String() string {
	if e.Table == "" {
		return e.Field
	}
	return e.Table + "." + e.Field
}

// --- Field ---

// Field references a resolved (table, field) pair plus its cell index
// within the row shape the binder fixed (spec.md §3 Field: "references
// a (Table, FieldMeta)").
type Field struct {
	Table string
	Name  string
	Kind  sqltype.Kind
	// CellIndex caches the position the binder resolved within the
	// planned row shape, avoiding a FindCell lookup per row (spec.md
	// §4.6's "cached pos_" for vectorized gather).
	CellIndex int
}

func (e *Field) ValueType() sqltype.Kind { return e.Kind }
func (e *Field) Equal(other Expression) bool {
	o, ok := other.(*Field)
	return ok && o.Table == e.Table && o.Name == e.Name
}
func (e *Field) GetValue(t tuple.Tuple) (sqltype.Value, error) {
	if rv, ok := t.(*rowView); ok {
		// a column batch carries no schema to check the name against
		return rv.Cell(e.CellIndex)
	}
	if e.CellIndex >= 0 && e.CellIndex < t.Len() {
		if spec := t.CellSpec(e.CellIndex); spec.Field == e.Name && (e.Table == "" || spec.Table == e.Table) {
			return t.Cell(e.CellIndex)
		}
	}
	i, ok := t.FindCell(e.Table, e.Name)
	if !ok {
		return sqltype.Value{}, rc.Errorf(rc.SCHEMA_FIELD_NOT_EXIST, "no such field %s", e.String())
	}
	return t.Cell(i)
}
func (e *Field) TryGetValue() (sqltype.Value, bool) { return sqltype.Value{}, false }
func (e *Field) String() string {
	if e.Table == "" {
		return e.Name
	}
	return e.Table + "." + e.Name
}

// --- Value (constant) ---

// ValueExpr wraps a literal (spec.md §3 Value).
type ValueExpr struct {
	V sqltype.Value
}

func NewValue(v sqltype.Value) *ValueExpr { return &ValueExpr{V: v} }

func (e *ValueExpr) ValueType() sqltype.Kind { return e.V.Kind }
func (e *ValueExpr) Equal(other Expression) bool {
	o, ok := other.(*ValueExpr)
	return ok && sqltype.Equal(e.V, o.V)
}
func (e *ValueExpr) GetValue(tuple.Tuple) (sqltype.Value, error) { return e.V, nil }
func (e *ValueExpr) TryGetValue() (sqltype.Value, bool)          { return e.V, true }
func (e *ValueExpr) String() string                              { return e.V.ToString() }

// --- Cast ---

// Cast converts its child's value to Target (spec.md §3 Cast(child, target_type)).
type Cast struct {
	Child  Expression
	Target sqltype.Kind
}

func NewCast(child Expression, target sqltype.Kind) *Cast { return &Cast{Child: child, Target: target} }

func (e *Cast) ValueType() sqltype.Kind { return e.Target }
func (e *Cast) Equal(other Expression) bool {
	o, ok := other.(*Cast)
	return ok && o.Target == e.Target && e.Child.Equal(o.Child)
}
func (e *Cast) GetValue(t tuple.Tuple) (sqltype.Value, error) {
	v, err := e.Child.GetValue(t)
	if err != nil {
		return sqltype.Value{}, err
	}
	return sqltype.Cast(v, e.Target)
}
func (e *Cast) TryGetValue() (sqltype.Value, bool) {
	v, ok := e.Child.TryGetValue()
	if !ok {
		return sqltype.Value{}, false
	}
	out, err := sqltype.Cast(v, e.Target)
	if err != nil {
		return sqltype.Value{}, false
	}
	return out, true
}
func (e *Cast) String() string { return fmt.Sprintf("CAST(%s AS %s)", e.Child.String(), e.Target) }

// --- Comparison ---

// Comparison evaluates Left <op> Right to a BOOL value (spec.md §3
// Comparison(op, left, right)).
type Comparison struct {
	Op          ComparisonOp
	Left, Right Expression
}

func NewComparison(op ComparisonOp, left, right Expression) *Comparison {
	return &Comparison{Op: op, Left: left, Right: right}
}

func (e *Comparison) ValueType() sqltype.Kind { return sqltype.BOOL }
func (e *Comparison) Equal(other Expression) bool {
	o, ok := other.(*Comparison)
	return ok && o.Op == e.Op && e.Left.Equal(o.Left) && e.Right.Equal(o.Right)
}
func (e *Comparison) GetValue(t tuple.Tuple) (sqltype.Value, error) {
	lv, err := e.Left.GetValue(t)
	if err != nil {
		return sqltype.Value{}, err
	}
	rv, err := e.Right.GetValue(t)
	if err != nil {
		return sqltype.Value{}, err
	}
	return sqltype.NewBool(e.compareResult(sqltype.Compare(lv, rv))), nil
}
func (e *Comparison) compareResult(cmp int) bool {
	switch e.Op {
	case EQ:
		return cmp == 0
	case NE:
		return cmp != 0
	case LT:
		return cmp < 0
	case LE:
		return cmp <= 0
	case GT:
		return cmp > 0
	case GE:
		return cmp >= 0
	default:
		return false
	}
}
func (e *Comparison) TryGetValue() (sqltype.Value, bool) {
	lv, lok := e.Left.TryGetValue()
	rv, rok := e.Right.TryGetValue()
	if !lok || !rok {
		return sqltype.Value{}, false
	}
	return sqltype.NewBool(e.compareResult(sqltype.Compare(lv, rv))), true
}
func (e *Comparison) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left.String(), e.Op, e.Right.String())
}

// --- Conjunction ---

// Conjunction ANDs/ORs an arbitrary number of child predicates (spec.md
// §3 Conjunction(AND|OR, children)).
type Conjunction struct {
	Kind     ConjunctionKind
	Children []Expression
}

func NewConjunction(kind ConjunctionKind, children ...Expression) *Conjunction {
	return &Conjunction{Kind: kind, Children: children}
}

func (e *Conjunction) ValueType() sqltype.Kind { return sqltype.BOOL }
func (e *Conjunction) Equal(other Expression) bool {
	o, ok := other.(*Conjunction)
	if !ok || o.Kind != e.Kind || len(o.Children) != len(e.Children) {
		return false
	}
	for i := range e.Children {
		if !e.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}
func (e *Conjunction) GetValue(t tuple.Tuple) (sqltype.Value, error) {
	if len(e.Children) == 0 {
		return sqltype.NewBool(e.Kind == AND), nil
	}
	for _, c := range e.Children {
		v, err := c.GetValue(t)
		if err != nil {
			return sqltype.Value{}, err
		}
		b := v.GetBool()
		if e.Kind == AND && !b {
			return sqltype.NewBool(false), nil
		}
		if e.Kind == OR && b {
			return sqltype.NewBool(true), nil
		}
	}
	return sqltype.NewBool(e.Kind == AND), nil
}
func (e *Conjunction) TryGetValue() (sqltype.Value, bool) {
	if len(e.Children) == 0 {
		return sqltype.NewBool(e.Kind == AND), true
	}
	for _, c := range e.Children {
		v, ok := c.TryGetValue()
		if !ok {
			return sqltype.Value{}, false
		}
		b := v.GetBool()
		if e.Kind == AND && !b {
			return sqltype.NewBool(false), true
		}
		if e.Kind == OR && b {
			return sqltype.NewBool(true), true
		}
	}
	return sqltype.NewBool(e.Kind == AND), true
}
func (e *Conjunction) String() string {
	sep := " AND "
	if e.Kind == OR {
		sep = " OR "
	}
	s := ""
	for i, c := range e.Children {
		if i > 0 {
			s += sep
		}
		s += c.String()
	}
	return "(" + s + ")"
}

// --- Arithmetic ---

// Arithmetic evaluates Left <op> Right, or unary negation of Left when
// Op is NEG and Right is nil (spec.md §3 Arithmetic(+|-|*|/|unary-, left, right?)).
type Arithmetic struct {
	Op          ArithOp
	Left, Right Expression
}

func NewArithmetic(op ArithOp, left, right Expression) *Arithmetic {
	return &Arithmetic{Op: op, Left: left, Right: right}
}

func (e *Arithmetic) ValueType() sqltype.Kind {
	if e.Left.ValueType() == sqltype.FLOAT {
		return sqltype.FLOAT
	}
	if e.Op != NEG && e.Right != nil && e.Right.ValueType() == sqltype.FLOAT {
		return sqltype.FLOAT
	}
	return sqltype.INT
}
func (e *Arithmetic) Equal(other Expression) bool {
	o, ok := other.(*Arithmetic)
	if !ok || o.Op != e.Op || !e.Left.Equal(o.Left) {
		return false
	}
	if e.Right == nil || o.Right == nil {
		return e.Right == o.Right
	}
	return e.Right.Equal(o.Right)
}
func (e *Arithmetic) apply(lv, rv sqltype.Value) sqltype.Value {
	switch e.Op {
	case ADD:
		return sqltype.Add(lv, rv)
	case SUB:
		return sqltype.Sub(lv, rv)
	case MUL:
		return sqltype.Mul(lv, rv)
	case DIV:
		return sqltype.Div(lv, rv)
	case NEG:
		return sqltype.Neg(lv)
	default:
		return sqltype.Undefined()
	}
}
func (e *Arithmetic) GetValue(t tuple.Tuple) (sqltype.Value, error) {
	lv, err := e.Left.GetValue(t)
	if err != nil {
		return sqltype.Value{}, err
	}
	if e.Op == NEG {
		return e.apply(lv, sqltype.Value{}), nil
	}
	rv, err := e.Right.GetValue(t)
	if err != nil {
		return sqltype.Value{}, err
	}
	return e.apply(lv, rv), nil
}
func (e *Arithmetic) TryGetValue() (sqltype.Value, bool) {
	lv, ok := e.Left.TryGetValue()
	if !ok {
		return sqltype.Value{}, false
	}
	if e.Op == NEG {
		return e.apply(lv, sqltype.Value{}), true
	}
	rv, ok := e.Right.TryGetValue()
	if !ok {
		return sqltype.Value{}, false
	}
	return e.apply(lv, rv), true
}
func (e *Arithmetic) String() string {
	ops := map[ArithOp]string{ADD: "+", SUB: "-", MUL: "*", DIV: "/", NEG: "-"}
	if e.Op == NEG {
		return fmt.Sprintf("(-%s)", e.Left.String())
	}
	return fmt.Sprintf("(%s %s %s)", e.Left.String(), ops[e.Op], e.Right.String())
}

// --- UnboundAggregation / Aggregation ---

// UnboundAggregation names an aggregate function call before binding
// validates its argument type (spec.md §3 UnboundAggregation(name, child)).
type UnboundAggregation struct {
	Name  string
	Child Expression
}

func (e *UnboundAggregation) ValueType() sqltype.Kind { return sqltype.UNDEFINED }
func (e *UnboundAggregation) Equal(other Expression) bool {
	o, ok := other.(*UnboundAggregation)
	return ok && o.Name == e.Name && e.Child.Equal(o.Child)
}
func (e *UnboundAggregation) GetValue(tuple.Tuple) (sqltype.Value, error) {
	return sqltype.Value{}, rc.Errorf(rc.INTERNAL, "unbound aggregation %s must be resolved before evaluation", e.Name)
}
func (e *UnboundAggregation) TryGetValue() (sqltype.Value, bool) { return sqltype.Value{}, false }
func (e *UnboundAggregation) String() string                     { return e.Name + "(" + e.Child.String() + ")" }

// Aggregation is a resolved aggregate function call over Child, bound to
// a particular AggKind (spec.md §3 Aggregation(SUM|COUNT|AVG|MIN|MAX, child)).
// Aggregation has no row-at-a-time GetValue of its own: it is evaluated
// by accumulating Child's value across a group via an Aggregator
// (see aggregate.go), and its GetValue here is only meaningful once the
// planner has rewritten the projection to read the group's accumulated
// result through a Field placeholder.
type Aggregation struct {
	Kind  AggKind
	Child Expression
}

func NewAggregation(kind AggKind, child Expression) *Aggregation {
	return &Aggregation{Kind: kind, Child: child}
}

func (e *Aggregation) ValueType() sqltype.Kind {
	if e.Kind == COUNT {
		return sqltype.INT
	}
	if e.Kind == AVG {
		return sqltype.FLOAT
	}
	return e.Child.ValueType()
}
func (e *Aggregation) Equal(other Expression) bool {
	o, ok := other.(*Aggregation)
	return ok && o.Kind == e.Kind && e.Child.Equal(o.Child)
}
func (e *Aggregation) GetValue(tuple.Tuple) (sqltype.Value, error) {
	return sqltype.Value{}, rc.Errorf(rc.INTERNAL, "aggregation %s must be evaluated via an Aggregator, not GetValue", e.Kind)
}
func (e *Aggregation) TryGetValue() (sqltype.Value, bool) { return sqltype.Value{}, false }
func (e *Aggregation) String() string                     { return e.Kind.String() + "(" + e.Child.String() + ")" }
