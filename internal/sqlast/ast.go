// Package sqlast specifies the parser's output schema only (spec.md §1:
// "only the parser's output schema — the ParsedSqlNode tree — is
// specified"); no tokenizer or grammar lives here. internal/plan's
// binder consumes these node shapes.
//
// Grounded on tinySQL's internal/engine/parser.go output types
// (Statement/Expr/CreateTable/Select/... as plain field-only structs)
// for the node field shapes, and on ha1tch-tsqlparser's ast.go
// node-tagging idiom (an unexported marker method per interface,
// e.g. expressionNode()) for how a closed node-kind set is expressed in
// Go, rather than tinySQL's bare `interface{}` Expr/Statement aliases
// (which admit any type at all, not just the intended node set).
package sqlast

// Statement is the root of a parsed SQL statement (spec.md's
// ParsedSqlNode). The unexported marker method closes the set of valid
// statement node types, following ha1tch-tsqlparser's ast.go idiom.
type Statement interface {
	statementNode()
}

// Expr is a parsed (pre-bind) expression node.
type Expr interface {
	exprNode()
}

// --- Expression nodes ---

// Ident refers to a column, optionally table-qualified
// ("table.field" parses to Table="table", Field="field").
type Ident struct {
	Table string
	Field string
}

func (*Ident) exprNode() {}

// Star is `*` or `table.*` in a projection list or COUNT(*).
type Star struct {
	Table string
}

func (*Star) exprNode() {}

// Literal holds a scanned constant: int64, float64, bool, string, or nil
// (SQL NULL, represented as sqltype.UNDEFINED once bound).
type Literal struct {
	Val any
}

func (*Literal) exprNode() {}

// UnaryOp is a prefix operator: "-" (negate) or "NOT".
type UnaryOp struct {
	Op   string
	Expr Expr
}

func (*UnaryOp) exprNode() {}

// BinaryOp is an infix operator: arithmetic (+ - * /), comparison
// (= <> < <= > >=), or logical (AND OR).
type BinaryOp struct {
	Op          string
	Left, Right Expr
}

func (*BinaryOp) exprNode() {}

// IsNullPred is `expr IS [NOT] NULL`.
type IsNullPred struct {
	Expr   Expr
	Negate bool
}

func (*IsNullPred) exprNode() {}

// FuncCall is a named function or aggregate call, e.g. SUM(x) or
// COUNT(*).
type FuncCall struct {
	Name string
	Args []Expr
	Star bool
}

func (*FuncCall) exprNode() {}

// --- Statement nodes ---

// ColumnDef is one column of a CREATE TABLE statement.
type ColumnDef struct {
	Name string
	Kind string // "INT" | "FLOAT" | "BOOL" | "CHARS"
	// Width is CHARS's declared byte width; ignored for other kinds.
	Width int
}

// CreateTableStmt is CREATE TABLE name (col defs...).
type CreateTableStmt struct {
	Table string
	Cols  []ColumnDef
}

func (*CreateTableStmt) statementNode() {}

// DropTableStmt is DROP TABLE name.
type DropTableStmt struct {
	Table string
}

func (*DropTableStmt) statementNode() {}

// CreateIndexStmt is CREATE INDEX ON table(field).
type CreateIndexStmt struct {
	Table string
	Field string
}

func (*CreateIndexStmt) statementNode() {}

// InsertStmt is INSERT INTO table [(cols...)] VALUES (exprs...).
type InsertStmt struct {
	Table string
	Cols  []string // empty means "every column, in schema order"
	Vals  []Expr
}

func (*InsertStmt) statementNode() {}

// UpdateStmt is UPDATE table SET col=expr, ... [WHERE expr].
type UpdateStmt struct {
	Table string
	Sets  []Assignment
	Where Expr
}

// Assignment is one SET clause entry. A slice (not a map) so
// evaluation order is stable and deterministic across runs.
type Assignment struct {
	Col  string
	Expr Expr
}

func (*UpdateStmt) statementNode() {}

// DeleteStmt is DELETE FROM table [WHERE expr].
type DeleteStmt struct {
	Table string
	Where Expr
}

func (*DeleteStmt) statementNode() {}

// FromItem binds one FROM/JOIN source table to its optional alias.
type FromItem struct {
	Table string
	Alias string
}

// JoinType enumerates the JOIN kinds a parsed statement can carry. The
// planner runs JoinLeft as a left-outer NestedLoopJoin; JoinRight runs as
// an inner join, so unmatched right rows are not emitted.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
)

// JoinItem is one JOIN clause chained onto a SELECT's FROM.
type JoinItem struct {
	Type  JoinType
	Right FromItem
	On    Expr
}

// SelectItem is one projected expression, optionally aliased.
type SelectItem struct {
	Expr  Expr
	Alias string
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// SelectStmt is the parser's SelectSqlNode (spec.md §4.7's binder
// input): FROM, JOINs, WHERE, projections, GROUP BY, HAVING, ORDER BY,
// LIMIT/OFFSET.
type SelectStmt struct {
	Distinct bool
	From     FromItem
	Joins    []JoinItem
	Projs    []SelectItem
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderItem
	Limit    *int
	Offset   *int
}

func (*SelectStmt) statementNode() {}

// --- Session / transaction control ---
//
// These node shapes round out the minimum SQL surface (spec.md §6) that
// isn't a binder input: transaction control, EXPLAIN, bulk load, session
// variables. The grammar that would produce them is the same
// out-of-scope tokenizer that produces every other node here; only the
// shape is specified.

// BeginStmt starts a transaction.
type BeginStmt struct{}

func (*BeginStmt) statementNode() {}

// CommitStmt commits the session's current transaction.
type CommitStmt struct{}

func (*CommitStmt) statementNode() {}

// RollbackStmt rolls back the session's current transaction.
type RollbackStmt struct{}

func (*RollbackStmt) statementNode() {}

// ExplainStmt wraps another statement for EXPLAIN <stmt>.
type ExplainStmt struct {
	Inner Statement
}

func (*ExplainStmt) statementNode() {}

// LoadDataStmt is LOAD DATA INFILE '<path>' INTO TABLE t.
type LoadDataStmt struct {
	Path  string
	Table string
}

func (*LoadDataStmt) statementNode() {}

// SetVariableStmt is SET VARIABLE name = value.
type SetVariableStmt struct {
	Name  string
	Value string
}

func (*SetVariableStmt) statementNode() {}

// ShowTablesStmt is SHOW TABLES.
type ShowTablesStmt struct{}

func (*ShowTablesStmt) statementNode() {}

// DescTableStmt is DESC <table>.
type DescTableStmt struct {
	Table string
}

func (*DescTableStmt) statementNode() {}

// HelpStmt is HELP.
type HelpStmt struct{}

func (*HelpStmt) statementNode() {}
