// Binder: resolves a parsed statement (internal/sqlast) against a
// database's live schema (internal/dbms) and produces a logical plan
// tree (spec.md §4.7).
//
// Grounded on tinySQL's internal/engine/compile.go, which walks a
// parsed SELECT's FROM/WHERE/SELECT list directly against its in-memory
// table map while resolving column names, redesigned here to produce
// an explicit Node tree instead of compiling straight into an executor
// closure.
package plan

import (
	"github.com/xzxg001/miniob-sub000/internal/dbms"
	"github.com/xzxg001/miniob-sub000/internal/expr"
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/sqlast"
	"github.com/xzxg001/miniob-sub000/internal/sqltype"
	"github.com/xzxg001/miniob-sub000/internal/table"
)

// scopeTable is one resolved FROM/JOIN source: its alias (defaulting to
// the table name), schema, and the cumulative cell offset it occupies
// in the row shape the join chain produces (left table's fields first).
type scopeTable struct {
	alias  string
	name   string
	meta   *table.Meta
	offset int
}

type bindScope struct {
	tables []scopeTable
}

func (s *bindScope) width() int {
	n := 0
	for _, t := range s.tables {
		n += len(t.meta.Fields)
	}
	return n
}

func (s *bindScope) add(alias, name string, meta *table.Meta) {
	s.tables = append(s.tables, scopeTable{alias: alias, name: name, meta: meta, offset: s.width()})
}

// resolve finds a (table, field) pair, honoring spec.md §4.7's
// unqualified-name rule: unqualified names must resolve unambiguously.
func (s *bindScope) resolve(tbl, field string) (*expr.Field, error) {
	if tbl != "" {
		for _, st := range s.tables {
			if st.alias != tbl {
				continue
			}
			fm, ok := st.meta.FieldByName(field)
			if !ok {
				return nil, rc.Errorf(rc.SCHEMA_FIELD_NOT_EXIST, "no such field %s.%s", tbl, field)
			}
			return &expr.Field{Table: st.alias, Name: field, Kind: fm.Kind, CellIndex: st.offset + fieldIndex(st.meta, field)}, nil
		}
		return nil, rc.Errorf(rc.SCHEMA_TABLE_NOT_EXIST, "no such table %s in FROM scope", tbl)
	}
	var found *expr.Field
	matches := 0
	for _, st := range s.tables {
		fm, ok := st.meta.FieldByName(field)
		if !ok {
			continue
		}
		matches++
		found = &expr.Field{Table: st.alias, Name: field, Kind: fm.Kind, CellIndex: st.offset + fieldIndex(st.meta, field)}
	}
	if matches == 0 {
		return nil, rc.Errorf(rc.SCHEMA_FIELD_NOT_EXIST, "no such field %s", field)
	}
	if matches > 1 {
		return nil, rc.Errorf(rc.INVALID_ARGUMENT, "ambiguous unqualified field %s", field)
	}
	return found, nil
}

func fieldIndex(m *table.Meta, name string) int {
	for i, f := range m.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// expandStar returns every non-system field of every FROM table (or of
// just one table, if tbl is a specific table's alias), in FROM order
// (spec.md §4.7: "Stars expand to every non-system field of every FROM
// table, in FROM order").
func (s *bindScope) expandStar(tbl string) []*expr.Field {
	var out []*expr.Field
	for _, st := range s.tables {
		if tbl != "" && tbl != st.alias {
			continue
		}
		for i, f := range st.meta.Fields {
			out = append(out, &expr.Field{Table: st.alias, Name: f.Name, Kind: f.Kind, CellIndex: st.offset + i})
		}
	}
	return out
}

// Bind resolves stmt against db, producing a logical plan for the
// statement kinds internal/exec drives: SELECT, INSERT, DELETE. DDL
// statements (CREATE/DROP TABLE, CREATE INDEX) are executed directly
// against dbms.Db by the session layer and never reach the planner.
func Bind(db *dbms.Db, stmt sqlast.Statement) (*Node, error) {
	switch st := stmt.(type) {
	case *sqlast.SelectStmt:
		return bindSelect(db, st)
	case *sqlast.InsertStmt:
		return bindInsert(db, st)
	case *sqlast.DeleteStmt:
		return bindDelete(db, st)
	default:
		return nil, rc.Errorf(rc.UNIMPLEMENTED, "statement kind %T is not planned through internal/plan", stmt)
	}
}

func bindFromItem(db *dbms.Db, item sqlast.FromItem, scope *bindScope) (*Node, error) {
	t, err := db.Table(item.Table)
	if err != nil {
		return nil, err
	}
	alias := item.Alias
	if alias == "" {
		alias = item.Table
	}
	scope.add(alias, item.Table, t.Meta)
	return newTableGetAliased(item.Table, alias, ReadOnly), nil
}

func joinTypeOf(jt sqlast.JoinType) JoinType {
	switch jt {
	case sqlast.JoinLeft:
		return JoinLeft
	case sqlast.JoinRight:
		return JoinRight
	default:
		return JoinInner
	}
}

func bindSelect(db *dbms.Db, st *sqlast.SelectStmt) (*Node, error) {
	scope := &bindScope{}
	root, err := bindFromItem(db, st.From, scope)
	if err != nil {
		return nil, err
	}
	for _, j := range st.Joins {
		right, err := bindFromItem(db, j.Right, scope)
		if err != nil {
			return nil, err
		}
		var on expr.Expression
		if j.On != nil {
			on, err = bindExpr(j.On, scope)
			if err != nil {
				return nil, err
			}
		}
		root = newJoin(root, right, joinTypeOf(j.Type), on)
	}

	if st.Where != nil {
		pred, err := bindExpr(st.Where, scope)
		if err != nil {
			return nil, err
		}
		root = newPredicate(root, pred)
	}

	// Bind the projection list, expanding `*`, before deciding whether a
	// GroupBy stage is needed (aggregate detection walks the bound
	// projection exprs, per spec.md §4.7).
	var projExprs []expr.Expression
	var projSpecs []ProjSpec
	hasAgg := false
	for _, item := range st.Projs {
		if star, ok := item.Expr.(*sqlast.Star); ok {
			for _, f := range scope.expandStar(star.Table) {
				projExprs = append(projExprs, f)
				projSpecs = append(projSpecs, ProjSpec{Table: f.Table, Field: f.Name})
			}
			continue
		}
		bound, err := bindExpr(item.Expr, scope)
		if err != nil {
			return nil, err
		}
		if containsAggregation(bound) {
			hasAgg = true
		}
		spec := ProjSpec{Alias: item.Alias}
		if f, ok := bound.(*expr.Field); ok {
			spec.Table, spec.Field = f.Table, f.Name
		} else {
			spec.Field = bound.String()
		}
		projExprs = append(projExprs, bound)
		projSpecs = append(projSpecs, spec)
	}

	var groupExprs []expr.Expression
	for _, g := range st.GroupBy {
		bound, err := bindExpr(g, scope)
		if err != nil {
			return nil, err
		}
		groupExprs = append(groupExprs, bound)
	}

	if hasAgg || len(groupExprs) > 0 {
		var aggExprs []*expr.Aggregation
		var aggNames []string
		flatExprs := make([]expr.Expression, len(projExprs))
		for i, pe := range projExprs {
			resolved, err := extractAggregations(pe, groupExprs, &aggExprs, &aggNames)
			if err != nil {
				return nil, err
			}
			flatExprs[i] = resolved
		}
		projExprs = flatExprs
		root = newGroupBy(root, groupExprs, aggExprs, aggNames)
	}

	root = newProject(root, projExprs, projSpecs)
	return root, nil
}

// containsAggregation reports whether e (anywhere in its tree) is or
// contains an *expr.Aggregation.
func containsAggregation(e expr.Expression) bool {
	switch v := e.(type) {
	case *expr.Aggregation:
		return true
	case *expr.Cast:
		return containsAggregation(v.Child)
	case *expr.Arithmetic:
		if containsAggregation(v.Left) {
			return true
		}
		return v.Right != nil && containsAggregation(v.Right)
	case *expr.Comparison:
		return containsAggregation(v.Left) || containsAggregation(v.Right)
	case *expr.Conjunction:
		for _, c := range v.Children {
			if containsAggregation(c) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// extractAggregations validates the aggregate-detection rule (spec.md
// §4.7: "if aggregates exist but a SELECT expression references a
// column neither in GROUP BY nor inside an aggregate, return
// INVALID_ARGUMENT") and collects every distinct *expr.Aggregation it
// finds, appending to aggExprs/aggNames and returning e unchanged (the
// GroupBy physical operator reads aggregate results by position,
// matching aggExprs' order, once lowered in physical.go).
func extractAggregations(e expr.Expression, groupExprs []expr.Expression, aggExprs *[]*expr.Aggregation, aggNames *[]string) (expr.Expression, error) {
	switch v := e.(type) {
	case *expr.Aggregation:
		*aggExprs = append(*aggExprs, v)
		*aggNames = append(*aggNames, v.String())
		return v, nil
	case *expr.Field:
		if exprInGroupBy(v, groupExprs) {
			return v, nil
		}
		return nil, rc.Errorf(rc.INVALID_ARGUMENT, "column %s must appear in GROUP BY or be used inside an aggregate", v.String())
	case *expr.ValueExpr:
		return v, nil
	case *expr.Cast:
		child, err := extractAggregations(v.Child, groupExprs, aggExprs, aggNames)
		if err != nil {
			return nil, err
		}
		return &expr.Cast{Child: child, Target: v.Target}, nil
	case *expr.Arithmetic:
		left, err := extractAggregations(v.Left, groupExprs, aggExprs, aggNames)
		if err != nil {
			return nil, err
		}
		var right expr.Expression
		if v.Right != nil {
			right, err = extractAggregations(v.Right, groupExprs, aggExprs, aggNames)
			if err != nil {
				return nil, err
			}
		}
		return &expr.Arithmetic{Op: v.Op, Left: left, Right: right}, nil
	case *expr.Comparison:
		left, err := extractAggregations(v.Left, groupExprs, aggExprs, aggNames)
		if err != nil {
			return nil, err
		}
		right, err := extractAggregations(v.Right, groupExprs, aggExprs, aggNames)
		if err != nil {
			return nil, err
		}
		return &expr.Comparison{Op: v.Op, Left: left, Right: right}, nil
	default:
		return e, nil
	}
}

func exprInGroupBy(e expr.Expression, groupExprs []expr.Expression) bool {
	for _, g := range groupExprs {
		if e.Equal(g) {
			return true
		}
	}
	return false
}

func bindInsert(db *dbms.Db, st *sqlast.InsertStmt) (*Node, error) {
	t, err := db.Table(st.Table)
	if err != nil {
		return nil, err
	}
	cols := st.Cols
	if len(cols) == 0 {
		for _, f := range t.Meta.Fields {
			cols = append(cols, f.Name)
		}
	}
	if len(cols) != len(st.Vals) {
		return nil, rc.Errorf(rc.INVALID_ARGUMENT, "expected %d values, got %d", len(cols), len(st.Vals))
	}
	row := make([]expr.Expression, len(t.Meta.Fields))
	for i, colName := range cols {
		fm, ok := t.Meta.FieldByName(colName)
		if !ok {
			return nil, rc.Errorf(rc.SCHEMA_FIELD_MISSING, "no such field %s on table %s", colName, st.Table)
		}
		valExpr, err := bindExpr(st.Vals[i], nil)
		if err != nil {
			return nil, err
		}
		v, ok := valExpr.TryGetValue()
		if !ok {
			return nil, rc.Errorf(rc.INVALID_ARGUMENT, "INSERT values must be constant expressions")
		}
		cast, err := sqltype.Cast(v, fm.Kind)
		if err != nil {
			return nil, rc.Errorf(rc.SCHEMA_FIELD_TYPE_MISMATCH, "field %s: %v", colName, err)
		}
		row[fieldIndex(t.Meta, colName)] = expr.NewValue(cast)
	}
	for i, v := range row {
		if v == nil {
			return nil, rc.Errorf(rc.INVALID_ARGUMENT, "missing value for field %s (no default-value support)", t.Meta.Fields[i].Name)
		}
	}
	return newInsert(st.Table, [][]expr.Expression{row}), nil
}

func bindDelete(db *dbms.Db, st *sqlast.DeleteStmt) (*Node, error) {
	t, err := db.Table(st.Table)
	if err != nil {
		return nil, err
	}
	scope := &bindScope{}
	scope.add(st.Table, st.Table, t.Meta)
	root := newTableGet(st.Table, ReadWrite)
	if st.Where != nil {
		pred, err := bindExpr(st.Where, scope)
		if err != nil {
			return nil, err
		}
		root = newPredicate(root, pred)
	}
	return newDelete(root, st.Table), nil
}

var aggFuncNames = map[string]expr.AggKind{
	"SUM":   expr.SUM,
	"COUNT": expr.COUNT,
	"AVG":   expr.AVG,
	"MIN":   expr.MIN,
	"MAX":   expr.MAX,
}

func bindExpr(e sqlast.Expr, scope *bindScope) (expr.Expression, error) {
	switch v := e.(type) {
	case *sqlast.Literal:
		return expr.NewValue(literalValue(v.Val)), nil
	case *sqlast.Ident:
		if scope == nil {
			return nil, rc.Errorf(rc.INVALID_ARGUMENT, "column reference %s not allowed here", v.Field)
		}
		return scope.resolve(v.Table, v.Field)
	case *sqlast.UnaryOp:
		child, err := bindExpr(v.Expr, scope)
		if err != nil {
			return nil, err
		}
		switch v.Op {
		case "-":
			return expr.NewArithmetic(expr.NEG, child, nil), nil
		case "NOT":
			return negate(child), nil
		default:
			return nil, rc.Errorf(rc.SQL_SYNTAX, "unknown unary operator %s", v.Op)
		}
	case *sqlast.IsNullPred:
		child, err := bindExpr(v.Expr, scope)
		if err != nil {
			return nil, err
		}
		cmp := expr.NewComparison(expr.EQ, child, expr.NewValue(sqltype.Undefined()))
		if v.Negate {
			return expr.NewComparison(expr.NE, child, expr.NewValue(sqltype.Undefined())), nil
		}
		return cmp, nil
	case *sqlast.FuncCall:
		return bindFuncCall(v, scope)
	case *sqlast.BinaryOp:
		return bindBinaryOp(v, scope)
	case *sqlast.Star:
		return &expr.Star{Table: v.Table}, nil
	default:
		return nil, rc.Errorf(rc.UNIMPLEMENTED, "unsupported expression node %T", e)
	}
}

func negate(e expr.Expression) expr.Expression {
	if c, ok := e.(*expr.Comparison); ok {
		return expr.NewComparison(negatedOp(c.Op), c.Left, c.Right)
	}
	return expr.NewComparison(expr.EQ, e, expr.NewValue(sqltype.NewBool(false)))
}

func negatedOp(op expr.ComparisonOp) expr.ComparisonOp {
	switch op {
	case expr.EQ:
		return expr.NE
	case expr.NE:
		return expr.EQ
	case expr.LT:
		return expr.GE
	case expr.LE:
		return expr.GT
	case expr.GT:
		return expr.LE
	case expr.GE:
		return expr.LT
	default:
		return op
	}
}

func bindFuncCall(v *sqlast.FuncCall, scope *bindScope) (expr.Expression, error) {
	kind, ok := aggFuncNames[v.Name]
	if !ok {
		return nil, rc.Errorf(rc.UNSUPPORTED, "unknown function %s", v.Name)
	}
	var child expr.Expression
	if v.Star {
		child = expr.NewValue(sqltype.NewInt(1))
	} else {
		if len(v.Args) != 1 {
			return nil, rc.Errorf(rc.INVALID_ARGUMENT, "%s takes exactly one argument", v.Name)
		}
		bound, err := bindExpr(v.Args[0], scope)
		if err != nil {
			return nil, err
		}
		child = bound
	}
	if _, err := expr.NewAggregator(kind, child.ValueType()); err != nil && child.ValueType() != sqltype.UNDEFINED {
		return nil, err
	}
	return expr.NewAggregation(kind, child), nil
}

func bindBinaryOp(v *sqlast.BinaryOp, scope *bindScope) (expr.Expression, error) {
	switch v.Op {
	case "AND", "OR":
		left, err := bindExpr(v.Left, scope)
		if err != nil {
			return nil, err
		}
		right, err := bindExpr(v.Right, scope)
		if err != nil {
			return nil, err
		}
		kind := expr.AND
		if v.Op == "OR" {
			kind = expr.OR
		}
		return flattenConjunction(kind, left, right), nil
	case "=", "<>", "<", "<=", ">", ">=":
		left, err := bindExpr(v.Left, scope)
		if err != nil {
			return nil, err
		}
		right, err := bindExpr(v.Right, scope)
		if err != nil {
			return nil, err
		}
		left, right, err = coerce(left, right)
		if err != nil {
			return nil, err
		}
		return expr.NewComparison(comparisonOp(v.Op), left, right), nil
	case "+", "-", "*", "/":
		left, err := bindExpr(v.Left, scope)
		if err != nil {
			return nil, err
		}
		right, err := bindExpr(v.Right, scope)
		if err != nil {
			return nil, err
		}
		return expr.NewArithmetic(arithOp(v.Op), left, right), nil
	default:
		return nil, rc.Errorf(rc.SQL_SYNTAX, "unknown operator %s", v.Op)
	}
}

// flattenConjunction merges a Conjunction child of the same kind into
// its parent rather than nesting, so the rewriter's simplification
// pass (rewrite.go) sees one flat Conjunction per polarity, matching
// spec.md §4.7 rule 2's "collapse single-child conjunctions" intent.
func flattenConjunction(kind expr.ConjunctionKind, sides ...expr.Expression) expr.Expression {
	var children []expr.Expression
	for _, s := range sides {
		if c, ok := s.(*expr.Conjunction); ok && c.Kind == kind {
			children = append(children, c.Children...)
			continue
		}
		children = append(children, s)
	}
	return expr.NewConjunction(kind, children...)
}

func comparisonOp(op string) expr.ComparisonOp {
	switch op {
	case "=":
		return expr.EQ
	case "<>":
		return expr.NE
	case "<":
		return expr.LT
	case "<=":
		return expr.LE
	case ">":
		return expr.GT
	case ">=":
		return expr.GE
	default:
		return expr.EQ
	}
}

func arithOp(op string) expr.ArithOp {
	switch op {
	case "+":
		return expr.ADD
	case "-":
		return expr.SUB
	case "*":
		return expr.MUL
	default:
		return expr.DIV
	}
}

// coerce implements spec.md §4.7's comparison type-coercion rule:
// "if left and right types differ, choose the cheaper cast direction;
// if the target-side expression is a Value, the cast is performed
// eagerly at bind time".
func coerce(left, right expr.Expression) (expr.Expression, expr.Expression, error) {
	lk, rk := left.ValueType(), right.ValueType()
	if lk == rk || lk == sqltype.UNDEFINED || rk == sqltype.UNDEFINED {
		return left, right, nil
	}
	costLtoR := sqltype.CastCost(lk, rk)
	costRtoL := sqltype.CastCost(rk, lk)
	if costLtoR <= costRtoL {
		return castSide(left, rk), right, nil
	}
	return left, castSide(right, lk), nil
}

// castSide wraps e in a Cast to target, folding eagerly into a
// ValueExpr when e is already constant.
func castSide(e expr.Expression, target sqltype.Kind) expr.Expression {
	if v, ok := e.TryGetValue(); ok {
		if cast, err := sqltype.Cast(v, target); err == nil {
			return expr.NewValue(cast)
		}
	}
	return expr.NewCast(e, target)
}

func literalValue(v any) sqltype.Value {
	switch x := v.(type) {
	case int64:
		return sqltype.NewInt(x)
	case int:
		return sqltype.NewInt(int64(x))
	case float64:
		return sqltype.NewFloat(x)
	case bool:
		return sqltype.NewBool(x)
	case string:
		return sqltype.NewChars(x)
	default:
		return sqltype.Undefined()
	}
}
