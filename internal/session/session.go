// Session ties the binder/rewriter/physical planner/executor pipeline
// together behind one Session.Execute call (spec.md §6/§9), the
// counterpart to tinySQL's cmd/server/main.go server.Exec/Query RPC
// handlers but operating on already-parsed sqlast.Statement trees
// instead of raw SQL text.
//
// Grounded on tinySQL's internal/engine/compile.go+exec.go call chain
// (parse -> compile -> executor.Exec), redesigned around spec.md §9's
// explicit per-session transaction handle instead of tinySQL's
// connection-scoped *storage.DB.
package session

import (
	"errors"
	"fmt"
	"os"

	"github.com/xzxg001/miniob-sub000/internal/dbms"
	"github.com/xzxg001/miniob-sub000/internal/exec"
	"github.com/xzxg001/miniob-sub000/internal/netproto"
	"github.com/xzxg001/miniob-sub000/internal/plan"
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/sqlast"
	"github.com/xzxg001/miniob-sub000/internal/sqltype"
	"github.com/xzxg001/miniob-sub000/internal/table"
	"github.com/xzxg001/miniob-sub000/internal/trxmgr"
	"github.com/xzxg001/miniob-sub000/internal/tuple"
)

// Result is one statement's rendered output: a column header (absent
// for DDL/status-only statements), the rendered row text, and any debug
// lines collected while sql_debug was enabled.
type Result struct {
	Columns []string
	Rows    [][]string
	Debug   []string
	Status  string
}

// Response converts r into the wire shape internal/netproto's listener
// contract expects.
func (r *Result) Response() *netproto.Response {
	return &netproto.Response{Columns: r.Columns, Rows: r.Rows, Debug: r.Debug, Status: r.Status}
}

// Session is one client connection's state: the live database, its
// shared bring-up env, session variables, debug sink, and the current
// explicit transaction (nil when none is open).
type Session struct {
	Db   *dbms.Db
	Env  *dbms.Env
	Vars *Vars
	Log  *DebugLog

	trx      *trxmgr.MvccTrx
	explicit bool
}

// New builds a Session over an already-opened database.
func New(db *dbms.Db, env *dbms.Env) *Session {
	s := &Session{Db: db, Env: env, Vars: NewVars()}
	s.Log = NewDebugLog(func() bool { return s.Vars.SQLDebug })
	return s
}

// beginImplicit opens an auto-commit transaction for a single statement
// when the session is not already inside an explicit BEGIN/COMMIT block
// (spec.md §9: "open starts the transaction if needed").
func (s *Session) beginImplicit() *trxmgr.MvccTrx {
	if s.explicit {
		return s.trx
	}
	return s.Env.TrxMgr.Begin()
}

// endImplicit commits (or rolls back, on execErr != nil) the
// transaction opened by beginImplicit, iff the session is not in an
// explicit multi-statement transaction (spec.md §9: "close commits (or
// rolls back on error) iff the session is not in multi-statement
// transaction mode").
func (s *Session) endImplicit(trx *trxmgr.MvccTrx, execErr error) error {
	if s.explicit {
		return execErr
	}
	if execErr != nil {
		if rbErr := s.Env.TrxMgr.Rollback(trx); rbErr != nil {
			s.Log.Logf("rollback after error failed: %v", rbErr)
		}
		return execErr
	}
	if _, err := s.Env.TrxMgr.Commit(trx); err != nil {
		return err
	}
	return nil
}

// Execute dispatches stmt to the right handling path, following
// spec.md §6's statement surface: the binder only covers
// SELECT/INSERT/DELETE, every other statement kind is handled here
// directly against s.Db / s.Env (bind.go's doc comment states this
// split explicitly).
func (s *Session) Execute(stmt sqlast.Statement) (*Result, error) {
	switch st := stmt.(type) {
	case *sqlast.BeginStmt:
		return s.execBegin()
	case *sqlast.CommitStmt:
		return s.execCommit()
	case *sqlast.RollbackStmt:
		return s.execRollback()
	case *sqlast.CreateTableStmt:
		return s.execCreateTable(st)
	case *sqlast.DropTableStmt:
		return s.execDropTable(st)
	case *sqlast.CreateIndexStmt:
		return s.execCreateIndex(st)
	case *sqlast.SetVariableStmt:
		return s.execSetVariable(st)
	case *sqlast.ShowTablesStmt:
		return s.execShowTables()
	case *sqlast.DescTableStmt:
		return s.execDescTable(st)
	case *sqlast.HelpStmt:
		return s.execHelp()
	case *sqlast.LoadDataStmt:
		return s.execLoadData(st)
	case *sqlast.ExplainStmt:
		return s.execExplain(st)
	case *sqlast.SelectStmt, *sqlast.InsertStmt, *sqlast.DeleteStmt:
		return s.execPlanned(stmt)
	default:
		return nil, rc.Errorf(rc.UNIMPLEMENTED, "statement type %T not supported", stmt)
	}
}

func (s *Session) execBegin() (*Result, error) {
	if s.explicit {
		return nil, rc.Errorf(rc.INVALID_ARGUMENT, "a transaction is already open")
	}
	s.trx = s.Env.TrxMgr.Begin()
	s.explicit = true
	return statusResult(s, nil), nil
}

func (s *Session) execCommit() (*Result, error) {
	if !s.explicit || s.trx == nil {
		return nil, rc.Errorf(rc.INVALID_ARGUMENT, "no transaction is open")
	}
	_, err := s.Env.TrxMgr.Commit(s.trx)
	s.trx = nil
	s.explicit = false
	return statusResult(s, err), err
}

func (s *Session) execRollback() (*Result, error) {
	if !s.explicit || s.trx == nil {
		return nil, rc.Errorf(rc.INVALID_ARGUMENT, "no transaction is open")
	}
	err := s.Env.TrxMgr.Rollback(s.trx)
	s.trx = nil
	s.explicit = false
	return statusResult(s, err), err
}

func (s *Session) execCreateTable(st *sqlast.CreateTableStmt) (*Result, error) {
	fields := make([]table.FieldMeta, len(st.Cols))
	for i, c := range st.Cols {
		kind, err := sqltype.KindFromName(c.Kind)
		if err != nil {
			return nil, err
		}
		fields[i] = table.FieldMeta{Name: c.Name, Kind: kind, Width: c.Width}
	}
	_, err := dbms.CreateTableOnDisk(s.Db, s.Env, st.Table, fields, table.RowFormat)
	return statusResult(s, err), err
}

func (s *Session) execDropTable(st *sqlast.DropTableStmt) (*Result, error) {
	err := s.Db.DropTable(st.Table)
	return statusResult(s, err), err
}

func (s *Session) execCreateIndex(st *sqlast.CreateIndexStmt) (*Result, error) {
	t, err := s.Db.Table(st.Table)
	if err != nil {
		return nil, err
	}
	err = dbms.CreateIndexOnDisk(s.Db, s.Env, t, st.Field)
	return statusResult(s, err), err
}

func (s *Session) execSetVariable(st *sqlast.SetVariableStmt) (*Result, error) {
	err := s.Vars.Set(st.Name, st.Value)
	return statusResult(s, err), err
}

func (s *Session) execShowTables() (*Result, error) {
	names := s.Db.ListTables()
	rows := make([][]string, len(names))
	for i, n := range names {
		rows[i] = []string{n}
	}
	return &Result{Columns: []string{"Tables"}, Rows: rows, Debug: s.Log.Lines(), Status: rc.StatusLine(rc.SUCCESS, "")}, nil
}

func (s *Session) execDescTable(st *sqlast.DescTableStmt) (*Result, error) {
	t, err := s.Db.Table(st.Table)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(t.Meta.Fields))
	for i, f := range t.Meta.Fields {
		width := f.Width
		rows[i] = []string{f.Name, f.Kind.String(), fmt.Sprintf("%d", width)}
	}
	return &Result{Columns: []string{"Field", "Type", "Width"}, Rows: rows, Debug: s.Log.Lines(), Status: rc.StatusLine(rc.SUCCESS, "")}, nil
}

func (s *Session) execHelp() (*Result, error) {
	lines := []string{
		"CREATE TABLE name (col kind, ...)",
		"DROP TABLE name",
		"CREATE INDEX ON table(field)",
		"INSERT INTO table VALUES (...)",
		"DELETE FROM table [WHERE ...]",
		"SELECT ... FROM table [WHERE ...] [GROUP BY ...]",
		"BEGIN / COMMIT / ROLLBACK",
		"SET VARIABLE name = value",
		"SHOW TABLES / DESC table",
		"LOAD DATA INFILE 'path' INTO TABLE table",
		"EXPLAIN <statement>",
	}
	rows := make([][]string, len(lines))
	for i, l := range lines {
		rows[i] = []string{l}
	}
	return &Result{Columns: []string{"Command"}, Rows: rows, Debug: s.Log.Lines(), Status: rc.StatusLine(rc.SUCCESS, "")}, nil
}

func (s *Session) execLoadData(st *sqlast.LoadDataStmt) (*Result, error) {
	t, err := s.Db.Table(st.Table)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(st.Path)
	if err != nil {
		return nil, rc.Errorf(rc.IOERR_ACCESS, "load data: %v", err)
	}
	defer f.Close()

	trx := s.beginImplicit()
	ld := exec.NewLoadData(s.Env.TrxMgr, t, f)
	err = drainRows(ld, trx, nil, nil)
	err = s.endImplicit(trx, err)
	return statusResult(s, err), err
}

// execExplain binds the inner statement, wraps it in an LExplain node,
// and physicalizes that — the physical planner's own LExplain case
// lowers straight to an exec.Explain operator over the inner plan's
// PlanDesc, so the inner statement is never actually driven (spec.md
// §4.8/§8 S6: EXPLAIN renders the plan shape, it does not execute it).
func (s *Session) execExplain(st *sqlast.ExplainStmt) (*Result, error) {
	inner, err := plan.Bind(s.Db, st.Inner)
	if err != nil {
		return nil, err
	}
	root := plan.Rewrite(&plan.Node{Kind: plan.LExplain, Children: []*plan.Node{inner}})
	op, _, err := plan.Physicalize(s.Db, s.Env.TrxMgr, root)
	if err != nil {
		return nil, err
	}
	trx := s.beginImplicit()
	var cols []string
	var rows [][]string
	err = drainRows(op, trx, &cols, &rows)
	err = s.endImplicit(trx, err)
	return &Result{Columns: cols, Rows: rows, Debug: s.Log.Lines(), Status: rc.StatusLine(errCode(err), errMsg(err))}, err
}

// execPlanned drives SELECT/INSERT/DELETE through the full
// bind->rewrite->physicalize pipeline, preferring the chunked path when
// the session's execution_mode requests it and the whole tree
// vectorizes (spec.md §4.8/§6).
func (s *Session) execPlanned(stmt sqlast.Statement) (*Result, error) {
	root, err := plan.Bind(s.Db, stmt)
	if err != nil {
		return nil, err
	}
	root = plan.Rewrite(root)
	s.Log.Logf("plan: %s", root.String())

	trx := s.beginImplicit()

	if s.Vars.ExecutionMode == ChunkIterator {
		if chunkOp, _, ok, err := plan.PhysicalizeVec(s.Db, s.Env.TrxMgr, root); err != nil {
			err = s.endImplicit(trx, err)
			return nil, err
		} else if ok {
			var cols []string
			var rows [][]string
			err := drainChunks(chunkOp, trx, &cols, &rows)
			err = s.endImplicit(trx, err)
			return &Result{Columns: cols, Rows: rows, Debug: s.Log.Lines(), Status: rc.StatusLine(errCode(err), errMsg(err))}, err
		}
	}

	op, _, err := plan.Physicalize(s.Db, s.Env.TrxMgr, root)
	if err != nil {
		err = s.endImplicit(trx, err)
		return nil, err
	}
	var cols []string
	var rows [][]string
	err = drainRows(op, trx, &cols, &rows)
	err = s.endImplicit(trx, err)
	return &Result{Columns: cols, Rows: rows, Debug: s.Log.Lines(), Status: rc.StatusLine(errCode(err), errMsg(err))}, err
}

// drainRows pulls every row from op until EOF, capturing the output
// column header from the first row and appending each row's rendered
// text form to *rows (when non-nil).
func drainRows(op exec.RowOperator, trx *trxmgr.MvccTrx, cols *[]string, rows *[][]string) error {
	if err := op.Open(trx); err != nil {
		return err
	}
	defer op.Close()
	for {
		err := op.Next()
		if err == rc.RECORD_EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if rows == nil {
			continue
		}
		cur := op.Current()
		if cur == nil {
			continue
		}
		if cols != nil && *cols == nil {
			*cols = headerFromTuple(cur)
		}
		*rows = append(*rows, renderTuple(cur))
	}
}

func drainChunks(op exec.ChunkOperator, trx *trxmgr.MvccTrx, cols *[]string, rows *[][]string) error {
	if err := op.Open(trx); err != nil {
		return err
	}
	defer op.Close()
	chunk := exec.NewChunk(plan.ChunkCapacity)
	for {
		chunk.Reset()
		err := op.Next(chunk)
		if err != nil && err != rc.RECORD_EOF {
			return err
		}
		for i, t := range chunk.Tuples {
			if i >= len(chunk.Select) || chunk.Select[i] {
				if *cols == nil {
					*cols = headerFromTuple(t)
				}
				*rows = append(*rows, renderTuple(t))
			}
		}
		if err == rc.RECORD_EOF {
			return nil
		}
	}
}

func headerFromTuple(t tuple.Tuple) []string {
	cols := make([]string, t.Len())
	for i := 0; i < t.Len(); i++ {
		cols[i] = t.CellSpec(i).Name()
	}
	return cols
}

func renderTuple(t tuple.Tuple) []string {
	row := make([]string, t.Len())
	for i := 0; i < t.Len(); i++ {
		v, err := t.Cell(i)
		if err != nil {
			row[i] = "?"
			continue
		}
		row[i] = v.ToString()
	}
	return row
}

func statusResult(s *Session, err error) *Result {
	return &Result{Debug: s.Log.Lines(), Status: rc.StatusLine(errCode(err), errMsg(err))}
}

func errCode(err error) rc.RC {
	if err == nil {
		return rc.SUCCESS
	}
	var code rc.RC
	if errors.As(err, &code) {
		return code
	}
	return rc.INTERNAL
}

func errMsg(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
