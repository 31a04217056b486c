package trxmgr

import (
	"path/filepath"
	"testing"

	"github.com/xzxg001/miniob-sub000/internal/dwb"
	"github.com/xzxg001/miniob-sub000/internal/pager"
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/record"
	"github.com/xzxg001/miniob-sub000/internal/walog"
)

func newTestEnv(t *testing.T) (*Manager, *Table) {
	t.Helper()
	dir := t.TempDir()
	fm := pager.NewFrameManager(64)
	log, err := walog.Open(filepath.Join(dir, "wal.log"))
	if err != nil {
		t.Fatalf("walog.Open: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	dw, err := dwb.Open(filepath.Join(dir, "dwb.dat"), pager.PageSize, 16)
	if err != nil {
		t.Fatalf("dwb.Open: %v", err)
	}
	t.Cleanup(func() { dw.Close() })

	pool, err := pager.OpenFile(filepath.Join(dir, "t.dat"), fm, log, dw)
	if err != nil {
		t.Fatalf("pager.OpenFile: %v", err)
	}
	t.Cleanup(func() { pool.CloseFile() })

	mgr := NewManager(walog.NewMvccTrxLogHandler(log))
	tbl := &Table{ID: 1, Records: record.NewManager(pool, record.HiddenFieldsSize+8)}
	return mgr, tbl
}

func TestInsertIsInvisibleToOtherTransactionsBeforeCommit(t *testing.T) {
	mgr, tbl := newTestEnv(t)

	writer := mgr.Begin()
	rid, err := mgr.Insert(writer, tbl, []byte("12345678"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	reader := mgr.Begin()
	err = mgr.visit(reader.TrxID(), tbl, rid, ReadOnly)
	if err != rc.RECORD_INVISIBLE {
		t.Fatalf("visit by other trx before commit = %v, want RECORD_INVISIBLE", err)
	}

	// The writer itself must see its own uncommitted insert.
	if err := mgr.visit(writer.TrxID(), tbl, rid, ReadOnly); err != nil {
		t.Fatalf("visit by owning trx before commit: %v", err)
	}

	if _, err := mgr.Commit(writer); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	// Commit mints a commit xid above reader's id, so the committed row is
	// checked through a transaction begun after the commit.
	laterReader := mgr.Begin()
	if err := mgr.visit(laterReader.TrxID(), tbl, rid, ReadOnly); err != nil {
		t.Fatalf("visit after commit: %v", err)
	}
}

func TestInsertRollbackRemovesRow(t *testing.T) {
	mgr, tbl := newTestEnv(t)

	trx := mgr.Begin()
	rid, err := mgr.Insert(trx, tbl, []byte("abcdefgh"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mgr.Rollback(trx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if _, err := tbl.Records.GetRecord(rid); err != rc.RECORD_NOT_EXIST {
		t.Fatalf("GetRecord after rollback = %v, want RECORD_NOT_EXIST", err)
	}
}

func TestDeleteThenCommitHidesRowFromLaterReaders(t *testing.T) {
	mgr, tbl := newTestEnv(t)

	setup := mgr.Begin()
	rid, err := mgr.Insert(setup, tbl, []byte("rowrowro"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := mgr.Commit(setup); err != nil {
		t.Fatalf("Commit(setup): %v", err)
	}

	deleter := mgr.Begin()
	if err := mgr.Delete(deleter, tbl, rid); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	concurrentReader := mgr.Begin()
	if err := mgr.visit(concurrentReader.TrxID(), tbl, rid, ReadOnly); err != nil {
		t.Fatalf("concurrent reader should still see the row before the deleter commits: %v", err)
	}

	if _, err := mgr.Commit(deleter); err != nil {
		t.Fatalf("Commit(deleter): %v", err)
	}

	laterReader := mgr.Begin()
	err = mgr.visit(laterReader.TrxID(), tbl, rid, ReadOnly)
	if err != rc.RECORD_INVISIBLE {
		t.Fatalf("visit after committed delete = %v, want RECORD_INVISIBLE", err)
	}
}

func TestDeleteRollbackRestoresVisibility(t *testing.T) {
	mgr, tbl := newTestEnv(t)

	setup := mgr.Begin()
	rid, err := mgr.Insert(setup, tbl, []byte("rowrowro"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := mgr.Commit(setup); err != nil {
		t.Fatalf("Commit(setup): %v", err)
	}

	deleter := mgr.Begin()
	if err := mgr.Delete(deleter, tbl, rid); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mgr.Rollback(deleter); err != nil {
		t.Fatalf("Rollback(deleter): %v", err)
	}

	reader := mgr.Begin()
	if err := mgr.visit(reader.TrxID(), tbl, rid, ReadOnly); err != nil {
		t.Fatalf("visit after rolled-back delete: %v", err)
	}
}

func TestConcurrentDeleteConflict(t *testing.T) {
	mgr, tbl := newTestEnv(t)

	setup := mgr.Begin()
	rid, err := mgr.Insert(setup, tbl, []byte("rowrowro"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := mgr.Commit(setup); err != nil {
		t.Fatalf("Commit(setup): %v", err)
	}

	deleterA := mgr.Begin()
	if err := mgr.Delete(deleterA, tbl, rid); err != nil {
		t.Fatalf("Delete(A): %v", err)
	}

	deleterB := mgr.Begin()
	err = mgr.Delete(deleterB, tbl, rid)
	if err != rc.LOCKED_CONCURRENCY_CONFLICT {
		t.Fatalf("second concurrent delete = %v, want LOCKED_CONCURRENCY_CONFLICT", err)
	}
}

func TestCommitOnUnstartedTransactionFails(t *testing.T) {
	mgr, _ := newTestEnv(t)
	trx := mgr.Begin()
	if _, err := mgr.Commit(trx); err != nil {
		t.Fatalf("first Commit: %v", err)
	}
	if _, err := mgr.Commit(trx); err == nil {
		t.Fatal("expected error committing an already-finished transaction")
	}
}

func TestVisibilityHelperMatchesDirectVisitForReadOnly(t *testing.T) {
	mgr, tbl := newTestEnv(t)

	setup := mgr.Begin()
	rid, err := mgr.Insert(setup, tbl, []byte("rowrowro"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := mgr.Commit(setup); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reader := mgr.Begin()
	data, err := tbl.Records.GetRecord(rid)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	b, e := record.DecodeHiddenFields(data)
	vf := mgr.Visibility(reader.TrxID(), ReadOnly)
	if err := vf(b, e); err != nil {
		t.Fatalf("Visibility func: %v", err)
	}
}
