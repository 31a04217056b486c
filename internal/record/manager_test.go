package record

import (
	"path/filepath"
	"testing"

	"github.com/xzxg001/miniob-sub000/internal/dwb"
	"github.com/xzxg001/miniob-sub000/internal/pager"
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/walog"
)

func newTestManager(t *testing.T) *Manager {
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

	return NewManager(pool, 16)
}

func rec(beginXID, endXID int32, payload string) []byte {
	buf := make([]byte, 16)
	EncodeHiddenFields(buf, beginXID, endXID)
	copy(buf[HiddenFieldsSize:], payload)
	return buf
}

func TestInsertGetDeleteRoundTrip(t *testing.T) {
	m := newTestManager(t)

	rid, err := m.InsertRecord(rec(1, 0, "hello"))
	if err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	got, err := m.GetRecord(rid)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	begin, end := DecodeHiddenFields(got)
	if begin != 1 || end != 0 {
		t.Fatalf("hidden fields = (%d,%d), want (1,0)", begin, end)
	}
	if string(got[HiddenFieldsSize:HiddenFieldsSize+5]) != "hello" {
		t.Fatalf("payload = %q, want %q", got[HiddenFieldsSize:], "hello")
	}

	if err := m.DeleteRecord(rid); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if _, err := m.GetRecord(rid); err != rc.RECORD_NOT_EXIST {
		t.Fatalf("GetRecord after delete = %v, want RECORD_NOT_EXIST", err)
	}
}

func TestInsertRejectsWrongRecordSize(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.InsertRecord([]byte("too short")); err == nil {
		t.Fatal("expected error for record size mismatch")
	}
}

func TestDeleteMissingSlotFails(t *testing.T) {
	m := newTestManager(t)
	rid, err := m.InsertRecord(rec(1, 0, "x"))
	if err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	if err := m.DeleteRecord(rid); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if err := m.DeleteRecord(rid); err != rc.RECORD_NOT_EXIST {
		t.Fatalf("second DeleteRecord = %v, want RECORD_NOT_EXIST", err)
	}
}

func TestInsertReusesFreedSlot(t *testing.T) {
	m := newTestManager(t)
	rid1, err := m.InsertRecord(rec(1, 0, "a"))
	if err != nil {
		t.Fatalf("InsertRecord 1: %v", err)
	}
	if err := m.DeleteRecord(rid1); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	rid2, err := m.InsertRecord(rec(2, 0, "b"))
	if err != nil {
		t.Fatalf("InsertRecord 2: %v", err)
	}
	if rid2.PageNum != rid1.PageNum || rid2.SlotNum != rid1.SlotNum {
		t.Fatalf("expected freed slot %v to be reused, got %v", rid1, rid2)
	}
	if len(m.DataPages()) != 1 {
		t.Fatalf("expected a single data page, got %d", len(m.DataPages()))
	}
}

func TestVisitRecordMutatesInPlace(t *testing.T) {
	m := newTestManager(t)
	rid, err := m.InsertRecord(rec(1, 0, "orig"))
	if err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	err = m.VisitRecord(rid, func(data []byte) bool {
		EncodeHiddenFields(data, 1, 5)
		return true
	})
	if err != nil {
		t.Fatalf("VisitRecord: %v", err)
	}

	got, err := m.GetRecord(rid)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	begin, end := DecodeHiddenFields(got)
	if begin != 1 || end != 5 {
		t.Fatalf("hidden fields after VisitRecord = (%d,%d), want (1,5)", begin, end)
	}
}

func TestRowScannerSkipsInvisibleAndDeleted(t *testing.T) {
	m := newTestManager(t)
	visibleRID, err := m.InsertRecord(rec(1, 0, "keep"))
	if err != nil {
		t.Fatalf("InsertRecord visible: %v", err)
	}
	invisibleRID, err := m.InsertRecord(rec(5, 0, "future"))
	if err != nil {
		t.Fatalf("InsertRecord invisible: %v", err)
	}
	deletedRID, err := m.InsertRecord(rec(1, 0, "gone"))
	if err != nil {
		t.Fatalf("InsertRecord deleted: %v", err)
	}
	if err := m.DeleteRecord(deletedRID); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}

	visible := func(beginXID, endXID int32) error {
		if beginXID > 2 {
			return rc.RECORD_INVISIBLE
		}
		return nil
	}

	scanner := m.OpenRowScanner(visible)
	defer scanner.Close()

	var seen []RID
	for {
		err := scanner.Next()
		if err == rc.RECORD_EOF {
			break
		}
		if err != nil {
			t.Fatalf("scanner.Next: %v", err)
		}
		_, rid := scanner.Current()
		seen = append(seen, rid)
	}

	if len(seen) != 1 || seen[0] != visibleRID {
		t.Fatalf("expected only %v visible, got %v (invisible=%v deleted=%v)", visibleRID, seen, invisibleRID, deletedRID)
	}
}

func TestChunkScannerFillsAcrossCapacity(t *testing.T) {
	m := newTestManager(t)
	const n = 10
	for i := 0; i < n; i++ {
		if _, err := m.InsertRecord(rec(1, 0, "x")); err != nil {
			t.Fatalf("InsertRecord %d: %v", i, err)
		}
	}

	cs := m.OpenChunkScanner(nil, 4)
	defer cs.Close()

	total := 0
	for {
		chunk := NewChunk(4)
		err := cs.NextChunk(chunk)
		total += chunk.Len()
		if err == rc.RECORD_EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextChunk: %v", err)
		}
		if chunk.Len() == 0 {
			t.Fatal("non-EOF NextChunk returned an empty chunk")
		}
	}
	if total != n {
		t.Fatalf("chunk scanner visited %d rows, want %d", total, n)
	}
}

func TestChunkScannerEmptyTableReturnsEOFImmediately(t *testing.T) {
	m := newTestManager(t)
	cs := m.OpenChunkScanner(nil, 8)
	defer cs.Close()

	chunk := NewChunk(8)
	if err := cs.NextChunk(chunk); err != rc.RECORD_EOF {
		t.Fatalf("NextChunk on empty table = %v, want RECORD_EOF", err)
	}
	if chunk.Len() != 0 {
		t.Fatalf("expected empty chunk, got %d rows", chunk.Len())
	}
}

func TestRegisterDataPageExposesExternallyAllocatedPage(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.InsertRecord(rec(1, 0, "a")); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	before := len(m.DataPages())
	m.RegisterDataPage(pager.PageNum(9999))
	if len(m.DataPages()) != before+1 {
		t.Fatalf("DataPages len = %d, want %d", len(m.DataPages()), before+1)
	}
}

// TestRebuildRestoresDataPagesAfterReopen simulates what dbms.attachCatalogEntry
// does on restart: a second Manager wraps the same already-populated pool
// with an empty dataPages list, and Rebuild must walk the file and
// rediscover every record page so a full scan sees the committed rows
// again (spec.md §8 invariant #6).
func TestRebuildRestoresDataPagesAfterReopen(t *testing.T) {
	dir := t.TempDir()
	fm := pager.NewFrameManager(64)
	log, err := walog.Open(filepath.Join(dir, "wal.log"))
	if err != nil {
		t.Fatalf("walog.Open: %v", err)
	}
	defer log.Close()
	dw, err := dwb.Open(filepath.Join(dir, "dwb.dat"), pager.PageSize, 16)
	if err != nil {
		t.Fatalf("dwb.Open: %v", err)
	}
	defer dw.Close()
	pool, err := pager.OpenFile(filepath.Join(dir, "t.dat"), fm, log, dw)
	if err != nil {
		t.Fatalf("pager.OpenFile: %v", err)
	}
	defer pool.CloseFile()

	m1 := NewManager(pool, 16)
	const n = 40
	for i := 0; i < n; i++ {
		if _, err := m1.InsertRecord(rec(1, 0, "x")); err != nil {
			t.Fatalf("InsertRecord %d: %v", i, err)
		}
	}
	if len(m1.DataPages()) == 0 {
		t.Fatal("expected at least one data page after inserts")
	}

	m2 := NewManager(pool, 16)
	if len(m2.DataPages()) != 0 {
		t.Fatal("fresh manager should start with no known data pages")
	}
	if err := m2.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if len(m2.DataPages()) != len(m1.DataPages()) {
		t.Fatalf("Rebuild found %d data pages, want %d", len(m2.DataPages()), len(m1.DataPages()))
	}

	cs := m2.OpenRowScanner(nil)
	defer cs.Close()
	count := 0
	for {
		err := cs.Next()
		if err == rc.RECORD_EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		count++
	}
	if count != n {
		t.Fatalf("rebuilt scan visited %d rows, want %d", count, n)
	}
}
