package pager

import (
	"path/filepath"
	"testing"

	"github.com/xzxg001/miniob-sub000/internal/dwb"
	"github.com/xzxg001/miniob-sub000/internal/walog"
)

func newTestEnv(t *testing.T) (*FrameManager, *walog.Handler, *dwb.Buffer) {
	t.Helper()
	dir := t.TempDir()
	fm := NewFrameManager(64)
	log, err := walog.Open(filepath.Join(dir, "wal.log"))
	if err != nil {
		t.Fatalf("walog.Open: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	dw, err := dwb.Open(filepath.Join(dir, "dwb.dat"), PageSize, 16)
	if err != nil {
		t.Fatalf("dwb.Open: %v", err)
	}
	t.Cleanup(func() { dw.Close() })
	return fm, log, dw
}

func TestPoolAllocateWriteFlushReload(t *testing.T) {
	dir := t.TempDir()
	fm, log, dw := newTestEnv(t)
	dataPath := filepath.Join(dir, "t.dat")

	pool, err := OpenFile(dataPath, fm, log, dw)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	frame, err := pool.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	pageNum := frame.PageNum()
	copy(frame.Page().Data[:5], []byte("hello"))
	frame.MarkDirty()
	pool.UnpinPage(frame)

	if err := pool.FlushAllPages(); err != nil {
		t.Fatalf("FlushAllPages: %v", err)
	}
	if err := pool.CloseFile(); err != nil {
		t.Fatalf("CloseFile: %v", err)
	}

	fm2, log2, dw2 := newTestEnv(t)
	pool2, err := OpenFile(dataPath, fm2, log2, dw2)
	if err != nil {
		t.Fatalf("reopen OpenFile: %v", err)
	}
	defer pool2.CloseFile()

	reloaded, err := pool2.GetPage(pageNum)
	if err != nil {
		t.Fatalf("GetPage after reopen: %v", err)
	}
	if got := string(reloaded.Page().Data[:5]); got != "hello" {
		t.Fatalf("reloaded page data = %q, want %q", got, "hello")
	}
	pool2.UnpinPage(reloaded)
}

func TestPoolDisposeRejectsPageZero(t *testing.T) {
	dir := t.TempDir()
	fm, log, dw := newTestEnv(t)
	pool, err := OpenFile(filepath.Join(dir, "t.dat"), fm, log, dw)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer pool.CloseFile()

	if err := pool.DisposePage(0); err == nil {
		t.Fatal("expected error disposing page 0")
	}
}

func TestPoolDisposeRejectsPinnedPage(t *testing.T) {
	dir := t.TempDir()
	fm, log, dw := newTestEnv(t)
	pool, err := OpenFile(filepath.Join(dir, "t.dat"), fm, log, dw)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer pool.CloseFile()

	frame, err := pool.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if err := pool.DisposePage(frame.PageNum()); err == nil {
		t.Fatal("expected error disposing a still-pinned page")
	}
	pool.UnpinPage(frame)
	if err := pool.DisposePage(frame.PageNum()); err != nil {
		t.Fatalf("DisposePage after unpin: %v", err)
	}
}

func TestPoolPageCountAndAllocatedPagesTrackAllocations(t *testing.T) {
	dir := t.TempDir()
	fm, log, dw := newTestEnv(t)
	pool, err := OpenFile(filepath.Join(dir, "t.dat"), fm, log, dw)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer pool.CloseFile()

	before := pool.AllocatedPages()
	frame, err := pool.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	pool.UnpinPage(frame)
	if pool.AllocatedPages() != before+1 {
		t.Fatalf("AllocatedPages = %d, want %d", pool.AllocatedPages(), before+1)
	}
}

func TestFrameManagerEvictsAcrossPoolsWhenFull(t *testing.T) {
	dir := t.TempDir()
	// Capacity tight enough that opening a second pool's header page
	// forces eviction of the first pool's unpinned data page.
	fm := NewFrameManager(3)
	log, err := walog.Open(filepath.Join(dir, "wal.log"))
	if err != nil {
		t.Fatalf("walog.Open: %v", err)
	}
	defer log.Close()
	dw, err := dwb.Open(filepath.Join(dir, "dwb.dat"), PageSize, 16)
	if err != nil {
		t.Fatalf("dwb.Open: %v", err)
	}
	defer dw.Close()

	poolA, err := OpenFile(filepath.Join(dir, "a.dat"), fm, log, dw)
	if err != nil {
		t.Fatalf("OpenFile a: %v", err)
	}
	defer poolA.CloseFile()

	fA, err := poolA.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage a: %v", err)
	}
	fA.MarkDirty()
	poolA.UnpinPage(fA) // frames in use: poolA header + poolA data = 2/3

	poolB, err := OpenFile(filepath.Join(dir, "b.dat"), fm, log, dw)
	if err != nil {
		t.Fatalf("OpenFile b: %v", err)
	}
	defer poolB.CloseFile()
	// Opening b's header page (3/3) plus allocating a data page for b
	// forces the frame manager to evict poolA's unpinned data frame,
	// flushing it through poolA's own flushFrame under poolA's lock
	// (a distinct mutex from poolB's in-flight AllocatePage call).
	fB, err := poolB.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage b: %v", err)
	}
	poolB.UnpinPage(fB)
}

func TestRegistryLookupAndFlushAll(t *testing.T) {
	dir := t.TempDir()
	fm, log, dw := newTestEnv(t)
	pool, err := OpenFile(filepath.Join(dir, "t.dat"), fm, log, dw)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer pool.CloseFile()

	reg := NewRegistry()
	reg.Register(pool)
	if _, ok := reg.Lookup(pool.ID()); !ok {
		t.Fatal("expected Lookup to find the registered pool")
	}

	frame, err := pool.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	frame.MarkDirty()
	pool.UnpinPage(frame)

	if err := reg.FlushAll(); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
}
