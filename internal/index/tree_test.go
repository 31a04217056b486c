package index

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/xzxg001/miniob-sub000/internal/dwb"
	"github.com/xzxg001/miniob-sub000/internal/pager"
	"github.com/xzxg001/miniob-sub000/internal/record"
	"github.com/xzxg001/miniob-sub000/internal/sqltype"
	"github.com/xzxg001/miniob-sub000/internal/walog"
)

func newTestPool(t *testing.T) *pager.Pool {
	t.Helper()
	dir := t.TempDir()
	fm := pager.NewFrameManager(256)
	log, err := walog.Open(filepath.Join(dir, "wal.log"))
	if err != nil {
		t.Fatalf("walog.Open: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	dw, err := dwb.Open(filepath.Join(dir, "dwb.dat"), pager.PageSize, 32)
	if err != nil {
		t.Fatalf("dwb.Open: %v", err)
	}
	t.Cleanup(func() { dw.Close() })

	pool, err := pager.OpenFile(filepath.Join(dir, "t.dat"), fm, log, dw)
	if err != nil {
		t.Fatalf("pager.OpenFile: %v", err)
	}
	t.Cleanup(func() { pool.CloseFile() })
	return pool
}

func TestEncodeKeyPreservesIntOrdering(t *testing.T) {
	vals := []int64{-100, -1, 0, 1, 42, 1000}
	var keys [][]byte
	for _, v := range vals {
		k, err := EncodeKey(sqltype.NewInt(v))
		if err != nil {
			t.Fatalf("EncodeKey(%d): %v", v, err)
		}
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		if bytes.Compare(keys[i-1], keys[i]) >= 0 {
			t.Fatalf("expected key(%d) < key(%d), got %v >= %v", vals[i-1], vals[i], keys[i-1], keys[i])
		}
	}
}

func TestEncodeKeyPreservesFloatOrdering(t *testing.T) {
	vals := []float64{-3.5, -0.5, 0, 0.5, 3.5}
	var keys [][]byte
	for _, v := range vals {
		k, err := EncodeKey(sqltype.NewFloat(v))
		if err != nil {
			t.Fatalf("EncodeKey(%v): %v", v, err)
		}
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		if bytes.Compare(keys[i-1], keys[i]) >= 0 {
			t.Fatalf("expected key(%v) < key(%v), got %v >= %v", vals[i-1], vals[i], keys[i-1], keys[i])
		}
	}
}

func TestEncodeKeyRejectsUnsupportedKind(t *testing.T) {
	if _, err := EncodeKey(sqltype.Undefined()); err == nil {
		t.Fatal("expected error encoding an UNDEFINED key")
	}
}

func TestTreeInsertAndSearch(t *testing.T) {
	pool := newTestPool(t)
	tree, err := Create(pool)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rid := record.RID{PageNum: 7, SlotNum: 3}
	key, err := EncodeKey(sqltype.NewInt(42))
	if err != nil {
		t.Fatalf("EncodeKey: %v", err)
	}
	if err := tree.Insert(key, rid); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, ok, err := tree.Search(key)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !ok || got != rid {
		t.Fatalf("Search = %v, %v, want %v, true", got, ok, rid)
	}

	missingKey, _ := EncodeKey(sqltype.NewInt(999))
	if _, ok, err := tree.Search(missingKey); err != nil || ok {
		t.Fatalf("Search(missing) = %v, %v, want false, nil", ok, err)
	}
}

func TestTreeInsertManyForcesSplitsAndSearchStillWorks(t *testing.T) {
	pool := newTestPool(t)
	tree, err := Create(pool)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 500
	for i := 0; i < n; i++ {
		key, err := EncodeKey(sqltype.NewInt(int64(i)))
		if err != nil {
			t.Fatalf("EncodeKey(%d): %v", i, err)
		}
		rid := record.RID{PageNum: pager.PageNum(i / 10), SlotNum: int32(i % 10)}
		if err := tree.Insert(key, rid); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		key, _ := EncodeKey(sqltype.NewInt(int64(i)))
		rid, ok, err := tree.Search(key)
		if err != nil {
			t.Fatalf("Search(%d): %v", i, err)
		}
		if !ok {
			t.Fatalf("Search(%d): not found", i)
		}
		want := record.RID{PageNum: pager.PageNum(i / 10), SlotNum: int32(i % 10)}
		if rid != want {
			t.Fatalf("Search(%d) = %v, want %v", i, rid, want)
		}
	}
}

func TestTreeRangeScanVisitsOrderedSubset(t *testing.T) {
	pool := newTestPool(t)
	tree, err := Create(pool)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 100
	for i := 0; i < n; i++ {
		key, _ := EncodeKey(sqltype.NewInt(int64(i)))
		if err := tree.Insert(key, record.RID{PageNum: pager.PageNum(i), SlotNum: 0}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	lo, _ := EncodeKey(sqltype.NewInt(20))
	hi, _ := EncodeKey(sqltype.NewInt(29))

	var visited []int64
	err = tree.RangeScan(lo, hi, func(key []byte, rid record.RID) bool {
		visited = append(visited, int64(rid.PageNum))
		return true
	})
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	if len(visited) != 10 {
		t.Fatalf("RangeScan visited %d entries, want 10", len(visited))
	}
	for i, v := range visited {
		if v != int64(20+i) {
			t.Fatalf("visited[%d] = %d, want %d", i, v, 20+i)
		}
	}
}

func TestTreeRangeScanEarlyStop(t *testing.T) {
	pool := newTestPool(t)
	tree, err := Create(pool)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 20; i++ {
		key, _ := EncodeKey(sqltype.NewInt(int64(i)))
		if err := tree.Insert(key, record.RID{PageNum: pager.PageNum(i), SlotNum: 0}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	lo, _ := EncodeKey(sqltype.NewInt(0))
	hi, _ := EncodeKey(sqltype.NewInt(19))

	count := 0
	err = tree.RangeScan(lo, hi, func(key []byte, rid record.RID) bool {
		count++
		return count < 3
	})
	if err != nil {
		t.Fatalf("RangeScan: %v", err)
	}
	if count != 3 {
		t.Fatalf("RangeScan visited %d entries after early stop, want 3", count)
	}
}

func TestTreeOpenReattachesToExistingRoot(t *testing.T) {
	pool := newTestPool(t)
	tree, err := Create(pool)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	key, _ := EncodeKey(sqltype.NewInt(5))
	rid := record.RID{PageNum: 1, SlotNum: 1}
	if err := tree.Insert(key, rid); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	reopened := Open(pool, tree.RootPageNum())
	got, ok, err := reopened.Search(key)
	if err != nil {
		t.Fatalf("Search via reopened tree: %v", err)
	}
	if !ok || got != rid {
		t.Fatalf("Search via reopened tree = %v, %v, want %v, true", got, ok, rid)
	}
}
