package table

import (
	"path/filepath"
	"testing"

	"github.com/xzxg001/miniob-sub000/internal/dwb"
	"github.com/xzxg001/miniob-sub000/internal/index"
	"github.com/xzxg001/miniob-sub000/internal/pager"
	"github.com/xzxg001/miniob-sub000/internal/sqltype"
	"github.com/xzxg001/miniob-sub000/internal/walog"
)

func newTestPool(t *testing.T) *pager.Pool {
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
	return pool
}

func testMeta(t *testing.T) *Meta {
	t.Helper()
	meta, err := NewMeta("people", []FieldMeta{
		{Name: "id", Kind: sqltype.INT},
		{Name: "active", Kind: sqltype.BOOL},
		{Name: "score", Kind: sqltype.FLOAT},
		{Name: "name", Kind: sqltype.CHARS, Width: 16},
	}, RowFormat)
	if err != nil {
		t.Fatalf("NewMeta: %v", err)
	}
	return meta
}

func TestNewMetaAssignsOffsetsAndWidths(t *testing.T) {
	meta := testMeta(t)
	want := []struct {
		name   string
		offset int
		width  int
	}{
		{"id", 0, 8},
		{"active", 8, 1},
		{"score", 9, 8},
		{"name", 17, 16},
	}
	if len(meta.Fields) != len(want) {
		t.Fatalf("got %d fields, want %d", len(meta.Fields), len(want))
	}
	for i, w := range want {
		f := meta.Fields[i]
		if f.Name != w.name || f.Offset != w.offset || f.Width != w.width {
			t.Fatalf("field %d = %+v, want name=%s offset=%d width=%d", i, f, w.name, w.offset, w.width)
		}
	}
	if meta.RecordWidth != 17+16 {
		t.Fatalf("RecordWidth = %d, want %d", meta.RecordWidth, 17+16)
	}
}

func TestNewMetaRejectsUnwidthedChars(t *testing.T) {
	_, err := NewMeta("bad", []FieldMeta{{Name: "s", Kind: sqltype.CHARS}}, RowFormat)
	if err == nil {
		t.Fatal("expected error for CHARS field with no declared width")
	}
}

func TestFieldByName(t *testing.T) {
	meta := testMeta(t)
	f, ok := meta.FieldByName("score")
	if !ok || f.Kind != sqltype.FLOAT {
		t.Fatalf("FieldByName(score) = %+v, %v", f, ok)
	}
	if _, ok := meta.FieldByName("nope"); ok {
		t.Fatal("expected FieldByName to report missing field")
	}
}

func TestEncodeDecodeRowRoundTrip(t *testing.T) {
	meta := testMeta(t)
	pool := newTestPool(t)
	tbl := NewTable(1, meta, pool)

	values := []sqltype.Value{
		sqltype.NewInt(42),
		sqltype.NewBool(true),
		sqltype.NewFloat(3.25),
		sqltype.NewChars("alice"),
	}

	buf, err := tbl.EncodeRow(values)
	if err != nil {
		t.Fatalf("EncodeRow: %v", err)
	}
	if len(buf) != meta.RecordWidth {
		t.Fatalf("encoded row len = %d, want %d", len(buf), meta.RecordWidth)
	}

	decoded, err := tbl.DecodeRow(buf)
	if err != nil {
		t.Fatalf("DecodeRow: %v", err)
	}
	if len(decoded) != len(values) {
		t.Fatalf("decoded %d values, want %d", len(decoded), len(values))
	}
	for i, v := range values {
		if !sqltype.Equal(decoded[i], v) {
			t.Errorf("field %d: decoded %v, want %v", i, decoded[i], v)
		}
	}
}

func TestEncodeRowRejectsValueCountMismatch(t *testing.T) {
	meta := testMeta(t)
	pool := newTestPool(t)
	tbl := NewTable(1, meta, pool)

	_, err := tbl.EncodeRow([]sqltype.Value{sqltype.NewInt(1)})
	if err == nil {
		t.Fatal("expected error for mismatched value count")
	}
}

func TestEncodeRowCastsIntIntoFloatField(t *testing.T) {
	meta := testMeta(t)
	pool := newTestPool(t)
	tbl := NewTable(1, meta, pool)

	values := []sqltype.Value{
		sqltype.NewInt(7),
		sqltype.NewBool(false),
		sqltype.NewInt(9), // goes into the FLOAT "score" field, must cast
		sqltype.NewChars("bob"),
	}
	buf, err := tbl.EncodeRow(values)
	if err != nil {
		t.Fatalf("EncodeRow: %v", err)
	}
	decoded, err := tbl.DecodeRow(buf)
	if err != nil {
		t.Fatalf("DecodeRow: %v", err)
	}
	if decoded[2].Kind != sqltype.FLOAT || decoded[2].FloatV != 9 {
		t.Fatalf("score field = %v, want FLOAT 9", decoded[2])
	}
}

func TestCharsFieldTruncatesAtWidthAndZeroPads(t *testing.T) {
	meta, err := NewMeta("t", []FieldMeta{{Name: "s", Kind: sqltype.CHARS, Width: 4}}, RowFormat)
	if err != nil {
		t.Fatalf("NewMeta: %v", err)
	}
	pool := newTestPool(t)
	tbl := NewTable(1, meta, pool)

	buf, err := tbl.EncodeRow([]sqltype.Value{sqltype.NewChars("ab")})
	if err != nil {
		t.Fatalf("EncodeRow: %v", err)
	}
	if buf[2] != 0 || buf[3] != 0 {
		t.Fatalf("expected zero padding after short CHARS value, got %v", buf)
	}

	decoded, err := tbl.DecodeRow(buf)
	if err != nil {
		t.Fatalf("DecodeRow: %v", err)
	}
	if decoded[0].ToString() != "ab" {
		t.Fatalf("decoded CHARS = %q, want %q", decoded[0].ToString(), "ab")
	}
}

func TestCreateIndexRejectsUnknownField(t *testing.T) {
	meta := testMeta(t)
	pool := newTestPool(t)
	tbl := NewTable(1, meta, pool)

	tree, err := index.Create(pool)
	if err != nil {
		t.Fatalf("index.Create: %v", err)
	}
	if err := tbl.CreateIndex("nonexistent", tree); err == nil {
		t.Fatal("expected error creating an index over an unknown field")
	}
}

func TestCreateIndexRegistersTree(t *testing.T) {
	meta := testMeta(t)
	pool := newTestPool(t)
	tbl := NewTable(1, meta, pool)

	tree, err := index.Create(pool)
	if err != nil {
		t.Fatalf("index.Create: %v", err)
	}
	if err := tbl.CreateIndex("id", tree); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if tbl.Indexes["id"] != tree {
		t.Fatal("expected Indexes[\"id\"] to hold the created tree")
	}
}

func TestNewTableRecordSizeIncludesHiddenFields(t *testing.T) {
	meta := testMeta(t)
	pool := newTestPool(t)
	tbl := NewTable(1, meta, pool)
	if got := tbl.Records.RecordSize(); got != meta.RecordWidth+8 {
		t.Fatalf("Records.RecordSize() = %d, want %d", got, meta.RecordWidth+8)
	}
}
