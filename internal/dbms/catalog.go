package dbms

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xzxg001/miniob-sub000/internal/dwb"
	"github.com/xzxg001/miniob-sub000/internal/index"
	"github.com/xzxg001/miniob-sub000/internal/pager"
	"github.com/xzxg001/miniob-sub000/internal/table"
	"github.com/xzxg001/miniob-sub000/internal/trxmgr"
	"github.com/xzxg001/miniob-sub000/internal/walog"
)

// catalogEntry is one table's persisted schema plus the file names of its
// data and any index files, gob-encoded into the database directory's meta
// file (spec.md §6: "Database directory contains one meta directory plus
// one data file per table and one or more index files per indexed
// column"). Grounded on tinySQL's GOB-snapshot persistence
// (internal/storage/db.go's safeGobRegister/Encoder/Decoder pair) rather
// than reinventing a catalog format.
type catalogEntry struct {
	Name        string
	Fields      []table.FieldMeta
	Format      table.StorageFormat
	ID          int32
	DataFile    string
	IndexFields []string
	IndexFiles  []string
	IndexRoots  []int32
}

const catalogFileName = "catalog.gob"

// Env bundles the bring-up singletons every pool/table in one open
// database directory shares (spec.md §9 "Global mutable state": the
// frame manager and transaction kit are constructed once at bring-up and
// passed by reference).
type Env struct {
	Dir    string
	FM     *pager.FrameManager
	Log    *walog.Handler
	DW     *dwb.Buffer
	Pools  *pager.Registry
	TrxMgr *trxmgr.Manager
}

// Config is this module's ambient-stack configuration struct (SPEC_FULL.md
// §E.1), a struct literal rather than an INI-parsed config, mirroring
// tinySQL's PagerConfig/BufferPoolConfig pattern.
type Config struct {
	// Dir is the database directory (created if absent).
	Dir string
	// FrameCapacity bounds the shared frame manager's pool size.
	FrameCapacity int
	// DoubleWriteCapacity bounds the double-write buffer's staging ring.
	DoubleWriteCapacity int
}

func (c Config) withDefaults() Config {
	if c.FrameCapacity <= 0 {
		c.FrameCapacity = 256
	}
	if c.DoubleWriteCapacity <= 0 {
		c.DoubleWriteCapacity = 64
	}
	return c
}

// Open brings up one database directory end to end (spec.md §4.3
// Recovery + component table row 8): constructs the shared frame
// manager and log handler, opens every table (and index) file named by
// the persisted catalog, registers every subsystem's Replayer, then
// drives recovery: one log pass in LSN order (buffer-pool redo and MVCC
// op-list rebuilding, interleaved), then double-write replay, then each
// recovered transaction's commit/rollback.
func Open(cfg Config) (*Db, *Env, error) {
	cfg = cfg.withDefaults()
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("dbms: open %s: %w", cfg.Dir, err)
	}

	log, err := walog.Open(filepath.Join(cfg.Dir, "wal.log"))
	if err != nil {
		return nil, nil, err
	}
	dw, err := dwb.Open(filepath.Join(cfg.Dir, "dwb.dat"), pager.PageSize, cfg.DoubleWriteCapacity)
	if err != nil {
		return nil, nil, err
	}
	fm := pager.NewFrameManager(cfg.FrameCapacity)
	registry := pager.NewRegistry()
	mvccLog := walog.NewMvccTrxLogHandler(log)
	mgr := trxmgr.NewManager(mvccLog)

	db := New(filepath.Base(cfg.Dir))
	env := &Env{Dir: cfg.Dir, FM: fm, Log: log, DW: dw, Pools: registry, TrxMgr: mgr}

	entries, err := loadCatalog(cfg.Dir)
	if err != nil {
		return nil, nil, err
	}
	for _, ce := range entries {
		if err := attachCatalogEntry(db, env, ce); err != nil {
			return nil, nil, err
		}
	}

	log.RegisterReplayer(registry)
	replayer := trxmgr.NewReplayer(mgr, db)
	log.RegisterReplayer(replayer)
	if err := log.Recover(); err != nil {
		return nil, nil, fmt.Errorf("dbms: wal recover: %w", err)
	}
	if err := dw.Recover(registry); err != nil {
		return nil, nil, fmt.Errorf("dbms: dwb recover: %w", err)
	}
	if err := replayer.Finish(); err != nil {
		return nil, nil, fmt.Errorf("dbms: mvcc replay: %w", err)
	}

	return db, env, nil
}

func attachCatalogEntry(db *Db, env *Env, ce catalogEntry) error {
	pool, err := pager.OpenFile(filepath.Join(env.Dir, ce.DataFile), env.FM, env.Log, env.DW)
	if err != nil {
		return err
	}
	env.Pools.Register(pool)
	meta, err := table.NewMeta(ce.Name, ce.Fields, ce.Format)
	if err != nil {
		return err
	}
	t := table.NewTable(ce.ID, meta, pool)
	if err := t.Records.Rebuild(); err != nil {
		return fmt.Errorf("dbms: rebuild %s data pages: %w", ce.Name, err)
	}
	for i, fieldName := range ce.IndexFields {
		idxPool, err := pager.OpenFile(filepath.Join(env.Dir, ce.IndexFiles[i]), env.FM, env.Log, env.DW)
		if err != nil {
			return err
		}
		env.Pools.Register(idxPool)
		tree := index.Open(idxPool, pager.PageNum(ce.IndexRoots[i]))
		if err := t.CreateIndex(fieldName, tree); err != nil {
			return err
		}
		db.RegisterPool(idxPool)
	}
	if err := db.AttachTable(ce.Name, t); err != nil {
		return err
	}
	db.RegisterPool(pool)
	return nil
}

// CreateTableOnDisk creates a brand-new table's backing file under env.Dir,
// registers it with db, and persists the updated catalog so a later Open
// rediscovers it (spec.md §6 "one data file per table").
func CreateTableOnDisk(db *Db, env *Env, name string, fields []table.FieldMeta, format table.StorageFormat) (*table.Table, error) {
	meta, err := table.NewMeta(name, fields, format)
	if err != nil {
		return nil, err
	}
	dataFile := name + ".tbl"
	pool, err := pager.OpenFile(filepath.Join(env.Dir, dataFile), env.FM, env.Log, env.DW)
	if err != nil {
		return nil, err
	}
	env.Pools.Register(pool)
	t, err := db.CreateTable(name, meta, pool)
	if err != nil {
		return nil, err
	}
	if err := saveCatalog(db, env); err != nil {
		return nil, err
	}
	return t, nil
}

// CreateIndexOnDisk creates a new B+Tree index file for fieldName on t and
// persists the updated catalog.
func CreateIndexOnDisk(db *Db, env *Env, t *table.Table, fieldName string) error {
	if _, ok := t.Meta.FieldByName(fieldName); !ok {
		return fmt.Errorf("dbms: no such field %s on table %s", fieldName, t.Meta.Name)
	}
	idxFile := fmt.Sprintf("%s_%s.idx", t.Meta.Name, fieldName)
	pool, err := pager.OpenFile(filepath.Join(env.Dir, idxFile), env.FM, env.Log, env.DW)
	if err != nil {
		return err
	}
	env.Pools.Register(pool)
	tree, err := index.Create(pool)
	if err != nil {
		return err
	}
	if err := t.CreateIndex(fieldName, tree); err != nil {
		return err
	}
	db.RegisterPool(pool)
	return saveCatalog(db, env)
}

func loadCatalog(dir string) ([]catalogEntry, error) {
	data, err := os.ReadFile(filepath.Join(dir, catalogFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dbms: read catalog: %w", err)
	}
	var entries []catalogEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entries); err != nil {
		return nil, fmt.Errorf("dbms: decode catalog: %w", err)
	}
	return entries, nil
}

// saveCatalog writes every currently-registered table's schema to the
// database directory's catalog file. Index file names are derived
// deterministically from table+field name, matching CreateIndexOnDisk.
func saveCatalog(db *Db, env *Env) error {
	names := db.ListTables()
	entries := make([]catalogEntry, 0, len(names))
	for _, name := range names {
		t, err := db.Table(name)
		if err != nil {
			return err
		}
		ce := catalogEntry{
			Name:     t.Meta.Name,
			Fields:   t.Meta.Fields,
			Format:   t.Meta.StorageFormat,
			ID:       t.ID,
			DataFile: t.Meta.Name + ".tbl",
		}
		for fieldName, tree := range t.Indexes {
			ce.IndexFields = append(ce.IndexFields, fieldName)
			ce.IndexFiles = append(ce.IndexFiles, fmt.Sprintf("%s_%s.idx", t.Meta.Name, fieldName))
			ce.IndexRoots = append(ce.IndexRoots, int32(tree.RootPageNum()))
		}
		entries = append(entries, ce)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entries); err != nil {
		return fmt.Errorf("dbms: encode catalog: %w", err)
	}
	tmp := filepath.Join(env.Dir, catalogFileName+".tmp")
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("dbms: write catalog: %w", err)
	}
	return os.Rename(tmp, filepath.Join(env.Dir, catalogFileName))
}

// Close syncs db then closes every subsystem env owns, in the reverse
// order of Open (spec.md §4.1 close_file: "unpins header; purges all
// pages... clears double-write entries").
func (e *Env) Close(db *Db) error {
	if err := db.Close(); err != nil {
		return err
	}
	if err := e.DW.Close(); err != nil {
		return fmt.Errorf("dbms: close dwb: %w", err)
	}
	if err := e.Log.Close(); err != nil {
		return fmt.Errorf("dbms: close wal: %w", err)
	}
	return nil
}
