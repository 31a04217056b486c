// Package dbms implements spec.md's Database (Db) component: owns every
// open table, assigns table ids, resolves table names for the binder,
// and drives a full sync (flush) across every table's buffer pool.
//
// Grounded on tinySQL's internal/storage/db.go (DB: mutex-protected
// table registry, Get/Put/Drop/ListTables/TableExists/Sync/Close),
// narrowed from tinySQL's multi-tenant map-of-maps to a single
// mutex-protected name map (spec.md's Database has no tenant concept),
// and from tinySQL's GOB-snapshot Sync to a buffer-pool flush-all Sync
// matching this repository's own durability model.
package dbms

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/xzxg001/miniob-sub000/internal/pager"
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/table"
	"github.com/xzxg001/miniob-sub000/internal/trxmgr"
)

// Db owns every open table in one database directory (spec.md component
// table row 8).
type Db struct {
	mu      sync.RWMutex
	name    string
	tables  map[string]*table.Table
	byID    map[int32]*table.Table
	nextID  atomic.Int32
	pools   []*pager.Pool // every table's and index's buffer pool, for Sync/Close
}

// New creates an empty, named database.
func New(name string) *Db {
	return &Db{
		name:   name,
		tables: make(map[string]*table.Table),
		byID:   make(map[int32]*table.Table),
	}
}

// Name returns the database's name.
func (d *Db) Name() string { return d.name }

func (d *Db) nextTableID() int32 { return d.nextID.Add(1) }

// CreateTable registers a freshly built table, assigning it a fresh id.
// Returns SCHEMA_TABLE_EXIST if name is already taken (spec.md §4.7
// binder error taxonomy).
func (d *Db) CreateTable(name string, meta *table.Meta, pool *pager.Pool) (*table.Table, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tables[name]; ok {
		return nil, rc.Errorf(rc.SCHEMA_TABLE_EXIST, "table %s already exists", name)
	}
	id := d.nextTableID()
	t := table.NewTable(id, meta, pool)
	d.tables[name] = t
	d.byID[id] = t
	d.pools = append(d.pools, pool)
	return t, nil
}

// RegisterPool tracks an additional buffer pool (e.g. one backing a
// secondary index) so Sync/Close reach it too.
func (d *Db) RegisterPool(p *pager.Pool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pools = append(d.pools, p)
}

// AttachTable registers an already-constructed table (used when
// reloading a database from its catalog at startup, where the table,
// its id, and its pool already exist).
func (d *Db) AttachTable(name string, t *table.Table) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tables[name]; ok {
		return rc.Errorf(rc.SCHEMA_TABLE_EXIST, "table %s already exists", name)
	}
	d.tables[name] = t
	d.byID[t.ID] = t
	if t.ID >= d.nextID.Load() {
		d.nextID.Store(t.ID)
	}
	return nil
}

// Table resolves a table by name (spec.md §4.7 binder: "resolves each
// table name against the current database").
func (d *Db) Table(name string) (*table.Table, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tables[name]
	if !ok {
		return nil, rc.Errorf(rc.SCHEMA_TABLE_NOT_EXIST, "no such table %s", name)
	}
	return t, nil
}

// TableByID implements trxmgr.TableLookup, resolving tables referenced
// by id in the MVCC log during recovery (spec.md §4.3 step 3).
func (d *Db) TableByID(id int32) (*trxmgr.Table, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	return &trxmgr.Table{ID: t.ID, Records: t.Records}, true
}

// DropTable removes a table from the registry (its pool is left for the
// caller to close — Db does not own pool lifetime beyond Sync/Close's
// flush pass).
func (d *Db) DropTable(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tables[name]
	if !ok {
		return rc.Errorf(rc.SCHEMA_TABLE_NOT_EXIST, "no such table %s", name)
	}
	delete(d.tables, name)
	delete(d.byID, t.ID)
	return nil
}

// ListTables returns every table name currently registered, in no
// particular order (mirrors SHOW TABLES' underlying data source).
func (d *Db) ListTables() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.tables))
	for name := range d.tables {
		out = append(out, name)
	}
	return out
}

// Sync drives a full flush across every table's (and index's) buffer
// pool (spec.md component table row 8: "drives sync").
func (d *Db) Sync() error {
	d.mu.RLock()
	pools := append([]*pager.Pool(nil), d.pools...)
	d.mu.RUnlock()
	for _, p := range pools {
		if err := p.FlushAllPages(); err != nil {
			return fmt.Errorf("dbms: sync: %w", err)
		}
	}
	return nil
}

// Close syncs then closes every registered buffer pool.
func (d *Db) Close() error {
	if err := d.Sync(); err != nil {
		return err
	}
	d.mu.RLock()
	pools := append([]*pager.Pool(nil), d.pools...)
	d.mu.RUnlock()
	for _, p := range pools {
		if err := p.CloseFile(); err != nil {
			return fmt.Errorf("dbms: close: %w", err)
		}
	}
	return nil
}
