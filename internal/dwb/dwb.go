// Package dwb implements the double-write buffer (spec.md §4.2, §6):
// torn-write protection via a small sequential staging file that durably
// records full page images before they are written to their home file,
// plus a recovery path that rewrites any completed-but-unflushed pages
// back to their home files after a crash.
//
// Grounded on tinySQL's internal/storage/pager/wal.go append-only record
// framing (magic header, fixed record layout), redesigned as a fixed-size
// ring of (buffer_pool_id, page_num, page_bytes) staged records per
// spec.md §6, instead of tinySQL's transactional page-image WAL.
package dwb

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// slotHeaderSize: PoolID(4) + PageNum(4) + Valid(1) + pad(3).
const slotHeaderSize = 12

// HomeWriter is implemented by the owner of a file's bytes (normally a
// pager.Pool) so the double-write buffer can rewrite a home-file page
// during recovery without importing the pager package (avoids a cycle).
type HomeWriter interface {
	WriteHomePage(bufferPoolID uint32, pageNum int32, page []byte) error
}

// Buffer is a fixed-capacity ring of staged pages backed by a single file.
type Buffer struct {
	mu       sync.Mutex
	f        *os.File
	pageSize int
	slotSize int
	capacity int
	next     int
	index    map[key]int // (poolID,pageNum) -> slot, most-recent wins
}

type key struct {
	poolID  uint32
	pageNum int32
}

// Open opens or creates the double-write staging file with room for
// capacity page-sized slots.
func Open(path string, pageSize, capacity int) (*Buffer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("dwb: open %s: %w", path, err)
	}
	b := &Buffer{
		f:        f,
		pageSize: pageSize,
		slotSize: slotHeaderSize + pageSize,
		capacity: capacity,
		index:    make(map[key]int),
	}
	if err := b.loadIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return b, nil
}

func (b *Buffer) loadIndex() error {
	info, err := b.f.Stat()
	if err != nil {
		return err
	}
	slots := int(info.Size()) / b.slotSize
	buf := make([]byte, slotHeaderSize)
	for i := 0; i < slots; i++ {
		if _, err := b.f.ReadAt(buf, int64(i)*int64(b.slotSize)); err != nil {
			break
		}
		if buf[8] == 0 {
			continue
		}
		k := key{poolID: binary.LittleEndian.Uint32(buf[0:4]), pageNum: int32(binary.LittleEndian.Uint32(buf[4:8]))}
		b.index[k] = i
	}
	b.next = slots % max1(b.capacity)
	return nil
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// AddPage stages a flushed page (spec.md §4.2 add_page). May block (here:
// simply overwrite the oldest ring slot) until space is available.
func (b *Buffer) AddPage(poolID uint32, pageNum int32, page []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	slot := b.next
	b.next = (b.next + 1) % max1(b.capacity)

	buf := make([]byte, b.slotSize)
	binary.LittleEndian.PutUint32(buf[0:4], poolID)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(pageNum))
	buf[8] = 1
	copy(buf[slotHeaderSize:], page)

	if _, err := b.f.WriteAt(buf, int64(slot)*int64(b.slotSize)); err != nil {
		return fmt.Errorf("dwb: write slot: %w", err)
	}
	if err := b.f.Sync(); err != nil {
		return fmt.Errorf("dwb: sync: %w", err)
	}

	// Invalidate any other slot currently indexed for this key (we just
	// superseded it) before recording the new one.
	k := key{poolID, pageNum}
	if old, ok := b.index[k]; ok && old != slot {
		if _, err := b.f.WriteAt([]byte{0}, int64(old)*int64(b.slotSize)+8); err != nil {
			return fmt.Errorf("dwb: invalidate slot: %w", err)
		}
	}
	b.index[k] = slot
	return nil
}

// ReadPage implements spec.md §4.2 read_page: returns (true, page) on hit.
func (b *Buffer) ReadPage(poolID uint32, pageNum int32) (bool, []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	slot, ok := b.index[key{poolID, pageNum}]
	if !ok {
		return false, nil
	}
	buf := make([]byte, b.slotSize)
	if _, err := b.f.ReadAt(buf, int64(slot)*int64(b.slotSize)); err != nil {
		return false, nil
	}
	page := make([]byte, b.pageSize)
	copy(page, buf[slotHeaderSize:])
	return true, page
}

// ClearPages removes every staged entry belonging to poolID (spec.md §4.2
// clear_pages, called on file close).
func (b *Buffer) ClearPages(poolID uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.index {
		if k.poolID == poolID {
			delete(b.index, k)
		}
	}
}

// Recover scans every staged slot and rewrites it to its home file via hw,
// reconstructing any page that was completed in the staging file but never
// made it to its home file before a crash (spec.md §4.2).
func (b *Buffer) Recover(hw HomeWriter) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := make([]byte, b.slotSize)
	info, err := b.f.Stat()
	if err != nil {
		return err
	}
	slots := int(info.Size()) / b.slotSize
	for i := 0; i < slots; i++ {
		if _, err := b.f.ReadAt(buf, int64(i)*int64(b.slotSize)); err != nil {
			break
		}
		if buf[8] == 0 {
			continue
		}
		poolID := binary.LittleEndian.Uint32(buf[0:4])
		pageNum := int32(binary.LittleEndian.Uint32(buf[4:8]))
		page := make([]byte, b.pageSize)
		copy(page, buf[slotHeaderSize:])
		if err := hw.WriteHomePage(poolID, pageNum, page); err != nil {
			return fmt.Errorf("dwb: recover page %d/%d: %w", poolID, pageNum, err)
		}
	}
	return nil
}

// Close closes the underlying staging file.
func (b *Buffer) Close() error { return b.f.Close() }
