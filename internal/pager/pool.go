// Pool implements the per-file DiskBufferPool described in spec.md §4.1.
package pager

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/xzxg001/miniob-sub000/internal/dwb"
	"github.com/xzxg001/miniob-sub000/internal/walog"
)

// Pool is one file's buffer pool: it shares the global FrameManager but
// owns its own file descriptor, file header (page 0), log handler and
// double-write buffer hookup (spec.md §4.1).
type Pool struct {
	mu       sync.Mutex
	id       uint32
	corrID   uuid.UUID // per-open correlation id, google/uuid (see DESIGN.md)
	path     string
	file     *os.File
	fm       *FrameManager
	bplog    *walog.BufferPoolLogHandler
	dw       *dwb.Buffer
	header   *FileHeader
	hdrFrame *Frame
	closed   bool
}

// poolIDSeq is incremented for each pool opened in this process; combined
// with the uuid correlation id this gives a stable-enough handle for test
// assertions while still being process-local.
var poolIDSeq uint32
var poolIDMu sync.Mutex

func nextPoolID() uint32 {
	poolIDMu.Lock()
	defer poolIDMu.Unlock()
	poolIDSeq++
	return poolIDSeq
}

// OpenFile opens path as a buffer pool's backing file (spec.md §4.1
// open_file): creates it with a fresh header if new, otherwise reads and
// pins page 0.
func OpenFile(path string, fm *FrameManager, log *walog.Handler, dw *dwb.Buffer) (*Pool, error) {
	isNew := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		isNew = true
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", path, err)
	}

	id := nextPoolID()
	p := &Pool{
		id:     id,
		corrID: uuid.New(),
		path:   path,
		file:   f,
		fm:     fm,
		bplog:  walog.NewBufferPoolLogHandler(log, id),
		dw:     dw,
	}

	if isNew {
		p.header = NewFileHeader(id)
		if err := p.writeHeaderPage(); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		if err := p.loadHeaderPage(); err != nil {
			f.Close()
			return nil, err
		}
	}

	frame, err := fm.Acquire(FrameID{BufferPoolID: id, PageNum: 0}, p)
	if err != nil {
		f.Close()
		return nil, err
	}
	frame.Pin()
	p.hdrFrame = frame
	p.encodeHeaderIntoFrame()
	return p, nil
}

// ID returns this pool's id, used as the BufferPoolID component of FrameID
// and as the table id embedded into RIDs by higher layers.
func (p *Pool) ID() uint32 { return p.id }

func (p *Pool) writeHeaderPage() error {
	var pg Page
	pg.PageNum = 0
	p.header.Encode(pg.Data[:])
	pg.Checksum = pg.ComputeChecksum()
	_, err := p.file.WriteAt(pg.Marshal(), 0)
	return err
}

func (p *Pool) loadHeaderPage() error {
	buf := make([]byte, PageSize)
	if _, err := p.file.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("pager: read header page: %w", err)
	}
	var pg Page
	if err := Unmarshal(buf, &pg); err != nil {
		return err
	}
	p.header = DecodeFileHeader(pg.Data[:])
	p.id = p.header.BufferPoolID
	return nil
}

func (p *Pool) encodeHeaderIntoFrame() {
	p.hdrFrame.page.PageNum = 0
	p.header.Encode(p.hdrFrame.page.Data[:])
}

// CloseFile unpins the header, purges (flushing dirty) all of this pool's
// pages, clears its double-write entries, and closes the file (spec.md
// §4.1 close_file).
func (p *Pool) CloseFile() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.hdrFrame.Unpin()
	if err := p.purgeAllPagesLocked(); err != nil {
		return err
	}
	p.dw.ClearPages(p.id)
	return p.file.Close()
}

// GetPage returns a pinned frame for pageNum, loading it from disk (or the
// double-write buffer) on a cache miss (spec.md §4.1 get_page).
func (p *Pool) GetPage(pageNum PageNum) (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getPageLocked(pageNum)
}

func (p *Pool) getPageLocked(pageNum PageNum) (*Frame, error) {
	if int(pageNum) < 0 || int32(pageNum) >= p.header.PageCount {
		return nil, fmt.Errorf("pager: invalid page num %d", pageNum)
	}
	id := FrameID{BufferPoolID: p.id, PageNum: pageNum}
	if f, ok := p.fm.Lookup(id); ok {
		f.Pin()
		return f, nil
	}
	f, err := p.fm.Acquire(id, p)
	if err != nil {
		return nil, fmt.Errorf("pager: %w", err)
	}
	if err := p.loadPageInto(pageNum, &f.page); err != nil {
		return nil, err
	}
	f.dirty = false
	f.Pin()
	return f, nil
}

// loadPageInto implements the load protocol (spec.md §4.1): ask the
// double-write buffer first, fall back to a positional read.
func (p *Pool) loadPageInto(pageNum PageNum, out *Page) error {
	if ok, raw := p.dw.ReadPage(p.id, int32(pageNum)); ok {
		return Unmarshal(raw, out)
	}
	buf := make([]byte, PageSize)
	if _, err := p.file.ReadAt(buf, int64(pageNum)*PageSize); err != nil {
		return fmt.Errorf("pager: read page %d: %w", pageNum, err)
	}
	if err := Unmarshal(buf, out); err != nil {
		return err
	}
	out.PageNum = pageNum
	return nil
}

// AllocatePage implements spec.md §4.1 allocate_page: finds the first
// clear bitmap bit (growing the file if none is free), logs the
// allocation, marks the header dirty, and returns a freshly-zeroed pinned
// frame.
func (p *Pool) AllocatePage() (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bit := p.header.Bitmap.FirstClear()
	if bit < 0 || bit >= MaxPageNum {
		return nil, fmt.Errorf("pager: %s", rcNoBufMessage)
	}
	var pageNum PageNum
	if int32(bit) < p.header.PageCount {
		pageNum = PageNum(bit)
	} else {
		if int(p.header.PageCount) >= MaxPageNum {
			return nil, fmt.Errorf("pager: %s", rcNoBufMessage)
		}
		pageNum = PageNum(p.header.PageCount)
		p.header.PageCount++
	}
	p.header.Bitmap.Set(bit)
	p.header.AllocatedPage++

	lsn, err := p.bplog.AllocatePage(int32(pageNum))
	if err != nil {
		return nil, err
	}
	p.hdrFrame.page.LSN = LSN(lsn)
	p.hdrFrame.MarkDirty()
	p.encodeHeaderIntoFrame()

	id := FrameID{BufferPoolID: p.id, PageNum: pageNum}
	f, err := p.fm.Acquire(id, p)
	if err != nil {
		return nil, err
	}
	f.page = Page{PageNum: pageNum, LSN: LSN(lsn)}
	f.dirty = true
	f.Pin()
	return f, nil
}

const rcNoBufMessage = "BUFFERPOOL_NOBUF"

// DisposePage implements spec.md §4.1 dispose_page: rejects page 0,
// requires the page not be pinned if resident, logs the deallocation and
// clears the bitmap bit.
func (p *Pool) DisposePage(pageNum PageNum) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pageNum == 0 {
		return fmt.Errorf("pager: INTERNAL: cannot dispose page 0")
	}
	id := FrameID{BufferPoolID: p.id, PageNum: pageNum}
	if f, ok := p.fm.Lookup(id); ok {
		if f.pin != 0 {
			return fmt.Errorf("pager: page %d still pinned", pageNum)
		}
		p.fm.Release(id)
	}
	if _, err := p.bplog.DeallocatePage(int32(pageNum)); err != nil {
		return err
	}
	p.header.Bitmap.Clear(int(pageNum))
	p.header.AllocatedPage--
	p.hdrFrame.MarkDirty()
	p.encodeHeaderIntoFrame()
	return nil
}

// UnpinPage releases a pin acquired by GetPage/AllocatePage.
func (p *Pool) UnpinPage(f *Frame) { f.Unpin() }

// flushFrame implements FrameOwner and the flush protocol (spec.md §4.1
// flush_page_internal): log, checksum, double-write, clear dirty. It
// acquires p.mu itself so the shared FrameManager can call it during
// eviction without holding any pool-specific lock.
func (p *Pool) flushFrame(f *Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushFrameNoLock(f)
}

// flushFrameNoLock is the actual flush logic; callers must already hold
// p.mu.
func (p *Pool) flushFrameNoLock(f *Frame) error {
	if !f.dirty {
		return nil
	}
	f.page.Checksum = f.page.ComputeChecksum()
	pageBytes := f.page.Marshal()
	if _, err := p.bplog.FlushPage(int32(f.id.PageNum), pageBytes); err != nil {
		return err
	}
	if err := p.dw.AddPage(p.id, int32(f.id.PageNum), pageBytes); err != nil {
		return err
	}
	if _, err := p.file.WriteAt(pageBytes, int64(f.id.PageNum)*PageSize); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

// FlushPage flushes one frame explicitly (spec.md §4.1 flush_page).
func (p *Pool) FlushPage(f *Frame) error {
	return p.flushFrame(f)
}

// FlushAllPages flushes every dirty frame owned by this pool (spec.md
// §4.1 flush_all_pages; also establishes TESTABLE PROPERTY #2).
func (p *Pool) FlushAllPages() error {
	var flushErr error
	p.fm.ForEachInPool(p.id, func(f *Frame) {
		if flushErr != nil {
			return
		}
		if err := p.flushFrame(f); err != nil {
			flushErr = err
		}
	})
	return flushErr
}

// PurgePage flushes (if dirty) and evicts a single page, provided it is
// unpinned (spec.md §4.1 purge_page).
func (p *Pool) PurgePage(pageNum PageNum) error {
	id := FrameID{BufferPoolID: p.id, PageNum: pageNum}
	f, ok := p.fm.Lookup(id)
	if !ok {
		return nil
	}
	p.mu.Lock()
	if f.pin != 0 {
		p.mu.Unlock()
		return fmt.Errorf("pager: page %d still pinned", pageNum)
	}
	err := p.flushFrameNoLock(f)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	p.fm.Release(id)
	return nil
}

// PurgeAllPages purges every unpinned page owned by this pool (spec.md
// §4.1 purge_all_pages).
func (p *Pool) PurgeAllPages() error {
	return p.purgeAllPagesLocked()
}

func (p *Pool) purgeAllPagesLocked() error {
	if err := p.FlushAllPages(); err != nil {
		return err
	}
	var ids []FrameID
	p.fm.ForEachInPool(p.id, func(f *Frame) {
		if f.pin == 0 && f.id.PageNum != 0 {
			ids = append(ids, f.id)
		}
	})
	for _, id := range ids {
		p.fm.Release(id)
	}
	return nil
}

// WritePage is a raw positional write, used by the double-write buffer's
// own recovery flush path (spec.md §4.1 write_page).
func (p *Pool) WritePage(pageNum PageNum, page *Page) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.file.WriteAt(page.Marshal(), int64(pageNum)*PageSize)
	return err
}

// WriteHomePage implements dwb.HomeWriter for this pool's own id.
func (p *Pool) WriteHomePage(bufferPoolID uint32, pageNum int32, page []byte) error {
	if bufferPoolID != p.id {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.file.WriteAt(page, int64(pageNum)*PageSize)
	return err
}

// RecoverPage force-allocates a specific page number during WAL replay
// (spec.md §4.1 recover_page), growing the file/bitmap as needed.
func (p *Pool) RecoverPage(pageNum PageNum) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int32(pageNum) >= p.header.PageCount {
		p.header.PageCount = int32(pageNum) + 1
	}
	p.header.Bitmap.Set(int(pageNum))
	p.header.AllocatedPage = int32(p.header.Bitmap.PopCount())
	p.encodeHeaderIntoFrame()
	p.hdrFrame.MarkDirty()
	return nil
}

// RedoAllocatePage idempotently replays an allocate-page log entry
// (spec.md §4.1 redo_allocate_page): guarded by hdr_frame.lsn < lsn.
func (p *Pool) RedoAllocatePage(lsn walog.LSN, pageNum PageNum) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int64(p.hdrFrame.page.LSN) >= int64(lsn) {
		return nil
	}
	if int32(pageNum) >= p.header.PageCount {
		p.header.PageCount = int32(pageNum) + 1
	}
	p.header.Bitmap.Set(int(pageNum))
	p.header.AllocatedPage = int32(p.header.Bitmap.PopCount())
	p.hdrFrame.page.LSN = LSN(lsn)
	p.encodeHeaderIntoFrame()
	p.hdrFrame.MarkDirty()
	return nil
}

// RedoDeallocatePage idempotently replays a deallocate-page log entry.
func (p *Pool) RedoDeallocatePage(lsn walog.LSN, pageNum PageNum) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int64(p.hdrFrame.page.LSN) >= int64(lsn) {
		return nil
	}
	p.header.Bitmap.Clear(int(pageNum))
	p.header.AllocatedPage = int32(p.header.Bitmap.PopCount())
	p.hdrFrame.page.LSN = LSN(lsn)
	p.encodeHeaderIntoFrame()
	p.hdrFrame.MarkDirty()
	return nil
}

// PageCount returns the current page_count field of the file header.
func (p *Pool) PageCount() int32 { return p.header.PageCount }

// AllocatedPages returns the current allocated_pages field.
func (p *Pool) AllocatedPages() int32 { return p.header.AllocatedPage }
