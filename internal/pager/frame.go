package pager

// FrameID addresses a frame globally across every open buffer pool
// (spec.md §4.1: "Frames are addressed by FrameId = (buffer_pool_id,
// page_num)").
type FrameID struct {
	BufferPoolID uint32
	PageNum      PageNum
}

// FrameOwner is implemented by a Pool so the shared FrameManager can ask
// the owning pool to flush one of its dirty frames during eviction,
// without FrameManager importing Pool (they live in the same package here,
// but the indirection keeps flush policy local to the pool that knows
// about its double-write buffer and log handler).
type FrameOwner interface {
	// flushFrame flushes a dirty frame through the owner's double-write
	// path and clears its dirty bit. Implementations must acquire
	// whatever locking they need themselves — FrameManager calls this
	// without holding any owner-specific lock.
	flushFrame(f *Frame) error
}

// Frame is the in-memory carrier of one page (spec.md §3): owning pool id,
// page number, pin count, dirty flag, backing page.
type Frame struct {
	id     FrameID
	page   Page
	pin    int
	dirty  bool
	owner  FrameOwner
	prev   *Frame
	next   *Frame
}

// Pin increments the pin count, preventing eviction.
func (f *Frame) Pin() { f.pin++ }

// Unpin decrements the pin count. It is a programming error to unpin past
// zero (spec.md §3 invariant: "Pin count never goes negative").
func (f *Frame) Unpin() {
	if f.pin <= 0 {
		panic("pager: unpin called on frame with zero pin count")
	}
	f.pin--
}

// PinCount returns the current pin count.
func (f *Frame) PinCount() int { return f.pin }

// Dirty reports the frame's dirty flag.
func (f *Frame) Dirty() bool { return f.dirty }

// MarkDirty sets the dirty flag; called on any payload mutation.
func (f *Frame) MarkDirty() { f.dirty = true }

// Page returns a pointer to the frame's backing page for in-place
// mutation. Callers must call MarkDirty after mutating.
func (f *Frame) Page() *Page { return &f.page }

// PageNum returns the frame's page number.
func (f *Frame) PageNum() PageNum { return f.id.PageNum }
