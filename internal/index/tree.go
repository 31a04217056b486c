package index

import (
	"fmt"

	"github.com/xzxg001/miniob-sub000/internal/pager"
	"github.com/xzxg001/miniob-sub000/internal/rc"
	"github.com/xzxg001/miniob-sub000/internal/record"
)

// Tree is a B+Tree keyed by an order-preserving byte encoding of one
// indexed field's values (see EncodeKey),
// mapping each key to the record.RID of the row that holds it. Grounded
// on tinySQL's internal/storage/pager/btree.go: findLeaf descends via
// Node.findChild, Insert splits bottom-up via insertWithSplit +
// insertIntoParent, RangeScan walks the leaf sibling chain.
type Tree struct {
	pool *pager.Pool
	root pager.PageNum
}

// Create allocates a fresh, empty tree (a single empty leaf as root).
func Create(pool *pager.Pool) (*Tree, error) {
	f, err := pool.AllocatePage()
	if err != nil {
		return nil, fmt.Errorf("index: create: %w", err)
	}
	InitLeaf(f.Page().Data[:])
	f.MarkDirty()
	root := f.PageNum()
	pool.UnpinPage(f)
	return &Tree{pool: pool, root: root}, nil
}

// Open wraps an existing tree whose root is already at rootPage (read
// back from table metadata/catalog).
func Open(pool *pager.Pool, rootPage pager.PageNum) *Tree {
	return &Tree{pool: pool, root: rootPage}
}

// RootPageNum returns the current root page, for persisting into table
// metadata.
func (t *Tree) RootPageNum() pager.PageNum { return t.root }

func toIndexRID(r record.RID) indexRID { return indexRID{PageNum: int32(r.PageNum), SlotNum: r.SlotNum} }
func fromIndexRID(r indexRID) record.RID {
	return record.RID{PageNum: pager.PageNum(r.PageNum), SlotNum: r.SlotNum}
}

// findLeaf descends from root to the leaf that would hold key, returning
// the full root-to-leaf path of page numbers (path[len-1] is the leaf).
func (t *Tree) findLeaf(key []byte) ([]pager.PageNum, error) {
	path := []pager.PageNum{t.root}
	cur := t.root
	for {
		f, err := t.pool.GetPage(cur)
		if err != nil {
			return nil, err
		}
		n := WrapNode(f.Page().Data[:])
		isLeaf := n.IsLeaf()
		var next pager.PageNum
		if !isLeaf {
			next = n.findChild(key)
		}
		t.pool.UnpinPage(f)
		if isLeaf {
			return path, nil
		}
		cur = next
		path = append(path, cur)
	}
}

// Search returns the RID stored under key, if any (point lookup).
func (t *Tree) Search(key []byte) (record.RID, bool, error) {
	path, err := t.findLeaf(key)
	if err != nil {
		return record.RID{}, false, err
	}
	leafPN := path[len(path)-1]
	f, err := t.pool.GetPage(leafPN)
	if err != nil {
		return record.RID{}, false, err
	}
	defer t.pool.UnpinPage(f)
	n := WrapNode(f.Page().Data[:])
	pos, ok := n.findLeafEntry(key)
	if !ok {
		return record.RID{}, false, nil
	}
	return fromIndexRID(n.leafEntry(pos).RID), true, nil
}

// Insert adds key -> rid, splitting nodes bottom-up as needed (spec.md
// B+Tree index component).
func (t *Tree) Insert(key []byte, rid record.RID) error {
	path, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	leafPN := path[len(path)-1]
	f, err := t.pool.GetPage(leafPN)
	if err != nil {
		return err
	}
	n := WrapNode(f.Page().Data[:])
	if _, ok := n.insertLeafEntry(leafEntry{Key: key, RID: toIndexRID(rid)}); ok {
		f.MarkDirty()
		t.pool.UnpinPage(f)
		return nil
	}
	t.pool.UnpinPage(f)
	return t.insertWithSplit(path, key, rid)
}

// insertWithSplit handles the case where the target leaf has no room:
// split it into two leaves linked by sibling pointers, then propagate a
// new separator key up the path, splitting internal nodes in turn.
func (t *Tree) insertWithSplit(path []pager.PageNum, key []byte, rid record.RID) error {
	leafPN := path[len(path)-1]
	lf, err := t.pool.GetPage(leafPN)
	if err != nil {
		return err
	}
	left := WrapNode(lf.Page().Data[:])

	rf, err := t.pool.AllocatePage()
	if err != nil {
		t.pool.UnpinPage(lf)
		return fmt.Errorf("index: split: %w", err)
	}
	right := InitLeaf(rf.Page().Data[:])
	rightPN := rf.PageNum()

	mid := left.splitPoint()
	entries := make([]leafEntry, 0, left.SlotCount())
	for i := 0; i < left.SlotCount(); i++ {
		entries = append(entries, left.leafEntry(i))
	}

	for left.SlotCount() > mid {
		left.deleteLeafAt(left.SlotCount() - 1)
	}
	for i := mid; i < len(entries); i++ {
		right.insertLeafEntry(entries[i])
	}

	right.SetNextLeaf(left.NextLeaf())
	right.SetPrevLeaf(leafPN)
	left.SetNextLeaf(rightPN)

	sepKey := entries[mid].Key
	target := left
	if compareKeys(key, sepKey) >= 0 {
		target = right
	}
	if _, ok := target.insertLeafEntry(leafEntry{Key: key, RID: toIndexRID(rid)}); !ok {
		t.pool.UnpinPage(lf)
		t.pool.UnpinPage(rf)
		return rc.Errorf(rc.INTERNAL, "index: split leaf still full after split")
	}

	lf.MarkDirty()
	rf.MarkDirty()
	t.pool.UnpinPage(lf)
	t.pool.UnpinPage(rf)

	return t.insertIntoParent(path[:len(path)-1], leafPN, sepKey, rightPN)
}

// insertIntoParent adds a (sepKey, rightID) separator into the parent of
// leftID, identified by path (path excludes the child level). An empty
// path means leftID was the root, in which case a new root is created.
// leftID is reused as the left half of whatever just split, so its
// existing slot in the parent (found by ChildID, or RightChild if it was
// the catch-all pointer) must be repointed at rightID once sepKey's new
// entry takes over leftID's old position.
func (t *Tree) insertIntoParent(path []pager.PageNum, leftID pager.PageNum, sepKey []byte, rightID pager.PageNum) error {
	if len(path) == 0 {
		return t.createNewRoot(leftID, sepKey, rightID)
	}
	parentPN := path[len(path)-1]
	pf, err := t.pool.GetPage(parentPN)
	if err != nil {
		return err
	}
	parent := WrapNode(pf.Page().Data[:])

	foundIdx := -1
	for i := 0; i < parent.SlotCount(); i++ {
		if parent.internalEntry(i).ChildID == leftID {
			foundIdx = i
			break
		}
	}

	if parent.insertInternalEntry(internalEntry{Key: sepKey, ChildID: leftID}) {
		if foundIdx >= 0 {
			parent.setInternalChild(foundIdx+1, rightID)
		} else {
			parent.SetRightChild(rightID)
		}
		pf.MarkDirty()
		t.pool.UnpinPage(pf)
		return nil
	}
	t.pool.UnpinPage(pf)
	return t.splitInternal(path, leftID, sepKey, rightID)
}

// splitInternal splits a full internal node, propagating the median
// separator up to its own parent. It first computes the entry list as
// if the (sepKey, leftID/rightID) insertion had succeeded without a
// capacity limit, repointing leftID's old slot at rightID exactly as
// insertIntoParent would, then divides that list at its median.
func (t *Tree) splitInternal(path []pager.PageNum, leftID pager.PageNum, sepKey []byte, rightID pager.PageNum) error {
	parentPN := path[len(path)-1]
	pf, err := t.pool.GetPage(parentPN)
	if err != nil {
		return err
	}
	parent := WrapNode(pf.Page().Data[:])

	entries := make([]internalEntry, 0, parent.SlotCount()+1)
	finalRight := parent.RightChild()
	inserted := false
	for i := 0; i < parent.SlotCount(); i++ {
		e := parent.internalEntry(i)
		if !inserted && compareKeys(sepKey, e.Key) < 0 {
			entries = append(entries, internalEntry{Key: sepKey, ChildID: leftID})
			inserted = true
		}
		if e.ChildID == leftID {
			e.ChildID = rightID
		}
		entries = append(entries, e)
	}
	if !inserted {
		entries = append(entries, internalEntry{Key: sepKey, ChildID: leftID})
		if finalRight == leftID {
			finalRight = rightID
		}
	}

	mid := len(entries) / 2
	medianKey := entries[mid].Key
	leftEntries := entries[:mid]
	rightOfMedian := entries[mid].ChildID
	rightEntries := entries[mid+1:]

	nf, err := t.pool.AllocatePage()
	if err != nil {
		t.pool.UnpinPage(pf)
		return fmt.Errorf("index: split internal: %w", err)
	}
	newRight := InitInternal(nf.Page().Data[:])
	newRightPN := nf.PageNum()
	for _, e := range rightEntries {
		newRight.insertInternalEntry(e)
	}
	newRight.SetRightChild(finalRight)

	for i := parent.SlotCount() - 1; i >= 0; i-- {
		parent.deleteRecordAt(i)
	}
	for _, e := range leftEntries {
		parent.insertInternalEntry(e)
	}
	parent.SetRightChild(rightOfMedian)

	pf.MarkDirty()
	nf.MarkDirty()
	t.pool.UnpinPage(pf)
	t.pool.UnpinPage(nf)
	return t.insertIntoParent(path[:len(path)-1], parentPN, medianKey, newRightPN)
}

// createNewRoot builds a fresh internal root with exactly one separator,
// used when the previous root itself split (tree height grows by one).
func (t *Tree) createNewRoot(leftID pager.PageNum, sepKey []byte, rightID pager.PageNum) error {
	f, err := t.pool.AllocatePage()
	if err != nil {
		return fmt.Errorf("index: new root: %w", err)
	}
	n := InitInternal(f.Page().Data[:])
	n.insertInternalEntry(internalEntry{Key: sepKey, ChildID: leftID})
	n.SetRightChild(rightID)
	f.MarkDirty()
	t.root = f.PageNum()
	t.pool.UnpinPage(f)
	return nil
}

// RangeScan visits every (key, RID) pair with lo <= key <= hi in
// ascending key order, stopping early if visit returns false (spec.md
// §4.8 IndexScan's [value, value] inclusive range; lo==hi implements
// point equality scans).
func (t *Tree) RangeScan(lo, hi []byte, visit func(key []byte, rid record.RID) bool) error {
	path, err := t.findLeaf(lo)
	if err != nil {
		return err
	}
	leafPN := path[len(path)-1]
	for leafPN != pager.InvalidPageNum {
		f, err := t.pool.GetPage(leafPN)
		if err != nil {
			return err
		}
		n := WrapNode(f.Page().Data[:])
		next := n.NextLeaf()
		cont := true
		for i := 0; i < n.SlotCount(); i++ {
			e := n.leafEntry(i)
			if compareKeys(e.Key, lo) < 0 {
				continue
			}
			if compareKeys(e.Key, hi) > 0 {
				cont = false
				break
			}
			if !visit(e.Key, fromIndexRID(e.RID)) {
				cont = false
				break
			}
		}
		t.pool.UnpinPage(f)
		if !cont {
			return nil
		}
		leafPN = next
	}
	return nil
}

func compareKeys(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
