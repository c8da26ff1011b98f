package storage

import (
	"bytes"
	"encoding/binary"
)

// btreeHeaderSize is the size of the B+-tree file header on page 0 (§4.4):
// order | keyLen | nodeCount | root | firstEmpty, each an int32.
const btreeHeaderSize = 20

// NotFoundRecordID is returned by Find when the key is absent.
const NotFoundRecordID int32 = -1

// BPTree is a disk-resident B+-tree index sharing the process-wide
// BufferPool (§4.4, §4.5). Keys are fixed-width byte arrays of length
// KeyLen; values are record-ids (int32) into a table's HeapFile.
type BPTree struct {
	pool   *BufferPool
	file   string
	order  int
	keyLen int

	nodeCount  int32
	root       PageID
	firstEmpty int32
}

// DefaultOrder computes the fanout that exactly fills one page's
// key/pointer capacity (§4.4): order = (4096-8)/(keyLen+4) + 1.
func DefaultOrder(keyLen int) int {
	return (PageSize-nodeHeaderSize)/(keyLen+4) + 1
}

// CreateBPTree creates a brand-new, empty index file. order<=0 selects
// DefaultOrder(keyLen).
func CreateBPTree(pool *BufferPool, filename string, keyLen int, order int) (*BPTree, error) {
	if order <= 0 {
		order = DefaultOrder(keyLen)
	}
	if err := pool.CreateFile(filename); err != nil {
		return nil, err
	}
	t := &BPTree{
		pool: pool, file: filename, order: order, keyLen: keyLen,
		nodeCount: 1, root: -1, firstEmpty: -1,
	}
	if err := t.persistHeader(); err != nil {
		return nil, err
	}
	return t, nil
}

// OpenBPTree opens an existing index file, reading its header (order and
// keyLen are recovered from disk, not re-specified by the caller).
func OpenBPTree(pool *BufferPool, filename string) (*BPTree, error) {
	t := &BPTree{pool: pool, file: filename}
	if err := t.loadHeader(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *BPTree) loadHeader() error {
	page, err := t.pool.Get(t.file, 0)
	if err != nil {
		return err
	}
	b := page.Bytes[:]
	t.order = int(binary.LittleEndian.Uint32(b[0:4]))
	t.keyLen = int(binary.LittleEndian.Uint32(b[4:8]))
	t.nodeCount = int32(binary.LittleEndian.Uint32(b[8:12]))
	t.root = PageID(int32(binary.LittleEndian.Uint32(b[12:16])))
	t.firstEmpty = int32(binary.LittleEndian.Uint32(b[16:20]))
	return nil
}

func (t *BPTree) persistHeader() error {
	page, err := t.pool.Get(t.file, 0)
	if err != nil {
		return err
	}
	b := page.Bytes[:]
	binary.LittleEndian.PutUint32(b[0:4], uint32(t.order))
	binary.LittleEndian.PutUint32(b[4:8], uint32(t.keyLen))
	binary.LittleEndian.PutUint32(b[8:12], uint32(t.nodeCount))
	binary.LittleEndian.PutUint32(b[12:16], uint32(int32(t.root)))
	binary.LittleEndian.PutUint32(b[16:20], uint32(t.firstEmpty))
	page.Dirty = true
	return nil
}

// minKeys is the lower occupancy bound for any non-root node (invariant 5,
// §3): ⌈(order+1)/2⌉−1.
func (t *BPTree) minKeys() int {
	return (t.order+2)/2 - 1
}

// allocPage returns a fresh page id, reusing the free-page list (§4.4)
// before extending the file.
func (t *BPTree) allocPage() (PageID, *Page, error) {
	if t.firstEmpty >= 0 {
		pid := PageID(t.firstEmpty)
		page, err := t.pool.Get(t.file, pid)
		if err != nil {
			return 0, nil, err
		}
		t.firstEmpty = int32(binary.LittleEndian.Uint32(page.Bytes[0:4]))
		return pid, page, nil
	}
	pid := PageID(t.nodeCount)
	t.nodeCount++
	page, err := t.pool.Get(t.file, pid)
	if err != nil {
		return 0, nil, err
	}
	return pid, page, nil
}

// freePage threads pid onto the head of the free-page list.
func (t *BPTree) freePage(pid PageID) error {
	page, err := t.pool.Get(t.file, pid)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(page.Bytes[0:4], uint32(t.firstEmpty))
	page.Dirty = true
	t.firstEmpty = int32(pid)
	return nil
}

// Find descends from the root, returning the record-id for k (§4.4).
func (t *BPTree) Find(k []byte) (int32, bool, error) {
	if t.root == -1 {
		return NotFoundRecordID, false, nil
	}
	pid := t.root
	for {
		page, err := t.pool.Get(t.file, pid)
		if err != nil {
			return 0, false, err
		}
		node := LoadNode(page, t.keyLen)
		pos := node.FindPosition(k)
		if node.IsLeaf() {
			if pos > 0 && bytes.Equal(node.Key(pos), k) {
				return node.Pointer(pos), true, nil
			}
			return NotFoundRecordID, false, nil
		}
		pid = PageID(node.Pointer(pos))
	}
}

type insertOutcome struct {
	duplicate bool
	add       bool
	outKey    []byte
	newChild  int32
}

// Insert adds (k, v). ok is false (DUPLICATE, §4.4) if k is already present.
func (t *BPTree) Insert(k []byte, v int32) (ok bool, err error) {
	if t.root == -1 {
		pid, page, err := t.allocPage()
		if err != nil {
			return false, err
		}
		node := InitNode(page, -1, t.keyLen)
		node.Insert(0, k, v)
		t.root = pid
		return true, t.persistHeader()
	}

	res, err := t.insertRec(t.root, k, v)
	if err != nil {
		return false, err
	}
	if res.duplicate {
		return false, nil
	}
	if res.add {
		pid, page, err := t.allocPage()
		if err != nil {
			return false, err
		}
		newRoot := InitNode(page, int32(t.root), t.keyLen)
		newRoot.Insert(0, res.outKey, res.newChild)
		t.root = pid
	}
	if err := t.persistHeader(); err != nil {
		return false, err
	}
	return true, nil
}

func (t *BPTree) insertRec(pid PageID, k []byte, v int32) (insertOutcome, error) {
	page, err := t.pool.Get(t.file, pid)
	if err != nil {
		return insertOutcome{}, err
	}
	node := LoadNode(page, t.keyLen)

	if node.IsLeaf() {
		pos := node.FindPosition(k)
		if pos > 0 && bytes.Equal(node.Key(pos), k) {
			return insertOutcome{duplicate: true}, nil
		}
		node.Insert(pos, k, v)
		if node.Size() >= t.order {
			newPid, newPage, err := t.allocPage()
			if err != nil {
				return insertOutcome{}, err
			}
			_, outKey := node.Split(newPage)
			return insertOutcome{add: true, outKey: outKey, newChild: int32(newPid)}, nil
		}
		return insertOutcome{}, nil
	}

	pos := node.FindPosition(k)
	childPid := PageID(node.Pointer(pos))
	childRes, err := t.insertRec(childPid, k, v)
	if err != nil || childRes.duplicate {
		return childRes, err
	}
	if childRes.add {
		insertPos := node.FindPosition(childRes.outKey)
		node.Insert(insertPos, childRes.outKey, childRes.newChild)
	}
	if node.Size() >= t.order {
		newPid, newPage, err := t.allocPage()
		if err != nil {
			return insertOutcome{}, err
		}
		_, outKey := node.Split(newPage)
		return insertOutcome{add: true, outKey: outKey, newChild: int32(newPid)}, nil
	}
	return insertOutcome{}, nil
}

type deleteOutcome int

const (
	deleteFailed deleteOutcome = iota
	deleteNormal
	deleteChange
	deleteUnderflow
)

type deleteResult struct {
	outcome deleteOutcome
	newKey  []byte
}

// Delete removes k, if present (§4.4). ok is false if k was not found.
func (t *BPTree) Delete(k []byte) (ok bool, err error) {
	if t.root == -1 {
		return false, nil
	}
	res, err := t.deleteRec(t.root, k)
	if err != nil {
		return false, err
	}
	if res.outcome == deleteFailed {
		return false, nil
	}

	// A root leaf that became empty means the tree is now empty (§3, §8
	// testable property 5: "or the tree is empty").
	rootPage, err := t.pool.Get(t.file, t.root)
	if err != nil {
		return false, err
	}
	rootNode := LoadNode(rootPage, t.keyLen)
	if rootNode.IsLeaf() && rootNode.Size() == 0 {
		if err := t.freePage(t.root); err != nil {
			return false, err
		}
		t.root = -1
	}

	if err := t.persistHeader(); err != nil {
		return false, err
	}
	return true, nil
}

func (t *BPTree) deleteRec(pid PageID, k []byte) (deleteResult, error) {
	page, err := t.pool.Get(t.file, pid)
	if err != nil {
		return deleteResult{}, err
	}
	node := LoadNode(page, t.keyLen)
	isRoot := pid == t.root

	if node.IsLeaf() {
		pos := node.FindPosition(k)
		if pos == 0 || !bytes.Equal(node.Key(pos), k) {
			return deleteResult{outcome: deleteFailed}, nil
		}
		node.Remove(pos)
		if isRoot || node.Size() >= t.minKeys() {
			return deleteResult{outcome: deleteNormal}, nil
		}
		return deleteResult{outcome: deleteUnderflow}, nil
	}

	pos := node.FindPosition(k)
	childPid := PageID(node.Pointer(pos))
	childRes, err := t.deleteRec(childPid, k)
	if err != nil || childRes.outcome == deleteFailed {
		return childRes, err
	}
	if childRes.outcome == deleteNormal {
		return deleteResult{outcome: deleteNormal}, nil
	}
	if childRes.outcome == deleteChange {
		sepPos := pos
		if pos == 0 {
			sepPos = 1
		}
		node.SetKey(sepPos, childRes.newKey)
		return deleteResult{outcome: deleteNormal}, nil
	}

	// childRes.outcome == deleteUnderflow: choose a sibling for childPid
	// (§4.4) and rebalance.
	var siblingPid PageID
	var siblingIsLeft bool
	var parentKey []byte
	if pos > 0 {
		siblingPid = PageID(node.Pointer(pos - 1))
		siblingIsLeft = true
		parentKey = node.Key(pos)
	} else {
		siblingPid = PageID(node.Pointer(pos + 1))
		siblingIsLeft = false
		parentKey = node.Key(pos + 1)
	}

	childPage, err := t.pool.Get(t.file, childPid)
	if err != nil {
		return deleteResult{}, err
	}
	childNode := LoadNode(childPage, t.keyLen)
	siblingPage, err := t.pool.Get(t.file, siblingPid)
	if err != nil {
		return deleteResult{}, err
	}
	siblingNode := LoadNode(siblingPage, t.keyLen)

	if siblingNode.Size() > t.minKeys() {
		newSep := childNode.Borrow(siblingNode, siblingIsLeft, parentKey)
		if siblingIsLeft {
			node.SetKey(pos, newSep)
		} else {
			node.SetKey(pos+1, newSep)
		}
		return deleteResult{outcome: deleteNormal}, nil
	}

	if siblingIsLeft {
		siblingNode.MergeRight(childNode, parentKey)
		if err := t.freePage(childPid); err != nil {
			return deleteResult{}, err
		}
		node.Remove(pos)
	} else {
		childNode.MergeRight(siblingNode, parentKey)
		if err := t.freePage(siblingPid); err != nil {
			return deleteResult{}, err
		}
		node.Remove(pos + 1)
	}

	if isRoot {
		if node.Size() == 0 {
			newRoot := PageID(node.Pointer(0))
			if err := t.freePage(t.root); err != nil {
				return deleteResult{}, err
			}
			t.root = newRoot
		}
		return deleteResult{outcome: deleteNormal}, nil
	}
	if node.Size() >= t.minKeys() {
		return deleteResult{outcome: deleteNormal}, nil
	}
	return deleteResult{outcome: deleteUnderflow}, nil
}

// NodeCount returns the number of pages ever allocated, header page 0
// included (freed pages still count against the high-water mark).
func (t *BPTree) NodeCount() int32 { return t.nodeCount }

// FreePageCount walks the free-page list and returns its length.
func (t *BPTree) FreePageCount() (int, error) {
	n := 0
	pid := t.firstEmpty
	for pid >= 0 {
		n++
		page, err := t.pool.Get(t.file, PageID(pid))
		if err != nil {
			return 0, err
		}
		pid = int32(binary.LittleEndian.Uint32(page.Bytes[0:4]))
	}
	return n, nil
}

// Root returns the current root page id, or -1 for an empty tree.
func (t *BPTree) Root() PageID { return t.root }

// KeyLen returns the fixed key width for this tree.
func (t *BPTree) KeyLen() int { return t.keyLen }

// Order returns the tree's fanout limit.
func (t *BPTree) Order() int { return t.order }
