package storage

import (
	"bytes"
	"encoding/binary"
)

// nodeHeaderSize is the fixed header at the start of every B+-tree page
// (§4.3): size:int32 | first_ptr:int32.
const nodeHeaderSize = 8

// BPTreeNode is an in-memory editable view of one B+-tree page (§4.3). It
// wraps the page's byte buffer directly — mutations write straight through
// to the cached Page, which the BufferPool later writes back to disk. (The
// source design serializes a node on destruction; Go has no destructors, so
// this adaptation writes through immediately instead of batching, per the
// guidance in §9 to make page lifetime explicit rather than reproduce
// manual memory management.)
//
// Position convention (§4.3): positions 1..Size() index keys, positions
// 0..Size() index pointers. Key(pos) is only valid for pos in 1..Size().
type BPTreeNode struct {
	page    *Page
	keyLen  int
	removed bool
}

func (n *BPTreeNode) entrySize() int { return n.keyLen + 4 }

// LoadNode parses an existing page as a B+-tree node.
func LoadNode(page *Page, keyLen int) *BPTreeNode {
	return &BPTreeNode{page: page, keyLen: keyLen}
}

// InitNode blanks page into an empty node with the given first pointer.
// leaf = (firstPtr == -1), per §4.3.
func InitNode(page *Page, firstPtr int32, keyLen int) *BPTreeNode {
	n := &BPTreeNode{page: page, keyLen: keyLen}
	n.setSize(0)
	n.setFirstPtr(firstPtr)
	n.page.Dirty = true
	return n
}

func (n *BPTreeNode) buf() []byte { return n.page.Bytes[:] }

func (n *BPTreeNode) Size() int {
	return int(binary.LittleEndian.Uint32(n.buf()[0:4]))
}

func (n *BPTreeNode) setSize(sz int) {
	binary.LittleEndian.PutUint32(n.buf()[0:4], uint32(sz))
}

func (n *BPTreeNode) firstPtrRaw() int32 {
	return int32(binary.LittleEndian.Uint32(n.buf()[4:8]))
}

func (n *BPTreeNode) setFirstPtr(p int32) {
	binary.LittleEndian.PutUint32(n.buf()[4:8], uint32(p))
}

// IsLeaf reports whether this node is a leaf (first_ptr == -1, §3).
func (n *BPTreeNode) IsLeaf() bool { return n.firstPtrRaw() == -1 }

// PageID returns the id of the underlying page.
func (n *BPTreeNode) PageID() PageID { return n.page.ID }

func (n *BPTreeNode) entryOffset(idx int) int {
	return nodeHeaderSize + idx*n.entrySize()
}

// Key returns the key at 1-indexed key position pos (1..Size()).
func (n *BPTreeNode) Key(pos int) []byte {
	off := n.entryOffset(pos - 1)
	k := make([]byte, n.keyLen)
	copy(k, n.buf()[off:off+n.keyLen])
	return k
}

// SetKey overwrites the key at 1-indexed key position pos.
func (n *BPTreeNode) SetKey(pos int, k []byte) {
	off := n.entryOffset(pos - 1)
	copy(n.buf()[off:off+n.keyLen], k)
	n.page.Dirty = true
}

// Pointer returns the pointer at 0-indexed pointer position pos (0..Size()).
// Pointer(0) is first_ptr; Pointer(i) for i>0 is the pointer paired with Key(i).
func (n *BPTreeNode) Pointer(pos int) int32 {
	if pos == 0 {
		return n.firstPtrRaw()
	}
	off := n.entryOffset(pos-1) + n.keyLen
	return int32(binary.LittleEndian.Uint32(n.buf()[off : off+4]))
}

// SetPointer overwrites the pointer at pointer position pos.
func (n *BPTreeNode) SetPointer(pos int, p int32) {
	if pos == 0 {
		n.setFirstPtr(p)
		n.page.Dirty = true
		return
	}
	off := n.entryOffset(pos-1) + n.keyLen
	binary.LittleEndian.PutUint32(n.buf()[off:off+4], uint32(p))
	n.page.Dirty = true
}

// FindPosition returns the number of keys <= k (an upper bound position in
// 0..Size(), per §4.3): the child pointer index in internal nodes, the
// insertion point in leaves, and the candidate duplicate-key index when
// pos>0 and Key(pos)==k.
func (n *BPTreeNode) FindPosition(k []byte) int {
	size := n.Size()
	pos := 0
	for pos < size && bytes.Compare(n.Key(pos+1), k) <= 0 {
		pos++
	}
	return pos
}

func (n *BPTreeNode) entryBytes(idx int) []byte {
	off := n.entryOffset(idx)
	return n.buf()[off : off+n.entrySize()]
}

// Insert adds a new (k, p) pair so it becomes key position pos+1, shifting
// later entries right. pos is the 0-indexed entries-array slot, exactly the
// value FindPosition returns when k is not already present.
func (n *BPTreeNode) Insert(pos int, k []byte, p int32) {
	size := n.Size()
	for i := size; i > pos; i-- {
		copy(n.entryBytes(i), n.entryBytes(i-1))
	}
	data := make([]byte, n.entrySize())
	copy(data[:n.keyLen], k)
	binary.LittleEndian.PutUint32(data[n.keyLen:], uint32(p))
	copy(n.entryBytes(pos), data)
	n.setSize(size + 1)
	n.page.Dirty = true
}

// Remove deletes the entry at 1-indexed key position pos (the value
// FindPosition returns when Key(pos)==k, i.e. entries-array index pos-1).
func (n *BPTreeNode) Remove(pos int) {
	size := n.Size()
	idx := pos - 1
	for i := idx; i < size-1; i++ {
		copy(n.entryBytes(i), n.entryBytes(i+1))
	}
	n.setSize(size - 1)
	n.page.Dirty = true
}

// append adds (k, p) as the new last entry.
func (n *BPTreeNode) append(k []byte, p int32) {
	n.Insert(n.Size(), k, p)
}

// Split divides a full node (Size()==order) in half, per §4.3. newPage must
// be a freshly allocated, blank page. Returns the new right sibling and the
// separator key promoted to the parent.
func (n *BPTreeNode) Split(newPage *Page) (newNode *BPTreeNode, outKey []byte) {
	size := n.Size()
	m := size / 2
	outKey = n.Key(m + 1)

	if n.IsLeaf() {
		newNode = InitNode(newPage, -1, n.keyLen)
		for i := m + 1; i <= size; i++ {
			newNode.append(n.Key(i), n.Pointer(i))
		}
		n.setSize(m)
	} else {
		newNode = InitNode(newPage, n.Pointer(m+1), n.keyLen)
		for i := m + 2; i <= size; i++ {
			newNode.append(n.Key(i), n.Pointer(i))
		}
		n.setSize(m)
	}
	n.page.Dirty = true
	return newNode, outKey
}

// Borrow rebalances an underflowed node against a sibling with spare
// entries (§4.3), returning the new parent separator key.
func (n *BPTreeNode) Borrow(sibling *BPTreeNode, left bool, parentKey []byte) []byte {
	if left {
		lastPos := sibling.Size()
		survK := sibling.Key(lastPos)
		survP := sibling.Pointer(lastPos)
		if n.IsLeaf() {
			n.Insert(0, survK, survP)
			sibling.Remove(lastPos)
			return survK
		}
		oldFirst := n.Pointer(0)
		n.Insert(0, parentKey, oldFirst)
		n.SetPointer(0, survP)
		sibling.Remove(lastPos)
		return survK
	}

	// Right sibling: symmetric.
	if n.IsLeaf() {
		k := sibling.Key(1)
		p := sibling.Pointer(1)
		n.append(k, p)
		sibling.Remove(1)
		return sibling.Key(1)
	}
	oldSiblingFirst := sibling.Pointer(0)
	survK := sibling.Key(1)
	newSiblingFirst := sibling.Pointer(1)
	n.append(parentKey, oldSiblingFirst)
	sibling.Remove(1)
	sibling.SetPointer(0, newSiblingFirst)
	return survK
}

// MergeRight absorbs sibling (the right sibling) into n. The caller must
// free sibling's page afterward.
func (n *BPTreeNode) MergeRight(sibling *BPTreeNode, parentKey []byte) {
	if !n.IsLeaf() {
		n.append(parentKey, sibling.Pointer(0))
	}
	for i := 1; i <= sibling.Size(); i++ {
		n.append(sibling.Key(i), sibling.Pointer(i))
	}
	sibling.MarkRemoved()
}

// MarkRemoved flags this node's page as logically freed: its content is no
// longer meaningful and the page is about to be returned to the tree's
// free-page list.
func (n *BPTreeNode) MarkRemoved() { n.removed = true }

// Removed reports whether MarkRemoved was called.
func (n *BPTreeNode) Removed() bool { return n.removed }
