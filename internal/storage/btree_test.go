package storage

import (
	"encoding/binary"
	"testing"
)

func int32Key(n int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(n))
	return b
}

func TestBPTreeInsertAndFindOneHundredKeys(t *testing.T) {
	pool := NewBufferPool(t.TempDir(), DefaultCapacity)
	defer pool.Close()

	tree, err := CreateBPTree(pool, "index/i", 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	for k := int32(1); k <= 100; k++ {
		ok, err := tree.Insert(int32Key(k), k)
		if err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
		if !ok {
			t.Fatalf("Insert(%d) reported duplicate unexpectedly", k)
		}
		assertBalanced(t, tree)
	}

	for k := int32(1); k <= 100; k++ {
		v, found, err := tree.Find(int32Key(k))
		if err != nil {
			t.Fatal(err)
		}
		if !found || v != k {
			t.Fatalf("Find(%d) = %v,%v, want %d,true", k, v, found, k)
		}
	}
	if _, found, err := tree.Find(int32Key(101)); err != nil || found {
		t.Fatalf("Find(101) should be NOT-FOUND, got found=%v err=%v", found, err)
	}
}

func TestBPTreeDuplicateKeyRejected(t *testing.T) {
	pool := NewBufferPool(t.TempDir(), DefaultCapacity)
	defer pool.Close()
	tree, err := CreateBPTree(pool, "index/i", 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := tree.Insert(int32Key(1), 1); err != nil || !ok {
		t.Fatal(err)
	}
	if ok, err := tree.Insert(int32Key(1), 2); err != nil || ok {
		t.Fatalf("duplicate insert should fail, got ok=%v err=%v", ok, err)
	}
}

func TestBPTreeDeleteCollapsesToSingleLeafRoot(t *testing.T) {
	pool := NewBufferPool(t.TempDir(), DefaultCapacity)
	defer pool.Close()
	tree, err := CreateBPTree(pool, "index/i", 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	for k := int32(1); k <= 100; k++ {
		if _, err := tree.Insert(int32Key(k), k); err != nil {
			t.Fatal(err)
		}
	}
	for k := int32(1); k <= 99; k++ {
		ok, err := tree.Delete(int32Key(k))
		if err != nil {
			t.Fatalf("Delete(%d): %v", k, err)
		}
		if !ok {
			t.Fatalf("Delete(%d) should succeed", k)
		}
		assertBalanced(t, tree)
	}

	v, found, err := tree.Find(int32Key(100))
	if err != nil || !found || v != 100 {
		t.Fatalf("Find(100) = %v,%v,%v, want 100,true,nil", v, found, err)
	}

	page, err := pool.Get("index/i", tree.root)
	if err != nil {
		t.Fatal(err)
	}
	node := LoadNode(page, 4)
	if !node.IsLeaf() || node.Size() != 1 {
		t.Fatalf("expected root to be a single leaf with 1 entry, got leaf=%v size=%d", node.IsLeaf(), node.Size())
	}
}

func TestBPTreeDeleteMissingKeyFails(t *testing.T) {
	pool := NewBufferPool(t.TempDir(), DefaultCapacity)
	defer pool.Close()
	tree, err := CreateBPTree(pool, "index/i", 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tree.Insert(int32Key(1), 1); err != nil {
		t.Fatal(err)
	}
	if ok, err := tree.Delete(int32Key(2)); err != nil || ok {
		t.Fatalf("Delete of absent key should fail, got ok=%v err=%v", ok, err)
	}
}

// assertBalanced walks every node reachable from the root and checks
// invariant 5 (§3, §8 testable property 5).
func assertBalanced(t *testing.T, tree *BPTree) {
	t.Helper()
	if tree.root == -1 {
		return
	}
	min := tree.minKeys()
	var walk func(pid PageID, isRoot bool) int
	walk = func(pid PageID, isRoot bool) int {
		page, err := tree.pool.Get(tree.file, pid)
		if err != nil {
			t.Fatal(err)
		}
		node := LoadNode(page, tree.keyLen)
		if !isRoot && node.Size() < min {
			t.Fatalf("node %d underflowed: size=%d < min=%d", pid, node.Size(), min)
		}
		if node.Size() > tree.order-1 {
			t.Fatalf("node %d overflowed: size=%d > max=%d", pid, node.Size(), tree.order-1)
		}
		depth := 0
		if !node.IsLeaf() {
			for i := 0; i <= node.Size(); i++ {
				d := walk(PageID(node.Pointer(i)), false)
				if depth == 0 {
					depth = d
				} else if d != depth {
					t.Fatalf("unbalanced subtree depths under node %d", pid)
				}
			}
			return depth + 1
		}
		return 1
	}
	walk(tree.root, true)
}
