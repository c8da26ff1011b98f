package storage

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestBufferPoolCacheCoherence(t *testing.T) {
	dir := t.TempDir()
	pool := NewBufferPool(dir, DefaultCapacity)
	defer pool.Close()

	if err := pool.CreateFile("f"); err != nil {
		t.Fatal(err)
	}
	page, err := pool.Get("f", 0)
	if err != nil {
		t.Fatal(err)
	}
	binary.LittleEndian.PutUint32(page.Bytes[0:4], 0xdeadbeef)
	page.Dirty = true

	again, err := pool.Get("f", 0)
	if err != nil {
		t.Fatal(err)
	}
	if binary.LittleEndian.Uint32(again.Bytes[0:4]) != 0xdeadbeef {
		t.Fatalf("cache did not return the latest bytes")
	}
}

func TestBufferPoolEvictsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	pool := NewBufferPool(dir, 4)
	defer pool.Close()

	if err := pool.CreateFile("f"); err != nil {
		t.Fatal(err)
	}
	for i := int32(0); i < 4; i++ {
		page, err := pool.Get("f", PageID(i))
		if err != nil {
			t.Fatal(err)
		}
		page.Bytes[0] = byte(i + 1)
		page.Dirty = true
	}
	// Touch everything but page 0 so page 0 is the LRU victim.
	for i := int32(1); i < 4; i++ {
		if _, err := pool.Get("f", PageID(i)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := pool.Get("f", 4); err != nil { // forces an eviction
		t.Fatal(err)
	}

	path := filepath.Join(dir, "f.mdb")
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, 0); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 1 {
		t.Fatalf("expected page 0's dirty byte to be flushed on eviction, got %d", buf[0])
	}
}

func TestBufferPoolRemoveFileDropsCache(t *testing.T) {
	dir := t.TempDir()
	pool := NewBufferPool(dir, DefaultCapacity)
	defer pool.Close()

	if err := pool.CreateFile("f"); err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Get("f", 0); err != nil {
		t.Fatal(err)
	}
	if err := pool.RemoveFile("f"); err != nil {
		t.Fatal(err)
	}
	if _, ok := pool.frames[pageKey{filename: "f", id: 0}]; ok {
		t.Fatal("page 0 still cached after RemoveFile")
	}
	if _, err := os.Stat(filepath.Join(dir, "f.mdb")); !os.IsNotExist(err) {
		t.Fatal("file still exists after RemoveFile")
	}
}
