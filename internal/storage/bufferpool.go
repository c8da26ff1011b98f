package storage

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/valyala/bytebufferpool"
)

// DefaultCapacity is the default number of resident pages across all files
// (§4.1): "keeps ≤ 100 resident pages".
const DefaultCapacity = 100

// frame is one LRU-list node wrapping a cached Page.
type frame struct {
	page       *Page
	prev, next *frame
}

// BufferPool is the process-wide LRU cache of Page values, shared by every
// HeapFile and BPTree in the engine (§4.1, §5). Capacity is bounded; the
// least-recently-used unpinned page is evicted on a miss once the pool is
// full. Dirty pages are written back exactly on eviction and at Close.
type BufferPool struct {
	mu       sync.Mutex
	dataDir  string
	capacity int
	files    map[string]*os.File
	frames   map[pageKey]*frame
	head     *frame // most recently used
	tail     *frame // least recently used
	scratch  bytebufferpool.Pool
}

// NewBufferPool creates a pool rooted at dataDir with room for at most
// capacity resident pages. capacity <= 0 selects DefaultCapacity.
func NewBufferPool(dataDir string, capacity int) *BufferPool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &BufferPool{
		dataDir:  dataDir,
		capacity: capacity,
		files:    make(map[string]*os.File),
		frames:   make(map[pageKey]*frame),
	}
}

func (bp *BufferPool) path(filename string) string {
	return filepath.Join(bp.dataDir, filename+".mdb")
}

// CreateFile creates a fresh, empty backing file for filename, truncating
// any existing contents. Callers (HeapFile.Create, BPTree file creation)
// must do this before the first Get on a brand-new file.
func (bp *BufferPool) CreateFile(filename string) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(bp.path(filename)), 0o755); err != nil {
		return wrapIO("create directory for", filename, err)
	}
	if f, ok := bp.files[filename]; ok {
		f.Close()
		bp.evictAllFromLocked(filename)
		delete(bp.files, filename)
	}
	f, err := os.OpenFile(bp.path(filename), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return wrapIO("create", filename, err)
	}
	bp.files[filename] = f
	return nil
}

func (bp *BufferPool) fileLocked(filename string) (*os.File, error) {
	if f, ok := bp.files[filename]; ok {
		return f, nil
	}
	f, err := os.OpenFile(bp.path(filename), os.O_RDWR, 0o644)
	if err != nil {
		// A miss on a file that was never created is a fatal programming
		// error per §4.1: the caller is responsible for CreateFile first.
		return nil, wrapIO("open (file must be created first)", filename, err)
	}
	bp.files[filename] = f
	return f, nil
}

// Get returns an exclusive-use pointer to the page (filename, id), loading
// it from disk on a cache miss. The returned pointer is valid for read and
// write until the next call to Get on this pool (on any file) — a later
// call may evict it.
func (bp *BufferPool) Get(filename string, id PageID) (*Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	key := pageKey{filename: filename, id: id}
	if fr, ok := bp.frames[key]; ok {
		bp.moveToFrontLocked(fr)
		return fr.page, nil
	}

	f, err := bp.fileLocked(filename)
	if err != nil {
		return nil, err
	}

	page := &Page{Filename: filename, ID: id}
	buf := bp.scratch.Get()
	buf.B = append(buf.B[:0], make([]byte, PageSize)...)
	n, err := f.ReadAt(buf.B, int64(id)*PageSize)
	if err != nil && err != io.EOF {
		bp.scratch.Put(buf)
		return nil, wrapIO("read", filename, err)
	}
	copy(page.Bytes[:], buf.B[:n])
	bp.scratch.Put(buf)

	if len(bp.frames) >= bp.capacity {
		if err := bp.evictOneLocked(); err != nil {
			return nil, err
		}
	}
	fr := &frame{page: page}
	bp.frames[key] = fr
	bp.pushFrontLocked(fr)
	return page, nil
}

// RemoveFile drops every cached page belonging to filename without writing
// them back (the caller has already removed, or is about to remove, the
// underlying file) and closes the file handle.
func (bp *BufferPool) RemoveFile(filename string) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	bp.evictAllFromLocked(filename)
	if f, ok := bp.files[filename]; ok {
		f.Close()
		delete(bp.files, filename)
	}
	err := os.Remove(bp.path(filename))
	if err != nil && !os.IsNotExist(err) {
		return wrapIO("remove", filename, err)
	}
	return nil
}

// RenameFile atomically publishes a file staged under a temporary name to
// its permanent filename, evicting any cached pages under the old name so
// the next Get re-reads them under the new key. Used to stage a catalog
// file under a collision-proof scratch name and only make it visible once
// the catalog row that references it has been written (§4.8).
func (bp *BufferPool) RenameFile(oldName, newName string) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for key, fr := range bp.frames {
		if key.filename == oldName {
			if err := bp.flushLocked(fr.page); err != nil {
				return err
			}
		}
	}
	bp.evictAllFromLocked(oldName)
	if f, ok := bp.files[oldName]; ok {
		f.Close()
		delete(bp.files, oldName)
	}
	if err := os.Rename(bp.path(oldName), bp.path(newName)); err != nil {
		return wrapIO("rename", oldName, err)
	}
	return nil
}

func (bp *BufferPool) evictAllFromLocked(filename string) {
	for key, fr := range bp.frames {
		if key.filename == filename {
			bp.unlinkLocked(fr)
			delete(bp.frames, key)
		}
	}
}

// evictOneLocked evicts the least-recently-used unpinned page, writing it
// back first if dirty. If every page is pinned the behavior is undefined
// (§4.1); we fall back to evicting the tail regardless, since no core
// operation in this engine ever sets Pin.
func (bp *BufferPool) evictOneLocked() error {
	victim := bp.tail
	for f := bp.tail; f != nil; f = f.prev {
		if !f.page.Pin {
			victim = f
			break
		}
	}
	if victim == nil {
		return nil
	}
	if err := bp.flushLocked(victim.page); err != nil {
		return err
	}
	bp.unlinkLocked(victim)
	delete(bp.frames, victim.page.key())
	return nil
}

func (bp *BufferPool) flushLocked(p *Page) error {
	if !p.Dirty {
		return nil
	}
	f, err := bp.fileLocked(p.Filename)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(p.Bytes[:], int64(p.ID)*PageSize); err != nil {
		return wrapIO("write-back", p.Filename, err)
	}
	p.Dirty = false
	return nil
}

// Close writes back every still-dirty page and closes all open files.
func (bp *BufferPool) Close() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	var firstErr error
	for fr := bp.head; fr != nil; fr = fr.next {
		if err := bp.flushLocked(fr.page); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for name, f := range bp.files {
		f.Close()
		delete(bp.files, name)
	}
	bp.frames = make(map[pageKey]*frame)
	bp.head, bp.tail = nil, nil
	return firstErr
}

// ── LRU list plumbing ───────────────────────────────────────────────────

func (bp *BufferPool) pushFrontLocked(fr *frame) {
	fr.prev = nil
	fr.next = bp.head
	if bp.head != nil {
		bp.head.prev = fr
	}
	bp.head = fr
	if bp.tail == nil {
		bp.tail = fr
	}
}

func (bp *BufferPool) unlinkLocked(fr *frame) {
	if fr.prev != nil {
		fr.prev.next = fr.next
	} else {
		bp.head = fr.next
	}
	if fr.next != nil {
		fr.next.prev = fr.prev
	} else {
		bp.tail = fr.prev
	}
	fr.prev, fr.next = nil, nil
}

func (bp *BufferPool) moveToFrontLocked(fr *frame) {
	if bp.head == fr {
		return
	}
	bp.unlinkLocked(fr)
	bp.pushFrontLocked(fr)
}
