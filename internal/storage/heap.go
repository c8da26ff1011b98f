package storage

import (
	"encoding/binary"
	"fmt"
)

// heapHeaderSize is the size in bytes of the HeapFile header stored at the
// start of page 0 (§4.2): slotLen:int32 | recordCount:int32 | firstEmpty:int32.
const heapHeaderSize = 12

// HeapFile is a fixed-length-record file over a single backing file,
// storing recordLength+1 bytes per slot (payload plus a tombstone byte),
// with deleted slots threaded into an in-band singly-linked free list
// (§4.2). All I/O goes through the shared BufferPool.
type HeapFile struct {
	pool         *BufferPool
	filename     string
	recordLength int
	slotLen      int
	slotsPerPage int

	recordCount int32
	firstEmpty  int32

	cursor int32 // per-instance scan cursor for NextRecord, starts at -1
}

// CreateHeapFile creates a brand-new, empty heap file on disk and returns a
// handle to it.
func CreateHeapFile(pool *BufferPool, filename string, recordLength int) (*HeapFile, error) {
	if err := pool.CreateFile(filename); err != nil {
		return nil, err
	}
	h := newHeapFile(pool, filename, recordLength)
	h.recordCount = 0
	h.firstEmpty = -1
	if err := h.persistHeader(); err != nil {
		return nil, err
	}
	return h, nil
}

// OpenHeapFile opens an existing heap file, reading its header.
func OpenHeapFile(pool *BufferPool, filename string, recordLength int) (*HeapFile, error) {
	h := newHeapFile(pool, filename, recordLength)
	if err := h.loadHeader(); err != nil {
		return nil, err
	}
	return h, nil
}

func newHeapFile(pool *BufferPool, filename string, recordLength int) *HeapFile {
	slotLen := recordLength + 1
	return &HeapFile{
		pool:         pool,
		filename:     filename,
		recordLength: recordLength,
		slotLen:      slotLen,
		slotsPerPage: PageSize / slotLen,
		cursor:       -1,
	}
}

func (h *HeapFile) loadHeader() error {
	page, err := h.pool.Get(h.filename, 0)
	if err != nil {
		return err
	}
	h.recordCount = int32(binary.LittleEndian.Uint32(page.Bytes[4:8]))
	h.firstEmpty = int32(binary.LittleEndian.Uint32(page.Bytes[8:12]))
	return nil
}

func (h *HeapFile) persistHeader() error {
	page, err := h.pool.Get(h.filename, 0)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(page.Bytes[0:4], uint32(h.slotLen))
	binary.LittleEndian.PutUint32(page.Bytes[4:8], uint32(h.recordCount))
	binary.LittleEndian.PutUint32(page.Bytes[8:12], uint32(h.firstEmpty))
	page.Dirty = true
	return nil
}

// slotLocation returns the page id and byte offset within that page for a
// given record id (§4.2): page 1+id/slotsPerPage, offset (id mod
// slotsPerPage)*slotLen — records never cross page boundaries.
func (h *HeapFile) slotLocation(id int32) (PageID, int) {
	slot := int(id)
	page := 1 + slot/h.slotsPerPage
	offset := (slot % h.slotsPerPage) * h.slotLen
	return PageID(page), offset
}

func (h *HeapFile) readRawSlot(id int32) (payload []byte, tombstone byte, err error) {
	pid, off := h.slotLocation(id)
	page, err := h.pool.Get(h.filename, pid)
	if err != nil {
		return nil, 0, err
	}
	payload = make([]byte, h.recordLength)
	copy(payload, page.Bytes[off:off+h.recordLength])
	tombstone = page.Bytes[off+h.recordLength]
	return payload, tombstone, nil
}

func (h *HeapFile) writeSlot(id int32, payload []byte, tombstone byte) error {
	pid, off := h.slotLocation(id)
	page, err := h.pool.Get(h.filename, pid)
	if err != nil {
		return err
	}
	copy(page.Bytes[off:off+h.recordLength], payload)
	page.Bytes[off+h.recordLength] = tombstone
	page.Dirty = true
	return nil
}

// NextRecord advances the per-instance scan cursor and returns the next
// live record. ok is false once the cursor reaches RecordCount (§4.2's
// END). The cursor is private to this HeapFile value; opening a new handle
// over the same file starts a fresh scan.
func (h *HeapFile) NextRecord() (id int32, payload []byte, ok bool, err error) {
	for h.cursor+1 < h.recordCount {
		h.cursor++
		_, tombstone, err := h.readRawSlot(h.cursor)
		if err != nil {
			return 0, nil, false, err
		}
		if tombstone == 0 {
			payload, _, err := h.readRawSlot(h.cursor)
			if err != nil {
				return 0, nil, false, err
			}
			return h.cursor, payload, true, nil
		}
	}
	return 0, nil, false, nil
}

// ResetScan rewinds the scan cursor so a subsequent NextRecord starts over.
func (h *HeapFile) ResetScan() { h.cursor = -1 }

// Read performs a random-access read of record id. ok is false if id is out
// of range or the slot is tombstoned (invariant 1, §3).
func (h *HeapFile) Read(id int32) (payload []byte, ok bool, err error) {
	if id < 0 || id >= h.recordCount {
		return nil, false, nil
	}
	payload, tombstone, err := h.readRawSlot(id)
	if err != nil {
		return nil, false, err
	}
	if tombstone != 0 {
		return nil, false, nil
	}
	return payload, true, nil
}

// Add appends payload, reusing the head of the free-slot list (LIFO) when
// one exists, otherwise growing the file by one slot (§4.2, testable
// property 2).
func (h *HeapFile) Add(payload []byte) (int32, error) {
	if len(payload) != h.recordLength {
		return 0, fmt.Errorf("minisql: record length mismatch: got %d want %d", len(payload), h.recordLength)
	}

	var id int32
	if h.firstEmpty >= 0 {
		id = h.firstEmpty
		reused, _, err := h.readRawSlot(id)
		if err != nil {
			return 0, err
		}
		h.firstEmpty = int32(binary.LittleEndian.Uint32(reused[0:4]))
	} else {
		id = h.recordCount
		h.recordCount++
	}

	if err := h.writeSlot(id, payload, 0); err != nil {
		return 0, err
	}
	if err := h.persistHeader(); err != nil {
		return 0, err
	}
	return id, nil
}

// Delete tombstones record id and threads it onto the free-slot list.
// Fails (ok=false) if the slot is out of range or already tombstoned.
func (h *HeapFile) Delete(id int32) (ok bool, err error) {
	if id < 0 || id >= h.recordCount {
		return false, nil
	}
	payload, tombstone, err := h.readRawSlot(id)
	if err != nil {
		return false, err
	}
	if tombstone != 0 {
		return false, nil
	}

	binary.LittleEndian.PutUint32(payload[0:4], uint32(h.firstEmpty))
	if err := h.writeSlot(id, payload, 1); err != nil {
		return false, err
	}
	h.firstEmpty = id
	if err := h.persistHeader(); err != nil {
		return false, err
	}
	return true, nil
}

// RecordCount returns the current number of slots (live + tombstoned).
func (h *HeapFile) RecordCount() int32 { return h.recordCount }

// RecordLength returns the fixed payload length (excluding the tombstone byte).
func (h *HeapFile) RecordLength() int { return h.recordLength }
