package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

const (
	tableRecordLen  = 62 // name[31] | primary[31]
	indexRecordLen  = 93 // name[31] | table[31] | column[31]
	columnRecordLen = 34 // col_name[31] | type:int16 | unique:uint8
)

// IndexInfo describes one registered index (§4.8).
type IndexInfo struct {
	Name   string
	Table  string
	Column string
}

// Catalog is the persistent registry of tables and indices (C7, §4.8). It
// keeps two fixed-layout HeapFiles (tables, indices) plus one per-table
// column-list HeapFile (table_<name>). Catalog mutation is transactional
// only in the in-memory sense (§4.8, §5): the catalog HeapFile write
// commits first, and only on success are the record/index files created or
// removed to match, so a failure before that commit leaves no record or
// index file behind.
type Catalog struct {
	pool *BufferPool

	tables  *HeapFile
	indices *HeapFile

	tableIDs map[string]int32 // table name -> record id in `tables`
	indexIDs map[string]int32 // index name -> record id in `indices`
}

// OpenCatalog opens (creating if absent) the top-level catalog heaps.
func OpenCatalog(pool *BufferPool) (*Catalog, error) {
	tables, err := openOrCreateCatalogHeap(pool, "catalog/tables", tableRecordLen)
	if err != nil {
		return nil, err
	}
	indices, err := openOrCreateCatalogHeap(pool, "catalog/indices", indexRecordLen)
	if err != nil {
		return nil, err
	}
	c := &Catalog{
		pool: pool, tables: tables, indices: indices,
		tableIDs: make(map[string]int32), indexIDs: make(map[string]int32),
	}
	if err := c.loadIndex(); err != nil {
		return nil, err
	}
	return c, nil
}

func openOrCreateCatalogHeap(pool *BufferPool, filename string, recordLength int) (*HeapFile, error) {
	if h, err := OpenHeapFile(pool, filename, recordLength); err == nil {
		return h, nil
	}
	return CreateHeapFile(pool, filename, recordLength)
}

func (c *Catalog) loadIndex() error {
	c.tables.ResetScan()
	for {
		id, payload, ok, err := c.tables.NextRecord()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		name, _ := decodeFixedString(payload[0:31])
		c.tableIDs[name] = id
	}
	c.indices.ResetScan()
	for {
		id, payload, ok, err := c.indices.NextRecord()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		name, _ := decodeFixedString(payload[0:31])
		c.indexIDs[name] = id
	}
	return nil
}

func encodeFixedString(dst []byte, s string) error {
	if len(s) > len(dst) {
		return fmt.Errorf("minisql: identifier %q exceeds %d bytes", s, len(dst))
	}
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, s)
	return nil
}

func decodeFixedString(src []byte) (string, error) {
	end := len(src)
	for i, b := range src {
		if b == 0 {
			end = i
			break
		}
	}
	return string(src[:end]), nil
}

// HasTable reports whether name is registered.
func (c *Catalog) HasTable(name string) bool {
	_, ok := c.tableIDs[name]
	return ok
}

// HasIndex reports whether name is registered.
func (c *Catalog) HasIndex(name string) bool {
	_, ok := c.indexIDs[name]
	return ok
}

// tempName produces a collision-resistant temporary filename for staging a
// new catalog file before it is known to be needed (§9 ambient stack: used
// so a half-created file never collides with a concurrently chosen name).
func tempName(prefix string) string {
	return fmt.Sprintf("%s.tmp-%s", prefix, uuid.NewString())
}

// CreateTable registers a new table and its column-list heap, then creates
// the backing record file and the primary-key index (§6: "CREATE TABLE
// automatically creates an index on the primary key"). Returns a schema
// error (not fatal) if the name is taken.
func (c *Catalog) CreateTable(tbl *Table) error {
	if c.HasTable(tbl.Name) {
		return fmt.Errorf("minisql: table %q already exists", tbl.Name)
	}
	if tbl.Primary == "" {
		return fmt.Errorf("minisql: table %q has no primary key", tbl.Name)
	}

	// Stage the column-list heap under a collision-proof scratch name and
	// only publish it under its permanent name once fully populated, so a
	// failure partway through never leaves a half-written catalog file
	// behind under the real name (§4.8, §9 ambient stack).
	staging := tempName("catalog/table_" + tbl.Name)
	colHeap, err := CreateHeapFile(c.pool, staging, columnRecordLen)
	if err != nil {
		return err
	}
	for _, col := range tbl.Columns {
		rec := make([]byte, columnRecordLen)
		if err := encodeFixedString(rec[0:31], col.Name); err != nil {
			return err
		}
		binary.LittleEndian.PutUint16(rec[31:33], uint16(col.Type))
		if col.Unique || col.Name == tbl.Primary {
			rec[33] = 1
		}
		if _, err := colHeap.Add(rec); err != nil {
			return err
		}
	}
	colFile := "catalog/table_" + tbl.Name
	if err := c.pool.RenameFile(staging, colFile); err != nil {
		return err
	}

	rec := make([]byte, tableRecordLen)
	if err := encodeFixedString(rec[0:31], tbl.Name); err != nil {
		return err
	}
	if err := encodeFixedString(rec[31:62], tbl.Primary); err != nil {
		return err
	}
	id, err := c.tables.Add(rec)
	if err != nil {
		return err
	}
	c.tableIDs[tbl.Name] = id

	colFile := "catalog/table_" + tbl.Name
	if err := c.pool.RenameFile(staging, colFile); err != nil {
		return err
	}

	if _, err := CreateHeapFile(c.pool, "record/"+tbl.Name, tbl.RecordLength()); err != nil {
		return err
	}

	return c.CreateIndex("pk_"+tbl.Name, tbl.Name, tbl.Primary, tbl)
}

// DropTable removes a table's catalog entry, its record file, its
// column-list heap, and every index registered on it.
func (c *Catalog) DropTable(name string) error {
	if !c.HasTable(name) {
		return fmt.Errorf("minisql: table %q does not exist", name)
	}
	for _, idx := range c.Indices() {
		if idx.Table == name {
			if err := c.DropIndex(idx.Name); err != nil {
				return err
			}
		}
	}

	id := c.tableIDs[name]
	if ok, err := c.tables.Delete(id); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("minisql: table %q catalog entry already gone", name)
	}
	delete(c.tableIDs, name)

	if err := c.pool.RemoveFile("catalog/table_" + name); err != nil {
		return err
	}
	return c.pool.RemoveFile("record/" + name)
}

// LoadTable reconstructs a Table's schema from the catalog.
func (c *Catalog) LoadTable(name string) (*Table, error) {
	id, ok := c.tableIDs[name]
	if !ok {
		return nil, fmt.Errorf("minisql: table %q does not exist", name)
	}
	payload, ok, err := c.tables.Read(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("minisql: table %q catalog entry is gone", name)
	}
	primary, _ := decodeFixedString(payload[31:62])

	colHeap, err := OpenHeapFile(c.pool, "catalog/table_"+name, columnRecordLen)
	if err != nil {
		return nil, err
	}
	tbl := &Table{Name: name, Primary: primary}
	colHeap.ResetScan()
	for {
		_, rec, ok, err := colHeap.NextRecord()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		colName, _ := decodeFixedString(rec[0:31])
		typ := TypeCode(binary.LittleEndian.Uint16(rec[31:33]))
		tbl.Columns = append(tbl.Columns, Column{
			Name: colName, Type: typ, Unique: rec[33] != 0,
		})
	}
	return tbl, nil
}

// Indices returns every registered index.
func (c *Catalog) Indices() []IndexInfo {
	var out []IndexInfo
	c.indices.ResetScan()
	for {
		_, payload, ok, err := c.indices.NextRecord()
		if err != nil || !ok {
			break
		}
		name, _ := decodeFixedString(payload[0:31])
		table, _ := decodeFixedString(payload[31:62])
		column, _ := decodeFixedString(payload[62:93])
		out = append(out, IndexInfo{Name: name, Table: table, Column: column})
	}
	return out
}

// IndicesOn returns every index registered on table, whatever its column
// (CreateIndex allows at most one per (table, column) pair, per §3).
func (c *Catalog) IndicesOn(table string) []IndexInfo {
	var out []IndexInfo
	for _, idx := range c.Indices() {
		if idx.Table == table {
			out = append(out, idx)
		}
	}
	return out
}

// CreateIndex registers index `name` on table.column and creates its
// backing B+-tree file. The column must be unique (or the primary key),
// per §6. tbl may be nil, in which case it is loaded from the catalog.
func (c *Catalog) CreateIndex(name, table, column string, tbl *Table) error {
	if c.HasIndex(name) {
		return fmt.Errorf("minisql: index %q already exists", name)
	}
	if tbl == nil {
		var err error
		tbl, err = c.LoadTable(table)
		if err != nil {
			return err
		}
	}
	if !tbl.IsPrimaryOrUnique(column) {
		return fmt.Errorf("minisql: index target column %q is not unique", column)
	}
	for _, idx := range c.Indices() {
		if idx.Table == table && idx.Column == column {
			return fmt.Errorf("minisql: an index already exists on %s(%s)", table, column)
		}
	}
	_, col, ok := tbl.Offset(column)
	if !ok {
		return fmt.Errorf("minisql: column %q does not exist on %q", column, table)
	}

	rec := make([]byte, indexRecordLen)
	if err := encodeFixedString(rec[0:31], name); err != nil {
		return err
	}
	if err := encodeFixedString(rec[31:62], table); err != nil {
		return err
	}
	if err := encodeFixedString(rec[62:93], column); err != nil {
		return err
	}
	id, err := c.indices.Add(rec)
	if err != nil {
		return err
	}
	c.indexIDs[name] = id

	if _, err := CreateBPTree(c.pool, "index/"+name, col.Type.Size(), 0); err != nil {
		return err
	}
	return nil
}

// DropIndex removes an index's catalog entry and backing file.
func (c *Catalog) DropIndex(name string) error {
	id, ok := c.indexIDs[name]
	if !ok {
		return fmt.Errorf("minisql: index %q does not exist", name)
	}
	if ok, err := c.indices.Delete(id); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("minisql: index %q catalog entry already gone", name)
	}
	delete(c.indexIDs, name)
	return c.pool.RemoveFile("index/" + name)
}

// OpenIndex opens the B+-tree backing a registered index.
func (c *Catalog) OpenIndex(name string) (*BPTree, error) {
	if !c.HasIndex(name) {
		return nil, fmt.Errorf("minisql: index %q does not exist", name)
	}
	return OpenBPTree(c.pool, "index/"+name)
}
