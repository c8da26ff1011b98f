package storage

import (
	"fmt"

	"github.com/samber/lo"
)

// CompareOp is one of the six relational comparators a predicate may use
// (§4.5).
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
)

func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpLt:
		return "<"
	case OpGt:
		return ">"
	case OpLe:
		return "<="
	case OpGe:
		return ">="
	default:
		return "?"
	}
}

// Predicate is a single `column op literal` conjunct (§4.5, GLOSSARY).
type Predicate struct {
	Column string
	Op     CompareOp
	Value  any
}

func (p Predicate) matches(tbl *Table, row []any) (bool, error) {
	off := lo.IndexOf(columnNames(tbl), p.Column)
	if off < 0 {
		return false, fmt.Errorf("minisql: no such column %q", p.Column)
	}
	col := tbl.Columns[off]
	cmp := CompareValues(col.Type, row[off], p.Value)
	switch p.Op {
	case OpEq:
		return cmp == 0, nil
	case OpNe:
		return cmp != 0, nil
	case OpLt:
		return cmp < 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpLe:
		return cmp <= 0, nil
	case OpGe:
		return cmp >= 0, nil
	default:
		return false, fmt.Errorf("minisql: unknown comparator %v", p.Op)
	}
}

func columnNames(tbl *Table) []string {
	return lo.Map(tbl.Columns, func(c Column, _ int) string { return c.Name })
}

// Record is the record engine (C8): a thin table-scan/filter/insert layer
// over a table's HeapFile, grounded on the scan-and-compare shape of
// §4.5. It holds only the pool, the table schema, and the open heap handle,
// matching §9's guidance that per-operation open/close of a HeapFile is
// acceptable.
type Record struct {
	pool *BufferPool
	tbl  *Table
	heap *HeapFile
}

// OpenRecord opens the record/<table> heap for reading and writing rows
// shaped by tbl's schema.
func OpenRecord(pool *BufferPool, tbl *Table) (*Record, error) {
	heap, err := OpenHeapFile(pool, "record/"+tbl.Name, tbl.RecordLength())
	if err != nil {
		return nil, err
	}
	return &Record{pool: pool, tbl: tbl, heap: heap}, nil
}

// ErrDuplicate marks a uniqueness violation on Insert (§7: "Uniqueness
// violation on INSERT").
var ErrDuplicate = fmt.Errorf("minisql: uniqueness violation")

// Scan applies predicates (ANDed) to every live row and returns the
// matching rows alongside their record-ids, in ascending id order.
func (r *Record) Scan(predicates []Predicate) (rows [][]any, ids []int32, err error) {
	r.heap.ResetScan()
	for {
		id, payload, ok, err := r.heap.NextRecord()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		row, err := r.tbl.DecodeRow(payload)
		if err != nil {
			return nil, nil, err
		}
		match := true
		for _, p := range predicates {
			ok, err := p.matches(r.tbl, row)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				match = false
				break
			}
		}
		if match {
			rows = append(rows, row)
			ids = append(ids, id)
		}
	}
	return rows, ids, nil
}

// Insert full-scans the table to reject a uniqueness violation on any
// UNIQUE or primary-key column (§4.5: "scans the entire table, compares
// each unique column byte-for-byte against the candidate"), then appends
// via the HeapFile. Returns ErrDuplicate, not a fatal error, on violation.
func (r *Record) Insert(values []any) (int32, error) {
	payload, err := r.tbl.EncodeRow(values)
	if err != nil {
		return 0, err
	}

	uniqueCols := lo.Filter(r.tbl.Columns, func(c Column, _ int) bool {
		return r.tbl.IsPrimaryOrUnique(c.Name)
	})
	if len(uniqueCols) > 0 {
		r.heap.ResetScan()
		for {
			_, existing, ok, err := r.heap.NextRecord()
			if err != nil {
				return 0, err
			}
			if !ok {
				break
			}
			existingRow, err := r.tbl.DecodeRow(existing)
			if err != nil {
				return 0, err
			}
			for _, c := range uniqueCols {
				myIdx := indexOfColumn(r.tbl, c.Name)
				candidate := values[myIdx]
				if CompareValues(c.Type, existingRow[myIdx], candidate) == 0 {
					return 0, fmt.Errorf("%w: column %q", ErrDuplicate, c.Name)
				}
			}
		}
	}

	return r.heap.Add(payload)
}

func indexOfColumn(tbl *Table, name string) int {
	for i, c := range tbl.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Remove deletes every id in ids from the heap (§4.5).
func (r *Record) Remove(ids []int32) error {
	for _, id := range ids {
		if _, err := r.heap.Delete(id); err != nil {
			return err
		}
	}
	return nil
}

// Read performs a random-access row fetch by record-id, used by the index
// predicate shortcut (§4.7).
func (r *Record) Read(id int32) ([]any, bool, error) {
	payload, ok, err := r.heap.Read(id)
	if err != nil || !ok {
		return nil, false, err
	}
	row, err := r.tbl.DecodeRow(payload)
	return row, true, err
}
