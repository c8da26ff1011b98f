package storage

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TypeCode is the 16-bit on-disk column type tag (§3): 0 is NULL (unused by
// this engine — nullable columns are a non-goal), 1..255 is CHAR(n) meaning
// a fixed n+1-byte NUL-terminated string, 256 is INT32, 257 is FLOAT32.
type TypeCode uint16

const (
	NullTypeCode  TypeCode = 0
	IntTypeCode   TypeCode = 256
	FloatTypeCode TypeCode = 257
)

// CharType builds the TypeCode for CHAR(n), 1<=n<=255.
func CharType(n int) TypeCode { return TypeCode(n) }

// IsChar reports whether t denotes a CHAR(n) column, and if so its n.
func (t TypeCode) IsChar() (n int, ok bool) {
	if t >= 1 && t <= 255 {
		return int(t), true
	}
	return 0, false
}

// Size returns the on-disk byte width of a value of type t (§3).
func (t TypeCode) Size() int {
	if n, ok := t.IsChar(); ok {
		return n + 1
	}
	return 4
}

func (t TypeCode) String() string {
	switch t {
	case IntTypeCode:
		return "INT"
	case FloatTypeCode:
		return "FLOAT"
	default:
		if n, ok := t.IsChar(); ok {
			return fmt.Sprintf("CHAR(%d)", n)
		}
		return "NULL"
	}
}

// MaxIdentLen is the maximum byte length of a column, table, or index name
// (§3: name[≤31]).
const MaxIdentLen = 31

// Column describes one fixed-offset field in a table's record layout (§3).
type Column struct {
	Name   string
	Type   TypeCode
	Unique bool
}

// Table is the schema for one table (§3, §4.8): declaration-order columns
// laid out at fixed offsets with no null bitmap. Primary is implicitly
// unique and is never empty for a table created through CREATE TABLE.
type Table struct {
	Name    string
	Primary string
	Columns []Column
}

// Column looks up a column by name (case already folded by the tokenizer).
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Offset returns the byte offset of column name within an encoded record.
func (t *Table) Offset(name string) (offset int, col Column, ok bool) {
	off := 0
	for _, c := range t.Columns {
		if c.Name == name {
			return off, c, true
		}
		off += c.Type.Size()
	}
	return 0, Column{}, false
}

// RecordLength returns the total encoded width of one row (§3): the sum of
// column sizes, with no null bitmap and no variable-length records.
func (t *Table) RecordLength() int {
	n := 0
	for _, c := range t.Columns {
		n += c.Type.Size()
	}
	return n
}

// IsPrimaryOrUnique reports whether column name is unique, counting the
// primary key as implicitly unique (§3).
func (t *Table) IsPrimaryOrUnique(name string) bool {
	if name == t.Primary {
		return true
	}
	c, ok := t.Column(name)
	return ok && c.Unique
}

// EncodeRow packs values (one per column, in declaration order) into a
// record payload of length RecordLength().
func (t *Table) EncodeRow(values []any) ([]byte, error) {
	if len(values) != len(t.Columns) {
		return nil, fmt.Errorf("minisql: expected %d values, got %d", len(t.Columns), len(values))
	}
	buf := make([]byte, t.RecordLength())
	off := 0
	for i, c := range t.Columns {
		n, err := EncodeValue(buf[off:off+c.Type.Size()], c.Type, values[i])
		if err != nil {
			return nil, fmt.Errorf("minisql: column %q: %w", c.Name, err)
		}
		_ = n
		off += c.Type.Size()
	}
	return buf, nil
}

// DecodeRow unpacks a record payload into one value per column, in
// declaration order.
func (t *Table) DecodeRow(payload []byte) ([]any, error) {
	if len(payload) != t.RecordLength() {
		return nil, fmt.Errorf("minisql: record length mismatch: got %d want %d", len(payload), t.RecordLength())
	}
	values := make([]any, len(t.Columns))
	off := 0
	for i, c := range t.Columns {
		v, err := DecodeValue(payload[off:off+c.Type.Size()], c.Type)
		if err != nil {
			return nil, err
		}
		values[i] = v
		off += c.Type.Size()
	}
	return values, nil
}

// EncodeValue writes v (an int32, float32, or string, matching typ) into
// dst, which must be exactly typ.Size() bytes.
func EncodeValue(dst []byte, typ TypeCode, v any) (int, error) {
	if n, ok := typ.IsChar(); ok {
		s, ok := v.(string)
		if !ok {
			return 0, fmt.Errorf("expected string for %s, got %T", typ, v)
		}
		if len(s) > n {
			return 0, fmt.Errorf("value %q too long for %s", s, typ)
		}
		for i := range dst {
			dst[i] = 0
		}
		copy(dst, s)
		// dst[len(s)] is already 0 — the NUL terminator.
		return len(dst), nil
	}
	switch typ {
	case IntTypeCode:
		iv, ok := toInt32(v)
		if !ok {
			return 0, fmt.Errorf("expected INT, got %T", v)
		}
		binary.LittleEndian.PutUint32(dst, uint32(iv))
		return 4, nil
	case FloatTypeCode:
		fv, ok := toFloat32(v)
		if !ok {
			return 0, fmt.Errorf("expected FLOAT, got %T", v)
		}
		binary.LittleEndian.PutUint32(dst, math.Float32bits(fv))
		return 4, nil
	default:
		return 0, fmt.Errorf("unsupported type code %d", typ)
	}
}

// DecodeValue reads a value of type typ out of src (exactly typ.Size() bytes).
func DecodeValue(src []byte, typ TypeCode) (any, error) {
	if n, ok := typ.IsChar(); ok {
		end := n
		for i, b := range src[:n] {
			if b == 0 {
				end = i
				break
			}
		}
		return string(src[:end]), nil
	}
	switch typ {
	case IntTypeCode:
		return int32(binary.LittleEndian.Uint32(src)), nil
	case FloatTypeCode:
		return math.Float32frombits(binary.LittleEndian.Uint32(src)), nil
	default:
		return nil, fmt.Errorf("unsupported type code %d", typ)
	}
}

func toInt32(v any) (int32, bool) {
	switch n := v.(type) {
	case int32:
		return n, true
	case int:
		return int32(n), true
	case int64:
		return int32(n), true
	default:
		return 0, false
	}
}

func toFloat32(v any) (float32, bool) {
	switch n := v.(type) {
	case float32:
		return n, true
	case float64:
		return float32(n), true
	default:
		return 0, false
	}
}

// CompareValues implements the comparison semantics of §4.5: CHAR uses
// strcmp (lexicographic byte compare), INT/FLOAT use arithmetic compare.
// Returns <0, 0, >0.
func CompareValues(typ TypeCode, a, b any) int {
	if _, ok := typ.IsChar(); ok {
		as, bs := a.(string), b.(string)
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}
	switch typ {
	case IntTypeCode:
		ai, bi := a.(int32), b.(int32)
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	case FloatTypeCode:
		af, bf := a.(float32), b.(float32)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return 0
}
