package sql

import (
	"fmt"
	"os"
	"strings"

	"github.com/minisql/minisql/internal/storage"
	"github.com/samber/lo"
)

// Result is what Execute returns for one statement: either tabular rows
// (SELECT) or a status message (every other statement), never both.
type Result struct {
	Columns []string
	Rows    [][]any
	Message string
}

// Executor is the query executor (C9, §4.6): the glue that drives the
// catalog, record engine, and indices for each DML/DDL statement. Its only
// state is the engine reference (§9: pass an explicit engine value rather
// than reproduce singletons) and the EXECFILE nesting depth below.
type Executor struct {
	engine *storage.Engine

	// suppressTiming is a stack depth counter: >0 while executing inside
	// an EXECFILE, so nested EXECFILE calls still suppress the REPL's
	// per-statement timing line (§6: "unless running under execfile").
	suppressTiming int
}

// NewExecutor wraps engine for statement execution.
func NewExecutor(engine *storage.Engine) *Executor {
	return &Executor{engine: engine}
}

// InExecFile reports whether the executor is currently nested inside an
// EXECFILE statement.
func (e *Executor) InExecFile() bool { return e.suppressTiming > 0 }

// Execute runs one parsed statement. execFile is called recursively by the
// EXECFILE handler to run each statement of the named script.
func (e *Executor) Execute(stmt Statement, execFile func(path string) error) (*Result, error) {
	switch s := stmt.(type) {
	case *CreateTable:
		return e.execCreateTable(s)
	case *DropTable:
		return e.execDropTable(s)
	case *CreateIndex:
		return e.execCreateIndex(s)
	case *DropIndex:
		return e.execDropIndex(s)
	case *Insert:
		return e.execInsert(s)
	case *Select:
		return e.execSelect(s)
	case *Delete:
		return e.execDelete(s)
	case *ExecFile:
		e.suppressTiming++
		defer func() { e.suppressTiming-- }()
		if err := execFile(s.Path); err != nil {
			return nil, err
		}
		return &Result{Message: fmt.Sprintf("executed %s", s.Path)}, nil
	case *Exit:
		return &Result{Message: "bye"}, nil
	default:
		return nil, fmt.Errorf("minisql: unsupported statement %T", stmt)
	}
}

func (e *Executor) execCreateTable(s *CreateTable) (*Result, error) {
	tbl := &storage.Table{Name: s.Name, Primary: s.Primary}
	for _, c := range s.Columns {
		tbl.Columns = append(tbl.Columns, storage.Column{Name: c.Name, Type: c.Type, Unique: c.Unique})
	}
	if _, ok := tbl.Column(s.Primary); !ok {
		return nil, fmt.Errorf("minisql: primary key column %q not declared", s.Primary)
	}
	if err := e.engine.Catalog.CreateTable(tbl); err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("table %s created", s.Name)}, nil
}

func (e *Executor) execDropTable(s *DropTable) (*Result, error) {
	if err := e.engine.Catalog.DropTable(s.Name); err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("table %s dropped", s.Name)}, nil
}

func (e *Executor) execCreateIndex(s *CreateIndex) (*Result, error) {
	if err := e.engine.Catalog.CreateIndex(s.Name, s.Table, s.Column, nil); err != nil {
		return nil, err
	}
	tbl, err := e.engine.Catalog.LoadTable(s.Table)
	if err != nil {
		return nil, err
	}
	rec, err := storage.OpenRecord(e.engine.Pool, tbl)
	if err != nil {
		return nil, err
	}
	rows, ids, err := rec.Scan(nil)
	if err != nil {
		return nil, err
	}
	idx, err := e.engine.Catalog.OpenIndex(s.Name)
	if err != nil {
		return nil, err
	}
	off := indexOfColumnName(tbl, s.Column)
	col := tbl.Columns[off]
	for i, row := range rows {
		key, err := encodeKey(col.Type, row[off])
		if err != nil {
			return nil, err
		}
		if _, err := idx.Insert(key, ids[i]); err != nil {
			return nil, err
		}
	}
	return &Result{Message: fmt.Sprintf("index %s created", s.Name)}, nil
}

func (e *Executor) execDropIndex(s *DropIndex) (*Result, error) {
	if err := e.engine.Catalog.DropIndex(s.Name); err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("index %s dropped", s.Name)}, nil
}

func (e *Executor) execInsert(s *Insert) (*Result, error) {
	tbl, err := e.engine.Catalog.LoadTable(s.Table)
	if err != nil {
		return nil, err
	}
	if len(s.Values) != len(tbl.Columns) {
		return nil, fmt.Errorf("minisql: table %s has %d columns, got %d values", s.Table, len(tbl.Columns), len(s.Values))
	}
	values, err := coerceValues(tbl, s.Values)
	if err != nil {
		return nil, err
	}

	rec, err := storage.OpenRecord(e.engine.Pool, tbl)
	if err != nil {
		return nil, err
	}
	id, err := rec.Insert(values)
	if err != nil {
		return nil, err
	}

	for _, idxInfo := range e.engine.Catalog.IndicesOn(s.Table) {
		off := indexOfColumnName(tbl, idxInfo.Column)
		col := tbl.Columns[off]
		key, err := encodeKey(col.Type, values[off])
		if err != nil {
			return nil, err
		}
		idx, err := e.engine.Catalog.OpenIndex(idxInfo.Name)
		if err != nil {
			return nil, err
		}
		ok, err := idx.Insert(key, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Duplicate key on index INSERT (§7): the heap write already
			// committed and is not rolled back.
			return nil, fmt.Errorf("minisql: duplicate key for index %s; row already inserted into %s", idxInfo.Name, s.Table)
		}
	}
	return &Result{Message: fmt.Sprintf("1 row inserted into %s", s.Table)}, nil
}

func (e *Executor) execSelect(s *Select) (*Result, error) {
	tbl, err := e.engine.Catalog.LoadTable(s.Table)
	if err != nil {
		return nil, err
	}
	preds := toStoragePredicates(s.Where)
	rows, _, err := e.scanWithShortcut(tbl, preds)
	if err != nil {
		return nil, err
	}
	return &Result{Columns: lo.Map(tbl.Columns, func(c storage.Column, _ int) string { return c.Name }), Rows: rows}, nil
}

func (e *Executor) execDelete(s *Delete) (*Result, error) {
	tbl, err := e.engine.Catalog.LoadTable(s.Table)
	if err != nil {
		return nil, err
	}
	preds := toStoragePredicates(s.Where)
	rows, ids, err := e.scanWithShortcut(tbl, preds)
	if err != nil {
		return nil, err
	}

	rec, err := storage.OpenRecord(e.engine.Pool, tbl)
	if err != nil {
		return nil, err
	}
	// Heap delete precedes index delete (§4.6, §5: "choose heap first then
	// indices to match a fail-fast removal order").
	if err := rec.Remove(ids); err != nil {
		return nil, err
	}
	indices := e.engine.Catalog.IndicesOn(s.Table)
	for i, row := range rows {
		for _, idxInfo := range indices {
			off := indexOfColumnName(tbl, idxInfo.Column)
			col := tbl.Columns[off]
			key, err := encodeKey(col.Type, row[off])
			if err != nil {
				return nil, err
			}
			idx, err := e.engine.Catalog.OpenIndex(idxInfo.Name)
			if err != nil {
				return nil, err
			}
			if _, err := idx.Delete(key); err != nil {
				return nil, err
			}
		}
	}
	return &Result{Message: fmt.Sprintf("%d row(s) deleted from %s", len(ids), s.Table)}, nil
}

// scanWithShortcut implements §4.7: if any predicate is an equality test
// on an indexed column, look the key up directly instead of scanning the
// whole table. Only the first such predicate encountered is used.
func (e *Executor) scanWithShortcut(tbl *storage.Table, preds []storage.Predicate) ([][]any, []int32, error) {
	indices := e.engine.Catalog.IndicesOn(tbl.Name)
	for _, p := range preds {
		if p.Op != storage.OpEq {
			continue
		}
		idxInfo, ok := lo.Find(indices, func(i storage.IndexInfo) bool { return i.Column == p.Column })
		if !ok {
			continue
		}
		off := indexOfColumnName(tbl, p.Column)
		col := tbl.Columns[off]
		key, err := encodeKey(col.Type, p.Value)
		if err != nil {
			return nil, nil, err
		}
		idx, err := e.engine.Catalog.OpenIndex(idxInfo.Name)
		if err != nil {
			return nil, nil, err
		}
		id, found, err := idx.Find(key)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			return nil, nil, nil
		}
		rec, err := storage.OpenRecord(e.engine.Pool, tbl)
		if err != nil {
			return nil, nil, err
		}
		row, ok, err := rec.Read(id)
		if err != nil || !ok {
			return nil, nil, err
		}
		for _, rest := range preds {
			if rest == p {
				continue
			}
			matched, err := evalPredicate(tbl, row, rest)
			if err != nil {
				return nil, nil, err
			}
			if !matched {
				return nil, nil, nil
			}
		}
		return [][]any{row}, []int32{id}, nil
	}

	rec, err := storage.OpenRecord(e.engine.Pool, tbl)
	if err != nil {
		return nil, nil, err
	}
	return rec.Scan(preds)
}

func evalPredicate(tbl *storage.Table, row []any, p storage.Predicate) (bool, error) {
	off := indexOfColumnName(tbl, p.Column)
	if off < 0 {
		return false, fmt.Errorf("minisql: no such column %q", p.Column)
	}
	cmp := storage.CompareValues(tbl.Columns[off].Type, row[off], p.Value)
	switch p.Op {
	case storage.OpEq:
		return cmp == 0, nil
	case storage.OpNe:
		return cmp != 0, nil
	case storage.OpLt:
		return cmp < 0, nil
	case storage.OpGt:
		return cmp > 0, nil
	case storage.OpLe:
		return cmp <= 0, nil
	case storage.OpGe:
		return cmp >= 0, nil
	default:
		return false, fmt.Errorf("minisql: unknown comparator %v", p.Op)
	}
}

func toStoragePredicates(where []WherePredicate) []storage.Predicate {
	return lo.Map(where, func(w WherePredicate, _ int) storage.Predicate {
		return storage.Predicate{Column: w.Column, Op: w.Op, Value: w.Value}
	})
}

func indexOfColumnName(tbl *storage.Table, name string) int {
	for i, c := range tbl.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// encodeKey renders a value as the fixed-width byte key an index expects.
func encodeKey(typ storage.TypeCode, v any) ([]byte, error) {
	dst := make([]byte, typ.Size())
	if _, err := storage.EncodeValue(dst, typ, v); err != nil {
		return nil, err
	}
	return dst, nil
}

// coerceValues rejects a literal whose parsed kind does not match its
// column's declared type, rather than silently coercing (§1 Non-goals:
// "type coercion").
func coerceValues(tbl *storage.Table, values []any) ([]any, error) {
	out := make([]any, len(values))
	for i, c := range tbl.Columns {
		v := values[i]
		switch {
		case c.Type == storage.IntTypeCode:
			iv, ok := v.(int32)
			if !ok {
				return nil, fmt.Errorf("minisql: column %q expects INT, got %v", c.Name, v)
			}
			out[i] = iv
		case c.Type == storage.FloatTypeCode:
			switch n := v.(type) {
			case float32:
				out[i] = n
			case int32:
				out[i] = float32(n)
			default:
				return nil, fmt.Errorf("minisql: column %q expects FLOAT, got %v", c.Name, v)
			}
		default:
			sv, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("minisql: column %q expects %s, got %v", c.Name, c.Type, v)
			}
			out[i] = sv
		}
	}
	return out, nil
}

// SplitStatements splits a script on `;` terminators, discarding blank
// trailing fragments (§6: statements are semicolon-terminated).
func SplitStatements(script string) []string {
	parts := strings.Split(script, ";")
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

// ReadScript loads a script file for EXECFILE.
func ReadScript(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("minisql: cannot read %s: %w", path, err)
	}
	return string(b), nil
}
