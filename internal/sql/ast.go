package sql

import "github.com/minisql/minisql/internal/storage"

// Statement is any parsed top-level statement.
type Statement interface {
	isStatement()
}

// ColumnDef is one column in a CREATE TABLE statement.
type ColumnDef struct {
	Name   string
	Type   storage.TypeCode
	Unique bool
}

// CreateTable is `CREATE TABLE t (col type [UNIQUE], ..., PRIMARY KEY (col))`.
type CreateTable struct {
	Name    string
	Columns []ColumnDef
	Primary string
}

// DropTable is `DROP TABLE t`.
type DropTable struct{ Name string }

// CreateIndex is `CREATE INDEX i ON t(col)`.
type CreateIndex struct {
	Name, Table, Column string
}

// DropIndex is `DROP INDEX i`.
type DropIndex struct{ Name string }

// Insert is `INSERT INTO t VALUES (v, v, ...)`.
type Insert struct {
	Table  string
	Values []any
}

// WherePredicate is one parsed `column op literal` conjunct.
type WherePredicate struct {
	Column string
	Op     storage.CompareOp
	Value  any
}

// Select is `SELECT * FROM t [WHERE ...]`.
type Select struct {
	Table string
	Where []WherePredicate
}

// Delete is `DELETE FROM t [WHERE ...]`.
type Delete struct {
	Table string
	Where []WherePredicate
}

// ExecFile is the `execfile 'path'` meta-command.
type ExecFile struct{ Path string }

// Exit is the `exit`/`quit` meta-command.
type Exit struct{}

func (*CreateTable) isStatement() {}
func (*DropTable) isStatement()   {}
func (*CreateIndex) isStatement() {}
func (*DropIndex) isStatement()   {}
func (*Insert) isStatement()      {}
func (*Select) isStatement()      {}
func (*Delete) isStatement()      {}
func (*ExecFile) isStatement()    {}
func (*Exit) isStatement()        {}
