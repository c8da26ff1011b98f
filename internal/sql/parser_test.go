package sql

import (
	"testing"

	"github.com/minisql/minisql/internal/storage"
)

func TestParseCreateTable(t *testing.T) {
	stmt, err := NewParser("CREATE TABLE t (a INT, b CHAR(4) UNIQUE, PRIMARY KEY (a))").Parse()
	if err != nil {
		t.Fatal(err)
	}
	ct, ok := stmt.(*CreateTable)
	if !ok {
		t.Fatalf("expected *CreateTable, got %T", stmt)
	}
	if ct.Name != "t" || ct.Primary != "a" || len(ct.Columns) != 2 {
		t.Fatalf("unexpected result: %+v", ct)
	}
	if ct.Columns[1].Type != storage.CharType(4) || !ct.Columns[1].Unique {
		t.Fatalf("column b should be CHAR(4) UNIQUE, got %+v", ct.Columns[1])
	}
}

func TestParseInsertAndSelectWhere(t *testing.T) {
	stmt, err := NewParser("INSERT INTO t VALUES (1, 'x', 2.5)").Parse()
	if err != nil {
		t.Fatal(err)
	}
	ins, ok := stmt.(*Insert)
	if !ok || ins.Table != "t" || len(ins.Values) != 3 {
		t.Fatalf("unexpected result: %+v", stmt)
	}

	stmt, err = NewParser("SELECT * FROM t WHERE a = 1 AND b <> 'y'").Parse()
	if err != nil {
		t.Fatal(err)
	}
	sel, ok := stmt.(*Select)
	if !ok || sel.Table != "t" || len(sel.Where) != 2 {
		t.Fatalf("unexpected result: %+v", stmt)
	}
	if sel.Where[0].Op != storage.OpEq || sel.Where[1].Op != storage.OpNe {
		t.Fatalf("unexpected operators: %+v", sel.Where)
	}
}

func TestParseCreateDropIndex(t *testing.T) {
	stmt, err := NewParser("CREATE INDEX ib ON t(b)").Parse()
	if err != nil {
		t.Fatal(err)
	}
	ci, ok := stmt.(*CreateIndex)
	if !ok || ci.Name != "ib" || ci.Table != "t" || ci.Column != "b" {
		t.Fatalf("unexpected result: %+v", stmt)
	}

	stmt, err = NewParser("DROP INDEX ib").Parse()
	if err != nil {
		t.Fatal(err)
	}
	if di, ok := stmt.(*DropIndex); !ok || di.Name != "ib" {
		t.Fatalf("unexpected result: %+v", stmt)
	}
}

func TestParseExecFileAndExit(t *testing.T) {
	stmt, err := NewParser("EXECFILE 'script.sql'").Parse()
	if err != nil {
		t.Fatal(err)
	}
	if ef, ok := stmt.(*ExecFile); !ok || ef.Path != "script.sql" {
		t.Fatalf("unexpected result: %+v", stmt)
	}

	stmt, err = NewParser("exit").Parse()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := stmt.(*Exit); !ok {
		t.Fatalf("unexpected result: %+v", stmt)
	}
}

func TestParseRejectsUnexpectedToken(t *testing.T) {
	if _, err := NewParser("SELEKT * FROM t").Parse(); err == nil {
		t.Fatal("expected a parse error for a misspelled keyword")
	}
}

func TestParseCreateTableRequiresPrimaryKey(t *testing.T) {
	if _, err := NewParser("CREATE TABLE t (a INT)").Parse(); err == nil {
		t.Fatal("expected an error when PRIMARY KEY is missing")
	}
}
