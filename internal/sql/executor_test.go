package sql

import (
	"testing"

	"github.com/minisql/minisql/internal/storage"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	pool := storage.NewBufferPool(t.TempDir(), storage.DefaultCapacity)
	t.Cleanup(func() { pool.Close() })
	cat, err := storage.OpenCatalog(pool)
	if err != nil {
		t.Fatal(err)
	}
	return NewExecutor(&storage.Engine{Pool: pool, Catalog: cat})
}

func run(t *testing.T, exec *Executor, stmt string) *Result {
	t.Helper()
	parsed, err := NewParser(stmt).Parse()
	if err != nil {
		t.Fatalf("parsing %q: %v", stmt, err)
	}
	result, err := exec.Execute(parsed, func(string) error { return nil })
	if err != nil {
		t.Fatalf("executing %q: %v", stmt, err)
	}
	return result
}

func runErr(t *testing.T, exec *Executor, stmt string) error {
	t.Helper()
	parsed, err := NewParser(stmt).Parse()
	if err != nil {
		t.Fatalf("parsing %q: %v", stmt, err)
	}
	_, err = exec.Execute(parsed, func(string) error { return nil })
	return err
}

// TestScenario1 mirrors §8 concrete scenario 1: a duplicate primary key
// insert fails, and SELECT sees exactly the surviving row.
func TestScenario1DuplicatePrimaryKeyInsertFails(t *testing.T) {
	exec := newTestExecutor(t)
	run(t, exec, "CREATE TABLE t (a INT, b CHAR(4) UNIQUE, PRIMARY KEY(a))")
	run(t, exec, "INSERT INTO t VALUES (1, 'x')")
	if err := runErr(t, exec, "INSERT INTO t VALUES (1, 'y')"); err == nil {
		t.Fatal("expected the second insert to fail on the primary key")
	}
	result := run(t, exec, "SELECT * FROM t")
	if len(result.Rows) != 1 || result.Rows[0][0].(int32) != 1 || result.Rows[0][1].(string) != "x" {
		t.Fatalf("unexpected rows: %+v", result.Rows)
	}
}

// TestScenario2 mirrors §8 concrete scenario 2: slot reuse after delete,
// and SELECT returns rows in ascending record-id order.
func TestScenario2SlotReuseOrdering(t *testing.T) {
	exec := newTestExecutor(t)
	run(t, exec, "CREATE TABLE t (a INT, b CHAR(4) UNIQUE, PRIMARY KEY(a))")
	run(t, exec, "INSERT INTO t VALUES (1, 'x')")
	run(t, exec, "INSERT INTO t VALUES (2, 'z')")
	run(t, exec, "DELETE FROM t WHERE a = 1")
	run(t, exec, "INSERT INTO t VALUES (3, 'x')")

	result := run(t, exec, "SELECT * FROM t")
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if result.Rows[0][0].(int32) != 2 || result.Rows[1][0].(int32) != 3 {
		t.Fatalf("unexpected row order: %+v", result.Rows)
	}
}

func TestExecutorCreateIndexBackfillsExistingRows(t *testing.T) {
	exec := newTestExecutor(t)
	run(t, exec, "CREATE TABLE t (a INT, b CHAR(4) UNIQUE, PRIMARY KEY(a))")
	run(t, exec, "INSERT INTO t VALUES (1, 'x')")
	run(t, exec, "INSERT INTO t VALUES (2, 'y')")
	run(t, exec, "CREATE INDEX ib ON t(b)")

	result := run(t, exec, "SELECT * FROM t WHERE b = 'y'")
	if len(result.Rows) != 1 || result.Rows[0][0].(int32) != 2 {
		t.Fatalf("index-backed select returned %+v", result.Rows)
	}
}

func TestExecutorDeleteRemovesFromIndex(t *testing.T) {
	exec := newTestExecutor(t)
	run(t, exec, "CREATE TABLE t (a INT, PRIMARY KEY(a))")
	run(t, exec, "INSERT INTO t VALUES (1)")
	run(t, exec, "INSERT INTO t VALUES (2)")
	run(t, exec, "DELETE FROM t WHERE a = 1")

	result := run(t, exec, "SELECT * FROM t WHERE a = 1")
	if len(result.Rows) != 0 {
		t.Fatalf("expected no rows after delete, got %+v", result.Rows)
	}
	// Re-inserting the same primary key must succeed: the index entry for
	// the deleted row is really gone, not just the heap row.
	run(t, exec, "INSERT INTO t VALUES (1)")
}

func TestExecutorDropTableRemovesCatalogEntries(t *testing.T) {
	exec := newTestExecutor(t)
	run(t, exec, "CREATE TABLE t (a INT, b CHAR(4) UNIQUE, PRIMARY KEY(a))")
	run(t, exec, "CREATE INDEX ib ON t(b)")
	run(t, exec, "DROP TABLE t")

	if exec.engine.Catalog.HasTable("t") {
		t.Fatal("table should be gone from the catalog")
	}
	if exec.engine.Catalog.HasIndex("ib") || exec.engine.Catalog.HasIndex("pk_t") {
		t.Fatal("indices should be gone from the catalog")
	}
}
