package storage

import "testing"

func TestCatalogCreateTableCreatesPrimaryIndex(t *testing.T) {
	pool := NewBufferPool(t.TempDir(), DefaultCapacity)
	defer pool.Close()
	cat, err := OpenCatalog(pool)
	if err != nil {
		t.Fatal(err)
	}

	tbl := &Table{
		Name: "widgets", Primary: "id",
		Columns: []Column{{Name: "id", Type: IntTypeCode}, {Name: "label", Type: CharType(8)}},
	}
	if err := cat.CreateTable(tbl); err != nil {
		t.Fatal(err)
	}
	if !cat.HasTable("widgets") {
		t.Fatal("table not registered")
	}
	if !cat.HasIndex("pk_widgets") {
		t.Fatal("primary key index not created")
	}

	loaded, err := cat.LoadTable("widgets")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Primary != "id" || len(loaded.Columns) != 2 {
		t.Fatalf("loaded schema mismatch: %+v", loaded)
	}
	if !loaded.IsPrimaryOrUnique("id") {
		t.Fatal("primary column should be implicitly unique")
	}
}

func TestCatalogDuplicateTableRejected(t *testing.T) {
	pool := NewBufferPool(t.TempDir(), DefaultCapacity)
	defer pool.Close()
	cat, err := OpenCatalog(pool)
	if err != nil {
		t.Fatal(err)
	}
	tbl := &Table{Name: "t", Primary: "a", Columns: []Column{{Name: "a", Type: IntTypeCode}}}
	if err := cat.CreateTable(tbl); err != nil {
		t.Fatal(err)
	}
	if err := cat.CreateTable(tbl); err == nil {
		t.Fatal("expected a schema error for a duplicate table name")
	}
}

func TestCatalogDropTableRemovesIndices(t *testing.T) {
	pool := NewBufferPool(t.TempDir(), DefaultCapacity)
	defer pool.Close()
	cat, err := OpenCatalog(pool)
	if err != nil {
		t.Fatal(err)
	}
	tbl := &Table{
		Name: "t", Primary: "a",
		Columns: []Column{{Name: "a", Type: IntTypeCode}, {Name: "b", Type: IntTypeCode, Unique: true}},
	}
	if err := cat.CreateTable(tbl); err != nil {
		t.Fatal(err)
	}
	if err := cat.CreateIndex("ib", "t", "b", tbl); err != nil {
		t.Fatal(err)
	}
	if err := cat.DropTable("t"); err != nil {
		t.Fatal(err)
	}
	if cat.HasTable("t") || cat.HasIndex("pk_t") || cat.HasIndex("ib") {
		t.Fatal("DropTable should remove the table and all of its indices")
	}
}

func TestCatalogIndexOnNonUniqueColumnRejected(t *testing.T) {
	pool := NewBufferPool(t.TempDir(), DefaultCapacity)
	defer pool.Close()
	cat, err := OpenCatalog(pool)
	if err != nil {
		t.Fatal(err)
	}
	tbl := &Table{
		Name: "t", Primary: "a",
		Columns: []Column{{Name: "a", Type: IntTypeCode}, {Name: "b", Type: IntTypeCode}},
	}
	if err := cat.CreateTable(tbl); err != nil {
		t.Fatal(err)
	}
	if err := cat.CreateIndex("ib", "t", "b", tbl); err == nil {
		t.Fatal("expected an error indexing a non-unique column")
	}
}
