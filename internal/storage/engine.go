package storage

// Engine owns the buffer pool and catalog: the single value through which
// every storage operation is reached (§9: "a single engine value that owns
// all four sub-services", in place of the source's global managers).
type Engine struct {
	Pool    *BufferPool
	Catalog *Catalog
}

// Open creates (if needed) the data directory and opens the catalog.
func Open(cfg Config) (*Engine, error) {
	pool := NewBufferPool(cfg.DataDir, cfg.BufferPoolCapacity)
	cat, err := OpenCatalog(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &Engine{Pool: pool, Catalog: cat}, nil
}

// Close flushes every dirty page and closes all open files.
func (e *Engine) Close() error {
	return e.Pool.Close()
}

// OpenRecordEngine opens the record engine for an already-registered table.
func (e *Engine) OpenRecordEngine(tableName string) (*Record, error) {
	tbl, err := e.Catalog.LoadTable(tableName)
	if err != nil {
		return nil, err
	}
	return OpenRecord(e.Pool, tbl)
}
