package testsupport

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

var memoryDBSeq atomic.Int64

// NewSQLiteMemoryDB opens a private in-memory sqlite database. Each call
// gets its own database so tests do not share tables.
func NewSQLiteMemoryDB() (*sql.DB, error) {
	name := fmt.Sprintf("file:cmsci_test_%d?mode=memory&cache=shared", memoryDBSeq.Add(1))
	return sql.Open("sqlite3", name)
}

// NewBunDB wraps a fresh in-memory database with the sqlite dialect and
// closes it when the test ends. A single connection keeps the in-memory
// database alive and serializes access.
func NewBunDB(tb testing.TB) *bun.DB {
	tb.Helper()

	sqlDB, err := NewSQLiteMemoryDB()
	if err != nil {
		tb.Fatalf("new sqlite db: %v", err)
	}
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	db.SetMaxOpenConns(1)
	tb.Cleanup(func() {
		_ = db.Close()
	})
	return db
}
