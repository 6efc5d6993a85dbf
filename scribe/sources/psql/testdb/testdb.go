// Package testdb opens throwaway in-memory databases for tests.
package testdb

import (
	"context"
	"testing"

	"scribe/scribe/sources/psql"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a migrated in-memory sqlite database. The pool is pinned to a
// single connection because every new sqlite :memory: connection is a fresh,
// empty database.
func Open(t testing.TB) *psql.Database {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := psql.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	database := &psql.Database{DB: db}
	t.Cleanup(database.Close)
	return database
}
