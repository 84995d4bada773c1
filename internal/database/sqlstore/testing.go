package sqlstore

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestStore returns a migrated store on a private in-memory SQLite database.
func NewTestStore(tb testing.TB) *Store {
	tb.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		tb.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get sql.DB: %v", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

	store := New(db)
	if err := store.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate test database: %v", err)
	}
	tb.Cleanup(func() { _ = sqlDB.Close() })
	return store
}
