// Package dbtest opens throwaway in-memory stores for tests.
package dbtest

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"krafti/internal/models"
)

// Open returns a migrated in-memory database that lives until t finishes.
// A single connection is shared so transactions run one at a time.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

// MustCreate inserts each record or fails the test.
func MustCreate(t testing.TB, database *gorm.DB, records ...any) {
	t.Helper()
	for _, r := range records {
		if err := database.Create(r).Error; err != nil {
			t.Fatalf("create %T: %v", r, err)
		}
	}
}
