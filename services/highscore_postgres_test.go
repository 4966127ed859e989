//go:build postgres

package services

import (
	"os"
	"testing"

	"event-ranking-engine/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Run with: TEST_DATABASE_URL=postgres://... go test -tags postgres ./services/
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(16)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Transactions overlap here, so only the entry row lock keeps rankings contiguous.
func TestConcurrentSubmissionsKeepRankingsConsistentPostgres(t *testing.T) {
	db := newPostgresDB(t)
	settings := newTestSettings(db)
	checkConcurrentSubmissions(t, NewHighScoreService(db, settings, NewTournamentService(db, settings)))
}
