package services

import (
	"context"
	"fmt"
	"testing"

	"event-ranking-engine/config"
	"event-ranking-engine/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection keeps the in-memory database alive and serializes transactions.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestSettings(db *gorm.DB) *SettingsService {
	return NewSettingsService(db, NewCache(), config.DefaultEngine())
}

func setSetting(t *testing.T, s *SettingsService, key, value string) {
	t.Helper()
	if err := s.Set(context.Background(), key, value); err != nil {
		t.Fatalf("set %s: %v", key, err)
	}
}

func createEvent(t *testing.T, db *gorm.DB, mutate func(*models.Event)) *models.Event {
	t.Helper()
	event := &models.Event{Name: "jam-" + uuid.NewString()[:8], Title: "Test Jam"}
	if mutate != nil {
		mutate(event)
	}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}

func createEntry(t *testing.T, db *gorm.DB, event *models.Event, statusHighScore string, team ...string) *models.Entry {
	t.Helper()
	entry := &models.Entry{EventID: event.ID, Title: "entry", Division: "solo", StatusHighScore: statusHighScore}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("create entry: %v", err)
	}
	for _, userID := range team {
		member := models.EntryTeamMember{EntryID: entry.ID, EventID: event.ID, UserID: userID}
		if err := db.Create(&member).Error; err != nil {
			t.Fatalf("create team member: %v", err)
		}
	}
	return entry
}

func reloadEntry(t *testing.T, db *gorm.DB, id string) *models.Entry {
	t.Helper()
	entry, err := FindEntry(context.Background(), db, id)
	if err != nil {
		t.Fatalf("reload entry: %v", err)
	}
	return entry
}

func intPtr(v int) *int { return &v }

func ptrValue(p *int) string {
	if p == nil {
		return "nil"
	}
	return fmt.Sprint(*p)
}
