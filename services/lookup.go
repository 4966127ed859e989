package services

import (
	"context"
	"errors"
	"fmt"

	"event-ranking-engine/models"

	"gorm.io/gorm"
)

// FindEvent loads an event by ID.
func FindEvent(ctx context.Context, db *gorm.DB, id string) (*models.Event, error) {
	var event models.Event
	if err := db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &event, nil
}

// FindEntry loads an entry by ID with its details.
func FindEntry(ctx context.Context, db *gorm.DB, id string) (*models.Entry, error) {
	var entry models.Entry
	if err := db.WithContext(ctx).Preload("Details").First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &entry, nil
}

// teamUserIDs returns the IDs of the users who made the entry.
func teamUserIDs(db *gorm.DB, entryID string) ([]string, error) {
	var ids []string
	err := db.Model(&models.EntryTeamMember{}).
		Where("entry_id = ?", entryID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// loadDetails returns the entry's details row, creating it if needed.
func loadDetails(tx *gorm.DB, entryID string) (*models.EntryDetails, error) {
	details := models.EntryDetails{EntryID: entryID}
	if err := tx.Where(models.EntryDetails{EntryID: entryID}).FirstOrCreate(&details).Error; err != nil {
		return nil, fmt.Errorf("load entry details %s: %w", entryID, err)
	}
	return &details, nil
}
