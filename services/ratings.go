package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"event-ranking-engine/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RatingService aggregates category votes into entry ratings and event results.
type RatingService struct {
	DB       *gorm.DB
	Settings *SettingsService
	Karma    *KarmaService
}

func NewRatingService(db *gorm.DB, settings *SettingsService, karma *KarmaService) *RatingService {
	return &RatingService{DB: db, Settings: settings, Karma: karma}
}

// averageRatings returns the mean of the nonzero votes of each category, or nil
// when a category has fewer than minVotes of them.
func averageRatings(votes []models.EntryVote, categoryCount, minVotes int) []*float64 {
	ratings := make([]*float64, categoryCount)
	for i := 0; i < categoryCount; i++ {
		sum, count := 0.0, 0
		for j := range votes {
			v := *votes[j].Votes()[i]
			if v != 0 {
				sum += v
				count++
			}
		}
		if count >= minVotes {
			avg := sum / float64(count)
			ratings[i] = &avg
		}
	}
	return ratings
}

func (s *RatingService) categoryCount(ctx context.Context, event *models.Event) (int, error) {
	maxCount, err := s.Settings.MaxCategoryCount(ctx)
	if err != nil {
		return 0, err
	}
	if len(event.Categories) > maxCount {
		return 0, &ConfigurationError{
			Setting: SettingMaxCategoryCount,
			Message: fmt.Sprintf("event %s has %d categories, maximum is %d", event.ID, len(event.Categories), maxCount),
		}
	}
	return len(event.Categories), nil
}

// RefreshEntryRatings recomputes the per-category ratings of an entry.
func (s *RatingService) RefreshEntryRatings(ctx context.Context, entry *models.Entry) error {
	event, err := FindEvent(ctx, s.DB, entry.EventID)
	if err != nil {
		return err
	}
	categoryCount, err := s.categoryCount(ctx, event)
	if err != nil {
		return err
	}
	minVotes, err := s.Settings.MinRatingVotes(ctx)
	if err != nil {
		return err
	}

	db := s.DB.WithContext(ctx)
	var votes []models.EntryVote
	if err := db.Where("entry_id = ?", entry.ID).Find(&votes).Error; err != nil {
		return fmt.Errorf("load votes of entry %s: %w", entry.ID, err)
	}

	details, err := loadDetails(db, entry.ID)
	if err != nil {
		return err
	}
	ratings := averageRatings(votes, categoryCount, minVotes)
	for i, column := range details.Ratings() {
		if i < categoryCount {
			*column = ratings[i]
		} else {
			*column = nil
		}
	}
	if err := db.Model(details).Select(models.RatingColumns).Updates(details).Error; err != nil {
		return fmt.Errorf("save ratings of entry %s: %w", entry.ID, err)
	}
	entry.Details = details
	return nil
}

// SaveEntryVote records a user's category ratings for an entry. Each value is
// 0 (no opinion) or between 1 and 10. Opted-out categories are stored as 0.
func (s *RatingService) SaveEntryVote(ctx context.Context, userID string, entry *models.Entry, values []float64) error {
	event, err := FindEvent(ctx, s.DB, entry.EventID)
	if err != nil {
		return err
	}
	categoryCount, err := s.categoryCount(ctx, event)
	if err != nil {
		return err
	}
	if len(values) != categoryCount {
		return invalid("votes", "expected %d category votes, got %d", categoryCount, len(values))
	}
	for i, v := range values {
		if math.IsNaN(v) || (v != 0 && (v < 1 || v > 10)) {
			return invalid("votes", "vote for category %d must be 0 or between 1 and 10", i+1)
		}
	}

	db := s.DB.WithContext(ctx)
	team, err := teamUserIDs(db, entry.ID)
	if err != nil {
		return fmt.Errorf("load team of entry %s: %w", entry.ID, err)
	}
	for _, member := range team {
		if member == userID {
			return invalid("entry", "you cannot rate your own entry")
		}
	}

	details, err := loadDetails(db, entry.ID)
	if err != nil {
		return err
	}

	vote := models.EntryVote{
		Base:    models.Base{ID: uuid.NewString()},
		EntryID: entry.ID,
		UserID:  userID,
		EventID: entry.EventID,
	}
	columns := vote.Votes()
	for i, v := range values {
		if details.IsOptedOut(event.Categories[i]) {
			v = 0
		}
		*columns[i] = v
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "entry_id"}},
		DoUpdates: clause.AssignmentColumns(append([]string{"updated_at"}, models.VoteColumns...)),
	}).Create(&vote).Error
	if err != nil {
		return fmt.Errorf("save vote of %s on entry %s: %w", userID, entry.ID, err)
	}

	if err := s.RefreshEntryRatings(ctx, entry); err != nil {
		return err
	}

	// Both the rated entry (received) and the voter's own entries (given) change.
	s.Karma.RefreshEntryKarmaQuietly(ctx, entry, event, true)
	var own []models.Entry
	if err := db.Where("event_id = ? AND id IN (?)", event.ID,
		db.Model(&models.EntryTeamMember{}).Select("entry_id").Where("user_id = ?", userID)).
		Find(&own).Error; err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("[RATINGS] could not load voter entries")
		return nil
	}
	for i := range own {
		s.Karma.RefreshEntryKarmaQuietly(ctx, &own[i], event, true)
	}
	return nil
}

type rankedEntry struct {
	entry  models.Entry
	rating float64
}

// competitionRanks ranks ratings in descending order; equal ratings share a
// rank and the next rank skips accordingly (1, 2, 2, 4).
func competitionRanks(items []rankedEntry) []int {
	sort.SliceStable(items, func(i, j int) bool { return items[i].rating > items[j].rating })
	ranks := make([]int, len(items))
	for i := range items {
		if i > 0 && items[i].rating == items[i-1].rating {
			ranks[i] = ranks[i-1]
		} else {
			ranks[i] = i + 1
		}
	}
	return ranks
}

// ComputeEventRankings assigns per-category result rankings within each
// division. Entries without a rating in a category get no ranking in it.
func (s *RatingService) ComputeEventRankings(ctx context.Context, event *models.Event) error {
	categoryCount, err := s.categoryCount(ctx, event)
	if err != nil {
		return err
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entries []models.Entry
		if err := tx.Preload("Details").
			Where("event_id = ?", event.ID).
			Order("created_at").
			Find(&entries).Error; err != nil {
			return fmt.Errorf("load entries of event %s: %w", event.ID, err)
		}

		rankings := make(map[string][]*int, len(entries))
		byDivision := make(map[string][]models.Entry)
		for _, e := range entries {
			if e.Details == nil {
				continue
			}
			rankings[e.ID] = make([]*int, models.MaxCategories)
			byDivision[e.Division] = append(byDivision[e.Division], e)
		}

		for _, group := range byDivision {
			for i := 0; i < categoryCount; i++ {
				var items []rankedEntry
				for _, e := range group {
					if r := *e.Details.Ratings()[i]; r != nil {
						items = append(items, rankedEntry{entry: e, rating: *r})
					}
				}
				for k, rank := range competitionRanks(items) {
					rankings[items[k].entry.ID][i] = &rank
				}
			}
		}

		for _, e := range entries {
			if e.Details == nil {
				continue
			}
			for i, column := range e.Details.Rankings() {
				*column = rankings[e.ID][i]
			}
			if err := tx.Model(e.Details).Select(models.RankingColumns).Updates(e.Details).Error; err != nil {
				return fmt.Errorf("save rankings of entry %s: %w", e.ID, err)
			}
		}

		log.WithFields(log.Fields{"event_id": event.ID, "entries": len(entries)}).Info("[RATINGS] event rankings computed")
		return nil
	})
}
