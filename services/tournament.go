package services

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"event-ranking-engine/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TournamentService turns the high score rankings of a tournament's entries
// into tournament points and ranks the participants.
type TournamentService struct {
	DB       *gorm.DB
	Settings *SettingsService
}

func NewTournamentService(db *gorm.DB, settings *SettingsService) *TournamentService {
	return &TournamentService{DB: db, Settings: settings}
}

// tournamentPoints maps the user's ranking on each entry to points. Suspended
// scores and rankings beyond the table earn nothing.
func tournamentPoints(entryIDs []string, scores map[string]models.EntryScore, table []int) (int, map[string]int) {
	total := 0
	perEntry := make(map[string]int, len(entryIDs))
	for _, entryID := range entryIDs {
		score, ok := scores[entryID]
		points := 0
		if ok && score.Active && score.Ranking != nil && *score.Ranking >= 1 && *score.Ranking <= len(table) {
			points = table[*score.Ranking-1]
		}
		perEntry[entryID] = points
		total += points
	}
	return total, perEntry
}

func lockEvent(tx *gorm.DB, eventID string) (*models.Event, error) {
	var event models.Event
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&event, "id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock event %s: %w", eventID, err)
	}
	return &event, nil
}

func tournamentEntryIDs(tx *gorm.DB, eventID string) ([]string, error) {
	var ids []string
	err := tx.Model(&models.TournamentEntry{}).
		Where("event_id = ?", eventID).
		Order("ordering").
		Order("created_at").
		Pluck("entry_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load entries of tournament %s: %w", eventID, err)
	}
	return ids, nil
}

// RefreshTournamentScore recomputes a user's points in the tournament and, if
// they changed while the tournament is playing, re-ranks all participants.
func (s *TournamentService) RefreshTournamentScore(ctx context.Context, event *models.Event, userID string) error {
	table, err := s.Settings.PointsDistribution(ctx)
	if err != nil {
		return err
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockEvent(tx, event.ID)
		if err != nil {
			return err
		}
		return refreshTournamentScore(tx, locked, userID, table)
	})
}

func refreshTournamentScore(tx *gorm.DB, event *models.Event, userID string, table []int) error {
	entryIDs, err := tournamentEntryIDs(tx, event.ID)
	if err != nil {
		return err
	}

	var rows []models.EntryScore
	if len(entryIDs) > 0 {
		if err := tx.Where("user_id = ? AND entry_id IN ?", userID, entryIDs).Find(&rows).Error; err != nil {
			return fmt.Errorf("load scores of %s: %w", userID, err)
		}
	}
	scores := make(map[string]models.EntryScore, len(rows))
	for _, r := range rows {
		scores[r.EntryID] = r
	}
	total, perEntry := tournamentPoints(entryIDs, scores, table)

	var current models.TournamentScore
	err = tx.Where("event_id = ? AND user_id = ?", event.ID, userID).First(&current).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if len(rows) == 0 {
			return nil
		}
		current = models.TournamentScore{EventID: event.ID, UserID: userID, Score: total, EntryPoints: perEntry}
		if err := tx.Create(&current).Error; err != nil {
			return fmt.Errorf("create tournament score of %s: %w", userID, err)
		}
	case err != nil:
		return err
	default:
		if current.Score == total {
			if !maps.Equal(current.EntryPoints, perEntry) {
				// Same total, only the breakdown moved: keep updated_at for tie-breaks.
				if err := tx.Model(&current).Select("entry_points").
					UpdateColumns(models.TournamentScore{EntryPoints: perEntry}).Error; err != nil {
					return fmt.Errorf("save tournament breakdown of %s: %w", userID, err)
				}
			}
			return nil
		}
		current.Score = total
		current.EntryPoints = perEntry
		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("save tournament score of %s: %w", userID, err)
		}
	}

	if event.StatusTournament != models.TournamentStatusPlaying {
		return nil
	}
	return refreshTournamentRankings(tx, event.ID)
}

// assignTournamentRankings numbers already ordered scores from 1 and returns
// the indexes of rows whose ranking changed.
func assignTournamentRankings(scores []models.TournamentScore) []int {
	var changed []int
	for i := range scores {
		if scores[i].Ranking != i+1 {
			scores[i].Ranking = i + 1
			changed = append(changed, i)
		}
	}
	return changed
}

func refreshTournamentRankings(tx *gorm.DB, eventID string) error {
	var scores []models.TournamentScore
	if err := tx.Where("event_id = ?", eventID).
		Order("score DESC").
		Order("updated_at").
		Order("id").
		Find(&scores).Error; err != nil {
		return fmt.Errorf("load tournament scores of %s: %w", eventID, err)
	}
	for _, i := range assignTournamentRankings(scores) {
		if err := tx.Model(&models.TournamentScore{}).Where("id = ?", scores[i].ID).
			UpdateColumn("ranking", scores[i].Ranking).Error; err != nil {
			return fmt.Errorf("save tournament ranking %s: %w", scores[i].ID, err)
		}
	}
	return nil
}

// AddEntry appends an entry to the tournament and recomputes every participant.
func (s *TournamentService) AddEntry(ctx context.Context, event *models.Event, entryID string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockEvent(tx, event.ID); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.TournamentEntry{}).Where("event_id = ?", event.ID).Count(&count).Error; err != nil {
			return err
		}
		te := models.TournamentEntry{EventID: event.ID, EntryID: entryID, Ordering: int(count) + 1}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&te).Error
	})
	if err != nil {
		return fmt.Errorf("add entry %s to tournament %s: %w", entryID, event.ID, err)
	}
	return s.RecalculateAllScores(ctx, event)
}

// RemoveEntry removes an entry from the tournament and recomputes every participant.
func (s *TournamentService) RemoveEntry(ctx context.Context, event *models.Event, entryID string) error {
	if err := s.DB.WithContext(ctx).
		Where("event_id = ? AND entry_id = ?", event.ID, entryID).
		Delete(&models.TournamentEntry{}).Error; err != nil {
		return fmt.Errorf("remove entry %s from tournament %s: %w", entryID, event.ID, err)
	}
	return s.RecalculateAllScores(ctx, event)
}

// RecalculateAllScores refreshes the points of everyone with a score on a
// tournament entry or an existing tournament score, then re-ranks once.
func (s *TournamentService) RecalculateAllScores(ctx context.Context, event *models.Event) error {
	table, err := s.Settings.PointsDistribution(ctx)
	if err != nil {
		return err
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockEvent(tx, event.ID)
		if err != nil {
			return err
		}

		var users []string
		if err := tx.Model(&models.EntryScore{}).Distinct("user_id").
			Where("entry_id IN (?)", tx.Model(&models.TournamentEntry{}).Select("entry_id").Where("event_id = ?", event.ID)).
			Pluck("user_id", &users).Error; err != nil {
			return fmt.Errorf("load tournament players: %w", err)
		}
		var existing []string
		if err := tx.Model(&models.TournamentScore{}).Where("event_id = ?", event.ID).Pluck("user_id", &existing).Error; err != nil {
			return err
		}
		for _, u := range existing {
			users = appendUnique(users, u)
		}

		// Rank once at the end instead of after every user.
		quiet := *locked
		quiet.StatusTournament = models.TournamentStatusOff
		for _, userID := range users {
			if err := refreshTournamentScore(tx, &quiet, userID, table); err != nil {
				return err
			}
		}
		log.WithFields(log.Fields{"event_id": event.ID, "players": len(users)}).Info("[TOURNAMENT] scores recalculated")
		if locked.StatusTournament != models.TournamentStatusPlaying {
			return nil
		}
		return refreshTournamentRankings(tx, event.ID)
	})
}

// FindTournamentScores lists the tournament leaderboard. limit <= 0 means all.
func (s *TournamentService) FindTournamentScores(ctx context.Context, eventID string, limit int) ([]models.TournamentScore, error) {
	q := s.DB.WithContext(ctx).Where("event_id = ?", eventID).Order("ranking").Order("score DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var scores []models.TournamentScore
	if err := q.Find(&scores).Error; err != nil {
		return nil, fmt.Errorf("find tournament scores of %s: %w", eventID, err)
	}
	return scores, nil
}
