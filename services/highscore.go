package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"event-ranking-engine/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HighScoreService ranks the scores submitted on entries.
//
// Every mutation locks the entry row (SELECT ... FOR UPDATE) before reading the
// full score set, so two concurrent submissions on one entry re-rank one after
// the other and never commit a stale ranking.
type HighScoreService struct {
	DB          *gorm.DB
	Settings    *SettingsService
	Tournaments *TournamentService
}

func NewHighScoreService(db *gorm.DB, settings *SettingsService, tournaments *TournamentService) *HighScoreService {
	return &HighScoreService{DB: db, Settings: settings, Tournaments: tournaments}
}

// better reports whether score a ranks strictly above score b.
func better(a, b float64, statusHighScore string) bool {
	if statusHighScore == models.HighScoreReversed {
		return a < b
	}
	return a > b
}

func lockEntry(tx *gorm.DB, entryID string) (*models.Entry, error) {
	var entry models.Entry
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&entry, "id = ?", entryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("entry %s: %w", entryID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock entry %s: %w", entryID, err)
	}
	return &entry, nil
}

// SubmitEntryScore saves the user's score on the entry and re-ranks it. An
// unchanged submission returns the current score untouched. A submission
// without proof that would enter the top ranks is rejected.
func (s *HighScoreService) SubmitEntryScore(ctx context.Context, submission *models.EntryScore, entry *models.Entry) (*models.EntryScore, error) {
	if entry.StatusHighScore == models.HighScoreOff {
		return nil, ErrScoresDisabled
	}
	if math.IsNaN(submission.Score) || math.IsInf(submission.Score, 0) {
		return nil, invalid("score", "invalid score format")
	}
	if submission.UserID == "" {
		return nil, invalid("user_id", "missing user")
	}
	proofTop, err := s.Settings.HighScoreProofTop(ctx)
	if err != nil {
		return nil, err
	}
	submission.Proof = strings.TrimSpace(submission.Proof)

	var saved models.EntryScore
	var affected []string
	unchanged := false
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockEntry(tx, entry.ID)
		if err != nil {
			return err
		}
		if locked.StatusHighScore == models.HighScoreOff {
			return ErrScoresDisabled
		}

		var existing models.EntryScore
		err = tx.Where("entry_id = ? AND user_id = ?", entry.ID, submission.UserID).First(&existing).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if found && existing.Score == submission.Score && existing.Proof == submission.Proof {
			saved = existing
			unchanged = true
			return nil
		}

		if submission.Proof == "" {
			op := "score > ?"
			if locked.StatusHighScore == models.HighScoreReversed {
				op = "score < ?"
			}
			var betterCount int64
			if err := tx.Model(&models.EntryScore{}).
				Where("entry_id = ? AND active = ? AND user_id <> ?", entry.ID, true, submission.UserID).
				Where(op, submission.Score).
				Count(&betterCount).Error; err != nil {
				return fmt.Errorf("count better scores: %w", err)
			}
			if betterCount < int64(proofTop) {
				return ErrProofRequired
			}
		}

		if found {
			existing.Score = submission.Score
			existing.Proof = submission.Proof
			existing.Active = true
			if err := tx.Save(&existing).Error; err != nil {
				return fmt.Errorf("update score: %w", err)
			}
			saved = existing
		} else {
			saved = models.EntryScore{
				EntryID: entry.ID,
				UserID:  submission.UserID,
				EventID: locked.EventID,
				Score:   submission.Score,
				Proof:   submission.Proof,
				Active:  true,
			}
			if err := tx.Create(&saved).Error; err != nil {
				return fmt.Errorf("create score: %w", err)
			}
		}

		affected, err = refreshEntryRankings(tx, locked)
		if err != nil {
			return err
		}
		return tx.First(&saved, "id = ?", saved.ID).Error
	})
	if err != nil {
		return nil, err
	}
	if unchanged {
		return &saved, nil
	}

	log.WithFields(log.Fields{
		"entry_id": entry.ID,
		"user_id":  saved.UserID,
		"score":    saved.Score,
		"ranking":  saved.Ranking,
	}).Info("[HIGHSCORE] score submitted")

	s.propagate(ctx, entry.ID, affected)
	return &saved, nil
}

// RefreshEntryRankings re-ranks all scores of an entry.
func (s *HighScoreService) RefreshEntryRankings(ctx context.Context, entry *models.Entry) error {
	var affected []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockEntry(tx, entry.ID)
		if err != nil {
			return err
		}
		affected, err = refreshEntryRankings(tx, locked)
		return err
	})
	if err != nil {
		return err
	}
	s.propagate(ctx, entry.ID, affected)
	return nil
}

// SetEntryScoreActive suspends or restores a score and re-ranks its entry.
func (s *HighScoreService) SetEntryScoreActive(ctx context.Context, id string, active bool) error {
	return s.mutateScore(ctx, id, func(tx *gorm.DB, score *models.EntryScore) error {
		return tx.Model(score).UpdateColumn("active", active).Error
	})
}

// DeleteEntryScore removes a score and re-ranks its entry.
func (s *HighScoreService) DeleteEntryScore(ctx context.Context, id string) error {
	return s.mutateScore(ctx, id, func(tx *gorm.DB, score *models.EntryScore) error {
		return tx.Delete(score).Error
	})
}

func (s *HighScoreService) mutateScore(ctx context.Context, id string, mutate func(tx *gorm.DB, score *models.EntryScore) error) error {
	var score models.EntryScore
	if err := s.DB.WithContext(ctx).First(&score, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("score %s: %w", id, ErrNotFound)
		}
		return err
	}

	var affected []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockEntry(tx, score.EntryID)
		if err != nil {
			return err
		}
		if err := mutate(tx, &score); err != nil {
			return fmt.Errorf("update score %s: %w", id, err)
		}
		affected, err = refreshEntryRankings(tx, locked)
		return err
	})
	if err != nil {
		return err
	}
	s.propagate(ctx, score.EntryID, appendUnique(affected, score.UserID))
	return nil
}

// DeleteAllEntryScores wipes the entry's leaderboard.
func (s *HighScoreService) DeleteAllEntryScores(ctx context.Context, entry *models.Entry) error {
	var users []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockEntry(tx, entry.ID); err != nil {
			return err
		}
		if err := tx.Model(&models.EntryScore{}).Where("entry_id = ?", entry.ID).Pluck("user_id", &users).Error; err != nil {
			return err
		}
		if err := tx.Where("entry_id = ?", entry.ID).Delete(&models.EntryScore{}).Error; err != nil {
			return fmt.Errorf("delete scores of entry %s: %w", entry.ID, err)
		}
		details, err := loadDetails(tx, entry.ID)
		if err != nil {
			return err
		}
		return tx.Model(details).UpdateColumn("high_score_count", 0).Error
	})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"entry_id": entry.ID, "deleted": len(users)}).Info("[HIGHSCORE] all scores deleted")
	s.propagate(ctx, entry.ID, users)
	return nil
}

// FindEntryScores lists the ranked (active) scores of an entry, best first.
func (s *HighScoreService) FindEntryScores(ctx context.Context, entryID string, limit int) ([]models.EntryScore, error) {
	q := s.DB.WithContext(ctx).
		Where("entry_id = ? AND active = ?", entryID, true).
		Order("ranking")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var scores []models.EntryScore
	if err := q.Find(&scores).Error; err != nil {
		return nil, fmt.Errorf("find scores of entry %s: %w", entryID, err)
	}
	return scores, nil
}

// FindUserScore returns the user's score on an entry, or ErrNotFound.
func (s *HighScoreService) FindUserScore(ctx context.Context, userID, entryID string) (*models.EntryScore, error) {
	var score models.EntryScore
	err := s.DB.WithContext(ctx).Where("entry_id = ? AND user_id = ?", entryID, userID).First(&score).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("score of %s on entry %s: %w", userID, entryID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// assignRankings walks scores in ranking order and numbers active rows from 1.
// Suspended rows get no ranking. It returns the indexes of rows that changed.
func assignRankings(scores []models.EntryScore) []int {
	var changed []int
	rank := 0
	for i := range scores {
		if !scores[i].Active {
			if scores[i].Ranking != nil {
				scores[i].Ranking = nil
				changed = append(changed, i)
			}
			continue
		}
		rank++
		if scores[i].Ranking == nil || *scores[i].Ranking != rank {
			r := rank
			scores[i].Ranking = &r
			changed = append(changed, i)
		}
	}
	return changed
}

// refreshEntryRankings must run inside the transaction holding the entry lock.
// It returns the users whose ranking changed.
func refreshEntryRankings(tx *gorm.DB, entry *models.Entry) ([]string, error) {
	direction := "DESC"
	if entry.StatusHighScore == models.HighScoreReversed {
		direction = "ASC"
	}
	var scores []models.EntryScore
	if err := tx.Where("entry_id = ?", entry.ID).
		Order("score " + direction).
		Order("updated_at").
		Order("id").
		Find(&scores).Error; err != nil {
		return nil, fmt.Errorf("load scores of entry %s: %w", entry.ID, err)
	}

	var users []string
	for _, i := range assignRankings(scores) {
		if err := tx.Model(&models.EntryScore{}).Where("id = ?", scores[i].ID).
			UpdateColumn("ranking", scores[i].Ranking).Error; err != nil {
			return nil, fmt.Errorf("save ranking of score %s: %w", scores[i].ID, err)
		}
		users = append(users, scores[i].UserID)
	}

	details, err := loadDetails(tx, entry.ID)
	if err != nil {
		return nil, err
	}
	if details.HighScoreCount != len(scores) {
		if err := tx.Model(details).UpdateColumn("high_score_count", len(scores)).Error; err != nil {
			return nil, fmt.Errorf("save high score count of entry %s: %w", entry.ID, err)
		}
	}
	return users, nil
}

// propagate refreshes the tournament points of the given users in every
// playing tournament the entry belongs to.
func (s *HighScoreService) propagate(ctx context.Context, entryID string, users []string) {
	if s.Tournaments == nil || len(users) == 0 {
		return
	}
	var events []models.Event
	err := s.DB.WithContext(ctx).
		Where("status_tournament = ? AND id IN (?)", models.TournamentStatusPlaying,
			s.DB.Model(&models.TournamentEntry{}).Select("event_id").Where("entry_id = ?", entryID)).
		Find(&events).Error
	if err != nil {
		log.WithError(err).WithField("entry_id", entryID).Warn("[HIGHSCORE] could not load tournaments")
		return
	}
	for i := range events {
		for _, userID := range users {
			if err := s.Tournaments.RefreshTournamentScore(ctx, &events[i], userID); err != nil {
				log.WithError(err).WithFields(log.Fields{
					"event_id": events[i].ID,
					"user_id":  userID,
				}).Warn("[HIGHSCORE] tournament refresh failed")
			}
		}
	}
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
