package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"event-ranking-engine/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShortlistTopPick is the ballot score marking a user's favorite theme.
const ShortlistTopPick = 9

// EliminationState is the countdown state of a shortlist at a given time.
type EliminationState struct {
	ShortlistSize     int        `json:"shortlist_size"`
	EliminatedCount   int        `json:"eliminated_count"`
	NextEliminationAt *time.Time `json:"next_elimination_at,omitempty"`
	Finished          bool       `json:"finished"` // only the winning theme remains
}

// ComputeEliminationState derives how many themes are eliminated at now. The
// first elimination happens at start, then one every interval, until a single
// theme remains.
func ComputeEliminationState(start *time.Time, interval time.Duration, size int, now time.Time) EliminationState {
	state := EliminationState{ShortlistSize: size}
	if size <= 1 {
		state.Finished = true
		return state
	}
	if start == nil || interval <= 0 {
		return state
	}
	if now.Before(*start) {
		next := *start
		state.NextEliminationAt = &next
		return state
	}

	eliminated := int(now.Sub(*start)/interval) + 1
	if eliminated >= size-1 {
		state.EliminatedCount = size - 1
		state.Finished = true
		return state
	}
	state.EliminatedCount = eliminated
	next := start.Add(time.Duration(eliminated) * interval)
	state.NextEliminationAt = &next
	return state
}

// ShortlistView splits the shortlist into remaining and eliminated themes.
type ShortlistView struct {
	State      EliminationState `json:"state"`
	Remaining  []models.Theme   `json:"remaining"`
	Eliminated []models.Theme   `json:"eliminated"`
}

// ShortlistResult is a theme's final ballot tally.
type ShortlistResult struct {
	Theme    models.Theme `json:"theme"`
	Total    int          `json:"total"`
	Votes    int          `json:"votes"`
	TopPicks int          `json:"top_picks"`
}

// ThemeShortlistService computes the shortlist, runs its elimination countdown
// and tallies the final ballots.
type ThemeShortlistService struct {
	DB       *gorm.DB
	Settings *SettingsService
}

func NewThemeShortlistService(db *gorm.DB, settings *SettingsService) *ThemeShortlistService {
	return &ThemeShortlistService{DB: db, Settings: settings}
}

// FindBestThemes returns the event's votable themes by score. limit <= 0 means all.
func (s *ThemeShortlistService) FindBestThemes(ctx context.Context, event *models.Event, limit int) ([]models.Theme, error) {
	return findBestThemes(s.DB.WithContext(ctx), event.ID, limit)
}

func findBestThemes(db *gorm.DB, eventID string, limit int) ([]models.Theme, error) {
	q := db.Where("event_id = ? AND status IN ?", eventID,
		[]string{models.ThemeActive, models.ThemeShortlist, models.ThemeOut}).
		Order("score DESC").
		Order("created_at").
		Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var themes []models.Theme
	if err := q.Find(&themes).Error; err != nil {
		return nil, fmt.Errorf("find best themes of event %s: %w", eventID, err)
	}
	return themes, nil
}

// ComputeShortlist promotes the best themes into the shortlist, fixing their
// order, and moves the others out. The elimination countdown is reset.
func (s *ThemeShortlistService) ComputeShortlist(ctx context.Context, event *models.Event) ([]models.Theme, error) {
	size, err := s.Settings.ShortlistSize(ctx)
	if err != nil {
		return nil, err
	}

	var shortlist []models.Theme
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.Event
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, "id = ?", event.ID).Error; err != nil {
			return fmt.Errorf("lock event %s: %w", event.ID, err)
		}

		themes, err := findBestThemes(tx, event.ID, 0)
		if err != nil {
			return err
		}
		for i := range themes {
			updates := map[string]interface{}{"status": models.ThemeOut, "ranking": nil}
			if i < size {
				position := i + 1
				themes[i].Status = models.ThemeShortlist
				themes[i].Ranking = &position
				updates = map[string]interface{}{"status": models.ThemeShortlist, "ranking": position}
				shortlist = append(shortlist, themes[i])
			}
			if err := tx.Model(&models.Theme{}).Where("id = ?", themes[i].ID).UpdateColumns(updates).Error; err != nil {
				return fmt.Errorf("update theme %s: %w", themes[i].ID, err)
			}
		}

		return tx.Model(&models.Event{}).Where("id = ?", event.ID).UpdateColumns(map[string]interface{}{
			"elimination_started_at": nil,
			"eliminated_count":       0,
			"next_elimination_at":    nil,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	event.EliminationStartedAt = nil
	event.EliminatedCount = 0
	event.NextEliminationAt = nil
	log.WithFields(log.Fields{"event_id": event.ID, "size": len(shortlist)}).Info("[SHORTLIST] shortlist computed")
	return shortlist, nil
}

// StartElimination schedules the countdown: the first theme goes at startAt,
// then one every elimination interval.
func (s *ThemeShortlistService) StartElimination(ctx context.Context, event *models.Event, startAt time.Time) error {
	minutes, err := s.Settings.EliminationMinutes(ctx)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"elimination_started_at": startAt,
		"elimination_minutes":    minutes,
		"eliminated_count":       0,
		"next_elimination_at":    startAt,
	}
	if err := s.DB.WithContext(ctx).Model(&models.Event{}).Where("id = ?", event.ID).UpdateColumns(updates).Error; err != nil {
		return fmt.Errorf("start elimination of event %s: %w", event.ID, err)
	}
	event.EliminationStartedAt = &startAt
	event.EliminationMinutes = minutes
	event.EliminatedCount = 0
	event.NextEliminationAt = &startAt
	return nil
}

func (s *ThemeShortlistService) loadShortlist(db *gorm.DB, eventID string) ([]models.Theme, error) {
	var themes []models.Theme
	err := db.Where("event_id = ? AND status = ?", eventID, models.ThemeShortlist).
		Order("ranking").
		Find(&themes).Error
	if err != nil {
		return nil, fmt.Errorf("load shortlist of event %s: %w", eventID, err)
	}
	return themes, nil
}

// AdvanceElimination evaluates the countdown at now and stores the event-level
// counters when they moved.
func (s *ThemeShortlistService) AdvanceElimination(ctx context.Context, event *models.Event, now time.Time) (ShortlistView, error) {
	db := s.DB.WithContext(ctx)
	themes, err := s.loadShortlist(db, event.ID)
	if err != nil {
		return ShortlistView{}, err
	}

	interval := time.Duration(event.EliminationMinutes) * time.Minute
	state := ComputeEliminationState(event.EliminationStartedAt, interval, len(themes), now)

	if event.EliminationStartedAt != nil && (state.EliminatedCount != event.EliminatedCount || !sameTime(state.NextEliminationAt, event.NextEliminationAt)) {
		if err := db.Model(&models.Event{}).Where("id = ?", event.ID).UpdateColumns(map[string]interface{}{
			"eliminated_count":    state.EliminatedCount,
			"next_elimination_at": state.NextEliminationAt,
		}).Error; err != nil {
			return ShortlistView{}, fmt.Errorf("save elimination state of event %s: %w", event.ID, err)
		}
		if state.EliminatedCount > event.EliminatedCount {
			log.WithFields(log.Fields{"event_id": event.ID, "eliminated": state.EliminatedCount}).Info("[SHORTLIST] themes eliminated")
		}
		event.EliminatedCount = state.EliminatedCount
		event.NextEliminationAt = state.NextEliminationAt
	}

	cut := len(themes) - state.EliminatedCount
	return ShortlistView{State: state, Remaining: themes[:cut], Eliminated: themes[cut:]}, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// SaveShortlistVotes replaces the user's ballot. Scores go from 1 to 10 and at
// most one theme can be marked as the top pick.
func (s *ThemeShortlistService) SaveShortlistVotes(ctx context.Context, userID string, event *models.Event, scores map[string]int) error {
	if event.StatusTheme != models.ThemeStatusShortlist {
		return ErrThemeVotingClosed
	}
	if len(scores) == 0 {
		return invalid("scores", "the ballot is empty")
	}
	topPicks := 0
	for themeID, score := range scores {
		if score < 1 || score > 10 {
			return invalid("scores", "score of theme %s must be between 1 and 10", themeID)
		}
		if score == ShortlistTopPick {
			topPicks++
		}
	}
	if topPicks > 1 {
		return invalid("scores", "only one theme can be your top pick")
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shortlist, err := s.loadShortlist(tx, event.ID)
		if err != nil {
			return err
		}
		onShortlist := make(map[string]bool, len(shortlist))
		for _, t := range shortlist {
			onShortlist[t.ID] = true
		}
		for themeID := range scores {
			if !onShortlist[themeID] {
				return invalid("scores", "theme %s is not on the shortlist", themeID)
			}
		}

		if err := tx.Where("event_id = ? AND user_id = ?", event.ID, userID).
			Delete(&models.ThemeShortlistVote{}).Error; err != nil {
			return fmt.Errorf("clear ballot of %s: %w", userID, err)
		}
		votes := make([]models.ThemeShortlistVote, 0, len(scores))
		for _, t := range shortlist {
			if score, ok := scores[t.ID]; ok {
				votes = append(votes, models.ThemeShortlistVote{ThemeID: t.ID, UserID: userID, EventID: event.ID, Score: score})
			}
		}
		if err := tx.Create(&votes).Error; err != nil {
			return fmt.Errorf("save ballot of %s: %w", userID, err)
		}
		return nil
	})
}

// FindShortlistResults sums the ballots per shortlisted theme, best first.
// Ties go to the better shortlist position, then to the earlier submission.
func (s *ThemeShortlistService) FindShortlistResults(ctx context.Context, event *models.Event) ([]ShortlistResult, error) {
	db := s.DB.WithContext(ctx)
	themes, err := s.loadShortlist(db, event.ID)
	if err != nil {
		return nil, err
	}
	var votes []models.ThemeShortlistVote
	if err := db.Where("event_id = ?", event.ID).Find(&votes).Error; err != nil {
		return nil, fmt.Errorf("load shortlist votes of event %s: %w", event.ID, err)
	}
	return tallyShortlist(themes, votes), nil
}

func tallyShortlist(themes []models.Theme, votes []models.ThemeShortlistVote) []ShortlistResult {
	byTheme := make(map[string]*ShortlistResult, len(themes))
	results := make([]ShortlistResult, len(themes))
	for i, t := range themes {
		results[i] = ShortlistResult{Theme: t}
		byTheme[t.ID] = &results[i]
	}
	for _, v := range votes {
		r, ok := byTheme[v.ThemeID]
		if !ok {
			continue
		}
		r.Total += v.Score
		r.Votes++
		if v.Score == ShortlistTopPick {
			r.TopPicks++
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if pa, pb := position(a.Theme), position(b.Theme); pa != pb {
			return pa < pb
		}
		return a.Theme.CreatedAt.Before(b.Theme.CreatedAt)
	})
	return results
}

func position(t models.Theme) int {
	if t.Ranking == nil {
		return int(^uint(0) >> 1)
	}
	return *t.Ranking
}
