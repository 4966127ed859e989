package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"event-ranking-engine/models"

	"github.com/gosimple/slug"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// IdeasPerUser is the number of idea slots a user fills per event.
	IdeasPerUser = 3
	// ThemesToVotePageSize is how many themes are proposed per voting page.
	ThemesToVotePageSize = 10
	maxThemeTitleLength  = 100
)

// ThemeIdea is one submitted idea slot. An empty ID means a new idea, an
// empty Title deletes the existing one.
type ThemeIdea struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ThemeService handles theme idea submission and up/down voting.
type ThemeService struct {
	DB *gorm.DB
}

func NewThemeService(db *gorm.DB) *ThemeService {
	return &ThemeService{DB: db}
}

// NormalizeThemeTitle trims and NFC-normalizes a title so that visually equal
// titles compare and slug the same way.
func NormalizeThemeTitle(title string) string {
	return strings.Join(strings.Fields(norm.NFC.String(title)), " ")
}

// ThemeSlug is the key used for duplicate detection.
func ThemeSlug(title string) string {
	return slug.Make(title)
}

// SaveThemeIdeas reconciles the user's themes for the event with the three
// submitted idea slots.
func (s *ThemeService) SaveThemeIdeas(ctx context.Context, userID string, event *models.Event, ideas []ThemeIdea) error {
	if event.StatusTheme != models.ThemeStatusVoting {
		return ErrThemeVotingClosed
	}
	if len(ideas) != IdeasPerUser {
		return invalid("ideas", "expected %d ideas, got %d", IdeasPerUser, len(ideas))
	}
	for i := range ideas {
		ideas[i].Title = NormalizeThemeTitle(ideas[i].Title)
		if utf8.RuneCountInString(ideas[i].Title) > maxThemeTitleLength {
			return invalid("ideas", "theme titles are limited to %d characters", maxThemeTitleLength)
		}
		if ideas[i].Title != "" && ThemeSlug(ideas[i].Title) == "" {
			return invalid("ideas", "theme %q has no letters or digits", ideas[i].Title)
		}
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned []models.Theme
		if err := tx.Where("event_id = ? AND user_id = ?", event.ID, userID).Find(&owned).Error; err != nil {
			return fmt.Errorf("load themes of %s: %w", userID, err)
		}
		byID := make(map[string]*models.Theme, len(owned))
		for i := range owned {
			byID[owned[i].ID] = &owned[i]
		}

		submitted := make(map[string]bool, IdeasPerUser)
		for _, idea := range ideas {
			if idea.ID != "" {
				theme, ok := byID[idea.ID]
				if !ok {
					// Not one of the user's themes.
					continue
				}
				submitted[theme.ID] = true

				if idea.Title == "" {
					if err := deleteTheme(tx, theme.ID); err != nil {
						return err
					}
					continue
				}
				if theme.Title == idea.Title || (theme.Status != models.ThemeActive && theme.Status != models.ThemeDuplicate) {
					continue
				}
				theme.Title = idea.Title
				if err := detectDuplicate(tx, theme); err != nil {
					return err
				}
				if err := tx.Save(theme).Error; err != nil {
					return fmt.Errorf("update theme %s: %w", theme.ID, err)
				}
				continue
			}

			if idea.Title == "" {
				continue
			}
			theme := &models.Theme{
				EventID: event.ID,
				UserID:  userID,
				Title:   idea.Title,
				Status:  models.ThemeActive,
			}
			if err := detectDuplicate(tx, theme); err != nil {
				return err
			}
			if err := tx.Create(theme).Error; err != nil {
				return fmt.Errorf("create theme: %w", err)
			}
		}

		for _, theme := range owned {
			if !submitted[theme.ID] {
				if err := deleteTheme(tx, theme.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// detectDuplicate sets the slug and, when another theme of the event already
// uses it, collapses the theme and every active theme with that slug into
// duplicates. An edited duplicate whose slug became unique goes back to active.
func detectDuplicate(tx *gorm.DB, theme *models.Theme) error {
	theme.Slug = ThemeSlug(theme.Title)

	var count int64
	q := tx.Model(&models.Theme{}).Where("event_id = ? AND slug = ?", theme.EventID, theme.Slug)
	if theme.ID != "" {
		q = q.Where("id <> ?", theme.ID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("check duplicate theme %q: %w", theme.Slug, err)
	}

	if count == 0 {
		if theme.Status == models.ThemeDuplicate {
			theme.Status = models.ThemeActive
		}
		return nil
	}

	var colliding []string
	q = tx.Model(&models.Theme{}).
		Where("event_id = ? AND slug = ? AND status = ?", theme.EventID, theme.Slug, models.ThemeActive)
	if theme.ID != "" {
		q = q.Where("id <> ?", theme.ID)
	}
	if err := q.Pluck("id", &colliding).Error; err != nil {
		return fmt.Errorf("load themes with slug %q: %w", theme.Slug, err)
	}
	if len(colliding) > 0 {
		if err := tx.Where("theme_id IN ?", colliding).Delete(&models.ThemeVote{}).Error; err != nil {
			return fmt.Errorf("delete votes of duplicate themes: %w", err)
		}
		if err := tx.Model(&models.Theme{}).Where("id IN ?", colliding).UpdateColumns(map[string]interface{}{
			"status":  models.ThemeDuplicate,
			"score":   0,
			"notes":   0,
			"reports": 0,
		}).Error; err != nil {
			return fmt.Errorf("collapse themes with slug %q: %w", theme.Slug, err)
		}
	}

	// Counters restart from zero, so the votes behind them go too.
	if theme.ID != "" {
		if err := tx.Where("theme_id = ?", theme.ID).Delete(&models.ThemeVote{}).Error; err != nil {
			return fmt.Errorf("delete votes of theme %s: %w", theme.ID, err)
		}
	}
	theme.Status = models.ThemeDuplicate
	theme.Score = 0
	theme.Notes = 0
	theme.Reports = 0
	log.WithFields(log.Fields{"event_id": theme.EventID, "slug": theme.Slug, "collapsed": len(colliding)}).
		Debug("[THEMES] duplicate idea")
	return nil
}

func deleteTheme(tx *gorm.DB, themeID string) error {
	if err := tx.Where("theme_id = ?", themeID).Delete(&models.ThemeVote{}).Error; err != nil {
		return fmt.Errorf("delete votes of theme %s: %w", themeID, err)
	}
	if err := tx.Where("id = ?", themeID).Delete(&models.Theme{}).Error; err != nil {
		return fmt.Errorf("delete theme %s: %w", themeID, err)
	}
	return nil
}

// FindUserThemes lists the themes a user submitted for an event, duplicates included.
func (s *ThemeService) FindUserThemes(ctx context.Context, userID, eventID string) ([]models.Theme, error) {
	var themes []models.Theme
	err := s.DB.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Order("created_at").
		Find(&themes).Error
	return themes, err
}

// SaveVote records a +1/-1 vote and applies the difference to the theme score.
func (s *ThemeService) SaveVote(ctx context.Context, userID string, event *models.Event, themeID string, score int) error {
	if event.StatusTheme != models.ThemeStatusVoting {
		return ErrThemeVotingClosed
	}
	if score != -1 && score != 1 {
		return invalid("score", "theme votes must be -1 or +1")
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var theme models.Theme
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND event_id = ?", themeID, event.ID).
			First(&theme).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("theme %s: %w", themeID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if theme.Status != models.ThemeActive {
			return invalid("theme", "this theme is not open for voting")
		}
		if theme.UserID == userID {
			return invalid("theme", "you cannot vote on your own theme")
		}

		var vote models.ThemeVote
		err = tx.Where("theme_id = ? AND user_id = ?", themeID, userID).First(&vote).Error
		previous, firstVote := 0, false
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			firstVote = true
			vote = models.ThemeVote{ThemeID: themeID, UserID: userID, EventID: event.ID, Score: score}
			if err := tx.Create(&vote).Error; err != nil {
				return fmt.Errorf("create theme vote: %w", err)
			}
		case err != nil:
			return err
		default:
			previous = vote.Score
			if previous == score {
				return nil
			}
			if err := tx.Model(&vote).Update("score", score).Error; err != nil {
				return fmt.Errorf("update theme vote: %w", err)
			}
		}

		updates := map[string]interface{}{"score": gorm.Expr("score + ?", score-previous)}
		if firstVote {
			updates["notes"] = gorm.Expr("notes + 1")
		}
		if err := tx.Model(&models.Theme{}).Where("id = ?", themeID).UpdateColumns(updates).Error; err != nil {
			return fmt.Errorf("update theme %s score: %w", themeID, err)
		}
		return nil
	})
}

// FindThemesToVoteOn returns a page of active themes the user neither owns nor
// voted on yet, most-voted first.
func (s *ThemeService) FindThemesToVoteOn(ctx context.Context, userID string, event *models.Event) ([]models.Theme, error) {
	db := s.DB.WithContext(ctx)
	voted := db.Model(&models.ThemeVote{}).Select("theme_id").Where("event_id = ? AND user_id = ?", event.ID, userID)

	var themes []models.Theme
	err := db.Where("event_id = ? AND status = ? AND user_id <> ?", event.ID, models.ThemeActive, userID).
		Where("id NOT IN (?)", voted).
		Order("notes DESC").
		Order("created_at").
		Limit(ThemesToVotePageSize).
		Find(&themes).Error
	if err != nil {
		return nil, fmt.Errorf("find themes to vote on: %w", err)
	}
	return themes, nil
}

// BanTheme removes a theme from every voting pool.
func (s *ThemeService) BanTheme(ctx context.Context, themeID string) error {
	res := s.DB.WithContext(ctx).Model(&models.Theme{}).
		Where("id = ?", themeID).
		UpdateColumn("status", models.ThemeBanned)
	if res.Error != nil {
		return fmt.Errorf("ban theme %s: %w", themeID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("theme %s: %w", themeID, ErrNotFound)
	}
	log.WithField("theme_id", themeID).Info("[THEMES] theme banned")
	return nil
}
