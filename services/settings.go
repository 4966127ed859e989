package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"event-ranking-engine/config"
	"event-ranking-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Setting keys that can be overridden in the settings table.
const (
	SettingMinRatingVotes     = "min_rating_votes"
	SettingMaxCategoryCount   = "max_category_count"
	SettingShortlistSize      = "shortlist_size"
	SettingEliminationMinutes = "shortlist_elimination_minutes"
	SettingPointsDistribution = "tournament_points_distribution"
	SettingHighScoreProofTop  = "high_score_proof_top"
)

const settingsCacheTTL = time.Minute

// SettingsService is the read-mostly settings provider. Values come from the
// settings table when present, otherwise from the environment defaults.
type SettingsService struct {
	DB       *gorm.DB
	Cache    Cache
	Defaults config.Engine
}

func NewSettingsService(db *gorm.DB, cache Cache, defaults config.Engine) *SettingsService {
	return &SettingsService{DB: db, Cache: cache, Defaults: defaults}
}

func (s *SettingsService) lookup(ctx context.Context, key string) (string, bool, error) {
	cacheKey := "setting:" + key
	if v, ok := s.Cache.Get(cacheKey); ok {
		str := v.(string)
		return str, str != "", nil
	}

	var setting models.Setting
	err := s.DB.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.Cache.Set(cacheKey, "", settingsCacheTTL)
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %s: %w", key, err)
	}
	s.Cache.Set(cacheKey, setting.Value, settingsCacheTTL)
	return setting.Value, setting.Value != "", nil
}

func (s *SettingsService) intSetting(ctx context.Context, key string, fallback, lowest int) (int, error) {
	raw, ok, err := s.lookup(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ConfigurationError{Setting: key, Message: fmt.Sprintf("%q is not an integer", raw)}
	}
	if v < lowest {
		return 0, &ConfigurationError{Setting: key, Message: fmt.Sprintf("must be >= %d", lowest)}
	}
	return v, nil
}

// Set stores an override and drops the cached value.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	setting := models.Setting{Key: key, Value: value}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	s.Cache.Delete("setting:" + key)
	return nil
}

// MinRatingVotes is the number of votes a category needs before it gets a rating.
func (s *SettingsService) MinRatingVotes(ctx context.Context) (int, error) {
	return s.intSetting(ctx, SettingMinRatingVotes, s.Defaults.MinRatingVotes, 1)
}

// MaxCategoryCount is the maximum number of rating categories of an event.
func (s *SettingsService) MaxCategoryCount(ctx context.Context) (int, error) {
	v, err := s.intSetting(ctx, SettingMaxCategoryCount, s.Defaults.MaxCategoryCount, 1)
	if err != nil {
		return 0, err
	}
	if v > models.MaxCategories {
		return 0, &ConfigurationError{Setting: SettingMaxCategoryCount, Message: fmt.Sprintf("must be <= %d", models.MaxCategories)}
	}
	return v, nil
}

func (s *SettingsService) ShortlistSize(ctx context.Context) (int, error) {
	return s.intSetting(ctx, SettingShortlistSize, s.Defaults.ShortlistSize, 2)
}

func (s *SettingsService) EliminationMinutes(ctx context.Context) (int, error) {
	return s.intSetting(ctx, SettingEliminationMinutes, s.Defaults.ShortlistEliminationMinutes, 1)
}

// HighScoreProofTop is how many ranks require a proof (10 = top 10).
func (s *SettingsService) HighScoreProofTop(ctx context.Context) (int, error) {
	return s.intSetting(ctx, SettingHighScoreProofTop, s.Defaults.HighScoreProofTop, 0)
}

// PointsDistribution returns the tournament points table, position = rank - 1.
func (s *SettingsService) PointsDistribution(ctx context.Context) ([]int, error) {
	raw, ok, err := s.lookup(ctx, SettingPointsDistribution)
	if err != nil {
		return nil, err
	}
	if !ok {
		raw = s.Defaults.TournamentPointsDistribution
	}
	points, err := config.ParsePointsDistribution(raw)
	if err != nil {
		return nil, &ConfigurationError{Setting: SettingPointsDistribution, Message: err.Error()}
	}
	return points, nil
}

// KarmaRefreshInterval is the minimum delay between two unforced karma refreshes of an entry.
func (s *SettingsService) KarmaRefreshInterval() time.Duration {
	return s.Defaults.KarmaRefreshInterval
}
