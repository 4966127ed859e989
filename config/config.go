// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// Engine holds the defaults of the rating, karma and ranking engine.
// Each value can be overridden at runtime through the settings table.
type Engine struct {
	MinRatingVotes               int           `envconfig:"MIN_RATING_VOTES" default:"5"`
	MaxCategoryCount             int           `envconfig:"MAX_CATEGORY_COUNT" default:"7"`
	ShortlistSize                int           `envconfig:"SHORTLIST_SIZE" default:"10"`
	ShortlistEliminationMinutes  int           `envconfig:"SHORTLIST_ELIMINATION_MINUTES" default:"8"`
	TournamentPointsDistribution string        `envconfig:"TOURNAMENT_POINTS_DISTRIBUTION" default:"10,8,6,5,4,3,2,1"`
	HighScoreProofTop            int           `envconfig:"HIGH_SCORE_PROOF_TOP" default:"10"`
	KarmaRefreshInterval         time.Duration `envconfig:"KARMA_REFRESH_INTERVAL" default:"60s"`
	ShortlistSweepInterval       time.Duration `envconfig:"SHORTLIST_SWEEP_INTERVAL" default:"1m"`
}

// Config contains all settings of the service.
type Config struct {
	Engine

	DatabaseURL    string `envconfig:"DATABASE_URL" required:"true"`
	ListenAddr     string `envconfig:"LISTEN_ADDR" default:":5200"`
	ServiceToken   string `envconfig:"ENGINE_SERVICE_TOKEN" required:"true"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	LogLevel       string `envconfig:"APP_LOG_LEVEL" default:"info"`
}

// DefaultEngine returns the built-in engine defaults, ignoring the environment.
func DefaultEngine() Engine {
	return Engine{
		MinRatingVotes:               5,
		MaxCategoryCount:             7,
		ShortlistSize:                10,
		ShortlistEliminationMinutes:  8,
		TournamentPointsDistribution: "10,8,6,5,4,3,2,1",
		HighScoreProofTop:            10,
		KarmaRefreshInterval:         60 * time.Second,
		ShortlistSweepInterval:       time.Minute,
	}
}

// Validate checks value ranges.
func (e Engine) Validate() error {
	if e.MinRatingVotes < 1 {
		return fmt.Errorf("MIN_RATING_VOTES must be > 0")
	}
	if e.MaxCategoryCount < 1 || e.MaxCategoryCount > 7 {
		return fmt.Errorf("MAX_CATEGORY_COUNT must be between 1 and 7")
	}
	if e.ShortlistSize < 2 {
		return fmt.Errorf("SHORTLIST_SIZE must be >= 2")
	}
	if e.ShortlistEliminationMinutes < 1 {
		return fmt.Errorf("SHORTLIST_ELIMINATION_MINUTES must be > 0")
	}
	if e.HighScoreProofTop < 0 {
		return fmt.Errorf("HIGH_SCORE_PROOF_TOP must be >= 0")
	}
	if e.KarmaRefreshInterval < 0 {
		return fmt.Errorf("KARMA_REFRESH_INTERVAL must be >= 0")
	}
	if _, err := ParsePointsDistribution(e.TournamentPointsDistribution); err != nil {
		return fmt.Errorf("TOURNAMENT_POINTS_DISTRIBUTION: %w", err)
	}
	return nil
}

// Load reads .env (if any) and the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, reading environment variables directly")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParsePointsDistribution parses a comma-separated points table such as "10,6,4,2".
// Position i holds the points awarded for rank i+1.
func ParsePointsDistribution(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("points table is empty")
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad points value %q: %w", p, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("negative points value %d", v)
		}
		out = append(out, v)
	}
	return out, nil
}
