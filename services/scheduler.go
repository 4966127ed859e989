// services/scheduler.go
package services

import (
	"context"
	"time"

	"event-ranking-engine/models"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
)

// SweepEliminations advances the countdown of every shortlist that started
// eliminating, so stored counters follow the clock even without readers.
func (s *ThemeShortlistService) SweepEliminations(ctx context.Context, now time.Time) (int, error) {
	var events []models.Event
	err := s.DB.WithContext(ctx).
		Where("status_theme = ? AND elimination_started_at IS NOT NULL", models.ThemeStatusShortlist).
		Find(&events).Error
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range events {
		if _, err := s.AdvanceElimination(ctx, &events[i], now); err != nil {
			log.WithError(err).WithField("event_id", events[i].ID).Warn("[Scheduler] elimination sweep failed")
			continue
		}
		swept++
	}
	return swept, nil
}

// StartEliminationScheduler runs SweepEliminations every interval. The caller
// shuts the returned scheduler down.
func (s *ThemeShortlistService) StartEliminationScheduler(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := s.SweepEliminations(ctx, time.Now()); err != nil {
				log.WithError(err).Error("[Scheduler] DB error")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	log.WithField("interval", interval).Info("✅ Shortlist elimination scheduler running")
	return sched, nil
}
