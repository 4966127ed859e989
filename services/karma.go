package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"event-ranking-engine/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Rating an entry is worth as much as a two-point comment.
const voteKarma = 2

// Giving feedback stops paying off after this many points.
const maxGivenKarma = 100

// ComputeFeedbackScore turns the karma received and given by an entry's team
// into the entry's feedback score. It is non-decreasing in given, non-increasing
// in received and never negative.
func ComputeFeedbackScore(received, given int) int {
	given = max(0, min(given, maxGivenKarma))
	score := 74 + 8.5*math.Sqrt(float64(10+given)) - float64(received)
	return int(math.Floor(math.Max(0, score)))
}

type karmaContribution struct {
	comments int
	voted    bool
}

func (c karmaContribution) value() int {
	if c.voted {
		return max(c.comments, voteKarma)
	}
	return c.comments
}

// karmaTally groups comment and vote contributions by key and keeps the best
// of the two per key.
type karmaTally[K comparable] map[K]*karmaContribution

func (t karmaTally[K]) get(key K) *karmaContribution {
	c, ok := t[key]
	if !ok {
		c = &karmaContribution{}
		t[key] = c
	}
	return c
}

func (t karmaTally[K]) addComment(key K, score int) { t.get(key).comments += score }

func (t karmaTally[K]) addVote(key K) { t.get(key).voted = true }

func (t karmaTally[K]) total() int {
	sum := 0
	for _, c := range t {
		sum += c.value()
	}
	return sum
}

// userEntryKey identifies the feedback one user gave to one entry.
type userEntryKey struct {
	UserID  string
	EntryID string
}

// KarmaService computes entry feedback scores from community engagement.
type KarmaService struct {
	DB       *gorm.DB
	Cache    Cache
	Settings *SettingsService

	refreshes singleflight.Group
}

func NewKarmaService(db *gorm.DB, cache Cache, settings *SettingsService) *KarmaService {
	return &KarmaService{DB: db, Cache: cache, Settings: settings}
}

func karmaCacheKey(entryID string) string { return "karma:" + entryID }

// RefreshEntryKarma recomputes and stores entry.FeedbackScore. Unless force is
// set, an entry refreshed less than KarmaRefreshInterval ago is skipped.
// Concurrent unforced refreshes of one entry share a single computation.
func (s *KarmaService) RefreshEntryKarma(ctx context.Context, entry *models.Entry, event *models.Event, force bool) error {
	key := karmaCacheKey(entry.ID)
	if !force {
		if _, recent := s.Cache.Get(key); recent {
			return nil
		}
		v, err, _ := s.refreshes.Do(entry.ID, func() (interface{}, error) {
			return s.refresh(ctx, entry.ID, event)
		})
		if err != nil {
			return err
		}
		entry.FeedbackScore = v.(int)
		return nil
	}

	score, err := s.refresh(ctx, entry.ID, event)
	if err != nil {
		return err
	}
	entry.FeedbackScore = score
	return nil
}

// RefreshEntryKarmaQuietly is the opportunistic variant called after unrelated
// writes: failures are logged and retried on the next natural trigger.
func (s *KarmaService) RefreshEntryKarmaQuietly(ctx context.Context, entry *models.Entry, event *models.Event, force bool) {
	if err := s.RefreshEntryKarma(ctx, entry, event, force); err != nil {
		log.WithError(err).WithField("entry_id", entry.ID).Warn("[KARMA] refresh failed")
	}
}

func (s *KarmaService) refresh(ctx context.Context, entryID string, event *models.Event) (int, error) {
	db := s.DB.WithContext(ctx)

	received, err := s.computeReceived(db, entryID)
	if err != nil {
		return 0, err
	}
	given, err := s.computeGiven(db, entryID, event.ID)
	if err != nil {
		return 0, err
	}

	score := ComputeFeedbackScore(received, given)
	if err := db.Model(&models.Entry{}).Where("id = ?", entryID).
		UpdateColumn("feedback_score", score).Error; err != nil {
		return 0, fmt.Errorf("save feedback score of entry %s: %w", entryID, err)
	}
	s.Cache.Set(karmaCacheKey(entryID), time.Now(), s.Settings.KarmaRefreshInterval())

	log.WithFields(log.Fields{
		"entry_id": entryID,
		"received": received,
		"given":    given,
		"score":    score,
	}).Debug("[KARMA] entry refreshed")
	return score, nil
}

// computeReceived sums, per user who commented on or rated the entry, the best
// of their comment contributions and their vote.
func (s *KarmaService) computeReceived(db *gorm.DB, entryID string) (int, error) {
	var comments []models.Comment
	if err := db.Select("user_id", "feedback_score").
		Where("node_type = ? AND node_id = ?", models.NodeTypeEntry, entryID).
		Find(&comments).Error; err != nil {
		return 0, fmt.Errorf("load comments of entry %s: %w", entryID, err)
	}
	var voters []string
	if err := db.Model(&models.EntryVote{}).
		Where("entry_id = ?", entryID).
		Pluck("user_id", &voters).Error; err != nil {
		return 0, fmt.Errorf("load votes of entry %s: %w", entryID, err)
	}

	tally := karmaTally[string]{}
	for _, c := range comments {
		tally.addComment(c.UserID, c.FeedbackScore)
	}
	for _, userID := range voters {
		tally.addVote(userID)
	}
	return tally.total(), nil
}

// computeGiven sums, per (team member, target entry) pair in the event, the best
// of the member's comment contributions and their vote on that entry.
func (s *KarmaService) computeGiven(db *gorm.DB, entryID, eventID string) (int, error) {
	members, err := teamUserIDs(db, entryID)
	if err != nil {
		return 0, fmt.Errorf("load team of entry %s: %w", entryID, err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	eventEntries := db.Model(&models.Entry{}).Select("id").Where("event_id = ?", eventID)
	var comments []models.Comment
	if err := db.Select("user_id", "node_id", "feedback_score").
		Where("node_type = ? AND user_id IN ? AND node_id IN (?)", models.NodeTypeEntry, members, eventEntries).
		Find(&comments).Error; err != nil {
		return 0, fmt.Errorf("load comments given by team of entry %s: %w", entryID, err)
	}
	var votes []models.EntryVote
	if err := db.Select("user_id", "entry_id").
		Where("event_id = ? AND user_id IN ?", eventID, members).
		Find(&votes).Error; err != nil {
		return 0, fmt.Errorf("load votes given by team of entry %s: %w", entryID, err)
	}

	tally := karmaTally[userEntryKey]{}
	for _, c := range comments {
		tally.addComment(userEntryKey{UserID: c.UserID, EntryID: c.NodeID}, c.FeedbackScore)
	}
	for _, v := range votes {
		tally.addVote(userEntryKey{UserID: v.UserID, EntryID: v.EntryID})
	}
	return tally.total(), nil
}
