package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"event-ranking-engine/models"
)

func TestAverageRatingsThreshold(t *testing.T) {
	votes := []models.EntryVote{
		{Vote1: 8, Vote2: 0, Vote3: 5},
		{Vote1: 6, Vote2: 0, Vote3: 0},
		{Vote1: 10, Vote2: 4, Vote3: 0},
	}

	ratings := averageRatings(votes, 3, 2)
	if ratings[0] == nil || math.Abs(*ratings[0]-8) > 1e-9 {
		t.Fatalf("category 1: expected 8, got %v", ratings[0])
	}
	if ratings[1] != nil {
		t.Errorf("category 2 has one nonzero vote, expected nil, got %v", *ratings[1])
	}
	if ratings[2] != nil {
		t.Errorf("category 3 has one nonzero vote, expected nil, got %v", *ratings[2])
	}

	ratings = averageRatings(votes, 3, 1)
	if ratings[1] == nil || *ratings[1] != 4 {
		t.Errorf("category 2 with threshold 1: expected 4, got %v", ratings[1])
	}
}

func newRatingService(t *testing.T) (*RatingService, *SettingsService) {
	t.Helper()
	db := newTestDB(t)
	settings := newTestSettings(db)
	karma := NewKarmaService(db, NewCache(), settings)
	return NewRatingService(db, settings, karma), settings
}

func TestSaveEntryVoteRefreshesRatings(t *testing.T) {
	ctx := context.Background()
	svc, settings := newRatingService(t)
	setSetting(t, settings, SettingMinRatingVotes, "2")

	event := createEvent(t, svc.DB, func(e *models.Event) { e.Categories = []string{"Overall", "Graphics", "Audio"} })
	entry := createEntry(t, svc.DB, event, models.HighScoreOff, "alice")
	if err := svc.DB.Create(&models.EntryDetails{EntryID: entry.ID, OptOuts: []string{"Audio"}}).Error; err != nil {
		t.Fatalf("create details: %v", err)
	}

	if err := svc.SaveEntryVote(ctx, "bob", entry, []float64{8, 0, 9}); err != nil {
		t.Fatalf("vote bob: %v", err)
	}
	details := reloadEntry(t, svc.DB, entry.ID).Details
	if details.Rating1 != nil {
		t.Fatalf("one vote is below the threshold, got rating %v", *details.Rating1)
	}

	if err := svc.SaveEntryVote(ctx, "carol", entry, []float64{6, 7, 10}); err != nil {
		t.Fatalf("vote carol: %v", err)
	}
	details = reloadEntry(t, svc.DB, entry.ID).Details
	if details.Rating1 == nil || *details.Rating1 != 7 {
		t.Fatalf("expected overall rating 7, got %v", details.Rating1)
	}
	if details.Rating2 != nil {
		t.Errorf("graphics has a single nonzero vote, expected nil")
	}
	if details.Rating3 != nil {
		t.Errorf("opted-out category should never be rated")
	}

	// Voting again replaces the previous ballot.
	if err := svc.SaveEntryVote(ctx, "carol", entry, []float64{10, 7, 10}); err != nil {
		t.Fatalf("revote carol: %v", err)
	}
	var count int64
	svc.DB.Model(&models.EntryVote{}).Where("entry_id = ?", entry.ID).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 vote rows, got %d", count)
	}
	details = reloadEntry(t, svc.DB, entry.ID).Details
	if details.Rating1 == nil || *details.Rating1 != 9 {
		t.Fatalf("expected overall rating 9 after revote, got %v", details.Rating1)
	}

	var stored models.EntryVote
	svc.DB.Where("entry_id = ? AND user_id = ?", entry.ID, "carol").First(&stored)
	if stored.Vote3 != 0 {
		t.Errorf("opted-out vote should be stored as 0, got %v", stored.Vote3)
	}
}

func TestSaveEntryVoteValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newRatingService(t)
	event := createEvent(t, svc.DB, func(e *models.Event) { e.Categories = []string{"Overall", "Fun"} })
	entry := createEntry(t, svc.DB, event, models.HighScoreOff, "alice")

	cases := []struct {
		name   string
		user   string
		values []float64
	}{
		{"wrong count", "bob", []float64{5}},
		{"above range", "bob", []float64{11, 5}},
		{"below range", "bob", []float64{0.5, 5}},
		{"not a number", "bob", []float64{math.NaN(), 5}},
		{"own entry", "alice", []float64{5, 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.SaveEntryVote(ctx, tc.user, entry, tc.values)
			if !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRefreshEntryRatingsRejectsTooManyCategories(t *testing.T) {
	svc, _ := newRatingService(t)
	event := createEvent(t, svc.DB, func(e *models.Event) {
		e.Categories = []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	})
	entry := createEntry(t, svc.DB, event, models.HighScoreOff)

	err := svc.RefreshEntryRatings(context.Background(), entry)
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if ce.Setting != SettingMaxCategoryCount {
		t.Errorf("unexpected setting %q", ce.Setting)
	}
}

func TestCompetitionRanks(t *testing.T) {
	items := []rankedEntry{{rating: 6}, {rating: 8}, {rating: 9}, {rating: 8}}
	ranks := competitionRanks(items)
	want := []int{1, 2, 2, 4}
	for i := range want {
		if ranks[i] != want[i] {
			t.Fatalf("expected ranks %v, got %v", want, ranks)
		}
	}
	if items[0].rating != 9 || items[3].rating != 6 {
		t.Fatalf("items should be sorted best first, got %v", items)
	}
}

func TestComputeEventRankingsPerDivision(t *testing.T) {
	svc, _ := newRatingService(t)
	event := createEvent(t, svc.DB, func(e *models.Event) { e.Categories = []string{"Overall"} })

	rating := func(v float64) *float64 { return &v }
	create := func(division string, r *float64) *models.Entry {
		entry := createEntry(t, svc.DB, event, models.HighScoreOff)
		svc.DB.Model(entry).UpdateColumn("division", division)
		if err := svc.DB.Create(&models.EntryDetails{EntryID: entry.ID, Rating1: r}).Error; err != nil {
			t.Fatalf("create details: %v", err)
		}
		return entry
	}
	a := create("solo", rating(8))
	b := create("solo", rating(8))
	c := create("solo", rating(6))
	d := create("solo", nil)
	e := create("team", rating(5))

	if err := svc.ComputeEventRankings(context.Background(), event); err != nil {
		t.Fatalf("compute rankings: %v", err)
	}

	expect := map[string]string{a.ID: "1", b.ID: "1", c.ID: "3", d.ID: "nil", e.ID: "1"}
	for id, want := range expect {
		got := ptrValue(reloadEntry(t, svc.DB, id).Details.Ranking1)
		if got != want {
			t.Errorf("entry %s: expected ranking %s, got %s", id, want, got)
		}
	}
}
