package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"event-ranking-engine/models"

	"gorm.io/gorm"
)

func TestComputeEliminationState(t *testing.T) {
	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	interval := 8 * time.Minute

	cases := []struct {
		name       string
		start      *time.Time
		size       int
		now        time.Time
		eliminated int
		next       *time.Time
		finished   bool
	}{
		{"not started", nil, 10, start, 0, nil, false},
		{"before start", &start, 10, start.Add(-time.Minute), 0, &start, false},
		{"at start", &start, 10, start, 1, timePtr(start.Add(interval)), false},
		{"mid countdown", &start, 10, start.Add(17 * time.Minute), 3, timePtr(start.Add(3 * interval)), false},
		{"last one standing", &start, 10, start.Add(8 * interval), 9, nil, true},
		{"long after", &start, 10, start.Add(24 * time.Hour), 9, nil, true},
		{"single theme", &start, 1, start, 0, nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := ComputeEliminationState(tc.start, interval, tc.size, tc.now)
			if state.EliminatedCount != tc.eliminated || state.Finished != tc.finished {
				t.Fatalf("expected eliminated=%d finished=%v, got %+v", tc.eliminated, tc.finished, state)
			}
			if !sameTime(state.NextEliminationAt, tc.next) {
				t.Fatalf("expected next %v, got %v", tc.next, state.NextEliminationAt)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func createThemes(t *testing.T, db *gorm.DB, event *models.Event, scores map[string]int) map[string]models.Theme {
	t.Helper()
	out := make(map[string]models.Theme, len(scores))
	for title, score := range scores {
		theme := models.Theme{
			EventID: event.ID,
			UserID:  "author-" + title,
			Title:   title,
			Slug:    ThemeSlug(title),
			Status:  models.ThemeActive,
			Score:   score,
		}
		if err := db.Create(&theme).Error; err != nil {
			t.Fatalf("create theme: %v", err)
		}
		out[title] = theme
	}
	return out
}

func TestComputeShortlistAndElimination(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	settings := newTestSettings(db)
	setSetting(t, settings, SettingShortlistSize, "4")
	svc := NewThemeShortlistService(db, settings)

	event := createEvent(t, db, func(e *models.Event) { e.StatusTheme = models.ThemeStatusShortlist })
	themes := createThemes(t, db, event, map[string]int{"A": 9, "B": 7, "C": 5, "D": 3, "E": 1, "F": -2})
	banned := models.Theme{EventID: event.ID, UserID: "x", Title: "Z", Slug: "z", Status: models.ThemeBanned, Score: 50}
	db.Create(&banned)

	shortlist, err := svc.ComputeShortlist(ctx, event)
	if err != nil {
		t.Fatalf("compute shortlist: %v", err)
	}
	if len(shortlist) != 4 {
		t.Fatalf("expected 4 themes, got %d", len(shortlist))
	}
	for i, title := range []string{"A", "B", "C", "D"} {
		var got models.Theme
		db.First(&got, "id = ?", themes[title].ID)
		if got.Status != models.ThemeShortlist || got.Ranking == nil || *got.Ranking != i+1 {
			t.Fatalf("theme %s: expected shortlist position %d, got %s/%s", title, i+1, got.Status, ptrValue(got.Ranking))
		}
	}
	for _, title := range []string{"E", "F"} {
		var got models.Theme
		db.First(&got, "id = ?", themes[title].ID)
		if got.Status != models.ThemeOut {
			t.Fatalf("theme %s: expected out, got %s", title, got.Status)
		}
	}

	now := time.Now()
	if err := svc.StartElimination(ctx, event, now.Add(-10*time.Minute)); err != nil {
		t.Fatalf("start elimination: %v", err)
	}
	view, err := svc.AdvanceElimination(ctx, event, now)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if view.State.EliminatedCount != 2 || len(view.Remaining) != 2 || len(view.Eliminated) != 2 {
		t.Fatalf("expected 2 eliminated after 10 minutes, got %+v", view.State)
	}
	if view.Remaining[0].Title != "A" || view.Eliminated[1].Title != "D" {
		t.Fatalf("the bottom of the shortlist goes first, got remaining=%s eliminated=%s",
			view.Remaining[0].Title, view.Eliminated[1].Title)
	}

	stored, err := FindEvent(ctx, db, event.ID)
	if err != nil {
		t.Fatalf("reload event: %v", err)
	}
	if stored.EliminatedCount != 2 || stored.NextEliminationAt == nil {
		t.Fatalf("expected stored counters, got %+v", stored)
	}

	// The sweep sees the same clock and writes nothing new.
	swept, err := svc.SweepEliminations(ctx, now)
	if err != nil || swept != 1 {
		t.Fatalf("expected one event swept, got %d (%v)", swept, err)
	}
	swept, err = svc.SweepEliminations(ctx, now.Add(time.Hour))
	if err != nil || swept != 1 {
		t.Fatalf("sweep: %d (%v)", swept, err)
	}
	stored, _ = FindEvent(ctx, db, event.ID)
	if stored.EliminatedCount != 3 || stored.NextEliminationAt != nil {
		t.Fatalf("expected the countdown to finish, got %+v", stored)
	}
}

func TestSaveShortlistVotes(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	settings := newTestSettings(db)
	setSetting(t, settings, SettingShortlistSize, "3")
	svc := NewThemeShortlistService(db, settings)

	event := createEvent(t, db, func(e *models.Event) { e.StatusTheme = models.ThemeStatusShortlist })
	themes := createThemes(t, db, event, map[string]int{"A": 9, "B": 7, "C": 5, "D": 3})
	if _, err := svc.ComputeShortlist(ctx, event); err != nil {
		t.Fatalf("compute shortlist: %v", err)
	}
	a, b, c, d := themes["A"].ID, themes["B"].ID, themes["C"].ID, themes["D"].ID

	invalidBallots := map[string]map[string]int{
		"empty":          {},
		"out of range":   {a: 11},
		"zero":           {a: 0},
		"two top picks":  {a: 9, b: 9},
		"not shortlisted": {d: 5},
	}
	for name, ballot := range invalidBallots {
		if err := svc.SaveShortlistVotes(ctx, "alice", event, ballot); !IsValidation(err) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}

	if err := svc.SaveShortlistVotes(ctx, "alice", event, map[string]int{a: 9, b: 5, c: 1}); err != nil {
		t.Fatalf("ballot: %v", err)
	}
	if err := svc.SaveShortlistVotes(ctx, "alice", event, map[string]int{a: 2, b: 9}); err != nil {
		t.Fatalf("replace ballot: %v", err)
	}
	if err := svc.SaveShortlistVotes(ctx, "bob", event, map[string]int{c: 9, b: 3}); err != nil {
		t.Fatalf("ballot: %v", err)
	}

	var count int64
	db.Model(&models.ThemeShortlistVote{}).Where("user_id = ?", "alice").Count(&count)
	if count != 2 {
		t.Fatalf("expected alice's ballot to be replaced, found %d votes", count)
	}

	results, err := svc.FindShortlistResults(ctx, event)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	// B: 9+3, C: 9, A: 2
	if results[0].Theme.ID != b || results[0].Total != 12 || results[0].TopPicks != 1 {
		t.Fatalf("expected B to win with 12, got %+v", results[0])
	}
	if results[1].Theme.ID != c || results[2].Theme.ID != a {
		t.Fatalf("unexpected order: %s, %s", results[1].Theme.Title, results[2].Theme.Title)
	}

	voting := createEvent(t, db, func(e *models.Event) { e.StatusTheme = models.ThemeStatusVoting })
	if err := svc.SaveShortlistVotes(ctx, "alice", voting, map[string]int{a: 3}); !errors.Is(err, ErrThemeVotingClosed) {
		t.Fatalf("expected ErrThemeVotingClosed, got %v", err)
	}
}

func TestTallyShortlistTieBreak(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	theme := func(id string, position int, created time.Time) models.Theme {
		th := models.Theme{Title: id, Ranking: intPtr(position)}
		th.ID = id
		th.CreatedAt = created
		return th
	}
	themes := []models.Theme{
		theme("late", 3, base.Add(time.Hour)),
		theme("first", 1, base.Add(2*time.Hour)),
		theme("second", 2, base),
	}
	votes := []models.ThemeShortlistVote{
		{ThemeID: "late", Score: 6},
		{ThemeID: "first", Score: 6},
		{ThemeID: "second", Score: 7},
		{ThemeID: "unknown", Score: 10},
	}

	results := tallyShortlist(themes, votes)
	got := []string{results[0].Theme.ID, results[1].Theme.ID, results[2].Theme.ID}
	want := []string{"second", "first", "late"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
