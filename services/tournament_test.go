package services

import (
	"context"
	"testing"

	"event-ranking-engine/models"
)

func TestTournamentPoints(t *testing.T) {
	table := []int{10, 6, 4, 2}
	scores := map[string]models.EntryScore{
		"e1": {Active: true, Ranking: intPtr(1)},
		"e2": {Active: true, Ranking: intPtr(3)},
		"e3": {Active: false, Ranking: intPtr(1)},
		"e4": {Active: true, Ranking: intPtr(5)},
	}

	total, perEntry := tournamentPoints([]string{"e1", "e2"}, scores, table)
	if total != 14 {
		t.Fatalf("expected 10+4=14, got %d", total)
	}
	if perEntry["e1"] != 10 || perEntry["e2"] != 4 {
		t.Fatalf("unexpected breakdown %v", perEntry)
	}

	total, perEntry = tournamentPoints([]string{"e3", "e4", "e5"}, scores, table)
	if total != 0 || len(perEntry) != 3 {
		t.Fatalf("suspended, out-of-table and missing scores earn nothing, got %d %v", total, perEntry)
	}
}

type tournamentFixture struct {
	scores      *HighScoreService
	tournaments *TournamentService
	event       *models.Event
	first       *models.Entry
	second      *models.Entry
}

func newTournamentFixture(t *testing.T, status string) *tournamentFixture {
	t.Helper()
	db := newTestDB(t)
	settings := newTestSettings(db)
	setSetting(t, settings, SettingPointsDistribution, "10,6,4,2")
	setSetting(t, settings, SettingHighScoreProofTop, "0")

	tournaments := NewTournamentService(db, settings)
	f := &tournamentFixture{
		scores:      NewHighScoreService(db, settings, tournaments),
		tournaments: tournaments,
		event:       createEvent(t, db, func(e *models.Event) { e.StatusTournament = status }),
	}
	jam := createEvent(t, db, nil)
	f.first = createEntry(t, db, jam, models.HighScoreNormal)
	f.second = createEntry(t, db, jam, models.HighScoreNormal)

	ctx := context.Background()
	if err := tournaments.AddEntry(ctx, f.event, f.first.ID); err != nil {
		t.Fatalf("add first: %v", err)
	}
	if err := tournaments.AddEntry(ctx, f.event, f.second.ID); err != nil {
		t.Fatalf("add second: %v", err)
	}
	return f
}

func (f *tournamentFixture) leaderboard(t *testing.T) map[string]models.TournamentScore {
	t.Helper()
	scores, err := f.tournaments.FindTournamentScores(context.Background(), f.event.ID, 0)
	if err != nil {
		t.Fatalf("find tournament scores: %v", err)
	}
	out := make(map[string]models.TournamentScore, len(scores))
	for _, s := range scores {
		out[s.UserID] = s
	}
	return out
}

func TestTournamentScoresFollowEntryRankings(t *testing.T) {
	f := newTournamentFixture(t, models.TournamentStatusPlaying)

	submit(t, f.scores, f.first, "u1", 100, "")
	submit(t, f.scores, f.first, "u2", 90, "")
	submit(t, f.scores, f.second, "u2", 50, "")
	submit(t, f.scores, f.second, "u3", 40, "")
	submit(t, f.scores, f.second, "u1", 30, "")

	board := f.leaderboard(t)
	// u1: 1st (10) + 3rd (4), u2: 2nd (6) + 1st (10), u3: 2nd (6).
	expect := map[string][2]int{"u1": {14, 2}, "u2": {16, 1}, "u3": {6, 3}}
	for user, want := range expect {
		got := board[user]
		if got.Score != want[0] || got.Ranking != want[1] {
			t.Errorf("%s: expected score %d rank %d, got score %d rank %d", user, want[0], want[1], got.Score, got.Ranking)
		}
	}
	if board["u1"].EntryPoints[f.second.ID] != 4 {
		t.Errorf("expected breakdown to record 4 points on the second entry, got %v", board["u1"].EntryPoints)
	}

	// u3 overtakes u2 on the second entry: u3 10, u2 6+6, u1 unchanged.
	submit(t, f.scores, f.second, "u3", 60, "")
	board = f.leaderboard(t)
	if board["u3"].Score != 10 || board["u2"].Score != 12 || board["u1"].Score != 14 {
		t.Fatalf("unexpected scores after overtake: u1=%d u2=%d u3=%d", board["u1"].Score, board["u2"].Score, board["u3"].Score)
	}
	seen := map[int]bool{}
	for _, s := range board {
		if s.Ranking < 1 || s.Ranking > len(board) || seen[s.Ranking] {
			t.Fatalf("tournament rankings are not contiguous: %+v", board)
		}
		seen[s.Ranking] = true
	}
	if board["u1"].Ranking != 1 || board["u2"].Ranking != 2 || board["u3"].Ranking != 3 {
		t.Fatalf("unexpected rankings: u1=%d u2=%d u3=%d", board["u1"].Ranking, board["u2"].Ranking, board["u3"].Ranking)
	}

	// Dropping the second entry leaves only the first entry's points.
	if err := f.tournaments.RemoveEntry(context.Background(), f.event, f.second.ID); err != nil {
		t.Fatalf("remove entry: %v", err)
	}
	board = f.leaderboard(t)
	if board["u1"].Score != 10 || board["u2"].Score != 6 || board["u3"].Score != 0 {
		t.Fatalf("unexpected scores after removal: u1=%d u2=%d u3=%d", board["u1"].Score, board["u2"].Score, board["u3"].Score)
	}
	if board["u1"].Ranking != 1 || board["u2"].Ranking != 2 || board["u3"].Ranking != 3 {
		t.Fatalf("unexpected rankings after removal: %+v", board)
	}
}

func TestTournamentRankingsOnlyWhilePlaying(t *testing.T) {
	f := newTournamentFixture(t, models.TournamentStatusClosed)
	ctx := context.Background()

	submit(t, f.scores, f.first, "u1", 100, "")
	submit(t, f.scores, f.first, "u2", 90, "")

	// Closed tournaments are not propagated into automatically.
	if board := f.leaderboard(t); len(board) != 0 {
		t.Fatalf("expected no automatic tournament scores, got %v", board)
	}

	if err := f.tournaments.RefreshTournamentScore(ctx, f.event, "u1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	board := f.leaderboard(t)
	if board["u1"].Score != 10 || board["u1"].Ranking != 0 {
		t.Fatalf("expected score 10 without ranking pass, got %+v", board["u1"])
	}

	if err := f.tournaments.RefreshTournamentScore(ctx, f.event, "nobody"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, ok := f.leaderboard(t)["nobody"]; ok {
		t.Fatal("users without scores should not get a tournament row")
	}
}
