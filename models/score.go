// models/score.go
package models

// EntryScore is one user's high score on an entry. Ranking is nil for
// suspended rows and contiguous from 1 among active ones.
type EntryScore struct {
	Base
	EntryID string  `json:"entry_id" gorm:"uniqueIndex:idx_entry_score_user_entry;not null"`
	UserID  string  `json:"user_id" gorm:"uniqueIndex:idx_entry_score_user_entry;not null"`
	EventID string  `json:"event_id" gorm:"index"`
	Score   float64 `json:"score" gorm:"not null"`
	Ranking *int    `json:"ranking,omitempty" gorm:"index"`
	Active  bool    `json:"active" gorm:"not null"`
	Proof   string  `json:"proof,omitempty" gorm:"type:text"` // link to a screenshot or video
}

// TournamentEntry is the ordered membership of an entry in a tournament event.
type TournamentEntry struct {
	Base
	EventID  string `json:"event_id" gorm:"uniqueIndex:idx_tournament_entry;not null"`
	EntryID  string `json:"entry_id" gorm:"uniqueIndex:idx_tournament_entry;not null"`
	Ordering int    `json:"ordering" gorm:"default:0"`
}

// TournamentScore is a user's point total in a tournament event.
type TournamentScore struct {
	Base
	EventID     string         `json:"event_id" gorm:"uniqueIndex:idx_tournament_score_user;not null"`
	UserID      string         `json:"user_id" gorm:"uniqueIndex:idx_tournament_score_user;not null"`
	Score       int            `json:"score" gorm:"not null"`
	Ranking     int            `json:"ranking"`
	EntryPoints map[string]int `json:"entry_points" gorm:"serializer:json"` // entry ID → points awarded
}
