// models/theme.go
package models

const (
	ThemeActive    = "active"
	ThemeDuplicate = "duplicate"
	ThemeBanned    = "banned"
	ThemeShortlist = "shortlist"
	ThemeOut       = "out"
)

// Theme is one theme idea submitted by a user for an event.
// Score is the net sum of up/down votes, Notes the number of votes.
type Theme struct {
	Base
	EventID string `json:"event_id" gorm:"index;not null"`
	UserID  string `json:"user_id" gorm:"index;not null"`
	Title   string `json:"title" gorm:"not null"`
	Slug    string `json:"slug" gorm:"index;not null"`
	Status  string `json:"status" gorm:"type:varchar(16);index;not null"`
	Score   int    `json:"score"`
	Notes   int    `json:"notes"`
	Reports int    `json:"reports"`
	Ranking *int   `json:"ranking,omitempty"` // shortlist snapshot position, 1 = best
}

// ThemeVote is a user's up (+1) or down (-1) vote on a theme.
type ThemeVote struct {
	Base
	ThemeID string `json:"theme_id" gorm:"uniqueIndex:idx_theme_vote_user_theme;not null"`
	UserID  string `json:"user_id" gorm:"uniqueIndex:idx_theme_vote_user_theme;not null"`
	EventID string `json:"event_id" gorm:"index;not null"`
	Score   int    `json:"score" gorm:"not null"`
}

// ThemeShortlistVote is a user's 1..10 score on a shortlisted theme. 9 marks the top pick.
type ThemeShortlistVote struct {
	Base
	ThemeID string `json:"theme_id" gorm:"uniqueIndex:idx_shortlist_vote_user_theme;not null"`
	UserID  string `json:"user_id" gorm:"uniqueIndex:idx_shortlist_vote_user_theme;not null"`
	EventID string `json:"event_id" gorm:"index;not null"`
	Score   int    `json:"score" gorm:"not null"`
}
