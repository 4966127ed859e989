// models/entry.go
package models

const (
	HighScoreOff      = "off"
	HighScoreNormal   = "normal"
	HighScoreReversed = "reversed" // lower is better
)

// MaxCategories is the number of rating/vote columns available per entry.
const MaxCategories = 7

// Entry is a submitted work. FeedbackScore is derived by the karma engine.
type Entry struct {
	Base
	EventID         string `json:"event_id" gorm:"index;not null"`
	Title           string `json:"title"`
	Division        string `json:"division" gorm:"type:varchar(16)"`
	StatusHighScore string `json:"status_high_score" gorm:"type:varchar(16);default:'off'"`
	FeedbackScore   int    `json:"feedback_score" gorm:"default:0"`

	Details     *EntryDetails     `json:"details,omitempty" gorm:"foreignKey:EntryID"`
	TeamMembers []EntryTeamMember `json:"team_members,omitempty" gorm:"foreignKey:EntryID"`
}

// EntryTeamMember links a user to the entry they made (read-only for the engine).
type EntryTeamMember struct {
	Base
	EntryID string `json:"entry_id" gorm:"index;not null"`
	EventID string `json:"event_id" gorm:"index"`
	UserID  string `json:"user_id" gorm:"index;not null"`
}

// EntryDetails holds the aggregates computed for an entry.
type EntryDetails struct {
	Base
	EntryID string `json:"entry_id" gorm:"uniqueIndex;not null"`

	// Per-category averages; nil until enough votes exist.
	Rating1 *float64 `json:"rating_1" gorm:"column:rating_1"`
	Rating2 *float64 `json:"rating_2" gorm:"column:rating_2"`
	Rating3 *float64 `json:"rating_3" gorm:"column:rating_3"`
	Rating4 *float64 `json:"rating_4" gorm:"column:rating_4"`
	Rating5 *float64 `json:"rating_5" gorm:"column:rating_5"`
	Rating6 *float64 `json:"rating_6" gorm:"column:rating_6"`
	Rating7 *float64 `json:"rating_7" gorm:"column:rating_7"`

	// Per-category result rankings within the entry's division.
	Ranking1 *int `json:"ranking_1" gorm:"column:ranking_1"`
	Ranking2 *int `json:"ranking_2" gorm:"column:ranking_2"`
	Ranking3 *int `json:"ranking_3" gorm:"column:ranking_3"`
	Ranking4 *int `json:"ranking_4" gorm:"column:ranking_4"`
	Ranking5 *int `json:"ranking_5" gorm:"column:ranking_5"`
	Ranking6 *int `json:"ranking_6" gorm:"column:ranking_6"`
	Ranking7 *int `json:"ranking_7" gorm:"column:ranking_7"`

	HighScoreCount int      `json:"high_score_count" gorm:"default:0"`
	OptOuts        []string `json:"opt_outs" gorm:"serializer:json"` // category titles the team opted out of
}

// Ratings returns pointers to the rating columns, index = category - 1.
func (d *EntryDetails) Ratings() []**float64 {
	return []**float64{&d.Rating1, &d.Rating2, &d.Rating3, &d.Rating4, &d.Rating5, &d.Rating6, &d.Rating7}
}

// Rankings returns pointers to the ranking columns, index = category - 1.
func (d *EntryDetails) Rankings() []**int {
	return []**int{&d.Ranking1, &d.Ranking2, &d.Ranking3, &d.Ranking4, &d.Ranking5, &d.Ranking6, &d.Ranking7}
}

// RatingColumns lists the rating column names in category order.
var RatingColumns = []string{"rating_1", "rating_2", "rating_3", "rating_4", "rating_5", "rating_6", "rating_7"}

// RankingColumns lists the ranking column names in category order.
var RankingColumns = []string{"ranking_1", "ranking_2", "ranking_3", "ranking_4", "ranking_5", "ranking_6", "ranking_7"}

// IsOptedOut reports whether the team opted the category out of rating.
func (d *EntryDetails) IsOptedOut(category string) bool {
	for _, c := range d.OptOuts {
		if c == category {
			return true
		}
	}
	return false
}
