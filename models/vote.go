// models/vote.go
package models

const (
	NodeTypeEntry = "entry"
	NodeTypePost  = "post"
)

// Comment is attached to an entry or a post. FeedbackScore is the karma
// contribution of the comment, computed when the comment is written.
type Comment struct {
	Base
	NodeID        string `json:"node_id" gorm:"index;not null"`
	NodeType      string `json:"node_type" gorm:"type:varchar(16);index;not null"`
	UserID        string `json:"user_id" gorm:"index;not null"`
	Body          string `json:"body" gorm:"type:text"`
	FeedbackScore int    `json:"feedback_score" gorm:"default:0"`
}

// EntryVote is one user's category ratings for an entry. A zero means "no opinion".
type EntryVote struct {
	Base
	EntryID string  `json:"entry_id" gorm:"uniqueIndex:idx_entry_vote_user_entry;not null"`
	UserID  string  `json:"user_id" gorm:"uniqueIndex:idx_entry_vote_user_entry;not null"`
	EventID string  `json:"event_id" gorm:"index;not null"`
	Vote1   float64 `json:"vote_1" gorm:"column:vote_1"`
	Vote2   float64 `json:"vote_2" gorm:"column:vote_2"`
	Vote3   float64 `json:"vote_3" gorm:"column:vote_3"`
	Vote4   float64 `json:"vote_4" gorm:"column:vote_4"`
	Vote5   float64 `json:"vote_5" gorm:"column:vote_5"`
	Vote6   float64 `json:"vote_6" gorm:"column:vote_6"`
	Vote7   float64 `json:"vote_7" gorm:"column:vote_7"`
}

// Votes returns pointers to the vote columns, index = category - 1.
func (v *EntryVote) Votes() []*float64 {
	return []*float64{&v.Vote1, &v.Vote2, &v.Vote3, &v.Vote4, &v.Vote5, &v.Vote6, &v.Vote7}
}

// VoteColumns lists the vote column names in category order.
var VoteColumns = []string{"vote_1", "vote_2", "vote_3", "vote_4", "vote_5", "vote_6", "vote_7"}
