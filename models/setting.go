package models

import "time"

// Setting is a runtime override for an engine setting.
type Setting struct {
	Key       string    `json:"key" gorm:"primaryKey;type:varchar(64)"`
	Value     string    `json:"value" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// All lists every model the engine migrates.
func All() []interface{} {
	return []interface{}{
		&Event{},
		&Entry{},
		&EntryTeamMember{},
		&EntryDetails{},
		&Comment{},
		&EntryVote{},
		&EntryScore{},
		&TournamentEntry{},
		&TournamentScore{},
		&Theme{},
		&ThemeVote{},
		&ThemeShortlistVote{},
		&Setting{},
	}
}
