// models/event.go
package models

import (
	"time"
)

// Theme phases of an event
const (
	ThemeStatusDisabled  = "disabled"
	ThemeStatusOff       = "off"
	ThemeStatusVoting    = "voting"
	ThemeStatusShortlist = "shortlist"
	ThemeStatusClosed    = "closed"
	ThemeStatusResults   = "results"
)

// Tournament phases of an event
const (
	TournamentStatusOff     = "off"
	TournamentStatusPlaying = "playing"
	TournamentStatusClosed  = "closed"
	TournamentStatusResults = "results"
)

// Event is a jam or a tournament. Only the fields the engine reads are mapped here.
type Event struct {
	Base
	Name             string   `json:"name" gorm:"not null"`
	Title            string   `json:"title"`
	StatusTheme      string   `json:"status_theme" gorm:"type:varchar(16);default:'off'"`
	StatusTournament string   `json:"status_tournament" gorm:"type:varchar(16);default:'off'"`
	Categories       []string `json:"categories" gorm:"serializer:json"` // rating category titles, index = category - 1
	Divisions        []string `json:"divisions" gorm:"serializer:json"`

	// Shortlist elimination state. Eliminated themes are always the bottom
	// EliminatedCount of the shortlist ordering.
	EliminationStartedAt *time.Time `json:"elimination_started_at,omitempty"`
	EliminationMinutes   int        `json:"elimination_minutes" gorm:"default:0"`
	EliminatedCount      int        `json:"eliminated_count" gorm:"default:0"`
	NextEliminationAt    *time.Time `json:"next_elimination_at,omitempty"`
}
