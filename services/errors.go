package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced event, entry, theme or score does not exist.
	ErrNotFound = errors.New("not found")
	// ErrScoresDisabled is returned when the entry has high scores turned off.
	ErrScoresDisabled = errors.New("high scores are disabled for this entry")
	// ErrProofRequired is returned when a score would enter the top ranks without proof.
	ErrProofRequired = errors.New("a proof is required for scores entering the top rankings")
	// ErrThemeVotingClosed is returned when the event is not in the right theme phase.
	ErrThemeVotingClosed = errors.New("theme voting is not open for this event")
)

// ValidationError reports a malformed input that the caller can show to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConfigurationError reports an engine setting that cannot be applied.
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid setting %s: %s", e.Setting, e.Message)
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfiguration reports whether err is a *ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
