package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrPlayerNotFound is returned when a player acts before joining or after being removed.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrQuizNotLoaded is returned when the host starts a game without a quiz.
	ErrQuizNotLoaded = errors.New("no quiz loaded")
	// ErrEmptyQuiz is returned when the loaded quiz has no items.
	ErrEmptyQuiz = errors.New("quiz has no items")
	// ErrNotAQuestion is returned when a question-only action targets a round title.
	ErrNotAQuestion = errors.New("current item is not a question")
	// ErrNotConfirmed aborts a destructive action the user did not confirm.
	ErrNotConfirmed = errors.New("action not confirmed")
	// ErrUnauthorized is returned for host-only actions without a valid session.
	ErrUnauthorized = errors.New("not authenticated")
	// ErrGameInProgress is returned when the quiz is swapped while a game runs.
	ErrGameInProgress = errors.New("game in progress")
)

// FormatError reports malformed or unrecognised quiz input.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid quiz format: %s: %v", e.Reason, e.Err)
	}
	return "invalid quiz format: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// ValidationError is user-correctable input rejected before touching the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Validationf builds a ValidationError for field.
func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// WriteFailure is a rejected or timed out store write. Local state is kept
// and the caller may retry.
type WriteFailure struct {
	Op  string
	Err error
}

func (e *WriteFailure) Error() string {
	return fmt.Sprintf("store write %s failed: %v", e.Op, e.Err)
}

func (e *WriteFailure) Unwrap() error { return e.Err }

// ConfigurationError is a required collaborator missing at startup.
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s not configured: %s", e.Component, e.Reason)
}
