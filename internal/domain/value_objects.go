package domain

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// ErrInvalidID indicates an invalid identifier format
var ErrInvalidID = errors.New("invalid identifier format")

// -----------------------------------------------------------------------------
// SessionID - Typed identifier for quiz sessions
// -----------------------------------------------------------------------------

// SessionID is a typed identifier for quiz sessions
type SessionID struct {
	value uuid.UUID
}

// NewSessionID creates a new SessionID from a UUID
func NewSessionID(id uuid.UUID) SessionID {
	return SessionID{value: id}
}

// NewSessionIDFromString creates a SessionID from a string
func NewSessionIDFromString(s string) (SessionID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, fmt.Errorf("invalid session ID: %w", err)
	}
	return SessionID{value: id}, nil
}

// GenerateSessionID creates a new random SessionID
func GenerateSessionID() SessionID {
	return SessionID{value: uuid.New()}
}

// String returns the string representation
func (id SessionID) String() string {
	return id.value.String()
}

// IsZero returns true if this is a zero value
func (id SessionID) IsZero() bool {
	return id.value == uuid.Nil
}

// Equal compares two SessionIDs
func (id SessionID) Equal(other SessionID) bool {
	return id.value == other.value
}

// MarshalText implements encoding.TextMarshaler
func (id SessionID) MarshalText() ([]byte, error) {
	return []byte(id.value.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *SessionID) UnmarshalText(data []byte) error {
	parsed, err := uuid.Parse(string(data))
	if err != nil {
		return fmt.Errorf("invalid session ID: %w", err)
	}
	id.value = parsed
	return nil
}

// -----------------------------------------------------------------------------
// QuizID - Value object for quiz identifiers
// -----------------------------------------------------------------------------

// quizIDPattern validates quiz ID format: a lowercase slug
var quizIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,127}$`)

// QuizID is a value object for quiz identifiers
// Format: a slug such as "fruit-survey" or "onboarding_v2"
type QuizID struct {
	value string
}

// NewQuizID creates a new QuizID from a string
func NewQuizID(s string) (QuizID, error) {
	if s == "" {
		return QuizID{}, fmt.Errorf("%w: quiz ID cannot be empty", ErrInvalidID)
	}
	if !quizIDPattern.MatchString(s) {
		return QuizID{}, fmt.Errorf("%w: quiz ID must be a lowercase slug", ErrInvalidID)
	}
	return QuizID{value: s}, nil
}

// MustQuizID creates a new QuizID, panicking on error
func MustQuizID(s string) QuizID {
	id, err := NewQuizID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the string representation
func (id QuizID) String() string {
	return id.value
}

// IsZero returns true if this is a zero value
func (id QuizID) IsZero() bool {
	return id.value == ""
}

// Equal compares two QuizIDs
func (id QuizID) Equal(other QuizID) bool {
	return id.value == other.value
}

// MarshalText implements encoding.TextMarshaler
func (id QuizID) MarshalText() ([]byte, error) {
	return []byte(id.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *QuizID) UnmarshalText(data []byte) error {
	parsed, err := NewQuizID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
