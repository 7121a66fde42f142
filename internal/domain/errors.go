package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by the evaluator,
// stores, and services to communicate domain-specific error conditions.
// -----------------------------------------------------------------------------

// Quiz and session lookup errors
var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrSessionCompleted = errors.New("session already completed")
)

// Variable store errors
var (
	ErrUnknownVariable   = errors.New("unknown variable")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrImmutableVariable = errors.New("variable is immutable")
	ErrValidation        = errors.New("validation failed")
)

// Expression sandbox errors. Both indicate either a malformed quiz or an
// injection attempt through the condition field itself and are never
// recovered locally.
var (
	ErrUnauthorizedVariable  = errors.New("unauthorized variable reference")
	ErrUnsupportedExpression = errors.New("unsupported expression construct")
)

// Safety errors
var (
	ErrSSRFRejected      = errors.New("url rejected by ssrf validation")
	ErrInjectionDetected = errors.New("injection pattern detected")
	ErrRegexUnsafe       = errors.New("regex pattern is unsafe")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)
