package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/felixgeelhaar/quizguard/internal/domain"
)

// QuizStore loads validated quiz documents
type QuizStore interface {
	GetQuiz(ctx context.Context, id domain.QuizID) (*domain.Quiz, error)
}

// SessionStore persists session values. Implementations return
// domain.ErrSessionNotFound for missing sessions and nil (not an error) from
// FindActiveSession when the user has no active session for the quiz.
type SessionStore interface {
	GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error)
	SaveSession(ctx context.Context, s *domain.Session) error
	FindActiveSession(ctx context.Context, userID string, quizID domain.QuizID) (*domain.Session, error)
}

// Service wraps the pure engine with persistence and logging
type Service struct {
	quizzes  QuizStore
	sessions SessionStore
	logger   *slog.Logger
}

// NewService builds a session service. A nil logger discards
func NewService(quizzes QuizStore, sessions SessionStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{quizzes: quizzes, sessions: sessions, logger: logger}
}

// StartQuiz begins a session, or resumes the user's active session for the
// quiz if one exists. Resuming does not reset scores or position.
func (s *Service) StartQuiz(ctx context.Context, userID string, quizID domain.QuizID) (*domain.Session, error) {
	existing, err := s.sessions.FindActiveSession(ctx, userID, quizID)
	if err != nil {
		return nil, fmt.Errorf("find active session: %w", err)
	}
	if existing != nil {
		s.logger.InfoContext(ctx, "resuming session",
			"session_id", existing.ID, "quiz_id", quizID, "user_id", userID)
		return existing, nil
	}

	doc, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	session, err := Start(doc, userID, quizID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.InfoContext(ctx, "session started",
		"session_id", session.ID, "quiz_id", quizID, "user_id", userID)
	return session, nil
}

// Current returns the question a session is waiting on, nil when completed
func (s *Service) Current(ctx context.Context, sessionID domain.SessionID) (*domain.Question, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	doc, err := s.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return nil, err
	}
	return CurrentQuestion(doc, session), nil
}

// Answer applies one answer to a session and persists the result
func (s *Service) Answer(ctx context.Context, sessionID domain.SessionID, answer any) (*domain.Session, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	doc, err := s.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return nil, err
	}

	next, err := AnswerQuestion(doc, session, answer)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SaveSession(ctx, next); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	if next.Completed {
		s.logger.InfoContext(ctx, "session completed",
			"session_id", next.ID, "answers", len(next.Answers))
	}
	return next, nil
}

// End closes a session and returns its summary
func (s *Service) End(ctx context.Context, sessionID domain.SessionID) (*domain.Summary, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	next, summary, err := EndQuiz(session)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SaveSession(ctx, next); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.InfoContext(ctx, "session ended", "session_id", next.ID)
	return summary, nil
}
