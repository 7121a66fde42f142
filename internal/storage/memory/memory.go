// Package memory provides in-memory reference implementations of the engine
// store interfaces. They are safe for concurrent use and hand out session
// clones so callers never share mutable state with the store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/quizguard/internal/domain"
)

// QuizStore holds validated quiz documents keyed by ID
type QuizStore struct {
	mu      sync.RWMutex
	quizzes map[domain.QuizID]*domain.Quiz
}

// NewQuizStore returns an empty quiz store
func NewQuizStore() *QuizStore {
	return &QuizStore{quizzes: make(map[domain.QuizID]*domain.Quiz)}
}

// PutQuiz stores or replaces a document. Only validated documents belong
// here; the store does not re-validate.
func (s *QuizStore) PutQuiz(_ context.Context, id domain.QuizID, doc *domain.Quiz) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[id] = doc
	return nil
}

// GetQuiz returns the document for id
func (s *QuizStore) GetQuiz(_ context.Context, id domain.QuizID) (*domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.quizzes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrQuizNotFound, id)
	}
	return doc, nil
}

// DeleteQuiz removes a document; deleting an absent ID is not an error
func (s *QuizStore) DeleteQuiz(_ context.Context, id domain.QuizID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quizzes, id)
	return nil
}

// SessionStore holds sessions keyed by session ID
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.Session
}

// NewSessionStore returns an empty session store
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[domain.SessionID]*domain.Session)}
}

// GetSession returns a clone of the stored session
func (s *SessionStore) GetSession(_ context.Context, id domain.SessionID) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return session.Clone(), nil
}

// SaveSession stores a clone of the session, replacing any prior state
func (s *SessionStore) SaveSession(_ context.Context, session *domain.Session) error {
	if session == nil {
		return fmt.Errorf("%w: nil session", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

// FindActiveSession returns the user's uncompleted session for the quiz, or
// nil when there is none
func (s *SessionStore) FindActiveSession(_ context.Context, userID string, quizID domain.QuizID) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.UserID == userID && session.QuizID.Equal(quizID) && !session.Completed {
			return session.Clone(), nil
		}
	}
	return nil, nil
}
