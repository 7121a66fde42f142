// Package engine runs quiz sessions. The core is a set of pure transition
// functions over immutable session values: given the same document, session,
// and answer they always produce the same next session. Persistence and
// logging live in Service, which wraps the pure core.
package engine

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/quizguard/internal/domain"
	"github.com/felixgeelhaar/quizguard/internal/expr"
	"github.com/felixgeelhaar/quizguard/internal/variable"
)

// Start creates a fresh session positioned at the document's first question,
// with every variable seeded to its default
func Start(doc *domain.Quiz, userID string, quizID domain.QuizID) (*domain.Session, error) {
	first := doc.FirstQuestion()
	if first == nil {
		return nil, fmt.Errorf("%w: document has no questions", domain.ErrValidation)
	}
	store, err := variable.New(doc.Variables)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	currentID := first.ID
	session := &domain.Session{
		ID:                domain.GenerateSessionID(),
		UserID:            userID,
		QuizID:            quizID,
		CurrentQuestionID: &currentID,
		Scores:            store.Values(),
		Answers:           []domain.AnswerRecord{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	// A quiz that opens on a final_message has nothing to answer: record the
	// message and complete immediately.
	if qt, _ := domain.ParseQuestionType(first.Data.Type); qt == domain.QuestionFinalMessage {
		session.Answers = append(session.Answers, domain.AnswerRecord{QuestionID: first.ID, Value: nil})
		complete(session)
	}
	return session, nil
}

// CurrentQuestion returns the question the session is waiting on, or nil
// when the session is completed
func CurrentQuestion(doc *domain.Quiz, s *domain.Session) *domain.Question {
	if s.Completed || s.CurrentQuestionID == nil {
		return nil
	}
	return doc.QuestionByID(*s.CurrentQuestionID)
}

// AnswerQuestion applies one answer: the answer is recorded, the question's
// score updates run with the answer in scope, then the question's transitions
// are scanned in declaration order and the first one whose condition holds
// selects the next question. No matching transition completes the session.
// The input session is never mutated.
func AnswerQuestion(doc *domain.Quiz, s *domain.Session, answer any) (*domain.Session, error) {
	if s.Completed {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionCompleted, s.ID)
	}
	question := CurrentQuestion(doc, s)
	if question == nil {
		return nil, fmt.Errorf("%w: session %s has no current question", domain.ErrQuestionNotFound, s.ID)
	}

	next := s.Clone()
	next.Answers = append(next.Answers, domain.AnswerRecord{QuestionID: question.ID, Value: answer})

	store, err := variable.Restore(doc.Variables, next.Scores)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", s.ID, err)
	}

	if err := applyScoreUpdates(question, store, answer); err != nil {
		return nil, fmt.Errorf("question %d: %w", question.ID, err)
	}
	next.Scores = store.Values()

	if err := advance(doc, next, question, store, answer); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()
	return next, nil
}

// EndQuiz closes the session and returns its terminal summary. Ending an
// already-completed session is idempotent.
func EndQuiz(s *domain.Session) (*domain.Session, *domain.Summary, error) {
	next := s.Clone()
	next.Completed = true
	next.CurrentQuestionID = nil
	next.UpdatedAt = time.Now().UTC()
	return next, &domain.Summary{Scores: next.Scores, Answers: next.Answers}, nil
}

// applyScoreUpdates runs the question's conditional updates. Each block sees
// the values committed by the blocks before it; writes go through the store
// so type coercion and constraints always apply.
func applyScoreUpdates(question *domain.Question, store *variable.Store, answer any) error {
	for i, update := range question.ScoreUpdates {
		bindings := withAnswer(store.Values(), answer)

		matched := true
		if update.Condition != "" {
			var err error
			matched, err = expr.EvaluateBool(update.Condition, bindings)
			if err != nil {
				return fmt.Errorf("score update %d: %w", i, err)
			}
		}
		if !matched {
			continue
		}

		for target, expression := range update.Update {
			value, err := expr.Evaluate(expression, bindings)
			if err != nil {
				return fmt.Errorf("score update %d: %q: %w", i, target, err)
			}
			if err := store.Set(target, value, domain.ActorEngine); err != nil {
				return fmt.Errorf("score update %d: %w", i, err)
			}
		}
	}
	return nil
}

// advance scans the answered question's transitions and moves the session.
// Entering a final_message question records it with a nil answer and
// completes the session immediately; revisiting earlier questions is legal,
// loops are a document design choice.
func advance(doc *domain.Quiz, next *domain.Session, question *domain.Question,
	store *variable.Store, answer any) error {

	bindings := withAnswer(store.Values(), answer)

	for i, transition := range doc.TransitionsFor(question.ID) {
		matched, err := expr.EvaluateBool(transition.ConditionExpression(), bindings)
		if err != nil {
			return fmt.Errorf("question %d transition %d: %w", question.ID, i, err)
		}
		if !matched {
			continue
		}

		if transition.NextQuestionID == nil {
			complete(next)
			return nil
		}
		target := doc.QuestionByID(*transition.NextQuestionID)
		if target == nil {
			return fmt.Errorf("%w: transition target %d", domain.ErrQuestionNotFound, *transition.NextQuestionID)
		}

		targetID := target.ID
		next.CurrentQuestionID = &targetID
		if qt, _ := domain.ParseQuestionType(target.Data.Type); qt == domain.QuestionFinalMessage {
			next.Answers = append(next.Answers, domain.AnswerRecord{QuestionID: target.ID, Value: nil})
			complete(next)
		}
		return nil
	}

	// No transition matched; the path ends here.
	complete(next)
	return nil
}

func complete(s *domain.Session) {
	s.Completed = true
	s.CurrentQuestionID = nil
}

func withAnswer(values map[string]any, answer any) map[string]any {
	out := make(map[string]any, len(values)+1)
	for name, value := range values {
		out[name] = value
	}
	out["answer"] = answer
	return out
}
