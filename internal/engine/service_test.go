package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/quizguard/internal/domain"
	"github.com/felixgeelhaar/quizguard/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, domain.QuizID) {
	t.Helper()
	ctx := context.Background()
	quizzes := memory.NewQuizStore()
	sessions := memory.NewSessionStore()

	quizID := domain.MustQuizID("fruit-quiz")
	if err := quizzes.PutQuiz(ctx, quizID, fruitQuiz(t)); err != nil {
		t.Fatalf("PutQuiz() error = %v", err)
	}
	return NewService(quizzes, sessions, nil), quizID
}

func TestServiceStartResumesActiveSession(t *testing.T) {
	ctx := context.Background()
	service, quizID := newTestService(t)

	first, err := service.StartQuiz(ctx, "user-1", quizID)
	if err != nil {
		t.Fatalf("StartQuiz() error = %v", err)
	}
	again, err := service.StartQuiz(ctx, "user-1", quizID)
	if err != nil {
		t.Fatalf("StartQuiz() resume error = %v", err)
	}
	if !again.ID.Equal(first.ID) {
		t.Errorf("resume returned session %s, want %s", again.ID, first.ID)
	}

	// A different user gets a fresh session.
	other, err := service.StartQuiz(ctx, "user-2", quizID)
	if err != nil {
		t.Fatalf("StartQuiz() other user error = %v", err)
	}
	if other.ID.Equal(first.ID) {
		t.Error("distinct users must not share a session")
	}
}

func TestServiceAnswerFlow(t *testing.T) {
	ctx := context.Background()
	service, quizID := newTestService(t)

	session, err := service.StartQuiz(ctx, "user-1", quizID)
	if err != nil {
		t.Fatalf("StartQuiz() error = %v", err)
	}

	question, err := service.Current(ctx, session.ID)
	if err != nil || question == nil || question.ID != 1 {
		t.Fatalf("Current() = %v, %v; want question 1", question, err)
	}

	session, err = service.Answer(ctx, session.ID, "yes")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	session, err = service.Answer(ctx, session.ID, "yes")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !session.Completed {
		t.Fatal("session should be completed after both questions")
	}

	// Completion persisted: a new start is a fresh session.
	fresh, err := service.StartQuiz(ctx, "user-1", quizID)
	if err != nil {
		t.Fatalf("StartQuiz() after completion error = %v", err)
	}
	if fresh.ID.Equal(session.ID) {
		t.Error("completed session must not be resumed")
	}
}

func TestServiceEnd(t *testing.T) {
	ctx := context.Background()
	service, quizID := newTestService(t)

	session, err := service.StartQuiz(ctx, "user-1", quizID)
	if err != nil {
		t.Fatalf("StartQuiz() error = %v", err)
	}
	if _, err = service.Answer(ctx, session.ID, "yes"); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	summary, err := service.End(ctx, session.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if summary.Scores["fruits"] != int64(1) {
		t.Errorf("summary fruits = %v, want 1", summary.Scores["fruits"])
	}
}

func TestServiceNotFound(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	if _, err := service.Answer(ctx, domain.GenerateSessionID(), "yes"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Answer(unknown session) error = %v, want ErrSessionNotFound", err)
	}
	if _, err := service.StartQuiz(ctx, "user-1", domain.MustQuizID("missing-quiz")); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Errorf("StartQuiz(unknown quiz) error = %v, want ErrQuizNotFound", err)
	}
}
