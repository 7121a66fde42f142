package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/quizguard/internal/domain"
)

func TestQuizStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewQuizStore()
	id := domain.MustQuizID("fruit-quiz")

	if _, err := store.GetQuiz(ctx, id); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Errorf("GetQuiz(empty) error = %v, want ErrQuizNotFound", err)
	}

	doc := &domain.Quiz{Metadata: domain.Metadata{Title: "Fruit Quiz"}}
	if err := store.PutQuiz(ctx, id, doc); err != nil {
		t.Fatalf("PutQuiz() error = %v", err)
	}
	got, err := store.GetQuiz(ctx, id)
	if err != nil || got.Metadata.Title != "Fruit Quiz" {
		t.Fatalf("GetQuiz() = %v, %v", got, err)
	}

	if err := store.DeleteQuiz(ctx, id); err != nil {
		t.Fatalf("DeleteQuiz() error = %v", err)
	}
	if _, err := store.GetQuiz(ctx, id); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Errorf("GetQuiz(deleted) error = %v, want ErrQuizNotFound", err)
	}
}

func TestSessionStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	quizID := domain.MustQuizID("fruit-quiz")

	session := &domain.Session{
		ID:     domain.GenerateSessionID(),
		UserID: "user-1",
		QuizID: quizID,
		Scores: map[string]any{"fruits": int64(0)},
	}
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	session.Scores["fruits"] = int64(99)
	got, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Scores["fruits"] != int64(0) {
		t.Errorf("stored fruits = %v, want 0", got.Scores["fruits"])
	}

	// Mutating a fetched copy must not leak either.
	got.Scores["fruits"] = int64(7)
	again, _ := store.GetSession(ctx, session.ID)
	if again.Scores["fruits"] != int64(0) {
		t.Errorf("fruits after fetch mutation = %v, want 0", again.Scores["fruits"])
	}
}

func TestFindActiveSession(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	quizID := domain.MustQuizID("fruit-quiz")

	found, err := store.FindActiveSession(ctx, "user-1", quizID)
	if err != nil || found != nil {
		t.Fatalf("FindActiveSession(empty) = %v, %v; want nil, nil", found, err)
	}

	active := &domain.Session{ID: domain.GenerateSessionID(), UserID: "user-1", QuizID: quizID}
	done := &domain.Session{ID: domain.GenerateSessionID(), UserID: "user-1", QuizID: quizID, Completed: true}
	for _, s := range []*domain.Session{active, done} {
		if err := store.SaveSession(ctx, s); err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}
	}

	found, err = store.FindActiveSession(ctx, "user-1", quizID)
	if err != nil {
		t.Fatalf("FindActiveSession() error = %v", err)
	}
	if found == nil || !found.ID.Equal(active.ID) {
		t.Errorf("FindActiveSession() = %v, want the uncompleted session", found)
	}
}
