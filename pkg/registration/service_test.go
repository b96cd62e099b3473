package registration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/storage"
	"github.com/jotsrv/jot/pkg/storage/memory"
)

func newTestService(t *testing.T, ttl time.Duration) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, ttl), store
}

func seedQuestion(t *testing.T, store *memory.Store, id, text, answer string) {
	t.Helper()
	q := &api.Question{ID: id, Text: text, Answer: answer, Active: true, CreatedAt: time.Now().UTC()}
	if err := store.CreateQuestion(context.Background(), q); err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
}

func TestChallengeIsReusedWhileLive(t *testing.T) {
	svc, store := newTestService(t, 0)
	ctx := context.Background()
	seedQuestion(t, store, "q1", "2+2?", "4")

	first, err := svc.Challenge(ctx, "u1")
	if err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	second, err := svc.Challenge(ctx, "u1")
	if err != nil {
		t.Fatalf("second Challenge: %v", err)
	}
	if first.UUID != second.UUID {
		t.Fatalf("expected the live challenge back, got %q and %q", first.UUID, second.UUID)
	}

	// Another user gets their own challenge.
	other, err := svc.Challenge(ctx, "u2")
	if err != nil {
		t.Fatalf("Challenge for u2: %v", err)
	}
	if other.UUID == first.UUID {
		t.Fatal("challenges must be per user")
	}
}

func TestChallengeWithEmptyPool(t *testing.T) {
	svc, _ := newTestService(t, 0)

	if _, err := svc.Challenge(context.Background(), "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQuestionExpiry(t *testing.T) {
	svc, store := newTestService(t, time.Minute)
	ctx := context.Background()
	seedQuestion(t, store, "q1", "2+2?", "4")

	rq, err := svc.Challenge(ctx, "u1")
	if err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	if _, err := svc.Question(ctx, rq.UUID); err != nil {
		t.Fatalf("Question: %v", err)
	}

	// Backdate the challenge past the TTL.
	stale := &api.RegisterQuestion{
		UUID:       "stale",
		QuestionID: "q1",
		UserID:     "u2",
		Active:     true,
		CreatedAt:  time.Now().UTC().Add(-2 * time.Minute),
	}
	if err := store.CreateRegisterQuestion(ctx, stale); err != nil {
		t.Fatalf("CreateRegisterQuestion: %v", err)
	}
	if _, err := svc.Question(ctx, "stale"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expired question: expected ErrNotFound, got %v", err)
	}
	if err := svc.Answer(ctx, "stale", "4"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expired answer: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Question(ctx, "no-such"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("unknown uuid: expected ErrNotFound, got %v", err)
	}
}

func TestExpiredChallengeIsReplaced(t *testing.T) {
	svc, store := newTestService(t, time.Minute)
	ctx := context.Background()
	seedQuestion(t, store, "q1", "2+2?", "4")

	stale := &api.RegisterQuestion{
		UUID:       "stale",
		QuestionID: "q1",
		UserID:     "u1",
		Active:     true,
		CreatedAt:  time.Now().UTC().Add(-2 * time.Minute),
	}
	if err := store.CreateRegisterQuestion(ctx, stale); err != nil {
		t.Fatalf("CreateRegisterQuestion: %v", err)
	}

	rq, err := svc.Challenge(ctx, "u1")
	if err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	if rq.UUID == "stale" {
		t.Fatal("expected a fresh challenge in place of the expired one")
	}
}

func TestAnswerRegistersUser(t *testing.T) {
	svc, store := newTestService(t, 0)
	ctx := context.Background()
	seedQuestion(t, store, "q1", "2+2?", "4")

	if err := store.CreateUser(ctx, &api.User{ID: "u1", Username: "alice", Active: true}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	rq, err := svc.Challenge(ctx, "u1")
	if err != nil {
		t.Fatalf("Challenge: %v", err)
	}

	var wrong *WrongAnswerError
	if err := svc.Answer(ctx, rq.UUID, "5"); !errors.As(err, &wrong) {
		t.Fatalf("expected WrongAnswerError, got %v", err)
	} else if wrong.Question != "2+2?" {
		t.Errorf("Question = %q, want %q", wrong.Question, "2+2?")
	}

	// Whitespace around an otherwise correct answer is forgiven.
	if err := svc.Answer(ctx, rq.UUID, " 4 "); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	u, err := store.UserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if !u.Registered {
		t.Fatal("user should be registered")
	}
	if err := svc.Answer(ctx, rq.UUID, "4"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("answered challenge: expected ErrNotFound, got %v", err)
	}
}
