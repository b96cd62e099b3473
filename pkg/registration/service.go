// Package registration poses a challenge question to newly provisioned
// users and marks them registered once they answer it correctly.
package registration

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/storage"
)

// DefaultTTL is how long a challenge stays answerable.
const DefaultTTL = time.Hour

// WrongAnswerError carries the question text so the caller can repeat
// it alongside the rejection.
type WrongAnswerError struct {
	Question string
}

func (e *WrongAnswerError) Error() string {
	return fmt.Sprintf("wrong answer to question %q", e.Question)
}

// Service hands out registration challenges and checks their answers.
// Challenges are drawn from the active question pool and expire after
// the configured TTL; an expired challenge behaves as if it never
// existed.
type Service struct {
	store storage.QuestionStore
	ttl   time.Duration
}

// New creates a registration service. A non-positive ttl falls back to
// DefaultTTL.
func New(store storage.QuestionStore, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, ttl: ttl}
}

// Challenge returns the user's pending challenge, creating one from a
// random pool question when none is live. An empty question pool
// returns storage.ErrNotFound.
func (s *Service) Challenge(ctx context.Context, userID string) (*api.RegisterQuestion, error) {
	rq, err := s.store.LatestRegisterQuestion(ctx, userID)
	if err == nil && !s.expired(rq) {
		return rq, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("looking up challenge: %w", err)
	}

	pool, err := s.store.ActiveQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading question pool: %w", err)
	}
	if len(pool) == 0 {
		return nil, storage.ErrNotFound
	}

	rq = &api.RegisterQuestion{
		UUID:       uuid.NewString(),
		QuestionID: pool[rand.IntN(len(pool))].ID,
		UserID:     userID,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateRegisterQuestion(ctx, rq); err != nil {
		return nil, fmt.Errorf("persisting challenge: %w", err)
	}
	return rq, nil
}

// Question returns the question posed by a live challenge. Unknown,
// retired, and expired challenges all return storage.ErrNotFound.
func (s *Service) Question(ctx context.Context, challengeUUID string) (*api.Question, error) {
	rq, q, err := s.store.RegisterQuestionByUUID(ctx, challengeUUID)
	if err != nil {
		return nil, err
	}
	if s.expired(rq) {
		return nil, storage.ErrNotFound
	}
	return q, nil
}

// Answer checks the answer against the challenge's question. A correct
// answer retires the challenge and registers its user; a wrong one
// returns a WrongAnswerError carrying the question text.
func (s *Service) Answer(ctx context.Context, challengeUUID, answer string) error {
	rq, q, err := s.store.RegisterQuestionByUUID(ctx, challengeUUID)
	if err != nil {
		return err
	}
	if s.expired(rq) {
		return storage.ErrNotFound
	}
	if strings.TrimSpace(answer) != q.Answer {
		return &WrongAnswerError{Question: q.Text}
	}
	return s.store.CompleteRegistration(ctx, rq.UUID)
}

func (s *Service) expired(rq *api.RegisterQuestion) bool {
	return time.Since(rq.CreatedAt) > s.ttl
}
