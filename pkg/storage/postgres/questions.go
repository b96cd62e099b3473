package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/storage"
)

// CreateQuestion adds a question to the registration pool.
func (s *Store) CreateQuestion(ctx context.Context, q *api.Question) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO questions (id, body, answer, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, q.ID, q.Text, q.Answer, q.Active, q.CreatedAt)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting question: %w", err)
	}
	return nil
}

// ActiveQuestions returns the questions eligible for new challenges.
func (s *Store) ActiveQuestions(ctx context.Context) ([]*api.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, body, answer, active, created_at
		FROM questions WHERE active
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("querying questions: %w", err)
	}
	defer rows.Close()

	var qs []*api.Question
	for rows.Next() {
		var q api.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Answer, &q.Active, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning question: %w", err)
		}
		qs = append(qs, &q)
	}
	return qs, rows.Err()
}

// CreateRegisterQuestion persists a registration challenge.
func (s *Store) CreateRegisterQuestion(ctx context.Context, rq *api.RegisterQuestion) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO register_questions (uuid, question_id, user_id, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rq.UUID, rq.QuestionID, rq.UserID, rq.Active, rq.CreatedAt)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting register question: %w", err)
	}
	return nil
}

// RegisterQuestionByUUID returns an active challenge together with the
// question it poses.
func (s *Store) RegisterQuestionByUUID(ctx context.Context, uuid string) (*api.RegisterQuestion, *api.Question, error) {
	var (
		rq api.RegisterQuestion
		q  api.Question
	)
	err := s.pool.QueryRow(ctx, `
		SELECT rq.uuid, rq.question_id, rq.user_id, rq.active, rq.created_at,
		       q.id, q.body, q.answer, q.active, q.created_at
		FROM register_questions rq
		JOIN questions q ON q.id = rq.question_id
		WHERE rq.uuid = $1 AND rq.active
	`, uuid).Scan(
		&rq.UUID, &rq.QuestionID, &rq.UserID, &rq.Active, &rq.CreatedAt,
		&q.ID, &q.Text, &q.Answer, &q.Active, &q.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying register question: %w", err)
	}
	return &rq, &q, nil
}

// LatestRegisterQuestion returns the user's most recent active
// challenge.
func (s *Store) LatestRegisterQuestion(ctx context.Context, userID string) (*api.RegisterQuestion, error) {
	var rq api.RegisterQuestion
	err := s.pool.QueryRow(ctx, `
		SELECT uuid, question_id, user_id, active, created_at
		FROM register_questions
		WHERE user_id = $1 AND active
		ORDER BY created_at DESC
		LIMIT 1
	`, userID).Scan(&rq.UUID, &rq.QuestionID, &rq.UserID, &rq.Active, &rq.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying register question: %w", err)
	}
	return &rq, nil
}

// CompleteRegistration retires the challenge and marks its user as
// registered in one transaction.
func (s *Store) CompleteRegistration(ctx context.Context, uuid string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning registration: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID string
	err = tx.QueryRow(ctx, `
		UPDATE register_questions SET active = FALSE
		WHERE uuid = $1 AND active
		RETURNING user_id
	`, uuid).Scan(&userID)

	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("retiring register question: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users SET registered = TRUE WHERE id = $1
	`, userID); err != nil {
		return fmt.Errorf("marking user registered: %w", err)
	}
	return tx.Commit(ctx)
}
