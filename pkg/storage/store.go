package storage

import (
	"context"

	"github.com/jotsrv/jot/pkg/api"
)

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser persists a new user as a single atomic operation.
	// Returns ErrConflict if the username is already taken.
	CreateUser(ctx context.Context, u *api.User) error

	// UserByUsername returns the user with the given username, or
	// ErrNotFound.
	UserByUsername(ctx context.Context, username string) (*api.User, error)

	// UserByID returns the user with the given ID, or ErrNotFound.
	UserByID(ctx context.Context, id string) (*api.User, error)

	// SetUserActive flips the active flag. Accounts are deactivated,
	// never deleted.
	SetUserActive(ctx context.Context, id string, active bool) error
}

// QuestionStore persists the registration question pool and per-user
// registration challenges.
type QuestionStore interface {
	// CreateQuestion adds a question to the pool.
	CreateQuestion(ctx context.Context, q *api.Question) error

	// ActiveQuestions returns the active question pool.
	ActiveQuestions(ctx context.Context) ([]*api.Question, error)

	// CreateRegisterQuestion persists a pending registration challenge.
	CreateRegisterQuestion(ctx context.Context, rq *api.RegisterQuestion) error

	// RegisterQuestionByUUID returns an active challenge and its pool
	// question, or ErrNotFound.
	RegisterQuestionByUUID(ctx context.Context, uuid string) (*api.RegisterQuestion, *api.Question, error)

	// LatestRegisterQuestion returns the user's most recent active
	// challenge, or ErrNotFound.
	LatestRegisterQuestion(ctx context.Context, userID string) (*api.RegisterQuestion, error)

	// CompleteRegistration atomically retires the challenge and marks
	// its user as registered. Returns ErrNotFound for an unknown or
	// already-retired challenge.
	CompleteRegistration(ctx context.Context, uuid string) error
}

// TokenStore persists opaque bearer tokens, one per user.
type TokenStore interface {
	// CreateToken persists a token. Returns ErrConflict if the key or
	// the user already has one.
	CreateToken(ctx context.Context, t *api.Token) error

	// TokenByKey returns the token with the given key, or ErrNotFound.
	TokenByKey(ctx context.Context, key string) (*api.Token, error)

	// TokenByUser returns the user's token, or ErrNotFound if none has
	// been issued.
	TokenByUser(ctx context.Context, userID string) (*api.Token, error)

	// ReplaceToken atomically removes any token held by the user and
	// persists the new one. A concurrent TokenByKey sees either the old
	// or the new key as valid, never a torn state.
	ReplaceToken(ctx context.Context, userID string, t *api.Token) error
}

// NoteStore persists notes with soft deletion.
type NoteStore interface {
	// CreateNote persists a note. Returns ErrConflict when the owner
	// already has an active note with the same alias.
	CreateNote(ctx context.Context, n *api.Note) error

	// ListNotes returns the owner's active notes, newest first, at most
	// limit entries.
	ListNotes(ctx context.Context, ownerID string, limit int) ([]*api.Note, error)

	// NoteByAlias returns the owner's active note with the given alias,
	// or ErrNotFound.
	NoteByAlias(ctx context.Context, ownerID, alias string) (*api.Note, error)

	// NotesByNotebook returns the owner's active notes in the named
	// notebook, newest first, at most limit entries.
	NotesByNotebook(ctx context.Context, ownerID, notebook string, limit int) ([]*api.Note, error)

	// DeleteNote soft-deletes a note by ID. Returns ErrNotFound if the
	// note does not exist, is inactive, or belongs to another owner.
	DeleteNote(ctx context.Context, ownerID, id string) error
}

// NotebookStore persists per-owner notebooks.
type NotebookStore interface {
	// NotebookGetOrCreate returns the owner's notebook with the given
	// name, creating it first if needed. Idempotent.
	NotebookGetOrCreate(ctx context.Context, ownerID, name string) (*api.Notebook, error)

	// ListNotebooks returns the owner's notebooks, oldest first.
	ListNotebooks(ctx context.Context, ownerID string) ([]*api.Notebook, error)
}

// ReportStore persists client error reports. Append-only.
type ReportStore interface {
	CreateReport(ctx context.Context, r *api.Report) error
}

// Store is the full persistence surface of the service.
type Store interface {
	UserStore
	QuestionStore
	TokenStore
	NoteStore
	NotebookStore
	ReportStore

	// HealthCheck verifies the store connection is functional.
	HealthCheck(ctx context.Context) error

	// Close releases database connections and resources.
	Close() error
}
