package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/storage"
)

// CreateNote persists a note. An alias collision among the owner's
// active notes maps to storage.ErrConflict via the partial unique index.
func (s *Store) CreateNote(ctx context.Context, n *api.Note) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notes (id, owner_id, body, alias, notebook, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.ID, n.OwnerID, n.Text, n.Alias, n.Notebook, n.Active, n.CreatedAt)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting note: %w", err)
	}
	return nil
}

// ListNotes returns the owner's active notes, newest first.
func (s *Store) ListNotes(ctx context.Context, ownerID string, limit int) ([]*api.Note, error) {
	return s.queryNotes(ctx, `
		SELECT id, owner_id, body, alias, notebook, active, created_at
		FROM notes
		WHERE owner_id = $1 AND active
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, ownerID, noteLimit(limit))
}

// NotesByNotebook returns the owner's active notes in the named
// notebook, newest first.
func (s *Store) NotesByNotebook(ctx context.Context, ownerID, notebook string, limit int) ([]*api.Note, error) {
	return s.queryNotes(ctx, `
		SELECT id, owner_id, body, alias, notebook, active, created_at
		FROM notes
		WHERE owner_id = $1 AND notebook = $2 AND active
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, ownerID, notebook, noteLimit(limit))
}

func (s *Store) queryNotes(ctx context.Context, query string, args ...any) ([]*api.Note, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	var notes []*api.Note
	for rows.Next() {
		var n api.Note
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Text, &n.Alias, &n.Notebook, &n.Active, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

// NoteByAlias returns the owner's active note with the given alias.
func (s *Store) NoteByAlias(ctx context.Context, ownerID, alias string) (*api.Note, error) {
	var n api.Note
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, body, alias, notebook, active, created_at
		FROM notes
		WHERE owner_id = $1 AND alias = $2 AND active
	`, ownerID, alias).Scan(&n.ID, &n.OwnerID, &n.Text, &n.Alias, &n.Notebook, &n.Active, &n.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying note: %w", err)
	}
	return &n, nil
}

// DeleteNote soft-deletes a note by clearing its active flag.
func (s *Store) DeleteNote(ctx context.Context, ownerID, id string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE notes SET active = FALSE
		WHERE id = $1 AND owner_id = $2 AND active
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// NotebookGetOrCreate returns the owner's notebook with the given name,
// inserting it first when missing. The insert races safely on the
// (owner_id, name) unique constraint.
func (s *Store) NotebookGetOrCreate(ctx context.Context, ownerID, name string) (*api.Notebook, error) {
	nb, err := s.notebookByName(ctx, ownerID, name)
	if err == nil {
		return nb, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notebooks (id, owner_id, name, created_at)
		VALUES (gen_random_uuid()::text, $1, $2, now())
		ON CONFLICT (owner_id, name) DO NOTHING
	`, ownerID, name)
	if err != nil {
		return nil, fmt.Errorf("inserting notebook: %w", err)
	}

	return s.notebookByName(ctx, ownerID, name)
}

func (s *Store) notebookByName(ctx context.Context, ownerID, name string) (*api.Notebook, error) {
	var nb api.Notebook
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, created_at
		FROM notebooks WHERE owner_id = $1 AND name = $2
	`, ownerID, name).Scan(&nb.ID, &nb.OwnerID, &nb.Name, &nb.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying notebook: %w", err)
	}
	return &nb, nil
}

// ListNotebooks returns the owner's notebooks, oldest first.
func (s *Store) ListNotebooks(ctx context.Context, ownerID string) ([]*api.Notebook, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, created_at
		FROM notebooks WHERE owner_id = $1
		ORDER BY created_at
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying notebooks: %w", err)
	}
	defer rows.Close()

	var books []*api.Notebook
	for rows.Next() {
		var nb api.Notebook
		if err := rows.Scan(&nb.ID, &nb.OwnerID, &nb.Name, &nb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notebook: %w", err)
		}
		books = append(books, &nb)
	}
	return books, rows.Err()
}

// CreateReport appends a client error report. An empty user ID is
// stored as NULL.
func (s *Store) CreateReport(ctx context.Context, r *api.Report) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reports (id, user_id, traceback, info, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.ID, nullString(r.UserID), r.Traceback, r.Info, r.CreatedAt)

	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// nullString converts an empty string to nil for nullable TEXT columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// noteLimit clamps a non-positive limit to a high ceiling so LIMIT
// always gets a concrete value.
func noteLimit(limit int) int {
	if limit <= 0 {
		return 1000
	}
	return limit
}
