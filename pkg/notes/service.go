// Package notes implements the note, notebook, and report operations
// on top of the storage layer. Notes are addressed either by alias or
// by 1-indexed position in the newest-first listing.
package notes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/observability"
	"github.com/jotsrv/jot/pkg/storage"
)

// DefaultPageLimit bounds listings and positional addressing.
const DefaultPageLimit = 50

// Service implements note operations for one store.
type Service struct {
	store     storage.Store
	pageLimit int
}

// New creates a notes service. A non-positive pageLimit falls back to
// DefaultPageLimit.
func New(store storage.Store, pageLimit int) *Service {
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}
	return &Service{store: store, pageLimit: pageLimit}
}

// Create stores a new note for the owner. An empty alias is replaced
// with a random one so every note stays addressable. Returns
// *api.APIError for alias validation failures and storage.ErrConflict
// when the alias is already taken.
func (s *Service) Create(ctx context.Context, ownerID, text, alias, notebook string) (*api.Note, error) {
	if strings.TrimSpace(text) == "" {
		return nil, api.NewInvalidRequestError("text", "note text must not be empty")
	}
	if err := api.ValidateAlias(alias); err != nil {
		return nil, err
	}
	if alias == "" {
		alias = api.RandomAlias()
	}

	if notebook != "" {
		if _, err := s.store.NotebookGetOrCreate(ctx, ownerID, notebook); err != nil {
			return nil, fmt.Errorf("preparing notebook: %w", err)
		}
	}

	n := &api.Note{
		ID:        uuid.NewString(),
		Text:      text,
		Alias:     alias,
		OwnerID:   ownerID,
		Notebook:  notebook,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateNote(ctx, n); err != nil {
		return nil, err
	}

	observability.NotesCreatedTotal.Inc()
	return n, nil
}

// List returns the owner's active notes, newest first, bounded by the
// page limit.
func (s *Service) List(ctx context.Context, ownerID string) ([]*api.Note, error) {
	return s.store.ListNotes(ctx, ownerID, s.pageLimit)
}

// Get resolves a note reference for the owner. A reference is either an
// alias, the word "last" for the most recent note, or a 1-indexed
// position in the newest-first listing.
func (s *Service) Get(ctx context.Context, ownerID, ref string) (*api.Note, error) {
	if ref == "last" {
		return s.newest(ctx, ownerID)
	}
	if pos, ok := parsePosition(ref); ok {
		return s.byPosition(ctx, ownerID, pos)
	}
	return s.store.NoteByAlias(ctx, ownerID, ref)
}

// Delete soft-deletes the note the reference resolves to.
func (s *Service) Delete(ctx context.Context, ownerID, ref string) error {
	n, err := s.Get(ctx, ownerID, ref)
	if err != nil {
		return err
	}
	return s.store.DeleteNote(ctx, ownerID, n.ID)
}

// byPosition returns the note at the given 1-indexed position in the
// newest-first listing. Only positions strictly below the page limit
// are addressable; the limit itself and anything past it are not found.
func (s *Service) byPosition(ctx context.Context, ownerID string, pos int) (*api.Note, error) {
	if pos < 1 || pos >= s.pageLimit {
		return nil, storage.ErrNotFound
	}
	listed, err := s.store.ListNotes(ctx, ownerID, s.pageLimit)
	if err != nil {
		return nil, err
	}
	if pos > len(listed) {
		return nil, storage.ErrNotFound
	}
	return listed[pos-1], nil
}

// newest returns the most recent active note. Unlike positional
// addressing it is not bounded by the page limit.
func (s *Service) newest(ctx context.Context, ownerID string) (*api.Note, error) {
	listed, err := s.store.ListNotes(ctx, ownerID, 1)
	if err != nil {
		return nil, err
	}
	if len(listed) == 0 {
		return nil, storage.ErrNotFound
	}
	return listed[0], nil
}

// Notebooks returns the owner's notebooks.
func (s *Service) Notebooks(ctx context.Context, ownerID string) ([]*api.Notebook, error) {
	return s.store.ListNotebooks(ctx, ownerID)
}

// NotebookNotes returns the owner's active notes in the named notebook,
// creating the notebook on first reference.
func (s *Service) NotebookNotes(ctx context.Context, ownerID, name string) ([]*api.Note, error) {
	if _, err := s.store.NotebookGetOrCreate(ctx, ownerID, name); err != nil {
		return nil, fmt.Errorf("preparing notebook: %w", err)
	}
	return s.store.NotesByNotebook(ctx, ownerID, name, s.pageLimit)
}

// Report stores a client error report. The user link is optional; the
// report route is reachable without credentials.
func (s *Service) Report(ctx context.Context, userID, traceback, info string) (*api.Report, error) {
	if strings.TrimSpace(traceback) == "" {
		return nil, api.NewInvalidRequestError("traceback", "traceback must not be empty")
	}

	r := &api.Report{
		ID:        uuid.NewString(),
		Traceback: traceback,
		Info:      info,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateReport(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// parsePosition reports whether ref is a digit-only positional
// reference and returns its value.
func parsePosition(ref string) (int, bool) {
	if ref == "" {
		return 0, false
	}
	pos := 0
	for _, r := range ref {
		if r < '0' || r > '9' {
			return 0, false
		}
		pos = pos*10 + int(r-'0')
		if pos > 1<<20 {
			return 0, false
		}
	}
	return pos, true
}
