// Package memory provides an in-memory implementation of storage.Store
// for testing and lightweight deployments. Records are lost when the
// process restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/storage"
)

// noteEntry holds a stored note and its insertion sequence, used to
// break creation-time ties in newest-first ordering.
type noteEntry struct {
	note *api.Note
	seq  uint64
}

// Store is an in-memory storage.Store guarded by a single RWMutex, which
// gives the same atomic get-or-create guarantees a database's unique
// constraints would.
type Store struct {
	mu        sync.RWMutex
	users     map[string]*api.User // by ID
	usernames map[string]string    // username -> user ID
	tokens    map[string]*api.Token // by key
	userToken map[string]string    // user ID -> key
	notes     map[string]*noteEntry // by ID
	notebooks []*api.Notebook
	questions []*api.Question
	regQs     []*api.RegisterQuestion // insertion order, latest last
	reports   []*api.Report
	seq       uint64
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:     make(map[string]*api.User),
		usernames: make(map[string]string),
		tokens:    make(map[string]*api.Token),
		userToken: make(map[string]string),
		notes:     make(map[string]*noteEntry),
	}
}

// CreateUser persists a user. Returns ErrConflict on a duplicate
// username.
func (s *Store) CreateUser(_ context.Context, u *api.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usernames[u.Username]; taken {
		return storage.ErrConflict
	}

	cp := *u
	s.users[u.ID] = &cp
	s.usernames[u.Username] = u.ID
	return nil
}

// UserByUsername returns the user with the given username.
func (s *Store) UserByUsername(_ context.Context, username string) (*api.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usernames[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

// UserByID returns the user with the given ID.
func (s *Store) UserByID(_ context.Context, id string) (*api.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// SetUserActive flips the account's active flag.
func (s *Store) SetUserActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.Active = active
	return nil
}

// CreateQuestion adds a question to the registration pool.
func (s *Store) CreateQuestion(_ context.Context, q *api.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *q
	s.questions = append(s.questions, &cp)
	return nil
}

// ActiveQuestions returns the active question pool.
func (s *Store) ActiveQuestions(_ context.Context) ([]*api.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*api.Question
	for _, q := range s.questions {
		if q.Active {
			cp := *q
			out = append(out, &cp)
		}
	}
	return out, nil
}

// CreateRegisterQuestion persists a pending registration challenge.
func (s *Store) CreateRegisterQuestion(_ context.Context, rq *api.RegisterQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rq
	s.regQs = append(s.regQs, &cp)
	return nil
}

// RegisterQuestionByUUID returns an active challenge and its pool
// question.
func (s *Store) RegisterQuestionByUUID(_ context.Context, uuid string) (*api.RegisterQuestion, *api.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rq := range s.regQs {
		if rq.UUID != uuid || !rq.Active {
			continue
		}
		for _, q := range s.questions {
			if q.ID == rq.QuestionID {
				rqc, qc := *rq, *q
				return &rqc, &qc, nil
			}
		}
	}
	return nil, nil, storage.ErrNotFound
}

// LatestRegisterQuestion returns the user's most recent active
// challenge.
func (s *Store) LatestRegisterQuestion(_ context.Context, userID string) (*api.RegisterQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.regQs) - 1; i >= 0; i-- {
		if s.regQs[i].UserID == userID && s.regQs[i].Active {
			cp := *s.regQs[i]
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

// CompleteRegistration retires the challenge and marks its user as
// registered in one critical section.
func (s *Store) CompleteRegistration(_ context.Context, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rq := range s.regQs {
		if rq.UUID != uuid || !rq.Active {
			continue
		}
		u, ok := s.users[rq.UserID]
		if !ok {
			return storage.ErrNotFound
		}
		rq.Active = false
		u.Registered = true
		return nil
	}
	return storage.ErrNotFound
}

// CreateToken persists a token. Returns ErrConflict when the key exists
// or the user already holds one.
func (s *Store) CreateToken(_ context.Context, t *api.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[t.Key]; exists {
		return storage.ErrConflict
	}
	if _, exists := s.userToken[t.UserID]; exists {
		return storage.ErrConflict
	}

	cp := *t
	s.tokens[t.Key] = &cp
	s.userToken[t.UserID] = t.Key
	return nil
}

// TokenByKey returns the token with the given key.
func (s *Store) TokenByKey(_ context.Context, key string) (*api.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// TokenByUser returns the user's token, if issued.
func (s *Store) TokenByUser(_ context.Context, userID string) (*api.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.userToken[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *s.tokens[key]
	return &cp, nil
}

// ReplaceToken atomically swaps the user's token for a new one. Readers
// see either the old or the new key as valid, never both and never a
// torn state.
func (s *Store) ReplaceToken(_ context.Context, userID string, t *api.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.userToken[userID]; ok {
		delete(s.tokens, old)
	}
	cp := *t
	s.tokens[t.Key] = &cp
	s.userToken[userID] = t.Key
	return nil
}

// CreateNote persists a note. Returns ErrConflict when the owner
// already has an active note with the same alias.
func (s *Store) CreateNote(_ context.Context, n *api.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.notes {
		if e.note.OwnerID == n.OwnerID && e.note.Active && e.note.Alias == n.Alias {
			return storage.ErrConflict
		}
	}

	s.seq++
	cp := *n
	s.notes[n.ID] = &noteEntry{note: &cp, seq: s.seq}
	return nil
}

// ListNotes returns the owner's active notes, newest first.
func (s *Store) ListNotes(_ context.Context, ownerID string, limit int) ([]*api.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectNotes(ownerID, "", false, limit), nil
}

// NotesByNotebook returns the owner's active notes in the named
// notebook, newest first.
func (s *Store) NotesByNotebook(_ context.Context, ownerID, notebook string, limit int) ([]*api.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectNotes(ownerID, notebook, true, limit), nil
}

// collectNotes gathers active notes newest-first. Must be called with
// s.mu held.
func (s *Store) collectNotes(ownerID, notebook string, byNotebook bool, limit int) []*api.Note {
	var matches []*noteEntry
	for _, e := range s.notes {
		if e.note.OwnerID != ownerID || !e.note.Active {
			continue
		}
		if byNotebook && e.note.Notebook != notebook {
			continue
		}
		matches = append(matches, e)
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].note.CreatedAt.Equal(matches[j].note.CreatedAt) {
			return matches[i].note.CreatedAt.After(matches[j].note.CreatedAt)
		}
		return matches[i].seq > matches[j].seq
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]*api.Note, len(matches))
	for i, e := range matches {
		cp := *e.note
		out[i] = &cp
	}
	return out
}

// NoteByAlias returns the owner's active note with the given alias.
func (s *Store) NoteByAlias(_ context.Context, ownerID, alias string) (*api.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.notes {
		if e.note.OwnerID == ownerID && e.note.Active && e.note.Alias == alias {
			cp := *e.note
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

// DeleteNote soft-deletes a note. The record stays; it no longer
// appears in listings or lookups.
func (s *Store) DeleteNote(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.notes[id]
	if !ok || !e.note.Active || e.note.OwnerID != ownerID {
		return storage.ErrNotFound
	}
	e.note.Active = false
	return nil
}

// NotebookGetOrCreate returns the owner's notebook with the given name,
// creating it first if needed.
func (s *Store) NotebookGetOrCreate(_ context.Context, ownerID, name string) (*api.Notebook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, nb := range s.notebooks {
		if nb.OwnerID == ownerID && nb.Name == name {
			cp := *nb
			return &cp, nil
		}
	}

	nb := &api.Notebook{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}
	s.notebooks = append(s.notebooks, nb)
	cp := *nb
	return &cp, nil
}

// ListNotebooks returns the owner's notebooks, oldest first.
func (s *Store) ListNotebooks(_ context.Context, ownerID string) ([]*api.Notebook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*api.Notebook
	for _, nb := range s.notebooks {
		if nb.OwnerID == ownerID {
			cp := *nb
			out = append(out, &cp)
		}
	}
	return out, nil
}

// CreateReport appends a client error report.
func (s *Store) CreateReport(_ context.Context, r *api.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	s.reports = append(s.reports, &cp)
	return nil
}

// Reports returns all stored reports. Test helper.
func (s *Store) Reports() []*api.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*api.Report, len(s.reports))
	copy(out, s.reports)
	return out
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
