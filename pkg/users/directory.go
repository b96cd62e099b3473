// Package users implements the user directory: username resolution,
// password verification, and provisioning of new accounts.
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/auth/password"
	"github.com/jotsrv/jot/pkg/storage"
)

// Directory resolves and provisions user accounts on top of a UserStore.
// Passwords are stored as argon2id hashes and verified in constant time.
type Directory struct {
	store storage.UserStore
}

// NewDirectory creates a directory backed by the given store.
func NewDirectory(store storage.UserStore) *Directory {
	return &Directory{store: store}
}

// FindByUsername returns the user with the given username, or
// storage.ErrNotFound.
func (d *Directory) FindByUsername(ctx context.Context, username string) (*api.User, error) {
	return d.store.UserByUsername(ctx, username)
}

// VerifyPassword checks a plaintext password against the user's stored
// hash. Plaintext is never compared directly and never persisted.
func (d *Directory) VerifyPassword(u *api.User, plaintext string) bool {
	return password.Verify(plaintext, u.Password) == nil
}

// Provision creates a new active user with a hashed password as a
// single atomic insert. A concurrent create of the same username
// surfaces as storage.ErrConflict, not a crash.
func (d *Directory) Provision(ctx context.Context, username, plaintext string) (*api.User, error) {
	hash, err := password.Hash(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &api.User{
		ID:        uuid.NewString(),
		Username:  username,
		Password:  hash,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	if err := d.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("creating user %q: %w", username, err)
	}
	return u, nil
}

// Deactivate soft-deactivates an account. The record stays; the auth
// layer rejects it from then on.
func (d *Directory) Deactivate(ctx context.Context, id string) error {
	return d.store.SetUserActive(ctx, id, false)
}
