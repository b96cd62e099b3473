// Package tokens manages opaque bearer tokens: lazy issuance, explicit
// rotation, and key resolution for the token authenticator.
package tokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/storage"
)

// keyBytes is the entropy of a token key: 20 random bytes, rendered as
// 40 lowercase hex characters.
const keyBytes = 20

// Service issues, rotates, and resolves tokens on top of the stores.
// Rotation relies on the store's transactional replace rather than
// in-process locks, since multiple service instances may run at once.
type Service struct {
	tokens storage.TokenStore
	users  storage.UserStore
}

// NewService creates a token service backed by the given stores.
func NewService(tokens storage.TokenStore, users storage.UserStore) *Service {
	return &Service{tokens: tokens, users: users}
}

// Issue returns the user's live token, generating and persisting one on
// first call. Idempotent: two calls without a rotation in between
// return the same key. A concurrent first issue for the same user is
// resolved by re-reading the winner's token.
func (s *Service) Issue(ctx context.Context, userID string) (*api.Token, error) {
	t, err := s.tokens.TokenByUser(ctx, userID)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("looking up token: %w", err)
	}

	t = &api.Token{
		Key:       generateKey(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.tokens.CreateToken(ctx, t); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// Lost the race to a concurrent issue; use the winner's key.
			return s.tokens.TokenByUser(ctx, userID)
		}
		return nil, fmt.Errorf("persisting token: %w", err)
	}
	return t, nil
}

// Rotate invalidates the user's current token and persists a fresh one
// in a single store-level replace. After rotation the old key no longer
// resolves.
func (s *Service) Rotate(ctx context.Context, userID string) (*api.Token, error) {
	t := &api.Token{
		Key:       generateKey(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.tokens.ReplaceToken(ctx, userID, t); err != nil {
		return nil, fmt.Errorf("rotating token: %w", err)
	}
	return t, nil
}

// Resolve maps a token key to its token and owning user. Unknown keys
// return storage.ErrNotFound.
func (s *Service) Resolve(ctx context.Context, key string) (*api.Token, *api.User, error) {
	t, err := s.tokens.TokenByKey(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.users.UserByID(ctx, t.UserID)
	if err != nil {
		return nil, nil, err
	}
	return t, u, nil
}

// generateKey draws a fresh high-entropy key from crypto/rand.
func generateKey() string {
	b := make([]byte, keyBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return hex.EncodeToString(b)
}
