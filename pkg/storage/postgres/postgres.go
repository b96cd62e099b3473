// Package postgres provides a PostgreSQL implementation of storage.Store.
// It uses pgx/v5 for connection pooling and relies on unique constraints
// for username and alias uniqueness.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/storage"
)

// Store is a PostgreSQL-backed storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// CreateUser persists a new account. A duplicate username maps to
// storage.ErrConflict via the unique constraint.
func (s *Store) CreateUser(ctx context.Context, u *api.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, password, active, registered, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Username, u.Password, u.Active, u.Registered, u.CreatedAt)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// UserByUsername retrieves an account by username.
func (s *Store) UserByUsername(ctx context.Context, username string) (*api.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, username, password, active, registered, created_at
		FROM users WHERE username = $1
	`, username))
}

// UserByID retrieves an account by ID.
func (s *Store) UserByID(ctx context.Context, id string) (*api.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, username, password, active, registered, created_at
		FROM users WHERE id = $1
	`, id))
}

func (s *Store) scanUser(row pgx.Row) (*api.User, error) {
	var u api.User
	err := row.Scan(&u.ID, &u.Username, &u.Password, &u.Active, &u.Registered, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

// SetUserActive flips the account's active flag.
func (s *Store) SetUserActive(ctx context.Context, id string, active bool) error {
	result, err := s.pool.Exec(ctx,
		"UPDATE users SET active = $1 WHERE id = $2", active, id)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CreateToken persists a token. The unique constraints on key and
// user_id keep one token per user.
func (s *Store) CreateToken(ctx context.Context, t *api.Token) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (key, user_id, created_at)
		VALUES ($1, $2, $3)
	`, t.Key, t.UserID, t.CreatedAt)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting token: %w", err)
	}
	return nil
}

// TokenByKey retrieves a token by its key.
func (s *Store) TokenByKey(ctx context.Context, key string) (*api.Token, error) {
	return s.scanToken(s.pool.QueryRow(ctx, `
		SELECT key, user_id, created_at FROM tokens WHERE key = $1
	`, key))
}

// TokenByUser retrieves the user's token, if issued.
func (s *Store) TokenByUser(ctx context.Context, userID string) (*api.Token, error) {
	return s.scanToken(s.pool.QueryRow(ctx, `
		SELECT key, user_id, created_at FROM tokens WHERE user_id = $1
	`, userID))
}

func (s *Store) scanToken(row pgx.Row) (*api.Token, error) {
	var t api.Token
	err := row.Scan(&t.Key, &t.UserID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying token: %w", err)
	}
	return &t, nil
}

// ReplaceToken swaps the user's token for a new one in a single
// transaction, so concurrent lookups see the old key or the new one
// but never neither.
func (s *Store) ReplaceToken(ctx context.Context, userID string, t *api.Token) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM tokens WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("removing old token: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO tokens (key, user_id, created_at)
		VALUES ($1, $2, $3)
	`, t.Key, t.UserID, t.CreatedAt); err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting new token: %w", err)
	}

	return tx.Commit(ctx)
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && contains(err.Error(), "23505")
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchString(s, substr)
}

func searchString(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
