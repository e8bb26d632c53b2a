package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSchema creates the table used by PostgresStore.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS luxe_access_tokens (
	session_key TEXT PRIMARY KEY,
	token       TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps one access token per client session in PostgreSQL.
type PostgresStore struct {
	pool       *pgxpool.Pool
	sessionKey string
}

// NewPostgresStore creates a store bound to sessionKey.
func NewPostgresStore(pool *pgxpool.Pool, sessionKey string) *PostgresStore {
	return &PostgresStore{pool: pool, sessionKey: sessionKey}
}

// EnsureSchema creates the token table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Get returns the current token for the bound session.
func (s *PostgresStore) Get(ctx context.Context) (string, bool, error) {
	var token string
	err := s.pool.QueryRow(ctx, `
		SELECT token FROM luxe_access_tokens WHERE session_key = $1
	`, s.sessionKey).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return token, token != "", nil
}

// Set upserts the token for the bound session.
func (s *PostgresStore) Set(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO luxe_access_tokens (session_key, token, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_key) DO UPDATE
		SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at
	`, s.sessionKey, token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Clear deletes the row for the bound session.
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		DELETE FROM luxe_access_tokens WHERE session_key = $1
	`, s.sessionKey); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
