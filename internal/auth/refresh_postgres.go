package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRefreshStore backs refresh tokens with the refresh_tokens
// table, so rotation and revocation survive restarts.
type PostgresRefreshStore struct {
	db *sql.DB
}

// NewPostgresRefreshStore creates a store over an open connection.
func NewPostgresRefreshStore(db *sql.DB) *PostgresRefreshStore {
	return &PostgresRefreshStore{db: db}
}

// Save stores a refresh token for rotation checks.
func (s *PostgresRefreshStore) Save(ctx context.Context, subject, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, subject, expires_at)
		VALUES ($1, $2, $3)
	`, token, subject, expiresAt)
	return err
}

// Lookup returns the stored token, or nil when unknown.
func (s *PostgresRefreshStore) Lookup(ctx context.Context, token string) (*RefreshToken, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, subject, expires_at, revoked
		FROM refresh_tokens
		WHERE token = $1
	`, token)
	var t RefreshToken
	if err := row.Scan(&t.Token, &t.Subject, &t.ExpiresAt, &t.Revoked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// Revoke marks a token revoked.
func (s *PostgresRefreshStore) Revoke(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}
