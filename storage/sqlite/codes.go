package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/giantswarm/oauth2-core/storage"
)

// SaveAuthorizationCode implements storage.Store.
func (s *Store) SaveAuthorizationCode(ctx context.Context, c *storage.AuthorizationCode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO authorization_codes
			(code, expires_at, redirect_uri, scope, client_id, user_id, username, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Code,
		mapTimeNull(c.ExpiresAt),
		c.RedirectURI,
		c.Scope,
		c.ClientID,
		c.UserID,
		c.Username,
		mapTimeNull(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save authorization code: %w", err)
	}
	return nil
}

// AuthorizationCode implements storage.Store.
func (s *Store) AuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	var (
		c                    storage.AuthorizationCode
		expiresAt, createdAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT code, expires_at, redirect_uri, scope, client_id, user_id, username, created_at
		FROM authorization_codes WHERE code = ?`, code,
	).Scan(&c.Code, &expiresAt, &c.RedirectURI, &c.Scope, &c.ClientID, &c.UserID, &c.Username, &createdAt)
	if err != nil {
		return nil, mapNotFound(err)
	}

	c.ExpiresAt = mapNullTime(expiresAt)
	c.CreatedAt = mapNullTime(createdAt)
	return &c, nil
}

// DeleteAuthorizationCode implements storage.Store.
func (s *Store) DeleteAuthorizationCode(ctx context.Context, code string) (bool, error) {
	ok, err := deleted(s.db.ExecContext(ctx, `DELETE FROM authorization_codes WHERE code = ?`, code))
	if err != nil {
		return false, fmt.Errorf("failed to delete authorization code: %w", err)
	}
	return ok, nil
}
