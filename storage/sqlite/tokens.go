package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/giantswarm/oauth2-core/storage"
)

const tokenColumns = `access_token, access_token_expires_at, refresh_token, refresh_token_expires_at,
	authorization_code, scope, client_id, user_id, username, created_at`

// SaveToken implements storage.Store. Saving an access token again replaces
// the earlier record.
func (s *Store) SaveToken(ctx context.Context, t *storage.Token) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO tokens (`+tokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.AccessToken,
		mapTimeNull(t.AccessTokenExpiresAt),
		mapStringNull(t.RefreshToken),
		mapTimeNull(t.RefreshTokenExpiresAt),
		t.AuthorizationCode,
		t.Scope,
		t.ClientID,
		t.UserID,
		t.Username,
		mapTimeNull(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// TokenByAccessToken implements storage.Store.
func (s *Store) TokenByAccessToken(ctx context.Context, accessToken string) (*storage.Token, error) {
	return s.scanToken(s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE access_token = ?`, accessToken))
}

// TokenByRefreshToken implements storage.Store.
func (s *Store) TokenByRefreshToken(ctx context.Context, refreshToken string) (*storage.Token, error) {
	return s.scanToken(s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE refresh_token = ?`, refreshToken))
}

// DeleteRefreshToken implements storage.Store. The access token stays valid.
func (s *Store) DeleteRefreshToken(ctx context.Context, refreshToken string) (bool, error) {
	ok, err := deleted(s.db.ExecContext(ctx, `
		UPDATE tokens SET refresh_token = NULL, refresh_token_expires_at = NULL
		WHERE refresh_token = ?`, refreshToken))
	if err != nil {
		return false, fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return ok, nil
}

func (s *Store) scanToken(row *sql.Row) (*storage.Token, error) {
	var (
		t                                 storage.Token
		accessExpiresAt, refreshExpiresAt sql.NullInt64
		createdAt                         sql.NullInt64
		refreshToken                      sql.NullString
	)
	err := row.Scan(&t.AccessToken, &accessExpiresAt, &refreshToken, &refreshExpiresAt,
		&t.AuthorizationCode, &t.Scope, &t.ClientID, &t.UserID, &t.Username, &createdAt)
	if err != nil {
		return nil, mapNotFound(err)
	}

	t.AccessTokenExpiresAt = mapNullTime(accessExpiresAt)
	t.RefreshToken = mapNullString(refreshToken)
	t.RefreshTokenExpiresAt = mapNullTime(refreshExpiresAt)
	t.CreatedAt = mapNullTime(createdAt)
	return &t, nil
}
