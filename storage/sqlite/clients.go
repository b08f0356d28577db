package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/giantswarm/oauth2-core/storage"
)

// CreateClient implements storage.Store.
func (s *Store) CreateClient(ctx context.Context, c *storage.Client) error {
	err := insertedOrExists(s.db.ExecContext(ctx, `
		INSERT INTO clients (id, secret_hash, grants, redirect_uris, scope,
		                     access_token_lifetime, refresh_token_lifetime, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		c.ID,
		mapStringNull(c.SecretHash),
		strings.Join(c.Grants, " "),
		strings.Join(c.RedirectURIs, " "),
		c.Scope,
		int64(c.AccessTokenLifetime),
		int64(c.RefreshTokenLifetime),
		c.CreatedAt.UnixMilli(),
	))
	if err != nil {
		return fmt.Errorf("failed to save client %s: %w", c.ID, err)
	}
	return nil
}

// Client implements storage.Store.
func (s *Store) Client(ctx context.Context, clientID string) (*storage.Client, error) {
	var (
		c                    storage.Client
		secretHash           sql.NullString
		grants, redirectURIs string
		accessLifetime       int64
		refreshLifetime      int64
		createdAt            int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, secret_hash, grants, redirect_uris, scope,
		       access_token_lifetime, refresh_token_lifetime, created_at
		FROM clients WHERE id = ?`, clientID,
	).Scan(&c.ID, &secretHash, &grants, &redirectURIs, &c.Scope,
		&accessLifetime, &refreshLifetime, &createdAt)
	if err != nil {
		return nil, mapNotFound(err)
	}

	c.SecretHash = mapNullString(secretHash)
	c.Grants = splitFields(grants)
	c.RedirectURIs = splitFields(redirectURIs)
	c.AccessTokenLifetime = time.Duration(accessLifetime)
	c.RefreshTokenLifetime = time.Duration(refreshLifetime)
	c.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &c, nil
}

// CreateUser implements storage.Store.
func (s *Store) CreateUser(ctx context.Context, u *storage.User) error {
	claims := []byte("{}")
	if len(u.Claims) > 0 {
		var err error
		if claims, err = json.Marshal(u.Claims); err != nil {
			return fmt.Errorf("failed to marshal claims: %w", err)
		}
	}

	err := insertedOrExists(s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, claims, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		u.ID, u.Username, u.PasswordHash, string(claims), u.CreatedAt.UnixMilli(),
	))
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", u.Username, err)
	}
	return nil
}

// UserByUsername implements storage.Store.
func (s *Store) UserByUsername(ctx context.Context, username string) (*storage.User, error) {
	var (
		u         storage.User
		claims    string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, claims, created_at
		FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &claims, &createdAt)
	if err != nil {
		return nil, mapNotFound(err)
	}

	if claims != "" && claims != "{}" {
		if err := json.Unmarshal([]byte(claims), &u.Claims); err != nil {
			return nil, fmt.Errorf("failed to unmarshal claims: %w", err)
		}
	}
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &u, nil
}
