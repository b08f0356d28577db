package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/giantswarm/oauth2-core/internal/helpers"
	"github.com/giantswarm/oauth2-core/storage"
)

// SaveToken stores a token record keyed by access token, plus a refresh
// token lookup when the token carries one.
func (s *Store) SaveToken(ctx context.Context, token *storage.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("invalid token")
	}

	data, err := json.Marshal(toTokenJSON(token))
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	cmds := []valkeygo.Completed{s.setCmd(s.tokenKey(token.AccessToken), string(data), token.ExpiresAt())}
	if token.RefreshToken != "" {
		cmds = append(cmds, s.setCmd(s.refreshTokenKey(token.RefreshToken), token.AccessToken, token.RefreshTokenExpiresAt))
	}

	for _, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
	}

	s.logger.Debug("Saved token",
		"client_id", token.ClientID,
		"token_prefix", helpers.SafeTruncate(token.AccessToken, tokenIDLogLength))
	return nil
}

// TokenByAccessToken retrieves a token record by its access token
func (s *Store) TokenByAccessToken(ctx context.Context, accessToken string) (*storage.Token, error) {
	var j tokenJSON
	if err := s.getJSON(ctx, s.tokenKey(accessToken), &j); err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return fromTokenJSON(&j), nil
}

// TokenByRefreshToken retrieves the token record a refresh token belongs to
func (s *Store) TokenByRefreshToken(ctx context.Context, refreshToken string) (*storage.Token, error) {
	accessToken, err := s.client.Do(ctx, s.client.B().Get().Key(s.refreshTokenKey(refreshToken)).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	token, err := s.TokenByAccessToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if token.RefreshToken != refreshToken {
		return nil, storage.ErrNotFound
	}
	return token, nil
}

// DeleteRefreshToken atomically revokes a refresh token. The access token
// it was issued with stays valid until it expires.
func (s *Store) DeleteRefreshToken(ctx context.Context, refreshToken string) (bool, error) {
	n, err := s.client.Do(ctx,
		s.client.B().Eval().Script(luaDeleteRefreshToken).
			Numkeys(1).
			Key(s.refreshTokenKey(refreshToken)).
			Arg(s.tokenKeyPrefix()).
			Arg(strconv.FormatInt(s.now().UnixMilli(), 10)).
			Build(),
	).AsInt64()
	if err != nil {
		return false, fmt.Errorf("failed to delete refresh token: %w", err)
	}

	if n > 0 {
		s.logger.Debug("Revoked refresh token",
			"token_prefix", helpers.SafeTruncate(refreshToken, tokenIDLogLength))
	}
	return n > 0, nil
}
