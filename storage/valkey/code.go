package valkey

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/giantswarm/oauth2-core/internal/helpers"
	"github.com/giantswarm/oauth2-core/storage"
)

// SaveAuthorizationCode stores an authorization code until it expires
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	if code == nil || code.Code == "" {
		return fmt.Errorf("invalid authorization code")
	}

	data, err := json.Marshal(toAuthorizationCodeJSON(code))
	if err != nil {
		return fmt.Errorf("failed to marshal authorization code: %w", err)
	}

	if err := s.client.Do(ctx, s.setCmd(s.codeKey(code.Code), string(data), code.ExpiresAt)).Error(); err != nil {
		return fmt.Errorf("failed to save authorization code: %w", err)
	}

	s.logger.Debug("Saved authorization code",
		"client_id", code.ClientID,
		"code_prefix", helpers.SafeTruncate(code.Code, tokenIDLogLength))
	return nil
}

// AuthorizationCode retrieves an authorization code
func (s *Store) AuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	var j authorizationCodeJSON
	if err := s.getJSON(ctx, s.codeKey(code), &j); err != nil {
		return nil, fmt.Errorf("failed to get authorization code: %w", err)
	}
	return fromAuthorizationCodeJSON(&j), nil
}

// DeleteAuthorizationCode removes an authorization code. Only one caller
// sees true for a given code.
func (s *Store) DeleteAuthorizationCode(ctx context.Context, code string) (bool, error) {
	deleted, err := s.del(ctx, s.codeKey(code))
	if err != nil {
		return false, fmt.Errorf("failed to delete authorization code: %w", err)
	}
	return deleted, nil
}
