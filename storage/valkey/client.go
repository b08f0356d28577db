package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/giantswarm/oauth2-core/storage"
)

// CreateClient stores a new client. It fails with storage.ErrAlreadyExists
// if the ID is taken.
func (s *Store) CreateClient(ctx context.Context, client *storage.Client) error {
	if client == nil || client.ID == "" {
		return fmt.Errorf("invalid client")
	}
	if err := s.createJSON(ctx, s.clientKey(client.ID), toClientJSON(client)); err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	s.logger.Debug("Saved client", "client_id", client.ID)
	return nil
}

// Client retrieves a client by ID
func (s *Store) Client(ctx context.Context, clientID string) (*storage.Client, error) {
	var j clientJSON
	if err := s.getJSON(ctx, s.clientKey(clientID), &j); err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return fromClientJSON(&j), nil
}

// CreateUser stores a new user keyed by username. It fails with
// storage.ErrAlreadyExists if the username is taken.
func (s *Store) CreateUser(ctx context.Context, user *storage.User) error {
	if user == nil || user.Username == "" {
		return fmt.Errorf("invalid user")
	}
	if err := s.createJSON(ctx, s.userKey(user.Username), toUserJSON(user)); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	s.logger.Debug("Saved user", "user_id", user.ID)
	return nil
}

// UserByUsername retrieves a user by username
func (s *Store) UserByUsername(ctx context.Context, username string) (*storage.User, error) {
	var j userJSON
	if err := s.getJSON(ctx, s.userKey(username), &j); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return fromUserJSON(&j), nil
}

// createJSON stores v under key unless the key exists.
func (s *Store) createJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	err = s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Nx().Build()).Error()
	if isNilError(err) {
		return storage.ErrAlreadyExists
	}
	return err
}

// getJSON loads key into v, mapping a missing key to storage.ErrNotFound.
func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return storage.ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

// setCmd builds a SET that expires at expiresAt as seen by the store clock.
// A zero expiresAt keeps the key forever.
func (s *Store) setCmd(key, value string, expiresAt time.Time) valkeygo.Completed {
	if ttl, ok := storage.TTL(expiresAt, s.now()); ok {
		return s.client.B().Set().Key(key).Value(value).Ex(ttl).Build()
	}
	return s.client.B().Set().Key(key).Value(value).Build()
}

// del removes key and reports whether it existed.
func (s *Store) del(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
