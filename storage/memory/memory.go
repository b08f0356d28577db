package memory

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/giantswarm/oauth2-core/storage"
)

// DefaultCleanupInterval is how often expired records are dropped.
const DefaultCleanupInterval = time.Minute

// Config configures a Store.
type Config struct {
	// CleanupInterval defaults to DefaultCleanupInterval.
	CleanupInterval time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now defaults to time.Now. It decides which records are expired.
	Now func() time.Time
}

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu sync.RWMutex

	clients map[string]*storage.Client
	users   map[string]*storage.User // by username

	tokens        map[string]*storage.Token // by access token
	refreshTokens map[string]string         // refresh token -> access token
	codes         map[string]*storage.AuthorizationCode

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger
	now             func() time.Time
}

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Sizes = (*Store)(nil)
)

// New creates a new in-memory store and starts its cleanup goroutine.
func New(cfg Config) *Store {
	s := &Store{
		clients:         make(map[string]*storage.Client),
		users:           make(map[string]*storage.User),
		tokens:          make(map[string]*storage.Token),
		refreshTokens:   make(map[string]string),
		codes:           make(map[string]*storage.AuthorizationCode),
		cleanupInterval: cfg.CleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          cfg.Logger,
		now:             cfg.Now,
	}
	if s.cleanupInterval <= 0 {
		s.cleanupInterval = DefaultCleanupInterval
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}

	go s.cleanupLoop()

	return s
}

// Name implements storage.Store.
func (s *Store) Name() string {
	return "memory"
}

// Stop gracefully stops the cleanup goroutine
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

// CreateClient stores a client. IDs must be unique.
func (s *Store) CreateClient(_ context.Context, client *storage.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ID]; exists {
		return fmt.Errorf("%w: client %s", storage.ErrAlreadyExists, client.ID)
	}
	s.clients[client.ID] = cloneClient(client)
	return nil
}

// Client retrieves a client by ID
func (s *Store) Client(_ context.Context, clientID string) (*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneClient(client), nil
}

// CreateUser stores a user. Usernames must be unique.
func (s *Store) CreateUser(_ context.Context, user *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return fmt.Errorf("%w: user %s", storage.ErrAlreadyExists, user.Username)
	}
	u := *user
	u.Claims = maps.Clone(user.Claims)
	s.users[user.Username] = &u
	return nil
}

// UserByUsername retrieves a user by username
func (s *Store) UserByUsername(_ context.Context, username string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u := *user
	u.Claims = maps.Clone(user.Claims)
	return &u, nil
}

// SaveToken stores a token record and indexes its refresh token.
func (s *Store) SaveToken(_ context.Context, token *storage.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := *token
	s.tokens[t.AccessToken] = &t
	if t.RefreshToken != "" {
		s.refreshTokens[t.RefreshToken] = t.AccessToken
	}
	return nil
}

// TokenByAccessToken retrieves a token record by its access token.
func (s *Store) TokenByAccessToken(_ context.Context, accessToken string) (*storage.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[accessToken]
	if !ok {
		return nil, storage.ErrNotFound
	}
	t := *token
	return &t, nil
}

// TokenByRefreshToken retrieves a token record by its refresh token.
func (s *Store) TokenByRefreshToken(_ context.Context, refreshToken string) (*storage.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accessToken, ok := s.refreshTokens[refreshToken]
	if !ok {
		return nil, storage.ErrNotFound
	}
	token, ok := s.tokens[accessToken]
	if !ok {
		return nil, storage.ErrNotFound
	}
	t := *token
	return &t, nil
}

// DeleteRefreshToken removes a refresh token. The access token it was
// issued with is kept.
func (s *Store) DeleteRefreshToken(_ context.Context, refreshToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accessToken, ok := s.refreshTokens[refreshToken]
	if !ok {
		return false, nil
	}
	delete(s.refreshTokens, refreshToken)

	if token, ok := s.tokens[accessToken]; ok {
		t := *token
		t.RefreshToken = ""
		t.RefreshTokenExpiresAt = time.Time{}
		s.tokens[accessToken] = &t
	}
	return true, nil
}

// SaveAuthorizationCode saves an issued authorization code
func (s *Store) SaveAuthorizationCode(_ context.Context, code *storage.AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *code
	s.codes[c.Code] = &c
	return nil
}

// AuthorizationCode retrieves an authorization code
func (s *Store) AuthorizationCode(_ context.Context, code string) (*storage.AuthorizationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	authCode, ok := s.codes[code]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *authCode
	return &c, nil
}

// DeleteAuthorizationCode removes an authorization code
func (s *Store) DeleteAuthorizationCode(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.codes[code]; !ok {
		return false, nil
	}
	delete(s.codes, code)
	return true, nil
}

// CountAccessTokens implements storage.Sizes.
func (s *Store) CountAccessTokens() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.tokens))
}

// CountRefreshTokens implements storage.Sizes.
func (s *Store) CountRefreshTokens() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.refreshTokens))
}

// CountAuthorizationCodes implements storage.Sizes.
func (s *Store) CountAuthorizationCodes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.codes))
}

// CountClients implements storage.Sizes.
func (s *Store) CountClients() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.clients))
}

// CountUsers implements storage.Sizes.
func (s *Store) CountUsers() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users))
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

// Cleanup drops expired tokens and authorization codes and returns how many
// records were removed. It runs periodically until Stop is called.
func (s *Store) Cleanup() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	for accessToken, token := range s.tokens {
		expiresAt := token.ExpiresAt()
		if expiresAt.IsZero() || expiresAt.After(now) {
			continue
		}
		if token.RefreshToken != "" {
			delete(s.refreshTokens, token.RefreshToken)
		}
		delete(s.tokens, accessToken)
		cleaned++
	}

	for code, authCode := range s.codes {
		if !authCode.ExpiresAt.IsZero() && !authCode.ExpiresAt.After(now) {
			delete(s.codes, code)
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.Debug("Cleaned up expired records", "count", cleaned)
	}
	return cleaned
}

func cloneClient(c *storage.Client) *storage.Client {
	out := *c
	out.Grants = slices.Clone(c.Grants)
	out.RedirectURIs = slices.Clone(c.RedirectURIs)
	return &out
}
