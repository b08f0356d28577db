// Package mock provides a function-field implementation of service.Service
// for tests. Every method counts its calls and delegates to a Func field;
// NewMockService installs map-backed defaults.
package mock

import (
	"context"
	"sync"

	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/service"
)

var _ service.Service = (*MockService)(nil)

// MockService is a mock implementation of service.Service
type MockService struct {
	GetClientFunc                 func(ctx context.Context, clientID, clientSecret string) (*model.Client, error)
	GetClientByIDFunc             func(ctx context.Context, clientID string) (*model.Client, error)
	GetUserFromClientFunc         func(ctx context.Context, client *model.Client) (*model.User, error)
	GetUserFunc                   func(ctx context.Context, username, password string) (*model.User, error)
	GetAccessTokenFunc            func(ctx context.Context, accessToken string) (*model.Token, error)
	GetRefreshTokenFunc           func(ctx context.Context, refreshToken string) (*model.RefreshToken, error)
	GetAuthorizationCodeFunc      func(ctx context.Context, code string) (*model.AuthorizationCode, error)
	SaveTokenFunc                 func(ctx context.Context, token *model.Token, client *model.Client, user *model.User) (*model.Token, error)
	SaveAuthorizationCodeFunc     func(ctx context.Context, code *model.AuthorizationCode, client *model.Client, user *model.User) (*model.AuthorizationCode, error)
	RevokeTokenFunc               func(ctx context.Context, token *model.RefreshToken) (bool, error)
	RevokeAuthorizationCodeFunc   func(ctx context.Context, code *model.AuthorizationCode) (bool, error)
	VerifyScopeFunc               func(ctx context.Context, token *model.Token, scope string) (bool, error)
	ValidateScopeFunc             func(ctx context.Context, user *model.User, client *model.Client, scope string) (string, bool, error)
	ExchangeAccessTokenByCodeFunc func(ctx context.Context, provider, code, state string) (*oauth2.Token, error)
	GetUserByAccessTokenFunc      func(ctx context.Context, provider string, token *oauth2.Token) (*model.User, error)

	// Backing maps used by the default funcs. Tests may seed them directly
	// before the first call.
	Clients       map[string]*model.Client
	Users         map[string]*model.User // keyed by username
	Passwords     map[string]string      // username -> password
	AccessTokens  map[string]*model.Token
	RefreshTokens map[string]*model.RefreshToken
	Codes         map[string]*model.AuthorizationCode

	callCounts map[string]int
	mu         sync.Mutex
}

// NewMockService creates a mock whose defaults behave like a tiny in-memory
// store: lookups consult the maps, saves write to them, revocations delete
// and report whether something was deleted, scope hooks accept everything.
func NewMockService() *MockService {
	m := &MockService{
		Clients:       make(map[string]*model.Client),
		Users:         make(map[string]*model.User),
		Passwords:     make(map[string]string),
		AccessTokens:  make(map[string]*model.Token),
		RefreshTokens: make(map[string]*model.RefreshToken),
		Codes:         make(map[string]*model.AuthorizationCode),
		callCounts:    make(map[string]int),
	}

	m.GetClientFunc = func(_ context.Context, clientID, clientSecret string) (*model.Client, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		c, ok := m.Clients[clientID]
		if !ok || (clientSecret != "" && c.Secret != clientSecret) {
			return nil, nil
		}
		return c, nil
	}
	m.GetClientByIDFunc = func(_ context.Context, clientID string) (*model.Client, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.Clients[clientID], nil
	}
	m.GetUserFromClientFunc = func(_ context.Context, client *model.Client) (*model.User, error) {
		return &model.User{ID: "client:" + client.ID}, nil
	}
	m.GetUserFunc = func(_ context.Context, username, password string) (*model.User, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if pw, ok := m.Passwords[username]; !ok || pw != password {
			return nil, nil
		}
		return m.Users[username], nil
	}
	m.GetAccessTokenFunc = func(_ context.Context, accessToken string) (*model.Token, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.AccessTokens[accessToken], nil
	}
	m.GetRefreshTokenFunc = func(_ context.Context, refreshToken string) (*model.RefreshToken, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.RefreshTokens[refreshToken], nil
	}
	m.GetAuthorizationCodeFunc = func(_ context.Context, code string) (*model.AuthorizationCode, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.Codes[code], nil
	}
	m.SaveTokenFunc = func(_ context.Context, token *model.Token, client *model.Client, user *model.User) (*model.Token, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		saved := *token
		saved.Client = client
		saved.User = user
		m.AccessTokens[saved.AccessToken] = &saved
		if saved.RefreshToken != "" {
			m.RefreshTokens[saved.RefreshToken] = &model.RefreshToken{
				RefreshToken: saved.RefreshToken,
				ExpiresAt:    saved.RefreshTokenExpiresAt,
				Scope:        saved.Scope,
				Client:       client,
				User:         user,
			}
		}
		return &saved, nil
	}
	m.SaveAuthorizationCodeFunc = func(_ context.Context, code *model.AuthorizationCode, client *model.Client, user *model.User) (*model.AuthorizationCode, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		saved := *code
		saved.Client = client
		saved.User = user
		m.Codes[saved.Code] = &saved
		return &saved, nil
	}
	m.RevokeTokenFunc = func(_ context.Context, token *model.RefreshToken) (bool, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.RefreshTokens[token.RefreshToken]; !ok {
			return false, nil
		}
		delete(m.RefreshTokens, token.RefreshToken)
		return true, nil
	}
	m.RevokeAuthorizationCodeFunc = func(_ context.Context, code *model.AuthorizationCode) (bool, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.Codes[code.Code]; !ok {
			return false, nil
		}
		delete(m.Codes, code.Code)
		return true, nil
	}
	m.VerifyScopeFunc = func(_ context.Context, token *model.Token, scope string) (bool, error) {
		return token.Scope == scope, nil
	}
	m.ValidateScopeFunc = func(_ context.Context, _ *model.User, _ *model.Client, scope string) (string, bool, error) {
		return scope, true, nil
	}
	m.ExchangeAccessTokenByCodeFunc = func(_ context.Context, provider, code, _ string) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: provider + ":" + code, TokenType: "Bearer"}, nil
	}
	m.GetUserByAccessTokenFunc = func(_ context.Context, provider string, _ *oauth2.Token) (*model.User, error) {
		return &model.User{ID: provider + "|user"}, nil
	}

	return m
}

// AddClient registers a client with the default lookups.
func (m *MockService) AddClient(c *model.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Clients[c.ID] = c
}

// AddUser registers resource owner credentials with the default lookups.
func (m *MockService) AddUser(u *model.User, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users[u.Username] = u
	m.Passwords[u.Username] = password
}

// CallCount returns how many times the named method was called.
func (m *MockService) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCounts[method]
}

func (m *MockService) record(method string) {
	m.mu.Lock()
	m.callCounts[method]++
	m.mu.Unlock()
}

func (m *MockService) GetClient(ctx context.Context, clientID, clientSecret string) (*model.Client, error) {
	m.record("GetClient")
	return m.GetClientFunc(ctx, clientID, clientSecret)
}

func (m *MockService) GetClientByID(ctx context.Context, clientID string) (*model.Client, error) {
	m.record("GetClientByID")
	return m.GetClientByIDFunc(ctx, clientID)
}

func (m *MockService) GetUserFromClient(ctx context.Context, client *model.Client) (*model.User, error) {
	m.record("GetUserFromClient")
	return m.GetUserFromClientFunc(ctx, client)
}

func (m *MockService) GetUser(ctx context.Context, username, password string) (*model.User, error) {
	m.record("GetUser")
	return m.GetUserFunc(ctx, username, password)
}

func (m *MockService) GetAccessToken(ctx context.Context, accessToken string) (*model.Token, error) {
	m.record("GetAccessToken")
	return m.GetAccessTokenFunc(ctx, accessToken)
}

func (m *MockService) GetRefreshToken(ctx context.Context, refreshToken string) (*model.RefreshToken, error) {
	m.record("GetRefreshToken")
	return m.GetRefreshTokenFunc(ctx, refreshToken)
}

func (m *MockService) GetAuthorizationCode(ctx context.Context, code string) (*model.AuthorizationCode, error) {
	m.record("GetAuthorizationCode")
	return m.GetAuthorizationCodeFunc(ctx, code)
}

func (m *MockService) SaveToken(ctx context.Context, token *model.Token, client *model.Client, user *model.User) (*model.Token, error) {
	m.record("SaveToken")
	return m.SaveTokenFunc(ctx, token, client, user)
}

func (m *MockService) SaveAuthorizationCode(ctx context.Context, code *model.AuthorizationCode, client *model.Client, user *model.User) (*model.AuthorizationCode, error) {
	m.record("SaveAuthorizationCode")
	return m.SaveAuthorizationCodeFunc(ctx, code, client, user)
}

func (m *MockService) RevokeToken(ctx context.Context, token *model.RefreshToken) (bool, error) {
	m.record("RevokeToken")
	return m.RevokeTokenFunc(ctx, token)
}

func (m *MockService) RevokeAuthorizationCode(ctx context.Context, code *model.AuthorizationCode) (bool, error) {
	m.record("RevokeAuthorizationCode")
	return m.RevokeAuthorizationCodeFunc(ctx, code)
}

func (m *MockService) VerifyScope(ctx context.Context, token *model.Token, scope string) (bool, error) {
	m.record("VerifyScope")
	return m.VerifyScopeFunc(ctx, token, scope)
}

func (m *MockService) ValidateScope(ctx context.Context, user *model.User, client *model.Client, scope string) (string, bool, error) {
	m.record("ValidateScope")
	return m.ValidateScopeFunc(ctx, user, client, scope)
}

func (m *MockService) ExchangeAccessTokenByCode(ctx context.Context, provider, code, state string) (*oauth2.Token, error) {
	m.record("ExchangeAccessTokenByCode")
	return m.ExchangeAccessTokenByCodeFunc(ctx, provider, code, state)
}

func (m *MockService) GetUserByAccessToken(ctx context.Context, provider string, token *oauth2.Token) (*model.User, error) {
	m.record("GetUserByAccessToken")
	return m.GetUserByAccessTokenFunc(ctx, provider, token)
}
