// Package mock provides a func-field implementation of providers.Provider
// for tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth2-core/providers"
)

// MockProvider is a mock implementation of the Provider interface for testing
type MockProvider struct {
	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// AuthorizationURLFunc is called when AuthorizationURL() is invoked
	AuthorizationURLFunc func(state string) string

	// ExchangeCodeFunc is called when ExchangeCode() is invoked
	ExchangeCodeFunc func(ctx context.Context, code string) (*oauth2.Token, error)

	// UserInfoFunc is called when UserInfo() is invoked
	UserInfoFunc func(ctx context.Context, token *oauth2.Token) (*providers.UserInfo, error)

	// callCounts tracks how many times each method was called
	callCounts map[string]int
	mu         sync.RWMutex
}

var _ providers.Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock provider with default implementations.
// Codes exchange to "mock-access:<code>" and every token resolves to user
// "mock-user-123".
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProviderName: name,
		callCounts:   make(map[string]int),
		AuthorizationURLFunc: func(state string) string {
			return "https://mock.example.com/authorize?state=" + state
		},
		ExchangeCodeFunc: func(_ context.Context, code string) (*oauth2.Token, error) {
			return &oauth2.Token{
				AccessToken: "mock-access:" + code,
				TokenType:   "Bearer",
			}, nil
		},
		UserInfoFunc: func(_ context.Context, _ *oauth2.Token) (*providers.UserInfo, error) {
			return &providers.UserInfo{
				ID:            "mock-user-123",
				Email:         "mock@example.com",
				EmailVerified: true,
				Name:          "Mock User",
			}, nil
		},
	}
}

// Name returns the provider name
func (m *MockProvider) Name() string {
	m.record("Name")
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// AuthorizationURL generates the URL to redirect users for authentication
func (m *MockProvider) AuthorizationURL(state string) string {
	m.record("AuthorizationURL")
	m.mu.RLock()
	fn := m.AuthorizationURLFunc
	m.mu.RUnlock()
	if fn == nil {
		return "https://mock.example.com/authorize?state=" + state
	}
	return fn(state)
}

// ExchangeCode exchanges an authorization code for tokens
func (m *MockProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	// Release the lock before calling the user function; it may call back
	// into the mock.
	m.record("ExchangeCode")
	m.mu.RLock()
	fn := m.ExchangeCodeFunc
	m.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("ExchangeCodeFunc not configured")
	}
	return fn(ctx, code)
}

// UserInfo resolves the identity behind token
func (m *MockProvider) UserInfo(ctx context.Context, token *oauth2.Token) (*providers.UserInfo, error) {
	m.record("UserInfo")
	m.mu.RLock()
	fn := m.UserInfoFunc
	m.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("UserInfoFunc not configured")
	}
	return fn(ctx, token)
}

func (m *MockProvider) record(method string) {
	m.mu.Lock()
	if m.callCounts == nil {
		m.callCounts = make(map[string]int)
	}
	m.callCounts[method]++
	m.mu.Unlock()
}

// ResetCallCounts resets all call counters
func (m *MockProvider) ResetCallCounts() {
	m.mu.Lock()
	m.callCounts = make(map[string]int)
	m.mu.Unlock()
}

// GetCallCount returns the number of times a method was called
func (m *MockProvider) GetCallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCounts[method]
}
