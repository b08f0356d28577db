package testutil

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/giantswarm/oauth2-core/model"
)

// MockTime provides a controllable time source for deterministic testing
type MockTime struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set sets the mock time to a specific value
func (m *MockTime) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Epoch is the fixed instant most tests start from.
var Epoch = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

// Test fixture identifiers.
const (
	TestClientID     = "test-client"
	TestClientSecret = "test-secret"
	TestRedirectURI  = "https://client.example.com/callback"
	TestUserID       = "user-123"
	TestUsername     = "alice"
	TestPassword     = "correct horse battery staple"
)

// GenerateTestClient returns a confidential client allowed to use every
// built-in grant type.
func GenerateTestClient() *model.Client {
	return &model.Client{
		ID:           TestClientID,
		Secret:       TestClientSecret,
		Grants:       []string{"authorization_code", "client_credentials", "password", "refresh_token", "proxy"},
		RedirectURIs: []string{TestRedirectURI},
		Scope:        "read write",
	}
}

// GenerateTestUser returns the fixture user.
func GenerateTestUser() *model.User {
	return &model.User{ID: TestUserID, Username: TestUsername}
}

// FormPost builds the parameter view of a form-encoded POST.
func FormPost(body url.Values) *model.Params {
	return FormPostWithHeader(nil, body)
}

// FormPostWithHeader is FormPost with extra request headers.
func FormPostWithHeader(header http.Header, body url.Values) *model.Params {
	h := http.Header{"Content-Type": {model.FormContentType}}
	for k, v := range header {
		h[http.CanonicalHeaderKey(k)] = v
	}
	return model.NewParams(http.MethodPost, h, nil, body)
}

// Get builds the parameter view of a GET request.
func Get(header http.Header, query url.Values) *model.Params {
	return model.NewParams(http.MethodGet, header, query, nil)
}
