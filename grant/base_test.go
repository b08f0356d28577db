package grant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/giantswarm/oauth2-core/internal/testutil"
	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
	"github.com/giantswarm/oauth2-core/storage/mock"
)

// generatingService adds token generators to the mock service.
type generatingService struct {
	*mock.MockService
	access  string
	refresh string
	err     error
}

func (s *generatingService) GenerateAccessToken(context.Context, *model.Client, *model.User, string) (string, error) {
	return s.access, s.err
}

func (s *generatingService) GenerateRefreshToken(context.Context, *model.Client, *model.User, string) (string, error) {
	return s.refresh, s.err
}

func newTestOptions(svc *mock.MockService, clock *testutil.MockTime) Options {
	return Options{
		AccessTokenLifetime:  time.Hour,
		RefreshTokenLifetime: 14 * 24 * time.Hour,
		Service:              svc,
		Now:                  clock.Now,
	}
}

func TestNewBase_RequiredOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{
			name: "missing access token lifetime",
			opts: Options{Service: mock.NewMockService()},
			want: "Missing parameter: `accessTokenLifetime`",
		},
		{
			name: "missing service",
			opts: Options{AccessTokenLifetime: time.Hour},
			want: "Missing parameter: `service`",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBase(tt.opts)
			oe, ok := oautherr.As(err)
			if !ok {
				t.Fatalf("NewBase() error = %v, want taxonomy error", err)
			}
			if oe.Kind != oautherr.KindInvalidArgument {
				t.Errorf("Kind = %v, want %v", oe.Kind, oautherr.KindInvalidArgument)
			}
			if oe.Description != tt.want {
				t.Errorf("Description = %q, want %q", oe.Description, tt.want)
			}
		})
	}
}

func TestBase_GenerateTokens(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewMockTime(testutil.Epoch)

	t.Run("random token without generator", func(t *testing.T) {
		b, err := NewBase(newTestOptions(mock.NewMockService(), clock))
		if err != nil {
			t.Fatal(err)
		}
		token, err := b.GenerateAccessToken(ctx, nil, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(token) != 64 {
			t.Errorf("len(token) = %d, want 64", len(token))
		}
	})

	t.Run("service generator wins", func(t *testing.T) {
		svc := &generatingService{MockService: mock.NewMockService(), access: "custom-access", refresh: "custom-refresh"}
		b, err := NewBase(Options{AccessTokenLifetime: time.Hour, Service: svc})
		if err != nil {
			t.Fatal(err)
		}
		access, _ := b.GenerateAccessToken(ctx, nil, nil, "")
		refresh, _ := b.GenerateRefreshToken(ctx, nil, nil, "")
		if access != "custom-access" {
			t.Errorf("GenerateAccessToken() = %q, want %q", access, "custom-access")
		}
		if refresh != "custom-refresh" {
			t.Errorf("GenerateRefreshToken() = %q, want %q", refresh, "custom-refresh")
		}
	})

	t.Run("empty generator result falls back", func(t *testing.T) {
		svc := &generatingService{MockService: mock.NewMockService()}
		b, _ := NewBase(Options{AccessTokenLifetime: time.Hour, Service: svc})
		token, err := b.GenerateRefreshToken(ctx, nil, nil, "")
		if err != nil {
			t.Fatal(err)
		}
		if token == "" {
			t.Error("GenerateRefreshToken() returned empty token")
		}
	})

	t.Run("generator error propagates", func(t *testing.T) {
		boom := errors.New("boom")
		svc := &generatingService{MockService: mock.NewMockService(), err: boom}
		b, _ := NewBase(Options{AccessTokenLifetime: time.Hour, Service: svc})
		if _, err := b.GenerateAccessToken(ctx, nil, nil, ""); !errors.Is(err, boom) {
			t.Errorf("GenerateAccessToken() error = %v, want %v", err, boom)
		}
	})
}

func TestBase_ExpiresAt(t *testing.T) {
	clock := testutil.NewMockTime(testutil.Epoch)
	svc := mock.NewMockService()

	b, _ := NewBase(newTestOptions(svc, clock))
	if got, want := b.AccessTokenExpiresAt(), testutil.Epoch.Add(time.Hour); !got.Equal(want) {
		t.Errorf("AccessTokenExpiresAt() = %v, want %v", got, want)
	}
	if got, want := b.RefreshTokenExpiresAt(), testutil.Epoch.Add(14*24*time.Hour); !got.Equal(want) {
		t.Errorf("RefreshTokenExpiresAt() = %v, want %v", got, want)
	}

	noExpiry, _ := NewBase(Options{AccessTokenLifetime: time.Hour, Service: svc, Now: clock.Now})
	if got := noExpiry.RefreshTokenExpiresAt(); !got.IsZero() {
		t.Errorf("RefreshTokenExpiresAt() = %v, want zero", got)
	}
}

func TestBase_ScopeFromParams(t *testing.T) {
	b, _ := NewBase(Options{AccessTokenLifetime: time.Hour, Service: mock.NewMockService()})

	tests := []struct {
		name    string
		scope   string
		wantErr bool
	}{
		{"empty", "", false},
		{"single", "read", false},
		{"several", "read write admin:all", false},
		{"quote", `read"`, true},
		{"backslash", `read\write`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.ScopeFromParams(testutil.FormPost(map[string][]string{"scope": {tt.scope}}))
			if tt.wantErr {
				if !oautherr.Is(err, oautherr.KindInvalidRequest) {
					t.Errorf("ScopeFromParams() error = %v, want invalid_request", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ScopeFromParams() error = %v", err)
			}
			if got != tt.scope {
				t.Errorf("ScopeFromParams() = %q, want %q", got, tt.scope)
			}
		})
	}
}

func TestBase_ValidateScope(t *testing.T) {
	ctx := context.Background()
	svc := mock.NewMockService()
	b, _ := NewBase(Options{AccessTokenLifetime: time.Hour, Service: svc})

	svc.ValidateScopeFunc = func(_ context.Context, _ *model.User, _ *model.Client, scope string) (string, bool, error) {
		if scope == "admin" {
			return "", false, nil
		}
		return "read", true, nil
	}

	got, err := b.ValidateScope(ctx, nil, nil, "read write")
	if err != nil {
		t.Fatal(err)
	}
	if got != "read" {
		t.Errorf("ValidateScope() = %q, want %q", got, "read")
	}

	_, err = b.ValidateScope(ctx, nil, nil, "admin")
	if !oautherr.Is(err, oautherr.KindInvalidScope) {
		t.Errorf("ValidateScope() error = %v, want invalid_scope", err)
	}
}

func TestBase_SaveToken(t *testing.T) {
	ctx := context.Background()
	client := testutil.GenerateTestClient()
	user := testutil.GenerateTestUser()

	t.Run("nil token is a server error", func(t *testing.T) {
		svc := mock.NewMockService()
		svc.SaveTokenFunc = func(context.Context, *model.Token, *model.Client, *model.User) (*model.Token, error) {
			return nil, nil
		}
		b, _ := NewBase(Options{AccessTokenLifetime: time.Hour, Service: svc})
		_, err := b.SaveToken(ctx, &model.Token{AccessToken: "a"}, client, user)
		if !oautherr.Is(err, oautherr.KindServerError) {
			t.Errorf("SaveToken() error = %v, want server_error", err)
		}
	})

	t.Run("client and user are back-filled", func(t *testing.T) {
		svc := mock.NewMockService()
		svc.SaveTokenFunc = func(_ context.Context, token *model.Token, _ *model.Client, _ *model.User) (*model.Token, error) {
			return &model.Token{AccessToken: token.AccessToken}, nil
		}
		b, _ := NewBase(Options{AccessTokenLifetime: time.Hour, Service: svc})
		saved, err := b.SaveToken(ctx, &model.Token{AccessToken: "a"}, client, user)
		if err != nil {
			t.Fatal(err)
		}
		if saved.Client != client || saved.User != user {
			t.Errorf("SaveToken() = %+v, want client and user filled in", saved)
		}
	})
}
