package server

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/giantswarm/oauth2-core/internal/testutil"
	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
	"github.com/giantswarm/oauth2-core/storage/mock"
)

// authorizeOnly implements service.AuthorizeService and nothing else.
type authorizeOnly struct {
	svc *mock.MockService
}

func (a authorizeOnly) GetClientByID(ctx context.Context, id string) (*model.Client, error) {
	return a.svc.GetClientByID(ctx, id)
}

func (a authorizeOnly) SaveAuthorizationCode(ctx context.Context, code *model.AuthorizationCode, client *model.Client, user *model.User) (*model.AuthorizationCode, error) {
	return a.svc.SaveAuthorizationCode(ctx, code, client, user)
}

type codeGeneratingService struct {
	*mock.MockService
}

func (codeGeneratingService) GenerateAuthorizationCode(context.Context, *model.Client, *model.User, string) (string, error) {
	return "generated-code", nil
}

var staticUser = UserResolverFunc(func(context.Context, *model.Params, *model.Result) (*model.User, error) {
	return testutil.GenerateTestUser(), nil
})

func setupAuthorize(t *testing.T, opts AuthorizeOptions) (*AuthorizeHandler, *mock.MockService) {
	t.Helper()
	svc := mock.NewMockService()
	svc.AddClient(testutil.GenerateTestClient())

	if opts.Service == nil {
		opts.Service = svc
	}
	if opts.AuthorizationCodeLifetime == 0 {
		opts.AuthorizationCodeLifetime = 5 * time.Minute
	}
	if opts.UserResolver == nil {
		opts.UserResolver = staticUser
	}
	opts.Now = testutil.NewMockTime(testutil.Epoch).Now

	h, err := NewAuthorizeHandler(opts)
	if err != nil {
		t.Fatalf("NewAuthorizeHandler() error = %v", err)
	}
	return h, svc
}

func authorizeQuery(overrides map[string]string) url.Values {
	q := url.Values{
		"client_id":     {testutil.TestClientID},
		"redirect_uri":  {testutil.TestRedirectURI},
		"response_type": {"code"},
		"state":         {"xyz"},
		"scope":         {"read"},
	}
	for k, v := range overrides {
		if v == "" {
			q.Del(k)
			continue
		}
		q.Set(k, v)
	}
	return q
}

func TestNewAuthorizeHandler_Options(t *testing.T) {
	svc := mock.NewMockService()

	tests := []struct {
		name string
		opts AuthorizeOptions
	}{
		{"missing lifetime", AuthorizeOptions{Service: svc}},
		{"missing service", AuthorizeOptions{AuthorizationCodeLifetime: time.Minute}},
		{"no resolver and no token lookup", AuthorizeOptions{Service: authorizeOnly{svc}, AuthorizationCodeLifetime: time.Minute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAuthorizeHandler(tt.opts)
			assertKind(t, err, oautherr.KindInvalidArgument)
		})
	}

	if _, err := NewAuthorizeHandler(AuthorizeOptions{Service: authorizeOnly{svc}, AuthorizationCodeLifetime: time.Minute, UserResolver: staticUser}); err != nil {
		t.Errorf("NewAuthorizeHandler() with resolver error = %v", err)
	}
}

func TestAuthorize_Success(t *testing.T) {
	h, svc := setupAuthorize(t, AuthorizeOptions{})
	result := model.NewResult()

	code, err := h.Handle(context.Background(), testutil.Get(nil, authorizeQuery(nil)), result)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	q := redirectQuery(t, result)
	if q.Get("code") != code.Code {
		t.Errorf("code = %q, want %q", q.Get("code"), code.Code)
	}
	if q.Get("state") != "xyz" {
		t.Errorf("state = %q, want %q", q.Get("state"), "xyz")
	}
	if result.Status != http.StatusFound {
		t.Errorf("Status = %d, want %d", result.Status, http.StatusFound)
	}

	saved := svc.Codes[code.Code]
	if saved == nil {
		t.Fatal("code was not saved")
	}
	if !saved.ExpiresAt.Equal(testutil.Epoch.Add(5 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want %v", saved.ExpiresAt, testutil.Epoch.Add(5*time.Minute))
	}
	if saved.RedirectURI != testutil.TestRedirectURI {
		t.Errorf("RedirectURI = %q, want %q", saved.RedirectURI, testutil.TestRedirectURI)
	}
	if saved.Scope != "read" {
		t.Errorf("Scope = %q, want %q", saved.Scope, "read")
	}
	if saved.User.ID != testutil.TestUserID {
		t.Errorf("User.ID = %q, want %q", saved.User.ID, testutil.TestUserID)
	}
}

func TestAuthorize_DefaultRedirectURI(t *testing.T) {
	h, svc := setupAuthorize(t, AuthorizeOptions{})
	svc.Clients[testutil.TestClientID].RedirectURIs = []string{"https://client.example.com/cb?keep=no", "https://client.example.com/other"}
	result := model.NewResult()

	code, err := h.Handle(context.Background(), testutil.Get(nil, authorizeQuery(map[string]string{"redirect_uri": ""})), result)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	u, _ := url.Parse(result.Header("Location"))
	if got := u.Scheme + "://" + u.Host + u.Path; got != "https://client.example.com/cb" {
		t.Errorf("redirect target = %q, want first registered URI", got)
	}
	if u.Query().Has("keep") {
		t.Error("existing query was not stripped")
	}
	if got := svc.Codes[code.Code].RedirectURI; got != "https://client.example.com/cb?keep=no" {
		t.Errorf("RedirectURI = %q, want the first registered URI", got)
	}
}

func TestAuthorize_CodeBoundToDefaultRedirectURI(t *testing.T) {
	h, svc := setupAuthorize(t, AuthorizeOptions{})
	code, err := h.Handle(context.Background(), testutil.Get(nil, authorizeQuery(map[string]string{"redirect_uri": ""})), model.NewResult())
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	tokens, err := NewTokenHandler(TokenOptions{
		Service:             svc,
		AccessTokenLifetime: time.Hour,
		Now:                 testutil.NewMockTime(testutil.Epoch).Now,
	})
	if err != nil {
		t.Fatalf("NewTokenHandler() error = %v", err)
	}
	auth := basicAuth(testutil.TestClientID, testutil.TestClientSecret)
	exchange := func(redirectURI string) (*model.Token, error) {
		body := url.Values{"grant_type": {"authorization_code"}, "code": {code.Code}}
		if redirectURI != "" {
			body.Set("redirect_uri", redirectURI)
		}
		return tokens.Handle(context.Background(), testutil.FormPostWithHeader(auth, body), model.NewResult())
	}

	_, err = exchange("")
	assertKind(t, err, oautherr.KindInvalidRequest)
	if n := svc.CallCount("RevokeAuthorizationCode"); n != 0 {
		t.Errorf("RevokeAuthorizationCode called %d times, want 0", n)
	}

	if _, err := exchange(testutil.TestRedirectURI); err != nil {
		t.Fatalf("exchange with the redirect URI error = %v", err)
	}
}

func TestAuthorize_ErrorRedirects(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		opts      AuthorizeOptions
		wantError string
		wantState string
	}{
		{
			name:      "user denied access",
			overrides: map[string]string{"allowed": "false"},
			wantError: "access_denied",
			wantState: "xyz",
		},
		{
			name:      "unregistered response type",
			overrides: map[string]string{"response_type": "token"},
			wantError: "unsupported_response_type",
			wantState: "xyz",
		},
		{
			name:      "missing response type",
			overrides: map[string]string{"response_type": ""},
			wantError: "invalid_request",
			wantState: "xyz",
		},
		{
			name:      "missing state",
			overrides: map[string]string{"state": ""},
			wantError: "invalid_request",
		},
		{
			name:      "invalid scope characters",
			overrides: map[string]string{"scope": `read"`},
			wantError: "invalid_scope",
			wantState: "xyz",
		},
		{
			name: "resolver returns no user",
			opts: AuthorizeOptions{UserResolver: UserResolverFunc(func(context.Context, *model.Params, *model.Result) (*model.User, error) {
				return nil, nil
			})},
			wantError: "server_error",
			wantState: "xyz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, svc := setupAuthorize(t, tt.opts)
			result := model.NewResult()

			code, err := h.Handle(context.Background(), testutil.Get(nil, authorizeQuery(tt.overrides)), result)
			if err != nil {
				t.Fatalf("Handle() error = %v, want nil", err)
			}
			if code != nil {
				t.Errorf("Handle() code = %+v, want nil", code)
			}

			q := redirectQuery(t, result)
			if q.Get("error") != tt.wantError {
				t.Errorf("error = %q, want %q", q.Get("error"), tt.wantError)
			}
			if q.Get("error_description") == "" {
				t.Error("error_description is empty")
			}
			if q.Get("state") != tt.wantState {
				t.Errorf("state = %q, want %q", q.Get("state"), tt.wantState)
			}
			if q.Has("code") {
				t.Error("error redirect carries a code")
			}
			if len(svc.Codes) != 0 {
				t.Errorf("saved %d codes, want 0", len(svc.Codes))
			}
		})
	}
}

func TestAuthorize_AllowEmptyState(t *testing.T) {
	h, _ := setupAuthorize(t, AuthorizeOptions{AllowEmptyState: true})
	result := model.NewResult()

	if _, err := h.Handle(context.Background(), testutil.Get(nil, authorizeQuery(map[string]string{"state": ""})), result); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	q := redirectQuery(t, result)
	if q.Get("code") == "" {
		t.Error("redirect has no code")
	}
	if q.Has("state") {
		t.Error("redirect carries a state that was never sent")
	}
}

func TestAuthorize_TargetErrorsAreReturned(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		mutate    func(*model.Client)
		wantKind  oautherr.Kind
	}{
		{
			name:      "missing client_id",
			overrides: map[string]string{"client_id": ""},
			wantKind:  oautherr.KindInvalidRequest,
		},
		{
			name:      "invalid redirect_uri",
			overrides: map[string]string{"redirect_uri": "not a uri"},
			wantKind:  oautherr.KindInvalidRequest,
		},
		{
			name:      "unknown client",
			overrides: map[string]string{"client_id": "nobody"},
			wantKind:  oautherr.KindInvalidClient,
		},
		{
			name:      "redirect_uri with trailing slash",
			overrides: map[string]string{"redirect_uri": testutil.TestRedirectURI + "/"},
			wantKind:  oautherr.KindInvalidClient,
		},
		{
			name:     "client without authorization_code grant",
			mutate:   func(c *model.Client) { c.Grants = []string{"password"} },
			wantKind: oautherr.KindUnauthorizedClient,
		},
		{
			name:     "client without grants",
			mutate:   func(c *model.Client) { c.Grants = nil },
			wantKind: oautherr.KindInvalidClient,
		},
		{
			name:     "client without redirect URIs",
			mutate:   func(c *model.Client) { c.RedirectURIs = nil },
			wantKind: oautherr.KindInvalidClient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, svc := setupAuthorize(t, AuthorizeOptions{})
			if tt.mutate != nil {
				tt.mutate(svc.Clients[testutil.TestClientID])
			}
			result := model.NewResult()

			_, err := h.Handle(context.Background(), testutil.Get(nil, authorizeQuery(tt.overrides)), result)
			assertKind(t, err, tt.wantKind)
			if result.IsRedirect() {
				t.Error("result is a redirect, want no redirect before the target is known")
			}
		})
	}
}

func TestAuthorize_BearerUserResolution(t *testing.T) {
	svc := mock.NewMockService()
	svc.AddClient(testutil.GenerateTestClient())
	svc.AccessTokens["session-token"] = &model.Token{
		AccessToken:          "session-token",
		AccessTokenExpiresAt: testutil.Epoch.Add(time.Hour),
		User:                 testutil.GenerateTestUser(),
	}
	h, err := NewAuthorizeHandler(AuthorizeOptions{
		Service:                   svc,
		AuthorizationCodeLifetime: time.Minute,
		Now:                       testutil.NewMockTime(testutil.Epoch).Now,
	})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("authenticated", func(t *testing.T) {
		result := model.NewResult()
		code, err := h.Handle(context.Background(), testutil.Get(bearerHeader("session-token"), authorizeQuery(nil)), result)
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if code == nil || code.User.ID != testutil.TestUserID {
			t.Errorf("Handle() code = %+v, want code for %s", code, testutil.TestUserID)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		result := model.NewResult()
		if _, err := h.Handle(context.Background(), testutil.Get(nil, authorizeQuery(nil)), result); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if got := redirectQuery(t, result).Get("error"); got != "unauthorized_request" {
			t.Errorf("error = %q, want %q", got, "unauthorized_request")
		}
		if got := result.Header("WWW-Authenticate"); got != "" {
			t.Errorf("WWW-Authenticate = %q, want none on a redirect", got)
		}
	})
}

func TestAuthorize_ServiceGeneratesCode(t *testing.T) {
	svc := codeGeneratingService{mock.NewMockService()}
	svc.AddClient(testutil.GenerateTestClient())
	h, err := NewAuthorizeHandler(AuthorizeOptions{
		Service:                   svc,
		AuthorizationCodeLifetime: time.Minute,
		UserResolver:              staticUser,
	})
	if err != nil {
		t.Fatal(err)
	}

	result := model.NewResult()
	if _, err := h.Handle(context.Background(), testutil.Get(nil, authorizeQuery(nil)), result); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := redirectQuery(t, result).Get("code"); got != "generated-code" {
		t.Errorf("code = %q, want %q", got, "generated-code")
	}
}

func TestCodeResponseType(t *testing.T) {
	if _, err := NewCodeResponseType(""); !oautherr.Is(err, oautherr.KindInvalidArgument) {
		t.Errorf("NewCodeResponseType(\"\") error = %v, want invalid_argument", err)
	}

	rt, err := NewCodeResponseType("abc")
	if err != nil {
		t.Fatal(err)
	}
	u, err := rt.BuildRedirectURI("https://client.example.com/cb?foo=bar#frag")
	if err != nil {
		t.Fatal(err)
	}
	if u.RawQuery != "code=abc" {
		t.Errorf("RawQuery = %q, want %q", u.RawQuery, "code=abc")
	}

	if _, err := rt.BuildRedirectURI(""); !oautherr.Is(err, oautherr.KindInvalidArgument) {
		t.Errorf("BuildRedirectURI(\"\") error = %v, want invalid_argument", err)
	}
}
