package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth2-core/grant"
	"github.com/giantswarm/oauth2-core/instrumentation"
	"github.com/giantswarm/oauth2-core/internal/testutil"
	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
	"github.com/giantswarm/oauth2-core/storage/mock"
)

func basicAuth(id, secret string) http.Header {
	return http.Header{"Authorization": {"Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+secret))}}
}

func setupToken(t *testing.T, opts TokenOptions, clients ...*model.Client) (*TokenHandler, *mock.MockService) {
	t.Helper()
	svc := mock.NewMockService()
	for _, c := range clients {
		svc.AddClient(c)
	}
	svc.AddUser(testutil.GenerateTestUser(), testutil.TestPassword)

	opts.Service = svc
	if opts.AccessTokenLifetime == 0 {
		opts.AccessTokenLifetime = time.Hour
	}
	opts.Now = testutil.NewMockTime(testutil.Epoch).Now

	h, err := NewTokenHandler(opts)
	if err != nil {
		t.Fatalf("NewTokenHandler() error = %v", err)
	}
	return h, svc
}

func TestNewTokenHandler_Options(t *testing.T) {
	_, err := NewTokenHandler(TokenOptions{Service: mock.NewMockService()})
	assertKind(t, err, oautherr.KindInvalidArgument)

	_, err = NewTokenHandler(TokenOptions{AccessTokenLifetime: time.Hour})
	assertKind(t, err, oautherr.KindInvalidArgument)
}

func TestToken_ClientCredentialsScenario(t *testing.T) {
	client := &model.Client{ID: "c1", Secret: "s1", Grants: []string{"client_credentials"}, RedirectURIs: []string{}}
	h, _ := setupToken(t, TokenOptions{}, client)
	result := model.NewResult()

	p := testutil.FormPostWithHeader(basicAuth("c1", "s1"), url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {"read"},
	})
	token, err := h.Handle(context.Background(), p, result)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if result.Status != http.StatusOK {
		t.Errorf("Status = %d, want %d", result.Status, http.StatusOK)
	}
	body := result.Body()
	if body["access_token"] != token.AccessToken || token.AccessToken == "" {
		t.Errorf("access_token = %v, want %q", body["access_token"], token.AccessToken)
	}
	if body["token_type"] != "Bearer" {
		t.Errorf("token_type = %v, want Bearer", body["token_type"])
	}
	if body["scope"] != "read" {
		t.Errorf("scope = %v, want read", body["scope"])
	}
	if body["expires_in"] != int64(3600) {
		t.Errorf("expires_in = %v, want 3600", body["expires_in"])
	}
	if _, ok := body["refresh_token"]; ok {
		t.Error("client_credentials response carries a refresh_token")
	}
	if got := result.Header("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if got := result.Header("Pragma"); got != "no-cache" {
		t.Errorf("Pragma = %q, want no-cache", got)
	}
}

func TestToken_PasswordWithBodyCredentials(t *testing.T) {
	h, _ := setupToken(t, TokenOptions{}, testutil.GenerateTestClient())
	result := model.NewResult()

	p := testutil.FormPost(url.Values{
		"grant_type":    {"password"},
		"client_id":     {testutil.TestClientID},
		"client_secret": {testutil.TestClientSecret},
		"username":      {testutil.TestUsername},
		"password":      {testutil.TestPassword},
	})
	if _, err := h.Handle(context.Background(), p, result); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if result.Get("refresh_token") == nil {
		t.Error("password response has no refresh_token")
	}
}

func TestToken_Errors(t *testing.T) {
	passwordOnly := &model.Client{ID: "p1", Secret: "s1", Grants: []string{"password"}}
	noGrants := &model.Client{ID: "n1", Secret: "s1"}

	tests := []struct {
		name       string
		params     *model.Params
		wantKind   oautherr.Kind
		wantStatus int
		wantBasic  bool
	}{
		{
			name:       "GET request",
			params:     newParams(http.MethodGet, basicAuth("p1", "s1"), url.Values{"grant_type": {"password"}}, nil),
			wantKind:   oautherr.KindInvalidRequest,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "JSON body",
			params:     newParams(http.MethodPost, http.Header{"Content-Type": {"application/json"}}, nil, url.Values{"grant_type": {"password"}}),
			wantKind:   oautherr.KindInvalidRequest,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no client credentials",
			params:     testutil.FormPost(url.Values{"grant_type": {"password"}}),
			wantKind:   oautherr.KindInvalidClient,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "client_id without secret",
			params:     testutil.FormPost(url.Values{"grant_type": {"password"}, "client_id": {"p1"}}),
			wantKind:   oautherr.KindInvalidClient,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrong secret in body",
			params:     testutil.FormPost(url.Values{"grant_type": {"password"}, "client_id": {"p1"}, "client_secret": {"nope"}}),
			wantKind:   oautherr.KindInvalidClient,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrong secret in basic auth",
			params:     testutil.FormPostWithHeader(basicAuth("p1", "nope"), url.Values{"grant_type": {"password"}}),
			wantKind:   oautherr.KindInvalidClient,
			wantStatus: http.StatusUnauthorized,
			wantBasic:  true,
		},
		{
			name:       "client without grants",
			params:     testutil.FormPostWithHeader(basicAuth("n1", "s1"), url.Values{"grant_type": {"password"}}),
			wantKind:   oautherr.KindServerError,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "missing grant_type",
			params:     testutil.FormPostWithHeader(basicAuth("p1", "s1"), nil),
			wantKind:   oautherr.KindInvalidRequest,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed grant_type",
			params:     testutil.FormPostWithHeader(basicAuth("p1", "s1"), url.Values{"grant_type": {"pass word"}}),
			wantKind:   oautherr.KindInvalidRequest,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown grant_type",
			params:     testutil.FormPostWithHeader(basicAuth("p1", "s1"), url.Values{"grant_type": {"implicit"}}),
			wantKind:   oautherr.KindUnsupportedGrantType,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "grant not allowed for client",
			params:     testutil.FormPostWithHeader(basicAuth("p1", "s1"), url.Values{"grant_type": {"authorization_code"}, "code": {"abc"}}),
			wantKind:   oautherr.KindUnauthorizedClient,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "grant failure",
			params:     testutil.FormPostWithHeader(basicAuth("p1", "s1"), url.Values{"grant_type": {"password"}, "username": {"alice"}, "password": {"wrong"}}),
			wantKind:   oautherr.KindInvalidGrant,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupToken(t, TokenOptions{}, passwordOnly, noGrants)
			result := model.NewResult()

			_, err := h.Handle(context.Background(), tt.params, result)
			assertKind(t, err, tt.wantKind)

			if result.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", result.Status, tt.wantStatus)
			}
			if got := result.Get("error"); got != tt.wantKind.Code() {
				t.Errorf("error = %v, want %q", got, tt.wantKind.Code())
			}
			if result.Get("error_description") == nil {
				t.Error("error_description missing")
			}
			if got := result.Header("Cache-Control"); got != "no-store" {
				t.Errorf("Cache-Control = %q, want no-store", got)
			}
			hasBasic := result.Header("WWW-Authenticate") == `Basic realm="Service"`
			if hasBasic != tt.wantBasic {
				t.Errorf("Basic challenge = %v, want %v", hasBasic, tt.wantBasic)
			}
		})
	}
}

func TestToken_RequireClientAuthentication(t *testing.T) {
	public := &model.Client{ID: "public", Grants: []string{"password"}}
	h, _ := setupToken(t, TokenOptions{RequireClientAuthentication: map[string]bool{"password": false}}, public)

	p := testutil.FormPost(url.Values{
		"grant_type": {"password"},
		"client_id":  {"public"},
		"username":   {testutil.TestUsername},
		"password":   {testutil.TestPassword},
	})
	if _, err := h.Handle(context.Background(), p, model.NewResult()); err != nil {
		t.Errorf("Handle() error = %v", err)
	}
}

func TestToken_PerClientLifetime(t *testing.T) {
	client := testutil.GenerateTestClient()
	client.AccessTokenLifetime = 10 * time.Minute
	h, _ := setupToken(t, TokenOptions{}, client)
	result := model.NewResult()

	p := testutil.FormPostWithHeader(basicAuth(testutil.TestClientID, testutil.TestClientSecret), url.Values{"grant_type": {"client_credentials"}})
	if _, err := h.Handle(context.Background(), p, result); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := result.Get("expires_in"); got != int64(600) {
		t.Errorf("expires_in = %v, want 600", got)
	}
}

func TestToken_ExtendedGrantType(t *testing.T) {
	const customGrant = "urn:ietf:params:oauth:grant-type:custom"

	custom := grant.Factory(func(opts grant.Options) (grant.Handler, error) {
		return grant.HandlerFunc(func(_ context.Context, _ *model.Params, client *model.Client) (*model.Token, error) {
			return &model.Token{
				AccessToken:          "custom-token",
				AccessTokenExpiresAt: opts.Now().Add(opts.AccessTokenLifetime),
				Client:               client,
				User:                 &model.User{ID: "custom-user"},
				Extra:                map[string]any{"id_token": "opaque", "access_token": "overridden"},
			}, nil
		}), nil
	})

	client := &model.Client{ID: "c1", Secret: "s1", Grants: []string{customGrant}}
	h, _ := setupToken(t, TokenOptions{
		ExtendedGrantTypes:           grant.Registry{customGrant: custom},
		AllowExtendedTokenAttributes: true,
	}, client)
	result := model.NewResult()

	p := testutil.FormPostWithHeader(basicAuth("c1", "s1"), url.Values{"grant_type": {customGrant}})
	if _, err := h.Handle(context.Background(), p, result); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := result.Get("access_token"); got != "custom-token" {
		t.Errorf("access_token = %v, want custom-token", got)
	}
	if got := result.Get("id_token"); got != "opaque" {
		t.Errorf("id_token = %v, want opaque", got)
	}
}

func TestToken_RefreshRotation(t *testing.T) {
	h, svc := setupToken(t, TokenOptions{RefreshTokenLifetime: 24 * time.Hour}, testutil.GenerateTestClient())
	ctx := context.Background()
	auth := basicAuth(testutil.TestClientID, testutil.TestClientSecret)

	first := model.NewResult()
	_, err := h.Handle(ctx, testutil.FormPostWithHeader(auth, url.Values{
		"grant_type": {"password"},
		"username":   {testutil.TestUsername},
		"password":   {testutil.TestPassword},
	}), first)
	if err != nil {
		t.Fatalf("password grant error = %v", err)
	}
	refresh, _ := first.Get("refresh_token").(string)

	second := model.NewResult()
	if _, err := h.Handle(ctx, testutil.FormPostWithHeader(auth, url.Values{"grant_type": {"refresh_token"}, "refresh_token": {refresh}}), second); err != nil {
		t.Fatalf("refresh grant error = %v", err)
	}
	if second.Get("refresh_token") == refresh {
		t.Error("refresh token was not rotated")
	}

	_, err = h.Handle(ctx, testutil.FormPostWithHeader(auth, url.Values{"grant_type": {"refresh_token"}, "refresh_token": {refresh}}), model.NewResult())
	assertKind(t, err, oautherr.KindInvalidGrant)

	if n := svc.CallCount("RevokeToken"); n != 1 {
		t.Errorf("RevokeToken called %d times, want 1", n)
	}
}

func TestToken_SpanAttributes(t *testing.T) {
	tests := []struct {
		name       string
		persistent bool
	}{
		{name: "rotating refresh tokens"},
		{name: "persistent refresh tokens", persistent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, recorder := recordingInstrumentation(t)
			h, _ := setupToken(t, TokenOptions{
				RefreshTokenLifetime:    24 * time.Hour,
				PersistentRefreshTokens: tt.persistent,
				Instrumentation:         inst,
			}, testutil.GenerateTestClient())
			ctx := context.Background()
			auth := basicAuth(testutil.TestClientID, testutil.TestClientSecret)

			first := model.NewResult()
			if _, err := h.Handle(ctx, testutil.FormPostWithHeader(auth, url.Values{
				"grant_type": {"password"},
				"username":   {testutil.TestUsername},
				"password":   {testutil.TestPassword},
			}), first); err != nil {
				t.Fatalf("password grant error = %v", err)
			}
			attrs := lastSpanAttrs(t, recorder, "oauth.token")
			if got := attrs[instrumentation.AttrExpiresIn].AsInt64(); got != 3600 {
				t.Errorf("%s = %d, want 3600", instrumentation.AttrExpiresIn, got)
			}
			if _, ok := attrs[instrumentation.AttrTokenRotated]; ok {
				t.Errorf("%s set on a password grant", instrumentation.AttrTokenRotated)
			}

			refresh, _ := first.Get("refresh_token").(string)
			if _, err := h.Handle(ctx, testutil.FormPostWithHeader(auth, url.Values{"grant_type": {"refresh_token"}, "refresh_token": {refresh}}), model.NewResult()); err != nil {
				t.Fatalf("refresh grant error = %v", err)
			}
			attrs = lastSpanAttrs(t, recorder, "oauth.token")
			rotated, ok := attrs[instrumentation.AttrTokenRotated]
			if !ok {
				t.Fatalf("%s missing on the refresh span", instrumentation.AttrTokenRotated)
			}
			if rotated.AsBool() == tt.persistent {
				t.Errorf("%s = %v, want %v", instrumentation.AttrTokenRotated, rotated.AsBool(), !tt.persistent)
			}
		})
	}
}

func TestToken_UntypedErrorsBecomeServerErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("client lookup failure", func(t *testing.T) {
		h, svc := setupToken(t, TokenOptions{})
		boom := errors.New("database unavailable")
		svc.GetClientFunc = func(context.Context, string, string) (*model.Client, error) {
			return nil, boom
		}
		result := model.NewResult()

		_, err := h.Handle(ctx, testutil.FormPostWithHeader(basicAuth("c1", "s1"), url.Values{"grant_type": {"password"}}), result)
		assertKind(t, err, oautherr.KindServerError)
		if !errors.Is(err, boom) {
			t.Errorf("error = %v, want cause %v", err, boom)
		}
		if result.Status != http.StatusServiceUnavailable {
			t.Errorf("Status = %d, want %d", result.Status, http.StatusServiceUnavailable)
		}
	})

	t.Run("proxy grant without user", func(t *testing.T) {
		h, svc := setupToken(t, TokenOptions{}, testutil.GenerateTestClient())
		svc.GetUserByAccessTokenFunc = func(context.Context, string, *oauth2.Token) (*model.User, error) {
			return nil, nil
		}
		result := model.NewResult()

		_, err := h.Handle(ctx, testutil.FormPostWithHeader(basicAuth(testutil.TestClientID, testutil.TestClientSecret), url.Values{
			"grant_type": {"proxy"},
			"provider":   {"github"},
			"code":       {"upstream"},
		}), result)
		assertKind(t, err, oautherr.KindServerError)
		if result.Get("error") != "server_error" {
			t.Errorf("error = %v, want server_error", result.Get("error"))
		}
	})
}

func TestParseBasicAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantOK     bool
		wantID     string
		wantSecret string
	}{
		{"plain", "Basic " + base64.StdEncoding.EncodeToString([]byte("c1:s1")), true, "c1", "s1"},
		{"lower case scheme", "basic " + base64.StdEncoding.EncodeToString([]byte("c1:s1")), true, "c1", "s1"},
		{"form encoded", "Basic " + base64.StdEncoding.EncodeToString([]byte("my%20client:p%3Ass")), true, "my client", "p:ss"},
		{"secret with colon", "Basic " + base64.StdEncoding.EncodeToString([]byte("c1:a:b")), true, "c1", "a:b"},
		{"bearer", "Bearer abc", false, "", ""},
		{"bad base64", "Basic !!!", false, "", ""},
		{"no colon", "Basic " + base64.StdEncoding.EncodeToString([]byte("c1")), false, "", ""},
		{"empty", "", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, ok := parseBasicAuth(tt.header)
			if ok != tt.wantOK {
				t.Fatalf("parseBasicAuth() ok = %v, want %v", ok, tt.wantOK)
			}
			if creds.id != tt.wantID || creds.secret != tt.wantSecret {
				t.Errorf("parseBasicAuth() = %q:%q, want %q:%q", creds.id, creds.secret, tt.wantID, tt.wantSecret)
			}
		})
	}
}
