package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/giantswarm/oauth2-core/oautherr"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func validToken() *Token {
	return &Token{
		AccessToken:          "access",
		AccessTokenExpiresAt: testNow.Add(time.Hour),
		RefreshToken:         "refresh",
		Scope:                "read",
		Client:               &Client{ID: "c1"},
		User:                 &User{ID: "u1"},
		Extra:                map[string]any{"tenant": "acme", "token_type": "mac"},
	}
}

func TestNewTokenModel_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Token) *Token
	}{
		{"nil token", func(*Token) *Token { return nil }},
		{"missing access token", func(tk *Token) *Token { tk.AccessToken = ""; return tk }},
		{"missing client", func(tk *Token) *Token { tk.Client = nil; return tk }},
		{"missing user", func(tk *Token) *Token { tk.User = nil; return tk }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenModel(tt.mutate(validToken()), false, testNow)
			if !oautherr.Is(err, oautherr.KindInvalidArgument) {
				t.Errorf("error = %v, want invalid_argument", err)
			}
		})
	}
}

func TestNewTokenModel_Lifetime(t *testing.T) {
	tk := validToken()
	tk.AccessTokenExpiresAt = testNow.Add(3599*time.Second + 900*time.Millisecond)

	m, err := NewTokenModel(tk, false, testNow)
	if err != nil {
		t.Fatalf("NewTokenModel() error = %v", err)
	}
	if m.AccessTokenLifetime != 3599 {
		t.Errorf("AccessTokenLifetime = %d, want 3599 (floored)", m.AccessTokenLifetime)
	}
	if m.CustomAttributes != nil {
		t.Errorf("CustomAttributes = %v, want nil when not allowed", m.CustomAttributes)
	}
}

func TestBearerToken_Fields(t *testing.T) {
	m, err := NewTokenModel(validToken(), true, testNow)
	if err != nil {
		t.Fatalf("NewTokenModel() error = %v", err)
	}

	fields := m.Bearer().Fields()

	want := map[string]any{
		"access_token":  "access",
		"token_type":    "Bearer",
		"expires_in":    int64(3600),
		"refresh_token": "refresh",
		"scope":         "read",
		"tenant":        "acme",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%q] = %v, want %v", k, fields[k], v)
		}
	}
	if len(fields) != len(want) {
		t.Errorf("fields = %v, want exactly %v", fields, want)
	}
}

func TestBearerToken_OmitsEmptyOptionalFields(t *testing.T) {
	tk := validToken()
	tk.AccessTokenExpiresAt = time.Time{}
	tk.RefreshToken = ""
	tk.Scope = ""

	m, err := NewTokenModel(tk, false, testNow)
	if err != nil {
		t.Fatalf("NewTokenModel() error = %v", err)
	}

	raw, err := json.Marshal(m.Bearer())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, k := range []string{"expires_in", "refresh_token", "scope"} {
		if _, ok := body[k]; ok {
			t.Errorf("field %q should be omitted, body = %s", k, raw)
		}
	}
	if body["token_type"] != "Bearer" {
		t.Errorf("token_type = %v, want Bearer", body["token_type"])
	}
}
