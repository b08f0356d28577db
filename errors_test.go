package oauth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
)

func TestEnsureError(t *testing.T) {
	t.Run("untyped errors become server_error", func(t *testing.T) {
		result := model.NewResult()
		oe := ensureError(result, errors.New("boom"))
		if oe.Code != "server_error" {
			t.Errorf("Code = %q, want %q", oe.Code, "server_error")
		}
		if got := result.Get("error"); got != "server_error" {
			t.Errorf("body error = %v, want server_error", got)
		}
		if result.Status != oe.Status {
			t.Errorf("Status = %d, want %d", result.Status, oe.Status)
		}
	})

	t.Run("existing error is kept", func(t *testing.T) {
		result := model.NewResult()
		result.SetError(oautherr.ErrInvalidGrant("Invalid grant: code expired"))
		ensureError(result, oautherr.ErrServerError("later"))
		if got := result.Get("error"); got != "invalid_grant" {
			t.Errorf("body error = %v, want invalid_grant", got)
		}
	})

	t.Run("redirects are kept", func(t *testing.T) {
		result := model.NewResult()
		result.Redirect("https://client.example.com/cb?error=access_denied")
		ensureError(result, oautherr.ErrAccessDenied("denied"))
		if result.Status != http.StatusFound {
			t.Errorf("Status = %d, want %d", result.Status, http.StatusFound)
		}
		if result.Get("error") != nil {
			t.Error("redirect result must not carry an error body")
		}
	})
}

func TestBearerErrorChallenge(t *testing.T) {
	tests := []struct {
		name string
		err  *oautherr.Error
		want string
	}{
		{
			name: "with description",
			err:  oautherr.ErrInvalidToken("Invalid token: access token has expired"),
			want: `Bearer realm="Service", error="invalid_token", error_description="Invalid token: access token has expired"`,
		},
		{
			name: "without description",
			err:  oautherr.New(oautherr.KindInsufficientScope, ""),
			want: `Bearer realm="Service", error="insufficient_scope"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bearerErrorChallenge(tt.err); got != tt.want {
				t.Errorf("bearerErrorChallenge() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSONError(w, ErrorCodeRateLimitExceeded, "slow down", http.StatusTooManyRequests)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != ErrorCodeRateLimitExceeded {
		t.Errorf("error = %q, want %q", resp.Error, ErrorCodeRateLimitExceeded)
	}
	if resp.ErrorDescription != "slow down" {
		t.Errorf("error_description = %q, want %q", resp.ErrorDescription, "slow down")
	}
}
