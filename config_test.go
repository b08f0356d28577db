package oauth

import (
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var config Config
	config.applyDefaults()

	if config.AccessTokenLifetime != time.Hour {
		t.Errorf("AccessTokenLifetime = %v, want %v", config.AccessTokenLifetime, time.Hour)
	}
	if config.RefreshTokenLifetime != 14*24*time.Hour {
		t.Errorf("RefreshTokenLifetime = %v, want %v", config.RefreshTokenLifetime, 14*24*time.Hour)
	}
	if config.AuthorizationCodeLifetime != 5*time.Minute {
		t.Errorf("AuthorizationCodeLifetime = %v, want %v", config.AuthorizationCodeLifetime, 5*time.Minute)
	}
	if config.Logger == nil {
		t.Error("Logger should default to slog.Default()")
	}
	if config.Now == nil {
		t.Error("Now should default to time.Now")
	}
	if config.RateLimit.Burst != 0 {
		t.Errorf("RateLimit.Burst = %d, want 0 while rate limiting is off", config.RateLimit.Burst)
	}
	if config.RateLimit.TrustedProxyCount != DefaultTrustedProxyCount {
		t.Errorf("RateLimit.TrustedProxyCount = %d, want %d", config.RateLimit.TrustedProxyCount, DefaultTrustedProxyCount)
	}

	// Secure by default.
	if config.AllowBearerTokensInQueryString {
		t.Error("query string tokens should be off by default")
	}
	if config.AllowExtendedTokenAttributes {
		t.Error("extended token attributes should be off by default")
	}
	if config.Security.AllowEmptyState {
		t.Error("empty state should be rejected by default")
	}
	if config.Security.DisableRefreshTokenRotation {
		t.Error("refresh token rotation should be on by default")
	}
}

func TestConfig_ApplyDefaultsKeepsValues(t *testing.T) {
	config := Config{
		AccessTokenLifetime:       10 * time.Minute,
		RefreshTokenLifetime:      -1,
		AuthorizationCodeLifetime: time.Minute,
		RateLimit:                 RateLimitConfig{Rate: 5, TrustedProxyCount: 2},
	}
	config.applyDefaults()

	if config.AccessTokenLifetime != 10*time.Minute {
		t.Errorf("AccessTokenLifetime = %v, want %v", config.AccessTokenLifetime, 10*time.Minute)
	}
	if config.AuthorizationCodeLifetime != time.Minute {
		t.Errorf("AuthorizationCodeLifetime = %v, want %v", config.AuthorizationCodeLifetime, time.Minute)
	}
	if got := config.refreshTokenLifetime(); got != 0 {
		t.Errorf("refreshTokenLifetime() = %v, want 0 (never expires)", got)
	}
	if config.RateLimit.Burst != DefaultRateLimitBurst {
		t.Errorf("RateLimit.Burst = %d, want %d", config.RateLimit.Burst, DefaultRateLimitBurst)
	}
	if config.RateLimit.CleanupInterval != DefaultRateLimitCleanupInterval {
		t.Errorf("RateLimit.CleanupInterval = %v, want %v", config.RateLimit.CleanupInterval, DefaultRateLimitCleanupInterval)
	}
	if config.RateLimit.TrustedProxyCount != 2 {
		t.Errorf("RateLimit.TrustedProxyCount = %d, want 2", config.RateLimit.TrustedProxyCount)
	}
}
