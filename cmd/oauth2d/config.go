package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// config is the process configuration, read from OAUTH2D_* environment
// variables.
type config struct {
	AppName    string
	ListenAddr string
	Issuer     string
	LogFormat  string
	LogLevel   slog.Level

	Backend         string
	ValkeyAddr      string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
	SQLiteDSN       string
	CleanupInterval time.Duration

	AccessTokenLifetime  time.Duration
	RefreshTokenLifetime time.Duration
	CodeLifetime         time.Duration
	AllowEmptyState      bool
	DisableRotation      bool
	AuditLogging         bool

	RateLimit         float64
	RateLimitBurst    int
	TrustProxy        bool
	TrustedProxyCount int

	MetricsEnabled bool
	LogClientIPs   bool

	SeedClientID     string
	SeedClientSecret string
	SeedRedirectURI  string
	SeedScope        string
	SeedUsername     string
	SeedPassword     string

	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string
	OIDCIssuer         string
	OIDCClientID       string
	OIDCClientSecret   string
	UpstreamRedirect   string
}

const envPrefix = "OAUTH2D_"

func loadConfig() (config, error) {
	var errs []string
	env := envReader{errs: &errs}

	cfg := config{
		AppName:    env.String("APP_NAME", "oauth2d"),
		ListenAddr: env.String("LISTEN_ADDR", ":8080"),
		Issuer:     env.String("ISSUER", "http://localhost:8080"),
		LogFormat:  env.String("LOG_FORMAT", "text"),

		Backend:         env.String("BACKEND", "memory"),
		ValkeyAddr:      env.String("VALKEY_ADDR", "localhost:6379"),
		ValkeyPassword:  env.String("VALKEY_PASSWORD", ""),
		ValkeyDB:        env.Int("VALKEY_DB", 0),
		ValkeyKeyPrefix: env.String("VALKEY_KEY_PREFIX", ""),
		SQLiteDSN:       env.String("SQLITE_DSN", "file:oauth2d.db"),
		CleanupInterval: env.Duration("CLEANUP_INTERVAL", 5*time.Minute),

		AccessTokenLifetime:  env.Duration("ACCESS_TOKEN_LIFETIME", 0),
		RefreshTokenLifetime: env.Duration("REFRESH_TOKEN_LIFETIME", 0),
		CodeLifetime:         env.Duration("AUTHORIZATION_CODE_LIFETIME", 0),
		AllowEmptyState:      env.Bool("ALLOW_EMPTY_STATE", false),
		DisableRotation:      env.Bool("DISABLE_REFRESH_TOKEN_ROTATION", false),
		AuditLogging:         env.Bool("AUDIT_LOGGING", true),

		RateLimit:         env.Float("RATE_LIMIT", 10),
		RateLimitBurst:    env.Int("RATE_LIMIT_BURST", 0),
		TrustProxy:        env.Bool("TRUST_PROXY", false),
		TrustedProxyCount: env.Int("TRUSTED_PROXY_COUNT", 0),

		MetricsEnabled: env.Bool("METRICS", true),
		LogClientIPs:   env.Bool("LOG_CLIENT_IPS", false),

		SeedClientID:     env.String("SEED_CLIENT_ID", ""),
		SeedClientSecret: env.String("SEED_CLIENT_SECRET", ""),
		SeedRedirectURI:  env.String("SEED_REDIRECT_URI", ""),
		SeedScope:        env.String("SEED_SCOPE", ""),
		SeedUsername:     env.String("SEED_USERNAME", ""),
		SeedPassword:     env.String("SEED_PASSWORD", ""),

		GoogleClientID:     env.String("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: env.String("GOOGLE_CLIENT_SECRET", ""),
		GitHubClientID:     env.String("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: env.String("GITHUB_CLIENT_SECRET", ""),
		OIDCIssuer:         env.String("OIDC_ISSUER", ""),
		OIDCClientID:       env.String("OIDC_CLIENT_ID", ""),
		OIDCClientSecret:   env.String("OIDC_CLIENT_SECRET", ""),
		UpstreamRedirect:   env.String("UPSTREAM_REDIRECT_URL", ""),
	}

	level := env.String("LOG_LEVEL", "info")
	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		errs = append(errs, fmt.Sprintf("%sLOG_LEVEL: %v", envPrefix, err))
	}

	switch cfg.Backend {
	case backendMemory, backendValkey, backendSQLite:
	default:
		errs = append(errs, fmt.Sprintf("%sBACKEND: unknown backend %q", envPrefix, cfg.Backend))
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("%sLOG_FORMAT: must be text or json", envPrefix))
	}
	if (cfg.SeedUsername == "") != (cfg.SeedPassword == "") {
		errs = append(errs, fmt.Sprintf("%sSEED_USERNAME and %sSEED_PASSWORD must be set together", envPrefix, envPrefix))
	}

	if len(errs) > 0 {
		return config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// envReader reads prefixed variables and collects parse errors so all of
// them can be reported at once.
type envReader struct {
	errs *[]string
}

func (e envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e envReader) fail(key string, err error) {
	*e.errs = append(*e.errs, fmt.Sprintf("%s%s: %v", envPrefix, key, err))
}

func (e envReader) String(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e envReader) Int(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return n
}

func (e envReader) Float(key string, def float64) float64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return f
}

func (e envReader) Bool(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return b
}

// Duration accepts Go duration strings. A negative value is passed through;
// for the refresh token lifetime it means tokens never expire.
func (e envReader) Duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return d
}

func newLogger(cfg config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
