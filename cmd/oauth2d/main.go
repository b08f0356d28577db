// Command oauth2d runs a standalone OAuth 2.0 authorization server backed by
// the in-memory, Valkey or SQLite store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"

	oauth "github.com/giantswarm/oauth2-core"
	"github.com/giantswarm/oauth2-core/service"
	"github.com/giantswarm/oauth2-core/storage"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("oauth2d: %v", err)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	displayAppName(cfg.AppName)

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := newTelemetry(cfg, version)
	if err != nil {
		return err
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to shut down telemetry", "error", err)
		}
	}()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("Storage backend ready", "backend", store.Name())

	registry, err := newIdentity(ctx, cfg, logger, tel.inst)
	if err != nil {
		return err
	}
	var identity service.ExternalIdentity
	if registry != nil {
		identity = registry
	}

	svc, err := storage.NewService(storage.Options{
		Store:           store,
		Identity:        identity,
		Logger:          logger,
		Instrumentation: tel.inst,
	})
	if err != nil {
		return err
	}
	if err := seed(ctx, svc, cfg, logger); err != nil {
		return err
	}

	srv, err := oauth.New(svc, oauth.Config{
		Issuer:                    cfg.Issuer,
		AccessTokenLifetime:       cfg.AccessTokenLifetime,
		RefreshTokenLifetime:      cfg.RefreshTokenLifetime,
		AuthorizationCodeLifetime: cfg.CodeLifetime,
		RateLimit: oauth.RateLimitConfig{
			Rate:              cfg.RateLimit,
			Burst:             cfg.RateLimitBurst,
			TrustProxy:        cfg.TrustProxy,
			TrustedProxyCount: cfg.TrustedProxyCount,
		},
		Security: oauth.SecurityConfig{
			AllowEmptyState:             cfg.AllowEmptyState,
			DisableRefreshTokenRotation: cfg.DisableRotation,
			EnableAuditLogging:          cfg.AuditLogging,
		},
		Logger:          logger,
		Instrumentation: tel.inst,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	handler := oauth.NewHandler(srv, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/userinfo", handler.RequireToken("")(http.HandlerFunc(serveUserInfo)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	if metrics := tel.metricsHandler(); metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", server.Addr, "issuer", cfg.Issuer, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server.ListenAndServe: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

// seed registers the configured client and user. Records that already exist
// are left untouched so restarts against persistent backends succeed.
func seed(ctx context.Context, svc *storage.Service, cfg config, logger *slog.Logger) error {
	if cfg.SeedClientID != "" {
		spec := storage.ClientSpec{
			ID:     cfg.SeedClientID,
			Secret: cfg.SeedClientSecret,
			Grants: []string{"authorization_code", "client_credentials", "password", "refresh_token", "proxy"},
			Scope:  cfg.SeedScope,
		}
		if cfg.SeedRedirectURI != "" {
			spec.RedirectURIs = []string{cfg.SeedRedirectURI}
		}
		_, err := svc.RegisterClient(ctx, spec)
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			logger.Info("Seed client already registered", "client_id", cfg.SeedClientID)
		case err != nil:
			return err
		default:
			logger.Info("Seed client registered", "client_id", cfg.SeedClientID)
		}
	}

	if cfg.SeedUsername != "" {
		_, err := svc.RegisterUser(ctx, cfg.SeedUsername, cfg.SeedPassword, nil)
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			logger.Info("Seed user already registered", "username", cfg.SeedUsername)
		case err != nil:
			return err
		default:
			logger.Info("Seed user registered", "username", cfg.SeedUsername)
		}
	}
	return nil
}

type userInfoResponse struct {
	Subject  string         `json:"sub"`
	Username string         `json:"username,omitempty"`
	ClientID string         `json:"client_id,omitempty"`
	Scope    string         `json:"scope,omitempty"`
	Claims   map[string]any `json:"claims,omitempty"`
}

func serveUserInfo(w http.ResponseWriter, r *http.Request) {
	token, ok := oauth.TokenFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	resp := userInfoResponse{
		Subject:  token.User.ID,
		Username: token.User.Username,
		Scope:    token.Scope,
		Claims:   token.User.Claims,
	}
	if token.Client != nil {
		resp.ClientID = token.Client.ID
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(resp)
}

func displayAppName(name string) {
	figure.NewFigure(name, "cybermedium", true).Print()
	fmt.Println()
}
