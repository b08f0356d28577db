package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/giantswarm/oauth2-core/instrumentation"
	"github.com/giantswarm/oauth2-core/providers"
	"github.com/giantswarm/oauth2-core/providers/generic"
	"github.com/giantswarm/oauth2-core/providers/oidc"
)

// newIdentity builds the upstream provider registry used by the proxy
// grant. It returns nil when no provider is configured.
func newIdentity(ctx context.Context, cfg config, logger *slog.Logger, inst *instrumentation.Instrumentation) (*providers.Registry, error) {
	var upstream []providers.Provider

	if cfg.GoogleClientID != "" {
		p, err := generic.Google(generic.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.UpstreamRedirect,
		})
		if err != nil {
			return nil, fmt.Errorf("google provider: %w", err)
		}
		upstream = append(upstream, p)
	}

	if cfg.GitHubClientID != "" {
		p, err := generic.GitHub(generic.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.UpstreamRedirect,
		})
		if err != nil {
			return nil, fmt.Errorf("github provider: %w", err)
		}
		upstream = append(upstream, p)
	}

	if cfg.OIDCIssuer != "" {
		p, err := oidc.NewProvider(ctx, &oidc.Config{
			IssuerURL:    cfg.OIDCIssuer,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.UpstreamRedirect,
		})
		if err != nil {
			return nil, fmt.Errorf("oidc provider: %w", err)
		}
		upstream = append(upstream, p)
	}

	if len(upstream) == 0 {
		return nil, nil
	}

	registry, err := providers.NewRegistry(providers.RegistryOptions{
		Logger:          logger,
		Instrumentation: inst,
	}, upstream...)
	if err != nil {
		return nil, err
	}
	logger.Info("Upstream identity providers configured", "providers", registry.Names())
	return registry, nil
}
