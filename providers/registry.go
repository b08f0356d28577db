package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth2-core/instrumentation"
	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
)

// UserMapper turns an upstream identity into the local user the proxy grant
// issues tokens for.
type UserMapper func(ctx context.Context, provider string, info *UserInfo) (*model.User, error)

// DefaultUserMapper namespaces the upstream ID with the provider name so IDs
// from different providers never collide.
func DefaultUserMapper(_ context.Context, provider string, info *UserInfo) (*model.User, error) {
	if info.ID == "" {
		return nil, fmt.Errorf("provider %s returned a user without an ID", provider)
	}

	username := info.Login
	if username == "" {
		username = info.Email
	}

	return &model.User{
		ID:       provider + "|" + info.ID,
		Username: username,
		Claims:   info.Claims,
	}, nil
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// UserMapper maps upstream identities to local users. Defaults to
	// DefaultUserMapper.
	UserMapper UserMapper

	// Logger is used for provider call logging. Defaults to slog.Default().
	Logger *slog.Logger

	// Instrumentation records provider spans and metrics. Optional.
	Instrumentation *instrumentation.Instrumentation
}

// Registry holds the upstream providers known to the server. It satisfies
// the external identity capability the proxy grant needs, so it can be
// embedded in a storage backend or composed with one.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider

	mapUser UserMapper
	logger  *slog.Logger
	inst    *instrumentation.Instrumentation
}

// NewRegistry returns a registry holding the given providers.
func NewRegistry(opts RegistryOptions, providers ...Provider) (*Registry, error) {
	r := &Registry{
		providers: make(map[string]Provider, len(providers)),
		mapUser:   opts.UserMapper,
		logger:    opts.Logger,
		inst:      opts.Instrumentation,
	}
	if r.mapUser == nil {
		r.mapUser = DefaultUserMapper
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	for _, p := range providers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a provider. Names must be unique.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return errors.New("provider is nil")
	}
	name := p.Name()
	if name == "" {
		return errors.New("provider name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q is already registered", name)
	}
	r.providers[name] = p
	return nil
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) lookup(name string) (Provider, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, oautherr.ErrInvalidRequest("Invalid parameter: `provider` is not supported")
	}
	return p, nil
}

// ExchangeAccessTokenByCode redeems code at the named provider.
func (r *Registry) ExchangeAccessTokenByCode(ctx context.Context, provider, code, _ string) (*oauth2.Token, error) {
	p, err := r.lookup(provider)
	if err != nil {
		return nil, err
	}

	var token *oauth2.Token
	err = r.call(ctx, provider, "exchange_code", func(ctx context.Context) error {
		var err error
		token, err = p.ExchangeCode(ctx, code)
		return err
	})
	return token, err
}

// GetUserByAccessToken resolves the upstream identity behind token and maps
// it to a local user.
func (r *Registry) GetUserByAccessToken(ctx context.Context, provider string, token *oauth2.Token) (*model.User, error) {
	p, err := r.lookup(provider)
	if err != nil {
		return nil, err
	}

	var info *UserInfo
	err = r.call(ctx, provider, "userinfo", func(ctx context.Context) error {
		var err error
		info, err = p.UserInfo(ctx, token)
		return err
	})
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}

	return r.mapUser(ctx, provider, info)
}

// call runs one upstream operation inside a span and records its outcome.
func (r *Registry) call(ctx context.Context, provider, operation string, fn func(context.Context) error) error {
	ctx, span := r.inst.Tracer("providers").Start(ctx, "provider."+operation)
	defer span.End()
	instrumentation.AddProviderAttributes(span, provider, operation)

	start := time.Now()
	err := fn(ctx)
	duration := float64(time.Since(start).Milliseconds())

	status := 200
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		status = statusErr.StatusCode
	} else if err != nil {
		status = 0
	}
	r.inst.Metrics().RecordProviderAPICall(ctx, provider, operation, status, duration, err)

	if err != nil {
		instrumentation.RecordError(span, err)
		r.logger.Warn("Provider call failed",
			"provider", provider,
			"operation", operation,
			"error", err)
		return err
	}

	instrumentation.SetSpanSuccess(span)
	r.logger.Debug("Provider call succeeded", "provider", provider, "operation", operation)
	return nil
}
