package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth2-core/instrumentation"
	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
	"github.com/giantswarm/oauth2-core/service"
)

// Options configures a Service.
type Options struct {
	// Store holds the records. Required.
	Store Store

	// Identity resolves upstream identities for the proxy grant. Without it
	// the proxy grant rejects every provider.
	Identity service.ExternalIdentity

	// BcryptCost is used when registering clients and users. Zero selects
	// bcrypt.DefaultCost.
	BcryptCost int

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Instrumentation records storage spans, operation metrics and, for
	// stores implementing Sizes, record counts. Optional.
	Instrumentation *instrumentation.Instrumentation

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service implements the complete OAuth service collaborator on top of a
// Store: secrets are verified with bcrypt, client scopes are enforced and
// records are mapped to and from the model types.
type Service struct {
	store    Store
	identity service.ExternalIdentity
	cost     int
	logger   *slog.Logger
	inst     *instrumentation.Instrumentation
	tracer   trace.Tracer
	now      func() time.Time
}

var _ service.Service = (*Service)(nil)

// NewService returns a Service over opts.Store.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}

	s := &Service{
		store:    opts.Store,
		identity: opts.Identity,
		cost:     opts.BcryptCost,
		logger:   opts.Logger,
		inst:     opts.Instrumentation,
		tracer:   opts.Instrumentation.Tracer("storage"),
		now:      opts.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}

	if sizes, ok := opts.Store.(Sizes); ok {
		err := s.inst.RegisterStorageSizeCallbacks(instrumentation.StorageSizes{
			AccessTokens:       sizes.CountAccessTokens,
			RefreshTokens:      sizes.CountRefreshTokens,
			AuthorizationCodes: sizes.CountAuthorizationCodes,
			Clients:            sizes.CountClients,
			Users:              sizes.CountUsers,
		})
		if err != nil {
			s.logger.Warn("Failed to register storage size callbacks", "error", err)
		}
	}

	return s, nil
}

// Store returns the underlying record store.
func (s *Service) Store() Store {
	return s.store
}

// ClientSpec describes a client to register.
type ClientSpec struct {
	// ID is generated when empty.
	ID string
	// Secret is hashed before it is stored. Empty registers a public client.
	Secret               string
	Grants               []string
	RedirectURIs         []string
	Scope                string
	AccessTokenLifetime  time.Duration
	RefreshTokenLifetime time.Duration
}

// RegisterClient stores a new client and returns its model view.
func (s *Service) RegisterClient(ctx context.Context, spec ClientSpec) (*model.Client, error) {
	if len(spec.Grants) == 0 {
		return nil, errors.New("client must allow at least one grant type")
	}

	now := s.now()
	rec := &Client{
		ID:                   spec.ID,
		Grants:               slices.Clone(spec.Grants),
		RedirectURIs:         slices.Clone(spec.RedirectURIs),
		Scope:                spec.Scope,
		AccessTokenLifetime:  spec.AccessTokenLifetime,
		RefreshTokenLifetime: spec.RefreshTokenLifetime,
		CreatedAt:            now,
	}
	if rec.ID == "" {
		rec.ID = NewID(now)
	}
	if spec.Secret != "" {
		hash, err := HashSecret(spec.Secret, s.cost)
		if err != nil {
			return nil, err
		}
		rec.SecretHash = hash
	}

	err := s.observe(ctx, "create_client", func(ctx context.Context) error {
		return s.store.CreateClient(ctx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client %s: %w", rec.ID, err)
	}

	s.logger.Info("Registered client", "client_id", rec.ID, "grants", rec.Grants)
	return clientModel(rec), nil
}

// RegisterUser stores a new resource owner and returns its model view.
func (s *Service) RegisterUser(ctx context.Context, username, password string, claims map[string]any) (*model.User, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	hash, err := HashSecret(password, s.cost)
	if err != nil {
		return nil, err
	}
	now := s.now()
	rec := &User{
		ID:           NewID(now),
		Username:     username,
		PasswordHash: hash,
		Claims:       claims,
		CreatedAt:    now,
	}

	err = s.observe(ctx, "create_user", func(ctx context.Context) error {
		return s.store.CreateUser(ctx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", username, err)
	}

	return &model.User{ID: rec.ID, Username: rec.Username, Claims: rec.Claims}, nil
}

// GetClient returns the client when clientSecret matches. An empty secret
// skips verification; the token flow only passes one when the grant does
// not require client authentication.
func (s *Service) GetClient(ctx context.Context, clientID, clientSecret string) (*model.Client, error) {
	rec, err := s.client(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if clientSecret == "" {
		if rec == nil {
			return nil, nil
		}
		return clientModel(rec), nil
	}

	hash := ""
	if rec != nil {
		hash = rec.SecretHash
	}
	ok, err := CheckSecret(hash, clientSecret)
	if err != nil {
		return nil, err
	}
	if !ok || rec == nil {
		return nil, nil
	}
	return clientModel(rec), nil
}

// GetClientByID returns the client without verifying a secret.
func (s *Service) GetClientByID(ctx context.Context, clientID string) (*model.Client, error) {
	rec, err := s.client(ctx, clientID)
	if err != nil || rec == nil {
		return nil, err
	}
	return clientModel(rec), nil
}

// GetUserFromClient returns the service account a client acts as under the
// client_credentials grant.
func (s *Service) GetUserFromClient(_ context.Context, client *model.Client) (*model.User, error) {
	return &model.User{ID: "client:" + client.ID, Username: client.ID}, nil
}

// GetUser returns the user when password matches.
func (s *Service) GetUser(ctx context.Context, username, password string) (*model.User, error) {
	var rec *User
	err := s.observe(ctx, "get_user", func(ctx context.Context) error {
		var err error
		rec, err = s.store.UserByUsername(ctx, username)
		return err
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash := ""
	if rec != nil {
		hash = rec.PasswordHash
	}
	ok, err := CheckSecret(hash, password)
	if err != nil {
		return nil, err
	}
	if !ok || rec == nil {
		return nil, nil
	}
	return &model.User{ID: rec.ID, Username: rec.Username, Claims: rec.Claims}, nil
}

// GetAccessToken returns the token record for accessToken.
func (s *Service) GetAccessToken(ctx context.Context, accessToken string) (*model.Token, error) {
	var rec *Token
	err := s.observe(ctx, "get_access_token", func(ctx context.Context) error {
		var err error
		rec, err = s.store.TokenByAccessToken(ctx, accessToken)
		return err
	})
	if rec == nil || err != nil {
		return nil, notFoundIsNil(err)
	}

	client, err := s.GetClientByID(ctx, rec.ClientID)
	if err != nil || client == nil {
		return nil, err
	}

	return &model.Token{
		AccessToken:           rec.AccessToken,
		AccessTokenExpiresAt:  rec.AccessTokenExpiresAt,
		RefreshToken:          rec.RefreshToken,
		RefreshTokenExpiresAt: rec.RefreshTokenExpiresAt,
		AuthorizationCode:     rec.AuthorizationCode,
		Scope:                 rec.Scope,
		Client:                client,
		User:                  &model.User{ID: rec.UserID, Username: rec.Username},
	}, nil
}

// GetRefreshToken returns the refresh token record.
func (s *Service) GetRefreshToken(ctx context.Context, refreshToken string) (*model.RefreshToken, error) {
	var rec *Token
	err := s.observe(ctx, "get_refresh_token", func(ctx context.Context) error {
		var err error
		rec, err = s.store.TokenByRefreshToken(ctx, refreshToken)
		return err
	})
	if rec == nil || err != nil {
		return nil, notFoundIsNil(err)
	}

	client, err := s.GetClientByID(ctx, rec.ClientID)
	if err != nil || client == nil {
		return nil, err
	}

	return &model.RefreshToken{
		RefreshToken: rec.RefreshToken,
		ExpiresAt:    rec.RefreshTokenExpiresAt,
		Scope:        rec.Scope,
		Client:       client,
		User:         &model.User{ID: rec.UserID, Username: rec.Username},
	}, nil
}

// GetAuthorizationCode returns the authorization code record.
func (s *Service) GetAuthorizationCode(ctx context.Context, code string) (*model.AuthorizationCode, error) {
	var rec *AuthorizationCode
	err := s.observe(ctx, "get_authorization_code", func(ctx context.Context) error {
		var err error
		rec, err = s.store.AuthorizationCode(ctx, code)
		return err
	})
	if rec == nil || err != nil {
		return nil, notFoundIsNil(err)
	}

	client, err := s.GetClientByID(ctx, rec.ClientID)
	if err != nil || client == nil {
		return nil, err
	}

	return &model.AuthorizationCode{
		Code:        rec.Code,
		ExpiresAt:   rec.ExpiresAt,
		RedirectURI: rec.RedirectURI,
		Scope:       rec.Scope,
		Client:      client,
		User:        &model.User{ID: rec.UserID, Username: rec.Username},
	}, nil
}

// SaveToken persists token for client and user.
func (s *Service) SaveToken(ctx context.Context, token *model.Token, client *model.Client, user *model.User) (*model.Token, error) {
	rec := &Token{
		AccessToken:           token.AccessToken,
		AccessTokenExpiresAt:  token.AccessTokenExpiresAt,
		RefreshToken:          token.RefreshToken,
		RefreshTokenExpiresAt: token.RefreshTokenExpiresAt,
		AuthorizationCode:     token.AuthorizationCode,
		Scope:                 token.Scope,
		ClientID:              client.ID,
		UserID:                user.ID,
		Username:              user.Username,
		CreatedAt:             s.now(),
	}

	err := s.observe(ctx, "save_token", func(ctx context.Context) error {
		return s.store.SaveToken(ctx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	saved := *token
	saved.Client = client
	saved.User = user
	return &saved, nil
}

// SaveAuthorizationCode persists code for client and user.
func (s *Service) SaveAuthorizationCode(ctx context.Context, code *model.AuthorizationCode, client *model.Client, user *model.User) (*model.AuthorizationCode, error) {
	rec := &AuthorizationCode{
		Code:        code.Code,
		ExpiresAt:   code.ExpiresAt,
		RedirectURI: code.RedirectURI,
		Scope:       code.Scope,
		ClientID:    client.ID,
		UserID:      user.ID,
		Username:    user.Username,
		CreatedAt:   s.now(),
	}

	err := s.observe(ctx, "save_authorization_code", func(ctx context.Context) error {
		return s.store.SaveAuthorizationCode(ctx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save authorization code: %w", err)
	}

	saved := *code
	saved.Client = client
	saved.User = user
	return &saved, nil
}

// RevokeToken deletes the refresh token. The paired access token stays
// valid until it expires.
func (s *Service) RevokeToken(ctx context.Context, token *model.RefreshToken) (bool, error) {
	var deleted bool
	err := s.observe(ctx, "revoke_token", func(ctx context.Context) error {
		var err error
		deleted, err = s.store.DeleteRefreshToken(ctx, token.RefreshToken)
		return err
	})
	return deleted, err
}

// RevokeAuthorizationCode deletes the code.
func (s *Service) RevokeAuthorizationCode(ctx context.Context, code *model.AuthorizationCode) (bool, error) {
	var deleted bool
	err := s.observe(ctx, "revoke_authorization_code", func(ctx context.Context) error {
		var err error
		deleted, err = s.store.DeleteAuthorizationCode(ctx, code.Code)
		return err
	})
	return deleted, err
}

// VerifyScope reports whether the token's scope covers every required scope.
func (s *Service) VerifyScope(_ context.Context, token *model.Token, scope string) (bool, error) {
	return HasScopes(token.Scope, scope), nil
}

// ValidateScope restricts requests to the client's registered scope.
func (s *Service) ValidateScope(_ context.Context, _ *model.User, client *model.Client, scope string) (string, bool, error) {
	granted, ok := GrantScope(client.Scope, scope)
	return granted, ok, nil
}

// ExchangeAccessTokenByCode delegates to the configured identity resolver.
func (s *Service) ExchangeAccessTokenByCode(ctx context.Context, provider, code, state string) (*oauth2.Token, error) {
	if s.identity == nil {
		return nil, errNoProviders()
	}
	return s.identity.ExchangeAccessTokenByCode(ctx, provider, code, state)
}

// GetUserByAccessToken delegates to the configured identity resolver.
func (s *Service) GetUserByAccessToken(ctx context.Context, provider string, token *oauth2.Token) (*model.User, error) {
	if s.identity == nil {
		return nil, errNoProviders()
	}
	return s.identity.GetUserByAccessToken(ctx, provider, token)
}

func errNoProviders() error {
	return oautherr.ErrInvalidRequest("Invalid parameter: `provider` is not supported")
}

func (s *Service) client(ctx context.Context, clientID string) (*Client, error) {
	var rec *Client
	err := s.observe(ctx, "get_client", func(ctx context.Context) error {
		var err error
		rec, err = s.store.Client(ctx, clientID)
		return err
	})
	if err != nil {
		return nil, notFoundIsNil(err)
	}
	return rec, nil
}

func clientModel(rec *Client) *model.Client {
	grants := rec.Grants
	if grants == nil {
		grants = []string{}
	}
	return &model.Client{
		ID:                   rec.ID,
		Grants:               slices.Clone(grants),
		RedirectURIs:         slices.Clone(rec.RedirectURIs),
		Scope:                rec.Scope,
		AccessTokenLifetime:  rec.AccessTokenLifetime,
		RefreshTokenLifetime: rec.RefreshTokenLifetime,
	}
}

func notFoundIsNil(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// observe runs one store operation inside a span and records its outcome.
func (s *Service) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "storage."+operation)
	defer span.End()
	instrumentation.AddStorageAttributes(span, operation, s.store.Name())

	start := time.Now()
	err := fn(ctx)
	durationMs := float64(time.Since(start).Milliseconds())

	result := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
		instrumentation.SetSpanSuccess(span)
	case err != nil:
		result = "error"
		instrumentation.RecordError(span, err)
		s.logger.Error("Storage operation failed",
			"operation", operation,
			"backend", s.store.Name(),
			"error", err)
	default:
		instrumentation.SetSpanSuccess(span)
	}
	span.SetAttributes(attribute.String(instrumentation.AttrStorageResult, result))

	s.inst.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
	return err
}
