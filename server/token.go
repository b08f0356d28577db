package server

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/oauth2-core/grant"
	"github.com/giantswarm/oauth2-core/instrumentation"
	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
	"github.com/giantswarm/oauth2-core/security"
	"github.com/giantswarm/oauth2-core/service"
	"github.com/giantswarm/oauth2-core/validation"
)

const basicChallenge = `Basic realm="Service"`

// TokenOptions configures the token endpoint flow.
type TokenOptions struct {
	// Service is required. Grant types assert the additional capabilities
	// they need when they are dispatched.
	Service service.TokenEndpointService

	// AccessTokenLifetime is required. Client lifetimes take precedence.
	AccessTokenLifetime time.Duration

	// RefreshTokenLifetime applies to clients without their own lifetime;
	// zero issues refresh tokens without expiry.
	RefreshTokenLifetime time.Duration

	// AllowExtendedTokenAttributes copies Token.Extra into the response.
	AllowExtendedTokenAttributes bool

	// RequireClientAuthentication overrides, per grant type, whether a
	// client secret is mandatory. Grant types not listed require one.
	RequireClientAuthentication map[string]bool

	// PersistentRefreshTokens disables refresh token rotation.
	PersistentRefreshTokens bool

	// ExtendedGrantTypes adds or replaces grant types on top of
	// grant.DefaultRegistry().
	ExtendedGrantTypes grant.Registry

	Logger          *slog.Logger
	Auditor         *security.Auditor
	Instrumentation *instrumentation.Instrumentation
	Now             func() time.Time
}

// TokenHandler implements the token endpoint.
type TokenHandler struct {
	opts       TokenOptions
	grantTypes grant.Registry
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *instrumentation.Metrics
	now        func() time.Time
}

// NewTokenHandler validates opts and returns a handler.
func NewTokenHandler(opts TokenOptions) (*TokenHandler, error) {
	if opts.AccessTokenLifetime <= 0 {
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `accessTokenLifetime`")
	}
	if opts.Service == nil {
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `service`")
	}

	h := &TokenHandler{
		opts:       opts,
		grantTypes: grant.DefaultRegistry().With(opts.ExtendedGrantTypes),
		logger:     opts.Logger,
		tracer:     opts.Instrumentation.Tracer("server"),
		metrics:    opts.Instrumentation.Metrics(),
		now:        opts.Now,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h, nil
}

// Handle authenticates the client, dispatches the grant and writes the
// bearer token response into result. Failures are written into result as
// an error response and also returned.
func (h *TokenHandler) Handle(ctx context.Context, params *model.Params, result *model.Result) (*model.Token, error) {
	if params == nil {
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `request`")
	}
	if result == nil {
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `response`")
	}

	start := time.Now()
	ctx, span := h.tracer.Start(ctx, "oauth.token")
	defer span.End()
	defer func() {
		h.metrics.RecordFlowDuration(ctx, instrumentation.FlowToken, float64(time.Since(start).Milliseconds()))
	}()

	result.SetHeader("Cache-Control", "no-store")
	result.SetHeader("Pragma", "no-cache")

	grantType := params.Body("grant_type")
	span.SetAttributes(attribute.String(instrumentation.AttrGrantType, grantType))

	token, client, err := h.handle(ctx, params, result, grantType)
	if err != nil {
		oe := oautherr.Wrap(err)
		result.SetError(oe)

		h.logger.Warn("Token request failed",
			"client_id", clientID(client),
			"grant_type", grantType,
			"error", oe.Code,
			"description", oe.Description)
		if oe.Kind == oautherr.KindInvalidClient {
			h.opts.Auditor.LogAuthFailure("", params.Body("client_id"), "", oe.Code)
		}
		instrumentation.RecordError(span, oe)
		instrumentation.AddOAuthErrorAttributes(span, oe.Code, oe.Description)
		h.metrics.RecordFlowError(ctx, instrumentation.FlowToken, oe.Code)
		return nil, oe
	}

	h.opts.Auditor.LogTokenIssued(token.User.ID, client.ID, grantType, token.Scope)
	h.metrics.RecordTokenIssued(ctx, grantType, client.ID)
	if grantType == grant.TypeRefreshToken {
		h.metrics.RecordTokenRefresh(ctx, client.ID, !h.opts.PersistentRefreshTokens)
	}
	instrumentation.AddOAuthFlowAttributes(span, client.ID, token.User.ID, token.Scope)
	span.SetAttributes(attribute.Int64(instrumentation.AttrExpiresIn, int64(token.AccessTokenExpiresAt.Sub(h.now()).Seconds())))
	instrumentation.SetSpanSuccess(span)
	h.logger.Debug("Token issued", "client_id", client.ID, "grant_type", grantType)
	return token, nil
}

func (h *TokenHandler) handle(ctx context.Context, params *model.Params, result *model.Result, grantType string) (*model.Token, *model.Client, error) {
	if params.Method() != http.MethodPost {
		return nil, nil, oautherr.ErrInvalidRequest("Invalid request: method must be POST")
	}
	if !params.IsForm() {
		return nil, nil, oautherr.ErrInvalidRequest("Invalid request: content must be application/x-www-form-urlencoded")
	}

	client, err := h.getClient(ctx, params, result, grantType)
	if err != nil {
		return nil, nil, err
	}

	token, err := h.handleGrantType(ctx, params, client, grantType)
	if err != nil {
		return nil, client, err
	}

	tokenModel, err := model.NewTokenModel(token, h.opts.AllowExtendedTokenAttributes, h.now())
	if err != nil {
		return nil, client, err
	}
	result.SetBody(tokenModel.Bearer().Fields())
	return token, client, nil
}

type clientCredentials struct {
	id     string
	secret string
}

func (h *TokenHandler) getClient(ctx context.Context, params *model.Params, result *model.Result, grantType string) (*model.Client, error) {
	creds, err := h.getClientCredentials(params, grantType)
	if err != nil {
		return nil, err
	}

	if creds.id == "" {
		return nil, oautherr.ErrInvalidRequest("Missing parameter: `client_id`")
	}
	if h.isClientAuthenticationRequired(grantType) && creds.secret == "" {
		return nil, oautherr.ErrInvalidRequest("Missing parameter: `client_secret`")
	}
	if !validation.IsVSChar(creds.id) {
		return nil, oautherr.ErrInvalidRequest("Invalid parameter: `client_id`")
	}
	if creds.secret != "" && !validation.IsVSChar(creds.secret) {
		return nil, oautherr.ErrInvalidRequest("Invalid parameter: `client_secret`")
	}

	client, err := h.opts.Service.GetClient(ctx, creds.id, creds.secret)
	if err != nil {
		return nil, err
	}
	if client == nil {
		oe := oautherr.ErrInvalidClient("Invalid client: client is invalid")
		if params.Header("Authorization") != "" {
			result.SetHeader(headerWWWAuthenticate, basicChallenge)
			return nil, oe.WithStatus(http.StatusUnauthorized)
		}
		return nil, oe
	}
	if client.Grants == nil {
		return nil, oautherr.ErrServerError("Server error: missing client `grants`")
	}

	return client, nil
}

// getClientCredentials reads HTTP Basic credentials first, then the body
// (RFC 6749 section 2.3.1).
func (h *TokenHandler) getClientCredentials(params *model.Params, grantType string) (clientCredentials, error) {
	if creds, ok := parseBasicAuth(params.Header("Authorization")); ok {
		return creds, nil
	}

	id := params.Body("client_id")
	secret := params.Body("client_secret")
	if id != "" && secret != "" {
		return clientCredentials{id: id, secret: secret}, nil
	}
	if id != "" && !h.isClientAuthenticationRequired(grantType) {
		return clientCredentials{id: id}, nil
	}

	return clientCredentials{}, oautherr.ErrInvalidClient("Invalid client: cannot retrieve client credentials")
}

// parseBasicAuth decodes an HTTP Basic Authorization header. Client IDs and
// secrets are form-urlencoded before base64 encoding.
func parseBasicAuth(header string) (clientCredentials, bool) {
	const prefix = "basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return clientCredentials{}, false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return clientCredentials{}, false
	}
	id, secret, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return clientCredentials{}, false
	}

	return clientCredentials{id: unescapeCredential(id), secret: unescapeCredential(secret)}, true
}

func unescapeCredential(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}

func (h *TokenHandler) isClientAuthenticationRequired(grantType string) bool {
	if required, ok := h.opts.RequireClientAuthentication[grantType]; ok {
		return required
	}
	return true
}

func (h *TokenHandler) handleGrantType(ctx context.Context, params *model.Params, client *model.Client, grantType string) (*model.Token, error) {
	if grantType == "" {
		return nil, oautherr.ErrInvalidRequest("Missing parameter: `grant_type`")
	}
	if !validation.IsNChar(grantType) && !validation.IsURI(grantType) {
		return nil, oautherr.ErrInvalidRequest("Invalid parameter: `grant_type`")
	}

	factory, ok := h.grantTypes[grantType]
	if !ok {
		return nil, oautherr.ErrUnsupportedGrantType("Unsupported grant type: `grant_type` is invalid")
	}
	if !client.HasGrant(grantType) {
		return nil, oautherr.ErrUnauthorizedClient("Unauthorized client: `grant_type` is invalid")
	}

	handler, err := factory(grant.Options{
		AccessTokenLifetime:     h.accessTokenLifetime(client),
		RefreshTokenLifetime:    h.refreshTokenLifetime(client),
		PersistentRefreshTokens: h.opts.PersistentRefreshTokens,
		Service:                 h.opts.Service,
		Logger:                  h.logger,
		Auditor:                 h.opts.Auditor,
		Now:                     h.now,
	})
	if err != nil {
		return nil, err
	}

	return handler.Handle(ctx, params, client)
}

func (h *TokenHandler) accessTokenLifetime(client *model.Client) time.Duration {
	if client.AccessTokenLifetime > 0 {
		return client.AccessTokenLifetime
	}
	return h.opts.AccessTokenLifetime
}

func (h *TokenHandler) refreshTokenLifetime(client *model.Client) time.Duration {
	if client.RefreshTokenLifetime > 0 {
		return client.RefreshTokenLifetime
	}
	return h.opts.RefreshTokenLifetime
}
