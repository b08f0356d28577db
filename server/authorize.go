package server

import (
	"context"
	"log/slog"
	"net/url"
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

// UserResolver resolves the resource owner of an authorization request.
type UserResolver interface {
	ResolveUser(ctx context.Context, params *model.Params, result *model.Result) (*model.User, error)
}

// UserResolverFunc adapts a function to UserResolver.
type UserResolverFunc func(ctx context.Context, params *model.Params, result *model.Result) (*model.User, error)

// ResolveUser calls f.
func (f UserResolverFunc) ResolveUser(ctx context.Context, params *model.Params, result *model.Result) (*model.User, error) {
	return f(ctx, params, result)
}

// AuthorizeOptions configures the authorization endpoint flow.
type AuthorizeOptions struct {
	// Service is required.
	Service service.AuthorizeService

	// AuthorizationCodeLifetime is required.
	AuthorizationCodeLifetime time.Duration

	// AllowEmptyState accepts requests without a state parameter.
	AllowEmptyState bool

	// UserResolver resolves the resource owner. When nil the request is
	// authenticated by bearer token, which requires Service to implement
	// service.AccessTokenGetter.
	UserResolver UserResolver

	// ResponseTypes defaults to DefaultResponseTypes().
	ResponseTypes ResponseTypes

	Logger          *slog.Logger
	Auditor         *security.Auditor
	Instrumentation *instrumentation.Instrumentation
	Now             func() time.Time
}

// AuthorizeHandler implements the authorization endpoint.
type AuthorizeHandler struct {
	opts          AuthorizeOptions
	service       service.AuthorizeService
	userResolver  UserResolver
	responseTypes ResponseTypes
	logger        *slog.Logger
	tracer        trace.Tracer
	metrics       *instrumentation.Metrics
	now           func() time.Time
}

// NewAuthorizeHandler validates opts and returns a handler.
func NewAuthorizeHandler(opts AuthorizeOptions) (*AuthorizeHandler, error) {
	if opts.AuthorizationCodeLifetime <= 0 {
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `authorizationCodeLifetime`")
	}
	if opts.Service == nil {
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `service`")
	}

	h := &AuthorizeHandler{
		opts:          opts,
		service:       opts.Service,
		userResolver:  opts.UserResolver,
		responseTypes: opts.ResponseTypes,
		logger:        opts.Logger,
		tracer:        opts.Instrumentation.Tracer("server"),
		metrics:       opts.Instrumentation.Metrics(),
		now:           opts.Now,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.responseTypes == nil {
		h.responseTypes = DefaultResponseTypes()
	}

	if h.userResolver == nil {
		getter, ok := opts.Service.(service.AccessTokenGetter)
		if !ok {
			return nil, oautherr.ErrInvalidArgument("Invalid argument: service does not implement `GetAccessToken()`")
		}
		authenticator, err := NewAuthenticateHandler(AuthenticateOptions{
			Service:         getter,
			Logger:          h.logger,
			Instrumentation: opts.Instrumentation,
			Now:             h.now,
		})
		if err != nil {
			return nil, err
		}
		h.userResolver = authenticator
	}

	return h, nil
}

// Handle runs the authorization request.
//
// Errors raised while resolving the client and its redirect URI are
// returned and nothing is written to result. Once the redirect target is
// known, every outcome is a redirect on result: either carrying the code or
// carrying error and error_description. In the error case Handle returns a
// nil code and a nil error.
func (h *AuthorizeHandler) Handle(ctx context.Context, params *model.Params, result *model.Result) (*model.AuthorizationCode, error) {
	if params == nil {
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `request`")
	}
	if result == nil {
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `response`")
	}

	start := time.Now()
	ctx, span := h.tracer.Start(ctx, "oauth.authorize")
	defer span.End()
	defer func() {
		h.metrics.RecordFlowDuration(ctx, instrumentation.FlowAuthorize, float64(time.Since(start).Milliseconds()))
	}()

	client, target, err := h.redirectTarget(ctx, params)
	if err != nil {
		oe := oautherr.Wrap(err)
		h.logger.Warn("Authorization request rejected before redirect", "client_id", requestParam(params, "client_id"), "error", oe.Code)
		h.recordFailure(ctx, span, oe)
		return nil, oe
	}
	instrumentation.AddOAuthFlowAttributes(span, client.ID, "", "")

	state := requestParam(params, "state")

	code, err := h.authorize(ctx, params, client, target, state, result)
	if err != nil {
		oe := oautherr.Wrap(err)
		if oe.Kind == oautherr.KindAccessDenied {
			h.opts.Auditor.LogAuthorizationDenied(client.ID)
		}
		h.logger.Debug("Authorization request failed", "client_id", client.ID, "error", oe.Code)
		h.recordFailure(ctx, span, oe)
		if rerr := h.redirectError(result, target, state, oe); rerr != nil {
			return nil, rerr
		}
		return nil, nil
	}

	h.opts.Auditor.LogAuthorizationCodeIssued(code.User.ID, client.ID, code.Scope)
	h.metrics.RecordAuthorizationCodeIssued(ctx, client.ID)
	instrumentation.SetSpanSuccess(span)
	h.logger.Debug("Authorization code issued", "client_id", client.ID)
	return code, nil
}

func (h *AuthorizeHandler) recordFailure(ctx context.Context, span trace.Span, oe *oautherr.Error) {
	instrumentation.RecordError(span, oe)
	instrumentation.AddOAuthErrorAttributes(span, oe.Code, oe.Description)
	h.metrics.RecordFlowError(ctx, instrumentation.FlowAuthorize, oe.Code)
}

// redirectTarget resolves the client and the URI the user agent is sent
// back to: the requested redirect_uri, or the client's first registered one.
func (h *AuthorizeHandler) redirectTarget(ctx context.Context, params *model.Params) (*model.Client, string, error) {
	id := requestParam(params, "client_id")
	if id == "" {
		return nil, "", oautherr.ErrInvalidRequest("Missing parameter: `client_id`")
	}
	if !validation.IsVSChar(id) {
		return nil, "", oautherr.ErrInvalidRequest("Invalid parameter: `client_id`")
	}

	redirectURI := requestParam(params, "redirect_uri")
	if redirectURI != "" && !validation.IsURI(redirectURI) {
		return nil, "", oautherr.ErrInvalidRequest("Invalid request: `redirect_uri` is not a valid URI")
	}

	client, err := h.service.GetClientByID(ctx, id)
	if err != nil {
		return nil, "", err
	}

	switch {
	case client == nil:
		return nil, "", oautherr.ErrInvalidClient("Invalid client: client credentials are invalid")
	case client.Grants == nil:
		return nil, "", oautherr.ErrInvalidClient("Invalid client: missing client `grants`")
	case !client.HasGrant(grant.TypeAuthorizationCode):
		return nil, "", oautherr.ErrUnauthorizedClient("Unauthorized client: `grant_type` is invalid")
	case len(client.RedirectURIs) == 0:
		return nil, "", oautherr.ErrInvalidClient("Invalid client: missing client `redirectUri`")
	case redirectURI != "" && !client.HasRedirectURI(redirectURI):
		return nil, "", oautherr.ErrInvalidClient("Invalid client: `redirect_uri` does not match client value")
	}

	if redirectURI == "" {
		redirectURI = client.RedirectURIs[0]
	}
	return client, redirectURI, nil
}

func (h *AuthorizeHandler) authorize(ctx context.Context, params *model.Params, client *model.Client, target, state string, result *model.Result) (*model.AuthorizationCode, error) {
	if requestParam(params, "allowed") == "false" {
		return nil, oautherr.ErrAccessDenied("Access denied: user denied access to application")
	}

	scope := requestParam(params, "scope")
	if scope != "" && !validation.IsNQSChar(scope) {
		return nil, oautherr.ErrInvalidScope("Invalid parameter: `scope`")
	}

	if state == "" && !h.opts.AllowEmptyState {
		return nil, oautherr.ErrInvalidRequest("Missing parameter: `state`")
	}
	if state != "" && !validation.IsVSChar(state) {
		return nil, oautherr.ErrInvalidRequest("Invalid parameter: `state`")
	}

	// The resolver gets its own result so a bearer challenge cannot leak
	// into the redirect.
	user, err := h.userResolver.ResolveUser(ctx, params, model.NewResult())
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, oautherr.ErrServerError("Server error: `handle()` did not return a `user` object")
	}

	value, err := h.generateAuthorizationCode(ctx, client, user, scope)
	if err != nil {
		return nil, err
	}
	expiresAt := h.now().Add(h.opts.AuthorizationCodeLifetime)

	responseType := requestParam(params, "response_type")
	if responseType == "" {
		return nil, oautherr.ErrInvalidRequest("Missing parameter: `response_type`")
	}
	newResponseType, ok := h.responseTypes[responseType]
	if !ok {
		return nil, oautherr.ErrUnsupportedResponseType("Unsupported response type: `response_type` is not supported")
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(instrumentation.AttrResponseType, responseType))

	code, err := h.service.SaveAuthorizationCode(ctx, &model.AuthorizationCode{
		Code:        value,
		ExpiresAt:   expiresAt,
		RedirectURI: target,
		Scope:       scope,
	}, client, user)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, oautherr.ErrServerError("Server error: `saveAuthorizationCode()` did not return a code")
	}
	if code.Client == nil || code.User == nil {
		filled := *code
		if filled.Client == nil {
			filled.Client = client
		}
		if filled.User == nil {
			filled.User = user
		}
		code = &filled
	}

	rt, err := newResponseType(code.Code)
	if err != nil {
		return nil, err
	}
	u, err := rt.BuildRedirectURI(target)
	if err != nil {
		return nil, err
	}
	if state != "" {
		q := u.Query()
		q.Set("state", state)
		u.RawQuery = q.Encode()
	}

	result.Redirect(u.String())
	return code, nil
}

func (h *AuthorizeHandler) generateAuthorizationCode(ctx context.Context, client *model.Client, user *model.User, scope string) (string, error) {
	if g, ok := h.service.(service.AuthorizationCodeGenerator); ok {
		code, err := g.GenerateAuthorizationCode(ctx, client, user, scope)
		if err != nil {
			return "", err
		}
		if code != "" {
			return code, nil
		}
	}
	return security.RandomToken(security.DefaultTokenBytes)
}

// redirectError sends the user agent back to target with the error in the
// query (RFC 6749 section 4.1.2.1). Any existing query is dropped.
func (h *AuthorizeHandler) redirectError(result *model.Result, target, state string, oe *oautherr.Error) error {
	u, err := url.Parse(target)
	if err != nil {
		return oautherr.ErrServerError("Server error: redirect URI cannot be parsed").WithCause(err)
	}

	q := url.Values{"error": {oe.Code}}
	if oe.Description != "" {
		q.Set("error_description", oe.Description)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()

	result.Redirect(u.String())
	return nil
}

// requestParam reads an authorization request parameter from the body or,
// for GET requests, the query string.
func requestParam(params *model.Params, name string) string {
	if v := params.Body(name); v != "" {
		return v
	}
	return params.Query(name)
}
