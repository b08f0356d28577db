package server

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/oauth2-core/instrumentation"
	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
	"github.com/giantswarm/oauth2-core/service"
)

const (
	headerAcceptedScopes   = "X-Accepted-OAuth-Scopes"
	headerAuthorizedScopes = "X-OAuth-Scopes"
	headerWWWAuthenticate  = "WWW-Authenticate"

	bearerChallenge = `Bearer realm="Service"`
)

var bearerHeaderPattern = regexp.MustCompile(`(?i)^bearer\s+(\S+)$`)

// AuthenticateOptions configures the bearer token authentication flow.
type AuthenticateOptions struct {
	// Service is required.
	Service service.AccessTokenGetter

	// Scope, when set, must be covered by the token. The service must then
	// implement service.ScopeVerifier.
	Scope string

	AddAcceptedScopesHeader   bool
	AddAuthorizedScopesHeader bool

	// AllowBearerTokensInQueryString permits the access_token query
	// parameter (RFC 6750 section 2.3). Off by default.
	AllowBearerTokensInQueryString bool

	Logger          *slog.Logger
	Instrumentation *instrumentation.Instrumentation
	Now             func() time.Time
}

// AuthenticateHandler authenticates a request by its bearer token.
type AuthenticateHandler struct {
	opts     AuthenticateOptions
	service  service.AccessTokenGetter
	verifier service.ScopeVerifier
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *instrumentation.Metrics
	now      func() time.Time
}

// NewAuthenticateHandler validates opts and returns a handler.
func NewAuthenticateHandler(opts AuthenticateOptions) (*AuthenticateHandler, error) {
	if opts.Service == nil {
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `service`")
	}

	h := &AuthenticateHandler{
		opts:    opts,
		service: opts.Service,
		logger:  opts.Logger,
		tracer:  opts.Instrumentation.Tracer("server"),
		metrics: opts.Instrumentation.Metrics(),
		now:     opts.Now,
	}

	if opts.Scope != "" {
		v, ok := opts.Service.(service.ScopeVerifier)
		if !ok {
			return nil, oautherr.ErrInvalidArgument("Invalid argument: service does not implement `VerifyScope()`")
		}
		h.verifier = v
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h, nil
}

// Handle authenticates the request and returns its access token record.
//
// When no credentials were supplied the result is filled with a 401 and a
// Bearer challenge; the unauthorized_request error is still returned.
func (h *AuthenticateHandler) Handle(ctx context.Context, params *model.Params, result *model.Result) (*model.Token, error) {
	if params == nil {
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `request`")
	}
	if result == nil {
		return nil, oautherr.ErrInvalidArgument("Missing parameter: `response`")
	}

	start := time.Now()
	ctx, span := h.tracer.Start(ctx, "oauth.authenticate")
	defer span.End()

	token, err := h.authenticate(ctx, params, result)
	h.metrics.RecordFlowDuration(ctx, instrumentation.FlowAuthenticate, float64(time.Since(start).Milliseconds()))
	if err != nil {
		oe := oautherr.Wrap(err)
		if oe.Kind == oautherr.KindUnauthorizedRequest {
			result.SetError(oe)
			result.SetHeader(headerWWWAuthenticate, bearerChallenge)
		}
		h.logger.Debug("Bearer authentication failed", "error", oe.Code, "description", oe.Description)
		instrumentation.RecordError(span, oe)
		instrumentation.AddOAuthErrorAttributes(span, oe.Code, oe.Description)
		h.metrics.RecordAuthenticate(ctx, oe.Code)
		return nil, oe
	}

	instrumentation.AddOAuthFlowAttributes(span, clientID(token.Client), token.User.ID, token.Scope)
	instrumentation.SetSpanSuccess(span)
	h.metrics.RecordAuthenticate(ctx, "success")
	return token, nil
}

// ResolveUser adapts the handler to UserResolver for the authorize flow.
func (h *AuthenticateHandler) ResolveUser(ctx context.Context, params *model.Params, result *model.Result) (*model.User, error) {
	token, err := h.Handle(ctx, params, result)
	if err != nil {
		return nil, err
	}
	return token.User, nil
}

func (h *AuthenticateHandler) authenticate(ctx context.Context, params *model.Params, result *model.Result) (*model.Token, error) {
	bearer, err := h.tokenFromParams(params)
	if err != nil {
		return nil, err
	}

	token, err := h.service.GetAccessToken(ctx, bearer)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, oautherr.ErrInvalidToken("Invalid token: access token is invalid")
	}
	if token.User == nil {
		return nil, oautherr.ErrServerError("Server error: `getAccessToken()` did not return a `user` object")
	}

	if token.AccessTokenExpiresAt.IsZero() {
		return nil, oautherr.ErrServerError("Server error: `accessTokenExpiresAt` must be a valid instant")
	}
	if token.AccessTokenExpiresAt.Before(h.now()) {
		return nil, oautherr.ErrInvalidToken("Invalid token: access token has expired")
	}

	if h.verifier != nil {
		ok, err := h.verifier.VerifyScope(ctx, token, h.opts.Scope)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, oautherr.ErrInsufficientScope("Insufficient scope: authorized scope is insufficient")
		}
		if h.opts.AddAcceptedScopesHeader {
			result.SetHeader(headerAcceptedScopes, h.opts.Scope)
		}
		if h.opts.AddAuthorizedScopesHeader {
			result.SetHeader(headerAuthorizedScopes, token.Scope)
		}
	}

	return token, nil
}

// tokenFromParams enforces that exactly one of the header, query and body
// carries the token (RFC 6750 section 2).
func (h *AuthenticateHandler) tokenFromParams(params *model.Params) (string, error) {
	header := params.Header("Authorization")
	query := params.Query("access_token")
	body := params.Body("access_token")

	sources := 0
	for _, v := range []string{header, query, body} {
		if v != "" {
			sources++
		}
	}

	switch {
	case sources > 1:
		return "", oautherr.ErrInvalidRequest("Invalid request: only one authentication method is allowed")
	case header != "":
		m := bearerHeaderPattern.FindStringSubmatch(header)
		if m == nil {
			return "", oautherr.ErrInvalidRequest("Invalid request: malformed authorization header")
		}
		return m[1], nil
	case query != "":
		if !h.opts.AllowBearerTokensInQueryString {
			return "", oautherr.ErrInvalidRequest("Invalid request: do not send bearer tokens in query URLs")
		}
		return query, nil
	case body != "":
		if params.Method() == http.MethodGet {
			return "", oautherr.ErrInvalidRequest("Invalid request: token may not be passed in the body when using the GET verb")
		}
		if !params.IsForm() {
			return "", oautherr.ErrInvalidRequest("Invalid request: content must be application/x-www-form-urlencoded")
		}
		return body, nil
	}

	return "", oautherr.ErrUnauthorizedRequest("Unauthorized request: no authentication given")
}

func clientID(c *model.Client) string {
	if c == nil {
		return ""
	}
	return c.ID
}
