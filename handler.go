package oauth

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/oauth2-core/grant"
	"github.com/giantswarm/oauth2-core/instrumentation"
	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
	"github.com/giantswarm/oauth2-core/security"
	"github.com/giantswarm/oauth2-core/server"
)

// Handler adapts a Server to net/http.
type Handler struct {
	server  *Server
	logger  *slog.Logger
	tracer  trace.Tracer // OpenTelemetry tracer for HTTP layer
	metrics *instrumentation.Metrics
}

// NewHandler creates a new HTTP handler
func NewHandler(server *Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = server.logger
	}
	return &Handler{
		server:  server,
		logger:  logger,
		tracer:  server.Config.Instrumentation.Tracer("http"),
		metrics: server.Config.Instrumentation.Metrics(),
	}
}

// RegisterRoutes mounts the authorization, token and metadata endpoints on
// mux. Every route gets a request ID.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle(AuthorizePath, security.RequestIDMiddleware(http.HandlerFunc(h.ServeAuthorize)))
	mux.Handle(TokenPath, security.RequestIDMiddleware(http.HandlerFunc(h.ServeToken)))
	mux.Handle(MetadataPath, security.RequestIDMiddleware(http.HandlerFunc(h.ServeMetadata)))
}

// ServeToken handles the OAuth token endpoint
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := h.startSpan(r, "http.token")
	defer span.End()

	clientIP := h.clientIP(r)
	if h.checkIPRateLimit(ctx, w, clientIP, TokenPath) {
		h.finish(ctx, span, r, TokenPath, http.StatusTooManyRequests, start)
		return
	}

	result := model.NewResult()
	params, err := model.ParamsFromRequest(r)
	if err != nil {
		result.SetError(oautherr.ErrInvalidRequest("Invalid request: malformed body").WithCause(err))
	} else if _, err := h.server.Token(ctx, params, result); err != nil {
		oe := ensureError(result, err)
		h.logger.Debug("Token request failed",
			"request_id", security.GetRequestID(ctx),
			"error", oe.Code,
			"description", oe.Description)
	}

	h.write(w, result)
	h.finish(ctx, span, r, TokenPath, result.Status, start)
}

// ServeAuthorize handles the OAuth authorization endpoint. Successful
// requests and errors the client may see are answered with a redirect.
func (h *Handler) ServeAuthorize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := h.startSpan(r, "http.authorize")
	defer span.End()

	clientIP := h.clientIP(r)
	if h.checkIPRateLimit(ctx, w, clientIP, AuthorizePath) {
		h.finish(ctx, span, r, AuthorizePath, http.StatusTooManyRequests, start)
		return
	}

	result := model.NewResult()
	params, err := model.ParamsFromRequest(r)
	if err != nil {
		result.SetError(oautherr.ErrInvalidRequest("Invalid request: malformed body").WithCause(err))
	} else if _, err := h.server.Authorize(ctx, params, result); err != nil {
		oe := ensureError(result, err)
		h.logger.Debug("Authorization request failed",
			"request_id", security.GetRequestID(ctx),
			"error", oe.Code,
			"description", oe.Description)
	}

	h.write(w, result)
	h.finish(ctx, span, r, AuthorizePath, result.Status, start)
}

// ServeMetadata serves RFC 8414 Authorization Server Metadata.
func (h *Handler) ServeMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	issuer := strings.TrimSuffix(h.server.Config.Issuer, "/")
	metadata := AuthorizationServerMetadata{
		Issuer:                            issuer,
		AuthorizationEndpoint:             issuer + AuthorizePath,
		TokenEndpoint:                     issuer + TokenPath,
		ResponseTypesSupported:            slices.Sorted(maps.Keys(server.DefaultResponseTypes().With(h.server.Config.ResponseTypes))),
		GrantTypesSupported:               grant.DefaultRegistry().With(h.server.Config.ExtendedGrantTypes).Names(),
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post"},
	}

	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		h.logger.Error("Failed to encode metadata", "error", err)
	}
}

// RequireToken is middleware that rejects requests without a valid bearer
// token. scope, when not empty, must be covered by the token. The token is
// available to next through TokenFromContext.
func (h *Handler) RequireToken(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, span := h.startSpan(r, "http.authenticate")
			defer span.End()

			clientIP := h.clientIP(r)
			if h.checkIPRateLimit(ctx, w, clientIP, r.URL.Path) {
				h.finish(ctx, span, r, r.URL.Path, http.StatusTooManyRequests, start)
				return
			}

			result := model.NewResult()
			params, err := model.ParamsFromRequest(r)
			if err != nil {
				result.SetError(oautherr.ErrInvalidRequest("Invalid request: malformed body").WithCause(err))
				h.write(w, result)
				h.finish(ctx, span, r, r.URL.Path, result.Status, start)
				return
			}

			token, err := h.server.Authenticate(ctx, params, result, scope)
			if err != nil {
				oe := ensureError(result, err)
				if result.Header("WWW-Authenticate") == "" &&
					(oe.Status == http.StatusUnauthorized || oe.Status == http.StatusForbidden) {
					result.SetHeader("WWW-Authenticate", bearerErrorChallenge(oe))
				}
				h.logger.Debug("Bearer authentication rejected",
					"request_id", security.GetRequestID(ctx),
					"error", oe.Code)
				h.write(w, result)
				h.finish(ctx, span, r, r.URL.Path, result.Status, start)
				return
			}

			for name, values := range result.Headers() {
				w.Header()[name] = values
			}
			instrumentation.SetSpanSuccess(span)
			next.ServeHTTP(w, r.WithContext(ContextWithToken(ctx, token)))
		})
	}
}

func (h *Handler) startSpan(r *http.Request, name string) (context.Context, trace.Span) {
	ctx, span := h.tracer.Start(r.Context(), name)
	if id := security.GetRequestID(ctx); id != "" {
		span.SetAttributes(attribute.String(instrumentation.AttrRequestID, id))
	}
	return ctx, span
}

func (h *Handler) clientIP(r *http.Request) string {
	return security.GetClientIP(r, h.server.Config.RateLimit.TrustProxy, h.server.Config.RateLimit.TrustedProxyCount)
}

// checkIPRateLimit checks if the client IP is rate limited. Returns true if limited.
func (h *Handler) checkIPRateLimit(ctx context.Context, w http.ResponseWriter, clientIP, endpoint string) bool {
	if h.server.rateLimiter == nil || h.server.rateLimiter.Allow(clientIP) {
		return false
	}

	h.logger.Warn("Rate limit exceeded", "ip", clientIP, "endpoint", endpoint)
	h.metrics.RecordRateLimitExceeded(ctx, endpoint)
	h.server.auditor.LogRateLimitExceeded(clientIP, endpoint)

	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	w.Header().Set("Retry-After", rateLimitRetryAfter)
	writeJSONError(w, ErrorCodeRateLimitExceeded, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
	return true
}

func (h *Handler) write(w http.ResponseWriter, result *model.Result) {
	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	if err := result.Write(w); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}

func (h *Handler) finish(ctx context.Context, span trace.Span, r *http.Request, endpoint string, status int, start time.Time) {
	instrumentation.AddHTTPAttributes(span, r.Method, endpoint, status)
	if h.server.Config.Instrumentation.ShouldLogClientIPs() {
		instrumentation.AddSecurityAttributes(span, h.clientIP(r))
	}
	if status >= http.StatusBadRequest {
		instrumentation.SetSpanError(span, http.StatusText(status))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	h.metrics.RecordHTTPRequest(ctx, r.Method, endpoint, status, float64(time.Since(start).Milliseconds()))
}

type contextKey string

const tokenKey contextKey = "access_token"

// TokenFromContext retrieves the access token record RequireToken stored
// in the request context.
func TokenFromContext(ctx context.Context) (*model.Token, bool) {
	token, ok := ctx.Value(tokenKey).(*model.Token)
	return token, ok && token != nil
}

// ContextWithToken returns a context carrying token.
//
// WARNING: Outside tests, only RequireToken should set the token, after
// validating it.
func ContextWithToken(ctx context.Context, token *model.Token) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}
