package instrumentation

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrKind      = attribute.Key("kind")
	attrFlow      = attribute.Key("flow")
	attrErrorCode = attribute.Key("error")
	attrResult    = attribute.Key("result")
)

// Flow names used as the "flow" metric attribute and span name suffix.
const (
	FlowToken        = "token"
	FlowAuthorize    = "authorize"
	FlowAuthenticate = "authenticate"
)

// Metrics holds all metric instruments
type Metrics struct {
	// HTTP
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Flows
	TokenIssued        metric.Int64Counter
	TokenRefreshed     metric.Int64Counter
	TokenRevoked       metric.Int64Counter
	AuthorizationCodes metric.Int64Counter
	AuthenticateTotal  metric.Int64Counter
	FlowErrors         metric.Int64Counter
	FlowDuration       metric.Float64Histogram
	RateLimitExceeded  metric.Int64Counter
	AuditEventsTotal   metric.Int64Counter

	// Storage
	StorageOperationTotal    metric.Int64Counter
	StorageOperationDuration metric.Float64Histogram
	StorageSize              metric.Int64ObservableGauge

	// Providers
	ProviderAPICallsTotal metric.Int64Counter
	ProviderAPIDuration   metric.Float64Histogram
	ProviderAPIErrors     metric.Int64Counter
}

type instrumentSpec struct {
	name, description, unit string
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	httpMeter := inst.Meter("http")
	serverMeter := inst.Meter("server")
	storageMeter := inst.Meter("storage")
	providerMeter := inst.Meter("providers")

	counters := []struct {
		meter metric.Meter
		spec  instrumentSpec
		dst   *metric.Int64Counter
	}{
		{httpMeter, instrumentSpec{"oauth.http.requests.total", "Total number of HTTP requests", "{request}"}, &m.HTTPRequestsTotal},
		{serverMeter, instrumentSpec{"oauth.token.issued", "Number of tokens issued by the token endpoint", "{token}"}, &m.TokenIssued},
		{serverMeter, instrumentSpec{"oauth.token.refreshed", "Number of refresh token exchanges", "{refresh}"}, &m.TokenRefreshed},
		{serverMeter, instrumentSpec{"oauth.token.revoked", "Number of codes and refresh tokens revoked", "{revocation}"}, &m.TokenRevoked},
		{serverMeter, instrumentSpec{"oauth.authorization_code.issued", "Number of authorization codes issued", "{code}"}, &m.AuthorizationCodes},
		{serverMeter, instrumentSpec{"oauth.authenticate.total", "Number of bearer token authentications", "{request}"}, &m.AuthenticateTotal},
		{serverMeter, instrumentSpec{"oauth.flow.errors", "Number of flow failures by error code", "{error}"}, &m.FlowErrors},
		{serverMeter, instrumentSpec{"oauth.rate_limit.exceeded", "Number of requests rejected by rate limiting", "{request}"}, &m.RateLimitExceeded},
		{serverMeter, instrumentSpec{"oauth.audit.events", "Number of audit events logged", "{event}"}, &m.AuditEventsTotal},
		{storageMeter, instrumentSpec{"storage.operation.total", "Total number of storage operations", "{operation}"}, &m.StorageOperationTotal},
		{providerMeter, instrumentSpec{"provider.api.calls.total", "Total number of provider API calls", "{call}"}, &m.ProviderAPICallsTotal},
		{providerMeter, instrumentSpec{"provider.api.errors.total", "Total number of provider API errors", "{error}"}, &m.ProviderAPIErrors},
	}
	for _, c := range counters {
		counter, err := c.meter.Int64Counter(c.spec.name, metric.WithDescription(c.spec.description), metric.WithUnit(c.spec.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.spec.name, err)
		}
		*c.dst = counter
	}

	histograms := []struct {
		meter metric.Meter
		spec  instrumentSpec
		dst   *metric.Float64Histogram
	}{
		{httpMeter, instrumentSpec{"oauth.http.request.duration", "HTTP request duration in milliseconds", "ms"}, &m.HTTPRequestDuration},
		{serverMeter, instrumentSpec{"oauth.flow.duration", "Flow duration in milliseconds", "ms"}, &m.FlowDuration},
		{storageMeter, instrumentSpec{"storage.operation.duration", "Storage operation duration in milliseconds", "ms"}, &m.StorageOperationDuration},
		{providerMeter, instrumentSpec{"provider.api.duration", "Provider API call duration in milliseconds", "ms"}, &m.ProviderAPIDuration},
	}
	for _, h := range histograms {
		histogram, err := h.meter.Float64Histogram(h.spec.name, metric.WithDescription(h.spec.description), metric.WithUnit(h.spec.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s histogram: %w", h.spec.name, err)
		}
		*h.dst = histogram
	}

	var err error
	m.StorageSize, err = storageMeter.Int64ObservableGauge(
		"storage.size",
		metric.WithDescription("Number of records held by the storage backend"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.size gauge: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, endpoint string, statusCode int, durationMs float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("endpoint", endpoint),
		attribute.String("status", strconv.Itoa(statusCode)),
	))
	m.HTTPRequestDuration.Record(ctx, durationMs, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordTokenIssued records a token issued by the token endpoint
func (m *Metrics) RecordTokenIssued(ctx context.Context, grantType, clientID string) {
	if m == nil {
		return
	}
	m.TokenIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGrantType, grantType),
		attribute.String(AttrClientID, clientID),
	))
}

// RecordTokenRefresh records a refresh token exchange
func (m *Metrics) RecordTokenRefresh(ctx context.Context, clientID string, rotated bool) {
	if m == nil {
		return
	}
	m.TokenRefreshed.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClientID, clientID),
		attribute.Bool("rotated", rotated),
	))
}

// RecordTokenRevocation records the revocation of a code or refresh token
func (m *Metrics) RecordTokenRevocation(ctx context.Context, tokenType string) {
	if m == nil {
		return
	}
	m.TokenRevoked.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrTokenType, tokenType)))
}

// RecordAuthorizationCodeIssued records an authorization code issued
func (m *Metrics) RecordAuthorizationCodeIssued(ctx context.Context, clientID string) {
	if m == nil {
		return
	}
	m.AuthorizationCodes.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrClientID, clientID)))
}

// RecordAuthenticate records a bearer token authentication; result is
// "success" or the error code.
func (m *Metrics) RecordAuthenticate(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.AuthenticateTotal.Add(ctx, 1, metric.WithAttributes(attrResult.String(result)))
}

// RecordFlowError records a flow failure by its wire error code
func (m *Metrics) RecordFlowError(ctx context.Context, flow, errorCode string) {
	if m == nil {
		return
	}
	m.FlowErrors.Add(ctx, 1, metric.WithAttributes(attrFlow.String(flow), attrErrorCode.String(errorCode)))
}

// RecordFlowDuration records how long a flow took
func (m *Metrics) RecordFlowDuration(ctx context.Context, flow string, durationMs float64) {
	if m == nil {
		return
	}
	m.FlowDuration.Record(ctx, durationMs, metric.WithAttributes(attrFlow.String(flow)))
}

// RecordRateLimitExceeded records a rate limit violation
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.RateLimitExceeded.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrHTTPEndpoint, endpoint)))
}

// RecordAuditEvent records an audit event
func (m *Metrics) RecordAuditEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.AuditEventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, result string, durationMs float64) {
	if m == nil {
		return
	}
	m.StorageOperationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
	m.StorageOperationDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordProviderAPICall records a provider API call
func (m *Metrics) RecordProviderAPICall(ctx context.Context, provider, operation string, statusCode int, durationMs float64, err error) {
	if m == nil {
		return
	}
	m.ProviderAPICallsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("operation", operation),
		attribute.String("status", strconv.Itoa(statusCode)),
	))
	m.ProviderAPIDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("operation", operation),
	))
	if err != nil {
		m.ProviderAPIErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("operation", operation),
		))
	}
}
