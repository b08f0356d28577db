package instrumentation

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultServiceName is used when Config.ServiceName is empty.
	DefaultServiceName = "oauth2-core"

	// DefaultServiceVersion is the default service version used when none is provided
	DefaultServiceVersion = "unknown"

	instrumentationName = "github.com/giantswarm/oauth2-core/"
)

// Config holds instrumentation configuration
type Config struct {
	// ServiceName is the name of the service (e.g., "oauth2d")
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Enabled controls whether instrumentation is active.
	// When false, no-op providers are used.
	Enabled bool

	// LogClientIPs controls whether client IP addresses are attached to
	// spans. Client IPs may be personal data under GDPR.
	LogClientIPs bool

	// Resource allows custom resource attributes.
	// If nil, a resource with service name and version is created.
	Resource *resource.Resource

	// TracerProvider and MeterProvider override the global providers.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Instrumentation provides OpenTelemetry instrumentation components
type Instrumentation struct {
	config   Config
	resource *resource.Resource

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	metrics *Metrics

	shutdownFuncs []func(context.Context) error
	shutdownOnce  sync.Once
}

// New creates a new instrumentation instance
func New(config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = DefaultServiceVersion
	}

	res := config.Resource
	if res == nil {
		var err error
		res, err = resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(config.ServiceName),
				semconv.ServiceVersion(config.ServiceVersion),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
	}

	inst := &Instrumentation{
		config:   config,
		resource: res,
	}

	if config.Enabled {
		inst.initializeProviders()
	} else {
		inst.meterProvider = metricnoop.NewMeterProvider()
		inst.tracerProvider = tracenoop.NewTracerProvider()
	}

	var err error
	inst.metrics, err = newMetrics(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return inst, nil
}

// initializeProviders uses the injected providers, falling back to the
// global ones. Exporter setup belongs to the embedding application.
func (i *Instrumentation) initializeProviders() {
	i.tracerProvider = i.config.TracerProvider
	if i.tracerProvider == nil {
		i.tracerProvider = otel.GetTracerProvider()
	}
	i.meterProvider = i.config.MeterProvider
	if i.meterProvider == nil {
		i.meterProvider = otel.GetMeterProvider()
	}

	if sp, ok := i.tracerProvider.(interface{ Shutdown(context.Context) error }); ok && i.config.TracerProvider != nil {
		i.shutdownFuncs = append(i.shutdownFuncs, sp.Shutdown)
	}
}

// Shutdown flushes and shuts down injected providers that support it.
// Global providers are left alone.
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	if i == nil {
		return nil
	}

	var shutdownErr error
	i.shutdownOnce.Do(func() {
		for _, fn := range i.shutdownFuncs {
			if err := fn(ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})
	return shutdownErr
}

// Meter returns a named meter for the given scope, e.g. "server" or "storage".
func (i *Instrumentation) Meter(scope string) metric.Meter {
	if i == nil {
		return metricnoop.NewMeterProvider().Meter(instrumentationName + scope)
	}
	return i.meterProvider.Meter(instrumentationName + scope)
}

// Tracer returns a named tracer for the given scope. A nil Instrumentation
// returns a no-op tracer so callers never need to check.
func (i *Instrumentation) Tracer(scope string) trace.Tracer {
	if i == nil {
		return tracenoop.NewTracerProvider().Tracer(instrumentationName + scope)
	}
	return i.tracerProvider.Tracer(instrumentationName + scope)
}

// Metrics returns the metrics holder. It is nil for a nil Instrumentation
// and every Metrics method is nil-safe.
func (i *Instrumentation) Metrics() *Metrics {
	if i == nil {
		return nil
	}
	return i.metrics
}

// Resource returns the resource describing the service.
func (i *Instrumentation) Resource() *resource.Resource {
	return i.resource
}

// TracerProvider returns the underlying tracer provider
func (i *Instrumentation) TracerProvider() trace.TracerProvider {
	return i.tracerProvider
}

// MeterProvider returns the underlying meter provider
func (i *Instrumentation) MeterProvider() metric.MeterProvider {
	return i.meterProvider
}

// ShouldLogClientIPs returns whether client IP addresses should be recorded.
func (i *Instrumentation) ShouldLogClientIPs() bool {
	return i != nil && i.config.LogClientIPs
}

// StorageSizeCallback returns the current size of one storage component.
type StorageSizeCallback func() int64

// StorageSizes groups the callbacks a storage backend can report.
type StorageSizes struct {
	AccessTokens       StorageSizeCallback
	RefreshTokens      StorageSizeCallback
	AuthorizationCodes StorageSizeCallback
	Clients            StorageSizeCallback
	Users              StorageSizeCallback
}

// RegisterStorageSizeCallbacks reports storage sizes through the
// storage.size gauge. Nil callbacks are skipped.
func (i *Instrumentation) RegisterStorageSizeCallbacks(sizes StorageSizes) error {
	if i == nil {
		return nil
	}
	if i.meterProvider == nil {
		return fmt.Errorf("meter provider not initialized")
	}

	gauge := i.metrics.StorageSize
	observe := []struct {
		kind string
		fn   StorageSizeCallback
	}{
		{"access_tokens", sizes.AccessTokens},
		{"refresh_tokens", sizes.RefreshTokens},
		{"authorization_codes", sizes.AuthorizationCodes},
		{"clients", sizes.Clients},
		{"users", sizes.Users},
	}

	_, err := i.Meter("storage").RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			for _, o := range observe {
				if o.fn != nil {
					observer.ObserveInt64(gauge, o.fn(), metric.WithAttributes(attrKind.String(o.kind)))
				}
			}
			return nil
		},
		gauge,
	)
	return err
}
