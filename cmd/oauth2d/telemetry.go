package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/giantswarm/oauth2-core/instrumentation"
)

// telemetry owns the instrumentation and, when metrics are enabled, the
// Prometheus registry backing /metrics.
type telemetry struct {
	inst          *instrumentation.Instrumentation
	meterProvider *sdkmetric.MeterProvider
	registry      *prometheus.Registry
}

func newTelemetry(cfg config, version string) (*telemetry, error) {
	t := &telemetry{}
	instCfg := instrumentation.Config{
		ServiceName:    cfg.AppName,
		ServiceVersion: version,
		Enabled:        cfg.MetricsEnabled,
		LogClientIPs:   cfg.LogClientIPs,
	}

	if cfg.MetricsEnabled {
		t.registry = prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(t.registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		t.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
		instCfg.MeterProvider = t.meterProvider
	}

	inst, err := instrumentation.New(instCfg)
	if err != nil {
		return nil, err
	}
	t.inst = inst
	return t, nil
}

// metricsHandler serves the Prometheus registry, or nil when metrics are off.
func (t *telemetry) metricsHandler() http.Handler {
	if t.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

func (t *telemetry) Shutdown(ctx context.Context) error {
	if err := t.inst.Shutdown(ctx); err != nil {
		return err
	}
	if t.meterProvider != nil {
		return t.meterProvider.Shutdown(ctx)
	}
	return nil
}
