// Package instrumentation provides OpenTelemetry tracing and metrics for the
// authorization server flows, the HTTP adapter, storage backends and
// external identity providers.
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "oauth2d",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
//	srv, err := oauth.NewServer(oauth.Config{
//		Service:         store,
//		Instrumentation: inst,
//	})
//
// Without injected providers New falls back to the global OpenTelemetry
// providers, so an application that already configured exporters through
// otel.SetTracerProvider and otel.SetMeterProvider gets its data there.
// Set Enabled to false for no-op providers.
//
// # Available Metrics
//
// HTTP:
//   - oauth.http.requests.total{method, endpoint, status}
//   - oauth.http.request.duration{endpoint} in milliseconds
//
// Flows:
//   - oauth.token.issued{grant_type, client_id}
//   - oauth.token.refreshed{client_id, rotated}
//   - oauth.token.revoked{token_type}
//   - oauth.authorization_code.issued{client_id}
//   - oauth.authenticate.total{result}
//   - oauth.flow.errors{flow, error}
//   - oauth.flow.duration{flow} in milliseconds
//
// Security:
//   - oauth.rate_limit.exceeded{endpoint}
//   - oauth.audit.events{event_type}
//
// Storage and providers:
//   - storage.operation.total{operation, result}
//   - storage.operation.duration{operation} in milliseconds
//   - storage.size{kind} observable gauge
//   - provider.api.calls.total{provider, operation, status}
//   - provider.api.duration{provider, operation} in milliseconds
//   - provider.api.errors.total{provider, operation}
//
// # Security
//
// Tokens, codes and secrets never appear in span attributes or metric
// labels. Client IPs are only attached when Config.LogClientIPs is set.
package instrumentation
