package instrumentation

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{
			name:   "disabled",
			config: Config{Enabled: false},
		},
		{
			name: "with service name and version",
			config: Config{
				Enabled:        true,
				ServiceName:    "test-service",
				ServiceVersion: "1.0.0",
			},
		},
		{
			name:   "empty service name gets default",
			config: Config{Enabled: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := New(tt.config)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer func() { _ = inst.Shutdown(context.Background()) }()

			if inst.Metrics() == nil {
				t.Error("Metrics() = nil")
			}
			if inst.Tracer("server") == nil {
				t.Error("Tracer() = nil")
			}
			if inst.Meter("server") == nil {
				t.Error("Meter() = nil")
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if inst.config.ServiceName != DefaultServiceName {
		t.Errorf("ServiceName = %q, want %q", inst.config.ServiceName, DefaultServiceName)
	}
	if inst.config.ServiceVersion != DefaultServiceVersion {
		t.Errorf("ServiceVersion = %q, want %q", inst.config.ServiceVersion, DefaultServiceVersion)
	}
	if inst.Resource() == nil {
		t.Error("Resource() = nil")
	}
}

func TestInstrumentation_InjectedTracerProvider(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	inst, err := New(Config{Enabled: true, TracerProvider: tp})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, span := inst.Tracer("server").Start(context.Background(), "oauth.token")
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(ended))
	}
	if got := ended[0].InstrumentationScope().Name; got != instrumentationName+"server" {
		t.Errorf("scope = %q, want %q", got, instrumentationName+"server")
	}

	if err := inst.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	// Shutdown runs once.
	if err := inst.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestInstrumentation_NilSafe(t *testing.T) {
	var inst *Instrumentation

	_, span := inst.Tracer("server").Start(context.Background(), "noop")
	span.End()

	if inst.Metrics() != nil {
		t.Error("Metrics() on nil instrumentation should be nil")
	}
	inst.Metrics().RecordTokenIssued(context.Background(), "password", "client")

	if inst.ShouldLogClientIPs() {
		t.Error("ShouldLogClientIPs() on nil instrumentation should be false")
	}
	if err := inst.RegisterStorageSizeCallbacks(StorageSizes{}); err != nil {
		t.Errorf("RegisterStorageSizeCallbacks() error = %v", err)
	}
	if err := inst.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestRegisterStorageSizeCallbacks(t *testing.T) {
	inst, err := New(Config{Enabled: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = inst.RegisterStorageSizeCallbacks(StorageSizes{
		AccessTokens: func() int64 { return 3 },
		Clients:      func() int64 { return 1 },
	})
	if err != nil {
		t.Errorf("RegisterStorageSizeCallbacks() error = %v", err)
	}
}

func BenchmarkTracing_SpanCreation_NoOp(b *testing.B) {
	inst, _ := New(Config{Enabled: false})
	tracer := inst.Tracer("server")
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, span := tracer.Start(ctx, "test-operation")
		span.End()
	}
}
