package storage_test

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/oauth2-core/instrumentation"
	"github.com/giantswarm/oauth2-core/storage"
	"github.com/giantswarm/oauth2-core/storage/memory"
)

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestService_StorageSpanResult(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	inst, err := instrumentation.New(instrumentation.Config{Enabled: true, TracerProvider: tp})
	if err != nil {
		t.Fatalf("instrumentation.New() error = %v", err)
	}

	store := memory.New(memory.Config{CleanupInterval: time.Hour})
	t.Cleanup(store.Stop)
	svc, err := storage.NewService(storage.Options{Store: store, BcryptCost: bcrypt.MinCost, Instrumentation: inst})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	ctx := context.Background()
	if _, err := svc.RegisterClient(ctx, storage.ClientSpec{ID: "c1", Secret: "s1", Grants: []string{"client_credentials"}}); err != nil {
		t.Fatalf("RegisterClient() error = %v", err)
	}
	if token, err := svc.GetAccessToken(ctx, "missing"); err != nil || token != nil {
		t.Fatalf("GetAccessToken() = %v, %v, want nil, nil", token, err)
	}

	want := map[string]string{
		"storage.create_client":    "success",
		"storage.get_access_token": "not_found",
	}
	seen := map[string]bool{}
	for _, span := range recorder.Ended() {
		result, ok := want[span.Name()]
		if !ok {
			continue
		}
		seen[span.Name()] = true
		got, ok := spanAttr(span, instrumentation.AttrStorageResult)
		if !ok {
			t.Errorf("%s: missing %s attribute", span.Name(), instrumentation.AttrStorageResult)
			continue
		}
		if got.AsString() != result {
			t.Errorf("%s: %s = %q, want %q", span.Name(), instrumentation.AttrStorageResult, got.AsString(), result)
		}
	}
	for name := range want {
		if !seen[name] {
			t.Errorf("span %s was not recorded", name)
		}
	}
}
