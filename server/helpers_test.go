package server

import (
	"net/http"
	"net/url"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/giantswarm/oauth2-core/instrumentation"
	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
)

func assertKind(t *testing.T, err error, kind oautherr.Kind) {
	t.Helper()
	oe, ok := oautherr.As(err)
	if !ok {
		t.Fatalf("error = %v, want %s", err, kind)
	}
	if oe.Kind != kind {
		t.Fatalf("error = %v, want %s", err, kind)
	}
}

// redirectQuery returns the query of the result's Location header.
func redirectQuery(t *testing.T, result *model.Result) url.Values {
	t.Helper()
	if !result.IsRedirect() {
		t.Fatalf("result is not a redirect: status %d", result.Status)
	}
	u, err := url.Parse(result.Header("Location"))
	if err != nil {
		t.Fatalf("Location %q: %v", result.Header("Location"), err)
	}
	return u.Query()
}

func newParams(method string, header http.Header, query, body url.Values) *model.Params {
	return model.NewParams(method, header, query, body)
}

// recordingInstrumentation returns instrumentation whose spans end up in the
// returned recorder.
func recordingInstrumentation(t *testing.T) (*instrumentation.Instrumentation, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	inst, err := instrumentation.New(instrumentation.Config{Enabled: true, TracerProvider: tp})
	if err != nil {
		t.Fatalf("instrumentation.New() error = %v", err)
	}
	return inst, recorder
}

// lastSpanAttrs returns the attributes of the last ended span called name.
func lastSpanAttrs(t *testing.T, recorder *tracetest.SpanRecorder, name string) map[attribute.Key]attribute.Value {
	t.Helper()
	ended := recorder.Ended()
	for i := len(ended) - 1; i >= 0; i-- {
		if ended[i].Name() != name {
			continue
		}
		attrs := make(map[attribute.Key]attribute.Value)
		for _, kv := range ended[i].Attributes() {
			attrs[kv.Key] = kv.Value
		}
		return attrs
	}
	t.Fatalf("no ended span named %q", name)
	return nil
}
