package instrumentation

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMetrics_Record(t *testing.T) {
	ctx := context.Background()

	for _, enabled := range []bool{true, false} {
		inst, err := New(Config{Enabled: enabled})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		m := inst.Metrics()

		// None of these may panic, with real or no-op providers.
		m.RecordHTTPRequest(ctx, "POST", "/oauth/token", 200, 12.5)
		m.RecordTokenIssued(ctx, "client_credentials", "test-client")
		m.RecordTokenRefresh(ctx, "test-client", true)
		m.RecordTokenRevocation(ctx, "authorization_code")
		m.RecordAuthorizationCodeIssued(ctx, "test-client")
		m.RecordAuthenticate(ctx, "success")
		m.RecordFlowError(ctx, FlowToken, "invalid_grant")
		m.RecordFlowDuration(ctx, FlowAuthorize, 3.2)
		m.RecordRateLimitExceeded(ctx, "/oauth/token")
		m.RecordAuditEvent(ctx, "token_issued")
		m.RecordStorageOperation(ctx, "save_token", "success", 0.4)
		m.RecordProviderAPICall(ctx, "github", "exchange_code", 200, 80, nil)
		m.RecordProviderAPICall(ctx, "github", "user_info", 500, 80, errors.New("upstream failed"))
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	m.RecordHTTPRequest(ctx, "GET", "/", 200, 1)
	m.RecordFlowError(ctx, FlowToken, "server_error")
	m.RecordStorageOperation(ctx, "get_client", "error", 1)
}

func TestMetrics_ConcurrentRecording(t *testing.T) {
	inst, err := New(Config{Enabled: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	m := inst.Metrics()
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.RecordTokenIssued(ctx, "password", "test-client")
				m.RecordFlowDuration(ctx, FlowToken, 1)
			}
		}()
	}
	wg.Wait()
}
