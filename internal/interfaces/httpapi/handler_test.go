package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/live-match/internal/platform/lock"
	"github.com/riskibarqy/live-match/internal/platform/logging"
	"github.com/riskibarqy/live-match/internal/usecase"
)

type staticHealth struct {
	report usecase.HealthReport
}

func (s staticHealth) Health(context.Context) usecase.HealthReport {
	return s.report
}

type staticPush struct {
	connected bool
	dropped   int64
}

func (s staticPush) Connected() bool { return s.connected }
func (s staticPush) Dropped() int64  { return s.dropped }

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %v", body)
	}
	return data
}

func TestRouter_HealthzReportsLockMode(t *testing.T) {
	t.Parallel()

	handler := NewHandler(staticHealth{report: usecase.HealthReport{
		Running:     true,
		LockMode:    lock.ModeDegradedNoLock,
		LockHealthy: false,
	}}, nil, "live-match", "v1.2.3", logging.NewNop())
	router := NewRouter(handler, logging.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	data := decodeData(t, rec)
	if data["lockMode"] != string(lock.ModeDegradedNoLock) || data["status"] != "degraded" {
		t.Fatalf("unexpected health payload %v", data)
	}
	if data["version"] != "v1.2.3" {
		t.Fatalf("expected version in payload, got %v", data["version"])
	}
	if _, ok := data["push"]; ok {
		t.Fatalf("push section must be omitted when the stream is disabled")
	}
}

func TestRouter_Readyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		running bool
		want    int
	}{
		{name: "running", running: true, want: http.StatusOK},
		{name: "stopped", running: false, want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(staticHealth{report: usecase.HealthReport{
				Running:     tt.running,
				LockMode:    lock.ModeDistributed,
				LockHealthy: true,
			}}, staticPush{connected: true, dropped: 2}, "live-match", "", logging.NewNop())

			rec := httptest.NewRecorder()
			NewRouter(handler, logging.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tt.want {
				t.Fatalf("unexpected status: got=%d want=%d", rec.Code, tt.want)
			}
		})
	}
}

func TestRouter_HealthzIncludesPushStatus(t *testing.T) {
	t.Parallel()

	handler := NewHandler(staticHealth{report: usecase.HealthReport{
		Running:     true,
		LockMode:    lock.ModeDistributed,
		LockHealthy: true,
	}}, staticPush{connected: false, dropped: 3}, "live-match", "", logging.NewNop())

	rec := httptest.NewRecorder()
	NewRouter(handler, logging.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	data := decodeData(t, rec)
	push, ok := data["push"].(map[string]any)
	if !ok {
		t.Fatalf("expected push section, got %v", data)
	}
	if push["connected"] != false || push["dropped"] != float64(3) || data["status"] != "degraded" {
		t.Fatalf("unexpected push payload %v", data)
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	recoverPanic(logging.NewNop(), boom).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}
