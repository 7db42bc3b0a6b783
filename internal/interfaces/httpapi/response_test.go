package httpapi

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/live-match/internal/usecase"
)

func TestWriteFailure_KeepsDataAndError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeFailure(rec, fmt.Errorf("%w: lock backend down", usecase.ErrDependencyUnavailable), map[string]bool{"running": false})

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("unexpected Cache-Control %q", got)
	}

	var body map[string]any
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}
	if body["apiVersion"] != envelopeVersion {
		t.Fatalf("unexpected apiVersion %v", body["apiVersion"])
	}
	if _, ok := body["data"].(map[string]any); !ok {
		t.Fatalf("expected data to be attached, got %v", body)
	}
	failure, ok := body["error"].(map[string]any)
	if !ok || failure["status"] != "UNAVAILABLE" {
		t.Fatalf("unexpected error object %v", body["error"])
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: usecase.ErrShutdown, want: http.StatusServiceUnavailable},
		{err: fmt.Errorf("%w: redis", usecase.ErrDependencyUnavailable), want: http.StatusServiceUnavailable},
		{err: usecase.ErrInvalidInput, want: http.StatusBadRequest},
		{err: fmt.Errorf("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got, _ := statusFor(tt.err); got != tt.want {
			t.Fatalf("statusFor(%v)=%d want=%d", tt.err, got, tt.want)
		}
	}
}
