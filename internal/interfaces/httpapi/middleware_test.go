package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/riskibarqy/live-match/internal/platform/logging"
)

func TestShouldTraceRequest(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: "/healthz", want: false},
		{path: " /READYZ ", want: false},
		{path: "/livez", want: false},
		{path: "/debug/vars", want: true},
		{path: "/", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := shouldTraceRequest(tt.path); got != tt.want {
				t.Fatalf("shouldTraceRequest(%q)=%v want=%v", tt.path, got, tt.want)
			}
		})
	}
}

func TestRequestLogging_PassesStatusThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	teapot := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	RequestLogging(logging.NewNop(), teapot).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/brew", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status 418, got %d", rec.Code)
	}
}

func TestRouter_UnknownRouteIsNotFound(t *testing.T) {
	handler := NewHandler(staticHealth{}, nil, "live-match", "", logging.NewNop())
	rec := httptest.NewRecorder()
	NewRouter(handler, logging.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/matches", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}
