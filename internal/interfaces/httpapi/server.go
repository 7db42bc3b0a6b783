package httpapi

import (
	"fmt"
	"net/http"

	"github.com/riskibarqy/live-match/internal/platform/logging"
)

// probeRoutes are polled by the container runtime and are never traced.
var probeRoutes = []string{"/livez", "/healthz", "/readyz"}

// NewRouter builds the operational HTTP surface: liveness and readiness probes.
func NewRouter(handler *Handler, logger *logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	return RequestTracing(RequestLogging(logger, recoverPanic(logger, mux)))
}

func recoverPanic(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(r.Context(), "panic recovered", "path", r.URL.Path, "panic", fmt.Sprint(rec))
				writeFailure(w, fmt.Errorf("internal server error"), nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
