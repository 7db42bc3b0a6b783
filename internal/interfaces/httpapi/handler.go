package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/riskibarqy/live-match/internal/platform/logging"
	"github.com/riskibarqy/live-match/internal/usecase"
)

// HealthReporter is implemented by *usecase.MatchOrchestrator.
type HealthReporter interface {
	Health(ctx context.Context) usecase.HealthReport
}

// PushStatus reports the push stream connection. Nil when the stream is disabled.
type PushStatus interface {
	Connected() bool
	Dropped() int64
}

type Handler struct {
	health  HealthReporter
	push    PushStatus
	service string
	version string
	logger  *logging.Logger
}

func NewHandler(health HealthReporter, push PushStatus, service, version string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		health:  health,
		push:    push,
		service: service,
		version: version,
		logger:  logger,
	}
}

type healthDTO struct {
	Status      string   `json:"status"`
	Service     string   `json:"service,omitempty"`
	Version     string   `json:"version,omitempty"`
	Running     bool     `json:"running"`
	LockMode    string   `json:"lockMode"`
	LockHealthy bool     `json:"lockHealthy"`
	Push        *pushDTO `json:"push,omitempty"`
}

type pushDTO struct {
	Connected bool  `json:"connected"`
	Dropped   int64 `json:"dropped"`
}

func (h *Handler) Livez(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Healthz always answers 200. A degraded lock is reported, not failed: writes
// keep flowing without mutual exclusion.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.report(r.Context()))
}

// Readyz fails until the orchestrator has started and after it shuts down.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	dto := h.report(r.Context())
	if !dto.Running {
		h.logger.WarnContext(r.Context(), "readiness probe failed", "lock_mode", dto.LockMode)
		writeFailure(w, fmt.Errorf("%w: orchestrator is not running", usecase.ErrDependencyUnavailable), dto)
		return
	}
	writeData(w, http.StatusOK, dto)
}

func (h *Handler) report(ctx context.Context) healthDTO {
	report := h.health.Health(ctx)
	dto := healthDTO{
		Status:      "ok",
		Service:     h.service,
		Version:     h.version,
		Running:     report.Running,
		LockMode:    string(report.LockMode),
		LockHealthy: report.LockHealthy,
	}
	if !report.LockHealthy {
		dto.Status = "degraded"
	}
	if h.push != nil {
		dto.Push = &pushDTO{Connected: h.push.Connected(), Dropped: h.push.Dropped()}
		if !dto.Push.Connected {
			dto.Status = "degraded"
		}
	}
	return dto
}
