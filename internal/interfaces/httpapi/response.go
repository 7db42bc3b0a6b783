package httpapi

import (
	"errors"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/live-match/internal/usecase"
)

const envelopeVersion = "2.0"

// envelope wraps every probe body so dashboards parse one shape.
type envelope struct {
	APIVersion string     `json:"apiVersion"`
	Data       any        `json:"data,omitempty"`
	Error      *probeFail `json:"error,omitempty"`
}

type probeFail struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, body envelope) {
	body.APIVersion = envelopeVersion
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Data: data})
}

// writeFailure reports err with the status it maps to. Data is still attached
// so a failing readiness probe shows which component is down.
func writeFailure(w http.ResponseWriter, err error, data any) {
	code, status := statusFor(err)
	writeJSON(w, code, envelope{
		Data:  data,
		Error: &probeFail{Code: code, Status: status, Message: err.Error()},
	})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, usecase.ErrDependencyUnavailable), errors.Is(err, usecase.ErrShutdown):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	case errors.Is(err, usecase.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
