package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/esre-console/internal/domain"
)

// ErrorCode is the machine-readable error kind returned to clients.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeValidation         ErrorCode = "validation_error"
	CodeNotFound           ErrorCode = "not_found"
	CodeNoDisplay          ErrorCode = "no_display"
	CodeBackendUnavailable ErrorCode = "backend_unavailable"
	CodeBackendTimeout     ErrorCode = "backend_timeout"
	CodeBackendError       ErrorCode = "backend_error"
	CodeJudgeError         ErrorCode = "judge_error"
	CodeJudgeBudget        ErrorCode = "judge_budget_exceeded"
	CodeNotImplemented     ErrorCode = "not_implemented"
	CodeInternal           ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler writes a response if it recognizes err. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrNoDisplay, http.StatusUnprocessableEntity, CodeNoDisplay),
		sentinelHandler(domain.ErrJudgeDisabled, http.StatusNotImplemented, CodeNotImplemented),
		sentinelHandler(domain.ErrJudgeProviderError, http.StatusBadGateway, CodeJudgeError),
		sentinelHandler(domain.ErrJudgeBudgetExceeded, http.StatusTooManyRequests, CodeJudgeBudget),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		transportHandler,
		backendHandler,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNoDisplay,
		domain.ErrJudgeDisabled,
		domain.ErrJudgeProviderError,
		domain.ErrJudgeBudgetExceeded,
		domain.ErrNotFound,
		domain.ErrTransport,
		domain.ErrBackend,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// validationHandler echoes the validation text, which never carries backend data.
func validationHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrValidation) {
		return false
	}
	writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
	return true
}

type timeoutError interface {
	Timeout() bool
}

// transportHandler splits unreachable backends from timed-out ones.
func transportHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrTransport) {
		return false
	}
	var te timeoutError
	if errors.As(err, &te) && te.Timeout() {
		writeError(w, http.StatusGatewayTimeout, CodeBackendTimeout, msg)
		return true
	}
	writeError(w, http.StatusBadGateway, CodeBackendUnavailable, msg)
	return true
}

// backendHandler passes the backend status and body through.
func backendHandler(w http.ResponseWriter, err error, msg string) bool {
	var ae *domain.APIError
	if !errors.As(err, &ae) {
		return false
	}
	status := ae.Status
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusBadGateway
	}
	if ae.Body != "" {
		msg = ae.Body
	}
	writeError(w, status, CodeBackendError, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
