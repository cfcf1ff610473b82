package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrValidation signals a request rejected before any backend call.
	ErrValidation = errors.New("validation failed")
	// ErrTransport signals that the backend produced no response (dial failure, timeout).
	ErrTransport = errors.New("backend unreachable")
	// ErrBackend signals a non-2xx backend response.
	ErrBackend = errors.New("backend error")
	// ErrNoDisplay signals that no display pattern matches a document index.
	ErrNoDisplay = errors.New("no display configured for index")
	// ErrRatingOutOfRange signals a rating outside the project scale.
	ErrRatingOutOfRange = errors.New("rating out of range")
	// ErrJudgeProviderError signals an AI judge model failure.
	ErrJudgeProviderError = errors.New("judge provider error")
	// ErrJudgeDisabled signals that no AI judge is configured.
	ErrJudgeDisabled = errors.New("ai judge not configured")
	// ErrJudgeBudgetExceeded signals that the AI judge token budget is spent.
	ErrJudgeBudgetExceeded = errors.New("ai judge token budget exceeded")
)

// APIError carries the status and body of a non-2xx backend response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", ErrBackend.Error(), e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrBackend.Error(), e.Status, e.Body)
}

// Is lets a backend 404 match ErrNotFound as well as ErrBackend.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

func (e *APIError) Unwrap() error { return ErrBackend }

// NewAPIError creates a backend application error.
func NewAPIError(status int, body string) error {
	return &APIError{Status: status, Body: body}
}

// Validationf returns an ErrValidation-wrapped error with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
