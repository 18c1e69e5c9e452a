package core

import (
	"errors"
	"log/slog"
	"maps"
	"net/http"

	"github.com/dmitrymomot/propfin/pkg/logger"
)

// HTTPError is an error with a status code and a stable machine-readable code.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// WithMessage returns a copy of e with msg.
func (e HTTPError) WithMessage(msg string) HTTPError {
	e.Message = msg
	return e
}

// WithDetails returns a copy of e with details merged in.
func (e HTTPError) WithDetails(details map[string]any) HTTPError {
	merged := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	maps.Copy(merged, details)
	e.Details = merged
	return e
}

// NewHTTPError creates an HTTPError.
func NewHTTPError(status int, code, message string) HTTPError {
	return HTTPError{Status: status, Code: code, Message: message}
}

var (
	ErrBadRequest          = NewHTTPError(http.StatusBadRequest, "bad_request", "malformed request")
	ErrUnauthorized        = NewHTTPError(http.StatusUnauthorized, "unauthorized", "authentication required")
	ErrForbidden           = NewHTTPError(http.StatusForbidden, "forbidden", "operation not allowed")
	ErrNotFound            = NewHTTPError(http.StatusNotFound, "not_found", "resource not found")
	ErrConflict            = NewHTTPError(http.StatusConflict, "conflict", "request conflicts with current state")
	ErrRequestTooLarge     = NewHTTPError(http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
	ErrUnsupportedMedia    = NewHTTPError(http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
	ErrUnprocessableEntity = NewHTTPError(http.StatusUnprocessableEntity, "unprocessable_entity", "request cannot be applied")
	ErrValidation          = NewHTTPError(http.StatusBadRequest, "validation_error", "request validation failed")
	ErrInternalServerError = NewHTTPError(http.StatusInternalServerError, "internal_error", "internal server error")
	ErrBadGateway          = NewHTTPError(http.StatusBadGateway, "bad_gateway", "upstream service failed")
	ErrServiceUnavailable  = NewHTTPError(http.StatusServiceUnavailable, "service_unavailable", "service temporarily unavailable")
)

// ErrorMapper translates domain errors. ok is false for errors it does not know.
type ErrorMapper func(err error) (HTTPError, bool)

// Resolve maps err to an HTTPError: HTTPError and ValidationError values
// first, then mappers in order, then 500.
func Resolve(err error, mappers ...ErrorMapper) HTTPError {
	var he HTTPError
	if errors.As(err, &he) {
		return he
	}
	var ve ValidationError
	if errors.As(err, &ve) {
		details := make(map[string]any, len(ve))
		for field, msgs := range ve {
			details[field] = msgs
		}
		return ErrValidation.WithDetails(details)
	}
	switch {
	case errors.Is(err, ErrInvalidJSON):
		return ErrBadRequest.WithMessage(err.Error())
	case errors.Is(err, ErrBodyTooLarge):
		return ErrRequestTooLarge
	case errors.Is(err, ErrUnsupportedMediaType):
		return ErrUnsupportedMedia
	}
	for _, m := range mappers {
		if he, ok := m(err); ok {
			return he
		}
	}
	return ErrInternalServerError
}

// NewErrorHandler writes errors as the JSON error envelope. Server-side
// failures are logged with the original error; the client sees only the
// mapped message.
func NewErrorHandler(log *slog.Logger, mappers ...ErrorMapper) ErrorHandler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return func(w http.ResponseWriter, r *http.Request, err error) {
		he := Resolve(err, mappers...)
		if he.Status >= http.StatusInternalServerError {
			log.ErrorContext(r.Context(), "request failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", he.Status),
				logger.Error(err))
		} else {
			log.DebugContext(r.Context(), "request rejected",
				slog.String("path", r.URL.Path),
				slog.String("code", he.Code),
				logger.Error(err))
		}
		WriteError(w, he)
	}
}

// WriteError writes he as the JSON error envelope.
func WriteError(w http.ResponseWriter, he HTTPError) {
	_ = WriteJSON(w, he.Status, Envelope{Error: &ErrorDetail{
		Code:    he.Code,
		Message: he.Error(),
		Details: he.Details,
	}})
}
