package core

import (
	"encoding/json"
	"net/http"
)

// Envelope is the body of every JSON response: Data on success, Error otherwise.
type Envelope struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail is the client-facing error description.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	data   any
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	return WriteJSON(w, j.status, Envelope{Data: j.data})
}

// JSON responds with status and {"data": data}.
func JSON(status int, data any) Response {
	return jsonResponse{status: status, data: data}
}

// OK responds 200 with {"data": data}.
func OK(data any) Response {
	return JSON(http.StatusOK, data)
}

type errorResponse struct{ err error }

func (e errorResponse) Render(http.ResponseWriter, *http.Request) error { return e.err }

// Error hands err to the error handler configured on Wrap.
func Error(err error) Response {
	return errorResponse{err: err}
}

// WriteJSON encodes body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

type noContent struct{}

func (noContent) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// NoContent responds 204 with an empty body.
func NoContent() Response { return noContent{} }
