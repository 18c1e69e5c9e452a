package core

import (
	"errors"
	"net/http"
)

// ErrNilResponse is reported when a handler returns no Response.
var ErrNilResponse = errors.New("handler returned nil response")

// Response renders itself to the client.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// HandlerFunc handles a request whose body has already been bound into R.
type HandlerFunc[R any] func(r *http.Request, req R) Response

// Bind decodes part of a request into v.
type Bind func(r *http.Request, v any) error

// ErrorHandler writes err to the client.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type wrapConfig struct {
	binders      []Bind
	errorHandler ErrorHandler
}

// WrapOption configures Wrap.
type WrapOption func(*wrapConfig)

// WithBinders appends binders; they run in order before the handler.
func WithBinders(binders ...Bind) WrapOption {
	return func(c *wrapConfig) { c.binders = append(c.binders, binders...) }
}

// WithErrorHandler replaces the default JSON error handler.
func WithErrorHandler(h ErrorHandler) WrapOption {
	return func(c *wrapConfig) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

// Wrap adapts a typed handler to http.HandlerFunc. Binding and render
// errors go to the error handler.
func Wrap[R any](h HandlerFunc[R], opts ...WrapOption) http.HandlerFunc {
	cfg := &wrapConfig{errorHandler: NewErrorHandler(nil)}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req R
		for _, bind := range cfg.binders {
			if err := bind(r, &req); err != nil {
				cfg.errorHandler(w, r, err)
				return
			}
		}

		resp := h(r, req)
		if resp == nil {
			cfg.errorHandler(w, r, ErrNilResponse)
			return
		}
		if err := resp.Render(w, r); err != nil {
			cfg.errorHandler(w, r, err)
		}
	}
}
