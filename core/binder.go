package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// MaxJSONBody caps decoded request bodies.
const MaxJSONBody = 1 << 20

var (
	ErrInvalidJSON          = errors.New("invalid JSON body")
	ErrBodyTooLarge         = errors.New("request body too large")
	ErrUnsupportedMediaType = errors.New("unsupported media type, expected application/json")
)

// BindJSON decodes a strict JSON body into v and validates it. An empty body
// leaves v at its zero value, which validation then judges.
func BindJSON(validate *validator.Validate) Bind {
	if validate == nil {
		validate = NewValidator()
	}
	return func(r *http.Request, v any) error {
		if r.Body != nil && r.ContentLength != 0 {
			if err := decodeJSON(r, v); err != nil {
				return err
			}
		}
		return Validate(validate, v)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return ErrUnsupportedMediaType
		}
	}

	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return ErrBodyTooLarge
		case errors.Is(err, io.EOF):
			return nil
		default:
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON object", ErrInvalidJSON)
	}
	return nil
}
