package property

import (
	"errors"

	"github.com/dmitrymomot/propfin/core"
	"github.com/dmitrymomot/propfin/svc/property"
)

// MapError translates property service errors into HTTP errors.
func MapError(err error) (core.HTTPError, bool) {
	switch {
	case errors.Is(err, property.ErrPropertyNotFound):
		return core.ErrNotFound.WithMessage(property.ErrPropertyNotFound.Error()), true
	case errors.Is(err, property.ErrInvalidProperty):
		return core.ErrUnprocessableEntity.WithMessage(property.ErrInvalidProperty.Error()), true
	case errors.Is(err, property.ErrStoreUnavailable):
		return core.ErrServiceUnavailable, true
	}
	return core.HTTPError{}, false
}
