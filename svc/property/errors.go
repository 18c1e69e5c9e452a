package property

import "errors"

var (
	ErrPropertyNotFound = errors.New("property not found")
	ErrInvalidProperty  = errors.New("invalid property")
	ErrStoreUnavailable = errors.New("property store unavailable")
)
