package property

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures which services to mount in the property module.
type RouterOptions struct {
	Properties Mountable
}

// Router creates the property module router.
//
// Example:
//
//	r.Mount("/properties", propertymod.Router(propertymod.RouterOptions{
//	    Properties: propertymod.NewService(propertySvc, errs),
//	}))
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	if opts.Properties != nil {
		r.Mount("/", opts.Properties.Handle())
	}
	return r
}
