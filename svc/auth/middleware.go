package auth

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/propfin/core"
)

// Headers set by the gateway after it authenticated the caller.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

// Middleware trusts the gateway identity headers. Requests without a valid
// X-User-ID are rejected with 401; a malformed X-User-Email is dropped.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(strings.TrimSpace(r.Header.Get(HeaderUserID)))
		if err != nil || id == uuid.Nil {
			core.WriteError(w, core.ErrUnauthorized.WithMessage("missing or invalid "+HeaderUserID+" header"))
			return
		}

		identity := Identity{UserID: id}
		if addr, err := mail.ParseAddress(r.Header.Get(HeaderUserEmail)); err == nil {
			identity.Email = addr.Address
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}
