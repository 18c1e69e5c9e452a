package billing

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/propfin/core"
)

// ProvisioningService exposes the account lifecycle hooks called by the
// identity service: a TRIAL record on sign-up and a soft cancel on deletion.
type ProvisioningService struct {
	orchestrator Orchestrator
	token        string
	errorHandler core.ErrorHandler
}

// NewProvisioningService creates the internal hooks. When token is set,
// callers must send it as a bearer token.
func NewProvisioningService(orchestrator Orchestrator, token string, errorHandler core.ErrorHandler) *ProvisioningService {
	if errorHandler == nil {
		errorHandler = core.NewErrorHandler(nil, MapError)
	}
	return &ProvisioningService{orchestrator: orchestrator, token: token, errorHandler: errorHandler}
}

func (s *ProvisioningService) Handle() http.Handler {
	r := chi.NewRouter()
	if s.token != "" {
		r.Use(s.requireToken)
	}
	opts := core.WithErrorHandler(s.errorHandler)
	r.Post("/{userID}/subscription", core.Wrap(s.provision, opts))
	r.Delete("/{userID}/subscription", core.Wrap(s.softCancel, opts))
	return r
}

func (s *ProvisioningService) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			core.WriteError(w, core.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *ProvisioningService) provision(r *http.Request, _ struct{}) core.Response {
	userID, err := userIDParam(r)
	if err != nil {
		return core.Error(err)
	}
	sub, err := s.orchestrator.Provision(r.Context(), userID)
	if err != nil {
		return core.Error(err)
	}
	return core.JSON(http.StatusCreated, sub)
}

func (s *ProvisioningService) softCancel(r *http.Request, _ struct{}) core.Response {
	userID, err := userIDParam(r)
	if err != nil {
		return core.Error(err)
	}
	if err := s.orchestrator.SoftCancel(r.Context(), userID); err != nil {
		return core.Error(err)
	}
	return core.NoContent()
}

func userIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil || id == uuid.Nil {
		ve := core.ValidationError{}
		ve.Add("userID", "must be a valid UUID")
		return uuid.Nil, ve
	}
	return id, nil
}
