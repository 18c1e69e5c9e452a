package property

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dmitrymomot/propfin/core"
	"github.com/dmitrymomot/propfin/svc/auth"
	"github.com/dmitrymomot/propfin/svc/property"
)

// Properties is the property service the HTTP layer drives.
type Properties interface {
	Create(ctx context.Context, userID uuid.UUID, in property.CreateInput) (*property.Property, error)
	List(ctx context.Context, userID uuid.UUID) ([]*property.Property, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type createRequest struct {
	Name               string `json:"name" validate:"required,max=200"`
	Address            string `json:"address" validate:"max=500"`
	PurchasePriceCents int64  `json:"purchase_price_cents" validate:"gte=0"`
}

type listResponse struct {
	Items []*property.Property `json:"items"`
	Total int                  `json:"total"`
}

type Service struct {
	properties   Properties
	validate     *validator.Validate
	errorHandler core.ErrorHandler
}

// NewService creates the property API. Create is guarded by the billing
// limit enforcer inside properties, so errorHandler must also know the
// billing errors.
func NewService(properties Properties, errorHandler core.ErrorHandler) *Service {
	if errorHandler == nil {
		errorHandler = core.NewErrorHandler(nil, MapError)
	}
	return &Service{
		properties:   properties,
		validate:     core.NewValidator(),
		errorHandler: errorHandler,
	}
}

func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(auth.Middleware)

	opts := core.WithErrorHandler(s.errorHandler)
	r.Post("/", core.Wrap(s.create, core.WithBinders(core.BindJSON(s.validate)), opts))
	r.Get("/", core.Wrap(s.list, opts))
	r.Delete("/{propertyID}", core.Wrap(s.delete, opts))

	return r
}

func (s *Service) create(r *http.Request, req createRequest) core.Response {
	p, err := s.properties.Create(r.Context(), auth.UserID(r.Context()), property.CreateInput{
		Name:               req.Name,
		Address:            req.Address,
		PurchasePriceCents: req.PurchasePriceCents,
	})
	if err != nil {
		return core.Error(err)
	}
	return core.JSON(http.StatusCreated, p)
}

func (s *Service) list(r *http.Request, _ struct{}) core.Response {
	items, err := s.properties.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		return core.Error(err)
	}
	if items == nil {
		items = []*property.Property{}
	}
	return core.OK(listResponse{Items: items, Total: len(items)})
}

func (s *Service) delete(r *http.Request, _ struct{}) core.Response {
	id, err := uuid.Parse(chi.URLParam(r, "propertyID"))
	if err != nil {
		return core.Error(property.ErrPropertyNotFound)
	}
	if err := s.properties.Delete(r.Context(), auth.UserID(r.Context()), id); err != nil {
		return core.Error(err)
	}
	return core.NoContent()
}
