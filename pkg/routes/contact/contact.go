package contact

import (
	"context"
	"net/http"
	"reflect"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/identity"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if o, ok := field.Interface().(models.OptionalString); ok && o.Value != nil {
			return *o.Value
		}
		return nil
	}, models.OptionalString{})
	return v
}

// Service is the part of the identity engine the contact routes use
type Service interface {
	Identify(ctx context.Context, request models.IdentifyRequest) (*models.IdentifyResponse, error)
	ListAll(ctx context.Context) ([]models.Contact, error)
	Reset(ctx context.Context) error
	Seed(ctx context.Context) error
}

var _ Service = (*identity.Engine)(nil)

type Handler struct {
	service Service
	logger  ectologger.Logger
}

func NewHandler(service Service, logger ectologger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register registers contact routes
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/identify", h.Identify)

	g := e.Group("/api/v1/contacts")
	g.GET("", h.List)
	g.POST("/reset", h.Reset)
	g.POST("/seed", h.Seed)
}

// IdentifyRequest is the request body for POST /identify. Both fields accept a string, a number or null.
// The length caps guard the HTTP surface only; the engine takes values of any length.
type IdentifyRequest struct {
	Email       models.OptionalString `json:"email" validate:"omitempty,max=320"`
	PhoneNumber models.OptionalString `json:"phoneNumber" validate:"omitempty,max=64"`
}

type IdentifyResponse struct {
	Contact *models.IdentifyResponse `json:"contact"`
}

type ListResponse struct {
	Contacts []models.Contact `json:"contacts"`
}

// Identify reconciles one observation and returns the consolidated contact
func (h *Handler) Identify(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "contact_handler.Identify")
	defer span.End()

	var req IdentifyRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resp, err := h.service.Identify(ctx, models.IdentifyRequest{
		Email:       req.Email.Ptr(),
		PhoneNumber: req.PhoneNumber.Ptr(),
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, IdentifyResponse{Contact: resp})
}

// List returns every live contact ordered by id
func (h *Handler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "contact_handler.List")
	defer span.End()

	contacts, err := h.service.ListAll(ctx)
	if err != nil {
		return toHTTPError(err)
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}

	return c.JSON(http.StatusOK, ListResponse{Contacts: contacts})
}

// Reset empties the store and restarts ids at 1
func (h *Handler) Reset(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "contact_handler.Reset")
	defer span.End()

	if err := h.service.Reset(ctx); err != nil {
		return toHTTPError(err)
	}

	h.logger.WithContext(ctx).Info("Reset contact store")
	return c.NoContent(http.StatusNoContent)
}

// Seed replaces the store contents with the demo dataset
func (h *Handler) Seed(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "contact_handler.Seed")
	defer span.End()

	if err := h.service.Seed(ctx); err != nil {
		return toHTTPError(err)
	}

	h.logger.WithContext(ctx).Info("Seeded contact store")
	return h.List(c)
}

func toHTTPError(err error) error {
	switch {
	case identity.IsInvalidRequest(err):
		return httperror.NewHTTPError(http.StatusBadRequest, identity.ErrInvalidRequest.Error())
	case identity.IsStorageUnavailable(err):
		return httperror.WrapError(http.StatusServiceUnavailable, err)
	default:
		return httperror.WrapError(http.StatusInternalServerError, err)
	}
}
