package billing

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/telerx/rxadmin/internal/domain/orders"
	"github.com/telerx/rxadmin/internal/platform/api"
	"github.com/telerx/rxadmin/internal/platform/auth"
	"github.com/telerx/rxadmin/internal/platform/payments"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	billing := g.Group("/billing", auth.RequireRole(auth.RolePharmacist, auth.RoleSupport))
	billing.POST("/checkout", h.Checkout)
	billing.POST("/portal", h.Portal)
}

func (h *Handler) Checkout(c echo.Context) error {
	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	resp, err := h.svc.Checkout(c.Request().Context(), req)
	if err != nil {
		return toHTTPError(err)
	}
	return api.Created(c, resp)
}

func (h *Handler) Portal(c echo.Context) error {
	var req PortalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	resp, err := h.svc.Portal(c.Request().Context(), req)
	if err != nil {
		return toHTTPError(err)
	}
	return api.Created(c, resp)
}

func toHTTPError(err error) error {
	var apiErr *payments.APIError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, ErrCustomerNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrOrderNotPayable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusPaymentRequired {
			return echo.NewHTTPError(http.StatusPaymentRequired, apiErr.Message)
		}
		return echo.NewHTTPError(http.StatusBadGateway, "payment processor error: "+apiErr.Message)
	case errors.Is(err, payments.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payments are not configured")
	default:
		return err
	}
}
