package availability

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/telerx/rxadmin/internal/platform/api"
	"github.com/telerx/rxadmin/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	read := g.Group("", auth.RequireRole(auth.RoleProvider, auth.RolePharmacist, auth.RoleSupport))
	read.GET("/providers/:provider_id/availability", h.GetAvailability)

	write := g.Group("", auth.RequireRole(auth.RoleProvider))
	write.PUT("/providers/:provider_id/availability", h.ReplaceAvailability)
}

func (h *Handler) GetAvailability(c echo.Context) error {
	providerID := c.Param("provider_id")
	if providerID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "provider_id is required")
	}
	sched, err := h.svc.GetSchedule(c.Request().Context(), providerID)
	if err != nil {
		return err
	}
	return api.OK(c, sched)
}

// ReplaceAvailability lets providers rewrite only their own schedule; admins
// may rewrite anyone's.
func (h *Handler) ReplaceAvailability(c echo.Context) error {
	ctx := c.Request().Context()
	providerID := c.Param("provider_id")
	if providerID != auth.UserIDFromContext(ctx) && !auth.IsAdmin(ctx) {
		return echo.NewHTTPError(http.StatusForbidden, "cannot edit another provider's availability")
	}

	var form Form
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sched, err := h.svc.ReplaceSchedule(ctx, providerID, form)
	if err != nil {
		if errors.Is(err, ErrInvalidForm) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	return api.OK(c, sched)
}
