package issues

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/telerx/rxadmin/internal/platform/api"
	"github.com/telerx/rxadmin/internal/platform/auth"
	"github.com/telerx/rxadmin/internal/platform/db"
)

type Handler struct {
	monitor *Monitor
}

func NewHandler(monitor *Monitor) *Handler {
	return &Handler{monitor: monitor}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	admin := g.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/issues", h.GetIssues)
	admin.POST("/issues/refresh", h.RefreshIssues)
}

// GetIssues returns the latest report for the request's tenant, scanning once
// if none exists yet.
func (h *Handler) GetIssues(c echo.Context) error {
	ctx := c.Request().Context()
	tenant := db.TenantFromContext(ctx)
	report, err := h.monitor.Latest(tenant)
	if errors.Is(err, ErrNoReport) {
		report, err = h.monitor.Scan(ctx, tenant, TriggerManual)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "issue scan failed: "+err.Error())
	}
	return api.OK(c, report)
}

func (h *Handler) RefreshIssues(c echo.Context) error {
	ctx := c.Request().Context()
	report, err := h.monitor.Scan(ctx, db.TenantFromContext(ctx), TriggerManual)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "issue scan failed: "+err.Error())
	}
	return api.OK(c, report)
}
