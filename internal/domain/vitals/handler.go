package vitals

import (
	"errors"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/labstack/echo/v4"

	"github.com/telerx/rxadmin/internal/platform/api"
	"github.com/telerx/rxadmin/internal/platform/auth"
	"github.com/telerx/rxadmin/internal/platform/wearables"
)

const defaultDays = 7

type Handler struct {
	svc *Service
	now func() time.Time
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	patients := g.Group("/patients", auth.RequireRole(auth.RoleProvider, auth.RolePharmacist, auth.RoleSupport))
	patients.POST("/:id/devices/link-token", h.CreateLinkToken)
	patients.GET("/:id/vitals", h.GetVitals)
}

func (h *Handler) CreateLinkToken(c echo.Context) error {
	tok, err := h.svc.LinkToken(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return api.Created(c, tok)
}

// GetVitals serves ?category=&start=YYYY-MM-DD&end=YYYY-MM-DD&tz=. The range
// defaults to the last seven days ending today in tz.
func (h *Handler) GetVitals(c echo.Context) error {
	loc := time.UTC
	if tz := c.QueryParam("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid tz")
		}
		loc = l
	}

	today := h.now().In(loc)
	end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	if s := c.QueryParam("end"); s != "" {
		d, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "end must be YYYY-MM-DD")
		}
		end = d
	}
	start := end.AddDate(0, 0, -(defaultDays - 1))
	if s := c.QueryParam("start"); s != "" {
		d, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "start must be YYYY-MM-DD")
		}
		start = d
	}

	report, err := h.svc.Vitals(c.Request().Context(), Query{
		PatientID: c.Param("id"),
		Category:  c.QueryParam("category"),
		Start:     start,
		End:       end,
		Location:  loc,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return api.OK(c, report)
}

func toHTTPError(err error) error {
	var apiErr *wearables.APIError
	switch {
	case errors.Is(err, ErrInvalidRange), errors.Is(err, wearables.ErrUnknownCategory):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, wearables.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "wearables integration is not configured")
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "no linked devices for patient")
		}
		return echo.NewHTTPError(http.StatusBadGateway, "wearables provider error: "+apiErr.Message)
	default:
		return err
	}
}
