package orders

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/telerx/rxadmin/internal/platform/api"
	"github.com/telerx/rxadmin/internal/platform/auth"
	"github.com/telerx/rxadmin/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	read := g.Group("", auth.RequireRole(auth.RoleProvider, auth.RolePharmacist, auth.RoleSupport))
	read.GET("/orders", h.ListOrders)
	read.GET("/orders/:id", h.GetOrder)

	intake := g.Group("", auth.RequireRole(auth.RolePharmacist, auth.RoleSupport))
	intake.POST("/orders", h.CreateOrder)

	review := g.Group("", auth.RequireRole(auth.RoleProvider))
	review.POST("/orders/:id/review/start", h.StartReview)
	review.POST("/orders/:id/review/release", h.ReleaseReview)
	review.POST("/orders/:id/review/complete", h.CompleteReview)
}

func (h *Handler) CreateOrder(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	o, err := h.svc.CreateOrder(c.Request().Context(), req)
	if err != nil {
		return toHTTPError(err)
	}
	return api.Created(c, o)
}

func (h *Handler) GetOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.svc.GetOrder(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return api.OK(c, o)
}

// ListOrders serves the provider dashboard:
// ?q=&status=a,b&review_status=&stuck=true&tz=&page=&page_size=
func (h *Handler) ListOrders(c echo.Context) error {
	q := Query{
		Search: c.QueryParam("q"),
		Page:   pagination.FromContext(c),
	}
	for _, s := range splitList(c.QueryParam("status")) {
		st := OrderStatus(s)
		if !validOrderStatuses[st] {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status: "+s)
		}
		q.Statuses = append(q.Statuses, st)
	}
	for _, s := range splitList(c.QueryParam("review_status")) {
		rs := ReviewStatus(s)
		if !validReviewStatuses[rs] {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid review_status: "+s)
		}
		q.ReviewStatuses = append(q.ReviewStatuses, rs)
	}
	q.StuckOnly = c.QueryParam("stuck") == "true"
	if tz := c.QueryParam("tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid tz")
		}
		q.Location = loc
	}

	page, err := h.svc.ListOrders(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return api.OK(c, page)
}

func (h *Handler) StartReview(c echo.Context) error {
	return h.review(c, func(id uuid.UUID, caller string) (*Order, error) {
		return h.svc.StartReview(c.Request().Context(), id, caller)
	})
}

func (h *Handler) ReleaseReview(c echo.Context) error {
	return h.review(c, func(id uuid.UUID, caller string) (*Order, error) {
		return h.svc.ReleaseReview(c.Request().Context(), id, caller)
	})
}

func (h *Handler) CompleteReview(c echo.Context) error {
	var req CompleteRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	return h.review(c, func(id uuid.UUID, caller string) (*Order, error) {
		return h.svc.CompleteReview(c.Request().Context(), id, caller, req)
	})
}

func (h *Handler) review(c echo.Context, fn func(id uuid.UUID, caller string) (*Order, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	caller := auth.UserIDFromContext(c.Request().Context())
	if caller == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	o, err := fn(id, caller)
	if err != nil {
		return toHTTPError(err)
	}
	return api.OK(c, o)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidOrder), errors.Is(err, ErrInvalidDecision):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotReviewOwner):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrReviewLocked), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConcurrentUpdate):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return err
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
