package billing

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/telerx/rxadmin/internal/platform/payments"
)

func postJSON(e *echo.Echo, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_Checkout(t *testing.T) {
	env := newTestEnv()
	h, e := NewHandler(env.svc), echo.New()
	o := env.order(t)

	body := `{"order_id":"` + o.ID.String() + `","price_id":"price_1","email":"ana@example.com","success_url":"https://a","cancel_url":"https://b"}`
	c, rec := postJSON(e, body)
	if err := h.Checkout(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"url":"https://pay.test/cs_1"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", ErrInvalidRequest, http.StatusBadRequest},
		{"no customer", ErrCustomerNotFound, http.StatusNotFound},
		{"not payable", ErrOrderNotPayable, http.StatusConflict},
		{"card declined", &payments.APIError{StatusCode: http.StatusPaymentRequired, Message: "declined"}, http.StatusPaymentRequired},
		{"processor down", &payments.APIError{StatusCode: http.StatusInternalServerError}, http.StatusBadGateway},
		{"not configured", payments.ErrNotConfigured, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr, ok := toHTTPError(tt.err).(*echo.HTTPError)
			if !ok || httpErr.Code != tt.want {
				t.Errorf("expected %d, got %v", tt.want, toHTTPError(tt.err))
			}
		})
	}
}

func TestHandler_Portal_BadBody(t *testing.T) {
	env := newTestEnv()
	h, e := NewHandler(env.svc), echo.New()
	c, _ := postJSON(e, `{"patient_id":"not-a-uuid"}`)
	err := h.Portal(c)
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
