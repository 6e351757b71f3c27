// Package payments is a client for the hosted payment processor: customers,
// checkout sessions, and the self-service billing portal. Requests are
// form-encoded and authenticated with the secret key as a bearer token.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const serviceName = "payments"

// ErrNotConfigured is returned when no secret key was supplied.
var ErrNotConfigured = errors.New("payments: secret key not configured")

// APIError is a non-2xx response from the processor.
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("payments: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("payments: HTTP %d %s: %s", e.StatusCode, e.Type, e.Message)
}

// CallRecorder observes every outbound call.
type CallRecorder interface {
	ExternalCall(service, operation string, start time.Time, err error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRecorder reports every call to r.
func WithRecorder(r CallRecorder) Option {
	return func(cl *Client) { cl.metrics = r }
}

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	metrics    CallRecorder
}

func NewClient(baseURL, secretKey string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Session is a hosted checkout or portal session.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type LineItem struct {
	PriceID  string
	Quantity int
}

type CheckoutParams struct {
	CustomerID string
	Mode       string // payment or subscription; defaults to payment
	LineItems  []LineItem
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

func (c *Client) CreateCustomer(ctx context.Context, email, name string) (*Customer, error) {
	form := url.Values{}
	form.Set("email", email)
	if name != "" {
		form.Set("name", name)
	}
	var out Customer
	if err := c.do(ctx, "create_customer", http.MethodPost, "/v1/customers", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error) {
	if len(p.LineItems) == 0 {
		return nil, errors.New("payments: checkout requires at least one line item")
	}
	if p.SuccessURL == "" || p.CancelURL == "" {
		return nil, errors.New("payments: checkout requires success and cancel urls")
	}
	mode := p.Mode
	if mode == "" {
		mode = "payment"
	}

	form := url.Values{}
	form.Set("mode", mode)
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	if p.CustomerID != "" {
		form.Set("customer", p.CustomerID)
	}
	for i, li := range p.LineItems {
		qty := li.Quantity
		if qty <= 0 {
			qty = 1
		}
		prefix := "line_items[" + strconv.Itoa(i) + "]"
		form.Set(prefix+"[price]", li.PriceID)
		form.Set(prefix+"[quantity]", strconv.Itoa(qty))
	}
	keys := make([]string, 0, len(p.Metadata))
	for k := range p.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		form.Set("metadata["+k+"]", p.Metadata[k])
	}

	var out Session
	if err := c.do(ctx, "create_checkout_session", http.MethodPost, "/v1/checkout/sessions", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*Session, error) {
	if customerID == "" {
		return nil, errors.New("payments: customer id is required")
	}
	form := url.Values{}
	form.Set("customer", customerID)
	if returnURL != "" {
		form.Set("return_url", returnURL)
	}
	var out Session
	if err := c.do(ctx, "create_portal_session", http.MethodPost, "/v1/billing_portal/sessions", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping checks that the processor is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/v1/balance", nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, form url.Values, out interface{}) (err error) {
	if c.secretKey == "" {
		return ErrNotConfigured
	}
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ExternalCall(serviceName, op, start, err)
		}
	}()

	var body io.Reader = http.NoBody
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("payments: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payments: %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("payments: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
			apiErr.Type = envelope.Error.Type
			apiErr.Message = envelope.Error.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("payments: decode %s response: %w", op, err)
	}
	return nil
}
