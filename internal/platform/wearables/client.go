// Package wearables is a client for the wearable-device aggregation API. It
// issues short-lived link tokens for the device-linking widget and reads
// time-series health metrics.
package wearables

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	serviceName = "wearables"
	// tokenSkew is how long before expiry a cached link token is discarded.
	tokenSkew = time.Minute
)

var (
	ErrNotConfigured   = errors.New("wearables: api key not configured")
	ErrUnknownCategory = errors.New("wearables: unknown metric category")
)

// Categories supported by Metrics.
const (
	HeartRate              = "heart_rate"
	BloodPressureSystolic  = "blood_pressure_systolic"
	BloodPressureDiastolic = "blood_pressure_diastolic"
	Steps                  = "steps"
	SleepMinutes           = "sleep_minutes"
	Weight                 = "weight"
	SpO2                   = "spo2"
)

var categories = map[string]bool{
	HeartRate: true, BloodPressureSystolic: true, BloodPressureDiastolic: true,
	Steps: true, SleepMinutes: true, Weight: true, SpO2: true,
}

// ValidCategory reports whether Metrics accepts category.
func ValidCategory(category string) bool {
	return categories[category]
}

// APIError is a non-2xx response from the aggregator.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wearables: HTTP %d: %s", e.StatusCode, e.Message)
}

type CallRecorder interface {
	ExternalCall(service, operation string, start time.Time, err error)
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithRecorder(r CallRecorder) Option {
	return func(cl *Client) { cl.metrics = r }
}

type Client struct {
	baseURL    string
	apiKey     string
	devID      string
	httpClient *http.Client
	metrics    CallRecorder
	tokens     *cache.Cache
	now        func() time.Time
}

func NewClient(baseURL, apiKey, devID string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		devID:      devID,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     cache.New(cache.NoExpiration, 10*time.Minute),
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type LinkToken struct {
	Token     string    `json:"link_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Sample is one time-series point.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
}

// LinkToken returns a link token for userID, reusing a cached one until
// shortly before it expires.
func (c *Client) LinkToken(ctx context.Context, userID string) (*LinkToken, error) {
	if userID == "" {
		return nil, errors.New("wearables: user id is required")
	}
	if v, ok := c.tokens.Get(userID); ok {
		tok := v.(LinkToken)
		return &tok, nil
	}

	body, _ := json.Marshal(map[string]string{"user_id": userID})
	var tok LinkToken
	if err := c.do(ctx, "link_token", http.MethodPost, "/v2/link/token", body, &tok); err != nil {
		return nil, err
	}
	if ttl := tok.ExpiresAt.Sub(c.now()) - tokenSkew; ttl > 0 {
		c.tokens.Set(userID, tok, ttl)
	}
	return &tok, nil
}

// Metrics reads samples for one category in [start, end].
func (c *Client) Metrics(ctx context.Context, userID, category string, start, end time.Time) ([]Sample, error) {
	if !ValidCategory(category) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	q := url.Values{}
	q.Set("start_date", start.UTC().Format(time.RFC3339))
	q.Set("end_date", end.UTC().Format(time.RFC3339))
	path := "/v2/timeseries/" + url.PathEscape(userID) + "/" + category + "?" + q.Encode()

	var out []Sample
	if err := c.do(ctx, "metrics", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks that the aggregator is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/v2/status", nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, payload []byte, out interface{}) (err error) {
	if c.apiKey == "" {
		return ErrNotConfigured
	}
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ExternalCall(serviceName, op, start, err)
		}
	}()

	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("wearables: build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if c.devID != "" {
		req.Header.Set("X-Dev-ID", c.devID)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wearables: %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("wearables: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Detail  string `json:"detail"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &e) == nil {
			apiErr.Message = e.Detail
			if apiErr.Message == "" {
				apiErr.Message = e.Message
			}
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
		return fmt.Errorf("wearables: decode %s response: %w", op, err)
	}
	return nil
}
