package issues

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/telerx/rxadmin/internal/platform/auth"
	"github.com/telerx/rxadmin/internal/platform/db"
)

func TestMain(m *testing.M) {
	// go-cache janitors stop only when their cache is garbage collected.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

type recorder struct {
	mu     sync.Mutex
	counts map[string]map[string]int
	scans  map[string]int
}

func (r *recorder) SetActiveIssues(tenant string, counts map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]map[string]int{}
	}
	r.counts[tenant] = counts
}

func (r *recorder) IssueScan(trigger string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scans == nil {
		r.scans = map[string]int{}
	}
	key := trigger
	if err != nil {
		key += ":error"
	}
	r.scans[key]++
}

func (r *recorder) scanCount(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scans[key]
}

func newTestMonitor(t *testing.T, interval time.Duration, checkers []Checker, ps PrescriptionSource) (*Monitor, *recorder) {
	t.Helper()
	rec := &recorder{}
	m := NewMonitor(MonitorConfig{Interval: interval, Thresholds: DefaultThresholds()},
		checkers, NewErrorLogCounter(), ps, nil, nil, rec, zerolog.Nop())
	m.now = func() time.Time { return now }
	return m, rec
}

func TestMonitor_Scan(t *testing.T) {
	down := NewPingChecker("payments", func(context.Context) error { return errors.New("503") }, 0)
	up := NewPingChecker("database", func(context.Context) error { return nil }, 0)
	stuck := PrescriptionsFunc(func(context.Context) ([]Prescription, error) {
		return []Prescription{{Status: "submitted", SubmittedAt: now.Add(-25 * time.Hour)}}, nil
	})

	m, rec := newTestMonitor(t, time.Minute, []Checker{down, up}, stuck)

	_, err := m.Latest("")
	assert.ErrorIs(t, err, ErrNoReport)

	report, err := m.Scan(context.Background(), "", TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, []string{"api-error-payments", KeyStuckPrescriptions}, keys(report.Issues))
	require.Len(t, report.Checks, 2)
	assert.Equal(t, StatusDown, report.Checks[0].Status)
	assert.Equal(t, StatusHealthy, report.Checks[1].Status)

	assert.Equal(t, "default", report.Tenant)
	latest, err := m.Latest("default")
	require.NoError(t, err)
	assert.Same(t, report, latest)

	assert.Equal(t, map[string]int{"critical": 1, "warning": 1}, rec.counts["default"])
	assert.Equal(t, 1, rec.scanCount(TriggerManual))
}

func TestMonitor_ScanErrorKeepsPreviousReport(t *testing.T) {
	var fail atomic.Bool
	src := PrescriptionsFunc(func(context.Context) ([]Prescription, error) {
		if fail.Load() {
			return nil, errors.New("db gone")
		}
		return nil, nil
	})
	m, rec := newTestMonitor(t, time.Minute, nil, src)

	first, err := m.Scan(context.Background(), "", TriggerPoll)
	require.NoError(t, err)

	fail.Store(true)
	_, err = m.Scan(context.Background(), "", TriggerPoll)
	assert.ErrorContains(t, err, "db gone")

	latest, _ := m.Latest("")
	assert.Same(t, first, latest)
	assert.Equal(t, 1, rec.scanCount(TriggerPoll+":error"))
}

func TestMonitor_ScopeWrapsDatabaseWork(t *testing.T) {
	var sawScope atomic.Bool
	src := PrescriptionsFunc(func(ctx context.Context) ([]Prescription, error) {
		sawScope.Store(db.TenantFromContext(ctx) == "acme")
		return nil, nil
	})
	m := NewMonitor(MonitorConfig{Interval: time.Minute}, nil, nil, src, nil, tenantScope, nil, zerolog.Nop())

	_, err := m.Scan(context.Background(), "acme", TriggerManual)
	require.NoError(t, err)
	assert.True(t, sawScope.Load())
}

func TestMonitor_StartPollsAndStops(t *testing.T) {
	m, rec := newTestMonitor(t, 10*time.Millisecond, nil, nil)
	m.Start(context.Background())

	require.Eventually(t, func() bool { return rec.scanCount(TriggerPoll) >= 3 }, 2*time.Second, 5*time.Millisecond)
	m.Stop()
	m.Stop()

	n := rec.scanCount(TriggerPoll)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, rec.scanCount(TriggerPoll), "no polling after Stop")
}

func TestMonitor_StopsWithContext(t *testing.T) {
	m, _ := newTestMonitor(t, time.Hour, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	cancel()
	m.Stop()
}

func TestPingChecker_Degraded(t *testing.T) {
	slow := NewPingChecker("wearables", func(context.Context) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	}, time.Millisecond)
	res := slow.Check(context.Background())
	assert.Equal(t, "wearables", res.Name)
	assert.Equal(t, StatusDegraded, res.Status)
	assert.GreaterOrEqual(t, res.Latency, 5*time.Millisecond)
}

// tenantScope marks ctx with the tenant the way the tenant connection does.
func tenantScope(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	return fn(context.WithValue(ctx, db.TenantIDKey, tenantID))
}

// stuckFor reports a stuck prescription only for the listed tenants and
// records every tenant it was asked about.
type stuckFor struct {
	mu      sync.Mutex
	tenants map[string]bool
	seen    []string
}

func (s *stuckFor) SubmittedPrescriptions(ctx context.Context) ([]Prescription, error) {
	tenant := db.TenantFromContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, tenant)
	if s.tenants[tenant] {
		return []Prescription{{Status: "submitted", SubmittedAt: now.Add(-25 * time.Hour)}}, nil
	}
	return nil, nil
}

func (s *stuckFor) seenTenants() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

func TestMonitor_TenantsAreIsolated(t *testing.T) {
	src := &stuckFor{tenants: map[string]bool{"default": true}}
	rec := &recorder{}
	m := NewMonitor(MonitorConfig{Interval: time.Minute}, nil, nil, src, nil, tenantScope, rec, zerolog.Nop())
	m.now = func() time.Time { return now }

	def, err := m.Scan(context.Background(), "default", TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyStuckPrescriptions}, keys(def.Issues))

	acme, err := m.Scan(context.Background(), "acme", TriggerManual)
	require.NoError(t, err)
	assert.Empty(t, acme.Issues)
	assert.Equal(t, "acme", acme.Tenant)

	// The default tenant's history must not leak into acme's tracker.
	acme, err = m.Scan(context.Background(), "acme", TriggerManual)
	require.NoError(t, err)
	assert.Empty(t, acme.Issues)

	latest, err := m.Latest("default")
	require.NoError(t, err)
	assert.Same(t, def, latest)
	assert.Equal(t, []string{"default", "acme", "acme"}, src.seenTenants())
	assert.Equal(t, map[string]int{"warning": 1}, rec.counts["default"])
	assert.Equal(t, map[string]int{}, rec.counts["acme"])
}

func TestMonitor_PollScansEveryTenant(t *testing.T) {
	src := &stuckFor{tenants: map[string]bool{"acme": true}}
	var pings atomic.Int32
	ping := NewPingChecker("payments", func(context.Context) error {
		pings.Add(1)
		return nil
	}, 0)
	m := NewMonitor(MonitorConfig{
		Interval: time.Hour,
		Tenants: func(context.Context) ([]string, error) {
			return []string{"acme", "globex"}, nil
		},
	}, []Checker{ping}, nil, src, nil, tenantScope, nil, zerolog.Nop())
	m.now = func() time.Time { return now }

	m.Start(context.Background())
	require.Eventually(t, func() bool {
		_, err := m.Latest("globex")
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	m.Stop()

	acme, err := m.Latest("acme")
	require.NoError(t, err)
	assert.Equal(t, []string{KeyStuckPrescriptions}, keys(acme.Issues))

	_, err = m.Latest("default")
	assert.ErrorIs(t, err, ErrNoReport, "unlisted tenants are not polled")
	assert.Equal(t, int32(1), pings.Load(), "checks run once per poll")
}

func TestHandler_Issues(t *testing.T) {
	src := &stuckFor{tenants: map[string]bool{"default": true}}
	m := NewMonitor(MonitorConfig{Interval: time.Minute}, []Checker{
		NewPingChecker("payments", func(context.Context) error { return errors.New("timeout") }, 0),
	}, nil, src, nil, tenantScope, nil, zerolog.Nop())
	m.now = func() time.Time { return now }
	h := NewHandler(m)

	e := echo.New()
	h.RegisterRoutes(e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			roles := []string{req.Header.Get("X-Test-Role")}
			ctx := auth.WithUser(req.Context(), "u-1", "", roles)
			ctx = context.WithValue(ctx, db.TenantIDKey, req.Header.Get("X-Test-Tenant"))
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}))

	do := func(method, path, role, tenant string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("X-Test-Role", role)
		req.Header.Set("X-Test-Tenant", tenant)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodGet, "/api/v1/admin/issues", auth.RoleProvider, "default")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(http.MethodGet, "/api/v1/admin/issues", auth.RoleAdmin, "default")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"key":"api-error-payments"`)
	assert.Contains(t, rec.Body.String(), `"key":"stuck-prescriptions"`)

	rec = do(http.MethodPost, "/api/v1/admin/issues/refresh", auth.RoleAdmin, "acme")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"trigger":"manual"`)
	assert.Contains(t, rec.Body.String(), `"tenant":"acme"`)
	assert.NotContains(t, rec.Body.String(), `"key":"stuck-prescriptions"`)

	rec = do(http.MethodGet, "/api/v1/admin/issues", auth.RoleAdmin, "acme")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"key":"stuck-prescriptions"`)

	assert.Equal(t, []string{"default", "acme"}, src.seenTenants())
}
