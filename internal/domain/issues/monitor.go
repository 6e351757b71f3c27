package issues

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	TriggerPoll   = "poll"
	TriggerManual = "manual"

	defaultTenant = "default"
)

// ErrNoReport is returned before the first scan of a tenant has completed.
var ErrNoReport = errors.New("no issue report yet")

// PrescriptionSource lists orders still in the submitted state.
type PrescriptionSource interface {
	SubmittedPrescriptions(ctx context.Context) ([]Prescription, error)
}

// PrescriptionsFunc adapts a function to PrescriptionSource.
type PrescriptionsFunc func(ctx context.Context) ([]Prescription, error)

func (f PrescriptionsFunc) SubmittedPrescriptions(ctx context.Context) ([]Prescription, error) {
	return f(ctx)
}

// ScopeFunc runs fn against one tenant's data.
type ScopeFunc func(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error

// TenantLister returns the tenants the polling loop scans.
type TenantLister func(ctx context.Context) ([]string, error)

// StoreFactory returns the history store for a tenant. It is called once per
// tenant.
type StoreFactory func(tenantID string) HistoryStore

// Recorder receives scan outcomes.
type Recorder interface {
	SetActiveIssues(tenant string, counts map[string]int)
	IssueScan(trigger string, err error)
}

type MonitorConfig struct {
	Interval   time.Duration
	Thresholds Thresholds
	// ScanTimeout bounds a single tenant scan. Defaults to Interval.
	ScanTimeout time.Duration
	// DefaultTenant is used when a caller passes no tenant, and is the only
	// tenant polled when Tenants is nil.
	DefaultTenant string
	Tenants       TenantLister
}

// Monitor periodically collects a snapshot per tenant, detects issues and
// tracks them. Health checks and error logs are process wide; prescriptions
// and issue history belong to a tenant.
type Monitor struct {
	cfg           MonitorConfig
	checkers      []Checker
	errorLogs     *ErrorLogCounter
	prescriptions PrescriptionSource
	stores        StoreFactory
	scope         ScopeFunc
	metrics       Recorder
	logger        zerolog.Logger
	now           func() time.Time

	mu       sync.RWMutex
	latest   map[string]*Report
	trackers map[string]*Tracker

	scanMu sync.Mutex

	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewMonitor(cfg MonitorConfig, checkers []Checker, errorLogs *ErrorLogCounter, prescriptions PrescriptionSource,
	stores StoreFactory, scope ScopeFunc, metrics Recorder, logger zerolog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = cfg.Interval
	}
	if cfg.DefaultTenant == "" {
		cfg.DefaultTenant = defaultTenant
	}
	if stores == nil {
		stores = func(string) HistoryStore { return NewMemoryHistoryStore() }
	}
	if scope == nil {
		scope = func(ctx context.Context, _ string, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Monitor{
		cfg:           cfg,
		checkers:      checkers,
		errorLogs:     errorLogs,
		prescriptions: prescriptions,
		stores:        stores,
		scope:         scope,
		metrics:       metrics,
		logger:        logger.With().Str("component", "issue-monitor").Logger(),
		now:           time.Now,
		latest:        make(map[string]*Report),
		trackers:      make(map[string]*Tracker),
	}
}

// Start scans every tenant immediately and then every interval until Stop is
// called or ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		m.poll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.poll(ctx)
			}
		}
	}()
}

// Stop cancels polling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
	})
	m.wg.Wait()
}

// poll runs the health checks once and reuses them for every tenant.
func (m *Monitor) poll(ctx context.Context) {
	tenants := []string{m.cfg.DefaultTenant}
	if m.cfg.Tenants != nil {
		list, err := m.cfg.Tenants(ctx)
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Error().Err(err).Msg("list tenants failed")
			}
			return
		}
		tenants = list
	}

	checks := m.runChecks(ctx)
	for _, tenant := range tenants {
		if ctx.Err() != nil {
			return
		}
		if _, err := m.scan(ctx, tenant, TriggerPoll, checks); err != nil && ctx.Err() == nil {
			m.logger.Error().Err(err).Str("tenant_id", tenant).Msg("issue scan failed")
		}
	}
}

func (m *Monitor) tenant(tenantID string) string {
	if tenantID == "" {
		return m.cfg.DefaultTenant
	}
	return tenantID
}

// Latest returns the most recent report for a tenant.
func (m *Monitor) Latest(tenantID string) (*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.latest[m.tenant(tenantID)]
	if !ok {
		return nil, ErrNoReport
	}
	return r, nil
}

// Scan runs one detection cycle for a tenant and stores its report.
func (m *Monitor) Scan(ctx context.Context, tenantID, trigger string) (*Report, error) {
	return m.scan(ctx, m.tenant(tenantID), trigger, nil)
}

// scan runs the checks itself when checks is nil.
func (m *Monitor) scan(ctx context.Context, tenantID, trigger string, checks []CheckResult) (*Report, error) {
	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ScanTimeout)
	defer cancel()

	if checks == nil {
		checks = m.runChecks(ctx)
	}
	report, err := m.detect(ctx, tenantID, trigger, checks)
	if m.metrics != nil {
		m.metrics.IssueScan(trigger, err)
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.latest[tenantID] = report
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetActiveIssues(tenantID, report.Counts())
	}
	m.logger.Debug().Str("tenant_id", tenantID).Str("trigger", trigger).Int("issues", len(report.Issues)).Msg("issue scan complete")
	return report, nil
}

func (m *Monitor) trackerFor(tenantID string) *Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trackers[tenantID]
	if !ok {
		t = NewTracker(m.stores(tenantID))
		m.trackers[tenantID] = t
	}
	return t
}

func (m *Monitor) detect(ctx context.Context, tenantID, trigger string, checks []CheckResult) (*Report, error) {
	snap := Snapshot{Checks: checks}
	if m.errorLogs != nil {
		snap.ErrorLogs = m.errorLogs.Timestamps()
	}

	tracker := m.trackerFor(tenantID)
	var tracked []Issue
	err := m.scope(ctx, tenantID, func(ctx context.Context) error {
		if m.prescriptions != nil {
			ps, err := m.prescriptions.SubmittedPrescriptions(ctx)
			if err != nil {
				return fmt.Errorf("list submitted prescriptions: %w", err)
			}
			snap.Prescriptions = ps
		}
		now := m.now()
		var err error
		tracked, err = tracker.Track(ctx, now, Detect(now, snap, m.cfg.Thresholds))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, err)
	}

	return &Report{
		Tenant:      tenantID,
		GeneratedAt: m.now(),
		Trigger:     trigger,
		Issues:      tracked,
		Checks:      checks,
	}, nil
}

// runChecks probes every dependency concurrently.
func (m *Monitor) runChecks(ctx context.Context) []CheckResult {
	out := make([]CheckResult, len(m.checkers))
	var wg sync.WaitGroup
	for i, c := range m.checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			out[i] = c.Check(ctx)
		}(i, c)
	}
	wg.Wait()
	return out
}
