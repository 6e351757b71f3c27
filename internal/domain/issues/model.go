package issues

import (
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// HealthStatus is the outcome of one dependency health check.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusDown     HealthStatus = "down"
)

const (
	KeyMultipleErrors     = "multiple-errors"
	KeyStuckPrescriptions = "stuck-prescriptions"
	apiErrorKeyPrefix     = "api-error-"

	defaultErrorsPerHour = 5
	defaultStuckAfter    = 24 * time.Hour
	errorWindow          = time.Hour
	resolvedVisibleFor   = 24 * time.Hour
	submittedStatus      = "submitted"
)

// Issue is one synthesized alert on the admin dashboard.
type Issue struct {
	Key        string        `json:"key"`
	Severity   Severity      `json:"severity"`
	Title      string        `json:"title"`
	Detail     string        `json:"detail,omitempty"`
	DetectedAt time.Time     `json:"detected_at"`
	LastSeenAt time.Time     `json:"last_seen_at"`
	IsResolved bool          `json:"is_resolved"`
	Duration   time.Duration `json:"duration"`
}

type CheckResult struct {
	Name    string        `json:"name"`
	Status  HealthStatus  `json:"status"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// Prescription is the slice of an order the stuck rule needs.
type Prescription struct {
	ID          uuid.UUID `json:"id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Snapshot is everything one detection cycle looks at.
type Snapshot struct {
	Checks        []CheckResult
	ErrorLogs     []time.Time
	Prescriptions []Prescription
}

type Thresholds struct {
	// ErrorsPerHour is exceeded when strictly more errors were logged in the
	// last hour.
	ErrorsPerHour int
	StuckAfter    time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{ErrorsPerHour: defaultErrorsPerHour, StuckAfter: defaultStuckAfter}
}

// Report is the result of one monitor cycle.
type Report struct {
	Tenant      string        `json:"tenant"`
	GeneratedAt time.Time     `json:"generated_at"`
	Trigger     string        `json:"trigger"`
	Issues      []Issue       `json:"issues"`
	Checks      []CheckResult `json:"checks"`
}

// Counts returns the number of unresolved issues per severity.
func (r *Report) Counts() map[string]int {
	out := map[string]int{}
	if r == nil {
		return out
	}
	for _, is := range r.Issues {
		if !is.IsResolved {
			out[string(is.Severity)]++
		}
	}
	return out
}
