package issues

import (
	"context"
	"time"
)

// Checker probes one dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

const defaultDegradedAfter = 2 * time.Second

type pingChecker struct {
	name          string
	ping          func(ctx context.Context) error
	degradedAfter time.Duration
}

// NewPingChecker reports down when ping fails and degraded when it succeeds
// slower than degradedAfter (2s when zero).
func NewPingChecker(name string, ping func(ctx context.Context) error, degradedAfter time.Duration) Checker {
	if degradedAfter <= 0 {
		degradedAfter = defaultDegradedAfter
	}
	return &pingChecker{name: name, ping: ping, degradedAfter: degradedAfter}
}

func (p *pingChecker) Name() string { return p.name }

func (p *pingChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	err := p.ping(ctx)
	res := CheckResult{Name: p.name, Status: StatusHealthy, Latency: time.Since(start)}
	switch {
	case err != nil:
		res.Status = StatusDown
		res.Error = err.Error()
	case res.Latency > p.degradedAfter:
		res.Status = StatusDegraded
	}
	return res
}
