package issues

import (
	"fmt"
	"sort"
	"time"
)

// Detect applies the alerting rules to one snapshot. It has no side effects;
// DetectedAt and LastSeenAt are set to now and later corrected by the Tracker.
func Detect(now time.Time, snap Snapshot, th Thresholds) []Issue {
	var out []Issue

	for _, c := range snap.Checks {
		if c.Status == StatusHealthy {
			continue
		}
		sev := SeverityWarning
		if c.Status == StatusDown {
			sev = SeverityCritical
		}
		out = append(out, Issue{
			Key:      apiErrorKeyPrefix + c.Name,
			Severity: sev,
			Title:    fmt.Sprintf("%s API is %s", c.Name, c.Status),
			Detail:   c.Error,
		})
	}

	if n := countRecentErrors(now, snap.ErrorLogs); n > th.ErrorsPerHour {
		out = append(out, Issue{
			Key:      KeyMultipleErrors,
			Severity: SeverityWarning,
			Title:    fmt.Sprintf("%d errors logged in the last hour", n),
			Detail:   fmt.Sprintf("threshold is %d per hour", th.ErrorsPerHour),
		})
	}

	if n := countStuck(now, snap.Prescriptions, th.StuckAfter); n > 0 {
		out = append(out, Issue{
			Key:      KeyStuckPrescriptions,
			Severity: SeverityWarning,
			Title:    stuckTitle(n),
			Detail:   fmt.Sprintf("submitted more than %s ago", th.StuckAfter),
		})
	}

	for i := range out {
		out[i].DetectedAt = now
		out[i].LastSeenAt = now
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// countRecentErrors counts timestamps in (now-1h, now].
func countRecentErrors(now time.Time, logs []time.Time) int {
	from := now.Add(-errorWindow)
	n := 0
	for _, ts := range logs {
		if ts.After(from) && !ts.After(now) {
			n++
		}
	}
	return n
}

func countStuck(now time.Time, ps []Prescription, after time.Duration) int {
	n := 0
	for _, p := range ps {
		if p.Status == submittedStatus && now.Sub(p.SubmittedAt) > after {
			n++
		}
	}
	return n
}

func stuckTitle(n int) string {
	if n == 1 {
		return "1 prescription stuck in submitted"
	}
	return fmt.Sprintf("%d prescriptions stuck in submitted", n)
}
