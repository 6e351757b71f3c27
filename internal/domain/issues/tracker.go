package issues

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Record is the persisted history of one issue key.
type Record struct {
	Key        string     `json:"key"`
	Severity   Severity   `json:"severity"`
	Title      string     `json:"title"`
	FirstSeen  time.Time  `json:"first_seen"`
	LastSeen   time.Time  `json:"last_seen"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// HistoryStore persists issue records keyed by issue key.
type HistoryStore interface {
	Load(ctx context.Context) (map[string]Record, error)
	Upsert(ctx context.Context, recs []Record) error
	Delete(ctx context.Context, keys []string) error
}

// Tracker turns detected issues into dashboard issues with first-seen and
// duration values, and keeps recently resolved issues visible.
type Tracker struct {
	store HistoryStore
	mu    sync.Mutex
}

func NewTracker(store HistoryStore) *Tracker {
	return &Tracker{store: store}
}

// Track merges one detection cycle into the history and returns the issues to
// display: every detected issue plus those resolved within the last 24h.
func (t *Tracker) Track(ctx context.Context, now time.Time, detected []Issue) ([]Issue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	history, err := t.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load issue history: %w", err)
	}

	var (
		upserts []Record
		expired []string
		out     = make([]Issue, 0, len(detected))
		seen    = make(map[string]bool, len(detected))
	)

	for _, is := range detected {
		seen[is.Key] = true
		rec, ok := history[is.Key]
		if !ok || rec.ResolvedAt != nil {
			rec = Record{Key: is.Key, FirstSeen: now}
		}
		rec.Severity = is.Severity
		rec.Title = is.Title
		rec.LastSeen = now
		upserts = append(upserts, rec)

		is.DetectedAt = rec.FirstSeen
		is.LastSeenAt = rec.LastSeen
		is.Duration = rec.LastSeen.Sub(rec.FirstSeen)
		out = append(out, is)
	}

	for key, rec := range history {
		if seen[key] {
			continue
		}
		if rec.ResolvedAt == nil {
			resolved := now
			rec.ResolvedAt = &resolved
			upserts = append(upserts, rec)
		}
		if now.Sub(*rec.ResolvedAt) > resolvedVisibleFor {
			expired = append(expired, key)
			continue
		}
		out = append(out, Issue{
			Key:        rec.Key,
			Severity:   rec.Severity,
			Title:      rec.Title,
			DetectedAt: rec.FirstSeen,
			LastSeenAt: rec.LastSeen,
			IsResolved: true,
			Duration:   rec.LastSeen.Sub(rec.FirstSeen),
		})
	}

	if len(upserts) > 0 {
		if err := t.store.Upsert(ctx, upserts); err != nil {
			return nil, fmt.Errorf("save issue history: %w", err)
		}
	}
	if len(expired) > 0 {
		if err := t.store.Delete(ctx, expired); err != nil {
			return nil, fmt.Errorf("prune issue history: %w", err)
		}
	}

	sortIssues(out)
	return out, nil
}

var severityRank = map[Severity]int{SeverityCritical: 0, SeverityWarning: 1, SeverityInfo: 2}

// sortIssues orders active issues before resolved ones, then by severity and key.
func sortIssues(is []Issue) {
	sort.SliceStable(is, func(i, j int) bool {
		a, b := is[i], is[j]
		if a.IsResolved != b.IsResolved {
			return !a.IsResolved
		}
		if severityRank[a.Severity] != severityRank[b.Severity] {
			return severityRank[a.Severity] < severityRank[b.Severity]
		}
		return a.Key < b.Key
	})
}
