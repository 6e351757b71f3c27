package orders

import (
	"sort"
	"strings"
	"time"

	"github.com/telerx/rxadmin/pkg/pagination"
)

// Query is the provider dashboard's search, filter and page selection.
type Query struct {
	// Search matches order number, patient name or created date, case-insensitively.
	Search         string
	Statuses       []OrderStatus
	ReviewStatuses []ReviewStatus
	// StuckOnly keeps submitted orders older than StuckAfter.
	StuckOnly  bool
	StuckAfter time.Duration
	// Location renders created dates for search; UTC when nil.
	Location *time.Location
	Page     pagination.Params
}

// DefaultStuckAfter is how long an order may sit in submitted before it is
// considered stuck.
const DefaultStuckAfter = 24 * time.Hour

// IsStuck reports whether o has been submitted for strictly longer than after.
func IsStuck(o *Order, now time.Time, after time.Duration) bool {
	return o.Status == StatusSubmitted && now.Sub(o.SubmittedAt) > after
}

// FilterOrders applies search and filters to a fully fetched order set, sorts
// newest first and returns the requested page. The input slice is not modified.
func FilterOrders(all []*Order, q Query, now time.Time) pagination.Page[*Order] {
	loc := q.Location
	if loc == nil {
		loc = time.UTC
	}
	stuckAfter := q.StuckAfter
	if stuckAfter <= 0 {
		stuckAfter = DefaultStuckAfter
	}
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	statuses := toSet(q.Statuses)
	reviews := toSet(q.ReviewStatuses)

	matched := make([]*Order, 0, len(all))
	for _, o := range all {
		if len(statuses) > 0 && !statuses[o.Status] {
			continue
		}
		if len(reviews) > 0 && !reviews[o.ReviewStatus] {
			continue
		}
		if q.StuckOnly && !IsStuck(o, now, stuckAfter) {
			continue
		}
		if needle != "" && !matchesSearch(o, needle, loc) {
			continue
		}
		matched = append(matched, o)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.OrderNumber < b.OrderNumber
	})

	return pagination.Slice(matched, q.Page)
}

func matchesSearch(o *Order, needle string, loc *time.Location) bool {
	created := o.CreatedAt.In(loc)
	fields := []string{
		o.OrderNumber,
		o.PatientName,
		created.Format("2006-01-02"),
		created.Format("Jan 2, 2006"),
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func toSet[T comparable](items []T) map[T]bool {
	set := make(map[T]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
