package availability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	// Timezone validation must not depend on the host's zoneinfo.
	_ "time/tzdata"
)

// ErrInvalidForm wraps every schedule form validation failure.
var ErrInvalidForm = errors.New("invalid availability form")

type rangeKey struct {
	start, end string
}

// GroupBlocks collapses rows sharing a (start, end) range into display blocks
// ordered by start then end time. Every row lands in exactly one block.
func GroupBlocks(rows []*Row) []Block {
	groups := make(map[rangeKey][]*Row)
	var keys []rangeKey
	for _, r := range rows {
		k := rangeKey{start: canonicalTime(r.StartTime), end: canonicalTime(r.EndTime)}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].start != keys[j].start {
			return keys[i].start < keys[j].start
		}
		return keys[i].end < keys[j].end
	})

	blocks := make([]Block, 0, len(keys))
	defaultIdx, defaultDays := -1, 0
	for _, k := range keys {
		group := groups[k]
		days := make([]int, 0, len(group))
		for _, r := range group {
			days = append(days, r.DayOfWeek)
		}
		days = uniqueDays(days)

		timeLabel, err := FormatTimeRange(k.start, k.end)
		if err != nil {
			timeLabel = k.start + " - " + k.end
		}
		blocks = append(blocks, Block{
			ID:         blockID(k.start, k.end),
			Label:      blockLabel(days),
			Days:       FormatDays(days),
			Time:       timeLabel,
			Timezone:   group[0].Timezone,
			DayIndices: days,
			StartTime:  k.start,
			EndTime:    k.end,
		})
		// Strictly greater keeps the earliest range on ties.
		if len(days) > defaultDays {
			defaultIdx, defaultDays = len(blocks)-1, len(days)
		}
	}
	if defaultIdx >= 0 {
		blocks[defaultIdx].IsDefault = true
	}
	return blocks
}

// RowsFromBlocks turns blocks back into one row per (day, range).
func RowsFromBlocks(providerID string, blocks []Block) []*Row {
	var rows []*Row
	for _, b := range blocks {
		for _, d := range b.DayIndices {
			rows = append(rows, &Row{
				ProviderID: providerID,
				DayOfWeek:  d,
				StartTime:  b.StartTime,
				EndTime:    b.EndTime,
				Timezone:   b.Timezone,
			})
		}
	}
	return rows
}

// ExpandForm validates a schedule form and expands it into one row per
// enabled day and range. Times are normalized to HH:MM.
func ExpandForm(providerID string, form Form) ([]*Row, error) {
	if providerID == "" {
		return nil, fmt.Errorf("%w: provider_id is required", ErrInvalidForm)
	}
	if strings.TrimSpace(form.Timezone) == "" {
		return nil, fmt.Errorf("%w: timezone is required", ErrInvalidForm)
	}
	if _, err := time.LoadLocation(form.Timezone); err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidForm, form.Timezone)
	}

	var enabled []int
	seen := make(map[int]bool)
	for _, d := range form.Days {
		if d.Day < 0 || d.Day > 6 {
			return nil, fmt.Errorf("%w: day %d out of range", ErrInvalidForm, d.Day)
		}
		if seen[d.Day] {
			return nil, fmt.Errorf("%w: day %d listed twice", ErrInvalidForm, d.Day)
		}
		seen[d.Day] = true
		if d.Enabled {
			enabled = append(enabled, d.Day)
		}
	}
	sort.Ints(enabled)

	ranges, err := normalizeRanges(form.Ranges)
	if err != nil {
		return nil, err
	}
	if len(enabled) > 0 && len(ranges) == 0 {
		return nil, fmt.Errorf("%w: at least one time range is required", ErrInvalidForm)
	}

	rows := make([]*Row, 0, len(enabled)*len(ranges))
	for _, d := range enabled {
		for _, tr := range ranges {
			rows = append(rows, &Row{
				ProviderID: providerID,
				DayOfWeek:  d,
				StartTime:  tr.Start,
				EndTime:    tr.End,
				Timezone:   form.Timezone,
			})
		}
	}
	return rows, nil
}

// AffectedDays lists every day named in the form, enabled or not. A replace
// clears all of them before inserting the new rows.
func AffectedDays(form Form) []int {
	days := make([]int, 0, len(form.Days))
	for _, d := range form.Days {
		days = append(days, d.Day)
	}
	return uniqueDays(days)
}

func normalizeRanges(in []TimeRange) ([]TimeRange, error) {
	out := make([]TimeRange, 0, len(in))
	for _, tr := range in {
		start, err := NormalizeTime(tr.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: start: %v", ErrInvalidForm, err)
		}
		end, err := NormalizeTime(tr.End)
		if err != nil {
			return nil, fmt.Errorf("%w: end: %v", ErrInvalidForm, err)
		}
		if start >= end {
			return nil, fmt.Errorf("%w: range %s-%s must end after it starts", ErrInvalidForm, start, end)
		}
		out = append(out, TimeRange{Start: start, End: end})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	for i := 1; i < len(out); i++ {
		if out[i].Start < out[i-1].End {
			return nil, fmt.Errorf("%w: ranges %s-%s and %s-%s overlap", ErrInvalidForm,
				out[i-1].Start, out[i-1].End, out[i].Start, out[i].End)
		}
	}
	return out, nil
}

func canonicalTime(s string) string {
	if n, err := NormalizeTime(s); err == nil {
		return n
	}
	return s
}

func blockID(start, end string) string {
	return "block-" + strings.ReplaceAll(start, ":", "") + "-" + strings.ReplaceAll(end, ":", "")
}

func blockLabel(days []int) string {
	if len(days) > 3 {
		return LabelWeek
	}
	weekend := len(days) > 0
	for _, d := range days {
		if d != 0 && d != 6 {
			weekend = false
			break
		}
	}
	if weekend {
		return LabelWeekend
	}
	return LabelCustom
}
