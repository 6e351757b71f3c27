package availability

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidTime is returned for clock strings that are not HH:MM or HH:MM:SS.
var ErrInvalidTime = errors.New("invalid time")

var dayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// DayName returns the short name for a day index, 0 being Sunday. Out of
// range indices return "".
func DayName(d int) string {
	if d < 0 || d > 6 {
		return ""
	}
	return dayNames[d]
}

// parseClock splits a 24h clock string into hour and minute. Seconds, when
// present, must be valid but are dropped.
func parseClock(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	limits := []int{23, 59, 59}
	vals := make([]int, len(parts))
	for i, p := range parts {
		if len(p) != 2 {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		vals[i] = n
	}
	return vals[0], vals[1], nil
}

// NormalizeTime returns s as zero-padded HH:MM.
func NormalizeTime(s string) (string, error) {
	h, m, err := parseClock(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// FormatTime renders a 24h clock string in 12h form: "17:00" becomes "5:00pm".
func FormatTime(s string) (string, error) {
	h, m, err := parseClock(s)
	if err != nil {
		return "", err
	}
	suffix := "am"
	if h >= 12 {
		suffix = "pm"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d%s", h12, m, suffix), nil
}

// FormatTimeRange renders "8:30am - 5:00pm".
func FormatTimeRange(start, end string) (string, error) {
	s, err := FormatTime(start)
	if err != nil {
		return "", err
	}
	e, err := FormatTime(end)
	if err != nil {
		return "", err
	}
	return s + " - " + e, nil
}

// FormatDays renders day indices as contiguous runs, e.g. [1,2,3,5] becomes
// "Mon - Wed, Fri". Duplicates and out of range indices are ignored.
func FormatDays(days []int) string {
	days = uniqueDays(days)
	if len(days) == 0 {
		return ""
	}

	var runs []string
	start := days[0]
	prev := days[0]
	flush := func() {
		if start == prev {
			runs = append(runs, DayName(start))
		} else {
			runs = append(runs, DayName(start)+" - "+DayName(prev))
		}
	}
	for _, d := range days[1:] {
		if d == prev+1 {
			prev = d
			continue
		}
		flush()
		start, prev = d, d
	}
	flush()
	return strings.Join(runs, ", ")
}

// uniqueDays returns the valid indices of days, sorted and de-duplicated.
func uniqueDays(days []int) []int {
	seen := make(map[int]bool, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}
