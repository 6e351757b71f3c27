package vitals

import (
	"math"
	"sort"
	"time"

	"github.com/telerx/rxadmin/internal/platform/wearables"
)

const dateLayout = "2006-01-02"

// DailySummary condenses one calendar day of samples.
type DailySummary struct {
	Date  string  `json:"date"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
	Unit  string  `json:"unit"`
}

// Aggregate groups samples by calendar day in loc and returns one summary per
// day, oldest first. Averages are rounded to two decimals.
func Aggregate(samples []wearables.Sample, loc *time.Location) []DailySummary {
	if loc == nil {
		loc = time.UTC
	}
	type acc struct {
		DailySummary
		sum float64
	}
	days := map[string]*acc{}
	for _, s := range samples {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		key := s.Timestamp.In(loc).Format(dateLayout)
		a, ok := days[key]
		if !ok {
			a = &acc{DailySummary: DailySummary{Date: key, Min: s.Value, Max: s.Value, Unit: s.Unit}}
			days[key] = a
		}
		a.Min = math.Min(a.Min, s.Value)
		a.Max = math.Max(a.Max, s.Value)
		a.sum += s.Value
		a.Count++
	}

	out := make([]DailySummary, 0, len(days))
	for _, a := range days {
		a.Avg = math.Round(a.sum/float64(a.Count)*100) / 100
		out = append(out, a.DailySummary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
