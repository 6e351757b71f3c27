package availability

import (
	"time"

	"github.com/google/uuid"
)

// Row is one stored availability window: a provider is available on one day
// of the week between StartTime and EndTime (24h HH:MM) in Timezone.
type Row struct {
	ID         uuid.UUID `json:"id"`
	ProviderID string    `json:"provider_id"`
	DayOfWeek  int       `json:"day_of_week"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	Timezone   string    `json:"timezone"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	LabelWeek    = "Week"
	LabelWeekend = "Weekend"
	LabelCustom  = "Custom"
)

// Block groups the rows that share one time range for display.
type Block struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	IsDefault  bool   `json:"is_default"`
	Days       string `json:"days"`
	Time       string `json:"time"`
	Timezone   string `json:"timezone"`
	DayIndices []int  `json:"day_indices"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

// Form is the weekly schedule editor payload: every enabled day gets every range.
type Form struct {
	Timezone string      `json:"timezone"`
	Days     []FormDay   `json:"days"`
	Ranges   []TimeRange `json:"ranges"`
}

type FormDay struct {
	Day     int  `json:"day"`
	Enabled bool `json:"enabled"`
}

type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Schedule is a provider's availability as both display blocks and raw rows.
type Schedule struct {
	ProviderID string  `json:"provider_id"`
	Blocks     []Block `json:"blocks"`
	Rows       []*Row  `json:"rows"`
}
