package availability

import (
	"errors"
	"reflect"
	"testing"
)

func row(day int, start, end string) *Row {
	return &Row{ProviderID: "prov-1", DayOfWeek: day, StartTime: start, EndTime: end, Timezone: "America/New_York"}
}

func TestGroupBlocks_GroupsByTimeRange(t *testing.T) {
	rows := []*Row{
		row(1, "08:30", "17:00"),
		row(2, "08:30", "17:00"),
		row(3, "08:30", "17:00"),
		row(4, "08:30", "17:00"),
		row(5, "08:30", "17:00"),
		row(6, "10:00", "14:00"),
		row(0, "10:00", "14:00"),
	}

	blocks := GroupBlocks(rows)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}

	week := blocks[0]
	if week.ID != "block-0830-1700" || week.Label != LabelWeek || !week.IsDefault {
		t.Errorf("unexpected week block: %+v", week)
	}
	if week.Days != "Mon - Fri" || week.Time != "8:30am - 5:00pm" {
		t.Errorf("unexpected week formatting: %q %q", week.Days, week.Time)
	}
	if week.Timezone != "America/New_York" {
		t.Errorf("unexpected timezone %q", week.Timezone)
	}

	weekend := blocks[1]
	if weekend.Label != LabelWeekend || weekend.IsDefault {
		t.Errorf("unexpected weekend block: %+v", weekend)
	}
	if !reflect.DeepEqual(weekend.DayIndices, []int{0, 6}) {
		t.Errorf("expected sorted day indices, got %v", weekend.DayIndices)
	}
	if weekend.Days != "Sun, Sat" {
		t.Errorf("unexpected weekend days %q", weekend.Days)
	}
}

func TestGroupBlocks_EveryRowInOneBlock(t *testing.T) {
	rows := []*Row{
		row(1, "09:00", "12:00"),
		row(1, "13:00", "17:00"),
		row(2, "09:00", "12:00"),
		row(2, "13:00", "17:00"),
		row(4, "18:00", "20:00"),
	}
	blocks := GroupBlocks(rows)

	count := 0
	for _, b := range blocks {
		count += len(b.DayIndices)
	}
	if count != len(rows) {
		t.Errorf("expected %d day slots across blocks, got %d", len(rows), count)
	}
	if blocks[0].StartTime != "09:00" || blocks[1].StartTime != "13:00" || blocks[2].StartTime != "18:00" {
		t.Errorf("blocks not ordered by start time: %+v", blocks)
	}
}

func TestGroupBlocks_Labels(t *testing.T) {
	tests := []struct {
		days []int
		want string
	}{
		{[]int{1, 3, 5, 6}, LabelWeek},
		{[]int{0, 6}, LabelWeekend},
		{[]int{6}, LabelWeekend},
		{[]int{1, 2, 3}, LabelCustom},
		{[]int{0, 1}, LabelCustom},
	}
	for _, tt := range tests {
		var rows []*Row
		for _, d := range tt.days {
			rows = append(rows, row(d, "09:00", "10:00"))
		}
		if got := GroupBlocks(rows)[0].Label; got != tt.want {
			t.Errorf("label for %v = %q, want %q", tt.days, got, tt.want)
		}
	}
}

func TestGroupBlocks_DefaultTieGoesToEarliest(t *testing.T) {
	rows := []*Row{
		row(1, "13:00", "17:00"),
		row(2, "13:00", "17:00"),
		row(1, "08:00", "12:00"),
		row(2, "08:00", "12:00"),
	}
	blocks := GroupBlocks(rows)
	if !blocks[0].IsDefault || blocks[1].IsDefault {
		t.Errorf("expected the earliest block to be default: %+v", blocks)
	}
}

func TestGroupBlocks_Empty(t *testing.T) {
	if blocks := GroupBlocks(nil); len(blocks) != 0 {
		t.Errorf("expected no blocks, got %v", blocks)
	}
}

func TestGroupBlocks_NormalizesSeconds(t *testing.T) {
	rows := []*Row{row(1, "08:30:00", "17:00:00"), row(2, "08:30", "17:00")}
	blocks := GroupBlocks(rows)
	if len(blocks) != 1 {
		t.Fatalf("expected rows with and without seconds to group together, got %d blocks", len(blocks))
	}
}

func TestRowsFromBlocks_RoundTrip(t *testing.T) {
	rows := []*Row{
		row(1, "08:30", "17:00"),
		row(3, "08:30", "17:00"),
		row(6, "10:00", "14:00"),
	}
	blocks := GroupBlocks(rows)
	again := GroupBlocks(RowsFromBlocks("prov-1", blocks))

	if !reflect.DeepEqual(blocks, again) {
		t.Errorf("round trip changed grouping:\n%+v\n%+v", blocks, again)
	}
}

func TestExpandForm(t *testing.T) {
	form := Form{
		Timezone: "America/Chicago",
		Days: []FormDay{
			{Day: 1, Enabled: true},
			{Day: 2, Enabled: false},
			{Day: 3, Enabled: true},
		},
		Ranges: []TimeRange{{Start: "13:00", End: "17:00"}, {Start: "08:00", End: "12:00"}},
	}
	rows, err := ExpandForm("prov-1", form)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows (2 days x 2 ranges), got %d", len(rows))
	}
	if rows[0].DayOfWeek != 1 || rows[0].StartTime != "08:00" || rows[0].Timezone != "America/Chicago" {
		t.Errorf("unexpected first row %+v", rows[0])
	}

	if got := AffectedDays(form); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("AffectedDays = %v", got)
	}
}

func TestExpandForm_Invalid(t *testing.T) {
	base := func() Form {
		return Form{
			Timezone: "UTC",
			Days:     []FormDay{{Day: 1, Enabled: true}},
			Ranges:   []TimeRange{{Start: "09:00", End: "17:00"}},
		}
	}
	tests := []struct {
		name   string
		mutate func(f *Form)
	}{
		{"missing timezone", func(f *Form) { f.Timezone = "" }},
		{"unknown timezone", func(f *Form) { f.Timezone = "Mars/Olympus" }},
		{"day out of range", func(f *Form) { f.Days[0].Day = 7 }},
		{"duplicate day", func(f *Form) { f.Days = append(f.Days, FormDay{Day: 1}) }},
		{"bad time", func(f *Form) { f.Ranges[0].Start = "9am" }},
		{"end before start", func(f *Form) { f.Ranges[0] = TimeRange{Start: "17:00", End: "09:00"} }},
		{"empty range", func(f *Form) { f.Ranges[0] = TimeRange{Start: "09:00", End: "09:00"} }},
		{"overlap", func(f *Form) { f.Ranges = append(f.Ranges, TimeRange{Start: "16:00", End: "18:00"}) }},
		{"no ranges", func(f *Form) { f.Ranges = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base()
			tt.mutate(&f)
			if _, err := ExpandForm("prov-1", f); !errors.Is(err, ErrInvalidForm) {
				t.Errorf("expected ErrInvalidForm, got %v", err)
			}
		})
	}
}

func TestExpandForm_AdjacentRangesAllowed(t *testing.T) {
	f := Form{
		Timezone: "UTC",
		Days:     []FormDay{{Day: 2, Enabled: true}},
		Ranges:   []TimeRange{{Start: "09:00", End: "12:00"}, {Start: "12:00", End: "15:00"}},
	}
	if _, err := ExpandForm("prov-1", f); err != nil {
		t.Errorf("touching ranges should be allowed: %v", err)
	}
}

func TestExpandForm_AllDisabledClears(t *testing.T) {
	f := Form{Timezone: "UTC", Days: []FormDay{{Day: 2}, {Day: 3}}}
	rows, err := ExpandForm("prov-1", f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}
