package vitals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/telerx/rxadmin/internal/platform/wearables"
)

var ErrInvalidRange = errors.New("invalid date range")

// maxRangeDays bounds a single vitals query in calendar days.
const maxRangeDays = 90

type WearablesAPI interface {
	LinkToken(ctx context.Context, userID string) (*wearables.LinkToken, error)
	Metrics(ctx context.Context, userID, category string, start, end time.Time) ([]wearables.Sample, error)
}

type Service struct {
	client WearablesAPI
	logger zerolog.Logger
}

func NewService(client WearablesAPI, logger zerolog.Logger) *Service {
	return &Service{client: client, logger: logger.With().Str("component", "vitals").Logger()}
}

// Query selects one category over whole calendar days [Start, End] in Location.
type Query struct {
	PatientID string
	Category  string
	Start     time.Time
	End       time.Time
	Location  *time.Location
}

type Report struct {
	PatientID string         `json:"patient_id"`
	Category  string         `json:"category"`
	Timezone  string         `json:"timezone"`
	Start     string         `json:"start"`
	End       string         `json:"end"`
	Days      []DailySummary `json:"days"`
}

func (s *Service) LinkToken(ctx context.Context, patientID string) (*wearables.LinkToken, error) {
	return s.client.LinkToken(ctx, patientID)
}

func (s *Service) Vitals(ctx context.Context, q Query) (*Report, error) {
	if q.Location == nil {
		q.Location = time.UTC
	}
	if !wearables.ValidCategory(q.Category) {
		return nil, fmt.Errorf("%w: %s", wearables.ErrUnknownCategory, q.Category)
	}
	if q.End.Before(q.Start) {
		return nil, fmt.Errorf("%w: end before start", ErrInvalidRange)
	}
	// End is inclusive. Days are counted on the calendar so a DST shift
	// inside the range does not change its length.
	next := q.End.AddDate(0, 0, 1)
	if next.After(q.Start.AddDate(0, 0, maxRangeDays)) {
		return nil, fmt.Errorf("%w: at most %d days", ErrInvalidRange, maxRangeDays)
	}
	until := next.Add(-time.Nanosecond)

	samples, err := s.client.Metrics(ctx, q.PatientID, q.Category, q.Start, until)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("patient_id", q.PatientID).Str("category", q.Category).Int("samples", len(samples)).Msg("vitals fetched")

	return &Report{
		PatientID: q.PatientID,
		Category:  q.Category,
		Timezone:  q.Location.String(),
		Start:     q.Start.Format(dateLayout),
		End:       q.End.Format(dateLayout),
		Days:      Aggregate(samples, q.Location),
	}, nil
}
