package availability

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telerx/rxadmin/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

// conn prefers the transaction opened by the service so that a replace
// deletes and inserts atomically.
func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const rowCols = `id, provider_id, day_of_week, start_time, end_time, timezone, created_at`

func scanRow(row pgx.Row) (*Row, error) {
	var a Row
	err := row.Scan(&a.ID, &a.ProviderID, &a.DayOfWeek, &a.StartTime, &a.EndTime, &a.Timezone, &a.CreatedAt)
	return &a, err
}

func (r *repoPG) ListByProvider(ctx context.Context, providerID string) ([]*Row, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+rowCols+` FROM provider_availability
		WHERE provider_id = $1 ORDER BY day_of_week, start_time`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	defer rows.Close()

	var items []*Row
	for rows.Next() {
		a, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) DeleteDays(ctx context.Context, providerID string, days []int) error {
	if len(days) == 0 {
		return nil
	}
	dayArgs := make([]int32, len(days))
	for i, d := range days {
		dayArgs[i] = int32(d)
	}
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM provider_availability
		WHERE provider_id = $1 AND day_of_week = ANY($2)`, providerID, dayArgs)
	if err != nil {
		return fmt.Errorf("delete availability days: %w", err)
	}
	return nil
}

// InsertRows writes all rows in one statement.
func (r *repoPG) InsertRows(ctx context.Context, items []*Row) error {
	if len(items) == 0 {
		return nil
	}
	var (
		ids, providers, starts, ends, zones []string
		days                                []int32
	)
	for _, a := range items {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		ids = append(ids, a.ID.String())
		providers = append(providers, a.ProviderID)
		days = append(days, int32(a.DayOfWeek))
		starts = append(starts, a.StartTime)
		ends = append(ends, a.EndTime)
		zones = append(zones, a.Timezone)
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO provider_availability (id, provider_id, day_of_week, start_time, end_time, timezone)
		SELECT * FROM unnest($1::uuid[], $2::text[], $3::int[], $4::text[], $5::text[], $6::text[])`,
		ids, providers, days, starts, ends, zones)
	if err != nil {
		return fmt.Errorf("insert availability: %w", err)
	}
	return nil
}
