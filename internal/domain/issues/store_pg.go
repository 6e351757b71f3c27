package issues

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telerx/rxadmin/internal/platform/db"
)

// PGHistoryStore keeps issue history in the tenant's issue_history table.
type PGHistoryStore struct {
	pool *pgxpool.Pool
}

func NewPGHistoryStore(pool *pgxpool.Pool) *PGHistoryStore {
	return &PGHistoryStore{pool: pool}
}

func (s *PGHistoryStore) Load(ctx context.Context) (map[string]Record, error) {
	rows, err := db.Conn(ctx, s.pool).Query(ctx,
		`SELECT key, severity, title, first_seen, last_seen, resolved_at FROM issue_history`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]Record{}
	for rows.Next() {
		var (
			rec      Record
			severity string
		)
		if err := rows.Scan(&rec.Key, &severity, &rec.Title, &rec.FirstSeen, &rec.LastSeen, &rec.ResolvedAt); err != nil {
			return nil, err
		}
		rec.Severity = Severity(severity)
		out[rec.Key] = rec
	}
	return out, rows.Err()
}

func (s *PGHistoryStore) Upsert(ctx context.Context, recs []Record) error {
	var (
		keys       = make([]string, len(recs))
		severities = make([]string, len(recs))
		titles     = make([]string, len(recs))
		first      = make([]time.Time, len(recs))
		last       = make([]time.Time, len(recs))
		resolved   = make([]*time.Time, len(recs))
	)
	for i, r := range recs {
		keys[i], severities[i], titles[i] = r.Key, string(r.Severity), r.Title
		first[i], last[i], resolved[i] = r.FirstSeen, r.LastSeen, r.ResolvedAt
	}
	_, err := db.Conn(ctx, s.pool).Exec(ctx, `
		INSERT INTO issue_history (key, severity, title, first_seen, last_seen, resolved_at)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::timestamptz[], $5::timestamptz[], $6::timestamptz[])
		ON CONFLICT (key) DO UPDATE SET
			severity = EXCLUDED.severity,
			title = EXCLUDED.title,
			first_seen = EXCLUDED.first_seen,
			last_seen = EXCLUDED.last_seen,
			resolved_at = EXCLUDED.resolved_at`,
		keys, severities, titles, first, last, resolved)
	return err
}

func (s *PGHistoryStore) Delete(ctx context.Context, keys []string) error {
	_, err := db.Conn(ctx, s.pool).Exec(ctx, `DELETE FROM issue_history WHERE key = ANY($1)`, keys)
	return err
}
