package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telerx/rxadmin/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const orderCols = `id, order_number, patient_id, patient_name, medication_name, quantity,
	status, submitted_at, review_status, reviewed_by, review_started_at, reviewed_at,
	review_note, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.PatientID, &o.PatientName, &o.MedicationName, &o.Quantity,
		&o.Status, &o.SubmittedAt, &o.ReviewStatus, &o.ReviewedBy, &o.ReviewStartedAt, &o.ReviewedAt,
		&o.ReviewNote, &o.CreatedAt, &o.UpdatedAt)
	return &o, err
}

func (r *repoPG) Create(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO orders (id, order_number, patient_id, patient_name, medication_name, quantity,
			status, submitted_at, review_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		o.ID, o.OrderNumber, o.PatientID, o.PatientName, o.MedicationName, o.Quantity,
		o.Status, o.SubmittedAt, o.ReviewStatus,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: order number %s already exists", ErrInvalidOrder, o.OrderNumber)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (r *repoPG) List(ctx context.Context) ([]*Order, error) {
	return r.query(ctx, `SELECT `+orderCols+` FROM orders ORDER BY created_at DESC`)
}

func (r *repoPG) ListByStatus(ctx context.Context, status OrderStatus) ([]*Order, error) {
	return r.query(ctx, `SELECT `+orderCols+` FROM orders WHERE status = $1 ORDER BY submitted_at`, status)
}

func (r *repoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Order, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	var items []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

// ApplyReview guards the update with the expected review status and owner in
// the WHERE clause, so of two racing writers exactly one matches.
func (r *repoPG) ApplyReview(ctx context.Context, u ReviewUpdate) (*Order, error) {
	o, err := scanOrder(r.conn(ctx).QueryRow(ctx, `
		UPDATE orders SET
			review_status = $4,
			reviewed_by = $5,
			review_started_at = $6,
			reviewed_at = $7,
			review_note = $8,
			status = COALESCE(NULLIF($9, ''), status),
			updated_at = NOW()
		WHERE id = $1 AND review_status = $2 AND reviewed_by IS NOT DISTINCT FROM $3
		RETURNING `+orderCols,
		u.OrderID, u.FromStatus, nullable(u.FromReviewer),
		u.ToStatus, nullable(u.Reviewer), u.StartedAt, u.ReviewedAt, u.Note, string(u.OrderStatus),
	))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("apply review %s: %w", u.Transition, err)
	}

	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, u.OrderID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrConcurrentUpdate
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
