package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telerx/rxadmin/internal/platform/db"
)

type customerRepoPG struct {
	pool *pgxpool.Pool
}

func NewCustomerRepoPG(pool *pgxpool.Pool) CustomerRepository {
	return &customerRepoPG{pool: pool}
}

func (r *customerRepoPG) GetByPatient(ctx context.Context, patientID uuid.UUID) (*Customer, error) {
	var c Customer
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT patient_id, customer_id, email, created_at FROM billing_customers WHERE patient_id = $1`,
		patientID).Scan(&c.PatientID, &c.CustomerID, &c.Email, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *customerRepoPG) Create(ctx context.Context, c *Customer) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO billing_customers (patient_id, customer_id, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (patient_id) DO UPDATE SET customer_id = billing_customers.customer_id
		RETURNING customer_id, created_at`,
		c.PatientID, c.CustomerID, c.Email).Scan(&c.CustomerID, &c.CreatedAt)
}
