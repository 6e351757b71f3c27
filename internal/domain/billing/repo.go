package billing

import (
	"context"

	"github.com/google/uuid"
)

type CustomerRepository interface {
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*Customer, error)
	Create(ctx context.Context, c *Customer) error
}
