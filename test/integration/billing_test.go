//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/telerx/rxadmin/internal/domain/billing"
)

func TestBillingCustomers(t *testing.T) {
	tenant := newTenant(t, "billing")
	repo := billing.NewCustomerRepoPG(globalPool)
	patient := uuid.New()

	inTenant(t, tenant, func(ctx context.Context) error {
		if _, err := repo.GetByPatient(ctx, patient); !errors.Is(err, billing.ErrCustomerNotFound) {
			t.Errorf("expected ErrCustomerNotFound, got %v", err)
		}

		c := &billing.Customer{PatientID: patient, CustomerID: "cus_first", Email: "ana@example.com"}
		if err := repo.Create(ctx, c); err != nil {
			return err
		}
		if c.CreatedAt.IsZero() {
			t.Error("expected created_at to be populated")
		}

		// A second link for the same patient keeps the original customer.
		dup := &billing.Customer{PatientID: patient, CustomerID: "cus_second", Email: "ana@example.com"}
		if err := repo.Create(ctx, dup); err != nil {
			return err
		}
		if dup.CustomerID != "cus_first" {
			t.Errorf("expected cus_first to win, got %s", dup.CustomerID)
		}

		got, err := repo.GetByPatient(ctx, patient)
		if err != nil {
			return err
		}
		if got.CustomerID != "cus_first" || got.Email != "ana@example.com" {
			t.Errorf("unexpected customer %+v", got)
		}
		return nil
	})
}
