//go:build integration

package integration

import (
	"context"
	"testing"
)

func TestMultiTenantIsolation(t *testing.T) {
	tenantA := newTenant(t, "tenanta")
	tenantB := newTenant(t, "tenantb")
	svc := newOrderService()

	inTenant(t, tenantA, func(ctx context.Context) error {
		submitOrder(t, ctx, svc, "Alice A")
		submitOrder(t, ctx, svc, "Bob A")
		return nil
	})
	inTenant(t, tenantB, func(ctx context.Context) error {
		submitOrder(t, ctx, svc, "Carol B")
		return nil
	})

	for tenant, want := range map[string]int{tenantA: 2, tenantB: 1} {
		inTenant(t, tenant, func(ctx context.Context) error {
			list, err := svc.ListSubmitted(ctx)
			if err != nil {
				return err
			}
			if len(list) != want {
				t.Errorf("tenant %s: expected %d orders, got %d", tenant, want, len(list))
			}
			return nil
		})
	}
}
