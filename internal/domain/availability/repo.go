package availability

import "context"

type Repository interface {
	ListByProvider(ctx context.Context, providerID string) ([]*Row, error)
	DeleteDays(ctx context.Context, providerID string, days []int) error
	InsertRows(ctx context.Context, rows []*Row) error
}
