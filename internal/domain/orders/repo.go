package orders

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context) ([]*Order, error)
	ListByStatus(ctx context.Context, status OrderStatus) ([]*Order, error)
	// ApplyReview performs u as a compare-and-set. It returns ErrNotFound when
	// the order does not exist and ErrConcurrentUpdate when its review state no
	// longer matches u's From fields.
	ApplyReview(ctx context.Context, u ReviewUpdate) (*Order, error)
}
