package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo keeps orders in process memory. Every read returns a copy, and
// review updates are checked and applied under one lock.
type MemoryRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*Order
	now    func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{orders: make(map[uuid.UUID]*Order), now: time.Now}
}

func (m *MemoryRepo) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	for _, existing := range m.orders {
		if existing.OrderNumber == o.OrderNumber {
			return fmt.Errorf("%w: order number %s already exists", ErrInvalidOrder, o.OrderNumber)
		}
	}
	now := m.now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	m.orders[o.ID] = clone(o)
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(o), nil
}

func (m *MemoryRepo) List(_ context.Context) ([]*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, clone(o))
	}
	return out, nil
}

func (m *MemoryRepo) ListByStatus(_ context.Context, status OrderStatus) ([]*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Order
	for _, o := range m.orders {
		if o.Status == status {
			out = append(out, clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].OrderNumber < out[j].OrderNumber
	})
	return out, nil
}

func (m *MemoryRepo) ApplyReview(_ context.Context, u ReviewUpdate) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[u.OrderID]
	if !ok {
		return nil, ErrNotFound
	}
	if !u.Matches(o) {
		return nil, ErrConcurrentUpdate
	}
	u.ApplyTo(o, m.now())
	return clone(o), nil
}

func clone(o *Order) *Order {
	c := *o
	if o.ReviewedBy != nil {
		v := *o.ReviewedBy
		c.ReviewedBy = &v
	}
	if o.ReviewStartedAt != nil {
		v := *o.ReviewStartedAt
		c.ReviewStartedAt = &v
	}
	if o.ReviewedAt != nil {
		v := *o.ReviewedAt
		c.ReviewedAt = &v
	}
	if o.ReviewNote != nil {
		v := *o.ReviewNote
		c.ReviewNote = &v
	}
	return &c
}
