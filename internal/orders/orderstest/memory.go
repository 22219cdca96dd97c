// Package orderstest provides an in-memory orders.Repository for tests.
package orderstest

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/joao-fontenele/foodflow/internal/domain"
	"github.com/joao-fontenele/foodflow/internal/orders"
)

// Repository is safe for concurrent use. The Fail* fields, when set, are
// returned by the matching method instead of touching the data.
type Repository struct {
	FailCreate error
	FailGet    error
	FailList   error
	// FailTransition is consulted per order id.
	FailTransition func(id string) error

	mu     sync.Mutex
	orders map[string]domain.Order
}

var _ orders.Repository = (*Repository)(nil)

func New() *Repository {
	return &Repository{orders: make(map[string]domain.Order)}
}

// Put stores order as is, generating an id when it has none.
func (r *Repository) Put(order domain.Order) domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	r.orders[order.ID] = clone(order)
	return order
}

func (r *Repository) Create(_ context.Context, order *domain.Order) error {
	if r.FailCreate != nil {
		return r.FailCreate
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order.ID = uuid.New().String()
	r.orders[order.ID] = clone(*order)
	return nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	if r.FailGet != nil {
		return nil, r.FailGet
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	order = clone(order)
	return &order, nil
}

func (r *Repository) List(_ context.Context, filter orders.ListFilter) ([]domain.Order, error) {
	if r.FailList != nil {
		return nil, r.FailList
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	result := []domain.Order{}
	for _, order := range r.orders {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, order.Status) {
			continue
		}
		result = append(result, clone(order))
	}

	slices.SortFunc(result, func(a, b domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return result, nil
}

func (r *Repository) TransitionStatus(_ context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	if r.FailTransition != nil {
		if err := r.FailTransition(id); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	if order.Status != from {
		return nil, orders.ErrStatusConflict
	}

	order.Status = to
	r.orders[id] = order
	order = clone(order)
	return &order, nil
}

// Status returns the stored status of id.
func (r *Repository) Status(id string) domain.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id].Status
}

func clone(o domain.Order) domain.Order {
	o.Items = slices.Clone(o.Items)
	if o.Items == nil {
		o.Items = []domain.OrderItem{}
	}
	return o
}
