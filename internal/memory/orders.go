package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/ariefcatur/go-modular-shop/internal/orders"
)

type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]orders.Order
}

var _ orders.OrderRepository = (*OrderStore)(nil)

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]orders.Order)}
}

func (s *OrderStore) Save(_ context.Context, o orders.Order) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID]; exists {
		return orders.Order{}, apperr.BusinessRule("DUPLICATE_ORDER", "order already exists").With("order_id", o.ID)
	}
	o.Items = append([]orders.Item(nil), o.Items...)
	s.orders[o.ID] = o
	return o, nil
}

func (s *OrderStore) GetByID(_ context.Context, id string) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, apperr.NotFound("Order", id)
	}
	o.Items = append([]orders.Item(nil), o.Items...)
	return o, nil
}

func (s *OrderStore) GetByCustomer(_ context.Context, customerID string, page orders.Page) ([]orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]orders.Order, 0)
	for _, o := range s.orders {
		if o.Customer.ID == customerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page.Skip, page.Limit), nil
}

func (s *OrderStore) Update(_ context.Context, o orders.Order) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.orders[o.ID]
	if !ok {
		return orders.Order{}, apperr.NotFound("Order", o.ID)
	}
	if cur.Version != o.Version {
		return orders.Order{}, apperr.Conflict("Order", o.ID, o.Version)
	}
	cur.Status = o.Status
	cur.CancelReason = o.CancelReason
	cur.ConfirmedAt = o.ConfirmedAt
	cur.CancelledAt = o.CancelledAt
	cur.UpdatedAt = o.UpdatedAt
	cur.Version++
	s.orders[o.ID] = cur
	return cur, nil
}
