package orders

import (
	"context"
	"errors"
	"sync"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
)

type fakeRepo struct {
	mu        sync.Mutex
	orders    map[string]Order
	saveErr   error
	updateErr error
}

func newFakeRepo() *fakeRepo { return &fakeRepo{orders: map[string]Order{}} }

func (r *fakeRepo) Save(_ context.Context, o Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return Order{}, r.saveErr
	}
	r.orders[o.ID] = o
	return o, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, apperr.NotFound("Order", id)
	}
	return o, nil
}

func (r *fakeRepo) GetByCustomer(_ context.Context, customerID string, _ Page) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.orders {
		if o.Customer.ID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeRepo) Update(_ context.Context, o Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return Order{}, r.updateErr
	}
	cur, ok := r.orders[o.ID]
	if !ok {
		return Order{}, apperr.NotFound("Order", o.ID)
	}
	if cur.Version != o.Version {
		return Order{}, apperr.Conflict("Order", o.ID, o.Version)
	}
	o.Version++
	r.orders[o.ID] = o
	return o, nil
}

// fakeInventory keeps stock per product and records every call.
type fakeInventory struct {
	mu         sync.Mutex
	products   map[string]ProductSnapshot
	reserveErr map[string]error
	releaseErr error
	reserved   []StockLine
	released   []StockLine
}

func newFakeInventory(ps ...ProductSnapshot) *fakeInventory {
	inv := &fakeInventory{products: map[string]ProductSnapshot{}, reserveErr: map[string]error{}}
	for _, p := range ps {
		inv.products[p.ID] = p
	}
	return inv
}

func (f *fakeInventory) Product(_ context.Context, id string) (ProductSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return ProductSnapshot{}, apperr.NotFound("Product", id)
	}
	return p, nil
}

func (f *fakeInventory) ReserveStock(_ context.Context, lines []StockLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ln := range lines {
		if err := f.reserveErr[ln.ProductID]; err != nil {
			return err
		}
		p := f.products[ln.ProductID]
		if ln.Quantity > p.Stock {
			return apperr.InsufficientStock(ln.ProductID, ln.Quantity, p.Stock)
		}
	}
	for _, ln := range lines {
		p := f.products[ln.ProductID]
		p.Stock -= ln.Quantity
		f.products[ln.ProductID] = p
		f.reserved = append(f.reserved, ln)
	}
	return nil
}

func (f *fakeInventory) ReleaseStock(_ context.Context, lines []StockLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.releaseErr != nil {
		return f.releaseErr
	}
	for _, ln := range lines {
		p := f.products[ln.ProductID]
		p.Stock += ln.Quantity
		f.products[ln.ProductID] = p
		f.released = append(f.released, ln)
	}
	return nil
}

func (f *fakeInventory) stock(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

type fakeNotifier struct {
	created   []OrderCreated
	cancelled []OrderCancelled
	err       error
}

func (n *fakeNotifier) OrderCreated(_ context.Context, ev OrderCreated) error {
	n.created = append(n.created, ev)
	return n.err
}

func (n *fakeNotifier) OrderCancelled(_ context.Context, ev OrderCancelled) error {
	n.cancelled = append(n.cancelled, ev)
	return n.err
}

var errBroker = errors.New("broker unavailable")
