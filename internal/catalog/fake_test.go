package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
)

// fakeRepo is a versioned in-memory ProductRepository.
type fakeRepo struct {
	mu    sync.Mutex
	byID  map[string]Product
	bySKU map[string]string

	updates       int
	conflictsLeft int // Update fails with Conflict this many times
	updateHook    func(p Product) error
}

func newFakeRepo(ps ...Product) *fakeRepo {
	r := &fakeRepo{byID: map[string]Product{}, bySKU: map[string]string{}}
	for _, p := range ps {
		r.byID[p.ID] = p
		r.bySKU[p.SKU] = p.ID
	}
	return r
}

func (r *fakeRepo) Create(_ context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySKU[p.SKU]; ok {
		return Product{}, DuplicateSKU(p.SKU)
	}
	p.Version = 1
	r.byID[p.ID] = p
	r.bySKU[p.SKU] = p.ID
	return p, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok || p.Deleted() {
		return Product{}, apperr.NotFound("Product", id)
	}
	return p, nil
}

func (r *fakeRepo) GetBySKU(_ context.Context, sku string) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.bySKU[sku]
	p := r.byID[id]
	if !ok || p.Deleted() {
		return Product{}, apperr.NotFound("Product", sku)
	}
	return r.byID[id], nil
}

func (r *fakeRepo) Update(_ context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if r.updateHook != nil {
		if err := r.updateHook(p); err != nil {
			return Product{}, err
		}
	}
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return Product{}, apperr.Conflict("Product", p.ID, p.Version)
	}
	cur, ok := r.byID[p.ID]
	if !ok || cur.Deleted() {
		return Product{}, apperr.NotFound("Product", p.ID)
	}
	if cur.Version != p.Version {
		return Product{}, apperr.Conflict("Product", p.ID, p.Version)
	}
	p.Version++
	r.byID[p.ID] = p
	return p, nil
}

func (r *fakeRepo) List(_ context.Context, page Page) ([]Product, error) {
	return r.Search(context.Background(), SearchFilter{Page: page})
}

func (r *fakeRepo) Search(_ context.Context, f SearchFilter) ([]Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Product, 0)
	for _, p := range r.byID {
		if !p.Deleted() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r *fakeRepo) stock(id string) (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byID[id]
	return p.Stock, p.Version
}
