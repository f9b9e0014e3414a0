// Package memory keeps every repository port in process memory. It backs
// STORAGE_DRIVER=memory and the handler tests, and enforces the same version
// checks as the Postgres repositories.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/ariefcatur/go-modular-shop/internal/catalog"
)

type ProductStore struct {
	mu    sync.RWMutex
	byID  map[string]catalog.Product
	bySKU map[string]string
}

var _ catalog.ProductRepository = (*ProductStore)(nil)

func NewProductStore() *ProductStore {
	return &ProductStore{
		byID:  make(map[string]catalog.Product),
		bySKU: make(map[string]string),
	}
}

func (s *ProductStore) Create(_ context.Context, p catalog.Product) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.bySKU[p.SKU]; taken {
		return catalog.Product{}, catalog.DuplicateSKU(p.SKU)
	}
	if p.Version == 0 {
		p.Version = 1
	}
	s.byID[p.ID] = p
	s.bySKU[p.SKU] = p.ID
	return p, nil
}

func (s *ProductStore) GetByID(_ context.Context, id string) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok || p.Deleted() {
		return catalog.Product{}, apperr.NotFound("Product", id)
	}
	return p, nil
}

func (s *ProductStore) GetBySKU(_ context.Context, sku string) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySKU[sku]
	if !ok {
		return catalog.Product{}, apperr.NotFound("Product", sku)
	}
	p := s.byID[id]
	if p.Deleted() {
		return catalog.Product{}, apperr.NotFound("Product", sku)
	}
	return p, nil
}

func (s *ProductStore) Update(_ context.Context, p catalog.Product) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[p.ID]
	if !ok || cur.Deleted() {
		return catalog.Product{}, apperr.NotFound("Product", p.ID)
	}
	if cur.Version != p.Version {
		return catalog.Product{}, apperr.Conflict("Product", p.ID, p.Version)
	}
	p.SKU = cur.SKU
	p.CreatedAt = cur.CreatedAt
	p.Version = cur.Version + 1
	s.byID[p.ID] = p
	return p, nil
}

func (s *ProductStore) List(_ context.Context, page catalog.Page) ([]catalog.Product, error) {
	return s.filter(page, func(catalog.Product) bool { return true }), nil
}

func (s *ProductStore) Search(_ context.Context, f catalog.SearchFilter) ([]catalog.Product, error) {
	q := strings.ToLower(f.Query)
	return s.filter(f.Page, func(p catalog.Product) bool {
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
		if f.MinPrice != nil && p.Price.Amount.LessThan(*f.MinPrice) {
			return false
		}
		if f.MaxPrice != nil && p.Price.Amount.GreaterThan(*f.MaxPrice) {
			return false
		}
		return true
	}), nil
}

func (s *ProductStore) filter(page catalog.Page, keep func(catalog.Product) bool) []catalog.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]catalog.Product, 0, len(s.byID))
	for _, p := range s.byID {
		if !p.Deleted() && keep(p) {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SKU < all[j].SKU })
	return paginate(all, page.Skip, page.Limit)
}

func paginate[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
