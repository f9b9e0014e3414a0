package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/ariefcatur/go-modular-shop/internal/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newTestService(repo *fakeRepo) *Service {
	return NewService(repo, newTestLedger(repo), clock.NewFixed(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), zap.NewNop())
}

func TestCreateProduct(t *testing.T) {
	svc := newTestService(newFakeRepo())
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, CreateProductInput{
		SKU: " abc-123 ", Name: "  Mouse ", Price: decimal.RequireFromString("19.999"), InitialStock: 4,
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.SKU != "ABC-123" || p.Name != "Mouse" || p.Version != 1 || !p.IsActive {
		t.Fatalf("product = %+v", p)
	}
	if p.Price.Currency != "USD" || p.Price.Amount.String() != "20" {
		t.Fatalf("price = %s %s", p.Price.Amount, p.Price.Currency)
	}

	_, err = svc.CreateProduct(ctx, CreateProductInput{SKU: "ABC-123", Name: "Other", Price: decimal.NewFromInt(1)})
	if apperr.CodeOf(err) != CodeDuplicateSKU || apperr.KindOf(err) != apperr.KindBusinessRule {
		t.Fatalf("duplicate err = %v", err)
	}
}

func TestCreateProductValidation(t *testing.T) {
	cases := []struct {
		name string
		in   CreateProductInput
		code string
	}{
		{"bad sku", CreateProductInput{SKU: "a!", Name: "x", Price: decimal.NewFromInt(1)}, CodeInvalidSKU},
		{"zero price", CreateProductInput{SKU: "ABC", Name: "x", Price: decimal.Zero}, CodeInvalidPrice},
		{"negative stock", CreateProductInput{SKU: "ABC", Name: "x", Price: decimal.NewFromInt(1), InitialStock: -1}, CodeInvalidStock},
		{"bad currency", CreateProductInput{SKU: "ABC", Name: "x", Price: decimal.NewFromInt(1), Currency: "ZZZ"}, apperr.CodeValidation},
		{"empty name", CreateProductInput{SKU: "ABC", Name: " ", Price: decimal.NewFromInt(1)}, apperr.CodeValidation},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := newTestService(newFakeRepo()).CreateProduct(context.Background(), c.in)
			if apperr.KindOf(err) != apperr.KindValidation || apperr.CodeOf(err) != c.code {
				t.Fatalf("err = %v, want validation %s", err, c.code)
			}
		})
	}
}

func TestUpdateAndDeleteProduct(t *testing.T) {
	repo := newFakeRepo(product("p1", "SKU-1", 5))
	svc := newTestService(repo)
	ctx := context.Background()

	name := "Renamed"
	price := decimal.RequireFromString("12.50")
	p, err := svc.UpdateProduct(ctx, "p1", UpdateProductInput{Name: &name, Price: &price})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Renamed" || !p.Price.Amount.Equal(price) || p.Version != 2 || p.SKU != "SKU-1" {
		t.Fatalf("updated = %+v", p)
	}

	if err := svc.DeleteProduct(ctx, "p1", true); err != nil {
		t.Fatal(err)
	}
	got, err := svc.GetProduct(ctx, "p1")
	if err != nil || got.IsActive {
		t.Fatalf("after logical delete: %+v, %v", got, err)
	}

	if err := svc.DeleteProduct(ctx, "p1", false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetProduct(ctx, "p1"); !apperr.IsNotFound(err) {
		t.Fatalf("after physical delete err = %v", err)
	}
	if _, err := svc.GetBySKU(ctx, "sku-1"); !apperr.IsNotFound(err) {
		t.Fatalf("by sku after delete err = %v", err)
	}
}

func TestSearchRejectsInvertedPriceRange(t *testing.T) {
	lo, hi := decimal.NewFromInt(10), decimal.NewFromInt(5)
	_, err := newTestService(newFakeRepo()).SearchProducts(context.Background(), SearchFilter{MinPrice: &lo, MaxPrice: &hi})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("err = %v", err)
	}
}

func TestReserveStockIsAllOrNothing(t *testing.T) {
	repo := newFakeRepo(product("p1", "SKU-1", 5), product("p2", "SKU-2", 1))
	svc := newTestService(repo)

	_, err := svc.ReserveStock(context.Background(), []StockLine{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 2},
	})
	if apperr.CodeOf(err) != apperr.CodeInsufficientStock {
		t.Fatalf("err = %v", err)
	}
	if s, _ := repo.stock("p1"); s != 5 {
		t.Fatalf("p1 stock = %d, want 5 after reconcile", s)
	}

	changes, err := svc.ReserveStock(context.Background(), []StockLine{{ProductID: "p1", Quantity: 2}})
	if err != nil || len(changes) != 1 || changes[0].StockAfter != 3 {
		t.Fatalf("changes=%+v err=%v", changes, err)
	}
}

func TestReserveStockReportsFailedReconcile(t *testing.T) {
	repo := newFakeRepo(product("p1", "SKU-1", 5), product("p2", "SKU-2", 1))
	repo.updateHook = func(p Product) error {
		if p.ID == "p1" && p.Stock == 5 {
			return apperr.Infrastructure("", "update product", nil)
		}
		return nil
	}
	svc := newTestService(repo)

	_, err := svc.ReserveStock(context.Background(), []StockLine{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 2},
	})
	if apperr.KindOf(err) != apperr.KindInfrastructure || apperr.CodeOf(err) != CodeCompensationFailed {
		t.Fatalf("err = %v, want %s", err, CodeCompensationFailed)
	}
}

func TestReleaseStockPartialFailure(t *testing.T) {
	p2Conflicts := func(p Product) error {
		if p.ID == "p2" {
			return apperr.Conflict("Product", p.ID, p.Version)
		}
		return nil
	}
	tests := []struct {
		name     string
		hook     func(Product) error
		wantCode string
		wantKind apperr.Kind
		wantP1   int
	}{
		{
			name:     "applied prefix is reserved again",
			hook:     p2Conflicts,
			wantCode: apperr.CodeConcurrency,
			wantKind: apperr.KindBusinessRule,
			wantP1:   7,
		},
		{
			name: "failed re-reserve is reported",
			hook: func(p Product) error {
				if p.ID == "p1" && p.Stock == 7 {
					return apperr.Infrastructure("", "update product", nil)
				}
				return p2Conflicts(p)
			},
			wantCode: CodeCompensationFailed,
			wantKind: apperr.KindInfrastructure,
			wantP1:   10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo(product("p1", "SKU-1", 7), product("p2", "SKU-2", 7))
			repo.updateHook = tt.hook
			svc := newTestService(repo)

			_, err := svc.ReleaseStock(context.Background(), []StockLine{
				{ProductID: "p1", Quantity: 3},
				{ProductID: "p2", Quantity: 3},
			})
			if apperr.CodeOf(err) != tt.wantCode || apperr.KindOf(err) != tt.wantKind {
				t.Fatalf("err = %v (kind %s), want %s", err, apperr.KindOf(err), tt.wantCode)
			}
			if s, _ := repo.stock("p1"); s != tt.wantP1 {
				t.Fatalf("p1 stock = %d, want %d", s, tt.wantP1)
			}
			if s, _ := repo.stock("p2"); s != 7 {
				t.Fatalf("p2 stock = %d, want 7", s)
			}
		})
	}
}

func TestReserveStockRejectsInactiveProduct(t *testing.T) {
	inactive := product("p2", "SKU-2", 5)
	inactive.IsActive = false
	repo := newFakeRepo(product("p1", "SKU-1", 5), inactive)
	svc := newTestService(repo)

	_, err := svc.ReserveStock(context.Background(), []StockLine{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 1},
	})
	if !apperr.IsNotFound(err) {
		t.Fatalf("err = %v", err)
	}
	if s, _ := repo.stock("p1"); s != 5 || repo.updates != 0 {
		t.Fatalf("p1 stock=%d updates=%d, want untouched", s, repo.updates)
	}

	if _, err := svc.ReleaseStock(context.Background(), []StockLine{{ProductID: "p2", Quantity: 1}}); err != nil {
		t.Fatalf("release on inactive product: %v", err)
	}
}
