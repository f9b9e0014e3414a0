package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariefcatur/go-modular-shop/internal/catalog"
	"github.com/ariefcatur/go-modular-shop/internal/clock"
	"github.com/ariefcatur/go-modular-shop/internal/inventory"
	"github.com/ariefcatur/go-modular-shop/internal/memory"
	"github.com/ariefcatur/go-modular-shop/internal/orders"
	"github.com/ariefcatur/go-modular-shop/internal/users"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeIdem struct{ keys map[string]string }

func (f *fakeIdem) Lookup(_ context.Context, key string) (string, bool, error) {
	id, ok := f.keys[key]
	return id, ok, nil
}

func (f *fakeIdem) Remember(_ context.Context, key, orderID string) error {
	if _, ok := f.keys[key]; !ok {
		f.keys[key] = orderID
	}
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := zap.NewNop()
	clk := clock.NewSystem()

	products := memory.NewProductStore()
	ledger := catalog.NewLedger(products, log, catalog.WithBackoff(time.Millisecond))
	catalogSvc := catalog.NewService(products, ledger, clk, log)
	ordersSvc := orders.NewService(memory.NewOrderStore(), inventory.NewGateway(catalogSvc), nil, clk, log)
	usersSvc := users.NewService(memory.NewUserStore(), memory.NewSessionStore(), clk, log, time.Hour,
		users.WithHashCost(bcrypt.MinCost))

	srv := httptest.NewServer(NewRouter(Deps{
		Catalog:     catalogSvc,
		Orders:      ordersSvc,
		Users:       usersSvc,
		Idempotency: &fakeIdem{keys: map[string]string{}},
		Log:         log,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err == nil && len(raw) > 0 && raw[0] == '{' {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

func createProduct(t *testing.T, srv *httptest.Server, sku string, stock int) string {
	t.Helper()
	resp, body := do(t, srv, http.MethodPost, "/api/v1/catalog/products", map[string]any{
		"sku": sku, "name": "Product " + sku, "price": "19.99", "initial_stock": stock,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create product status = %d body=%v", resp.StatusCode, body)
	}
	return body["product_id"].(string)
}

func stockOf(t *testing.T, srv *httptest.Server, id string) int {
	t.Helper()
	resp, body := do(t, srv, http.MethodGet, "/api/v1/catalog/products/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get product status = %d", resp.StatusCode)
	}
	return int(body["stock_quantity"].(float64))
}

func orderReq(items ...map[string]any) map[string]any {
	return map[string]any{
		"customer": map[string]any{
			"customer_id": "cust-1", "name": "Ana", "email": "ana@example.com",
		},
		"shipping_address": map[string]any{
			"street": "Main 1", "city": "Madrid", "country": "ES",
		},
		"items": items,
	}
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestOrderLifecycleRestoresStock(t *testing.T) {
	srv := newTestServer(t)
	pid := createProduct(t, srv, "SKU-001", 10)

	resp, order := do(t, srv, http.MethodPost, "/api/v1/orders", orderReq(map[string]any{"product_id": pid, "quantity": 3}))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place order status = %d body=%v", resp.StatusCode, order)
	}
	if order["status"] != "confirmed" || order["total_amount"] != "59.97" {
		t.Fatalf("order = %v", order)
	}
	if got := stockOf(t, srv, pid); got != 7 {
		t.Fatalf("stock after order = %d, want 7", got)
	}

	id := order["order_id"].(string)
	resp, body := do(t, srv, http.MethodPost, "/api/v1/orders/"+id+"/cancel", map[string]any{"reason": "changed mind"})
	if resp.StatusCode != http.StatusOK || body["status"] != "cancelled" {
		t.Fatalf("cancel status = %d body=%v", resp.StatusCode, body)
	}
	if got := stockOf(t, srv, pid); got != 10 {
		t.Fatalf("stock after cancel = %d, want 10", got)
	}

	resp, body = do(t, srv, http.MethodPost, "/api/v1/orders/"+id+"/cancel", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity || errorCode(body) != orders.CodeNotCancellable {
		t.Fatalf("second cancel status = %d body=%v", resp.StatusCode, body)
	}
	if got := stockOf(t, srv, pid); got != 10 {
		t.Fatalf("stock after second cancel = %d, want 10", got)
	}
}

func TestDuplicateSKU(t *testing.T) {
	srv := newTestServer(t)
	createProduct(t, srv, "DUP-001", 1)

	resp, body := do(t, srv, http.MethodPost, "/api/v1/catalog/products", map[string]any{
		"sku": "dup-001", "name": "Other", "price": 5, "initial_stock": 1,
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if errorCode(body) != catalog.CodeDuplicateSKU || body["success"] != false {
		t.Fatalf("body = %v", body)
	}
}

func TestCancelDeliveredOrder(t *testing.T) {
	srv := newTestServer(t)
	pid := createProduct(t, srv, "DLV-001", 5)
	_, order := do(t, srv, http.MethodPost, "/api/v1/orders", orderReq(map[string]any{"product_id": pid, "quantity": 1}))
	id := order["order_id"].(string)

	for _, st := range []string{"processing", "shipped", "delivered"} {
		resp, body := do(t, srv, http.MethodPatch, "/api/v1/orders/"+id+"/status", map[string]any{"new_status": st})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status -> %s: %d %v", st, resp.StatusCode, body)
		}
	}

	resp, body := do(t, srv, http.MethodPost, "/api/v1/orders/"+id+"/cancel", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("cancel delivered status = %d", resp.StatusCode)
	}
	e := body["error"].(map[string]any)
	if e["type"] != "BusinessRuleViolation" {
		t.Fatalf("error = %v", e)
	}
	_, got := do(t, srv, http.MethodGet, "/api/v1/orders/"+id, nil)
	if got["status"] != "delivered" {
		t.Fatalf("status after failed cancel = %v", got["status"])
	}
	if s := stockOf(t, srv, pid); s != 4 {
		t.Fatalf("stock = %d, want 4", s)
	}
}

func TestPlaceOrderWithUnknownProductRestoresStock(t *testing.T) {
	srv := newTestServer(t)
	pid := createProduct(t, srv, "VAL-001", 10)

	resp, body := do(t, srv, http.MethodPost, "/api/v1/orders", orderReq(
		map[string]any{"product_id": pid, "quantity": 2},
		map[string]any{"product_id": "00000000-0000-0000-0000-000000000000", "quantity": 1},
	))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d body=%v", resp.StatusCode, body)
	}
	if s := stockOf(t, srv, pid); s != 10 {
		t.Fatalf("stock = %d, want 10", s)
	}
}

func TestInsufficientStock(t *testing.T) {
	srv := newTestServer(t)
	pid := createProduct(t, srv, "LOW-001", 2)

	resp, body := do(t, srv, http.MethodPost, "/api/v1/orders", orderReq(map[string]any{"product_id": pid, "quantity": 3}))
	if resp.StatusCode != http.StatusUnprocessableEntity || errorCode(body) != "INSUFFICIENT_STOCK" {
		t.Fatalf("status = %d body=%v", resp.StatusCode, body)
	}
	if s := stockOf(t, srv, pid); s != 2 {
		t.Fatalf("stock = %d, want 2", s)
	}
}

func TestIdempotentPlacement(t *testing.T) {
	srv := newTestServer(t)
	pid := createProduct(t, srv, "IDEM-001", 10)
	req := orderReq(map[string]any{"product_id": pid, "quantity": 1})

	r1, o1 := do(t, srv, http.MethodPost, "/api/v1/orders", req, HeaderIdempotencyKey, "k-1")
	r2, o2 := do(t, srv, http.MethodPost, "/api/v1/orders", req, HeaderIdempotencyKey, "k-1")
	if r1.StatusCode != http.StatusCreated || r2.StatusCode != http.StatusOK {
		t.Fatalf("statuses = %d, %d", r1.StatusCode, r2.StatusCode)
	}
	if o1["order_id"] != o2["order_id"] || r2.Header.Get("Idempotent-Replay") != "true" {
		t.Fatalf("replay returned a different order: %v vs %v", o1["order_id"], o2["order_id"])
	}
	if s := stockOf(t, srv, pid); s != 9 {
		t.Fatalf("stock = %d, want 9", s)
	}
}

func TestStatusUpdateRules(t *testing.T) {
	srv := newTestServer(t)
	pid := createProduct(t, srv, "STS-001", 5)
	_, order := do(t, srv, http.MethodPost, "/api/v1/orders", orderReq(map[string]any{"product_id": pid, "quantity": 1}))
	id := order["order_id"].(string)

	cases := []struct {
		status string
		code   string
	}{
		{"cancelled", orders.CodeUseCancel},
		{"lost", orders.CodeInvalidStatus},
	}
	for _, c := range cases {
		resp, body := do(t, srv, http.MethodPatch, "/api/v1/orders/"+id+"/status", map[string]any{"new_status": c.status})
		if resp.StatusCode != http.StatusUnprocessableEntity || errorCode(body) != c.code {
			t.Errorf("%s: status = %d body=%v", c.status, resp.StatusCode, body)
		}
	}

	resp, body := do(t, srv, http.MethodPatch, "/api/v1/orders/"+id+"/status", map[string]any{"new_status": "shipped"})
	if resp.StatusCode != http.StatusOK || body["old_status"] != "confirmed" || body["new_status"] != "shipped" {
		t.Fatalf("status = %d body=%v", resp.StatusCode, body)
	}
}

func TestUsersAndMyOrders(t *testing.T) {
	srv := newTestServer(t)

	resp, user := do(t, srv, http.MethodPost, "/api/v1/users/register", map[string]any{
		"email": "Ana@Example.com", "full_name": "Ana", "password": "s3cret-pass",
	})
	if resp.StatusCode != http.StatusCreated || user["email"] != "ana@example.com" {
		t.Fatalf("register = %d %v", resp.StatusCode, user)
	}
	if _, ok := user["password_hash"]; ok {
		t.Fatal("password hash leaked")
	}

	resp, body := do(t, srv, http.MethodPost, "/api/v1/users/login", map[string]any{"email": "ana@example.com", "password": "wrong-pass"})
	if resp.StatusCode != http.StatusUnauthorized || errorCode(body) != users.CodeInvalidCredentials {
		t.Fatalf("bad login = %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, srv, http.MethodPost, "/api/v1/users/login", map[string]any{"email": "ana@example.com", "password": "s3cret-pass"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login = %d %v", resp.StatusCode, body)
	}
	auth := "Bearer " + body["access_token"].(string)

	resp, me := do(t, srv, http.MethodGet, "/api/v1/users/me", nil, "Authorization", auth)
	if resp.StatusCode != http.StatusOK || me["user_id"] != user["user_id"] {
		t.Fatalf("me = %d %v", resp.StatusCode, me)
	}

	resp, _ = do(t, srv, http.MethodGet, "/api/v1/orders/mine", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("mine without token = %d", resp.StatusCode)
	}
	resp, _ = do(t, srv, http.MethodGet, "/api/v1/orders/mine", nil, "Authorization", auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mine = %d", resp.StatusCode)
	}
}
