package httpx

import (
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/ariefcatur/go-modular-shop/internal/catalog"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductsHandler struct {
	svc *catalog.Service
	log *zap.Logger
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Route("/catalog", func(r chi.Router) {
		r.Post("/products", h.create)
		r.Get("/products", h.list)
		r.Get("/products/search", h.search)
		r.Get("/products/sku/{sku}", h.getBySKU)
		r.Get("/products/{id}", h.get)
		r.Patch("/products/{id}", h.update)
		r.Delete("/products/{id}", h.delete)
		r.Post("/stock/reserve", h.reserve)
		r.Post("/stock/release", h.release)
	})
}

type createProductReq struct {
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	InitialStock int             `json:"initial_stock"`
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createProductReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), catalog.CreateProductInput(req))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) getBySKU(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetBySKU(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ps, err := h.svc.ListProducts(r.Context(), catalog.Page{Skip: skip, Limit: limit})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) search(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	f := catalog.SearchFilter{Query: r.URL.Query().Get("q"), Page: catalog.Page{Skip: skip, Limit: limit}}
	if f.MinPrice, err = priceParam(r, "min_price"); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if f.MaxPrice, err = priceParam(r, "max_price"); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	ps, err := h.svc.SearchProducts(r.Context(), f)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func priceParam(r *http.Request, name string) (*decimal.Decimal, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return nil, apperr.Validation(name, name+" must be a non-negative number")
	}
	return &d, nil
}

type updateProductReq struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Currency    *string          `json:"currency"`
	Stock       *int             `json:"stock_quantity"`
	IsActive    *bool            `json:"is_active"`
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateProductReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	p, err := h.svc.UpdateProduct(r.Context(), chi.URLParam(r, "id"), catalog.UpdateProductInput(req))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) delete(w http.ResponseWriter, r *http.Request) {
	logical := true
	if v := r.URL.Query().Get("logical"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, h.log, apperr.Validation("logical", "logical must be true or false"))
			return
		}
		logical = b
	}
	if err := h.svc.DeleteProduct(r.Context(), chi.URLParam(r, "id"), logical); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	msg := "product deactivated"
	if !logical {
		msg = "product deleted"
	}
	writeJSON(w, http.StatusOK, message{Success: true, Message: msg})
}

type stockReq struct {
	Items []catalog.StockLine `json:"items"`
}

type stockResp struct {
	Success  bool                  `json:"success"`
	Products []catalog.StockChange `json:"products"`
	Message  string                `json:"message"`
}

func (h *ProductsHandler) reserve(w http.ResponseWriter, r *http.Request) {
	var req stockReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	changes, err := h.svc.ReserveStock(r.Context(), req.Items)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResp{Success: true, Products: changes, Message: "stock reserved"})
}

func (h *ProductsHandler) release(w http.ResponseWriter, r *http.Request) {
	var req stockReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	changes, err := h.svc.ReleaseStock(r.Context(), req.Items)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResp{Success: true, Products: changes, Message: "stock released"})
}
