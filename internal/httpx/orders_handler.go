package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/ariefcatur/go-modular-shop/internal/orders"
	"github.com/ariefcatur/go-modular-shop/internal/users"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type OrdersHandler struct {
	svc   *orders.Service
	cache OrderCache
	idem  IdempotencyStore
	log   *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.create)
		r.With(auth).Get("/mine", h.mine)
		r.Get("/customer/{customerID}", h.byCustomer)
		r.Get("/{id}", h.get)
		r.Post("/{id}/cancel", h.cancel)
		r.Patch("/{id}/status", h.updateStatus)
	})
}

type createOrderReq struct {
	Customer orders.Customer    `json:"customer"`
	Shipping orders.Address     `json:"shipping_address"`
	Items    []orders.LineInput `json:"items"`
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("httpx").Start(r.Context(), "POST /orders")
	defer span.End()

	var req createOrderReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	key := r.Header.Get(HeaderIdempotencyKey)
	if key != "" && h.idem != nil {
		span.SetAttributes(attribute.String("idempotency.key", key))
		if id, ok, err := h.idem.Lookup(ctx, key); err != nil {
			h.log.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			o, err := h.svc.GetOrder(ctx, id)
			if err == nil {
				w.Header().Set("Idempotent-Replay", "true")
				writeJSON(w, http.StatusOK, o)
				return
			}
			h.log.Warn("idempotency key points to unreadable order", zap.String("order_id", id), zap.Error(err))
		}
	}

	o, err := h.svc.PlaceOrder(ctx, orders.PlaceOrderInput{
		Customer: req.Customer,
		Shipping: req.Shipping,
		Items:    req.Items,
	})
	if err != nil {
		span.RecordError(err)
		writeError(w, r, h.log, err)
		return
	}
	if key != "" && h.idem != nil {
		if err := h.idem.Remember(ctx, key, o.ID); err != nil {
			h.log.Warn("idempotency remember failed", zap.String("key", key), zap.Error(err))
		}
	}
	h.cache.Set(ctx, o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if o, ok := h.cache.Get(r.Context(), id); ok {
		writeJSON(w, http.StatusOK, o)
		return
	}
	o, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.cache.Set(r.Context(), o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) byCustomer(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, chi.URLParam(r, "customerID"))
}

func (h *OrdersHandler) mine(w http.ResponseWriter, r *http.Request) {
	id, ok := users.IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, h.log, apperr.Unauthorized(users.CodeInvalidSession, "authentication required"))
		return
	}
	h.list(w, r, id.UserID)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request, customerID string) {
	skip, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	found, err := h.svc.ListByCustomer(r.Context(), customerID, orders.Page{Skip: skip, Limit: limit})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

type cancelReq struct {
	Reason string `json:"reason"`
}

type cancelResp struct {
	OrderID       string        `json:"order_id"`
	Status        orders.Status `json:"status"`
	CancelledAt   *time.Time    `json:"cancelled_at"`
	Reason        string        `json:"reason"`
	StockReleased bool          `json:"stock_released"`
	Message       string        `json:"message"`
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelReq
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	id := chi.URLParam(r, "id")
	o, err := h.svc.CancelOrder(r.Context(), id, req.Reason)
	h.invalidate(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResp{
		OrderID:       o.ID,
		Status:        o.Status,
		CancelledAt:   o.CancelledAt,
		Reason:        o.CancelReason,
		StockReleased: true,
		Message:       "order cancelled and stock released",
	})
}

type statusReq struct {
	NewStatus string `json:"new_status"`
}

type statusResp struct {
	OrderID   string        `json:"order_id"`
	OldStatus orders.Status `json:"old_status"`
	NewStatus orders.Status `json:"new_status"`
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	id := chi.URLParam(r, "id")
	o, prev, err := h.svc.UpdateStatus(r.Context(), id, req.NewStatus)
	h.invalidate(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResp{
		OrderID:   o.ID,
		OldStatus: prev,
		NewStatus: o.Status,
		Success:   true,
		Message:   "order status updated",
	})
}

func (h *OrdersHandler) invalidate(ctx context.Context, id string) {
	h.cache.Invalidate(context.WithoutCancel(ctx), id)
}
