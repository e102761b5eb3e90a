// Package handler exposes the order engine over HTTP. Transport concerns
// only: request decoding, error-to-status mapping, response encoding.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ucademy/orderflow/internal/domain/order"
)

// OrderService is the slice of the order façade the HTTP layer needs.
type OrderService interface {
	CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*order.Order, error)
	TransitionOrder(ctx context.Context, orderID string, target order.Status) (*order.Order, error)
	GetOrderByHumanCode(ctx context.Context, code string) (*order.Order, error)
}

// Handler routes engine operations.
type Handler struct {
	orders OrderService
}

// NewHandler constructs a Handler over the given order service.
func NewHandler(orders OrderService) *Handler {
	return &Handler{orders: orders}
}

// Routes returns the chi router for the engine's API.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/orders", h.createOrder)
	r.Patch("/orders/{id}/status", h.transitionOrder)
	r.Get("/orders/code/{code}", h.getOrderByCode)
	return r
}

type orderResponse struct {
	ID        string `json:"id"`
	HumanCode string `json:"humanCode"`
	BuyerID   string `json:"buyerId"`
	CourseID  string `json:"courseId"`
	CouponID  string `json:"couponId,omitempty"`
	Amount    int64  `json:"amount"`
	Discount  int64  `json:"discount"`
	Total     int64  `json:"total"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	// OrderCode carries the existing order's reference on duplicate-pending
	// conflicts so the storefront can link to it.
	OrderCode string `json:"orderCode,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:        o.ID,
		HumanCode: o.HumanCode,
		BuyerID:   o.BuyerID,
		CourseID:  o.CourseID,
		CouponID:  o.CouponID,
		Amount:    o.Amount.IntPart(),
		Discount:  o.Discount.IntPart(),
		Total:     o.Total.IntPart(),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(ctx).Warn("write response", zap.Error(err))
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	writeJSON(ctx, w, status, errorResponse{Code: status, Message: msg})
}

func parsePrice(v *int64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromInt(*v)
	return &d
}
