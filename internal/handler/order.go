package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/ucademy/orderflow/internal/domain/coupon"
	"github.com/ucademy/orderflow/internal/domain/course"
	"github.com/ucademy/orderflow/internal/domain/order"
	"github.com/ucademy/orderflow/internal/domain/pricing"
)

type createOrderRequest struct {
	BuyerID           string `json:"buyerId"`
	CourseID          string `json:"courseId"`
	BasePrice         *int64 `json:"basePrice,omitempty"`
	CouponCode        string `json:"couponCode,omitempty"`
	SettleImmediately bool   `json:"settleImmediately,omitempty"`
}

type transitionOrderRequest struct {
	Status string `json:"status"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BuyerID == "" || req.CourseID == "" {
		writeError(ctx, w, http.StatusBadRequest, "buyerId and courseId are required")
		return
	}

	o, err := h.orders.CreateOrder(ctx, order.CreateOrderRequest{
		BuyerID:           req.BuyerID,
		CourseID:          req.CourseID,
		BasePrice:         parsePrice(req.BasePrice),
		CouponCode:        req.CouponCode,
		SettleImmediately: req.SettleImmediately,
	})
	if err != nil {
		h.mapCreateError(w, r, err)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) transitionOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req transitionOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	target := order.Status(req.Status)
	if !target.Valid() {
		writeError(ctx, w, http.StatusBadRequest, "unknown status: "+req.Status)
		return
	}

	o, err := h.orders.TransitionOrder(ctx, id, target)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(ctx, w, http.StatusNotFound, "order not found")
			return
		}
		h.internalError(w, r, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) getOrderByCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	o, err := h.orders.GetOrderByHumanCode(ctx, code)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(ctx, w, http.StatusNotFound, "order not found")
			return
		}
		h.internalError(w, r, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, toOrderResponse(o))
}

// mapCreateError converts domain errors from order creation to HTTP
// responses. Coupon failures are unprocessable-entity so the storefront can
// show the exact reason; conflicts carry the existing order's code.
func (h *Handler) mapCreateError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var dup *order.DuplicatePendingError
	if errors.As(err, &dup) {
		writeJSON(ctx, w, http.StatusConflict, errorResponse{
			Code:      http.StatusConflict,
			Message:   dup.Error(),
			OrderCode: dup.HumanCode,
		})
		return
	}

	switch {
	case errors.Is(err, order.ErrAlreadyOwned):
		writeError(ctx, w, http.StatusConflict, "course already owned")
	case errors.Is(err, course.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, "course not found")
	case errors.Is(err, coupon.ErrNotFound):
		writeError(ctx, w, http.StatusUnprocessableEntity, "coupon not found")
	case errors.Is(err, coupon.ErrNotActive):
		writeError(ctx, w, http.StatusUnprocessableEntity, "coupon not active")
	case errors.Is(err, coupon.ErrOutOfWindow):
		writeError(ctx, w, http.StatusUnprocessableEntity, "coupon outside validity window")
	case errors.Is(err, coupon.ErrNotApplicable):
		writeError(ctx, w, http.StatusUnprocessableEntity, "coupon not applicable to this course")
	case errors.Is(err, coupon.ErrLimitReached):
		writeError(ctx, w, http.StatusUnprocessableEntity, "coupon usage limit reached")
	case errors.Is(err, pricing.ErrNegativePrice):
		writeError(ctx, w, http.StatusBadRequest, "base price must not be negative")
	default:
		h.internalError(w, r, err)
	}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	zctx.From(ctx).Error("request failed", zap.Error(err))
	writeError(ctx, w, http.StatusInternalServerError, "internal error")
}
