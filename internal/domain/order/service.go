package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ucademy/orderflow/internal/domain/coupon"
	"github.com/ucademy/orderflow/internal/domain/course"
	"github.com/ucademy/orderflow/internal/domain/notification"
	"github.com/ucademy/orderflow/internal/domain/pricing"
)

// CouponLedger reserves and releases coupon usage allowance.
type CouponLedger interface {
	ValidateAndReserve(ctx context.Context, code, courseID string) (*coupon.Reservation, error)
	Release(ctx context.Context, res *coupon.Reservation) error
}

// EnrollmentSync applies enrollment side effects. Both operations are
// idempotent.
type EnrollmentSync interface {
	Grant(ctx context.Context, buyerID, courseID string) error
	Revoke(ctx context.Context, buyerID, courseID string) error
}

// CreateOrderRequest holds the input for creating an order.
type CreateOrderRequest struct {
	BuyerID  string
	CourseID string
	// BasePrice overrides the catalog price when set. The storefront sends
	// the amount it displayed to the buyer.
	BasePrice *decimal.Decimal
	CouponCode string
	// SettleImmediately creates the order directly in the completed state,
	// used for zero-cost enrollment.
	SettleImmediately bool
}

// Service is the façade composing the coupon ledger, pricing resolver,
// order state machine, enrollment synchronizer, and notification sink into
// the engine's two public operations.
type Service struct {
	catalog     course.Catalog
	coupons     CouponLedger
	orders      Repository
	enrollments EnrollmentSync
	notifier    notification.Sink

	now       func() time.Time
	newID     func() string
	humanCode func(time.Time) string
}

// NewService creates an order Service with the required collaborators.
func NewService(
	catalog course.Catalog,
	coupons CouponLedger,
	orders Repository,
	enrollments EnrollmentSync,
	notifier notification.Sink,
) *Service {
	return &Service{
		catalog:     catalog,
		coupons:     coupons,
		orders:      orders,
		enrollments: enrollments,
		notifier:    notifier,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
		humanCode:   NewHumanCode,
	}
}

// CreateOrder turns a purchase intent into an order. See the per-step
// comments for the guard, reserve, price, persist, side-effect sequence.
// Coupon errors and duplicate/ownership errors surface verbatim; a coupon
// reservation stranded by a later failure is released before returning.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	// Duplicate guard: one live (non-canceled) order per (buyer, course).
	existing, err := s.orders.FindLive(ctx, req.BuyerID, req.CourseID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "find live order")
	}
	if existing != nil {
		switch existing.Status {
		case StatusPending:
			return nil, &DuplicatePendingError{HumanCode: existing.HumanCode}
		case StatusCompleted:
			return nil, ErrAlreadyOwned
		}
	}

	crs, err := s.catalog.GetByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return nil, course.ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup course")
	}

	basePrice := crs.Price
	if req.BasePrice != nil {
		basePrice = *req.BasePrice
	}

	// Reserve the coupon before pricing. The reservation consumes one unit
	// of the usage allowance even if the order is later canceled.
	var res *coupon.Reservation
	if req.CouponCode != "" {
		res, err = s.coupons.ValidateAndReserve(ctx, req.CouponCode, req.CourseID)
		if err != nil {
			return nil, err
		}
	}

	charge, err := pricing.Resolve(basePrice, res)
	if err != nil {
		s.releaseReservation(ctx, res)
		return nil, err
	}

	status := StatusPending
	if req.SettleImmediately {
		status = StatusCompleted
	}

	now := s.now()
	o := &Order{
		ID:        s.newID(),
		HumanCode: s.humanCode(now),
		BuyerID:   req.BuyerID,
		CourseID:  req.CourseID,
		Amount:    charge.Amount,
		Discount:  charge.Discount,
		Total:     charge.Total,
		Status:    status,
		CreatedAt: now,
	}
	if res != nil {
		o.CouponID = res.CouponID
	}

	if err := s.orders.Create(ctx, o); err != nil {
		s.releaseReservation(ctx, res)
		var dup *DuplicatePendingError
		if errors.As(err, &dup) {
			return nil, dup
		}
		return nil, errors.Wrap(err, "create order")
	}

	if status == StatusCompleted {
		if err := s.enrollments.Grant(ctx, o.BuyerID, o.CourseID); err != nil {
			return nil, errors.Wrap(err, "grant enrollment")
		}
		s.emit(ctx, notification.EnrollmentCompleted(o.BuyerID, crs.Title))
	} else {
		s.emit(ctx, notification.OrderPending(o.BuyerID, crs.Title, o.HumanCode))
	}

	return o, nil
}

// TransitionOrder drives an order to the target status. Requests that are
// already satisfied return the order unchanged with no side effects; an
// applying transition triggers enrollment and notification exactly once.
func (s *Service) TransitionOrder(ctx context.Context, orderID string, target Status) (*Order, error) {
	if !target.Valid() {
		return nil, errors.Errorf("unknown order status: %q", target)
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	tr := Plan(o.Status, target)
	if !tr.Applied {
		return o, nil
	}

	// Pure read, done before the status write: a failure here must leave
	// the order untouched so a retry can still run the side effects.
	crs, err := s.catalog.GetByID(ctx, o.CourseID)
	if err != nil {
		return nil, errors.Wrap(err, "lookup course")
	}

	applied, err := s.orders.UpdateStatus(ctx, o.ID, tr.From, tr.To)
	if err != nil {
		return nil, errors.Wrap(err, "update order status")
	}
	if !applied {
		// A concurrent caller moved the order first; their transition owns
		// the side effects.
		return s.orders.GetByID(ctx, orderID)
	}
	o.Status = tr.To

	switch {
	case tr.To == StatusCompleted:
		if err := s.enrollments.Grant(ctx, o.BuyerID, o.CourseID); err != nil {
			return nil, errors.Wrap(err, "grant enrollment")
		}
		s.emit(ctx, notification.EnrollmentCompleted(o.BuyerID, crs.Title))
	case tr.From == StatusCompleted && tr.To == StatusCanceled:
		if err := s.enrollments.Revoke(ctx, o.BuyerID, o.CourseID); err != nil {
			return nil, errors.Wrap(err, "revoke enrollment")
		}
		s.emit(ctx, notification.OrderCanceled(o.BuyerID, crs.Title, o.HumanCode))
	case tr.From == StatusPending && tr.To == StatusCanceled:
		s.emit(ctx, notification.OrderCanceled(o.BuyerID, crs.Title, o.HumanCode))
	}

	return o, nil
}

// GetOrderByHumanCode looks up an order by its user-facing reference.
func (s *Service) GetOrderByHumanCode(ctx context.Context, code string) (*Order, error) {
	return s.orders.GetByHumanCode(ctx, code)
}

// releaseReservation compensates a reserved coupon after a failed creation.
// A failed release leaves the allowance over-consumed; that cannot be
// self-healed here, so it is logged for manual reconciliation.
func (s *Service) releaseReservation(ctx context.Context, res *coupon.Reservation) {
	if res == nil {
		return
	}
	if err := s.coupons.Release(ctx, res); err != nil {
		zctx.From(ctx).Error("coupon reservation release failed, manual reconciliation required",
			zap.String("coupon_id", res.CouponID),
			zap.String("coupon_code", res.Code),
			zap.Error(err))
	}
}

// emit delivers a notification event. Delivery failures are logged and never
// affect the triggering operation.
func (s *Service) emit(ctx context.Context, ev notification.Event) {
	if err := s.notifier.Emit(ctx, ev); err != nil {
		zctx.From(ctx).Warn("notification emit failed",
			zap.String("kind", string(ev.Kind)),
			zap.String("recipient", ev.RecipientID),
			zap.Error(err))
	}
}
