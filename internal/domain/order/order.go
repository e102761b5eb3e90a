package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusPending is the initial state of a paid order awaiting confirmation.
	StatusPending Status = "pending"
	// StatusCompleted means the order is settled and enrollment granted.
	StatusCompleted Status = "completed"
	// StatusCanceled is terminal. Canceled orders are retained for audit.
	StatusCanceled Status = "canceled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrAlreadyOwned is returned when the buyer already holds a completed
	// order for the course.
	ErrAlreadyOwned = errors.New("course already owned")
)

// DuplicatePendingError indicates the buyer already has a pending order for
// the course. It carries the existing order's human code so callers can
// point the buyer at it.
type DuplicatePendingError struct {
	HumanCode string
}

func (e *DuplicatePendingError) Error() string {
	return fmt.Sprintf("pending order %s already exists for this course", e.HumanCode)
}

// Order records a buyer's intent to obtain a course.
type Order struct {
	ID        string
	HumanCode string
	BuyerID   string
	CourseID  string
	CouponID  string // empty when no coupon was applied
	Amount    decimal.Decimal
	Discount  decimal.Decimal
	Total     decimal.Decimal
	Status    Status
	CreatedAt time.Time
}

// NewHumanCode derives a short user-facing order reference from the given
// time: a fixed prefix plus the last six digits of the unix-millisecond
// clock. Store-level uniqueness is enforced separately.
func NewHumanCode(now time.Time) string {
	ms := fmt.Sprintf("%d", now.UnixMilli())
	return "DH-" + ms[len(ms)-6:]
}

// Repository defines persistence operations for orders. Orders are never
// deleted; status is the only mutable field.
//
// Create must reject a concurrent conflicting insert for the same
// (buyer, course) pending pair by returning DuplicatePendingError; the
// postgres implementation backs this with a partial unique index.
// UpdateStatus must apply only when the stored status still equals from,
// reporting whether the write applied.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByHumanCode(ctx context.Context, code string) (*Order, error)
	FindLive(ctx context.Context, buyerID, courseID string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, from, to Status) (bool, error)
}
