package coupon

import (
	"context"
	"regexp"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// KindPercent discounts a percentage of the base price.
	KindPercent Kind = "percent"
	// KindAmount discounts a fixed amount capped at the base price.
	KindAmount Kind = "amount"
)

var (
	// ErrNotFound is returned when no coupon exists for the given code.
	ErrNotFound = errors.New("coupon not found")
	// ErrNotActive is returned when the coupon has been deactivated.
	ErrNotActive = errors.New("coupon not active")
	// ErrOutOfWindow is returned when the current time is outside the
	// coupon's validity window.
	ErrOutOfWindow = errors.New("coupon outside validity window")
	// ErrNotApplicable is returned when the coupon does not cover the
	// requested course.
	ErrNotApplicable = errors.New("coupon not applicable to course")
	// ErrLimitReached is returned when the coupon has exhausted its usage
	// allowance.
	ErrLimitReached = errors.New("coupon usage limit reached")
)

// codePattern matches valid coupon codes: 3-10 uppercase alphanumerics.
var codePattern = regexp.MustCompile(`^[A-Z0-9]{3,10}$`)

// ValidCode reports whether the given code matches the coupon code pattern.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// Coupon is a discount code with usage and eligibility constraints.
// CourseIDs is the closed set of courses the coupon covers; a coupon with an
// empty set applies to nothing.
type Coupon struct {
	ID         string
	Code       string
	Kind       Kind
	Value      decimal.Decimal
	CourseIDs  []string
	StartDate  *time.Time
	EndDate    *time.Time
	Active     bool
	UsageLimit int // 0 means unlimited
	Used       int
	CreatedAt  time.Time
}

// AppliesTo reports whether the coupon covers the given course.
func (c *Coupon) AppliesTo(courseID string) bool {
	for _, id := range c.CourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

// Reservation records one consumed unit of a coupon's usage allowance,
// carrying the resolved discount terms for pricing and the coupon identity
// for attachment to the order.
type Reservation struct {
	CouponID string
	Code     string
	Kind     Kind
	Value    decimal.Decimal
}

// Repository provides coupon lookup and usage-counter mutation.
//
// Redeem must perform the limit check and the increment as a single
// conditional write (an UPDATE qualified by used < usage_limit), returning
// ErrLimitReached when the coupon's allowance is already exhausted. Release
// is the compensating decrement; it must never drive the counter negative.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	Redeem(ctx context.Context, couponID string) error
	Release(ctx context.Context, couponID string) error
}
