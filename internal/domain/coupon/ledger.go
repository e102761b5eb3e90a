package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Ledger validates coupon codes and reserves usage allowance against a
// Repository. The check-and-increment step is delegated to the repository
// so the limit invariant holds under concurrent redemption of one code.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

// NewLedger creates a Ledger backed by the given Repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// ValidateAndReserve checks the coupon identified by code against the given
// course and, when every check passes, consumes one unit of its usage
// allowance. The returned Reservation carries the discount terms for pricing.
//
// The reservation is not rolled back automatically: a caller whose later work
// fails must call Release exactly once to return the consumed unit.
func (l *Ledger) ValidateAndReserve(ctx context.Context, code, courseID string) (*Reservation, error) {
	if !ValidCode(code) {
		return nil, ErrNotFound
	}

	c, err := l.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !c.Active {
		return nil, ErrNotActive
	}

	now := l.now()
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return nil, ErrOutOfWindow
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return nil, ErrOutOfWindow
	}

	if !c.AppliesTo(courseID) {
		return nil, ErrNotApplicable
	}

	// Advisory pre-check. The authoritative check is the conditional
	// increment below, which can still fail under concurrent redemption.
	if c.UsageLimit > 0 && c.Used >= c.UsageLimit {
		return nil, ErrLimitReached
	}

	if err := l.repo.Redeem(ctx, c.ID); err != nil {
		if errors.Is(err, ErrLimitReached) {
			return nil, ErrLimitReached
		}
		return nil, errors.Wrap(err, "redeem coupon")
	}

	return &Reservation{
		CouponID: c.ID,
		Code:     c.Code,
		Kind:     c.Kind,
		Value:    c.Value,
	}, nil
}

// Release returns the reserved unit to the coupon's allowance. It is the
// compensating action for a ValidateAndReserve whose caller failed before
// committing; each reservation may be released at most once.
func (l *Ledger) Release(ctx context.Context, res *Reservation) error {
	if err := l.repo.Release(ctx, res.CouponID); err != nil {
		return errors.Wrap(err, "release coupon reservation")
	}
	return nil
}
