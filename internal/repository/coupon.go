package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ucademy/orderflow/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, kind, value, active,
		start_date, end_date, usage_limit, used, created_at
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	getCouponCoursesSQL = `SELECT course_id FROM coupon_courses WHERE coupon_id = $1`

	// The limit check and the increment are one conditional write. Zero
	// rows affected means the allowance was exhausted by a concurrent
	// redemption between lookup and update.
	redeemCouponSQL = `UPDATE coupons SET used = used + 1
		WHERE id = $1 AND (usage_limit = 0 OR used < usage_limit)`

	releaseCouponSQL = `UPDATE coupons SET used = used - 1
		WHERE id = $1 AND used > 0`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive), including its
// applicable-course set. Returns coupon.ErrNotFound when no such coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	courseRows, err := r.pool.Query(ctx, getCouponCoursesSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("loading courses for coupon %q: %w", code, err)
	}
	courseIDs, err := pgx.CollectRows(courseRows, func(row pgx.CollectableRow) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	})
	if err != nil {
		return nil, fmt.Errorf("loading courses for coupon %q: %w", code, err)
	}
	c.CourseIDs = courseIDs

	return &c, nil
}

// Redeem consumes one unit of the coupon's usage allowance as a single
// conditional update. Returns coupon.ErrLimitReached when the allowance is
// exhausted.
func (r *CouponRepository) Redeem(ctx context.Context, couponID string) error {
	tag, err := r.pool.Exec(ctx, redeemCouponSQL, couponID)
	if err != nil {
		return fmt.Errorf("redeeming coupon %q: %w", couponID, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrLimitReached
	}
	return nil
}

// Release returns one reserved unit to the coupon's allowance. Releasing a
// coupon whose counter is already zero is a no-op.
func (r *CouponRepository) Release(ctx context.Context, couponID string) error {
	_, err := r.pool.Exec(ctx, releaseCouponSQL, couponID)
	if err != nil {
		return fmt.Errorf("releasing coupon %q: %w", couponID, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c         coupon.Coupon
		kind      string
		startDate *time.Time
		endDate   *time.Time
	)
	err := row.Scan(
		&c.ID, &c.Code, &kind, &c.Value, &c.Active,
		&startDate, &endDate, &c.UsageLimit, &c.Used, &c.CreatedAt,
	)
	c.Kind = coupon.Kind(kind)
	c.StartDate = startDate
	c.EndDate = endDate
	return c, err
}
