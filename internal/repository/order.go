package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ucademy/orderflow/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders
		(id, human_code, buyer_id, course_id, coupon_id, amount, discount, total, status, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)`

	getOrderByIDSQL = `SELECT id, human_code, buyer_id, course_id,
		COALESCE(coupon_id, ''), amount, discount, total, status, created_at
		FROM orders WHERE id = $1`

	getOrderByCodeSQL = `SELECT id, human_code, buyer_id, course_id,
		COALESCE(coupon_id, ''), amount, discount, total, status, created_at
		FROM orders WHERE human_code = $1`

	findLiveOrderSQL = `SELECT id, human_code, buyer_id, course_id,
		COALESCE(coupon_id, ''), amount, discount, total, status, created_at
		FROM orders
		WHERE buyer_id = $1 AND course_id = $2 AND status <> 'canceled'
		ORDER BY created_at DESC LIMIT 1`

	updateOrderStatusSQL = `UPDATE orders SET status = $3
		WHERE id = $1 AND status = $2`

	getPendingCodeSQL = `SELECT human_code FROM orders
		WHERE buyer_id = $1 AND course_id = $2 AND status = 'pending'`
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. A concurrent insert hitting the pending
// partial unique index surfaces as DuplicatePendingError.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.HumanCode, o.BuyerID, o.CourseID, o.CouponID,
		o.Amount, o.Discount, o.Total, string(o.Status), o.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation &&
			pgErr.ConstraintName == "orders_pending_buyer_course" {
			// The index guarantees at most one pending order per pair, so the
			// winning insert's code is what the buyer should be pointed at.
			var code string
			if qErr := r.pool.QueryRow(ctx, getPendingCodeSQL, o.BuyerID, o.CourseID).Scan(&code); qErr != nil {
				code = ""
			}
			return &order.DuplicatePendingError{HumanCode: code}
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID fetches an order by identity. Returns order.ErrNotFound when absent.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

// GetByHumanCode fetches an order by its user-facing reference.
func (r *OrderRepository) GetByHumanCode(ctx context.Context, code string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByCodeSQL, code)
}

// FindLive returns the most recent non-canceled order for the (buyer, course)
// pair, or order.ErrNotFound when none exists.
func (r *OrderRepository) FindLive(ctx context.Context, buyerID, courseID string) (*order.Order, error) {
	return r.getOne(ctx, findLiveOrderSQL, buyerID, courseID)
}

// UpdateStatus moves an order from one status to another, applying only when
// the stored status still matches. Reports whether the write applied.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) (bool, error) {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("updating status of order %q: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OrderRepository) getOne(ctx context.Context, sql string, args ...any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("querying order: %w", err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.HumanCode, &o.BuyerID, &o.CourseID, &o.CouponID,
		&o.Amount, &o.Discount, &o.Total, &status, &o.CreatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}
