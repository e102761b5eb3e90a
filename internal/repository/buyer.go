package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ucademy/orderflow/internal/domain/enrollment"
)

const (
	addBuyerCourseSQL = `INSERT INTO buyer_courses (buyer_id, course_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`

	removeBuyerCourseSQL = `DELETE FROM buyer_courses
		WHERE buyer_id = $1 AND course_id = $2`

	ownsCourseSQL = `SELECT EXISTS (SELECT 1 FROM buyer_courses
		WHERE buyer_id = $1 AND course_id = $2)`
)

var _ enrollment.BuyerRepository = (*BuyerRepository)(nil)

// BuyerRepository implements enrollment.BuyerRepository backed by PostgreSQL.
// The owned-course set lives in buyer_courses; the composite primary key plus
// ON CONFLICT DO NOTHING makes AddCourse idempotent.
type BuyerRepository struct {
	pool *pgxpool.Pool
}

// NewBuyerRepository returns a BuyerRepository that uses the given pool.
func NewBuyerRepository(pool *pgxpool.Pool) *BuyerRepository {
	return &BuyerRepository{pool: pool}
}

// AddCourse adds courseID to the buyer's owned set.
func (r *BuyerRepository) AddCourse(ctx context.Context, buyerID, courseID string) error {
	_, err := r.pool.Exec(ctx, addBuyerCourseSQL, buyerID, courseID)
	if err != nil {
		return fmt.Errorf("adding course %q to buyer %q: %w", courseID, buyerID, err)
	}
	return nil
}

// RemoveCourse removes courseID from the buyer's owned set.
func (r *BuyerRepository) RemoveCourse(ctx context.Context, buyerID, courseID string) error {
	_, err := r.pool.Exec(ctx, removeBuyerCourseSQL, buyerID, courseID)
	if err != nil {
		return fmt.Errorf("removing course %q from buyer %q: %w", courseID, buyerID, err)
	}
	return nil
}

// OwnsCourse reports whether the buyer's owned set contains courseID.
func (r *BuyerRepository) OwnsCourse(ctx context.Context, buyerID, courseID string) (bool, error) {
	var owns bool
	if err := r.pool.QueryRow(ctx, ownsCourseSQL, buyerID, courseID).Scan(&owns); err != nil {
		return false, fmt.Errorf("checking ownership of course %q by buyer %q: %w", courseID, buyerID, err)
	}
	return owns, nil
}
