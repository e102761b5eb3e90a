package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ucademy/orderflow/internal/domain/course"
)

const getCourseByIDSQL = `SELECT id, title, slug, price FROM courses WHERE id = $1`

var _ course.Catalog = (*CourseRepository)(nil)

// CourseRepository implements course.Catalog backed by PostgreSQL.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository returns a CourseRepository that uses the given pool.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// GetByID fetches a course. Returns course.ErrNotFound when absent.
func (r *CourseRepository) GetByID(ctx context.Context, id string) (*course.Course, error) {
	rows, err := r.pool.Query(ctx, getCourseByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding course %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (course.Course, error) {
		var c course.Course
		err := row.Scan(&c.ID, &c.Title, &c.Slug, &c.Price)
		return c, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, course.ErrNotFound
		}
		return nil, fmt.Errorf("finding course %q: %w", id, err)
	}
	return &c, nil
}
