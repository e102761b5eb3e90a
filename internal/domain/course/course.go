package course

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a course does not exist in the catalog.
var ErrNotFound = errors.New("course not found")

// Course is the catalog view the engine needs: identity, display title for
// notifications, and the list price charged when the buyer does not supply one.
type Course struct {
	ID    string
	Title string
	Slug  string
	Price decimal.Decimal
}

// Catalog provides read access to the course catalog.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*Course, error)
}
