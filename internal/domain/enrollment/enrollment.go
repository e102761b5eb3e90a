// Package enrollment keeps a buyer's owned-course set in step with order
// lifecycle transitions.
package enrollment

import (
	"context"

	"github.com/go-faster/errors"
)

// BuyerRepository mutates and reads a buyer's owned-course set. AddCourse
// and RemoveCourse are set operations: adding a course twice or removing an
// absent course must succeed without effect.
type BuyerRepository interface {
	AddCourse(ctx context.Context, buyerID, courseID string) error
	RemoveCourse(ctx context.Context, buyerID, courseID string) error
	OwnsCourse(ctx context.Context, buyerID, courseID string) (bool, error)
}

// Synchronizer applies enrollment side effects for order transitions.
// Grant and Revoke are idempotent, so retried invocations are harmless.
type Synchronizer struct {
	buyers BuyerRepository
}

// NewSynchronizer creates a Synchronizer over the given buyer store.
func NewSynchronizer(buyers BuyerRepository) *Synchronizer {
	return &Synchronizer{buyers: buyers}
}

// Grant adds courseID to the buyer's owned set.
func (s *Synchronizer) Grant(ctx context.Context, buyerID, courseID string) error {
	if err := s.buyers.AddCourse(ctx, buyerID, courseID); err != nil {
		return errors.Wrap(err, "grant enrollment")
	}
	return nil
}

// Revoke removes courseID from the buyer's owned set.
func (s *Synchronizer) Revoke(ctx context.Context, buyerID, courseID string) error {
	if err := s.buyers.RemoveCourse(ctx, buyerID, courseID); err != nil {
		return errors.Wrap(err, "revoke enrollment")
	}
	return nil
}
