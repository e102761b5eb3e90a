// Package notification defines the lifecycle events the engine emits.
// Events are value objects; delivery (push, email, in-app) belongs to the
// sink implementation, and delivery failures never affect the operation
// that produced the event.
package notification

import (
	"context"
	"fmt"
)

// Kind classifies a lifecycle notification.
type Kind string

const (
	// KindOrderPending signals an order awaiting confirmation.
	KindOrderPending Kind = "ORDER_PENDING"
	// KindEnrollmentCompleted signals a successful course enrollment.
	KindEnrollmentCompleted Kind = "COURSE_ENROLLMENT_COMPLETED"
	// KindOrderCanceled signals a canceled order.
	KindOrderCanceled Kind = "ORDER_CANCELED"
)

// Event is a user-facing message produced by the engine. It is not persisted
// here.
type Event struct {
	RecipientID string `json:"recipientId"`
	Kind        Kind   `json:"kind"`
	Message     string `json:"message"`
	Link        string `json:"link"`
}

// Sink receives lifecycle events. Emit is fire-and-forget from the engine's
// perspective: the caller logs failures and moves on.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// OrderPending builds the event for a newly created order awaiting
// confirmation.
func OrderPending(buyerID, courseTitle, humanCode string) Event {
	return Event{
		RecipientID: buyerID,
		Kind:        KindOrderPending,
		Message: fmt.Sprintf(
			"Your order for %q has been created and is awaiting confirmation. Order code: %s",
			courseTitle, humanCode),
		Link: "/order/" + humanCode,
	}
}

// EnrollmentCompleted builds the event for a confirmed enrollment.
func EnrollmentCompleted(buyerID, courseTitle string) Event {
	return Event{
		RecipientID: buyerID,
		Kind:        KindEnrollmentCompleted,
		Message: fmt.Sprintf(
			"Congratulations! You are now enrolled in %q. Start learning right away!",
			courseTitle),
		Link: "/study",
	}
}

// OrderCanceled builds the event for a canceled order.
func OrderCanceled(buyerID, courseTitle, humanCode string) Event {
	return Event{
		RecipientID: buyerID,
		Kind:        KindOrderCanceled,
		Message: fmt.Sprintf(
			"Your order %s for %q has been canceled.",
			humanCode, courseTitle),
		Link: "/order/" + humanCode,
	}
}
