package order

// Transition describes the outcome of a requested status change. When
// Applied is false the order was already at (or past) the target and the
// request is a no-op: callers must not re-run side effects.
type Transition struct {
	From    Status
	To      Status
	Applied bool
}

// Plan decides whether moving from current to target applies or is an
// idempotent no-op. Every request resolves to one of the two; there is no
// hard failure, which keeps transition requests safe to retry.
//
// Applying moves: Pending→Completed, Pending→Canceled, Completed→Canceled.
// Everything else (same-status requests, anything out of Canceled,
// Completed→Pending) is a no-op returning the current status unchanged.
func Plan(current, target Status) Transition {
	if current == target {
		return Transition{From: current, To: current}
	}

	switch {
	case current == StatusPending && target == StatusCompleted,
		current == StatusPending && target == StatusCanceled,
		current == StatusCompleted && target == StatusCanceled:
		return Transition{From: current, To: target, Applied: true}
	}

	return Transition{From: current, To: current}
}
