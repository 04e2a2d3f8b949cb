package services

import "errors"

// Finalization failure taxonomy. Validation errors are detected before any
// mutation; a conflict leaves prior state fully intact; a delivery failure
// is a warning on an otherwise committed finalize, never a failure.
var (
	ErrInvalidWinner              = errors.New("declared winner is not a known participant of the match")
	ErrMatchNotFound              = errors.New("match not found")
	ErrMissingScore               = errors.New("participant has no score entry")
	ErrConcurrentUpdateConflict   = errors.New("match was modified by a concurrent finalization")
	ErrNotificationDeliveryFailed = errors.New("notification delivery failed")
)
