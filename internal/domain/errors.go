package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation targets a payment or split id
// that does not exist, including after a concurrent deletion.
var ErrNotFound = errors.New("record not found")

// ValidationError rejects malformed input before anything is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// QuotaExceededError signals that creation was blocked by the tier
// ceiling. Distinct from ValidationError so callers can render an
// upgrade prompt instead of a form error.
type QuotaExceededError struct {
	MemberID string
	TripID   string
	Ceiling  int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("member %s reached the ceiling of %d payment requests in trip %s", e.MemberID, e.Ceiling, e.TripID)
}

// PermissionError rejects a mutation attempted by a caller without the
// required ownership or capability.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string { return e.Message }

// ConflictError rejects a write that targeted a stale version. Current
// carries the authoritative record (*PaymentRequest or *PaymentSplit) so
// the caller can decide to retry, overwrite or merge; the engine never
// merges silently.
type ConflictError struct {
	ExpectedVersion int64
	ActualVersion   int64
	Current         any
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("stale version %d, current is %d", e.ExpectedVersion, e.ActualVersion)
}
