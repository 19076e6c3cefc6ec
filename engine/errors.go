package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidDistribution is returned when category probabilities are negative
// or do not sum to 1 within tolerance. The prior distribution is kept.
var ErrInvalidDistribution = errors.New("invalid category distribution")

// LockedParameterError reports a randomization-origin write to a locked scalar.
// Recoverable: the caller skips that scalar and continues.
type LockedParameterError struct {
	Path Path
}

func (e *LockedParameterError) Error() string {
	return fmt.Sprintf("parameter %s is locked", e.Path)
}

// OutOfOrderError reports a ledger append at anything but the immediate next
// position. The controller is the sole writer, so this is a contract violation.
type OutOfOrderError struct {
	Got, Want int
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("ledger append out of order: got position %d, want %d", e.Got, e.Want)
}

// PositionNotReachedError reports a seek past the materialized history without
// extension permission. The caller should extend via AdvanceOne.
type PositionNotReachedError struct {
	Position, Len int
}

func (e *PositionNotReachedError) Error() string {
	return fmt.Sprintf("position %d not reached: ledger holds %d positions", e.Position, e.Len)
}
