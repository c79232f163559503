package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyName         = errors.New("empty name")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidRoomSize   = errors.New("room size must be a positive number")
	ErrInvalidPercentage = errors.New("percentage must be greater than 0 and at most 100")
	ErrInvalidPolicy     = errors.New("invalid allocation policy")
	ErrInvalidSplit      = errors.New("invalid split method")
	ErrInvalidPeriod     = errors.New("invalid period")

	// ErrNoOccupants is returned when an allocation is attempted without occupants.
	ErrNoOccupants = errors.New("at least one occupant is required")
)

// ValidationError reports malformed occupant or charge input. Err is one of
// the sentinel errors above so callers can use errors.Is on either.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// InvalidAllocationError reports that the occupants do not satisfy the
// preconditions of the selected policy. Sum is the value actually computed.
type InvalidAllocationError struct {
	Policy Policy
	Sum    decimal.Decimal
	Reason string
}

func (e *InvalidAllocationError) Error() string {
	return fmt.Sprintf("%s (current: %s)", e.Reason, e.Sum.StringFixed(1))
}
