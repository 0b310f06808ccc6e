package appendarray

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when appending to an array that was closed or aborted.
	ErrClosed = errors.New("appendarray: array is closed")

	// ErrWrongDType is returned when the append method does not match the array dtype.
	ErrWrongDType = errors.New("appendarray: wrong dtype for append")

	// ErrInvalidWidth is returned for a zero or negative row width.
	ErrInvalidWidth = errors.New("appendarray: invalid row width")
)

// ErrDimensionMismatch indicates a row whose width differs from the array width.
type ErrDimensionMismatch struct {
	Target   string
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("appendarray: %s: dimension mismatch: expected %d, got %d", e.Target, e.Expected, e.Actual)
}
