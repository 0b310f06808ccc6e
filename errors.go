package embedpack

import (
	"errors"
	"fmt"

	"github.com/hupe1980/embedpack/appendarray"
	"github.com/hupe1980/embedpack/ledger"
	"github.com/hupe1980/embedpack/model"
	"github.com/hupe1980/embedpack/stream"
)

var (
	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = stream.ErrInvalidBatchSize

	// ErrPipelineUsed is returned when Run is called on a pipeline that already ran.
	ErrPipelineUsed = errors.New("pipeline already used")

	// ErrNilCollaborator is returned when New is given a nil encoder or filter.
	ErrNilCollaborator = errors.New("encoder and filter must not be nil")

	// ErrMalformedEncoding is returned when the encoder output does not match its batch.
	ErrMalformedEncoding = model.ErrMalformedEncoding

	// ErrInconsistentFilter is returned when the filter counts disagree with its
	// flattened output.
	ErrInconsistentFilter = model.ErrInconsistentFilter

	// ErrNegativeCount is returned when a filter reports a negative surviving count.
	ErrNegativeCount = ledger.ErrNegativeCount

	// ErrLedgerMismatch is returned when the ledger total disagrees with the
	// rows written to the token arrays.
	ErrLedgerMismatch = errors.New("offset ledger does not match written rows")
)

// ErrDimensionMismatch indicates an embedding whose width differs from the
// pipeline dimension.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Target   string
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch in %s: expected %d, got %d", e.Target, e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrInvalidDimension indicates an encoder reporting an unusable dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *appendarray.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Target: dm.Target, Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	return err
}
