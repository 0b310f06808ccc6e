// Package ledger converts per-batch surviving-token counts into one global,
// monotone sequence of document boundaries.
//
// The ledger is the only place where local (per-batch) offsets become corpus
// offsets. Document i owns rows Boundaries[i] .. Boundaries[i+1]-1 of the
// flat token arrays, so counts must be recorded in exactly the order the
// documents were encoded.
package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrFinalized is returned when the ledger is used after Finalize.
	ErrFinalized = errors.New("ledger: already finalized")

	// ErrNegativeCount is returned when a document reports fewer than zero surviving tokens.
	ErrNegativeCount = errors.New("ledger: negative token count")
)

// Ledger accumulates document boundaries. It is not safe for concurrent use;
// the pipeline driver is its single writer.
type Ledger struct {
	total      int64
	boundaries []int64
	finalized  bool
}

// New returns a ledger holding the single boundary 0.
func New() *Ledger {
	return &Ledger{boundaries: []int64{0}}
}

// Record appends one boundary per count, in order. The batch is rejected as
// a whole if any count is negative.
func (l *Ledger) Record(counts []int) error {
	if l.finalized {
		return ErrFinalized
	}
	for i, c := range counts {
		if c < 0 {
			return fmt.Errorf("%w: %d at batch position %d", ErrNegativeCount, c, i)
		}
	}
	for _, c := range counts {
		l.total += int64(c)
		l.boundaries = append(l.boundaries, l.total)
	}
	return nil
}

// Total returns the running number of surviving tokens.
func (l *Ledger) Total() int64 { return l.total }

// Documents returns the number of documents recorded so far.
func (l *Ledger) Documents() int { return len(l.boundaries) - 1 }

// Finalize returns the complete offsets array. It may be called once.
func (l *Ledger) Finalize() ([]int64, error) {
	if l.finalized {
		return nil, ErrFinalized
	}
	l.finalized = true
	out := l.boundaries
	l.boundaries = nil
	return out, nil
}
