package model

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEncoding is returned when an encoder output does not match its batch.
	ErrMalformedEncoding = errors.New("malformed encoding")

	// ErrInconsistentFilter is returned when filter counts disagree with the flattened arrays.
	ErrInconsistentFilter = errors.New("inconsistent filter output")
)

// Encoding is the encoder output for one batch of lines.
type Encoding struct {
	// TokenIDs holds the raw token ids of each line.
	TokenIDs [][]uint64
	// TokenEmbeddings holds one vector per token, aligned with TokenIDs.
	TokenEmbeddings [][][]float32
	// TextEmbeddings holds one aggregate vector per line.
	TextEmbeddings [][]float32
}

// Len returns the number of lines in the encoding.
func (e Encoding) Len() int { return len(e.TextEmbeddings) }

// NumTokens returns the number of raw tokens across all lines.
func (e Encoding) NumTokens() int {
	n := 0
	for _, ids := range e.TokenIDs {
		n += len(ids)
	}
	return n
}

// Validate checks that the encoding describes exactly lines lines and that
// token ids and token embeddings agree per line.
func (e Encoding) Validate(lines int) error {
	if len(e.TokenIDs) != lines || len(e.TokenEmbeddings) != lines || len(e.TextEmbeddings) != lines {
		return fmt.Errorf("%w: %d lines in batch, got %d token id rows, %d token embedding rows, %d text embeddings",
			ErrMalformedEncoding, lines, len(e.TokenIDs), len(e.TokenEmbeddings), len(e.TextEmbeddings))
	}
	for i := range e.TokenIDs {
		if len(e.TokenIDs[i]) != len(e.TokenEmbeddings[i]) {
			return fmt.Errorf("%w: line %d has %d token ids but %d token embeddings",
				ErrMalformedEncoding, i, len(e.TokenIDs[i]), len(e.TokenEmbeddings[i]))
		}
	}
	return nil
}

// Filtered is the vocabulary filter output for one batch.
type Filtered struct {
	// Counts holds the number of surviving tokens per line.
	Counts []int
	// VocabIDs holds the surviving vocabulary ids, flattened in encounter order.
	VocabIDs []int64
	// Embeddings holds the surviving token embeddings, aligned 1:1 with VocabIDs.
	Embeddings [][]float32
}

// Total returns the number of surviving tokens in the batch.
func (f Filtered) Total() int { return len(f.VocabIDs) }

// Validate checks that the per-line counts describe lines lines and sum to
// the length of both flattened arrays.
func (f Filtered) Validate(lines int) error {
	if len(f.Counts) != lines {
		return fmt.Errorf("%w: %d lines in batch, got %d counts", ErrInconsistentFilter, lines, len(f.Counts))
	}
	sum := 0
	for i, c := range f.Counts {
		if c < 0 {
			return fmt.Errorf("%w: negative count %d for line %d", ErrInconsistentFilter, c, i)
		}
		sum += c
	}
	if sum != len(f.VocabIDs) || sum != len(f.Embeddings) {
		return fmt.Errorf("%w: counts sum to %d, got %d ids and %d embeddings",
			ErrInconsistentFilter, sum, len(f.VocabIDs), len(f.Embeddings))
	}
	return nil
}
