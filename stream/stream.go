// Package stream provides the lazy producers that feed the pipeline: a line
// reader over text sources and a generic fixed-size batcher.
package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/hupe1980/embedpack/internal/fs"
)

// ErrInvalidBatchSize is returned by Batch when size is not positive.
var ErrInvalidBatchSize = errors.New("stream: batch size must be positive")

// MaxLineSize bounds a single input line.
const MaxLineSize = 16 << 20

const maxBatchPrealloc = 1024

// Lines yields the whitespace-trimmed, non-empty lines of r. A read error is
// yielded once and ends the sequence.
func Lines(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if !yield(line, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield("", fmt.Errorf("stream: read lines: %w", err))
		}
	}
}

// OpenLines is like Lines but reads path through fsys. The file is opened
// anew on every iteration, so the sequence can be ranged over more than once.
func OpenLines(fsys fs.FileSystem, path string) iter.Seq2[string, error] {
	if fsys == nil {
		fsys = fs.Default
	}
	return func(yield func(string, error) bool) {
		f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			yield("", fmt.Errorf("stream: %w", err))
			return
		}
		defer f.Close()

		for line, err := range Lines(f) {
			if !yield(line, err) || err != nil {
				return
			}
		}
	}
}

// Batch groups seq into slices of exactly size elements; the final slice holds
// the remainder. Empty slices are never yielded. An upstream error is yielded
// once, after any complete batches, and ends the sequence; the partial batch
// collected before the error is discarded.
//
// Each yielded slice is freshly allocated and may be retained by the caller.
func Batch[T any](seq iter.Seq2[T, error], size int) (iter.Seq2[[]T, error], error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, size)
	}
	// Capacity is capped so a huge size does not reserve memory up front.
	capacity := min(size, maxBatchPrealloc)
	return func(yield func([]T, error) bool) {
		buf := make([]T, 0, capacity)
		for v, err := range seq {
			if err != nil {
				yield(nil, err)
				return
			}
			buf = append(buf, v)
			if len(buf) == size {
				if !yield(buf, nil) {
					return
				}
				buf = make([]T, 0, capacity)
			}
		}
		if len(buf) > 0 {
			yield(buf, nil)
		}
	}, nil
}
