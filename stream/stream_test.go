package stream

import (
	"errors"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/embedpack/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect[T any](t *testing.T, seq iter.Seq2[T, error]) []T {
	t.Helper()
	var out []T
	for v, err := range seq {
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func TestLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"blank only", "\n  \n\t\n", nil},
		{"trims", "  the cat \n\nthe dog\r\n", []string{"the cat", "the dog"}},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, collect(t, Lines(strings.NewReader(tt.input))))
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestLines_ReadError(t *testing.T) {
	var errs int
	for _, err := range Lines(failingReader{}) {
		require.Error(t, err)
		errs++
	}
	assert.Equal(t, 1, errs)
}

func TestOpenLines_Restartable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\n\ntwo\nthree\n"), 0o644))

	seq := OpenLines(fs.Default, path)
	first := collect(t, seq)
	second := collect(t, seq)
	assert.Equal(t, []string{"one", "two", "three"}, first)
	assert.Equal(t, first, second)
}

func TestOpenLines_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.txt")
	for _, err := range OpenLines(nil, path) {
		assert.True(t, errors.Is(err, os.ErrNotExist))
		assert.Equal(t, 1, strings.Count(err.Error(), path), err.Error())
	}
}

func ints(n int) iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		for i := range n {
			if !yield(i, nil) {
				return
			}
		}
	}
}

func TestBatch(t *testing.T) {
	tests := []struct {
		n, size int
		lens    []int
	}{
		{0, 3, nil},
		{1, 3, []int{1}},
		{6, 3, []int{3, 3}},
		{7, 3, []int{3, 3, 1}},
		{5, 1, []int{1, 1, 1, 1, 1}},
		{4, 32, []int{4}},
		{3, 1 << 40, []int{3}},
	}
	for _, tt := range tests {
		batches, err := Batch(ints(tt.n), tt.size)
		require.NoError(t, err)

		var lens []int
		var flat []int
		for b := range collectBatches(t, batches) {
			lens = append(lens, len(b))
			flat = append(flat, b...)
		}
		assert.Equal(t, tt.lens, lens, "n=%d size=%d", tt.n, tt.size)
		for i, v := range flat {
			assert.Equal(t, i, v)
		}
		assert.Len(t, flat, tt.n)
	}
}

func collectBatches(t *testing.T, seq iter.Seq2[[]int, error]) iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		for b, err := range seq {
			require.NoError(t, err)
			if !yield(b) {
				return
			}
		}
	}
}

func TestBatch_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := Batch(ints(3), size)
		assert.ErrorIs(t, err, ErrInvalidBatchSize)
	}
}

func TestBatch_UpstreamError(t *testing.T) {
	boom := errors.New("boom")
	var seq iter.Seq2[int, error] = func(yield func(int, error) bool) {
		for i := range 5 {
			if !yield(i, nil) {
				return
			}
		}
		yield(0, boom)
	}

	batches, err := Batch(seq, 2)
	require.NoError(t, err)

	var got [][]int
	var errs []error
	for b, err := range batches {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		got = append(got, b)
	}
	assert.Equal(t, [][]int{{0, 1}, {2, 3}}, got)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
}

func TestBatch_EarlyStop(t *testing.T) {
	batches, err := Batch(ints(100), 10)
	require.NoError(t, err)

	n := 0
	for range batches {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}
