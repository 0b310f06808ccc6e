package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_Record(t *testing.T) {
	l := New()
	assert.Equal(t, 0, l.Documents())

	require.NoError(t, l.Record([]int{1, 1}))
	require.NoError(t, l.Record([]int{0}))
	assert.Equal(t, int64(2), l.Total())
	assert.Equal(t, 3, l.Documents())

	offsets, err := l.Finalize()
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2, 2}, offsets)
}

func TestLedger_Empty(t *testing.T) {
	l := New()
	require.NoError(t, l.Record(nil))

	offsets, err := l.Finalize()
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, offsets)
}

func TestLedger_BatchSplitInvariance(t *testing.T) {
	counts := []int{3, 0, 5, 1, 0, 0, 2, 7, 4}

	whole := New()
	require.NoError(t, whole.Record(counts))
	want, err := whole.Finalize()
	require.NoError(t, err)

	for _, size := range []int{1, 2, 4, 9} {
		l := New()
		for i := 0; i < len(counts); i += size {
			require.NoError(t, l.Record(counts[i:min(i+size, len(counts))]))
		}
		got, err := l.Finalize()
		require.NoError(t, err)
		assert.Equal(t, want, got, "batch size %d", size)
	}

	for i := 1; i < len(want); i++ {
		assert.GreaterOrEqual(t, want[i], want[i-1])
		assert.Equal(t, int64(counts[i-1]), want[i]-want[i-1])
	}
}

func TestLedger_RejectsNegative(t *testing.T) {
	l := New()
	require.NoError(t, l.Record([]int{2}))

	err := l.Record([]int{1, -1})
	assert.ErrorIs(t, err, ErrNegativeCount)
	// The rejected batch leaves no trace.
	assert.Equal(t, int64(2), l.Total())
	assert.Equal(t, 1, l.Documents())
}

func TestLedger_FinalizeOnce(t *testing.T) {
	l := New()
	_, err := l.Finalize()
	require.NoError(t, err)

	_, err = l.Finalize()
	assert.ErrorIs(t, err, ErrFinalized)
	assert.ErrorIs(t, l.Record([]int{1}), ErrFinalized)
}
