package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt64ToInt(t *testing.T) {
	got, err := Int64ToInt(384)
	require.NoError(t, err)
	assert.Equal(t, 384, got)

	got, err = Int64ToInt(-7)
	require.NoError(t, err)
	assert.Equal(t, -7, got)
}

func TestMulInt64(t *testing.T) {
	tests := []struct {
		name    string
		a, b    int64
		want    int64
		wantErr bool
	}{
		{"zero", 0, math.MaxInt64, 0, false},
		{"small", 1000, 384, 384000, false},
		{"max", math.MaxInt64, 1, math.MaxInt64, false},
		{"overflow", math.MaxInt64/2 + 1, 2, 0, true},
		{"negative", -1, 4, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MulInt64(tt.a, tt.b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShapeBytes(t *testing.T) {
	n, err := ShapeBytes([]int64{10, 384}, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(15360), n)

	n, err = ShapeBytes([]int64{0, 384}, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = ShapeBytes(nil, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	_, err = ShapeBytes([]int64{-1}, 8)
	assert.Error(t, err)

	_, err = ShapeBytes([]int64{math.MaxInt64, 2}, 4)
	assert.Error(t, err)
}
