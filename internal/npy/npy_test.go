package npy

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderEncode(t *testing.T) {
	tests := []struct {
		name   string
		header Header
		dict   string
	}{
		{"1d", Header{DType: Int64, Shape: []int64{4}}, "{'descr': '<i8', 'fortran_order': False, 'shape': (4,), }"},
		{"2d", Header{DType: Float32, Shape: []int64{3, 384}}, "{'descr': '<f4', 'fortran_order': False, 'shape': (3, 384), }"},
		{"empty", Header{DType: Float16, Shape: []int64{0, 8}}, "{'descr': '<f2', 'fortran_order': False, 'shape': (0, 8), }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.header.Encode(0)
			require.NoError(t, err)
			assert.Equal(t, 0, len(b)%64)
			assert.True(t, bytes.HasPrefix(b, []byte("\x93NUMPY\x01\x00")))
			assert.Equal(t, byte('\n'), b[len(b)-1])
			assert.True(t, bytes.Contains(b, []byte(tt.dict)))

			got, n, err := DecodeHeader(b)
			require.NoError(t, err)
			assert.Equal(t, len(b), n)
			assert.Equal(t, tt.header, got)
		})
	}
}

func TestHeaderReserved(t *testing.T) {
	reserved := ReservedLen(Float32, 2)
	require.Positive(t, reserved)

	small, err := Header{DType: Float32, Shape: []int64{0, 0}}.Encode(reserved)
	require.NoError(t, err)
	large, err := Header{DType: Float32, Shape: []int64{1 << 40, 1024}}.Encode(reserved)
	require.NoError(t, err)

	// Rewriting the shape in place requires a stable header length.
	assert.Equal(t, reserved, len(small))
	assert.Equal(t, reserved, len(large))
}

func TestReadHeaderErrors(t *testing.T) {
	_, _, err := DecodeHeader([]byte("not a numpy file at all"))
	assert.ErrorIs(t, err, ErrInvalidHeader)

	_, _, err = DecodeHeader([]byte("\x93NUM"))
	assert.ErrorIs(t, err, ErrInvalidHeader)

	_, err = Header{DType: "<c8", Shape: []int64{1}}.Encode(0)
	assert.ErrorIs(t, err, ErrUnsupported)

	fortran := []byte("\x93NUMPY\x01\x00")
	dict := "{'descr': '<f4', 'fortran_order': True, 'shape': (2, 2), }\n"
	fortran = append(fortran, byte(len(dict)), 0)
	fortran = append(fortran, dict...)
	_, _, err = DecodeHeader(fortran)
	assert.ErrorIs(t, err, ErrUnsupported)

	huge, err := Header{DType: Float32, Shape: []int64{1 << 62, 1 << 10}}.Encode(0)
	require.NoError(t, err)
	_, _, err = DecodeHeader(huge)
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestDataRoundTrip(t *testing.T) {
	floats := []float32{0, -1.5, 3.25}
	fb := AppendFloat32(nil, floats)
	require.Len(t, fb, 12)
	gotF := make([]float32, 3)
	DecodeFloat32(gotF, fb)
	assert.Equal(t, floats, gotF)

	ints := []int64{0, 7, -3, 1 << 40}
	ib := AppendInt64(nil, ints)
	require.Len(t, ib, 32)
	gotI := make([]int64, 4)
	DecodeInt64(gotI, ib)
	assert.Equal(t, ints, gotI)
}
