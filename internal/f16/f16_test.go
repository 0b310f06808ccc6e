package f16

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var negZero = float32(math.Copysign(0, -1))

func TestFromFloat32(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want Bits
	}{
		{"zero", 0, 0x0000},
		{"negative zero", negZero, 0x8000},
		{"one", 1, 0x3c00},
		{"minus two", -2, 0xc000},
		{"half", 0.5, 0x3800},
		{"max", 65504, 0x7bff},
		{"rounds to inf", 65520, 0x7c00},
		{"overflow", 1e6, 0x7c00},
		{"inf", float32(math.Inf(1)), 0x7c00},
		{"negative inf", float32(math.Inf(-1)), 0xfc00},
		{"smallest normal", 0x1p-14, 0x0400},
		{"smallest subnormal", 0x1p-24, 0x0001},
		{"subnormal tie to even zero", 0x1p-25, 0x0000},
		{"subnormal tie to even two", 0x3p-25, 0x0002},
		{"subnormal carries into normal", 0x7ffp-25, 0x0400},
		{"underflow", 1e-10, 0x0000},
		{"negative underflow", -1e-10, 0x8000},
		{"tie to even down", 1 + 0x1p-11, 0x3c00},
		{"tie to even up", 1 + 0x3p-11, 0x3c02},
		{"above tie", 1 + 0x1p-11 + 0x1p-20, 0x3c01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromFloat32(tt.in), "got %#04x", uint16(FromFloat32(tt.in)))
		})
	}
}

func TestFromFloat32_NaN(t *testing.T) {
	got := FromFloat32(float32(math.NaN()))
	assert.Equal(t, infBits, got&infBits)
	assert.NotZero(t, got&fracBits)
	assert.True(t, math.IsNaN(float64(ToFloat32(got))))
}

func TestToFloat32(t *testing.T) {
	tests := []struct {
		name string
		in   Bits
		want float32
	}{
		{"zero", 0x0000, 0},
		{"one", 0x3c00, 1},
		{"minus one", 0xbc00, -1},
		{"max", 0x7bff, 65504},
		{"smallest subnormal", 0x0001, 0x1p-24},
		{"largest subnormal", 0x03ff, 0x3ffp-24},
		{"negative subnormal", 0x8001, -0x1p-24},
		{"inf", 0x7c00, float32(math.Inf(1))},
		{"negative inf", 0xfc00, float32(math.Inf(-1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToFloat32(tt.in))
		})
	}

	assert.Equal(t, math.Float32bits(negZero), math.Float32bits(ToFloat32(0x8000)))
}

func TestRoundTrip_AllFinite(t *testing.T) {
	for h := range Bits(0xffff) {
		if h&infBits == infBits {
			continue
		}
		require.Equal(t, h, FromFloat32(ToFloat32(h)), "bits %#04x", uint16(h))
	}
}

func TestAppendDecodeLE(t *testing.T) {
	src := []float32{0, 1, -2, 65504, 0.25}
	buf := AppendLE(nil, src)
	require.Len(t, buf, len(src)*Size)
	assert.Equal(t, []byte{0x00, 0x3c}, buf[2:4])

	got := make([]float32, len(src))
	DecodeLE(got, buf)
	assert.Equal(t, src, got)
}
