// Package f16 converts embeddings to and from IEEE-754 binary16, the storage
// format of `<f2` arrays. Embeddings are always computed in float32.
package f16

import (
	"encoding/binary"
	"math"
)

// Bits is a binary16 bit pattern: 1 sign bit, 5 exponent bits (bias 15) and
// 10 fraction bits.
type Bits uint16

// Size is the encoded width of one value in bytes.
const Size = 2

const (
	signBit  Bits = 0x8000
	infBits  Bits = 0x7c00
	fracBits Bits = 0x03ff
	quietNaN Bits = 0x0200

	maxExp = 0x1f
	bias   = 15
)

// ToFloat32 widens h to float32. The conversion is exact.
func ToFloat32(h Bits) float32 {
	sign := uint32(h&signBit) << 16
	exp := uint32(h>>10) & maxExp
	frac := uint32(h & fracBits)

	switch exp {
	case 0:
		// Subnormals and zero are frac units of 2^-24.
		v := float32(frac) * 0x1p-24
		return math.Float32frombits(sign | math.Float32bits(v))
	case maxExp:
		return math.Float32frombits(sign | 0x7f800000 | frac<<13)
	default:
		return math.Float32frombits(sign | (exp+127-bias)<<23 | frac<<13)
	}
}

// FromFloat32 narrows f to binary16, rounding to nearest with ties to even.
// Values beyond the binary16 range become infinities; values below half the
// smallest subnormal become signed zero.
func FromFloat32(f float32) Bits {
	b := math.Float32bits(f)
	sign := Bits(b>>16) & signBit
	exp := int(b>>23) & 0xff
	mant := b & 0x7fffff

	switch exp {
	case 0xff:
		if mant == 0 {
			return sign | infBits
		}
		return sign | infBits | quietNaN | Bits(mant>>13)&fracBits
	case 0:
		return sign
	}

	e := exp - 127 + bias
	if e >= maxExp {
		return sign | infBits
	}

	mant |= 1 << 23
	if e <= 0 {
		shift := uint(14 - e)
		if shift > 24 {
			return sign
		}
		// A subnormal that rounds up to 0x400 lands on the smallest normal.
		return sign | Bits(roundShift(mant, shift))
	}

	// q keeps the implicit bit at 0x400, so a rounding carry bumps the
	// exponent and an overflowing carry yields infinity.
	q := roundShift(mant, 13)
	return sign | (Bits(e-1)<<10 + Bits(q))
}

func roundShift(m uint32, shift uint) uint32 {
	q := m >> shift
	rem := m & (1<<shift - 1)
	half := uint32(1) << (shift - 1)
	if rem > half || (rem == half && q&1 == 1) {
		q++
	}
	return q
}

// AppendLE appends the little-endian binary16 encoding of src to dst.
func AppendLE(dst []byte, src []float32) []byte {
	for _, v := range src {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(FromFloat32(v)))
	}
	return dst
}

// DecodeLE decodes len(src)/Size values from src into dst.
func DecodeLE(dst []float32, src []byte) {
	for i := range len(src) / Size {
		dst[i] = ToFloat32(Bits(binary.LittleEndian.Uint16(src[i*Size:])))
	}
}
