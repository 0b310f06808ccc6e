package npy

import (
	"encoding/binary"
	"math"
)

// AppendFloat32 appends the little-endian encoding of src to dst.
func AppendFloat32(dst []byte, src []float32) []byte {
	for _, v := range src {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// AppendInt64 appends the little-endian encoding of src to dst.
func AppendInt64(dst []byte, src []int64) []byte {
	for _, v := range src {
		dst = binary.LittleEndian.AppendUint64(dst, uint64(v))
	}
	return dst
}

// DecodeFloat32 decodes little-endian float32 values from src into dst.
func DecodeFloat32(dst []float32, src []byte) {
	for i := 0; i+3 < len(src); i += 4 {
		dst[i/4] = math.Float32frombits(binary.LittleEndian.Uint32(src[i:]))
	}
}

// DecodeInt64 decodes little-endian int64 values from src into dst.
func DecodeInt64(dst []int64, src []byte) {
	for i := 0; i+7 < len(src); i += 8 {
		dst[i/8] = int64(binary.LittleEndian.Uint64(src[i:]))
	}
}
