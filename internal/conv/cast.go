package conv

import (
	"fmt"
	"math"
)

// Int64ToInt converts int64 to int safely.
func Int64ToInt(v int64) (int, error) {
	if v > math.MaxInt || v < math.MinInt {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to int", v)
	}
	return int(v), nil
}

// MulInt64 multiplies two non-negative int64 values, failing on overflow.
func MulInt64(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("integer overflow: negative operand in %d * %d", a, b)
	}
	if a != 0 && b > math.MaxInt64/a {
		return 0, fmt.Errorf("integer overflow: %d * %d exceeds int64", a, b)
	}
	return a * b, nil
}

// ShapeBytes returns the byte size of an array with the given dimensions and
// element size, failing on negative dimensions or overflow.
func ShapeBytes(shape []int64, elemSize int) (int64, error) {
	n := int64(elemSize)
	for _, d := range shape {
		var err error
		if n, err = MulInt64(n, d); err != nil {
			return 0, err
		}
	}
	return n, nil
}
