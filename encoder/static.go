package encoder

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// DefaultDimension is the embedding width used when none is configured.
const DefaultDimension = 384

// static is a virtual embedding table: row id is generated on demand.
type static struct {
	dim  int
	seed uint64
}

// vector returns the unit-length embedding of id.
func (s static) vector(id uint64) []float32 {
	rng := rand.New(rand.NewPCG(s.seed, id))
	v := make([]float64, s.dim)
	for i := range v {
		v[i] = rng.NormFloat64()
	}
	normalize(v)
	return toFloat32(v)
}

// pool returns the L2-normalised mean of rows, or a zero vector for no rows.
func (s static) pool(rows [][]float32) []float32 {
	sum := make([]float64, s.dim)
	if len(rows) == 0 {
		return toFloat32(sum)
	}
	tmp := make([]float64, s.dim)
	for _, r := range rows {
		for i, x := range r {
			tmp[i] = float64(x)
		}
		floats.Add(sum, tmp)
	}
	floats.Scale(1/float64(len(rows)), sum)
	normalize(sum)
	return toFloat32(sum)
}

func normalize(v []float64) {
	if n := floats.Norm(v, 2); n > 0 {
		floats.Scale(1/n, v)
	}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
