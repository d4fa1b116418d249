// Package vector holds the float32 vector math shared by embedding and ranking code.
// Accumulation happens in float64 to keep rounding stable across dimensions.
package vector

import "math"

// Dot returns the dot product of a and b. Vectors of different length yield 0.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v.
// A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	n := Norm(v)
	if n == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Empty vectors, length mismatch and zero norms all yield exactly 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	s := Dot(a, b) / (na * nb)
	// rounding can push |s| a hair past 1
	return math.Max(-1, math.Min(1, s))
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Accumulator sums weighted vectors of a fixed dimension.
type Accumulator struct {
	sum    []float64
	weight float64
}

// NewAccumulator creates an accumulator for vectors of the given dimension.
func NewAccumulator(dim int) *Accumulator {
	return &Accumulator{sum: make([]float64, dim)}
}

// Add adds w*v to the running sum. Vectors of the wrong dimension are ignored
// and reported as false.
func (a *Accumulator) Add(v []float32, w float64) bool {
	if len(v) != len(a.sum) {
		return false
	}
	for i, x := range v {
		a.sum[i] += w * float64(x)
	}
	a.weight += w
	return true
}

// Weight returns the total weight added so far.
func (a *Accumulator) Weight() float64 { return a.weight }

// Sum returns the raw weighted sum.
func (a *Accumulator) Sum() []float32 {
	out := make([]float32, len(a.sum))
	for i, x := range a.sum {
		out[i] = float32(x)
	}
	return out
}

// Mean returns sum/weight, or the raw sum when the total weight is 0.
func (a *Accumulator) Mean() []float32 {
	if a.weight == 0 {
		return a.Sum()
	}
	out := make([]float32, len(a.sum))
	for i, x := range a.sum {
		out[i] = float32(x / a.weight)
	}
	return out
}
