// Package features turns normalized text into TF-IDF matrices.
package features

import "math"

// Vector is a sparse row. Indices are strictly increasing.
type Vector struct {
	Indices []int     `json:"i"`
	Values  []float64 `json:"v"`
}

// Len is the number of stored entries.
func (v Vector) Len() int { return len(v.Indices) }

// Dot computes the inner product of two sparse vectors.
func (v Vector) Dot(w Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(w.Indices) {
		switch {
		case v.Indices[i] == w.Indices[j]:
			sum += v.Values[i] * w.Values[j]
			i++
			j++
		case v.Indices[i] < w.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// DotDense computes the inner product with a dense weight vector.
func (v Vector) DotDense(w []float64) float64 {
	var sum float64
	for k, idx := range v.Indices {
		if idx < len(w) {
			sum += v.Values[k] * w[idx]
		}
	}
	return sum
}

// AddTo adds scale*v into dst.
func (v Vector) AddTo(dst []float64, scale float64) {
	for k, idx := range v.Indices {
		if idx < len(dst) {
			dst[idx] += scale * v.Values[k]
		}
	}
}

// Norm is the Euclidean length.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// SquaredDistance is |v-w|² without materializing either vector.
func (v Vector) SquaredDistance(w Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) || j < len(w.Indices) {
		switch {
		case j >= len(w.Indices) || (i < len(v.Indices) && v.Indices[i] < w.Indices[j]):
			sum += v.Values[i] * v.Values[i]
			i++
		case i >= len(v.Indices) || w.Indices[j] < v.Indices[i]:
			sum += w.Values[j] * w.Values[j]
			j++
		default:
			d := v.Values[i] - w.Values[j]
			sum += d * d
			i++
			j++
		}
	}
	return sum
}

// Dense expands the vector to cols entries.
func (v Vector) Dense(cols int) []float64 {
	out := make([]float64, cols)
	v.AddTo(out, 1)
	return out
}

// Matrix is a list of sparse rows over a fixed column count.
type Matrix struct {
	Rows []Vector
	Cols int
}

// Len is the number of rows.
func (m *Matrix) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Rows)
}

// Subset returns the rows at idx, sharing row storage.
func (m *Matrix) Subset(idx []int) *Matrix {
	out := &Matrix{Rows: make([]Vector, len(idx)), Cols: m.Cols}
	for i, j := range idx {
		out.Rows[i] = m.Rows[j]
	}
	return out
}

// NonZero counts stored entries across all rows.
func (m *Matrix) NonZero() int {
	n := 0
	for _, r := range m.Rows {
		n += r.Len()
	}
	return n
}
