package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/cognicore/topicclf/pkg/topicclf/features"
	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

func init() {
	Register("knn", newKNN)
}

// KNN is a brute-force k-nearest-neighbours classifier.
type KNN struct {
	Neighbors int               `json:"n_neighbors"`
	Weights   string            `json:"weights"`
	Metric    string            `json:"metric"`
	Rows      []features.Vector `json:"rows"`
	Norms     []float64         `json:"norms"`
	Labels    []int             `json:"labels"`
	Classes   int               `json:"classes"`
}

func newKNN(p Params, _ uint64) (Estimator, error) {
	if err := p.CheckKnown("n_neighbors", "weights", "metric", "algorithm"); err != nil {
		return nil, err
	}
	k, err := p.Int("n_neighbors", 5)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: n_neighbors must be positive, got %d", internalerr.ErrInvalidInput, k)
	}
	weights, err := p.Str("weights", "uniform", "uniform", "distance")
	if err != nil {
		return nil, err
	}
	metric, err := p.Str("metric", "euclidean", "euclidean", "cosine")
	if err != nil {
		return nil, err
	}
	// only brute force is implemented; the name is accepted for config compatibility
	if _, err := p.Str("algorithm", "brute", "brute", "auto"); err != nil {
		return nil, err
	}
	return &KNN{Neighbors: k, Weights: weights, Metric: metric}, nil
}

func (m *KNN) Fit(X *features.Matrix, y []int, numClasses int) error {
	m.Rows = append([]features.Vector(nil), X.Rows...)
	m.Norms = make([]float64, len(X.Rows))
	for i, r := range X.Rows {
		m.Norms[i] = r.Norm()
	}
	m.Labels = append([]int(nil), y...)
	m.Classes = numClasses
	return nil
}

func (m *KNN) distance(x features.Vector, xNorm float64, i int) float64 {
	if m.Metric == "cosine" {
		if xNorm == 0 || m.Norms[i] == 0 {
			return 1
		}
		return 1 - x.Dot(m.Rows[i])/(xNorm*m.Norms[i])
	}
	return math.Sqrt(x.SquaredDistance(m.Rows[i]))
}

// Predict votes among the k nearest training rows. k is capped at the
// number of training rows; distance ties keep training order and vote ties
// go to the lowest class index.
func (m *KNN) Predict(x features.Vector) int {
	n := len(m.Rows)
	if n == 0 {
		return 0
	}
	xNorm := x.Norm()
	order := make([]int, n)
	dist := make([]float64, n)
	for i := range order {
		order[i] = i
		dist[i] = m.distance(x, xNorm, i)
	}
	sort.SliceStable(order, func(a, b int) bool { return dist[order[a]] < dist[order[b]] })

	k := min(m.Neighbors, n)
	votes := make([]float64, m.Classes)
	if m.Weights == "distance" {
		exact := false
		for _, i := range order[:k] {
			if dist[i] == 0 {
				votes[m.Labels[i]]++
				exact = true
			}
		}
		if !exact {
			for _, i := range order[:k] {
				votes[m.Labels[i]] += 1 / dist[i]
			}
		}
	} else {
		for _, i := range order[:k] {
			votes[m.Labels[i]]++
		}
	}

	best := 0
	for c := 1; c < len(votes); c++ {
		if votes[c] > votes[best] {
			best = c
		}
	}
	return best
}

func (m *KNN) checkState(inputDim, numClasses int) error {
	if len(m.Rows) == 0 || len(m.Rows) != len(m.Labels) || len(m.Rows) != len(m.Norms) {
		return fmt.Errorf("knn: %d rows, %d labels, %d norms", len(m.Rows), len(m.Labels), len(m.Norms))
	}
	if m.Classes != numClasses {
		return fmt.Errorf("knn: %d classes, want %d", m.Classes, numClasses)
	}
	for i, r := range m.Rows {
		if len(r.Indices) != len(r.Values) {
			return fmt.Errorf("knn: row %d malformed", i)
		}
		if len(r.Indices) > 0 && r.Indices[len(r.Indices)-1] >= inputDim {
			return fmt.Errorf("knn: row %d exceeds input dimension %d", i, inputDim)
		}
		if m.Labels[i] < 0 || m.Labels[i] >= numClasses {
			return fmt.Errorf("knn: label %d out of range", m.Labels[i])
		}
	}
	return nil
}
