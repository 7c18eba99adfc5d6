package model

import (
	"fmt"
	"math"

	"github.com/cognicore/topicclf/pkg/topicclf/features"
)

func init() {
	Register("nearest_centroid", newNearestCentroid)
}

// NearestCentroid assigns the class whose mean training row is closest.
type NearestCentroid struct {
	Metric    string      `json:"metric"`
	Centroids [][]float64 `json:"centroids"`
}

func newNearestCentroid(p Params, _ uint64) (Estimator, error) {
	if err := p.CheckKnown("metric"); err != nil {
		return nil, err
	}
	metric, err := p.Str("metric", "euclidean", "euclidean", "cosine")
	if err != nil {
		return nil, err
	}
	return &NearestCentroid{Metric: metric}, nil
}

func (m *NearestCentroid) Fit(X *features.Matrix, y []int, numClasses int) error {
	m.Centroids = make([][]float64, numClasses)
	counts := make([]float64, numClasses)
	for c := range m.Centroids {
		m.Centroids[c] = make([]float64, X.Cols)
	}
	for i, row := range X.Rows {
		row.AddTo(m.Centroids[y[i]], 1)
		counts[y[i]]++
	}
	for c, centroid := range m.Centroids {
		if counts[c] == 0 {
			continue
		}
		for j := range centroid {
			centroid[j] /= counts[c]
		}
	}
	return nil
}

func (m *NearestCentroid) Predict(x features.Vector) int {
	best, bestDist := 0, math.Inf(1)
	xNorm := x.Norm()
	for c, centroid := range m.Centroids {
		var d float64
		if m.Metric == "cosine" {
			cn := denseNorm(centroid)
			if xNorm == 0 || cn == 0 {
				d = 1
			} else {
				d = 1 - x.DotDense(centroid)/(xNorm*cn)
			}
		} else {
			// |x-c|² = |x|² - 2x·c + |c|²
			cn := denseNorm(centroid)
			d = xNorm*xNorm - 2*x.DotDense(centroid) + cn*cn
		}
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func (m *NearestCentroid) checkState(inputDim, numClasses int) error {
	if len(m.Centroids) != numClasses {
		return fmt.Errorf("nearest_centroid: %d centroids for %d classes", len(m.Centroids), numClasses)
	}
	for c, row := range m.Centroids {
		if len(row) != inputDim {
			return fmt.Errorf("nearest_centroid: centroid %d has %d values, want %d", c, len(row), inputDim)
		}
	}
	return nil
}

func denseNorm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
