package model

import (
	"fmt"
	"math"

	"github.com/cognicore/topicclf/pkg/topicclf/features"
	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

func init() {
	Register("naive_bayes", newNaiveBayes)
}

// NaiveBayes is multinomial naive Bayes with additive smoothing. It expects
// non-negative features such as TF-IDF weights.
type NaiveBayes struct {
	Alpha    float64     `json:"alpha"`
	FitPrior bool        `json:"fit_prior"`
	LogPrior []float64   `json:"log_prior"`
	LogProb  [][]float64 `json:"log_prob"` // class -> feature
}

func newNaiveBayes(p Params, _ uint64) (Estimator, error) {
	if err := p.CheckKnown("alpha", "fit_prior"); err != nil {
		return nil, err
	}
	alpha, err := p.Float("alpha", 1.0)
	if err != nil {
		return nil, err
	}
	if alpha <= 0 {
		return nil, fmt.Errorf("%w: alpha must be positive, got %v", internalerr.ErrInvalidInput, alpha)
	}
	fitPrior, err := p.Bool("fit_prior", true)
	if err != nil {
		return nil, err
	}
	return &NaiveBayes{Alpha: alpha, FitPrior: fitPrior}, nil
}

func (m *NaiveBayes) Fit(X *features.Matrix, y []int, numClasses int) error {
	counts := make([][]float64, numClasses)
	for c := range counts {
		counts[c] = make([]float64, X.Cols)
	}
	classDocs := make([]float64, numClasses)
	for i, row := range X.Rows {
		for k, idx := range row.Indices {
			if row.Values[k] < 0 {
				return fmt.Errorf("%w: naive bayes needs non-negative features", internalerr.ErrInvalidInput)
			}
			counts[y[i]][idx] += row.Values[k]
		}
		classDocs[y[i]]++
	}

	m.LogPrior = make([]float64, numClasses)
	m.LogProb = make([][]float64, numClasses)
	n := float64(len(X.Rows))
	for c := 0; c < numClasses; c++ {
		if m.FitPrior {
			m.LogPrior[c] = math.Log(classDocs[c] / n)
		} else {
			m.LogPrior[c] = -math.Log(float64(numClasses))
		}
		var total float64
		for _, v := range counts[c] {
			total += v
		}
		denom := math.Log(total + m.Alpha*float64(X.Cols))
		m.LogProb[c] = make([]float64, X.Cols)
		for j, v := range counts[c] {
			m.LogProb[c][j] = math.Log(v+m.Alpha) - denom
		}
	}
	return nil
}

func (m *NaiveBayes) Predict(x features.Vector) int {
	best, bestScore := 0, math.Inf(-1)
	for c := range m.LogPrior {
		score := m.LogPrior[c] + x.DotDense(m.LogProb[c])
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

func (m *NaiveBayes) checkState(inputDim, numClasses int) error {
	if len(m.LogPrior) != numClasses || len(m.LogProb) != numClasses {
		return fmt.Errorf("naive_bayes: %d priors for %d classes", len(m.LogPrior), numClasses)
	}
	for c, row := range m.LogProb {
		if len(row) != inputDim {
			return fmt.Errorf("naive_bayes: class %d has %d weights, want %d", c, len(row), inputDim)
		}
	}
	return nil
}
