package model

import (
	"fmt"
	"math"

	"github.com/cognicore/topicclf/pkg/topicclf/features"
	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

func init() {
	Register("logistic_regression", newLogisticRegression)
}

// LogisticRegression is multinomial (softmax) logistic regression with an L2
// penalty, fitted by full-batch gradient descent.
type LogisticRegression struct {
	C            float64     `json:"C"`
	MaxIter      int         `json:"max_iter"`
	Tol          float64     `json:"tol"`
	LearningRate float64     `json:"learning_rate"`
	Weights      [][]float64 `json:"weights"` // class -> feature
	Bias         []float64   `json:"bias"`
	Iterations   int         `json:"n_iter"`
}

func newLogisticRegression(p Params, _ uint64) (Estimator, error) {
	if err := p.CheckKnown("C", "max_iter", "tol", "learning_rate"); err != nil {
		return nil, err
	}
	c, err := p.Float("C", 1.0)
	if err != nil {
		return nil, err
	}
	maxIter, err := p.Int("max_iter", 200)
	if err != nil {
		return nil, err
	}
	tol, err := p.Float("tol", 1e-4)
	if err != nil {
		return nil, err
	}
	lr, err := p.Float("learning_rate", 1.0)
	if err != nil {
		return nil, err
	}
	switch {
	case c <= 0:
		return nil, fmt.Errorf("%w: C must be positive, got %v", internalerr.ErrInvalidInput, c)
	case maxIter <= 0:
		return nil, fmt.Errorf("%w: max_iter must be positive, got %d", internalerr.ErrInvalidInput, maxIter)
	case tol < 0:
		return nil, fmt.Errorf("%w: tol must not be negative, got %v", internalerr.ErrInvalidInput, tol)
	case lr <= 0:
		return nil, fmt.Errorf("%w: learning_rate must be positive, got %v", internalerr.ErrInvalidInput, lr)
	}
	return &LogisticRegression{C: c, MaxIter: maxIter, Tol: tol, LearningRate: lr}, nil
}

func (m *LogisticRegression) Fit(X *features.Matrix, y []int, numClasses int) error {
	n := float64(len(X.Rows))
	m.Weights = make([][]float64, numClasses)
	gradW := make([][]float64, numClasses)
	for k := range m.Weights {
		m.Weights[k] = make([]float64, X.Cols)
		gradW[k] = make([]float64, X.Cols)
	}
	m.Bias = make([]float64, numClasses)
	gradB := make([]float64, numClasses)
	probs := make([]float64, numClasses)
	reg := 1 / (m.C * n)

	for it := 0; it < m.MaxIter; it++ {
		for k := range gradW {
			clear(gradW[k])
		}
		clear(gradB)

		for i, row := range X.Rows {
			m.probabilities(row, probs)
			for k := range probs {
				g := probs[k]
				if k == y[i] {
					g--
				}
				gradB[k] += g
				row.AddTo(gradW[k], g)
			}
		}

		maxGrad := 0.0
		for k := range gradW {
			gradB[k] /= n
			maxGrad = math.Max(maxGrad, math.Abs(gradB[k]))
			m.Bias[k] -= m.LearningRate * gradB[k]
			for j := range gradW[k] {
				g := gradW[k][j]/n + reg*m.Weights[k][j]
				maxGrad = math.Max(maxGrad, math.Abs(g))
				m.Weights[k][j] -= m.LearningRate * g
			}
		}
		m.Iterations = it + 1

		if math.IsNaN(maxGrad) || math.IsInf(maxGrad, 0) {
			return fmt.Errorf("logistic_regression: %w: gradient diverged at iteration %d", internalerr.ErrNotConverged, it+1)
		}
		if maxGrad < m.Tol {
			break
		}
	}
	for k := range m.Weights {
		for _, w := range m.Weights[k] {
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return fmt.Errorf("logistic_regression: %w: weights diverged", internalerr.ErrNotConverged)
			}
		}
	}
	return nil
}

func (m *LogisticRegression) probabilities(x features.Vector, out []float64) {
	for k := range out {
		out[k] = m.Bias[k] + x.DotDense(m.Weights[k])
	}
	softmax(out)
}

func (m *LogisticRegression) Predict(x features.Vector) int {
	best, bestScore := 0, math.Inf(-1)
	for k := range m.Weights {
		s := m.Bias[k] + x.DotDense(m.Weights[k])
		if s > bestScore {
			best, bestScore = k, s
		}
	}
	return best
}

func (m *LogisticRegression) checkState(inputDim, numClasses int) error {
	if len(m.Weights) != numClasses || len(m.Bias) != numClasses {
		return fmt.Errorf("logistic_regression: %d weight rows for %d classes", len(m.Weights), numClasses)
	}
	for k, row := range m.Weights {
		if len(row) != inputDim {
			return fmt.Errorf("logistic_regression: class %d has %d weights, want %d", k, len(row), inputDim)
		}
	}
	return nil
}

// softmax normalizes logits in place.
func softmax(z []float64) {
	if len(z) == 0 {
		return
	}
	maxZ := z[0]
	for _, v := range z[1:] {
		maxZ = math.Max(maxZ, v)
	}
	var sum float64
	for i, v := range z {
		z[i] = math.Exp(v - maxZ)
		sum += z[i]
	}
	for i := range z {
		z[i] /= sum
	}
}
