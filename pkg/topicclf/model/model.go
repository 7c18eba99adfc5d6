package model

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cognicore/topicclf/pkg/topicclf/features"
	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

// KindModel tags the model artifact.
const KindModel = "model"

// Model is a fitted classifier over one or more label columns. Each column
// gets its own estimator of the same family and params.
type Model struct {
	Family   string
	Params   Params
	Metric   string  // scoring metric used to select the model
	Score    float64 // held-out score under Metric
	InputDim int
	Seed     uint64
	Classes  [][]string // per column, sorted

	estimators []Estimator
}

// stateChecker lets a decoded estimator verify its shapes.
type stateChecker interface {
	checkState(inputDim, numClasses int) error
}

// Train fits family with params on X and the label tuples Y.
func Train(family string, p Params, seed uint64, X *features.Matrix, Y [][]string) (*Model, error) {
	if X.Len() == 0 {
		return nil, fmt.Errorf("%w: no training rows", internalerr.ErrInvalidInput)
	}
	if X.Len() != len(Y) {
		return nil, fmt.Errorf("%w: %d rows but %d label tuples", internalerr.ErrInvalidInput, X.Len(), len(Y))
	}
	width := len(Y[0])
	if width == 0 {
		return nil, fmt.Errorf("%w: label tuples are empty", internalerr.ErrInvalidInput)
	}

	m := &Model{
		Family:   family,
		Params:   p.Clone(),
		InputDim: X.Cols,
		Seed:     seed,
		Classes:  make([][]string, width),
	}
	for col := 0; col < width; col++ {
		classes, y, err := encodeColumn(Y, col, width)
		if err != nil {
			return nil, err
		}
		est, err := NewEstimator(family, p, seed+uint64(col))
		if err != nil {
			return nil, err
		}
		if err := est.Fit(X, y, len(classes)); err != nil {
			return nil, fmt.Errorf("fit %s column %d: %w", family, col, err)
		}
		m.Classes[col] = classes
		m.estimators = append(m.estimators, est)
	}
	return m, nil
}

func encodeColumn(Y [][]string, col, width int) ([]string, []int, error) {
	seen := make(map[string]struct{})
	for i, row := range Y {
		if len(row) != width {
			return nil, nil, fmt.Errorf("%w: label tuple %d has %d values, want %d",
				internalerr.ErrInvalidInput, i, len(row), width)
		}
		seen[row[col]] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	y := make([]int, len(Y))
	for i, row := range Y {
		y[i] = index[row[col]]
	}
	return classes, y, nil
}

// Width is the number of label columns.
func (m *Model) Width() int { return len(m.Classes) }

// Predict labels every row of X.
func (m *Model) Predict(X *features.Matrix) ([][]string, error) {
	if X.Cols != m.InputDim {
		return nil, fmt.Errorf("%w: input has %d columns, model expects %d",
			internalerr.ErrInvalidInput, X.Cols, m.InputDim)
	}
	out := make([][]string, X.Len())
	for i, row := range X.Rows {
		out[i] = m.PredictOne(row)
	}
	return out, nil
}

// PredictOne labels a single row.
func (m *Model) PredictOne(x features.Vector) []string {
	labels := make([]string, len(m.estimators))
	for col, est := range m.estimators {
		labels[col] = m.Classes[col][est.Predict(x)]
	}
	return labels
}

type modelState struct {
	Family     string            `json:"family"`
	Params     Params            `json:"params"`
	Metric     string            `json:"metric"`
	Score      float64           `json:"score"`
	InputDim   int               `json:"input_dim"`
	Seed       uint64            `json:"seed"`
	Classes    [][]string        `json:"classes"`
	Estimators []json.RawMessage `json:"estimators"`
}

func (m *Model) MarshalJSON() ([]byte, error) {
	st := modelState{
		Family:   m.Family,
		Params:   m.Params,
		Metric:   m.Metric,
		Score:    m.Score,
		InputDim: m.InputDim,
		Seed:     m.Seed,
		Classes:  m.Classes,
	}
	for col, est := range m.estimators {
		raw, err := json.Marshal(est)
		if err != nil {
			return nil, fmt.Errorf("encode estimator %d: %w", col, err)
		}
		st.Estimators = append(st.Estimators, raw)
	}
	return json.Marshal(st)
}

// UnmarshalJSON decodes a model, rebuilding estimators through the family
// registry.
func (m *Model) UnmarshalJSON(data []byte) error {
	var st modelState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if len(st.Classes) == 0 || len(st.Classes) != len(st.Estimators) {
		return fmt.Errorf("model has %d label columns but %d estimators", len(st.Classes), len(st.Estimators))
	}
	if st.InputDim <= 0 {
		return fmt.Errorf("model input dimension %d", st.InputDim)
	}

	ests := make([]Estimator, len(st.Estimators))
	for col, raw := range st.Estimators {
		if len(st.Classes[col]) == 0 {
			return fmt.Errorf("label column %d has no classes", col)
		}
		est, err := NewEstimator(st.Family, st.Params, st.Seed+uint64(col))
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, est); err != nil {
			return fmt.Errorf("decode estimator %d: %w", col, err)
		}
		if c, ok := est.(stateChecker); ok {
			if err := c.checkState(st.InputDim, len(st.Classes[col])); err != nil {
				return fmt.Errorf("estimator %d: %w", col, err)
			}
		}
		ests[col] = est
	}

	*m = Model{
		Family:     st.Family,
		Params:     st.Params,
		Metric:     st.Metric,
		Score:      st.Score,
		InputDim:   st.InputDim,
		Seed:       st.Seed,
		Classes:    st.Classes,
		estimators: ests,
	}
	return nil
}
