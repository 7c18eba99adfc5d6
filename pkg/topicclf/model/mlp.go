package model

import (
	"fmt"
	"math"

	"github.com/cognicore/topicclf/pkg/topicclf/features"
	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

func init() {
	Register("mlp", newMLP)
}

// MLP is a feed-forward network with softmax output, trained by
// minibatch adam or sgd with momentum.
type MLP struct {
	Hidden           []int   `json:"hidden_layer_sizes"`
	Activation       string  `json:"activation"`
	Solver           string  `json:"solver"`
	Alpha            float64 `json:"alpha"`
	BatchSize        int     `json:"batch_size"`
	LearningRate     string  `json:"learning_rate"`
	LearningRateInit float64 `json:"learning_rate_init"`
	PowerT           float64 `json:"power_t"`
	MaxIter          int     `json:"max_iter"`
	Tol              float64 `json:"tol"`
	Momentum         float64 `json:"momentum"`
	NoChangeIter     int     `json:"n_iter_no_change"`
	Seed             uint64  `json:"seed"`

	Layers     []Layer `json:"layers"`
	Iterations int     `json:"n_iter"`
	Loss       float64 `json:"loss"`
}

// Layer is a dense layer; W is row-major with one row per output unit.
type Layer struct {
	In  int       `json:"in"`
	Out int       `json:"out"`
	W   []float64 `json:"w"`
	B   []float64 `json:"b"`
}

func newMLP(p Params, seed uint64) (Estimator, error) {
	err := p.CheckKnown("hidden_layer_sizes", "activation", "solver", "alpha", "batch_size",
		"learning_rate", "learning_rate_init", "power_t", "max_iter", "tol", "momentum",
		"n_iter_no_change", "random_state")
	if err != nil {
		return nil, err
	}
	m := &MLP{Seed: seed}
	if m.Hidden, err = p.Ints("hidden_layer_sizes", []int{100}); err != nil {
		return nil, err
	}
	if m.Activation, err = p.Str("activation", "relu", "relu", "tanh", "logistic"); err != nil {
		return nil, err
	}
	if m.Solver, err = p.Str("solver", "adam", "adam", "sgd"); err != nil {
		return nil, err
	}
	if m.Alpha, err = p.Float("alpha", 1e-4); err != nil {
		return nil, err
	}
	if m.BatchSize, err = p.Int("batch_size", 0); err != nil {
		return nil, err
	}
	if m.LearningRate, err = p.Str("learning_rate", "constant", "constant", "invscaling", "adaptive"); err != nil {
		return nil, err
	}
	if m.LearningRateInit, err = p.Float("learning_rate_init", 0.001); err != nil {
		return nil, err
	}
	if m.PowerT, err = p.Float("power_t", 0.5); err != nil {
		return nil, err
	}
	if m.MaxIter, err = p.Int("max_iter", 200); err != nil {
		return nil, err
	}
	if m.Tol, err = p.Float("tol", 1e-4); err != nil {
		return nil, err
	}
	if m.Momentum, err = p.Float("momentum", 0.9); err != nil {
		return nil, err
	}
	if m.NoChangeIter, err = p.Int("n_iter_no_change", 10); err != nil {
		return nil, err
	}
	if rs, err := p.Int("random_state", -1); err != nil {
		return nil, err
	} else if rs >= 0 {
		m.Seed = uint64(rs)
	}

	if len(m.Hidden) == 0 {
		return nil, fmt.Errorf("%w: hidden_layer_sizes is empty", internalerr.ErrInvalidInput)
	}
	for _, h := range m.Hidden {
		if h <= 0 {
			return nil, fmt.Errorf("%w: hidden layer size must be positive, got %d", internalerr.ErrInvalidInput, h)
		}
	}
	switch {
	case m.Alpha < 0:
		return nil, fmt.Errorf("%w: alpha must not be negative", internalerr.ErrInvalidInput)
	case m.LearningRateInit <= 0:
		return nil, fmt.Errorf("%w: learning_rate_init must be positive", internalerr.ErrInvalidInput)
	case m.MaxIter <= 0:
		return nil, fmt.Errorf("%w: max_iter must be positive", internalerr.ErrInvalidInput)
	case m.BatchSize < 0:
		return nil, fmt.Errorf("%w: batch_size must not be negative", internalerr.ErrInvalidInput)
	case m.Momentum < 0 || m.Momentum >= 1:
		return nil, fmt.Errorf("%w: momentum must be in [0,1)", internalerr.ErrInvalidInput)
	case m.NoChangeIter <= 0:
		return nil, fmt.Errorf("%w: n_iter_no_change must be positive", internalerr.ErrInvalidInput)
	}
	return m, nil
}

// optimizer keeps per-parameter state for one flattened parameter slice.
type optimizer struct {
	solver   string
	momentum float64
	m, v     []float64 // adam moments, or sgd velocity in m
}

const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

func (o *optimizer) step(params, grads []float64, lr float64, t int) {
	if o.m == nil {
		o.m = make([]float64, len(params))
		if o.solver == "adam" {
			o.v = make([]float64, len(params))
		}
	}
	if o.solver == "sgd" {
		for i, g := range grads {
			o.m[i] = o.momentum*o.m[i] - lr*g
			params[i] += o.m[i]
		}
		return
	}
	lrT := lr * math.Sqrt(1-math.Pow(adamBeta2, float64(t))) / (1 - math.Pow(adamBeta1, float64(t)))
	for i, g := range grads {
		o.m[i] = adamBeta1*o.m[i] + (1-adamBeta1)*g
		o.v[i] = adamBeta2*o.v[i] + (1-adamBeta2)*g*g
		params[i] -= lrT * o.m[i] / (math.Sqrt(o.v[i]) + adamEps)
	}
}

func (m *MLP) initLayers(in, numClasses int) {
	rng := newRand(m.Seed)
	sizes := append([]int{in}, m.Hidden...)
	sizes = append(sizes, numClasses)
	factor := 6.0
	if m.Activation == "logistic" {
		factor = 2.0
	}
	m.Layers = make([]Layer, len(sizes)-1)
	for l := range m.Layers {
		fanIn, fanOut := sizes[l], sizes[l+1]
		bound := math.Sqrt(factor / float64(fanIn+fanOut))
		layer := Layer{In: fanIn, Out: fanOut, W: make([]float64, fanIn*fanOut), B: make([]float64, fanOut)}
		for i := range layer.W {
			layer.W[i] = (2*rng.Float64() - 1) * bound
		}
		for i := range layer.B {
			layer.B[i] = (2*rng.Float64() - 1) * bound
		}
		m.Layers[l] = layer
	}
}

func (m *MLP) activate(z []float64) {
	for i, v := range z {
		switch m.Activation {
		case "tanh":
			z[i] = math.Tanh(v)
		case "logistic":
			z[i] = 1 / (1 + math.Exp(-v))
		default:
			z[i] = math.Max(0, v)
		}
	}
}

// derivative multiplies delta by the activation derivative, given the
// activation output a.
func (m *MLP) derivative(delta, a []float64) {
	for i := range delta {
		switch m.Activation {
		case "tanh":
			delta[i] *= 1 - a[i]*a[i]
		case "logistic":
			delta[i] *= a[i] * (1 - a[i])
		default:
			if a[i] <= 0 {
				delta[i] = 0
			}
		}
	}
}

// forward fills acts[l] with the output of layer l; the last one holds
// class probabilities.
func (m *MLP) forward(x features.Vector, acts [][]float64) {
	first := m.Layers[0]
	out := acts[0]
	for o := 0; o < first.Out; o++ {
		z := first.B[o]
		row := first.W[o*first.In : (o+1)*first.In]
		for k, idx := range x.Indices {
			if idx < first.In {
				z += row[idx] * x.Values[k]
			}
		}
		out[o] = z
	}
	if len(m.Layers) > 1 {
		m.activate(out)
	}

	for l := 1; l < len(m.Layers); l++ {
		layer := m.Layers[l]
		in, out := acts[l-1], acts[l]
		for o := 0; o < layer.Out; o++ {
			z := layer.B[o]
			row := layer.W[o*layer.In : (o+1)*layer.In]
			for i, a := range in {
				z += row[i] * a
			}
			out[o] = z
		}
		if l < len(m.Layers)-1 {
			m.activate(out)
		}
	}
	softmax(acts[len(acts)-1])
}

func (m *MLP) allocActs() [][]float64 {
	acts := make([][]float64, len(m.Layers))
	for l, layer := range m.Layers {
		acts[l] = make([]float64, layer.Out)
	}
	return acts
}

func (m *MLP) Fit(X *features.Matrix, y []int, numClasses int) error {
	n := len(X.Rows)
	m.initLayers(X.Cols, numClasses)
	rng := newRand(m.Seed + 1)

	batch := m.BatchSize
	if batch == 0 {
		batch = min(200, n)
	}
	batch = min(max(batch, 1), n)

	gradW := make([][]float64, len(m.Layers))
	gradB := make([][]float64, len(m.Layers))
	optW := make([]*optimizer, len(m.Layers))
	optB := make([]*optimizer, len(m.Layers))
	for l, layer := range m.Layers {
		gradW[l] = make([]float64, len(layer.W))
		gradB[l] = make([]float64, len(layer.B))
		optW[l] = &optimizer{solver: m.Solver, momentum: m.Momentum}
		optB[l] = &optimizer{solver: m.Solver, momentum: m.Momentum}
	}
	acts := m.allocActs()
	deltas := m.allocActs()

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	lr := m.LearningRateInit
	bestLoss := math.Inf(1)
	noImprove := 0
	step := 0
	seen := 0

	for epoch := 0; epoch < m.MaxIter; epoch++ {
		rng.Shuffle(n, func(a, b int) { order[a], order[b] = order[b], order[a] })
		var epochLoss float64

		for start := 0; start < n; start += batch {
			end := min(start+batch, n)
			for l := range gradW {
				clear(gradW[l])
				clear(gradB[l])
			}
			for _, i := range order[start:end] {
				epochLoss += m.backprop(X.Rows[i], y[i], acts, deltas, gradW, gradB)
			}

			size := float64(end - start)
			var penalty float64
			for l, layer := range m.Layers {
				for j := range gradW[l] {
					gradW[l][j] = gradW[l][j]/size + m.Alpha*layer.W[j]/size
					penalty += layer.W[j] * layer.W[j]
				}
				for j := range gradB[l] {
					gradB[l][j] /= size
				}
			}
			// epochLoss sums per-sample losses, i.e. the batch mean times
			// size, so the per-batch term alpha/2*||W||²/size enters unscaled
			epochLoss += 0.5 * m.Alpha * penalty

			step++
			seen += end - start
			rate := lr
			if m.Solver == "sgd" && m.LearningRate == "invscaling" {
				rate = m.LearningRateInit / math.Pow(float64(seen), m.PowerT)
			}
			for l := range m.Layers {
				optW[l].step(m.Layers[l].W, gradW[l], rate, step)
				optB[l].step(m.Layers[l].B, gradB[l], rate, step)
			}
		}

		loss := epochLoss / float64(n)
		m.Iterations = epoch + 1
		m.Loss = loss
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return fmt.Errorf("mlp: %w: loss diverged at epoch %d", internalerr.ErrNotConverged, epoch+1)
		}

		if loss > bestLoss-m.Tol {
			noImprove++
		} else {
			noImprove = 0
		}
		bestLoss = math.Min(bestLoss, loss)

		if noImprove > m.NoChangeIter {
			if m.Solver == "sgd" && m.LearningRate == "adaptive" && lr > 1e-6 {
				lr /= 5
				noImprove = 0
				continue
			}
			break
		}
	}
	return nil
}

// backprop accumulates the gradient of one sample and returns its
// cross-entropy loss.
func (m *MLP) backprop(x features.Vector, label int, acts, deltas, gradW, gradB [][]float64) float64 {
	m.forward(x, acts)
	last := len(m.Layers) - 1
	probs := acts[last]
	loss := -math.Log(math.Max(probs[label], 1e-12))

	copy(deltas[last], probs)
	deltas[last][label]--

	for l := last; l >= 0; l-- {
		layer := m.Layers[l]
		delta := deltas[l]
		gw, gb := gradW[l], gradB[l]
		for o := 0; o < layer.Out; o++ {
			d := delta[o]
			gb[o] += d
			if d == 0 {
				continue
			}
			row := gw[o*layer.In : (o+1)*layer.In]
			if l == 0 {
				for k, idx := range x.Indices {
					if idx < layer.In {
						row[idx] += d * x.Values[k]
					}
				}
				continue
			}
			for i, a := range acts[l-1] {
				row[i] += d * a
			}
		}
		if l == 0 {
			break
		}
		prev := deltas[l-1]
		clear(prev)
		for o := 0; o < layer.Out; o++ {
			d := delta[o]
			if d == 0 {
				continue
			}
			row := layer.W[o*layer.In : (o+1)*layer.In]
			for i := range prev {
				prev[i] += row[i] * d
			}
		}
		m.derivative(prev, acts[l-1])
	}
	return loss
}

func (m *MLP) Predict(x features.Vector) int {
	acts := m.allocActs()
	m.forward(x, acts)
	probs := acts[len(acts)-1]
	best := 0
	for k := 1; k < len(probs); k++ {
		if probs[k] > probs[best] {
			best = k
		}
	}
	return best
}

func (m *MLP) checkState(inputDim, numClasses int) error {
	if len(m.Layers) != len(m.Hidden)+1 {
		return fmt.Errorf("mlp: %d layers for %d hidden sizes", len(m.Layers), len(m.Hidden))
	}
	in := inputDim
	for l, layer := range m.Layers {
		out := numClasses
		if l < len(m.Hidden) {
			out = m.Hidden[l]
		}
		if layer.In != in || layer.Out != out || len(layer.W) != in*out || len(layer.B) != out {
			return fmt.Errorf("mlp: layer %d has shape %dx%d, want %dx%d", l, layer.Out, layer.In, out, in)
		}
		in = out
	}
	return nil
}
