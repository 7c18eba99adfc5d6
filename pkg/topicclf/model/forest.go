package model

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
	"strconv"

	"github.com/cognicore/topicclf/pkg/topicclf/features"
	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

func init() {
	Register("random_forest", newRandomForest)
}

// RandomForest is a bagged ensemble of CART trees with per-split feature
// sampling. Trees vote with their leaf class distributions.
type RandomForest struct {
	Trees           int     `json:"n_estimators"`
	MaxDepth        int     `json:"max_depth"` // 0 grows until leaves are pure
	MinSamplesSplit int     `json:"min_samples_split"`
	MinSamplesLeaf  int     `json:"min_samples_leaf"`
	MaxFeatures     string  `json:"max_features"` // sqrt, log2, all or a count
	Criterion       string  `json:"criterion"`
	Bootstrap       bool    `json:"bootstrap"`
	Seed            uint64  `json:"seed"`
	Classes         int     `json:"classes"`
	Forest          []*Tree `json:"trees"`
}

// Tree is a fitted decision tree in flat form. Feature is -1 at leaves.
type Tree struct {
	Feature   []int       `json:"feature"`
	Threshold []float64   `json:"threshold"`
	Left      []int       `json:"left"`
	Right     []int       `json:"right"`
	Proba     [][]float64 `json:"proba"` // leaves only
}

func newRandomForest(p Params, seed uint64) (Estimator, error) {
	if err := p.CheckKnown("n_estimators", "max_depth", "min_samples_split",
		"min_samples_leaf", "max_features", "criterion", "bootstrap"); err != nil {
		return nil, err
	}
	trees, err := p.Int("n_estimators", 100)
	if err != nil {
		return nil, err
	}
	if trees <= 0 {
		return nil, fmt.Errorf("%w: n_estimators must be positive, got %d", internalerr.ErrInvalidInput, trees)
	}
	depth, err := p.Int("max_depth", 0)
	if err != nil {
		return nil, err
	}
	if depth < 0 {
		return nil, fmt.Errorf("%w: max_depth must not be negative, got %d", internalerr.ErrInvalidInput, depth)
	}
	minSplit, err := p.Int("min_samples_split", 2)
	if err != nil {
		return nil, err
	}
	if minSplit < 2 {
		return nil, fmt.Errorf("%w: min_samples_split must be at least 2, got %d", internalerr.ErrInvalidInput, minSplit)
	}
	leaf, err := p.Int("min_samples_leaf", 1)
	if err != nil {
		return nil, err
	}
	if leaf < 1 {
		return nil, fmt.Errorf("%w: min_samples_leaf must be positive, got %d", internalerr.ErrInvalidInput, leaf)
	}
	maxFeatures, err := maxFeaturesParam(p)
	if err != nil {
		return nil, err
	}
	criterion, err := p.Str("criterion", "gini", "gini", "entropy")
	if err != nil {
		return nil, err
	}
	bootstrap, err := p.Bool("bootstrap", true)
	if err != nil {
		return nil, err
	}
	return &RandomForest{
		Trees:           trees,
		MaxDepth:        depth,
		MinSamplesSplit: minSplit,
		MinSamplesLeaf:  leaf,
		MaxFeatures:     maxFeatures,
		Criterion:       criterion,
		Bootstrap:       bootstrap,
		Seed:            seed,
	}, nil
}

// maxFeaturesParam accepts sqrt, log2, all or a positive count. An explicit
// null means all features, so grids like [null, sqrt, log2] carry over.
func maxFeaturesParam(p Params) (string, error) {
	v, ok := p["max_features"]
	if !ok {
		return "sqrt", nil
	}
	if v == nil {
		return "all", nil
	}
	if s, isStr := v.(string); isStr {
		switch s {
		case "sqrt", "log2", "all":
			return s, nil
		}
	}
	n, err := toInt(v)
	if err != nil || n <= 0 {
		return "", fmt.Errorf("%w: parameter max_features: want sqrt, log2, all or a positive count, got %v",
			internalerr.ErrInvalidInput, v)
	}
	return strconv.Itoa(n), nil
}

func (m *RandomForest) featuresPerSplit(cols int) int {
	var k int
	switch m.MaxFeatures {
	case "sqrt":
		k = int(math.Sqrt(float64(cols)))
	case "log2":
		k = int(math.Log2(float64(cols)))
	case "all":
		k = cols
	default:
		k, _ = strconv.Atoi(m.MaxFeatures)
	}
	return min(max(k, 1), cols)
}

func (m *RandomForest) Fit(X *features.Matrix, y []int, numClasses int) error {
	n := len(X.Rows)
	m.Classes = numClasses
	m.Forest = make([]*Tree, m.Trees)
	g := &treeGrower{
		X:          X,
		y:          y,
		classes:    numClasses,
		maxDepth:   m.MaxDepth,
		minSplit:   m.MinSamplesSplit,
		minLeaf:    m.MinSamplesLeaf,
		perSplit:   m.featuresPerSplit(X.Cols),
		impurityFn: gini,
	}
	if m.Criterion == "entropy" {
		g.impurityFn = entropy
	}

	for t := range m.Forest {
		g.rng = newRand(m.Seed + uint64(t) + 1)
		idx := make([]int, n)
		for i := range idx {
			if m.Bootstrap {
				idx[i] = g.rng.IntN(n)
			} else {
				idx[i] = i
			}
		}
		g.tree = &Tree{}
		g.grow(idx, 0)
		m.Forest[t] = g.tree
	}
	return nil
}

func (m *RandomForest) Predict(x features.Vector) int {
	votes := make([]float64, m.Classes)
	for _, t := range m.Forest {
		for c, p := range t.leaf(x) {
			votes[c] += p
		}
	}
	best := 0
	for c := range votes {
		if votes[c] > votes[best] {
			best = c
		}
	}
	return best
}

func (t *Tree) leaf(x features.Vector) []float64 {
	node := 0
	for t.Feature[node] >= 0 {
		if valueAt(x, t.Feature[node]) <= t.Threshold[node] {
			node = t.Left[node]
		} else {
			node = t.Right[node]
		}
	}
	return t.Proba[node]
}

func (m *RandomForest) checkState(inputDim, numClasses int) error {
	if m.Classes != numClasses {
		return fmt.Errorf("random_forest: %d classes, want %d", m.Classes, numClasses)
	}
	if len(m.Forest) == 0 {
		return fmt.Errorf("random_forest: no trees")
	}
	for i, t := range m.Forest {
		if err := t.check(inputDim, numClasses); err != nil {
			return fmt.Errorf("random_forest: tree %d: %w", i, err)
		}
	}
	return nil
}

func (t *Tree) check(inputDim, numClasses int) error {
	n := len(t.Feature)
	if n == 0 || len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n || len(t.Proba) != n {
		return fmt.Errorf("inconsistent node arrays")
	}
	for i, f := range t.Feature {
		if f < 0 {
			if len(t.Proba[i]) != numClasses {
				return fmt.Errorf("leaf %d has %d class weights, want %d", i, len(t.Proba[i]), numClasses)
			}
			continue
		}
		if f >= inputDim {
			return fmt.Errorf("node %d splits on feature %d of %d", i, f, inputDim)
		}
		// children always come after their parent
		if t.Left[i] <= i || t.Left[i] >= n || t.Right[i] <= i || t.Right[i] >= n {
			return fmt.Errorf("node %d has bad children", i)
		}
	}
	return nil
}

// valueAt reads column col of a sparse row with sorted indices.
func valueAt(x features.Vector, col int) float64 {
	k := sort.SearchInts(x.Indices, col)
	if k < len(x.Indices) && x.Indices[k] == col {
		return x.Values[k]
	}
	return 0
}

type treeGrower struct {
	X          *features.Matrix
	y          []int
	classes    int
	maxDepth   int
	minSplit   int
	minLeaf    int
	perSplit   int
	impurityFn func(counts []float64, n float64) float64
	rng        *rand.Rand
	tree       *Tree
}

type split struct {
	feature   int
	threshold float64
	left      []int
	right     []int
}

// grow appends the subtree for idx and returns its node index.
func (g *treeGrower) grow(idx []int, depth int) int {
	counts := make([]float64, g.classes)
	for _, i := range idx {
		counts[g.y[i]]++
	}
	node := len(g.tree.Feature)
	g.tree.Feature = append(g.tree.Feature, -1)
	g.tree.Threshold = append(g.tree.Threshold, 0)
	g.tree.Left = append(g.tree.Left, -1)
	g.tree.Right = append(g.tree.Right, -1)
	g.tree.Proba = append(g.tree.Proba, nil)

	n := float64(len(idx))
	impurity := g.impurityFn(counts, n)
	stop := impurity == 0 || len(idx) < g.minSplit || len(idx) < 2*g.minLeaf ||
		(g.maxDepth > 0 && depth >= g.maxDepth)

	var s *split
	if !stop {
		s = g.bestSplit(idx, impurity)
	}
	if s == nil {
		proba := make([]float64, g.classes)
		for c := range counts {
			proba[c] = counts[c] / n
		}
		g.tree.Proba[node] = proba
		return node
	}

	g.tree.Feature[node] = s.feature
	g.tree.Threshold[node] = s.threshold
	left := g.grow(s.left, depth+1)
	right := g.grow(s.right, depth+1)
	g.tree.Left[node] = left
	g.tree.Right[node] = right
	return node
}

// bestSplit samples features present at the node until perSplit of them
// were non-constant and returns the split with the lowest weighted child
// impurity, or nil when no split improves on the node.
func (g *treeGrower) bestSplit(idx []int, parent float64) *split {
	present := make(map[int]struct{})
	for _, i := range idx {
		for _, c := range g.X.Rows[i].Indices {
			present[c] = struct{}{}
		}
	}
	candidates := make([]int, 0, len(present))
	for c := range present {
		candidates = append(candidates, c)
	}
	slices.Sort(candidates)
	g.rng.Shuffle(len(candidates), func(a, b int) { candidates[a], candidates[b] = candidates[b], candidates[a] })

	n := float64(len(idx))
	bestScore := parent
	bestFeature, bestThreshold := -1, 0.0

	vals := make([]float64, len(idx))
	order := make([]int, len(idx))
	left := make([]float64, g.classes)
	right := make([]float64, g.classes)
	tried := 0
	for _, f := range candidates {
		if tried == g.perSplit {
			break
		}
		for k, i := range idx {
			vals[k] = valueAt(g.X.Rows[i], f)
			order[k] = k
		}
		sort.SliceStable(order, func(a, b int) bool { return vals[order[a]] < vals[order[b]] })
		if vals[order[0]] == vals[order[len(order)-1]] {
			continue
		}
		tried++

		clear(left)
		clear(right)
		for _, i := range idx {
			right[g.y[i]]++
		}
		for k := 0; k < len(order)-1; k++ {
			c := g.y[idx[order[k]]]
			left[c]++
			right[c]--
			lo, hi := vals[order[k]], vals[order[k+1]]
			nl := float64(k + 1)
			if lo == hi || k+1 < g.minLeaf || len(order)-k-1 < g.minLeaf {
				continue
			}
			nr := n - nl
			score := (nl*g.impurityFn(left, nl) + nr*g.impurityFn(right, nr)) / n
			if score < bestScore {
				bestScore = score
				bestFeature, bestThreshold = f, (lo+hi)/2
			}
		}
	}
	if bestFeature < 0 {
		return nil
	}

	s := &split{feature: bestFeature, threshold: bestThreshold}
	for _, i := range idx {
		if valueAt(g.X.Rows[i], bestFeature) <= bestThreshold {
			s.left = append(s.left, i)
		} else {
			s.right = append(s.right, i)
		}
	}
	return s
}

func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / n
		sum += p * p
	}
	return 1 - sum
}

func entropy(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c > 0 {
			p := c / n
			h -= p * math.Log2(p)
		}
	}
	return h
}
