// Package scoring implements the classification metrics used to compare
// candidate models. Every metric is "higher is better" and lies in [0, 1].
package scoring

import (
	"fmt"
	"sort"

	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

// Metric scores predictions for a single label column.
type Metric func(yTrue, yPred []string) float64

var metrics = map[string]Metric{
	"accuracy":          Accuracy,
	"balanced_accuracy": BalancedAccuracy,
	"f1_macro":          F1Macro,
	"f1_weighted":       F1Weighted,
	"precision_macro":   PrecisionMacro,
	"recall_macro":      RecallMacro,
}

// Lookup returns the metric registered under name.
func Lookup(name string) (Metric, error) {
	m, ok := metrics[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown scoring metric %q", internalerr.ErrInvalidConfig, name)
	}
	return m, nil
}

// Names lists the registered metrics, sorted.
func Names() []string {
	out := make([]string, 0, len(metrics))
	for name := range metrics {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Score applies m to multi-output labels. Each row holds one value per
// output column; the result is the unweighted mean over columns.
func Score(m Metric, yTrue, yPred [][]string) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, fmt.Errorf("%w: %d true rows vs %d predicted", internalerr.ErrInvalidInput, len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return 0, fmt.Errorf("%w: nothing to score", internalerr.ErrInvalidInput)
	}
	width := len(yTrue[0])
	if width == 0 {
		return 0, fmt.Errorf("%w: rows have no labels", internalerr.ErrInvalidInput)
	}
	var total float64
	t := make([]string, len(yTrue))
	p := make([]string, len(yTrue))
	for col := 0; col < width; col++ {
		for i := range yTrue {
			if len(yTrue[i]) != width || len(yPred[i]) != width {
				return 0, fmt.Errorf("%w: row %d has ragged labels", internalerr.ErrInvalidInput, i)
			}
			t[i] = yTrue[i][col]
			p[i] = yPred[i][col]
		}
		total += m(t, p)
	}
	return total / float64(width), nil
}

// Accuracy is the fraction of exact matches.
func Accuracy(yTrue, yPred []string) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	hit := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue))
}

type classCounts struct {
	tp, fp, fn, support int
}

// confusion counts per class over the union of true and predicted labels.
func confusion(yTrue, yPred []string) (map[string]*classCounts, []string) {
	counts := make(map[string]*classCounts)
	get := func(c string) *classCounts {
		cc, ok := counts[c]
		if !ok {
			cc = &classCounts{}
			counts[c] = cc
		}
		return cc
	}
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		get(t).support++
		if t == p {
			get(t).tp++
			continue
		}
		get(t).fn++
		get(p).fp++
	}
	labels := make([]string, 0, len(counts))
	for c := range counts {
		labels = append(labels, c)
	}
	sort.Strings(labels)
	return counts, labels
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func f1(c *classCounts) float64 {
	p := ratio(c.tp, c.tp+c.fp)
	r := ratio(c.tp, c.tp+c.fn)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// BalancedAccuracy is the mean recall over classes present in yTrue.
func BalancedAccuracy(yTrue, yPred []string) float64 {
	counts, labels := confusion(yTrue, yPred)
	var sum float64
	n := 0
	for _, l := range labels {
		c := counts[l]
		if c.support == 0 {
			continue
		}
		sum += ratio(c.tp, c.support)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func macro(yTrue, yPred []string, per func(*classCounts) float64) float64 {
	counts, labels := confusion(yTrue, yPred)
	if len(labels) == 0 {
		return 0
	}
	var sum float64
	for _, l := range labels {
		sum += per(counts[l])
	}
	return sum / float64(len(labels))
}

// F1Macro averages per-class F1 over every class seen in either slice.
func F1Macro(yTrue, yPred []string) float64 {
	return macro(yTrue, yPred, f1)
}

// PrecisionMacro averages per-class precision.
func PrecisionMacro(yTrue, yPred []string) float64 {
	return macro(yTrue, yPred, func(c *classCounts) float64 { return ratio(c.tp, c.tp+c.fp) })
}

// RecallMacro averages per-class recall.
func RecallMacro(yTrue, yPred []string) float64 {
	return macro(yTrue, yPred, func(c *classCounts) float64 { return ratio(c.tp, c.tp+c.fn) })
}

// F1Weighted weights per-class F1 by true support.
func F1Weighted(yTrue, yPred []string) float64 {
	counts, labels := confusion(yTrue, yPred)
	var sum float64
	total := 0
	for _, l := range labels {
		c := counts[l]
		sum += f1(c) * float64(c.support)
		total += c.support
	}
	if total == 0 {
		return 0
	}
	return sum / float64(total)
}
