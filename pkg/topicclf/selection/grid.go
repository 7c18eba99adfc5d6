// Package selection runs the two-stage hyperparameter search: per-family
// cross-validated grid search on training data, then a held-out comparison
// of the family winners.
package selection

import (
	"fmt"
	"sort"

	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
	"github.com/cognicore/topicclf/pkg/topicclf/model"
)

// FamilySpec is one entry of the model configuration: a family, the grid of
// candidate values per parameter and fixed options merged into every point.
type FamilySpec struct {
	Family  string           `yaml:"family" json:"family"`
	Grid    map[string][]any `yaml:"params" json:"params"`
	Options model.Params     `yaml:"options" json:"options"`
}

// Expand enumerates the grid. Parameter names are taken in sorted order and
// values in listed order, the last name varying fastest. An empty grid is a
// single configuration made of the options alone.
func (s FamilySpec) Expand() ([]model.Params, error) {
	names := make([]string, 0, len(s.Grid))
	for name, values := range s.Grid {
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: parameter %s has no candidate values", internalerr.ErrInvalidConfig, name)
		}
		if _, fixed := s.Options[name]; fixed {
			return nil, fmt.Errorf("%w: parameter %s is both searched and fixed", internalerr.ErrInvalidConfig, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := []model.Params{s.Options.Clone()}
	for _, name := range names {
		next := make([]model.Params, 0, len(out)*len(s.Grid[name]))
		for _, base := range out {
			for _, v := range s.Grid[name] {
				p := base.Clone()
				p[name] = v
				next = append(next, p)
			}
		}
		out = next
	}
	return out, nil
}

// Size is the number of configurations Expand yields.
func (s FamilySpec) Size() int {
	n := 1
	for _, values := range s.Grid {
		n *= len(values)
	}
	return n
}
