package model

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

// Params holds one hyperparameter configuration. Values come from YAML or
// JSON, so numbers may arrive as int or float64 and lists as []any.
type Params map[string]any

// Clone returns a shallow copy; nil stays nil-safe.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a copy of p with every entry of other applied on top.
func (p Params) Merge(other Params) Params {
	out := p.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Names returns the parameter names, sorted.
func (p Params) Names() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// String renders the parameters in name order, e.g. "metric=cosine n_neighbors=3".
func (p Params) String() string {
	names := p.Names()
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%v", k, p[k])
	}
	return strings.Join(parts, " ")
}

// CheckKnown rejects any parameter not in allowed.
func (p Params) CheckKnown(allowed ...string) error {
	ok := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		ok[a] = struct{}{}
	}
	for _, k := range p.Names() {
		if _, found := ok[k]; !found {
			return fmt.Errorf("%w: unknown parameter %q (allowed: %s)",
				internalerr.ErrInvalidInput, k, strings.Join(allowed, ", "))
		}
	}
	return nil
}

// Int reads an integer parameter.
func (p Params) Int(name string, def int) (int, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	n, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %s: %v", internalerr.ErrInvalidInput, name, err)
	}
	return n, nil
}

// Float reads a numeric parameter.
func (p Params) Float(name string, def float64) (float64, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %s: %v", internalerr.ErrInvalidInput, name, err)
	}
	return f, nil
}

// Str reads a string parameter and checks it against choices when given.
func (p Params) Str(name, def string, choices ...string) (string, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	s, isStr := v.(string)
	if !isStr {
		return "", fmt.Errorf("%w: parameter %s: want string, got %T", internalerr.ErrInvalidInput, name, v)
	}
	if len(choices) > 0 {
		for _, c := range choices {
			if s == c {
				return s, nil
			}
		}
		return "", fmt.Errorf("%w: parameter %s: %q not one of %s",
			internalerr.ErrInvalidInput, name, s, strings.Join(choices, ", "))
	}
	return s, nil
}

// Bool reads a boolean parameter.
func (p Params) Bool(name string, def bool) (bool, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err == nil {
			return parsed, nil
		}
	}
	return false, fmt.Errorf("%w: parameter %s: want bool, got %v", internalerr.ErrInvalidInput, name, v)
}

// Ints reads a parameter that is either one integer or a list of them, as
// hidden_layer_sizes: 100 or hidden_layer_sizes: [100, 50].
func (p Params) Ints(name string, def []int) ([]int, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return def, nil
	}
	var items []any
	switch list := v.(type) {
	case []any:
		items = list
	case []int:
		return append([]int(nil), list...), nil
	default:
		items = []any{v}
	}
	out := make([]int, len(items))
	for i, item := range items {
		n, err := toInt(item)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %s[%d]: %v", internalerr.ErrInvalidInput, name, i, err)
		}
		out[i] = n
	}
	return out, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("want integer, got %v", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	}
	return 0, fmt.Errorf("want integer, got %T", v)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("want number, got %T", v)
}
