// Package model holds the classifier families searched during selection and
// the multi-output Model that wraps them for training, prediction and
// persistence.
package model

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/cognicore/topicclf/pkg/topicclf/features"
	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

// Estimator is a single-output classifier over class indices 0..k-1.
// Estimators are persisted with encoding/json, so their state lives in
// exported fields.
type Estimator interface {
	Fit(X *features.Matrix, y []int, numClasses int) error
	Predict(x features.Vector) int
}

// Builder validates params and returns an unfitted estimator. seed makes
// any randomness in fitting reproducible.
type Builder func(p Params, seed uint64) (Estimator, error)

var (
	builders   = make(map[string]Builder)
	buildersMu sync.RWMutex
)

// Register makes a family available to configuration by name.
func Register(family string, b Builder) {
	if family == "" || b == nil {
		return
	}
	buildersMu.Lock()
	defer buildersMu.Unlock()
	builders[family] = b
}

// Lookup returns the builder registered for family.
func Lookup(family string) (Builder, error) {
	buildersMu.RLock()
	b, ok := builders[family]
	buildersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown model family %q (supported: %v)",
			internalerr.ErrInvalidConfig, family, Families())
	}
	return b, nil
}

// Families lists the registered family names, sorted.
func Families() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	out := make([]string, 0, len(builders))
	for name := range builders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NewEstimator builds an unfitted estimator of family.
func NewEstimator(family string, p Params, seed uint64) (Estimator, error) {
	b, err := Lookup(family)
	if err != nil {
		return nil, err
	}
	return b(p, seed)
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
