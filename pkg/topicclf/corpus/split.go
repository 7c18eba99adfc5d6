package corpus

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

// Split partitions document indices into train and test. Both slices index
// the input corpus; together they cover every index exactly once.
type Split struct {
	Train      []int
	Test       []int
	Stratified bool
}

// NewRand returns the deterministic generator used for a seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// TestSize is ceil(n*fraction) clamped to [1, n-1].
func TestSize(n int, fraction float64) int {
	size := int(math.Ceil(float64(n)*fraction - 1e-9))
	if size < 1 {
		size = 1
	}
	if size > n-1 {
		size = n - 1
	}
	return size
}

// SplitIndices splits n = len(keys) documents, holding out TestSize(n,
// fraction) of them. keys are the label tuples; the split is stratified on
// them when every class has at least two members and both partitions can
// hold every class. The same keys, fraction and seed always give the same
// split.
func SplitIndices(keys []string, fraction float64, seed uint64) (Split, error) {
	n := len(keys)
	if n < 2 {
		return Split{}, &internalerr.DataInsufficientError{
			Stage:  "split",
			Reason: fmt.Sprintf("need at least 2 documents, have %d", n),
		}
	}
	if !(fraction > 0 && fraction < 1) {
		return Split{}, fmt.Errorf("%w: test fraction %v not in (0,1)", internalerr.ErrInvalidInput, fraction)
	}

	rng := NewRand(seed)
	testSize := TestSize(n, fraction)

	if classes := groupByKey(keys); canStratify(classes, n, testSize) {
		return stratifiedSplit(classes, n, testSize, rng), nil
	}

	perm := rng.Perm(n)
	return Split{
		Test:  append([]int(nil), perm[:testSize]...),
		Train: append([]int(nil), perm[testSize:]...),
	}, nil
}

type class struct {
	key     string
	members []int
}

// groupByKey groups indices by key; classes are sorted by key and members
// keep corpus order.
func groupByKey(keys []string) []class {
	byKey := make(map[string]int)
	var classes []class
	for i, k := range keys {
		j, ok := byKey[k]
		if !ok {
			j = len(classes)
			byKey[k] = j
			classes = append(classes, class{key: k})
		}
		classes[j].members = append(classes[j].members, i)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].key < classes[j].key })
	return classes
}

func canStratify(classes []class, n, testSize int) bool {
	if len(classes) < 2 || len(classes) > testSize || len(classes) > n-testSize {
		return false
	}
	for _, c := range classes {
		if len(c.members) < 2 {
			return false
		}
	}
	return true
}

func stratifiedSplit(classes []class, n, testSize int, rng *rand.Rand) Split {
	alloc := allocate(classes, n, testSize)

	var split Split
	split.Stratified = true
	for i, c := range classes {
		members := append([]int(nil), c.members...)
		rng.Shuffle(len(members), func(a, b int) { members[a], members[b] = members[b], members[a] })
		split.Test = append(split.Test, members[:alloc[i]]...)
		split.Train = append(split.Train, members[alloc[i]:]...)
	}
	// interleave classes so contiguous folds downstream see a mix
	rng.Shuffle(len(split.Test), func(a, b int) { split.Test[a], split.Test[b] = split.Test[b], split.Test[a] })
	rng.Shuffle(len(split.Train), func(a, b int) { split.Train[a], split.Train[b] = split.Train[b], split.Train[a] })
	return split
}

// allocate distributes testSize over classes proportionally to class size,
// giving every class between 1 and size-1 test members. Leftover slots go
// to the largest fractional remainders, ties to the earlier class.
func allocate(classes []class, n, testSize int) []int {
	exact := make([]float64, len(classes))
	alloc := make([]int, len(classes))
	sum := 0
	for i, c := range classes {
		size := len(c.members)
		exact[i] = float64(size) * float64(testSize) / float64(n)
		a := int(math.Floor(exact[i]))
		a = max(a, 1)
		a = min(a, size-1)
		alloc[i] = a
		sum += a
	}

	for sum < testSize {
		best := -1
		for i, c := range classes {
			if alloc[i] >= len(c.members)-1 {
				continue
			}
			if best < 0 || exact[i]-float64(alloc[i]) > exact[best]-float64(alloc[best]) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		alloc[best]++
		sum++
	}
	for sum > testSize {
		best := -1
		for i := range classes {
			if alloc[i] <= 1 {
				continue
			}
			if best < 0 || exact[i]-float64(alloc[i]) < exact[best]-float64(alloc[best]) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		alloc[best]--
		sum--
	}
	return alloc
}
