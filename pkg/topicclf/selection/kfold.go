package selection

import "sort"

// Fold is one cross-validation split of the training rows.
type Fold struct {
	Train    []int
	Validate []int
}

// KFolds splits len(keys) rows into k folds without shuffling. k is capped
// at the number of rows; fewer than two rows or k < 2 yields no folds. When
// every class (label key) has at least k members the folds are stratified:
// rows are dealt round-robin class by class. Otherwise folds are contiguous
// blocks, the first n%k of them one row larger.
func KFolds(keys []string, k int) []Fold {
	n := len(keys)
	k = min(k, n)
	if k < 2 {
		return nil
	}

	assign := make([]int, n)
	if stratifiable(keys, k) {
		byKey := make(map[string][]int)
		var order []string
		for i, key := range keys {
			if _, ok := byKey[key]; !ok {
				order = append(order, key)
			}
			byKey[key] = append(byKey[key], i)
		}
		sort.Strings(order)
		next := 0
		for _, key := range order {
			for _, i := range byKey[key] {
				assign[i] = next % k
				next++
			}
		}
	} else {
		base, extra := n/k, n%k
		i := 0
		for f := 0; f < k; f++ {
			size := base
			if f < extra {
				size++
			}
			for j := 0; j < size; j++ {
				assign[i] = f
				i++
			}
		}
	}

	folds := make([]Fold, k)
	for i, f := range assign {
		for g := range folds {
			if g == f {
				folds[g].Validate = append(folds[g].Validate, i)
			} else {
				folds[g].Train = append(folds[g].Train, i)
			}
		}
	}
	return folds
}

func stratifiable(keys []string, k int) bool {
	counts := make(map[string]int)
	for _, key := range keys {
		counts[key]++
	}
	for _, c := range counts {
		if c < k {
			return false
		}
	}
	return true
}
