package analytics

import (
	"math"
	"sort"

	"github.com/cognicore/topicclf/pkg/topicclf/stoplist"
)

// Analyzer aggregates document-level token/label stats over normalized text.
type Analyzer struct {
	totalDocs   int64
	emptyDocs   int64
	tokenDF     map[string]int64
	tokenLabels map[string]map[string]int64
	labelDocs   map[string]int64
}

// NewAnalyzer creates an empty analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		tokenDF:     make(map[string]int64),
		tokenLabels: make(map[string]map[string]int64),
		labelDocs:   make(map[string]int64),
	}
}

// Process consumes one document's tokens and its label key. Multi-output
// documents pass their joined label tuple.
func (a *Analyzer) Process(tokens []string, label string) {
	a.totalDocs++
	if label != "" {
		a.labelDocs[label]++
	}
	if len(tokens) == 0 {
		a.emptyDocs++
		return
	}

	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		a.tokenDF[tok]++
		if label == "" {
			continue
		}
		if a.tokenLabels[tok] == nil {
			a.tokenLabels[tok] = make(map[string]int64)
		}
		a.tokenLabels[tok][label]++
	}
}

// Stats exposes the aggregated counts.
type Stats struct {
	TotalDocs   int64
	EmptyDocs   int64 // documents with no tokens after normalization
	TokenDF     map[string]int64
	TokenLabels map[string]map[string]int64
	LabelDocs   map[string]int64
}

// Snapshot returns a copy of the accumulated statistics.
func (a *Analyzer) Snapshot() Stats {
	copyLabels := make(map[string]map[string]int64, len(a.tokenLabels))
	for tok, labels := range a.tokenLabels {
		copyLabels[tok] = make(map[string]int64, len(labels))
		for l, count := range labels {
			copyLabels[tok][l] = count
		}
	}
	copyDF := make(map[string]int64, len(a.tokenDF))
	for tok, count := range a.tokenDF {
		copyDF[tok] = count
	}
	copyDocs := make(map[string]int64, len(a.labelDocs))
	for l, count := range a.labelDocs {
		copyDocs[l] = count
	}
	return Stats{
		TotalDocs:   a.totalDocs,
		EmptyDocs:   a.emptyDocs,
		TokenDF:     copyDF,
		TokenLabels: copyLabels,
		LabelDocs:   copyDocs,
	}
}

// VocabularySize is the number of distinct tokens seen.
func (s Stats) VocabularySize() int {
	return len(s.TokenDF)
}

// StopwordStats converts corpus stats into the format expected by
// stoplist.SuggestCandidates, sorted by token.
func (s Stats) StopwordStats() []stoplist.Stats {
	var out []stoplist.Stats
	if s.TotalDocs == 0 {
		return out
	}
	for tok, df := range s.TokenDF {
		out = append(out, stoplist.Stats{
			Token:        tok,
			DF:           df,
			DFPercent:    100 * (float64(df) / float64(s.TotalDocs)),
			IDF:          math.Log((1+float64(s.TotalDocs))/(1+float64(df))) + 1,
			LabelEntropy: s.labelEntropy(s.TokenLabels[tok]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

// labelEntropy is the entropy of a token's per-label document rate,
// normalized by the maximum over all corpus labels. Rates (not raw counts)
// keep a large class from looking informative.
func (s Stats) labelEntropy(counts map[string]int64) float64 {
	k := len(s.LabelDocs)
	if k <= 1 || len(counts) == 0 {
		return 0
	}
	rates := make([]float64, 0, len(counts))
	var total float64
	for label, c := range counts {
		docs := s.LabelDocs[label]
		if docs == 0 || c == 0 {
			continue
		}
		r := float64(c) / float64(docs)
		rates = append(rates, r)
		total += r
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, r := range rates {
		p := r / total
		h -= p * math.Log2(p)
	}
	return h / math.Log2(float64(k))
}

// TokenCount pairs a token with its document frequency.
type TokenCount struct {
	Token string
	DF    int64
}

// TopTokens returns the most widespread tokens, DF descending then token.
func (s Stats) TopTokens(limit int) []TokenCount {
	out := make([]TokenCount, 0, len(s.TokenDF))
	for tok, df := range s.TokenDF {
		out = append(out, TokenCount{Token: tok, DF: df})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DF != out[j].DF {
			return out[i].DF > out[j].DF
		}
		return out[i].Token < out[j].Token
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
