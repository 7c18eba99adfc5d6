package features

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

// VectorizerOptions configures TF-IDF fitting.
type VectorizerOptions struct {
	MaxFeatures int  `json:"max_features" yaml:"max_features"` // 0: unlimited
	MinDF       int  `json:"min_df" yaml:"min_df"`             // minimum document frequency, default 1
	SublinearTF bool `json:"sublinear_tf" yaml:"sublinear_tf"` // tf → 1+ln(tf)
}

// DefaultVectorizerOptions keeps the 2000 most frequent terms.
func DefaultVectorizerOptions() VectorizerOptions {
	return VectorizerOptions{MaxFeatures: 2000, MinDF: 1}
}

// Vectorizer maps normalized documents to L2-normalized TF-IDF rows. Once
// fitted it is read-only: Transform never adds columns.
type Vectorizer struct {
	opts  VectorizerOptions
	terms []string // column -> term, lexicographic
	vocab map[string]int
	idf   []float64
	docs  int // documents seen by Fit
}

// NewVectorizer creates an unfitted vectorizer.
func NewVectorizer(opts VectorizerOptions) *Vectorizer {
	if opts.MinDF < 1 {
		opts.MinDF = 1
	}
	return &Vectorizer{opts: opts}
}

// Analyze splits a normalized document into terms: whitespace tokens of at
// least two runes.
func Analyze(doc string) []string {
	fields := strings.Fields(doc)
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// Fit learns the vocabulary and IDF weights from docs.
func (v *Vectorizer) Fit(docs []string) error {
	df := make(map[string]int)
	tf := make(map[string]int)
	for _, d := range docs {
		seen := make(map[string]struct{})
		for _, term := range Analyze(d) {
			tf[term]++
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	kept := make([]string, 0, len(df))
	for term, n := range df {
		if n >= v.opts.MinDF {
			kept = append(kept, term)
		}
	}
	if v.opts.MaxFeatures > 0 && len(kept) > v.opts.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if tf[kept[i]] != tf[kept[j]] {
				return tf[kept[i]] > tf[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:v.opts.MaxFeatures]
	}
	if len(kept) == 0 {
		return &internalerr.DataInsufficientError{
			Stage:  "features",
			Reason: fmt.Sprintf("empty vocabulary after fitting %d documents", len(docs)),
		}
	}
	sort.Strings(kept)

	n := float64(len(docs))
	v.terms = kept
	v.vocab = make(map[string]int, len(kept))
	v.idf = make([]float64, len(kept))
	for i, term := range kept {
		v.vocab[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	v.docs = len(docs)
	return nil
}

// FitTransform fits on docs and returns their matrix.
func (v *Vectorizer) FitTransform(docs []string) (*Matrix, error) {
	if err := v.Fit(docs); err != nil {
		return nil, err
	}
	return v.Transform(docs), nil
}

// Transform vectorizes docs. Terms outside the fitted vocabulary are
// ignored; a document with no known term becomes an all-zero row.
func (v *Vectorizer) Transform(docs []string) *Matrix {
	m := &Matrix{Rows: make([]Vector, len(docs)), Cols: len(v.terms)}
	for i, d := range docs {
		m.Rows[i] = v.TransformOne(d)
	}
	return m
}

// TransformOne vectorizes a single document.
func (v *Vectorizer) TransformOne(doc string) Vector {
	counts := make(map[int]int)
	for _, term := range Analyze(doc) {
		if col, ok := v.vocab[term]; ok {
			counts[col]++
		}
	}
	if len(counts) == 0 {
		return Vector{}
	}

	cols := make([]int, 0, len(counts))
	for c := range counts {
		cols = append(cols, c)
	}
	sort.Ints(cols)

	vec := Vector{Indices: cols, Values: make([]float64, len(cols))}
	var norm float64
	for k, c := range cols {
		tf := float64(counts[c])
		if v.opts.SublinearTF {
			tf = 1 + math.Log(tf)
		}
		w := tf * v.idf[c]
		vec.Values[k] = w
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for k := range vec.Values {
			vec.Values[k] /= norm
		}
	}
	return vec
}

// Dim is the number of columns; 0 before Fit.
func (v *Vectorizer) Dim() int { return len(v.terms) }

// Terms returns the vocabulary in column order.
func (v *Vectorizer) Terms() []string { return append([]string(nil), v.terms...) }

// Index returns the column of term.
func (v *Vectorizer) Index(term string) (int, bool) {
	col, ok := v.vocab[term]
	return col, ok
}

// IDF returns the weight of a column.
func (v *Vectorizer) IDF(col int) float64 { return v.idf[col] }

// Options returns the fitting options.
func (v *Vectorizer) Options() VectorizerOptions { return v.opts }

type vectorizerState struct {
	Options VectorizerOptions `json:"options"`
	Docs    int               `json:"documents"`
	Terms   []string          `json:"terms"`
	IDF     []float64         `json:"idf"`
}

func (v *Vectorizer) MarshalJSON() ([]byte, error) {
	return json.Marshal(vectorizerState{Options: v.opts, Docs: v.docs, Terms: v.terms, IDF: v.idf})
}

func (v *Vectorizer) UnmarshalJSON(data []byte) error {
	var st vectorizerState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if len(st.Terms) != len(st.IDF) {
		return fmt.Errorf("vectorizer has %d terms but %d idf weights", len(st.Terms), len(st.IDF))
	}
	vocab := make(map[string]int, len(st.Terms))
	for i, term := range st.Terms {
		if _, dup := vocab[term]; dup {
			return fmt.Errorf("vectorizer term %q repeated", term)
		}
		vocab[term] = i
	}
	v.opts = st.Options
	v.docs = st.Docs
	v.terms = st.Terms
	v.idf = st.IDF
	v.vocab = vocab
	return nil
}
