package features

import (
	"encoding/json"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestVectorizerFit(t *testing.T) {
	v := NewVectorizer(VectorizerOptions{})
	m, err := v.FitTransform([]string{"pipe leak", "roof leak", "x"})
	if err != nil {
		t.Fatalf("FitTransform: %v", err)
	}
	if got := v.Terms(); !slices.Equal(got, []string{"leak", "pipe", "roof"}) {
		t.Fatalf("terms = %v", got)
	}
	if m.Cols != 3 || m.Len() != 3 {
		t.Fatalf("matrix %dx%d", m.Len(), m.Cols)
	}
	// n=3: leak df=2, pipe df=1
	if !approx(v.IDF(0), math.Log(4.0/3.0)+1) || !approx(v.IDF(1), math.Log(2)+1) {
		t.Fatalf("idf = %v %v", v.IDF(0), v.IDF(1))
	}
	if n := m.Rows[0].Norm(); !approx(n, 1) {
		t.Fatalf("row norm = %v", n)
	}
	if m.Rows[2].Len() != 0 {
		t.Fatalf("single-rune token should be ignored")
	}
}

func TestVectorizerIgnoresUnknownTerms(t *testing.T) {
	v := NewVectorizer(VectorizerOptions{})
	if err := v.Fit([]string{"pipe leak", "roof leak"}); err != nil {
		t.Fatal(err)
	}
	m := v.Transform([]string{"gutter leak gutter", "gutter"})
	if m.Cols != v.Dim() {
		t.Fatalf("transform changed width: %d vs %d", m.Cols, v.Dim())
	}
	if m.Rows[0].Len() != 1 || m.Rows[0].Indices[0] != 0 {
		t.Fatalf("unexpected row %+v", m.Rows[0])
	}
	if m.Rows[1].Len() != 0 {
		t.Fatalf("unknown-only doc should be all zero")
	}
	if _, ok := v.Index("gutter"); ok {
		t.Fatalf("transform added a term")
	}
}

func TestVectorizerMaxFeaturesAndMinDF(t *testing.T) {
	docs := []string{"leak leak pipe", "leak roof", "tap"}
	v := NewVectorizer(VectorizerOptions{MaxFeatures: 2})
	if err := v.Fit(docs); err != nil {
		t.Fatal(err)
	}
	// leak tf=3; pipe, roof and tap tie at 1 and break lexicographically
	if got := v.Terms(); !slices.Equal(got, []string{"leak", "pipe"}) {
		t.Fatalf("terms = %v", got)
	}

	v = NewVectorizer(VectorizerOptions{MinDF: 2})
	if err := v.Fit(docs); err != nil {
		t.Fatal(err)
	}
	if got := v.Terms(); !slices.Equal(got, []string{"leak"}) {
		t.Fatalf("terms = %v", got)
	}
}

func TestVectorizerSublinear(t *testing.T) {
	v := NewVectorizer(VectorizerOptions{SublinearTF: true})
	if err := v.Fit([]string{"leak leak leak pipe", "pipe"}); err != nil {
		t.Fatal(err)
	}
	row := v.TransformOne("leak leak leak pipe")
	leak := (1 + math.Log(3)) * v.IDF(0)
	pipe := v.IDF(1)
	want := leak / math.Sqrt(leak*leak+pipe*pipe)
	if !approx(row.Values[0], want) {
		t.Fatalf("leak weight = %v, want %v", row.Values[0], want)
	}
}

func TestVectorizerEmptyVocabulary(t *testing.T) {
	var die *internalerr.DataInsufficientError
	if err := NewVectorizer(VectorizerOptions{}).Fit([]string{"", "a b"}); !errors.As(err, &die) {
		t.Fatalf("expected DataInsufficientError, got %v", err)
	}
}

func TestVectorizerJSONRoundTrip(t *testing.T) {
	v := NewVectorizer(VectorizerOptions{MaxFeatures: 10, SublinearTF: true})
	if err := v.Fit([]string{"pipe leak", "roof leak", "tap drip"}); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var loaded Vectorizer
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if loaded.Dim() != v.Dim() || loaded.Options() != v.Options() {
		t.Fatalf("loaded vectorizer differs")
	}
	a := v.TransformOne("leak tap pipe")
	b := loaded.TransformOne("leak tap pipe")
	if !slices.Equal(a.Indices, b.Indices) || !slices.Equal(a.Values, b.Values) {
		t.Fatalf("transform differs after reload: %+v vs %+v", a, b)
	}
}

func TestVectorizerUnmarshalRejectsMismatch(t *testing.T) {
	var v Vectorizer
	err := json.Unmarshal([]byte(`{"terms":["a","b"],"idf":[1]}`), &v)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestVectorOps(t *testing.T) {
	a := Vector{Indices: []int{0, 2}, Values: []float64{1, 2}}
	b := Vector{Indices: []int{1, 2}, Values: []float64{3, 4}}
	if got := a.Dot(b); got != 8 {
		t.Errorf("Dot = %v", got)
	}
	if got := a.DotDense([]float64{1, 1, 1}); got != 3 {
		t.Errorf("DotDense = %v", got)
	}
	// (1-0)² + (0-3)² + (2-4)² = 14
	if got := a.SquaredDistance(b); got != 14 {
		t.Errorf("SquaredDistance = %v", got)
	}
	if got := a.Dense(3); !slices.Equal(got, []float64{1, 0, 2}) {
		t.Errorf("Dense = %v", got)
	}
	m := &Matrix{Rows: []Vector{a, b}, Cols: 3}
	if sub := m.Subset([]int{1}); sub.Len() != 1 || sub.Rows[0].Values[0] != 3 {
		t.Errorf("Subset = %+v", sub)
	}
	if m.NonZero() != 4 {
		t.Errorf("NonZero = %d", m.NonZero())
	}
}
