package features

import (
	"context"
	"errors"
	"testing"

	"github.com/cognicore/topicclf/pkg/topicclf/corpus"
	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
	"github.com/cognicore/topicclf/pkg/topicclf/stoplist"
	"github.com/cognicore/topicclf/pkg/topicclf/textnorm"
)

type recordingStager struct {
	kinds []string
	paths []string
}

func (r *recordingStager) Stage(kind, path string, payload any) error {
	r.kinds = append(r.kinds, kind)
	r.paths = append(r.paths, path)
	return nil
}

func doc(text string, labels ...string) corpus.Document {
	return corpus.Document{Text: text, Labels: labels}
}

func enquiries() *corpus.Corpus {
	return &corpus.Corpus{
		TextColumn:   "text",
		LabelColumns: []string{"cause"},
		Docs: []corpus.Document{
			doc("Water dripping through the roof", "ROOF"),
			doc("Roof tiles missing after storm", "ROOF"),
			doc("Rain coming through roof", "ROOF"),
			doc("Roof leaking into loft", "ROOF"),
			doc("Pipe burst under the sink", "PIPE"),
			doc("Leaking pipe in kitchen", "PIPE"),
			doc("Pipe joint dripping", "PIPE"),
			doc("Radiator pipe leaking", "PIPE"),
			doc("Gutter overflowing onto wall", "GUTTER"),
			doc("Blocked gutter spilling water", "GUTTER"),
		},
	}
}

func TestBuildSplitsAndVectorizes(t *testing.T) {
	b := NewBuilder(textnorm.New(textnorm.Options{}), BuilderOptions{
		TestFraction: 0.3,
		Seed:         42,
		Vectorizer:   DefaultVectorizerOptions(),
		OutputPath:   "features.json",
		Stoplist:     stoplist.NewEnglish(),
	})
	st := &recordingStager{}
	ds, err := b.Build(context.Background(), enquiries(), st)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if ds.XTrain.Len() != 7 || ds.XTest.Len() != 3 {
		t.Fatalf("sizes train=%d test=%d", ds.XTrain.Len(), ds.XTest.Len())
	}
	if len(ds.YTrain) != 7 || len(ds.YTest) != 3 {
		t.Fatalf("label sizes train=%d test=%d", len(ds.YTrain), len(ds.YTest))
	}
	if ds.XTest.Cols != ds.Vectorizer.Dim() || ds.XTrain.Cols != ds.Vectorizer.Dim() {
		t.Fatalf("column mismatch")
	}
	if len(st.kinds) != 1 || st.kinds[0] != KindVectorizer || st.paths[0] != "features.json" {
		t.Fatalf("unexpected staging %v %v", st.kinds, st.paths)
	}
	if ds.Stats.TotalDocs != 7 {
		t.Fatalf("stats over %d docs, want 7", ds.Stats.TotalDocs)
	}
}

func TestBuildFitsOnTrainOnly(t *testing.T) {
	c := enquiries()
	n := textnorm.New(textnorm.Options{})
	b := NewBuilder(n, BuilderOptions{TestFraction: 0.3, Seed: 42})
	ds, err := b.Build(context.Background(), c, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	trainTerms := map[string]bool{}
	for _, i := range ds.Split.Train {
		for _, term := range Analyze(n.Normalize(c.Docs[i].Text)) {
			trainTerms[term] = true
		}
	}
	for _, term := range ds.Vectorizer.Terms() {
		if !trainTerms[term] {
			t.Errorf("vocabulary term %q does not occur in training text", term)
		}
	}
	for i, row := range ds.XTest.Rows {
		for _, col := range row.Indices {
			if col >= ds.Vectorizer.Dim() {
				t.Fatalf("test row %d has column %d beyond vocabulary", i, col)
			}
		}
	}
}

func TestBuildEmptyCorpus(t *testing.T) {
	b := NewBuilder(textnorm.New(textnorm.Options{}), BuilderOptions{OutputPath: "features.json"})
	st := &recordingStager{}
	_, err := b.Build(context.Background(), &corpus.Corpus{LabelColumns: []string{"cause"}}, st)
	var die *internalerr.DataInsufficientError
	if !errors.As(err, &die) {
		t.Fatalf("expected DataInsufficientError, got %v", err)
	}
	if len(st.kinds) != 0 {
		t.Fatalf("nothing should be staged on failure")
	}
}

func TestBuildAllStopwords(t *testing.T) {
	c := &corpus.Corpus{
		LabelColumns: []string{"cause"},
		Docs:         []corpus.Document{doc("the and of", "A"), doc("it is, was!", "B"), doc("...", "A")},
	}
	b := NewBuilder(textnorm.New(textnorm.Options{}), BuilderOptions{OutputPath: "features.json"})
	st := &recordingStager{}
	_, err := b.Build(context.Background(), c, st)
	var die *internalerr.DataInsufficientError
	if !errors.As(err, &die) {
		t.Fatalf("expected DataInsufficientError, got %v", err)
	}
	if len(st.kinds) != 0 {
		t.Fatalf("nothing should be staged on failure")
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewBuilder(textnorm.New(textnorm.Options{}), BuilderOptions{})
	if _, err := b.Build(ctx, enquiries(), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
