package topicclf

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cognicore/topicclf/internal/metrics"
	"github.com/cognicore/topicclf/pkg/topicclf/config"
	"github.com/cognicore/topicclf/pkg/topicclf/corpus"
	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
	"github.com/cognicore/topicclf/pkg/topicclf/model"
	"github.com/cognicore/topicclf/pkg/topicclf/registry"
	"github.com/cognicore/topicclf/pkg/topicclf/registry/memstore"
	"github.com/cognicore/topicclf/pkg/topicclf/selection"
)

type row struct{ text, label string }

func writeCSV(t *testing.T, path string, rows []row) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	records := [][]string{{"text", "label"}}
	for _, r := range rows {
		records = append(records, []string{r.text, r.label})
	}
	if err := w.WriteAll(records); err != nil {
		t.Fatal(err)
	}
}

// testConfig points every output into dir/models.
func testConfig(dir string, models []selection.FamilySpec) *config.Config {
	cfg := config.Default()
	cfg.CorpusPath = filepath.Join(dir, "corpus.csv")
	cfg.TextColumn = "text"
	cfg.LabelColumns = []string{"label"}
	cfg.VectorizerOutputPath = filepath.Join(dir, "models", "features.json")
	cfg.ModelOutputPath = filepath.Join(dir, "models", "model.json")
	cfg.Workers = 2
	cfg.Models = models
	return cfg
}

var sentimentFamilies = []selection.FamilySpec{
	{Family: "knn", Grid: map[string][]any{"n_neighbors": {1}}, Options: model.Params{"metric": "cosine"}},
	{Family: "naive_bayes", Grid: map[string][]any{"alpha": {1.0}}},
	{Family: "nearest_centroid", Options: model.Params{"metric": "cosine"}},
}

var reviews = []row{
	{"I love this product", "positive"},
	{"This is terrible", "negative"},
	{"Amazing quality", "positive"},
	{"Awful experience", "negative"},
}

// seedKeepingFirstInTrain finds a seed whose split trains on reviews[0].
func seedKeepingFirstInTrain(t *testing.T, fraction float64) uint64 {
	t.Helper()
	keys := make([]string, len(reviews))
	for i, r := range reviews {
		keys[i] = r.label
	}
	for seed := uint64(0); seed < 100; seed++ {
		split, err := corpus.SplitIndices(keys, fraction, seed)
		if err != nil {
			t.Fatal(err)
		}
		if slices.Contains(split.Train, 0) {
			return seed
		}
	}
	t.Fatal("no seed puts the first review in the training partition")
	return 0
}

func TestScenarioSentiment(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig(dir, sentimentFamilies)
	cfg.TestFraction = 0.5
	cfg.Seed = seedKeepingFirstInTrain(t, 0.5)
	writeCSV(t, cfg.CorpusPath, reviews)

	res, err := Train(ctx, cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if len(res.Split.Train) != 2 || len(res.Split.Test) != 2 {
		t.Fatalf("split = %+v", res.Split)
	}
	for _, p := range []string{cfg.VectorizerOutputPath, cfg.ModelOutputPath} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("artifact %s not written: %v", p, err)
		}
	}

	got, err := Predict(ctx, cfg, []string{"I really love it"})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(got) != 1 || !slices.Equal(got[0], []string{"positive"}) {
		t.Fatalf("Predict = %v, want [[positive]]", got)
	}
}

func TestScenarioEmptyCorpus(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig(dir, sentimentFamilies)
	writeCSV(t, cfg.CorpusPath, nil)

	store := memstore.New()
	p, err := New(ctx, Options{Config: cfg, Registry: store})
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Train(ctx)
	var die *internalerr.DataInsufficientError
	if !errors.As(err, &die) {
		t.Fatalf("expected DataInsufficientError, got %v", err)
	}
	assertNoArtifacts(t, filepath.Join(dir, "models"))

	run, err := store.LatestRun(ctx, "")
	if err != nil {
		t.Fatalf("failed run not recorded: %v", err)
	}
	if run.Status != registry.StatusFailed || run.Error == "" {
		t.Errorf("unexpected run %+v", run)
	}
}

func TestScenarioNoViableModel(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig(dir, []selection.FamilySpec{
		{Family: "knn", Grid: map[string][]any{"n_neighbors": {0}}},
		{Family: "logistic_regression", Grid: map[string][]any{"C": {0}}},
	})
	cfg.TestFraction = 0.5

	store := memstore.New()
	reg := prometheus.NewRegistry()
	m, err := metrics.NewSearch(reg)
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(ctx, Options{Config: cfg, Registry: store, Metrics: m})
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.TrainCorpus(ctx, reviewCorpus())
	var nvm *internalerr.NoViableModelError
	if !errors.As(err, &nvm) {
		t.Fatalf("expected NoViableModelError, got %v", err)
	}
	if len(nvm.Failures) != 2 {
		t.Errorf("expected 2 failures, got %d", len(nvm.Failures))
	}
	assertNoArtifacts(t, filepath.Join(dir, "models"))

	run, err := store.LatestRun(ctx, registry.StatusFailed)
	if err != nil {
		t.Fatal(err)
	}
	cands, _ := store.Candidates(ctx, run.ID)
	if len(cands) != 2 || cands[0].Error == "" || cands[1].Error == "" {
		t.Errorf("expected two failed candidates, got %+v", cands)
	}
	want := `
# HELP topicclf_train_runs_total Training runs by outcome
# TYPE topicclf_train_runs_total counter
topicclf_train_runs_total{status="failed"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "topicclf_train_runs_total"); err != nil {
		t.Errorf("train runs metric: %v", err)
	}
}

func reviewCorpus() *corpus.Corpus {
	c := &corpus.Corpus{TextColumn: "text", LabelColumns: []string{"label"}}
	for _, r := range reviews {
		c.Docs = append(c.Docs, corpus.Document{Text: r.text, Labels: []string{r.label}})
	}
	return c
}

func assertNoArtifacts(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if len(names) > 0 {
		t.Fatalf("expected no artifacts, found %v", names)
	}
}

var enquiries = []row{
	{"Water dripping through the roof", "ROOF"},
	{"Roof tiles missing after the storm", "ROOF"},
	{"Rain coming in through the roof", "ROOF"},
	{"Roof leaking into the loft", "ROOF"},
	{"Loose tiles on roof letting water in", "ROOF"},
	{"Pipe burst under the sink", "PIPE"},
	{"Leaking pipe in the kitchen", "PIPE"},
	{"Pipe joint dripping", "PIPE"},
	{"Radiator pipe leaking", "PIPE"},
	{"Water pipe cracked behind boiler", "PIPE"},
	{"Gutter overflowing onto the wall", "GUTTER"},
	{"Blocked gutter spilling water", "GUTTER"},
	{"Gutter full of leaves", "GUTTER"},
	{"Broken gutter bracket", "GUTTER"},
	{"Gutter leaking at the joint", "GUTTER"},
}

var enquiryFamilies = []selection.FamilySpec{
	{Family: "knn", Grid: map[string][]any{"n_neighbors": {1, 3}, "weights": {"uniform", "distance"}}, Options: model.Params{"metric": "cosine"}},
	{Family: "logistic_regression", Grid: map[string][]any{"C": {1.0, 10.0}}},
	{Family: "naive_bayes", Grid: map[string][]any{"alpha": {0.1, 1.0}}},
	{Family: "mlp", Grid: map[string][]any{"hidden_layer_sizes": {8}}, Options: model.Params{"max_iter": 100, "learning_rate_init": 0.05}},
}

func TestTrainDeterministic(t *testing.T) {
	ctx := context.Background()
	probe := []string{"water coming through the roof", "pipe leaking under sink", "gutter blocked with leaves"}

	var (
		first      *TrainResult
		firstPreds [][]string
	)
	for i := 0; i < 2; i++ {
		dir := t.TempDir()
		cfg := testConfig(dir, enquiryFamilies)
		writeCSV(t, cfg.CorpusPath, enquiries)

		res, err := Train(ctx, cfg)
		if err != nil {
			t.Fatalf("run %d: Train: %v", i, err)
		}
		preds, err := Predict(ctx, cfg, probe)
		if err != nil {
			t.Fatalf("run %d: Predict: %v", i, err)
		}
		if i == 0 {
			first, firstPreds = res, preds
			continue
		}

		if res.Best.Family != first.Best.Family || res.Best.Params.String() != first.Best.Params.String() {
			t.Errorf("winner changed: %s %s vs %s %s", res.Best.Family, res.Best.Params, first.Best.Family, first.Best.Params)
		}
		if res.Best.TestScore != first.Best.TestScore || res.Best.CVScore != first.Best.CVScore {
			t.Errorf("scores changed: %v/%v vs %v/%v", res.Best.CVScore, res.Best.TestScore, first.Best.CVScore, first.Best.TestScore)
		}
		if !slices.Equal(res.Split.Train, first.Split.Train) {
			t.Errorf("split changed")
		}
		for j := range probe {
			if !slices.Equal(preds[j], firstPreds[j]) {
				t.Errorf("prediction %d changed: %v vs %v", j, preds[j], firstPreds[j])
			}
		}
	}
}

func TestLoadedModelMatchesTrained(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig(dir, enquiryFamilies)

	c := &corpus.Corpus{TextColumn: "text", LabelColumns: []string{"label"}}
	for _, r := range enquiries {
		c.Docs = append(c.Docs, corpus.Document{Text: r.text, Labels: []string{r.label}})
	}

	p, err := New(ctx, Options{Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	res, err := p.TrainCorpus(ctx, c)
	if err != nil {
		t.Fatalf("TrainCorpus: %v", err)
	}

	pr, err := p.Predictor(ctx)
	if err != nil {
		t.Fatalf("Predictor: %v", err)
	}
	if pr.RunID() != res.RunID {
		t.Errorf("loaded run %s, trained %s", pr.RunID(), res.RunID)
	}
	if pr.Model().Family != res.Best.Family || pr.Model().Score != res.Best.TestScore {
		t.Errorf("loaded model %s/%v, trained %s/%v", pr.Model().Family, pr.Model().Score, res.Best.Family, res.Best.TestScore)
	}

	norm := p.Components().Normalizer
	texts := make([]string, len(enquiries))
	for i, r := range enquiries {
		texts[i] = r.text
	}
	loaded, err := pr.Predict(texts)
	if err != nil {
		t.Fatal(err)
	}
	for i, text := range texts {
		vec := pr.Vectorizer().TransformOne(norm.Normalize(text))
		if want := res.Best.Model.PredictOne(vec); !slices.Equal(loaded[i], want) {
			t.Errorf("doc %d: loaded %v, trained %v", i, loaded[i], want)
		}
	}
}

func TestPredictFromRegistry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig(dir, enquiryFamilies)
	cfg.RegistryPath = filepath.Join(dir, "registry.db")
	writeCSV(t, cfg.CorpusPath, enquiries)

	res, err := Train(ctx, cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	lookup := *cfg
	lookup.VectorizerOutputPath = ""
	lookup.ModelOutputPath = ""
	p, err := New(ctx, Options{Config: &lookup})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	run, err := p.Registry().GetRun(ctx, res.RunID)
	if err != nil {
		t.Fatalf("run not in registry: %v", err)
	}
	if run.Status != registry.StatusSucceeded || run.Family != res.Best.Family || run.Vocabulary != res.Vocabulary {
		t.Errorf("unexpected run %+v", run)
	}
	cands, err := p.Registry().Candidates(ctx, res.RunID)
	if err != nil || len(cands) != len(enquiryFamilies) {
		t.Fatalf("candidates = %d, %v", len(cands), err)
	}

	pr, err := p.Predictor(ctx)
	if err != nil {
		t.Fatalf("Predictor: %v", err)
	}
	if pr.RunID() != res.RunID {
		t.Errorf("resolved run %s, want %s", pr.RunID(), res.RunID)
	}
}

func TestPredictWithoutRuns(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig(dir, enquiryFamilies)
	cfg.RegistryPath = filepath.Join(dir, "registry.db")
	cfg.VectorizerOutputPath = ""
	cfg.ModelOutputPath = ""

	_, err := Predict(ctx, cfg, []string{"roof leak"})
	var ale *internalerr.ArtifactLoadError
	if !errors.As(err, &ale) {
		t.Fatalf("expected ArtifactLoadError, got %v", err)
	}
}

func TestPredictSkipPolicy(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig(dir, enquiryFamilies)
	writeCSV(t, cfg.CorpusPath, enquiries)
	if _, err := Train(ctx, cfg); err != nil {
		t.Fatal(err)
	}

	docs := []string{"roof leaking", "", "gutter overflowing"}
	if _, err := Predict(ctx, cfg, docs); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Fatalf("fail_fast: expected PredictionInputError, got %v", err)
	}

	cfg.Predict.OnError = "skip"
	got, err := Predict(ctx, cfg, docs)
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if got[0] == nil || got[1] != nil || got[2] == nil {
		t.Errorf("unexpected labels %v", got)
	}

	res, err := PredictBatch(ctx, cfg, docs)
	if err != nil {
		t.Fatalf("PredictBatch: %v", err)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].Index != 1 || res.Rejected[0].Reason != "empty document" {
		t.Fatalf("rejected = %v", res.Rejected)
	}
	if res.Labels[0] == nil || res.Labels[1] != nil || res.Labels[2] == nil {
		t.Errorf("unexpected labels %v", res.Labels)
	}
}

func TestTrainRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t.TempDir(), nil)
	_, err := Train(context.Background(), cfg)
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
