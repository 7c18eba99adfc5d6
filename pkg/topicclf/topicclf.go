// Package topicclf trains and applies short-text topic classifiers: it
// normalizes labeled text, fits a TF-IDF representation, searches several
// model families for the best configuration and persists the winner next to
// its vectorizer.
package topicclf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/topicclf/internal/metrics"
	"github.com/cognicore/topicclf/pkg/topicclf/artifact"
	"github.com/cognicore/topicclf/pkg/topicclf/config"
	"github.com/cognicore/topicclf/pkg/topicclf/corpus"
	"github.com/cognicore/topicclf/pkg/topicclf/features"
	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
	"github.com/cognicore/topicclf/pkg/topicclf/model"
	"github.com/cognicore/topicclf/pkg/topicclf/predict"
	"github.com/cognicore/topicclf/pkg/topicclf/registry"
	"github.com/cognicore/topicclf/pkg/topicclf/registry/memstore"
	"github.com/cognicore/topicclf/pkg/topicclf/registry/sqlite"
	"github.com/cognicore/topicclf/pkg/topicclf/selection"
)

// Pipeline wires configuration, normalization, run history and metrics for
// training and prediction.
type Pipeline struct {
	cfg       *config.Config
	comp      *config.Components
	registry  registry.Store
	ownsStore bool
	log       *zap.Logger
	metrics   *metrics.Search
}

// Options configures a Pipeline
type Options struct {
	Config *config.Config

	// Registry records runs. When nil, a SQLite registry is opened at
	// Config.RegistryPath, or an in-memory one is used.
	Registry registry.Store
	Logger   *zap.Logger
	Metrics  *metrics.Search
}

// New builds a Pipeline. The configuration is not validated here; Train and
// Predictor check the parts they need.
func New(ctx context.Context, opts Options) (*Pipeline, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: no configuration", internalerr.ErrInvalidConfig)
	}
	comp, err := opts.Config.Components()
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:      opts.Config,
		comp:     comp,
		registry: opts.Registry,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if p.registry == nil {
		if p.cfg.RegistryPath != "" {
			st, err := sqlite.Open(ctx, p.cfg.RegistryPath)
			if err != nil {
				return nil, fmt.Errorf("open registry %s: %w", p.cfg.RegistryPath, err)
			}
			p.registry = st
		} else {
			p.registry = memstore.New()
		}
		p.ownsStore = true
	}
	return p, nil
}

// Close releases the registry if the Pipeline opened it.
func (p *Pipeline) Close() error {
	if p.ownsStore {
		return p.registry.Close()
	}
	return nil
}

// Registry returns the run registry in use.
func (p *Pipeline) Registry() registry.Store { return p.registry }

// Components returns the normalization components built from the config.
func (p *Pipeline) Components() *config.Components { return p.comp }

// TrainResult summarizes a successful run.
type TrainResult struct {
	RunID          string
	Best           *selection.CandidateResult
	Candidates     []*selection.CandidateResult
	Failures       []*internalerr.GridSearchFailure
	Split          corpus.Split
	Vocabulary     int
	VectorizerPath string
	ModelPath      string
}

// Train loads the configured corpus and runs TrainCorpus on it.
func (p *Pipeline) Train(ctx context.Context) (*TrainResult, error) {
	if p.cfg.CorpusPath == "" {
		return nil, fmt.Errorf("%w: corpus_path is required", internalerr.ErrInvalidConfig)
	}
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	c, stats, err := corpus.LoadCSVFile(p.cfg.CorpusPath, p.cfg.TextColumn, p.cfg.LabelColumns)
	if err != nil {
		return nil, err
	}
	p.log.Info("loaded corpus",
		zap.String("path", p.cfg.CorpusPath),
		zap.Int("rows", stats.Rows),
		zap.Int("documents", stats.Loaded),
		zap.Int("skipped_empty", stats.SkippedEmpty),
		zap.Int("skipped_unlabeled", stats.SkippedUnlabeled))
	return p.TrainCorpus(ctx, c)
}

// TrainCorpus runs feature building and model selection over c, then
// commits the vectorizer and model together. On any error neither artifact
// is written and the run is recorded as failed.
func (p *Pipeline) TrainCorpus(ctx context.Context, c *corpus.Corpus) (*TrainResult, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	runID := registry.NewRunID(started)
	log := p.log.With(zap.String("run_id", runID))

	run := registry.Run{
		ID:             runID,
		StartedAt:      started,
		Metric:         p.cfg.Scoring,
		VectorizerPath: p.cfg.VectorizerOutputPath,
		ModelPath:      p.cfg.ModelOutputPath,
	}
	var candidates []registry.Candidate

	res, err := p.train(ctx, c, runID, log, &run, &candidates)
	run.FinishedAt = time.Now()
	if err != nil {
		run.Status = registry.StatusFailed
		run.Error = err.Error()
		p.metrics.RunFinished(registry.StatusFailed)
		log.Error("training failed", zap.Error(err))
	} else {
		run.Status = registry.StatusSucceeded
		p.metrics.RunFinished(registry.StatusSucceeded)
	}

	if rerr := p.registry.RecordRun(ctx, run, candidates); rerr != nil {
		log.Warn("could not record run", zap.Error(rerr))
	} else {
		log.Debug("recorded run", zap.String("status", run.Status))
	}
	return res, err
}

func (p *Pipeline) train(ctx context.Context, c *corpus.Corpus, runID string, log *zap.Logger,
	run *registry.Run, candidates *[]registry.Candidate) (*TrainResult, error) {

	txn := artifact.NewTxn(runID)
	defer func() {
		if !txn.Committed() {
			if err := txn.Rollback(); err != nil {
				log.Warn("rollback staged artifacts", zap.Error(err))
			}
		}
	}()

	builder := features.NewBuilder(p.comp.Normalizer, features.BuilderOptions{
		TestFraction: p.cfg.TestFraction,
		Seed:         p.cfg.Seed,
		Vectorizer:   p.cfg.Vectorizer,
		OutputPath:   p.cfg.VectorizerOutputPath,
		Stoplist:     p.comp.Stoplist,
		Logger:       log,
	})
	ds, err := builder.Build(ctx, c, txn)
	if err != nil {
		return nil, err
	}
	run.TrainRows = len(ds.Split.Train)
	run.TestRows = len(ds.Split.Test)
	run.Vocabulary = ds.Vectorizer.Dim()
	p.metrics.VocabularySize(ds.Vectorizer.Dim())

	sel, err := selection.NewSelector(selection.Options{
		Metric:     p.cfg.Scoring,
		CVFolds:    p.cfg.CVFolds,
		Workers:    p.cfg.Workers,
		Seed:       p.cfg.Seed,
		Stager:     txn,
		OutputPath: p.cfg.ModelOutputPath,
		OnFamilyDone: func(cand *selection.CandidateResult, failure *internalerr.GridSearchFailure) {
			*candidates = append(*candidates, registryCandidate(cand, failure))
		},
		Logger:  log,
		Metrics: p.metrics,
	})
	if err != nil {
		return nil, err
	}
	sres, err := sel.SelectBest(ctx, ds.XTrain, ds.XTest, ds.YTrain, ds.YTest, p.cfg.Models)
	if err != nil {
		return nil, err
	}

	if err := txn.Commit(); err != nil {
		return nil, err
	}
	log.Info("committed artifacts", zap.Strings("paths", txn.Paths()))

	run.Family = sres.Best.Family
	run.Params = sres.Best.Params.String()
	run.Score = sres.Best.TestScore
	return &TrainResult{
		RunID:          runID,
		Best:           sres.Best,
		Candidates:     sres.Candidates,
		Failures:       sres.Failures,
		Split:          ds.Split,
		Vocabulary:     ds.Vectorizer.Dim(),
		VectorizerPath: p.cfg.VectorizerOutputPath,
		ModelPath:      p.cfg.ModelOutputPath,
	}, nil
}

func registryCandidate(c *selection.CandidateResult, f *internalerr.GridSearchFailure) registry.Candidate {
	if f != nil {
		rc := registry.Candidate{Family: f.Family, Error: f.Err.Error()}
		if f.Params != nil {
			rc.Params = model.Params(f.Params).String()
		}
		return rc
	}
	return registry.Candidate{
		Family:     c.Family,
		Params:     c.Params.String(),
		CVScore:    c.CVScore,
		TestScore:  c.TestScore,
		Configs:    c.Configs,
		DurationMS: c.SearchDuration.Milliseconds(),
	}
}

// Predictor loads the artifacts to score with. Configured paths win; when
// both are empty the latest successful run in the registry supplies them.
func (p *Pipeline) Predictor(ctx context.Context) (*predict.Predictor, error) {
	if err := p.cfg.ValidatePredict(); err != nil {
		return nil, err
	}
	vecPath, modelPath := p.cfg.VectorizerOutputPath, p.cfg.ModelOutputPath
	if vecPath == "" || modelPath == "" {
		run, err := p.registry.LatestRun(ctx, registry.StatusSucceeded)
		if errors.Is(err, internalerr.ErrNotFound) {
			return nil, &internalerr.ArtifactLoadError{
				Path: p.cfg.RegistryPath,
				Err:  errors.New("no successful training run recorded"),
			}
		}
		if err != nil {
			return nil, err
		}
		vecPath, modelPath = run.VectorizerPath, run.ModelPath
		p.log.Info("using artifacts from registry",
			zap.String("run_id", run.ID),
			zap.String("vectorizer", vecPath),
			zap.String("model", modelPath))
	}
	return predict.Load(vecPath, modelPath, p.comp.Normalizer,
		predict.WithLogger(p.log), predict.WithMetrics(p.metrics))
}

// Predict scores docs with the configured artifacts, honoring the
// configured error policy. Rejected documents have nil labels under the
// skip policy.
func (p *Pipeline) Predict(ctx context.Context, docs []string) ([][]string, error) {
	res, err := p.PredictBatch(ctx, docs)
	if err != nil {
		return nil, err
	}
	return res.Labels, nil
}

// PredictBatch is Predict with the per-document rejections kept, so
// callers using the skip policy can report why each document was dropped.
func (p *Pipeline) PredictBatch(ctx context.Context, docs []string) (*predict.BatchResult, error) {
	pr, err := p.Predictor(ctx)
	if err != nil {
		return nil, err
	}
	policy, err := predict.ParsePolicy(p.cfg.Predict.OnError)
	if err != nil {
		return nil, err
	}
	return pr.PredictBatch(docs, policy)
}

// Train runs the full training pipeline described by cfg.
func Train(ctx context.Context, cfg *config.Config) (*TrainResult, error) {
	p, err := New(ctx, Options{Config: cfg})
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.Train(ctx)
}

// Predict scores raw documents with the artifacts named in cfg.
func Predict(ctx context.Context, cfg *config.Config, docs []string) ([][]string, error) {
	p, err := New(ctx, Options{Config: cfg})
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.Predict(ctx, docs)
}

// PredictBatch scores raw documents with the artifacts named in cfg and
// returns the rejected documents alongside the labels.
func PredictBatch(ctx context.Context, cfg *config.Config, docs []string) (*predict.BatchResult, error) {
	p, err := New(ctx, Options{Config: cfg})
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.PredictBatch(ctx, docs)
}
