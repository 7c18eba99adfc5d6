package selection

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/topicclf/internal/metrics"
	"github.com/cognicore/topicclf/pkg/topicclf/features"
	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
	"github.com/cognicore/topicclf/pkg/topicclf/model"
	"github.com/cognicore/topicclf/pkg/topicclf/scoring"
)

// Options configures a Selector.
type Options struct {
	Metric  string // scoring metric name, default "accuracy"
	CVFolds int    // default 5
	Workers int    // concurrent configurations, default runtime.NumCPU()
	Seed    uint64

	// Stager and OutputPath, when set, receive the winning model.
	Stager     features.Stager
	OutputPath string

	// OnFamilyDone is called after each family's search, in configuration order.
	// Exactly one of c and failure is non-nil.
	OnFamilyDone func(c *CandidateResult, failure *internalerr.GridSearchFailure)

	Logger  *zap.Logger
	Metrics *metrics.Search
}

// CandidateResult is a family's winning configuration.
type CandidateResult struct {
	Family         string
	Index          int // position in the family list
	Params         model.Params
	CVScore        float64
	TestScore      float64
	Configs        int
	Skipped        int // configurations that errored during CV
	SearchDuration time.Duration
	Model          *model.Model
}

// Result is the outcome of SelectBest.
type Result struct {
	Best       *CandidateResult
	Candidates []*CandidateResult // successful families, configuration order
	Failures   []*internalerr.GridSearchFailure
}

// Selector is the ModelSelector.
type Selector struct {
	opts   Options
	metric scoring.Metric
	log    *zap.Logger
}

// NewSelector validates opts and applies defaults.
func NewSelector(opts Options) (*Selector, error) {
	if opts.Metric == "" {
		opts.Metric = "accuracy"
	}
	metric, err := scoring.Lookup(opts.Metric)
	if err != nil {
		return nil, err
	}
	if opts.CVFolds == 0 {
		opts.CVFolds = 5
	}
	if opts.CVFolds < 2 {
		return nil, fmt.Errorf("%w: cv_folds must be at least 2, got %d", internalerr.ErrInvalidConfig, opts.CVFolds)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Selector{opts: opts, metric: metric, log: log}, nil
}

// SelectBest searches every family on the training data, scores each
// family's winner on the test data and returns the overall best. Family
// failures are collected in Result.Failures; when every family fails the
// error is a *internalerr.NoViableModelError. Ties go to the earlier grid
// point and then to the earlier family.
func (s *Selector) SelectBest(ctx context.Context, XTrain, XTest *features.Matrix, YTrain, YTest [][]string, specs []FamilySpec) (*Result, error) {
	if XTrain.Len() == 0 || XTrain.Len() != len(YTrain) {
		return nil, fmt.Errorf("%w: %d training rows, %d label tuples", internalerr.ErrInvalidInput, XTrain.Len(), len(YTrain))
	}
	if XTest.Len() == 0 || XTest.Len() != len(YTest) {
		return nil, fmt.Errorf("%w: %d test rows, %d label tuples", internalerr.ErrInvalidInput, XTest.Len(), len(YTest))
	}
	if XTrain.Cols != XTest.Cols {
		return nil, fmt.Errorf("%w: train has %d columns, test %d", internalerr.ErrInvalidInput, XTrain.Cols, XTest.Cols)
	}

	folds := KFolds(labelKeys(YTrain), s.opts.CVFolds)
	if folds == nil {
		s.log.Warn("too few training rows for cross-validation, scoring on the training data",
			zap.Int("rows", XTrain.Len()))
	}

	res := &Result{}
	for i, spec := range specs {
		start := time.Now()
		cand, failure, err := s.searchFamily(ctx, i, spec, folds, XTrain, XTest, YTrain, YTest)
		if err != nil {
			return nil, err
		}
		elapsed := time.Since(start)

		if failure != nil {
			s.log.Warn("grid search failed",
				zap.String("family", spec.Family),
				zap.Duration("duration", elapsed),
				zap.Error(failure.Err))
			s.opts.Metrics.FamilySearched(spec.Family, elapsed, spec.Size(), true)
			res.Failures = append(res.Failures, failure)
		} else {
			cand.SearchDuration = elapsed
			s.log.Info("grid search finished",
				zap.String("family", cand.Family),
				zap.Int("configs", cand.Configs),
				zap.Int("skipped", cand.Skipped),
				zap.Duration("duration", elapsed),
				zap.Float64("cv_score", cand.CVScore),
				zap.Float64("test_score", cand.TestScore),
				zap.String("params", cand.Params.String()))
			s.opts.Metrics.FamilySearched(cand.Family, elapsed, cand.Configs, false)
			s.opts.Metrics.CandidateScored(cand.Family, cand.TestScore)
			res.Candidates = append(res.Candidates, cand)
			if res.Best == nil || cand.TestScore > res.Best.TestScore {
				res.Best = cand
			}
		}
		if s.opts.OnFamilyDone != nil {
			s.opts.OnFamilyDone(cand, failure)
		}
	}

	if res.Best == nil {
		return res, &internalerr.NoViableModelError{Failures: res.Failures}
	}

	res.Best.Model.Metric = s.opts.Metric
	res.Best.Model.Score = res.Best.TestScore
	s.log.Info("selected model",
		zap.String("family", res.Best.Family),
		zap.String("params", res.Best.Params.String()),
		zap.String("metric", s.opts.Metric),
		zap.Float64("test_score", res.Best.TestScore))

	if s.opts.Stager != nil && s.opts.OutputPath != "" {
		if err := s.opts.Stager.Stage(model.KindModel, s.opts.OutputPath, res.Best.Model); err != nil {
			return nil, fmt.Errorf("stage model: %w", err)
		}
	}
	return res, nil
}

// searchFamily returns either a candidate or a recovered failure. A
// configuration that errors is skipped; the family fails only when every
// configuration does. A non-nil error means the whole search must stop
// (context cancellation).
func (s *Selector) searchFamily(ctx context.Context, index int, spec FamilySpec, folds []Fold,
	XTrain, XTest *features.Matrix, YTrain, YTest [][]string) (*CandidateResult, *internalerr.GridSearchFailure, error) {

	fail := func(p model.Params, err error) (*CandidateResult, *internalerr.GridSearchFailure, error) {
		return nil, &internalerr.GridSearchFailure{Family: spec.Family, Params: p, Err: err}, nil
	}

	if _, err := model.Lookup(spec.Family); err != nil {
		return fail(nil, err)
	}
	configs, err := spec.Expand()
	if err != nil {
		return fail(nil, err)
	}

	scores := make([]float64, len(configs))
	errs := make([]error, len(configs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for ci, cfg := range configs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scores[ci], errs[ci] = s.crossValidate(gctx, spec.Family, cfg, folds, XTrain, YTrain)
			if errors.Is(errs[ci], context.Canceled) || errors.Is(errs[ci], context.DeadlineExceeded) {
				return errs[ci]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	best, skipped := -1, 0
	for ci := range configs {
		if errs[ci] != nil {
			skipped++
			s.log.Warn("configuration failed, skipping",
				zap.String("family", spec.Family),
				zap.String("params", configs[ci].String()),
				zap.Error(errs[ci]))
			s.opts.Metrics.ConfigFailed(spec.Family)
			continue
		}
		if best < 0 || scores[ci] > scores[best] {
			best = ci
		}
	}
	if best < 0 {
		if len(configs) == 1 {
			return fail(configs[0], errs[0])
		}
		return fail(nil, fmt.Errorf("all %d configurations failed: %w", len(configs), errors.Join(errs...)))
	}

	m, err := model.Train(spec.Family, configs[best], s.opts.Seed, XTrain, YTrain)
	if err != nil {
		return fail(configs[best], err)
	}
	pred, err := m.Predict(XTest)
	if err != nil {
		return fail(configs[best], err)
	}
	testScore, err := scoring.Score(s.metric, YTest, pred)
	if err != nil {
		return fail(configs[best], err)
	}

	return &CandidateResult{
		Family:    spec.Family,
		Index:     index,
		Params:    configs[best],
		CVScore:   scores[best],
		TestScore: testScore,
		Configs:   len(configs),
		Skipped:   skipped,
		Model:     m,
	}, nil, nil
}

// crossValidate returns the mean fold score of one configuration. Without
// folds the configuration is scored on the rows it was fitted on.
func (s *Selector) crossValidate(ctx context.Context, family string, p model.Params, folds []Fold,
	X *features.Matrix, Y [][]string) (float64, error) {

	if len(folds) == 0 {
		m, err := model.Train(family, p, s.opts.Seed, X, Y)
		if err != nil {
			return 0, err
		}
		pred, err := m.Predict(X)
		if err != nil {
			return 0, err
		}
		return scoring.Score(s.metric, Y, pred)
	}

	var total float64
	for _, f := range folds {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		m, err := model.Train(family, p, s.opts.Seed, X.Subset(f.Train), pickRows(Y, f.Train))
		if err != nil {
			return 0, err
		}
		pred, err := m.Predict(X.Subset(f.Validate))
		if err != nil {
			return 0, err
		}
		score, err := scoring.Score(s.metric, pickRows(Y, f.Validate), pred)
		if err != nil {
			return 0, err
		}
		total += score
	}
	return total / float64(len(folds)), nil
}

func pickRows(Y [][]string, idx []int) [][]string {
	out := make([][]string, len(idx))
	for i, j := range idx {
		out[i] = Y[j]
	}
	return out
}

func labelKeys(Y [][]string) []string {
	out := make([]string, len(Y))
	for i, row := range Y {
		out[i] = strings.Join(row, "\x1f")
	}
	return out
}
