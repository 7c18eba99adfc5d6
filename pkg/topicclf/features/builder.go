package features

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/topicclf/pkg/topicclf/analytics"
	"github.com/cognicore/topicclf/pkg/topicclf/corpus"
	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
	"github.com/cognicore/topicclf/pkg/topicclf/stoplist"
	"github.com/cognicore/topicclf/pkg/topicclf/textnorm"
)

// KindVectorizer tags the vectorizer artifact.
const KindVectorizer = "vectorizer"

// Stager accepts artifacts for a later all-or-nothing commit.
type Stager interface {
	Stage(kind, path string, payload any) error
}

// BuilderOptions configures the feature stage.
type BuilderOptions struct {
	TestFraction float64
	Seed         uint64
	Vectorizer   VectorizerOptions
	OutputPath   string // where the fitted vectorizer is staged

	// Stoplist and Thresholds drive stopword suggestions; nil Stoplist
	// disables them.
	Stoplist   *stoplist.Manager
	Thresholds stoplist.Thresholds

	Logger *zap.Logger
}

// Dataset is the output of Build. Row i of XTrain belongs to Split.Train[i].
type Dataset struct {
	XTrain, XTest  *Matrix
	YTrain, YTest  [][]string
	Split          corpus.Split
	Vectorizer     *Vectorizer
	Stats          analytics.Stats // over the training partition
	StopCandidates []stoplist.Candidate
}

// Builder is the FeatureBuilder: split, normalize, fit TF-IDF on train only,
// transform both partitions and stage the vectorizer.
type Builder struct {
	norm *textnorm.Normalizer
	opts BuilderOptions
	log  *zap.Logger
}

// NewBuilder creates a Builder. A zero TestFraction means 0.3.
func NewBuilder(n *textnorm.Normalizer, opts BuilderOptions) *Builder {
	if opts.TestFraction == 0 {
		opts.TestFraction = 0.3
	}
	if opts.Thresholds == (stoplist.Thresholds{}) {
		opts.Thresholds = stoplist.DefaultThresholds()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{norm: n, opts: opts, log: log}
}

// Build runs the feature stage over c. When st is non-nil the fitted
// vectorizer is staged at OutputPath; nothing is staged on error.
func (b *Builder) Build(ctx context.Context, c *corpus.Corpus, st Stager) (*Dataset, error) {
	if c.Len() == 0 {
		return nil, &internalerr.DataInsufficientError{Stage: "features", Reason: "corpus is empty"}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	normalized := make([]string, c.Len())
	nonEmpty := 0
	for i, d := range c.Docs {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		normalized[i] = b.norm.Normalize(d.Text)
		if normalized[i] != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return nil, &internalerr.DataInsufficientError{
			Stage:  "features",
			Reason: fmt.Sprintf("all %d documents are empty after normalization", c.Len()),
		}
	}

	split, err := corpus.SplitIndices(c.LabelKeys(), b.opts.TestFraction, b.opts.Seed)
	if err != nil {
		return nil, err
	}
	if !split.Stratified {
		b.log.Info("label distribution does not allow a stratified split, using plain random split")
	}
	b.log.Info("split corpus",
		zap.Int("train", len(split.Train)),
		zap.Int("test", len(split.Test)),
		zap.Bool("stratified", split.Stratified))

	trainText := pick(normalized, split.Train)
	testText := pick(normalized, split.Test)

	vec := NewVectorizer(b.opts.Vectorizer)
	xTrain, err := vec.FitTransform(trainText)
	if err != nil {
		return nil, err
	}
	xTest := vec.Transform(testText)
	b.log.Info("fitted vectorizer",
		zap.Int("vocabulary", vec.Dim()),
		zap.Int("train_nonzero", xTrain.NonZero()))

	ds := &Dataset{
		XTrain:     xTrain,
		XTest:      xTest,
		YTrain:     c.Labels(split.Train),
		YTest:      c.Labels(split.Test),
		Split:      split,
		Vectorizer: vec,
	}

	an := analytics.NewAnalyzer()
	for i, text := range trainText {
		an.Process(Analyze(text), c.Docs[split.Train[i]].LabelKey())
	}
	ds.Stats = an.Snapshot()
	if b.opts.Stoplist != nil {
		ds.StopCandidates = b.opts.Stoplist.SuggestCandidates(ds.Stats.StopwordStats(), b.opts.Thresholds)
		for _, cand := range ds.StopCandidates {
			b.log.Debug("stopword candidate",
				zap.String("token", cand.Token),
				zap.Float64("score", cand.Score),
				zap.Float64("df_percent", cand.Stats.DFPercent))
		}
		if len(ds.StopCandidates) > 0 {
			b.log.Info("corpus-specific stopword candidates found", zap.Int("count", len(ds.StopCandidates)))
		}
	}

	if st != nil && b.opts.OutputPath != "" {
		if err := st.Stage(KindVectorizer, b.opts.OutputPath, vec); err != nil {
			return nil, fmt.Errorf("stage vectorizer: %w", err)
		}
	}
	return ds, nil
}

func pick(values []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
