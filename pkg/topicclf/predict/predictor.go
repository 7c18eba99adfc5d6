// Package predict scores raw documents with the artifacts a training run
// committed.
package predict

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cognicore/topicclf/internal/metrics"
	"github.com/cognicore/topicclf/pkg/topicclf/artifact"
	"github.com/cognicore/topicclf/pkg/topicclf/features"
	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
	"github.com/cognicore/topicclf/pkg/topicclf/model"
	"github.com/cognicore/topicclf/pkg/topicclf/textnorm"
)

// Policy decides what a batch does with a malformed document.
type Policy string

const (
	// FailFast aborts the batch on the first malformed document.
	FailFast Policy = "fail_fast"
	// Skip predicts the well-formed documents and reports the rest.
	Skip Policy = "skip"
)

// ParsePolicy maps a configuration value to a Policy. Empty means FailFast.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", FailFast:
		return FailFast, nil
	case Skip:
		return Skip, nil
	}
	return "", fmt.Errorf("%w: unknown prediction error policy %q", internalerr.ErrInvalidConfig, s)
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithLogger sets the logger used for batch summaries.
func WithLogger(l *zap.Logger) Option {
	return func(p *Predictor) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMetrics counts scored and rejected documents.
func WithMetrics(m *metrics.Search) Option {
	return func(p *Predictor) { p.metrics = m }
}

// Predictor holds a loaded vectorizer and model. It is read-only after Load
// and safe for concurrent use.
type Predictor struct {
	norm    *textnorm.Normalizer
	vec     *features.Vectorizer
	model   *model.Model
	runID   string
	log     *zap.Logger
	metrics *metrics.Search
}

// Load reads both artifacts and checks they belong together. Any failure is
// an *internalerr.ArtifactLoadError naming the offending path.
func Load(vectorizerPath, modelPath string, n *textnorm.Normalizer, opts ...Option) (*Predictor, error) {
	vec := &features.Vectorizer{}
	vecEnv, err := artifact.Load(vectorizerPath, features.KindVectorizer, vec)
	if err != nil {
		return nil, err
	}
	m := &model.Model{}
	modelEnv, err := artifact.Load(modelPath, model.KindModel, m)
	if err != nil {
		return nil, err
	}
	if vecEnv.RunID != "" && modelEnv.RunID != "" && vecEnv.RunID != modelEnv.RunID {
		return nil, &internalerr.ArtifactLoadError{
			Path: modelPath,
			Err: fmt.Errorf("model is from run %s but vectorizer %s is from run %s",
				modelEnv.RunID, vectorizerPath, vecEnv.RunID),
		}
	}
	p, err := New(vec, m, n, opts...)
	if err != nil {
		return nil, &internalerr.ArtifactLoadError{Path: modelPath, Err: err}
	}
	p.runID = modelEnv.RunID
	p.log.Info("loaded artifacts",
		zap.String("run_id", p.runID),
		zap.String("family", m.Family),
		zap.Int("vocabulary", vec.Dim()))
	return p, nil
}

// New builds a Predictor from in-memory components.
func New(vec *features.Vectorizer, m *model.Model, n *textnorm.Normalizer, opts ...Option) (*Predictor, error) {
	if vec.Dim() != m.InputDim {
		return nil, fmt.Errorf("vectorizer produces %d features but model expects %d", vec.Dim(), m.InputDim)
	}
	if n == nil {
		n = textnorm.New(textnorm.Options{})
	}
	p := &Predictor{norm: n, vec: vec, model: m, log: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// RunID is the training run the artifacts came from, if recorded.
func (p *Predictor) RunID() string { return p.runID }

// Vectorizer returns the loaded vectorizer.
func (p *Predictor) Vectorizer() *features.Vectorizer { return p.vec }

// Model returns the loaded model.
func (p *Predictor) Model() *model.Model { return p.model }

// Predict labels every document in input order, failing on the first
// malformed one.
func (p *Predictor) Predict(docs []string) ([][]string, error) {
	res, err := p.PredictBatch(docs, FailFast)
	if err != nil {
		return nil, err
	}
	return res.Labels, nil
}

// BatchResult holds per-document outcomes. Labels[i] is nil exactly when
// document i was rejected.
type BatchResult struct {
	Labels   [][]string
	Rejected []*internalerr.PredictionInputError
}

// PredictBatch labels docs under the given policy. Under Skip the returned
// error is always nil and rejected documents are listed in Rejected.
func (p *Predictor) PredictBatch(docs []string, policy Policy) (*BatchResult, error) {
	if len(docs) == 0 {
		return nil, &internalerr.PredictionInputError{Index: -1, Reason: "no documents"}
	}
	res := &BatchResult{Labels: make([][]string, len(docs))}
	for i, doc := range docs {
		normalized, perr := p.prepare(i, doc)
		if perr != nil {
			if policy != Skip {
				p.metrics.Predicted("rejected", 1)
				return nil, perr
			}
			res.Rejected = append(res.Rejected, perr)
			continue
		}
		res.Labels[i] = p.model.PredictOne(p.vec.TransformOne(normalized))
	}

	scored := len(docs) - len(res.Rejected)
	p.metrics.Predicted("ok", scored)
	p.metrics.Predicted("rejected", len(res.Rejected))
	if len(res.Rejected) > 0 {
		p.log.Warn("skipped malformed documents",
			zap.Int("rejected", len(res.Rejected)),
			zap.Int("scored", scored))
	}
	return res, nil
}

func (p *Predictor) prepare(i int, doc string) (string, *internalerr.PredictionInputError) {
	switch {
	case doc == "":
		return "", &internalerr.PredictionInputError{Index: i, Reason: "empty document"}
	case !utf8.ValidString(doc):
		return "", &internalerr.PredictionInputError{Index: i, Reason: "document is not valid UTF-8"}
	case strings.TrimSpace(doc) == "":
		return "", &internalerr.PredictionInputError{Index: i, Reason: "document is whitespace only"}
	}
	// stop words only normalize to "" and score as an all-zero row
	return p.norm.Normalize(doc), nil
}
