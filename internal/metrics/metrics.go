// Package metrics exposes Prometheus collectors for training runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "topicclf"

// Search records grid-search timing and outcomes. A nil *Search is valid
// and records nothing.
type Search struct {
	duration    *prometheus.HistogramVec
	configs     *prometheus.CounterVec
	failures    *prometheus.CounterVec
	skipped     *prometheus.CounterVec
	testScore   *prometheus.GaugeVec
	runs        *prometheus.CounterVec
	vocabulary  prometheus.Gauge
	predictions *prometheus.CounterVec
}

// NewSearch creates the collectors and registers them on reg.
func NewSearch(reg prometheus.Registerer) (*Search, error) {
	s := &Search{
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "grid_search_duration_seconds",
				Help:      "Wall time of one family's cross-validated grid search",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
			},
			[]string{"family"},
		),
		configs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grid_configs_evaluated_total",
				Help:      "Hyperparameter configurations evaluated",
			},
			[]string{"family"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grid_search_failures_total",
				Help:      "Families whose grid search failed",
			},
			[]string{"family"},
		),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grid_configs_failed_total",
				Help:      "Configurations skipped because cross-validation errored",
			},
			[]string{"family"},
		),
		testScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "candidate_test_score",
				Help:      "Held-out score of each family's best configuration",
			},
			[]string{"family"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "train_runs_total",
				Help:      "Training runs by outcome",
			},
			[]string{"status"},
		),
		vocabulary: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "vocabulary_size",
				Help:      "Columns of the fitted vectorizer",
			},
		),
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Documents scored by outcome",
			},
			[]string{"status"},
		),
	}
	for _, c := range []prometheus.Collector{s.duration, s.configs, s.failures, s.skipped, s.testScore, s.runs, s.vocabulary, s.predictions} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return s, nil
}

// FamilySearched records a finished family search.
func (s *Search) FamilySearched(family string, d time.Duration, configs int, failed bool) {
	if s == nil {
		return
	}
	s.duration.WithLabelValues(family).Observe(d.Seconds())
	s.configs.WithLabelValues(family).Add(float64(configs))
	if failed {
		s.failures.WithLabelValues(family).Inc()
	}
}

// ConfigFailed counts one configuration dropped from a family's search.
func (s *Search) ConfigFailed(family string) {
	if s == nil {
		return
	}
	s.skipped.WithLabelValues(family).Inc()
}

// CandidateScored records a family winner's held-out score.
func (s *Search) CandidateScored(family string, score float64) {
	if s == nil {
		return
	}
	s.testScore.WithLabelValues(family).Set(score)
}

// RunFinished counts a training run with status "succeeded" or "failed".
func (s *Search) RunFinished(status string) {
	if s == nil {
		return
	}
	s.runs.WithLabelValues(status).Inc()
}

// VocabularySize records the fitted vectorizer width.
func (s *Search) VocabularySize(n int) {
	if s == nil {
		return
	}
	s.vocabulary.Set(float64(n))
}

// Predicted counts scored documents with status "ok" or "rejected".
func (s *Search) Predicted(status string, n int) {
	if s == nil || n == 0 {
		return
	}
	s.predictions.WithLabelValues(status).Add(float64(n))
}

// WriteTextfile writes every metric in g to path in the text exposition
// format, for node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
