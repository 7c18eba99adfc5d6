package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cognicore/topicclf/internal/logger"
	"github.com/cognicore/topicclf/internal/metrics"
	"github.com/cognicore/topicclf/pkg/topicclf"
	"github.com/cognicore/topicclf/pkg/topicclf/config"
)

type summary struct {
	RunID      string          `json:"run_id"`
	Family     string          `json:"family"`
	Params     string          `json:"params"`
	Metric     string          `json:"metric"`
	TestScore  float64         `json:"test_score"`
	TrainRows  int             `json:"train_rows"`
	TestRows   int             `json:"test_rows"`
	Vocabulary int             `json:"vocabulary"`
	Vectorizer string          `json:"vectorizer"`
	Model      string          `json:"model"`
	Families   []familySummary `json:"families"`
}

type familySummary struct {
	Family    string  `json:"family"`
	Params    string  `json:"params,omitempty"`
	CVScore   float64 `json:"cv_score"`
	TestScore float64 `json:"test_score"`
	Configs   int     `json:"configs"`
	Duration  string  `json:"duration"`
	Error     string  `json:"error,omitempty"`
}

func main() {
	var (
		cfgPath  = flag.String("config", "", "Path to YAML config (required)")
		seed     = flag.Int64("seed", -1, "Override the configured random seed")
		workers  = flag.Int("workers", -1, "Override the number of concurrent grid configurations")
		logLevel = flag.String("log-level", "", "Override the configured log level")
	)
	flag.Parse()

	if *cfgPath == "" {
		log.Fatal("--config required")
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *seed >= 0 {
		cfg.Seed = uint64(*seed)
	}
	if *workers >= 0 {
		cfg.Workers = *workers
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	lg, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer lg.Sync()

	reg := prometheus.NewRegistry()
	m, err := metrics.NewSearch(reg)
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := topicclf.New(ctx, topicclf.Options{Config: cfg, Logger: lg, Metrics: m})
	if err != nil {
		log.Fatalf("init pipeline: %v", err)
	}

	start := time.Now()
	res, trainErr := p.Train(ctx)

	if cfg.MetricsPath != "" {
		if err := metrics.WriteTextfile(cfg.MetricsPath, reg); err != nil {
			lg.Warn("write metrics", zap.String("path", cfg.MetricsPath), zap.Error(err))
		}
	}
	if err := p.Close(); err != nil {
		lg.Warn("close registry", zap.Error(err))
	}
	if trainErr != nil {
		lg.Sync()
		log.Fatalf("train: %v", trainErr)
	}
	lg.Info("training finished", zap.Duration("elapsed", time.Since(start)))

	out, err := json.MarshalIndent(summarize(cfg, res), "", "  ")
	if err != nil {
		log.Fatalf("marshal summary: %v", err)
	}
	fmt.Println(string(out))
}

func summarize(cfg *config.Config, res *topicclf.TrainResult) summary {
	s := summary{
		RunID:      res.RunID,
		Family:     res.Best.Family,
		Params:     res.Best.Params.String(),
		Metric:     cfg.Scoring,
		TestScore:  res.Best.TestScore,
		TrainRows:  len(res.Split.Train),
		TestRows:   len(res.Split.Test),
		Vocabulary: res.Vocabulary,
		Vectorizer: res.VectorizerPath,
		Model:      res.ModelPath,
	}
	for _, c := range res.Candidates {
		s.Families = append(s.Families, familySummary{
			Family:    c.Family,
			Params:    c.Params.String(),
			CVScore:   c.CVScore,
			TestScore: c.TestScore,
			Configs:   c.Configs,
			Duration:  c.SearchDuration.Round(time.Millisecond).String(),
		})
	}
	for _, f := range res.Failures {
		s.Families = append(s.Families, familySummary{Family: f.Family, Error: f.Err.Error()})
	}
	return s
}
