// Package config loads the YAML run configuration shared by the train and
// predict commands.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/topicclf/pkg/topicclf/features"
	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
	"github.com/cognicore/topicclf/pkg/topicclf/model"
	"github.com/cognicore/topicclf/pkg/topicclf/predict"
	"github.com/cognicore/topicclf/pkg/topicclf/scoring"
	"github.com/cognicore/topicclf/pkg/topicclf/selection"
)

// Config is the full run configuration.
type Config struct {
	CorpusPath   string   `yaml:"corpus_path"`
	TextColumn   string   `yaml:"text_column"`
	LabelColumns []string `yaml:"label_columns"`

	VectorizerOutputPath string `yaml:"vectorizer_output_path"`
	ModelOutputPath      string `yaml:"model_output_path"`
	RegistryPath         string `yaml:"registry_path"` // optional SQLite run history
	MetricsPath          string `yaml:"metrics_path"`  // optional Prometheus textfile

	TestFraction float64 `yaml:"test_fraction"`
	Seed         uint64  `yaml:"seed"`
	Scoring      string  `yaml:"scoring"`
	CVFolds      int     `yaml:"cv_folds"`
	Workers      int     `yaml:"workers"` // 0: one per CPU

	Vectorizer features.VectorizerOptions `yaml:"vectorizer"`
	Normalizer Normalizer                 `yaml:"normalizer"`
	Predict    Predict                    `yaml:"predict"`
	Logging    Logging                    `yaml:"logging"`

	Models []selection.FamilySpec `yaml:"models"`
}

// Normalizer configures text normalization.
type Normalizer struct {
	StoplistPath string `yaml:"stoplist_path"` // extra stop words, merged into the English defaults
	LexiconPath  string `yaml:"lexicon_path"`  // extra lemma exceptions, merged into the defaults
	StripMarkup  bool   `yaml:"strip_markup"`
	FoldAccents  bool   `yaml:"fold_accents"`
}

// Predict configures the prediction path.
type Predict struct {
	OnError string `yaml:"on_error"` // fail_fast or skip
}

// Logging selects the logger flavour.
type Logging struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

// Default returns a configuration with every optional setting filled in.
func Default() *Config {
	return &Config{
		TestFraction: 0.3,
		Seed:         42,
		Scoring:      "accuracy",
		CVFolds:      5,
		Vectorizer:   features.DefaultVectorizerOptions(),
		Normalizer:   Normalizer{StripMarkup: true},
		Predict:      Predict{OnError: string(predict.FailFast)},
		Logging:      Logging{Env: "local", Level: "info"},
	}
}

// Load reads a YAML configuration file, expanding ${VAR} and
// ${VAR:-default} references first. Keys absent from the file keep their
// Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ExpandEnv replaces $VAR, ${VAR} and ${VAR:-default}.
func ExpandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		name, def, hasDefault := strings.Cut(key, ":-")
		if v, ok := os.LookupEnv(name); ok && (v != "" || !hasDefault) {
			return v
		}
		return def
	})
}

// ApplyDefaults fills settings left at their zero value.
func (c *Config) ApplyDefaults() {
	if c.Scoring == "" {
		c.Scoring = "accuracy"
	}
	if c.CVFolds == 0 {
		c.CVFolds = 5
	}
	if c.Vectorizer.MinDF < 1 {
		c.Vectorizer.MinDF = 1
	}
	if c.Predict.OnError == "" {
		c.Predict.OnError = string(predict.FailFast)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the settings a training run depends on. corpus_path is
// checked by whoever reads the corpus, since a corpus may also be passed in
// memory.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.TextColumn) == "" {
		problems = append(problems, "text_column is required")
	}
	if len(c.LabelColumns) == 0 {
		problems = append(problems, "label_columns must name at least one column")
	}
	for i, col := range c.LabelColumns {
		if strings.TrimSpace(col) == "" {
			problems = append(problems, fmt.Sprintf("label_columns[%d] is empty", i))
		}
	}
	problems = append(problems, c.artifactProblems()...)
	if !(c.TestFraction > 0 && c.TestFraction < 1) {
		problems = append(problems, fmt.Sprintf("test_fraction must be in (0,1), got %v", c.TestFraction))
	}
	if _, err := scoring.Lookup(c.Scoring); err != nil {
		problems = append(problems, fmt.Sprintf("unknown scoring metric %q", c.Scoring))
	}
	if c.CVFolds < 2 {
		problems = append(problems, fmt.Sprintf("cv_folds must be at least 2, got %d", c.CVFolds))
	}
	if c.Workers < 0 {
		problems = append(problems, "workers must not be negative")
	}
	if c.Vectorizer.MaxFeatures < 0 {
		problems = append(problems, "vectorizer.max_features must not be negative")
	}
	if len(c.Models) == 0 {
		problems = append(problems, "models must list at least one family")
	}
	for i, spec := range c.Models {
		if _, err := model.Lookup(spec.Family); err != nil {
			problems = append(problems, fmt.Sprintf("models[%d]: unknown family %q", i, spec.Family))
		}
	}
	if _, err := predict.ParsePolicy(c.Predict.OnError); err != nil {
		problems = append(problems, fmt.Sprintf("predict.on_error must be fail_fast or skip, got %q", c.Predict.OnError))
	}
	return joinProblems(problems)
}

// ValidatePredict checks only what scoring with existing artifacts needs.
// Artifact paths may be empty when a registry is configured.
func (c *Config) ValidatePredict() error {
	var problems []string
	if c.RegistryPath == "" {
		problems = append(problems, c.artifactProblems()...)
	}
	if _, err := predict.ParsePolicy(c.Predict.OnError); err != nil {
		problems = append(problems, fmt.Sprintf("predict.on_error must be fail_fast or skip, got %q", c.Predict.OnError))
	}
	return joinProblems(problems)
}

func (c *Config) artifactProblems() []string {
	var problems []string
	if c.VectorizerOutputPath == "" {
		problems = append(problems, "vectorizer_output_path is required")
	}
	if c.ModelOutputPath == "" {
		problems = append(problems, "model_output_path is required")
	}
	if c.VectorizerOutputPath != "" && c.VectorizerOutputPath == c.ModelOutputPath {
		problems = append(problems, "vectorizer and model output paths must differ")
	}
	return problems
}

func joinProblems(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", internalerr.ErrInvalidConfig, strings.Join(problems, "; "))
}
