package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/topicclf/pkg/topicclf/lexicon"
	"github.com/cognicore/topicclf/pkg/topicclf/stoplist"
	"github.com/cognicore/topicclf/pkg/topicclf/textnorm"
)

// Stoplist is the on-disk stop-word list.
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}
	return &sl, nil
}

// Components holds the normalization pieces built from a Config.
type Components struct {
	Stoplist   *stoplist.Manager
	Lexicon    *lexicon.Lexicon
	Normalizer *textnorm.Normalizer
}

// Components loads the stop-word and lemma files named in the normalizer
// section and builds the normalizer both training and prediction use.
func (c *Config) Components() (*Components, error) {
	stops := stoplist.NewEnglish()
	if c.Normalizer.StoplistPath != "" {
		sl, err := LoadStoplist(c.Normalizer.StoplistPath)
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		for _, term := range sl.Terms {
			stops.Add(term)
		}
	}

	lex := lexicon.Default()
	if c.Normalizer.LexiconPath != "" {
		extra, err := lexicon.LoadFromYAML(c.Normalizer.LexiconPath)
		if err != nil {
			return nil, fmt.Errorf("load lexicon: %w", err)
		}
		lex.Merge(extra)
	}

	return &Components{
		Stoplist: stops,
		Lexicon:  lex,
		Normalizer: textnorm.New(textnorm.Options{
			Stoplist:    stops,
			Lexicon:     lex,
			StripMarkup: c.Normalizer.StripMarkup,
			FoldAccents: c.Normalizer.FoldAccents,
		}),
	}, nil
}
