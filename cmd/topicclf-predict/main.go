package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/cognicore/topicclf/internal/logger"
	"github.com/cognicore/topicclf/pkg/topicclf"
	"github.com/cognicore/topicclf/pkg/topicclf/config"
	"github.com/cognicore/topicclf/pkg/topicclf/predict"
)

// textFlags collects repeated -text values.
type textFlags []string

func (t *textFlags) String() string { return strings.Join(*t, " | ") }

func (t *textFlags) Set(v string) error {
	*t = append(*t, v)
	return nil
}

type line struct {
	Index  int      `json:"index"`
	Text   string   `json:"text"`
	Labels []string `json:"labels,omitempty"`
	Error  string   `json:"error,omitempty"`
}

func main() {
	var (
		texts      textFlags
		cfgPath    = flag.String("config", "", "Path to YAML config (required)")
		input      = flag.String("input", "", "File with one document per line, - for stdin")
		vectorizer = flag.String("vectorizer", "", "Override the vectorizer artifact path")
		modelPath  = flag.String("model", "", "Override the model artifact path")
		onError    = flag.String("on-error", "", "fail_fast or skip (default from config)")
	)
	flag.Var(&texts, "text", "Document to classify (repeatable)")
	flag.Parse()

	if *cfgPath == "" {
		log.Fatal("--config required")
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *vectorizer != "" {
		cfg.VectorizerOutputPath = *vectorizer
	}
	if *modelPath != "" {
		cfg.ModelOutputPath = *modelPath
	}
	if *onError != "" {
		cfg.Predict.OnError = *onError
	}
	if _, err := predict.ParsePolicy(cfg.Predict.OnError); err != nil {
		log.Fatal(err)
	}

	docs := []string(texts)
	if *input != "" {
		more, err := readDocs(*input)
		if err != nil {
			log.Fatalf("read input: %v", err)
		}
		docs = append(docs, more...)
	}
	if len(docs) == 0 {
		log.Fatal("nothing to classify: pass --text or --input")
	}

	lg, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer lg.Sync()

	ctx := context.Background()
	p, err := topicclf.New(ctx, topicclf.Options{Config: cfg, Logger: lg})
	if err != nil {
		log.Fatalf("init pipeline: %v", err)
	}
	defer p.Close()

	res, err := p.PredictBatch(ctx, docs)
	if err != nil {
		log.Fatalf("predict: %v", err)
	}

	if err := writeLines(os.Stdout, docs, res); err != nil {
		log.Fatalf("write output: %v", err)
	}
}

// readDocs returns the non-blank lines of path.
func readDocs(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var docs []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		docs = append(docs, sc.Text())
	}
	return docs, sc.Err()
}

func writeLines(w io.Writer, docs []string, res *predict.BatchResult) error {
	reasons := make(map[int]string, len(res.Rejected))
	for _, r := range res.Rejected {
		reasons[r.Index] = r.Reason
	}
	enc := json.NewEncoder(w)
	for i, doc := range docs {
		l := line{Index: i, Text: doc, Labels: res.Labels[i]}
		if reason, ok := reasons[i]; ok {
			l.Error = reason
		}
		if err := enc.Encode(l); err != nil {
			return fmt.Errorf("encode line %d: %w", i, err)
		}
	}
	return nil
}
