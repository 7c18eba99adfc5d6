package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

// LoadStats reports what happened to the rows of a CSV file.
type LoadStats struct {
	Rows             int
	Loaded           int
	SkippedEmpty     int // text cell empty or whitespace
	SkippedUnlabeled int // at least one label cell empty
}

// LoadCSVFile reads a corpus from a CSV file with a header row.
func LoadCSVFile(path, textColumn string, labelColumns []string) (*Corpus, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()
	return LoadCSV(f, textColumn, labelColumns)
}

// LoadCSV reads a corpus from CSV. The header must name textColumn and every
// label column; other columns are ignored. Rows without text or with a
// missing label are skipped and counted.
func LoadCSV(r io.Reader, textColumn string, labelColumns []string) (*Corpus, LoadStats, error) {
	var stats LoadStats
	if len(labelColumns) == 0 {
		return nil, stats, fmt.Errorf("%w: no label columns", internalerr.ErrInvalidInput)
	}

	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		// no header at all: an empty corpus, not a malformed one
		return &Corpus{TextColumn: textColumn, LabelColumns: labelColumns}, stats, nil
	}
	if err != nil {
		return nil, stats, fmt.Errorf("read header: %w", err)
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	textIdx, ok := pos[textColumn]
	if !ok {
		return nil, stats, fmt.Errorf("%w: text column %q not in header", internalerr.ErrInvalidInput, textColumn)
	}
	labelIdx := make([]int, len(labelColumns))
	for i, col := range labelColumns {
		idx, ok := pos[col]
		if !ok {
			return nil, stats, fmt.Errorf("%w: label column %q not in header", internalerr.ErrInvalidInput, col)
		}
		labelIdx[i] = idx
	}

	c := &Corpus{TextColumn: textColumn, LabelColumns: append([]string(nil), labelColumns...)}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read row %d: %w", stats.Rows+1, err)
		}
		stats.Rows++

		text := cell(rec, textIdx)
		if strings.TrimSpace(text) == "" {
			stats.SkippedEmpty++
			continue
		}
		labels := make([]string, len(labelIdx))
		missing := false
		for i, idx := range labelIdx {
			labels[i] = strings.TrimSpace(cell(rec, idx))
			if labels[i] == "" {
				missing = true
			}
		}
		if missing {
			stats.SkippedUnlabeled++
			continue
		}
		c.Docs = append(c.Docs, Document{Text: text, Labels: labels})
		stats.Loaded++
	}
	return c, stats, nil
}

func cell(rec []string, idx int) string {
	if idx < len(rec) {
		return rec[idx]
	}
	return ""
}
