// Package corpus holds labeled documents and the seeded train/test split.
package corpus

import (
	"fmt"
	"strings"

	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

// labelSep joins multi-output labels into one stratification key.
const labelSep = "\x1f"

// Document is one raw text with its labels. Labels has one entry per label
// column of the corpus.
type Document struct {
	Text   string
	Labels []string
}

// LabelKey is the label tuple as a single comparable string.
func (d Document) LabelKey() string {
	return strings.Join(d.Labels, labelSep)
}

// Corpus is an ordered collection of documents sharing one label width.
type Corpus struct {
	TextColumn   string
	LabelColumns []string
	Docs         []Document
}

// Len returns the number of documents.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Docs)
}

// Width is the number of labels per document.
func (c *Corpus) Width() int {
	if len(c.LabelColumns) > 0 {
		return len(c.LabelColumns)
	}
	if len(c.Docs) > 0 {
		return len(c.Docs[0].Labels)
	}
	return 0
}

// Validate checks that every document carries exactly Width labels.
func (c *Corpus) Validate() error {
	width := c.Width()
	if len(c.Docs) > 0 && width == 0 {
		return fmt.Errorf("%w: corpus has no label columns", internalerr.ErrInvalidInput)
	}
	for i, d := range c.Docs {
		if len(d.Labels) != width {
			return fmt.Errorf("%w: document %d has %d labels, want %d",
				internalerr.ErrInvalidInput, i, len(d.Labels), width)
		}
	}
	return nil
}

// Texts returns the raw text of the documents at idx, in idx order.
func (c *Corpus) Texts(idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = c.Docs[j].Text
	}
	return out
}

// Labels returns the label tuples of the documents at idx, in idx order.
func (c *Corpus) Labels(idx []int) [][]string {
	out := make([][]string, len(idx))
	for i, j := range idx {
		out[i] = append([]string(nil), c.Docs[j].Labels...)
	}
	return out
}

// LabelKeys returns the joined label tuple of every document.
func (c *Corpus) LabelKeys() []string {
	out := make([]string, len(c.Docs))
	for i, d := range c.Docs {
		out[i] = d.LabelKey()
	}
	return out
}
