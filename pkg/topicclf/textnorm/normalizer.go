// Package textnorm turns raw enquiry text into the lemma sequence fed to the
// vectorizer. The transform is deterministic and holds no state between calls.
package textnorm

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/cognicore/topicclf/pkg/topicclf/lexicon"
	"github.com/cognicore/topicclf/pkg/topicclf/stoplist"
)

// Options configures a Normalizer.
type Options struct {
	Stoplist    *stoplist.Manager // nil: English defaults
	Lexicon     *lexicon.Lexicon  // nil: lexicon.Default()
	StripMarkup bool              // drop HTML tags and decode entities first
	FoldAccents bool              // "café" → "cafe"
}

// Normalizer applies, in order: lowercase, stopword removal, punctuation
// stripping, whitespace tokenization and POS-aware lemmatization.
//
// A Normalizer is immutable after New and safe for concurrent use. The
// lexicon passed in Options must not be modified afterwards.
type Normalizer struct {
	stops       map[string]struct{}
	lex         *lexicon.Lexicon
	tagger      *Tagger
	stripMarkup bool
	foldAccents bool
}

// New creates a Normalizer. The stoplist is copied.
func New(opts Options) *Normalizer {
	sl := opts.Stoplist
	if sl == nil {
		sl = stoplist.NewEnglish()
	}
	lex := opts.Lexicon
	if lex == nil {
		lex = lexicon.Default()
	}

	all := sl.All()
	stops := make(map[string]struct{}, len(all))
	for _, w := range all {
		stops[w] = struct{}{}
	}

	return &Normalizer{
		stops:       stops,
		lex:         lex,
		tagger:      NewTagger(lex),
		stripMarkup: opts.StripMarkup,
		foldAccents: opts.FoldAccents,
	}
}

// Normalize returns the lemmas of text joined by single spaces.
func (n *Normalizer) Normalize(text string) string {
	return strings.Join(n.Tokens(text), " ")
}

// NormalizeAll normalizes each text, preserving order.
func (n *Normalizer) NormalizeAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = n.Normalize(t)
	}
	return out
}

// Tokens returns the lemma sequence for text. Empty input, or input made only
// of stopwords and punctuation, yields an empty slice.
func (n *Normalizer) Tokens(text string) []string {
	if text == "" {
		return nil
	}
	if n.stripMarkup && strings.ContainsAny(text, "<&") {
		text = StripMarkup(text)
	}
	text = n.fold(text)
	text = strings.ToLower(text)
	text = n.removeStopwords(text)
	// removing punctuation can leave combining marks next to a new base rune
	text = norm.NFKC.String(stripPunctuation(text))
	return n.lemmatize(strings.Fields(text))
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold applies NFKC compatibility folding ("ﬁ" → "fi", full-width digits to
// ASCII) and optionally removes combining accents.
func (n *Normalizer) fold(text string) string {
	text = norm.NFKC.String(text)
	if n.foldAccents {
		if folded, _, err := transform.String(stripAccents, text); err == nil {
			text = folded
		}
	}
	return text
}

func (n *Normalizer) isStop(word string) bool {
	_, ok := n.stops[word]
	return ok
}

// removeStopwords drops every whole word found in the stop set and keeps all
// other runes in place. Apostrophes are not word runes, so "don't" is checked
// as "don" and "t".
func (n *Normalizer) removeStopwords(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		if w := current.String(); !n.isStop(w) {
			b.WriteString(w)
		}
		current.Reset()
	}

	for _, r := range text {
		if isWordRune(r) {
			current.WriteRune(r)
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()
	return b.String()
}

// stripPunctuation removes every rune that is neither a word rune nor space.
func stripPunctuation(text string) string {
	return strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, text)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r)
}

// lemmatize tags the token sequence and reduces each token to its lemma.
// Lemmas that land on a stopword ("others" → "other") are dropped. Dropping a
// token changes the context of its neighbours, so passes repeat until the
// sequence no longer changes.
func (n *Normalizer) lemmatize(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	for i := 0; i < maxLemmaPasses; i++ {
		next := n.lemmaPass(tokens)
		if slices.Equal(next, tokens) {
			return next
		}
		tokens = next
	}
	return tokens
}

func (n *Normalizer) lemmaPass(tokens []string) []string {
	tags := n.tagger.Tag(tokens)
	out := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		lemma := n.stabilize(Lemma(n.lex, tok, ClassOf(tags[i])))
		if lemma == "" || n.isStop(lemma) {
			continue
		}
		out = append(out, lemma)
	}
	return out
}

const maxLemmaPasses = 8

const maxStabilizeRounds = 4

// stabilize re-lemmatizes a word under its context-free tag until it stops
// changing, so a second pass over normalized text finds nothing to reduce.
func (n *Normalizer) stabilize(word string) string {
	for i := 0; i < maxStabilizeRounds; i++ {
		next := Lemma(n.lex, word, ClassOf(n.tagger.TagWord(word)))
		if next == word {
			return word
		}
		word = next
	}
	return word
}
