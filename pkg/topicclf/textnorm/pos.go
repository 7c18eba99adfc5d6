package textnorm

import (
	"strings"
	"unicode"

	"github.com/cognicore/topicclf/pkg/topicclf/lexicon"
)

// Tag is a Penn Treebank part-of-speech tag.
type Tag string

const (
	TagNN  Tag = "NN"
	TagNNS Tag = "NNS"
	TagVB  Tag = "VB"
	TagVBD Tag = "VBD"
	TagVBG Tag = "VBG"
	TagVBZ Tag = "VBZ"
	TagJJ  Tag = "JJ"
	TagJJR Tag = "JJR"
	TagJJS Tag = "JJS"
	TagRB  Tag = "RB"
	TagMD  Tag = "MD"
	TagCD  Tag = "CD"
	TagUH  Tag = "UH"
)

// ClassOf maps a tag to the lemma class used for lookup. The first letter
// decides: J adjective, V verb, N noun, R adverb; anything else is a noun.
func ClassOf(t Tag) lexicon.Class {
	if t == "" {
		return lexicon.Noun
	}
	switch t[0] {
	case 'J':
		return lexicon.Adj
	case 'V':
		return lexicon.Verb
	case 'R':
		return lexicon.Adv
	}
	return lexicon.Noun
}

// Tagger is a small rule-based part-of-speech tagger tuned for short,
// lowercased, stopword-free enquiry text.
type Tagger struct {
	lex *lexicon.Lexicon
}

func NewTagger(lex *lexicon.Lexicon) *Tagger {
	if lex == nil {
		lex = lexicon.Default()
	}
	return &Tagger{lex: lex}
}

// Tag assigns a tag to each token, using the previous tag to correct
// ambiguous plurals and verbs.
func (t *Tagger) Tag(tokens []string) []Tag {
	tags := make([]Tag, len(tokens))
	for i, tok := range tokens {
		tags[i] = t.TagWord(tok)
		if i == 0 {
			continue
		}
		prev := tags[i-1]
		switch {
		case prev == TagMD && (tags[i] == TagNN || tags[i] == TagNNS || tags[i] == TagJJ):
			// "would love", "could leaves" is read as a verb after a modal
			tags[i] = TagVB
		case prev == TagRB && tags[i] == TagNNS:
			// "really leaves", "always breaks"
			tags[i] = TagVBZ
		}
	}
	return tags
}

// TagWord tags a single word without context.
func (t *Tagger) TagWord(w string) Tag {
	if w == "" {
		return TagNN
	}
	if isNumeric(w) {
		return TagCD
	}
	if tag, ok := closedClass[w]; ok {
		return tag
	}
	if tag, ok := t.lexiconTag(w); ok {
		return tag
	}
	return suffixTag(w)
}

// lexiconTag uses the exception dictionary: known lemmas keep their class,
// known inflections get the matching inflected tag. Nouns win over verbs for
// forms like "leaves" so context rules can flip them.
func (t *Tagger) lexiconTag(w string) (Tag, bool) {
	if lemma, ok := t.lex.Lookup(lexicon.Noun, w); ok {
		if lemma == w {
			return TagNN, true
		}
		return TagNNS, true
	}
	if lemma, ok := t.lex.Lookup(lexicon.Verb, w); ok {
		switch {
		case lemma == w:
			return TagVB, true
		case strings.HasSuffix(w, "ing"):
			return TagVBG, true
		case strings.HasSuffix(w, "s"):
			return TagVBZ, true
		}
		return TagVBD, true
	}
	if lemma, ok := t.lex.Lookup(lexicon.Adj, w); ok {
		switch {
		case lemma == w:
			return TagJJ, true
		case strings.HasSuffix(w, "st"):
			return TagJJS, true
		}
		return TagJJR, true
	}
	return "", false
}

var adjectiveSuffixes = []string{"ous", "ful", "ive", "able", "ible", "less", "ish", "ical", "ic", "al"}

func suffixTag(w string) Tag {
	n := len(w)
	switch {
	case n > 4 && strings.HasSuffix(w, "ing"):
		return TagVBG
	case n > 3 && strings.HasSuffix(w, "ed"):
		return TagVBD
	case n > 4 && strings.HasSuffix(w, "ly"):
		return TagRB
	case n > 5 && strings.HasSuffix(w, "iest"):
		return TagJJS
	}
	if n > 5 {
		for _, suf := range adjectiveSuffixes {
			if strings.HasSuffix(w, suf) {
				return TagJJ
			}
		}
	}
	switch {
	case strings.HasSuffix(w, "ss"), strings.HasSuffix(w, "us"), strings.HasSuffix(w, "is"):
		return TagNN
	case n > 3 && strings.HasSuffix(w, "s"):
		return TagNNS
	}
	return TagNN
}

func isNumeric(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) && !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}

// closedClass pins words whose suffix would mislead the rules.
var closedClass = map[string]Tag{
	// modals
	"would": TagMD, "could": TagMD, "might": TagMD, "must": TagMD,
	"shall": TagMD, "may": TagMD, "cannot": TagMD, "ought": TagMD,

	// adverbs
	"really": TagRB, "also": TagRB, "never": TagRB, "always": TagRB,
	"often": TagRB, "still": TagRB, "even": TagRB, "already": TagRB,
	"almost": TagRB, "quite": TagRB, "rather": TagRB, "yet": TagRB,
	"ever": TagRB, "perhaps": TagRB, "maybe": TagRB, "soon": TagRB,
	"later": TagRB, "however": TagRB, "well": TagRB, "sometimes": TagRB,
	"today": TagRB, "tomorrow": TagRB, "yesterday": TagRB, "please": TagUH,
	"thanks": TagUH, "yes": TagUH, "ok": TagUH, "okay": TagUH, "hello": TagUH,

	// adjectives
	"amazing": TagJJ, "interesting": TagJJ, "boring": TagJJ, "annoying": TagJJ,
	"missing": TagJJ, "existing": TagJJ, "outstanding": TagJJ, "ongoing": TagJJ,
	"great": TagJJ, "new": TagJJ, "old": TagJJ, "terrible": TagJJ,
	"awful": TagJJ, "poor": TagJJ, "excellent": TagJJ, "nice": TagJJ,
	"happy": TagJJ, "sad": TagJJ, "slow": TagJJ, "fast": TagJJ,
	"urgent": TagJJ, "wet": TagJJ, "damp": TagJJ, "red": TagJJ,
	"blocked": TagJJ, "cracked": TagJJ, "damaged": TagJJ, "faulty": TagJJ,

	// nouns that look inflected
	"thing": TagNN, "things": TagNNS, "morning": TagNN, "evening": TagNN,
	"building": TagNN, "ceiling": TagNN, "ring": TagNN, "king": TagNN,
	"spring": TagNN, "string": TagNN, "wing": TagNN, "nothing": TagNN,
	"something": TagNN, "anything": TagNN, "everything": TagNN,
	"plumbing": TagNN, "flooring": TagNN, "fitting": TagNN, "meeting": TagNN,
	"parking": TagNN, "pricing": TagNN, "billing": TagNN, "booking": TagNN,
	"shipping": TagNN, "heating": TagNN, "housing": TagNN, "wiring": TagNN,
	"bed": TagNN, "shed": TagNN, "hundred": TagNN, "speed": TagNN,
	"seed": TagNN, "feed": TagNN, "sled": TagNN,
	"product": TagNN, "service": TagNN, "sales": TagNNS,
}
