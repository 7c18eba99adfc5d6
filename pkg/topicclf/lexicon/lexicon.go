package lexicon

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Class is the coarse part of speech a lemma is looked up under.
type Class int

const (
	Noun Class = iota
	Verb
	Adj
	Adv
)

var classNames = map[Class]string{
	Noun: "noun",
	Verb: "verb",
	Adj:  "adj",
	Adv:  "adv",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// ParseClass converts "noun", "verb", "adj"/"adjective", "adv"/"adverb".
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "noun", "n":
		return Noun, nil
	case "verb", "v":
		return Verb, nil
	case "adj", "adjective", "a":
		return Adj, nil
	case "adv", "adverb", "r":
		return Adv, nil
	}
	return Noun, fmt.Errorf("unknown word class %q", s)
}

// Lexicon stores irregular inflections that suffix rules cannot recover:
// - went, gone → go (verb)
// - children → child (noun)
// - better, best → good (adj)
//
// Lookups are per class, so "leaves" can map to "leaf" as a noun and to
// "leave" as a verb. A lemma is always registered as its own variant, which
// stops suffix rules from rewriting it ("news" stays "news").
type Lexicon struct {
	// class -> variant -> lemma
	reverseIndex map[Class]map[string]string
	groups       int
}

// New creates an empty lexicon.
func New() *Lexicon {
	return &Lexicon{reverseIndex: make(map[Class]map[string]string)}
}

// LoadFromYAML loads exception groups from a YAML file.
//
// Expected format:
//
//	exceptions:
//	  - class: verb
//	    lemma: go
//	    variants: [went, gone, goes]
//	  - class: noun
//	    lemma: meter
//	    variants: [metres, meters, metre]
func LoadFromYAML(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config struct {
		Exceptions []struct {
			Class    string   `yaml:"class"`
			Lemma    string   `yaml:"lemma"`
			Variants []string `yaml:"variants"`
		} `yaml:"exceptions"`
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	lex := New()
	for i, entry := range config.Exceptions {
		class, err := ParseClass(entry.Class)
		if err != nil {
			return nil, fmt.Errorf("exception %d: %w", i, err)
		}
		if strings.TrimSpace(entry.Lemma) == "" {
			return nil, fmt.Errorf("exception %d: lemma is required", i)
		}
		lex.AddGroup(class, entry.Lemma, entry.Variants)
	}
	return lex, nil
}

// AddGroup registers variants of a lemma for one word class. Later groups
// override earlier mappings of the same variant.
func (l *Lexicon) AddGroup(class Class, lemma string, variants []string) {
	lemma = strings.ToLower(strings.TrimSpace(lemma))
	if lemma == "" {
		return
	}
	idx := l.reverseIndex[class]
	if idx == nil {
		idx = make(map[string]string)
		l.reverseIndex[class] = idx
	}
	idx[lemma] = lemma
	for _, v := range variants {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			idx[v] = lemma
		}
	}
	l.groups++
}

// Lookup returns the lemma registered for word under class.
func (l *Lexicon) Lookup(class Class, word string) (string, bool) {
	lemma, ok := l.reverseIndex[class][word]
	return lemma, ok
}

// IsInflection reports whether word is a registered variant that differs
// from its lemma under class.
func (l *Lexicon) IsInflection(class Class, word string) bool {
	lemma, ok := l.reverseIndex[class][word]
	return ok && lemma != word
}

// Merge copies every mapping of other into l; other wins on conflicts.
func (l *Lexicon) Merge(other *Lexicon) {
	if other == nil {
		return
	}
	for class, idx := range other.reverseIndex {
		dst := l.reverseIndex[class]
		if dst == nil {
			dst = make(map[string]string, len(idx))
			l.reverseIndex[class] = dst
		}
		for variant, lemma := range idx {
			dst[variant] = lemma
		}
	}
	l.groups += other.groups
}

// Stats returns statistics about the lexicon contents.
func (l *Lexicon) Stats() Stats {
	s := Stats{Groups: l.groups, PerClass: make(map[Class]int, len(l.reverseIndex))}
	for class, idx := range l.reverseIndex {
		s.PerClass[class] = len(idx)
		s.Entries += len(idx)
	}
	return s
}

// Stats holds statistics about lexicon contents.
type Stats struct {
	Groups   int           // AddGroup calls
	Entries  int           // variant mappings, lemmas included
	PerClass map[Class]int // variant mappings per class
}
