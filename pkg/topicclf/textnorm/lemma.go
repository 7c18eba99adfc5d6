package textnorm

import (
	"strings"

	"github.com/cognicore/topicclf/pkg/topicclf/lexicon"
)

// Lemma reduces word to its dictionary form for the given class. The
// exception lexicon is consulted first; otherwise conservative suffix rules
// apply. Words the rules do not recognise are returned unchanged.
func Lemma(lex *lexicon.Lexicon, word string, class lexicon.Class) string {
	if word == "" {
		return word
	}
	if lex != nil {
		if lemma, ok := lex.Lookup(class, word); ok {
			return lemma
		}
	}
	switch class {
	case lexicon.Noun:
		return nounLemma(word)
	case lexicon.Verb:
		return verbLemma(word)
	case lexicon.Adj:
		return adjLemma(word)
	}
	return word
}

func nounLemma(w string) string {
	if s, ok := pluralStem(w); ok {
		return s
	}
	return w
}

func verbLemma(w string) string {
	if s, ok := pluralStem(w); ok {
		return s
	}
	n := len(w)
	switch {
	case n > 4 && strings.HasSuffix(w, "ied"):
		return w[:n-3] + "y"
	case strings.HasSuffix(w, "eed"):
		return w
	case n > 3 && strings.HasSuffix(w, "ed"):
		if stem := w[:n-2]; isStem(stem) {
			return restoreStem(stem)
		}
	case n > 4 && strings.HasSuffix(w, "ing"):
		if stem := w[:n-3]; isStem(stem) {
			return restoreStem(stem)
		}
	}
	return w
}

func adjLemma(w string) string {
	if n := len(w); n > 5 && strings.HasSuffix(w, "iest") {
		return w[:n-4] + "y"
	}
	return w
}

// pluralStem strips a plural or third-person -s. Stems shorter than three
// letters are rejected so "yes", "ads" and "bus" stay put.
func pluralStem(w string) (string, bool) {
	n := len(w)
	switch {
	case n > 4 && strings.HasSuffix(w, "ies"):
		return w[:n-3] + "y", true
	case strings.HasSuffix(w, "sses"), strings.HasSuffix(w, "zzes"),
		strings.HasSuffix(w, "ches"), strings.HasSuffix(w, "shes"):
		return w[:n-2], true
	case n > 4 && strings.HasSuffix(w, "xes"):
		return w[:n-2], true
	case strings.HasSuffix(w, "ss"), strings.HasSuffix(w, "us"), strings.HasSuffix(w, "is"):
		return "", false
	case n > 3 && strings.HasSuffix(w, "s"):
		return w[:n-1], true
	}
	return "", false
}

// isStem reports whether an -ed/-ing remainder can be a real stem: at least
// two letters and one vowel ("sing" → "s" is not).
func isStem(s string) bool {
	return len(s) >= 2 && strings.ContainsAny(s, "aeiouy")
}

// restoreStem undoes spelling changes made when the suffix was added:
// doubled consonants ("stopp" → "stop") and dropped silent e ("lov" → "love").
func restoreStem(s string) string {
	n := len(s)
	if n >= 4 && s[n-1] == s[n-2] && isConsonant(s[n-1]) && !strings.ContainsRune("lsz", rune(s[n-1])) {
		return s[:n-1]
	}
	if needsSilentE(s) {
		return s + "e"
	}
	return s
}

func needsSilentE(s string) bool {
	n := len(s)
	last := s[n-1]
	if !isConsonant(last) {
		return false
	}
	if n == 2 {
		// "us" → "use", "ow" → "owe"
		return isVowel(s[0])
	}
	for _, suf := range []string{"v", "bl", "iz", "uc", "rg", "dg"} {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	if n >= 5 && strings.HasSuffix(s, "at") && isConsonant(s[n-3]) {
		return true
	}
	// single-syllable consonant-vowel-consonant: "mak", "hop", "writ"
	if strings.ContainsRune("wxy", rune(last)) {
		return false
	}
	return syllables(s) == 1 && isConsonant(s[n-3]) && isVowel(s[n-2])
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func isConsonant(c byte) bool {
	return c >= 'a' && c <= 'z' && !isVowel(c)
}

// syllables counts vowel groups, treating a non-initial y as a vowel.
func syllables(s string) int {
	count := 0
	inGroup := false
	for i := 0; i < len(s); i++ {
		v := isVowel(s[i]) || (s[i] == 'y' && i > 0)
		if v && !inGroup {
			count++
		}
		inGroup = v
	}
	return count
}
