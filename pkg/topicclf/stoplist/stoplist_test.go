package stoplist

import (
	"testing"
)

func TestManagerBasic(t *testing.T) {
	mgr := NewManager([]string{"The", "a", " and "})

	if !mgr.IsStop("the") {
		t.Error("'the' should be a stopword (lowercased on load)")
	}
	if !mgr.IsStop("and") {
		t.Error("'and' should be a stopword (trimmed on load)")
	}
	if mgr.IsStop("hello") {
		t.Error("'hello' should not be a stopword")
	}
}

func TestManagerAddRemove(t *testing.T) {
	mgr := NewManager([]string{"the"})

	mgr.Add("Test")
	if !mgr.IsStop("test") {
		t.Error("'test' should be stopword after adding")
	}

	mgr.Remove("test")
	if mgr.IsStop("test") {
		t.Error("'test' should not be stopword after removing")
	}
}

func TestManagerAllSorted(t *testing.T) {
	mgr := NewManager([]string{"the", "a", "and"})

	all := mgr.All()
	expected := []string{"a", "and", "the"}
	if len(all) != len(expected) {
		t.Fatalf("Expected %d stopwords, got %d", len(expected), len(all))
	}
	for i := range expected {
		if all[i] != expected[i] {
			t.Errorf("All()[%d] = %q, want %q", i, all[i], expected[i])
		}
	}
}

func TestEnglishDefaults(t *testing.T) {
	mgr := NewEnglish()

	for _, w := range []string{"i", "this", "is", "the", "don", "t", "other"} {
		if !mgr.IsStop(w) {
			t.Errorf("%q should be an English stopword", w)
		}
	}
	for _, w := range []string{"love", "product", "terrible", "really"} {
		if mgr.IsStop(w) {
			t.Errorf("%q should not be an English stopword", w)
		}
	}
}

func TestSuggestCandidates(t *testing.T) {
	mgr := NewManager([]string{"the"})

	stats := []Stats{
		{Token: "the", DF: 90, DFPercent: 90, LabelEntropy: 0.99},     // already a stopword
		{Token: "customer", DF: 80, DFPercent: 80, LabelEntropy: 0.97}, // candidate
		{Token: "leak", DF: 30, DFPercent: 30, LabelEntropy: 0.95},     // too rare
		{Token: "meter", DF: 70, DFPercent: 70, LabelEntropy: 0.4},     // informative
		{Token: "please", DF: 60, DFPercent: 60, LabelEntropy: 0.92},   // candidate
		{Token: "hi", DF: 1, DFPercent: 100, LabelEntropy: 1},          // below MinDF
	}

	candidates := mgr.SuggestCandidates(stats, DefaultThresholds())
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d: %+v", len(candidates), candidates)
	}
	if candidates[0].Token != "customer" || candidates[1].Token != "please" {
		t.Errorf("Unexpected candidate order: %s, %s", candidates[0].Token, candidates[1].Token)
	}
	if candidates[0].Score <= candidates[1].Score {
		t.Error("Candidates should be ordered by descending score")
	}
}
