package analytics

import (
	"math"
	"testing"

	"github.com/cognicore/topicclf/pkg/topicclf/stoplist"
)

func TestAnalyzerCounts(t *testing.T) {
	a := NewAnalyzer()
	a.Process([]string{"leak", "pipe", "leak"}, "plumbing")
	a.Process([]string{"please", "fix", "pipe"}, "plumbing")
	a.Process([]string{"please", "socket"}, "electrical")
	a.Process(nil, "electrical")

	stats := a.Snapshot()
	if stats.TotalDocs != 4 {
		t.Fatalf("expected 4 docs, got %d", stats.TotalDocs)
	}
	if stats.EmptyDocs != 1 {
		t.Fatalf("expected 1 empty doc, got %d", stats.EmptyDocs)
	}
	if stats.TokenDF["leak"] != 1 {
		t.Errorf("leak DF = %d, want 1 (counted once per doc)", stats.TokenDF["leak"])
	}
	if stats.TokenDF["pipe"] != 2 {
		t.Errorf("pipe DF = %d, want 2", stats.TokenDF["pipe"])
	}
	if stats.VocabularySize() != 5 {
		t.Errorf("vocabulary = %d, want 5", stats.VocabularySize())
	}

	top := stats.TopTokens(2)
	if len(top) != 2 || top[0].Token != "pipe" || top[1].Token != "please" {
		t.Errorf("unexpected top tokens %+v", top)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	a := NewAnalyzer()
	a.Process([]string{"leak"}, "plumbing")
	stats := a.Snapshot()
	a.Process([]string{"leak"}, "plumbing")
	if stats.TokenDF["leak"] != 1 {
		t.Fatalf("snapshot changed after Process")
	}
}

func TestLabelEntropy(t *testing.T) {
	a := NewAnalyzer()
	a.Process([]string{"please", "leak"}, "plumbing")
	a.Process([]string{"please", "leak"}, "plumbing")
	a.Process([]string{"please", "socket"}, "electrical")
	a.Process([]string{"please", "socket"}, "electrical")

	byToken := map[string]stoplist.Stats{}
	for _, s := range a.Snapshot().StopwordStats() {
		byToken[s.Token] = s
	}

	if h := byToken["please"].LabelEntropy; math.Abs(h-1) > 1e-9 {
		t.Errorf("please entropy = %f, want 1", h)
	}
	if h := byToken["leak"].LabelEntropy; h != 0 {
		t.Errorf("leak entropy = %f, want 0", h)
	}
	if p := byToken["please"].DFPercent; p != 100 {
		t.Errorf("please DF%% = %f, want 100", p)
	}

	cands := stoplist.NewEnglish().SuggestCandidates(a.Snapshot().StopwordStats(), stoplist.DefaultThresholds())
	if len(cands) != 1 || cands[0].Token != "please" {
		t.Fatalf("expected please as only candidate, got %+v", cands)
	}
}

func TestStopwordStatsEmpty(t *testing.T) {
	if got := NewAnalyzer().Snapshot().StopwordStats(); len(got) != 0 {
		t.Fatalf("expected no stats, got %d", len(got))
	}
}
