package stoplist

import (
	"sort"
	"strings"
)

// Manager holds the stop-word set used by the text normalizer.
type Manager struct {
	stops map[string]struct{}
}

// NewManager creates a stoplist from the given words (lowercased).
func NewManager(initialStops []string) *Manager {
	stops := make(map[string]struct{}, len(initialStops))
	for _, s := range initialStops {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		stops[s] = struct{}{}
	}
	return &Manager{stops: stops}
}

// NewEnglish creates a stoplist seeded with the English defaults.
func NewEnglish() *Manager {
	return NewManager(English())
}

// IsStop checks if a token is a stopword
func (m *Manager) IsStop(token string) bool {
	_, ok := m.stops[token]
	return ok
}

// Add adds a token to the stoplist
func (m *Manager) Add(token string) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token != "" {
		m.stops[token] = struct{}{}
	}
}

// Remove removes a token from the stoplist
func (m *Manager) Remove(token string) {
	delete(m.stops, strings.ToLower(token))
}

// Len returns the number of stopwords.
func (m *Manager) Len() int {
	return len(m.stops)
}

// All returns all stopwords in lexicographic order.
func (m *Manager) All() []string {
	result := make([]string, 0, len(m.stops))
	for s := range m.stops {
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}

// Stats holds corpus statistics for candidate evaluation
type Stats struct {
	Token        string
	DF           int64
	DFPercent    float64
	IDF          float64
	LabelEntropy float64 // normalized to [0,1]; 1 = spread evenly over labels
}

// Candidate represents a candidate stopword
type Candidate struct {
	Token string
	Score float64 // confidence score
	Stats Stats
}

// Thresholds defines criteria for stopword identification
type Thresholds struct {
	DFPercent    float64 // e.g. 50: appears in half of the documents
	LabelEntropy float64 // e.g. 0.9: carries almost no label information
	MinDF        int64   // ignore tokens seen in fewer documents
}

// DefaultThresholds returns the thresholds used during feature building.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DFPercent:    50.0,
		LabelEntropy: 0.9,
		MinDF:        2,
	}
}

// SuggestCandidates returns tokens that look like corpus-specific stopwords:
// frequent across documents and evenly spread over labels. Tokens already in
// the stoplist are skipped. Results are ordered by score, then token.
func (m *Manager) SuggestCandidates(stats []Stats, thresholds Thresholds) []Candidate {
	var candidates []Candidate
	for _, s := range stats {
		if m.IsStop(s.Token) {
			continue // already a stopword
		}
		if s.DF < thresholds.MinDF {
			continue
		}
		if s.DFPercent <= thresholds.DFPercent || s.LabelEntropy <= thresholds.LabelEntropy {
			continue
		}
		candidates = append(candidates, Candidate{
			Token: s.Token,
			Score: (s.DFPercent/100.0 + s.LabelEntropy) / 2.0,
			Stats: s,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Token < candidates[j].Token
	})
	return candidates
}
