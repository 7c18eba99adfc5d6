// Package registry records the history of training runs: which family won,
// with which parameters and score, and where its artifacts were written.
package registry

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Store is the persistence interface for run history.
type Store interface {
	Close() error

	// RecordRun inserts or replaces a run together with its candidates.
	RecordRun(ctx context.Context, run Run, candidates []Candidate) error
	// GetRun returns the run with the given ID or internalerr.ErrNotFound.
	GetRun(ctx context.Context, id string) (Run, error)
	// LatestRun returns the most recent run with the given status
	// (any status when empty) or internalerr.ErrNotFound.
	LatestRun(ctx context.Context, status string) (Run, error)
	// Candidates lists the per-family outcomes of a run in search order.
	Candidates(ctx context.Context, runID string) ([]Candidate, error)
}

// Run describes one training invocation.
type Run struct {
	ID             string
	Status         string
	Error          string
	StartedAt      time.Time
	FinishedAt     time.Time
	Family         string
	Params         string
	Metric         string
	Score          float64
	VectorizerPath string
	ModelPath      string
	TrainRows      int
	TestRows       int
	Vocabulary     int
}

// Candidate is the outcome of one family's grid search within a run.
// Error is set when the family failed and was excluded from the final round.
type Candidate struct {
	RunID      string
	Position   int
	Family     string
	Params     string
	CVScore    float64
	TestScore  float64
	Configs    int
	DurationMS int64
	Error      string
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a new lexicographically sortable run identifier.
func NewRunID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
