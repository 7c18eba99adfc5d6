package internalerr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrNotConverged     = errors.New("did not converge")
)

// DataInsufficientError reports that training cannot proceed because the
// corpus carries no usable signal.
type DataInsufficientError struct {
	Stage  string
	Reason string
}

func (e *DataInsufficientError) Error() string {
	return fmt.Sprintf("%s: insufficient data: %s", e.Stage, e.Reason)
}

// GridSearchFailure records one model family whose search could not complete.
// It is recovered inside model selection and never reaches the caller on its own.
type GridSearchFailure struct {
	Family string
	Params map[string]any
	Err    error
}

func (e *GridSearchFailure) Error() string {
	if len(e.Params) > 0 {
		return fmt.Sprintf("grid search %s %v: %v", e.Family, e.Params, e.Err)
	}
	return fmt.Sprintf("grid search %s: %v", e.Family, e.Err)
}

func (e *GridSearchFailure) Unwrap() error { return e.Err }

// NoViableModelError is returned when every configured family failed.
type NoViableModelError struct {
	Failures []*GridSearchFailure
}

func (e *NoViableModelError) Error() string {
	if len(e.Failures) == 0 {
		return "selection: no viable model: no model families configured"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return "selection: no viable model: " + strings.Join(parts, "; ")
}

// ArtifactLoadError reports a missing, corrupt or incompatible artifact.
type ArtifactLoadError struct {
	Path string
	Err  error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("load artifact %s: %v", e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error { return e.Err }

// PredictionInputError flags a raw document that cannot be scored.
// Index is the position in the caller's batch, or -1 for the batch itself.
type PredictionInputError struct {
	Index  int
	Reason string
}

func (e *PredictionInputError) Error() string {
	if e.Index < 0 {
		return "predict: invalid input: " + e.Reason
	}
	return fmt.Sprintf("predict: document %d: %s", e.Index, e.Reason)
}

func (e *PredictionInputError) Unwrap() error { return ErrInvalidInput }
