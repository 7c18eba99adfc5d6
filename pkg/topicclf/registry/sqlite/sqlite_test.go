package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
	"github.com/cognicore/topicclf/pkg/topicclf/registry"
)

func openTemp(t *testing.T) registry.Store {
	t.Helper()
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRecordAndGetRun(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)

	start := time.Date(2024, 3, 1, 10, 0, 0, 123, time.UTC)
	run := registry.Run{
		ID:             registry.NewRunID(start),
		Status:         registry.StatusSucceeded,
		StartedAt:      start,
		FinishedAt:     start.Add(2 * time.Second),
		Family:         "knn",
		Params:         "n_neighbors=3",
		Metric:         "accuracy",
		Score:          0.75,
		VectorizerPath: "models/features.json",
		ModelPath:      "models/model.json",
		TrainRows:      70,
		TestRows:       30,
		Vocabulary:     412,
	}
	cands := []registry.Candidate{
		{Family: "knn", Params: "n_neighbors=3", CVScore: 0.7, TestScore: 0.75, Configs: 4, DurationMS: 12},
		{Family: "mlp", Error: "did not converge"},
	}
	if err := st.RecordRun(ctx, run, cands); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.StartedAt.Equal(run.StartedAt) || !got.FinishedAt.Equal(run.FinishedAt) {
		t.Fatalf("timestamps changed: %v %v", got.StartedAt, got.FinishedAt)
	}
	got.StartedAt, got.FinishedAt = run.StartedAt, run.FinishedAt
	if got != run {
		t.Fatalf("run mismatch:\n got %+v\nwant %+v", got, run)
	}

	gotCands, err := st.Candidates(ctx, run.ID)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(gotCands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(gotCands))
	}
	if gotCands[0].Family != "knn" || gotCands[0].Position != 0 || gotCands[0].RunID != run.ID {
		t.Errorf("unexpected first candidate %+v", gotCands[0])
	}
	if gotCands[1].Error != "did not converge" || gotCands[1].Position != 1 {
		t.Errorf("unexpected second candidate %+v", gotCands[1])
	}
}

func TestRecordRunReplacesCandidates(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)

	run := registry.Run{ID: registry.NewRunID(time.Now()), Status: registry.StatusFailed, StartedAt: time.Now()}
	if err := st.RecordRun(ctx, run, []registry.Candidate{{Family: "a"}, {Family: "b"}}); err != nil {
		t.Fatal(err)
	}
	run.Status = registry.StatusSucceeded
	if err := st.RecordRun(ctx, run, []registry.Candidate{{Family: "c"}}); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != registry.StatusSucceeded {
		t.Errorf("status not updated: %s", got.Status)
	}
	cands, err := st.Candidates(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 || cands[0].Family != "c" {
		t.Errorf("candidates not replaced: %+v", cands)
	}
}

func TestLatestRun(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)

	if _, err := st.LatestRun(ctx, ""); !errors.Is(err, internalerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty registry, got %v", err)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	runs := []registry.Run{
		{ID: registry.NewRunID(base), Status: registry.StatusSucceeded, StartedAt: base},
		{ID: registry.NewRunID(base.Add(time.Hour)), Status: registry.StatusSucceeded, StartedAt: base.Add(time.Hour)},
		{ID: registry.NewRunID(base.Add(2 * time.Hour)), Status: registry.StatusFailed, StartedAt: base.Add(2 * time.Hour), Error: "boom"},
	}
	for _, r := range runs {
		if err := st.RecordRun(ctx, r, nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := st.LatestRun(ctx, registry.StatusSucceeded)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != runs[1].ID {
		t.Errorf("latest succeeded = %s, want %s", got.ID, runs[1].ID)
	}
	got, err = st.LatestRun(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != runs[2].ID || got.Error != "boom" {
		t.Errorf("latest any = %+v, want %s", got, runs[2].ID)
	}
}

func TestGetRunNotFound(t *testing.T) {
	st := openTemp(t)
	if _, err := st.GetRun(context.Background(), "missing"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReopenKeepsRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "registry.db")
	st, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	run := registry.Run{ID: registry.NewRunID(time.Now()), Status: registry.StatusSucceeded, StartedAt: time.Now()}
	if err := st.RecordRun(ctx, run, nil); err != nil {
		t.Fatal(err)
	}
	st.Close()

	st, err = Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if _, err := st.GetRun(ctx, run.ID); err != nil {
		t.Fatalf("run lost after reopen: %v", err)
	}
}
