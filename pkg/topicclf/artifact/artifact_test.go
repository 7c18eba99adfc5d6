package artifact

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "thing.json")
	data, err := Encode("thing", "run-1", payload{Name: "a", Count: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(path, data); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var got payload
	env, err := Load(path, "thing", &got)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != (payload{Name: "a", Count: 2}) {
		t.Fatalf("payload = %+v", got)
	}
	if env.RunID != "run-1" || env.FormatVersion != FormatVersion || env.CreatedAt.IsZero() {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	var p payload
	var ale *internalerr.ArtifactLoadError

	_, err := Load(filepath.Join(dir, "missing.json"), "thing", &p)
	if !errors.As(err, &ale) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("missing file: %v", err)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	os.WriteFile(corrupt, []byte("{not json"), 0o644)
	if _, err := Load(corrupt, "thing", &p); !errors.As(err, &ale) || ale.Path != corrupt {
		t.Fatalf("corrupt file: %v", err)
	}

	other := filepath.Join(dir, "other.json")
	data, _ := Encode("model", "", payload{})
	os.WriteFile(other, data, 0o644)
	if _, err := Load(other, "vectorizer", &p); !errors.As(err, &ale) || !strings.Contains(err.Error(), "kind") {
		t.Fatalf("wrong kind: %v", err)
	}

	future := filepath.Join(dir, "future.json")
	os.WriteFile(future, []byte(`{"kind":"thing","format_version":99,"payload":{}}`), 0o644)
	if _, err := Load(future, "thing", &p); !errors.As(err, &ale) {
		t.Fatalf("future version: %v", err)
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestTxnCommit(t *testing.T) {
	dir := t.TempDir()
	vec := filepath.Join(dir, "features.json")
	mod := filepath.Join(dir, "model.json")

	txn := NewTxn("run-2")
	if err := txn.Stage("vectorizer", vec, payload{Name: "v"}); err != nil {
		t.Fatal(err)
	}
	if err := txn.Stage("model", mod, payload{Name: "m"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(vec); !os.IsNotExist(err) {
		t.Fatalf("artifact visible before commit")
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !txn.Committed() {
		t.Fatal("Committed() = false")
	}
	if err := txn.Rollback(); err != nil {
		t.Fatalf("Rollback after commit: %v", err)
	}

	var p payload
	if _, err := Load(vec, "vectorizer", &p); err != nil || p.Name != "v" {
		t.Fatalf("vectorizer: %+v %v", p, err)
	}
	if _, err := Load(mod, "model", &p); err != nil || p.Name != "m" {
		t.Fatalf("model: %+v %v", p, err)
	}
	if names := listDir(t, dir); len(names) != 2 {
		t.Fatalf("leftover files: %v", names)
	}
}

func TestTxnRollback(t *testing.T) {
	dir := t.TempDir()
	txn := NewTxn("run-3")
	txn.Stage("vectorizer", filepath.Join(dir, "features.json"), payload{})
	txn.Stage("model", filepath.Join(dir, "model.json"), payload{})
	if err := txn.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if names := listDir(t, dir); len(names) != 0 {
		t.Fatalf("files left after rollback: %v", names)
	}
	if err := txn.Commit(); err == nil {
		t.Fatal("Commit after Rollback should fail")
	}
}

func TestTxnCommitFailureRestoresPrevious(t *testing.T) {
	dir := t.TempDir()
	vec := filepath.Join(dir, "features.json")
	mod := filepath.Join(dir, "model.json")

	old, _ := Encode("vectorizer", "old", payload{Name: "old"})
	if err := WriteFile(vec, old); err != nil {
		t.Fatal(err)
	}

	txn := NewTxn("run-4")
	txn.Stage("vectorizer", vec, payload{Name: "new"})
	txn.Stage("model", mod, payload{Name: "new"})
	// lose the model's staged file so its rename fails
	os.Remove(txn.items[1].tmp)

	if err := txn.Commit(); err == nil {
		t.Fatal("expected commit failure")
	}
	var p payload
	if _, err := Load(vec, "vectorizer", &p); err != nil || p.Name != "old" {
		t.Fatalf("previous vectorizer not restored: %+v %v", p, err)
	}
	if _, err := os.Stat(mod); !os.IsNotExist(err) {
		t.Fatalf("model should not exist after failed commit")
	}
	if names := listDir(t, dir); len(names) != 1 {
		t.Fatalf("leftover files: %v", names)
	}
}

func TestTxnRestageReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	txn := NewTxn("run-5")
	txn.Stage("model", path, payload{Name: "first"})
	txn.Stage("model", path, payload{Name: "second"})
	if got := txn.Paths(); len(got) != 1 {
		t.Fatalf("Paths = %v", got)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	var p payload
	if _, err := Load(path, "model", &p); err != nil || p.Name != "second" {
		t.Fatalf("got %+v %v", p, err)
	}
	if names := listDir(t, dir); len(names) != 1 {
		t.Fatalf("leftover files: %v", names)
	}
}
