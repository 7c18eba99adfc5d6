package artifact

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

type staged struct {
	kind   string
	path   string
	tmp    string
	backup string // previous file moved aside during Commit
}

// Txn collects artifacts and publishes them together: after Commit either
// every staged file is in place or none of them changed.
type Txn struct {
	runID string

	mu        sync.Mutex
	items     []*staged
	done      bool
	committed bool
}

// NewTxn starts a transaction for one training run.
func NewTxn(runID string) *Txn {
	return &Txn{runID: runID}
}

// Stage encodes payload and writes it to a temporary sibling of path.
// Staging the same path twice replaces the earlier payload.
func (t *Txn) Stage(kind, path string, payload any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errors.New("artifact: transaction already finished")
	}
	data, err := Encode(kind, t.runID, payload)
	if err != nil {
		return err
	}
	tmp, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	for _, it := range t.items {
		if it.path == path {
			os.Remove(it.tmp)
			it.kind, it.tmp = kind, tmp
			return nil
		}
	}
	t.items = append(t.items, &staged{kind: kind, path: path, tmp: tmp})
	return nil
}

// Paths returns the staged destinations in staging order.
func (t *Txn) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.items))
	for i, it := range t.items {
		out[i] = it.path
	}
	return out
}

// Commit renames every staged file into place in staging order. If a rename
// fails, files already published are rolled back to their previous content
// (or removed when there was none).
func (t *Txn) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errors.New("artifact: transaction already finished")
	}
	t.done = true

	for i, it := range t.items {
		if err := publish(it, t.runID); err != nil {
			for _, prev := range t.items[:i] {
				restore(prev)
			}
			for _, rest := range t.items[i:] {
				os.Remove(rest.tmp)
			}
			return fmt.Errorf("commit %s: %w", it.kind, err)
		}
	}
	for _, it := range t.items {
		if it.backup != "" {
			os.Remove(it.backup)
		}
	}
	t.committed = true
	return nil
}

func publish(it *staged, runID string) error {
	if _, err := os.Stat(it.path); err == nil {
		it.backup = it.path + ".bak-" + runID
		if err := os.Rename(it.path, it.backup); err != nil {
			it.backup = ""
			return err
		}
	}
	if err := os.Rename(it.tmp, it.path); err != nil {
		if it.backup != "" {
			os.Rename(it.backup, it.path)
			it.backup = ""
		}
		return err
	}
	return nil
}

func restore(it *staged) {
	if it.backup != "" {
		os.Rename(it.backup, it.path)
		return
	}
	os.Remove(it.path)
}

// Rollback discards every staged file. It is a no-op after Commit, so it
// can be deferred unconditionally.
func (t *Txn) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	var errs []error
	for _, it := range t.items {
		if err := os.Remove(it.tmp); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Committed reports whether Commit succeeded.
func (t *Txn) Committed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}
