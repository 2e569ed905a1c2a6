package libharness

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log15 "gopkg.in/inconshreveable/log15.v2"
)

// Workspace is the isolated filesystem root for one test-program execution.
// It holds the per-instance subdirectories and the harness log.
type Workspace struct {
	Root   string
	Retain bool

	// external is set when the root was supplied by the caller. An external
	// owner manages the directory's lifetime, so Remove never deletes it.
	external bool
	log      log15.Logger
}

// NewWorkspace resolves the workspace root. A non-empty root selects an
// externally owned directory, created if absent and never removed at
// teardown. With an empty root a fresh unique temporary directory is
// created, removed at teardown unless retain is set.
func NewWorkspace(root string, retain bool, logger log15.Logger) (*Workspace, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, errors.Wrap(err, "create workspace root")
		}
		return &Workspace{Root: root, Retain: retain, external: true, log: logger}, nil
	}
	dir, err := os.MkdirTemp("", "weavetest-")
	if err != nil {
		return nil, errors.Wrap(err, "create temporary workspace")
	}
	return &Workspace{Root: dir, Retain: retain, log: logger}, nil
}

// InstanceDir allocates the numbered subdirectory for an instance.
func (w *Workspace) InstanceDir(index int) (string, error) {
	dir := filepath.Join(w.Root, fmt.Sprintf("node%d", index))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "create instance directory")
	}
	return dir, nil
}

// LogFile is the path of the structured harness log under the root.
func (w *Workspace) LogFile() string {
	return filepath.Join(w.Root, "harness.log")
}

// Remove deletes the workspace tree according to the retention rules.
// Removal failures are logged, not fatal: a leftover directory is an
// annoyance, not a test outcome.
func (w *Workspace) Remove() {
	if w.external {
		w.log.Debug("keeping externally owned workspace", "dir", w.Root)
		return
	}
	if w.Retain {
		w.log.Info("retaining workspace", "dir", w.Root)
		return
	}
	if err := os.RemoveAll(w.Root); err != nil {
		w.log.Warn("failed to remove workspace", "dir", w.Root, "err", err)
	}
}
