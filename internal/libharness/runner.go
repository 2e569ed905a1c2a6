package libharness

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
	log15 "gopkg.in/inconshreveable/log15.v2"
)

// testProgramPrefix is the naming convention for discovered test programs.
const testProgramPrefix = "test_"

// Runner discovers test programs and executes each as an isolated child
// process with a dedicated workspace and injected environment. A crash or
// hang in one test program cannot corrupt or block the others.
type Runner struct {
	// TestsDir is the directory searched for test program executables.
	TestsDir string

	// WorkspaceRoot holds the per-test workspaces. When empty, a temporary
	// root is created for the run and removed afterwards unless KeepLogs
	// is set.
	WorkspaceRoot string

	// KeepLogs retains per-test workspaces after each test completes.
	KeepLogs bool

	// DaemonBinary and ConfigTemplate are forwarded to test programs via
	// the environment.
	DaemonBinary   string
	ConfigTemplate string

	// Parallel is the maximum number of test programs running at once.
	// Values below 1 mean sequential execution.
	Parallel int

	Log log15.Logger
}

// Discover enumerates test program executables in TestsDir, sorted by name.
// Only regular files whose name starts with "test_" and which carry an
// execute permission bit qualify; harness support code lives in library
// packages and is never picked up.
func (r *Runner) Discover() ([]string, error) {
	entries, err := os.ReadDir(r.TestsDir)
	if err != nil {
		return nil, errors.Wrapf(err, "read tests directory %s", r.TestsDir)
	}
	var tests []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), testProgramPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Mode()&0111 == 0 {
			continue
		}
		tests = append(tests, filepath.Join(r.TestsDir, e.Name()))
	}
	sort.Strings(tests)
	return tests, nil
}

// RunAll executes every discovered test program and aggregates the results.
// With Parallel > 1, up to that many programs run concurrently; each still
// gets its own process and workspace.
func (r *Runner) RunAll(ctx context.Context) (*SuiteResult, error) {
	tests, err := r.Discover()
	if err != nil {
		return nil, err
	}
	if len(tests) == 0 {
		r.Log.Warn("no test programs found", "dir", r.TestsDir, "pattern", testProgramPrefix+"*")
		return &SuiteResult{}, nil
	}
	r.Log.Info("running test suite", "tests", len(tests))

	root, cleanupRoot, err := r.resolveRoot()
	if err != nil {
		return nil, err
	}
	defer cleanupRoot()

	limit := int64(r.Parallel)
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)

	var (
		mu     sync.Mutex
		result SuiteResult
	)
	for _, test := range tests {
		if err := sem.Acquire(ctx, 1); err != nil {
			return &result, errors.Wrap(err, "suite interrupted")
		}
		// Acquiring before the goroutine starts keeps execution strictly
		// sequential at the default limit of 1. Parallel runs interleave
		// child output.
		test := test
		go func() {
			defer sem.Release(1)
			name := filepath.Base(test)
			err := r.runTest(ctx, test, root)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.Log.Error("test failed", "test", name, "err", err)
				result.AddFail(name)
			} else {
				result.AddPass(name)
			}
		}()
	}
	// Wait for all in-flight test programs.
	if err := sem.Acquire(ctx, limit); err != nil {
		return &result, errors.Wrap(err, "suite interrupted")
	}
	return &result, nil
}

// RunOne executes a single selected test program. A path with no directory
// component is resolved against TestsDir.
func (r *Runner) RunOne(ctx context.Context, path string) (*SuiteResult, error) {
	if !strings.ContainsRune(path, os.PathSeparator) {
		if _, err := os.Stat(path); err != nil {
			path = filepath.Join(r.TestsDir, path)
		}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "test program %s", path)
	}

	root, cleanupRoot, err := r.resolveRoot()
	if err != nil {
		return nil, err
	}
	defer cleanupRoot()

	var result SuiteResult
	name := filepath.Base(path)
	if err := r.runTest(ctx, path, root); err != nil {
		r.Log.Error("test failed", "test", name, "err", err)
		result.AddFail(name)
	} else {
		result.AddPass(name)
	}
	return &result, nil
}

// resolveRoot returns the workspace root for this run and a cleanup function
// removing it when the runner owns it.
func (r *Runner) resolveRoot() (string, func(), error) {
	if r.WorkspaceRoot != "" {
		if err := os.MkdirAll(r.WorkspaceRoot, 0755); err != nil {
			return "", nil, errors.Wrap(err, "create workspace root")
		}
		return r.WorkspaceRoot, func() {}, nil
	}
	root, err := os.MkdirTemp("", "weavetest-run-")
	if err != nil {
		return "", nil, errors.Wrap(err, "create run workspace root")
	}
	cleanup := func() {
		if r.KeepLogs {
			r.Log.Info("retaining run workspace", "dir", root)
			return
		}
		if err := os.RemoveAll(root); err != nil {
			r.Log.Warn("failed to remove run workspace", "dir", root, "err", err)
		}
	}
	return root, cleanup, nil
}

// runTest executes one test program in its own process and workspace. The
// child inherits the parent's standard streams so test output stays visible.
// The per-test workspace is removed right after the test completes unless
// retention was requested, independent of the outcome.
func (r *Runner) runTest(ctx context.Context, path, root string) error {
	name := filepath.Base(path)
	workdir := filepath.Join(root, TestWorkDirName(name))
	if err := os.MkdirAll(workdir, 0755); err != nil {
		return errors.Wrap(err, "create test workspace")
	}
	defer func() {
		if r.KeepLogs {
			return
		}
		if err := os.RemoveAll(workdir); err != nil {
			r.Log.Warn("failed to remove test workspace", "dir", workdir, "err", err)
		}
	}()

	r.Log.Info("running test program", "test", name, "workspace", workdir)

	keep := "0"
	if r.KeepLogs {
		keep = "1"
	}
	cmd := exec.CommandContext(ctx, path)
	cmd.Dir = workdir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		EnvWorkspace+"="+workdir,
		EnvKeepLogs+"="+keep,
		EnvDaemon+"="+r.DaemonBinary,
		EnvConfigTemplate+"="+r.ConfigTemplate,
	)
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("exit code %d", exitErr.ExitCode())
		}
		return errors.Wrap(err, "execute test program")
	}
	return nil
}
