package libharness

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/pkg/errors"
	log15 "gopkg.in/inconshreveable/log15.v2"
)

// defaultStopTimeout bounds the graceful-shutdown wait applied to each
// instance during teardown.
const defaultStopTimeout = 10 * time.Second

// Test describes one test program. Setup and Run report hard failures by
// returning an error; assertion failures go through the context's ledger and
// do not abort the remaining body. Cleanup is an optional hook that runs
// before the instances are stopped.
type Test struct {
	Name    string
	Setup   func(*T) error
	Run     func(*T) error
	Cleanup func(*T)
}

// T is the test context handed to a test's callbacks. It composes the
// workspace, the assertion ledger and the registered instances, and owns a
// structured logger writing to the workspace mirrored to stdout.
type T struct {
	Log log15.Logger

	ws        *Workspace
	ledger    *Ledger
	out       io.Writer
	instances []*Instance

	daemonBinary   string
	configTemplate string
}

// AddInstance allocates the next numbered workspace subdirectory, constructs
// an instance bound to it and registers it for teardown. The instance is
// returned unstarted; the caller starts it explicitly. Assigning a REST or
// P2P port already used by another instance in this context is a usage
// error the harness does not detect.
func (t *T) AddInstance(restPort, p2pPort int) (*Instance, error) {
	index := len(t.instances)
	dir, err := t.ws.InstanceDir(index)
	if err != nil {
		return nil, err
	}
	in := NewInstance(index, restPort, p2pPort, dir, t.daemonBinary, t.configTemplate,
		t.Log.New("node", index))
	t.instances = append(t.instances, in)
	return in, nil
}

// Instances returns the registered instances in registration order.
func (t *T) Instances() []*Instance {
	return t.instances
}

// Workspace returns the test program's workspace.
func (t *T) Workspace() *Workspace {
	return t.ws
}

// Logf writes an informational line to the test output.
func (t *T) Logf(format string, args ...interface{}) {
	fmt.Fprintf(t.out, "INFO: "+format+"\n", args...)
}

// Fail records a failure description in the ledger.
func (t *T) Fail(msg string) {
	t.ledger.Fail(msg)
}

// AssertEqual records whether actual equals expected.
func (t *T) AssertEqual(actual, expected interface{}, msg string) bool {
	return t.ledger.AssertEqual(actual, expected, msg)
}

// AssertTrue records whether cond holds.
func (t *T) AssertTrue(cond bool, msg string) bool {
	return t.ledger.AssertTrue(cond, msg)
}

// AssertHasKey records whether a decoded JSON object contains the given key.
func (t *T) AssertHasKey(obj map[string]interface{}, key, msg string) bool {
	return t.ledger.AssertHasKey(obj, key, msg)
}

// Main runs the test and exits the process with its code. Test programs call
// this from their main function.
func Main(test *Test) {
	os.Exit(RunTest(test))
}

// RunTest executes a test program's full lifecycle and returns the process
// exit code: 0 iff no failure was recorded. Setup and Run errors and panics
// are captured as ledger failures rather than escaping; the cleanup hook,
// instance teardown and workspace removal run on every exit path. Leaking a
// child daemon process would be a severe defect, so every registered
// instance is stopped unconditionally, in registration order.
func RunTest(test *Test) int {
	ws, err := NewWorkspace(os.Getenv(EnvWorkspace), os.Getenv(EnvKeepLogs) == "1", log15.Root())
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot create workspace: %v\n", err)
		return 1
	}

	logFile, err := os.Create(ws.LogFile())
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot create harness log: %v\n", err)
		return 1
	}
	out := io.MultiWriter(os.Stdout, logFile)

	logger := log15.New("test", test.Name)
	logger.SetHandler(log15.MultiHandler(
		log15.StreamHandler(os.Stdout, log15.TerminalFormat()),
		log15.StreamHandler(logFile, log15.LogfmtFormat()),
	))
	ws.log = logger

	t := &T{
		Log:            logger,
		ws:             ws,
		ledger:         NewLedger(out),
		out:            out,
		daemonBinary:   os.Getenv(EnvDaemon),
		configTemplate: os.Getenv(EnvConfigTemplate),
	}

	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintf(out, "Running: %s\n", test.Name)
	fmt.Fprintln(out, strings.Repeat("=", 70))

	runPhases(t, test)

	if test.Cleanup != nil {
		runRecovered(t, "cleanup", func() error {
			test.Cleanup(t)
			return nil
		})
	}
	for _, in := range t.instances {
		if err := in.Stop(defaultStopTimeout); err != nil {
			logger.Error("failed to stop instance", "node", in.Index, "err", err)
		}
	}

	t.ledger.PrintSummary()
	logFile.Close()
	ws.Remove()

	if t.ledger.Failures() > 0 {
		return 1
	}
	return 0
}

// runPhases drives Setup and Run. A Setup failure skips Run: the environment
// the test body expects was never established.
func runPhases(t *T, test *Test) {
	if test.Setup != nil {
		t.Log.Info("setting up test environment")
		if !runRecovered(t, "setup", func() error { return test.Setup(t) }) {
			return
		}
	}
	if test.Run != nil {
		t.Log.Info("running test")
		runRecovered(t, "run", func() error { return test.Run(t) })
	}
}

// runRecovered invokes fn, converting a returned error or a panic into a
// ledger failure. It reports whether the phase completed cleanly.
func runRecovered(t *T, phase string, fn func() error) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			ok = false
			t.ledger.Fail(fmt.Sprintf("%s: unhandled panic: %v\n%s", phase, p, debug.Stack()))
		}
	}()
	if err := fn(); err != nil {
		t.ledger.Fail(fmt.Sprintf("%s: %v", phase, err))
		if errors.Is(err, ErrBinaryMissing) || errors.Is(err, ErrConfigMissing) {
			t.Log.Crit("precondition failed", "phase", phase, "err", err)
		}
		return false
	}
	return true
}
