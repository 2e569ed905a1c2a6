package libharness

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Environment variables recognized by test programs. The suite runner sets
// these for every test program it spawns; a test program run by hand picks
// them up from the caller's environment instead.
const (
	// EnvWorkspace overrides the workspace root directory. An externally
	// supplied workspace is created if absent and never deleted at teardown.
	EnvWorkspace = "WEAVETEST_WORKSPACE"

	// EnvKeepLogs, when set to "1", keeps the workspace directory after the
	// test program exits.
	EnvKeepLogs = "WEAVETEST_KEEP_LOGS"

	// EnvDaemon is the path to the daemon binary under test.
	EnvDaemon = "WEAVETEST_DAEMON"

	// EnvConfigTemplate is the path to the shared config template.
	EnvConfigTemplate = "WEAVETEST_CONFIG_TEMPLATE"
)

// GenerateRunID creates a unique identifier for one suite runner invocation.
func GenerateRunID() string {
	return fmt.Sprintf("weavetest-%d-%s", os.Getpid(), time.Now().Format("20060102-150405.000"))
}

// SanitizeNameComponent sanitizes a string for use in directory names.
func SanitizeNameComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '.' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "test"
	}
	return b.String()
}

// TestWorkDirName returns the timestamp-qualified workspace directory name
// for one test program execution. The timestamp avoids collisions across
// repeated runner invocations against the same workspace root.
func TestWorkDirName(testName string) string {
	return fmt.Sprintf("%s-%s", SanitizeNameComponent(testName), time.Now().Format("20060102-150405.000"))
}

// SuiteResult is the aggregated outcome of one suite runner invocation.
type SuiteResult struct {
	Passed []string
	Failed []string
}

// AddPass records a passed test program.
func (r *SuiteResult) AddPass(name string) {
	r.Passed = append(r.Passed, name)
}

// AddFail records a failed test program.
func (r *SuiteResult) AddFail(name string) {
	r.Failed = append(r.Failed, name)
}

// Pass reports whether every executed test program passed.
func (r *SuiteResult) Pass() bool {
	return len(r.Failed) == 0
}

// Total returns the number of executed test programs.
func (r *SuiteResult) Total() int {
	return len(r.Passed) + len(r.Failed)
}

// Print writes the human-readable suite summary.
func (r *SuiteResult) Print(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintln(w, "SUITE SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "Total tests:  %d\n", r.Total())
	fmt.Fprintf(w, "Passed:       %d\n", len(r.Passed))
	fmt.Fprintf(w, "Failed:       %d\n", len(r.Failed))
	if len(r.Failed) > 0 {
		fmt.Fprintln(w, "\nFailed tests:")
		for _, name := range r.Failed {
			fmt.Fprintf(w, "  - %s\n", name)
		}
		fmt.Fprintln(w, "\nSOME TESTS FAILED")
	} else {
		fmt.Fprintln(w, "\nALL TESTS PASSED")
	}
}
