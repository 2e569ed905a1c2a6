package libharness

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// Ledger records assertion outcomes for one test program. Every pass and
// failure is printed immediately at the point of detection; the totals are
// read once at teardown to compute the program's exit code.
type Ledger struct {
	out       io.Writer
	successes int
	failures  []string
}

// NewLedger returns a ledger printing to out.
func NewLedger(out io.Writer) *Ledger {
	return &Ledger{out: out}
}

// Pass records a successful assertion.
func (l *Ledger) Pass(msg string) {
	l.successes++
	fmt.Fprintf(l.out, "PASS: %s\n", msg)
}

// Fail records a failed assertion or a captured error.
func (l *Ledger) Fail(msg string) {
	l.failures = append(l.failures, msg)
	fmt.Fprintf(l.out, "FAIL: %s\n", msg)
}

// AssertEqual records whether actual equals expected.
func (l *Ledger) AssertEqual(actual, expected interface{}, msg string) bool {
	if reflect.DeepEqual(actual, expected) {
		l.Pass(msg)
		return true
	}
	l.Fail(fmt.Sprintf("%s\n  expected: %s  actual:   %s",
		msg, dumpValue(expected), dumpValue(actual)))
	return false
}

// AssertTrue records whether cond holds.
func (l *Ledger) AssertTrue(cond bool, msg string) bool {
	if cond {
		l.Pass(msg)
		return true
	}
	l.Fail(msg)
	return false
}

// AssertHasKey records whether a decoded JSON object contains the given key.
func (l *Ledger) AssertHasKey(obj map[string]interface{}, key, msg string) bool {
	if _, ok := obj[key]; ok {
		l.Pass(msg)
		return true
	}
	l.Fail(fmt.Sprintf("%s\n  object: %s", msg, dumpValue(obj)))
	return false
}

// Successes returns the number of passed assertions.
func (l *Ledger) Successes() int {
	return l.successes
}

// Failures returns the number of recorded failures.
func (l *Ledger) Failures() int {
	return len(l.failures)
}

// FailureMessages returns the recorded failure descriptions in order.
func (l *Ledger) FailureMessages() []string {
	return l.failures
}

// PrintSummary writes the final per-program totals.
func (l *Ledger) PrintSummary() {
	fmt.Fprintln(l.out)
	fmt.Fprintln(l.out, strings.Repeat("=", 70))
	fmt.Fprintln(l.out, "TEST SUMMARY")
	fmt.Fprintln(l.out, strings.Repeat("=", 70))
	fmt.Fprintf(l.out, "Passed: %d\n", l.successes)
	fmt.Fprintf(l.out, "Failed: %d\n", len(l.failures))
	fmt.Fprintf(l.out, "Total:  %d\n", l.successes+len(l.failures))
	if len(l.failures) == 0 {
		fmt.Fprintln(l.out, "\nALL CHECKS PASSED")
	} else {
		fmt.Fprintln(l.out, "\nSOME CHECKS FAILED")
	}
}

func dumpValue(v interface{}) string {
	return spew.Sdump(v)
}
