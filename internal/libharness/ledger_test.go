package libharness

import (
	"bytes"
	"strings"
	"testing"
)

func TestLedgerCounts(t *testing.T) {
	var buf bytes.Buffer
	l := NewLedger(&buf)

	l.AssertTrue(true, "first")
	l.AssertEqual(1, 1, "second")
	l.AssertEqual(1, 2, "third")
	l.AssertTrue(false, "fourth")
	l.AssertHasKey(map[string]interface{}{"a": 1}, "a", "fifth")
	l.AssertHasKey(map[string]interface{}{"a": 1}, "b", "sixth")

	if l.Successes() != 3 {
		t.Errorf("Successes() = %d, want 3", l.Successes())
	}
	if l.Failures() != 3 {
		t.Errorf("Failures() = %d, want 3", l.Failures())
	}

	msgs := l.FailureMessages()
	wantOrder := []string{"third", "fourth", "sixth"}
	for i, want := range wantOrder {
		if !strings.HasPrefix(msgs[i], want) {
			t.Errorf("failure %d = %q, want prefix %q", i, msgs[i], want)
		}
	}
}

func TestLedgerPrintsImmediately(t *testing.T) {
	var buf bytes.Buffer
	l := NewLedger(&buf)

	l.AssertTrue(true, "readiness confirmed")
	if !strings.Contains(buf.String(), "PASS: readiness confirmed") {
		t.Errorf("pass not printed at point of detection: %q", buf.String())
	}
	l.AssertEqual("a", "b", "values match")
	out := buf.String()
	if !strings.Contains(out, "FAIL: values match") {
		t.Errorf("failure not printed at point of detection: %q", out)
	}
	// Mismatched values are dumped for diagnostics.
	if !strings.Contains(out, "expected:") || !strings.Contains(out, "actual:") {
		t.Errorf("failure output missing value dump: %q", out)
	}
}

func TestLedgerSummary(t *testing.T) {
	var buf bytes.Buffer
	l := NewLedger(&buf)
	l.AssertTrue(true, "ok")
	l.Fail("boom")
	l.PrintSummary()

	out := buf.String()
	for _, want := range []string{"Passed: 1", "Failed: 1", "Total:  2", "SOME CHECKS FAILED"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
