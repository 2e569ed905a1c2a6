package libharness

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/blockweave/weavetest/internal/fakedaemon"
	"github.com/pkg/errors"
	log15 "gopkg.in/inconshreveable/log15.v2"
)

// helperModeEnv re-invokes the test binary as a stand-in daemon process.
// Instances launched by these tests point at the test executable itself;
// the child sees the mode variable and behaves accordingly instead of
// running the test suite.
const helperModeEnv = "WEAVETEST_TEST_HELPER_MODE"

func TestMain(m *testing.M) {
	switch os.Getenv(helperModeEnv) {
	case "":
		os.Exit(m.Run())
	case "daemon":
		runHelperDaemon()
	case "crash":
		fmt.Fprintln(os.Stderr, "fatal: refusing to start")
		os.Exit(3)
	case "hang":
		// Alive but never serving: forces the startup timeout path.
		time.Sleep(time.Minute)
		os.Exit(0)
	}
}

// runHelperDaemon serves the daemon REST contract per the -c config handed
// over by the instance manager, and exits cleanly on SIGTERM.
func runHelperDaemon() {
	var configPath string
	for i, arg := range os.Args {
		if arg == "-c" && i+1 < len(os.Args) {
			configPath = os.Args[i+1]
		}
	}
	cfg := fakedaemon.DefaultConfig()
	if configPath != "" {
		if loaded, err := fakedaemon.LoadConfig(configPath); err == nil {
			cfg = loaded
		}
	}
	logger := log15.New()
	logger.SetHandler(log15.DiscardHandler())
	d := fakedaemon.New(cfg, logger)
	if err := d.Start(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
	<-sig
	d.Close()
	os.Exit(0)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func writeTemplate(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "blockweave.conf")
	content := "# test template\nrest_api_port=28443\ndaemon=true\nlog_level=info\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestInstance(t *testing.T, mode string) *Instance {
	t.Helper()
	t.Setenv(helperModeEnv, mode)
	self, err := os.Executable()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	return NewInstance(0, freePort(t), 0, dir, self, writeTemplate(t, dir), discardLogger())
}

func TestInstanceStartStop(t *testing.T) {
	in := newTestInstance(t, "daemon")

	ok, err := in.Start(10 * time.Second)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !ok {
		t.Fatal("Start returned false for a healthy daemon")
	}
	if in.State() != StateReady {
		t.Errorf("state after Start = %v, want ready", in.State())
	}
	if !in.IsReady() {
		t.Error("IsReady() = false after successful Start")
	}

	// The materialized config carries the instance's own settings.
	cfg, err := os.ReadFile(in.ConfigPath)
	if err != nil {
		t.Fatalf("read materialized config: %v", err)
	}
	if !strings.Contains(string(cfg), fmt.Sprintf("rest_api_port=%d", in.RestPort)) {
		t.Errorf("materialized config missing assigned port:\n%s", cfg)
	}
	if !strings.Contains(string(cfg), "daemon=false") {
		t.Errorf("materialized config does not force daemon off:\n%s", cfg)
	}

	if err := in.Stop(5 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if in.State() != StateStopped {
		t.Errorf("state after Stop = %v, want stopped", in.State())
	}
	if in.IsReady() {
		t.Error("IsReady() = true after Stop")
	}
}

func TestInstanceStopIdempotent(t *testing.T) {
	in := newTestInstance(t, "daemon")

	// Never started: no-op success.
	if err := in.Stop(time.Second); err != nil {
		t.Fatalf("Stop on unstarted instance: %v", err)
	}

	ok, err := in.Start(10 * time.Second)
	if err != nil || !ok {
		t.Fatalf("Start: ok=%v err=%v", ok, err)
	}
	if err := in.Stop(5 * time.Second); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := in.Stop(5 * time.Second); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestInstanceStartBinaryMissing(t *testing.T) {
	dir := t.TempDir()
	in := NewInstance(0, freePort(t), 0, dir, filepath.Join(dir, "no-such-binary"), writeTemplate(t, dir), discardLogger())
	_, err := in.Start(time.Second)
	if !errors.Is(err, ErrBinaryMissing) {
		t.Errorf("Start with missing binary -> %v, want ErrBinaryMissing", err)
	}
}

func TestInstanceStartTemplateMissing(t *testing.T) {
	t.Setenv(helperModeEnv, "daemon")
	self, err := os.Executable()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	in := NewInstance(0, freePort(t), 0, dir, self, filepath.Join(dir, "no-such-template.conf"), discardLogger())
	_, err = in.Start(time.Second)
	if !errors.Is(err, ErrConfigMissing) {
		t.Errorf("Start with missing template -> %v, want ErrConfigMissing", err)
	}
}

func TestInstanceProcessDiesDuringStartup(t *testing.T) {
	in := newTestInstance(t, "crash")

	ok, err := in.Start(10 * time.Second)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ok {
		t.Fatal("Start returned true for a crashing daemon")
	}
	if in.State() != StateFailed {
		t.Errorf("state after startup death = %v, want failed", in.State())
	}
	// Death is a runtime outcome, observed fast, not a raised error.
	if err := in.Stop(time.Second); err != nil {
		t.Errorf("Stop after startup death: %v", err)
	}
}

func TestInstanceStartTimeout(t *testing.T) {
	in := newTestInstance(t, "hang")

	start := time.Now()
	ok, err := in.Start(2 * time.Second)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ok {
		t.Fatal("Start returned true for a daemon that never becomes ready")
	}
	if elapsed := time.Since(start); elapsed > 15*time.Second {
		t.Errorf("Start took %v, timeout not honored", elapsed)
	}
	// Timeout initiates Stop: no process may remain running.
	if in.IsReady() {
		t.Error("IsReady() = true after startup timeout")
	}
	if in.State() != StateStopped {
		t.Errorf("state after startup timeout = %v, want stopped", in.State())
	}
}
