package libharness

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log15 "gopkg.in/inconshreveable/log15.v2"
)

const (
	// readinessPollInterval is the fixed delay between readiness probes
	// while waiting for a freshly launched daemon.
	readinessPollInterval = 500 * time.Millisecond

	// killGracePeriod is how long Stop waits for the process to disappear
	// after escalating to SIGKILL.
	killGracePeriod = 2 * time.Second

	// stderrTailBytes bounds the amount of captured stderr included in
	// startup failure diagnostics.
	stderrTailBytes = 2048
)

// InstanceState is the lifecycle state of a managed daemon process.
type InstanceState int

const (
	StateUnconfigured InstanceState = iota
	StateConfigured
	StateStarting
	StateReady
	StateStopping
	StateStopped
	StateFailed
)

func (s InstanceState) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Instance manages one child daemon process: config materialization, launch,
// readiness polling and graceful-then-forced shutdown. The OS process handle
// is owned exclusively by the instance for its lifetime.
//
// Port uniqueness across instances in one workspace is the caller's
// responsibility; the harness does not detect duplicate assignments.
type Instance struct {
	Index    int
	RestPort int
	P2PPort  int // optional, 0 if unassigned

	// Dir is the instance's workspace subdirectory. The daemon runs with
	// this as its working directory.
	Dir string

	// ConfigPath is the materialized per-instance config, set once Start
	// has derived it from the template.
	ConfigPath string

	binary   string
	template string
	log      log15.Logger
	client   *NodeClient

	state   InstanceState
	cmd     *exec.Cmd
	exited  chan struct{}
	waitErr error
}

// NewInstance constructs an unstarted instance bound to a workspace
// subdirectory. Callers normally go through T.AddInstance instead.
func NewInstance(index, restPort, p2pPort int, dir, binary, template string, logger log15.Logger) *Instance {
	return &Instance{
		Index:    index,
		RestPort: restPort,
		P2PPort:  p2pPort,
		Dir:      dir,
		binary:   binary,
		template: template,
		log:      logger,
		client:   NewNodeClient(restPort),
		state:    StateUnconfigured,
	}
}

// State returns the instance's current lifecycle state.
func (in *Instance) State() InstanceState {
	return in.state
}

// Client returns the HTTP client bound to this instance's REST port.
func (in *Instance) Client() *NodeClient {
	return in.client
}

// IsReady probes the instance's REST endpoint. It returns true iff GET /chain
// answers 200 within the probe timeout.
func (in *Instance) IsReady() bool {
	return in.client.Probe()
}

// Start materializes the instance config, launches the daemon binary and
// polls for readiness. It returns (true, nil) once the REST endpoint answers,
// and (false, nil) if the process dies before becoming ready or the timeout
// elapses; on timeout the half-started process is stopped before returning.
// An error is returned only for fail-fast preconditions: missing binary or
// missing config template.
func (in *Instance) Start(timeout time.Duration) (bool, error) {
	if _, err := os.Stat(in.binary); err != nil {
		return false, errors.Wrap(ErrBinaryMissing, in.binary)
	}

	cfgPath := filepath.Join(in.Dir, "blockweave.conf")
	ov := Overrides{
		LogDir:      filepath.Join(in.Dir, "logs"),
		DataDir:     filepath.Join(in.Dir, "data"),
		RestAPIPort: in.RestPort,
		P2PPort:     in.P2PPort,
	}
	if err := MaterializeConfig(in.template, cfgPath, ov); err != nil {
		return false, err
	}
	in.ConfigPath = cfgPath
	in.state = StateConfigured

	for _, sub := range []string{ov.LogDir, ov.DataDir} {
		if err := os.MkdirAll(sub, 0755); err != nil {
			return false, errors.Wrap(err, "create instance directories")
		}
	}

	stdout, err := os.Create(filepath.Join(in.Dir, "daemon.stdout.log"))
	if err != nil {
		return false, errors.Wrap(err, "create stdout log")
	}
	stderrPath := filepath.Join(in.Dir, "daemon.stderr.log")
	stderr, err := os.Create(stderrPath)
	if err != nil {
		stdout.Close()
		return false, errors.Wrap(err, "create stderr log")
	}

	cmd := exec.Command(in.binary, "-c", cfgPath)
	cmd.Dir = in.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		in.state = StateFailed
		in.log.Error("daemon failed to launch", "err", err)
		return false, nil
	}
	in.cmd = cmd
	in.state = StateStarting
	in.exited = make(chan struct{})
	go func() {
		in.waitErr = cmd.Wait()
		stdout.Close()
		stderr.Close()
		close(in.exited)
	}()
	in.log.Info("daemon started", "pid", cmd.Process.Pid, "port", in.RestPort)

	deadline := time.Now().Add(timeout)
	for {
		if in.IsReady() {
			in.state = StateReady
			in.log.Info("daemon ready", "port", in.RestPort)
			return true, nil
		}
		if time.Now().After(deadline) {
			in.log.Error("timed out waiting for daemon readiness", "timeout", timeout)
			if err := in.Stop(killGracePeriod); err != nil {
				in.log.Error("stop after startup timeout failed", "err", err)
			}
			return false, nil
		}
		select {
		case <-in.exited:
			in.state = StateFailed
			in.log.Error("daemon exited during startup",
				"exitcode", cmd.ProcessState.ExitCode(),
				"stderr", tailOfFile(stderrPath, stderrTailBytes))
			in.cmd = nil
			return false, nil
		case <-time.After(readinessPollInterval):
		}
	}
}

// Stop terminates the daemon process. It is a no-op success when no process
// handle is held. A graceful termination signal is sent first; if the process
// has not exited within timeout, it escalates to SIGKILL and waits a short
// bounded grace period. Only a kill that cannot be delivered yields an error.
func (in *Instance) Stop(timeout time.Duration) error {
	if in.cmd == nil || in.cmd.Process == nil {
		return nil
	}
	in.state = StateStopping
	in.log.Info("stopping daemon", "pid", in.cmd.Process.Pid)

	// Signal errors are ignored here: the process may already be gone,
	// which the wait below observes.
	in.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-in.exited:
		in.finishStop()
		return nil
	case <-time.After(timeout):
	}

	in.log.Warn("daemon did not exit, escalating to SIGKILL", "pid", in.cmd.Process.Pid)
	if err := in.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		in.state = StateFailed
		return errors.Wrap(err, "force kill daemon")
	}
	select {
	case <-in.exited:
	case <-time.After(killGracePeriod):
		in.log.Warn("daemon still not reaped after SIGKILL")
	}
	in.finishStop()
	return nil
}

func (in *Instance) finishStop() {
	in.state = StateStopped
	in.cmd = nil
	in.log.Info("daemon stopped")
}

// tailOfFile returns up to n bytes from the end of the named file.
func tailOfFile(path string, n int64) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return ""
	}
	if st.Size() > n {
		f.Seek(st.Size()-n, 0)
	}
	buf := make([]byte, n)
	rd, _ := f.Read(buf)
	return string(buf[:rd])
}
