// weavetest is the functional test suite runner for the blockweave daemon.
//
// It discovers test programs (executables named test_* in the tests
// directory), runs each one as an isolated child process with a dedicated
// workspace, and aggregates the results. Passing a test path as the
// positional argument runs only that test.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/blockweave/weavetest/internal/libharness"
	log15 "gopkg.in/inconshreveable/log15.v2"
)

var (
	testsDir      = flag.String("tests", "tests/bin", "Directory containing the test program executables")
	workspaceRoot = flag.String("workspace", "", "Root directory for per-test workspaces (default: temporary)")
	keepLogs      = flag.Bool("keep-logs", false, "Retain per-test workspaces and logs after each test")
	daemonBinary  = flag.String("daemon", "", "Path to the daemon binary under test")
	template      = flag.String("template", "blockweave.conf", "Shared daemon config template")
	parallelism   = flag.Int("parallel", 1, "Maximum number of test programs running at once")
	configFile    = flag.String("config", "", "Optional YAML run configuration file")

	loglevelFlag = flag.Int("loglevel", 3, "Log level to use for displaying system events")
)

func main() {
	flag.Parse()
	log15.Root().SetHandler(log15.LvlFilterHandler(log15.Lvl(*loglevelFlag), log15.StreamHandler(os.Stderr, log15.TerminalFormat())))

	runner := &libharness.Runner{
		TestsDir:       *testsDir,
		WorkspaceRoot:  *workspaceRoot,
		KeepLogs:       *keepLogs,
		DaemonBinary:   *daemonBinary,
		ConfigTemplate: *template,
		Parallel:       *parallelism,
		Log:            log15.New("module", "runner"),
	}
	if *configFile != "" {
		cfg, err := libharness.LoadRunConfig(*configFile)
		if err != nil {
			log15.Crit("failed to load run config", "error", err)
			os.Exit(1)
		}
		applyRunConfig(runner, cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		result *libharness.SuiteResult
		err    error
	)
	if flag.NArg() > 0 {
		result, err = runner.RunOne(ctx, flag.Arg(0))
	} else {
		result, err = runner.RunAll(ctx)
	}
	if err != nil {
		log15.Error("suite run failed", "error", err)
		os.Exit(1)
	}
	result.Print(os.Stdout)
	if !result.Pass() {
		os.Exit(1)
	}
}

// applyRunConfig fills in runner fields from the config file for any flag
// the user left at its default.
func applyRunConfig(runner *libharness.Runner, cfg *libharness.RunConfig) {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["tests"] && cfg.TestsDir != "" {
		runner.TestsDir = cfg.TestsDir
	}
	if !set["workspace"] && cfg.WorkspaceRoot != "" {
		runner.WorkspaceRoot = cfg.WorkspaceRoot
	}
	if !set["keep-logs"] && cfg.KeepLogs {
		runner.KeepLogs = true
	}
	if !set["daemon"] && cfg.DaemonBinary != "" {
		runner.DaemonBinary = cfg.DaemonBinary
	}
	if !set["template"] && cfg.ConfigTemplate != "" {
		runner.ConfigTemplate = cfg.ConfigTemplate
	}
	if !set["parallel"] && cfg.Parallel > 0 {
		runner.Parallel = cfg.Parallel
	}
}
