// The fakedaemon command runs the fake blockweave daemon as a foreground
// process. It exists so the harness and its shipped test programs can be
// exercised without the real daemon: point -daemon at this binary.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/blockweave/weavetest/internal/fakedaemon"
	log15 "gopkg.in/inconshreveable/log15.v2"
)

var configPath = flag.String("c", "", "Path to the daemon config file")

func main() {
	flag.Parse()
	logger := log15.New("daemon", "fake")
	logger.SetHandler(log15.StreamHandler(os.Stderr, log15.TerminalFormat()))

	cfg := fakedaemon.DefaultConfig()
	if *configPath != "" {
		loaded, err := fakedaemon.LoadConfig(*configPath)
		if err != nil {
			// The real daemon warns and falls back to defaults.
			logger.Warn("could not load config, using defaults", "path", *configPath, "err", err)
		} else {
			cfg = loaded
		}
	}

	d := fakedaemon.New(cfg, logger)
	if err := d.Start(); err != nil {
		logger.Crit("failed to start", "err", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("shutting down", "signal", s)
	d.Close()
}
