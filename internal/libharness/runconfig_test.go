package libharness

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRunConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weavetest.yaml")
	content := `tests_dir: tests/bin
daemon_binary: build/rest_daemon
config_template: blockweave.conf
keep_logs: true
parallel: 2
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadRunConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TestsDir != "tests/bin" || cfg.DaemonBinary != "build/rest_daemon" ||
		cfg.ConfigTemplate != "blockweave.conf" || !cfg.KeepLogs || cfg.Parallel != 2 {
		t.Errorf("LoadRunConfig -> %+v", cfg)
	}
}

func TestLoadRunConfigMissing(t *testing.T) {
	if _, err := LoadRunConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadRunConfig with missing file returned nil error")
	}
}
