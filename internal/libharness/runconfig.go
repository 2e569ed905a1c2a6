package libharness

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// RunConfig is the optional on-disk configuration of the suite runner.
// Command-line flags override any value set here.
type RunConfig struct {
	TestsDir       string `yaml:"tests_dir"`
	WorkspaceRoot  string `yaml:"workspace_root"`
	KeepLogs       bool   `yaml:"keep_logs"`
	DaemonBinary   string `yaml:"daemon_binary"`
	ConfigTemplate string `yaml:"config_template"`
	Parallel       int    `yaml:"parallel"`
}

// LoadRunConfig reads a YAML run configuration file.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read run config")
	}
	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse run config %s", path)
	}
	return &cfg, nil
}
