package libharness

import "github.com/pkg/errors"

// Precondition errors. These abort a test program immediately; all other
// startup failures (timeout, process death, failed health checks) are
// reported through the boolean result of Instance.Start.
var (
	// ErrConfigMissing is returned when the shared config template does not exist.
	ErrConfigMissing = errors.New("config template not found")

	// ErrBinaryMissing is returned when the daemon binary does not exist.
	ErrBinaryMissing = errors.New("daemon binary not found")
)
