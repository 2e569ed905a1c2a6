// Package libharness is the orchestration core of the blockweave functional
// test suite. It manages daemon child processes (config materialization,
// readiness polling, graceful shutdown), isolates each test program in its
// own workspace, records assertion outcomes, and aggregates results across
// the suite.
//
// A test program is a standalone executable built around a Test value:
//
//	func main() {
//		libharness.Main(&libharness.Test{
//			Name:  "chain",
//			Setup: setup,
//			Run:   run,
//		})
//	}
//
// The suite runner (the weavetest command) discovers test programs and runs
// each as a child process, passing the workspace location and retention flag
// through the environment.
package libharness
