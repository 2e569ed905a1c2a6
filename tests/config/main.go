// Functional test for config materialization: each started instance's
// materialized config must carry its own assigned ports and isolated
// directories, with daemon mode forced off.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blockweave/weavetest/internal/libharness"
)

const (
	numNodes     = 2
	baseRestPort = 28443
	baseP2PPort  = 28333
)

func main() {
	libharness.Main(&libharness.Test{
		Name:  "config",
		Setup: setup,
		Run:   run,
	})
}

func setup(t *libharness.T) error {
	for i := 0; i < numNodes; i++ {
		node, err := t.AddInstance(baseRestPort+i, baseP2PPort+i)
		if err != nil {
			return err
		}
		ok, err := node.Start(15 * time.Second)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("failed to start node %d", i)
		}
	}
	return nil
}

func run(t *libharness.T) error {
	for i, node := range t.Instances() {
		data, err := os.ReadFile(node.ConfigPath)
		if err != nil {
			t.Fail(fmt.Sprintf("node %d: read materialized config: %v", i, err))
			continue
		}
		cfg := string(data)
		t.AssertTrue(strings.Contains(cfg, fmt.Sprintf("rest_api_port=%d", node.RestPort)),
			fmt.Sprintf("Node %d config contains its assigned rest_api_port", i))
		t.AssertTrue(strings.Contains(cfg, fmt.Sprintf("p2p_port=%d", node.P2PPort)),
			fmt.Sprintf("Node %d config contains its assigned p2p_port", i))
		t.AssertTrue(strings.Contains(cfg, "daemon=false"),
			fmt.Sprintf("Node %d config forces daemon mode off", i))
		t.AssertTrue(strings.Contains(cfg, node.Dir),
			fmt.Sprintf("Node %d config points inside its own workspace", i))
	}
	return nil
}
