// P2P network functional test: starts 4 nodes on consecutive REST and P2P
// ports and verifies readiness, per-node REST surface, port isolation,
// stability over repeated requests and fleet-wide mining control.
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/blockweave/weavetest/internal/libharness"
)

const (
	numNodes     = 4
	baseRestPort = 28443
	baseP2PPort  = 28333
	startTimeout = 20 * time.Second
)

func main() {
	libharness.Main(&libharness.Test{
		Name:  "p2p",
		Setup: setup,
		Run:   run,
	})
}

func setup(t *libharness.T) error {
	t.Logf("Starting %d local blockweave nodes...", numNodes)
	for i := 0; i < numNodes; i++ {
		restPort := baseRestPort + i
		p2pPort := baseP2PPort + i
		t.Logf("Starting node %d (REST: %d, P2P: %d)", i, restPort, p2pPort)
		node, err := t.AddInstance(restPort, p2pPort)
		if err != nil {
			return err
		}
		ok, err := node.Start(startTimeout)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("failed to start node %d", i)
		}
	}
	t.Logf("All %d nodes started successfully", numNodes)
	return nil
}

func run(t *libharness.T) error {
	nodes := t.Instances()

	t.Logf("Test 1: Verifying all nodes are running...")
	for i, node := range nodes {
		t.AssertTrue(node.IsReady(), fmt.Sprintf("Node %d should be ready", i))
	}

	t.Logf("Test 2: Testing /chain endpoint on all nodes...")
	for i, node := range nodes {
		info, err := node.Client().Chain()
		if err != nil {
			t.Fail(fmt.Sprintf("node %d /chain: %v", i, err))
			continue
		}
		t.AssertTrue(info.MempoolSize >= 0,
			fmt.Sprintf("Node %d mempool_size is non-negative", i))
		t.Logf("Node %d: mempool_size=%d, mining_enabled=%v", i, info.MempoolSize, info.MiningEnabled)
	}

	t.Logf("Test 3: Verifying port isolation...")
	seen := make(map[int]bool)
	for i, node := range nodes {
		expected := baseRestPort + i
		t.AssertEqual(node.RestPort, expected,
			fmt.Sprintf("Node %d should use port %d", i, expected))
		t.AssertTrue(!seen[node.RestPort],
			fmt.Sprintf("Port %d should be unique", node.RestPort))
		seen[node.RestPort] = true
	}

	t.Logf("Test 4: Testing multiple requests for stability...")
	for round := 1; round <= 3; round++ {
		for i, node := range nodes {
			status, err := node.Client().GetJSON("/chain", nil)
			if err != nil {
				t.Fail(fmt.Sprintf("node %d round %d: %v", i, round, err))
				continue
			}
			t.AssertEqual(status, http.StatusOK,
				fmt.Sprintf("Node %d request %d returns 200", i, round))
		}
	}

	t.Logf("Test 5: Starting mining on all nodes...")
	for i, node := range nodes {
		st, err := node.Client().StartMining()
		if err != nil {
			t.Fail(fmt.Sprintf("node %d mine/start: %v", i, err))
			continue
		}
		t.AssertTrue(st.Status != "",
			fmt.Sprintf("Node %d mine/start response contains 'status'", i))
	}

	t.Logf("Test 6: Verifying mining is enabled on all nodes...")
	for i, node := range nodes {
		info, err := node.Client().Chain()
		if err != nil {
			t.Fail(fmt.Sprintf("node %d /chain: %v", i, err))
			continue
		}
		t.AssertEqual(info.MiningEnabled, true,
			fmt.Sprintf("Node %d should have mining enabled", i))
	}

	t.Logf("Test 7: Stopping mining on all nodes...")
	for i, node := range nodes {
		if _, err := node.Client().StopMining(); err != nil {
			t.Fail(fmt.Sprintf("node %d mine/stop: %v", i, err))
		}
	}

	t.Logf("Test 8: Verifying mining is disabled on all nodes...")
	for i, node := range nodes {
		info, err := node.Client().Chain()
		if err != nil {
			t.Fail(fmt.Sprintf("node %d /chain: %v", i, err))
			continue
		}
		t.AssertEqual(info.MiningEnabled, false,
			fmt.Sprintf("Node %d should have mining disabled", i))
	}

	t.Logf("P2P test completed successfully")
	return nil
}
