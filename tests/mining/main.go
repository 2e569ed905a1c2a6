// Functional test for the mining control endpoints: /mine/start flips
// mining_enabled on, /mine/stop flips it back off.
package main

import (
	"time"

	"github.com/blockweave/weavetest/internal/libharness"
	"github.com/pkg/errors"
)

const restPort = 28443

func main() {
	libharness.Main(&libharness.Test{
		Name:  "mining",
		Setup: setup,
		Run:   run,
	})
}

func setup(t *libharness.T) error {
	node, err := t.AddInstance(restPort, 0)
	if err != nil {
		return err
	}
	ok, err := node.Start(15 * time.Second)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("failed to start blockweave node")
	}
	return nil
}

func run(t *libharness.T) error {
	client := t.Instances()[0].Client()

	info, err := client.Chain()
	if err != nil {
		return err
	}
	t.AssertEqual(info.MiningEnabled, false, "Mining is disabled on a fresh node")

	t.Logf("Starting mining...")
	st, err := client.StartMining()
	if err != nil {
		return err
	}
	t.AssertTrue(st.Status != "", "mine/start response contains 'status'")

	info, err = client.Chain()
	if err != nil {
		return err
	}
	t.AssertEqual(info.MiningEnabled, true, "mining_enabled is true after /mine/start")

	t.Logf("Stopping mining...")
	if _, err := client.StopMining(); err != nil {
		return err
	}
	info, err = client.Chain()
	if err != nil {
		return err
	}
	t.AssertEqual(info.MiningEnabled, false, "mining_enabled is false after /mine/stop")
	return nil
}
