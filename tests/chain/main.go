// Functional test for the GET /chain endpoint: status code, content type,
// JSON field presence and types, and endpoint stability.
package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/blockweave/weavetest/internal/libharness"
	"github.com/pkg/errors"
)

const restPort = 28443

func main() {
	libharness.Main(&libharness.Test{
		Name:  "chain",
		Setup: setup,
		Run:   run,
	})
}

func setup(t *libharness.T) error {
	t.Logf("Starting local blockweave node...")
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
	t.Logf("Node started successfully")
	return nil
}

func run(t *libharness.T) error {
	node := t.Instances()[0]
	t.Logf("Testing GET /chain endpoint...")

	resp, err := node.Client().Get("/chain")
	if err != nil {
		return err
	}
	t.AssertEqual(resp.StatusCode, http.StatusOK, "GET /chain returns 200 OK")
	contentType := resp.Header.Get("Content-Type")
	t.AssertTrue(strings.Contains(contentType, "application/json"),
		"Response Content-Type is application/json")
	resp.Body.Close()

	var data map[string]interface{}
	status, err := node.Client().GetJSON("/chain", &data)
	if err != nil {
		t.Fail("response is not valid JSON: " + err.Error())
		return nil
	}
	t.AssertEqual(status, http.StatusOK, "GET /chain decodes as JSON with 200 OK")
	t.AssertHasKey(data, "mempool_size", "Response contains 'mempool_size' field")
	t.AssertHasKey(data, "mining_enabled", "Response contains 'mining_enabled' field")

	mempool, isNumber := data["mempool_size"].(float64)
	t.AssertTrue(isNumber, "mempool_size is a number")
	if isNumber {
		t.AssertTrue(mempool >= 0, "mempool_size is non-negative")
		t.Logf("Mempool size: %d", int(mempool))
	}
	_, isBool := data["mining_enabled"].(bool)
	t.AssertTrue(isBool, "mining_enabled is a boolean")

	t.Logf("Making second request to verify endpoint stability...")
	var data2 map[string]interface{}
	status2, err := node.Client().GetJSON("/chain", &data2)
	if err != nil {
		return err
	}
	t.AssertEqual(status2, http.StatusOK, "Second GET /chain also returns 200 OK")
	_, hasMempool := data2["mempool_size"]
	_, hasMining := data2["mining_enabled"]
	t.AssertTrue(hasMempool && hasMining, "Second response also contains required fields")
	return nil
}
