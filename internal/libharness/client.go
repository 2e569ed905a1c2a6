package libharness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const (
	// requestTimeout bounds ordinary test requests against a node.
	requestTimeout = 5 * time.Second

	// probeTimeout bounds a single readiness probe. Probes run in a tight
	// polling loop and must never block beyond this.
	probeTimeout = 1 * time.Second
)

// ChainInfo is the JSON body of the daemon's GET /chain endpoint.
type ChainInfo struct {
	MempoolSize   int  `json:"mempool_size"`
	MiningEnabled bool `json:"mining_enabled"`
}

// StatusResponse is the JSON body of the daemon's mining control endpoints.
type StatusResponse struct {
	Status string `json:"status"`
}

// NodeClient issues HTTP requests against one instance's REST endpoint.
type NodeClient struct {
	baseURL string
	client  *http.Client
	probe   *http.Client
}

// NewNodeClient returns a client for a daemon listening on the given REST
// port on the local host.
func NewNodeClient(restPort int) *NodeClient {
	return &NodeClient{
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", restPort),
		client:  &http.Client{Timeout: requestTimeout},
		probe:   &http.Client{Timeout: probeTimeout},
	}
}

// Probe issues a short-timeout health check against GET /chain. It returns
// true iff the response status is 200; connection errors, timeouts and
// non-200 statuses all yield false.
func (c *NodeClient) Probe() bool {
	resp, err := c.probe.Get(c.baseURL + "/chain")
	if err != nil {
		return false
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Get issues a GET request against the given endpoint. The caller owns the
// response body.
func (c *NodeClient) Get(endpoint string) (*http.Response, error) {
	resp, err := c.client.Get(c.baseURL + endpoint)
	return resp, errors.Wrapf(err, "GET %s", endpoint)
}

// Post issues a POST request against the given endpoint. A nil body sends an
// empty request. The caller owns the response body.
func (c *NodeClient) Post(endpoint string, body io.Reader) (*http.Response, error) {
	resp, err := c.client.Post(c.baseURL+endpoint, "application/json", body)
	return resp, errors.Wrapf(err, "POST %s", endpoint)
}

// GetJSON issues a GET request and decodes the JSON response into out.
// It returns the response status code.
func (c *NodeClient) GetJSON(endpoint string, out interface{}) (int, error) {
	resp, err := c.Get(endpoint)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, errors.Wrapf(err, "decode GET %s response", endpoint)
		}
	}
	return resp.StatusCode, nil
}

// PostJSON issues a POST request with an optional JSON body and decodes the
// JSON response into out. It returns the response status code.
func (c *NodeClient) PostJSON(endpoint string, in, out interface{}) (int, error) {
	var body io.Reader
	if in != nil {
		enc, err := json.Marshal(in)
		if err != nil {
			return 0, errors.Wrap(err, "encode request body")
		}
		body = bytes.NewReader(enc)
	}
	resp, err := c.Post(endpoint, body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, errors.Wrapf(err, "decode POST %s response", endpoint)
		}
	}
	return resp.StatusCode, nil
}

// Chain fetches and decodes GET /chain.
func (c *NodeClient) Chain() (*ChainInfo, error) {
	var info ChainInfo
	status, err := c.GetJSON("/chain", &info)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("GET /chain: unexpected status %d", status)
	}
	return &info, nil
}

// StartMining issues POST /mine/start.
func (c *NodeClient) StartMining() (*StatusResponse, error) {
	var st StatusResponse
	status, err := c.PostJSON("/mine/start", nil, &st)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("POST /mine/start: unexpected status %d", status)
	}
	return &st, nil
}

// StopMining issues POST /mine/stop.
func (c *NodeClient) StopMining() (*StatusResponse, error) {
	var st StatusResponse
	status, err := c.PostJSON("/mine/stop", nil, &st)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("POST /mine/stop: unexpected status %d", status)
	}
	return &st, nil
}

// SubmitTransaction issues POST /transaction with the given payload.
func (c *NodeClient) SubmitTransaction(tx interface{}) (*StatusResponse, error) {
	var st StatusResponse
	status, err := c.PostJSON("/transaction", tx, &st)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("POST /transaction: unexpected status %d", status)
	}
	return &st, nil
}
