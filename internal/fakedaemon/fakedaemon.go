// Package fakedaemon is a stand-in for the blockweave daemon implementing
// its observable REST contract. The harness's own tests and the shipped test
// programs run against it, so the orchestration machinery can be exercised
// end to end without the real daemon.
package fakedaemon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log15 "gopkg.in/inconshreveable/log15.v2"
)

// Config is the subset of daemon settings the fake understands. Unknown
// keys in the config file are ignored, matching the real daemon's parser.
type Config struct {
	RestAPIPort int
	P2PPort     int
	DataDir     string
	LogDir      string
	Daemon      bool
}

// DefaultConfig mirrors the real daemon's built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		RestAPIPort: 28443,
		P2PPort:     28333,
		DataDir:     "./data",
		LogDir:      "./logs",
	}
}

// LoadConfig reads a key=value config file over the defaults. Blank lines
// and lines starting with '#' are skipped.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.Index(line, "=")
		if i < 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		value := strings.TrimSpace(line[i+1:])
		switch key {
		case "rest_api_port":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.RestAPIPort = n
			}
		case "p2p_port":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.P2PPort = n
			}
		case "data_dir":
			cfg.DataDir = value
		case "log_dir":
			cfg.LogDir = value
		case "daemon":
			v := strings.ToLower(value)
			cfg.Daemon = v == "true" || v == "1" || v == "yes"
		}
	}
	return cfg, errors.Wrap(scanner.Err(), "read config")
}

// Daemon serves the blockweave REST surface with in-memory state.
type Daemon struct {
	cfg *Config
	log log15.Logger

	mu      sync.Mutex
	mining  bool
	mempool int
	blocks  int

	srv      *http.Server
	listener net.Listener
}

// New returns an unstarted fake daemon.
func New(cfg *Config, logger log15.Logger) *Daemon {
	return &Daemon{cfg: cfg, log: logger, blocks: 1} // genesis block
}

// Router builds the REST routes.
func (d *Daemon) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/chain", d.handleChain).Methods("GET")
	r.HandleFunc("/mine/start", d.handleMineStart).Methods("POST")
	r.HandleFunc("/mine/stop", d.handleMineStop).Methods("POST")
	r.HandleFunc("/transaction", d.handleTransaction).Methods("POST")
	return r
}

// Start binds the REST port and begins serving in the background.
func (d *Daemon) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", d.cfg.RestAPIPort)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	d.listener = l
	d.srv = &http.Server{Handler: d.Router()}
	go d.srv.Serve(l)
	d.log.Info("REST server listening", "addr", addr)
	return nil
}

// Addr returns the bound listen address.
func (d *Daemon) Addr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Close stops the REST server.
func (d *Daemon) Close() error {
	if d.srv == nil {
		return nil
	}
	return d.srv.Close()
}

func (d *Daemon) handleChain(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	resp := map[string]interface{}{
		"mempool_size":   d.mempool,
		"mining_enabled": d.mining,
		"blocks":         d.blocks,
	}
	d.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (d *Daemon) handleMineStart(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	d.mining = true
	d.mu.Unlock()
	d.log.Info("mining started")
	writeJSON(w, http.StatusOK, map[string]string{"status": "mining started"})
}

func (d *Daemon) handleMineStop(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	d.mining = false
	d.mu.Unlock()
	d.log.Info("mining stopped")
	writeJSON(w, http.StatusOK, map[string]string{"status": "mining stopped"})
}

func (d *Daemon) handleTransaction(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	d.mempool++
	size := d.mempool
	d.mu.Unlock()
	d.log.Info("transaction accepted", "mempool", size)
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "accepted", "mempool_size": size})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
