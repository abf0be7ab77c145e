package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// TLSConfig holds paths to the PEM files needed for mTLS on the bootstrap
// listener. When nil or all paths empty, bootstrap connections are refused
// rather than falling back to plaintext.
type TLSConfig struct {
	CACert   string `json:"ca_cert"`   // CA certificate PEM path
	NodeCert string `json:"node_cert"` // node certificate PEM path
	NodeKey  string `json:"node_key"`  // node private key PEM path
}

// SeedPeer identifies a remote node to contact on startup, before the peer
// table has discovered anyone via keepalive gossip.
type SeedPeer struct {
	Addr string `json:"addr"` // host:port
}

// GenesisConfig describes the lattice's single pre-funded account, the
// only account that exists before any block is processed.
type GenesisConfig struct {
	Account string `json:"account"` // 64-char hex ed25519 pubkey
	Balance uint64 `json:"balance"`
}

// Config holds all node configuration, matching the option set a peer
// actually exposes: networking, voting, callbacks, and storage location.
// Options explicitly out of scope for this node's core (io_threads,
// work_threads, password_fanout) are still accepted and stored so a config
// file written for a full-featured peer loads without edits, even though
// this node doesn't act on them.
type Config struct {
	NodeID  string `json:"node_id"`
	DataDir string `json:"data_dir"`

	RPCPort      int `json:"rpc_port"`
	PeeringPort  int `json:"peering_port"`
	BootstrapPort int `json:"bootstrap_port"` // 0 disables the TLS bootstrap listener

	ReceiveMinimum       uint64 `json:"receive_minimum"`
	OnlineWeightMinimum  uint64 `json:"online_weight_minimum"`
	OnlineWeightQuorum   uint64 `json:"online_weight_quorum"` // percentage, e.g. 67
	EnableVoting         bool   `json:"enable_voting"`
	BootstrapConnections    int `json:"bootstrap_connections"`
	BootstrapConnectionsMax int `json:"bootstrap_connections_max"`

	PasswordFanout int `json:"password_fanout"`
	IOThreads      int `json:"io_threads"`
	WorkThreads    int `json:"work_threads"`

	CallbackAddress string `json:"callback_address,omitempty"`
	CallbackPort    int    `json:"callback_port,omitempty"`
	CallbackTarget  string `json:"callback_target,omitempty"`

	RepresentativePrivateKey string `json:"representative_private_key,omitempty"` // hex; empty → non-voting node

	Genesis      GenesisConfig `json:"genesis"`
	SeedPeers    []SeedPeer    `json:"seed_peers,omitempty"`
	TLS          *TLSConfig    `json:"tls,omitempty"`
	RPCAuthToken string        `json:"rpc_auth_token,omitempty"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:                  "node0",
		DataDir:                 "./data",
		RPCPort:                 7076,
		PeeringPort:             7075,
		BootstrapPort:           7074,
		ReceiveMinimum:          1_000_000,
		OnlineWeightMinimum:     60_000_000_000,
		OnlineWeightQuorum:      67,
		EnableVoting:            false,
		BootstrapConnections:    4,
		BootstrapConnectionsMax: 64,
		PasswordFanout:          1024,
		IOThreads:               4,
		WorkThreads:             4,
	}
}

// Load reads a JSON config file from path and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.RPCPort <= 0 || c.RPCPort > 65535 {
		return fmt.Errorf("rpc_port must be 1-65535, got %d", c.RPCPort)
	}
	if c.PeeringPort <= 0 || c.PeeringPort > 65535 {
		return fmt.Errorf("peering_port must be 1-65535, got %d", c.PeeringPort)
	}
	if c.RPCPort == c.PeeringPort {
		return fmt.Errorf("rpc_port and peering_port must not be the same (%d)", c.RPCPort)
	}
	if c.BootstrapPort != 0 && c.BootstrapPort == c.PeeringPort {
		return fmt.Errorf("bootstrap_port must differ from peering_port")
	}
	if c.OnlineWeightQuorum == 0 || c.OnlineWeightQuorum > 100 {
		return fmt.Errorf("online_weight_quorum must be 1-100, got %d", c.OnlineWeightQuorum)
	}
	if c.Genesis.Account == "" {
		return fmt.Errorf("genesis.account must not be empty")
	}
	if b, err := hex.DecodeString(c.Genesis.Account); err != nil || len(b) != 32 {
		return fmt.Errorf("genesis.account: must be 64-char hex (32 bytes ed25519 pubkey), got %q", c.Genesis.Account)
	}
	if c.EnableVoting {
		if c.RepresentativePrivateKey == "" {
			return fmt.Errorf("enable_voting requires representative_private_key")
		}
		if b, err := hex.DecodeString(c.RepresentativePrivateKey); err != nil || len(b) != 64 {
			return fmt.Errorf("representative_private_key: must be 128-char hex (64 bytes ed25519 privkey)")
		}
	}
	if c.TLS != nil {
		t := c.TLS
		allSet := t.CACert != "" && t.NodeCert != "" && t.NodeKey != ""
		allEmpty := t.CACert == "" && t.NodeCert == "" && t.NodeKey == ""
		if !allSet && !allEmpty {
			return fmt.Errorf("tls: all three paths (ca_cert, node_cert, node_key) must be set or all empty")
		}
	}
	if c.BootstrapPort != 0 && c.TLS == nil {
		return fmt.Errorf("bootstrap_port requires tls to be configured")
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
