package config

import (
	"time"
)

// Config is the process-wide configuration for a dex-gossip node.
type Config struct {
	// Node configuration
	NodeID   string `json:"node_id"`
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`

	// Network configuration
	Network NetworkConfig `json:"network"`

	// Gossip engine configuration
	Gossip GossipConfig `json:"gossip"`

	// API configuration
	API APIConfig `json:"api"`
}

type NetworkConfig struct {
	ListenAddr     string        `json:"listen_addr"`
	BootstrapPeers []string      `json:"bootstrap_peers"`
	MaxPeers       int           `json:"max_peers"`
	PingInterval   time.Duration `json:"ping_interval"`
}

// GossipConfig holds the few engine-facing knobs left configurable
// outside the fixed constants in dex/constants.go — bucket sizing, the
// PoW mask, and fanout are compile-time protocol constants, not
// runtime settings, matching the original's #define block.
type GossipConfig struct {
	DefaultPriority int  `json:"default_priority"`
	BlastMode       bool `json:"blast_mode"`
}

type APIConfig struct {
	ListenAddr string `json:"listen_addr"`
	EnableCORS bool   `json:"enable_cors"`
}

// Load returns a default configuration.
// TODO: add file-based configuration loading
func Load() (*Config, error) {
	return &Config{
		NodeID:   "dex-gossip-node",
		DataDir:  "./data",
		LogLevel: "info",
		Network: NetworkConfig{
			ListenAddr:     "/ip4/0.0.0.0/tcp/9000",
			BootstrapPeers: []string{},
			MaxPeers:       50,
			PingInterval:   30 * time.Second,
		},
		Gossip: GossipConfig{
			DefaultPriority: 0,
			BlastMode:       false,
		},
		API: APIConfig{
			ListenAddr: ":8080",
			EnableCORS: true,
		},
	}, nil
}
