// Package config loads the YAML configuration shared by the enclave server,
// the gateway and the operator CLI.
package config

import (
	"time"

	"github.com/cloudx-io/assetauction/core"
)

// Config is the root configuration document.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Server  ServerConfig  `yaml:"server"`
	Gateway GatewayConfig `yaml:"gateway"`
	Logging LoggingConfig `yaml:"logging"`
	State   StateConfig   `yaml:"state"`
}

// EngineConfig holds the auction rules.
type EngineConfig struct {
	// MinAuctionDuration is the shortest allowed auction. Set it to a negative
	// value to disable the check; zero selects the default.
	MinAuctionDuration time.Duration `yaml:"min_auction_duration"`
	DisplayPeriod      time.Duration `yaml:"display_period"`
	LeaderboardSize    int           `yaml:"leaderboard_size"`
}

// ServerConfig configures the enclave's vsock listener.
type ServerConfig struct {
	VsockPort   uint32        `yaml:"vsock_port"`
	MaxWorkers  int           `yaml:"max_workers"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// GatewayConfig configures the HTTP bridge in front of the enclave.
type GatewayConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	EnclaveCID     uint32        `yaml:"enclave_cid"`
	EnclavePort    uint32        `yaml:"enclave_port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LoggingConfig selects the log level and optional rotating file output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// StateConfig points at the snapshot file used by the CLI.
type StateConfig struct {
	Path string `yaml:"path"`
}

// CoreConfig converts the engine section into core.Config.
func (e EngineConfig) CoreConfig() core.Config {
	cfg := core.Config{
		MinAuctionDuration: e.MinAuctionDuration,
		DisplayPeriod:      e.DisplayPeriod,
		LeaderboardSize:    e.LeaderboardSize,
	}
	if cfg.MinAuctionDuration < 0 {
		cfg.MinAuctionDuration = 0
	}
	return cfg
}
