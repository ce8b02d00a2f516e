package config

import (
	"time"

	"github.com/cloudx-io/assetauction/core"
)

// Default values for optional configuration fields.
const (
	DefaultVsockPort      = 5000
	DefaultMaxWorkers     = 16
	DefaultReadTimeout    = 30 * time.Second
	DefaultListenAddr     = ":8080"
	DefaultEnclaveCID     = 16
	DefaultRequestTimeout = 10 * time.Second
	DefaultLogLevel       = "info"
	DefaultLogMaxSizeMB   = 100
	DefaultLogMaxBackups  = 3
	DefaultStatePath      = "auction-state.cbor"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	// Engine defaults
	if c.Engine.MinAuctionDuration == 0 {
		c.Engine.MinAuctionDuration = core.DefaultMinAuctionDuration
	}
	if c.Engine.DisplayPeriod == 0 {
		c.Engine.DisplayPeriod = core.DefaultDisplayPeriod
	}
	if c.Engine.LeaderboardSize == 0 {
		c.Engine.LeaderboardSize = core.DefaultLeaderboardSize
	}

	// Server defaults
	if c.Server.VsockPort == 0 {
		c.Server.VsockPort = DefaultVsockPort
	}
	if c.Server.MaxWorkers == 0 {
		c.Server.MaxWorkers = DefaultMaxWorkers
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}

	// Gateway defaults
	if c.Gateway.ListenAddr == "" {
		c.Gateway.ListenAddr = DefaultListenAddr
	}
	if c.Gateway.EnclaveCID == 0 {
		c.Gateway.EnclaveCID = DefaultEnclaveCID
	}
	if c.Gateway.EnclavePort == 0 {
		c.Gateway.EnclavePort = c.Server.VsockPort
	}
	if c.Gateway.RequestTimeout == 0 {
		c.Gateway.RequestTimeout = DefaultRequestTimeout
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}

	if c.State.Path == "" {
		c.State.Path = DefaultStatePath
	}
}
