package config

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Validate checks that values are in range.
func (c *Config) Validate() error {
	if c.Engine.LeaderboardSize < 1 {
		return fmt.Errorf("engine.leaderboard_size must be >= 1, got %d", c.Engine.LeaderboardSize)
	}
	if c.Engine.DisplayPeriod < 0 {
		return errors.New("engine.display_period must not be negative")
	}

	if c.Server.MaxWorkers < 1 {
		return fmt.Errorf("server.max_workers must be >= 1, got %d", c.Server.MaxWorkers)
	}
	if c.Server.ReadTimeout <= 0 {
		return errors.New("server.read_timeout must be positive")
	}

	if c.Gateway.ListenAddr == "" {
		return errors.New("gateway.listen_addr is required")
	}
	if c.Gateway.RequestTimeout <= 0 {
		return errors.New("gateway.request_timeout must be positive")
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return errors.New("logging rotation limits must not be negative")
	}

	if c.State.Path == "" {
		return errors.New("state.path is required")
	}
	return nil
}
