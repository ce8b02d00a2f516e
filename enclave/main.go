package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/cloudx-io/assetauction/config"
	"github.com/cloudx-io/assetauction/logging"
)

// applyEnvOverrides lets the enclave launcher tune the worker pool and port
// without rebuilding the image's config file.
func applyEnvOverrides(cfg *config.Config) error {
	if err := envInt("ENCLAVE_MAX_WORKERS", &cfg.Server.MaxWorkers); err != nil {
		return err
	}
	var port int
	if err := envInt("ENCLAVE_VSOCK_PORT", &port); err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.VsockPort = uint32(port)
	}
	return nil
}

// envInt parses key into dst when it is set.
func envInt(key string, dst *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %s (must be a valid integer)", key, value)
	}
	*dst = intValue
	return nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAndValidate(os.Getenv("ENCLAVE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	log := logging.WithComponent(logger, "enclave")

	server, err := NewEnclaveServer(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to start enclave server")
	}
	log.WithError(server.Start()).Fatal("Enclave server stopped")
}
