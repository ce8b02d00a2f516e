// Command auction-gateway serves the enclave's request protocol over HTTP on
// the parent instance, forwarding each call to the enclave over vsock.
//
// Usage:
//
//	GATEWAY_CONFIG=config.yaml auction-gateway
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/cloudx-io/assetauction/config"
	"github.com/cloudx-io/assetauction/gateway"
	"github.com/cloudx-io/assetauction/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAndValidate(os.Getenv("GATEWAY_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	log := logging.WithComponent(logger, "gateway")

	client := gateway.NewClient(
		gateway.VsockDialer(cfg.Gateway.EnclaveCID, cfg.Gateway.EnclavePort),
		cfg.Gateway.RequestTimeout,
	)
	server := gateway.New(cfg.Gateway, client, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"enclave_cid":  cfg.Gateway.EnclaveCID,
		"enclave_port": cfg.Gateway.EnclavePort,
	}).Info("Starting gateway")
	if err := server.Run(ctx); err != nil {
		log.WithError(err).Fatal("Gateway stopped")
	}
}
