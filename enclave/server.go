package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/mdlayher/vsock"
	"github.com/sirupsen/logrus"

	"github.com/cloudx-io/assetauction/config"
	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/enclaveapi"
	"github.com/cloudx-io/assetauction/ledger"
	"github.com/cloudx-io/assetauction/sequencer"
	"github.com/cloudx-io/assetauction/statefile"
)

// getEnclaveAttester attempts to get the NSM attester, returns error if not available
func getEnclaveAttester() (EnclaveAttester, error) {
	handle, err := enclave.GetOrInitializeHandle()
	if err != nil {
		return nil, fmt.Errorf("NSM not available: %w", err)
	}
	return handle, nil
}

// EnclaveServer accepts JSON requests over vsock and runs them against a
// single auction engine.
type EnclaveServer struct {
	port        uint32
	maxWorkers  int
	readTimeout time.Duration

	seq        *sequencer.Sequencer
	keyManager *KeyManager
	attester   func() (EnclaveAttester, error)
	log        logrus.FieldLogger
}

// NewEnclaveServer generates the signing key and restores the engine from
// cfg.State.Path. An empty path keeps state in memory only.
func NewEnclaveServer(cfg *config.Config, log logrus.FieldLogger) (*EnclaveServer, error) {
	keyManager, err := NewKeyManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key manager: %w", err)
	}
	log.Info("KeyManager initialized")

	events := &core.RecordingSink{}
	engineOpts := sequencer.EngineOptions(events, log)

	var (
		engine *core.Engine
		l      *ledger.Ledger
	)
	seqOpts := []sequencer.Option{
		sequencer.WithSigner(keyManager.Signer()),
		sequencer.WithLogger(log),
	}
	if path := cfg.State.Path; path != "" {
		engine, l, err = statefile.Load(path, cfg.Engine.CoreConfig(), engineOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load state: %w", err)
		}
		seqOpts = append(seqOpts, sequencer.WithCommit(func(e *core.Engine, l *ledger.Ledger) error {
			return statefile.Save(path, e, l)
		}))
		log.WithField("path", path).Info("State restored")
	} else {
		l = ledger.New()
		engine = core.NewEngine(cfg.Engine.CoreConfig(), l, engineOpts...)
	}

	return &EnclaveServer{
		port:        cfg.Server.VsockPort,
		maxWorkers:  cfg.Server.MaxWorkers,
		readTimeout: cfg.Server.ReadTimeout,
		seq:         sequencer.New(engine, l, events, seqOpts...),
		keyManager:  keyManager,
		attester:    getEnclaveAttester,
		log:         log,
	}, nil
}

// Start listens on the configured vsock port until the listener fails.
func (s *EnclaveServer) Start() error {
	listener, err := vsock.Listen(s.port, nil)
	if err != nil {
		return fmt.Errorf("failed to create vsock listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			s.log.WithError(err).Error("Failed to close listener")
		}
	}()

	s.log.WithField("port", s.port).Info("TEE server listening on vsock")
	return s.Serve(listener)
}

// Serve accepts connections from listener with a bounded worker pool. A
// connection that arrives while every worker is busy is closed immediately.
// Serve returns nil once the listener is closed.
func (s *EnclaveServer) Serve(listener net.Listener) error {
	semaphore := make(chan struct{}, s.maxWorkers)
	s.log.WithField("max_workers", s.maxWorkers).Info("Worker pool initialized")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.WithError(err).Error("Failed to accept connection")
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }() // Release worker slot
				s.handleConnection(c)
			}(conn)
		default:
			s.log.Info("No workers available, rejecting connection (pool full)")
			if err := conn.Close(); err != nil {
				s.log.WithError(err).Error("Failed to close rejected connection")
			}
		}
	}
}

func (s *EnclaveServer) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("Panic recovered in handleConnection")
		}
		if err := conn.Close(); err != nil {
			s.log.WithError(err).Debug("Failed to close connection")
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))

	var (
		req      enclaveapi.Request
		response any
	)
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.log.WithError(err).Error("Failed to decode request")
		response = &enclaveapi.Response{
			Type:      enclaveapi.TypeError,
			Message:   fmt.Sprintf("Failed to decode request: %v", err),
			ErrorKind: core.ErrorKind(core.ErrInvalidInput),
		}
	} else {
		s.log.WithField("request_type", req.Type).Debug("Received request")
		response = s.dispatch(req)
	}

	if err := json.NewEncoder(conn).Encode(response); err != nil {
		s.log.WithError(err).Error("Failed to encode response")
	}
}

func (s *EnclaveServer) dispatch(req enclaveapi.Request) any {
	switch req.Type {
	case enclaveapi.TypePing:
		return &enclaveapi.Response{
			Type:      enclaveapi.ResponseType(enclaveapi.TypePing),
			Success:   true,
			Message:   "TEE server is healthy",
			Timestamp: time.Now().Unix(),
		}

	case enclaveapi.TypeKeyRequest:
		attester, err := s.attester()
		if err != nil {
			s.log.WithError(err).Error("Key request failed")
			return enclaveapi.NewErrorResponse(req.Type, fmt.Errorf("failed to initialize TEE attester: %w", err))
		}
		keyResp, err := HandleKeyRequest(attester, s.keyManager)
		if err != nil {
			s.log.WithError(err).Error("Key request failed")
			return enclaveapi.NewErrorResponse(req.Type, err)
		}
		return keyResp

	default:
		return s.seq.Handle(req)
	}
}
