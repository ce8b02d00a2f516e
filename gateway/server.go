// Package gateway exposes the enclave's JSON protocol over HTTP. Each
// POST /v1/{operation} is forwarded to the enclave as a single request.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/cloudx-io/assetauction/config"
	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/enclaveapi"
)

// CallerHeader carries the authenticated caller when the request body does
// not name one.
const CallerHeader = "X-Auction-Caller"

const maxBodyBytes = 1 << 20

var errUnavailable = errors.New("enclave unavailable")

// operatorOnly request types are served by the enclave but never over HTTP.
// Deposits credit funds without any backing transfer.
var operatorOnly = []string{enclaveapi.TypeDeposit}

// Exposed reports whether op may be called through the gateway.
func Exposed(op string) bool {
	return slices.Contains(enclaveapi.RequestTypes, op) && !slices.Contains(operatorOnly, op)
}

// Server is the HTTP front end.
type Server struct {
	cfg    config.GatewayConfig
	client *Client
	log    logrus.FieldLogger
	srv    *http.Server
}

// New creates a gateway that forwards through client.
func New(cfg config.GatewayConfig, client *Client, log logrus.FieldLogger) *Server {
	s := &Server{cfg: cfg, client: client, log: log}
	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/{operation}", s.handleOperation)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("listen_addr", s.cfg.ListenAddr).Info("Gateway listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("Gateway stopped")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	raw, err := s.client.Do(r.Context(), enclaveapi.Request{Type: enclaveapi.TypePing})
	if err != nil {
		s.log.WithError(err).Warn("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	var pong enclaveapi.Response
	if err := json.Unmarshal(raw, &pong); err != nil || !pong.Success {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "operation")
	if !Exposed(op) {
		writeJSON(w, http.StatusNotFound, enclaveapi.NewErrorResponse(op,
			fmt.Errorf("%w: unknown operation %q", core.ErrInvalidInput, op)))
		return
	}

	var req enclaveapi.Request
	if r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, enclaveapi.NewErrorResponse(op,
				fmt.Errorf("%w: decode body: %v", core.ErrInvalidInput, err)))
			return
		}
	}
	if req.Type != "" && req.Type != op {
		writeJSON(w, http.StatusBadRequest, enclaveapi.NewErrorResponse(op,
			fmt.Errorf("%w: body type %q does not match path %q", core.ErrInvalidInput, req.Type, op)))
		return
	}
	req.Type = op
	if req.Caller == "" {
		req.Caller = core.AccountID(r.Header.Get(CallerHeader))
	}

	raw, err := s.client.Do(r.Context(), req)
	if err != nil {
		s.log.WithError(err).WithField("operation", op).Error("Enclave request failed")
		writeJSON(w, http.StatusBadGateway, enclaveapi.NewErrorResponse(op, fmt.Errorf("%w: %v", errUnavailable, err)))
		return
	}

	var status struct {
		Success   *bool  `json:"success"`
		ErrorKind string `json:"error_kind"`
	}
	code := http.StatusOK
	if err := json.Unmarshal(raw, &status); err == nil && status.Success != nil && !*status.Success {
		code = StatusFor(status.ErrorKind)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(raw)
}

// StatusFor maps an error kind from an enclave response to an HTTP status.
func StatusFor(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "unauthorized":
		return http.StatusForbidden
	case "invalid_input":
		return http.StatusBadRequest
	case "invalid_state", "bid_too_low", "insufficient_funds", "reserve_failed", "duplicate_identifier":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
