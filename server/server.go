// Package server is the HTTP surface of the relayer. It carries no business
// logic: requests are handed to the admission core and its outcome is
// rendered as JSON.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"relayer/relay"
	"relayer/types"
)

const (
	pathRelay   = "/relay"
	pathHealth  = "/health"
	pathMetrics = "/metrics"

	maxBodyBytes = 64 * 1024
)

// Relayer is the admission core as seen by the HTTP layer.
type Relayer interface {
	PublicKey() solana.PublicKey
	Relay(ctx context.Context, req types.RelayRequest) (types.SubmissionResult, error)
}

type Config struct {
	Port           int
	Mode           string
	RateLimit      float64
	RateBurst      int
	RequestTimeout time.Duration
}

type Server struct {
	log     *slog.Logger
	cfg     Config
	relayer Relayer
	limiter *rate.Limiter
	srv     *http.Server
}

func New(log *slog.Logger, cfg Config, relayer Relayer) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{log: log, cfg: cfg, relayer: relayer}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(pathRelay, s.handleRelay).Methods(http.MethodPost)
	r.HandleFunc(pathHealth, s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc(pathMetrics, func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	}).Methods(http.MethodGet)
	return r
}

// Start blocks until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Relayer listening", "addr", s.srv.Addr, "pubkey", s.relayer.PublicKey())
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) respond(w http.ResponseWriter, code int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if response == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log.Error("Couldn't write response", "err", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, kind types.ErrorKind, reason string) {
	s.respond(w, kind.HTTPStatus(), types.RelayResponse{
		Status: kind.ResponseStatus(),
		Reason: reason,
		Code:   kind,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, types.HealthStatus{
		Status:        "online",
		RelayerPubkey: s.relayer.PublicKey(),
		Mode:          s.cfg.Mode,
	})
}

func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		s.respondError(w, types.RateLimited, "too many requests")
		return
	}

	var req types.RelayRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.respondError(w, types.InvalidRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	// the request context is cancelled when the client goes away
	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	res, err := s.relayer.Relay(ctx, req)
	code, resp := relay.Respond(res, err)
	s.respond(w, code, resp)
}
