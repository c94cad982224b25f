// Package server implements the HTTP server that exposes the chat assistant
// via a JSON REST API. Responses are plain JSON, not streamed; a chat call
// returns once the generate + validate protocol has finished. The server is
// started by the `chartchat serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/chartchat-go/internal/chat"
	"github.com/54b3r/chartchat-go/internal/logging"
)

// New constructs a Server over the given conversation and config.
func New(conv converser, status statusReporter, cfg *Config) (*Server, error) {
	if conv == nil {
		return nil, fmt.Errorf("server: conversation must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// A chat turn holds the connection through two model calls.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	s := &Server{
		conv:    conv,
		status:  status,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(registry),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", s.instrument("chat", s.protect(rl, http.HandlerFunc(s.handleChat))))
	mux.Handle("POST /api/reset", s.instrument("reset", s.protect(rl, http.HandlerFunc(s.handleReset))))
	mux.Handle("GET /api/history", s.instrument("history", s.protect(rl, http.HandlerFunc(s.handleHistory))))
	mux.Handle("GET /api/status", s.instrument("status", s.protect(rl, http.HandlerFunc(s.handleStatus))))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// protect wraps a handler with rate limiting and authentication.
func (s *Server) protect(rl *rateLimiter, next http.Handler) http.Handler {
	return rl.middleware(authMiddleware(s.cfg.APIKey, next))
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.APIKey == "" {
		s.log.Warn("server: API authentication disabled, set an api key for production use")
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleChat handles POST /api/chat. It runs a full turn and answers with
// the final assistant message. A turn already in flight yields 409 — there
// is no queueing, the client retries.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.chatRequestsTotal.WithLabelValues(outcomeBadRequest).Inc()
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := s.conv.SendMessage(r.Context(), req.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		s.metrics.chatRequestsTotal.WithLabelValues(outcomeBadRequest).Inc()
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	case errors.Is(err, chat.ErrBusy):
		s.metrics.chatRequestsTotal.WithLabelValues(outcomeBusy).Inc()
		w.Header().Set("Retry-After", "1")
		http.Error(w, "a request is already in flight", http.StatusConflict)
		return
	case err != nil:
		s.metrics.chatRequestsTotal.WithLabelValues(outcomeError).Inc()
		logging.FromContext(r.Context()).Error("chat turn failed", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.metrics.chatRequestsTotal.WithLabelValues(outcomeOK).Inc()
	s.metrics.chatDurationSeconds.Observe(time.Since(start).Seconds())

	s.writeJSON(w, r, http.StatusOK, chatResponse{
		Role:      string(msg.Role),
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	})
}

// handleReset handles POST /api/reset: clears the session and reseeds the
// greeting.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.conv.Reset(r.Context()); err != nil {
		logging.FromContext(r.Context()).Error("reset failed", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, r, http.StatusOK, historyResponse{Messages: s.conv.Messages()})
}

// handleHistory handles GET /api/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, historyResponse{Messages: s.conv.Messages()})
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse
	if s.status != nil {
		resp.Retrieval = s.status.Status()
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the response body with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}
