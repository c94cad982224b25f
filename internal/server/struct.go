package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/chartchat-go/internal/retrieval"
	"github.com/54b3r/chartchat-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. Must
	// cover a full generate + validate round trip.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics. If nil a private
	// registry is created, keeping tests hermetic.
	Registry *prometheus.Registry
}

// converser is the interface the handlers call into the conversation layer.
// *chat.Conversation satisfies it; tests inject a fake.
type converser interface {
	SendMessage(ctx context.Context, text string) (store.Message, error)
	Messages() []store.Message
	Reset(ctx context.Context) error
}

// statusReporter reports retrieval readiness for GET /api/status.
// *retrieval.Service satisfies it.
type statusReporter interface {
	Status() retrieval.Status
}

// Server is the HTTP server that exposes the conversation over a JSON API.
type Server struct {
	// conv handles chat turns, history and resets.
	conv converser
	// status reports retrieval readiness; may be nil when retrieval is
	// disabled.
	status statusReporter
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Message is the user's natural language question.
	Message string `json:"message"`
}

// chatResponse is the JSON response for POST /api/chat.
type chatResponse struct {
	// Role is always "assistant".
	Role string `json:"role"`
	// Content is the final (possibly validation-corrected) answer.
	Content string `json:"content"`
	// Timestamp is when the answer was produced.
	Timestamp time.Time `json:"timestamp"`
}

// historyResponse is the JSON response for GET /api/history.
type historyResponse struct {
	// Messages is the session history, oldest-first.
	Messages []store.Message `json:"messages"`
}

// statusResponse is the JSON response for GET /api/status.
type statusResponse struct {
	// Retrieval reports vector store and cache readiness.
	Retrieval retrieval.Status `json:"retrieval"`
}
