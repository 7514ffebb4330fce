package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/flashsol/internal/logging"
	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/aretw0/flashsol/pkg/flow"
	"github.com/go-chi/chi/v5"
)

// Orchestrator is the conversational core the HTTP API fronts.
type Orchestrator interface {
	Start(ctx context.Context, userID string, flow domain.Flow) flow.Reply
	Input(ctx context.Context, userID, text string) flow.Reply
	Cancel(ctx context.Context, userID string) flow.Reply
	Status(ctx context.Context, userID string) (*flow.Status, error)
	Portfolio(ctx context.Context, userID string, page int) flow.Reply
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server serves the JSON API over an Orchestrator.
type Server struct {
	Orchestrator Orchestrator
	Streams      *StreamManager
	Health       []HealthChecker
	Metrics      http.Handler
	Version      string
	Logger       *slog.Logger
}

// Option configures the handler built by NewHandler.
type Option func(*Server)

// WithHealthChecks adds stores probed by GET /health.
func WithHealthChecks(checks ...HealthChecker) Option {
	return func(s *Server) {
		s.Health = append(s.Health, checks...)
	}
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithVersion sets the version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.Version = strings.TrimSpace(v)
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// InputRequest is the body of POST /users/{userID}/input.
type InputRequest struct {
	Text string `json:"text"`
}

// NewHandler creates a new HTTP handler for the orchestrator.
func NewHandler(orch Orchestrator, opts ...Option) http.Handler {
	server := &Server{
		Orchestrator: orch,
		Version:      "dev",
		Logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}
	server.Streams = NewStreamManager(server.Logger)

	r := chi.NewRouter()
	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	if server.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", server.Metrics)
	}
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Post("/commands/{command}", server.StartFlow)
		r.Post("/input", server.SendInput)
		r.Post("/cancel", server.CancelFlow)
		r.Get("/status", server.GetStatus)
		r.Get("/portfolio", server.GetPortfolio)
		r.Get("/events", server.SubscribeEvents)
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartFlow handles POST /users/{userID}/commands/{command}.
func (s *Server) StartFlow(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	command := domain.Flow(chi.URLParam(r, "command"))

	reply := s.Orchestrator.Start(r.Context(), userID, command)
	s.reply(w, userID, reply)
}

// SendInput handles POST /users/{userID}/input.
func (s *Server) SendInput(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var body InputRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.Logger.Warn("SendInput: Invalid request body", "error", err)
		return
	}

	reply := s.Orchestrator.Input(r.Context(), userID, body.Text)
	s.reply(w, userID, reply)
}

// CancelFlow handles POST /users/{userID}/cancel.
func (s *Server) CancelFlow(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	s.reply(w, userID, s.Orchestrator.Cancel(r.Context(), userID))
}

// GetStatus handles GET /users/{userID}/status.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	status, err := s.Orchestrator.Status(r.Context(), userID)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, domain.ErrStoreUnavailable) {
			code = http.StatusServiceUnavailable
		}
		http.Error(w, fmt.Sprintf("Status error: %v", err), code)
		s.Logger.Error("Status failed", "error", err, "user_id", userID)
		return
	}
	writeJSON(w, s.Logger, http.StatusOK, status)
}

// GetPortfolio handles GET /users/{userID}/portfolio?page=N. The page
// defaults to the first.
func (s *Server) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "Invalid page", http.StatusBadRequest)
			return
		}
		page = n
	}
	s.reply(w, userID, s.Orchestrator.Portfolio(r.Context(), userID, page))
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	for _, check := range s.Health {
		if err := check.Ping(r.Context()); err != nil {
			s.Logger.Warn("Health check failed", "error", err)
			writeJSON(w, s.Logger, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, s.Logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Logger, http.StatusOK, map[string]string{
		"app":     "flashsol-http",
		"version": s.Version,
	})
}

// reply answers the request and mirrors the reply to the user's streams.
// Sensitive replies only go to the requester.
func (s *Server) reply(w http.ResponseWriter, userID string, reply flow.Reply) {
	if !reply.Sensitive {
		if bytes, err := json.Marshal(reply); err == nil {
			s.Streams.Broadcast(userID, string(bytes))
		}
	}
	writeJSON(w, s.Logger, statusFor(reply), reply)
}

// statusFor maps a reply to an HTTP status. Replies are always
// delivered in the body; the status only classifies them.
func statusFor(reply flow.Reply) int {
	if reply.Error == nil {
		return http.StatusOK
	}
	switch reply.Error.Kind {
	case flow.KindInvalidInput, flow.KindInvalidPasskey, domain.KindInvalidRequest:
		return http.StatusBadRequest
	case flow.KindNoWallet, flow.KindNoFlow:
		return http.StatusNotFound
	case flow.KindWalletExists, domain.KindOperationInProgress:
		return http.StatusConflict
	case flow.KindDebounced:
		return http.StatusTooManyRequests
	case flow.KindSessionExpired:
		return http.StatusUnauthorized
	case domain.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "error", err)
	}
}
