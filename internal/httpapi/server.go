package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/bhashavox/bhashavox/internal/coach"
	"github.com/bhashavox/bhashavox/internal/config"
	"github.com/bhashavox/bhashavox/internal/conversation"
	"github.com/bhashavox/bhashavox/internal/ledger"
	"github.com/bhashavox/bhashavox/internal/memory"
	"github.com/bhashavox/bhashavox/internal/observability"
	"github.com/bhashavox/bhashavox/internal/ollama"
	"github.com/bhashavox/bhashavox/internal/prompt"
)

// Coach is the engine surface the HTTP layer needs.
type Coach interface {
	HandleTurn(ctx context.Context, conversationID, utterance string) (coach.TurnResult, error)
	AssessLevel(ctx context.Context, conversationID, utterance string) (ledger.Level, string, error)
	History(ctx context.Context, conversationID string, maxTurns int) ([]memory.Turn, error)
	Stats(conversationID string) (coach.Stats, error)
	Reset(ctx context.Context, conversationID string) error
	BackendStatus(ctx context.Context) (bool, []string, error)
	Model() string
}

type Server struct {
	cfg      config.Config
	engine   Coach
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, engine Coach, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		engine:  engine,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so another site cannot drive a learner's
				// conversation if the service is exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/status", s.handleStatus)
	r.Post("/v1/chat", s.handleChat)
	r.Post("/v1/assess-level", s.handleAssessLevel)
	r.Get("/v1/conversations/{id}/history", s.handleHistory)
	r.Get("/v1/conversations/{id}/stats", s.handleStats)
	r.Post("/v1/conversations/{id}/reset", s.handleReset)
	r.Get("/v1/chat/ws", s.handleChatWS)

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"service": "bhashavox",
		"model":   s.engine.Model(),
		"endpoints": []string{
			"POST /v1/chat",
			"POST /v1/assess-level",
			"GET /v1/conversations/{id}/history",
			"GET /v1/conversations/{id}/stats",
			"POST /v1/conversations/{id}/reset",
			"GET /v1/chat/ws",
			"GET /v1/status",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// Readiness tracks the inference backend: the service can accept traffic
	// only when a model is reachable.
	available, _, err := s.engine.BackendStatus(r.Context())
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "backend unreachable",
		})
		return
	}
	if !available {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "model not available",
			"model":  s.engine.Model(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	available, models, err := s.engine.BackendStatus(r.Context())
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"backend_reachable": false,
			"model":             s.engine.Model(),
			"model_available":   false,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"backend_reachable": true,
		"model":             s.engine.Model(),
		"model_available":   available,
		"models":            models,
	})
}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := s.engine.HandleTurn(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		s.respondCoachError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleAssessLevel(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	level, id, err := s.engine.AssessLevel(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		s.respondCoachError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"level":           level,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	turns, err := s.engine.History(r.Context(), id, s.cfg.MaxHistoryTurns)
	if err != nil {
		s.respondCoachError(w, err)
		return
	}
	if turns == nil {
		turns = []memory.Turn{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"turns":           turns,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stats, err := s.engine.Stats(id)
	if err != nil {
		s.respondCoachError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.Reset(r.Context(), id); err != nil {
		s.respondCoachError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"status":          "reset",
	})
}

// respondCoachError maps engine errors onto HTTP statuses. Backend faults are
// gateway errors, everything local to the request is a client error.
func (s *Server) respondCoachError(w http.ResponseWriter, err error) {
	var vErr *ledger.ValidationError
	switch {
	case errors.Is(err, coach.ErrEmptyUtterance):
		respondError(w, http.StatusBadRequest, "empty_message", err.Error())
	case errors.As(err, &vErr):
		respondError(w, http.StatusBadRequest, "out_of_order_turn", err.Error())
	case errors.Is(err, conversation.ErrNotFound):
		respondError(w, http.StatusNotFound, "conversation_not_found", err.Error())
	case errors.Is(err, prompt.ErrPromptTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, "prompt_too_large", err.Error())
	case errors.Is(err, ollama.ErrTimeout):
		respondError(w, http.StatusGatewayTimeout, "backend_timeout", err.Error())
	case errors.Is(err, ollama.ErrUnavailable):
		respondError(w, http.StatusBadGateway, "backend_unavailable", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
