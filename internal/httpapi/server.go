package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ent0n29/aide/internal/conversation"
	"github.com/ent0n29/aide/internal/intent"
	"github.com/ent0n29/aide/internal/observability"
	"github.com/ent0n29/aide/internal/session"
	"github.com/ent0n29/aide/internal/store"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

type Dispatcher interface {
	Dispatch(ctx context.Context, input string) intent.Reply
}

type SessionState interface {
	State() session.State
}

type History interface {
	Recent() []conversation.Entry
}

// Deps wires the operator API to the running assistant. Session, History and
// Bridge may be nil.
type Deps struct {
	Store       store.Store
	StoreDriver string
	Dispatcher  Dispatcher
	Session     SessionState
	History     History
	Bridge      http.Handler
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

type Server struct {
	deps   Deps
	logger *zap.Logger
}

func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{deps: deps, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.deps.Metrics.Handler().ServeHTTP(w, r)
	})

	r.Get("/v1/perf/dispatch", s.handlePerfDispatch)
	r.Get("/v1/tasks", s.handleListTasks)
	r.Get("/v1/reminders", s.handleListReminders)
	r.Get("/v1/history", s.handleHistory)
	r.Post("/v1/say", s.handleSay)
	r.Get("/v1/session/ws", s.handleSessionWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"store_driver": s.deps.StoreDriver,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	state := ""
	if s.deps.Session != nil {
		state = string(s.deps.Session.State())
	}
	status, code := "ready", http.StatusOK
	if s.deps.Store == nil {
		status, code = "no_store", http.StatusServiceUnavailable
	} else if state == string(session.StateShutdown) {
		status, code = "shutting_down", http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]any{
		"status":        status,
		"session_state": state,
		"store_driver":  s.deps.StoreDriver,
	})
}

func (s *Server) handlePerfDispatch(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Metrics.Latency())
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "store not configured")
		return
	}
	tasks, err := s.deps.Store.ListIncompleteTasks(r.Context())
	if err != nil {
		s.storeFailed(w, "list_tasks", err)
		return
	}
	if tasks == nil {
		tasks = []store.Task{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "store not configured")
		return
	}
	reminders, err := s.deps.Store.ListPendingReminders(r.Context())
	if err != nil {
		s.storeFailed(w, "list_reminders", err)
		return
	}
	if reminders == nil {
		reminders = []store.Reminder{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"reminders": reminders})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("n")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "n must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	resp := map[string]any{}
	if s.deps.History != nil {
		entries := s.deps.History.Recent()
		if len(entries) > limit {
			entries = entries[len(entries)-limit:]
		}
		resp["session"] = entries
	}
	if s.deps.Store != nil {
		turns, err := s.deps.Store.RecentTurns(r.Context(), limit)
		if err != nil {
			s.storeFailed(w, "recent_turns", err)
			return
		}
		if turns == nil {
			turns = []store.Turn{}
		}
		resp["turns"] = turns
	}
	respondJSON(w, http.StatusOK, resp)
}

type sayRequest struct {
	Text string `json:"text"`
}

type sayResponse struct {
	Reply  string `json:"reply"`
	Intent string `json:"intent"`
	Quit   bool   `json:"quit"`
}

func (s *Server) handleSay(w http.ResponseWriter, r *http.Request) {
	if s.deps.Dispatcher == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "dispatcher not configured")
		return
	}
	var req sayRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	reply := s.deps.Dispatcher.Dispatch(r.Context(), text)
	respondJSON(w, http.StatusOK, sayResponse{
		Reply:  reply.Text,
		Intent: reply.Intent,
		Quit:   reply.Quit,
	})
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	if s.deps.Bridge == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "voice bridge not enabled")
		return
	}
	s.deps.Bridge.ServeHTTP(w, r)
}

func (s *Server) storeFailed(w http.ResponseWriter, op string, err error) {
	s.deps.Metrics.StoreError(op)
	s.logger.Warn("store read failed", zap.String("op", op), zap.Error(err))
	respondError(w, http.StatusInternalServerError, "store_error", "storage unavailable")
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
