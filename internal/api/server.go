// Package api provides the HTTP surface for the supply-chain game.
// Gameplay endpoints are public; the config and results endpoints are
// an admin control plane behind a bearer token.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"chainsim/internal/config"
	"chainsim/internal/game"
	"chainsim/internal/negotiation"
	"chainsim/internal/sim"
	"chainsim/internal/store"
)

// Server serves game sessions over HTTP.
type Server struct {
	Store    game.SessionStore
	Engine   *game.Engine
	Cfg      *config.Service
	Audit    *store.AuditLog // nil when auditing is disabled
	Hub      *Hub            // nil when the observer stream is disabled
	Port     int
	AdminKey string // Bearer token for admin endpoints. Empty = admin disabled.
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "observer_hub", s.Hub != nil)

	handler := corsMiddleware(s.Handler())
	go func() {
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Handler builds the route table. Exposed so tests can drive the server
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	// Negotiation endpoints reach the language model, so they carry a
	// per-IP budget; pure simulation endpoints do not.
	negotiateLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", s.handleHealth)

	mux.HandleFunc("/api/v1/game/start", s.handleStartGame)
	mux.HandleFunc("/api/v1/game/order", s.handlePlaceOrder)
	mux.HandleFunc("/api/v1/game/end-early", s.handleEndEarly)
	mux.HandleFunc("/api/v1/game/", s.handleGameRoutes)

	mux.HandleFunc("/api/v1/negotiate", RateLimitMiddleware(negotiateLimiter, s.handlePropose))
	mux.HandleFunc("/api/v1/negotiate/chat", RateLimitMiddleware(negotiateLimiter, s.handleChat))
	mux.HandleFunc("/api/v1/negotiate/resolve", s.handleResolveDraft)

	mux.HandleFunc("/api/v1/config", s.handleConfig)
	mux.HandleFunc("/api/v1/config/reload", s.adminOnly(s.handleConfigReload))
	mux.HandleFunc("/api/v1/results", s.adminOnly(s.handleResults))

	if s.Hub != nil {
		mux.HandleFunc("/api/v1/watch", s.Hub.ServeWs)
	}

	return mux
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins;
// localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken reports whether the request carries the admin token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no CHAINSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok"})
}

type startGameRequest struct {
	TotalRounds  int    `json:"total_rounds"`
	DemandMethod string `json:"demand_method"`
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req startGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	sess, err := s.Engine.Start(req.TotalRounds, sim.DemandMethod(req.DemandMethod))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Store.Put(sess)
	writeJSON(w, sess)
}

type orderRequest struct {
	SessionID string `json:"session_id"`
	Quantity  int    `json:"quantity"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	err := s.Store.WithLock(req.SessionID, func(sess *game.Session) error {
		result, err := s.Engine.PlaceOrder(r.Context(), sess, req.Quantity)
		if err != nil {
			return err
		}
		resp := map[string]any{
			"session_id": sess.ID,
			"round":      sess.RoundNumber,
			"result":     result,
			"contract":   sess.Contract,
			"game_over":  sess.GameOver(),
		}
		s.Hub.Publish(Event{Type: "round_played", SessionID: sess.ID, Payload: resp})
		writeJSON(w, resp)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
	}
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleEndEarly(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	err := s.Store.WithLock(req.SessionID, func(sess *game.Session) error {
		if err := s.Engine.EndEarly(r.Context(), sess); err != nil {
			return err
		}
		writeJSON(w, sess)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
	}
}

// handleGameRoutes dispatches GET /api/v1/game/{id} and
// GET /api/v1/game/{id}/summary.
func (s *Server) handleGameRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/game/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		s.handleGameState(w, parts[0])
	case len(parts) == 2 && parts[1] == "summary":
		s.handleSummary(w, r, parts[0])
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleGameState(w http.ResponseWriter, id string) {
	err := s.Store.WithLock(id, func(sess *game.Session) error {
		writeJSON(w, sess)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, id string) {
	err := s.Store.WithLock(id, func(sess *game.Session) error {
		sum, err := s.Engine.Summary(r.Context(), sess)
		if err != nil {
			return err
		}
		s.Hub.Publish(Event{Type: "game_ended", SessionID: sess.ID, Payload: sum})
		writeJSON(w, sum)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
	}
}

type proposeRequest struct {
	SessionID string       `json:"session_id"`
	Contract  sim.Contract `json:"contract"`
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	err := s.Store.WithLock(req.SessionID, func(sess *game.Session) error {
		decision, message, err := s.Engine.Propose(r.Context(), sess, req.Contract)
		if err != nil {
			return err
		}
		resp := map[string]any{
			"session_id": sess.ID,
			"decision":   decision,
			"message":    message,
			"contract":   sess.Contract,
		}
		if decision == negotiation.DecisionAccept {
			s.Hub.Publish(Event{Type: "contract_accepted", SessionID: sess.ID, Payload: resp})
		}
		writeJSON(w, resp)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
	}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message must not be empty", http.StatusBadRequest)
		return
	}

	err := s.Store.WithLock(req.SessionID, func(sess *game.Session) error {
		reply, draft, err := s.Engine.Chat(r.Context(), sess, req.Message)
		if err != nil {
			return err
		}
		writeJSON(w, map[string]any{
			"session_id": sess.ID,
			"reply":      reply,
			"draft":      draft,
		})
		return nil
	})
	if err != nil {
		s.writeError(w, err)
	}
}

type resolveRequest struct {
	SessionID string `json:"session_id"`
	Accept    bool   `json:"accept"`
}

func (s *Server) handleResolveDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	err := s.Store.WithLock(req.SessionID, func(sess *game.Session) error {
		if err := s.Engine.ResolveDraft(r.Context(), sess, req.Accept); err != nil {
			return err
		}
		resp := map[string]any{
			"session_id": sess.ID,
			"accepted":   req.Accept,
			"contract":   sess.Contract,
		}
		if req.Accept {
			s.Hub.Publish(Event{Type: "contract_accepted", SessionID: sess.ID, Payload: resp})
		}
		writeJSON(w, resp)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{
		"economic_params": s.Cfg.Params(),
		"negotiation":     s.Cfg.Negotiation(),
		"demand_history":  s.Cfg.History(),
	})
}

func (s *Server) handleConfigReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.Cfg.Reload(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("configuration reloaded via API")
	writeJSON(w, map[string]any{"reloaded": true})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Audit == nil {
		http.Error(w, "results log disabled (no DB_DIALECT set)", http.StatusNotFound)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	results, err := s.Audit.RecentResults(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, results)
}

// writeError maps engine errors onto HTTP statuses: unknown session 404,
// bad input 400, rule violations 409, anything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, game.ErrGameOver),
		errors.Is(err, game.ErrGameNotOver),
		errors.Is(err, game.ErrNoActiveContract),
		errors.Is(err, game.ErrContractAlreadyActive),
		errors.Is(err, game.ErrNoDraftAvailable):
		status = http.StatusConflict
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
