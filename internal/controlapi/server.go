// Package controlapi is the read-mostly HTTP control surface (§4.7): health,
// status, a debug position listing, a forced sync, and a forced close, all
// but /health authenticated by a shared X-API-KEY header. Grounded on the
// teacher's risk dashboard (`internal/dashboard/risk_dashboard.go`)'s
// gorilla/mux router and websocket streaming shape, re-scoped to this
// domain's read-only status surface instead of circuit-breaker telemetry.
package controlapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"bitunix-position-manager/internal/domain"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// scheduler is the subset of *scheduler.Scheduler the Control API depends
// on; defined as an interface here so the server can be tested without a
// live exchange connection.
type scheduler interface {
	ForceDetect(ctx context.Context)
	ForceClose(ctx context.Context, symbol string) bool
	Snapshot() []domain.Position
	Stats() domain.PerformanceStats
	ManagedCount() int
}

// Server is the Control API's HTTP server.
type Server struct {
	sched     scheduler
	apiKeys   map[string]bool
	startedAt time.Time
	server    *http.Server

	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]bool
}

// New builds a Server bound to addr ("host:port"), accepting any key in
// apiKeys on authenticated routes.
func New(addr string, apiKeys []string, sched scheduler) *Server {
	keys := make(map[string]bool, len(apiKeys))
	for _, k := range apiKeys {
		keys[k] = true
	}

	s := &Server{
		sched:     sched,
		apiKeys:   keys,
		startedAt: time.Now(),
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:   make(map[*websocket.Conn]bool),
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/status", s.authenticated(s.handleStatus)).Methods(http.MethodGet)
	router.Handle("/positions", s.authenticated(s.handlePositions)).Methods(http.MethodGet)
	router.Handle("/sync", s.authenticated(s.handleSync)).Methods(http.MethodPost)
	router.Handle("/close/{symbol}", s.authenticated(s.handleClose)).Methods(http.MethodPost)
	router.Handle("/ws", s.authenticated(s.handleWebSocket)).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// ListenAndServe starts the server; callers typically run this in a
// goroutine and call Shutdown on process shutdown.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// authenticated wraps h so it rejects requests missing a valid X-API-KEY
// header (§4.7).
func (s *Server) authenticated(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-KEY")
		if key == "" || !s.apiKeys[key] {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"managed_positions": s.sched.ManagedCount(),
		"stats":             s.sched.Stats(),
		"uptime_seconds":    time.Since(s.startedAt).Seconds(),
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.Snapshot())
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.sched.ForceDetect(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "sync triggered"})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	confirmed := s.sched.ForceClose(r.Context(), symbol)
	if !confirmed {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"status": "close not confirmed", "symbol": symbol})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed", "symbol": symbol})
}

// handleWebSocket streams the Position snapshot to connected clients every
// second, supplementing the required REST surface (§4.7).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("control API: websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		data, err := json.Marshal(s.sched.Snapshot())
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
