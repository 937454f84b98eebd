// Package httpapi is the minimal operability surface named in §6: health,
// status, metrics, and the administrative manual-completion override. The
// full read API is out of core scope; this is not it. Grounded on the
// teacher's cmd/web-server router construction (chi + go-chi/cors), cut
// down to these five routes (/healthz, /status, /metrics, /admin/login,
// /admin/override).
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vatpac/stats-ingestor/internal/auth"
	"github.com/vatpac/stats-ingestor/internal/completion"
	"github.com/vatpac/stats-ingestor/internal/db"
)

// CycleStatus is the health snapshot the Coordinator publishes after
// every cycle; Server reads it under a mutex to answer /status.
type CycleStatus struct {
	LastCycleAt   time.Time
	LastCycleErr  string
	PollInterval  time.Duration
}

// StatusTracker is a concurrency-safe holder for the latest CycleStatus,
// written by the Coordinator goroutine and read by request handlers.
type StatusTracker struct {
	mu     sync.RWMutex
	status CycleStatus
}

func (t *StatusTracker) Set(s CycleStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = s
}

func (t *StatusTracker) Get() CycleStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Server exposes the operability and override routes.
type Server struct {
	router  chi.Router
	status  *StatusTracker
	auth    *auth.Service
	machine *completion.Machine
	flights *db.FlightRepository
	log     zerolog.Logger
}

func New(status *StatusTracker, authSvc *auth.Service, machine *completion.Machine, flights *db.FlightRepository, log zerolog.Logger) *Server {
	s := &Server{status: status, auth: authSvc, machine: machine, flights: flights, log: log}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))
	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/admin/login", s.handleLogin)
	r.Post("/admin/override", s.handleOverride)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleStatus reports "operational" as long as the last cycle completed
// within 2x POLL_INTERVAL_S, "degraded" otherwise, per §7.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cur := s.status.Get()

	state := "operational"
	if cur.LastCycleAt.IsZero() || time.Since(cur.LastCycleAt) > 2*cur.PollInterval {
		state = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"state":          state,
		"last_cycle_at":  cur.LastCycleAt,
		"last_cycle_err": cur.LastCycleErr,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	token, err := s.auth.Authenticate(req.Username, req.Password)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

type overrideRequest struct {
	Callsign  string    `json:"callsign"`
	LogonTime time.Time `json:"logon_time"`
}

// handleOverride implements the administrative manual-completion
// transition named in §4.8: authenticated operators can force a flight to
// "completed" with method "manual" from any non-terminal state; a flight
// that is already completed keeps its earlier completion.
func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if _, err := s.auth.ValidateToken(token); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if _, err := s.machine.ManualOverride(ctx, req.Callsign, req.LogonTime); err != nil {
		s.log.Error().Err(err).Str("callsign", req.Callsign).Msg("manual override failed")
		http.Error(w, "override failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
