// Package server implements the realtime table protocol: a WebSocket per
// player per table, JSON messages, per-recipient redaction of game state and
// the small HTTP surface around it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"

	"github.com/lox/cardroom/internal/auth"
	"github.com/lox/cardroom/internal/table"
)

// Options configures the HTTP surface.
type Options struct {
	// AllowedOrigins lists browser origins; empty allows any.
	AllowedOrigins []string
	// RateLimitPerMinute caps requests per client IP; zero disables it.
	RateLimitPerMinute int
	// Validator authenticates /ws; nil disables authentication.
	Validator auth.Validator
	// Clock drives connection heartbeats.
	Clock quartz.Clock
}

// Server represents the WebSocket server
type Server struct {
	addr      string
	manager   *table.Manager
	hub       *Hub
	validator auth.Validator
	upgrader  websocket.Upgrader
	router    chi.Router
	logger    *log.Logger
}

// NewServer creates a server for the tables in manager. bus is the bus those
// tables publish on.
func NewServer(addr string, manager *table.Manager, bus *table.Bus, logger *log.Logger, opts Options) *Server {
	if opts.Validator == nil {
		opts.Validator = auth.NewNoopValidator()
	}
	s := &Server{
		addr:      addr,
		manager:   manager,
		hub:       NewHub(bus, opts.Clock, logger),
		validator: opts.Validator,
		logger:    logger.WithPrefix("server"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	s.router = s.routes(opts)
	return s
}

func (s *Server) routes(opts Options) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: allowedOrigins(opts.AllowedOrigins),
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}).Handler)
	if opts.RateLimitPerMinute > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimitPerMinute, time.Minute))
	}

	r.Get("/ws", s.handleWebSocket)
	r.Get("/health", s.handleHealth)
	r.Get("/tables", s.handleListTables)
	r.Get("/tables/{id}", s.handleGetTable)
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}

// Handler returns the HTTP handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the connection hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Starting WebSocket server", "addr", s.addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleWebSocket seats the caller at ?table=. The player id comes from the
// token when authentication is on, otherwise from ?player=.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	playerID, name := q.Get("player"), q.Get("name")

	identity, err := s.validator.Validate(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		s.logger.Debug("Rejected connection", "error", err)
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}
	if identity != nil {
		playerID = identity.PlayerID
		if identity.Name != "" {
			name = identity.Name
		}
	}
	if playerID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "player is required")
		return
	}
	if name == "" {
		name = playerID
	}

	seat, err := intParam(q.Get("seat"), -1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "seat must be a number")
		return
	}
	buyIn, err := intParam(q.Get("buyIn"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "buyIn must be a number")
		return
	}

	tbl, err := s.manager.Get(q.Get("table"))
	if err != nil {
		writeError(w, http.StatusNotFound, errorCode(err), err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}
	s.hub.Attach(r.Context(), conn, tbl, playerID, name, seat, buyIn)
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"tables":      len(s.manager.List()),
		"connections": s.hub.ConnectionCount(),
	})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables := s.manager.List()
	infos := make([]TableInfo, 0, len(tables))
	for _, t := range tables {
		snap, err := t.Snapshot(r.Context())
		if err != nil {
			continue
		}
		infos = append(infos, tableInfoFromSnapshot(snap))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tables": infos})
}

// handleGetTable returns the public view: no hole cards except those shown
// down at showdown.
func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	tbl, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, errorCode(err), err.Error())
		return
	}
	snap, err := tbl.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, errorCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap.RedactFor(""))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorData{Code: code, Message: message})
}
