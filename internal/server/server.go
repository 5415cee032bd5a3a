// Package server exposes the lifestream HTTP API: event ingestion,
// pattern listing, memory queries, and on-demand mining.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lifestream/lifestream/internal/memory"
	"github.com/lifestream/lifestream/internal/miner"
	"github.com/lifestream/lifestream/internal/store"
)

// Server is the lifestream HTTP API server.
type Server struct {
	store   store.EventStore
	engine  *memory.Engine
	miner   *miner.Runner
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server. engine and miner may be nil; their routes
// then answer 503.
func New(st store.EventStore, eng *memory.Engine, runner *miner.Runner, version string) *Server {
	s := &Server{
		store:   st,
		engine:  eng,
		miner:   runner,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/ingest", s.handleIngest)
		r.Get("/events/{userID}", s.handleEvents)
		r.Get("/stats/{userID}", s.handleStats)

		r.Get("/patterns/{userID}", s.handlePatterns)
		r.Post("/mine/{userID}", s.handleMine)

		r.Post("/memory/query", s.handleMemoryQuery)
		r.Get("/memory/{userID}/summary", s.handleMemorySummary)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeOK := true
	if err := s.store.Ping(r.Context()); err != nil {
		storeOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"store":   storeOK,
	})
}
