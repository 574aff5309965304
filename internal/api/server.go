package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/hasirciogluhq/xrelay-proxy/internal/logger"
)

// StatsSource reports live worker counts for /stats.
type StatsSource interface {
	Active() int64
}

// QueueSource reports admission queue counts for /stats.
type QueueSource interface {
	Waiting() int
}

// Stats is the /stats response body.
type Stats struct {
	Active  int64 `json:"active"`
	Waiting int   `json:"waiting"`
}

type HealthServer struct {
	server  *http.Server
	ready   atomic.Bool
	workers StatsSource
	queue   QueueSource
}

// NewHealthServer serves /health, /ready and /stats on addr. workers and
// queue may be nil.
func NewHealthServer(addr string, workers StatsSource, queue QueueSource) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		workers: workers,
		queue:   queue,
	}

	// Default to not ready until explicitly set
	hs.ready.Store(false)

	mux.HandleFunc("/health", hs.handleHealth)
	mux.HandleFunc("/ready", hs.handleReady)
	mux.HandleFunc("/stats", hs.handleStats)

	return hs
}

// Handler exposes the routes, mainly for tests.
func (s *HealthServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HealthServer) Start() {
	go func() {
		logger.Info("Health server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server error", "error", err)
		}
	}()
}

func (s *HealthServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HealthServer) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *HealthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready.Load() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
	}
}

func (s *HealthServer) handleStats(w http.ResponseWriter, r *http.Request) {
	var stats Stats
	if s.workers != nil {
		stats.Active = s.workers.Active()
	}
	if s.queue != nil {
		stats.Waiting = s.queue.Waiting()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		logger.Error("Failed to encode stats", "error", err)
	}
}
