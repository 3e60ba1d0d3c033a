// Hosted trigger for the scraping pipeline: POST /scrape runs one full
// cycle and reports the outcome as JSON.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"led-scraper/config"
	"led-scraper/pipeline"
	"led-scraper/scraper/danawa"
	"led-scraper/storage"
	"led-scraper/utils"
)

// APIResponse is the envelope every endpoint returns.
type APIResponse struct {
	Success bool              `json:"success"`
	Summary *pipeline.Summary `json:"summary,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Server runs scrape cycles on demand. Runs are serialized: the pipeline is
// strictly sequential by design and concurrent cycles would only race on
// last-write-wins upserts.
type Server struct {
	cfg    *config.Config
	logger *utils.Logger
	store  *storage.PostgresStore
	fetch  danawa.FetchFunc

	mu sync.Mutex
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.mu.TryLock() {
		s.sendError(w, "a scrape run is already in progress", http.StatusConflict)
		return
	}
	defer s.mu.Unlock()

	s.logger.Info("[server] scrape triggered")

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	p := pipeline.New(s.cfg, s.logger, s.store, s.fetch)
	summary, err := p.Run(ctx)
	if err != nil {
		s.logger.Error("[server] run failed: %v", err)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(APIResponse{Success: true, Summary: summary}); err != nil {
		s.logger.Error("[server] encode response: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(APIResponse{Success: false, Error: message}); err != nil {
		s.logger.Error("[server] encode error response: %v", err)
	}
}

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	store, err := storage.NewPostgresStore(cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	var fetch danawa.FetchFunc
	if cfg.UseBrowserFetch {
		browserFetch, cleanup := danawa.NewBrowserFetch(logger)
		defer cleanup()
		fetch = browserFetch
	} else {
		httpClient := utils.NewHTTPClient(time.Duration(cfg.FetchTimeoutSec)*time.Second, logger)
		fetch = httpClient.Get
	}

	server := &Server{cfg: cfg, logger: logger, store: store, fetch: fetch}

	http.HandleFunc("/scrape", server.handleScrape)
	http.HandleFunc("/health", server.handleHealth)

	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info("Starting API server on port %s", port)
	logger.Info("  POST /scrape - run one full scrape cycle")
	logger.Info("  GET  /health - health check")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		logger.Error("Server stopped: %v", err)
		os.Exit(1)
	}
}
