package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/mcphub/service/config"
	"github.com/brojonat/mcphub/service/db"
	"github.com/brojonat/mcphub/service/mcptools"
	"github.com/brojonat/mcphub/service/metrics"
	"github.com/brojonat/mcphub/service/search"
	"github.com/brojonat/mcphub/service/temporal"
	"github.com/brojonat/mcphub/service/wallet"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP server for the marketplace.
type Server struct {
	cfg          *config.Config
	store        db.ListingStore
	ranker       *search.Ranker
	reviewer     temporal.Reviewer
	publisher    EventPublisher
	ssePublisher *SSEPublisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server with the given dependencies. A nil ranker
// serves basic search only.
func New(cfg *config.Config, store db.ListingStore, ranker *search.Ranker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if ranker == nil {
		ranker = search.NewRanker(search.RankerConfig{Logger: logger})
	}
	return &Server{
		cfg:    cfg,
		store:  store,
		ranker: ranker,
		logger: logger,
	}
}

// WithReviewer routes new listings and admin decisions through the review workflow.
func (s *Server) WithReviewer(r temporal.Reviewer) *Server {
	s.reviewer = r
	return s
}

// WithPublisher publishes listing events on create, review and delete.
func (s *Server) WithPublisher(p EventPublisher) *Server {
	s.publisher = p
	return s
}

// WithSSE enables the event stream endpoint.
func (s *Server) WithSSE(p *SSEPublisher) *Server {
	s.ssePublisher = p
	return s
}

// WithMetrics enables request metrics and the /metrics endpoint.
func (s *Server) WithMetrics(m *metrics.Metrics) *Server {
	s.metrics = m
	return s
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	for _, c := range db.Collections {
		base := "/api/v1/" + c.Path()
		mux.Handle("POST "+base, s.instrument("create_listing", handleCreateListing(c, s.store, s.reviewer, s.publisher, s.metrics, s.logger)))
		mux.Handle("GET "+base, s.instrument("list_listings", handleListListings(c, s.store, s.logger)))
		mux.Handle("GET "+base+"/{id}", s.instrument("get_listing", handleGetListing(c, s.store, s.logger)))
		mux.Handle("PATCH "+base+"/{id}/status", s.instrument("update_listing_status", handleUpdateListingStatus(c, s.store, s.reviewer, s.publisher, s.cfg.AdminAddress, s.metrics, s.logger)))
		mux.Handle("DELETE "+base+"/{id}", s.instrument("delete_listing", handleDeleteListing(c, s.store, s.publisher, s.cfg.AdminAddress, s.logger)))
	}

	mux.Handle("GET /api/v1/search", s.instrument("search", handleSearch(s.store, s.ranker, s.logger)))
	mux.Handle("GET /api/v1/network", handleNetwork(s.cfg))

	if s.ssePublisher != nil {
		mux.Handle("GET /api/v1/stream/events", handleStreamEvents(s.ssePublisher, s.logger))
		s.logger.Info("SSE streaming endpoint enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoint disabled")
	}

	tools := mcptools.NewServer(s.store, s.ranker, s.cfg.Version, s.logger)
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return tools }, nil))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"version": s.cfg.Version}, http.StatusOK)
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

func (s *Server) instrument(name string, h http.Handler) http.Handler {
	if s.metrics == nil {
		return h
	}
	return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.cfg.ServerAddr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: SSE and MCP streams are long-lived.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.cfg.ServerAddr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.ssePublisher != nil {
		s.ssePublisher.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleNetwork returns the target chain in EIP-3085 form so wallets can add it.
func handleNetwork(cfg *config.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, cfg.Network(), http.StatusOK)
	})
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+walletHeader+", "+wallet.SignatureHeader+", "+wallet.TimestampHeader+", Mcp-Session-Id")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
