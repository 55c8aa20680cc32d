package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aceteam-ai/guardian/internal/provider"
	"github.com/aceteam-ai/guardian/internal/sensors"
)

// SnapshotSource is the aggregator surface the server reads.
type SnapshotSource interface {
	Last() *sensors.Snapshot
	Collect(ctx context.Context, spec sensors.Spec) *sensors.Snapshot
	Monitoring() bool
}

// UsageSource reports per-source success counts for this process.
type UsageSource interface {
	GetAll() map[string]int64
}

// TotalsSource reports per-source success counts from persistent storage.
type TotalsSource interface {
	Totals() (map[string]int64, error)
}

// Server provides an HTTP server for guardian status queries.
type Server struct {
	sensors    SnapshotSource
	usage      UsageSource
	totals     TotalsSource
	inspector  *Inspector
	spec       sensors.Spec
	sources    []provider.Descriptor
	port       int
	httpServer *http.Server
	version    string
}

// ServerConfig holds configuration for the status server.
type ServerConfig struct {
	Port    int    // HTTP server port (default: 8080)
	Version string // Guardian version string

	// Spec is used for on-demand collection when no snapshot is cached
	Spec sensors.Spec

	// Sources is the configured completion chain, reported by /sources
	Sources []provider.Descriptor

	// Totals is optional
	Totals TotalsSource
}

// NewServer creates a new status HTTP server.
func NewServer(cfg ServerConfig, snapshots SnapshotSource, usage UsageSource) *Server {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	return &Server{
		sensors:   snapshots,
		usage:     usage,
		totals:    cfg.Totals,
		inspector: NewInspector(),
		spec:      cfg.Spec,
		sources:   cfg.Sources,
		port:      cfg.Port,
		version:   cfg.Version,
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/usage", s.handleUsage)
	mux.HandleFunc("/sources", s.handleSources)
	return mux
}

// Start begins listening for HTTP requests.
// This method blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Port returns the port the server is configured to listen on.
func (s *Server) Port() int {
	return s.port
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleHealth returns a simple health check response. The guardian is
// degraded when monitoring is running but the last snapshot came back empty.
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{
		Status:  HealthStatusOK,
		Version: s.version,
	}
	if s.sensors != nil {
		resp.Monitoring = s.sensors.Monitoring()
		if last := s.sensors.Last(); resp.Monitoring && last != nil && !last.HasData() {
			resp.Status = HealthStatusDegraded
		}
	}

	writeJSON(w, resp)
}

// handleSnapshot returns the cached snapshot, collecting one if none is cached
// or ?fresh=true is given.
// GET /snapshot
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.sensors == nil {
		http.Error(w, "Sensors not configured", http.StatusServiceUnavailable)
		return
	}

	snap := s.sensors.Last()
	cached := true
	if snap == nil || r.URL.Query().Get("fresh") == "true" {
		snap = s.sensors.Collect(r.Context(), s.spec)
		cached = false
	}

	writeJSON(w, SnapshotResponse{
		Version:  StatusVersion,
		Cached:   cached,
		Summary:  snap.Summary(),
		Snapshot: snap,
	})
}

// handleUsage returns session and lifetime success counts per source.
// GET /usage
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := UsageResponse{
		Version:   StatusVersion,
		Timestamp: time.Now().UTC(),
		Session:   map[string]int64{},
	}
	if s.usage != nil {
		resp.Session = s.usage.GetAll()
	}
	if s.totals != nil {
		totals, err := s.totals.Totals()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to read usage totals: %v", err), http.StatusInternalServerError)
			return
		}
		resp.Lifetime = totals
	}

	writeJSON(w, resp)
}

// handleSources returns the configured completion chain with health results.
// GET /sources
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	infos := make([]SourceInfo, len(s.sources))
	for i, desc := range s.sources {
		infos[i] = s.inspector.Inspect(r.Context(), desc)
	}

	writeJSON(w, map[string]any{
		"sources": infos,
	})
}
