package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aceteam-ai/guardian/internal/provider"
	"github.com/aceteam-ai/guardian/internal/sensors"
	"github.com/aceteam-ai/guardian/internal/usage"
)

type fakeSensors struct {
	last       *sensors.Snapshot
	monitoring bool
	collects   int
}

func (f *fakeSensors) Last() *sensors.Snapshot { return f.last }
func (f *fakeSensors) Monitoring() bool        { return f.monitoring }
func (f *fakeSensors) Collect(ctx context.Context, spec sensors.Spec) *sensors.Snapshot {
	f.collects++
	f.last = &sensors.Snapshot{Health: &sensors.Health{HeartRateBPM: 64}}
	return f.last
}

type fakeTotals struct {
	totals map[string]int64
	err    error
}

func (f fakeTotals) Totals() (map[string]int64, error) { return f.totals, f.err }

func TestNewServer(t *testing.T) {
	tests := []struct {
		name     string
		config   ServerConfig
		wantPort int
	}{
		{
			name:     "with default port",
			config:   ServerConfig{},
			wantPort: 8080,
		},
		{
			name:     "with custom port",
			config:   ServerConfig{Port: 9090},
			wantPort: 9090,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewServer(tt.config, nil, nil)

			if server == nil {
				t.Fatal("NewServer returned nil")
			}
			if server.Port() != tt.wantPort {
				t.Errorf("Port() = %v, want %v", server.Port(), tt.wantPort)
			}
		})
	}
}

func TestServerHealthEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		sensors    *fakeSensors
		wantStatus string
	}{
		{"no sensors", nil, HealthStatusOK},
		{"idle", &fakeSensors{}, HealthStatusOK},
		{"monitoring with data", &fakeSensors{monitoring: true, last: &sensors.Snapshot{Activity: &sensors.Activity{Type: "walking"}}}, HealthStatusOK},
		{"monitoring without data", &fakeSensors{monitoring: true, last: &sensors.Snapshot{}}, HealthStatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var src SnapshotSource
			if tt.sensors != nil {
				src = tt.sensors
			}
			server := NewServer(ServerConfig{Version: "1.0.0"}, src, nil)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			server.handleHealth(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("StatusCode = %v, want %v", w.Code, http.StatusOK)
			}
			var healthResp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&healthResp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if healthResp.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", healthResp.Status, tt.wantStatus)
			}
			if healthResp.Version != "1.0.0" {
				t.Errorf("Version = %v, want 1.0.0", healthResp.Version)
			}
		})
	}
}

func TestServerMethodNotAllowed(t *testing.T) {
	server := NewServer(ServerConfig{}, &fakeSensors{}, usage.NewCounter())
	handler := server.Handler()

	for _, path := range []string{"/health", "/snapshot", "/usage", "/sources"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s = %v, want %v", path, w.Code, http.StatusMethodNotAllowed)
		}
	}
}

func TestServerSnapshotEndpoint(t *testing.T) {
	src := &fakeSensors{}
	server := NewServer(ServerConfig{}, src, nil)

	get := func(url string) SnapshotResponse {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		w := httptest.NewRecorder()
		server.handleSnapshot(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("StatusCode = %v, want %v", w.Code, http.StatusOK)
		}
		var resp SnapshotResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		return resp
	}

	// Nothing cached: collects on demand
	first := get("/snapshot")
	if first.Cached || src.collects != 1 {
		t.Errorf("first request cached=%v collects=%d, want on-demand collect", first.Cached, src.collects)
	}
	if first.Snapshot == nil || first.Snapshot.Health == nil || first.Snapshot.Health.HeartRateBPM != 64 {
		t.Errorf("Snapshot = %+v", first.Snapshot)
	}
	if first.Summary != "heart rate 64 bpm" {
		t.Errorf("Summary = %q", first.Summary)
	}

	// Cached afterwards
	if second := get("/snapshot"); !second.Cached || src.collects != 1 {
		t.Errorf("second request cached=%v collects=%d, want cached", second.Cached, src.collects)
	}

	// Forced refresh
	if third := get("/snapshot?fresh=true"); third.Cached || src.collects != 2 {
		t.Errorf("fresh request cached=%v collects=%d, want collect", third.Cached, src.collects)
	}
}

func TestServerSnapshotWithoutSensors(t *testing.T) {
	server := NewServer(ServerConfig{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/snapshot", nil)
	w := httptest.NewRecorder()
	server.handleSnapshot(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %v, want %v", w.Code, http.StatusServiceUnavailable)
	}
}

func TestServerUsageEndpoint(t *testing.T) {
	counter := usage.NewCounter()
	counter.Increment("groq")
	counter.Increment("groq")
	counter.Increment("ollama")

	server := NewServer(ServerConfig{
		Totals: fakeTotals{totals: map[string]int64{"groq": 40}},
	}, nil, counter)

	req := httptest.NewRequest(http.MethodGet, "/usage", nil)
	w := httptest.NewRecorder()
	server.handleUsage(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("StatusCode = %v, want %v", w.Code, http.StatusOK)
	}
	var resp UsageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Session["groq"] != 2 || resp.Session["ollama"] != 1 {
		t.Errorf("Session = %v", resp.Session)
	}
	if resp.Lifetime["groq"] != 40 {
		t.Errorf("Lifetime = %v", resp.Lifetime)
	}
}

func TestServerUsageTotalsError(t *testing.T) {
	server := NewServer(ServerConfig{
		Totals: fakeTotals{err: errors.New("database is locked")},
	}, nil, usage.NewCounter())

	req := httptest.NewRequest(http.MethodGet, "/usage", nil)
	w := httptest.NewRecorder()
	server.handleUsage(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("StatusCode = %v, want %v", w.Code, http.StatusInternalServerError)
	}
}

func TestServerSourcesEndpoint(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write([]byte("Ollama is running"))
		case "/api/tags":
			w.Write([]byte(`{"models": [{"name": "llama3:latest"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ollama.Close()

	server := NewServer(ServerConfig{
		Sources: []provider.Descriptor{
			{Name: "groq", Kind: provider.KindRemote, Endpoint: provider.GroqChatURL, Model: "llama3-8b-8192"},
			{Name: "ollama", Kind: provider.KindLocal, Position: 1, Endpoint: ollama.URL + "/api/generate", Model: "llama3"},
		},
	}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/sources", nil)
	w := httptest.NewRecorder()
	server.handleSources(w, req)

	var resp struct {
		Sources []SourceInfo `json:"sources"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(resp.Sources))
	}
	if resp.Sources[0].Health != HealthStatusUnknown {
		t.Errorf("remote Health = %v, want unknown", resp.Sources[0].Health)
	}
	local := resp.Sources[1]
	if local.Health != HealthStatusOK || len(local.Models) != 1 || local.Models[0] != "llama3:latest" {
		t.Errorf("local source = %+v", local)
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	server := NewServer(ServerConfig{Port: 0}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	// Wait for context to cancel
	<-ctx.Done()

	// Server should shut down cleanly
	select {
	case err := <-errCh:
		if err != nil && err != context.DeadlineExceeded {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Error("Server did not shut down in time")
	}
}
