package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aceteam-ai/guardian/internal/provider"
)

// Runtime names understood by the inspector.
const (
	RuntimeOllama = "ollama"
	RuntimeVLLM   = "vllm"
)

// Inspector checks local completion runtimes for health and loaded models.
// Remote sources are never checked and report HealthStatusUnknown.
type Inspector struct {
	httpClient *http.Client
}

// NewInspector creates a new inspector.
func NewInspector() *Inspector {
	return &Inspector{
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Inspect describes desc, querying the runtime when it is local.
func (p *Inspector) Inspect(ctx context.Context, desc provider.Descriptor) SourceInfo {
	info := SourceInfo{
		Name:     desc.Name,
		Kind:     string(desc.Kind),
		Position: desc.Position,
		Endpoint: desc.Endpoint,
		Model:    desc.Model,
		Health:   HealthStatusUnknown,
	}
	if desc.Kind != provider.KindLocal || desc.Endpoint == "" {
		return info
	}

	base, err := baseURL(desc.Endpoint)
	if err != nil {
		return info
	}
	runtime := detectRuntime(desc)

	info.Health, _ = p.CheckHealth(ctx, runtime, base)
	if info.Health == HealthStatusOK {
		if models, err := p.DiscoverModels(ctx, runtime, base); err == nil {
			info.Models = models
		}
	}
	return info
}

// detectRuntime guesses the runtime from the endpoint path.
func detectRuntime(desc provider.Descriptor) string {
	if strings.Contains(desc.Endpoint, "/v1/") || strings.Contains(strings.ToLower(desc.Name), RuntimeVLLM) {
		return RuntimeVLLM
	}
	return RuntimeOllama
}

// baseURL strips the path from an endpoint.
func baseURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid endpoint %q", endpoint)
	}
	return u.Scheme + "://" + u.Host, nil
}

// DiscoverModels queries a local runtime for loaded models.
func (p *Inspector) DiscoverModels(ctx context.Context, runtime, base string) ([]string, error) {
	switch runtime {
	case RuntimeVLLM:
		return p.discoverVLLMModels(ctx, base)
	case RuntimeOllama:
		return p.discoverOllamaModels(ctx, base)
	default:
		return nil, fmt.Errorf("unsupported runtime: %s", runtime)
	}
}

// discoverVLLMModels queries vLLM's OpenAI-compatible API for loaded models.
// vLLM exposes: GET /v1/models
func (p *Inspector) discoverVLLMModels(ctx context.Context, base string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query vLLM models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vLLM returned status %d", resp.StatusCode)
	}

	// { "data": [{ "id": "model-name", "object": "model" }] }
	var vllmResp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&vllmResp); err != nil {
		return nil, fmt.Errorf("failed to parse vLLM response: %w", err)
	}

	models := make([]string, 0, len(vllmResp.Data))
	for _, model := range vllmResp.Data {
		models = append(models, model.ID)
	}
	return models, nil
}

// discoverOllamaModels queries Ollama's API for available models.
// Ollama exposes: GET /api/tags
func (p *Inspector) discoverOllamaModels(ctx context.Context, base string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query Ollama models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}

	// { "models": [{ "name": "llama2:latest", "size": 123456 }] }
	var ollamaResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to parse Ollama response: %w", err)
	}

	models := make([]string, 0, len(ollamaResp.Models))
	for _, model := range ollamaResp.Models {
		models = append(models, model.Name)
	}
	return models, nil
}

// CheckHealth performs a health check on a local runtime. An unreachable
// runtime is unhealthy, not an error.
func (p *Inspector) CheckHealth(ctx context.Context, runtime, base string) (string, error) {
	var path string
	switch runtime {
	case RuntimeVLLM:
		path = "/health"
	case RuntimeOllama:
		// Ollama returns "Ollama is running" on its root
		path = "/"
	default:
		return HealthStatusUnknown, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return HealthStatusUnknown, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return HealthStatusUnhealthy, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return HealthStatusOK, nil
	}
	return HealthStatusDegraded, nil
}
