// Package archetype defines the named conversation modes a guardian answers
// in. An Archetype pairs a system prompt and model with the fallback chain
// that serves it.
package archetype

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/aceteam-ai/guardian/internal/provider"
	"github.com/aceteam-ai/guardian/internal/router"
)

// Built-in archetype names.
const (
	Scout     = "Scout"
	Architect = "Architect"
)

// Built-in system prompts.
const (
	ScoutPrompt     = "You are the Scout. You are fast, versatile, and conversational. Perfect for quick questions, brainstorming, and daily dialogue."
	ArchitectPrompt = "You are the Architect. You are logical, structured, and deep. Ideal for planning, analysis, and complex problem-solving."
)

const (
	instructionsHeader = "\n\n--- User's Instructions ---\n"
	promptHeader       = "\n\n--- User's Prompt ---\n"
)

// ErrArchetypeNotFound indicates the requested archetype is not registered
var ErrArchetypeNotFound = errors.New("archetype not found")

// NotFoundError names the missing archetype.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("archetype '%s' not found", e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrArchetypeNotFound
}

// Archetype is one conversation mode. Model is the primary source's model;
// alternates in Chain keep their own.
type Archetype struct {
	Name         string
	SystemPrompt string
	Model        string
	Chain        provider.Chain
}

// Defaults returns Scout and Architect without chains.
func Defaults() []Archetype {
	return []Archetype{
		{Name: Scout, SystemPrompt: ScoutPrompt, Model: "llama3-8b-8192"},
		{Name: Architect, SystemPrompt: ArchitectPrompt, Model: "llama3-70b-8192"},
	}
}

// ComposePrompt joins the system prompt, optional user instructions and the
// prompt into the text sent upstream. Empty instructions are omitted.
func ComposePrompt(systemPrompt, userInstructions, prompt string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	if userInstructions != "" {
		b.WriteString(instructionsHeader)
		b.WriteString(userInstructions)
	}
	b.WriteString(promptHeader)
	b.WriteString(prompt)
	return b.String()
}

// Registry holds archetypes by exact name.
type Registry struct {
	mu         sync.RWMutex
	archetypes map[string]Archetype
}

// NewRegistry creates a registry holding the given archetypes.
func NewRegistry(archetypes ...Archetype) *Registry {
	r := &Registry{archetypes: make(map[string]Archetype, len(archetypes))}
	for _, a := range archetypes {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an archetype.
func (r *Registry) Register(a Archetype) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.archetypes[a.Name] = a
}

// Get returns the named archetype or a *NotFoundError.
func (r *Registry) Get(name string) (Archetype, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.archetypes[name]
	if !ok {
		return Archetype{}, &NotFoundError{Name: name}
	}
	return a, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.archetypes))
	for name := range r.archetypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AppRequest is one question to the guardian.
type AppRequest struct {
	Prompt    string `json:"prompt"`
	Archetype string `json:"archetype"`

	// UserSystemPrompt is appended to the archetype's system prompt when set
	UserSystemPrompt string `json:"user_system_prompt,omitempty"`
}

// LLMResponse is the guardian's answer.
type LLMResponse struct {
	Content   string `json:"content"`
	Archetype string `json:"archetype"`
	Source    string `json:"source"`
	Model     string `json:"model"`
	RequestID string `json:"request_id"`
}

// Router routes a request across a chain.
type Router interface {
	RouteWithMeta(ctx context.Context, req provider.Request, chain provider.Chain, meta router.Meta) (provider.Response, error)
}

// Guardian answers requests by archetype.
type Guardian struct {
	registry *Registry
	router   Router
}

// NewGuardian creates a guardian over registry and router.
func NewGuardian(registry *Registry, r Router) *Guardian {
	return &Guardian{registry: registry, router: r}
}

// Ask composes the prompt for the requested archetype and routes it across
// that archetype's chain.
func (g *Guardian) Ask(ctx context.Context, req AppRequest) (LLMResponse, error) {
	a, err := g.registry.Get(req.Archetype)
	if err != nil {
		return LLMResponse{}, err
	}

	meta := router.Meta{RequestID: uuid.New().String(), Archetype: a.Name}

	resp, err := g.router.RouteWithMeta(ctx, provider.Request{
		Prompt: ComposePrompt(a.SystemPrompt, req.UserSystemPrompt, req.Prompt),
	}, a.Chain, meta)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("%s: %w", a.Name, err)
	}

	return LLMResponse{
		Content:   resp.Content,
		Archetype: a.Name,
		Source:    resp.Source,
		Model:     resp.Model,
		RequestID: meta.RequestID,
	}, nil
}
