// Package provider describes completion sources and the fallback chains built
// from them.
//
// A Descriptor is the immutable identity of a source; a Provider is the thing
// that actually completes a prompt. Source pairs the two with a Transport and
// a credential lookup, which covers both the remote OpenAI-compatible services
// and local runtimes such as Ollama.
package provider

import (
	"context"
	"fmt"

	"github.com/aceteam-ai/guardian/internal/credentials"
)

// Kind classifies a completion source.
type Kind string

const (
	KindRemote Kind = "remote-completion"
	KindLocal  Kind = "local-completion"
)

// ParseKind accepts the canonical names plus the short forms "remote" and "local".
func ParseKind(s string) (Kind, error) {
	switch s {
	case string(KindRemote), "remote":
		return KindRemote, nil
	case string(KindLocal), "local":
		return KindLocal, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Descriptor identifies a source. Endpoint may be empty for local kinds.
type Descriptor struct {
	Name         string
	Kind         Kind
	Position     int
	RequiresAuth bool
	Endpoint     string
	Model        string
}

// Request is one logical completion request.
type Request struct {
	Prompt string

	// Model overrides the source's default model when set
	Model string
}

// Response is a successful completion.
type Response struct {
	Content string
	Source  string
	Model   string
}

// Provider completes a prompt against a single source.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (Response, error)

func (f ProviderFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Transport sends a prompt to an endpoint and returns the completion text.
type Transport interface {
	Send(ctx context.Context, endpoint, model, secret, prompt string) (string, error)
}

// Source is the standard Provider: credential lookup followed by one
// transport call.
type Source struct {
	desc      Descriptor
	transport Transport
	creds     credentials.Store
}

// NewSource creates a provider for desc. creds may be nil when desc does not
// require authentication.
func NewSource(desc Descriptor, transport Transport, creds credentials.Store) *Source {
	return &Source{desc: desc, transport: transport, creds: creds}
}

// Descriptor returns the source's identity.
func (s *Source) Descriptor() Descriptor {
	return s.desc
}

// Complete resolves the secret (if required) and sends the prompt.
func (s *Source) Complete(ctx context.Context, req Request) (Response, error) {
	if s.desc.Endpoint == "" || s.transport == nil {
		return Response{}, fmt.Errorf("%s: %w", s.desc.Name, ErrNotImplemented)
	}

	var secret string
	if s.desc.RequiresAuth {
		if s.creds == nil {
			return Response{}, fmt.Errorf("%s: %w: %w", s.desc.Name, ErrAuthentication, credentials.ErrNotFound)
		}
		v, err := s.creds.Get(ctx, s.desc.Name)
		if err != nil {
			return Response{}, fmt.Errorf("%s: %w: %w", s.desc.Name, ErrAuthentication, err)
		}
		secret = v
	}

	model := s.desc.Model
	if req.Model != "" {
		model = req.Model
	}

	content, err := s.transport.Send(ctx, s.desc.Endpoint, model, secret, req.Prompt)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", s.desc.Name, err)
	}
	return Response{Content: content, Source: s.desc.Name, Model: model}, nil
}
