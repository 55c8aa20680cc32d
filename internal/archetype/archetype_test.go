package archetype

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aceteam-ai/guardian/internal/provider"
	"github.com/aceteam-ai/guardian/internal/router"
	"github.com/aceteam-ai/guardian/internal/usage"
)

func TestComposePrompt(t *testing.T) {
	tests := []struct {
		name         string
		system       string
		instructions string
		prompt       string
		want         string
	}{
		{
			name:   "without instructions",
			system: "You are the Scout.",
			prompt: "hello",
			want:   "You are the Scout.\n\n--- User's Prompt ---\nhello",
		},
		{
			name:         "with instructions",
			system:       "You are the Scout.",
			instructions: "Answer in French.",
			prompt:       "hello",
			want:         "You are the Scout.\n\n--- User's Instructions ---\nAnswer in French.\n\n--- User's Prompt ---\nhello",
		},
		{
			name: "empty everything",
			want: "\n\n--- User's Prompt ---\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComposePrompt(tt.system, tt.instructions, tt.prompt); got != tt.want {
				t.Errorf("ComposePrompt = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	reg := NewRegistry(Defaults()...)

	if got := strings.Join(reg.Names(), ","); got != "Architect,Scout" {
		t.Errorf("Names = %v", got)
	}

	scout, err := reg.Get(Scout)
	if err != nil {
		t.Fatalf("Get(Scout): %v", err)
	}
	if scout.Model != "llama3-8b-8192" || scout.SystemPrompt != ScoutPrompt {
		t.Errorf("Scout = %+v", scout)
	}

	architect, err := reg.Get(Architect)
	if err != nil {
		t.Fatalf("Get(Architect): %v", err)
	}
	if architect.Model != "llama3-70b-8192" {
		t.Errorf("Architect.Model = %v", architect.Model)
	}
}

func TestRegistryGetNotFound(t *testing.T) {
	reg := NewRegistry(Defaults()...)

	_, err := reg.Get("scout")
	if !errors.Is(err, ErrArchetypeNotFound) {
		t.Fatalf("Get error = %v, want ErrArchetypeNotFound", err)
	}
	if err.Error() != "archetype 'scout' not found" {
		t.Errorf("Error = %q", err.Error())
	}
}

type captureRouter struct {
	req   provider.Request
	chain provider.Chain
	meta  router.Meta
	resp  provider.Response
	err   error
}

func (c *captureRouter) RouteWithMeta(ctx context.Context, req provider.Request, chain provider.Chain, meta router.Meta) (provider.Response, error) {
	c.req, c.chain, c.meta = req, chain, meta
	return c.resp, c.err
}

func TestAskComposesAndRoutes(t *testing.T) {
	chain := provider.NewChain(true, provider.Entry{Descriptor: provider.Descriptor{Name: "groq"}})
	reg := NewRegistry(Archetype{Name: Scout, SystemPrompt: ScoutPrompt, Model: "llama3-8b-8192", Chain: chain})
	rt := &captureRouter{resp: provider.Response{Content: "hi there", Source: "groq", Model: "llama3-8b-8192"}}

	resp, err := NewGuardian(reg, rt).Ask(context.Background(), AppRequest{
		Prompt:           "hello",
		Archetype:        Scout,
		UserSystemPrompt: "Be brief.",
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	wantPrompt := ScoutPrompt + "\n\n--- User's Instructions ---\nBe brief.\n\n--- User's Prompt ---\nhello"
	if rt.req.Prompt != wantPrompt {
		t.Errorf("routed prompt = %q, want %q", rt.req.Prompt, wantPrompt)
	}
	if rt.meta.Archetype != Scout || rt.meta.RequestID == "" {
		t.Errorf("meta = %+v", rt.meta)
	}
	if len(rt.chain.Entries) != 1 {
		t.Errorf("routed chain = %+v", rt.chain)
	}
	if resp.Content != "hi there" || resp.Source != "groq" || resp.Archetype != Scout || resp.RequestID != rt.meta.RequestID {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAskUnknownArchetype(t *testing.T) {
	rt := &captureRouter{}
	_, err := NewGuardian(NewRegistry(), rt).Ask(context.Background(), AppRequest{Prompt: "x", Archetype: "Oracle"})
	if !errors.Is(err, ErrArchetypeNotFound) {
		t.Errorf("Ask error = %v, want ErrArchetypeNotFound", err)
	}
	if rt.chain.Entries != nil {
		t.Error("router should not be called")
	}
}

func TestAskEndToEndFallback(t *testing.T) {
	failing := provider.Entry{
		Descriptor: provider.Descriptor{Name: "groq"},
		Provider: provider.ProviderFunc(func(context.Context, provider.Request) (provider.Response, error) {
			return provider.Response{}, provider.ErrNetwork
		}),
	}
	local := provider.Entry{
		Descriptor: provider.Descriptor{Name: "ollama"},
		Provider: provider.ProviderFunc(func(_ context.Context, req provider.Request) (provider.Response, error) {
			return provider.Response{Content: "local:" + req.Prompt[len(req.Prompt)-5:], Source: "ollama", Model: "llama3"}, nil
		}),
	}
	reg := NewRegistry(Archetype{Name: Architect, SystemPrompt: ArchitectPrompt, Chain: provider.NewChain(true, failing, local)})

	counter := usage.NewCounter()
	g := NewGuardian(reg, router.New(router.Config{Counter: counter, LogFn: func(string, string) {}}))

	resp, err := g.Ask(context.Background(), AppRequest{Prompt: "plan!", Archetype: Architect})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if resp.Content != "local:plan!" || resp.Source != "ollama" {
		t.Errorf("resp = %+v", resp)
	}
	if counter.Get("ollama") != 1 || counter.Get("groq") != 0 {
		t.Errorf("usage = %v", counter.GetAll())
	}
}

func TestAskWrapsRouteFailure(t *testing.T) {
	failing := provider.Entry{
		Descriptor: provider.Descriptor{Name: "groq"},
		Provider: provider.ProviderFunc(func(context.Context, provider.Request) (provider.Response, error) {
			return provider.Response{}, provider.ErrMalformedResponse
		}),
	}
	reg := NewRegistry(Archetype{Name: Scout, Chain: provider.NewChain(false, failing)})
	g := NewGuardian(reg, router.New(router.Config{LogFn: func(string, string) {}}))

	_, err := g.Ask(context.Background(), AppRequest{Prompt: "x", Archetype: Scout})
	if !errors.Is(err, router.ErrPrimaryFailed) || !errors.Is(err, provider.ErrMalformedResponse) {
		t.Errorf("Ask error = %v", err)
	}
}
