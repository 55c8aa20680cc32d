package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/aceteam-ai/guardian/internal/archetype"
	"github.com/aceteam-ai/guardian/internal/credentials"
	"github.com/aceteam-ai/guardian/internal/provider"
	"github.com/aceteam-ai/guardian/internal/sensors"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ManifestName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig is invalid: %v", err)
	}
	if cfg.DefaultArchetype != archetype.Scout {
		t.Errorf("DefaultArchetype = %v, want Scout", cfg.DefaultArchetype)
	}
	if len(cfg.Archetypes) != 2 {
		t.Fatalf("got %d archetypes, want 2", len(cfg.Archetypes))
	}
	if cfg.Providers[0].Name != "groq" || !cfg.Providers[0].RequiresAuth {
		t.Errorf("primary provider = %+v", cfg.Providers[0])
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StatusPort != 8080 {
		t.Errorf("StatusPort = %v, want 8080", cfg.StatusPort)
	}
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
providers:
  - name: openai
    kind: remote
    endpoint: https://api.openai.com/v1/chat/completions
    model: gpt-4o-mini
    requires_auth: true
    rate_limit_rps: 2
    rate_limit_burst: 4
  - name: vllm
    kind: local
    endpoint: http://gpu:8000/v1/chat/completions
    model: llama3
archetypes:
  - name: Scout
    system_prompt: Be quick.
    providers: [openai, vllm]
    fallback: false
default_archetype: Scout
sensors:
  enabled: [location, device]
  deadline_ms: 250
  endpoints:
    location: http://phone.local/location
status_port: 9000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Providers) != 2 || cfg.Providers[1].Name != "vllm" {
		t.Errorf("Providers = %+v", cfg.Providers)
	}
	if cfg.StatusPort != 9000 {
		t.Errorf("StatusPort = %v, want 9000", cfg.StatusPort)
	}
	// Unset fields keep their defaults
	if cfg.Credentials != "env" || cfg.Sensors.IntervalSeconds != 30 {
		t.Errorf("defaults lost: credentials=%q interval=%d", cfg.Credentials, cfg.Sensors.IntervalSeconds)
	}

	spec, err := cfg.SensorSpec()
	if err != nil {
		t.Fatalf("SensorSpec: %v", err)
	}
	if !spec.Enables(sensors.KindLocation) || !spec.Enables(sensors.KindDeviceState) || spec.Enables(sensors.KindHealth) {
		t.Errorf("spec = %+v", spec)
	}
	if spec.Deadline != 250*time.Millisecond {
		t.Errorf("Deadline = %v, want 250ms", spec.Deadline)
	}

	chain, err := cfg.Chain(archetype.Scout, credentials.NewMemoryStore())
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if chain.FallbackEnabled {
		t.Error("fallback: false should disable the alternates")
	}
	if got := chain.Names(); len(got) != 2 || got[0] != "openai" {
		t.Errorf("chain = %v", got)
	}
	if _, ok := chain.Entries[0].Provider.(*provider.RateLimited); !ok {
		t.Errorf("primary provider = %T, want *provider.RateLimited", chain.Entries[0].Provider)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantErr  error
	}{
		{
			name:     "no providers",
			manifest: "providers: []\narchetypes: []\ndefault_archetype: \"\"\n",
			wantErr:  ErrNoProviders,
		},
		{
			name: "duplicate provider",
			manifest: `
providers:
  - {name: a, kind: remote, endpoint: http://a}
  - {name: a, kind: local}
archetypes: []
default_archetype: ""
`,
			wantErr: ErrDuplicateProvider,
		},
		{
			name: "bad kind",
			manifest: `
providers:
  - {name: a, kind: satellite}
`,
			wantErr: provider.ErrInvalidKind,
		},
		{
			name: "unknown provider in archetype",
			manifest: `
archetypes:
  - {name: Scout, system_prompt: x, providers: [groq, anthropic]}
`,
			wantErr: ErrUnknownProvider,
		},
		{
			name:     "unknown default archetype",
			manifest: "default_archetype: Oracle\n",
			wantErr:  ErrUnknownDefaultArchetype,
		},
		{
			name:     "unknown sensor",
			manifest: "sensors:\n  enabled: [camera]\n",
			wantErr:  sensors.ErrUnknownKind,
		},
		{
			name:     "redis credentials without url",
			manifest: "credentials: redis\n",
			wantErr:  ErrRedisRequired,
		},
		{
			name:     "bad credentials backend",
			manifest: "credentials: vault\n",
			wantErr:  ErrInvalidCredentials,
		},
		{
			name:     "bad port",
			manifest: "status_port: 70000\n",
			wantErr:  ErrInvalidPort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeManifest(t, tt.manifest))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingAndMalformed(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing manifest")
	}
	if _, err := Load(writeManifest(t, "providers: [unterminated")); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GUARDIAN_STATUS_PORT", "9191")
	t.Setenv("GUARDIAN_USAGE_DB", "/tmp/usage.db")
	t.Setenv("GUARDIAN_OLLAMA_URL", "http://gpu-box:11434/api/generate")
	t.Setenv("GUARDIAN_FALLBACK", "false")
	t.Setenv("GUARDIAN_SENSOR_DEADLINE_MS", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StatusPort != 9191 {
		t.Errorf("StatusPort = %v, want 9191", cfg.StatusPort)
	}
	if cfg.Usage.DBPath != "/tmp/usage.db" {
		t.Errorf("DBPath = %v", cfg.Usage.DBPath)
	}
	if cfg.Providers[1].Endpoint != "http://gpu-box:11434/api/generate" {
		t.Errorf("ollama endpoint = %v", cfg.Providers[1].Endpoint)
	}
	if cfg.Sensors.DeadlineMs != 5000 {
		t.Errorf("DeadlineMs = %v, want default 5000 for an unparsable override", cfg.Sensors.DeadlineMs)
	}

	chain, err := cfg.Chain(archetype.Architect, credentials.NewMemoryStore())
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if chain.FallbackEnabled {
		t.Error("GUARDIAN_FALLBACK=false should disable fallback")
	}
}

func TestRegistryAppliesArchetypeModelToPrimary(t *testing.T) {
	reg, err := DefaultConfig().Registry(credentials.NewMemoryStore())
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}

	architect, err := reg.Get(archetype.Architect)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if architect.Model != "llama3-70b-8192" {
		t.Errorf("Model = %v", architect.Model)
	}
	entries := architect.Chain.Entries
	if entries[0].Descriptor.Model != "llama3-70b-8192" {
		t.Errorf("primary model = %v", entries[0].Descriptor.Model)
	}
	if entries[1].Descriptor.Model != "llama3" || entries[1].Descriptor.Position != 1 {
		t.Errorf("alternate = %+v", entries[1].Descriptor)
	}
	if architect.SystemPrompt != archetype.ArchitectPrompt {
		t.Errorf("SystemPrompt = %q", architect.SystemPrompt)
	}
}

func TestChainUnknownArchetype(t *testing.T) {
	_, err := DefaultConfig().Chain("Oracle", credentials.NewMemoryStore())
	if !errors.Is(err, archetype.ErrArchetypeNotFound) {
		t.Errorf("Chain error = %v, want ErrArchetypeNotFound", err)
	}
}

func TestReaders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sensors.Endpoints = map[string]string{"health": "http://watch.local/health"}

	readers, err := cfg.Readers()
	if err != nil {
		t.Fatalf("Readers: %v", err)
	}
	kinds := map[sensors.Kind]bool{}
	for _, r := range readers {
		kinds[r.Kind()] = true
	}
	if !kinds[sensors.KindHealth] || !kinds[sensors.KindDeviceState] || len(readers) != 2 {
		t.Errorf("reader kinds = %v", kinds)
	}
}

func TestCredentialStore(t *testing.T) {
	t.Run("env", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "gsk-env")
		store, closeFn, err := DefaultConfig().CredentialStore()
		if err != nil {
			t.Fatalf("CredentialStore: %v", err)
		}
		defer closeFn()
		if secret, err := store.Get(context.Background(), "groq"); err != nil || secret != "gsk-env" {
			t.Errorf("Get = %q, %v", secret, err)
		}
	})

	t.Run("redis", func(t *testing.T) {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("failed to start miniredis: %v", err)
		}
		defer mr.Close()

		cfg := DefaultConfig()
		cfg.Credentials = "redis"
		cfg.Redis.URL = "redis://" + mr.Addr()
		store, closeFn, err := cfg.CredentialStore()
		if err != nil {
			t.Fatalf("CredentialStore: %v", err)
		}
		defer closeFn()

		ctx := context.Background()
		if err := store.Put(ctx, "groq", "gsk-redis"); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if got := mr.HGet(credentials.DefaultRedisKey, "groq"); got != "gsk-redis" {
			t.Errorf("hash value = %q", got)
		}
		t.Setenv("OLLAMA_API_KEY", "from-env")
		if secret, err := store.Get(ctx, "ollama"); err != nil || secret != "from-env" {
			t.Errorf("env fallback Get = %q, %v", secret, err)
		}
	})
}
