package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/aceteam-ai/guardian/internal/archetype"
	"github.com/aceteam-ai/guardian/internal/credentials"
	"github.com/aceteam-ai/guardian/internal/provider"
	"github.com/aceteam-ai/guardian/internal/sensors"
)

// SensorSpec returns the enabled kinds and deadline.
func (c *Config) SensorSpec() (sensors.Spec, error) {
	spec := sensors.Spec{Deadline: time.Duration(c.Sensors.DeadlineMs) * time.Millisecond}
	for _, name := range c.Sensors.Enabled {
		k, err := sensors.ParseKind(name)
		if err != nil {
			return sensors.Spec{}, fmt.Errorf("sensors.enabled: %w", err)
		}
		spec.Enabled = append(spec.Enabled, k)
	}
	return spec, nil
}

// SensorInterval returns the continuous collection interval.
func (c *Config) SensorInterval() time.Duration {
	return time.Duration(c.Sensors.IntervalSeconds) * time.Second
}

// Readers builds one reader per kind: an HTTP reader when an endpoint is
// configured, the gopsutil device reader for device-state otherwise.
func (c *Config) Readers() ([]sensors.Reader, error) {
	var readers []sensors.Reader
	hasDevice := false
	for name, url := range c.Sensors.Endpoints {
		k, err := sensors.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("sensors.endpoints: %w", err)
		}
		readers = append(readers, sensors.NewHTTPReader(k, url, 0))
		if k == sensors.KindDeviceState {
			hasDevice = true
		}
	}
	if !hasDevice {
		device := sensors.NewDeviceReader()
		if c.Sensors.DiskPath != "" {
			device.DiskPath = c.Sensors.DiskPath
		}
		readers = append(readers, device)
	}
	return readers, nil
}

// Descriptors returns the provider descriptors in manifest order.
func (c *Config) Descriptors() []provider.Descriptor {
	out := make([]provider.Descriptor, len(c.Providers))
	for i, p := range c.Providers {
		out[i] = p.descriptor()
		out[i].Position = i
	}
	return out
}

func (p ProviderConfig) descriptor() provider.Descriptor {
	kind, _ := provider.ParseKind(p.Kind)
	return provider.Descriptor{
		Name:         p.Name,
		Kind:         kind,
		RequiresAuth: p.RequiresAuth,
		Endpoint:     p.Endpoint,
		Model:        p.Model,
	}
}

// transport picks the wire format: /api/generate for local Ollama, the
// OpenAI-compatible chat shape for everything else.
func (p ProviderConfig) transport() provider.Transport {
	timeout := time.Duration(p.TimeoutSeconds) * time.Second
	desc := p.descriptor()
	if desc.Kind == provider.KindLocal && !isChatEndpoint(desc.Endpoint) {
		return provider.NewOllamaTransport(timeout)
	}
	return provider.NewChatTransport(timeout)
}

func isChatEndpoint(endpoint string) bool {
	return strings.HasSuffix(endpoint, "/chat/completions")
}

// entry builds a chain entry for p, applying model and the optional wrappers.
func (p ProviderConfig) entry(creds credentials.Store, model string) provider.Entry {
	desc := p.descriptor()
	if model != "" {
		desc.Model = model
	}

	var prov provider.Provider = provider.NewSource(desc, p.transport(), creds)
	if p.Retries > 1 {
		prov = provider.NewRetrying(prov, p.Retries, 500*time.Millisecond)
	}
	if p.RateLimitRPS > 0 {
		prov = provider.NewRateLimited(prov, p.RateLimitRPS, p.RateLimitBurst)
	}
	return provider.Entry{Descriptor: desc, Provider: prov}
}

// Chain builds the fallback chain for the named archetype.
func (c *Config) Chain(name string, creds credentials.Store) (provider.Chain, error) {
	for _, a := range c.Archetypes {
		if a.Name != name {
			continue
		}
		return c.chain(a, creds)
	}
	return provider.Chain{}, &archetype.NotFoundError{Name: name}
}

func (c *Config) chain(a ArchetypeConfig, creds credentials.Store) (provider.Chain, error) {
	byName := make(map[string]ProviderConfig, len(c.Providers))
	for _, p := range c.Providers {
		byName[p.Name] = p
	}

	entries := make([]provider.Entry, 0, len(a.Providers))
	for i, name := range a.Providers {
		p, ok := byName[name]
		if !ok {
			return provider.Chain{}, fmt.Errorf("archetype %s: %w: %s", a.Name, ErrUnknownProvider, name)
		}
		model := ""
		if i == 0 {
			model = a.Model
		}
		entries = append(entries, p.entry(creds, model))
	}

	fallback := true
	if a.Fallback != nil {
		fallback = *a.Fallback
	}
	return provider.NewChain(fallback, entries...), nil
}

// Registry builds every archetype with its chain.
func (c *Config) Registry(creds credentials.Store) (*archetype.Registry, error) {
	reg := archetype.NewRegistry()
	for _, a := range c.Archetypes {
		chain, err := c.chain(a, creds)
		if err != nil {
			return nil, err
		}
		reg.Register(archetype.Archetype{
			Name:         a.Name,
			SystemPrompt: a.SystemPrompt,
			Model:        chain.Primary().Descriptor.Model,
			Chain:        chain,
		})
	}
	return reg, nil
}

// CredentialStore opens the configured secret backend. The redis backend
// consults the hash first and the environment second, and takes writes. The
// returned close function releases any connection.
func (c *Config) CredentialStore() (credentials.Store, func() error, error) {
	noop := func() error { return nil }

	switch c.Credentials {
	case "memory":
		return credentials.NewMemoryStore(), noop, nil
	case "redis":
		rs, err := credentials.NewRedisStore(c.Redis.URL, c.Redis.Password, c.Redis.CredentialsKey)
		if err != nil {
			return nil, nil, err
		}
		return credentials.Chain{rs, credentials.EnvStore{}}, rs.Close, nil
	default:
		return credentials.EnvStore{}, noop, nil
	}
}
