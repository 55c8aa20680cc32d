// Package config loads the guardian manifest.
//
// The manifest is a YAML file (guardian.yaml) describing completion
// providers, archetypes and sensors. Every field has a default, and a handful
// can be overridden from the environment (GUARDIAN_*), so an empty or missing
// manifest yields a working Groq-backed guardian.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aceteam-ai/guardian/internal/archetype"
	"github.com/aceteam-ai/guardian/internal/provider"
	"github.com/aceteam-ai/guardian/internal/sensors"
)

// ManifestName is the default manifest file name.
const ManifestName = "guardian.yaml"

// ProviderConfig defines one completion source.
type ProviderConfig struct {
	Name         string `yaml:"name"`
	Kind         string `yaml:"kind"` // "remote" or "local"
	Endpoint     string `yaml:"endpoint,omitempty"`
	Model        string `yaml:"model,omitempty"`
	RequiresAuth bool   `yaml:"requires_auth,omitempty"`

	// TimeoutSeconds bounds one call (default: transport default)
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`

	// RateLimitRPS enables a local request budget when > 0
	RateLimitRPS   float64 `yaml:"rate_limit_rps,omitempty"`
	RateLimitBurst int     `yaml:"rate_limit_burst,omitempty"`

	// Retries enables in-place retry of transient failures when > 1
	Retries int `yaml:"retries,omitempty"`
}

// ArchetypeConfig defines one conversation mode.
type ArchetypeConfig struct {
	Name         string `yaml:"name"`
	SystemPrompt string `yaml:"system_prompt"`

	// Model overrides the primary provider's model
	Model string `yaml:"model,omitempty"`

	// Providers is the fallback chain, primary first
	Providers []string `yaml:"providers"`

	// Fallback enables the alternates (default: true)
	Fallback *bool `yaml:"fallback,omitempty"`
}

// SensorConfig defines the snapshot sources.
type SensorConfig struct {
	// Enabled kinds for snapshots and monitoring
	Enabled []string `yaml:"enabled"`

	// DeadlineMs bounds one collection (default: 5000)
	DeadlineMs int `yaml:"deadline_ms,omitempty"`

	// IntervalSeconds between continuous collections (default: 30)
	IntervalSeconds int `yaml:"interval_seconds,omitempty"`

	// Endpoints maps a kind to a companion HTTP endpoint serving it as JSON
	Endpoints map[string]string `yaml:"endpoints,omitempty"`

	// DiskPath is the mount point the device reader measures (default: "/")
	DiskPath string `yaml:"disk_path,omitempty"`
}

// UsageConfig defines the usage ledger.
type UsageConfig struct {
	// DBPath is the SQLite ledger path; empty disables the ledger
	DBPath string `yaml:"db_path,omitempty"`

	// SyncIntervalSeconds between Redis publishes (default: 60)
	SyncIntervalSeconds int `yaml:"sync_interval_seconds,omitempty"`
}

// RedisConfig defines the optional Redis connection.
type RedisConfig struct {
	URL            string `yaml:"url,omitempty"`
	Password       string `yaml:"password,omitempty"`
	CredentialsKey string `yaml:"credentials_key,omitempty"`
	Stream         string `yaml:"stream,omitempty"`
	Channel        string `yaml:"channel,omitempty"`
}

// Config is the parsed manifest.
type Config struct {
	Providers        []ProviderConfig  `yaml:"providers"`
	Archetypes       []ArchetypeConfig `yaml:"archetypes"`
	DefaultArchetype string            `yaml:"default_archetype"`

	// Credentials selects the secret backend: "env", "redis" or "memory"
	Credentials string `yaml:"credentials"`

	Sensors SensorConfig `yaml:"sensors"`
	Usage   UsageConfig  `yaml:"usage"`
	Redis   RedisConfig  `yaml:"redis"`

	// StatusPort is the port `guardian serve` listens on
	StatusPort int `yaml:"status_port"`

	// LogMode is "production" or "development"
	LogMode string `yaml:"log_mode"`
}

// DefaultConfig returns the built-in manifest: Scout and Architect on Groq,
// falling back to a local Ollama, with device-state sensing.
func DefaultConfig() *Config {
	return &Config{
		Providers: []ProviderConfig{
			{
				Name:         "groq",
				Kind:         "remote",
				Endpoint:     provider.GroqChatURL,
				Model:        "llama3-8b-8192",
				RequiresAuth: true,
			},
			{
				Name:     "ollama",
				Kind:     "local",
				Endpoint: provider.DefaultOllamaURL,
				Model:    "llama3",
			},
		},
		Archetypes: []ArchetypeConfig{
			{
				Name:         archetype.Scout,
				SystemPrompt: archetype.ScoutPrompt,
				Model:        "llama3-8b-8192",
				Providers:    []string{"groq", "ollama"},
			},
			{
				Name:         archetype.Architect,
				SystemPrompt: archetype.ArchitectPrompt,
				Model:        "llama3-70b-8192",
				Providers:    []string{"groq", "ollama"},
			},
		},
		DefaultArchetype: archetype.Scout,
		Credentials:      "env",
		Sensors: SensorConfig{
			Enabled:         []string{string(sensors.KindDeviceState)},
			DeadlineMs:      int(sensors.DefaultDeadline / time.Millisecond),
			IntervalSeconds: 30,
			DiskPath:        "/",
		},
		Usage: UsageConfig{
			SyncIntervalSeconds: 60,
		},
		StatusPort: 8080,
		LogMode:    "production",
	}
}

// Load reads the manifest at path over the defaults, applies environment
// overrides and validates the result. An empty path loads the defaults only.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("manifest not found at %s", path)
			}
			return nil, fmt.Errorf("could not read manifest %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("could not parse manifest %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return cfg, nil
}

// FindManifest returns the first existing manifest among ./guardian.yaml and
// $HOME/.config/guardian/guardian.yaml, or "" when neither exists.
func FindManifest() string {
	candidates := []string{ManifestName}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "guardian", ManifestName))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// applyEnv overrides fields from GUARDIAN_* environment variables.
func (c *Config) applyEnv() {
	c.Redis.URL = getEnvOrDefault("GUARDIAN_REDIS_URL", c.Redis.URL)
	c.Redis.Password = getEnvOrDefault("GUARDIAN_REDIS_PASSWORD", c.Redis.Password)
	c.Usage.DBPath = getEnvOrDefault("GUARDIAN_USAGE_DB", c.Usage.DBPath)
	c.Credentials = getEnvOrDefault("GUARDIAN_CREDENTIALS", c.Credentials)
	c.DefaultArchetype = getEnvOrDefault("GUARDIAN_ARCHETYPE", c.DefaultArchetype)
	c.LogMode = getEnvOrDefault("GUARDIAN_LOG_MODE", c.LogMode)
	c.StatusPort = getEnvInt("GUARDIAN_STATUS_PORT", c.StatusPort)
	c.Sensors.DeadlineMs = getEnvInt("GUARDIAN_SENSOR_DEADLINE_MS", c.Sensors.DeadlineMs)

	if url := os.Getenv("GUARDIAN_OLLAMA_URL"); url != "" {
		for i := range c.Providers {
			if c.Providers[i].Name == "ollama" {
				c.Providers[i].Endpoint = url
			}
		}
	}

	if v := os.Getenv("GUARDIAN_FALLBACK"); v != "" {
		fallback := getEnvBool("GUARDIAN_FALLBACK", true)
		for i := range c.Archetypes {
			c.Archetypes[i].Fallback = &fallback
		}
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return ErrNoProviders
	}

	names := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("%w: provider without a name", ErrNoProviders)
		}
		if names[p.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateProvider, p.Name)
		}
		names[p.Name] = true
		if _, err := provider.ParseKind(p.Kind); err != nil {
			return fmt.Errorf("provider %s: %w", p.Name, err)
		}
	}

	archetypes := make(map[string]bool, len(c.Archetypes))
	for _, a := range c.Archetypes {
		if a.Name == "" || len(a.Providers) == 0 {
			return fmt.Errorf("%w: %q", ErrEmptyArchetype, a.Name)
		}
		for _, p := range a.Providers {
			if !names[p] {
				return fmt.Errorf("archetype %s: %w: %s", a.Name, ErrUnknownProvider, p)
			}
		}
		archetypes[a.Name] = true
	}
	if c.DefaultArchetype != "" && !archetypes[c.DefaultArchetype] {
		return fmt.Errorf("%w: %s", ErrUnknownDefaultArchetype, c.DefaultArchetype)
	}

	if _, err := c.SensorSpec(); err != nil {
		return err
	}
	for kind := range c.Sensors.Endpoints {
		if _, err := sensors.ParseKind(kind); err != nil {
			return fmt.Errorf("sensors.endpoints: %w", err)
		}
	}

	switch c.Credentials {
	case "", "env", "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("credentials: %w", ErrRedisRequired)
		}
	default:
		return fmt.Errorf("%w (got %q)", ErrInvalidCredentials, c.Credentials)
	}

	if c.StatusPort < 1 || c.StatusPort > 65535 {
		return ErrInvalidPort
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a bool or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
