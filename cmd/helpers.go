// cmd/helpers.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aceteam-ai/guardian/internal/archetype"
	"github.com/aceteam-ai/guardian/internal/credentials"
	"github.com/aceteam-ai/guardian/internal/redis"
	"github.com/aceteam-ai/guardian/internal/router"
	"github.com/aceteam-ai/guardian/internal/sensors"
	"github.com/aceteam-ai/guardian/internal/usage"
)

// app holds the components a command needs, built from the loaded manifest.
type app struct {
	creds      credentials.Store
	closeCreds func() error
	counter    *usage.Counter
	store      *usage.Store // nil when no usage.db_path is configured
	router     *router.Router
	registry   *archetype.Registry
	guardian   *archetype.Guardian
	aggregator *sensors.Aggregator
	spec       sensors.Spec
}

// newApp wires the components from cfg.
func newApp() (*app, error) {
	a := &app{counter: usage.NewCounter()}

	creds, closeCreds, err := cfg.CredentialStore()
	if err != nil {
		return nil, err
	}
	a.creds, a.closeCreds = creds, closeCreds

	routerCfg := router.Config{
		Counter: a.counter,
		LogFn:   logger.LogFn("component", "router"),
	}
	if cfg.Usage.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Usage.DBPath), 0755); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create usage directory: %w", err)
		}
		store, err := usage.OpenStore(cfg.Usage.DBPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
		routerCfg.Recorder = store
	}
	a.router = router.New(routerCfg)

	registry, err := cfg.Registry(a.creds)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = registry
	a.guardian = archetype.NewGuardian(registry, a.router)

	spec, err := cfg.SensorSpec()
	if err != nil {
		a.Close()
		return nil, err
	}
	readers, err := cfg.Readers()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.spec = spec
	a.aggregator = sensors.New(sensors.Config{
		Readers:  readers,
		Monitor:  spec,
		Interval: cfg.SensorInterval(),
		LogFn:    logger.LogFn("component", "sensors"),
	})

	return a, nil
}

// Close releases the usage store and credential connections.
func (a *app) Close() {
	if a.aggregator != nil {
		a.aggregator.Stop()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.closeCreds != nil {
		a.closeCreds()
	}
}

// newPublisher connects the Redis usage publisher, or returns nil when Redis
// is not configured.
func newPublisher(ctx context.Context) (*redis.Publisher, error) {
	if cfg.Redis.URL == "" {
		return nil, nil
	}
	pub := redis.NewPublisher(redis.PublisherConfig{
		URL:      cfg.Redis.URL,
		Password: cfg.Redis.Password,
		Stream:   cfg.Redis.Stream,
		Channel:  cfg.Redis.Channel,
	})
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pub.Connect(connectCtx); err != nil {
		return nil, err
	}
	return pub, nil
}

// parseKinds parses a comma separated list of sensor kinds. "all" enables
// every kind.
func parseKinds(list string) ([]sensors.Kind, error) {
	if strings.TrimSpace(list) == "all" {
		return sensors.AllKinds(), nil
	}
	var kinds []sensors.Kind
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := sensors.ParseKind(part)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// sortedKeys returns the map keys in order.
func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// absenceLabel renders an absence reason in color.
func absenceLabel(a sensors.Absence) string {
	switch a {
	case sensors.AbsentDisabled:
		return labelColor.Sprint("disabled")
	case sensors.AbsentTimedOut:
		return warnColor.Sprint("timed out")
	default:
		return badColor.Sprint("failed")
	}
}
