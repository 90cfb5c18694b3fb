package collector

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/trafficlens/trafficlens/internal/snapshot"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config holds collector daemon configuration. Values are resolved in
// order: defaults, then the YAML config file, then environment
// overrides.
type Config struct {
	// Store selects the snapshot store backend: postgres or sqlite.
	// Postgres connection details come from the DB_* environment
	// variables.
	Store string `yaml:"store"`

	// SQLitePath locates the database file for the sqlite store.
	SQLitePath string `yaml:"sqlite_path"`

	// GoogleMapsAPIKey authenticates the traffic estimator. Usually set
	// through the environment rather than the file.
	GoogleMapsAPIKey string `yaml:"google_maps_api_key"`

	// SampleConcurrency is the number of concurrent route estimates per
	// snapshot.
	SampleConcurrency int `yaml:"sample_concurrency"`

	// RouteTimeoutSeconds bounds a single route estimate.
	RouteTimeoutSeconds int `yaml:"route_timeout_seconds"`

	// AutoResume picks up the first training-status area at boot.
	AutoResume bool `yaml:"auto_resume"`

	// PubSub configures the command subscription. Commands are disabled
	// when the subscription name is empty.
	PubSub PubSubSettings `yaml:"pubsub"`

	// Port serves the health endpoints.
	Port string `yaml:"port"`
}

// PubSubSettings identifies the command subscription.
type PubSubSettings struct {
	ProjectID    string `yaml:"project_id"`
	Subscription string `yaml:"subscription"`
}

// DefaultConfig returns the built-in defaults: a local sqlite store with
// no command subscription.
func DefaultConfig() Config {
	return Config{
		Store:               StoreSQLite,
		SQLitePath:          "trafficlens.db",
		SampleConcurrency:   snapshot.DefaultConcurrency,
		RouteTimeoutSeconds: int(snapshot.DefaultRouteTimeout / time.Second),
		AutoResume:          true,
		Port:                "8081",
	}
}

// LoadConfig builds the daemon configuration. path may be empty to skip
// the file layer.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	if v := os.Getenv("GOOGLE_MAPS_API_KEY"); v != "" {
		cfg.GoogleMapsAPIKey = v
	}
	if v := os.Getenv("SAMPLE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SampleConcurrency = n
		}
	}
	if v := os.Getenv("ROUTE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RouteTimeoutSeconds = n
		}
	}
	if v := os.Getenv("AUTO_RESUME"); v != "" {
		cfg.AutoResume = v == "true"
	}
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		cfg.PubSub.ProjectID = v
	}
	if v := os.Getenv("PUBSUB_SUBSCRIPTION"); v != "" {
		cfg.PubSub.Subscription = v
	}
	if v := os.Getenv("APP_PORT"); v != "" {
		cfg.Port = v
	}
}

// RouteTimeout returns the per-route estimate bound as a duration.
func (c Config) RouteTimeout() time.Duration {
	return time.Duration(c.RouteTimeoutSeconds) * time.Second
}

// CommandsEnabled reports whether the Pub/Sub command subscription is
// configured.
func (c Config) CommandsEnabled() bool {
	return c.PubSub.Subscription != ""
}

// Validate checks driver selection and basic field sanity.
func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite_path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store)
	}

	if c.SampleConcurrency < 1 {
		return fmt.Errorf("sample_concurrency must be at least 1")
	}
	if c.RouteTimeoutSeconds < 1 {
		return fmt.Errorf("route_timeout_seconds must be at least 1")
	}
	if c.CommandsEnabled() && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when a subscription is set")
	}
	return nil
}
