package config

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed example.yaml
var exampleConfig embed.FS

// Config represents the complete moonshot configuration
type Config struct {
	Identity Identity `yaml:"identity"`
	Relays   Relays   `yaml:"relays"`
	Queries  Queries  `yaml:"queries"`
	Publish  Publish  `yaml:"publish"`
	Storage  Storage  `yaml:"storage"`
	Logging  Logging  `yaml:"logging"`
	Display  Display  `yaml:"display"`
}

// Identity contains the local Nostr identity
type Identity struct {
	Npub string `yaml:"npub"` // Public key; the secret key lives in the keystore
}

// Relays contains relay configuration
type Relays struct {
	Seeds  []string    `yaml:"seeds"`
	Policy RelayPolicy `yaml:"policy"`
}

// RelayPolicy contains relay connection policies
type RelayPolicy struct {
	ConnectTimeoutMs int `yaml:"connect_timeout_ms"`
}

// Queries contains query completion bounds.
// Light queries are single-entity or narrow-filter reads; heavy queries are
// full listings that fan out across the whole relay set.
type Queries struct {
	LightTimeoutSeconds int `yaml:"light_timeout_seconds"`
	HeavyTimeoutSeconds int `yaml:"heavy_timeout_seconds"`
}

// Publish contains publish completion bounds
type Publish struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Storage contains local cache storage settings
type Storage struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Display contains client-side display limits
type Display struct {
	MaxThreadDepth int `yaml:"max_thread_depth"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Identity: Identity{
			Npub: "",
		},
		Relays: Relays{
			Seeds: []string{
				"wss://relay.damus.io",
				"wss://nos.lol",
				"wss://relay.angor.io",
			},
			Policy: RelayPolicy{
				ConnectTimeoutMs: 10000,
			},
		},
		Queries: Queries{
			LightTimeoutSeconds: 3,
			HeavyTimeoutSeconds: 10,
		},
		Publish: Publish{
			TimeoutSeconds: 5,
		},
		Storage: Storage{
			Driver:     "sqlite",
			SQLitePath: "./data/moonshot.db",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Display: Display{
			MaxThreadDepth: 6,
		},
	}
}

// applyDefaults fills in zero-valued fields from Default
func applyDefaults(cfg *Config) {
	defaults := Default()

	if len(cfg.Relays.Seeds) == 0 {
		cfg.Relays.Seeds = defaults.Relays.Seeds
	}
	if cfg.Relays.Policy.ConnectTimeoutMs == 0 {
		cfg.Relays.Policy.ConnectTimeoutMs = defaults.Relays.Policy.ConnectTimeoutMs
	}
	if cfg.Queries.LightTimeoutSeconds == 0 {
		cfg.Queries.LightTimeoutSeconds = defaults.Queries.LightTimeoutSeconds
	}
	if cfg.Queries.HeavyTimeoutSeconds == 0 {
		cfg.Queries.HeavyTimeoutSeconds = defaults.Queries.HeavyTimeoutSeconds
	}
	if cfg.Publish.TimeoutSeconds == 0 {
		cfg.Publish.TimeoutSeconds = defaults.Publish.TimeoutSeconds
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = defaults.Storage.Driver
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = defaults.Storage.SQLitePath
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}
	if cfg.Display.MaxThreadDepth == 0 {
		cfg.Display.MaxThreadDepth = defaults.Display.MaxThreadDepth
	}
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) error {
	if npub := os.Getenv("MOONSHOT_NPUB"); npub != "" {
		cfg.Identity.Npub = npub
	}
	if path := os.Getenv("MOONSHOT_SQLITE_PATH"); path != "" {
		cfg.Storage.SQLitePath = path
	}
	return nil
}

// GetExampleConfig returns the embedded example configuration
func GetExampleConfig() ([]byte, error) {
	return exampleConfig.ReadFile("example.yaml")
}

// validLogLevels defines allowed log levels
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validStorageDrivers defines allowed storage backends
var validStorageDrivers = map[string]bool{
	"sqlite": true,
}

// Validate checks if a configuration is valid
func Validate(cfg *Config) error {
	if cfg.Identity.Npub != "" && !strings.HasPrefix(cfg.Identity.Npub, "npub1") {
		return fmt.Errorf("identity.npub must start with 'npub1'")
	}

	if len(cfg.Relays.Seeds) == 0 {
		return fmt.Errorf("at least one relay seed is required")
	}
	for _, seed := range cfg.Relays.Seeds {
		if !strings.HasPrefix(seed, "wss://") && !strings.HasPrefix(seed, "ws://") {
			return fmt.Errorf("relay seed must start with ws:// or wss://: %s", seed)
		}
	}

	if cfg.Queries.LightTimeoutSeconds < 1 || cfg.Queries.LightTimeoutSeconds > 60 {
		return fmt.Errorf("queries.light_timeout_seconds must be between 1 and 60")
	}
	if cfg.Queries.HeavyTimeoutSeconds < cfg.Queries.LightTimeoutSeconds {
		return fmt.Errorf("queries.heavy_timeout_seconds must not be below light_timeout_seconds")
	}
	if cfg.Publish.TimeoutSeconds < 1 || cfg.Publish.TimeoutSeconds > 60 {
		return fmt.Errorf("publish.timeout_seconds must be between 1 and 60")
	}

	if !validStorageDrivers[cfg.Storage.Driver] {
		return fmt.Errorf("invalid storage driver: %s (must be: sqlite)", cfg.Storage.Driver)
	}

	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", cfg.Logging.Level)
	}

	if cfg.Display.MaxThreadDepth < 1 || cfg.Display.MaxThreadDepth > 100 {
		return fmt.Errorf("display.max_thread_depth must be between 1 and 100")
	}

	return nil
}
