package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/relaygate/relaygate/internal/credential"
	"github.com/relaygate/relaygate/internal/pipeline"
	"github.com/relaygate/relaygate/internal/registry"
	"github.com/relaygate/relaygate/internal/router"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Default configuration values
const (
	DefaultConfigLogFormat        = LogFormatText
	DefaultConfigServerHost       = "127.0.0.1"
	DefaultConfigServerPort       = 4000
	DefaultConfigShutdownTimeout  = 5 * time.Second
	DefaultConfigStateStoreBackend = StateStoreBackendMemory
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// ObservabilityConfig controls the OTel log/trace export wired up at boot.
type ObservabilityConfig struct {
	ServiceName  string `json:"service_name"`
	OTLPEndpoint string `json:"otlp_endpoint,omitempty"`
}

// StateStoreBackend selects the C7 conversation state store implementation.
type StateStoreBackend string

const (
	StateStoreBackendMemory StateStoreBackend = "memory"
	StateStoreBackendSQL    StateStoreBackend = "sql"
)

// StateStoreConfig configures the Responses-API conversation state store.
type StateStoreConfig struct {
	Backend StateStoreBackend `json:"backend" validate:"omitempty,oneof=memory sql"`
	DSN     string            `json:"dsn,omitempty" validate:"required_if=Backend sql"`
	Timeout time.Duration     `json:"timeout,omitempty"`
}

// CacheConfig configures the router's optional orchestrator-response cache.
type CacheConfig struct {
	RedisAddr string        `json:"redis_addr,omitempty"`
	Prefix    string        `json:"prefix,omitempty"`
	TTL       time.Duration `json:"ttl,omitempty"`
}

// RouterConfig configures the C5 orchestrator-driven route selector. A zero
// value (Enabled false) leaves every listener's agent pipelines unrouted:
// SelectPipelines then falls back to the single or default-marked pipeline.
type RouterConfig struct {
	Enabled           bool           `json:"enabled"`
	OrchestratorURL   string         `json:"orchestrator_url,omitempty" validate:"required_if=Enabled true"`
	OrchestratorModel string         `json:"orchestrator_model,omitempty"`
	TokenBudgetCap    int            `json:"token_budget_cap,omitempty"`
	Routes            []router.Route `json:"routes,omitempty"`
	Cache             CacheConfig    `json:"cache,omitempty"`
}

// CredentialConfig describes one provider's secret source, feeding
// internal/credential.Source.
type CredentialConfig struct {
	Provider    registry.ProviderID   `json:"provider" validate:"required"`
	Storage     credential.StorageType `json:"storage" validate:"required,oneof=file env keyring"`
	File        string                `json:"file,omitempty"`
	EnvKey      string                `json:"env_key,omitempty"`
	KeyringUser string                `json:"keyring_user,omitempty"`
}

func (c CredentialConfig) toStoreConfig() credential.Config {
	return credential.Config{Storage: c.Storage, File: c.File, EnvKey: c.EnvKey, KeyringUser: c.KeyringUser}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel      slog.Level          `json:"log_level"`
	LogFormat     LogFormat           `json:"log_format" validate:"oneof=text json"`
	Server        ServerConfig        `json:"server"`
	Shutdown      ShutdownConfig      `json:"shutdown"`
	Observability ObservabilityConfig `json:"observability"`

	// Providers feeds the C4 registry: one entry per upstream provider or
	// provider/model pair.
	Providers []registry.Descriptor `json:"providers" validate:"required,min=1,dive"`
	// Listeners feeds C6: the agent-pipeline endpoints this gateway exposes
	// beyond the three plain completion dialects.
	Listeners  []pipeline.Listener `json:"listeners,omitempty"`
	Router     RouterConfig        `json:"router"`
	StateStore StateStoreConfig    `json:"state_store"`
	// Credentials supplies one secret source per provider referenced from
	// Providers. A provider with AuthNone needs no entry.
	Credentials []CredentialConfig `json:"credentials,omitempty"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = "relaygate"
	}
	if c.StateStore.Backend == "" {
		c.StateStore.Backend = DefaultConfigStateStoreBackend
	}

	for i := range c.Credentials {
		cred := &c.Credentials[i]
		switch cred.Storage {
		case credential.StorageFile:
			if cred.File == "" {
				configDir, err := os.UserConfigDir()
				if err != nil {
					return fmt.Errorf("credentials[%d].file required (auto-detect failed: %w)", i, err)
				}
				cred.File = filepath.Join(configDir, "relaygate", string(cred.Provider)+".token")
			}
		case credential.StorageKeyring:
			if cred.KeyringUser == "" {
				currentUser, err := user.Current()
				if err != nil {
					return fmt.Errorf("credentials[%d].keyring_user required (auto-detect failed: %w)", i, err)
				}
				cred.KeyringUser = currentUser.Username
			}
		case credential.StorageEnv:
			// env_key must be explicitly configured (no sensible default)
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values,
// plus the cross-field rules Validate's own tags can't express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	for i, cred := range c.Credentials {
		switch cred.Storage {
		case credential.StorageFile:
			if cred.File == "" {
				return fmt.Errorf("credentials[%d]: file path required for file storage", i)
			}
		case credential.StorageEnv:
			if cred.EnvKey == "" {
				return fmt.Errorf("credentials[%d]: env_key required for env storage", i)
			}
		case credential.StorageKeyring:
			if cred.KeyringUser == "" {
				return fmt.Errorf("credentials[%d]: keyring_user required for keyring storage", i)
			}
		}
	}

	if c.Router.Enabled && c.Router.OrchestratorURL == "" {
		return errors.New("router.orchestrator_url required when router.enabled is true")
	}
	if c.StateStore.Backend == StateStoreBackendSQL && c.StateStore.DSN == "" {
		return errors.New("state_store.dsn required for the sql backend")
	}

	return nil
}
