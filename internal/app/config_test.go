package app

import (
	"testing"

	"github.com/relaygate/relaygate/internal/credential"
	"github.com/relaygate/relaygate/internal/dialect"
	"github.com/relaygate/relaygate/internal/registry"
)

func minimalConfig() *Config {
	return &Config{
		Providers: []registry.Descriptor{
			{
				Name:     "openai",
				Provider: registry.ProviderOpenAI,
				Dialect:  dialect.KindOpenAIChat,
				Auth:     registry.AuthBearer,
				Default:  true,
			},
		},
	}
}

func TestApplyDefaultsFillsServerAndStateStore(t *testing.T) {
	cfg := minimalConfig()
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatalf("ApplyDefaults: %v", err)
	}
	if cfg.Server.Host != DefaultConfigServerHost {
		t.Errorf("got server host %q, want default %q", cfg.Server.Host, DefaultConfigServerHost)
	}
	if cfg.Server.Port != DefaultConfigServerPort {
		t.Errorf("got server port %d, want default %d", cfg.Server.Port, DefaultConfigServerPort)
	}
	if cfg.StateStore.Backend != StateStoreBackendMemory {
		t.Errorf("got state store backend %q, want memory default", cfg.StateStore.Backend)
	}
	if cfg.LogFormat != DefaultConfigLogFormat {
		t.Errorf("got log format %q, want default %q", cfg.LogFormat, DefaultConfigLogFormat)
	}
}

func TestApplyDefaultsLeavesExplicitValuesAlone(t *testing.T) {
	cfg := minimalConfig()
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 9090
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatalf("ApplyDefaults: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Fatalf("ApplyDefaults overwrote explicit server config: %+v", cfg.Server)
	}
}

func TestApplyDefaultsRequiresEnvKeyForEnvCredential(t *testing.T) {
	cfg := minimalConfig()
	cfg.Credentials = []CredentialConfig{{Provider: registry.ProviderOpenAI, Storage: credential.StorageEnv}}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatalf("ApplyDefaults: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject an env credential with no env_key set")
	}
}

func TestValidateRejectsEmptyProviders(t *testing.T) {
	cfg := &Config{}
	_ = cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject a config with no providers")
	}
}

func TestValidateRejectsRouterEnabledWithoutOrchestratorURL(t *testing.T) {
	cfg := minimalConfig()
	_ = cfg.ApplyDefaults()
	cfg.Router.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject router.enabled with no orchestrator_url")
	}
}

func TestValidateRejectsSQLStateStoreWithoutDSN(t *testing.T) {
	cfg := minimalConfig()
	_ = cfg.ApplyDefaults()
	cfg.StateStore.Backend = StateStoreBackendSQL
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject the sql backend with no dsn")
	}
}

func TestValidateAcceptsMinimalConfig(t *testing.T) {
	cfg := minimalConfig()
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatalf("ApplyDefaults: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate rejected a minimal, defaulted config: %v", err)
	}
}
