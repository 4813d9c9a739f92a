package app

import (
	"context"
	"testing"

	"github.com/relaygate/relaygate/internal/dialect"
	"github.com/relaygate/relaygate/internal/pipeline"
	"github.com/relaygate/relaygate/internal/registry"
)

func providerConfig(name string) *Config {
	cfg := &Config{
		Providers: []registry.Descriptor{
			{
				Name:     name,
				Provider: registry.ProviderOpenAI,
				Dialect:  dialect.KindOpenAIChat,
				Auth:     registry.AuthBearer,
				Default:  true,
			},
		},
	}
	if err := cfg.ApplyDefaults(); err != nil {
		panic(err)
	}
	return cfg
}

func TestNewBuildsAnEdgeFromConfig(t *testing.T) {
	a, err := New(providerConfig("openai"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.edge.Load() == nil {
		t.Fatal("expected New to store an initial Edge snapshot")
	}
}

func TestReloadSwapsTheServingEdge(t *testing.T) {
	a, err := New(providerConfig("openai"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	before := a.edge.Load()

	if err := a.Reload(context.Background(), providerConfig("azure-openai")); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	after := a.edge.Load()
	if before == after {
		t.Fatal("expected Reload to swap in a new Edge instance")
	}
	if _, ok := after.Registry.Get("azure-openai"); !ok {
		t.Fatal("expected the reloaded Edge's registry to reflect the new config")
	}
}

func TestReloadRejectsInvalidConfig(t *testing.T) {
	a, err := New(providerConfig("openai"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	before := a.edge.Load()

	if err := a.Reload(context.Background(), &Config{}); err == nil {
		t.Fatal("expected Reload to reject a config with no providers")
	}
	if a.edge.Load() != before {
		t.Fatal("a rejected reload must not swap the serving Edge")
	}
}

func TestBuildEdgeWiresListeners(t *testing.T) {
	cfg := providerConfig("openai")
	cfg.Listeners = []pipeline.Listener{{Name: "support", Port: 9100}}

	e, err := buildEdge(cfg)
	if err != nil {
		t.Fatalf("buildEdge: %v", err)
	}
	if _, ok := pipeline.ByName(e.Listeners, "support"); !ok {
		t.Fatal("expected buildEdge to carry configured listeners onto the Edge")
	}
}
