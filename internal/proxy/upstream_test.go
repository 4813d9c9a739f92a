package proxy

import (
	"net/http/httptest"
	"testing"

	"github.com/relaygate/relaygate/internal/dialect"
	"github.com/relaygate/relaygate/internal/dialect/anthropicdialect"
	"github.com/relaygate/relaygate/internal/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Build([]registry.Descriptor{
		{
			Name:         "openai",
			Provider:     registry.ProviderOpenAI,
			Dialect:      dialect.KindOpenAIChat,
			PathTemplate: "/v1/chat/completions",
			Auth:         registry.AuthBearer,
			Default:      true,
		},
		{
			Name:         "anthropic",
			Provider:     registry.ProviderAnthropic,
			Dialect:      dialect.KindAnthropicMessages,
			PathTemplate: "/v1/messages",
			Auth:         registry.AuthAnthropicKey,
			Model:        "claude-3-5-sonnet",
		},
		{
			Name:         "azure-openai/gpt-4o",
			Provider:     registry.ProviderAzureOpenAI,
			Dialect:      dialect.KindOpenAIChat,
			Auth:         registry.AuthBearer,
			Model:        "azure-openai/gpt-4o",
			URLPrefix:    "https://example.openai.azure.com",
		},
	})
	if err != nil {
		t.Fatalf("registry.Build: %v", err)
	}
	return reg
}

func TestResolveDescriptorByProviderHint(t *testing.T) {
	e := &Edge{Registry: testRegistry(t)}
	r := httptest.NewRequest("POST", "/v1/chat/completions", nil)
	r.Header.Set("x-arch-provider-hint", "anthropic")

	d, err := e.resolveDescriptor(r, "claude-3-5-sonnet")
	if err != nil {
		t.Fatalf("resolveDescriptor: %v", err)
	}
	if d.Provider != registry.ProviderAnthropic {
		t.Fatalf("got provider %s, want anthropic", d.Provider)
	}
}

func TestResolveDescriptorByModel(t *testing.T) {
	e := &Edge{Registry: testRegistry(t)}
	r := httptest.NewRequest("POST", "/v1/messages", nil)

	d, err := e.resolveDescriptor(r, "claude-3-5-sonnet")
	if err != nil {
		t.Fatalf("resolveDescriptor: %v", err)
	}
	if d.Provider != registry.ProviderAnthropic {
		t.Fatalf("got provider %s, want anthropic", d.Provider)
	}
}

func TestResolveDescriptorDefaultsWhenModelEmpty(t *testing.T) {
	e := &Edge{Registry: testRegistry(t)}
	r := httptest.NewRequest("POST", "/v1/chat/completions", nil)

	d, err := e.resolveDescriptor(r, "")
	if err != nil {
		t.Fatalf("resolveDescriptor: %v", err)
	}
	if d.Provider != registry.ProviderOpenAI {
		t.Fatalf("got provider %s, want openai (the configured default)", d.Provider)
	}
}

func TestResolveDescriptorUnknownModel(t *testing.T) {
	e := &Edge{Registry: testRegistry(t)}
	r := httptest.NewRequest("POST", "/v1/chat/completions", nil)

	if _, err := e.resolveDescriptor(r, "no-such-model"); err == nil {
		t.Fatal("expected an error for an unresolvable model id")
	}
}

func TestUpstreamBaseURLPrefersURLPrefix(t *testing.T) {
	d := registry.Descriptor{Provider: registry.ProviderAzureOpenAI, URLPrefix: "https://foo.example.com"}
	got, err := upstreamBaseURL(d)
	if err != nil {
		t.Fatalf("upstreamBaseURL: %v", err)
	}
	if got != "https://foo.example.com" {
		t.Fatalf("got %q, want the explicit URLPrefix", got)
	}
}

func TestUpstreamBaseURLFallsBackToDefault(t *testing.T) {
	d := registry.Descriptor{Provider: registry.ProviderOpenAI}
	got, err := upstreamBaseURL(d)
	if err != nil {
		t.Fatalf("upstreamBaseURL: %v", err)
	}
	if got != "https://api.openai.com" {
		t.Fatalf("got %q, want the well-known OpenAI base URL", got)
	}
}

func TestUpstreamBaseURLErrorsWithoutDefaultOrPrefix(t *testing.T) {
	d := registry.Descriptor{Provider: registry.ProviderBedrock}
	if _, err := upstreamBaseURL(d); err == nil {
		t.Fatal("expected an error: bedrock has neither a default base URL nor a URLPrefix")
	}
}

func TestBuildUpstreamPathExpandsModel(t *testing.T) {
	d := registry.Descriptor{Provider: registry.ProviderOpenAI, PathTemplate: "/v1/models/{model}/generate"}
	got := buildUpstreamPath(d, "openai/gpt-4o")
	if got != "/v1/models/gpt-4o/generate" {
		t.Fatalf("got %q", got)
	}
}

func TestBuildUpstreamPathAzureDeployment(t *testing.T) {
	d := registry.Descriptor{Provider: registry.ProviderAzureOpenAI}
	got := buildUpstreamPath(d, "azure-openai/gpt-4o")
	if got == "" {
		t.Fatal("expected a non-empty Azure deployment path")
	}
}

func TestNewWireAccessorCoversClientDialects(t *testing.T) {
	for _, kind := range []dialect.Kind{dialect.KindOpenAIChat, dialect.KindOpenAIResponses, dialect.KindAnthropicMessages} {
		wire, acc := newWireAccessor(kind)
		if wire == nil || acc == nil {
			t.Fatalf("newWireAccessor(%s) returned a nil wire or accessor", kind)
		}
	}
}

func TestNewWireAccessorRejectsBedrock(t *testing.T) {
	wire, acc := newWireAccessor(dialect.KindBedrockConverse)
	if wire != nil || acc != nil {
		t.Fatal("bedrock has no client-facing wire decode path")
	}
}

func TestApplyMaxTokens(t *testing.T) {
	wire, acc := newWireAccessor(dialect.KindAnthropicMessages)
	applyMaxTokens(dialect.KindAnthropicMessages, wire, 256)
	if got := wire.(*anthropicdialect.Request).Params.MaxTokens; got != 256 {
		t.Fatalf("expected max_tokens 256 after applyMaxTokens, got %d", got)
	}
	acc.SetModel("claude-3-5-sonnet")
	if acc.Model() != "claude-3-5-sonnet" {
		t.Fatalf("accessor round-trip broken after applyMaxTokens")
	}
}
