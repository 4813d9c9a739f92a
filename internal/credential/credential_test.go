package credential

import (
	"context"
	"testing"

	"github.com/relaygate/relaygate/internal/registry"
)

func TestNewSourceReadsThroughEnv(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test-123")

	src, err := NewSource(map[registry.ProviderID]Config{
		registry.ProviderOpenAI: {Storage: StorageEnv, EnvKey: "TEST_OPENAI_KEY"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := src.Get(context.Background(), registry.ProviderOpenAI)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "sk-test-123" {
		t.Fatalf("unexpected secret: %q", got)
	}
}

func TestNewSourceFailsFastOnMissingEnvVar(t *testing.T) {
	_, err := NewSource(map[registry.ProviderID]Config{
		registry.ProviderAnthropic: {Storage: StorageEnv, EnvKey: "TEST_DOES_NOT_EXIST_XYZ"},
	})
	if err == nil {
		t.Fatal("expected error for unset environment variable")
	}
}

func TestGetUnknownProvider(t *testing.T) {
	src, err := NewSource(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := src.Get(context.Background(), registry.ProviderGroq); err == nil {
		t.Fatal("expected error for unconfigured provider")
	}
}

func TestAttachBearer(t *testing.T) {
	var headers = map[string]string{}
	Attach(registry.AuthBearer, "secret-token", func(k, v string) { headers[k] = v })
	if headers["Authorization"] != "Bearer secret-token" {
		t.Fatalf("unexpected headers: %+v", headers)
	}
}

func TestAttachAnthropicStyle(t *testing.T) {
	var headers = map[string]string{}
	Attach(registry.AuthAnthropicKey, "secret-token", func(k, v string) { headers[k] = v })
	if headers["x-api-key"] != "secret-token" || headers["anthropic-version"] != "2023-06-01" {
		t.Fatalf("unexpected headers: %+v", headers)
	}
}
