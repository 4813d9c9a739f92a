package registry

import "testing"

func TestBuildRejectsEmpty(t *testing.T) {
	if _, err := Build(nil); err != ErrEmptyProviders {
		t.Fatalf("expected ErrEmptyProviders, got %v", err)
	}
}

func TestBuildRejectsMoreThanOneDefault(t *testing.T) {
	_, err := Build([]Descriptor{
		{Name: "openai", Provider: ProviderOpenAI, Model: "gpt-4o", Default: true},
		{Name: "anthropic", Provider: ProviderAnthropic, Model: "claude-3-5-sonnet", Default: true},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*MoreThanOneDefaultError); !ok {
		t.Fatalf("expected *MoreThanOneDefaultError, got %T", err)
	}
}

func TestBuildRejectsDuplicateName(t *testing.T) {
	_, err := Build([]Descriptor{
		{Name: "openai/gpt-4o", Provider: ProviderOpenAI, Model: "gpt-4o"},
		{Name: "openai/gpt-4o", Provider: ProviderOpenAI, Model: "gpt-4o"},
	})
	if _, ok := err.(*DuplicateNameError); !ok {
		t.Fatalf("expected *DuplicateNameError, got %v", err)
	}
}

func TestWildcardExpansionExcludesSpecificOverride(t *testing.T) {
	reg, err := Build([]Descriptor{
		{
			Name: "openai/*", Provider: ProviderOpenAI, Model: "*",
			KnownModels: []string{"gpt-4o", "gpt-4o-mini"},
		},
		{
			Name: "openai/gpt-4o", Provider: ProviderOpenAI, Model: "gpt-4o",
			PathTemplate: "/v1/chat/completions/override",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	specific, ok := reg.Get("openai/gpt-4o")
	if !ok {
		t.Fatal("expected openai/gpt-4o to resolve")
	}
	if specific.PathTemplate != "/v1/chat/completions/override" {
		t.Fatalf("specific descriptor did not shadow wildcard: got %+v", specific)
	}

	mini, ok := reg.Get("openai/gpt-4o-mini")
	if !ok {
		t.Fatal("expected openai/gpt-4o-mini to resolve from wildcard expansion")
	}
	if mini.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected model on expanded descriptor: %+v", mini)
	}
}

func TestGetIsIdempotent(t *testing.T) {
	reg, err := Build([]Descriptor{
		{Name: "anthropic/claude-3-5-sonnet", Provider: ProviderAnthropic, Model: "claude-3-5-sonnet"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, ok := reg.Get("claude-3-5-sonnet")
	if !ok {
		t.Fatal("expected first lookup to resolve")
	}
	second, ok := reg.Get(first.Name)
	if !ok {
		t.Fatal("expected second lookup to resolve")
	}
	if first.Name != second.Name || first.Model != second.Model {
		t.Fatalf("lookup not idempotent: %+v != %+v", first, second)
	}
}

func TestToModelsExcludesInternal(t *testing.T) {
	reg, err := Build([]Descriptor{
		{Name: "openai/gpt-4o", Provider: ProviderOpenAI, Model: "gpt-4o"},
		{Name: "openai/internal-eval", Provider: ProviderOpenAI, Model: "internal-eval", Internal: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	models := reg.ToModels()
	if len(models) != 1 || models[0].ID != "gpt-4o" {
		t.Fatalf("expected only gpt-4o in catalog, got %+v", models)
	}
}
