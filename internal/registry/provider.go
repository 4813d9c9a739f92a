// Package registry implements the provider registry (C4): a process-lifetime,
// read-only map from provider id and model id to the native upstream dialect,
// endpoint template, and auth style needed to reach it.
package registry

import (
	"fmt"

	"github.com/relaygate/relaygate/internal/dialect"
)

// AuthStyle selects how credentials are attached to an upstream request.
type AuthStyle string

const (
	AuthBearer        AuthStyle = "bearer"
	AuthAnthropicKey  AuthStyle = "x-api-key"
	AuthAWSSigV4      AuthStyle = "aws-sigv4"
	AuthNone          AuthStyle = "none"
)

// ProviderID enumerates the fourteen supported upstream providers.
type ProviderID string

const (
	ProviderOpenAI      ProviderID = "openai"
	ProviderAnthropic   ProviderID = "anthropic"
	ProviderBedrock     ProviderID = "bedrock"
	ProviderGemini      ProviderID = "gemini"
	ProviderGroq        ProviderID = "groq"
	ProviderMistral     ProviderID = "mistral"
	ProviderZhipu       ProviderID = "zhipu"
	ProviderQwen        ProviderID = "qwen"
	ProviderAzureOpenAI ProviderID = "azure-openai"
	ProviderXAI         ProviderID = "xai"
	ProviderDeepSeek    ProviderID = "deepseek"
	ProviderTogether    ProviderID = "together"
	ProviderOllama      ProviderID = "ollama"
	ProviderVertex      ProviderID = "vertex"
)

// Descriptor is one provider/model entry. A Descriptor whose Model is "*" or
// "prefix/*" is a template, expanded at registry build time from KnownModels
// into one concrete clone per model, except where a more specific entry with
// the same prefix/model key already exists.
type Descriptor struct {
	Name         string       `json:"name"` // provider id, e.g. "openai", or "provider/model" once resolved
	Provider     ProviderID   `json:"provider"`
	Dialect      dialect.Kind `json:"dialect"`
	PathTemplate string       `json:"path_template"` // endpoint path, may contain "{model}"
	URLPrefix    string       `json:"url_prefix"`     // optional override of the provider's default base URL
	Auth         AuthStyle    `json:"auth"`
	Model        string       `json:"model"`        // "" (provider-only), a concrete model id, "*", or "prefix/*"
	KnownModels  []string     `json:"known_models"` // built-in model catalog consulted for wildcard expansion
	Internal     bool         `json:"internal"`      // excluded from ToModels()
	Default      bool         `json:"default"`
	// DefaultMaxTokens resolves Open Question (a): the fallback max_tokens
	// applied when a request with no max_tokens of its own is translated to
	// a dialect (Anthropic) that requires one. Zero means unset — translation
	// then rejects the request with InvalidRequest rather than guessing.
	DefaultMaxTokens int64 `json:"default_max_tokens,omitempty"`
}

func (d Descriptor) isWildcard() bool {
	return d.Model == "*" || (len(d.Model) > 1 && d.Model[len(d.Model)-2:] == "/*")
}

func (d Descriptor) wildcardPrefix() string {
	if d.Model == "*" {
		return string(d.Provider)
	}
	return d.Model[:len(d.Model)-2]
}

// Registry is the built, immutable lookup table. Shared read-only across all
// requests for the process lifetime (or until a config reload swaps the
// pointer — see internal/app for the compare-and-swap path).
type Registry struct {
	byKey       map[string]Descriptor
	defaultName string
}

var (
	// ErrEmptyProviders is returned when Build is called with no descriptors.
	ErrEmptyProviders = fmt.Errorf("registry: no provider descriptors given")
)

// MoreThanOneDefaultError reports that more than one descriptor set Default.
type MoreThanOneDefaultError struct{ First, Second string }

func (e *MoreThanOneDefaultError) Error() string {
	return fmt.Sprintf("registry: more than one default descriptor: %s, %s", e.First, e.Second)
}

// DuplicateNameError reports a duplicate specific (non-wildcard) descriptor name.
type DuplicateNameError struct{ Name string }

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("registry: duplicate provider name %q", e.Name)
}

// Build constructs a Registry from a list of descriptors, following the
// six-step algorithm: reject empty input, ensure at most one default, reject
// duplicate specific names, collect specific exclusions, expand wildcards
// against each one's KnownModels catalog skipping excluded entries, then
// insert every specific descriptor by name and by model id.
func Build(descriptors []Descriptor) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, ErrEmptyProviders
	}

	var defaultName string
	specific := make([]Descriptor, 0, len(descriptors))
	wildcards := make([]Descriptor, 0)
	seen := map[string]bool{}

	for _, d := range descriptors {
		if d.Default {
			if defaultName != "" {
				return nil, &MoreThanOneDefaultError{First: defaultName, Second: d.Name}
			}
			defaultName = d.Name
		}
		if d.isWildcard() {
			wildcards = append(wildcards, d)
			continue
		}
		if seen[d.Name] {
			return nil, &DuplicateNameError{Name: d.Name}
		}
		seen[d.Name] = true
		specific = append(specific, d)
	}

	exclude := map[string]bool{}
	for _, d := range specific {
		if d.Model != "" {
			exclude[d.Provider.keyWith(d.Model)] = true
		}
	}

	r := &Registry{byKey: map[string]Descriptor{}, defaultName: defaultName}

	for _, w := range wildcards {
		prefix := w.wildcardPrefix()
		// The base is kept under "prefix/*" for Get's clone fallback; its
		// empty Model keeps it out of ToModels.
		base := w
		base.Model = ""
		r.byKey[prefix+"/*"] = base
		for _, model := range w.KnownModels {
			key := prefix + "/" + model
			if exclude[key] {
				continue
			}
			clone := w
			clone.Model = model
			clone.Name = key
			r.byKey[key] = clone
			r.byKey[model] = clone
		}
	}

	for _, d := range specific {
		r.byKey[d.Name] = d
		if d.Model != "" {
			r.byKey[d.Provider.keyWith(d.Model)] = d
			r.byKey[d.Model] = d
		}
	}

	return r, nil
}

func (p ProviderID) keyWith(model string) string { return string(p) + "/" + model }

// Get resolves a name to a Descriptor. It tries, in order: an exact key
// match; if name contains "/", the prefix/model form then the bare model
// form; a wildcard base whose prefix matches, cloned with Model set to the
// name's model part. Lookup is idempotent: Get(d.Name) for any returned
// Descriptor d returns an equal Descriptor.
func (r *Registry) Get(name string) (Descriptor, bool) {
	if d, ok := r.byKey[name]; ok {
		return d, true
	}
	if i := lastSlash(name); i >= 0 {
		prefix, model := name[:i], name[i+1:]
		if d, ok := r.byKey[prefix+"/"+model]; ok {
			return d, true
		}
		if d, ok := r.byKey[model]; ok {
			return d, true
		}
		if base, ok := r.byKey[prefix+"/*"]; ok {
			clone := base
			clone.Model = model
			clone.Name = prefix + "/" + model
			return clone, true
		}
	}
	return Descriptor{}, false
}

// Default returns the descriptor marked Default at Build time, if any,
// resolved the same way a direct name lookup would be (specific or
// wildcard-expanded).
func (r *Registry) Default() (Descriptor, bool) {
	if r.defaultName == "" {
		return Descriptor{}, false
	}
	return r.Get(r.defaultName)
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// ModelInfo is one entry of the public model catalog (OpenAI-compatible
// /v1/models shape).
type ModelInfo struct {
	ID      string
	OwnedBy string
}

// ToModels enumerates the public model catalog: descriptors marked Internal
// are excluded, entries are deduplicated by canonical model id, and
// OwnedBy is set to the descriptor's provider id.
func (r *Registry) ToModels() []ModelInfo {
	seen := map[string]bool{}
	var out []ModelInfo
	for key, d := range r.byKey {
		if d.Internal || d.Model == "" || key != d.Model {
			continue
		}
		if seen[d.Model] {
			continue
		}
		seen[d.Model] = true
		out = append(out, ModelInfo{ID: d.Model, OwnedBy: string(d.Provider)})
	}
	return out
}
