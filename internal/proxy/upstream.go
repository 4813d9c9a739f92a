package proxy

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/relaygate/relaygate/internal/dialect"
	"github.com/relaygate/relaygate/internal/dialect/anthropicdialect"
	"github.com/relaygate/relaygate/internal/dialect/openaichat"
	"github.com/relaygate/relaygate/internal/dialect/openairesponses"
	"github.com/relaygate/relaygate/internal/gatewayerr"
	"github.com/relaygate/relaygate/internal/registry"
	"github.com/relaygate/relaygate/internal/transform"
)

// defaultBaseURLs is the built-in base URL for providers whose API lives at
// one well-known host. Bedrock, Azure OpenAI, and Vertex are deliberately
// absent: each is region- or resource-specific and requires an explicit
// registry.Descriptor.URLPrefix.
var defaultBaseURLs = map[registry.ProviderID]string{
	registry.ProviderOpenAI:    "https://api.openai.com",
	registry.ProviderAnthropic: "https://api.anthropic.com",
	registry.ProviderGemini:    "https://generativelanguage.googleapis.com",
	registry.ProviderGroq:      "https://api.groq.com",
	registry.ProviderMistral:   "https://api.mistral.ai",
	registry.ProviderZhipu:     "https://open.bigmodel.cn",
	registry.ProviderQwen:      "https://dashscope.aliyuncs.com",
	registry.ProviderXAI:       "https://api.x.ai",
	registry.ProviderDeepSeek:  "https://api.deepseek.com",
	registry.ProviderTogether:  "https://api.together.xyz",
	registry.ProviderOllama:    "http://localhost:11434",
}

// resolveDescriptor applies the provider-hint-then-model resolution order:
// x-arch-provider-hint (if present) is tried first against hint/model and
// the bare hint, then the model id alone; an empty model id falls back to
// the registry's configured default descriptor.
func (e *Edge) resolveDescriptor(r *http.Request, modelID string) (registry.Descriptor, error) {
	if hint := r.Header.Get("x-arch-provider-hint"); hint != "" {
		if modelID != "" {
			if d, ok := e.Registry.Get(hint + "/" + transform.StripProviderPrefix(modelID)); ok {
				return d, nil
			}
		}
		if d, ok := e.Registry.Get(hint); ok {
			return d, nil
		}
	}
	if modelID == "" {
		if d, ok := e.Registry.Default(); ok {
			return d, nil
		}
		return registry.Descriptor{}, gatewayerr.NoModelSpecified()
	}
	if d, ok := e.Registry.Get(modelID); ok {
		return d, nil
	}
	return registry.Descriptor{}, gatewayerr.ModelNotFound(modelID)
}

// upstreamBaseURL resolves a descriptor's base URL: an explicit URLPrefix
// always wins, otherwise the provider's well-known default.
func upstreamBaseURL(d registry.Descriptor) (string, error) {
	if d.URLPrefix != "" {
		return d.URLPrefix, nil
	}
	if u, ok := defaultBaseURLs[d.Provider]; ok {
		return u, nil
	}
	return "", fmt.Errorf("proxy: provider %s has no default base URL and no URLPrefix configured", d.Provider)
}

// buildUpstreamPath expands a descriptor's path template for modelID,
// special-casing Azure OpenAI's deployment-name-in-path-plus-api-version
// shape.
func buildUpstreamPath(d registry.Descriptor, modelID string) string {
	bare := transform.StripProviderPrefix(modelID)
	if d.Provider == registry.ProviderAzureOpenAI {
		return transform.AzureDeploymentPath(bare)
	}
	return strings.ReplaceAll(d.PathTemplate, "{model}", bare)
}

// newWireAccessor constructs a fresh wire request value and its
// dialect.Accessors view for one of the three client-facing dialects.
// Bedrock is upstream-only and has no client-facing wire decode path, so it
// is handled separately (see bedrock.go).
func newWireAccessor(kind dialect.Kind) (any, dialect.Accessors) {
	switch kind {
	case dialect.KindOpenAIChat:
		req := &openaichat.Request{}
		return req, &openaichat.Accessor{Req: req}
	case dialect.KindOpenAIResponses:
		req := &openairesponses.Request{}
		return req, &openairesponses.Accessor{Req: req}
	case dialect.KindAnthropicMessages:
		req := &anthropicdialect.Request{}
		return req, &anthropicdialect.Accessor{Req: req}
	default:
		return nil, nil
	}
}

// applyMaxTokens writes a resolved max_tokens value onto the target wire
// request, for the dialects whose Accessors contract has no generic
// max_tokens slot (RequestTransform computes the value and reports it in
// transform.Envelope.MaxTokens but does not write it onto the wire request).
func applyMaxTokens(kind dialect.Kind, wire any, v int64) {
	switch kind {
	case dialect.KindAnthropicMessages:
		wire.(*anthropicdialect.Request).Params.MaxTokens = v
	case dialect.KindOpenAIChat:
		wire.(*openaichat.Request).MaxTokens = &v
	}
}

// forwardUpstreamVerbatim pipes an upstream 4xx/5xx response through to the
// client unchanged (status, headers, body), per spec.md §7: error responses
// bypass the stream buffer entirely rather than being reclassified.
func forwardUpstreamVerbatim(w http.ResponseWriter, resp *http.Response) {
	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}
