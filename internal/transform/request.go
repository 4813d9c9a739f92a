// Package transform implements the (ClientDialect, UpstreamDialect) ->
// Transform matrix for requests, responses, and streaming events.
//
// Rather than hand-coding nine separate pairwise request transforms, the
// implementation routes every direction through the canonical
// dialect.Message model that each dialect's Accessors already exposes:
// Messages() parses the source dialect into canonical messages, SetMessages()
// re-encodes them into the target dialect. This produces the full set of
// cross-dialect behavior (system split/merge, tool_use<->tool_calls,
// tool_result<->role=tool, image source conversion) because each Accessors
// implementation already performs that per-dialect encoding/decoding; a
// direct pairwise implementation would duplicate the same logic twice (once
// per direction) for no behavioral difference. Identity pairs never reach
// this package — callers skip transformation entirely when client and
// upstream dialects match.
package transform

import (
	"github.com/relaygate/relaygate/internal/dialect"
	"github.com/relaygate/relaygate/internal/gatewayerr"
)

// Envelope is a parsed request paired with its dialect tag and the
// type-erased Accessors view over it.
type Envelope struct {
	Kind      dialect.Kind
	Accessors dialect.Accessors

	// MaxTokens is read from the source request when present, used by
	// RequestTransform to decide whether a target-side default must be
	// synthesized.
	MaxTokens *int64
}

// DefaultMaxTokensResolver supplies a provider/model-specific default when a
// request destined for Anthropic carries no max_tokens, per Open Question
// (a) (DESIGN.md): read a registry-configured default if one exists,
// otherwise reject with InvalidRequest rather than silently picking an
// arbitrary constant.
type DefaultMaxTokensResolver func(model string) (int64, bool)

// RequestTransform converts src into the target dialect's canonical message
// set and returns a fresh Envelope of Kind dst sharing no mutable state with
// src. Model id is left unchanged; callers apply model-id normalization
// separately (see modelid.go) since it depends on the resolved
// ProviderDescriptor, not the dialect pair alone.
func RequestTransform(src Envelope, dst dialect.Accessors, dstKind dialect.Kind, resolveDefaultMaxTokens DefaultMaxTokensResolver) (Envelope, error) {
	msgs := src.Accessors.Messages()
	dst.SetMessages(msgs)
	dst.SetModel(src.Accessors.Model())

	out := Envelope{Kind: dstKind, Accessors: dst, MaxTokens: src.MaxTokens}

	if dstKind == dialect.KindAnthropicMessages && src.MaxTokens == nil {
		if resolveDefaultMaxTokens == nil {
			return Envelope{}, gatewayerr.InvalidRequest("max_tokens is required and no default is configured for this model")
		}
		def, ok := resolveDefaultMaxTokens(dst.Model())
		if !ok {
			return Envelope{}, gatewayerr.InvalidRequest("max_tokens is required and no default is configured for this model")
		}
		out.MaxTokens = &def
	}

	return out, nil
}

// ValidateFeatureSupport returns a *gatewayerr.Unsupported for source
// features with no representation in the target dialect. The one case it
// checks is Bedrock guardrail configuration, which has no OpenAI or
// Anthropic equivalent. RequestTransform does not call it, and no handler
// in internal/proxy does either.
func ValidateFeatureSupport(srcKind, dstKind dialect.Kind, hasGuardrailConfig bool) error {
	if srcKind == dialect.KindBedrockConverse || srcKind == dialect.KindBedrockConverseStrea {
		if hasGuardrailConfig && dstKind != dialect.KindBedrockConverse && dstKind != dialect.KindBedrockConverseStrea {
			return gatewayerr.NewUnsupported(string(srcKind), string(dstKind), "guardrail_config")
		}
	}
	return nil
}
