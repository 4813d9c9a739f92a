package transform

import "strings"

// StripProviderPrefix removes a leading "provider/" slug from a model id,
// for providers whose upstream API expects the bare model name (e.g.
// "openai/gpt-4" -> "gpt-4"). A no-op if modelID has no "/".
func StripProviderPrefix(modelID string) string {
	if i := strings.IndexByte(modelID, '/'); i >= 0 {
		return modelID[i+1:]
	}
	return modelID
}

// AzureAPIVersion is the hardcoded api-version query parameter appended to
// every Azure OpenAI deployment URL.
const AzureAPIVersion = "2025-01-01-preview"

// AzureDeploymentPath builds the Azure OpenAI chat-completions path for a
// given (bare) model id, placing the model into the URL path as the
// deployment name and appending the fixed api-version.
func AzureDeploymentPath(modelID string) string {
	return "/openai/deployments/" + modelID + "/chat/completions?api-version=" + AzureAPIVersion
}
