// Package credential sources per-provider upstream secrets. It adapts the
// file/env/keyring storage backends the gateway already carries (see
// internal/tokenstore) to a registry keyed by provider id, so each of the
// fourteen upstream providers can be configured with its own storage
// backend independently.
package credential

import (
	"context"
	"fmt"

	"github.com/relaygate/relaygate/internal/registry"
	"github.com/relaygate/relaygate/internal/tokenstore"
)

// StorageType selects which tokenstore backend sources a provider's secret.
type StorageType string

const (
	StorageFile    StorageType = "file"
	StorageEnv     StorageType = "env"
	StorageKeyring StorageType = "keyring"
)

// Config describes how to construct one provider's tokenstore.TokenStore.
type Config struct {
	Storage     StorageType
	File        string
	EnvKey      string
	KeyringUser string
}

// NewTokenStore builds the tokenstore.TokenStore described by cfg.
func (c Config) NewTokenStore() (tokenstore.TokenStore, error) {
	switch c.Storage {
	case StorageFile:
		return tokenstore.NewFileStore(c.File)
	case StorageEnv:
		return tokenstore.NewEnvStore(c.EnvKey)
	case StorageKeyring:
		return tokenstore.NewKeyringStore("relaygate-provider-credential", c.KeyringUser)
	default:
		return nil, fmt.Errorf("credential: unsupported storage type %q", c.Storage)
	}
}

// Source resolves a provider id to its credential, ready to attach to an
// outbound request per the provider's registry.AuthStyle.
type Source struct {
	stores map[registry.ProviderID]tokenstore.TokenStore
}

// NewSource builds a Source from a per-provider config map, constructing
// each provider's tokenstore.TokenStore eagerly so a misconfiguration
// (missing env var, unreadable file) is surfaced at boot rather than on the
// first request that needs it.
func NewSource(configs map[registry.ProviderID]Config) (*Source, error) {
	stores := make(map[registry.ProviderID]tokenstore.TokenStore, len(configs))
	for provider, cfg := range configs {
		store, err := cfg.NewTokenStore()
		if err != nil {
			return nil, fmt.Errorf("credential: provider %s: %w", provider, err)
		}
		stores[provider] = store
	}
	return &Source{stores: stores}, nil
}

// Get returns the current secret for provider, reading through to the
// underlying storage backend every call (no caching — a rotated file/env
// value takes effect on the next request, matching tokenstore's own
// read-through contract).
func (s *Source) Get(ctx context.Context, provider registry.ProviderID) (string, error) {
	store, ok := s.stores[provider]
	if !ok {
		return "", fmt.Errorf("credential: no credential configured for provider %s", provider)
	}
	return store.Read(ctx)
}

// Attach sets the appropriate auth header/param for style using secret.
// aws-sigv4 is handled upstream of this package (it signs the whole request,
// not just a header) and is a no-op here.
func Attach(style registry.AuthStyle, secret string, setHeader func(key, value string)) {
	switch style {
	case registry.AuthBearer:
		setHeader("Authorization", "Bearer "+secret)
	case registry.AuthAnthropicKey:
		setHeader("x-api-key", secret)
		setHeader("anthropic-version", "2023-06-01")
	case registry.AuthAWSSigV4, registry.AuthNone:
		// aws-sigv4 signing happens at the transport layer (see the Bedrock
		// upstream client); "none" attaches nothing.
	}
}
