package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/relaygate/relaygate/internal/dialect"
)

// Cache is the optional memoization backend for repeated orchestrator calls
// over an identical (routes, conversation) shape within a short TTL. A nil
// Cache disables memoization entirely; Router still single-flights
// concurrent identical calls within the process via its singleflight.Group.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisCache is a thin Cache adapter over go-redis, grounded on the same
// client/key-prefix idiom used elsewhere in the retrieved example pack for
// response memoization.
type RedisCache struct {
	Client redis.UniversalClient
	Prefix string
	TTL    time.Duration
}

func (c *RedisCache) key(k string) string { return c.Prefix + ":route:" + k }

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.Client.Get(ctx, c.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.TTL
	}
	return c.Client.Set(ctx, c.key(key), value, ttl).Err()
}

// Router ties prompt construction, the orchestrator call, response parsing,
// and memoization together into a single Select entry point.
type Router struct {
	Client          *Client
	Routes          []Route
	TokenBudgetCap  int
	Cache           Cache
	CacheTTL        time.Duration
	group           singleflight.Group
}

// NewRouter constructs a Router. cache may be nil to disable memoization.
func NewRouter(client *Client, routes []Route, tokenBudgetCap int, cache Cache, cacheTTL time.Duration) *Router {
	return &Router{Client: client, Routes: routes, TokenBudgetCap: tokenBudgetCap, Cache: cache, CacheTTL: cacheTTL}
}

// Select runs the full route-selection flow: empty messages short-circuit to
// no selection without calling the orchestrator; otherwise the budgeted
// conversation and declared routes are rendered into a prompt, memoized and
// single-flighted by its content hash, sent to the orchestrator, parsed, and
// resolved against preferences (or the router's own descriptor map).
func (r *Router) Select(ctx context.Context, messages []dialect.Message, preferences map[string]string) ([]Resolved, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	budgeted := BudgetWindow(messages, r.TokenBudgetCap)
	prompt := BuildPrompt(r.Routes, budgeted)
	key := promptCacheKey(prompt)

	content, err := r.callMemoized(ctx, key, prompt)
	if err != nil {
		return nil, err
	}

	names := ParseResponse(content)
	if len(names) == 0 {
		return nil, nil
	}
	return ResolveRoutes(names, r.Routes, preferences), nil
}

func (r *Router) callMemoized(ctx context.Context, key, prompt string) (string, error) {
	if r.Cache != nil {
		if cached, ok, err := r.Cache.Get(ctx, key); err != nil {
			slog.Warn("router: cache read failed, calling orchestrator directly", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		content, err := r.Client.Call(ctx, prompt)
		if err != nil {
			return "", err
		}
		if r.Cache != nil {
			if err := r.Cache.Set(ctx, key, content, r.CacheTTL); err != nil {
				slog.Warn("router: cache write failed", "error", err)
			}
		}
		return content, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func promptCacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
