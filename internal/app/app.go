package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/relaygate/relaygate/internal/credential"
	"github.com/relaygate/relaygate/internal/proxy"
	"github.com/relaygate/relaygate/internal/registry"
	"github.com/relaygate/relaygate/internal/router"
	"github.com/relaygate/relaygate/internal/statestore"
	"github.com/relaygate/relaygate/internal/transform"
)

// App orchestrates the lifecycle of the gateway's HTTP edge. Unlike the
// single-upstream proxy it's descended from, App holds its active
// *proxy.Edge behind an atomic pointer rather than owning one fixed
// instance: Reload builds a fresh Edge from a new Config and swaps the
// pointer, so in-flight requests keep running against the Edge snapshot
// they started with while every request accepted afterward sees the
// reloaded one. App therefore serves its own http.Server over a handler
// that indirects through the pointer on every request, rather than
// delegating to proxy.Edge.Start/Shutdown (which bind a server to one fixed
// Edge and can't be swapped mid-flight).
type App struct {
	cfg  *Config
	edge atomic.Pointer[proxy.Edge]

	server *http.Server
}

// New creates a new App instance, validating cfg and building its initial
// Edge snapshot.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e, err := buildEdge(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build edge: %w", err)
	}

	a := &App{cfg: cfg}
	a.edge.Store(e)
	return a, nil
}

// buildEdge constructs one *proxy.Edge snapshot: registry, credential
// source, state store, and router, wired together exactly as a fresh
// process boot would assemble them.
func buildEdge(cfg *Config) (*proxy.Edge, error) {
	reg, err := registry.Build(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("build provider registry: %w", err)
	}

	credConfigs := make(map[registry.ProviderID]credential.Config, len(cfg.Credentials))
	for _, c := range cfg.Credentials {
		credConfigs[c.Provider] = c.toStoreConfig()
	}
	creds, err := credential.NewSource(credConfigs)
	if err != nil {
		return nil, fmt.Errorf("build credential source: %w", err)
	}

	store, err := buildStateStore(cfg.StateStore)
	if err != nil {
		return nil, fmt.Errorf("build state store: %w", err)
	}

	opts := []proxy.Option{
		proxy.WithStateStore(store),
		proxy.WithDefaultMaxTokens(defaultMaxTokensResolver(reg)),
	}
	if cfg.Router.Enabled {
		rtr := buildRouter(cfg.Router)
		opts = append(opts, proxy.WithRouter(rtr))
	}

	return proxy.New(reg, creds, cfg.Listeners, opts...)
}

// buildStateStore constructs the conversation state store for the
// configured backend. The sql backend builds its own pgxpool.Pool from the
// DSN; SQLStore only issues statements against the schema its doc comment
// describes, leaving migration to an external collaborator.
func buildStateStore(cfg StateStoreConfig) (statestore.Store, error) {
	switch cfg.Backend {
	case StateStoreBackendSQL:
		poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse state_store.dsn: %w", err)
		}
		if cfg.Timeout > 0 {
			poolCfg.ConnConfig.ConnectTimeout = cfg.Timeout
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
		if err != nil {
			return nil, fmt.Errorf("connect state_store: %w", err)
		}
		return statestore.NewSQLStore(pool), nil
	case StateStoreBackendMemory, "":
		return statestore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown state_store.backend %q", cfg.Backend)
	}
}

// buildRouter constructs the orchestrator client, optional Redis-backed
// memoization cache, and Router from cfg.
func buildRouter(cfg RouterConfig) *router.Router {
	client := router.NewClient(cfg.OrchestratorURL, cfg.OrchestratorModel)

	var cache router.Cache
	if cfg.Cache.RedisAddr != "" {
		cache = &router.RedisCache{
			Client: redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr}),
			Prefix: cfg.Cache.Prefix,
			TTL:    cfg.Cache.TTL,
		}
	}

	return router.NewRouter(client, cfg.Routes, cfg.TokenBudgetCap, cache, cfg.Cache.TTL)
}

// defaultMaxTokensResolver closes over reg to resolve Open Question (a): the
// registry's per-descriptor DefaultMaxTokens hint, consulted when a request
// with no max_tokens of its own is translated into a dialect that requires
// one.
func defaultMaxTokensResolver(reg *registry.Registry) transform.DefaultMaxTokensResolver {
	return func(model string) (int64, bool) {
		d, ok := reg.Get(model)
		if !ok || d.DefaultMaxTokens == 0 {
			return 0, false
		}
		return d.DefaultMaxTokens, true
	}
}

// ServeHTTP dispatches every request to the currently active Edge snapshot.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.edge.Load().ServeHTTP(w, r)
}

// Start starts the HTTP server and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring, matching the proxy's own
// startup/shutdown coordination style.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	a.server = &http.Server{
		Handler:      a,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  90 * time.Second,
	}

	slog.InfoContext(gCtx, "starting gateway server", "address", address)
	serveErrCh := make(chan error, 1)
	go func() {
		err := a.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	g.Go(func() error {
		select {
		case err := <-serveErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "gateway runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		_ = a.server.Close()
		slog.ErrorContext(shutdownCtx, "server shutdown failed", "error", err)
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// Reload rebuilds the registry/credentials/state store/router from a new
// Config and atomically swaps the serving Edge. In-flight requests keep
// running against the Edge snapshot they started with; every request
// accepted afterward sees the reloaded one.
func (a *App) Reload(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	e, err := buildEdge(cfg)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	a.cfg = cfg
	a.edge.Store(e)
	slog.InfoContext(ctx, "configuration reloaded")
	return nil
}
