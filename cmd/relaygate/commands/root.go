package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/relaygate/relaygate/internal/app"
	"github.com/relaygate/relaygate/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "relaygate",
		Usage: "multi-provider LLM gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
		},
		Commands: []*cli.Command{
			startCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

func startCommand() *cli.Command {
	return &cli.Command{
		Name: "start",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
				Value: int(app.DefaultConfigServerPort),
			},
		},
		Action: startAction,
	}
}

func startAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, shutdownObservability, err := observability.Bootstrap(ctx, observability.Config{
		ServiceName: cfg.Observability.ServiceName,
		LogLevel:    cfg.LogLevel,
		LogFormat:   observability.LogFormat(cfg.LogFormat),
		OTLPEndpoint: cfg.Observability.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}
	slog.SetDefault(logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		if err := shutdownObservability(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "observability shutdown failed", "error", err)
		}
	}()

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	go watchReload(ctx, application, cmd.String("config"))

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}

// watchReload re-reads the configured file/env layers on every SIGHUP and
// hands the result to the running App, which atomically swaps its serving
// Edge. A reload failure (bad file, failed provider validation) is logged
// and the previous Edge keeps serving.
func watchReload(ctx context.Context, application *app.App, configPath string) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			cfg, err := loadConfig(configPath, nil, os.Environ)
			if err != nil {
				slog.ErrorContext(ctx, "config reload: failed to load config", "error", err)
				continue
			}
			if err := application.Reload(ctx, cfg); err != nil {
				slog.ErrorContext(ctx, "config reload failed", "error", err)
				continue
			}
			slog.InfoContext(ctx, "config reload succeeded")
		}
	}
}
