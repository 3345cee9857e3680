package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/DrSkyle/vitool/pkg/cipher"
	shellcmds "github.com/DrSkyle/vitool/pkg/commands"
	"github.com/DrSkyle/vitool/pkg/config"
	"github.com/DrSkyle/vitool/pkg/credentials"
	"github.com/DrSkyle/vitool/pkg/datastore"
	"github.com/DrSkyle/vitool/pkg/logging"
	"github.com/DrSkyle/vitool/pkg/session"
	"github.com/DrSkyle/vitool/pkg/shell"
	"github.com/DrSkyle/vitool/pkg/storage"
	"github.com/DrSkyle/vitool/pkg/telemetry"
	"github.com/DrSkyle/vitool/pkg/version"
)

func runShell(ctx context.Context, cfg config.Config) error {
	logger, err := logging.New(os.Stderr, logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	hooks := shell.ProcessExitHooks()

	shutdown, err := telemetry.Init(ctx, version.AppName, version.Current, cfg.OTelEndpoint)
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		hooks.OnExit(func() error { return shutdown(context.Background()) })
	}

	term, err := shell.NewReadlineTerminal(cfg.Prompt, cfg.HistoryFile)
	if err != nil {
		return fmt.Errorf("failed to start terminal: %w", err)
	}
	defer term.Close()

	registry := shell.NewRegistry(logger)
	register(registry, term, hooks, cfg, logger)

	// A termination signal cancels ctx; the shell then drains the hooks on
	// this goroutine once the running command returns.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	sh := shell.New(registry, term, os.Stdout, hooks, logger)
	if err := sh.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func register(r *shell.Registry, term shell.Terminal, hooks *shell.ExitHooks, cfg config.Config, logger *slog.Logger) {
	sess := session.New(datastore.NewRouter(), term)
	shellcmds.RegisterDatabase(r, sess, shellcmds.DatabaseOptions{
		DefaultFormat: cfg.QueryFormat,
		Hooks:         hooks,
		S3: func(ctx context.Context, bucket string) (storage.BlobStore, error) {
			awsCfg, err := credentials.LoadConfig(ctx, credentials.ConfigOptions{
				Region:  cfg.STSRegion,
				Verbose: cfg.Verbose,
				Logger:  logger,
			})
			if err != nil {
				return nil, err
			}
			return storage.NewS3Store(awsCfg, bucket), nil
		},
	})

	shellcmds.RegisterSTS(r, &credentials.STSVerifier{Verbose: cfg.Verbose, Logger: logger}, term, shellcmds.STSOptions{
		Region:          cfg.STSRegion,
		DurationSeconds: cfg.STSDuration,
	})

	shellcmds.RegisterCipher(r, &cipher.Keeper{}, term, cfg.CipherAlgorithm)
}
