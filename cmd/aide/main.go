package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/aide/internal/app"
	"github.com/ent0n29/aide/internal/config"
)

type rootOptions struct {
	verbose bool
	envFile string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "aide",
		Short:         "Personal voice-style assistant",
		Long:          "Runs the assistant session: listens for requests, answers them, and delivers reminders when they fall due.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runAssistant(cmd.Context(), cfg, logger)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Load environment variables from this file")

	cmd.AddCommand(
		newSayCmd(opts),
		newTasksCmd(opts),
		newRemindersCmd(opts),
		newHistoryCmd(opts),
	)
	return cmd
}

// setup loads the env file and config, then builds the process logger.
func (o *rootOptions) setup() (config.Config, *zap.Logger, error) {
	if err := config.LoadEnvFile(o.envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return config.Config{}, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogFormat, o.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newLogger(format string, verbose bool) (*zap.Logger, error) {
	var zcfg zap.Config
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func runAssistant(parent context.Context, cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	built, err := app.Build(ctx, cfg, app.Options{Logger: logger})
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	logger.Info("assistant starting",
		zap.String("session_id", built.Log.SessionID()),
		zap.String("input", built.IODetail),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return built.Poller.Run(gctx)
	})

	if built.API != nil {
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           built.API.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("server listening", zap.String("addr", cfg.HTTPAddr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("graceful shutdown failed", zap.Error(err))
				_ = httpServer.Close()
			}
			return nil
		})
	}

	g.Go(func() error {
		// Ending the conversation ends the process.
		defer stop()
		return built.Loop.Run(gctx)
	})

	runErr := g.Wait()
	if err := built.Cleanup(); err != nil {
		logger.Error("cleanup failed", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		logger.Error("assistant stopped with error", zap.Error(runErr))
		return runErr
	}
	logger.Info("shutdown complete")
	return nil
}
