package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Build info (set via ldflags)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by all commands once flags are parsed
type app struct {
	opts   cliOptions
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "peekdir",
		Short: "Read-only preview server for a single directory",
		Long: `peekdir serves a directory over HTTP for browsing and previewing:
paged text previews, sanitized markdown rendering and syntax highlighting.
Every request path is confined to the --root directory.

Running peekdir without a subcommand is the same as "peekdir serve".`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
		RunE: a.runServe,
	}
	a.opts.register(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(a),
		newMCPCmd(a),
		newClassifyCmd(),
		newRenderCmd(a),
		newChunkCmd(a),
		newLangCmd(),
		newVersionCmd(),
	)
	return root
}

// init fills unset flags from the environment and builds the logger
func (a *app) init(cmd *cobra.Command) error {
	if err := applyEnvDefaults(cmd.Flags()); err != nil {
		return err
	}
	logger, err := newLogger(a.opts.logLevel, a.opts.logFormat)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.logger = logger
	return nil
}

// loadConfig validates the flags; only commands touching the root call it
func (a *app) loadConfig() (Config, error) {
	return a.opts.config()
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP preview server",
		Args:  cobra.NoArgs,
		RunE:  a.runServe,
	}
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	s := newServer(cfg, a.logger)

	// Cancelled before Shutdown so open watch streams return
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: s.routes(),
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout intentionally omitted for SSE streaming endpoints
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving directory",
			zap.String("root", cfg.Root),
			zap.String("addr", "http://"+cfg.Addr()),
			zap.Int64("preview_max", cfg.PreviewMax),
			zap.Int64("chunk_size", cfg.ChunkSize),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down gracefully")
	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
		return err
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "peekdir %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
