package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/mcp-pdf-forms/internal/compositor"
	"github.com/a3tai/mcp-pdf-forms/internal/config"
	"github.com/a3tai/mcp-pdf-forms/internal/logging"
	"github.com/a3tai/mcp-pdf-forms/internal/mcp"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
	"github.com/a3tai/mcp-pdf-forms/internal/store"
	"github.com/a3tai/mcp-pdf-forms/internal/workflow"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// renderCacheSize is the number of rendered pages kept in memory.
const renderCacheSize = 32

// newLogger writes to stderr; stdout carries the MCP protocol in stdio
// mode.
func newLogger(cfg *config.Config, stderr io.Writer) *slog.Logger {
	return logging.New(cfg.LogLevel, stderr).With("version", cfg.Version)
}

// app holds everything main wires together.
type app struct {
	store  *store.Store
	server *mcp.Server
}

func (a *app) Close() error {
	return a.store.Close()
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := os.MkdirAll(cfg.StorageDir, config.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	// Migrations run to completion even when shutdown has already begun.
	st, err := store.Open(context.WithoutCancel(ctx), cfg.Database(), logger)
	if err != nil {
		return nil, err
	}

	guard, err := pdf.NewPathGuard(cfg.StorageDir)
	if err != nil {
		st.Close()
		return nil, err
	}

	mode, err := compositor.ParseTextMode(cfg.TextMode)
	if err != nil {
		st.Close()
		return nil, err
	}

	loader := pdf.NewPDFCPULoader()
	renderer := pdf.NewRenderer(
		loader,
		pdf.NewPopplerRasterizer(cfg.Rasterizer),
		pdf.NewRenderCache(renderCacheSize),
		logger,
	)

	svc := workflow.NewService(workflow.Options{
		Store:       st,
		Guard:       guard,
		Loader:      loader,
		Compositor:  compositor.New(loader, mode, logger),
		Renderer:    renderer,
		Logger:      logger,
		MaxFileSize: cfg.MaxFileSize,
		Zoom:        cfg.Zoom,
	})

	server, err := mcp.NewServer(cfg, svc, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &app{store: st, server: server}, nil
}

// run serves until ctx is cancelled, a signal arrives, or stdin closes in
// stdio mode.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.IsServerMode() {
		logger.Info("starting", "mode", cfg.Mode, "addr", cfg.Address(), "storage", cfg.StorageDir)
	} else {
		logger.Debug("starting", "mode", cfg.Mode, "storage", cfg.StorageDir)
	}

	if err := a.server.Run(ctx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion(os.Stdout)
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	logger := newLogger(cfg, os.Stderr)
	logger.Debug("configuration", "config", cfg.String())

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "MCP PDF Forms\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
