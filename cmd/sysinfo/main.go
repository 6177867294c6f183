// Command sysinfo serves host telemetry over REST and gRPC.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/HerbHall/sysinfo/internal/config"
	"github.com/HerbHall/sysinfo/internal/discovery"
	"github.com/HerbHall/sysinfo/internal/mcp"
	"github.com/HerbHall/sysinfo/internal/metrics"
	"github.com/HerbHall/sysinfo/internal/mqtt"
	"github.com/HerbHall/sysinfo/internal/plugin"
	"github.com/HerbHall/sysinfo/internal/rest"
	"github.com/HerbHall/sysinfo/internal/rpc"
	"github.com/HerbHall/sysinfo/internal/server"
	"github.com/HerbHall/sysinfo/internal/telemetry"
	"github.com/HerbHall/sysinfo/internal/version"
	sdk "github.com/HerbHall/sysinfo/pkg/plugin"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr, newLogger))
}

// loggerFactory builds the process logger from log.level and log.format.
type loggerFactory func(level, format string) (*zap.Logger, error)

// execute runs the server and returns the process exit code. The logger is
// flushed before it returns.
func execute(args []string, stdout, stderr io.Writer, buildLogger loggerFactory) int {
	fs := flag.NewFlagSet("sysinfo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to configuration file")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Fprintln(stdout, version.Info())
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	logger, err := buildLogger(cfg.GetString("log.level"), cfg.GetString("log.format"))
	if err != nil {
		fmt.Fprintf(stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("sysinfo server failed", zap.Error(err))
		return 1
	}
	return 0
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("SysInfo server starting", zap.String("version", version.Short()))

	sampler := telemetry.NewSampler(telemetry.SamplerConfig{
		CPUWindow: cfg.GetDuration("telemetry.cpu_sample_window"),
	}, logger.Named("telemetry"))
	source := telemetry.NewProvider(sampler, logger.Named("telemetry"))
	handler := telemetry.NewHandler(source, logger.Named("telemetry"))

	m := metrics.New()
	m.MustRegister(metrics.NewSnapshotCollector(source, 5*time.Second, logger.Named("metrics")))

	registry := plugin.NewRegistry(logger)
	modules := []sdk.Plugin{
		rest.New(),
		rpc.New(),
		mqtt.New(),
		discovery.New(),
		mcp.New(),
	}
	for _, p := range modules {
		if err := registry.Register(p); err != nil {
			return fmt.Errorf("register module: %w", err)
		}
	}

	deps := sdk.Dependencies{
		Logger:         logger,
		Handler:        handler,
		Observer:       m,
		StreamInterval: cfg.GetDuration("stream.default_interval"),
	}
	if err := registry.InitAll(cfg, deps); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := registry.StartAll(ctx); err != nil {
		return err
	}

	srv := server.New(server.ConfigFrom(cfg), registry, m, logger)
	l, err := srv.Listen()
	if err != nil {
		shutdownModules(registry)
		return err
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(l) }()

	logger.Info("SysInfo server ready", zap.String("addr", srv.Addr()))

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			logger.Error("HTTP server stopped unexpectedly", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Modules first so open streams end with a close frame before the
	// listener goes away.
	registry.StopAll(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("SysInfo server stopped")
	return nil
}

func shutdownModules(registry *plugin.Registry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	registry.StopAll(ctx)
}

// newLogger builds a production (json) or development (console) logger at
// the given level.
func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	switch format {
	case "console":
		zc = zap.NewDevelopmentConfig()
	case "json", "":
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
