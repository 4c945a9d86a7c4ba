// Package main is the entry point for the Ward dashboard server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/jamesprial/ward/internal/audit"
	"github.com/jamesprial/ward/internal/config"
	"github.com/jamesprial/ward/internal/logging"
	"github.com/jamesprial/ward/internal/metrics"
	"github.com/jamesprial/ward/internal/restart"
	"github.com/jamesprial/ward/internal/server"
	"github.com/jamesprial/ward/internal/settings"
	"github.com/jamesprial/ward/internal/setup"
	"github.com/jamesprial/ward/internal/state"
	"github.com/jamesprial/ward/internal/store"
	"github.com/jamesprial/ward/internal/system"
)

func main() {
	started := time.Now()

	configPath := pflag.String("config", "", "options file (default $WARD_CONFIG_PATH or "+config.DefaultPath+")")
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	setupFile := pflag.String("setup-file", "", "setup file path, overrides the options file")
	showVersion := pflag.Bool("version", false, "print the version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(server.Version)
		return
	}

	// A missing dotenv file is normal.
	_ = godotenv.Load(*envFile)

	cfg, cfgErr := loadConfig(*configPath)
	config.ApplyEnvOverrides(cfg)
	if *setupFile != "" {
		cfg.Setup.Path = *setupFile
	}

	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ward: %v\n", err)
		os.Exit(2)
	}
	if cfgErr != nil {
		logger.Warn().Err(cfgErr).Msg("using default options")
	}

	if err := run(cfg, logger, started); err != nil {
		logger.Fatal().Err(err).Msg("ward stopped")
	}
	logger.Info().Msg("ward stopped")
}

func run(cfg *config.Config, logger zerolog.Logger, started time.Time) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewRecorder(reg)
	rec.RecordStart(started)

	auditLog, closeAudit := openAudit(cfg.Audit, logger)
	defer closeAudit.Close()

	st := store.New(cfg.Setup.Path)
	tracker := state.NewTracker(false)

	coord := restart.New(
		restart.WithLogger(logger),
		restart.WithMetrics(rec),
		restart.WithAudit(auditLog),
		restart.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)
	svc := settings.NewService(st, tracker, coord, coord,
		settings.WithLogger(logger),
		settings.WithMetrics(rec),
	)
	setupSvc := setup.NewService(svc,
		setup.WithLogger(logger),
		setup.WithMetrics(rec),
		setup.WithAudit(auditLog),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	boot := setup.NewBootstrap(st, tracker, coord,
		setup.WithBootstrapLogger(logger),
		setup.WithBootstrapAudit(auditLog),
	)
	var bootErr error
	rec.Measure("bootstrap", func() { _, bootErr = boot.Run(ctx) })
	if bootErr != nil {
		return bootErr
	}

	if cfg.Setup.Watch {
		w, err := settings.NewWatcher(svc, settings.WithWatchLogger(logger))
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("setup file watching disabled")
		} else {
			defer w.Stop()
		}
	}

	mon := system.NewHostMonitor(cfg.System.StoragePath)

	deps := server.Deps{
		Settings: svc,
		Setup:    setupSvc,
		Monitor:  mon,
		Metrics:  rec,
		Logger:   logger,
	}
	if cfg.Metrics.Enabled {
		deps.Gatherer = reg
	}
	if cfg.MCP.Enabled {
		generated := cfg.MCP.AuthToken == ""
		token, err := config.EnsureAuthToken(cfg)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("could not generate MCP token, MCP endpoint is unauthenticated")
		case generated:
			logger.Info().Str("token", token).Msgf("generated MCP token (set %s to persist)", config.EnvAuthToken)
		}
		h, names := server.NewMCPHandler(svc, coord, mon, auditLog, cfg.MCP.AuthToken, logger)
		deps.MCP = h
		logger.Info().Strs("tools", names).Msg("MCP endpoint enabled at /mcp")
	}

	builder := &server.Builder{
		Settings: svc,
		Handler:  server.NewRouter(deps),
		Host:     cfg.Server.Host,
		Options: server.InstanceOptions{
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			IdleTimeout:       cfg.Server.IdleTimeout,
		},
		Logger: logger,
	}

	logger.Info().Str("setup", st.Path()).Msg("ward starting")
	return coord.Run(ctx, builder.Build)
}

// loadConfig reads the options file named by path, WARD_CONFIG_PATH or the
// default. A missing or invalid file yields DefaultConfig and the error.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}
	explicit := path != ""
	if !explicit {
		path = config.DefaultPath
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return config.DefaultConfig(), nil
		}
		return config.DefaultConfig(), fmt.Errorf("options file %q: %w", path, err)
	}
	return cfg, nil
}

func openAudit(cfg config.AuditConfig, logger zerolog.Logger) (*audit.Logger, io.Closer) {
	if !cfg.Enabled {
		return nil, io.NopCloser(nil)
	}
	l, closer, err := audit.OpenFile(cfg.LogPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.LogPath).Msg("audit logging disabled")
		return nil, io.NopCloser(nil)
	}
	return l, closer
}
