package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yndnr/goudanet-go/internal/infra/buildinfo"
	"github.com/yndnr/goudanet-go/internal/infra/confloader"
	"github.com/yndnr/goudanet-go/internal/infra/shutdown"
	"github.com/yndnr/goudanet-go/internal/peer/config"
	"github.com/yndnr/goudanet-go/internal/telemetry/logger"
	"github.com/yndnr/goudanet-go/internal/telemetry/metric"
)

// shutdownTimeout bounds the shutdown hooks.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		set         []string
	)
	flag.Func("set", "Override a setting (section.key=value), repeatable", func(v string) error {
		set = append(set, v)
		return nil
	})
	flag.Parse()

	if *showVersion {
		fmt.Printf("goudanet-peer %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile, set)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	base, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := base.Slog()

	id, err := cfg.ParticipantID()
	if err != nil {
		return err
	}
	log.Info("starting goudanet-peer",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile,
		"participant_id", id,
		"host", cfg.Peer.Host)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	metrics := metric.NewRegistry()
	shutdownHandler := shutdown.NewHandler(shutdownTimeout)

	ctx, cancel := context.WithCancel(logger.WithParticipantID(logger.WithLogger(context.Background(), base), id))
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		srv := newMetricsServer(cfg.Metrics.Addr, metrics)
		g.Go(func() error {
			log.Info("metrics server listening", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				shutdownHandler.Trigger()
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down metrics server")
			return srv.Shutdown(ctx)
		})
	}

	if *configFile != "" {
		w, err := watchConfig(*configFile, set, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown(func(context.Context) error {
				return w.Stop()
			})
		}
	}

	g.Go(func() error {
		defer shutdownHandler.Trigger()
		return play(gctx, cfg, id, metrics)
	})

	// Registered last so it runs first: stop the session before the
	// servers it reports to.
	shutdownHandler.OnShutdown(func(context.Context) error {
		cancel()
		return nil
	})

	shutdownErr := shutdownHandler.Wait(context.Background())
	if err := g.Wait(); err != nil {
		log.Error("peer failed", "error", err)
		return err
	}
	if shutdownErr != nil {
		log.Error("shutdown error", "error", shutdownErr)
		return shutdownErr
	}

	log.Info("peer stopped")
	return nil
}

// loadConfig loads configuration from file, environment and -set
// overrides, in that order.
func loadConfig(configFile string, set []string) (*config.PeerConfig, error) {
	overrides, err := confloader.ParseOverrides(set)
	if err != nil {
		return nil, err
	}
	cfg := config.Default()

	opts := []confloader.Option{confloader.WithOverrides(overrides)}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger initializes the structured logger and sets it as default.
func initLogger(cfg *config.PeerConfig) (logger.Logger, error) {
	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

func newMetricsServer(addr string, metrics *metric.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// watchConfig reloads the configuration file on change and applies the
// log level. Other settings need a restart.
func watchConfig(path string, set []string, log *slog.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		cfg, err := loadConfig(path, set)
		if err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	w.StartAsync()
	return w, nil
}
