package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"b2b-analyst/internal/assistant"
	"b2b-analyst/internal/classifier"
	"b2b-analyst/internal/config"
	"b2b-analyst/internal/observability"
	"b2b-analyst/internal/server"
	"b2b-analyst/internal/services"
	"b2b-analyst/internal/store"
)

const dataLoadTimeout = 30 * time.Second

var version = "1.0.0"

// app is the wired process before it starts serving.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	analytics *services.Analytics
	metrics   *observability.Metrics
	handler   http.Handler
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(context.Background(), *configPath); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"llm_provider", cfg.LLM.Provider,
		"sales_file", cfg.Data.SalesFile,
		"company_file", cfg.Data.CompanyFile,
	)

	shutdownTracing, err := observability.InitTracing(cfg.Tracing, version, logger)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		_ = shutdownTracing(ctx)
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)

	if cfg.Data.Watch {
		watcher := a.newWatcher()
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("data watcher disabled", "error", err)
		} else {
			gracefulServer.RegisterShutdownHook("watcher", func(context.Context) error {
				watcher.Stop()
				return nil
			})
		}
	}
	gracefulServer.RegisterShutdownHook("tracing", shutdownTracing)

	if err := gracefulServer.ListenAndServe(ctx); err != nil {
		return err
	}

	logger.Info("application stopped gracefully")
	return nil
}

// newApp loads the data and wires the request path. A data load failure is
// fatal.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	metrics := observability.NewMetrics()

	analytics := services.NewAnalytics(logger)
	loadCtx, cancel := context.WithTimeout(ctx, dataLoadTimeout)
	defer cancel()

	start := time.Now()
	err := analytics.Load(loadCtx, store.Sources{
		SalesFile:    cfg.Data.SalesFile,
		CompanyFile:  cfg.Data.CompanyFile,
		CompanySheet: cfg.Data.CompanySheet,
	})
	if err != nil {
		return nil, fmt.Errorf("load data: %w", err)
	}
	metrics.SetRecords(analytics.Counts())
	logger.Info("data loaded successfully", "duration", time.Since(start))

	provider, err := assistant.NewProvider(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider: %w", err)
	}

	cls := classifier.New(analytics, cfg.Classifier, classifier.DefaultRules(), logger)
	agent := assistant.NewAgent(analytics, cls, provider, assistant.Options{
		HistoryTurns: cfg.LLM.HistoryTurns,
		Timeout:      cfg.LLM.Timeout,
		Metrics:      metrics,
		Logger:       logger,
	})

	srv := server.NewServer(server.Options{
		Config:    cfg,
		Analytics: analytics,
		Agent:     agent,
		Metrics:   metrics,
		Version:   version,
		Logger:    logger,
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		analytics: analytics,
		metrics:   metrics,
		handler:   srv,
	}, nil
}

func (a *app) newWatcher() *services.Watcher {
	paths := []string{a.cfg.Data.SalesFile, a.cfg.Data.CompanyFile}
	return services.NewWatcher(paths, a.cfg.Data.ReloadDebounce, func(ctx context.Context) error {
		err := a.analytics.Reload(ctx)
		a.metrics.ObserveReload(err)
		if err == nil {
			a.metrics.SetRecords(a.analytics.Counts())
		}
		return err
	}, a.logger)
}
