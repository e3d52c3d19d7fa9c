package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BaSui01/sunyadvisor/agent/orchestrator"
	"github.com/BaSui01/sunyadvisor/api/handlers"
	"github.com/BaSui01/sunyadvisor/config"
	"github.com/BaSui01/sunyadvisor/internal/account"
	"github.com/BaSui01/sunyadvisor/internal/metrics"
	"github.com/BaSui01/sunyadvisor/internal/server"
	"github.com/BaSui01/sunyadvisor/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the advising API and the metrics endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := initLogger(cfg.Log)
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting sunyadvisor",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otel, err := telemetry.Init(ctx, cfg.Telemetry, Version, logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := otel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector("sunyadvisor", reg, logger)

	a, err := newApp(ctx, cfg, collector, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close backends", zap.Error(err))
		}
	}()

	accounts, err := account.NewService(a.db.DB(), cfg.Auth, logger)
	if err != nil {
		return err
	}

	sessions := orchestrator.NewSessions(a.orchestratorFactory(), a.sessions, logger,
		orchestrator.WithIdleTTL(cfg.Session.IdleTTL),
		orchestrator.WithMaxActive(cfg.Session.MaxActive))

	health := handlers.NewHealthHandler(logger)
	health.RegisterCheck(handlers.NewPingCheck("database", a.db.Ping))
	health.RegisterCheck(handlers.NewPingCheck("session_store", a.sessions.Ping))
	health.RegisterCheck(handlers.NewPingCheck("qdrant", func(ctx context.Context) error {
		_, err := a.store.Count(ctx, cfg.Qdrant.Collection)
		return err
	}))
	if a.cache != nil {
		health.RegisterCheck(handlers.NewPingCheck("cache", a.cache.Ping))
	}

	router := handlers.NewRouter(ctx, handlers.RouterConfig{
		Chat:           handlers.NewChatHandler(sessions, cfg.Server.WriteTimeout, cfg.Server.CORSOrigins, logger),
		Auth:           handlers.NewAuthHandler(accounts, a.profiles, logger),
		Assessment:     handlers.NewAssessmentHandler(a.profiles, sessions, logger),
		Health:         health,
		Verifier:       accounts,
		Recorder:       collector,
		Version:        Version,
		BuildTime:      BuildTime,
		GitCommit:      GitCommit,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		Tracing:        cfg.Telemetry.Enabled,
	}, logger)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	api := server.NewManager(router, server.FromServerConfig(cfg.Server, cfg.Server.HTTPPort), logger)
	metricsServer := server.NewManager(metricsMux, server.FromServerConfig(cfg.Server, cfg.Server.MetricsPort), logger.Named("metrics"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.Run(gctx) })
	g.Go(func() error { return metricsServer.Run(gctx) })

	err = g.Wait()
	logger.Info("sunyadvisor stopped", zap.Error(err))
	return err
}
