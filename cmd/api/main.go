package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docker/docker/client"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sentrywall/core/internal/api/routes"
	"github.com/sentrywall/core/internal/config"
	"github.com/sentrywall/core/internal/logger"
	"github.com/sentrywall/core/internal/metrics"
	"github.com/sentrywall/core/internal/origin"
	"github.com/sentrywall/core/internal/pipeline"
	"github.com/sentrywall/core/internal/scheduler"
	"github.com/sentrywall/core/internal/server"
	"github.com/sentrywall/core/internal/services"
	"github.com/sentrywall/core/internal/sinks"
	"github.com/sentrywall/core/internal/store"
	"github.com/sentrywall/core/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogPath,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	logger.Init(cfg.Environment == "development", io.MultiWriter(os.Stdout, rotator))
	log := logger.Log()

	log.WithField("version", version.Full()).Infof("starting %s", version.Name)

	audit := sinks.NewLogAuditSink(log)
	registry, err := store.NewRegistry(cfg.DataDir, audit)
	if err != nil {
		log.WithError(err).Fatal("open registry")
	}

	authService := services.NewAuthService(registry.AdminDB(), cfg)

	var dockerClient client.APIClient
	if dc, err := client.NewClientWithOpts(client.WithHost(cfg.DockerHost), client.WithAPIVersionNegotiation()); err != nil {
		log.WithError(err).Warn("docker client unavailable; service-type origins will report misconfigured")
	} else {
		dockerClient = dc
	}
	dispatcher := origin.New(dockerClient, log)

	var eventSink sinks.EventSink
	if cfg.EventSinkConfigured() {
		influx := sinks.NewInfluxEventSink(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
		defer influx.Close()
		eventSink = influx
	}
	events := sinks.NewWorkerSink(eventSink, 1024, log)
	defer events.Close()

	alerts := sinks.NewAlertNotifier(cfg.AlertURL, log)

	orchestrator := pipeline.New(registry, dispatcher, events, alerts)

	promRegistry := prometheus.NewRegistry()
	metrics.Register(promRegistry)

	sched := scheduler.New(log)
	feedRefresh := scheduler.Tick(func(ctx context.Context) error {
		log.Debug("threat-feed refresh tick (store out of scope)")
		return nil
	})
	eventAgg := scheduler.Tick(func(ctx context.Context) error {
		log.Debug("event aggregation tick (store out of scope)")
		return nil
	})
	if err := sched.Register("feed-refresh", cronSpec(cfg.FeedRefreshInterval), feedRefresh); err != nil {
		log.WithError(err).Fatal("register feed refresh tick")
	}
	if err := sched.Register("event-aggregate", cronSpec(cfg.EventAggInterval), eventAgg); err != nil {
		log.WithError(err).Fatal("register event aggregation tick")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(cfg, routes.Deps{
		Registry:     registry,
		Orchestrator: orchestrator,
		Auth:         authService,
		FeedRefresh:  feedRefresh,
		EventAgg:     eventAgg,
	})
	srv.Engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("port", cfg.HTTPPort).Info("listening")
	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Fatal("server error")
	}
}

// cronSpec turns a refresh interval into robfig/cron's "@every" shorthand,
// which accepts any time.ParseDuration-compatible string.
func cronSpec(d time.Duration) string {
	return "@every " + d.String()
}
