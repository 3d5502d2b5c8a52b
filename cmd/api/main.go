package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/check"
	"github.com/pulsewatch/pulsewatch/internal/cleanup"
	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/cronsync"
	"github.com/pulsewatch/pulsewatch/internal/httpapi"
	"github.com/pulsewatch/pulsewatch/internal/logging"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/notify"
	"github.com/pulsewatch/pulsewatch/internal/probe"
	"github.com/pulsewatch/pulsewatch/internal/repo"
	"github.com/pulsewatch/pulsewatch/internal/repo/memory"
	"github.com/pulsewatch/pulsewatch/internal/repo/postgres"
)

// stores is the full set of ports one adapter provides.
type stores interface {
	repo.ServiceStore
	repo.ResultStore
	repo.EventStore
	repo.TenantStore
}

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx := context.Background()

	var store stores
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("postgres_connect_failed", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal("schema_setup_failed", zap.Error(err))
		}
		store = pg
		logger.Info("store", zap.String("kind", "postgres"))
	} else {
		store = memory.New()
		logger.Info("store", zap.String("kind", "memory"))
	}

	bundle := metrics.NewBundle()

	local := probe.NewLocalProber(cfg.ProbeTimeout, logger)
	multi := probe.NewMultiRegionProber(cfg.CheckerBaseURL, logger, local)
	multi.PollAttempts = cfg.PollAttempts
	multi.PollInterval = cfg.PollInterval
	multi.OnFallback = bundle.Metrics.ProbeFallbackTotal.Inc

	dispatcher := &notify.Dispatcher{
		Slack:   notify.NewSlack(),
		Log:     logger,
		Metrics: bundle.Metrics,
	}
	if cfg.SMTPHost != "" {
		dispatcher.Email = &notify.SMTPMailer{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		}
	}

	runner := &check.Runner{
		Log:         logger,
		Services:    store,
		Results:     store,
		Events:      store,
		Prober:      multi,
		Notifier:    dispatcher,
		Metrics:     bundle.Metrics,
		Concurrency: cfg.CheckConcurrency,
	}
	sweeper := &cleanup.Sweeper{
		Results: store,
		Events:  store,
		Log:     logger,
		Metrics: bundle.Metrics,
	}
	cronMgr := &cronsync.Manager{
		Tenants:       store,
		API:           cronsync.NewClient(cfg.CronAPIBaseURL, cfg.CronSecret, logger),
		Log:           logger,
		PublicBaseURL: cfg.PublicBaseURL,
	}

	api := &httpapi.Server{
		Log:            logger,
		Services:       store,
		Results:        store,
		Events:         store,
		Tenants:        store,
		Runner:         runner,
		Sweeper:        sweeper,
		Cron:           cronMgr,
		Metrics:        bundle,
		CronSecret:     cfg.CronSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		RPM:            cfg.RPM,
		Burst:          cfg.Burst,
	}

	if cfg.CronSecret == "" {
		logger.Warn("cron_secret_empty_trigger_endpoints_open")
	}

	logger.Info("api_listen", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, api.Router()); err != nil {
		log.Fatal(err)
	}
}
