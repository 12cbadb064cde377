package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vigild/vigil/pkg/chat"
	"github.com/vigild/vigil/pkg/commands"
	"github.com/vigild/vigil/pkg/config"
	"github.com/vigild/vigil/pkg/database"
	"github.com/vigild/vigil/pkg/engine"
	"github.com/vigild/vigil/pkg/events"
	"github.com/vigild/vigil/pkg/logging"
	"github.com/vigild/vigil/pkg/metrics"
	"github.com/vigild/vigil/pkg/ops"
	"github.com/vigild/vigil/pkg/repository"
	"github.com/vigild/vigil/pkg/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := logging.Init(logging.LogLevel(cfg.Logging.Level), cfg.Logging.Format); err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}
	logger := logging.Get()
	defer func() { _ = logger.Sync() }()

	logger.Infof("starting vigil: %s", cfg.String())

	db, err := database.New(cfg)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	if err := db.Migrate(); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	store := repository.NewStore(db.GetDB())

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	bus := events.NewBus(logger)

	// The platform adapter is wired by the deployment; without one the
	// engine runs dry against the no-op adapter.
	var adapter chat.Adapter = chat.NewNoopAdapter(logger)
	if cfg.Chat.Token == "" {
		logger.Warn("no chat token configured, running with the no-op adapter")
	}

	pipeline := services.NewPipelineService(store, adapter, bus, cfg.Engine, cfg.Chat, logger, m)
	distributor := services.NewDistributor(store, adapter, bus, cfg.Engine, cfg.Chat, logger, m)
	verdict := services.NewVerdictEngine(store, adapter, bus, cfg.Engine, cfg.Chat, logger, m)
	duty := services.NewDutyService(store, bus, cfg.Engine, logger, m)
	captcha := services.NewCaptchaService(store, adapter, bus, cfg.Engine, cfg.Chat, logger, m)
	registration := services.NewRegistrationService(store, logger)
	stats := services.NewStatsService(store)

	router := commands.NewRouter(registration, pipeline, distributor, verdict, duty, captcha, stats)
	_ = router // handed to the platform adapter glue by the deployment

	eng := engine.New(distributor, verdict, duty, captcha, bus, cfg.Engine, logger)
	opsServer := ops.New(cfg.Ops, db, registry, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var g errgroup.Group
	g.Go(func() error { return eng.Run(ctx) })
	g.Go(func() error { return opsServer.Start() })
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Engine.ShutdownGrace)
		defer cancel()
		return opsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("engine exited with error", zap.Error(err))
	}

	logger.Info("vigil stopped")
}
