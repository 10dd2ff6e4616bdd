package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"takealot_sync/api"
	"takealot_sync/auth"
	"takealot_sync/config"
	"takealot_sync/events"
	"takealot_sync/logging"
	"takealot_sync/models"
	"takealot_sync/scheduler"
	"takealot_sync/services"
	"takealot_sync/storage"
	"takealot_sync/takealot"
	"takealot_sync/workers"
)

var (
	syncNow = flag.Bool("sync", false, "Run one catalog sync for -tenant and exit")
	tenant  = flag.String("tenant", "", "Seller user id for -sync")
)

func main() {
	flag.Parse()

	// Money goes out as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, logFile, err := logging.Setup(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Errorw("exiting", "error", err)
		logFile.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	logger.Info("starting takealot_sync")

	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	client := takealot.NewClient(cfg.Takealot)
	if !client.Configured() {
		logger.Warn("TAKEALOT_API_KEY not set, sync and price push will fail until it is")
	}

	publisher, closePublisher := openPublisher(cfg.RabbitMQ, logger)
	defer closePublisher()

	reconciler := services.NewReconciler(store, publisher, logger.Named("reconciler"))
	syncService := services.NewSyncService(client, reconciler, store, logger.Named("sync"))

	if *syncNow {
		return runOnce(ctx, syncService, logger)
	}

	archive, err := openArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}

	webhookService := services.NewWebhookService(services.WebhookConfig{
		Secret:   cfg.Webhook.Secret,
		TenantID: cfg.Webhook.TenantID,
	}, store, store, archive, publisher, logger.Named("webhook"))
	if cfg.Webhook.Secret == "" {
		logger.Warn("TAKEALOT_WEBHOOK_SECRET not set, webhook signatures are not verified")
	}

	authn, err := auth.New(cfg.Auth)
	if err != nil {
		return err
	}
	logger.Infow("auth configured", "mode", cfg.Auth.Mode)

	replay := workers.NewWebhookReplayWorker(store, webhookService, workers.ReplayConfig{
		Interval:    cfg.Webhook.ReplayInterval,
		BatchSize:   cfg.Webhook.ReplayBatch,
		MaxAttempts: cfg.Webhook.MaxAttempts,
	}, logger.Named("replay"))
	go replay.Run(ctx)

	sched := scheduler.New(cfg.Scheduler, syncService, logger.Named("scheduler"))
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	server := api.NewServer(api.Deps{
		Sync:     syncService,
		Webhooks: webhookService,
		Pricing:  services.NewPricingService(client, store, publisher, logger.Named("pricing")),
		Catalog:  services.NewCatalogService(store, store),
		Health:   services.NewHealthcheckService(store, client.Configured()),
		Replay:   replay,
		Auth:     authn,
	}, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AdminAPIKey:    cfg.Server.AdminAPIKey,
	}, logger.Named("http"))

	if err := server.Run(ctx, cfg.Server.Addr); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	logger.Info("goodbye")
	return nil
}

func runOnce(ctx context.Context, syncService *services.SyncService, logger *zap.SugaredLogger) error {
	userID, err := uuid.Parse(*tenant)
	if err != nil {
		return fmt.Errorf("%w: -tenant must be a user uuid: %v", models.ErrConfiguration, err)
	}

	logger.Infow("running sync", "user_id", userID)
	summary, err := syncService.Sync(ctx, userID, models.TriggerCLI)
	if err != nil {
		return err
	}
	logger.Infow("sync complete",
		"synced", summary.Synced,
		"created", summary.Created,
		"updated", summary.Updated,
		"failed", summary.Failed,
	)
	for _, e := range summary.Errors {
		logger.Warnw("offer failed", "sku", e.SKU, "offer_id", e.OfferID, "error", e.Error)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.SugaredLogger) (services.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := storage.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Infow("using sqlite", "path", cfg.SQLitePath)
		return store, nil
	default:
		store, err := storage.NewPostgresStore(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Infow("connected to postgres", "url", maskConnectionString(cfg.URL))
		if cfg.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				store.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("schema migrated")
		}
		return store, nil
	}
}

func openPublisher(cfg config.RabbitMQConfig, logger *zap.SugaredLogger) (services.Publisher, func()) {
	if cfg.URL == "" {
		return events.Noop{}, func() {}
	}
	pub, err := events.NewRabbitMQPublisher(cfg.URL, cfg.Queue)
	if err != nil {
		// price events are best-effort
		logger.Warnw("rabbitmq unavailable, price events disabled", "error", err)
		return events.Noop{}, func() {}
	}
	logger.Infow("publishing price events", "queue", cfg.Queue)
	return pub, func() {
		if err := pub.Close(); err != nil {
			logger.Warnw("close rabbitmq", "error", err)
		}
	}
}

func openArchive(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (services.PayloadArchiver, error) {
	if cfg.Webhook.ArchiveBucket == "" {
		return nil, nil
	}
	archive, err := storage.NewS3Archiver(ctx, storage.S3Config{
		Bucket:          cfg.Webhook.ArchiveBucket,
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook archive: %w", err)
	}
	logger.Infow("archiving webhook payloads", "bucket", cfg.Webhook.ArchiveBucket)
	return archive, nil
}

// maskConnectionString hides the password in a database URL for logging
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
