package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cruise-feed-sync/internal/config"
	"github.com/iliyamo/cruise-feed-sync/internal/database"
	"github.com/iliyamo/cruise-feed-sync/internal/feed"
	"github.com/iliyamo/cruise-feed-sync/internal/handler"
	"github.com/iliyamo/cruise-feed-sync/internal/queue"
	"github.com/iliyamo/cruise-feed-sync/internal/repository"
	"github.com/iliyamo/cruise-feed-sync/internal/router"
	syncer "github.com/iliyamo/cruise-feed-sync/internal/sync"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName,
		cfg.DBMaxConns, cfg.DBConnLifetime)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	// Repositories
	lineRepo := repository.NewLineRepo(db)
	cruiseRepo := repository.NewCruiseRepo(db)
	refRepo := repository.NewReferenceRepo(db)
	eventRepo := repository.NewWebhookEventRepo(db)
	lockRepo := repository.NewSyncLockRepo(db)
	historyRepo := repository.NewPriceHistoryRepo(db)
	rawDocRepo := repository.NewRawDocRepo(db)

	// Feed transport: a small fixed connection pool behind a circuit breaker.
	feedClient := feed.NewClient(cfg.FeedHost, cfg.FeedPort, cfg.FeedUser, cfg.FeedPass, cfg.FeedAcquireTimeout)
	pool := feed.NewPool(feedClient, feed.PoolConfig{
		Size:             cfg.FeedPoolSize,
		AcquireTimeout:   cfg.FeedAcquireTimeout,
		MaxFileBytes:     cfg.FeedMaxFileBytes,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerCooldown,
	})

	// Sync pipeline
	persister := syncer.NewStorePersister(db, cruiseRepo, refRepo, historyRepo, rawDocRepo)
	bulk := syncer.NewBulkDownloader(pool, persister, cfg.FeedPoolSize)
	runner := syncer.NewRunner(lineRepo, cruiseRepo, lockRepo, eventRepo, bulk, cfg.MegaBatchSize, cfg.LockMaxAge)
	discoverer := syncer.NewDiscoverer(pool, lineRepo, refRepo, cruiseRepo, cfg.DiscoverMonths)
	scheduler := syncer.NewScheduler(runner, cruiseRepo, cruiseRepo, historyRepo, discoverer, cfg.SchedulerInterval, cfg.MaintenanceEvery)
	reconciler := syncer.NewReconciler(rawDocRepo, persister, 200)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Start(ctx)
	go func() {
		if err := queue.StartLineChangedConsumer(runner); err != nil {
			log.Printf("line-changed consumer stopped: %v", err)
		}
	}()

	// Redis is optional: without it webhook dedup is disabled.
	redisClient := config.NewRedisClient()
	if redisClient == nil {
		log.Printf("redis unavailable; webhook deduplication disabled")
	}

	// HTTP surface
	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterWebhook(e, &handler.WebhookHandler{
		Lines:           lineRepo,
		Cruises:         cruiseRepo,
		Events:          eventRepo,
		Runner:          runner,
		Redis:           redisClient,
		Publish:         queue.PublishLineChanged,
		InlineThreshold: cfg.SyncThreshold,
		DedupeWindow:    cfg.DedupeWindow,
	})
	router.RegisterAdmin(e, &handler.AdminHandler{
		Events:     eventRepo,
		Locks:      lockRepo,
		History:    historyRepo,
		Cruises:    cruiseRepo,
		Reconciler: reconciler,
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
