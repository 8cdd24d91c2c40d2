// Package main provides the main entry point for the affiliate tracking service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/clickforge/affiliate-tracker/app/handlers"
	"github.com/clickforge/affiliate-tracker/app/router"
	"github.com/clickforge/affiliate-tracker/app/scheduler"
	"github.com/clickforge/affiliate-tracker/app/services"
	businessflow "github.com/clickforge/affiliate-tracker/business_flow"
	"github.com/clickforge/affiliate-tracker/config"
	"github.com/clickforge/affiliate-tracker/repository"
	"github.com/clickforge/affiliate-tracker/utils"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.TrackerConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting affiliate tracker...")

	cfg, err := config.LoadTrackerConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling.
// TranslateError is required: the conversion pipeline detects concurrent
// duplicates through gorm.ErrDuplicatedKey.
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisAddr(), cfg.DB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.TrackerConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize repositories
	clickRepo := repository.NewClickRepository(db)
	conversionRepo := repository.NewConversionRepository(db)
	offerRepo := repository.NewOfferRepository(db)
	affiliateRepo := repository.NewAffiliateRepository(db)
	advertiserRepo := repository.NewAdvertiserRepository(db)
	fraudLogRepo := repository.NewFraudLogRepository(db)
	postbackLogRepo := repository.NewPostbackLogRepository(db)
	ipBlacklistRepo := repository.NewIPBlacklistRepository(db)

	// Initialize services
	signer := services.NewSigner()
	geoIP := services.NewStaticGeoIPService("US")
	postbackClient := services.NewPostbackClient(cfg.Postback.Timeout)

	var queue services.QueueService
	if rc != nil {
		queue = services.NewRedisQueueService(rc)
	} else {
		log.Println("Cache disabled, job queue runs in-memory and does not survive restarts")
		queue = services.NewInMemoryQueueService()
	}

	var fraudEvents services.FraudEventPublisher
	if cfg.Kafka.Enabled {
		publisher := services.NewKafkaFraudEventPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		stopFuncs = append(stopFuncs, func() {
			if err := publisher.Close(); err != nil {
				log.Printf("Failed to close kafka publisher: %v", err)
			}
		})
		fraudEvents = publisher
		log.Printf("Fraud event stream enabled on topic %s", cfg.Kafka.Topic)
	} else {
		fraudEvents = services.NewNoopFraudEventPublisher()
	}

	// Initialize flows
	fraudEngine := businessflow.NewFraudEngine(clickRepo, ipBlacklistRepo, offerRepo, cfg.Fraud.DuplicateThreshold)

	clickFlow := businessflow.NewClickFlow(
		offerRepo,
		affiliateRepo,
		clickRepo,
		fraudLogRepo,
		fraudEngine,
		signer,
		geoIP,
		queue,
		fraudEvents,
		businessflow.ClickFlowConfig{
			FraudEnabled:        cfg.Fraud.Enabled,
			RecheckDelaySeconds: cfg.Fraud.RecheckDelaySeconds,
		},
	)

	postbackFlow := businessflow.NewPostbackFlow(
		clickRepo,
		offerRepo,
		advertiserRepo,
		conversionRepo,
		postbackLogRepo,
		signer,
		queue,
		businessflow.PostbackFlowConfig{
			IPFailOpen: cfg.Postback.IPFailOpen,
		},
	)

	attributionFlow := businessflow.NewAttributionFlow(
		conversionRepo,
		clickRepo,
		rc,
		businessflow.AttributionFlowConfig{
			CacheTTL: cfg.Attribution.CacheTTL,
			HalfLife: cfg.Attribution.HalfLife,
		},
	)

	// Initialize handlers
	clickHandler := handlers.NewClickHandler(clickFlow)
	postbackHandler := handlers.NewPostbackHandler(postbackFlow)

	// Initialize router
	appRouter := router.NewFiberRouter(clickHandler, postbackHandler, cfg.Metrics.Enabled)

	// Start queue workers
	worker := scheduler.NewQueueWorker(queue, cfg.Queue.PollInterval)
	worker.Register(utils.JobFraudCheck, scheduler.NewFraudCheckHandler(clickRepo, fraudLogRepo, fraudEngine, fraudEvents))
	worker.Register(utils.JobPostbackConfirm, scheduler.NewPostbackConfirmHandler(conversionRepo, advertiserRepo, signer, postbackClient, attributionFlow))
	stopWorker := worker.Start(context.Background())
	stopFuncs = append(stopFuncs, stopWorker)

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
