package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"payhook.dev/ledger/internal/config"
	"payhook.dev/ledger/internal/dispatcher"
	"payhook.dev/ledger/internal/domain/adapters"
	"payhook.dev/ledger/internal/infrastructure/outboxjob"
	"payhook.dev/ledger/internal/infrastructure/repositories"
	"payhook.dev/ledger/internal/infrastructure/secretcache"
	"payhook.dev/ledger/internal/interfaces/http/handlers"
	"payhook.dev/ledger/internal/interfaces/http/middleware"
	"payhook.dev/ledger/internal/pipeline"
	"payhook.dev/ledger/internal/providers/flutterwave"
	"payhook.dev/ledger/internal/providers/paystack"
	"payhook.dev/ledger/internal/providers/stripe"
	"payhook.dev/ledger/pkg/logger"
	"payhook.dev/ledger/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	runServer = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

// configSecretSource adapts config.ProvidersConfig into secretcache.Source,
// the cache-miss fallback for provider webhook verification secrets.
type configSecretSource struct {
	byProvider map[string][]string
}

func (s configSecretSource) SecretsFor(provider string) ([]string, error) {
	return s.byProvider[provider], nil
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(context.Background(), "Redis initialized")

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	dsn := cfg.Database.URL()
	db, err := openDB(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Printf("database not available: %v (endpoints will return errors)", err)
	} else {
		log.Println("connected to PostgreSQL via GORM")
		if err := repositories.Migrate(db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	transactionRepo := repositories.NewTransactionRepository(db)
	webhookLogRepo := repositories.NewWebhookLogRepository(db)
	dispatchLogRepo := repositories.NewDispatchLogRepository(db)
	outboxRepo := repositories.NewOutboxRepository(db)
	auditLogRepo := repositories.NewAuditLogRepository(db)
	uow := repositories.NewUnitOfWork(db)

	adapterRegistry := adapters.NewRegistry(paystack.New(), stripe.New(), flutterwave.New())

	// Read-through secret cache in front of the configured rotation lists.
	secrets := secretcache.New(redis.GetClient(), configSecretSource{byProvider: map[string][]string{
		"paystack":    cfg.Providers.PaystackSecrets,
		"stripe":      cfg.Providers.StripeSecrets,
		"flutterwave": cfg.Providers.FlutterwaveSecrets,
	}}, cfg.Providers.SecretCacheTTL)

	dispatchRegistry := dispatcher.NewRegistry(dispatchLogRepo, outboxRepo, cfg.Outbox.MaxRetries)

	metricsRegistry := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(metricsRegistry)

	stages := []pipeline.Stage{
		pipeline.NewVerifyStage(secrets),
		pipeline.NewNormalizeStage(),
		pipeline.NewPersistClaimStage(webhookLogRepo, transactionRepo, auditLogRepo,
			pipeline.WithRedactKeys(cfg.Pipeline.RedactKeys),
		),
		pipeline.NewDedupStage(webhookLogRepo, auditLogRepo),
		pipeline.NewStateEngineStage(transactionRepo, webhookLogRepo, auditLogRepo, uow,
			pipeline.WithAutoCreate(cfg.Pipeline.AutoCreateTransactions),
		),
		pipeline.NewDispatchStage(dispatchRegistry),
	}

	processor := pipeline.NewProcessor(webhookLogRepo, metrics, stages,
		pipeline.WithTimeout(cfg.Pipeline.StageTimeout),
	)

	webhookHandler := handlers.NewWebhookHandler(processor, adapterRegistry)

	// Background outbox sweeper, draining retries for a single-process deployment.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := outboxjob.New(outboxRepo, cfg.Outbox.Interval, cfg.Outbox.BatchSize, func(ctx context.Context, payload []byte) error {
		logger.Debug(ctx, "outbox event swept, no out-of-process target configured", zap.Int("payloadBytes", len(payload)))
		return nil
	})
	sweeper.SetBaseBackoff(cfg.Outbox.BaseBackoff)
	go sweeper.Start(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r)
	registerAPIV1Routes(r, routeDeps{webhookHandler: webhookHandler})

	log.Println("registered routes:")
	for _, route := range r.Routes() {
		log.Printf("   %s %s", route.Method, route.Path)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("shutting down server...")
		sweeper.Stop()
		cancel()
	}()

	log.Printf("PayHook ledger starting on port %s", cfg.Server.Port)
	log.Printf("API: http://localhost:%s/api/v1", cfg.Server.Port)
	log.Printf("Health: http://localhost:%s/health", cfg.Server.Port)

	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
