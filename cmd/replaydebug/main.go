package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"payhook.dev/ledger/internal/config"
	"payhook.dev/ledger/internal/dispatcher"
	"payhook.dev/ledger/internal/domain/adapters"
	"payhook.dev/ledger/internal/infrastructure/repositories"
	"payhook.dev/ledger/internal/infrastructure/secretcache"
	"payhook.dev/ledger/internal/pipeline"
	"payhook.dev/ledger/internal/providers/flutterwave"
	"payhook.dev/ledger/internal/providers/paystack"
	"payhook.dev/ledger/internal/providers/stripe"
	"payhook.dev/ledger/pkg/redis"
)

// configSecretSource adapts config.ProvidersConfig into secretcache.Source.
// Duplicated from cmd/server rather than exported: this CLI has no business
// depending on the server binary's package.
type configSecretSource struct {
	byProvider map[string][]string
}

func (s configSecretSource) SecretsFor(provider string) ([]string, error) {
	return s.byProvider[provider], nil
}

func main() {
	id := flag.String("id", "", "webhook log id to replay")
	flag.Parse()

	if *id == "" {
		log.Fatalf("usage: replaydebug -id <webhook-log-uuid>")
	}
	logID, err := uuid.Parse(*id)
	if err != nil {
		log.Fatalf("invalid -id: %v", err)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()

	if err := redis.Init(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		log.Fatalf("failed to initialize redis: %v", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.Database.URL(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{PrepareStmt: false})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	webhookLogRepo := repositories.NewWebhookLogRepository(db)
	transactionRepo := repositories.NewTransactionRepository(db)
	dispatchLogRepo := repositories.NewDispatchLogRepository(db)
	outboxRepo := repositories.NewOutboxRepository(db)
	auditLogRepo := repositories.NewAuditLogRepository(db)
	uow := repositories.NewUnitOfWork(db)

	adapterRegistry := adapters.NewRegistry(paystack.New(), stripe.New(), flutterwave.New())

	secrets := secretcache.New(redis.GetClient(), configSecretSource{byProvider: map[string][]string{
		"paystack":    cfg.Providers.PaystackSecrets,
		"stripe":      cfg.Providers.StripeSecrets,
		"flutterwave": cfg.Providers.FlutterwaveSecrets,
	}}, cfg.Providers.SecretCacheTTL)

	dispatchRegistry := dispatcher.NewRegistry(dispatchLogRepo, outboxRepo, cfg.Outbox.MaxRetries)

	metrics := pipeline.NewMetrics(prometheus.NewRegistry())

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

	ctx := context.Background()
	stored, err := webhookLogRepo.FindByID(ctx, logID)
	if err != nil {
		log.Fatalf("failed to load webhook log %s: %v", logID, err)
	}

	adapter, ok := adapterRegistry.Get(stored.Provider)
	if !ok {
		log.Fatalf("no adapter registered for provider %q", stored.Provider)
	}

	var headers map[string]string
	if len(stored.Headers) > 0 {
		if err := json.Unmarshal(stored.Headers, &headers); err != nil {
			log.Fatalf("failed to decode stored headers: %v", err)
		}
	}

	claim := pipeline.NewContext(stored.Provider, stored.RawPayload, headers, stored.ReceivedAt)
	claim.Adapter = adapter
	// The stored claim already cleared verification once; replaying it is
	// for re-driving normalize/dedup/state-engine/dispatch, not re-litigating
	// a signature that may have since rotated out of the secret list.
	claim.SkipSignatureVerification = true

	result, err := processor.Process(ctx, claim)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	fmt.Printf("replayed webhook log %s (provider=%s)\n", logID, stored.Provider)
	fmt.Printf("fate: %s\n", result.Fate)
	if claim.TransactionID != nil {
		fmt.Printf("transaction: %s\n", *claim.TransactionID)
	}
	if claim.ErrorMessage != "" {
		fmt.Printf("error: %s\n", claim.ErrorMessage)
	}
}
