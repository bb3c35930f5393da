package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labtrail/backend/internal/adapters/cache"
	"github.com/labtrail/backend/internal/adapters/database"
	"github.com/labtrail/backend/internal/adapters/events"
	"github.com/labtrail/backend/internal/application/services"
	"github.com/labtrail/backend/internal/domain/providers"
	"github.com/labtrail/backend/internal/domain/repositories"
	"github.com/labtrail/backend/internal/infrastructure/clients/ocrapi"
	"github.com/labtrail/backend/internal/infrastructure/clients/openai"
	"github.com/labtrail/backend/internal/infrastructure/clients/postgres"
	redisclient "github.com/labtrail/backend/internal/infrastructure/clients/redis"
	"github.com/labtrail/backend/internal/infrastructure/observability"
	"github.com/labtrail/backend/internal/validation"
	"github.com/labtrail/backend/pkg/config"
)

func main() {
	var subjectID string
	var documents string

	flag.StringVar(&subjectID, "subject", "", "Subject the documents belong to")
	flag.StringVar(&documents, "documents", "", "Comma-separated document URIs to ingest as one batch")
	flag.Parse()

	if subjectID == "" || documents == "" {
		log.Fatal("both -subject and -documents are required")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, os.Getenv("ENV"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var metrics *observability.Metrics
	if cfg.OTEL.Enabled {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Fatalf("Failed to setup OpenTelemetry: %v", err)
		}
		defer shutdown(context.Background())

		metrics, err = observability.InitMetrics()
		if err != nil {
			log.Fatalf("Failed to init metrics: %v", err)
		}
	}

	// Setup DB
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pgClient.Close()

	// Setup repos
	itemRepo := database.NewCanonicalItemAdapter(pgClient)
	recordRepo := database.NewTestRecordAdapter(pgClient)
	lineRepo := database.NewTestResultLineAdapter(pgClient)
	var aliasRepo repositories.AliasRepository = database.NewAliasAdapter(pgClient)

	// Redis is optional; without it ingestion runs with cold alias lookups
	// and no downstream record events.
	var eventBus providers.EventBus
	if redisClient, err := redisclient.NewClient(&cfg.Redis); err != nil {
		log.Printf("Redis unavailable, alias cache and record events disabled: %v", err)
	} else {
		defer redisClient.Close()
		aliasRepo = database.NewCachedAliasAdapter(
			aliasRepo,
			cache.NewRedisAdapter(redisClient),
			metrics,
			cfg.Pipeline.AliasCacheTTLSeconds,
		)
		eventBus = events.NewRedisEventBus(redisClient)
		defer eventBus.Close()
	}

	// Assisted matcher is optional too.
	var matcher providers.AssistedMatchProvider
	if cfg.OpenAI.APIKey != "" {
		matcher, err = openai.NewClient(&cfg.OpenAI)
		if err != nil {
			log.Fatalf("Failed to create OpenAI client: %v", err)
		}
	}

	rangeTable, err := validation.LoadRangeTable(cfg.Pipeline.RangeTablePath)
	if err != nil {
		log.Fatalf("Failed to load range table: %v", err)
	}

	resolver := services.NewResolutionService(itemRepo, aliasRepo, matcher)
	svc := services.NewIngestionService(
		ocrapi.NewClient(&cfg.OCR),
		resolver,
		validation.NewValidator(rangeTable),
		services.NewBatchReconciler(),
		itemRepo,
		recordRepo,
		lineRepo,
		eventBus,
	)

	var docs []providers.SourceDocument
	for _, uri := range strings.Split(documents, ",") {
		uri = strings.TrimSpace(uri)
		if uri == "" {
			continue
		}
		docs = append(docs, providers.SourceDocument{
			ID:    uri,
			URI:   uri,
			Label: fmt.Sprintf("page %d", len(docs)+1),
		})
	}

	start := time.Now()
	log.Printf("Ingesting %d documents for subject %s...", len(docs), subjectID)

	summary, err := svc.IngestDocuments(ctx, subjectID, docs)
	if err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}

	log.Printf("Ingestion complete in %s", time.Since(start))
	log.Printf("Record: %s", summary.RecordID)
	log.Printf("Extracted: %d", summary.TotalExtracted)
	log.Printf("Mapped: %d", summary.Mapped)
	log.Printf("Unmapped: %d", summary.Unmapped)
	log.Printf("Deduplicated: %d", summary.Deduplicated)
	log.Printf("Skipped: %d", summary.Skipped)
	log.Printf("Flagged for review: %d", summary.ReviewFlagged)
}
