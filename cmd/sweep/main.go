package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labtrail/backend/internal/adapters/database"
	"github.com/labtrail/backend/internal/application/services"
	"github.com/labtrail/backend/internal/infrastructure/clients/postgres"
	"github.com/labtrail/backend/pkg/config"
)

func main() {
	var workers int

	flag.IntVar(&workers, "workers", 0, "Number of concurrent workers (defaults to SWEEP_WORKERS)")
	flag.Parse()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if workers <= 0 {
		workers = cfg.Pipeline.SweepWorkers
	}

	// Setup DB
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pgClient.Close()

	// Setup repos
	itemRepo := database.NewCanonicalItemAdapter(pgClient)
	aliasRepo := database.NewAliasAdapter(pgClient)
	lineRepo := database.NewTestResultLineAdapter(pgClient)

	svc := services.NewUnmappedSweepService(itemRepo, aliasRepo, lineRepo, workers)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	log.Printf("Starting unmapped sweep with %d workers...", workers)

	summary, err := svc.SweepAll(ctx)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	log.Printf("Sweep complete in %s", time.Since(start))
	log.Printf("Total unmapped: %d", summary.TotalUnmapped)
	log.Printf("Remapped: %d", summary.Remapped)
	log.Printf("Remaining: %d", summary.Remaining)
	log.Printf("Failures: %d", summary.Failures)
}
