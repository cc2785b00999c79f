// Package main is the entry point for dashd, the submission dashboard
// service. It serves the read-only feed API backed by the submission
// registry.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"specplane/internal/config"
	"specplane/internal/dashboard"
	"specplane/internal/logger"
	"specplane/internal/observability"
	"specplane/internal/store"
	"specplane/internal/store/postgres"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	configPath := flag.String("config", "", "Path to config file (default: specplane.yaml in current directory)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatalf("database_url is required for dashd (set it in specplane.yaml or via SPECPLANE_DATABASE_URL)")
	}

	ctx := context.Background()
	registry, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to submission registry: %v", err)
	}
	defer registry.Close()

	if *migrateFlag {
		log.Println("Running database migrations...")
		if err := postgres.Migrate(registry.DB()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	}

	// Tracing is optional; without a collector address it stays off.
	if cfg.OTELEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, "specplane-dashd", cfg.OTELEndpoint)
		if err != nil {
			log.Fatalf("Failed to init tracing: %v", err)
		}
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				log.Printf("Failed to shutdown tracer: %v", err)
			}
		}()
	}

	metricsHandler, shutdownMetrics, err := observability.InitMetrics("specplane-dashd")
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	// An async gauge queries the registry only when scraped.
	meter := otel.Meter("specplane-dashd")
	_, err = meter.Int64ObservableGauge("specplane.submissions.failed",
		metric.WithDescription("Current number of failed submissions awaiting retry"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			count, err := registry.CountByState(ctx, store.SubmissionStateFailed)
			if err != nil {
				log.Printf("Failed to count failed submissions: %v", err)
				return nil // Don't crash metrics scrape on DB error
			}
			obs.Observe(count)
			return nil
		}),
	)
	if err != nil {
		log.Printf("Failed to register failed submissions metric: %v", err)
	}

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := dashboard.New(dashboard.Config{
		Addr:     addr,
		APIRate:  cfg.APIRate,
		APIBurst: cfg.APIBurst,
		Metrics:  metricsHandler,
		Log:      logger.New(),
	}, registry)

	go func() {
		log.Printf("dashd starting on %s", addr)
		if err := srv.Run(ctx); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down dashd...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited properly")
}
