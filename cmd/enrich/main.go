package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	database "github.com/pagetrail/bookshop-directory/app/db"
	"github.com/pagetrail/bookshop-directory/config"
	"github.com/pagetrail/bookshop-directory/internal/api/bookshop"
	"github.com/pagetrail/bookshop-directory/internal/api/feature"
	"github.com/pagetrail/bookshop-directory/internal/enrich"
)

// Enrichment CLI: resolves unenriched bookshops against the places API,
// classifies their features and backfills descriptions. Run out of band,
// typically from cron.
func main() {
	dryRun := flag.Bool("dry-run", false, "list unenriched shops without calling external APIs")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}
	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	repo := bookshop.NewPostgresRepository(pool, logger)

	if *dryRun {
		shops, err := repo.ListUnenriched(ctx, cfg.Enrich.BatchSize)
		if err != nil {
			logger.Error("Failed to list unenriched shops", slog.Any("error", err))
			os.Exit(1)
		}
		for _, s := range shops {
			logger.Info("would enrich", slog.String("name", s.Name), slog.String("city", s.City))
		}
		return
	}

	placesKey := os.Getenv("PLACES_API_KEY")
	if placesKey == "" {
		logger.Error("PLACES_API_KEY environment variable is not set")
		os.Exit(1)
	}
	places := enrich.NewPlacesClient(logger, cfg.Enrich.PlacesBaseURL, placesKey,
		cfg.Enrich.MaxRetries, cfg.Enrich.RequestDelay)

	features, err := feature.NewPostgresRepository(pool, logger).ListFeatures(ctx)
	if err != nil {
		logger.Error("Failed to load feature list", slog.Any("error", err))
		os.Exit(1)
	}

	// Without a Gemini key the classifier still runs its keyword rules.
	var generator enrich.Generator
	if os.Getenv("GOOGLE_GEMINI_API_KEY") != "" {
		aiClient, err := enrich.NewAIClient(ctx)
		if err != nil {
			logger.Error("Failed to create AI client", slog.Any("error", err))
			os.Exit(1)
		}
		generator = aiClient
	} else {
		logger.Warn("GOOGLE_GEMINI_API_KEY not set, classification uses keyword rules only")
	}

	classifier := enrich.NewClassifier(logger, features, generator)
	service := enrich.NewService(logger, repo, places, classifier, cfg.Enrich.BatchSize)

	enriched, err := service.Run(ctx)
	if err != nil {
		logger.Error("Enrichment run failed", slog.Int("enriched", enriched), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Enrichment run finished", slog.Int("enriched", enriched))
}
