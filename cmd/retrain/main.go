package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/cryptoknight/knightd/internal/adapters/ai"
	"github.com/cryptoknight/knightd/internal/adapters/config"
	"github.com/cryptoknight/knightd/internal/adapters/database"
	"github.com/cryptoknight/knightd/internal/forecast"
	"github.com/cryptoknight/knightd/internal/predictions"
	"github.com/cryptoknight/knightd/pkg/logger"
)

func main() {
	// Parse flags
	keep := flag.Int("keep", 0, "Prediction records to keep (0 = configured retention)")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("info", ""); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	retention := cfg.Forecast.Retention
	if *keep > 0 {
		retention = *keep
	}

	// Connect to the database
	db, err := database.New(&cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(db.Conn(), cfg.Database.MigrationsPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	// Pick the forecast engine the daemon would use
	var forecaster forecast.Forecaster
	if cfg.Forecast.DelegateEnabled() {
		forecaster = forecast.NewDelegate(ai.NewClient(&cfg.Forecast))
		fmt.Printf("🔁 Retraining delegate engine (%s)...\n", cfg.Forecast.OpenAIModel)
	} else {
		forecaster = forecast.NewHeuristic()
		fmt.Println("🔁 Retraining heuristic engine...")
	}

	metrics := forecaster.Retrain()
	fmt.Printf("✅ Model retrained\n")
	fmt.Printf("   Accuracy:  %.2f\n", metrics.Accuracy)
	fmt.Printf("   Precision: %.2f\n", metrics.Precision)
	fmt.Printf("   Recall:    %.2f\n", metrics.Recall)

	// Trim prediction history down to the retention window
	ctx := context.Background()
	deleted, err := predictions.NewRepository(db.DB()).Prune(ctx, retention)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prune prediction history: %v\n", err)
		os.Exit(1)
	}

	if deleted > 0 {
		fmt.Printf("🧹 Pruned %d historical prediction records (keeping %d)\n", deleted, retention)
	} else {
		fmt.Printf("History within retention window (%d records kept)\n", retention)
	}
}
