package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"pharmatrack/internal/config"
	"pharmatrack/internal/db"
	"pharmatrack/internal/logging"
	"pharmatrack/migrations"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	list := flag.Bool("list", false, "print the embedded migrations and exit")
	flag.Parse()

	_ = godotenv.Load()

	if *list {
		found, err := db.DiscoverMigrations(migrations.FS)
		if err != nil {
			log.Fatalf("discover: %v", err)
		}
		for _, m := range found {
			fmt.Printf("%s  %s  %s\n", m.Version, m.Checksum[:12], m.Filename)
		}
		return
	}

	logger, err := logging.New(getEnv("LOG_LEVEL", "info"), config.ServiceName+"-migrate")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("failed to connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, migrations.FS, logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	logger.Info("all migrations processed")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
