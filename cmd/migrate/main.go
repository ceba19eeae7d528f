package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/loadlink/loadlink-backend/internal/config"
	"github.com/loadlink/loadlink-backend/internal/database"
	"github.com/sirupsen/logrus"
)

const usage = `Usage: migrate [up|down|status|version]

Applies the embedded SQL migrations to DATABASE_URL.`

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment")
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                os.Getenv("DATABASE_URL"),
		MaxConnections:     2,
		MaxIdleConnections: 1,
		ConnMaxLifetime:    time.Minute,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	provider, err := database.NewMigrationProvider(db.DB)
	if err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		for _, r := range results {
			logger.WithFields(logrus.Fields{
				"version":  r.Source.Version,
				"path":     r.Source.Path,
				"duration": r.Duration.String(),
			}).Info("Applied migration")
		}
		if err != nil {
			logger.Fatalf("Migration failed: %v", err)
		}
		if len(results) == 0 {
			logger.Info("No pending migrations")
		}
	case "down":
		result, err := provider.Down(ctx)
		if err != nil {
			logger.Fatalf("Rollback failed: %v", err)
		}
		logger.WithField("version", result.Source.Version).Info("Rolled back migration")
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			logger.Fatalf("Failed to read migration status: %v", err)
		}
		for _, s := range statuses {
			logger.WithFields(logrus.Fields{
				"version":    s.Source.Version,
				"path":       s.Source.Path,
				"state":      s.State,
				"applied_at": s.AppliedAt,
			}).Info("Migration")
		}
	case "version":
		version, err := provider.GetDBVersion(ctx)
		if err != nil {
			logger.Fatalf("Failed to read database version: %v", err)
		}
		logger.WithField("version", version).Info("Database version")
	default:
		flag.Usage()
		os.Exit(2)
	}
}
