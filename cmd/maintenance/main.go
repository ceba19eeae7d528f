package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/loadlink/loadlink-backend/internal/config"
	"github.com/loadlink/loadlink-backend/internal/database"
	"github.com/loadlink/loadlink-backend/internal/events"
	"github.com/loadlink/loadlink-backend/internal/services"
	"github.com/sirupsen/logrus"
)

var tables = []string{
	"reviews",
	"payments",
	"booking_status_events",
	"bookings",
	"trips",
	"vehicles",
	"users",
}

func main() {
	var (
		dbURLFlag string
		task      string
		after     time.Duration
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.StringVar(&task, "task", "sweep", "sweep: complete stale paid bookings once; clear-data: truncate all tables")
	flag.DurationVar(&after, "after", 7*24*time.Hour, "sweep: complete bookings paid longer ago than this")
	flag.Parse()

	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     5,
		MaxIdleConnections: 2,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	switch task {
	case "sweep":
		logger := logrus.New()
		store := database.NewPostgresStore(db)
		bookings := services.NewBookingService(store, services.NewLedger(logger), events.NewEmitter(events.NewLogPublisher(logger), logger), logger)
		sweeper := services.NewCronService(bookings, nil, after, "", logger)

		completed, err := sweeper.RunSweepNow(context.Background())
		if err != nil {
			log.Fatalf("sweep failed: %v", err)
		}
		fmt.Printf("Completed %d paid bookings.\n", completed)

	case "clear-data":
		fmt.Println("Connected to database. Truncating tables...")
		stmt := "TRUNCATE TABLE "
		for i, t := range tables {
			if i > 0 {
				stmt += ", "
			}
			stmt += t
		}
		if _, err := db.Exec(stmt + " RESTART IDENTITY CASCADE"); err != nil {
			log.Fatalf("failed to truncate tables: %v", err)
		}

		fmt.Println("Post-clear row counts:")
		for _, t := range tables {
			var count int
			if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&count); err != nil {
				fmt.Printf("  %s: error: %v\n", t, err)
				continue
			}
			fmt.Printf("  %s: %d\n", t, count)
		}

	default:
		log.Fatalf("unknown task %q", task)
	}
}
