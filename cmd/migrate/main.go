package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"cinecritic/config"
	"cinecritic/internal/repository"
	"cinecritic/pkg/database"
)

const usage = `
cinecritic - Database CLI Tool

Usage:
  migrate [command]

Commands:
  up          Apply the schema
  down        Drop the schema
  status      Show database connection and table status
  reset       Drop the schema and apply it again (DANGEROUS)

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate status
`

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	if !cfg.DatabaseEnabled() {
		log.Fatal("DB_HOST is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		runUp(ctx, db)
	case "down":
		runDown(ctx, db)
	case "status":
		showStatus(ctx, db)
	case "reset":
		runDown(ctx, db)
		runUp(ctx, db)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runUp(ctx context.Context, db *sql.DB) {
	log.Println("Applying schema...")
	if err := repository.InitSchema(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Schema applied")
}

func runDown(ctx context.Context, db *sql.DB) {
	log.Println("Dropping schema...")
	if err := repository.DropSchema(ctx, db); err != nil {
		log.Fatalf("Rollback failed: %v", err)
	}
	log.Println("Schema dropped")
}

func showStatus(ctx context.Context, db *sql.DB) {
	if err := database.HealthCheck(ctx, db); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	for _, table := range repository.SchemaTables {
		exists, err := database.TableExists(ctx, db, table)
		if err != nil {
			log.Printf("Error checking table %s: %v", table, err)
			continue
		}
		if !exists {
			log.Printf("Table %-10s does not exist", table)
			continue
		}
		count, _ := database.TableCount(ctx, db, table)
		log.Printf("Table %-10s exists (%d rows)", table, count)
	}
}
