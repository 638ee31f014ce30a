package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/samirrijal/groupmap/internal/adapters/postgres"
	"github.com/samirrijal/groupmap/internal/pkg/config"
)

const migrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|status>")
	}

	cfg, err := config.Load("groupmap-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	files, err := migrationFiles(migrationsDir)
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}

	switch os.Args[1] {
	case "up":
		ctx := context.Background()
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer db.Close()
		runMigrations(ctx, db, files)
	case "status":
		for _, f := range files {
			fmt.Println(f)
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// migrationFiles returns the .sql files of dir in name order.
func migrationFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func runMigrations(ctx context.Context, db *postgres.DB, files []string) {
	scripts := make(map[string]string, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}
		scripts[f] = string(data)
	}

	if err := db.Migrate(ctx, scripts, files); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	for _, f := range files {
		fmt.Printf("OK  %s\n", f)
	}
	log.Println("all migrations applied")
}
