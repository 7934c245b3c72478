package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/membermap/membermap/internal/adapters/memory"
	"github.com/membermap/membermap/internal/adapters/postgres"
	"github.com/membermap/membermap/internal/core/usecases"
	"github.com/membermap/membermap/internal/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|seed FILE>")
	}

	cfg, err := config.Load("membermap-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		if err := db.Migrate(ctx); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Println("schema applied")
	case "seed":
		if len(os.Args) < 3 {
			log.Fatal("usage: migrate seed FILE")
		}
		seed(ctx, db, os.Args[2])
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// seed loads a JSON member file and upserts the valid entries.
func seed(ctx context.Context, db *postgres.DB, path string) {
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	file, err := memory.LoadMemberFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	all, err := file.List(ctx)
	if err != nil {
		log.Fatalf("list %s: %v", path, err)
	}

	valid, rejected := usecases.Validate(all)
	if err := postgres.NewMemberRepo(db).UpsertBatch(ctx, valid); err != nil {
		log.Fatalf("upsert: %v", err)
	}
	fmt.Printf("OK  %s: %d stored, %d rejected\n", path, len(valid), rejected)
}
