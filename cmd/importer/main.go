package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/membermap/membermap/internal/adapters/nats"
	"github.com/membermap/membermap/internal/adapters/objectstore"
	"github.com/membermap/membermap/internal/adapters/postgres"
	"github.com/membermap/membermap/internal/core/ports"
	"github.com/membermap/membermap/internal/core/usecases"
	"github.com/membermap/membermap/internal/pkg/config"
	"github.com/membermap/membermap/internal/pkg/logging"
	"github.com/membermap/membermap/internal/workflows"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: importer <worker|submit KEY>")
	}

	cfg, err := config.Load("membermap-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	switch os.Args[1] {
	case "worker":
		runWorker(c, cfg)
	case "submit":
		if len(os.Args) < 3 {
			log.Fatal("usage: importer submit KEY")
		}
		submit(c, cfg, os.Args[2])
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func runWorker(c client.Client, cfg *config.Config) {
	ctx := context.Background()

	if !cfg.Storage.Enabled() {
		log.Fatal("importer needs storage.endpoint, storage.access_key and storage.secret_key")
	}
	store, err := objectstore.New(ctx, objectstore.Options{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		log.Fatalf("object storage: %v", err)
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL, "importer")
	if err != nil {
		slog.Warn("nats unavailable, imports will not be announced", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.MemberImportWorkflow)
	w.RegisterActivity(&workflows.ImportActivities{
		Import: usecases.NewImportService(store, postgres.NewMemberRepo(db), publisher),
	})

	slog.Info("importer worker started", "queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func submit(c client.Client, cfg *config.Config, key string) {
	ctx := context.Background()
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "member-import-" + key,
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflows.MemberImportWorkflow, workflows.ImportInput{Key: key})
	if err != nil {
		log.Fatalf("start workflow: %v", err)
	}

	var result workflows.ImportResult
	if err := run.Get(ctx, &result); err != nil {
		log.Fatalf("import %s: %v", key, err)
	}
	fmt.Printf("OK  %s: fetched %d, stored %d, rejected %d, announced %t\n",
		key, result.Fetched, result.Stored, result.Rejected, result.Announced)
}
