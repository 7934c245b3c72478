package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/membermap/membermap/internal/adapters/http"
	"github.com/membermap/membermap/internal/adapters/memory"
	natsadapter "github.com/membermap/membermap/internal/adapters/nats"
	"github.com/membermap/membermap/internal/adapters/objectstore"
	"github.com/membermap/membermap/internal/adapters/postgres"
	"github.com/membermap/membermap/internal/adapters/search"
	"github.com/membermap/membermap/internal/adapters/valkey"
	"github.com/membermap/membermap/internal/core/domain"
	"github.com/membermap/membermap/internal/core/ports"
	"github.com/membermap/membermap/internal/core/usecases"
	"github.com/membermap/membermap/internal/pkg/config"
	"github.com/membermap/membermap/internal/pkg/logging"
	"github.com/membermap/membermap/internal/pkg/metrics"
	"github.com/membermap/membermap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("membermap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Members: static file or database
	var (
		db      *postgres.DB
		members ports.MemberRepository
	)
	if cfg.Map.MembersFile != "" {
		repo, err := memory.LoadMemberFile(cfg.Map.MembersFile)
		if err != nil {
			log.Fatalf("members file: %v", err)
		}
		members = repo
		slog.Info("serving members from file", "path", cfg.Map.MembersFile)
	} else {
		db, err = postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		members = postgres.NewMemberRepo(db)
		go reportPoolStats(ctx, db)
	}

	// Valkey: flags and cache
	var (
		cache    *valkey.Cache
		flags    ports.FlagStore
		cacheSvc ports.CacheService
	)
	cache, err = valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, flags kept in memory", "error", err)
		cache = nil
		flags = memory.NewFlagStore()
	} else {
		defer cache.Close()
		flags = cache
		cacheSvc = cache
	}

	// NATS; instance tags this process's events and names its consumers
	hostname, _ := os.Hostname()
	instance := sanitizeInstance(hostname)

	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL, instance)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
		natsConn = nil
	} else {
		defer natsConn.Close()
	}

	// Use cases
	memberSvc := usecases.NewMemberService(members, cacheSvc)
	prefsSvc := usecases.NewPreferencesService(flags, publisher,
		domain.Theme(cfg.Map.DefaultTheme), domain.ViewMode(cfg.Map.DefaultView))
	mapSvc := usecases.NewMapService(memberSvc, prefsSvc, mapOptions(cfg.Map))
	prefsSvc.OnReload(mapSvc.Reload)

	searchClient := search.NewClient(cfg.Search.BaseURL, time.Duration(cfg.Search.Timeout)*time.Second)
	searchSvc := usecases.NewSearchService(searchClient, cacheSvc, mapSvc)
	tourSvc := usecases.NewTourService(prefsSvc, nil)

	var exportSvc *usecases.ExportService
	if cfg.Storage.Enabled() {
		store, err := objectstore.New(ctx, objectstore.Options{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			slog.Warn("object storage unavailable, export disabled", "error", err)
		} else {
			exportSvc = usecases.NewExportService(mapSvc, store)
		}
	}

	// Cross-instance events
	if pub != nil {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, instance)
		if err != nil {
			slog.Warn("nats subscriber unavailable", "error", err)
		} else {
			defer sub.Close()
			subscribeEvents(ctx, sub, mapSvc, memberSvc)
		}
	}

	deps := &http.Dependencies{
		Maps:    mapSvc,
		Prefs:   prefsSvc,
		Search:  searchSvc,
		Tour:    tourSvc,
		Members: memberSvc,
		Export:  exportSvc,
		NATS:    natsConn,
		DB:      db,
		Cache:   cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "membermap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, " + http.HeaderClientID,
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func mapOptions(c config.MapConfig) usecases.MapOptions {
	return usecases.MapOptions{
		TileURL:       c.TileURL,
		AccessToken:   c.AccessToken,
		MaxNativeZoom: c.MaxNativeZoom,
		MaxZoom:       c.MaxZoom,
		InitialCenter: domain.GeoPoint{Lat: c.CenterLat, Lon: c.CenterLon},
		InitialZoom:   c.Zoom,
		Attribution:   c.Attribution,
		AddMemberURL:  c.AddMemberURL,
		SourceURL:     c.SourceURL,
		ClusterRadius: c.ClusterRadius,
		MinFitRadius:  c.MinFitRadius,
	}
}

// subscribeEvents keeps this instance's views in step with toggles made on
// other instances and with member imports. Reloads published here are
// filtered out by the subscriber.
func subscribeEvents(ctx context.Context, sub *natsadapter.Subscriber, maps *usecases.MapService, members *usecases.MemberService) {
	err := sub.SubscribeReloads(ctx, func(ctx context.Context, clientID string) error {
		maps.Invalidate(clientID)
		return nil
	})
	if err != nil {
		slog.Warn("subscribe reloads failed", "error", err)
	}

	err = sub.SubscribeMembersUpdated(ctx, func(ctx context.Context, count int) error {
		slog.Info("members updated, rebuilding maps", "count", count)
		members.Invalidate(ctx)
		maps.InvalidateAll()
		return nil
	})
	if err != nil {
		slog.Warn("subscribe members failed", "error", err)
	}
}

// reportPoolStats refreshes the pool gauges every 15s.
func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		}
	}
}

// sanitizeInstance turns a hostname into a valid durable consumer name.
func sanitizeInstance(host string) string {
	out := make([]rune, 0, len(host))
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "api"
	}
	return string(out)
}
