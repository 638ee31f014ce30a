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

	"github.com/samirrijal/groupmap/internal/adapters/geoip"
	"github.com/samirrijal/groupmap/internal/adapters/http"
	natsadapter "github.com/samirrijal/groupmap/internal/adapters/nats"
	"github.com/samirrijal/groupmap/internal/adapters/postgres"
	"github.com/samirrijal/groupmap/internal/adapters/valkey"
	"github.com/samirrijal/groupmap/internal/core/ports"
	"github.com/samirrijal/groupmap/internal/core/usecases"
	"github.com/samirrijal/groupmap/internal/pkg/config"
	"github.com/samirrijal/groupmap/internal/pkg/logging"
	"github.com/samirrijal/groupmap/internal/pkg/metrics"
	"github.com/samirrijal/groupmap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("groupmap-api")
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

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go reportPoolStats(ctx, db)

	// Cache
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	// NATS
	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	// IP geolocation
	ips := geoip.Disabled()
	if cfg.GeoIP.Enabled {
		if ips, err = geoip.Open(cfg.GeoIP.DBPath); err != nil {
			slog.Warn("geoip database unavailable, ip lookups disabled", "path", cfg.GeoIP.DBPath, "error", err)
			ips = geoip.Disabled()
		}
	}
	defer ips.Close()

	// Use cases
	repo := postgres.NewInvolvementRepo(db)
	involvements := usecases.NewInvolvementService(repo, repo, cacheSvc, usecases.InvolvementConfig{
		DefaultLimit: cfg.Nearby.DefaultLimit,
		MaxLimit:     cfg.Nearby.MaxLimit,
		CacheTTL:     cfg.Cache.TTLSeconds,
	})
	maps := usecases.NewMapService(involvements, usecases.MapConfig{
		MinZoom:                  cfg.Map.MinZoom,
		MaxZoom:                  cfg.Map.MaxZoom,
		Width:                    cfg.Map.Width,
		Height:                   cfg.Map.Height,
		ZoomStep:                 cfg.Map.ZoomStep(),
		SmallGroupMaxInitialZoom: cfg.Map.SmallGroupMaxInitialZoom,
	}, slog.Default())

	// Sync notifications invalidate cached listings
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats subscriber unavailable, cache entries expire by ttl only", "error", err)
	} else {
		defer sub.Close()
		if err := sub.SubscribeSyncCompleted(ctx, involvements.HandleSyncCompleted); err != nil {
			slog.Warn("subscribe sync completed", "error", err)
		}
	}

	deps := &http.Dependencies{
		Involvements: involvements,
		Geolocate:    usecases.NewGeolocateService(ips, cacheSvc, cfg.Cache.TTLSeconds),
		Maps:         maps,
		Broadcast:    usecases.NewEventBroadcaster(events),
		FarAwayKm:    cfg.Nearby.FarAwayKm,
		DB:           db,
		Cache:        cache,
	}
	if pub != nil {
		deps.NATS = pub.Conn()
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "GroupMap API",
		ProxyHeader:  fiber.HeaderXForwardedFor,
	})

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

	slog.Info("shutdown signal received, draining connections", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Stat())
		}
	}
}
