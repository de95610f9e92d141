package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/example/karatcart/internal/cache"
	"github.com/example/karatcart/internal/config"
	"github.com/example/karatcart/internal/database"
	"github.com/example/karatcart/internal/handlers"
	"github.com/example/karatcart/internal/logging"
	"github.com/example/karatcart/internal/ordering"
	"github.com/example/karatcart/internal/pricing"
	"github.com/example/karatcart/internal/routes"
	"github.com/example/karatcart/internal/services"
)

const sessionIdleTTL = 2 * time.Hour

func main() {
	cfg := config.Load()

	zlog, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	store, closeStore, err := openRatesCache(cfg, zlog)
	if err != nil {
		zlog.Fatal("rates cache init failed", zap.String("backend", cfg.RatesCache), zap.Error(err))
	}
	defer closeStore()

	marketplace := services.NewMarketplace(cfg.MarketplaceURL, cfg.HTTPTimeout, zlog)
	rates := services.NewMetalRateService(cfg.MetalRatesURL, cfg.HTTPTimeout, store, zlog)
	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, zlog)

	reconciler := ordering.NewReconciler(
		services.NewOrdersAPI(marketplace),
		services.NewCatalogAPI(marketplace),
		rates,
		telegram,
		ordering.Config{
			Totals:          pricing.TotalsPolicy{VATRate: cfg.VATRate, DeliveryFee: cfg.DeliveryFee},
			EditDebounce:    cfg.EditDebounce,
			WaitTimeout:     cfg.OrderWaitTimeout,
			WaitPoll:        cfg.OrderWaitPoll,
			LoadConcurrency: cfg.LoadConcurrency,
		},
		zlog,
	)
	sessions := ordering.NewSessions(reconciler)

	app := fiber.New(fiber.Config{
		AppName:           "Karatcart Backend",
		ErrorHandler:      handlers.ErrorHandler(zlog),
		EnablePrintRoutes: cfg.IsDevelopment(),
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, cfg, reconciler, sessions)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go evictIdleSessions(ctx, sessions)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			zlog.Warn("fiber shutdown error", zap.Error(err))
		}
	}()

	zlog.Info("starting server", zap.String("port", cfg.AppPort), zap.String("rates_cache", cfg.RatesCache))
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		zlog.Error("fiber.Listen error", zap.Error(err))
	}

	sessions.Close()
	zlog.Info("server stopped")
}

func openRatesCache(cfg *config.Config, zlog *zap.Logger) (cache.Store, func(), error) {
	switch cfg.RatesCache {
	case "redis":
		r, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	case "memory":
		return cache.NewMemory(), func() {}, nil
	case "postgres":
		db, err := database.Connect(cfg.DatabaseURL, zlog)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewGorm(db), func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown rates cache %q", cfg.RatesCache)
	}
}

func evictIdleSessions(ctx context.Context, sessions *ordering.Sessions) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.EvictIdle(sessionIdleTTL)
		}
	}
}
