package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go-pos-api/internal/cache"
	"go-pos-api/internal/config"
	"go-pos-api/internal/observability"
	"go-pos-api/internal/repository"
	"go-pos-api/internal/server"
	"go-pos-api/internal/ws"
	"go-pos-api/pkg/database"
	"go-pos-api/pkg/jwt"
	"go-pos-api/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	// 1. Load Env
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zapLog, err := logger.New(logger.LogConfig{
		Level:       cfg.LogLevel,
		Environment: cfg.AppEnv,
		ServiceName: cfg.AppName,
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zapLog.Sync() //nolint:errcheck
	zap.ReplaceGlobals(zapLog)

	// 2. Setup Database
	db, err := database.Connect(cfg, zapLog)
	if err != nil {
		zapLog.Fatal("failed to connect database", zap.Error(err))
	}
	if cfg.AutoMigrate {
		// Hati-hati di production, sebaiknya pakai posctl migrate
		if err := repository.Migrate(db); err != nil {
			zapLog.Fatal("auto migrate failed", zap.Error(err))
		}
	}

	// 3. Seed default privileges, roles, and owner account
	if err := repository.SeedAccessControl(db); err != nil {
		zapLog.Warn("failed to seed access control", zap.Error(err))
	}
	created, err := repository.SeedOwner(db, cfg.SeedTenantName, cfg.SeedAdminEmail, cfg.SeedAdminPass)
	switch {
	case err != nil:
		zapLog.Warn("failed to seed owner", zap.Error(err))
	case created:
		zapLog.Info("owner account created", zap.String("email", cfg.SeedAdminEmail), zap.String("tenant", cfg.SeedTenantName))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Metrics, cache and WebSocket hub
	metrics := observability.NewMetrics("pos")
	productCache, err := cache.Open(ctx, cfg, metrics, zapLog)
	if err != nil {
		zapLog.Fatal("failed to open cache", zap.Error(err), zap.String("driver", cfg.CacheDriver))
	}
	defer productCache.Close()

	wsHub := ws.NewHub(zapLog)
	go wsHub.Run(ctx)

	sqlDB, err := db.DB()
	if err != nil {
		zapLog.Fatal("failed to get sql.DB", zap.Error(err))
	}

	// 5. Wiring
	app := server.New(server.Deps{
		AppName:     cfg.AppName,
		DB:          db,
		Log:         zapLog,
		Tokens:      jwt.NewManager(cfg.JWTSecret, cfg.JWTTTL),
		Cache:       productCache,
		Hub:         wsHub,
		Metrics:     metrics,
		IdleLimit:   cfg.SessionIdleLimit,
		HealthCheck: sqlDB.PingContext,
	})

	// 6. Graceful Shutdown
	errCh := make(chan error, 1)
	go func() {
		zapLog.Info("http server listening", zap.String("port", cfg.Port), zap.String("cache", cfg.CacheDriver))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			zapLog.Error("http server stopped", zap.Error(err))
		}
	}

	zapLog.Info("shutting down server")
	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		zapLog.Error("server forced to shutdown", zap.Error(err))
	}
	if err := sqlDB.Close(); err != nil {
		zapLog.Warn("failed to close database", zap.Error(err))
	}
	zapLog.Info("server exited")
}
