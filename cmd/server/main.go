package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sgcsc-backend/internal/auth"
	"sgcsc-backend/internal/config"
	"sgcsc-backend/internal/database"
	"sgcsc-backend/internal/logger"
	"sgcsc-backend/internal/server"
	"sgcsc-backend/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	zl := logger.New(cfg.LogLevel, cfg.IsProduction())
	defer zl.Sync()

	ctx := context.Background()

	var st store.Store
	switch cfg.StoreDriver {
	case "memory":
		zl.Warn("using in-memory store, data is lost on restart")
		st = store.NewMemory()
	default:
		db, err := database.Open(cfg, zl)
		if err != nil {
			zl.Fatal("database", zap.Error(err))
		}
		st = store.NewGorm(db)
	}

	var revoker auth.Revoker
	rdb, err := database.OpenRedis(ctx, cfg)
	switch {
	case err != nil:
		zl.Fatal("redis", zap.Error(err))
	case rdb == nil:
		zl.Warn("REDIS_ADDR not set, logouts are kept in process memory only")
		revoker = auth.NewMemoryRevoker()
	default:
		defer rdb.Close()
		revoker = auth.NewRedisRevoker(rdb)
	}

	srv := server.New(server.Deps{Config: cfg, Store: st, Revoker: revoker, Log: zl})
	if err := srv.SeedAdmin(ctx, cfg, zl); err != nil {
		zl.Fatal("seed admin", zap.Error(err))
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		zl.Info("shutting down")
		if err := srv.App.Shutdown(); err != nil {
			zl.Error("shutdown", zap.Error(err))
		}
	}()

	addr := ":" + cfg.HTTPPort
	zl.Info("server listening", zap.String("addr", addr), zap.String("store", cfg.StoreDriver))
	if err := srv.App.Listen(addr); err != nil {
		log.Fatal(err)
	}
}
