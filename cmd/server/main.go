package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"uchat/internal/config"
	"uchat/internal/httpserver"
	"uchat/internal/logging"
	"uchat/internal/metrics"
	"uchat/internal/security"
	"uchat/internal/service"
	"uchat/internal/store/postgres"
	"uchat/internal/store/sqlite"
	"uchat/internal/store/sqlstore"
	"uchat/internal/ws"
)

// @title           uchat API
// @version         1.0
// @description     End-to-end encrypted messaging backend. Realtime operations are served over the /ws websocket.

// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		FilePath:    cfg.LogFilePath,
		MaxSizeMB:   cfg.LogMaxSizeMB,
		MaxBackups:  cfg.LogMaxBackups,
		MaxAgeDays:  cfg.LogMaxAgeDays,
		Compress:    cfg.LogCompress,
		Component:   cfg.AppName,
	})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func openStore(cfg *config.Config) (*sql.DB, sqlstore.Dialect, error) {
	switch cfg.DBDriver {
	case "postgres":
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return db, postgres.Dialect{}, nil
	default:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return db, sqlite.Dialect{}, nil
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, dialect, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	store := sqlstore.New(db, dialect)
	logger.Info("database ready", zap.String("driver", cfg.DBDriver))

	// Security components
	tokenSvc := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	hasher := security.NewPasswordHasher(security.Argon2Params{
		MemoryKiB: uint32(cfg.Argon2Memory),
		Time:      uint32(cfg.Argon2Time),
		Threads:   uint8(cfg.Argon2Threads),
	})
	keys := security.NewKeyGenerator(cfg.RSAKeyBits)

	rec := metrics.NewRecorder()
	registry := ws.NewRegistry(rec, logger)

	authSvc := service.NewAuthService(store.Users, hasher, keys, tokenSvc, logger)
	userSvc := service.NewUserService(store.Users, service.KeyCacheOptions{Size: cfg.KeyCacheSize, TTL: cfg.KeyCacheTTL})
	convSvc := service.NewConversationService(store.Chats, store.Users, registry, logger)
	msgSvc := service.NewMessageService(store.Messages, store.Chats, registry, rec, logger)

	hostname, _ := os.Hostname()
	gateway := ws.NewGateway(registry, ws.Services{
		Auth:          authSvc,
		Users:         userSvc,
		Conversations: convSvc,
		Messages:      msgSvc,
	}, rec, ws.Options{
		AllowedOrigins:  cfg.CORSOrigins,
		SendBuffer:      cfg.WSSendBuffer,
		MaxMessageBytes: cfg.WSMaxMessageBytes,
		ServerID:        fmt.Sprintf("%s-%d", hostname, os.Getpid()),
	}, logger)

	router := httpserver.NewRouter(httpserver.Deps{
		Config:        cfg,
		Store:         store,
		Users:         store.Users,
		Tokens:        tokenSvc,
		Auth:          authSvc,
		Directory:     userSvc,
		Conversations: convSvc,
		Messages:      msgSvc,
		Gateway:       gateway,
		Metrics:       rec,
		Logger:        logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go ws.NewHeartbeat(registry, cfg.HeartbeatInterval, logger).Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.HTTPAddr()), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	if err := gateway.Shutdown(shutdownCtx); err != nil {
		logger.Warn("websocket shutdown incomplete", zap.Error(err))
	}
	return nil
}
