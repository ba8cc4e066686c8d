// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

// Command api is the entry point for the Sesame token service.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load and validate configuration from environment variables.
//  3. Connect the refresh store (Redis, PostgreSQL, or in-memory).
//  4. Build the HS256 key store.
//  5. Wire the token service and HTTP handlers.
//  6. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minhvu/sesame/internal/api"
	"github.com/minhvu/sesame/internal/platform/config"
	"github.com/minhvu/sesame/internal/platform/constants"
	pgstore "github.com/minhvu/sesame/internal/platform/postgres"
	redisstore "github.com/minhvu/sesame/internal/platform/redis"
	"github.com/minhvu/sesame/internal/platform/sec"
	"github.com/minhvu/sesame/internal/token"
	"github.com/minhvu/sesame/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "sesame"))
	slog.SetDefault(log)

	log.Info("[Sesame] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "sesame"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Refresh Store ──────────────────────────────────────────────────
	// Redis when REDIS_URL is set, PostgreSQL when DATABASE_URL is set,
	// in-memory otherwise (single-process deployments and development).
	var (
		refreshStore  token.RefreshStore
		redisCodes    *auth.RedisTwoFACodeStore
		checkDatabase func() error
		checkCache    func() error
	)

	switch {
	case cfg.RedisURL != "":
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()

		refreshStore = token.NewRedisRefreshStore(rdb)
		redisCodes = auth.NewRedisTwoFACodeStore(rdb)
		checkCache = func() error {
			return redisstore.Ping(context.Background(), rdb)
		}
		log.Info("refresh_store_selected", slog.String("backend", "redis"))

	case cfg.DatabaseURL != "":
		pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
		must(log, err, "connect to postgres")
		defer func() {
			log.Info("closing postgres pool")
			pool.Close()
		}()

		store := token.NewPostgresRefreshStore(pool)
		must(log, store.EnsureSchema(startupCtx), "ensure token schema")

		refreshStore = store
		checkDatabase = func() error {
			return pgstore.Ping(context.Background(), pool)
		}
		log.Info("refresh_store_selected", slog.String("backend", "postgres"))

	default:
		refreshStore = token.NewMemoryRefreshStore()
		log.Warn("refresh_store_selected",
			slog.String("backend", "memory"),
			slog.String("note", "sessions do not survive restarts"),
		)
	}

	// ── 4. Key Store ──────────────────────────────────────────────────────
	signingKeys := make([]sec.SigningKey, 0, len(cfg.JWTKeys))
	for _, key := range cfg.JWTKeys {
		signingKeys = append(signingKeys, sec.SigningKey{KID: key.KID, Secret: key.Secret})
	}
	keyStore, err := sec.NewKeyStore(signingKeys, cfg.JWTActiveKID)
	must(log, err, "build jwt key store")

	// ── 5. Token Service ──────────────────────────────────────────────────
	tokenService := token.NewService(cfg, keyStore, refreshStore)
	tokenHandler := token.NewHandler(tokenService, cfg)

	// ── 6. Login Flow ─────────────────────────────────────────────────────
	// The login routes need a user store. Without SEED_USERS_JSON they stay
	// unmounted; the engine still serves rotation/verify/logout for sessions
	// issued elsewhere.
	userStore, err := auth.StaticUserStoreFromJSON(cfg.SeedUsersJSON)
	must(log, err, "parse seed users")

	var authHandler *auth.Handler
	if userStore != nil {
		var codes auth.TwoFACodeStore = auth.NewMemoryTwoFACodeStore()
		if redisCodes != nil {
			codes = redisCodes
		}
		authService := auth.NewService(userStore, codes, auth.NewLogEmailClient(log), tokenService)
		authHandler = auth.NewHandler(authService, tokenHandler)
		log.Info("login_routes_enabled")
	} else {
		log.Info("login_routes_disabled", slog.String("reason", "no user store configured"))
	}

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: checkDatabase,
		CheckCache:    checkCache,
	}, log)

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Token:     tokenHandler,
		Auth:      authHandler,
	}

	server := api.NewServer(cfg, log, tokenService, handlers)

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
