package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/darkodi/shortlink/internal/auth"
	"github.com/darkodi/shortlink/internal/cache"
	"github.com/darkodi/shortlink/internal/config"
	"github.com/darkodi/shortlink/internal/counter"
	"github.com/darkodi/shortlink/internal/handler"
	"github.com/darkodi/shortlink/internal/logger"
	"github.com/darkodi/shortlink/internal/middleware"
	"github.com/darkodi/shortlink/internal/repository"
	"github.com/darkodi/shortlink/internal/service"
)

func main() {
	// ============================================================
	// LOAD CONFIGURATION
	// ============================================================
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	log.Info("starting shortlink",
		"environment", cfg.App.Environment,
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"base_url", cfg.App.BaseURL,
	)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx := context.Background()

	// ============================================================
	// DATABASE
	// ============================================================
	db, err := repository.Open(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}()

	if err := repository.Migrate(ctx, db, log); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// ============================================================
	// REDIS (optional shared cache tier and counter backend)
	// ============================================================
	var redisClient *redis.Client
	var shared cache.Shared
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("failed to close redis client", "error", err)
			}
		}()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// The cache tier fails open; the counter backend check below
			// decides whether Redis is mandatory.
			log.Warn("redis unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
		} else {
			log.Info("redis connected", "addr", cfg.Redis.Addr)
		}

		redisCfg := cache.DefaultRedisConfig()
		redisCfg.KeyPrefix = cfg.Redis.KeyPrefix
		shared = cache.NewRedis(redisClient, redisCfg, log)
	}

	urlCache := cache.NewTiered(cfg.Cache.Capacity, shared, log)

	// ============================================================
	// ALIAS COUNTER
	// ============================================================
	var aliasCounter service.AliasCounter
	switch cfg.Counter.Backend {
	case "redis":
		aliasCounter, err = counter.NewRedis(ctx, redisClient, "counter:"+counter.DefaultName, cfg.Counter.Start)
	default:
		aliasCounter, err = counter.NewSQL(ctx, db, counter.DefaultName, cfg.Counter.Start)
	}
	if err != nil {
		return fmt.Errorf("init alias counter: %w", err)
	}
	log.Info("alias counter ready", "backend", cfg.Counter.Backend, "start", cfg.Counter.Start)

	// ============================================================
	// SERVICES
	// ============================================================
	userRepo := repository.NewUserRepository(db)
	users := service.NewUserService(userRepo, log)
	urls := service.NewURLService(service.Deps{
		URLs:             repository.NewURLRepository(db),
		Users:            userRepo,
		Counter:          aliasCounter,
		Cache:            urlCache,
		Logger:           log,
		BaseURL:          cfg.App.BaseURL,
		MaxAliasAttempts: cfg.Counter.MaxAttempts,
	})

	provider, err := auth.NewProvider(&cfg.Auth, repository.NewCredentialRepository(db), userRepo)
	if err != nil {
		return fmt.Errorf("init auth provider: %w", err)
	}
	authSvc := auth.NewService(provider, users, log)
	log.Info("auth provider ready", "provider", cfg.Auth.Provider)

	// ============================================================
	// HTTP
	// ============================================================
	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:     cfg.RateLimit.Rate,
			Burst:    cfg.RateLimit.Burst,
			Interval: cfg.RateLimit.Interval,
			Cleanup:  cfg.RateLimit.Cleanup,
		}, log)
		defer rateLimiter.Stop()
		log.Info("rate limiter enabled",
			"rate", cfg.RateLimit.Rate,
			"burst", cfg.RateLimit.Burst,
		)
	}

	urlHandler := handler.NewURLHandler(urls, log, cfg.Clicks.Timeout)
	// Runs before the deferred db.Close on every exit path.
	defer urlHandler.Wait()
	router := handler.NewRouter(handler.RouterConfig{
		URLs:        urlHandler,
		Auth:        handler.NewAuthHandler(authSvc, users, log),
		Verifier:    authSvc,
		Quota:       urls,
		RateLimiter: rateLimiter,
		DB:          db,
		Logger:      log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel to track server errors
	serverErr := make(chan error, 1)

	go func() {
		log.Info("server listening", "addr", server.Addr)
		serverErr <- server.ListenAndServe()
	}()

	// ============================================================
	// WAIT FOR SHUTDOWN OR ERROR
	// ============================================================
	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)

	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				log.Error("forced shutdown failed", "error", err)
			}
		}
		return nil
	}
}
