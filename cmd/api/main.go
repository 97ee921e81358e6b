package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/snaplink/internal/config"
	"github.com/SergeiKhy/snaplink/internal/handler"
	"github.com/SergeiKhy/snaplink/internal/middleware"
	"github.com/SergeiKhy/snaplink/internal/remote"
	"github.com/SergeiKhy/snaplink/internal/repository"
	"github.com/SergeiKhy/snaplink/internal/service"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx := context.Background()

	// Хранилище, выбранное STORAGE_DRIVER
	storage, closeStorage, err := repository.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer closeStorage()
	logger.Info("Storage ready", zap.String("driver", cfg.Storage.Driver))

	registry := repository.NewRegistry(storage, cfg.Storage.Key, cfg.Links.MaxLinks)
	if err := registry.Init(ctx); err != nil {
		logger.Fatal("Failed to init registry", zap.Error(err))
	}

	// Доступ к management API
	gate := middleware.NewTokenGate(middleware.TokenGateConfig{
		StaticKeys: cfg.Auth.APIKeys,
		Optional:   !cfg.Auth.Required,
	})

	// Удалённое логирование (Worker Pool); токен берётся из последней успешной аутентификации
	shipper := remote.NewLogShipper(remote.ShipperConfig{
		Endpoint: cfg.Log.Endpoint,
		Token:    gate.Latest,
	}, logger)
	shipper.Start()
	defer shipper.Stop()

	// Инициализация сервисов
	linkService := service.NewLinkService(
		registry,
		service.NewShortcodeGenerator(cfg.Links.CodeLength),
		shipper,
		service.LinkServiceConfig{
			BaseURL:         cfg.App.BaseURL,
			DefaultValidity: cfg.Links.DefaultValidity,
			MaxBatch:        cfg.Links.MaxLinks,
			Stack:           cfg.Log.Stack,
		},
		logger,
	)
	resolver := service.NewResolver(registry, shipper, service.ResolverConfig{Stack: cfg.Log.Stack}, logger)

	// Инициализация middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})
	defer rateLimiter.Stop()

	handlers := handler.Handlers{
		Links:       handler.NewLinkHandler(linkService, resolver, cfg.App.BaseURL, logger),
		Health:      handler.NewHealthHandler(storage, cfg.Storage.Driver),
		RateLimiter: rateLimiter,
		Gate:        gate.Middleware(),
	}
	if cfg.Auth.BaseURL != "" {
		handlers.Auth = handler.NewAuthHandler(remote.NewAuthClient(cfg.Auth.BaseURL, nil), gate, logger)
		logger.Info("Token authentication enabled", zap.String("auth_base_url", cfg.Auth.BaseURL))
	}
	if len(cfg.Auth.APIKeys) > 0 {
		logger.Info("API key authentication enabled", zap.Int("keys_count", len(cfg.Auth.APIKeys)))
	}

	// Настройка роутера
	router := handler.NewRouter(handlers, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
