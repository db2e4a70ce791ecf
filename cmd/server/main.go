package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/iotsentry/iotsentry/internal/alertstore"
	"github.com/iotsentry/iotsentry/internal/api/rest"
	"github.com/iotsentry/iotsentry/internal/api/websocket"
	"github.com/iotsentry/iotsentry/internal/auth"
	"github.com/iotsentry/iotsentry/internal/config"
	"github.com/iotsentry/iotsentry/internal/devices"
	"github.com/iotsentry/iotsentry/internal/eventbus"
	"github.com/iotsentry/iotsentry/internal/risk"
	"github.com/iotsentry/iotsentry/internal/storage"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Config loaded successfully")

	var store storage.DeviceStore
	switch cfg.Storage.Driver {
	case "postgres":
		store, err = storage.NewPostgresStore(cfg.Storage.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		logger.Info("Database connected successfully")
	default:
		store = storage.NewMemoryStore()
		logger.Info("Using in-memory device store")
	}
	defer store.Close()

	alertClient, err := alertstore.NewClient(cfg.AlertStore, logger)
	if err != nil {
		logger.Fatal("Failed to create alert store client", zap.Error(err))
	}

	engine := risk.NewEngine(alertClient, cfg.AlertStore.Window,
		cfg.Registry.RefreshConcurrency, logger)

	authService := auth.NewService(cfg.Auth, logger)

	wsHub := websocket.NewHub(logger, authService)
	go wsHub.Run()

	service, err := devices.NewService(store, engine, logger)
	if err != nil {
		logger.Fatal("Failed to create device service", zap.Error(err))
	}
	service.AddNotifier(wsHub)

	var publisher *eventbus.Publisher
	if cfg.Events.NATSURL != "" {
		publisher, err = eventbus.NewPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer publisher.Close()
		service.AddNotifier(publisher)
	}

	if cfg.Registry.SeedFile != "" {
		if err := service.LoadSeedFile(context.Background(), cfg.Registry.SeedFile); err != nil {
			logger.Fatal("Failed to load seed devices", zap.Error(err))
		}
	}

	server := rest.NewServer(cfg, service, authService, wsHub, logger)
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	logger.Info("iotsentry started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("iotsentry stopped successfully")
}
