// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "pos-print-bridge/docs"
	"pos-print-bridge/internal/bluetooth"
	"pos-print-bridge/internal/config"
	"pos-print-bridge/internal/database"
	"pos-print-bridge/internal/event"
	"pos-print-bridge/internal/network"
	"pos-print-bridge/internal/preferences"
	"pos-print-bridge/internal/receipt"
	"pos-print-bridge/internal/repository"
	"pos-print-bridge/internal/routes"
	"pos-print-bridge/internal/service"
	"pos-print-bridge/internal/utils"
)

const (
	journalRetention = 30 * 24 * time.Hour
	memoryJournalCap = 500
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	router   *routes.Router
	database *database.DB
	bus      *event.EventBus

	// Printer links
	bluetooth *bluetooth.Manager
	network   *network.Manager
	scanner   *network.Scanner

	// Services
	dispatcher  *service.Dispatcher
	connections *service.ConnectionService
	notifier    service.Notifier

	// Storage
	preferences *preferences.FileStore
	jobs        repository.JobRepository

	ctx    context.Context
	cancel context.CancelFunc
}

// @title POS Print Bridge API
// @version 1.0.0
// @description Receipt printing bridge for Bluetooth and network ESC/POS printers

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8085
// @BasePath /api/v1
func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "pos-print-bridge")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)
	if cfg.IsProduction() && slices.Contains(cfg.Security.AllowedOrigins, "*") {
		logger.Warn("Any page origin may drive the printer bridge", zap.Strings("allowed_origins", cfg.Security.AllowedOrigins))
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{
		config: cfg,
		logger: logger,
		bus:    event.NewEventBus(logger),
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeStorage(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.initializeTransports()
	app.initializeServices()
	app.initializeServer()

	return app, nil
}

// initializeStorage opens the preference file and the job journal
func (app *Application) initializeStorage() error {
	app.preferences = preferences.NewFileStore(app.config.Preferences.Path, app.config.Preferences.MirrorPath, app.logger)

	if host := app.config.Network.DefaultHost; host != "" && app.preferences.Read(app.ctx).IP() == "" {
		if err := app.preferences.Write(app.ctx, preferences.Preferences{preferences.KeyIP: host}); err != nil {
			app.logger.Warn("Failed to seed default network printer", zap.Error(err))
		}
	}

	if !app.config.Database.Enabled {
		app.jobs = repository.NewMemoryJobRepository(memoryJournalCap)
		app.logger.Info("Job journal kept in memory", zap.Int("capacity", memoryJournalCap))
		return nil
	}

	db, err := database.NewConnection(app.config, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	migrator := database.NewMigrator(db, app.logger, &app.config.Database)
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	app.jobs = repository.NewJobRepository(db, app.logger)
	app.logger.Info("Job journal stored in database")
	return nil
}

// initializeTransports creates the Bluetooth and network printer managers
func (app *Application) initializeTransports() {
	platform := bluetooth.NewBlueZPlatform(&app.config.Bluetooth, app.logger)
	app.bluetooth = bluetooth.NewManager(
		platform,
		app.preferences,
		app.bus,
		bluetooth.OptionsFromConfig(&app.config.Bluetooth, app.config.Printer.ChunkSize),
		app.logger,
	)

	app.network = network.NewManager(network.OptionsFromConfig(&app.config.Network), app.preferences, app.bus, app.logger)
	app.scanner = network.NewScanner(&app.config.Network, app.logger)

	app.logger.Info("Printer transports initialized",
		zap.Bool("bluetooth_enabled", app.config.Bluetooth.Enabled),
		zap.Int("network_port", app.config.Network.Port),
	)
}

// initializeServices creates the print pipeline and lifecycle services
func (app *Application) initializeServices() {
	logos := receipt.NewLogoResolver(receipt.LogoOptions{
		AssetURI:        app.config.Logo.AssetURI,
		AssetDir:        app.config.Logo.AssetDir,
		AssetName:       app.config.Logo.AssetName,
		DownloadTimeout: app.config.Logo.DownloadTimeout,
	}, app.logger)

	app.notifier = service.NewBusNotifier(app.bus, app.logger)
	app.dispatcher = service.NewDispatcher(
		receipt.NewBuilder(logos, app.logger),
		app.bluetooth,
		app.network,
		app.jobs,
		app.notifier,
		app.bus,
		service.DispatcherOptionsFromConfig(&app.config.Printer),
		app.logger,
	)
	app.connections = service.NewConnectionService(
		app.bluetooth,
		app.network,
		app.preferences,
		app.config.Bluetooth.BootRetries,
		app.logger,
	)

	app.logger.Info("Services initialized successfully")
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	app.router = routes.NewRouter(app.config, app.logger, routes.Dependencies{
		DB:          app.database,
		Bus:         app.bus,
		Bluetooth:   app.bluetooth,
		Network:     app.network,
		Scanner:     app.scanner,
		Connections: app.connections,
		Dispatcher:  app.dispatcher,
		Jobs:        app.jobs,
		Preferences: app.preferences,
		Notifier:    app.notifier,
	})

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      app.router.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized", zap.String("address", app.server.Addr))
}

// Start runs the server and background services until a shutdown signal arrives
func (app *Application) Start() error {
	go app.bus.Start()

	go func() {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))

		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices()
	app.waitForShutdown()
	return nil
}

// startBackgroundServices starts the print listener, page forwarding and printer boot
func (app *Application) startBackgroundServices() {
	go app.dispatcher.Listen(app.ctx, app.bus)
	go app.router.ForwardEvents(app.ctx)
	go app.connections.Boot(app.ctx)
	go app.startCleanupService()

	app.logger.Info("Background services started")
}

// startCleanupService trims the job journal once an hour
func (app *Application) startCleanupService() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(app.ctx, 5*time.Minute)
			deleted, err := app.jobs.DeleteOlderThan(ctx, time.Now().Add(-journalRetention))
			cancel()

			if err != nil {
				app.logger.Error("Failed to cleanup old print jobs", zap.Error(err))
			} else if deleted > 0 {
				app.logger.Info("Cleaned up old print jobs", zap.Int64("deleted", deleted))
			}
		}
	}
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "pos-print-bridge")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	app.cancel()
	app.connections.Shutdown(ctx)
	app.bus.Stop()

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		}
	}

	app.logger.Info("Application shutdown completed")
	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}
