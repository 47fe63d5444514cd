// internal/routes/routes.go
package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"pos-print-bridge/internal/bluetooth"
	"pos-print-bridge/internal/config"
	"pos-print-bridge/internal/database"
	"pos-print-bridge/internal/event"
	"pos-print-bridge/internal/handler"
	"pos-print-bridge/internal/middleware"
	"pos-print-bridge/internal/network"
	"pos-print-bridge/internal/preferences"
	"pos-print-bridge/internal/repository"
	"pos-print-bridge/internal/service"
	"pos-print-bridge/internal/utils"
)

// Dependencies are the components the HTTP surface drives
type Dependencies struct {
	DB          *database.DB
	Bus         *event.EventBus
	Bluetooth   *bluetooth.Manager
	Network     *network.Manager
	Scanner     *network.Scanner
	Connections *service.ConnectionService
	Dispatcher  *service.Dispatcher
	Jobs        repository.JobRepository
	Preferences *preferences.FileStore
	Notifier    service.Notifier
}

// Router holds all dependencies for routing
type Router struct {
	config *config.Config
	logger *zap.Logger
	deps   Dependencies

	wsHandler *handler.WebSocketHandler
}

// NewRouter creates a new router instance
func NewRouter(config *config.Config, logger *zap.Logger, deps Dependencies) *Router {
	return &Router{
		config: config,
		logger: logger,
		deps:   deps,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsDebugEnabled() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// ForwardEvents pushes bus events to bridge pages until ctx is done.
// SetupRouter must run first.
func (r *Router) ForwardEvents(ctx context.Context) {
	if r.wsHandler != nil {
		r.wsHandler.Forward(ctx)
	}
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	bridgeHandler := handler.NewBridgeHandler(&r.config.Bridge, r.deps.Bus, r.deps.Notifier, r.logger)
	healthHandler := handler.NewHealthHandler(r.deps.DB, r.deps.Connections, r.config, r.logger)
	printerHandler := handler.NewPrinterHandler(
		r.deps.Bluetooth,
		r.deps.Network,
		r.deps.Scanner,
		r.deps.Connections,
		r.deps.Notifier,
		r.logger,
	)
	printHandler := handler.NewPrintHandler(r.deps.Dispatcher, r.deps.Jobs, r.logger)
	preferencesHandler := handler.NewPreferencesHandler(r.deps.Preferences, r.logger)
	r.wsHandler = handler.NewWebSocketHandler(bridgeHandler, r.deps.Bus, &r.config.Security, r.logger)

	// Health check routes
	healthHandler.RegisterRoutes(router)

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	bridgeHandler.RegisterRoutes(apiV1)
	printerHandler.RegisterRoutes(apiV1)
	printHandler.RegisterRoutes(apiV1)
	preferencesHandler.RegisterRoutes(apiV1)

	// WebSocket routes
	r.wsHandler.RegisterRoutes(router.Group("/ws"))

	// Documentation routes
	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
