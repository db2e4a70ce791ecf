package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iotsentry/iotsentry/internal/api/websocket"
	"github.com/iotsentry/iotsentry/internal/auth"
	"github.com/iotsentry/iotsentry/internal/config"
	"github.com/iotsentry/iotsentry/internal/devices"
)

const serviceVersion = "1.0.0"

type Server struct {
	router      *gin.Engine
	devices     *devices.Service
	authService *auth.Service
	wsHub       *websocket.Hub
	logger      *zap.Logger
	server      *http.Server
}

func NewServer(cfg *config.Config, svc *devices.Service, authService *auth.Service, wsHub *websocket.Hub, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:      gin.New(),
		devices:     svc,
		authService: authService,
		wsHub:       wsHub,
		logger:      logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes
	s.router.GET("/", s.root)
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		// ==================== AUTH (PUBLIC) ====================
		v1.POST("/auth/login", s.login)

		// ==================== DEVICES ====================
		deviceRoutes := v1.Group("/devices")
		deviceRoutes.Use(s.authService.Middleware())
		{
			// Read operations: viewer+
			deviceRoutes.GET("", s.authService.RequireRole(auth.RoleViewer), s.listDevices)
			deviceRoutes.GET("/stats/summary", s.authService.RequireRole(auth.RoleViewer), s.getDeviceStats)
			deviceRoutes.GET("/:id", s.authService.RequireRole(auth.RoleViewer), s.getDevice)

			// Mutations: admin only
			deviceRoutes.POST("", s.authService.RequireRole(auth.RoleAdmin), s.registerDevice)
			deviceRoutes.PUT("/:id", s.authService.RequireRole(auth.RoleAdmin), s.updateDevice)
			deviceRoutes.DELETE("/:id", s.authService.RequireRole(auth.RoleAdmin), s.deleteDevice)
		}

		// ==================== SYSTEM (VIEWER+) ====================
		systemRoutes := v1.Group("/system")
		systemRoutes.Use(s.authService.Middleware())
		systemRoutes.Use(s.authService.RequireRole(auth.RoleViewer))
		{
			systemRoutes.GET("/status", s.getSystemStatus)
		}

		// ==================== WEBSOCKET (auth via first message) ====================
		v1.GET("/ws/live", s.wsLiveConnection)
	}
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "IoT Security Service API",
		"version": serviceVersion,
	})
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "iotsentry",
	})
}

func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}
