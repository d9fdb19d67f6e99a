package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"stock-trading-bot/config"
	"stock-trading-bot/internal/engine"
	"stock-trading-bot/internal/events"
	"stock-trading-bot/internal/store"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ProductionMode bool
	AllowedOrigins []string
}

// Server exposes the engine and trade history over HTTP and pushes
// live events over WebSocket.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	engine     *engine.Engine
	repo       *store.Repository // nil when persistence is disabled
	appConfig  *config.Config    // nil hides the config endpoint's detail
	hub        *Hub
	logger     zerolog.Logger
}

// NewServer creates the API server and wires the WebSocket hub to the
// event bus. repo and appConfig may be nil.
func NewServer(cfg ServerConfig, eng *engine.Engine, repo *store.Repository, appConfig *config.Config, bus *events.EventBus, logger zerolog.Logger) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	log := logger.With().Str("component", "api").Logger()

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	hub := NewHub(log)
	go hub.Run()
	if bus != nil {
		bus.SubscribeAll(hub.BroadcastEvent)
	}

	s := &Server{
		router:    router,
		engine:    eng,
		repo:      repo,
		appConfig: appConfig,
		hub:       hub,
		logger:    log,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.POST("/start", s.handleStart)
		api.POST("/stop", s.handleStop)
		api.POST("/restart", s.handleRestart)
		api.POST("/reset", s.handleReset)
		api.GET("/positions", s.handlePositions)
		api.GET("/config", s.handleConfig)
		api.GET("/history", s.handleHistory)
		api.GET("/statistics", s.handleStatistics)
	}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
