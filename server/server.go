// Package server содержит HTTP сервер подбора артикулов
package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rfq-hawkeye-materials/determine-part-numbers/database"
	"github.com/rfq-hawkeye-materials/determine-part-numbers/resolution"
	"github.com/rfq-hawkeye-materials/determine-part-numbers/server/middleware"
)

// HistoryReader чтение журнала подборов для API истории
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]database.HistoryEntry, error)
}

// Config конфигурация HTTP сервера
type Config struct {
	Port              int
	HeartbeatInterval time.Duration
	ShutdownTimeout   time.Duration
}

// Server HTTP сервер приложения
type Server struct {
	config     Config
	orch       *resolution.Orchestrator
	history    HistoryReader
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer создает сервер. history может быть nil — тогда API истории
// возвращает 404.
func NewServer(cfg Config, orch *resolution.Orchestrator, history HistoryReader) *Server {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = resolution.DefaultHeartbeatInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		config:  cfg,
		orch:    orch,
		history: history,
		logger:  slog.Default().With("component", "server"),
	}
}

// Handler собирает Gin engine с middleware и маршрутами
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(middleware.GinRequestIDMiddleware())
	engine.Use(middleware.GinCORSMiddleware())
	engine.Use(middleware.GinLoggerMiddleware())
	engine.Use(middleware.GinRecoveryMiddleware())

	engine.GET("/health", s.handleHealth)

	api := engine.Group("/api")
	{
		parts := api.Group("/parts")
		{
			parts.POST("/lookup", s.handleLookup)
			parts.GET("/lookup/stream", s.handleLookupStream)
			parts.POST("/lookup/upload", middleware.GinGzipMiddleware(), s.handleLookupUpload)
			parts.GET("/history", s.handleHistory)
		}
	}

	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return engine
}

// Start запускает HTTP сервер и блокируется до его остановки.
// WriteTimeout отсутствует: SSE потоки живут дольше любого разумного
// таймаута записи, keep-alive обеспечивается heartbeat кадрами.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	log.Printf("Starting HTTP server on %s...", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown корректно останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// handleHealth возвращает статус сервиса
// GET /health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"vendors": len(s.orch.Vendors()),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
