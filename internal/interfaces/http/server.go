// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	Mode               string
	MaxAttachmentBytes int64

	// AllowHeaderIdentity accepts X-Employee-Code when no bearer token is sent
	AllowHeaderIdentity bool
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		Mode:               gin.ReleaseMode,
		MaxAttachmentBytes: 10 << 20,
	}
}

// Dependencies are the application services the adapter calls into
type Dependencies struct {
	Roles      service.RoleResolver
	Drafts     service.DraftService
	Submission service.SubmissionService
	Approval   service.ApprovalService
	Amount     service.AmountService
	Queue      service.QueueService
	Status     service.StatusService
	Directory  service.DirectoryService

	Identity port.IdentityProvider
	Exporter port.WorkQueueExporter

	// Health reports component status for /health; nil means always healthy
	Health func() (bool, interface{})
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Dependencies
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	mode := config.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	server := &Server{
		config: config,
		router: gin.New(),
		deps:   deps,
		logger: logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware logs one line per request
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.deps, s.config.MaxAttachmentBytes, s.logger)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	api.Use(identityMiddleware(s.deps.Identity, s.deps.Roles, s.config.AllowHeaderIdentity, s.logger))
	{
		api.GET("/me", h.Me)

		ope := api.Group("/ope")
		{
			ope.POST("/drafts", h.SaveDraft)
			ope.POST("/drafts/batch", h.SaveDrafts)
			ope.GET("/drafts", h.ListDrafts)
			ope.PUT("/drafts/:entry_id", h.UpdateDraft)
			ope.DELETE("/drafts/:entry_id", h.DeleteDraft)

			ope.POST("/submit", h.SubmitFinal)

			ope.GET("/status/:employee_code", h.GetApprovalStatus)
			ope.GET("/history/:employee_code", h.GetEntryHistory)

			ope.POST("/approvals/:employee_code/approve", h.ApproveAtCurrentLevel)
			ope.POST("/approvals/:employee_code/reject", h.RejectAtCurrentLevel)
			ope.POST("/entries/:entry_id/approve", h.ApproveSingleEntry)
			ope.POST("/entries/:entry_id/reject", h.RejectSingleEntry)

			ope.PUT("/entries/:entry_id/amount", h.EditEntryAmount)
			ope.PUT("/months/total", h.EditMonthTotal)

			ope.GET("/queue/:status", h.ListWorkQueue)
			ope.GET("/queue/:status/export", h.ExportWorkQueue)
			ope.GET("/pending", h.ListPendingApprovals)
		}

		api.POST("/directory/import", h.ImportDirectory)
	}
}

// Start serves until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
