// Package http provides the HTTP adapter for the application layer.
// Handlers translate requests into service calls and map service errors
// onto status codes.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/currency"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// RateProvider resolves exchange rates
type RateProvider interface {
	GetRate(ctx context.Context, source, target string) (decimal.Decimal, bool)
}

// RateCache is the in-process rate cache
type RateCache interface {
	Invalidate(source string)
	Clear()
}

// CurrencyLister lists the currencies expenses may be submitted in
type CurrencyLister interface {
	List(ctx context.Context) ([]currency.Currency, bool)
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxUploadMB  int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		Mode:         gin.ReleaseMode,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		MaxUploadMB:  10,
	}
}

// Services bundles the application services the API exposes
type Services struct {
	Expenses   service.ExpenseService
	Users      service.UserService
	Company    service.CompanyService
	Reports    service.ReportService
	Receipts   service.ReceiptService
	Rates      RateProvider
	RateCache  RateCache
	Currencies CurrencyLister // optional
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	if config.Mode == "" {
		config.Mode = gin.ReleaseMode
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 10
	}
	gin.SetMode(config.Mode)

	router := gin.New()
	router.MaxMultipartMemory = config.MaxUploadMB << 20

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		logger:   logger,
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

// loggingMiddleware creates a logging middleware
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
			"user_id", c.GetHeader(HeaderUserID),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.config.MaxUploadMB<<20, s.logger)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	{
		api.GET("/company", h.GetCompany)
		api.GET("/currencies", h.ListCurrencies)
		api.GET("/rates/:source/:target", h.GetRate)
		api.DELETE("/rates/cache", h.ClearRateCache)
	}

	authed := api.Group("", h.RequireActor())
	{
		authed.PUT("/company", h.RequireAdmin(), h.UpdateCompany)

		authed.GET("/users", h.ListUsers)
		authed.GET("/users/:id", h.GetUser)
		authed.POST("/users", h.RequireAdmin(), h.CreateUser)
		authed.PUT("/users/:id", h.RequireAdmin(), h.UpdateUser)

		authed.POST("/expenses", h.CreateExpense)
		authed.GET("/expenses", h.ListExpenses)
		authed.GET("/expenses/:id", h.GetExpense)
		authed.GET("/expenses/:id/next-approver", h.GetNextApprover)
		authed.POST("/expenses/:id/decision", h.ApplyDecision)

		authed.POST("/receipts/extract", h.ExtractReceipt)

		authed.GET("/reports", h.GetReport)
		authed.GET("/reports/export", h.ExportReport)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
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
