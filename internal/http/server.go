// Package http provides the HTTP server that exposes the compliance core.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	anonymizationHTTP "github.com/allisson/compliance/internal/anonymization/http"
	auditHTTP "github.com/allisson/compliance/internal/audit/http"
	"github.com/allisson/compliance/internal/config"
	consentHTTP "github.com/allisson/compliance/internal/consent/http"
	"github.com/allisson/compliance/internal/metrics"
	retentionHTTP "github.com/allisson/compliance/internal/retention/http"
)

// Server represents the API server.
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// Handlers groups the module handlers mounted under /v1.
type Handlers struct {
	Consent       *consentHTTP.ConsentHandler
	Audit         *auditHTTP.AuditHandler
	Anonymization *anonymizationHTTP.AnonymizationHandler
	Retention     *retentionHTTP.RetentionHandler
}

// NewServer creates a new Server. The router is built by SetupRouter.
func NewServer(db *sql.DB, host string, port int, logger *slog.Logger) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter builds the Gin engine with middleware and every route.
// Authentication happens upstream; handlers read the caller from X-User-Id.
func (s *Server) SetupRouter(cfg *config.Config, handlers Handlers, metricsProvider *metrics.Provider) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")

	// Consent endpoints are reached by parents from emailed links.
	consents := v1.Group("/consents")
	if cfg.RateLimitConsentEnabled {
		consents.Use(IPRateLimitMiddleware(cfg.RateLimitConsentRequestsPerSec, cfg.RateLimitConsentBurst, s.logger))
	}
	{
		consents.POST("", handlers.Consent.InitiateHandler)
		consents.POST("/first-confirmation", handlers.Consent.FirstConfirmationHandler)
		consents.POST("/second-confirmation", handlers.Consent.SecondConfirmationHandler)
		consents.GET("/:id", handlers.Consent.GetHandler)
		consents.POST("/:id/revoke", handlers.Consent.RevokeHandler)
	}
	v1.GET("/students/:id/consent-validity", handlers.Consent.ValidityHandler)

	auditLogs := v1.Group("/audit-logs")
	{
		auditLogs.GET("", handlers.Audit.ListHandler)
		auditLogs.GET("/:id/verify", handlers.Audit.VerifyHandler)
	}

	alerts := v1.Group("/security-alerts")
	{
		alerts.GET("", handlers.Audit.ListAlertsHandler)
		alerts.POST("/:id/resolve", handlers.Audit.ResolveAlertHandler)
	}

	jobs := v1.Group("/anonymization-jobs")
	{
		jobs.POST("", handlers.Anonymization.ScheduleHandler)
		jobs.GET("", handlers.Anonymization.ListHandler)
		jobs.GET("/:id", handlers.Anonymization.GetHandler)
		jobs.POST("/:id/cancel", handlers.Anonymization.CancelHandler)
	}

	policies := v1.Group("/retention-policies")
	{
		policies.POST("", handlers.Retention.CreateHandler)
		policies.GET("", handlers.Retention.ListHandler)
		policies.GET("/status", handlers.Retention.StatusHandler)
		policies.POST("/execute", handlers.Retention.ExecuteHandler)
		policies.POST("/:id/execute", handlers.Retention.ExecuteSingleHandler)
		policies.PUT("/:id/active", handlers.Retention.SetActiveHandler)
	}

	s.router = router
}

// GetHandler returns the router for tests.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports not_ready until the database answers a ping.
func (s *Server) readinessHandler(c *gin.Context) {
	database := "ok"
	if s.db == nil {
		database = "error"
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("readiness check failed", slog.Any("error", err))
			database = "error"
		}
	}

	status, code := "ready", http.StatusOK
	if database != "ok" {
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":     status,
		"components": gin.H{"database": database},
	})
}
