// Package app provides the dependency injection container that assembles the compliance core.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"

	anonymizationHTTP "github.com/allisson/compliance/internal/anonymization/http"
	anonymizationUseCase "github.com/allisson/compliance/internal/anonymization/usecase"
	"github.com/allisson/compliance/internal/archive"
	auditHTTP "github.com/allisson/compliance/internal/audit/http"
	auditService "github.com/allisson/compliance/internal/audit/service"
	auditUseCase "github.com/allisson/compliance/internal/audit/usecase"
	"github.com/allisson/compliance/internal/config"
	consentHTTP "github.com/allisson/compliance/internal/consent/http"
	consentUseCase "github.com/allisson/compliance/internal/consent/usecase"
	cryptoService "github.com/allisson/compliance/internal/crypto/service"
	"github.com/allisson/compliance/internal/database"
	"github.com/allisson/compliance/internal/http"
	learnerRepository "github.com/allisson/compliance/internal/learner/repository"
	"github.com/allisson/compliance/internal/lock"
	"github.com/allisson/compliance/internal/metrics"
	notificationService "github.com/allisson/compliance/internal/notification/service"
	outboxUseCase "github.com/allisson/compliance/internal/outbox/usecase"
	retentionHTTP "github.com/allisson/compliance/internal/retention/http"
	retentionUseCase "github.com/allisson/compliance/internal/retention/usecase"
	"github.com/allisson/compliance/internal/scheduler"
)

// Container holds all application dependencies and provides methods to access them.
// Components are created on first access.
type Container struct {
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	dialect         database.Dialect
	txManager       database.TxManager
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
	redisClient     redis.UniversalClient
	locker          lock.Locker
	scheduler       *scheduler.Scheduler
	archiveStore    *archive.BlobStore

	// Crypto
	kmsService  cryptoService.KMSService
	aeadManager cryptoService.AEADManager
	gateway     cryptoService.Gateway
	checksummer auditService.Checksummer

	// Learner repositories
	studentRepository *learnerRepository.StudentRepository
	parentRepository  *learnerRepository.ParentRepository
	sessionRepository *learnerRepository.SessionRepository

	// Use cases
	auditUseCase         auditUseCase.UseCase
	outboxUseCase        outboxUseCase.UseCase
	notifier             notificationService.Notifier
	anonymizationUseCase anonymizationUseCase.UseCase
	consentUseCase       consentUseCase.UseCase
	retentionUseCase     retentionUseCase.UseCase

	// Handlers
	auditHandler         *auditHTTP.AuditHandler
	anonymizationHandler *anonymizationHTTP.AnonymizationHandler
	consentHandler       *consentHTTP.ConsentHandler
	retentionHandler     *retentionHTTP.RetentionHandler

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	mu                       sync.Mutex
	loggerInit               sync.Once
	dbInit                   sync.Once
	dialectInit              sync.Once
	txManagerInit            sync.Once
	metricsProviderInit      sync.Once
	businessMetricsInit      sync.Once
	redisClientInit          sync.Once
	lockerInit               sync.Once
	schedulerInit            sync.Once
	archiveStoreInit         sync.Once
	kmsServiceInit           sync.Once
	aeadManagerInit          sync.Once
	gatewayInit              sync.Once
	checksummerInit          sync.Once
	studentRepositoryInit    sync.Once
	parentRepositoryInit     sync.Once
	sessionRepositoryInit    sync.Once
	auditUseCaseInit         sync.Once
	outboxUseCaseInit        sync.Once
	notifierInit             sync.Once
	anonymizationUseCaseInit sync.Once
	consentUseCaseInit       sync.Once
	retentionUseCaseInit     sync.Once
	auditHandlerInit         sync.Once
	anonymizationHandlerInit sync.Once
	consentHandlerInit       sync.Once
	retentionHandlerInit     sync.Once
	httpServerInit           sync.Once
	metricsServerInit        sync.Once
	initErrors               map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// once runs init under the given sync.Once and remembers its error under key, so
// a failed component keeps failing instead of returning a zero value later.
func (c *Container) once(o *sync.Once, key string, init func() error) error {
	o.Do(func() {
		if err := init(); err != nil {
			c.mu.Lock()
			c.initErrors[key] = err
			c.mu.Unlock()
		}
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErrors[key]
}

// Logger returns the configured logger instance.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
func (c *Container) DB() (*sql.DB, error) {
	err := c.once(&c.dbInit, "db", func() error {
		var err error
		c.db, err = c.initDB()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.db, nil
}

// Dialect returns the SQL dialect for the configured driver.
func (c *Container) Dialect() (database.Dialect, error) {
	err := c.once(&c.dialectInit, "dialect", func() error {
		var err error
		c.dialect, err = database.ParseDialect(c.config.DBDriver)
		return err
	})
	if err != nil {
		return "", err
	}
	return c.dialect, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	err := c.once(&c.txManagerInit, "txManager", func() error {
		db, err := c.DB()
		if err != nil {
			return fmt.Errorf("failed to get database for tx manager: %w", err)
		}
		c.txManager = database.NewTxManager(db)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.txManager, nil
}

// MetricsProvider returns the OpenTelemetry provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	err := c.once(&c.metricsProviderInit, "metricsProvider", func() error {
		var err error
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			return fmt.Errorf("failed to create metrics provider: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. A no-op recorder is
// returned when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	err := c.once(&c.businessMetricsInit, "businessMetrics", func() error {
		provider, err := c.MetricsProvider()
		if err != nil {
			return err
		}
		if provider == nil {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return nil
		}
		c.businessMetrics, err = metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.businessMetrics, nil
}

// RedisClient returns the Redis client, or nil when Redis is disabled.
func (c *Container) RedisClient() (redis.UniversalClient, error) {
	if !c.config.RedisEnabled {
		return nil, nil
	}
	err := c.once(&c.redisClientInit, "redisClient", func() error {
		client := redis.NewClient(&redis.Options{
			Addr:     c.config.RedisAddr,
			Password: c.config.RedisPassword,
			DB:       c.config.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}

		c.redisClient = client
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.redisClient, nil
}

// Locker returns the single-flight locker: Redis-backed when Redis is enabled,
// process-local otherwise.
func (c *Container) Locker() (lock.Locker, error) {
	err := c.once(&c.lockerInit, "locker", func() error {
		client, err := c.RedisClient()
		if err != nil {
			return err
		}
		if client == nil {
			c.locker = lock.NewLocalLocker()
			return nil
		}
		c.locker = lock.NewRedisLocker(client, "compliance:lock:")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.locker, nil
}

// Scheduler returns the background task scheduler.
func (c *Container) Scheduler() (*scheduler.Scheduler, error) {
	err := c.once(&c.schedulerInit, "scheduler", func() error {
		locker, err := c.Locker()
		if err != nil {
			return fmt.Errorf("failed to get locker for scheduler: %w", err)
		}
		c.scheduler = scheduler.New(locker, c.config.SchedulerLockTTL, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.scheduler, nil
}

// ArchiveStore returns the cold storage bucket for archived records.
func (c *Container) ArchiveStore() (archive.Store, error) {
	err := c.once(&c.archiveStoreInit, "archiveStore", func() error {
		store, err := archive.Open(context.Background(), c.config.ArchiveBucketURL)
		if err != nil {
			return fmt.Errorf("failed to open archive bucket: %w", err)
		}
		c.archiveStore = store
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.archiveStore, nil
}

// HTTPServer returns the API server with every route mounted.
func (c *Container) HTTPServer() (*http.Server, error) {
	err := c.once(&c.httpServerInit, "httpServer", func() error {
		var err error
		c.httpServer, err = c.initHTTPServer()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil || provider == nil {
		return nil, err
	}
	c.metricsServerInit.Do(func() {
		c.metricsServer = http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider)
	})
	return c.metricsServer, nil
}

// Shutdown releases every initialized resource. Background tasks are stopped
// before the database they use is closed.
func (c *Container) Shutdown(ctx context.Context) error {
	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.scheduler != nil {
		if err := c.scheduler.Stop(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("scheduler stop: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.archiveStore != nil {
		if err := c.archiveStore.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("archive close: %w", err))
		}
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("redis close: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}
	return nil
}

// initLogger creates a JSON logger, or a colored tint logger when LOG_FORMAT=text.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var handler slog.Handler
	if c.config.LogFormat == "text" {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}

	return slog.New(handler)
}

func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func (c *Container) initHTTPServer() (*http.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	handlers := http.Handlers{}
	if handlers.Consent, err = c.ConsentHandler(); err != nil {
		return nil, err
	}
	if handlers.Audit, err = c.AuditHandler(); err != nil {
		return nil, err
	}
	if handlers.Anonymization, err = c.AnonymizationHandler(); err != nil {
		return nil, err
	}
	if handlers.Retention, err = c.RetentionHandler(); err != nil {
		return nil, err
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, c.Logger())
	server.SetupRouter(c.config, handlers, provider)
	return server, nil
}

// dbAndDialect is the pair every repository constructor takes.
func (c *Container) dbAndDialect() (*sql.DB, database.Dialect, error) {
	dialect, err := c.Dialect()
	if err != nil {
		return nil, "", err
	}
	db, err := c.DB()
	if err != nil {
		return nil, "", err
	}
	return db, dialect, nil
}
