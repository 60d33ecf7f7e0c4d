// Package v1 assembles the services behind the /api/v1 routes.
package v1

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"simflow/portal-backend/internal/audit"
	"simflow/portal-backend/internal/auth"
	"simflow/portal-backend/internal/config"
	"simflow/portal-backend/internal/events"
	"simflow/portal-backend/internal/notifications"
	"simflow/portal-backend/internal/notifications/websocket"
	"simflow/portal-backend/internal/projects"
	"simflow/portal-backend/internal/reports"
	"simflow/portal-backend/internal/reports/dashboard"
	"simflow/portal-backend/internal/requests"
	"simflow/portal-backend/internal/scheduler"
	"simflow/portal-backend/internal/search"
	"simflow/portal-backend/internal/settings"
	"simflow/portal-backend/internal/storage/memory"
	"simflow/portal-backend/internal/storage/postgres"
	"simflow/portal-backend/internal/transitions"
	"simflow/portal-backend/pkg/storage"
)

// Deps are the connections opened by the binaries. Nil connections select
// the in-memory implementation of the matching store.
type Deps struct {
	Config *config.Config
	Logger *zap.Logger
	Gorm   *gorm.DB
	SQL    *sqlx.DB
	AWS    *aws.Config
}

// App holds every wired service and handler.
type App struct {
	Tokens        *auth.TokenService
	Projects      *projects.Service
	Requests      *requests.Service
	Transitions   *transitions.Executor
	Notifications *notifications.Service
	Settings      *settings.Service
	Audit         *audit.Service
	Reports       *reports.Service
	Scheduler     *scheduler.Manager
	WebSocket     *websocket.Manager

	dashboard *dashboard.Aggregator
	cfg       *config.Config
	logger    *zap.Logger
}

type unitsOfWork interface {
	Projects() projects.UnitOfWork
	Requests() requests.UnitOfWork
}

// Build wires the services in dependency order.
func Build(ctx context.Context, deps Deps) (*App, error) {
	cfg, logger := deps.Config, deps.Logger
	app := &App{
		Tokens: auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL()),
		cfg:    cfg,
		logger: logger,
	}

	var (
		store     unitsOfWork
		prefsRepo settings.Repository
		inboxRepo notifications.Repository
		auditRepo audit.Repository
	)
	if deps.Gorm != nil {
		if cfg.Database.AutoMigrate {
			if err := postgres.AutoMigrate(deps.Gorm, &notifications.Notification{}, &settings.NotificationPreferences{}); err != nil {
				return nil, err
			}
		}
		store = postgres.New(deps.Gorm)
		prefsRepo = settings.NewGormRepository(deps.Gorm)
		inboxRepo = notifications.NewGormRepository(deps.Gorm)
	} else {
		store = memory.New()
		prefsRepo = settings.NewMemoryRepository()
		inboxRepo = notifications.NewMemoryRepository()
	}
	if deps.SQL != nil {
		repo := audit.NewPostgresRepository(deps.SQL)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		auditRepo = repo
	} else {
		auditRepo = audit.NewMemoryRepository()
	}

	app.Settings = settings.NewService(prefsRepo, logger)
	app.Audit = audit.NewService(auditRepo, logger)

	channels := []notifications.Channel{}
	if cfg.Notifications.WebSocketEnabled {
		app.WebSocket = websocket.NewManager(logger)
		channels = append(channels, notifications.NewWebSocketChannel(app.WebSocket))
	}
	if deps.AWS != nil {
		if cfg.Notifications.SNSTopicARN != "" {
			channels = append(channels, notifications.NewSNSChannel(sns.NewFromConfig(*deps.AWS), cfg.Notifications.SNSTopicARN))
		}
		if cfg.Notifications.EmailSender != "" && cfg.Notifications.EmailDomain != "" {
			channels = append(channels, notifications.NewEmailChannel(
				sesv2.NewFromConfig(*deps.AWS),
				cfg.Notifications.EmailSender,
				notifications.DomainResolver(cfg.Notifications.EmailDomain),
			))
		}
	}
	app.Notifications = notifications.NewService(inboxRepo, app.Settings, logger, channels...)

	emitter := events.NewEmitter(logger,
		events.WithNotifier(app.Notifications),
		events.WithAuditor(app.Audit),
	)

	requestOpts := []requests.Option{requests.WithArchiveAfter(cfg.Workflow.ArchiveAfter())}
	if len(cfg.Search.Addresses) > 0 {
		idx, err := search.New(search.Config{
			Addresses: cfg.Search.Addresses,
			Username:  cfg.Search.Username,
			Password:  cfg.Search.Password,
			Index:     cfg.Search.Index,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := idx.EnsureIndex(ctx); err != nil {
			// Search degrades to the database filter; the portal still starts.
			logger.Warn("search index unavailable", zap.Error(err))
		} else {
			requestOpts = append(requestOpts, requests.WithSearcher(idx))
		}
	}

	app.Projects = projects.NewService(store.Projects(), emitter, logger)
	app.Requests = requests.NewService(store.Requests(), emitter, logger, requestOpts...)
	app.Transitions = transitions.NewExecutor(app.Projects, app.Requests, logger)

	app.dashboard = dashboard.NewAggregator(app.Projects, app.Requests, logger, dashboard.DefaultAggregatorConfig())
	reportOpts := []reports.Option{reports.WithAuditor(app.Audit)}
	if deps.AWS != nil && cfg.Exports.Bucket != "" {
		reportOpts = append(reportOpts, reports.WithObjectStore(storage.NewS3Client(*deps.AWS), reports.ExportConfig{
			Bucket:     cfg.Exports.Bucket,
			Prefix:     cfg.Exports.Prefix,
			PresignTTL: cfg.Exports.PresignTTL(),
		}))
	}
	app.Reports = reports.NewService(app.Projects, app.dashboard, logger, reportOpts...)

	app.Scheduler = scheduler.NewManager(logger)
	jobs := scheduler.WorkflowJobs(app.Projects, cfg.Scheduler.ExpirySpec, cfg.Scheduler.ReconcileSpec, app.Reports.InvalidateDashboard)
	for _, job := range jobs {
		if err := app.Scheduler.Register(job); err != nil {
			return nil, fmt.Errorf("failed to register job: %w", err)
		}
	}
	return app, nil
}

// Router builds the gin engine with every route mounted.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(a.logger), cors())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	authenticate := auth.Middleware(a.Tokens, a.logger)
	auth.RegisterRoutes(router, auth.NewHandler(a.Tokens, a.logger, a.cfg.Auth.AllowDevTokens), authenticate)

	api := router.Group("/api/v1")
	api.Use(authenticate)
	{
		projects.NewHandler(a.Projects, a.logger).RegisterRoutes(api)
		requests.NewHandler(a.Requests, a.logger).RegisterRoutes(api)
		transitions.NewHandler(a.Transitions, a.logger).RegisterRoutes(api)
		notifications.NewHandler(a.Notifications, a.WebSocket, a.logger).RegisterRoutes(api)
		settings.NewHandler(a.Settings, a.logger).RegisterRoutes(api)
		audit.NewHandler(a.Audit, a.logger).RegisterRoutes(api)
		reports.NewHandler(a.Reports, a.logger).RegisterRoutes(api)
		scheduler.NewHandler(a.Scheduler, a.logger).RegisterRoutes(api)
	}
	return router
}

// Close stops background goroutines owned by the app.
func (a *App) Close() {
	a.Scheduler.Stop()
	a.dashboard.Stop()
	if a.WebSocket != nil {
		a.WebSocket.Close()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/health" {
			return
		}
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
