// Package server wires the plugin into a gin application and runs it.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	badgeservice "github.com/ohdear-panel/internal/badge/app/service"
	"github.com/ohdear-panel/internal/healthcheck/app/checks"
	healthservice "github.com/ohdear-panel/internal/healthcheck/app/service"
	"github.com/ohdear-panel/internal/navigation"
	"github.com/ohdear-panel/internal/ohdear/adapters/api"
	ohdearservice "github.com/ohdear-panel/internal/ohdear/app/service"
	"github.com/ohdear-panel/internal/panel"
	"github.com/ohdear-panel/internal/panel/handlers"
	authhandlers "github.com/ohdear-panel/internal/services/auth/handlers"
	"github.com/ohdear-panel/internal/services/auth/jwt"
	"github.com/ohdear-panel/internal/services/auth/rbac"
	"github.com/ohdear-panel/internal/settings/adapters/db/repository"
	settingsservice "github.com/ohdear-panel/internal/settings/app/service"
	"github.com/ohdear-panel/pkg/cache"
	"github.com/ohdear-panel/pkg/config"
	"github.com/ohdear-panel/pkg/database"
	"github.com/ohdear-panel/pkg/events"
	"github.com/ohdear-panel/pkg/logger"
	"github.com/ohdear-panel/pkg/middleware/auth"
	"github.com/ohdear-panel/pkg/middleware/lockout"
	"github.com/ohdear-panel/pkg/ratelimit"
	"github.com/ohdear-panel/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const healthCheckTimeout = 5 * time.Second

type Server struct {
	config     *config.Config
	logger     logger.Logger
	httpServer *http.Server
	db         *database.DB
	redis      *redis.Client
	eventBus   events.EventBus
	telemetry  *telemetry.Telemetry
	host       *Host
	plugin     *panel.Plugin
}

func New(cfg *config.Config, log logger.Logger) (*Server, error) {
	// Initialize tracing
	tel, err := telemetry.New(cfg.Telemetry.ToTelemetryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	// Initialize database
	db, err := database.New(cfg.Database.ToDatabaseConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	queryMonitor, err := database.NewQueryMonitor(db, log.Named("db"), cfg.Database.SlowQueryThreshold())
	if err != nil {
		return nil, err
	}

	settingsRepo := repository.NewSettingsRepository(db)
	if err := settingsRepo.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate settings: %w", err)
	}

	// Redis is optional; without it nothing is cached and tokens cannot be revoked
	var redisClient *redis.Client
	var appCache cache.Cache = cache.NewNopCache()
	var cachePinger checks.Pinger
	var secretLockout lockout.Limiter
	var healthLimiter ratelimit.RateLimiter
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		redisCache := cache.NewRedisCache(redisClient, nil)
		appCache = redisCache
		cachePinger = redisCache
		secretLockout = lockout.NewRedisLimiter(redisClient, "ohdear:health-lockout", lockout.DefaultConfig())
		if cfg.Panel.HealthRouteRPS > 0 {
			healthLimiter = ratelimit.NewRedisRateLimiter(redisClient, cfg.Panel.HealthRouteRPS*2, time.Second)
		}
	}

	// Initialize event bus
	eventBus, err := newEventBus(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	// Remote API and services
	clients := api.NewFactory(api.Options{
		BaseURL:        cfg.OhDear.BaseURL,
		Timeout:        cfg.OhDear.RequestTimeout(),
		RequestsPerMin: cfg.OhDear.RequestsPerMin,
		RetryAttempts:  cfg.OhDear.RetryAttempts,
	})
	ohdearService := ohdearservice.NewOhDearService(clients, appCache, eventBus, log.Named("api"), cfg.OhDear.SiteTTL())
	settingsService := settingsservice.NewSettingsService(settingsRepo, clients, ohdearService, eventBus, log.Named("settings"))
	badgeService := badgeservice.NewBadgeService(ohdearService, appCache, log.Named("badges"), cfg.OhDear.BadgeTTL())
	healthService := healthservice.NewHealthCheckService(log.Named("health"), healthCheckTimeout,
		checks.NewDatabaseCheck(db),
		checks.NewCacheCheck(cachePinger),
		checks.NewDiskSpaceCheck("/"),
		checks.NewMemoryCheck(),
		checks.NewCPULoadCheck(),
	)

	if err := subscribeToEvents(eventBus, badgeService); err != nil {
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}

	// Authentication and permissions
	enforcer, err := rbac.NewEnforcer(db, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}
	if err := enforcer.SeedRoles(cfg.Auth.RolePermissions); err != nil {
		return nil, fmt.Errorf("failed to seed roles: %w", err)
	}
	jwtManager, err := jwt.NewManager(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create jwt manager: %w", err)
	}
	authMiddleware := auth.NewJWTMiddleware(jwtManager, enforcer, redisClient, log)

	// Plugin
	nav := navigation.NewBuilder(panel.Handle, panel.Name, badgeService)
	plugin := panel.New(settingsService, nav, log)
	pageHandlers := handlers.NewHandlers(ohdearService, settingsService, healthService, plugin, handlers.Options{
		CPTrigger:      cfg.Panel.CPTrigger,
		HealthRouteRPS: cfg.Panel.HealthRouteRPS,
		Lockout:        secretLockout,
		HealthLimiter:  healthLimiter,
	}, log)

	router := setupRouter(db, tel, log)
	host, err := NewHost(router, cfg.Panel.CPTrigger, authMiddleware, handlers.Templates(), log)
	if err != nil {
		return nil, err
	}
	plugin.Install(host, pageHandlers)

	// Sessions, permission administration and diagnostics
	host.cp.GET("/permissions", authMiddleware.Handle(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"groups": host.Permissions()})
	})
	authHandlers := authhandlers.NewAuthHandlers(jwtManager, authMiddleware, enforcer, log.Named("auth"))
	authHandlers.RegisterRoutes(host.cp, authMiddleware.Handle())
	registerDiagnostics(host, queryMonitor)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &Server{
		config:     cfg,
		logger:     log,
		httpServer: httpServer,
		db:         db,
		redis:      redisClient,
		eventBus:   eventBus,
		telemetry:  tel,
		host:       host,
		plugin:     plugin,
	}, nil
}

func newEventBus(cfg config.KafkaConfig) (events.EventBus, error) {
	if len(cfg.Brokers) == 0 {
		return events.NewLocalEventBus(), nil
	}
	return events.NewKafkaEventBus(cfg.ToKafkaConfig())
}

func subscribeToEvents(eventBus events.EventBus, badges *badgeservice.BadgeService) error {
	for _, eventType := range []string{events.SettingsSaved, events.CheckToggled, events.CheckRunRequested} {
		if err := eventBus.Subscribe(eventType, badges.HandlePluginEvent); err != nil {
			return err
		}
	}
	return nil
}

func setupRouter(db *database.DB, tel *telemetry.Telemetry, log logger.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(log))
	router.Use(metricsMiddleware())
	router.Use(tel.HTTPMiddleware())

	// Health checks
	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "ohdear-panel"})
	})
	router.GET("/health/ready", func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "service": "ohdear-panel"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.httpServer.Addr, "cpTrigger", s.host.CPTrigger())
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	// Shutdown HTTP server
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	// Close event bus
	if err := s.eventBus.Close(); err != nil {
		s.logger.Error("Failed to close event bus", "error", err)
	}

	// Close Redis
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close Redis", "error", err)
		}
	}

	// Close database
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", "error", err)
	}

	// Flush traces
	if err := s.telemetry.Close(); err != nil {
		s.logger.Error("Failed to close telemetry", "error", err)
	}

	return nil
}
