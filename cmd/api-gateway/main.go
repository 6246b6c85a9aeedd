package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/psy-schedule-api/api/swagger"
	"github.com/noah-isme/psy-schedule-api/internal/events"
	"github.com/noah-isme/psy-schedule-api/internal/gateway"
	"github.com/noah-isme/psy-schedule-api/internal/handler"
	internalmiddleware "github.com/noah-isme/psy-schedule-api/internal/middleware"
	"github.com/noah-isme/psy-schedule-api/internal/models"
	"github.com/noah-isme/psy-schedule-api/internal/repository"
	"github.com/noah-isme/psy-schedule-api/internal/service"
	"github.com/noah-isme/psy-schedule-api/pkg/cache"
	"github.com/noah-isme/psy-schedule-api/pkg/config"
	"github.com/noah-isme/psy-schedule-api/pkg/database"
	"github.com/noah-isme/psy-schedule-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/psy-schedule-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/psy-schedule-api/pkg/middleware/requestid"
	"github.com/noah-isme/psy-schedule-api/pkg/tracing"
)

// @title Psychologist Schedule API
// @version 1.0.0
// @description Calendar, navigation and confirmed status changes for psychologist appointments.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.Env, cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		logr.Warn("tracing disabled", zap.Error(err))
	} else {
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(flushCtx)
		}()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}

	var redisClient *redis.Client
	if cfg.Sessions.ViewStateCache {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("view state cache unavailable", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			checks["redis"] = func(c *gin.Context) error { return redisClient.Ping(c.Request.Context()).Err() }
		}
	}

	var db *sqlx.DB
	if cfg.Audit.Enabled {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Warn("audit database unavailable", zap.Error(err))
		} else {
			defer db.Close() //nolint:errcheck
			checks["postgres"] = func(c *gin.Context) error { return db.PingContext(c.Request.Context()) }
		}
	}

	var audit *service.AuditService
	if db != nil {
		audit = service.NewAuditService(repository.NewAuditRepository(db), cfg.Audit, metrics, logr)
		audit.Start(ctx)
		defer audit.Stop()
	}

	publisher := events.NewKafkaPublisher(cfg.Events, logr)
	defer publisher.Close() //nolint:errcheck

	backend := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout, gateway.ForwardedCredentials{},
		gateway.WithObserver(metrics),
		gateway.WithLogger(logr),
	)

	opts := []service.SessionOption{
		service.WithSessionMetrics(metrics),
		service.WithStatusPublisher(publisher),
	}
	if redisClient != nil {
		opts = append(opts, service.WithViewStateStore(repository.NewViewStateRepository(redisClient, cfg.Sessions.ViewStateTTL, metrics, logr)))
	}
	if audit != nil {
		opts = append(opts, service.WithChangeRecorder(audit))
	}
	sessions := service.NewSessionManager(backend, service.SessionConfig{
		TTL:              cfg.Sessions.TTL,
		StartHour:        cfg.Calendar.StartHour,
		EndHour:          cfg.Calendar.EndHour,
		WeekViewMinWidth: cfg.Calendar.WeekViewMinWidth,
		DefaultView:      models.ViewMode(cfg.Calendar.DefaultView),
		Location:         cfg.Calendar.Location(),
	}, validator.New(), logr, opts...)
	go sessions.RunJanitor(ctx, cfg.Sessions.CleanupInterval)

	authService := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Leeway:            30 * time.Second,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics", "/health", "/ready"))

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, internalmiddleware.JWT(authService))
	api.GET("/metrics/summary", internalmiddleware.RequireRoles(models.RoleAdmin), metricsHandler.Summary)
	handler.RegisterScheduleRoutes(api, newScheduleHandler(sessions, audit))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newScheduleHandler(sessions *service.SessionManager, audit *service.AuditService) *handler.ScheduleHandler {
	exporter := service.NewExportService(sessions)
	if audit == nil {
		return handler.NewScheduleHandler(sessions, exporter, nil)
	}
	return handler.NewScheduleHandler(sessions, exporter, audit)
}
