// Package main runs the property management HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/smartess/backend/config"
	"github.com/smartess/backend/internal/alerts"
	"github.com/smartess/backend/internal/auth"
	"github.com/smartess/backend/internal/middleware"
	"github.com/smartess/backend/internal/organizations"
	"github.com/smartess/backend/internal/realtime"
	"github.com/smartess/backend/internal/tickets"
	"github.com/smartess/backend/internal/units"
	"github.com/smartess/backend/pkg/database"
	"github.com/smartess/backend/pkg/redis"
	"github.com/smartess/backend/pkg/response"
	"github.com/smartess/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	var scripter goredis.Scripter
	var bridge realtime.Bridge
	if rdb != nil {
		defer rdb.Close()
		scripter = rdb.Client
		bridge = realtime.NewRedisPubSub(rdb.Client, logger)
	} else {
		logger.Warn("redis not configured: rate limiting disabled, realtime is single-instance")
	}

	var images units.ImageLister
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			ImagesBucket:    cfg.AWS.ImagesBucket,
			ImagesPrefix:    cfg.AWS.ImagesPrefix,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			images = s3Client
		}
	}

	hub := realtime.NewHub(logger, bridge)

	// Identity
	var provider auth.Provider
	switch cfg.Auth.Provider {
	case "jwt":
		provider = auth.NewJWTProvider(cfg.Auth.JWTSecret)
	default:
		provider = auth.NewRemoteProvider(cfg.Auth.URL, cfg.Auth.APIKey, cfg.Auth.Timeout, nil)
	}
	userRepo := auth.NewRepository(pool)
	resolver := auth.NewResolver(provider, userRepo, logger)

	// Access control
	orgRepo := organizations.NewRepository(pool)
	checker := organizations.NewChecker(orgRepo, logger)
	authHandler := auth.NewHandler(resolver, orgRepo, logger)

	// Tickets
	ticketRepo := tickets.NewRepository(pool)
	ticketSvc := tickets.NewService(ticketRepo, orgRepo, userRepo, checker, hub, logger)
	ticketHandler := tickets.NewHandler(ticketSvc, resolver)

	// Units, alerts and surveillance views
	alertRepo := alerts.NewRepository(pool)
	views := units.NewViewBuilder(units.NewRepository(pool), orgRepo, userRepo, alertRepo, checker, cfg.Views.FanoutLimit, logger)
	unitHandler := units.NewHandler(views, resolver, images, logger)
	alertHandler := alerts.NewHandler(views, alertRepo, resolver)

	wsAuthorize := func(ctx context.Context, token string) (string, []string, error) {
		u, err := resolver.Resolve(ctx, token)
		if err != nil {
			return "", nil, err
		}
		memberships, err := orgRepo.ListMemberships(ctx, u.UserID)
		if err != nil {
			return "", nil, err
		}
		rooms := []string{realtime.UserRoom(u.UserID)}
		seen := map[string]bool{}
		for _, m := range memberships {
			if m.ProjID != nil && !seen[*m.ProjID] {
				seen[*m.ProjID] = true
				rooms = append(rooms, realtime.ProjectRoom(*m.ProjID))
			}
		}
		return u.UserID, rooms, nil
	}

	router := gin.New()
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.RateLimit(cfg.RateLimit, scripter, logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Protected API (bearer token required)
	api := router.Group("/api", middleware.Token())
	ticketHandler.Register(api.Group("/tickets"))
	unitHandler.RegisterProjects(api.Group("/projects"))
	unitHandler.RegisterUnits(api.Group("/units"))
	unitHandler.RegisterSurveillance(api.Group("/surveillance"))

	alertsGroup := api.Group("/alerts")
	unitHandler.RegisterAlerts(alertsGroup)
	alertHandler.Register(alertsGroup)

	individual := api.Group("/individual-unit")
	individual.GET("/get-current-user", authHandler.GetCurrentUser)
	unitHandler.RegisterIndividualUnit(individual)

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, wsAuthorize, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("auth_provider", cfg.Auth.Provider))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
