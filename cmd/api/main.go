package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/teamcal/teamcal-api/api/swagger"
	"github.com/teamcal/teamcal-api/internal/handler"
	"github.com/teamcal/teamcal-api/internal/middleware"
	"github.com/teamcal/teamcal-api/internal/models"
	"github.com/teamcal/teamcal-api/internal/recurrence"
	"github.com/teamcal/teamcal-api/internal/repository"
	"github.com/teamcal/teamcal-api/internal/service"
	"github.com/teamcal/teamcal-api/pkg/cache"
	"github.com/teamcal/teamcal-api/pkg/config"
	"github.com/teamcal/teamcal-api/pkg/database"
	"github.com/teamcal/teamcal-api/pkg/logger"
	corsmiddleware "github.com/teamcal/teamcal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/teamcal/teamcal-api/pkg/middleware/requestid"
)

// @title Team Calendar API
// @version 1.0.0
// @description Team calendar CMS with recurring meeting generation
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The cache is optional; the API serves from Postgres without it.
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	validate := service.NewValidator()
	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, logr, cfg.Cache.Enabled, cfg.Cache.TTL, metricsSvc)
	}

	userRepo := repository.NewUserRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	scheduleRepo := repository.NewScheduleConfigRepository(db)

	holidays := recurrence.NewHolidayCalendar()
	engine := recurrence.NewEngine(holidays)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "teamcal-api",
		Audience:           []string{"teamcal"},
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	setupSvc := service.NewSetupService(userRepo, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, meetingRepo, userRepo, cacheSvc, validate, logr, cfg.Schedule)
	meetingSvc := service.NewMeetingService(meetingRepo, scheduleSvc, holidays, cacheSvc, validate, logr)
	backfillSvc := service.NewBackfillService(meetingRepo, scheduleSvc, userRepo, engine, cacheSvc, metricsSvc, logr, cfg.Schedule)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	meetingHandler := handler.NewMeetingHandler(meetingSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc, backfillSvc)
	setupHandler := handler.NewSetupHandler(setupSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.GET("/setup", setupHandler.Status)
	api.POST("/setup", setupHandler.Initialize)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	users := api.Group("/users", middleware.JWT(authSvc))
	{
		users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
		users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
		users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Delete)
	}

	meetings := api.Group("/meetings", middleware.JWT(authSvc))
	{
		meetings.GET("", meetingHandler.List)
		meetings.GET("/export", meetingHandler.Export)
		meetings.GET("/:id", meetingHandler.Get)
		meetings.POST("", middleware.RequireRoles(models.RoleAdmin), meetingHandler.Create)
		meetings.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), meetingHandler.Update)
		meetings.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), meetingHandler.Delete)
	}

	schedule := api.Group("/schedule", middleware.JWT(authSvc))
	{
		schedule.GET("", scheduleHandler.Get)
		schedule.PATCH("", middleware.RequireRoles(models.RoleAdmin), scheduleHandler.Update)
		schedule.POST("/backfill", middleware.RequireRoles(models.RoleAdmin), scheduleHandler.Backfill)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
