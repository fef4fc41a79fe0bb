package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/skipd/skipd-api/api/swagger"
	"github.com/skipd/skipd-api/internal/handler"
	"github.com/skipd/skipd-api/internal/middleware"
	"github.com/skipd/skipd-api/internal/repository"
	"github.com/skipd/skipd-api/internal/service"
	"github.com/skipd/skipd-api/pkg/cache"
	"github.com/skipd/skipd-api/pkg/config"
	"github.com/skipd/skipd-api/pkg/database"
	"github.com/skipd/skipd-api/pkg/logger"
	corsmiddleware "github.com/skipd/skipd-api/pkg/middleware/cors"
	reqidmiddleware "github.com/skipd/skipd-api/pkg/middleware/requestid"
)

// @title SkipD API
// @version 1.0.0
// @description Attendance tracking service for students
// @BasePath /
// @schemes http

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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	institutionRepo := repository.NewInstitutionRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)

	var cacheSvc *service.CacheService
	if cacheRepo != nil {
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, true)
	}

	accessSvc := service.NewAccessService(userRepo, institutionRepo, subjectRepo)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, accessSvc, validate, logr)
	institutionSvc := service.NewInstitutionService(institutionRepo, userRepo, accessSvc, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, accessSvc, cacheSvc, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	institutionHandler := handler.NewInstitutionHandler(institutionSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Scrape)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	requireAuth := middleware.JWT(authSvc)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/logout", requireAuth, authHandler.Logout)

	api.POST("/users", userHandler.Register)

	users := api.Group("/users", requireAuth)
	users.GET("/:id", userHandler.Get)
	users.PATCH("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)
	users.PUT("/:id/password", userHandler.ChangePassword)
	users.POST("/:id/institutions", institutionHandler.Create)
	users.GET("/:id/institutions", institutionHandler.ListByUser)

	institutions := api.Group("/institutions", requireAuth)
	institutions.GET("/:id", institutionHandler.Get)
	institutions.PATCH("/:id", institutionHandler.Update)
	institutions.DELETE("/:id", institutionHandler.Delete)
	institutions.POST("/:id/subjects", subjectHandler.Create)
	institutions.GET("/:id/subjects", subjectHandler.ListByInstitution)
	if cfg.Exports.Enabled {
		institutions.GET("/:id/subjects/export", subjectHandler.Export)
	}

	subjects := api.Group("/subjects", requireAuth)
	subjects.GET("/:id", subjectHandler.Get)
	subjects.PATCH("/:id", subjectHandler.Update)
	subjects.DELETE("/:id", subjectHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
