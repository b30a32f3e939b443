package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/diploma-checker-api/api/swagger"
	"github.com/noah-isme/diploma-checker-api/internal/handler"
	"github.com/noah-isme/diploma-checker-api/internal/middleware"
	"github.com/noah-isme/diploma-checker-api/internal/models"
	"github.com/noah-isme/diploma-checker-api/internal/service"
	"github.com/noah-isme/diploma-checker-api/pkg/config"
	"github.com/noah-isme/diploma-checker-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/diploma-checker-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/diploma-checker-api/pkg/middleware/requestid"
)

type routerDeps struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *service.MetricsService
	tokens   middleware.TokenValidator
	ocr      *handler.OCRHandler
	diplomas *handler.DiplomaHandler
	students *handler.StudentHandler
	stats    *handler.StatsHandler
	probes   *handler.MetricsHandler
}

func newRouter(d routerDeps) *gin.Engine {
	if d.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.logger))
	r.Use(middleware.Metrics(d.metrics))
	r.Use(corsmiddleware.New(d.cfg.CORS.AllowedOrigins))

	r.GET("/health", d.probes.Health)
	r.GET("/ready", d.probes.Ready)
	r.GET("/metrics", d.probes.Prometheus)

	if !d.cfg.IsProduction() {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	ocrLimiter := middleware.NewRateLimiter(d.cfg.RateLimit.Window, d.cfg.RateLimit.OCR)
	lookupLimiter := middleware.NewRateLimiter(d.cfg.RateLimit.Window, d.cfg.RateLimit.Lookup)

	api := r.Group(d.cfg.APIPrefix)
	api.Use(middleware.JWT(d.tokens))

	ocr := api.Group("/ocr")
	ocr.POST("/upload", ocrLimiter.Handler(), d.ocr.Upload)
	ocr.GET("/ping", d.ocr.Ping)

	api.GET("/diplomes/:reference", lookupLimiter.Handler(), d.diplomas.Get)

	students := api.Group("/students")
	students.GET("", d.students.List)
	students.GET("/export", middleware.RequireRoles(models.RoleAdmin), d.students.Export)

	api.GET("/stats", d.stats.Summary)

	return r
}
