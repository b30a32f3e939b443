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

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/diploma-checker-api/internal/handler"
	"github.com/noah-isme/diploma-checker-api/internal/repository"
	"github.com/noah-isme/diploma-checker-api/internal/service"
	"github.com/noah-isme/diploma-checker-api/pkg/cache"
	"github.com/noah-isme/diploma-checker-api/pkg/config"
	"github.com/noah-isme/diploma-checker-api/pkg/database"
	"github.com/noah-isme/diploma-checker-api/pkg/export"
	"github.com/noah-isme/diploma-checker-api/pkg/logger"
	"github.com/noah-isme/diploma-checker-api/pkg/ocr"
	"github.com/noah-isme/diploma-checker-api/pkg/qrcode"
	"github.com/noah-isme/diploma-checker-api/pkg/raster"
	"github.com/noah-isme/diploma-checker-api/pkg/response"
	"github.com/noah-isme/diploma-checker-api/pkg/storage"
)

// @title Diploma Checker API
// @version 1.0.0
// @description Verifies diplomas from scanned documents or typed references
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

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	response.HideInternalDetails(cfg.IsProduction())

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logr.Warn("closing postgres", zap.Error(err))
		}
	}()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, statistics will not be cached", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	var cacheProbe handler.CachePinger
	if redisClient != nil {
		cacheProbe = cacheRepo
	}
	defer func() {
		if err := cacheRepo.Close(); err != nil {
			logr.Warn("closing redis", zap.Error(err))
		}
	}()

	uploads, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		return err
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	diplomaRepo := repository.NewDiplomaRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	logRepo := repository.NewVerificationLogRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Stats.CacheTTL, logr, redisClient != nil)
	tokenSvc := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	extractor := service.NewTextExtractor(ocr.NewTesseractEngine(cfg.OCR.TesseractBin), cfg.OCR.Language, logr)
	normalizer := service.NewImageNormalizer(raster.NewRasterizer(cfg.OCR.PdftocairoBin), extractor, logr, service.NormalizerConfig{
		Page:     cfg.OCR.PDFPage,
		DPI:      cfg.OCR.PDFDPI,
		MaxWidth: cfg.OCR.MaxWidth,
	})
	reconciler := service.NewRecordReconciler(logRepo, studentRepo, cacheSvc, metrics, logr)
	verifier := service.NewVerificationService(
		uploads,
		normalizer,
		extractor,
		service.NewReferenceResolver(validate),
		diplomaRepo,
		reconciler,
		qrcode.NewEncoder(256),
		metrics,
		logr,
		service.VerificationConfig{
			MaxFileSize:       cfg.Uploads.MaxFileSizeBytes,
			AllowedMIMEs:      cfg.Uploads.AllowedMIMEs,
			ProcessingTimeout: cfg.OCR.ProcessingTimeout,
			PublicBaseURL:     cfg.Verification.PublicBaseURL,
			DiplomaPDFPath:    cfg.Verification.DiplomaPDFPath,
		},
	)
	studentSvc := service.NewStudentService(studentRepo, export.NewCSVExporter(), export.NewPDFExporter(), validate, logr)
	statsSvc := service.NewStatsService(studentRepo, logRepo, cacheSvc, cfg.Stats.CacheTTL, logr)

	janitor := service.NewUploadJanitor(uploads, cfg.Uploads.JanitorInterval, cfg.Uploads.JanitorTTL, logr)
	janitor.Start(ctx)
	defer janitor.Stop()
	verifier.SetReclaimer(janitor)

	router := newRouter(routerDeps{
		cfg:      cfg,
		logger:   logr,
		metrics:  metrics,
		tokens:   tokenSvc,
		ocr:      handler.NewOCRHandler(verifier, cfg.Uploads.MaxFileSizeBytes),
		diplomas: handler.NewDiplomaHandler(verifier),
		students: handler.NewStudentHandler(studentSvc),
		stats:    handler.NewStatsHandler(statsSvc),
		probes:   handler.NewMetricsHandler(metrics, db, cacheProbe),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.OCR.ProcessingTimeout + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
