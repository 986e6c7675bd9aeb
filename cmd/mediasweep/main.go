package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/scenthaus/mediasweep/internal/api"
	"github.com/scenthaus/mediasweep/internal/archive"
	"github.com/scenthaus/mediasweep/internal/auth"
	"github.com/scenthaus/mediasweep/internal/cloudinary"
	"github.com/scenthaus/mediasweep/internal/config"
	"github.com/scenthaus/mediasweep/internal/jobs"
	"github.com/scenthaus/mediasweep/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	// Initialize components
	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize job storage")
	}
	defer func() {
		_ = store.Close() // Close errors are not critical on shutdown
	}()

	cloudinaryClient, err := cloudinary.NewClient(
		cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize Cloudinary client")
	}

	var archiveCleaner jobs.ArchiveCleaner
	if cfg.ArchiveEnabled() {
		archiveClient, err := archive.NewClient(
			cfg.ArchiveEndpoint, cfg.ArchiveAccessKey, cfg.ArchiveSecretKey, cfg.ArchiveBucket)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to initialize archive client")
		}
		archiveCleaner = archiveClient
	}

	authValidator, err := auth.NewValidator(cfg.AdminTokens, cfg.AdminTokenFile, cfg.CronSecret)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth validator")
	}

	processor := jobs.NewProcessor(store, cloudinaryClient, archiveCleaner)

	// Optional in-process trigger; external schedulers hitting the
	// process endpoint with the cron secret remain the primary path.
	if cfg.ProcessCron != "" {
		scheduler := cron.New()
		_, err := scheduler.AddFunc(cfg.ProcessCron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			report, err := processor.ProcessBatch(ctx, cfg.BatchSize, cfg.MaxAttempts)
			if err != nil {
				logrus.WithError(err).Error("Scheduled batch processing failed")
				return
			}
			if report.Processed > 0 {
				logrus.WithField("processed", report.Processed).Info("Scheduled batch processed")
			}
		})
		if err != nil {
			logrus.WithError(err).Fatal("Invalid PROCESS_CRON expression")
		}
		scheduler.Start()
		defer scheduler.Stop()
		logrus.WithField("cron", cfg.ProcessCron).Info("Started in-process batch trigger")
	}

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	apiHandler := api.NewHandler(processor)
	api.SetupRoutes(router, apiHandler, authValidator.Middleware())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.WithField("addr", srv.Addr).Info("Starting mediasweep server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete; an abandoned
	// mid-batch run is safe, unprocessed jobs stay pending for the next call
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Fatal("Server forced to shutdown")
	}

	logrus.Info("Server exited")
}
