package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/credapprove/credit-service/internal/cache"
	"github.com/credapprove/credit-service/internal/clock"
	"github.com/credapprove/credit-service/internal/config"
	"github.com/credapprove/credit-service/internal/handler"
	"github.com/credapprove/credit-service/internal/integrations/centralbank"
	"github.com/credapprove/credit-service/internal/middleware"
	"github.com/credapprove/credit-service/internal/notify"
	"github.com/credapprove/credit-service/internal/repository"
	"github.com/credapprove/credit-service/internal/scheduler"
	"github.com/credapprove/credit-service/internal/service"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	repo := repository.NewPostgres(db)
	if err := repo.Migrate(context.Background()); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	// Score cache is optional: without Redis every score is recomputed
	var scoreCache cache.ScoreCache
	if cfg.RedisAddr != "" {
		scoreCache = cache.NewRedis(cfg.RedisAddr)
		logger.Infof("Score cache enabled at %s", cfg.RedisAddr)
	}

	clk, err := clock.FromReference(cfg.ReferenceDate)
	if err != nil {
		logger.Fatalf("Invalid REFERENCE_DATE: %v", err)
	}
	if clock.IsFixed(clk) {
		logger.Warnf("Running in demo mode with reference date %s", cfg.ReferenceDate)
	}

	// Email is optional: without SMTP credentials approvals are logged only
	var notifier service.Notifier
	if cfg.SMTPConfigured() {
		notifier = notify.NewSender(cfg, logger)
	}

	svc := service.New(repo, scoreCache, clk, notifier, logger)
	rates := centralbank.NewClient(cfg, logger)
	h := handler.NewHandler(svc, rates, logger)

	router := h.Router()
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Recovery(logger))

	if notifier != nil {
		sched := scheduler.New(repo, notifier, clk, cfg.ReminderCron, logger)
		if err := sched.Start(); err != nil {
			logger.Fatalf("Failed to start reminder scheduler: %v", err)
		}
		defer sched.Stop()
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
