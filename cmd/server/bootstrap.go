package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/studypay/duebell/internal/api"
	"github.com/studypay/duebell/internal/app"
	"github.com/studypay/duebell/internal/database"
	"github.com/studypay/duebell/internal/engine"
	"github.com/studypay/duebell/internal/notifications"
	"github.com/studypay/duebell/internal/scheduler"
	"github.com/studypay/duebell/internal/services"
	"github.com/studypay/duebell/pkg/logger"
	"github.com/studypay/duebell/pkg/mail"
)

// runtimeStack bundles long-lived components used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Hub       *notifications.Hub
	Engine    *engine.Engine
	Scheduler *scheduler.Scheduler
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, engine, scheduler and router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Hub = notifications.NewHub()

	mailer, err := buildMailer(cfg, log)
	if err != nil {
		return nil, err
	}

	notificationSvc, err := services.NewNotificationService(stack.DB, stack.Hub)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}

	stack.Engine = engine.NewEngine(stack.DB, mailer, logger.WithModule("engine"),
		engine.WithWorkers(cfg.Engine.Workers),
		engine.WithTransitionAnnouncer(notificationSvc.Announce),
	)

	stack.Scheduler = scheduler.New(stack.Engine,
		scheduler.WithEnabled(cfg.Scheduler.Enabled),
		scheduler.WithSpec(cfg.Scheduler.Spec),
	)
	if err := stack.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start scheduler: %w", err)
	}

	stack.Router, err = api.NewRouter(stack.DB, stack.Engine, stack.Hub, cfg)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		<-s.Scheduler.Stop().Done()
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func buildMailer(cfg *app.Config, log *zap.Logger) (mail.Mailer, error) {
	if !cfg.Email.SMTP.Enabled {
		log.Info("smtp disabled; outbound mail will be logged only")
		return mail.NewConsoleMailer(logger.WithModule("mail")), nil
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise smtp mailer: %w", err)
	}
	return mailer, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
