package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/studypay/duebell/internal/app"
	"github.com/studypay/duebell/internal/engine"
	"github.com/studypay/duebell/internal/handlers"
	"github.com/studypay/duebell/internal/middleware"
	"github.com/studypay/duebell/internal/notifications"
	"github.com/studypay/duebell/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(db *gorm.DB, eng *engine.Engine, hub *notifications.Hub, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if eng == nil {
		return nil, fmt.Errorf("engine must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoint (public)
	r.GET("/health", handlers.Health(db))

	notificationSvc, err := services.NewNotificationService(db, hub)
	if err != nil {
		return nil, err
	}
	settingsSvc, err := services.NewSettingsService(db)
	if err != nil {
		return nil, err
	}

	engineHandler, err := handlers.NewEngineHandler(eng)
	if err != nil {
		return nil, err
	}
	notificationHandler, err := handlers.NewNotificationHandler(notificationSvc, hub)
	if err != nil {
		return nil, err
	}
	settingsHandler, err := handlers.NewSettingsHandler(settingsSvc)
	if err != nil {
		return nil, err
	}

	api := r.Group("/api")

	// Machine-to-machine surface: trigger and event ingestion.
	registerEngineRoutes(api, engineHandler, cfg.Engine.TriggerKey)

	// Tenant surface behind gateway identity headers.
	tenant := api.Group("")
	tenant.Use(middleware.TenantIdentity())
	registerNotificationRoutes(tenant, notificationHandler)
	registerSettingsRoutes(tenant, settingsHandler)

	if cfg.Monitoring.Enabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
