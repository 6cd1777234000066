package api

import (
	"github.com/gin-gonic/gin"

	"github.com/studypay/duebell/internal/handlers"
)

func registerSettingsRoutes(api *gin.RouterGroup, handler *handlers.SettingsHandler) {
	api.GET("/settings/engine", handler.GetEngineSettings)
	api.PUT("/settings/engine", handler.UpdateEngineSettings)

	rules := api.Group("/rules")
	{
		rules.GET("", handler.ListRules)
		rules.PUT("", handler.UpsertRule)
	}

	templates := api.Group("/templates")
	{
		templates.GET("", handler.ListTemplates)
		templates.POST("", handler.CreateTemplate)
		templates.PUT("/:id", handler.UpdateTemplate)
		templates.POST("/:id/activate", handler.ActivateTemplate)
	}
}
