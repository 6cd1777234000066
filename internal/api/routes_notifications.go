package api

import (
	"github.com/gin-gonic/gin"

	"github.com/studypay/duebell/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.GET("/stream", handler.Stream)
		group.PATCH("/:id/read", handler.MarkRead)
		group.POST("/read-all", handler.MarkAllRead)
	}
}
