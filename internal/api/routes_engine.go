package api

import (
	"github.com/gin-gonic/gin"

	"github.com/studypay/duebell/internal/handlers"
	"github.com/studypay/duebell/internal/middleware"
)

func registerEngineRoutes(api *gin.RouterGroup, handler *handlers.EngineHandler, triggerKey string) {
	requireKey := middleware.RequireEngineKey(triggerKey)

	api.POST("/engine/run", requireKey, handler.RunPass)
	api.POST("/events/payment-received", requireKey, handler.PaymentReceived)
}
