package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/carewellhq/notify-engine/internal/api/handlers/notification"
)

func New(handler *notification.Handler) *ginext.Engine {
	e := ginext.New()
	e.Use(ginext.Logger())
	e.Use(ginext.Recovery())

	api := e.Group("/api/notifications")

	api.POST("", handler.Create)
	api.GET("/:id", handler.Get)
	api.GET("/:id/status", handler.GetStatus)
	api.DELETE("/:id", handler.Cancel)

	e.GET("/api/recipients/:id/notifications", handler.ListByRecipient)

	return e
}
