package transport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poro/notify-engine/internal/service"
)

func InitRoutes(mode string, notifications service.NotificationUseCase, templates service.TemplateUseCase, registry *prometheus.Registry) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	router := gin.Default()

	notificationHandler := NewNotificationHandler(notifications)
	templateHandler := NewTemplateHandler(templates)

	api := router.Group("/api/v1")
	{
		api.POST("/notifications", notificationHandler.Create)
		api.GET("/notifications/:id", notificationHandler.Get)
		api.DELETE("/notifications/:id", notificationHandler.Cancel)
		api.POST("/notifications/:id/delivered", notificationHandler.MarkDelivered)
		api.POST("/notifications/:id/read", notificationHandler.MarkRead)
		api.GET("/users/:user_id/notifications", notificationHandler.ListByUser)

		api.PUT("/templates/:type", templateHandler.Upsert)
		api.GET("/templates/:type", templateHandler.Get)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   "notify-engine",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	router.GET("/stats", notificationHandler.Stats)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return router
}
