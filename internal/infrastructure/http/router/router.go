package router

import (
	"github.com/gin-gonic/gin"

	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/http/handler"
)

// SetupRoutes wires the Publisher HTTP Shim: one route per operation in
// §4.13, plus a health check for the container orchestrator.
func SetupRoutes(publisherHandler *handler.PublisherHandler) *gin.Engine {
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	docs := r.Group("/fiscal-documents")
	{
		docs.POST("/:id/submit", publisherHandler.Submit)
		docs.POST("/:id/poll", publisherHandler.Poll)
		docs.POST("/:id/cancel", publisherHandler.Cancel)
	}

	return r
}
