package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wpliao1997/estimation-validator/api/handlers"
	"github.com/wpliao1997/estimation-validator/api/middleware"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	// 估驗文件路由組
	docs := v1.Group("/estimations")
	{
		docs.POST("/validate", h.Estimation.ValidateDocument)
		docs.POST("/batch", h.Estimation.ValidateBatch)
		docs.GET("/status/:taskId", h.Estimation.GetStatus)
		docs.GET("/report/:taskId", h.Estimation.GetReport)
		docs.GET("/download/:taskId", h.Estimation.DownloadReport)
		docs.DELETE("/task/:taskId", h.Estimation.CancelTask)
	}
}
