package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Cache, cfg.Version)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	// Reading import endpoints
	if cfg.Reconciler != nil {
		importsController := NewReadingImportsController(cfg.Reconciler, cfg.TaskQueue, cfg.MaxUploadBytes, cfg.SkipDuplicates, cfg.Logger)
		api := router.Group("/api/reading-imports")
		api.POST("", importsController.Upload)
		api.GET("/:id", importsController.Preview)
		api.POST("/:id/execute", importsController.Execute)
		api.GET("/:id/run", importsController.Run)
		api.DELETE("/:id", importsController.Discard)

		rereadsController := NewRereadsController(cfg.Reconciler, cfg.SkipDuplicates, cfg.Logger)
		router.POST("/api/books/:id/rereads", rereadsController.Create)
	}

	if cfg.History != nil {
		historyController := NewHistoryController(cfg.History, cfg.Logger)
		router.GET("/api/books/:id/sessions", historyController.GetSessions)
	}

	// Task management endpoints
	if cfg.TaskQueue != nil {
		tasksController := NewTasksController(cfg.TaskQueue, cfg.Logger)
		router.GET("/api/tasks/:id", tasksController.GetTaskStatus)
	}

	return router
}
