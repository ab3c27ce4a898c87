package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/promptcrm/backend/internal/application/services"
	"github.com/promptcrm/backend/internal/interfaces/middleware"
)

// SetupRouter builds the full HTTP surface on top of the service graph
func SetupRouter(svcMgr *services.ServiceManager) *gin.Engine {
	router := gin.Default()
	router.Use(middleware.Cors())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"server": "golang",
		})
	})

	authHandler := NewAuthHandler(svcMgr)
	projectHandler := NewProjectHandler(svcMgr)
	schemaHandler := NewSchemaHandler(svcMgr)
	lockHandler := NewLockHandler(svcMgr)
	versionHandler := NewVersionHandler(svcMgr)
	traceHandler := NewTraceHandler(svcMgr)

	requireAuth := middleware.RequireAuth()

	api := router.Group("/api")
	{
		// Public auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", requireAuth, authHandler.GetMe)
		}

		// Protected project routes
		projects := api.Group("/projects")
		projects.Use(requireAuth)
		{
			projects.POST("", projectHandler.Create)
			projects.GET("", projectHandler.List)
			projects.GET("/:projectId", projectHandler.Get)

			projects.GET("/:projectId/schema", schemaHandler.GetActive)
			projects.POST("/:projectId/schema/generate", schemaHandler.Generate)

			projects.POST("/:projectId/schema/lock", lockHandler.Acquire)
			projects.DELETE("/:projectId/schema/lock", lockHandler.Release)
			projects.GET("/:projectId/schema/lock", lockHandler.Status)

			projects.GET("/:projectId/schema/versions", versionHandler.List)
			projects.POST("/:projectId/schema/rollback", versionHandler.Rollback)

			projects.GET("/:projectId/schema/traces", traceHandler.List)
		}
	}

	return router
}
