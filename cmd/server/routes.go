package main

import (
	"github.com/gin-gonic/gin"
	"github.com/planflow/backend/internal/config"
	"github.com/planflow/backend/internal/handlers"
	"github.com/planflow/backend/internal/middleware"
	"github.com/planflow/backend/pkg/logger"
	"gorm.io/gorm"
)

// SetupRouter builds the full route table. Three tiers: public (login,
// health), authenticated, and admin-only with audit logging.
func SetupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(logger.GinLogger())
	router.Use(logger.GinRecovery())
	router.Use(middleware.CORS())

	authHandler := handlers.NewAuthHandler(db, cfg)
	userHandler := handlers.NewUserHandler(db)
	projectHandler := handlers.NewProjectHandler(db)
	memberHandler := handlers.NewProjectMemberHandler(db)
	documentHandler := handlers.NewDocumentHandler(db)
	activityHandler := handlers.NewActivityHandler(db)
	systemLogHandler := handlers.NewSystemLogHandler(db)
	healthHandler := handlers.NewHealthHandler(db)

	api := router.Group("/api")

	// Public routes. Login and refresh are rate limited per IP to slow
	// credential stuffing.
	loginLimit := middleware.RateLimit(1, 5)
	router.GET("/health", healthHandler.Check)
	api.GET("/health", healthHandler.Check)
	api.GET("/auth/config", authHandler.Config)
	api.POST("/auth/login", loginLimit, authHandler.Login)
	api.POST("/auth/refresh", loginLimit, authHandler.Refresh)

	// Authenticated routes.
	authed := api.Group("")
	authed.Use(middleware.AuthRequired())
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.GET("/auth/me", authHandler.Me)
		authed.POST("/auth/change-password", authHandler.ChangePassword)

		authed.GET("/projects", projectHandler.List)
		authed.GET("/projects/:id", projectHandler.Get)
		authed.GET("/projects/:id/members", memberHandler.List)
		authed.GET("/projects/:id/documents", documentHandler.List)
		authed.POST("/projects/:id/documents", documentHandler.Create)
		authed.GET("/projects/:id/activities", activityHandler.List)
		authed.POST("/projects/:id/activities", activityHandler.Record)
		authed.GET("/projects/:id/stats", activityHandler.Stats)

		authed.GET("/documents/:id", documentHandler.Get)
		authed.PUT("/documents/:id", documentHandler.Edit)
		authed.POST("/documents/:id/submit", documentHandler.Submit)

		// Admin gates on these live in the services; approve and reject
		// stay here so any member gets a proper forbidden, not a 404.
		authed.POST("/documents/:id/approve", documentHandler.Approve)
		authed.POST("/documents/:id/reject", documentHandler.Reject)
	}

	// Admin routes, all audited.
	admin := api.Group("")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog())
	{
		admin.POST("/projects", projectHandler.Create)
		admin.PUT("/projects/:id", projectHandler.Update)
		admin.DELETE("/projects/:id", projectHandler.Delete)

		admin.POST("/projects/:id/members", memberHandler.Add)
		admin.PUT("/projects/:id/members/:user_id", memberHandler.UpdateRole)
		admin.DELETE("/projects/:id/members/:user_id", memberHandler.Remove)

		admin.GET("/users", userHandler.List)
		admin.GET("/users/:id", userHandler.Get)
		admin.POST("/users", userHandler.Create)
		admin.PUT("/users/:id", userHandler.Update)
		admin.POST("/users/:id/reset-password", userHandler.ResetPassword)
		admin.DELETE("/users/:id", userHandler.Delete)

		admin.GET("/system/logs", systemLogHandler.List)
		admin.GET("/system/logs/modules", systemLogHandler.Modules)
		admin.GET("/system/logs/retention", systemLogHandler.GetRetention)
		admin.PUT("/system/logs/retention", systemLogHandler.SetRetention)
		admin.POST("/system/logs/cleanup", systemLogHandler.Cleanup)
	}

	return router
}
