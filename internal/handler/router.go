package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/middleware"
	"github.com/noah-isme/dept-portal-api/internal/models"
)

type collectionHandler interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Patch(c *gin.Context)
	Delete(c *gin.Context)
}

// CollectionRoute mounts CRUD endpoints for one stored collection. Reads are
// open to every signed-in user; admins may always write.
type CollectionRoute struct {
	Path    string
	Handler collectionHandler
	Create  []models.UserRole
	Modify  []models.UserRole
}

// Handlers bundles everything Register mounts.
type Handlers struct {
	Auth        *AuthHandler
	Marks       *MarkHandler
	Workflow    *WorkflowHandler
	Exports     *ExportHandler
	Admin       *AdminHandler
	System      *MetricsHandler
	Collections []CollectionRoute

	Tokens    middleware.TokenValidator
	Readiness middleware.ReadinessGate
	AuditLog  *zap.Logger
}

// RouterConfig controls mounting.
type RouterConfig struct {
	APIPrefix string
	Docs      bool
}

// Register mounts the health endpoints at the root and the API under the prefix.
func Register(r *gin.Engine, cfg RouterConfig, h Handlers) {
	r.GET("/health", h.System.Health)
	r.GET("/ready", h.System.Ready)
	r.GET("/metrics", h.System.Prometheus)
	if cfg.Docs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	api := r.Group(prefix)
	api.Use(middleware.RequireReady(h.Readiness))

	api.POST("/auth/login", h.Auth.Login)
	api.GET("/backups/download", h.Admin.DownloadBackup)

	secured := api.Group("")
	secured.Use(middleware.JWT(h.Tokens), middleware.Audit(h.AuditLog))
	secured.GET("/auth/me", h.Auth.Me)

	for _, route := range h.Collections {
		g := secured.Group("/" + route.Path)
		g.GET("", route.Handler.List)
		g.GET("/:id", route.Handler.Get)
		g.POST("", middleware.RequireRoles(route.Create...), route.Handler.Create)
		g.PATCH("/:id", middleware.RequireRoles(route.Modify...), route.Handler.Patch)
		g.DELETE("/:id", middleware.RequireRoles(route.Modify...), route.Handler.Delete)
	}

	markWriters := middleware.RequireRoles(models.RoleFaculty, models.RoleTutor)
	marks := secured.Group("/marks")
	marks.GET("", h.Marks.List)
	marks.GET("/:id", h.Marks.Get)
	marks.PUT("", markWriters, h.Marks.Upsert)
	marks.POST("", markWriters, h.Marks.Upsert)
	marks.PATCH("/:id", markWriters, h.Marks.Patch)
	marks.DELETE("/:id", markWriters, h.Marks.Delete)
	marks.POST("/:id/status", markWriters, h.Marks.Transition)

	secured.POST("/leave-requests/:id/resolve", middleware.RequireRoles(models.RoleTutor), h.Workflow.ResolveLeave)
	secured.POST("/achievements/:id/resolve", middleware.RequireRoles(models.RoleTutor, models.RoleFaculty), h.Workflow.ResolveAchievement)

	secured.GET("/exports/:file", middleware.RequireRoles(models.RoleFaculty, models.RoleTutor), h.Exports.Download)

	admin := secured.Group("/admin")
	admin.Use(middleware.RequireRoles())
	admin.GET("/users", h.Auth.ListUsers)
	admin.POST("/users", h.Auth.Register)
	admin.GET("/backups", h.Admin.ListBackups)
	admin.POST("/backups", h.Admin.RequestBackup)
	admin.POST("/graduation/recompute", h.Admin.RecomputeGraduation)
	admin.GET("/migrations", h.Admin.Migrations)
}
