// Package router registers every HTTP route of the API.
package router

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/skillswap-api/internal/handler"
	"github.com/noah-isme/skillswap-api/internal/middleware"
	"github.com/noah-isme/skillswap-api/internal/models"
	"github.com/noah-isme/skillswap-api/internal/service"
)

// Config controls route layout.
type Config struct {
	APIPrefix  string
	EnableDocs bool
}

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Swaps         *handler.SwapHandler
	Feedback      *handler.FeedbackHandler
	Notifications *handler.NotificationHandler
	Announcements *handler.AnnouncementHandler
	Admin         *handler.AdminHandler
	Exports       *handler.ExportHandler
	Ops           *handler.MetricsHandler
}

// Deps are the cross-cutting collaborators middleware needs.
type Deps struct {
	Tokens  middleware.TokenValidator
	Audits  middleware.AuditWriter
	Metrics *service.MetricsService
	Logger  *zap.Logger
}

// Register mounts ops endpoints at the root and the API under cfg.APIPrefix.
func Register(r *gin.Engine, cfg Config, h Handlers, d Deps) {
	r.Use(middleware.Metrics(d.Metrics))

	r.GET("/health", h.Ops.Health)
	r.GET("/ready", h.Ops.Ready)
	r.GET("/metrics", h.Ops.Prometheus)
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := strings.TrimRight(cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix, middleware.WithResponseMeta())

	authed := middleware.JWT(d.Tokens)
	adminOnly := middleware.RBAC(models.RoleAdmin)

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", authed, h.Auth.Logout)
		auth.GET("/me", authed, h.Auth.Me)
		auth.POST("/change-password", authed, h.Auth.ChangePassword)
	}

	users := api.Group("/users", authed)
	{
		users.GET("/search", h.Users.Search)
		users.GET("/suggestions/skills", h.Users.SkillSuggestions)
		users.GET("/:id", h.Users.Get)
		users.PUT("/:id", h.Users.Update)
		users.DELETE("/:id", h.Users.Delete)
	}

	swaps := api.Group("/swaps", authed)
	{
		swaps.POST("", h.Swaps.Create)
		swaps.GET("/mine", h.Swaps.ListMine)
		swaps.GET("/:id", h.Swaps.Get)
		swaps.PUT("/:id/accept", h.Swaps.Accept)
		swaps.PUT("/:id/reject", h.Swaps.Reject)
		swaps.PUT("/:id/cancel", h.Swaps.Cancel)
		swaps.PUT("/:id/complete", h.Swaps.Complete)
	}

	api.GET("/feedback/user/:userId", middleware.OptionalJWT(d.Tokens), h.Feedback.ListForUser)
	feedback := api.Group("/feedback", authed)
	{
		feedback.POST("", h.Feedback.Submit)
		feedback.GET("/my-received", h.Feedback.ListReceived)
		feedback.GET("/my-given", h.Feedback.ListGiven)
		feedback.GET("/swap/:swapId", h.Feedback.ListForSwap)
		feedback.PUT("/:id", h.Feedback.Update)
		feedback.DELETE("/:id", h.Feedback.Delete)
	}

	notifications := api.Group("/notifications", authed)
	{
		notifications.GET("", h.Notifications.List)
		notifications.PUT("/read-all", h.Notifications.MarkAllRead)
		notifications.PUT("/:id/read", h.Notifications.MarkRead)
	}

	api.GET("/announcements", middleware.OptionalJWT(d.Tokens), h.Announcements.List)
	api.POST("/announcements", authed, adminOnly,
		middleware.Audit(d.Audits, d.Logger, models.AuditActionAnnouncement, "announcement"),
		h.Announcements.Create)

	api.GET("/exports/:token",
		middleware.Audit(d.Audits, d.Logger, models.AuditActionExportDownload, "export"),
		h.Exports.Download)

	admin := api.Group("/admin", authed, adminOnly)
	{
		admin.GET("/users", h.Admin.ListUsers)
		admin.PUT("/users/:id/ban", h.Admin.Ban)
		admin.PUT("/users/:id/unban", h.Admin.Unban)
		admin.PUT("/users/:id/role", h.Admin.SetRole)
		admin.PUT("/users/:id/skills", h.Admin.UpdateSkills)
		admin.GET("/swaps", h.Admin.ListSwaps)
		admin.POST("/swaps/export", h.Exports.ExportSwaps)
		admin.DELETE("/swaps/:id", h.Admin.DeleteSwap)
		admin.GET("/feedback", h.Admin.ListFeedback)
		admin.DELETE("/feedback/:id", h.Admin.DeleteFeedback)
	}
}
