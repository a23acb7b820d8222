package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/toolforge/toolforge/internal/auth"
	"github.com/toolforge/toolforge/internal/handlers"
	"github.com/toolforge/toolforge/internal/middleware"
	"github.com/toolforge/toolforge/internal/models"
	"github.com/toolforge/toolforge/internal/repositories"
)

// RegisterRoutes registers all application routes under /api
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	toolHandler *handlers.ToolHandler,
	ratingHandler *handlers.RatingHandler,
	commentHandler *handlers.CommentHandler,
	adminHandler *handlers.AdminHandler,
	tokenManager *auth.TokenManager,
	userRepo *repositories.UserRepository,
) {
	authLimit := middleware.RateLimitByIP(middleware.DefaultAuthRateLimit())
	apiLimit := middleware.RateLimitByIP(middleware.DefaultAPIRateLimit())

	router.Route("/api", func(r chi.Router) {
		// Public routes; the credential and code endpoints carry the
		// tight per-IP limit
		r.With(authLimit).Post("/auth/register", authHandler.Register)
		r.With(authLimit).Post("/auth/login", authHandler.Login)
		r.With(authLimit).Post("/auth/verify-2fa", authHandler.VerifyChallenge)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiLimit)
			r.Use(auth.AuthMiddleware(tokenManager))

			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/change-password", authHandler.ChangePassword)
			r.Post("/auth/enable-2fa", authHandler.EnableTwoFA)
			r.Post("/auth/disable-2fa", authHandler.DisableTwoFA)

			// Catalog
			r.Get("/tools", toolHandler.List)
			r.Get("/tools/stats", toolHandler.Stats)
			r.Get("/tools/my", toolHandler.ListMine)
			r.Post("/tools", toolHandler.Create)
			r.Get("/tools/{id}", toolHandler.Get)
			r.Put("/tools/{id}", toolHandler.Update)
			r.Delete("/tools/{id}", toolHandler.Delete)

			// Ratings
			r.Post("/tools/{id}/rating", ratingHandler.Rate)
			r.Get("/tools/{id}/rating", ratingHandler.GetOwn)
			r.Delete("/tools/{id}/rating", ratingHandler.Remove)
			r.Get("/tools/{id}/ratings", ratingHandler.ListByTool)
			r.Get("/tools/{id}/rating/stats", ratingHandler.Stats)

			// Comments
			r.Get("/tools/{id}/comments", commentHandler.ListByTool)
			r.Post("/tools/{id}/comments", commentHandler.Create)
			r.Put("/comments/{id}", commentHandler.Update)
			r.Delete("/comments/{id}", commentHandler.Delete)
			r.Post("/comments/{id}/vote", commentHandler.Vote)

			// Moderation: moderators and admins
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireModerator(userRepo))
				r.Get("/admin/tools/pending", adminHandler.ListPendingTools)
				r.Post("/admin/tools/{id}/approve", adminHandler.ApproveTool)
				r.Post("/admin/tools/{id}/reject", adminHandler.RejectTool)
			})

			// Administration: admins only
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(userRepo, models.RoleAdmin))
				r.Get("/admin/users", adminHandler.ListUsers)
				r.Put("/admin/users/{id}/role", adminHandler.ChangeRole)
				r.Get("/admin/stats", adminHandler.Overview)
				r.Get("/admin/audit-logs", adminHandler.AuditLogs)
			})
		})
	})
}
