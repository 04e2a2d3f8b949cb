package handlers

import (
	"club-ranking-system/middleware"
	"club-ranking-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMatchRoutes(app *fiber.App, matchService *services.MatchService, newsService *services.NewsService) {
	// Public read views
	app.Get("/matches", matchService.GetMatchesEndpoint)
	app.Get("/matches/:id", matchService.GetMatchEndpoint)
	app.Get("/news", newsService.GetNewsEndpoint)

	// Match lifecycle
	admin := app.Group("/", middleware.AdminAuthMiddleware())
	admin.Post("/matches", matchService.CreateMatchEndpoint)
	admin.Post("/matches/:id/finalize", matchService.FinalizeMatchEndpoint)
	admin.Delete("/matches/:id", matchService.DeleteMatchEndpoint)
}
