package handlers

import (
	"club-ranking-system/middleware"
	"club-ranking-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPlayerRoutes(app *fiber.App, playerService *services.PlayerService) {
	// Public read views
	app.Get("/players", playerService.GetPlayersEndpoint)
	app.Get("/players/:id", playerService.GetPlayerEndpoint)
	app.Get("/players/:id/history", playerService.GetRatingHistoryEndpoint)
	app.Get("/ranking", playerService.GetRankingEndpoint)

	// Roster management
	admin := app.Group("/", middleware.AdminAuthMiddleware())
	admin.Post("/players", playerService.CreatePlayerEndpoint)
	admin.Put("/players/:id", playerService.UpdatePlayerEndpoint)
	admin.Delete("/players/:id", playerService.DeletePlayerEndpoint)
	admin.Post("/players/:id/avatar", playerService.UploadAvatarEndpoint)
}
