package handlers

import (
	"club-ranking-system/middleware"
	"club-ranking-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupEventRoutes(app *fiber.App, sseService *services.SSEService) {
	stream := app.Group("/events", middleware.SSEAuthMiddleware())
	stream.Get("/ranking", sseService.StreamRankingSSE)
	stream.Get("/news", sseService.StreamNewsSSE)
}
