// handlers/leaderboard_routes.go
package handlers

import (
	"strconv"

	"fitness-progress-system/middleware"
	"fitness-progress-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(app *fiber.App, leaderboardService *services.LeaderboardService) {
	// 🔓 Public behind the Gateway — no user context needed for the board itself
	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		metric := c.Query("metric", services.MetricTotalPoints)
		limit, _ := strconv.Atoi(c.Query("limit", "10"))

		entries, err := leaderboardService.Top(limit, metric)
		if err != nil {
			return serviceError(c, err, "failed to load leaderboard")
		}
		return c.JSON(fiber.Map{
			"metric":  metric,
			"entries": entries,
		})
	})

	// 🔐 Rank lookup for the calling user
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/user/rank", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		metric := c.Query("metric", services.MetricTotalPoints)

		rank, err := leaderboardService.RankOf(userID, metric)
		if err != nil {
			return serviceError(c, err, "failed to compute rank")
		}
		return c.JSON(fiber.Map{
			"metric": metric,
			"rank":   rank,
		})
	})
}
