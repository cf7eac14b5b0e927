// handlers/progress_routes.go
package handlers

import (
	"errors"
	"strconv"
	"time"

	"fitness-progress-system/middleware"
	"fitness-progress-system/models"
	"fitness-progress-system/services"

	"github.com/gofiber/fiber/v2"
)

// serviceError maps a ServiceError to its HTTP response; anything else is a 500.
func serviceError(c *fiber.Ctx, err error, fallback string) error {
	var se *services.ServiceError
	if errors.As(err, &se) {
		return c.Status(se.GetStatusCode()).JSON(fiber.Map{
			"error": se.Message,
			"type":  se.Type,
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": fallback,
		"cause": err.Error(),
	})
}

func SetupProgressRoutes(app *fiber.App, progressService *services.ProgressService, badgeService *services.BadgeService, activityService *services.ActivityService, eventService *services.EventService, authClient *services.AuthServiceClient) {
	// 🔐 Secured routes — require user context (userID, roles) from Gateway.
	// Grouped under /s so the middleware's path guard actually enforces;
	// the Gateway forwards /api/v1/progress/s/user/progress -> /s/user/progress
	securedGroup := app.Group("/s", middleware.UserContextMiddleware())

	// Inbound trigger: a scoring-eligible action completed upstream
	securedGroup.Post("/activity", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		type Req struct {
			ActivityType    string  `json:"activity_type"`
			OccurredAt      string  `json:"occurred_at"` // RFC3339; defaults to now
			Description     string  `json:"description"`
			RelatedEntityID *string `json:"related_entity_id"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		occurredAt := time.Now().UTC()
		if req.OccurredAt != "" {
			parsed, err := time.Parse(time.RFC3339, req.OccurredAt)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "occurred_at must be RFC3339",
					"cause": err.Error(),
				})
			}
			occurredAt = parsed
		}

		prog, err := progressService.RecordActivity(userID, req.ActivityType, occurredAt, req.Description, req.RelatedEntityID)
		if err != nil {
			return serviceError(c, err, "failed to record activity")
		}
		return c.JSON(prog)
	})

	securedGroup.Get("/user/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		prog, err := progressService.EnsureProgressRecord(userID)
		if err != nil {
			return serviceError(c, err, "failed to load progress")
		}

		return c.JSON(fiber.Map{
			"id":                   prog.ID,
			"total_points":         prog.TotalPoints,
			"current_streak":       prog.CurrentStreak,
			"longest_streak":       prog.LongestStreak,
			"last_qualifying_date": prog.LastQualifyingDate,
		})
	})

	securedGroup.Get("/user/progress/activity", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		days, _ := strconv.Atoi(c.Query("days", "7"))
		entries, err := activityService.GetRecentActivity(userID, days)
		if err != nil {
			return serviceError(c, err, "failed to load recent activity")
		}
		return c.JSON(entries)
	})

	securedGroup.Get("/user/badges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		badges, err := badgeService.GetEarnedBadges(userID)
		if err != nil {
			return serviceError(c, err, "failed to load earned badges")
		}
		return c.JSON(badges)
	})

	securedGroup.Get("/badges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		badges, err := badgeService.GetAvailableBadges(userID)
		if err != nil {
			return serviceError(c, err, "failed to load badge catalog")
		}
		return c.JSON(badges)
	})

	securedGroup.Get("/user/events", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		events, err := eventService.GetRecentEvents(userID, limit)
		if err != nil {
			return serviceError(c, err, "failed to load events")
		}
		return c.JSON(events)
	})

	// SSE feed — token auth via query params (EventSource cannot set headers)
	app.Get("/user/events/stream", middleware.SSEAuthMiddleware(authClient), eventService.StreamUserEventsSSE)

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	adminGroup.Post("/sweep", func(c *fiber.Ctx) error {
		type Req struct {
			AsOf string `json:"as_of"` // "2006-01-02"; defaults to today
		}
		var req Req
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		asOf := time.Now().UTC()
		if req.AsOf != "" {
			parsed, err := time.Parse("2006-01-02", req.AsOf)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "as_of must be YYYY-MM-DD",
					"cause": err.Error(),
				})
			}
			asOf = parsed
		}

		broken, err := progressService.RunDailySweep(asOf)
		if err != nil {
			return serviceError(c, err, "sweep failed")
		}
		return c.JSON(fiber.Map{
			"message":        "sweep completed",
			"streaks_broken": broken,
		})
	})

	adminGroup.Post("/points/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id"`
			Points int64  `json:"points"`
			Reason string `json:"reason"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		prog, err := progressService.CreditPoints(req.UserID, req.Points, models.ActivityAdminGrant, req.Reason, nil)
		if err != nil {
			return serviceError(c, err, "point grant failed")
		}
		return c.JSON(fiber.Map{
			"message":      "points granted successfully",
			"user_id":      req.UserID,
			"points":       req.Points,
			"total_points": prog.TotalPoints,
		})
	})

	adminGroup.Post("/badges", func(c *fiber.Ctx) error {
		var input models.BadgeType
		if err := c.BodyParser(&input); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		created, err := badgeService.CreateBadgeType(&input)
		if err != nil {
			return serviceError(c, err, "badge creation failed")
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})
}
