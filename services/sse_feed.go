package services

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"time"

	"fitness-progress-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// StreamUserEventsSSE streams new engagement events (milestones, broken
// streaks, badge awards) for the authenticated user as server-sent events.
// It tails the event outbox table; delivery to push/email channels stays
// with the external notifier.
func (s *EventService) StreamUserEventsSSE(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var lastMaxCreatedAt time.Time

		// Initialize cursor at the newest existing event
		var latest models.EngagementEvent
		if err := s.DB.
			Where("external_user_id = ?", userID).
			Order("created_at DESC").
			First(&latest).Error; err == nil {
			lastMaxCreatedAt = latest.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("SSE init error for user %s: %v", userID, err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var newEvents []models.EngagementEvent

				err := s.DB.
					Where("external_user_id = ? AND created_at > ?", userID, lastMaxCreatedAt).
					Order("created_at ASC").
					Find(&newEvents).Error

				if err != nil {
					log.Printf("SSE query error for user %s: %v", userID, err)
					continue
				}

				if len(newEvents) == 0 {
					continue
				}

				lastMaxCreatedAt = newEvents[len(newEvents)-1].CreatedAt

				for _, e := range newEvents {
					fmt.Fprintf(w,
						"event: %s\ndata: %s\n\n",
						e.Kind, e.Payload,
					)
				}

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
