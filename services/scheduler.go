// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartSweepScheduler runs the daily streak sweep shortly after midnight UTC.
// The sweep itself is idempotent, so a duplicate run (restart, overlapping
// deploy) does no harm.
func (s *ProgressService) StartSweepScheduler() {
	sched, _ := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(func() {
			asOf := time.Now().UTC()
			log.Printf("🧹 [SWEEP] Daily streak sweep starting (as of %s)", asOf.Format("2006-01-02"))
			if _, err := s.RunDailySweep(asOf); err != nil {
				log.Printf("❌ [SWEEP] Daily streak sweep failed: %v", err)
			}
		}),
	)
}
