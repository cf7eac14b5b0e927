// workers/ledger_archive_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"fitness-progress-system/models"
	"fitness-progress-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ledger entries older than this are moved to R2 and removed from the DB.
// Retention is a storage concern: every derived value (points, streaks,
// badges) is already folded into the progress records before expiry, and
// count-based badge criteria only look inside the retained window.
const LedgerRetentionDays = 90

const archiveBatchSize = 1000

// LedgerArchiveWorker exports expired ledger entries to R2, then deletes
// them. Rows are deleted only after the upload succeeds, so a failed tick
// retries the same batch — duplicated archive objects are harmless,
// lost ledger rows are not.
type LedgerArchiveWorker struct {
	DB *gorm.DB
}

func NewLedgerArchiveWorker(db *gorm.DB) *LedgerArchiveWorker {
	return &LedgerArchiveWorker{DB: db}
}

// PollExpiredEntries runs the archive loop until ctx is cancelled.
func (w *LedgerArchiveWorker) PollExpiredEntries(ctx context.Context, pollInterval time.Duration) {
	log.Println("🗄️ Starting ledger archive worker (R2-backed retention)…")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ Ledger archive worker stopped")
			return
		case <-ticker.C:
			if err := w.archiveOnce(ctx); err != nil {
				log.Printf("❌ Ledger archive tick failed: %v", err)
			}
		}
	}
}

// archiveOnce drains expired entries in batches until none remain.
func (w *LedgerArchiveWorker) archiveOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -LedgerRetentionDays)

	for {
		var batch []models.ActivityEntry
		if err := w.DB.Where("occurred_at < ?", cutoff).
			Order("occurred_at ASC").
			Limit(archiveBatchSize).
			Find(&batch).Error; err != nil {
			return fmt.Errorf("failed to load expired ledger entries: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		payload, err := json.Marshal(batch)
		if err != nil {
			return fmt.Errorf("failed to encode archive batch: %w", err)
		}

		key := fmt.Sprintf("ledger-archive/%s/batch-%s.json",
			time.Now().UTC().Format("2006-01-02"), uuid.NewString())
		if _, err := utils.UploadBytesToR2(ctx, key, payload, "application/json"); err != nil {
			return fmt.Errorf("failed to upload archive batch: %w", err)
		}

		ids := make([]string, len(batch))
		for i, entry := range batch {
			ids[i] = entry.ID
		}
		if err := w.DB.Where("id IN ?", ids).
			Delete(&models.ActivityEntry{}).Error; err != nil {
			// Upload succeeded, delete didn't — next tick re-uploads the same
			// rows under a new key and tries again
			return fmt.Errorf("failed to delete archived entries: %w", err)
		}

		log.Printf("✅ Archived %d ledger entr(ies) older than %s → %s",
			len(batch), cutoff.Format("2006-01-02"), key)

		if len(batch) < archiveBatchSize {
			return nil
		}
	}
}
