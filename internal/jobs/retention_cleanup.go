package jobs

import (
	"context"
	"log"
	"time"

	"atendai/internal/database"
)

// retentionBatchSize bounds one DELETE so the job never holds long row locks
const retentionBatchSize = 5000

// RetentionCleanupJob deletes durable interaction rows older than the
// configured retention window. Conversation aggregates are kept; only the
// per-message log is pruned.
type RetentionCleanupJob struct {
	db            *database.DB
	retentionDays int
}

// NewRetentionCleanupJob creates the cleanup job
func NewRetentionCleanupJob(db *database.DB, retentionDays int) *RetentionCleanupJob {
	return &RetentionCleanupJob{db: db, retentionDays: retentionDays}
}

// GetNextRunTime schedules the job daily around 03:00 UTC
func (j *RetentionCleanupJob) GetNextRunTime() time.Time {
	now := time.Now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run deletes expired interaction rows in batches
func (j *RetentionCleanupJob) Run(ctx context.Context) error {
	if j.db == nil || j.retentionDays <= 0 {
		log.Println("[RETENTION] Interaction cleanup disabled")
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -j.retentionDays)
	log.Printf("[RETENTION] Deleting interactions older than %s...", cutoff.Format(time.RFC3339))

	totalDeleted := int64(0)
	for {
		result, err := j.db.ExecContext(ctx,
			`DELETE FROM interactions WHERE created_at < ? LIMIT ?`,
			cutoff, retentionBatchSize)
		if err != nil {
			log.Printf("[RETENTION] Delete batch failed: %v", err)
			return err
		}

		deleted, err := result.RowsAffected()
		if err != nil {
			return err
		}
		totalDeleted += deleted
		if deleted < retentionBatchSize {
			break
		}
	}

	log.Printf("[RETENTION] Cleanup complete: deleted %d interactions", totalDeleted)
	return nil
}
