package domain

import (
	"fmt"
	"time"
)

// BatchState tracks whether a batch has been released to the provider.
type BatchState string

const (
	BatchScheduled BatchState = "Scheduled"
	BatchIssued    BatchState = "Issued"
)

// Batch groups disbursements released together in one settlement window.
type Batch struct {
	EntityID          string     `json:"entityId"`
	BatchNumber       string     `json:"batchNumber"`
	BatchType         BatchType  `json:"batchType"`
	State             BatchState `json:"state"`
	ScheduledDateTime time.Time  `json:"scheduledDateTime"`
	ReleasedDateTime  *time.Time `json:"releasedDateTime,omitempty"`
	AuditFields
}

// BatchKey builds the primary key of a batch record.
func BatchKey(entityID, batchNumber string) string {
	return fmt.Sprintf("%s_%s", entityID, batchNumber)
}

func (b Batch) ID() string {
	return BatchKey(b.EntityID, b.BatchNumber)
}

// EntitySortKey is the type-prefixed sort value used by the per-entity index.
func (b Batch) EntitySortKey() string {
	return EntitySortKey(string(b.BatchType), b.BatchNumber)
}

// IsDue reports whether a scheduled batch has reached its release time.
func (b Batch) IsDue(now time.Time) bool {
	return b.State == BatchScheduled && !b.ScheduledDateTime.After(now)
}

// NewBatch builds a Scheduled batch for the given window.
func NewBatch(entityID string, batchType BatchType, w BatchWindow, now time.Time) Batch {
	return Batch{
		EntityID:          entityID,
		BatchNumber:       w.BatchNumber(),
		BatchType:         batchType,
		State:             BatchScheduled,
		ScheduledDateTime: w.ScheduledDateTime(),
		AuditFields: AuditFields{
			CreatedAt:     now,
			CreatedBy:     SystemActor,
			LastUpdatedAt: now,
			LastUpdatedBy: SystemActor,
		},
	}
}

// SystemActor is recorded on changes made by scheduled jobs and reconciliation.
const SystemActor = "system"
