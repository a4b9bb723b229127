package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
)

// BatchFilter narrows a batch listing.
type BatchFilter struct {
	BatchType       domain.BatchType
	States          []domain.BatchState
	ScheduledBefore *time.Time
	ScheduledAfter  *time.Time
}

// Matches applies the filter to a single batch.
func (f BatchFilter) Matches(b domain.Batch) bool {
	if f.BatchType != "" && b.BatchType != f.BatchType {
		return false
	}
	if len(f.States) > 0 {
		found := false
		for _, s := range f.States {
			if b.State == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ScheduledBefore != nil && b.ScheduledDateTime.After(*f.ScheduledBefore) {
		return false
	}
	if f.ScheduledAfter != nil && b.ScheduledDateTime.Before(*f.ScheduledAfter) {
		return false
	}
	return true
}

// BatchReader defines read operations for batch records
type BatchReader interface {
	// FindBatch loads a batch by its key. Absent records yield apperrors.ErrNotFound.
	FindBatch(ctx context.Context, entityID, batchNumber string, batchType domain.BatchType) (*domain.Batch, error)

	// ListBatchesByEntity pages through an entity's batches ordered by type and batch number.
	ListBatchesByEntity(ctx context.Context, entityID string, filter BatchFilter, limit int, nextToken *string) ([]domain.Batch, *string, error)
}

// BatchWriter defines write operations for batch records
type BatchWriter interface {
	// CreateBatch inserts the batch unless one with the same key exists.
	// It reports whether this call created it; a lost race is not an error.
	CreateBatch(ctx context.Context, batch domain.Batch) (bool, error)

	// SaveBatch overwrites an existing batch.
	SaveBatch(ctx context.Context, batch domain.Batch) error
}

// BatchRepositoryFacade combines all batch-related repository interfaces
type BatchRepositoryFacade interface {
	BatchReader
	BatchWriter
}
