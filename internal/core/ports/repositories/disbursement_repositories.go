package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
)

// DisbursementFilter narrows a disbursement listing. Zero values mean "no restriction".
type DisbursementFilter struct {
	DisbursementType domain.DisbursementType
	States           []domain.DisbursementStateName
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
	PolicyID         string
	ClaimID          string
}

// Matches applies the filter to a single record.
func (f DisbursementFilter) Matches(d domain.Disbursement) bool {
	if f.DisbursementType != "" && d.DisbursementType != f.DisbursementType {
		return false
	}
	if len(f.States) > 0 {
		found := false
		for _, s := range f.States {
			if d.State.State == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CreatedFrom != nil && d.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && !d.CreatedAt.Before(*f.CreatedTo) {
		return false
	}
	if f.PolicyID != "" && d.PolicyID != f.PolicyID {
		return false
	}
	if f.ClaimID != "" && d.ClaimID != f.ClaimID {
		return false
	}
	return true
}

// DisbursementReader defines read operations for disbursement records
type DisbursementReader interface {
	// FindDisbursement loads a disbursement by entity and number. Absent records yield apperrors.ErrNotFound.
	FindDisbursement(ctx context.Context, entityID string, disbursementNumber int64) (*domain.Disbursement, error)

	// ListDisbursementsByBatch pages through the disbursements assigned to a batch.
	// A page is only shorter than limit when the result set is exhausted.
	ListDisbursementsByBatch(ctx context.Context, batchID string, filter DisbursementFilter, limit int, nextToken *string) ([]domain.Disbursement, *string, error)

	// ListDisbursementsByEntity pages through an entity's disbursements ordered by type and number.
	ListDisbursementsByEntity(ctx context.Context, entityID string, filter DisbursementFilter, limit int, nextToken *string) ([]domain.Disbursement, *string, error)
}

// DisbursementWriter defines write operations for disbursement records
type DisbursementWriter interface {
	// SaveDisbursement upserts a disbursement. A record without a number gets one allocated
	// and its creation time stamped; entering ProviderUploaded stamps the release time.
	SaveDisbursement(ctx context.Context, disbursement *domain.Disbursement) error
}

// DisbursementNumberAllocator hands out per-entity disbursement numbers.
type DisbursementNumberAllocator interface {
	// AllocateDisbursementNumber atomically increments and returns the entity's counter.
	AllocateDisbursementNumber(ctx context.Context, entityID string) (int64, error)
}

// DisbursementRepositoryFacade combines all disbursement-related repository interfaces
type DisbursementRepositoryFacade interface {
	DisbursementReader
	DisbursementWriter
	DisbursementNumberAllocator
}
