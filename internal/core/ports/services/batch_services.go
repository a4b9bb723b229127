package services

import (
	"context"

	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
)

// BatchSvc assigns disbursements to settlement windows.
type BatchSvc interface {
	// GetOrCreateBatch returns the open batch for the window now+daysOffset falls in, creating it if needed.
	// An already issued window yields the batch of the window after it.
	GetOrCreateBatch(ctx context.Context, batchType domain.BatchType, entityID string, daysOffset int) (*domain.Batch, error)

	// GetOrCreateBatchForWindow returns the batch for an explicit window, creating it if needed.
	GetOrCreateBatchForWindow(ctx context.Context, batchType domain.BatchType, entityID string, window domain.BatchWindow) (*domain.Batch, error)

	// EnsureOpenBatch returns the named batch while it is still Scheduled, and the
	// open batch for now otherwise.
	EnsureOpenBatch(ctx context.Context, batchType domain.BatchType, entityID, batchNumber string) (*domain.Batch, error)

	// ResolveFundingAccount picks the funding account for a cost type from product accounting rules.
	ResolveFundingAccount(costType, catastropheType string, accounting domain.ProductAccounting) (string, error)
}

// ReleaseResult summarizes one release run.
type ReleaseResult struct {
	BatchesReleased       int
	DisbursementsUploaded int
	Failures              int
}

// ReleaseSvc sends due batches to the provider.
type ReleaseSvc interface {
	// ReleaseDueBatches uploads every due Scheduled batch of one stream for a product.
	ReleaseDueBatches(ctx context.Context, product domain.ProductMain, batchType domain.BatchType) (ReleaseResult, error)

	// MoveUnreleased reassigns Approved disbursements stranded in already issued batches
	// to the next window. It returns how many records moved.
	MoveUnreleased(ctx context.Context, entityID string, batchType domain.BatchType) (int, error)
}
