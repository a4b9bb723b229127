package services

import (
	"context"

	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	"github.com/SscSPs/disbursement_backoffice/internal/dto"
)

// DisbursementReaderSvc defines read operations for disbursements
type DisbursementReaderSvc interface {
	// GetDisbursement loads one disbursement. An empty type matches any variant.
	GetDisbursement(ctx context.Context, entityID string, disbursementNumber int64, disbursementType string) (*domain.Disbursement, error)

	// ListDisbursements pages through an entity's disbursements.
	ListDisbursements(ctx context.Context, entityID string, params dto.ListDisbursementsParams) (*dto.ListDisbursementsResponse, error)

	// ListBatchDisbursements pages through the disbursements of one batch.
	ListBatchDisbursements(ctx context.Context, entityID, batchNumber string, params dto.ListDisbursementsParams) (*dto.ListDisbursementsResponse, error)
}

// DisbursementWriterSvc defines the lifecycle operations on disbursements
type DisbursementWriterSvc interface {
	// CreateDisbursement creates Pending disbursements. Print requests yield one record per recipient.
	CreateDisbursement(ctx context.Context, actorEmail string, req dto.CreateDisbursementRequest) ([]domain.Disbursement, error)

	// RequestAction applies Approve, Reject or MoveBatch to one disbursement.
	RequestAction(ctx context.Context, actorEmail string, req dto.ActionRequest) (*domain.Disbursement, error)

	// EditDisbursement replaces recipients. The bool reports whether the edit was applied.
	EditDisbursement(ctx context.Context, actorEmail string, req dto.EditDisbursementRequest) (*domain.Disbursement, bool, error)
}

// DisbursementSvcFacade combines all disbursement-related service interfaces
type DisbursementSvcFacade interface {
	DisbursementReaderSvc
	DisbursementWriterSvc
}
