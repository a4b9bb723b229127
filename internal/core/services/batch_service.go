package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portsrepo "github.com/SscSPs/disbursement_backoffice/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/clock"
)

type batchService struct {
	BaseService
	batchRepo portsrepo.BatchRepositoryFacade
}

// NewBatchService creates a new BatchService.
func NewBatchService(batchRepo portsrepo.BatchRepositoryFacade, c clock.Clock) portssvc.BatchSvc {
	return &batchService{
		BaseService: BaseService{Clock: c},
		batchRepo:   batchRepo,
	}
}

var _ portssvc.BatchSvc = (*batchService)(nil)

// GetOrCreateBatch moves on to the following window when the batch for the
// computed one has already been issued.
func (s *batchService) GetOrCreateBatch(ctx context.Context, batchType domain.BatchType, entityID string, daysOffset int) (*domain.Batch, error) {
	window := domain.BatchWindowFor(s.Clock.Now(), daysOffset)
	batch, err := s.GetOrCreateBatchForWindow(ctx, batchType, entityID, window)
	if err != nil || batch.State == domain.BatchScheduled {
		return batch, err
	}
	return s.GetOrCreateBatchForWindow(ctx, batchType, entityID, window.Next())
}

func (s *batchService) EnsureOpenBatch(ctx context.Context, batchType domain.BatchType, entityID, batchNumber string) (*domain.Batch, error) {
	if batchNumber != "" {
		batch, err := s.batchRepo.FindBatch(ctx, entityID, batchNumber, batchType)
		switch {
		case err == nil && batch.State == domain.BatchScheduled:
			return batch, nil
		case err != nil && !errors.Is(err, apperrors.ErrNotFound):
			return nil, fmt.Errorf("failed to look up batch %s: %w", batchNumber, err)
		}
	}
	return s.GetOrCreateBatch(ctx, batchType, entityID, 0)
}

// GetOrCreateBatchForWindow tolerates concurrent creators: whoever loses the
// insert re-reads the winner's batch.
func (s *batchService) GetOrCreateBatchForWindow(ctx context.Context, batchType domain.BatchType, entityID string, window domain.BatchWindow) (*domain.Batch, error) {
	if entityID == "" {
		return nil, apperrors.NewValidationError("entity id is required")
	}
	batchNumber := window.BatchNumber()

	existing, err := s.batchRepo.FindBatch(ctx, entityID, batchNumber, batchType)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		s.LogError(ctx, err, "Failed to look up batch", slog.String("batch_number", batchNumber))
		return nil, fmt.Errorf("failed to look up batch %s: %w", batchNumber, err)
	}

	batch := domain.NewBatch(entityID, batchType, window, s.Clock.Now())
	created, err := s.batchRepo.CreateBatch(ctx, batch)
	if err != nil {
		s.LogError(ctx, err, "Failed to create batch", slog.String("batch_number", batchNumber))
		return nil, fmt.Errorf("failed to create batch %s: %w", batchNumber, err)
	}
	if created {
		s.LogInfo(ctx, "Batch created",
			slog.String("entity_id", entityID),
			slog.String("batch_number", batchNumber),
			slog.String("batch_type", string(batchType)))
		return &batch, nil
	}

	return s.batchRepo.FindBatch(ctx, entityID, batchNumber, batchType)
}

func (s *batchService) ResolveFundingAccount(costType, catastropheType string, accounting domain.ProductAccounting) (string, error) {
	return domain.ResolveFundingAccount(costType, catastropheType, accounting)
}
