package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portsrepo "github.com/SscSPs/disbursement_backoffice/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/clock"
	"github.com/SscSPs/disbursement_backoffice/internal/vpay"
)

const (
	releasePageSize = 100
	// How far back the self-heal step looks for issued batches.
	unreleasedLookback = 7 * 24 * time.Hour
)

type releaseService struct {
	BaseService
	disbursementRepo portsrepo.DisbursementRepositoryFacade
	batchRepo        portsrepo.BatchRepositoryFacade
	batchSvc         portssvc.BatchSvc
	storage          portssvc.BlobStorage
	dialer           portssvc.TransportDialer
	dirs             TransportDirs
}

// ReleaseServiceDeps groups the collaborators of the release service.
type ReleaseServiceDeps struct {
	DisbursementRepo portsrepo.DisbursementRepositoryFacade
	BatchRepo        portsrepo.BatchRepositoryFacade
	BatchSvc         portssvc.BatchSvc
	Storage          portssvc.BlobStorage
	Dialer           portssvc.TransportDialer
	Dirs             TransportDirs
	Clock            clock.Clock
}

// NewReleaseService creates a new ReleaseService.
func NewReleaseService(deps ReleaseServiceDeps) portssvc.ReleaseSvc {
	return &releaseService{
		BaseService:      BaseService{Clock: deps.Clock},
		disbursementRepo: deps.DisbursementRepo,
		batchRepo:        deps.BatchRepo,
		batchSvc:         deps.BatchSvc,
		storage:          deps.Storage,
		dialer:           deps.Dialer,
		dirs:             deps.Dirs,
	}
}

var _ portssvc.ReleaseSvc = (*releaseService)(nil)

// ReleaseDueBatches stops at the first failed upload; batches already released stay released.
// A due batch is issued only once something in it was uploaded.
func (s *releaseService) ReleaseDueBatches(ctx context.Context, product domain.ProductMain, batchType domain.BatchType) (portssvc.ReleaseResult, error) {
	var result portssvc.ReleaseResult
	now := s.Clock.Now()

	batches, err := s.listBatches(ctx, product.EntityID, portsrepo.BatchFilter{
		BatchType:       batchType,
		States:          []domain.BatchState{domain.BatchScheduled},
		ScheduledBefore: &now,
	})
	if err != nil {
		return result, err
	}
	if len(batches) == 0 {
		return result, nil
	}

	var conn portssvc.RemoteTransport
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	for _, batch := range batches {
		logger := s.GetLogger(ctx).With(
			slog.String("entity_id", product.EntityID),
			slog.String("batch_number", batch.BatchNumber),
			slog.String("batch_type", string(batchType)),
		)

		disbursements, err := s.listDisbursements(ctx, batch.ID(), portsrepo.DisbursementFilter{
			DisbursementType: batchType.DisbursementType(),
			States:           []domain.DisbursementStateName{domain.StateApproved},
		})
		if err != nil {
			return result, err
		}

		if len(disbursements) == 0 {
			// Stays Scheduled so records approved later still go out with it.
			logger.Debug("Nothing approved in due batch")
			continue
		}

		if conn == nil {
			if conn, err = s.dialer.Connect(ctx); err != nil {
				return result, apperrors.NewProviderError("connect", err)
			}
		}
		transmission := vpay.Format(disbursements, now, vpay.Options{
			FileID:  uuid.NewString(),
			PayerID: product.PayerID,
		})
		if err := s.upload(ctx, conn, product.EntityID, transmission); err != nil {
			logger.Error("Batch upload failed, aborting release", slog.String("error", err.Error()))
			return result, err
		}
		logger.Info("Batch uploaded",
			slog.String("file", transmission.FileName),
			slog.Int("payments", transmission.PaymentCount))

		for i := range disbursements {
			d := &disbursements[i]
			if err := s.markUploaded(ctx, d, now); err != nil {
				result.Failures++
				logger.Error("Failed to mark disbursement uploaded",
					slog.Int64("disbursement_number", d.DisbursementNumber),
					slog.String("error", err.Error()))
				continue
			}
			result.DisbursementsUploaded++
		}

		batch.State = domain.BatchIssued
		batch.ReleasedDateTime = &now
		batch.Touch(domain.SystemActor, now)
		if err := s.batchRepo.SaveBatch(ctx, batch); err != nil {
			return result, fmt.Errorf("failed to issue batch %s: %w", batch.BatchNumber, err)
		}
		result.BatchesReleased++
	}
	return result, nil
}

func (s *releaseService) upload(ctx context.Context, conn portssvc.RemoteTransport, entityID string, t vpay.Transmission) error {
	dir := path.Join(s.dirs.Outbound, entityID)
	if len(t.Documents) > 0 && s.storage == nil {
		return apperrors.NewProviderError("read documents", errors.New("document storage is not configured"))
	}
	for _, doc := range t.Documents {
		data, err := s.storage.GetDocument(ctx, doc.DocumentKey)
		if err != nil {
			return apperrors.NewProviderError("read document "+doc.DocumentKey, err)
		}
		if err := conn.Put(ctx, path.Join(dir, doc.FileName), data); err != nil {
			return apperrors.NewProviderError("put "+doc.FileName, err)
		}
	}
	if err := conn.Put(ctx, path.Join(dir, t.FileName), []byte(t.Content)); err != nil {
		return apperrors.NewProviderError("put "+t.FileName, err)
	}
	return nil
}

func (s *releaseService) markUploaded(ctx context.Context, d *domain.Disbursement, now time.Time) error {
	changed, err := d.Transition(domain.StateProviderUploaded, now)
	if err != nil || !changed {
		return err
	}
	d.Touch(domain.SystemActor, now)
	return s.disbursementRepo.SaveDisbursement(ctx, d)
}

// MoveUnreleased moves Approved records left behind in issued batches into the
// open window, or the one after it when the open window has already gone out.
func (s *releaseService) MoveUnreleased(ctx context.Context, entityID string, batchType domain.BatchType) (int, error) {
	now := s.Clock.Now()
	since := now.Add(-unreleasedLookback)
	issued, err := s.listBatches(ctx, entityID, portsrepo.BatchFilter{
		BatchType:       batchType,
		States:          []domain.BatchState{domain.BatchIssued},
		ScheduledBefore: &now,
		ScheduledAfter:  &since,
	})
	if err != nil {
		return 0, err
	}

	var target *domain.Batch
	moved := 0
	for _, batch := range issued {
		stranded, err := s.listDisbursements(ctx, batch.ID(), portsrepo.DisbursementFilter{
			DisbursementType: batchType.DisbursementType(),
			States:           []domain.DisbursementStateName{domain.StateApproved},
		})
		if err != nil {
			return moved, err
		}
		if len(stranded) == 0 {
			continue
		}
		if target == nil {
			if target, err = s.batchSvc.GetOrCreateBatch(ctx, batchType, entityID, 0); err != nil {
				return moved, err
			}
		}
		for i := range stranded {
			d := &stranded[i]
			d.AssignBatch(*target)
			d.Touch(domain.SystemActor, now)
			if err := s.disbursementRepo.SaveDisbursement(ctx, d); err != nil {
				s.LogError(ctx, err, "Failed to move stranded disbursement", slog.Int64("disbursement_number", d.DisbursementNumber))
				continue
			}
			moved++
		}
		s.LogInfo(ctx, "Moved stranded disbursements",
			slog.String("from_batch", batch.BatchNumber),
			slog.String("to_batch", target.BatchNumber),
			slog.Int("count", len(stranded)))
	}
	return moved, nil
}

func (s *releaseService) listBatches(ctx context.Context, entityID string, filter portsrepo.BatchFilter) ([]domain.Batch, error) {
	var (
		out   []domain.Batch
		token *string
	)
	for {
		page, next, err := s.batchRepo.ListBatchesByEntity(ctx, entityID, filter, releasePageSize, token)
		if err != nil {
			return nil, fmt.Errorf("failed to list batches: %w", err)
		}
		out = append(out, page...)
		if next == nil {
			return out, nil
		}
		token = next
	}
}

func (s *releaseService) listDisbursements(ctx context.Context, batchID string, filter portsrepo.DisbursementFilter) ([]domain.Disbursement, error) {
	var (
		out   []domain.Disbursement
		token *string
	)
	for {
		page, next, err := s.disbursementRepo.ListDisbursementsByBatch(ctx, batchID, filter, releasePageSize, token)
		if err != nil {
			return nil, fmt.Errorf("failed to list disbursements for batch %s: %w", batchID, err)
		}
		out = append(out, page...)
		if next == nil {
			return out, nil
		}
		token = next
	}
}
