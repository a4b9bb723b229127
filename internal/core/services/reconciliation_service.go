package services

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portsrepo "github.com/SscSPs/disbursement_backoffice/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/clock"
	"github.com/SscSPs/disbursement_backoffice/internal/vpay"
)

const (
	maxLineBytes           = 1024 * 1024
	defaultDocumentType    = "application/pdf"
	archivedDocumentPrefix = "disbursements"
)

// TransportDirs are the remote directories used for provider file exchange.
// Each entity works in its own subdirectory of each.
type TransportDirs struct {
	Outbound string
	Inbound  string
	Archive  string
}

type reconciliationService struct {
	BaseService
	disbursementRepo portsrepo.DisbursementRepositoryFacade
	events           portssvc.EventBus
	documents        portssvc.DocumentAPI
	storage          portssvc.BlobStorage
	dialer           portssvc.TransportDialer
	dirs             TransportDirs
}

// ReconciliationServiceDeps groups the collaborators of the reconciliation service.
type ReconciliationServiceDeps struct {
	DisbursementRepo portsrepo.DisbursementRepositoryFacade
	Events           portssvc.EventBus
	Documents        portssvc.DocumentAPI
	Storage          portssvc.BlobStorage
	Dialer           portssvc.TransportDialer
	Dirs             TransportDirs
	Clock            clock.Clock
}

// NewReconciliationService creates a new ReconciliationService.
func NewReconciliationService(deps ReconciliationServiceDeps) portssvc.ReconciliationSvc {
	return &reconciliationService{
		BaseService:      BaseService{Clock: deps.Clock},
		disbursementRepo: deps.DisbursementRepo,
		events:           deps.Events,
		documents:        deps.Documents,
		storage:          deps.Storage,
		dialer:           deps.Dialer,
		dirs:             deps.Dirs,
	}
}

var _ portssvc.ReconciliationSvc = (*reconciliationService)(nil)

// ApplyTransaction returns nil without error when the disbursement is unknown to
// this entity or the transaction repeats the current state.
func (s *reconciliationService) ApplyTransaction(ctx context.Context, tx vpay.Transaction, entityID string) (*domain.Disbursement, error) {
	logger := s.GetLogger(ctx).With(
		slog.String("entity_id", entityID),
		slog.String("disbursement_id", tx.DisbursementID),
		slog.String("provider_status", tx.ProviderStatus),
	)

	d, err := s.disbursementRepo.FindDisbursement(ctx, entityID, tx.DisbursementNumber)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Reconciliation line references unknown disbursement")
			return nil, nil
		}
		return nil, err
	}

	now := s.Clock.Now()
	prior := d.CurrentState()
	changed, err := d.Transition(tx.State, now)
	if err != nil {
		logger.Warn("Reconciliation transition refused", slog.String("error", err.Error()))
		return nil, err
	}
	if !changed {
		logger.Debug("Reconciliation line already applied", slog.String("state", string(prior)))
		return d, nil
	}

	if tx.State == domain.StateProviderError {
		if reason := strings.TrimSpace(tx.RejectReason); reason != "" {
			d.RejectReason = reason
		}
	} else {
		copyProviderResponse(d, tx)
		if tx.State == domain.StateCleared {
			s.archiveDocuments(ctx, d)
		}
	}

	d.Touch(domain.SystemActor, now)
	if err := s.disbursementRepo.SaveDisbursement(ctx, d); err != nil {
		logger.Error("Failed to save reconciled disbursement", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to save disbursement: %w", err)
	}
	logger.Info("Disbursement reconciled",
		slog.String("old_state", string(prior)),
		slog.String("new_state", string(d.CurrentState())))

	if tx.State == domain.StateProviderError {
		s.publishProviderError(ctx, d, tx)
	}
	return d, nil
}

func copyProviderResponse(d *domain.Disbursement, tx vpay.Transaction) {
	d.ProviderResponse.ProviderStatus = tx.ProviderStatus
	if tx.PaymentType != "" {
		d.ProviderResponse.PaymentType = tx.PaymentType
	}
	if tx.TransactionID != "" {
		d.ProviderResponse.TransactionID = tx.TransactionID
	}
	if tx.CheckNumber != "" {
		d.ProviderResponse.CheckNumber = tx.CheckNumber
	}
	if tx.MailTrackingNumber != "" {
		d.ProviderResponse.MailTrackingNumber = tx.MailTrackingNumber
	}
}

func (s *reconciliationService) publishProviderError(ctx context.Context, d *domain.Disbursement, tx vpay.Transaction) {
	if s.events == nil {
		return
	}
	detailType := domain.EventPolicyProviderError
	if d.ReferenceType() == domain.ReferenceClaim {
		detailType = domain.EventClaimProviderError
	}
	event := domain.ProviderErrorEvent{
		EntityID:           d.EntityID,
		DisbursementNumber: d.DisbursementNumber,
		PolicyID:           d.PolicyID,
		ClaimID:            d.ClaimID,
		Amount:             d.Amount.StringFixed(2),
		RejectReason:       d.RejectReason,
		FileName:           tx.FileName,
	}
	if err := s.events.SendServiceEvent(ctx, event, detailType); err != nil {
		s.LogError(ctx, err, "Failed to publish provider error event", slog.Int64("disbursement_number", d.DisbursementNumber))
	}
}

// archiveDocuments copies the provider's documents for a cleared payment into
// blob storage. Every failure is logged and skipped.
func (s *reconciliationService) archiveDocuments(ctx context.Context, d *domain.Disbursement) {
	transactionID := d.ProviderResponse.TransactionID
	if s.documents == nil || s.storage == nil || transactionID == "" {
		return
	}
	docs, err := s.documents.ListDocuments(ctx, transactionID)
	if err != nil {
		s.LogError(ctx, err, "Failed to list provider documents", slog.String("transaction_id", transactionID))
		return
	}
	for _, doc := range docs {
		data, err := s.documents.DownloadDocument(ctx, doc)
		if err != nil || len(data) == 0 {
			if err == nil {
				err = errors.New("empty document")
			}
			s.LogError(ctx, err, "Failed to download provider document", slog.String("document_id", doc.DocumentID))
			continue
		}
		name := doc.FileName
		if name == "" {
			name = doc.DocumentID
		}
		key := path.Join(archivedDocumentPrefix, d.EntityID, d.ProviderID(), name)
		contentType := doc.ContentType
		if contentType == "" {
			contentType = defaultDocumentType
		}
		if err := s.storage.Upload(ctx, data, key, contentType); err != nil {
			s.LogError(ctx, err, "Failed to archive provider document", slog.String("key", key))
			continue
		}
		if !slices.Contains(d.DocumentReconKeys, key) {
			d.DocumentReconKeys = append(d.DocumentReconKeys, key)
		}
	}
}

func (s *reconciliationService) ReconcileFile(ctx context.Context, entityID, fileName string, content []byte) (portssvc.ReconcileResult, error) {
	result := portssvc.ReconcileResult{Files: 1}
	rejected := vpay.IsRejectedFileName(fileName)

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		tx, err := vpay.ParseLine(scanner.Text(), rejected)
		if err != nil {
			result.Failed++
			s.LogError(ctx, err, "Failed to parse reconciliation line", slog.String("file", fileName), slog.Int("line", lineNo))
			continue
		}
		if tx == nil {
			result.Skipped++
			continue
		}
		if tx.FileName == "" {
			tx.FileName = fileName
		}
		d, err := s.ApplyTransaction(ctx, *tx, entityID)
		switch {
		case err != nil:
			result.Failed++
			s.LogError(ctx, err, "Failed to apply reconciliation line", slog.String("file", fileName), slog.Int("line", lineNo))
		case d == nil:
			result.Skipped++
		default:
			result.Applied++
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("failed to read %s: %w", fileName, err)
	}

	s.LogInfo(ctx, "Reconciliation file processed",
		slog.String("file", fileName),
		slog.Int("applied", result.Applied),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed))
	return result, nil
}

// ReconcileInbound archives a file only after it was read and processed.
func (s *reconciliationService) ReconcileInbound(ctx context.Context, product domain.ProductMain) (portssvc.ReconcileResult, error) {
	var total portssvc.ReconcileResult

	conn, err := s.dialer.Connect(ctx)
	if err != nil {
		return total, apperrors.NewProviderError("connect", err)
	}
	defer conn.Close()

	inbound := path.Join(s.dirs.Inbound, product.EntityID)
	archive := path.Join(s.dirs.Archive, product.EntityID)
	names, err := conn.List(ctx, inbound)
	if err != nil {
		return total, apperrors.NewProviderError("list "+inbound, err)
	}

	var errs []error
	for _, name := range names {
		src := path.Join(inbound, name)
		content, err := conn.Get(ctx, src)
		if err != nil {
			errs = append(errs, apperrors.NewProviderError("get "+src, err))
			continue
		}
		res, err := s.ReconcileFile(ctx, product.EntityID, name, content)
		total.Applied += res.Applied
		total.Skipped += res.Skipped
		total.Failed += res.Failed
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := conn.Rename(ctx, src, path.Join(archive, name)); err != nil {
			errs = append(errs, apperrors.NewProviderError("archive "+src, err))
			continue
		}
		total.Files++
	}
	return total, errors.Join(errs...)
}
