package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	"github.com/SscSPs/disbursement_backoffice/internal/dto"
	"github.com/SscSPs/disbursement_backoffice/internal/utils/mapping"
)

// EditDisbursement replaces the recipient list. A ProviderError record is
// promoted back to Approved first so the edit acts as a retry.
func (s *disbursementService) EditDisbursement(ctx context.Context, actorEmail string, req dto.EditDisbursementRequest) (*domain.Disbursement, bool, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, false, apperrors.NewValidationError("%v", err)
	}

	d, err := s.GetDisbursement(ctx, req.EntityID, req.DisbursementNumber, req.DisbursementType)
	if err != nil {
		return nil, false, err
	}
	if d.DisbursementType == domain.DisbursementTypePrint && len(req.Recipients) != 1 {
		return nil, false, apperrors.NewValidationError("a %s carries exactly one recipient", domain.DisbursementTypePrint)
	}

	prior := d.CurrentState()
	now := s.Clock.Now()

	edited := d.Clone()
	if prior == domain.StateProviderError {
		if _, err := edited.Transition(domain.StateApproved, now); err != nil {
			return nil, false, err
		}
		if err := s.reopenBatch(ctx, &edited); err != nil {
			return nil, false, err
		}
	}

	if !edited.CurrentState().IsEditable() {
		s.LogInfo(ctx, "Disbursement not editable",
			slog.Int64("disbursement_number", d.DisbursementNumber),
			slog.String("state", string(prior)))
		s.sendEditResponse(ctx, req, d, false)
		return d, false, nil
	}

	edited.Recipients = domain.NormalizeRecipients(mapping.ToDomainRecipients(req.Recipients))
	edited.Touch(actorEmail, now)
	if err := s.disbursementRepo.SaveDisbursement(ctx, &edited); err != nil {
		s.LogError(ctx, err, "Failed to save edited disbursement", slog.Int64("disbursement_number", d.DisbursementNumber))
		return nil, false, fmt.Errorf("failed to save disbursement: %w", err)
	}

	s.RecordActivity(ctx, &edited, domain.ActivityDisbursementEdited, stateSubstitutions(&edited, prior, actorEmail))
	s.sendEditResponse(ctx, req, &edited, true)
	return &edited, true, nil
}

func (s *disbursementService) sendEditResponse(ctx context.Context, req dto.EditDisbursementRequest, d *domain.Disbursement, success bool) {
	if req.PaymentID == "" {
		return
	}
	detailType := req.ReturnEvent
	if detailType == "" {
		detailType = domain.EventDisbursementEdited
	}
	s.publish(ctx, domain.EditResponseEvent{
		PaymentID:          req.PaymentID,
		EntityID:           d.EntityID,
		DisbursementNumber: d.DisbursementNumber,
		Success:            success,
		State:              d.CurrentState(),
	}, detailType)
}
