package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	"github.com/SscSPs/disbursement_backoffice/internal/dto"
)

var supportedActions = []string{dto.ActionApprove, dto.ActionReject, dto.ActionMoveBatch}

// movableStates are the states a disbursement can be pushed into the next window from.
var movableStates = map[domain.DisbursementStateName]bool{
	domain.StatePending:       true,
	domain.StateApproved:      true,
	domain.StateProviderError: true,
}

// RequestAction applies one lifecycle action. Every outcome, including refusals
// and failures, leaves an activity log entry behind.
func (s *disbursementService) RequestAction(ctx context.Context, actorEmail string, req dto.ActionRequest) (*domain.Disbursement, error) {
	d, err := s.GetDisbursement(ctx, req.EntityID, req.DisbursementNumber, req.DisbursementType)
	if err != nil {
		return nil, err
	}

	logger := s.GetLogger(ctx).With(
		slog.String("entity_id", d.EntityID),
		slog.Int64("disbursement_number", d.DisbursementNumber),
		slog.String("action", req.Action),
		slog.String("origin", string(req.Origin)),
	)
	prior := d.CurrentState()
	now := s.Clock.Now()

	var (
		changed  bool
		refused  bool
		template string
	)
	switch req.Action {
	case dto.ActionApprove:
		template = domain.ActivityDisbursementApproved
		changed, err = s.approve(ctx, d, actorEmail, now)
	case dto.ActionReject:
		template = domain.ActivityDisbursementRejected
		changed, refused, err = s.reject(d, req, actorEmail, now)
	case dto.ActionMoveBatch:
		template = domain.ActivityDisbursementMoved
		changed, err = s.moveBatch(ctx, d, actorEmail, now)
	default:
		template = domain.ActivityActionRefused
		err = apperrors.NewArgumentError("unsupported action %q, supported actions are %s", req.Action, strings.Join(supportedActions, ", "))
	}

	if err == nil && changed {
		d.Touch(actorEmail, now)
		if saveErr := s.disbursementRepo.SaveDisbursement(ctx, d); saveErr != nil {
			err = fmt.Errorf("failed to save disbursement: %w", saveErr)
		}
	}

	subs := stateSubstitutions(d, prior, actorEmail)
	subs["action"] = req.Action
	switch {
	case err != nil:
		template = domain.ActivityActionRefused
		subs["error"] = err.Error()
		logger.Warn("Disbursement action failed", slog.String("error", err.Error()))
	case refused:
		template = domain.ActivityActionRefused
		subs["reason"] = "payment already released to provider"
		logger.Info("Disbursement action refused", slog.String("state", string(prior)))
	default:
		logger.Info("Disbursement action applied",
			slog.String("old_state", string(prior)),
			slog.String("new_state", string(d.CurrentState())))
	}
	s.RecordActivity(ctx, d, template, subs)

	if err != nil {
		return nil, err
	}

	if !refused && req.PaymentID != "" && req.ReturnEvent != "" {
		s.publish(ctx, domain.StatusChangeEvent{
			PaymentID:          req.PaymentID,
			EntityID:           d.EntityID,
			DisbursementNumber: d.DisbursementNumber,
			State:              d.CurrentState(),
			RejectReason:       d.RejectReason,
			Actor:              actorEmail,
		}, req.ReturnEvent)
	}
	return d, nil
}

// approve also pulls the record out of a batch that has already been issued,
// otherwise nothing would ever upload it.
func (s *disbursementService) approve(ctx context.Context, d *domain.Disbursement, actor string, now time.Time) (bool, error) {
	changed, err := d.Transition(domain.StateApproved, now)
	if err != nil || !changed {
		return false, err
	}
	if err := s.reopenBatch(ctx, d); err != nil {
		return false, err
	}
	d.ApprovedBy = actor
	d.ApprovedDateTime = &now
	return true, nil
}

func (s *disbursementService) reopenBatch(ctx context.Context, d *domain.Disbursement) error {
	batch, err := s.batchSvc.EnsureOpenBatch(ctx, d.DisbursementType.BatchType(), d.EntityID, d.BatchNumber)
	if err != nil {
		return err
	}
	if batch.BatchNumber != d.BatchNumber {
		s.LogInfo(ctx, "Disbursement moved out of issued batch",
			slog.Int64("disbursement_number", d.DisbursementNumber),
			slog.String("from_batch", d.BatchNumber),
			slog.String("to_batch", batch.BatchNumber))
		d.AssignBatch(*batch)
	}
	return nil
}

// reject refuses silently for event-driven requests once the payment is with
// the provider, and loudly for interactive ones.
func (s *disbursementService) reject(d *domain.Disbursement, req dto.ActionRequest, actor string, now time.Time) (changed, refused bool, err error) {
	current := d.CurrentState()
	if current.IsWithProvider() {
		if req.Origin == dto.OriginEvent {
			return false, true, nil
		}
		return false, false, apperrors.NewValidationError("disbursement %d is %s and can no longer be rejected", d.DisbursementNumber, current)
	}

	changed, err = d.Transition(domain.StateRejected, now)
	if err != nil || !changed {
		return false, false, err
	}
	d.RejectReason = strings.TrimSpace(req.RejectReason)
	d.RejectedBy = actor
	d.RejectedDateTime = &now
	return true, false, nil
}

func (s *disbursementService) moveBatch(ctx context.Context, d *domain.Disbursement, actor string, now time.Time) (bool, error) {
	current := d.CurrentState()
	if !movableStates[current] {
		return false, apperrors.NewValidationError("disbursement %d in state %s cannot be moved to another batch", d.DisbursementNumber, current)
	}

	window := domain.ComputeBatchWindow(now).Next()
	batch, err := s.batchSvc.GetOrCreateBatchForWindow(ctx, d.DisbursementType.BatchType(), d.EntityID, window)
	if err != nil {
		return false, err
	}

	if d.UpdateState(domain.StateApproved, now) {
		d.ApprovedBy = actor
		d.ApprovedDateTime = &now
	}
	d.AssignBatch(*batch)
	return true, nil
}
