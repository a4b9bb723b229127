package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"cloud.google.com/go/pubsub"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
	"github.com/SscSPs/disbursement_backoffice/internal/dto"
	"github.com/SscSPs/disbursement_backoffice/internal/middleware"
)

// ActionMessage is the payload of an asynchronous action request.
type ActionMessage struct {
	ActorEmail string            `json:"actorEmail"`
	Request    dto.ActionRequest `json:"request"`
}

// ActionSubscriber feeds action requests from a subscription into the disbursement workflow.
type ActionSubscriber struct {
	sub    *pubsub.Subscription
	svc    portssvc.DisbursementWriterSvc
	logger *slog.Logger
}

// NewActionSubscriber creates a new ActionSubscriber.
func NewActionSubscriber(sub *pubsub.Subscription, svc portssvc.DisbursementWriterSvc, logger *slog.Logger) *ActionSubscriber {
	return &ActionSubscriber{sub: sub, svc: svc, logger: logger}
}

// Run blocks receiving messages until ctx is cancelled.
func (s *ActionSubscriber) Run(ctx context.Context) error {
	return s.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if s.Process(ctx, msg.ID, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Process handles one message body and reports whether it should be acked.
// Malformed and permanently failing requests are acked so they are not redelivered.
func (s *ActionSubscriber) Process(ctx context.Context, messageID string, data []byte) bool {
	logger := s.logger.With(slog.String("message_id", messageID))
	ctx = middleware.WithLogger(ctx, logger)

	var m ActionMessage
	if err := json.Unmarshal(data, &m); err != nil {
		logger.Error("Malformed action message", slog.String("error", err.Error()))
		return true
	}
	if m.Request.EntityID == "" || m.Request.DisbursementNumber <= 0 || m.Request.Action == "" {
		logger.Error("Incomplete action message")
		return true
	}
	m.Request.Origin = dto.OriginEvent

	_, err := s.svc.RequestAction(ctx, m.ActorEmail, m.Request)
	switch {
	case err == nil:
		return true
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrArgument):
		logger.Warn("Action request rejected", slog.String("error", err.Error()))
		return true
	default:
		logger.Error("Action request failed, will retry", slog.String("error", err.Error()))
		return false
	}
}
