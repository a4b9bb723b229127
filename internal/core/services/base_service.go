package services

import (
	"context"
	"log/slog"

	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
	"github.com/SscSPs/disbursement_backoffice/internal/middleware"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/clock"
)

// BaseService provides common functionality for all services
type BaseService struct {
	Billing  portssvc.BillingLookup
	Activity portssvc.ActivityLogSink
	Clock    clock.Clock
}

// GetLogger gets the logger from context or returns a default one
func (s *BaseService) GetLogger(ctx context.Context) *slog.Logger {
	return middleware.GetLoggerFromCtx(ctx)
}

// LogError logs an error with consistent formatting
func (s *BaseService) LogError(ctx context.Context, err error, msg string, keyvals ...any) {
	logger := s.GetLogger(ctx)
	args := make([]any, 0, len(keyvals)+1)
	args = append(args, slog.String("error", err.Error()))
	args = append(args, keyvals...)
	logger.Error(msg, args...)
}

// LogInfo logs an info message with consistent formatting
func (s *BaseService) LogInfo(ctx context.Context, msg string, keyvals ...any) {
	s.GetLogger(ctx).Info(msg, keyvals...)
}

// LogDebug logs a debug message with consistent formatting
func (s *BaseService) LogDebug(ctx context.Context, msg string, keyvals ...any) {
	s.GetLogger(ctx).Debug(msg, keyvals...)
}

// RecordActivity resolves the owning agency and writes an activity log entry.
// Failures are logged and never returned.
func (s *BaseService) RecordActivity(ctx context.Context, d *domain.Disbursement, template string, substitutions map[string]string) {
	if s.Activity == nil {
		s.LogDebug(ctx, "No activity sink configured, skipping audit entry", slog.String("template", template))
		return
	}

	entry := domain.ActivityLogEntry{
		EntityID:      d.EntityID,
		PolicyID:      d.PolicyID,
		Template:      template,
		Substitutions: substitutions,
		OccurredAt:    s.Clock.Now(),
	}

	if s.Billing != nil && d.PolicyID != "" {
		account, err := s.Billing.GetBillingAccount(ctx, d.PolicyID)
		if err != nil {
			s.LogError(ctx, err, "Failed to resolve agency for activity log", slog.String("policy_id", d.PolicyID))
		} else if account != nil {
			entry.AgencyEntityID = account.AgencyEntityID
		}
	}

	if err := s.Activity.SendActivityLog(ctx, entry); err != nil {
		s.LogError(ctx, err, "Failed to send activity log",
			slog.String("template", template),
			slog.Int64("disbursement_number", d.DisbursementNumber))
	}
}
