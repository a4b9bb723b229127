package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portsrepo "github.com/SscSPs/disbursement_backoffice/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
	"github.com/SscSPs/disbursement_backoffice/internal/dto"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/clock"
	"github.com/SscSPs/disbursement_backoffice/internal/utils/mapping"
	"github.com/SscSPs/disbursement_backoffice/internal/utils/pagination"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// disbursementService owns the disbursement lifecycle: creation, actions and edits.
type disbursementService struct {
	BaseService
	disbursementRepo portsrepo.DisbursementRepositoryFacade
	batchSvc         portssvc.BatchSvc
	products         portssvc.ProductConfigLookup
	events           portssvc.EventBus
	validate         *validator.Validate
}

// DisbursementServiceDeps groups the collaborators of the disbursement service.
type DisbursementServiceDeps struct {
	DisbursementRepo portsrepo.DisbursementRepositoryFacade
	BatchSvc         portssvc.BatchSvc
	Products         portssvc.ProductConfigLookup
	Billing          portssvc.BillingLookup
	Activity         portssvc.ActivityLogSink
	Events           portssvc.EventBus
	Clock            clock.Clock
}

// NewDisbursementService creates a new DisbursementService.
func NewDisbursementService(deps DisbursementServiceDeps) portssvc.DisbursementSvcFacade {
	v := validator.New()
	v.SetTagName("binding")
	return &disbursementService{
		BaseService:      BaseService{Billing: deps.Billing, Activity: deps.Activity, Clock: deps.Clock},
		disbursementRepo: deps.DisbursementRepo,
		batchSvc:         deps.BatchSvc,
		products:         deps.Products,
		events:           deps.Events,
		validate:         v,
	}
}

var _ portssvc.DisbursementSvcFacade = (*disbursementService)(nil)

func (s *disbursementService) CreateDisbursement(ctx context.Context, actorEmail string, req dto.CreateDisbursementRequest) ([]domain.Disbursement, error) {
	if req.EntityID == "" {
		return nil, apperrors.NewValidationError("entity id is required")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.NewValidationError("%v", err)
	}
	if !req.Amount.GreaterThan(decimal.Zero) {
		return nil, apperrors.NewValidationError("amount must be positive")
	}
	disbursementType, err := domain.ParseDisbursementType(req.DisbursementType)
	if err != nil {
		return nil, err
	}

	if s.products == nil {
		return nil, apperrors.NewConfigurationError("product configuration service is not available")
	}
	product, accounting, err := s.products.GetConfiguration(ctx, req.ProductKey)
	if err != nil {
		s.LogError(ctx, err, "Failed to load product configuration", slog.String("product_key", req.ProductKey))
		return nil, apperrors.NewConfigurationError("product %s: %v", req.ProductKey, err)
	}
	if product == nil || accounting == nil {
		return nil, apperrors.NewConfigurationError("product %s is not configured", req.ProductKey)
	}
	if product.EntityID != "" && product.EntityID != req.EntityID {
		return nil, apperrors.NewValidationError("product %s does not belong to entity %s", req.ProductKey, req.EntityID)
	}

	fundingAccount, err := s.batchSvc.ResolveFundingAccount(req.CostType, req.CatastropheType, *accounting)
	if err != nil {
		s.LogError(ctx, err, "Failed to resolve funding account",
			slog.String("product_key", req.ProductKey),
			slog.String("cost_type", req.CostType))
		return nil, err
	}

	batch, err := s.batchSvc.GetOrCreateBatch(ctx, disbursementType.BatchType(), req.EntityID, 0)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	template := domain.Disbursement{
		EntityID:           req.EntityID,
		DisbursementType:   disbursementType,
		ProductKey:         req.ProductKey,
		Amount:             req.Amount,
		CostType:           req.CostType,
		CatastropheType:    req.CatastropheType,
		Coverage:           req.Coverage,
		Description:        req.Description,
		DeliveryMethod:     req.DeliveryMethod,
		FundingAccountCode: fundingAccount,
		PaymentDetails:     mapping.ToDomainPaymentDetails(req.PaymentDetails),
		Documents:          req.Documents,
		PolicyID:           req.PolicyID,
		ClaimID:            req.ClaimID,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actorEmail,
			LastUpdatedAt: now,
			LastUpdatedBy: actorEmail,
		},
	}
	if req.MailingAddress != nil {
		addr := mapping.ToDomainAddress(*req.MailingAddress)
		template.MailingAddress = &addr
	}
	template.AssignBatch(*batch)

	recipients := mapping.ToDomainRecipients(req.Recipients)
	var drafts []domain.Disbursement
	if disbursementType == domain.DisbursementTypePrint {
		// Each printed check carries exactly one payee.
		for _, r := range recipients {
			d := template.Clone()
			r.IsDefaultRecipient = true
			d.Recipients = []domain.Recipient{r}
			drafts = append(drafts, d)
		}
	} else {
		d := template.Clone()
		d.Recipients = domain.NormalizeRecipients(recipients)
		drafts = append(drafts, d)
	}

	created := make([]domain.Disbursement, 0, len(drafts))
	for i := range drafts {
		d := &drafts[i]
		if _, err := d.Transition(domain.StatePending, now); err != nil {
			return created, err
		}
		if err := s.disbursementRepo.SaveDisbursement(ctx, d); err != nil {
			s.LogError(ctx, err, "Failed to save disbursement", slog.String("entity_id", req.EntityID))
			return created, fmt.Errorf("failed to save disbursement: %w", err)
		}
		s.LogInfo(ctx, "Disbursement created",
			slog.String("entity_id", d.EntityID),
			slog.Int64("disbursement_number", d.DisbursementNumber),
			slog.String("batch_number", d.BatchNumber))
		s.RecordActivity(ctx, d, domain.ActivityDisbursementCreated, map[string]string{
			"disbursementNumber": d.ProviderID(),
			"amount":             d.Amount.StringFixed(2),
			"batchNumber":        d.BatchNumber,
			"actor":              actorEmail,
		})
		created = append(created, *d)
	}
	return created, nil
}

func (s *disbursementService) GetDisbursement(ctx context.Context, entityID string, disbursementNumber int64, disbursementType string) (*domain.Disbursement, error) {
	if entityID == "" || disbursementNumber <= 0 {
		return nil, apperrors.NewValidationError("entity id and a positive disbursement number are required")
	}
	d, err := s.disbursementRepo.FindDisbursement(ctx, entityID, disbursementNumber)
	if err != nil {
		return nil, err
	}
	if disbursementType != "" {
		want, err := domain.ParseDisbursementType(disbursementType)
		if err != nil {
			return nil, err
		}
		if d.DisbursementType != want {
			return nil, apperrors.NewNotFoundError("%s %d for entity %s", want, disbursementNumber, entityID)
		}
	}
	return d, nil
}

func (s *disbursementService) ListDisbursements(ctx context.Context, entityID string, params dto.ListDisbursementsParams) (*dto.ListDisbursementsResponse, error) {
	filter, err := toDisbursementFilter(params)
	if err != nil {
		return nil, err
	}
	limit := pagination.NormalizeLimit(params.Limit, defaultListLimit, maxListLimit)
	items, next, err := s.disbursementRepo.ListDisbursementsByEntity(ctx, entityID, filter, limit, params.NextToken)
	if err != nil {
		s.LogError(ctx, err, "Failed to list disbursements", slog.String("entity_id", entityID))
		return nil, err
	}
	return &dto.ListDisbursementsResponse{Disbursements: dto.ToDisbursementResponses(items), NextToken: next}, nil
}

func (s *disbursementService) ListBatchDisbursements(ctx context.Context, entityID, batchNumber string, params dto.ListDisbursementsParams) (*dto.ListDisbursementsResponse, error) {
	if _, err := domain.ParseBatchNumber(batchNumber); err != nil {
		return nil, err
	}
	filter, err := toDisbursementFilter(params)
	if err != nil {
		return nil, err
	}
	limit := pagination.NormalizeLimit(params.Limit, defaultListLimit, maxListLimit)
	items, next, err := s.disbursementRepo.ListDisbursementsByBatch(ctx, domain.BatchKey(entityID, batchNumber), filter, limit, params.NextToken)
	if err != nil {
		s.LogError(ctx, err, "Failed to list batch disbursements", slog.String("batch_number", batchNumber))
		return nil, err
	}
	return &dto.ListDisbursementsResponse{Disbursements: dto.ToDisbursementResponses(items), NextToken: next}, nil
}

func toDisbursementFilter(params dto.ListDisbursementsParams) (portsrepo.DisbursementFilter, error) {
	filter := portsrepo.DisbursementFilter{
		CreatedFrom: params.CreatedFrom,
		CreatedTo:   params.CreatedTo,
		PolicyID:    params.PolicyID,
		ClaimID:     params.ClaimID,
	}
	if params.DisbursementType != "" {
		t, err := domain.ParseDisbursementType(params.DisbursementType)
		if err != nil {
			return filter, err
		}
		filter.DisbursementType = t
	}
	if params.State != "" {
		filter.States = []domain.DisbursementStateName{domain.DisbursementStateName(params.State)}
	}
	return filter, nil
}

func (s *disbursementService) publish(ctx context.Context, detail any, detailType string) {
	if s.events == nil {
		return
	}
	if err := s.events.SendServiceEvent(ctx, detail, detailType); err != nil {
		s.LogError(ctx, err, "Failed to publish service event", slog.String("detail_type", detailType))
	}
}

func stateSubstitutions(d *domain.Disbursement, from domain.DisbursementStateName, actor string) map[string]string {
	return map[string]string{
		"disbursementNumber": strconv.FormatInt(d.DisbursementNumber, 10),
		"oldState":           string(from),
		"newState":           string(d.CurrentState()),
		"actor":              actor,
	}
}
