package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
	"github.com/SscSPs/disbursement_backoffice/internal/dto"
	"github.com/SscSPs/disbursement_backoffice/internal/handlers"
	"github.com/SscSPs/disbursement_backoffice/internal/middleware"
)

// --- Mock DisbursementService ---
type MockDisbursementService struct {
	mock.Mock
}

func (m *MockDisbursementService) GetDisbursement(ctx context.Context, entityID string, number int64, disbursementType string) (*domain.Disbursement, error) {
	args := m.Called(ctx, entityID, number, disbursementType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Disbursement), args.Error(1)
}

func (m *MockDisbursementService) ListDisbursements(ctx context.Context, entityID string, params dto.ListDisbursementsParams) (*dto.ListDisbursementsResponse, error) {
	args := m.Called(ctx, entityID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ListDisbursementsResponse), args.Error(1)
}

func (m *MockDisbursementService) ListBatchDisbursements(ctx context.Context, entityID, batchNumber string, params dto.ListDisbursementsParams) (*dto.ListDisbursementsResponse, error) {
	args := m.Called(ctx, entityID, batchNumber, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ListDisbursementsResponse), args.Error(1)
}

func (m *MockDisbursementService) CreateDisbursement(ctx context.Context, actorEmail string, req dto.CreateDisbursementRequest) ([]domain.Disbursement, error) {
	args := m.Called(ctx, actorEmail, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Disbursement), args.Error(1)
}

func (m *MockDisbursementService) RequestAction(ctx context.Context, actorEmail string, req dto.ActionRequest) (*domain.Disbursement, error) {
	args := m.Called(ctx, actorEmail, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Disbursement), args.Error(1)
}

func (m *MockDisbursementService) EditDisbursement(ctx context.Context, actorEmail string, req dto.EditDisbursementRequest) (*domain.Disbursement, bool, error) {
	args := m.Called(ctx, actorEmail, req)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*domain.Disbursement), args.Bool(1), args.Error(2)
}

var _ portssvc.DisbursementSvcFacade = (*MockDisbursementService)(nil)

// --- Test Suite ---
type DisbursementHandlerTestSuite struct {
	suite.Suite
	router    *gin.Engine
	svc       *MockDisbursementService
	jwtSecret string
}

const actor = "adjuster@example.com"

func (suite *DisbursementHandlerTestSuite) generateTestToken(email string) string {
	claims := middleware.ActorClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(suite.jwtSecret))
	if err != nil {
		suite.FailNow("Failed to sign test token", err.Error())
	}
	return signed
}

func (suite *DisbursementHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.jwtSecret = "test-secret-key-that-is-long-enough"
	suite.router.Use(middleware.AuthMiddleware(suite.jwtSecret))

	suite.svc = new(MockDisbursementService)
	handlers.RegisterDisbursementRoutes(suite.router.Group("/api/v1/entities/:entityID"), suite.svc)
}

func (suite *DisbursementHandlerTestSuite) do(method, url string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, url, &buf)
	req.Header.Set("Authorization", "Bearer "+suite.generateTestToken(actor))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func sample(state domain.DisbursementStateName) *domain.Disbursement {
	return &domain.Disbursement{
		EntityID:           "ENT-1",
		DisbursementNumber: 42,
		DisbursementType:   domain.DisbursementTypeStandard,
		Amount:             decimal.NewFromInt(250),
		State:              domain.DisbursementState{State: state},
		BatchNumber:        "20240304PM",
	}
}

// --- Test Cases ---

func (suite *DisbursementHandlerTestSuite) TestRequestAction_Success() {
	suite.svc.On("RequestAction", mock.Anything, actor, mock.MatchedBy(func(r dto.ActionRequest) bool {
		return r.EntityID == "ENT-1" && r.DisbursementNumber == 42 &&
			r.Action == dto.ActionApprove && r.Origin == dto.OriginInteractive
	})).Return(sample(domain.StateApproved), nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/entities/ENT-1/disbursements/42/actions", map[string]string{"action": "Approve"})

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.DisbursementResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("Approved", resp.State)
	suite.Equal("20240304PM", resp.BatchNumber)
	suite.svc.AssertExpectations(suite.T())
}

func (suite *DisbursementHandlerTestSuite) TestRequestAction_ValidationIsBadRequest() {
	suite.svc.On("RequestAction", mock.Anything, actor, mock.Anything).
		Return(nil, apperrors.NewValidationError("cannot reject a disbursement in state Mailed")).Once()

	w := suite.do(http.MethodPost, "/api/v1/entities/ENT-1/disbursements/42/actions", map[string]string{"action": "Reject"})

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Contains(w.Body.String(), "Mailed")
}

func (suite *DisbursementHandlerTestSuite) TestGetDisbursement_NotFound() {
	suite.svc.On("GetDisbursement", mock.Anything, "ENT-1", int64(7), "ClaimDisbursement").
		Return(nil, apperrors.NewNotFoundError("disbursement 7")).Once()

	w := suite.do(http.MethodGet, "/api/v1/entities/ENT-1/disbursements/7?disbursementType=ClaimDisbursement", nil)

	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *DisbursementHandlerTestSuite) TestGetDisbursement_BadNumber() {
	w := suite.do(http.MethodGet, "/api/v1/entities/ENT-1/disbursements/abc", nil)

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.svc.AssertNotCalled(suite.T(), "GetDisbursement", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *DisbursementHandlerTestSuite) TestCreateDisbursement_ConfigurationErrorKeepsMessage() {
	suite.svc.On("CreateDisbursement", mock.Anything, actor, mock.MatchedBy(func(r dto.CreateDisbursementRequest) bool {
		return r.EntityID == "ENT-1"
	})).Return(nil, apperrors.NewConfigurationError("no funding account for cost type Loss")).Once()

	body := map[string]any{
		"productKey":       "HO3-TX",
		"disbursementType": "Disbursement",
		"amount":           "250.00",
		"costType":         "Loss",
		"deliveryMethod":   "Check",
		"policyId":         "POL-1",
		"recipients": []map[string]any{{
			"name":          "Jane Doe",
			"recipientType": "Individual",
			"address": map[string]string{
				"line1": "1 Main St", "city": "Austin", "state": "TX", "postalCode": "78701", "country": "US",
			},
		}},
	}
	w := suite.do(http.MethodPost, "/api/v1/entities/ENT-1/disbursements", body)

	suite.Equal(http.StatusInternalServerError, w.Code)
	suite.Contains(w.Body.String(), "no funding account")
}

func (suite *DisbursementHandlerTestSuite) TestCreateDisbursement_InvalidPayload() {
	w := suite.do(http.MethodPost, "/api/v1/entities/ENT-1/disbursements", map[string]any{"productKey": "HO3-TX"})

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.svc.AssertNotCalled(suite.T(), "CreateDisbursement", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *DisbursementHandlerTestSuite) TestEditDisbursement_NotApplied() {
	suite.svc.On("EditDisbursement", mock.Anything, actor, mock.MatchedBy(func(r dto.EditDisbursementRequest) bool {
		return r.EntityID == "ENT-1" && r.DisbursementNumber == 42 && len(r.Recipients) == 1
	})).Return(sample(domain.StateMailed), false, nil).Once()

	body := map[string]any{
		"recipients": []map[string]any{{
			"companyName":   "Acme Roofing",
			"recipientType": "Business",
			"taxId":         map[string]string{"type": "EIN", "number": "123456789"},
			"address": map[string]string{
				"line1": "9 Elm St", "city": "Dallas", "state": "TX", "postalCode": "75201", "country": "US",
			},
		}},
	}
	w := suite.do(http.MethodPut, "/api/v1/entities/ENT-1/disbursements/42", body)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.EditDisbursementResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.False(resp.Success)
	suite.Equal("Mailed", resp.Disbursement.State)
}

func (suite *DisbursementHandlerTestSuite) TestListBatchDisbursements_UnknownErrorIsGeneric() {
	suite.svc.On("ListBatchDisbursements", mock.Anything, "ENT-1", "20240304AM", mock.MatchedBy(func(p dto.ListDisbursementsParams) bool {
		return p.Limit == 10
	})).Return(nil, errors.New("pool exhausted")).Once()

	w := suite.do(http.MethodGet, "/api/v1/entities/ENT-1/batches/20240304AM/disbursements?limit=10", nil)

	suite.Equal(http.StatusInternalServerError, w.Code)
	suite.NotContains(w.Body.String(), "pool exhausted")
}

func (suite *DisbursementHandlerTestSuite) TestUnauthenticated() {
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/entities/ENT-1/disbursements", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	suite.Equal(http.StatusUnauthorized, w.Code)
}

func TestDisbursementHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(DisbursementHandlerTestSuite))
}
