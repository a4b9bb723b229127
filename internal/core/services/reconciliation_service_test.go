package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
	"github.com/SscSPs/disbursement_backoffice/internal/core/services"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/clock"
	"github.com/SscSPs/disbursement_backoffice/internal/repositories/memory"
	"github.com/SscSPs/disbursement_backoffice/internal/vpay"
)

type ReconciliationServiceTestSuite struct {
	suite.Suite
	clock     *clock.FakeClock
	store     *memory.Store
	events    *MockEventBus
	documents *MockDocumentAPI
	storage   *MockBlobStorage
	transport *fakeTransport
	service   portssvc.ReconciliationSvc
}

func (suite *ReconciliationServiceTestSuite) SetupTest() {
	suite.clock = clock.NewFakeClock(time.Date(2024, 3, 6, 8, 0, 0, 0, domain.BatchLocation))
	suite.store = memory.NewStore(suite.clock)
	suite.events = new(MockEventBus)
	suite.documents = new(MockDocumentAPI)
	suite.storage = new(MockBlobStorage)
	suite.transport = newFakeTransport()

	suite.events.On("SendServiceEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	suite.service = services.NewReconciliationService(services.ReconciliationServiceDeps{
		DisbursementRepo: suite.store,
		Events:           suite.events,
		Documents:        suite.documents,
		Storage:          suite.storage,
		Dialer:           suite.transport,
		Dirs:             services.TransportDirs{Outbound: "/out", Inbound: "/in", Archive: "/archive"},
		Clock:            suite.clock,
	})
}

func TestReconciliationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ReconciliationServiceTestSuite))
}

// stored saves a disbursement already in the given state and returns it.
func stored(t *testing.T, store *memory.Store, state domain.DisbursementStateName, mutate ...func(*domain.Disbursement)) domain.Disbursement {
	d := domain.Disbursement{
		EntityID:         testEntity,
		DisbursementType: domain.DisbursementTypeStandard,
		Amount:           decimal.RequireFromString("250.00"),
		CostType:         "Indemnity",
		DeliveryMethod:   "Check",
		PolicyID:         testPolicy,
		Recipients: []domain.Recipient{{
			Name: "Jane Doe", RecipientType: domain.RecipientIndividual, IsDefaultRecipient: true,
			Address: domain.Address{Line1: "1 Main St", City: "Austin", State: "TX", PostalCode: "78701", Country: "USA"},
		}},
	}
	d.UpdateState(state, time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC))
	for _, m := range mutate {
		m(&d)
	}
	if err := store.SaveDisbursement(context.Background(), &d); err != nil {
		t.Fatalf("save disbursement: %v", err)
	}
	return d
}

func statusLine(number int64, status, reason string) string {
	return vpay.FormatTransactionLine(vpay.Transaction{
		DisbursementID: fmt.Sprintf("%d", number),
		PaymentType:    "CHECK",
		TransactionID:  fmt.Sprintf("TX-%d", number),
		ProviderStatus: status,
		ReasonCode:     reason,
		CheckNumber:    "000123",
		Amount:         decimal.RequireFromString("250.00"),
		StatusDateTime: time.Date(2024, 3, 6, 7, 30, 0, 0, vpay.ProviderLocation),
	})
}

func (suite *ReconciliationServiceTestSuite) parse(line string) vpay.Transaction {
	tx, err := vpay.ParseLine(line, false)
	suite.Require().NoError(err)
	suite.Require().NotNil(tx)
	return *tx
}

func (suite *ReconciliationServiceTestSuite) TestApplyTransaction_UnknownDisbursementIsSkipped() {
	got, err := suite.service.ApplyTransaction(context.Background(), suite.parse(statusLine(404, vpay.StatusLoaded, "")), testEntity)

	suite.NoError(err)
	suite.Nil(got)
}

func (suite *ReconciliationServiceTestSuite) TestApplyTransaction_CopiesProviderResponse() {
	d := stored(suite.T(), suite.store, domain.StateProviderUploaded)

	got, err := suite.service.ApplyTransaction(context.Background(), suite.parse(statusLine(d.DisbursementNumber, vpay.StatusUSPS, "")), testEntity)

	suite.Require().NoError(err)
	suite.Equal(domain.StateMailed, got.State.State)
	suite.Equal("000123", got.ProviderResponse.CheckNumber)
	suite.Equal(fmt.Sprintf("TX-%d", d.DisbursementNumber), got.ProviderResponse.TransactionID)
	suite.Equal(domain.SystemActor, got.LastUpdatedBy)
}

func (suite *ReconciliationServiceTestSuite) TestApplyTransaction_DuplicateLineIsNoOp() {
	d := stored(suite.T(), suite.store, domain.StateProviderUploaded)
	tx := suite.parse(statusLine(d.DisbursementNumber, vpay.StatusLoaded, ""))

	first, err := suite.service.ApplyTransaction(context.Background(), tx, testEntity)
	suite.Require().NoError(err)
	second, err := suite.service.ApplyTransaction(context.Background(), tx, testEntity)
	suite.Require().NoError(err)

	suite.Equal(domain.StateProviderProcessed, second.State.State)
	suite.Len(second.StateHistory, len(first.StateHistory))
}

func (suite *ReconciliationServiceTestSuite) TestApplyTransaction_IllegalTransition() {
	d := stored(suite.T(), suite.store, domain.StatePending)

	_, err := suite.service.ApplyTransaction(context.Background(), suite.parse(statusLine(d.DisbursementNumber, vpay.StatusPurchase, "")), testEntity)

	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *ReconciliationServiceTestSuite) TestApplyTransaction_ProviderErrorRoutesByReferenceType() {
	claim := stored(suite.T(), suite.store, domain.StateProviderUploaded, func(d *domain.Disbursement) {
		d.DisbursementType = domain.DisbursementTypeClaim
		d.ClaimID = "CLM-5"
	})

	got, err := suite.service.ApplyTransaction(context.Background(), vpay.Transaction{
		DisbursementID:     fmt.Sprintf("%d", claim.DisbursementNumber),
		DisbursementNumber: claim.DisbursementNumber,
		State:              domain.StateProviderError,
		Rejected:           true,
		RejectReason:       "INVALID ADDRESS",
		FileName:           "acme_rejects.txt",
	}, testEntity)

	suite.Require().NoError(err)
	suite.Equal(domain.StateProviderError, got.State.State)
	suite.Equal("INVALID ADDRESS", got.RejectReason)
	suite.Empty(got.ProviderResponse.CheckNumber)
	suite.events.AssertCalled(suite.T(), "SendServiceEvent", mock.Anything, mock.MatchedBy(func(e domain.ProviderErrorEvent) bool {
		return e.ClaimID == "CLM-5" && e.RejectReason == "INVALID ADDRESS"
	}), domain.EventClaimProviderError)
}

func (suite *ReconciliationServiceTestSuite) TestApplyTransaction_ClearedArchivesDocumentsBestEffort() {
	d := stored(suite.T(), suite.store, domain.StateMailed)
	tx := suite.parse(statusLine(d.DisbursementNumber, vpay.StatusPurchase, ""))
	good := domain.ProviderDocument{DocumentID: "D1", FileName: "check-image.pdf"}
	bad := domain.ProviderDocument{DocumentID: "D2", FileName: "stub.pdf"}

	suite.documents.On("ListDocuments", mock.Anything, tx.TransactionID).Return([]domain.ProviderDocument{good, bad}, nil).Once()
	suite.documents.On("DownloadDocument", mock.Anything, good).Return([]byte("%PDF"), nil).Once()
	suite.documents.On("DownloadDocument", mock.Anything, bad).Return(nil, errors.New("timeout")).Once()
	wantKey := fmt.Sprintf("disbursements/%s/%d/check-image.pdf", testEntity, d.DisbursementNumber)
	suite.storage.On("Upload", mock.Anything, []byte("%PDF"), wantKey, "application/pdf").Return(nil).Once()

	got, err := suite.service.ApplyTransaction(context.Background(), tx, testEntity)

	suite.Require().NoError(err)
	suite.Equal(domain.StateCleared, got.State.State)
	suite.Equal([]string{wantKey}, got.DocumentReconKeys)
	suite.documents.AssertExpectations(suite.T())
	suite.storage.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestReconcileInbound_ProcessesAndArchives() {
	d := stored(suite.T(), suite.store, domain.StateProviderUploaded)
	content := strings.Join([]string{
		"Header|ACME|20240306",
		statusLine(d.DisbursementNumber, vpay.StatusLoaded, ""),
		statusLine(9999, vpay.StatusLoaded, ""),
		"Transaction|broken",
		statusLine(d.DisbursementNumber, "Unknown", ""),
		"Trailer|4",
	}, "\r\n")
	suite.transport.files["/in/"+testEntity+"/status_20240306.txt"] = []byte(content)

	res, err := suite.service.ReconcileInbound(context.Background(), domain.ProductMain{ProductKey: testProduct, EntityID: testEntity})

	suite.Require().NoError(err)
	suite.Equal(1, res.Files)
	suite.Equal(1, res.Applied)
	suite.Equal(1, res.Failed)
	suite.Equal(4, res.Skipped)
	suite.Equal([]string{"/archive/" + testEntity + "/status_20240306.txt"}, suite.transport.paths())

	reloaded, err := suite.store.FindDisbursement(context.Background(), testEntity, d.DisbursementNumber)
	suite.Require().NoError(err)
	suite.Equal(domain.StateProviderProcessed, reloaded.State.State)
	suite.Equal(1, suite.transport.closures)
}
