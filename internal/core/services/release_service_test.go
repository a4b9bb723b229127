package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
	"github.com/SscSPs/disbursement_backoffice/internal/core/services"
	"github.com/SscSPs/disbursement_backoffice/internal/dto"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/clock"
	"github.com/SscSPs/disbursement_backoffice/internal/repositories/memory"
)

var testProductMain = domain.ProductMain{ProductKey: testProduct, EntityID: testEntity, PayerID: "PAYER1"}

type ReleaseServiceTestSuite struct {
	suite.Suite
	clock     *clock.FakeClock
	store     *memory.Store
	storage   *MockBlobStorage
	transport *fakeTransport
	batch     domain.Batch
	service   portssvc.ReleaseSvc
}

func (suite *ReleaseServiceTestSuite) SetupTest() {
	suite.clock = clock.NewFakeClock(time.Date(2024, 3, 4, 9, 0, 0, 0, domain.BatchLocation))
	suite.store = memory.NewStore(suite.clock)
	suite.storage = new(MockBlobStorage)
	suite.transport = newFakeTransport()

	suite.batch = domain.NewBatch(testEntity, domain.BatchTypeStandard, domain.ComputeBatchWindow(suite.clock.Now()), suite.clock.Now())
	created, err := suite.store.CreateBatch(context.Background(), suite.batch)
	suite.Require().NoError(err)
	suite.Require().True(created)

	suite.service = services.NewReleaseService(services.ReleaseServiceDeps{
		DisbursementRepo: suite.store,
		BatchRepo:        suite.store,
		BatchSvc:         services.NewBatchService(suite.store, suite.clock),
		Storage:          suite.storage,
		Dialer:           suite.transport,
		Dirs:             services.TransportDirs{Outbound: "/out", Inbound: "/in", Archive: "/archive"},
		Clock:            suite.clock,
	})
}

func TestReleaseServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ReleaseServiceTestSuite))
}

func (suite *ReleaseServiceTestSuite) inBatch(state domain.DisbursementStateName, documents ...string) domain.Disbursement {
	return stored(suite.T(), suite.store, state, func(d *domain.Disbursement) {
		d.AssignBatch(suite.batch)
		d.Documents = documents
	})
}

func (suite *ReleaseServiceTestSuite) reload(number int64) *domain.Disbursement {
	d, err := suite.store.FindDisbursement(context.Background(), testEntity, number)
	suite.Require().NoError(err)
	return d
}

func (suite *ReleaseServiceTestSuite) TestReleaseDueBatches_UploadsApprovedAndIssuesBatch() {
	withDoc := suite.inBatch(domain.StateApproved, "docs/letter.pdf")
	plain := suite.inBatch(domain.StateApproved)
	pending := suite.inBatch(domain.StatePending)
	suite.storage.On("GetDocument", mock.Anything, "docs/letter.pdf").Return([]byte("%PDF"), nil).Once()
	suite.clock.Set(time.Date(2024, 3, 4, 10, 5, 0, 0, domain.BatchLocation))

	res, err := suite.service.ReleaseDueBatches(context.Background(), testProductMain, domain.BatchTypeStandard)

	suite.Require().NoError(err)
	suite.Equal(portssvc.ReleaseResult{BatchesReleased: 1, DisbursementsUploaded: 2}, res)

	paths := suite.transport.paths()
	suite.Require().Len(paths, 2)
	var paymentFile string
	for _, p := range paths {
		suite.True(strings.HasPrefix(p, "/out/"+testEntity+"/"), p)
		if strings.HasSuffix(p, ".txt") {
			paymentFile = p
		}
	}
	suite.Require().NotEmpty(paymentFile)
	suite.Contains(paymentFile, "PAYER1_")
	suite.Contains(string(suite.transport.files[paymentFile]), "TRL|PMT|000000002")

	for _, n := range []int64{withDoc.DisbursementNumber, plain.DisbursementNumber} {
		d := suite.reload(n)
		suite.Equal(domain.StateProviderUploaded, d.State.State)
		suite.NotNil(d.ReleasedDateTime)
	}
	suite.Equal(domain.StatePending, suite.reload(pending.DisbursementNumber).State.State)

	batch, err := suite.store.FindBatch(context.Background(), testEntity, suite.batch.BatchNumber, domain.BatchTypeStandard)
	suite.Require().NoError(err)
	suite.Equal(domain.BatchIssued, batch.State)
	suite.NotNil(batch.ReleasedDateTime)
	suite.Equal(1, suite.transport.closures)
	suite.storage.AssertExpectations(suite.T())
}

func (suite *ReleaseServiceTestSuite) TestReleaseDueBatches_UploadFailureAbortsRun() {
	d := suite.inBatch(domain.StateApproved)
	suite.transport.failPut = ".txt"
	suite.clock.Set(time.Date(2024, 3, 4, 10, 5, 0, 0, domain.BatchLocation))

	res, err := suite.service.ReleaseDueBatches(context.Background(), testProductMain, domain.BatchTypeStandard)

	suite.Require().Error(err)
	suite.ErrorIs(err, apperrors.ErrProvider)
	suite.Zero(res.BatchesReleased)
	suite.Equal(domain.StateApproved, suite.reload(d.DisbursementNumber).State.State)

	batch, err := suite.store.FindBatch(context.Background(), testEntity, suite.batch.BatchNumber, domain.BatchTypeStandard)
	suite.Require().NoError(err)
	suite.Equal(domain.BatchScheduled, batch.State)
}

func (suite *ReleaseServiceTestSuite) TestReleaseDueBatches_NothingDueYet() {
	suite.inBatch(domain.StateApproved)
	suite.clock.Set(time.Date(2024, 3, 4, 9, 59, 0, 0, domain.BatchLocation))

	res, err := suite.service.ReleaseDueBatches(context.Background(), testProductMain, domain.BatchTypeStandard)

	suite.Require().NoError(err)
	suite.Zero(res.BatchesReleased)
	suite.Zero(suite.transport.dials)
}

func (suite *ReleaseServiceTestSuite) TestMoveUnreleased_MovesStrandedToNextOpenWindow() {
	stranded := suite.inBatch(domain.StateApproved)
	uploaded := suite.inBatch(domain.StateProviderUploaded)

	issued := suite.batch
	issued.State = domain.BatchIssued
	suite.Require().NoError(suite.store.SaveBatch(context.Background(), issued))
	suite.clock.Set(time.Date(2024, 3, 4, 11, 0, 0, 0, domain.BatchLocation))

	moved, err := suite.service.MoveUnreleased(context.Background(), testEntity, domain.BatchTypeStandard)

	suite.Require().NoError(err)
	suite.Equal(1, moved)
	suite.Equal("20240304PM", suite.reload(stranded.DisbursementNumber).BatchNumber)
	suite.Equal(domain.StateApproved, suite.reload(stranded.DisbursementNumber).State.State)
	suite.Equal("20240304AM", suite.reload(uploaded.DisbursementNumber).BatchNumber)
}

func (suite *ReleaseServiceTestSuite) disbursementService() portssvc.DisbursementSvcFacade {
	products := new(MockProductConfigLookup)
	products.On("GetConfiguration", mock.Anything, testProduct).Return(
		&testProductMain,
		&domain.ProductAccounting{ProductKey: testProduct, ReservePaymentInfoList: []domain.ReservePaymentInfo{
			{CostType: "Indemnity", AccountCode: "ACCT-IND", Rank: 1},
		}},
		nil,
	).Maybe()
	billing := new(MockBillingLookup)
	billing.On("GetBillingAccount", mock.Anything, mock.Anything).Return(&domain.BillingAccount{PolicyID: testPolicy}, nil).Maybe()
	activity := new(MockActivityLogSink)
	activity.On("SendActivityLog", mock.Anything, mock.Anything).Return(nil).Maybe()
	events := new(MockEventBus)
	events.On("SendServiceEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	return services.NewDisbursementService(services.DisbursementServiceDeps{
		DisbursementRepo: suite.store,
		BatchSvc:         services.NewBatchService(suite.store, suite.clock),
		Products:         products,
		Billing:          billing,
		Activity:         activity,
		Events:           events,
		Clock:            suite.clock,
	})
}

func (suite *ReleaseServiceTestSuite) at(hour, minute int) {
	suite.clock.Set(time.Date(2024, 3, 4, hour, minute, 0, 0, domain.BatchLocation))
}

func (suite *ReleaseServiceTestSuite) release() portssvc.ReleaseResult {
	res, err := suite.service.ReleaseDueBatches(context.Background(), testProductMain, domain.BatchTypeStandard)
	suite.Require().NoError(err)
	return res
}

func (suite *ReleaseServiceTestSuite) approve(svc portssvc.DisbursementSvcFacade, number int64) *domain.Disbursement {
	d, err := svc.RequestAction(context.Background(), testActor, dto.ActionRequest{
		EntityID: testEntity, DisbursementNumber: number, Action: dto.ActionApprove,
	})
	suite.Require().NoError(err)
	return d
}

func (suite *ReleaseServiceTestSuite) TestReleaseDueBatches_EmptyDueBatchStaysScheduled() {
	suite.inBatch(domain.StatePending)
	suite.at(10, 5)

	res := suite.release()

	suite.Zero(res.BatchesReleased)
	suite.Zero(suite.transport.dials)
	batch, err := suite.store.FindBatch(context.Background(), testEntity, suite.batch.BatchNumber, domain.BatchTypeStandard)
	suite.Require().NoError(err)
	suite.Equal(domain.BatchScheduled, batch.State)
	suite.Nil(batch.ReleasedDateTime)
}

func (suite *ReleaseServiceTestSuite) TestApprovalAfterCutIsUploadedByNextRelease() {
	svc := suite.disbursementService()
	created, err := svc.CreateDisbursement(context.Background(), testActor, createRequest("Disbursement", recipient("Jane Doe")))
	suite.Require().NoError(err)
	suite.Require().Len(created, 1)
	number := created[0].DisbursementNumber
	suite.Equal("20240304AM", created[0].BatchNumber)

	suite.at(10, 5)
	suite.Zero(suite.release().BatchesReleased)

	suite.at(11, 0)
	suite.approve(svc, number)

	suite.at(17, 5)
	res := suite.release()

	suite.Equal(1, res.DisbursementsUploaded)
	suite.Equal(domain.StateProviderUploaded, suite.reload(number).State.State)
}

func (suite *ReleaseServiceTestSuite) TestIssuedWindowIsSkippedByCreateAndApprove() {
	svc := suite.disbursementService()
	suite.inBatch(domain.StateApproved)
	late := suite.inBatch(domain.StatePending)

	suite.at(10, 5)
	suite.Equal(1, suite.release().BatchesReleased)

	suite.at(12, 0)
	created, err := svc.CreateDisbursement(context.Background(), testActor, createRequest("Disbursement", recipient("John Roe")))
	suite.Require().NoError(err)
	suite.Require().Len(created, 1)
	suite.Equal("20240304PM", created[0].BatchNumber)

	approved := suite.approve(svc, late.DisbursementNumber)
	suite.Equal("20240304PM", approved.BatchNumber)
	suite.approve(svc, created[0].DisbursementNumber)

	suite.at(17, 5)
	res := suite.release()

	suite.Equal(portssvc.ReleaseResult{BatchesReleased: 1, DisbursementsUploaded: 2}, res)
	suite.Equal(domain.StateProviderUploaded, suite.reload(late.DisbursementNumber).State.State)
	suite.Equal(domain.StateProviderUploaded, suite.reload(created[0].DisbursementNumber).State.State)
}
