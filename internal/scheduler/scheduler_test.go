package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
	"github.com/SscSPs/disbursement_backoffice/internal/observability/metrics"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/clock"
	"github.com/SscSPs/disbursement_backoffice/internal/vpay"
)

type mockProducts struct{ mock.Mock }

func (m *mockProducts) GetConfiguration(ctx context.Context, key string) (*domain.ProductMain, *domain.ProductAccounting, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.ProductMain), &domain.ProductAccounting{}, args.Error(2)
}

func (m *mockProducts) GetProductList(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

type mockRelease struct{ mock.Mock }

func (m *mockRelease) ReleaseDueBatches(ctx context.Context, product domain.ProductMain, batchType domain.BatchType) (portssvc.ReleaseResult, error) {
	args := m.Called(ctx, product, batchType)
	return args.Get(0).(portssvc.ReleaseResult), args.Error(1)
}

func (m *mockRelease) MoveUnreleased(ctx context.Context, entityID string, batchType domain.BatchType) (int, error) {
	args := m.Called(ctx, entityID, batchType)
	return args.Int(0), args.Error(1)
}

type mockReconciliation struct{ mock.Mock }

func (m *mockReconciliation) ApplyTransaction(ctx context.Context, tx vpay.Transaction, entityID string) (*domain.Disbursement, error) {
	args := m.Called(ctx, tx, entityID)
	return nil, args.Error(1)
}

func (m *mockReconciliation) ReconcileFile(ctx context.Context, entityID, fileName string, content []byte) (portssvc.ReconcileResult, error) {
	args := m.Called(ctx, entityID, fileName, content)
	return args.Get(0).(portssvc.ReconcileResult), args.Error(1)
}

func (m *mockReconciliation) ReconcileInbound(ctx context.Context, product domain.ProductMain) (portssvc.ReconcileResult, error) {
	args := m.Called(ctx, product)
	return args.Get(0).(portssvc.ReconcileResult), args.Error(1)
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	obtained []string
	released []string
}

func (l *fakeLocker) Obtain(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, ErrLockHeld
	}
	l.obtained = append(l.obtained, key)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released = append(l.released, key)
		return nil
	}, nil
}

type fixture struct {
	products *mockProducts
	release  *mockRelease
	recon    *mockReconciliation
	locker   *fakeLocker
	sched    *Scheduler
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		products: new(mockProducts),
		release:  new(mockRelease),
		recon:    new(mockReconciliation),
		locker:   &fakeLocker{held: map[string]bool{}},
	}
	s, err := New(Params{
		Products:       f.products,
		Release:        f.release,
		Reconciliation: f.recon,
		Locker:         f.locker,
		Metrics:        metrics.NewSchedulerMetrics(prometheus.NewRegistry()),
		Clock:          clock.NewFakeClock(time.Date(2024, 3, 4, 16, 0, 0, 0, time.UTC)),
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:         cfg,
	})
	require.NoError(t, err)
	f.sched = s
	return f
}

var (
	productA = &domain.ProductMain{ProductKey: "HO3-TX", EntityID: "ENT-1", PayerID: "PAYER1"}
	productB = &domain.ProductMain{ProductKey: "HO3-FL", EntityID: "ENT-2", PayerID: "PAYER2"}
)

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBatchUploadJob_ReleasesEveryStreamInOrder(t *testing.T) {
	f := newFixture(t, Config{})
	f.products.On("GetProductList", mock.Anything).Return([]string{"HO3-TX"}, nil)
	f.products.On("GetConfiguration", mock.Anything, "HO3-TX").Return(productA, nil, nil)

	var order []domain.BatchType
	f.release.On("ReleaseDueBatches", mock.Anything, *productA, mock.Anything).
		Run(func(args mock.Arguments) { order = append(order, args.Get(2).(domain.BatchType)) }).
		Return(portssvc.ReleaseResult{BatchesReleased: 1, DisbursementsUploaded: 2}, nil)

	require.NoError(t, f.sched.BatchUploadJob(context.Background()))

	assert.Equal(t, domain.BatchTypes, order)
	assert.Equal(t, f.locker.obtained, f.locker.released)
	assert.Contains(t, f.locker.obtained, "disbursement:release:ENT-1:ClaimBatch")
	f.release.AssertNotCalled(t, "MoveUnreleased", mock.Anything, mock.Anything, mock.Anything)
}

func TestBatchUploadJob_ConfigurationErrorOnlyAbortsThatProduct(t *testing.T) {
	f := newFixture(t, Config{})
	f.products.On("GetProductList", mock.Anything).Return([]string{"BROKEN", "HO3-FL"}, nil)
	f.products.On("GetConfiguration", mock.Anything, "BROKEN").Return(nil, nil, apperrors.NewConfigurationError("unknown product"))
	f.products.On("GetConfiguration", mock.Anything, "HO3-FL").Return(productB, nil, nil)
	f.release.On("ReleaseDueBatches", mock.Anything, *productB, mock.Anything).Return(portssvc.ReleaseResult{}, nil)

	err := f.sched.BatchUploadJob(context.Background())

	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	f.release.AssertNumberOfCalls(t, "ReleaseDueBatches", len(domain.BatchTypes))
}

func TestBatchUploadJob_UploadFailureKeepsOtherStreams(t *testing.T) {
	f := newFixture(t, Config{})
	f.products.On("GetProductList", mock.Anything).Return([]string{"HO3-TX"}, nil)
	f.products.On("GetConfiguration", mock.Anything, "HO3-TX").Return(productA, nil, nil)
	f.release.On("ReleaseDueBatches", mock.Anything, *productA, domain.BatchTypeStandard).
		Return(portssvc.ReleaseResult{}, apperrors.NewProviderError("put", errors.New("connection reset")))
	f.release.On("ReleaseDueBatches", mock.Anything, *productA, mock.Anything).Return(portssvc.ReleaseResult{}, nil)

	err := f.sched.BatchUploadJob(context.Background())

	assert.ErrorIs(t, err, apperrors.ErrProvider)
	f.release.AssertNumberOfCalls(t, "ReleaseDueBatches", len(domain.BatchTypes))
}

func TestBatchUploadJob_SkipsHeldLock(t *testing.T) {
	f := newFixture(t, Config{})
	f.locker.held[releaseLockKey("ENT-1", string(domain.BatchTypeClaim))] = true
	f.products.On("GetProductList", mock.Anything).Return([]string{"HO3-TX"}, nil)
	f.products.On("GetConfiguration", mock.Anything, "HO3-TX").Return(productA, nil, nil)
	f.release.On("ReleaseDueBatches", mock.Anything, *productA, mock.Anything).Return(portssvc.ReleaseResult{}, nil)

	require.NoError(t, f.sched.BatchUploadJob(context.Background()))

	f.release.AssertNumberOfCalls(t, "ReleaseDueBatches", len(domain.BatchTypes)-1)
	f.release.AssertNotCalled(t, "ReleaseDueBatches", mock.Anything, *productA, domain.BatchTypeClaim)
}

func TestBatchUploadJob_SelfHealRunsBeforeRelease(t *testing.T) {
	f := newFixture(t, Config{SelfHealUnreleased: true})
	f.products.On("GetProductList", mock.Anything).Return([]string{"HO3-TX"}, nil)
	f.products.On("GetConfiguration", mock.Anything, "HO3-TX").Return(productA, nil, nil)

	var calls []string
	f.release.On("MoveUnreleased", mock.Anything, "ENT-1", mock.Anything).
		Run(func(mock.Arguments) { calls = append(calls, "move") }).
		Return(1, nil)
	f.release.On("ReleaseDueBatches", mock.Anything, *productA, mock.Anything).
		Run(func(mock.Arguments) { calls = append(calls, "release") }).
		Return(portssvc.ReleaseResult{}, nil)

	require.NoError(t, f.sched.BatchUploadJob(context.Background()))

	assert.Equal(t, []string{"move", "release", "move", "release", "move", "release"}, calls)
}

func TestReconciliationJob_JoinsEntityErrors(t *testing.T) {
	f := newFixture(t, Config{})
	f.products.On("GetProductList", mock.Anything).Return([]string{"HO3-TX", "HO3-FL"}, nil)
	f.products.On("GetConfiguration", mock.Anything, "HO3-TX").Return(productA, nil, nil)
	f.products.On("GetConfiguration", mock.Anything, "HO3-FL").Return(productB, nil, nil)
	f.recon.On("ReconcileInbound", mock.Anything, *productA).
		Return(portssvc.ReconcileResult{Files: 1, Applied: 3}, nil)
	f.recon.On("ReconcileInbound", mock.Anything, *productB).
		Return(portssvc.ReconcileResult{}, apperrors.NewProviderError("list /in/ENT-2", errors.New("timeout")))

	err := f.sched.ReconciliationJob(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "entity ENT-2")
	f.recon.AssertExpectations(t)
}

func TestRunOnce_OnlyEnabledJobs(t *testing.T) {
	f := newFixture(t, Config{EnabledJobs: []string{"Reconciliation"}})
	f.products.On("GetProductList", mock.Anything).Return([]string{"HO3-TX"}, nil)
	f.products.On("GetConfiguration", mock.Anything, "HO3-TX").Return(productA, nil, nil)
	f.recon.On("ReconcileInbound", mock.Anything, *productA).Return(portssvc.ReconcileResult{}, nil)

	require.NoError(t, f.sched.RunOnce(context.Background()))

	f.release.AssertNotCalled(t, "ReleaseDueBatches", mock.Anything, mock.Anything, mock.Anything)
	f.recon.AssertNumberOfCalls(t, "ReconcileInbound", 1)
}

func TestRunOnce_WrapsJobName(t *testing.T) {
	f := newFixture(t, Config{EnabledJobs: []string{JobBatchUpload}})
	f.products.On("GetProductList", mock.Anything).Return([]string(nil), errors.New("product api down"))

	err := f.sched.RunOnce(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_upload: failed to list products")
}
