package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
)

func TestClassifyJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", fmt.Errorf("release: %w", context.DeadlineExceeded), JobReasonDeadlineExceeded},
		{"configuration", apperrors.NewConfigurationError("no product"), JobReasonConfiguration},
		{"provider", apperrors.NewProviderError("put", errors.New("eof")), JobReasonProvider},
		{"validation", apperrors.NewValidationError("bad"), JobReasonValidation},
		{"db", &pgconn.PgError{Code: "40001"}, JobReasonDB},
		{"unknown", errors.New("boom"), JobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyJobReason(tc.err))
		})
	}
}

func TestSchedulerMetrics_Counters(t *testing.T) {
	m := NewSchedulerMetrics(prometheus.NewRegistry())

	m.IncJobRun("batch_upload")
	m.IncJobError("batch_upload", apperrors.NewProviderError("put", nil))
	m.AddRelease("ClaimBatch", 1, 3)
	m.AddReconciliation(2, 5, 1, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("batch_upload")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobErrors.WithLabelValues("batch_upload", JobReasonProvider)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.uploaded.WithLabelValues("ClaimBatch")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.filesProcessed))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.linesProcessed.WithLabelValues(OutcomeApplied)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.linesProcessed.WithLabelValues(OutcomeFailed)))
}

func TestSchedulerMetrics_NilSafe(t *testing.T) {
	var m *SchedulerMetrics
	assert.NotPanics(t, func() {
		m.IncJobRun("x")
		m.AddRelease("Batch", 1, 1)
		m.ObserveRunLoopLag(-1)
	})
}
