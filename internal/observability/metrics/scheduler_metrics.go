package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
)

const (
	JobReasonDeadlineExceeded = "deadline_exceeded"
	JobReasonConfiguration    = "configuration"
	JobReasonProvider         = "provider"
	JobReasonValidation       = "validation"
	JobReasonDB               = "db"
	JobReasonUnknown          = "unknown"
)

const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// SchedulerMetrics captures batch release and reconciliation health signals.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	lockSkipped    *prometheus.CounterVec
	batchesIssued  *prometheus.CounterVec
	uploaded       *prometheus.CounterVec
	selfHealed     *prometheus.CounterVec
	filesProcessed prometheus.Counter
	linesProcessed *prometheus.CounterVec
	runLoopLag     prometheus.Histogram
}

// NewSchedulerMetrics registers the scheduler collectors on registerer.
// A nil registerer uses prometheus.DefaultRegisterer.
func NewSchedulerMetrics(registerer prometheus.Registerer) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &SchedulerMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "disbursement_scheduler_job_runs_total",
			Help: "Scheduler job runs by name.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "disbursement_scheduler_job_duration_seconds",
			Help:    "Scheduler job latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"job"}),
		jobTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "disbursement_scheduler_job_timeouts_total",
			Help: "Scheduler jobs cut off by their timeout.",
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "disbursement_scheduler_job_errors_total",
			Help: "Scheduler job errors by low-cardinality reason.",
		}, []string{"job", "reason"}),
		lockSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "disbursement_scheduler_lock_skipped_total",
			Help: "Entity runs skipped because another replica held the lock.",
		}, []string{"job"}),
		batchesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "disbursement_batches_issued_total",
			Help: "Batches released to the provider.",
		}, []string{"batch_type"}),
		uploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "disbursement_uploaded_total",
			Help: "Disbursements marked ProviderUploaded.",
		}, []string{"batch_type"}),
		selfHealed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "disbursement_self_healed_total",
			Help: "Approved disbursements moved out of already issued batches.",
		}, []string{"batch_type"}),
		filesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "disbursement_reconciliation_files_total",
			Help: "Provider status files reconciled and archived.",
		}),
		linesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "disbursement_reconciliation_lines_total",
			Help: "Provider status lines by outcome.",
		}, []string{"outcome"}),
		runLoopLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "disbursement_scheduler_runloop_lag_seconds",
			Help:    "Scheduler run loop lag beyond the configured interval.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
	}

	registerer.MustRegister(
		m.jobRuns,
		m.jobDuration,
		m.jobTimeouts,
		m.jobErrors,
		m.lockSkipped,
		m.batchesIssued,
		m.uploaded,
		m.selfHealed,
		m.filesProcessed,
		m.linesProcessed,
		m.runLoopLag,
	)
	return m
}

// IncJobRun increments the run counter for a scheduler job.
func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records scheduler job latency in seconds.
func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the job error counter with a classified reason.
func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyJobReason(err)).Inc()
}

func (m *SchedulerMetrics) IncLockSkipped(job string) {
	if m == nil {
		return
	}
	m.lockSkipped.WithLabelValues(job).Inc()
}

// AddRelease records the outcome of one release run for a batch stream.
func (m *SchedulerMetrics) AddRelease(batchType string, batches, uploaded int) {
	if m == nil {
		return
	}
	if batches > 0 {
		m.batchesIssued.WithLabelValues(batchType).Add(float64(batches))
	}
	if uploaded > 0 {
		m.uploaded.WithLabelValues(batchType).Add(float64(uploaded))
	}
}

func (m *SchedulerMetrics) AddSelfHealed(batchType string, moved int) {
	if m == nil || moved <= 0 {
		return
	}
	m.selfHealed.WithLabelValues(batchType).Add(float64(moved))
}

// AddReconciliation records per-line outcomes and archived files.
func (m *SchedulerMetrics) AddReconciliation(files, applied, skipped, failed int) {
	if m == nil {
		return
	}
	if files > 0 {
		m.filesProcessed.Add(float64(files))
	}
	for outcome, n := range map[string]int{OutcomeApplied: applied, OutcomeSkipped: skipped, OutcomeFailed: failed} {
		if n > 0 {
			m.linesProcessed.WithLabelValues(outcome).Add(float64(n))
		}
	}
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *SchedulerMetrics) ObserveRunLoopLag(d time.Duration) {
	if m == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	m.runLoopLag.Observe(d.Seconds())
}

// ClassifyJobReason maps job errors to low-cardinality reasons.
func ClassifyJobReason(err error) string {
	switch {
	case err == nil:
		return JobReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return JobReasonDeadlineExceeded
	case errors.Is(err, apperrors.ErrConfiguration):
		return JobReasonConfiguration
	case errors.Is(err, apperrors.ErrProvider):
		return JobReasonProvider
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrArgument):
		return JobReasonValidation
	case isDBError(err):
		return JobReasonDB
	default:
		return JobReasonUnknown
	}
}

func isDBError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
