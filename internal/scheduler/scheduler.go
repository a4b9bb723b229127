package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
	"github.com/SscSPs/disbursement_backoffice/internal/middleware"
	"github.com/SscSPs/disbursement_backoffice/internal/observability/metrics"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/clock"
)

const (
	JobBatchUpload    = "batch_upload"
	JobReconciliation = "reconciliation"
)

// ErrInvalidConfig is returned by New when a required dependency is missing.
var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	Products       portssvc.ProductConfigLookup
	Release        portssvc.ReleaseSvc
	Reconciliation portssvc.ReconciliationSvc
	Locker         Locker
	Metrics        *metrics.SchedulerMetrics
	Clock          clock.Clock
	Logger         *slog.Logger
	Config         Config
}

// Scheduler runs the periodic provider jobs: releasing due batches and
// reconciling provider status files.
type Scheduler struct {
	products       portssvc.ProductConfigLookup
	release        portssvc.ReleaseSvc
	reconciliation portssvc.ReconciliationSvc
	locker         Locker
	metrics        *metrics.SchedulerMetrics
	clock          clock.Clock
	log            *slog.Logger
	cfg            Config
}

func New(p Params) (*Scheduler, error) {
	if p.Products == nil || p.Release == nil || p.Reconciliation == nil || p.Clock == nil || p.Logger == nil {
		return nil, ErrInvalidConfig
	}
	locker := p.Locker
	if locker == nil {
		locker = noopLocker{}
	}
	return &Scheduler{
		products:       p.Products,
		release:        p.Release,
		reconciliation: p.Reconciliation,
		locker:         locker,
		metrics:        p.Metrics,
		clock:          p.Clock,
		log:            p.Logger.With(slog.String("component", "scheduler")),
		cfg:            p.Config.withDefaults(),
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	log := s.log.With(slog.String("job", name))
	ctx = middleware.WithLogger(ctx, log)
	s.metrics.IncJobRun(name)
	log.Info("Job started")

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err == nil {
		log.Info("Job finished")
		return nil
	}

	s.metrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) {
		s.metrics.IncJobTimeout(name)
		log.Warn("Job timed out", slog.Duration("timeout", s.cfg.JobTimeout), slog.String("error", err.Error()))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job once, in order, and joins their errors.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobBatchUpload, s.BatchUploadJob},
		{JobReconciliation, s.ReconciliationJob},
	}

	var err error
	for _, job := range jobs {
		if ctx.Err() != nil {
			return errors.Join(err, ctx.Err())
		}
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, s.runJob(ctx, job.Name, job.Run))
		}
	}
	return err
}

// RunForever calls RunOnce every RunInterval until ctx is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now()

	for {
		s.metrics.ObserveRunLoopLag(s.clock.Now().Sub(nextRun))
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("Scheduler run failed", slog.String("error", err.Error()))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(name string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), name) {
			return true
		}
	}
	return false
}

// BatchUploadJob releases due batches of every product, one batch stream at a time.
func (s *Scheduler) BatchUploadJob(ctx context.Context) error {
	products, err := s.loadProducts(ctx)
	jobErr := err

	for _, product := range products {
		for _, batchType := range domain.BatchTypes {
			if ctx.Err() != nil {
				return errors.Join(jobErr, ctx.Err())
			}
			err := s.withLock(ctx, JobBatchUpload, releaseLockKey(product.EntityID, string(batchType)), func(ctx context.Context) error {
				return s.releaseStream(ctx, product, batchType)
			})
			if err != nil {
				jobErr = errors.Join(jobErr, fmt.Errorf("entity %s %s: %w", product.EntityID, batchType, err))
			}
		}
	}
	return jobErr
}

func (s *Scheduler) releaseStream(ctx context.Context, product domain.ProductMain, batchType domain.BatchType) error {
	logger := middleware.GetLoggerFromCtx(ctx).With(
		slog.String("entity_id", product.EntityID),
		slog.String("batch_type", string(batchType)),
	)

	if s.cfg.SelfHealUnreleased {
		moved, err := s.release.MoveUnreleased(ctx, product.EntityID, batchType)
		s.metrics.AddSelfHealed(string(batchType), moved)
		if err != nil {
			logger.Error("Self-heal of unreleased disbursements failed", slog.String("error", err.Error()))
		} else if moved > 0 {
			logger.Info("Moved unreleased disbursements to the next window", slog.Int("count", moved))
		}
	}

	res, err := s.release.ReleaseDueBatches(ctx, product, batchType)
	s.metrics.AddRelease(string(batchType), res.BatchesReleased, res.DisbursementsUploaded)
	if err != nil {
		return err
	}
	if res.BatchesReleased > 0 {
		logger.Info("Released batches",
			slog.Int("batches", res.BatchesReleased),
			slog.Int("uploaded", res.DisbursementsUploaded),
			slog.Int("failures", res.Failures),
		)
	}
	return nil
}

// ReconciliationJob processes the inbound provider files of every product.
func (s *Scheduler) ReconciliationJob(ctx context.Context) error {
	products, err := s.loadProducts(ctx)
	jobErr := err

	for _, product := range products {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}
		err := s.withLock(ctx, JobReconciliation, reconcileLockKey(product.EntityID), func(ctx context.Context) error {
			res, err := s.reconciliation.ReconcileInbound(ctx, product)
			s.metrics.AddReconciliation(res.Files, res.Applied, res.Skipped, res.Failed)
			if res.Files > 0 || res.Failed > 0 {
				middleware.GetLoggerFromCtx(ctx).Info("Reconciled provider files",
					slog.String("entity_id", product.EntityID),
					slog.Int("files", res.Files),
					slog.Int("applied", res.Applied),
					slog.Int("skipped", res.Skipped),
					slog.Int("failed", res.Failed),
				)
			}
			return err
		})
		if err != nil {
			jobErr = errors.Join(jobErr, fmt.Errorf("entity %s: %w", product.EntityID, err))
		}
	}
	return jobErr
}

// loadProducts resolves the configuration of every product. A product whose
// configuration cannot be loaded is reported and left out; the rest still run.
func (s *Scheduler) loadProducts(ctx context.Context) ([]domain.ProductMain, error) {
	keys, err := s.products.GetProductList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	logger := middleware.GetLoggerFromCtx(ctx)
	var errs []error
	products := make([]domain.ProductMain, 0, len(keys))
	for _, key := range keys {
		main, _, err := s.products.GetConfiguration(ctx, key)
		if err == nil && (main == nil || main.EntityID == "") {
			err = apperrors.NewConfigurationError("product %s has no entity", key)
		}
		if err != nil {
			logger.Error("Skipping product", slog.String("product_key", key), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("product %s: %w", key, err))
			continue
		}
		products = append(products, *main)
	}
	return products, errors.Join(errs...)
}

// withLock runs fn while holding key. A key held elsewhere is skipped without error.
func (s *Scheduler) withLock(ctx context.Context, job, key string, fn func(ctx context.Context) error) error {
	release, err := s.locker.Obtain(ctx, key, s.cfg.LockTTL)
	if errors.Is(err, ErrLockHeld) {
		s.metrics.IncLockSkipped(job)
		middleware.GetLoggerFromCtx(ctx).Info("Lock held elsewhere, skipping", slog.String("lock", key))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			middleware.GetLoggerFromCtx(ctx).Warn("Failed to release lock", slog.String("lock", key), slog.String("error", err.Error()))
		}
	}()
	return fn(ctx)
}
