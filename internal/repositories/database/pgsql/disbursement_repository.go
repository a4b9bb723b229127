package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portsrepo "github.com/SscSPs/disbursement_backoffice/internal/core/ports/repositories"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/clock"
	"github.com/SscSPs/disbursement_backoffice/internal/utils/mapping"
	"github.com/SscSPs/disbursement_backoffice/internal/utils/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultPageSize = 50

type PgxDisbursementRepository struct {
	BaseRepository
}

func newPgxDisbursementRepository(pool *pgxpool.Pool, c clock.Clock) portsrepo.DisbursementRepositoryFacade {
	return &PgxDisbursementRepository{BaseRepository: BaseRepository{Pool: pool, Clock: c}}
}

var _ portsrepo.DisbursementRepositoryFacade = (*PgxDisbursementRepository)(nil)

// AllocateDisbursementNumber increments the entity's counter row, creating it on first use.
func (r *PgxDisbursementRepository) AllocateDisbursementNumber(ctx context.Context, entityID string) (int64, error) {
	return r.allocate(ctx, r.Pool, entityID)
}

func (r *PgxDisbursementRepository) allocate(ctx context.Context, q querier, entityID string) (int64, error) {
	query := `
		INSERT INTO ` + recordsTable + ` (pk, sk, entity_id, counter, data, created_at, updated_at)
		VALUES ($1, $2, $1, 1, '{}'::jsonb, $3, $3)
		ON CONFLICT (pk, sk) DO UPDATE
		SET counter = ` + recordsTable + `.counter + 1, updated_at = EXCLUDED.updated_at
		RETURNING counter;
	`
	var next int64
	if err := q.QueryRow(ctx, query, entityID, domain.CounterSortKey, r.Clock.Now()).Scan(&next); err != nil {
		return 0, apperrors.NewAppError(500, "failed to allocate disbursement number for entity "+entityID, err)
	}
	return next, nil
}

// SaveDisbursement upserts the record. First saves allocate the number in the same transaction.
func (r *PgxDisbursementRepository) SaveDisbursement(ctx context.Context, d *domain.Disbursement) error {
	now := r.Clock.Now()
	if d.State.State == domain.StateProviderUploaded && d.ReleasedDateTime == nil {
		released := now
		d.ReleasedDateTime = &released
	}
	if d.LastUpdatedAt.IsZero() {
		d.LastUpdatedAt = now
	}
	if d.DisbursementNumber != 0 {
		return r.upsert(ctx, r.Pool, *d)
	}

	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	number, err := r.allocate(ctx, tx, d.EntityID)
	if err != nil {
		return err
	}
	d.DisbursementNumber = number
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if err := r.upsert(ctx, tx, *d); err != nil {
		d.DisbursementNumber = 0
		return err
	}
	if err := r.Commit(ctx, tx); err != nil {
		d.DisbursementNumber = 0
		return err
	}
	return nil
}

func (r *PgxDisbursementRepository) upsert(ctx context.Context, q querier, d domain.Disbursement) error {
	rec, err := mapping.ToDisbursementRecord(d)
	if err != nil {
		return apperrors.NewAppError(500, "failed to map disbursement", err)
	}
	query := `
		INSERT INTO ` + recordsTable + ` (pk, sk, entity_id, entity_sort, batch_id, state, record_date, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)
		ON CONFLICT (pk, sk) DO UPDATE
		SET entity_sort = EXCLUDED.entity_sort,
		    batch_id    = EXCLUDED.batch_id,
		    state       = EXCLUDED.state,
		    data        = EXCLUDED.data,
		    updated_at  = EXCLUDED.updated_at;
	`
	_, err = q.Exec(ctx, query,
		rec.PK, rec.SK, rec.EntityID, rec.EntitySort, rec.BatchID, rec.State, rec.RecordDate,
		string(rec.Data), rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to save disbursement "+rec.PK, err)
	}
	return nil
}

func (r *PgxDisbursementRepository) FindDisbursement(ctx context.Context, entityID string, disbursementNumber int64) (*domain.Disbursement, error) {
	pk := domain.DisbursementKey(entityID, disbursementNumber)
	types := make([]string, len(domain.DisbursementTypes))
	for i, t := range domain.DisbursementTypes {
		types[i] = string(t)
	}
	query := `SELECT ` + recordColumns + ` FROM ` + recordsTable + ` WHERE pk = $1 AND sk = ANY($2) LIMIT 1;`

	rec, err := scanRecord(r.Pool.QueryRow(ctx, query, pk, types))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("disbursement %s", pk)
		}
		return nil, apperrors.NewAppError(500, "failed to find disbursement "+pk, err)
	}
	d, err := mapping.ToDomainDisbursement(rec)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to map disbursement "+pk, err)
	}
	return &d, nil
}

func (r *PgxDisbursementRepository) ListDisbursementsByBatch(ctx context.Context, batchID string, filter portsrepo.DisbursementFilter, limit int, nextToken *string) ([]domain.Disbursement, *string, error) {
	w := &whereBuilder{}
	w.add("batch_id = ?", batchID)
	return r.list(ctx, w, filter, limit, nextToken)
}

func (r *PgxDisbursementRepository) ListDisbursementsByEntity(ctx context.Context, entityID string, filter portsrepo.DisbursementFilter, limit int, nextToken *string) ([]domain.Disbursement, *string, error) {
	w := &whereBuilder{}
	w.add("entity_id = ?", entityID)
	w.add("entity_sort IS NOT NULL")
	return r.list(ctx, w, filter, limit, nextToken)
}

func (r *PgxDisbursementRepository) list(ctx context.Context, w *whereBuilder, filter portsrepo.DisbursementFilter, limit int, nextToken *string) ([]domain.Disbursement, *string, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	// One extra row tells us whether another page exists.
	fetchLimit := limit + 1

	if filter.DisbursementType != "" {
		w.add("entity_sort LIKE ?", string(filter.DisbursementType)+"#%")
	} else {
		types := make([]string, len(domain.DisbursementTypes))
		for i, t := range domain.DisbursementTypes {
			types[i] = string(t)
		}
		w.add("sk = ANY(?)", types)
	}
	if len(filter.States) > 0 {
		states := make([]string, len(filter.States))
		for i, s := range filter.States {
			states[i] = string(s)
		}
		w.add("state = ANY(?)", states)
	}
	if filter.CreatedFrom != nil {
		w.add("record_date >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		w.add("record_date < ?", *filter.CreatedTo)
	}
	if filter.PolicyID != "" {
		w.add("data ->> 'policyId' = ?", filter.PolicyID)
	}
	if filter.ClaimID != "" {
		w.add("data ->> 'claimId' = ?", filter.ClaimID)
	}
	if nextToken != nil && *nextToken != "" {
		lastSort, lastPK, decodeErr := pagination.DecodeKeyToken(*nextToken)
		if decodeErr != nil {
			return nil, nil, apperrors.NewAppError(400, "invalid nextToken", errors.Join(apperrors.ErrValidation, decodeErr))
		}
		w.add("(entity_sort, pk) > (?, ?)", lastSort, lastPK)
	}

	query := fmt.Sprintf("SELECT %s FROM %s %s ORDER BY entity_sort, pk %s;", recordColumns, recordsTable, w.sql(), w.limit(fetchLimit))
	rows, err := r.Pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, nil, apperrors.NewAppError(500, "failed to query disbursements", err)
	}
	recs, err := collectRecords(rows)
	if err != nil {
		return nil, nil, apperrors.NewAppError(500, "failed to scan disbursement rows", err)
	}

	var nextTokenVal *string
	if len(recs) > limit {
		last := recs[limit-1]
		token := pagination.EncodeKeyToken(*last.EntitySort, last.PK)
		nextTokenVal = &token
		recs = recs[:limit]
	}

	out := make([]domain.Disbursement, len(recs))
	for i, rec := range recs {
		d, err := mapping.ToDomainDisbursement(rec)
		if err != nil {
			return nil, nil, apperrors.NewAppError(500, "failed to map disbursement "+rec.PK, err)
		}
		out[i] = d
	}
	return out, nextTokenVal, nil
}
