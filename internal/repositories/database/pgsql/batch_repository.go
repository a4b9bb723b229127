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

type PgxBatchRepository struct {
	BaseRepository
}

func newPgxBatchRepository(pool *pgxpool.Pool, c clock.Clock) portsrepo.BatchRepositoryFacade {
	return &PgxBatchRepository{BaseRepository: BaseRepository{Pool: pool, Clock: c}}
}

var _ portsrepo.BatchRepositoryFacade = (*PgxBatchRepository)(nil)

func (r *PgxBatchRepository) FindBatch(ctx context.Context, entityID, batchNumber string, batchType domain.BatchType) (*domain.Batch, error) {
	pk := domain.BatchKey(entityID, batchNumber)
	query := `SELECT ` + recordColumns + ` FROM ` + recordsTable + ` WHERE pk = $1 AND sk = $2;`

	rec, err := scanRecord(r.Pool.QueryRow(ctx, query, pk, string(batchType)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("batch %s/%s", pk, batchType)
		}
		return nil, apperrors.NewAppError(500, "failed to find batch "+pk, err)
	}
	b, err := mapping.ToDomainBatch(rec)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to map batch "+pk, err)
	}
	return &b, nil
}

// CreateBatch inserts the batch if its key is free. Concurrent creators of the same
// window race harmlessly: the loser sees created=false.
func (r *PgxBatchRepository) CreateBatch(ctx context.Context, batch domain.Batch) (bool, error) {
	rec, err := mapping.ToBatchRecord(batch)
	if err != nil {
		return false, apperrors.NewAppError(500, "failed to map batch", err)
	}
	query := `
		INSERT INTO ` + recordsTable + ` (pk, sk, entity_id, entity_sort, state, record_date, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)
		ON CONFLICT (pk, sk) DO NOTHING;
	`
	tag, err := r.Pool.Exec(ctx, query,
		rec.PK, rec.SK, rec.EntityID, rec.EntitySort, rec.State, rec.RecordDate,
		string(rec.Data), rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return false, apperrors.NewAppError(500, "failed to create batch "+rec.PK, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgxBatchRepository) SaveBatch(ctx context.Context, batch domain.Batch) error {
	rec, err := mapping.ToBatchRecord(batch)
	if err != nil {
		return apperrors.NewAppError(500, "failed to map batch", err)
	}
	query := `
		UPDATE ` + recordsTable + `
		SET state = $3, record_date = $4, data = $5::jsonb, updated_at = $6
		WHERE pk = $1 AND sk = $2;
	`
	tag, err := r.Pool.Exec(ctx, query, rec.PK, rec.SK, rec.State, rec.RecordDate, string(rec.Data), r.Clock.Now())
	if err != nil {
		return apperrors.NewAppError(500, "failed to save batch "+rec.PK, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("batch %s/%s", rec.PK, rec.SK)
	}
	return nil
}

func (r *PgxBatchRepository) ListBatchesByEntity(ctx context.Context, entityID string, filter portsrepo.BatchFilter, limit int, nextToken *string) ([]domain.Batch, *string, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	fetchLimit := limit + 1

	w := &whereBuilder{}
	w.add("entity_id = ?", entityID)
	if filter.BatchType != "" {
		w.add("sk = ?", string(filter.BatchType))
	} else {
		types := make([]string, len(domain.BatchTypes))
		for i, t := range domain.BatchTypes {
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
	if filter.ScheduledBefore != nil {
		w.add("record_date <= ?", *filter.ScheduledBefore)
	}
	if filter.ScheduledAfter != nil {
		w.add("record_date >= ?", *filter.ScheduledAfter)
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
		return nil, nil, apperrors.NewAppError(500, "failed to query batches for entity "+entityID, err)
	}
	recs, err := collectRecords(rows)
	if err != nil {
		return nil, nil, apperrors.NewAppError(500, "failed to scan batch rows for entity "+entityID, err)
	}

	var nextTokenVal *string
	if len(recs) > limit {
		last := recs[limit-1]
		token := pagination.EncodeKeyToken(*last.EntitySort, last.PK)
		nextTokenVal = &token
		recs = recs[:limit]
	}

	out := make([]domain.Batch, len(recs))
	for i, rec := range recs {
		b, err := mapping.ToDomainBatch(rec)
		if err != nil {
			return nil, nil, apperrors.NewAppError(500, "failed to map batch "+rec.PK, err)
		}
		out[i] = b
	}
	return out, nextTokenVal, nil
}
