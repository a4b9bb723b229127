package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	"github.com/SscSPs/disbursement_backoffice/internal/models"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/clock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordsTable = "disbursement_records"

const recordColumns = `pk, sk, entity_id, entity_sort, batch_id, state, record_date, counter, data, created_at, updated_at`

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	Pool  *pgxpool.Pool
	Clock clock.Clock
}

// Begin starts a new database transaction
func (r *BaseRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to begin transaction", err)
	}
	return tx, nil
}

// Commit commits a transaction
func (r *BaseRepository) Commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewAppError(500, "failed to commit transaction", err)
	}
	return nil
}

// Rollback rolls back a transaction
func (r *BaseRepository) Rollback(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return apperrors.NewAppError(500, "failed to rollback transaction", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (models.Record, error) {
	var rec models.Record
	err := row.Scan(
		&rec.PK,
		&rec.SK,
		&rec.EntityID,
		&rec.EntitySort,
		&rec.BatchID,
		&rec.State,
		&rec.RecordDate,
		&rec.Counter,
		&rec.Data,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	return rec, err
}

func collectRecords(rows pgx.Rows) ([]models.Record, error) {
	defer rows.Close()
	var recs []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// whereBuilder accumulates AND-ed conditions with positional arguments.
type whereBuilder struct {
	clauses []string
	args    []any
}

// add appends a condition; each "?" in cond is replaced with the next placeholder.
func (w *whereBuilder) add(cond string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.clauses = append(w.clauses, cond)
}

func (w *whereBuilder) sql() string {
	return "WHERE " + strings.Join(w.clauses, " AND ")
}

// limit appends the LIMIT argument and returns its placeholder.
func (w *whereBuilder) limit(n int) string {
	w.args = append(w.args, n)
	return fmt.Sprintf("LIMIT $%d", len(w.args))
}
