package pgsql

import (
	portsrepo "github.com/SscSPs/disbursement_backoffice/internal/core/ports/repositories"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/clock"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool, c clock.Clock) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		DisbursementRepo: newPgxDisbursementRepository(dbPool, c),
		BatchRepo:        newPgxBatchRepository(dbPool, c),
	}
}
