package services

import (
	"context"

	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	"github.com/SscSPs/disbursement_backoffice/internal/vpay"
)

// ReconcileResult summarizes a reconciliation pass.
type ReconcileResult struct {
	Files   int
	Applied int
	Skipped int
	Failed  int
}

// ReconciliationSvc applies provider status files to disbursements.
type ReconciliationSvc interface {
	// ApplyTransaction moves a disbursement to the state a provider line reports.
	ApplyTransaction(ctx context.Context, tx vpay.Transaction, entityID string) (*domain.Disbursement, error)

	// ReconcileFile parses and applies every line of one provider file. A failing line does not stop the file.
	ReconcileFile(ctx context.Context, entityID, fileName string, content []byte) (ReconcileResult, error)

	// ReconcileInbound processes and archives all files waiting in the product's inbound directory.
	ReconcileInbound(ctx context.Context, product domain.ProductMain) (ReconcileResult, error)
}
