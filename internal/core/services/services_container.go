package services

import (
	portsrepo "github.com/SscSPs/disbursement_backoffice/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/clock"
	"github.com/SscSPs/disbursement_backoffice/internal/platform/config"
)

// Collaborators are the external systems the services talk to.
type Collaborators struct {
	Billing   portssvc.BillingLookup
	Products  portssvc.ProductConfigLookup
	Activity  portssvc.ActivityLogSink
	Events    portssvc.EventBus
	Storage   portssvc.BlobStorage
	Documents portssvc.DocumentAPI
	Dialer    portssvc.TransportDialer
}

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, collab Collaborators, c clock.Clock) *portssvc.ServiceContainer {
	dirs := TransportDirs{
		Outbound: cfg.SFTPOutboundDir,
		Inbound:  cfg.SFTPInboundDir,
		Archive:  cfg.SFTPArchiveDir,
	}

	// Batch assignment is shared by creation, actions and release
	batchSvc := NewBatchService(repos.BatchRepo, c)

	return &portssvc.ServiceContainer{
		Batch: batchSvc,
		Disbursement: NewDisbursementService(DisbursementServiceDeps{
			DisbursementRepo: repos.DisbursementRepo,
			BatchSvc:         batchSvc,
			Products:         collab.Products,
			Billing:          collab.Billing,
			Activity:         collab.Activity,
			Events:           collab.Events,
			Clock:            c,
		}),
		Release: NewReleaseService(ReleaseServiceDeps{
			DisbursementRepo: repos.DisbursementRepo,
			BatchRepo:        repos.BatchRepo,
			BatchSvc:         batchSvc,
			Storage:          collab.Storage,
			Dialer:           collab.Dialer,
			Dirs:             dirs,
			Clock:            c,
		}),
		Reconciliation: NewReconciliationService(ReconciliationServiceDeps{
			DisbursementRepo: repos.DisbursementRepo,
			Events:           collab.Events,
			Documents:        collab.Documents,
			Storage:          collab.Storage,
			Dialer:           collab.Dialer,
			Dirs:             dirs,
			Clock:            c,
		}),
		Products: collab.Products,
	}
}
