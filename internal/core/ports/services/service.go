package services

// ServiceContainer holds instances of all the application services.
// Handlers, the event consumer and the scheduler read their dependencies from it.
type ServiceContainer struct {
	Disbursement   DisbursementSvcFacade
	Batch          BatchSvc
	Release        ReleaseSvc
	Reconciliation ReconciliationSvc
	Products       ProductConfigLookup
}
