package services

import (
	"context"

	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
)

// BillingLookup resolves billing details for a policy.
type BillingLookup interface {
	GetBillingAccount(ctx context.Context, policyID string) (*domain.BillingAccount, error)
}

// ProductConfigLookup serves product configuration.
type ProductConfigLookup interface {
	GetConfiguration(ctx context.Context, productKey string) (*domain.ProductMain, *domain.ProductAccounting, error)
	GetProductList(ctx context.Context) ([]string, error)
}

// ActivityLogSink records human-readable audit entries against a policy.
type ActivityLogSink interface {
	SendActivityLog(ctx context.Context, entry domain.ActivityLogEntry) error
}

// EventBus publishes service events to downstream consumers.
type EventBus interface {
	SendServiceEvent(ctx context.Context, detail any, detailType string) error
}

// BlobStorage stores and serves documents.
type BlobStorage interface {
	Upload(ctx context.Context, data []byte, path, contentType string) error
	GetDocument(ctx context.Context, key string) ([]byte, error)
}

// RemoteTransport is an open connection to the provider's file drop.
type RemoteTransport interface {
	List(ctx context.Context, dir string) ([]string, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, path string, data []byte) error
	Rename(ctx context.Context, from, to string) error
	Close() error
}

// TransportDialer opens RemoteTransport connections.
type TransportDialer interface {
	Connect(ctx context.Context) (RemoteTransport, error)
}

// DocumentAPI reads documents the provider produced for a transaction.
// Failures are reported as empty results after bounded retries.
type DocumentAPI interface {
	ListDocuments(ctx context.Context, transactionID string) ([]domain.ProviderDocument, error)
	DownloadDocument(ctx context.Context, doc domain.ProviderDocument) ([]byte, error)
}
