package vpayapi

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/SscSPs/disbursement_backoffice/internal/adapters/apiclient"
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
	"github.com/SscSPs/disbursement_backoffice/internal/middleware"
)

type documentList struct {
	Documents []domain.ProviderDocument `json:"documents"`
}

// DocumentAPI reads transaction documents from the provider's REST API.
// Exhausted retries degrade to empty results.
type DocumentAPI struct {
	client *apiclient.Client
}

// NewDocumentAPI creates a new DocumentAPI.
func NewDocumentAPI(client *apiclient.Client) *DocumentAPI {
	return &DocumentAPI{client: client}
}

var _ portssvc.DocumentAPI = (*DocumentAPI)(nil)

func (a *DocumentAPI) ListDocuments(ctx context.Context, transactionID string) ([]domain.ProviderDocument, error) {
	var out documentList
	if err := a.client.GetJSON(ctx, "/transactions/"+url.PathEscape(transactionID)+"/documents", &out); err != nil {
		middleware.GetLoggerFromCtx(ctx).Warn("Provider document listing unavailable",
			slog.String("transaction_id", transactionID),
			slog.String("error", err.Error()))
		return nil, nil
	}
	return out.Documents, nil
}

func (a *DocumentAPI) DownloadDocument(ctx context.Context, doc domain.ProviderDocument) ([]byte, error) {
	data, err := a.client.Get(ctx, "/documents/"+url.PathEscape(doc.DocumentID)+"/content")
	if err != nil {
		middleware.GetLoggerFromCtx(ctx).Warn("Provider document download unavailable",
			slog.String("document_id", doc.DocumentID),
			slog.String("error", err.Error()))
		return nil, nil
	}
	return data, nil
}
