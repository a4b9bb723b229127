package billing

import (
	"context"
	"net/url"

	"github.com/SscSPs/disbursement_backoffice/internal/adapters/apiclient"
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
)

// Lookup reads billing accounts from the billing service.
type Lookup struct {
	client *apiclient.Client
}

// NewLookup creates a new billing Lookup.
func NewLookup(client *apiclient.Client) *Lookup {
	return &Lookup{client: client}
}

var _ portssvc.BillingLookup = (*Lookup)(nil)

func (l *Lookup) GetBillingAccount(ctx context.Context, policyID string) (*domain.BillingAccount, error) {
	var account domain.BillingAccount
	if err := l.client.GetJSON(ctx, "/policies/"+url.PathEscape(policyID)+"/billing-account", &account); err != nil {
		return nil, err
	}
	if account.PolicyID == "" {
		account.PolicyID = policyID
	}
	return &account, nil
}
