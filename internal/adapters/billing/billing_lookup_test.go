package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/disbursement_backoffice/internal/adapters/apiclient"
	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
)

func TestGetBillingAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/policies/POL-1/billing-account" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"accountNumber":"BA-9","agencyEntityId":"AG-3"}`))
	}))
	defer srv.Close()
	lookup := NewLookup(apiclient.New(context.Background(), apiclient.Config{BaseURL: srv.URL, RetryWait: time.Millisecond}))

	account, err := lookup.GetBillingAccount(context.Background(), "POL-1")
	require.NoError(t, err)
	assert.Equal(t, "AG-3", account.AgencyEntityID)
	assert.Equal(t, "POL-1", account.PolicyID)

	_, err = lookup.GetBillingAccount(context.Background(), "POL-2")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
