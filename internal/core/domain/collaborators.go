package domain

import "time"

// BillingAccount is what the billing system knows about a policy.
type BillingAccount struct {
	PolicyID       string `json:"policyId"`
	AccountNumber  string `json:"accountNumber"`
	AgencyEntityID string `json:"agencyEntityId"`
}

// ProviderDocument describes a document the provider holds for a transaction.
type ProviderDocument struct {
	DocumentID  string `json:"documentId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

// Activity log templates.
const (
	ActivityDisbursementCreated  = "DisbursementCreated"
	ActivityDisbursementApproved = "DisbursementApproved"
	ActivityDisbursementRejected = "DisbursementRejected"
	ActivityDisbursementMoved    = "DisbursementMovedBatch"
	ActivityActionRefused        = "DisbursementActionRefused"
	ActivityDisbursementEdited   = "DisbursementEdited"
)

// Service event detail types.
const (
	EventClaimProviderError      = "ClaimDisbursementProviderError"
	EventPolicyProviderError     = "PolicyDisbursementProviderError"
	EventDisbursementEdited      = "DisbursementEditResponse"
	EventDisbursementStateChange = "DisbursementStatusChanged"
)

// StatusChangeEvent notifies an upstream caller of the outcome of its action request.
type StatusChangeEvent struct {
	PaymentID          string                `json:"paymentId"`
	EntityID           string                `json:"entityId"`
	DisbursementNumber int64                 `json:"disbursementNumber"`
	State              DisbursementStateName `json:"state"`
	RejectReason       string                `json:"rejectReason,omitempty"`
	Actor              string                `json:"actor"`
}

// EditResponseEvent answers an edit request carrying a correlation id.
type EditResponseEvent struct {
	PaymentID          string                `json:"paymentId"`
	EntityID           string                `json:"entityId"`
	DisbursementNumber int64                 `json:"disbursementNumber"`
	Success            bool                  `json:"success"`
	State              DisbursementStateName `json:"state"`
}

// ProviderErrorEvent reports a payment the provider rejected.
type ProviderErrorEvent struct {
	EntityID           string `json:"entityId"`
	DisbursementNumber int64  `json:"disbursementNumber"`
	PolicyID           string `json:"policyId,omitempty"`
	ClaimID            string `json:"claimId,omitempty"`
	Amount             string `json:"amount"`
	RejectReason       string `json:"rejectReason,omitempty"`
	FileName           string `json:"fileName,omitempty"`
}

// ActivityLogEntry is one audit trail entry rendered from a template.
type ActivityLogEntry struct {
	EntityID       string            `json:"entityId"`
	PolicyID       string            `json:"policyId,omitempty"`
	AgencyEntityID string            `json:"agencyEntityId,omitempty"`
	Template       string            `json:"template"`
	Substitutions  map[string]string `json:"substitutions"`
	OccurredAt     time.Time         `json:"occurredAt"`
}
