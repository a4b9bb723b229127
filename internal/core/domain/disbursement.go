package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RecipientType distinguishes natural persons from businesses.
type RecipientType string

const (
	RecipientIndividual RecipientType = "Individual"
	RecipientBusiness   RecipientType = "Business"
)

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type TaxID struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// Recipient is a payee on a disbursement.
type Recipient struct {
	Name               string        `json:"name,omitempty"`
	CompanyName        string        `json:"companyName,omitempty"`
	RecipientType      RecipientType `json:"recipientType"`
	Address            Address       `json:"address"`
	TaxID              *TaxID        `json:"taxId,omitempty"`
	Email              string        `json:"email,omitempty"`
	Phone              string        `json:"phone,omitempty"`
	IsDefaultRecipient bool          `json:"isDefaultRecipient"`
}

// DisplayName is the company name for businesses and the personal name otherwise.
func (r Recipient) DisplayName() string {
	if r.RecipientType == RecipientBusiness && r.CompanyName != "" {
		return r.CompanyName
	}
	if r.Name != "" {
		return r.Name
	}
	return r.CompanyName
}

// PaymentDetails carries how and when the money moves.
type PaymentDetails struct {
	PaymentDate       time.Time `json:"paymentDate"`
	Memo              string    `json:"memo,omitempty"`
	BankRoutingNumber string    `json:"bankRoutingNumber,omitempty"`
	BankAccountNumber string    `json:"bankAccountNumber,omitempty"`
}

// ProviderResponse holds what the provider reported back for the payment.
type ProviderResponse struct {
	PaymentType        string `json:"paymentType,omitempty"`
	TransactionID      string `json:"transactionId,omitempty"`
	CheckNumber        string `json:"checkNumber,omitempty"`
	MailTrackingNumber string `json:"mailTrackingNumber,omitempty"`
	ProviderStatus     string `json:"providerStatus,omitempty"`
}

// Disbursement is a single outbound payment request.
type Disbursement struct {
	EntityID           string           `json:"entityId"`
	DisbursementNumber int64            `json:"disbursementNumber"`
	DisbursementType   DisbursementType `json:"disbursementType"`
	ProductKey         string           `json:"productKey"`
	Amount             decimal.Decimal  `json:"amount"`
	CostType           string           `json:"costType"`
	CatastropheType    string           `json:"catastropheType,omitempty"`
	Coverage           string           `json:"coverage,omitempty"`
	Description        string           `json:"description,omitempty"`
	DeliveryMethod     string           `json:"deliveryMethod"`
	FundingAccountCode string           `json:"fundingAccountCode"`
	MailingAddress     *Address         `json:"mailingAddress,omitempty"`
	Recipients         []Recipient      `json:"recipients"`
	PaymentDetails     PaymentDetails   `json:"paymentDetails"`
	Documents          []string         `json:"documents,omitempty"`
	DocumentReconKeys  []string         `json:"documentReconKeys,omitempty"`
	PolicyID           string           `json:"policyId,omitempty"`
	ClaimID            string           `json:"claimId,omitempty"`
	RejectReason       string           `json:"rejectReason,omitempty"`
	ProviderResponse   ProviderResponse `json:"providerResponse"`

	State        DisbursementState   `json:"state"`
	StateHistory []DisbursementState `json:"stateHistory,omitempty"`

	BatchID          string     `json:"batchId,omitempty"`
	BatchNumber      string     `json:"batchNumber,omitempty"`
	ReleasedDateTime *time.Time `json:"releasedDateTime,omitempty"`
	ApprovedBy       string     `json:"approvedBy,omitempty"`
	ApprovedDateTime *time.Time `json:"approvedDateTime,omitempty"`
	RejectedBy       string     `json:"rejectedBy,omitempty"`
	RejectedDateTime *time.Time `json:"rejectedDateTime,omitempty"`

	AuditFields
}

// DisbursementKey builds the primary key of a disbursement record.
func DisbursementKey(entityID string, number int64) string {
	return fmt.Sprintf("%s_%d", entityID, number)
}

// Key is the record's primary key. It is empty until a number has been allocated.
func (d *Disbursement) Key() string {
	if d.DisbursementNumber == 0 {
		return ""
	}
	return DisbursementKey(d.EntityID, d.DisbursementNumber)
}

// ProviderID is the identifier the payment is known by in provider files.
func (d *Disbursement) ProviderID() string {
	return fmt.Sprintf("%d", d.DisbursementNumber)
}

// ReferenceType derives claim vs policy routing from the record.
func (d *Disbursement) ReferenceType() ReferenceType {
	if d.DisbursementType == DisbursementTypeClaim || d.ClaimID != "" {
		return ReferenceClaim
	}
	return ReferencePolicy
}

// ReferenceID is the claim id for claim payments and the policy id otherwise.
func (d *Disbursement) ReferenceID() string {
	if d.ReferenceType() == ReferenceClaim {
		return d.ClaimID
	}
	return d.PolicyID
}

// DefaultRecipient returns the recipient flagged as default, or the first one.
func (d *Disbursement) DefaultRecipient() (Recipient, bool) {
	for _, r := range d.Recipients {
		if r.IsDefaultRecipient {
			return r, true
		}
	}
	if len(d.Recipients) > 0 {
		return d.Recipients[0], true
	}
	return Recipient{}, false
}

// Clone returns a copy that shares no slices or pointers with d.
func (d *Disbursement) Clone() Disbursement {
	c := *d
	if d.MailingAddress != nil {
		addr := *d.MailingAddress
		c.MailingAddress = &addr
	}
	if d.Recipients != nil {
		c.Recipients = make([]Recipient, len(d.Recipients))
		for i, r := range d.Recipients {
			if r.TaxID != nil {
				taxID := *r.TaxID
				r.TaxID = &taxID
			}
			c.Recipients[i] = r
		}
	}
	c.Documents = cloneStrings(d.Documents)
	c.DocumentReconKeys = cloneStrings(d.DocumentReconKeys)
	if d.StateHistory != nil {
		c.StateHistory = append([]DisbursementState(nil), d.StateHistory...)
	}
	c.ReleasedDateTime = cloneTime(d.ReleasedDateTime)
	c.ApprovedDateTime = cloneTime(d.ApprovedDateTime)
	c.RejectedDateTime = cloneTime(d.RejectedDateTime)
	return c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// AssignBatch points the disbursement at a batch.
func (d *Disbursement) AssignBatch(b Batch) {
	d.BatchID = b.ID()
	d.BatchNumber = b.BatchNumber
}

// EntitySortKey is the type-prefixed sort value used by the per-entity index.
func (d *Disbursement) EntitySortKey() string {
	return EntitySortKey(string(d.DisbursementType), fmt.Sprintf("%012d", d.DisbursementNumber))
}

// EntitySortKey joins a record type and an ordering value for begins-with lookups.
func EntitySortKey(recordType, value string) string {
	return recordType + "#" + value
}

// NormalizeRecipients ensures exactly one recipient carries the default flag.
func NormalizeRecipients(recipients []Recipient) []Recipient {
	out := make([]Recipient, len(recipients))
	copy(out, recipients)
	found := false
	for i := range out {
		if out[i].IsDefaultRecipient && !found {
			found = true
			continue
		}
		out[i].IsDefaultRecipient = false
	}
	if !found && len(out) > 0 {
		out[0].IsDefaultRecipient = true
	}
	return out
}
