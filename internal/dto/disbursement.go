package dto

import (
	"time"

	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	"github.com/shopspring/decimal"
)

// AddressRequest is a postal address as submitted by callers.
type AddressRequest struct {
	Line1      string `json:"line1" binding:"required,max=200"`
	Line2      string `json:"line2" binding:"max=200"`
	City       string `json:"city" binding:"required,max=100"`
	State      string `json:"state" binding:"required,max=3"`
	PostalCode string `json:"postalCode" binding:"required,max=10"`
	Country    string `json:"country" binding:"required,max=3"`
}

type TaxIDRequest struct {
	Type   string `json:"type" binding:"required,oneof=SSN EIN ITIN"`
	Number string `json:"number" binding:"required,min=9,max=11"`
}

// RecipientRequest describes one payee. Businesses must carry a tax id.
type RecipientRequest struct {
	Name               string         `json:"name" binding:"required_without=CompanyName,max=200"`
	CompanyName        string         `json:"companyName" binding:"required_without=Name,max=200"`
	RecipientType      string         `json:"recipientType" binding:"required,oneof=Individual Business"`
	Address            AddressRequest `json:"address" binding:"required"`
	TaxID              *TaxIDRequest  `json:"taxId" binding:"required_if=RecipientType Business"`
	Email              string         `json:"email" binding:"omitempty,email"`
	Phone              string         `json:"phone" binding:"omitempty,max=20"`
	IsDefaultRecipient bool           `json:"isDefaultRecipient"`
}

type PaymentDetailsRequest struct {
	PaymentDate       time.Time `json:"paymentDate"`
	Memo              string    `json:"memo" binding:"max=200"`
	BankRoutingNumber string    `json:"bankRoutingNumber" binding:"omitempty,len=9,numeric"`
	BankAccountNumber string    `json:"bankAccountNumber" binding:"omitempty,max=17,numeric"`
}

// CreateDisbursementRequest defines the payload for creating disbursements.
// DisbursementPrint requests fan out into one record per recipient.
type CreateDisbursementRequest struct {
	EntityID         string                `json:"-"`
	ProductKey       string                `json:"productKey" binding:"required"`
	DisbursementType string                `json:"disbursementType" binding:"required,oneof=Disbursement ClaimDisbursement DisbursementPrint"`
	Amount           decimal.Decimal       `json:"amount" binding:"required"`
	CostType         string                `json:"costType" binding:"required"`
	CatastropheType  string                `json:"catastropheType"`
	Coverage         string                `json:"coverage" binding:"max=100"`
	Description      string                `json:"description" binding:"max=500"`
	DeliveryMethod   string                `json:"deliveryMethod" binding:"required,oneof=Check ACH Email"`
	MailingAddress   *AddressRequest       `json:"mailingAddress" binding:"omitempty"`
	Recipients       []RecipientRequest    `json:"recipients" binding:"required,min=1,dive"`
	PaymentDetails   PaymentDetailsRequest `json:"paymentDetails"`
	Documents        []string              `json:"documents"`
	PolicyID         string                `json:"policyId" binding:"required_without=ClaimID"`
	ClaimID          string                `json:"claimId" binding:"required_if=DisbursementType ClaimDisbursement"`
}

// ActionOrigin tells whether an action came from an interactive user or an asynchronous event.
type ActionOrigin string

const (
	OriginInteractive ActionOrigin = "Interactive"
	OriginEvent       ActionOrigin = "Event"
)

// Supported action names.
const (
	ActionApprove   = "Approve"
	ActionReject    = "Reject"
	ActionMoveBatch = "MoveBatch"
)

// ActionRequest asks for a lifecycle action on one disbursement.
type ActionRequest struct {
	EntityID           string       `json:"entityId"`
	DisbursementNumber int64        `json:"disbursementNumber"`
	DisbursementType   string       `json:"disbursementType"`
	Action             string       `json:"action" binding:"required"`
	RejectReason       string       `json:"rejectReason" binding:"max=500"`
	PaymentID          string       `json:"paymentId"`
	ReturnEvent        string       `json:"returnEvent"`
	Origin             ActionOrigin `json:"-"`
}

// EditDisbursementRequest replaces the recipients of a disbursement.
type EditDisbursementRequest struct {
	EntityID           string             `json:"entityId" binding:"required"`
	DisbursementNumber int64              `json:"disbursementNumber" binding:"required,gt=0"`
	DisbursementType   string             `json:"disbursementType"`
	Recipients         []RecipientRequest `json:"recipients" binding:"required,min=1,dive"`
	PaymentID          string             `json:"paymentId"`
	ReturnEvent        string             `json:"returnEvent"`
}

// ListDisbursementsParams are the query parameters of a listing.
type ListDisbursementsParams struct {
	DisbursementType string     `form:"disbursementType" binding:"omitempty,oneof=Disbursement ClaimDisbursement DisbursementPrint"`
	State            string     `form:"state"`
	PolicyID         string     `form:"policyId"`
	ClaimID          string     `form:"claimId"`
	CreatedFrom      *time.Time `form:"createdFrom" time_format:"2006-01-02T15:04:05Z07:00"`
	CreatedTo        *time.Time `form:"createdTo" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit            int        `form:"limit" binding:"omitempty,min=1,max=200"`
	NextToken        *string    `form:"nextToken"`
}

type RecipientResponse struct {
	Name               string         `json:"name,omitempty"`
	CompanyName        string         `json:"companyName,omitempty"`
	RecipientType      string         `json:"recipientType"`
	Address            domain.Address `json:"address"`
	Email              string         `json:"email,omitempty"`
	Phone              string         `json:"phone,omitempty"`
	IsDefaultRecipient bool           `json:"isDefaultRecipient"`
	HasTaxID           bool           `json:"hasTaxId"`
}

// DisbursementResponse defines the data returned for a disbursement.
type DisbursementResponse struct {
	EntityID           string                     `json:"entityId"`
	DisbursementNumber int64                      `json:"disbursementNumber"`
	DisbursementType   string                     `json:"disbursementType"`
	Amount             decimal.Decimal            `json:"amount"`
	CostType           string                     `json:"costType"`
	FundingAccountCode string                     `json:"fundingAccountCode"`
	DeliveryMethod     string                     `json:"deliveryMethod"`
	PolicyID           string                     `json:"policyId,omitempty"`
	ClaimID            string                     `json:"claimId,omitempty"`
	State              string                     `json:"state"`
	StateHistory       []domain.DisbursementState `json:"stateHistory"`
	BatchNumber        string                     `json:"batchNumber,omitempty"`
	ReleasedDateTime   *time.Time                 `json:"releasedDateTime,omitempty"`
	RejectReason       string                     `json:"rejectReason,omitempty"`
	CheckNumber        string                     `json:"checkNumber,omitempty"`
	Recipients         []RecipientResponse        `json:"recipients"`
	CreatedAt          time.Time                  `json:"createdAt"`
	CreatedBy          string                     `json:"createdBy"`
	LastUpdatedAt      time.Time                  `json:"lastUpdatedAt"`
	LastUpdatedBy      string                     `json:"lastUpdatedBy"`
}

// ListDisbursementsResponse is one page of disbursements.
type ListDisbursementsResponse struct {
	Disbursements []DisbursementResponse `json:"disbursements"`
	NextToken     *string                `json:"nextToken,omitempty"`
}

// EditDisbursementResponse reports whether the edit was applied.
type EditDisbursementResponse struct {
	Success      bool                 `json:"success"`
	Disbursement DisbursementResponse `json:"disbursement"`
}

// ToDisbursementResponse converts a domain.Disbursement to DisbursementResponse DTO.
// Tax id numbers are never echoed back.
func ToDisbursementResponse(d *domain.Disbursement) DisbursementResponse {
	recipients := make([]RecipientResponse, len(d.Recipients))
	for i, r := range d.Recipients {
		recipients[i] = RecipientResponse{
			Name:               r.Name,
			CompanyName:        r.CompanyName,
			RecipientType:      string(r.RecipientType),
			Address:            r.Address,
			Email:              r.Email,
			Phone:              r.Phone,
			IsDefaultRecipient: r.IsDefaultRecipient,
			HasTaxID:           r.TaxID != nil,
		}
	}
	history := d.StateHistory
	if history == nil {
		history = []domain.DisbursementState{}
	}
	return DisbursementResponse{
		EntityID:           d.EntityID,
		DisbursementNumber: d.DisbursementNumber,
		DisbursementType:   string(d.DisbursementType),
		Amount:             d.Amount,
		CostType:           d.CostType,
		FundingAccountCode: d.FundingAccountCode,
		DeliveryMethod:     d.DeliveryMethod,
		PolicyID:           d.PolicyID,
		ClaimID:            d.ClaimID,
		State:              string(d.State.State),
		StateHistory:       history,
		BatchNumber:        d.BatchNumber,
		ReleasedDateTime:   d.ReleasedDateTime,
		RejectReason:       d.RejectReason,
		CheckNumber:        d.ProviderResponse.CheckNumber,
		Recipients:         recipients,
		CreatedAt:          d.CreatedAt,
		CreatedBy:          d.CreatedBy,
		LastUpdatedAt:      d.LastUpdatedAt,
		LastUpdatedBy:      d.LastUpdatedBy,
	}
}

// ToDisbursementResponses converts a slice of domain.Disbursement to []DisbursementResponse.
func ToDisbursementResponses(ds []domain.Disbursement) []DisbursementResponse {
	responses := make([]DisbursementResponse, len(ds))
	for i := range ds {
		responses[i] = ToDisbursementResponse(&ds[i])
	}
	return responses
}
