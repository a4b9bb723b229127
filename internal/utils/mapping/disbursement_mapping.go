package mapping

import (
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	"github.com/SscSPs/disbursement_backoffice/internal/dto"
)

// ToDomainAddress converts an address payload to a domain Address
func ToDomainAddress(a dto.AddressRequest) domain.Address {
	return domain.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

// ToDomainRecipient converts a recipient payload to a domain Recipient
func ToDomainRecipient(r dto.RecipientRequest) domain.Recipient {
	rec := domain.Recipient{
		Name:               r.Name,
		CompanyName:        r.CompanyName,
		RecipientType:      domain.RecipientType(r.RecipientType),
		Address:            ToDomainAddress(r.Address),
		Email:              r.Email,
		Phone:              r.Phone,
		IsDefaultRecipient: r.IsDefaultRecipient,
	}
	if r.TaxID != nil {
		rec.TaxID = &domain.TaxID{Type: r.TaxID.Type, Number: r.TaxID.Number}
	}
	return rec
}

// ToDomainRecipients converts recipient payloads, preserving order
func ToDomainRecipients(rs []dto.RecipientRequest) []domain.Recipient {
	out := make([]domain.Recipient, len(rs))
	for i, r := range rs {
		out[i] = ToDomainRecipient(r)
	}
	return out
}

// ToDomainPaymentDetails converts payment details payload
func ToDomainPaymentDetails(p dto.PaymentDetailsRequest) domain.PaymentDetails {
	return domain.PaymentDetails{
		PaymentDate:       p.PaymentDate,
		Memo:              p.Memo,
		BankRoutingNumber: p.BankRoutingNumber,
		BankAccountNumber: p.BankAccountNumber,
	}
}
