package vpay

import (
	"fmt"
	"strings"
	"time"

	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
)

// Record tags of the outbound payment file.
const (
	tagHeader    = "HDR"
	tagPayment   = "PMT"
	tagParty     = "PTY"
	tagReference = "REF"
	tagTrailer   = "TRL"
	tagTotal     = "TOT"

	rolePayee   = "PAYEE"
	fileVersion = "1.0"
)

// trailerCount is the number of trailer lines every file ends with.
const trailerCount = 5

// Options identify the file being produced.
type Options struct {
	FileID  string
	PayerID string
}

// DocumentEntry maps a stored document onto the file name it is transmitted under.
type DocumentEntry struct {
	DisbursementID string
	DocumentKey    string
	FileName       string
}

// Transmission is a formatted payment file plus the documents that travel with it.
type Transmission struct {
	FileName       string
	Content        string
	Documents      []DocumentEntry
	PaymentCount   int
	PartyCount     int
	ReferenceCount int
	TotalRecords   int
}

// Format renders the disbursements as a provider payment file. It performs no I/O.
func Format(disbursements []domain.Disbursement, asOf time.Time, opts Options) Transmission {
	stamp := FileStamp(asOf)
	var payments, parties, references []string
	var documents []DocumentEntry

	for i := range disbursements {
		d := &disbursements[i]
		id := d.ProviderID()

		payments = append(payments, paymentLine(d, len(payments)+1, asOf))
		defaultIdx := defaultRecipientIndex(d.Recipients)
		for j, r := range d.Recipients {
			addr := r.Address
			// The check goes to the mailing address when one is set.
			if j == defaultIdx && d.MailingAddress != nil {
				addr = *d.MailingAddress
			}
			parties = append(parties, partyLine(id, len(parties)+1, rolePayee, j == defaultIdx, r, addr))
		}
		references = append(references, referenceLine(d, len(references)+1))

		for n, key := range d.Documents {
			documents = append(documents, DocumentEntry{
				DisbursementID: id,
				DocumentKey:    key,
				FileName:       fmt.Sprintf("%s_%s_%d.pdf", id, stamp, n+1),
			})
		}
	}

	total := len(payments) + len(parties) + len(references) + 1 + trailerCount

	lines := make([]string, 0, total)
	lines = append(lines, join(tagHeader, text(opts.FileID, 0), text(opts.PayerID, 0), FormatTimestamp(asOf), fileVersion))
	lines = append(lines, payments...)
	lines = append(lines, parties...)
	lines = append(lines, references...)
	lines = append(lines,
		join(tagTrailer, tagHeader, seq(1, countWidth)),
		join(tagTrailer, tagPayment, seq(len(payments), countWidth)),
		join(tagTrailer, tagParty, seq(len(parties), countWidth)),
		join(tagTrailer, tagReference, seq(len(references), countWidth)),
		join(tagTrailer, tagTotal, seq(total, countWidth)),
	)

	return Transmission{
		FileName:       fmt.Sprintf("%s_%s.txt", text(opts.PayerID, 0), stamp),
		Content:        strings.Join(lines, lineEnding) + lineEnding,
		Documents:      documents,
		PaymentCount:   len(payments),
		PartyCount:     len(parties),
		ReferenceCount: len(references),
		TotalRecords:   total,
	}
}

// defaultRecipientIndex is the first flagged recipient, or the first one when none is flagged.
func defaultRecipientIndex(recipients []domain.Recipient) int {
	for i, r := range recipients {
		if r.IsDefaultRecipient {
			return i
		}
	}
	return 0
}

func paymentLine(d *domain.Disbursement, n int, asOf time.Time) string {
	paymentDate := d.PaymentDetails.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = asOf
	}
	return join(tagPayment,
		seq(n, seqWidth),
		d.ProviderID(),
		d.Amount.StringFixed(2),
		paymentDate.In(ProviderLocation).Format(dateLayout),
		text(d.DeliveryMethod, 0),
		text(d.FundingAccountCode, 0),
		text(d.CostType, 0),
		text(d.PolicyID, 0),
		text(d.ClaimID, 0),
		text(d.Description, maxDescriptionLen),
		fmt.Sprintf("%d", len(d.Documents)),
	)
}

func partyLine(id string, n int, role string, isDefault bool, r domain.Recipient, addr domain.Address) string {
	taxType, taxNumber := "", ""
	if r.TaxID != nil {
		taxType, taxNumber = r.TaxID.Type, r.TaxID.Number
	}
	return join(tagParty,
		seq(n, seqWidth),
		id,
		role,
		yesNo(isDefault),
		text(r.DisplayName(), maxNameLen),
		text(addr.Line1, maxAddressLen),
		text(addr.Line2, maxAddressLen),
		text(addr.City, maxCityLen),
		text(addr.State, maxStateLen),
		zeroLeft(addr.PostalCode, postalLen),
		text(addr.Country, maxCountryLen),
		text(taxType, 0),
		text(taxNumber, 0),
		text(r.Email, 0),
		text(r.Phone, 0),
	)
}

func referenceLine(d *domain.Disbursement, n int) string {
	return join(tagReference,
		seq(n, seqWidth),
		d.ProviderID(),
		text(string(d.ReferenceType()), 0),
		text(d.ReferenceID(), 0),
		text(d.BatchNumber, 0),
		text(d.Coverage, 0),
	)
}

func join(fields ...string) string {
	return strings.Join(fields, delimiter)
}
